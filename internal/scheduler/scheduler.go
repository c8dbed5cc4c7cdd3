package scheduler

import (
	"errors"
	"fmt"
	"io"
	"net"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
)

// liveness abstracts the existence/state probe and stop/continue signals so
// the tick state machine can be driven by a fake oracle in tests, matching
// spec.md's concrete scheduler scenarios without real PIDs.
type liveness interface {
	Alive(pid int) bool
	Stop(pid int) error
	Continue(pid int) error
}

// submitPipe is the read side of the submit pipe. It must support read
// deadlines so intake can drain whatever is already pending and return,
// rather than blocking the tick loop when the shell has nothing queued.
type submitPipe interface {
	io.Reader
	SetReadDeadline(t time.Time) error
}

// Config parameterizes one Scheduler run.
type Config struct {
	NCPU   int
	Tslice time.Duration
}

// Scheduler is the single-threaded, tick-driven cooperative round-robin
// scheduler. Every method that mutates its queues is meant to be called
// from the one goroutine running Run; there is no internal locking, matching
// the "no locking is needed" concurrency note.
type Scheduler struct {
	cfg Config
	lv  liveness
	log *logrus.Logger

	ready    queue
	running  queue
	buffer   queue
	complete []Job

	reported map[int]struct{}

	submitR submitPipe
	resultW io.Writer
	submitEOF bool

	shutdownRequested atomic.Bool
}

// New constructs a Scheduler reading pids from submitR and writing results
// to resultW. submitR must support SetReadDeadline (a real pipe *os.File
// does) so intake never blocks the tick loop.
func New(cfg Config, submitR submitPipe, resultW io.Writer, log *logrus.Logger) *Scheduler {
	if log == nil {
		log = logrus.New()
	}
	return &Scheduler{
		cfg:      cfg,
		lv:       newLiveness(),
		log:      log,
		reported: make(map[int]struct{}),
		submitR:  submitR,
		resultW:  resultW,
	}
}

// RequestShutdown is the scheduler's terminate/interrupt signal handler: it
// only flips an atomic flag, per the async-signal-safety requirement — no
// logging or queue mutation happens here.
func (s *Scheduler) RequestShutdown() {
	s.shutdownRequested.Store(true)
}

// Run executes the tick loop until termination, then performs the shutdown
// sweep and streams results. It returns the number of Jobs reported.
func (s *Scheduler) Run() (int, error) {
	for !s.terminationReached() {
		s.tick()
	}

	s.shutdownSweep()

	return s.reportResults()
}

func (s *Scheduler) terminationReached() bool {
	queuesEmpty := s.ready.len() == 0 && s.running.len() == 0 && s.buffer.len() == 0
	return (s.shutdownRequested.Load() && queuesEmpty) || (s.submitEOF && queuesEmpty)
}

// tick runs exactly one pass of the per-tick state machine documented for
// the scheduler: sleep, preempt, credit wait, rearm, intake, dispatch.
func (s *Scheduler) tick() {
	s.sleepOneTick()
	s.preempt()
	s.creditWait()
	s.rearm()
	s.intake()
	s.dispatch()
}

func (s *Scheduler) sleepOneTick() {
	time.Sleep(s.cfg.Tslice)
}

// preempt drains running into buffer, crediting one run slice to each and
// promoting dead processes to complete before issuing a stop signal to the
// survivors.
func (s *Scheduler) preempt() {
	for _, j := range s.running.drainAll() {
		j.RunSlices++

		if !s.lv.Alive(j.PID) {
			s.retire(j)
			continue
		}

		if err := s.lv.Stop(j.PID); err != nil {
			if errors.Is(err, syscall.ESRCH) {
				s.retire(j)
				continue
			}
			s.log.WithError(err).WithField("pid", j.PID).Warn("stop signal failed")
		}
		s.buffer.pushBack(j)
	}
}

// creditWait increments the wait counter of every Job currently in ready —
// i.e. those that waited the whole just-elapsed tick. This must run before
// intake so newly submitted Jobs are not credited for a tick they were not
// yet present for.
func (s *Scheduler) creditWait() {
	for i := range s.ready.jobs {
		s.ready.jobs[i].WaitSlices++
	}
}

// rearm moves every buffered Job back to ready, promoting any that died
// while stopped.
func (s *Scheduler) rearm() {
	for _, j := range s.buffer.drainAll() {
		if !s.lv.Alive(j.PID) {
			s.retire(j)
			continue
		}
		s.ready.pushBack(j)
	}
}

// intake non-blockingly drains the submit pipe: an already-past deadline
// makes every Read return immediately, with whatever is already buffered,
// rather than parking the tick loop waiting for the next pid. Each whole
// frame becomes a new Job appended to ready; a deadline-exceeded/would-block
// result just ends the drain for this tick; a genuine partial frame is
// logged and dropped; EOF marks the shell as closed.
func (s *Scheduler) intake() {
	if err := s.submitR.SetReadDeadline(time.Now()); err != nil {
		s.log.WithError(err).Warn("setting submit pipe read deadline failed")
	}

	for {
		frame, err := ReadSubmitFrame(s.submitR)
		if err != nil {
			switch {
			case errors.Is(err, io.EOF):
				s.submitEOF = true
			case isTimeout(err):
				// nothing pending right now; resume on the next tick.
			default:
				s.log.WithError(err).Warn("dropping partial submit frame")
			}
			return
		}
		s.ready.pushBack(Job{PID: int(frame.PID)})
	}
}

// isTimeout reports whether err is the deadline-exceeded/would-block result
// of a non-blocking read, as opposed to a genuine short read on the frame.
func isTimeout(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// dispatch pops up to NCPU Jobs from the head of ready and continues them.
func (s *Scheduler) dispatch() {
	for i := 0; i < s.cfg.NCPU; i++ {
		j, ok := s.ready.popFront()
		if !ok {
			break
		}

		if !s.lv.Alive(j.PID) {
			s.retire(j)
			continue
		}

		if err := s.lv.Continue(j.PID); err != nil {
			if errors.Is(err, syscall.ESRCH) {
				s.retire(j)
				continue
			}
			s.ready.pushBack(j)
			continue
		}
		s.running.pushBack(j)
	}
}

// retire moves a Job to complete, deduping against anything already
// reported so a later synthesized record (from the shutdown sweep) never
// double-counts it.
func (s *Scheduler) retire(j Job) {
	if _, already := s.reported[j.PID]; already {
		return
	}
	s.reported[j.PID] = struct{}{}
	s.complete = append(s.complete, j)
}

// shutdownSweep runs three 50ms passes over ready/running/buffer, promoting
// any dead process found in them to complete.
func (s *Scheduler) shutdownSweep() {
	for i := 0; i < 3; i++ {
		time.Sleep(50 * time.Millisecond)
		s.sweepQueue(&s.ready)
		s.sweepQueue(&s.running)
		s.sweepQueue(&s.buffer)
	}
}

func (s *Scheduler) sweepQueue(q *queue) {
	remaining := q.jobs[:0]
	for _, j := range q.jobs {
		if s.lv.Alive(j.PID) {
			remaining = append(remaining, j)
			continue
		}
		s.retire(j)
	}
	q.jobs = remaining
}

// reportResults streams every completed Job as a result frame, followed by
// the sentinel, and returns how many Jobs were reported.
func (s *Scheduler) reportResults() (int, error) {
	for _, j := range s.complete {
		if _, err := NewResultFrame(j).WriteTo(s.resultW); err != nil {
			return 0, fmt.Errorf("writing result frame: %w", err)
		}
	}
	if _, err := NewSentinelFrame().WriteTo(s.resultW); err != nil {
		return 0, fmt.Errorf("writing sentinel frame: %w", err)
	}
	return len(s.complete), nil
}
