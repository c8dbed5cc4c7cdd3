package threadpool

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestAllJobsRunExactlyOnce(t *testing.T) {
	p := New(4)
	defer p.Cleanup()

	var count int64
	const n = 50
	for i := 0; i < n; i++ {
		p.Add(func(arg any) {
			atomic.AddInt64(&count, 1)
		}, nil)
	}
	p.Wait()

	if got := atomic.LoadInt64(&count); got != n {
		t.Errorf("count = %d, want %d", got, n)
	}
}

func TestWaitBlocksUntilPendingZero(t *testing.T) {
	p := New(1)
	defer p.Cleanup()

	done := make(chan struct{})
	p.Add(func(arg any) {
		time.Sleep(20 * time.Millisecond)
		close(done)
	}, nil)

	p.Wait()
	select {
	case <-done:
	default:
		t.Errorf("Wait returned before the job finished")
	}
}

func TestStatsReflectsCompleted(t *testing.T) {
	p := New(2)
	defer p.Cleanup()

	p.Add(func(arg any) {}, nil)
	p.Add(func(arg any) {}, nil)
	p.Wait()

	stats := p.Stats()
	if stats.Completed != 2 {
		t.Errorf("Completed = %d, want 2", stats.Completed)
	}
	if stats.Pending != 0 {
		t.Errorf("Pending = %d, want 0", stats.Pending)
	}
}

func TestCleanupJoinsWorkers(t *testing.T) {
	p := New(3)
	p.Add(func(arg any) {}, nil)
	p.Wait()
	p.Cleanup() // must return; workers must observe shutdown and exit
}

func TestAddAfterCleanupIsANoOp(t *testing.T) {
	p := New(1)
	p.Cleanup()
	p.Add(func(arg any) { t.Errorf("job ran after Cleanup") }, nil)
	time.Sleep(10 * time.Millisecond)
}
