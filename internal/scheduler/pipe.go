package scheduler

import (
	"encoding/binary"
	"fmt"
	"io"
)

// SubmitFrameSize is the wire size of one submit-pipe frame: a raw pid,
// host byte order.
const SubmitFrameSize = 4

// ResultFrameSize is the wire size of one result-pipe frame: four host-order
// int32 fields.
const ResultFrameSize = 16

// sentinelPID terminates the result stream.
const sentinelPID = -1

// SubmitFrame is one pid read off the submit pipe.
type SubmitFrame struct {
	PID int32
}

// ReadSubmitFrame reads exactly one submit frame from r. An error with zero
// bytes read (io.EOF, or a deadline-exceeded error on a non-blocking pipe
// with nothing currently pending) is returned unchanged so callers can tell
// "nothing to read yet" apart from a genuine partial/corrupt frame.
func ReadSubmitFrame(r io.Reader) (SubmitFrame, error) {
	var buf [SubmitFrameSize]byte
	n, err := io.ReadFull(r, buf[:])
	if err != nil {
		if n == 0 {
			return SubmitFrame{}, err
		}
		return SubmitFrame{}, fmt.Errorf("partial submit frame: %w", err)
	}
	return SubmitFrame{PID: int32(binary.NativeEndian.Uint32(buf[:]))}, nil
}

// WriteSubmitFrame writes one pid to the submit pipe, as the shell side
// does.
func WriteSubmitFrame(w io.Writer, pid int32) error {
	var buf [SubmitFrameSize]byte
	binary.NativeEndian.PutUint32(buf[:], uint32(pid))
	_, err := w.Write(buf[:])
	return err
}

// ResultFrame is one completed Job's final accounting, or the sentinel that
// terminates the result stream (IsSentinel() true).
type ResultFrame struct {
	PID               int32
	RunSlices         int32
	WaitSlices        int32
	CompletionSlices int32
}

// NewResultFrame builds a result frame from a retired Job.
func NewResultFrame(j Job) ResultFrame {
	return ResultFrame{
		PID:              int32(j.PID),
		RunSlices:        int32(j.RunSlices),
		WaitSlices:       int32(j.WaitSlices),
		CompletionSlices: int32(j.CompletionSlices()),
	}
}

// NewSentinelFrame builds the end-marker frame.
func NewSentinelFrame() ResultFrame {
	return ResultFrame{PID: sentinelPID}
}

// IsSentinel reports whether this frame marks the end of the result stream.
func (f ResultFrame) IsSentinel() bool {
	return f.PID == sentinelPID
}

// WriteTo serializes f as a fixed ResultFrameSize-byte frame.
func (f ResultFrame) WriteTo(w io.Writer) (int64, error) {
	var buf [ResultFrameSize]byte
	binary.NativeEndian.PutUint32(buf[0:4], uint32(f.PID))
	binary.NativeEndian.PutUint32(buf[4:8], uint32(f.RunSlices))
	binary.NativeEndian.PutUint32(buf[8:12], uint32(f.WaitSlices))
	binary.NativeEndian.PutUint32(buf[12:16], uint32(f.CompletionSlices))
	n, err := w.Write(buf[:])
	return int64(n), err
}

// ReadResultFrame reads one fixed-size result frame from r.
func ReadResultFrame(r io.Reader) (ResultFrame, error) {
	var buf [ResultFrameSize]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return ResultFrame{}, err
	}
	return ResultFrame{
		PID:              int32(binary.NativeEndian.Uint32(buf[0:4])),
		RunSlices:        int32(binary.NativeEndian.Uint32(buf[4:8])),
		WaitSlices:       int32(binary.NativeEndian.Uint32(buf[8:12])),
		CompletionSlices: int32(binary.NativeEndian.Uint32(buf[12:16])),
	}, nil
}
