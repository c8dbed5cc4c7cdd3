//go:build linux && 386

package loader

import "runtime"

// callEntryAsm is implemented in call_linux_386.s.
func callEntryAsm(addr uintptr) int32

// callEntry invokes the zero-argument, int-returning function at addr —
// the guest's _start — and returns its result. The goroutine calling it is
// pinned to its OS thread for the duration so a real kernel page fault
// blocking this thread never starves the fault-servicing goroutine of an M.
func callEntry(addr uintptr) (int32, error) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	return callEntryAsm(addr), nil
}
