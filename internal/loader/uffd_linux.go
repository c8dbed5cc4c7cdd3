//go:build linux && 386

package loader

import (
	"errors"
	"fmt"
	"os"
	"unsafe"

	"golang.org/x/sys/unix"
)

// UFFD ioctl numbers, derived from the linux/userfaultfd.h _IOWR encoding
// (type 0xAA, the ioctl number, and the size of the argument struct).
const (
	_UFFDIO_API      = 0xc018aa3f
	_UFFDIO_REGISTER = 0xc020aa00
	_UFFDIO_COPY     = 0xc028aa03
	_UFFDIO_ZEROPAGE = 0xc020aa04
)

const (
	_UFFD_API                     = 0xAA
	_UFFDIO_REGISTER_MODE_MISSING = 1
)

const (
	uffdMsgSize           = 32
	_UFFD_EVENT_PAGEFAULT = 0x12
)

type uffdioAPI struct {
	api      uint64
	features uint64
	ioctls   uint64
}

type uffdioRegister struct {
	start  uint64
	length uint64
	mode   uint64
	ioctls uint64
}

type uffdioCopy struct {
	dst  uint64
	src  uint64
	len  uint64
	mode uint64
	copy int64
}

// Compile-time size assertions matching struct uffdio_api / uffdio_register
// from linux/userfaultfd.h.
var (
	_ [24]byte = [unsafe.Sizeof(uffdioAPI{})]byte{}
	_ [32]byte = [unsafe.Sizeof(uffdioRegister{})]byte{}
)

// engine is the Linux realization of guest execution: a self-monitoring
// userfaultfd registration over the guest's address span, serviced by a
// dedicated goroutine, with the guest entry point invoked through the
// GOARCH=386 assembly trampoline once registration succeeds.
type engine struct {
	l       *Loader
	uffdFd  int
	base    uint32
	size    uint32
	stop    chan struct{}
	stopped chan struct{}
}

// Run registers the guest's demand-paged region with userfaultfd(2), starts
// the fault-servicing goroutine, and calls into the guest entry point,
// returning its result. It is the Go-native replacement for
// load_and_run_elf's signal-handler-based design; see the package doc.
func (l *Loader) Run() (int32, error) {
	lo, hi := l.addressSpan()
	lo = alignDown(lo, PageSize)
	hi = alignUp(hi, PageSize)
	size := hi - lo

	// mmap2(2) is used directly (rather than the generic unix.Mmap helper,
	// which has no way to request a fixed address) because MAP_FIXED must
	// place the guest's LOAD segments at their absolute link-time addresses.
	_, _, errno := unix.Syscall6(unix.SYS_MMAP2,
		uintptr(lo), uintptr(size),
		uintptr(unix.PROT_READ|unix.PROT_WRITE|unix.PROT_EXEC),
		uintptr(unix.MAP_ANON|unix.MAP_PRIVATE|unix.MAP_FIXED),
		^uintptr(0), 0)
	if errno != 0 {
		return 0, fmt.Errorf("mmap guest region: %v", errno)
	}
	unmapRegion := func() {
		unix.Munmap(unsafe.Slice((*byte)(unsafe.Pointer(uintptr(lo))), size))
	}

	fd, _, errno := unix.Syscall(unix.SYS_USERFAULTFD, unix.O_CLOEXEC|unix.O_NONBLOCK, 0, 0)
	if errno != 0 {
		unmapRegion()
		return 0, fmt.Errorf("userfaultfd: %v", errno)
	}
	uffdFd := int(fd)

	api := uffdioAPI{api: _UFFD_API}
	if err := uffdIoctl(uffdFd, _UFFDIO_API, unsafe.Pointer(&api)); err != nil {
		unix.Close(uffdFd)
		unmapRegion()
		return 0, fmt.Errorf("UFFDIO_API: %w", err)
	}

	reg := uffdioRegister{start: uint64(lo), length: uint64(size), mode: _UFFDIO_REGISTER_MODE_MISSING}
	if err := uffdIoctl(uffdFd, _UFFDIO_REGISTER, unsafe.Pointer(&reg)); err != nil {
		unix.Close(uffdFd)
		unmapRegion()
		return 0, fmt.Errorf("UFFDIO_REGISTER: %w", err)
	}

	e := &engine{l: l, uffdFd: uffdFd, base: lo, size: size, stop: make(chan struct{}), stopped: make(chan struct{})}

	readResidentPageHook = func(addr uint32) ([]byte, error) {
		page := make([]byte, PageSize)
		copy(page, unsafe.Slice((*byte)(unsafe.Pointer(uintptr(addr))), PageSize))
		return page, nil
	}
	madviseEvictHook = func(addr uint32) {
		page := unsafe.Slice((*byte)(unsafe.Pointer(uintptr(addr))), PageSize)
		unix.Madvise(page, unix.MADV_DONTNEED)
	}

	// Teardown (stop the fault servicer, drop the uffd registration, unmap
	// the guest region) is deliberately NOT deferred here: Loader.Cleanup
	// runs it after the caller has read Stats and after the replacement
	// policy's own Cleanup has had a chance to flush still-resident pages
	// to swap, which needs this mapping and these hooks still alive.
	engineTeardownHook = func() {
		e.shutdown()
		unix.Close(uffdFd)
		unmapRegion()
		engineTeardownHook = nil
	}

	go e.serviceFaults()

	return callEntry(uintptr(l.Entry()))
}

func (l *Loader) addressSpan() (lo, hi uint32) {
	lo = ^uint32(0)
	for _, seg := range l.image.Segments {
		if seg.Vaddr < lo {
			lo = seg.Vaddr
		}
		if end := seg.Vaddr + seg.Memsz; end > hi {
			hi = end
		}
	}
	return lo, hi
}

func uffdIoctl(fd int, req uintptr, arg unsafe.Pointer) error {
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), req, uintptr(arg))
	if errno != 0 {
		return errno
	}
	return nil
}

func (e *engine) serviceFaults() {
	defer close(e.stopped)

	var buf [uffdMsgSize]byte
	for {
		select {
		case <-e.stop:
			return
		default:
		}

		fds := []unix.PollFd{{Fd: int32(e.uffdFd), Events: unix.POLLIN}}
		n, err := unix.Poll(fds, 100)
		if err != nil || n == 0 {
			continue
		}

		nr, err := unix.Read(e.uffdFd, buf[:])
		if err != nil || nr < uffdMsgSize {
			continue
		}

		event := buf[0]
		if event != _UFFD_EVENT_PAGEFAULT {
			continue
		}
		faultAddr := *(*uint64)(unsafe.Pointer(&buf[16]))
		e.l.pageFaults++

		pageStart := alignDown(uint32(faultAddr), PageSize)
		page, err := e.l.materialize(pageStart)
		if err != nil {
			if errors.Is(err, ErrGuestSegfault) {
				os.Stdout.Write([]byte("smartos-loader: guest segmentation fault\n"))
			} else {
				os.Stderr.Write([]byte("smartos-loader: fatal fault servicing error (partial I/O)\n"))
			}
			os.Exit(1)
		}

		copyReq := uffdioCopy{
			dst: uint64(pageStart),
			src: uint64(uintptr(unsafe.Pointer(&page[0]))),
			len: uint64(PageSize),
		}
		if err := uffdIoctl(e.uffdFd, _UFFDIO_COPY, unsafe.Pointer(&copyReq)); err != nil {
			os.Stderr.Write([]byte("smartos-loader: UFFDIO_COPY failed\n"))
			os.Exit(1)
		}
	}
}

func (e *engine) shutdown() {
	close(e.stop)
	<-e.stopped
	readResidentPageHook = nil
	madviseEvictHook = nil
}
