// Package loader implements the demand-paged ELF execution engine: it maps a
// 32-bit statically-linked executable's LOAD segments lazily, servicing
// faults through userfaultfd(2) instead of mmap(MAP_FIXED) + a SIGSEGV
// trap, and materializes each page from swap, then the ELF file, then a
// zero page, per the order documented for allocate_page.
package loader

import (
	"errors"
	"fmt"
	"os"

	"github.com/sifat29/smartos/internal/elfimage"
	"github.com/sifat29/smartos/internal/policy"
	"github.com/sifat29/smartos/internal/swap"
)

// ErrGuestSegfault marks a fault address outside every loaded segment —
// the "Guest segmentation fault" error kind from the documented error
// table, kept distinct from an ordinary I/O failure inside materialize so
// the fault servicer can report each one the way it is specified to.
var ErrGuestSegfault = errors.New("fault address outside any loaded segment")

// PageSize is the fixed demand-paging granularity.
const PageSize = elfimage.PageSize

// Stats mirrors the fields SmartLoader prints on clean exit.
type Stats struct {
	ReplacementMode        string
	PageFaults             int
	PageAllocations        int
	InternalFragmentation  int64 // bytes
	PageEvictions          int
}

// String formats Stats exactly as print_stats does, so launcher's stdout
// output is unchanged by the Go rewrite.
func (s Stats) String() string {
	return fmt.Sprintf(
		"\n-----------------------------------------------------------------------------\n"+
			"---------------------------- SmartLoader Stats ------------------------------\n"+
			"-----------------------------------------------------------------------------\n"+
			"PAGE REPLACEMENT MODE: %s\n"+
			"Page faults: %d\n"+
			"Page allocations: %d\n"+
			"Total internal fragmentation: %d Bytes (%.3f Kb) (%.3f Kib)\n"+
			"Page evictions: %d\n"+
			"\n-----------------------------------------------------------------------------\n"+
			"-----------------------------------------------------------------------------\n",
		s.ReplacementMode, s.PageFaults, s.PageAllocations,
		s.InternalFragmentation, float64(s.InternalFragmentation)/1000.0, float64(s.InternalFragmentation)/1024.0,
		s.PageEvictions,
	)
}

// Loader holds all state for one demand-paged execution, explicitly scoped
// per instance (the original's module-level globals become fields here).
type Loader struct {
	image  *elfimage.Image
	pol    policy.Policy
	swap   *swap.Store
	policyName string

	pageFaults      int
	pageAllocations int
	allocsBySegment map[int]int
}

// New opens elfPath, validates it and wires up the named replacement policy
// and a swap store sized from maxPages, matching
// initialise_global_data_structures / assign_replacement_mode.
func New(elfPath, policyName string, maxPages int, workDir string) (*Loader, error) {
	if maxPages <= 0 {
		return nil, fmt.Errorf("invalid number of max pages entered")
	}

	img, err := elfimage.Open(elfPath)
	if err != nil {
		return nil, err
	}

	l := &Loader{
		image:           img,
		allocsBySegment: make(map[int]int),
	}

	l.pol, l.policyName = policy.New(policyName, maxPages, l.onEvict)

	st, err := swap.Open(workDir, maxPages)
	if err != nil {
		img.Close()
		return nil, err
	}
	l.swap = st

	return l, nil
}

// onEvict is the replacement policy's eviction callback: it writes the
// evicted page to swap (skipping read-only pages, which can always be
// re-read from the ELF file) before the platform materialization code drops
// its physical backing.
func (l *Loader) onEvict(addr uint32) {
	seg := l.image.FindSegment(addr)
	if seg == nil || seg.Writable {
		if page, err := l.readResidentPage(addr); err == nil {
			_ = l.swap.Write(addr, page)
		}
	}
	if madviseEvictHook != nil {
		madviseEvictHook(addr)
	}
}

// readResidentPageHook is supplied by the platform-specific fault servicer;
// it reads the live contents of a currently-mapped page. On builds other
// than linux/386 it is never called because Run fails before any page
// becomes resident.
var readResidentPageHook func(addr uint32) ([]byte, error)

// madviseEvictHook, when set by the platform-specific engine, drops the
// physical backing of an evicted page while leaving it registered with
// userfaultfd so the next touch re-faults.
var madviseEvictHook func(addr uint32)

// engineTeardownHook, when set by the platform-specific engine, tears down
// the fault-servicing goroutine, the userfaultfd registration and the
// guest's mapped region. Loader.Cleanup calls it after the replacement
// policy's own Cleanup sweep so that sweep can still read live guest memory.
var engineTeardownHook func()

func (l *Loader) readResidentPage(addr uint32) ([]byte, error) {
	if readResidentPageHook == nil {
		return nil, fmt.Errorf("no active mapping to read back")
	}
	return readResidentPageHook(addr)
}

// materialize decides the content of the page starting at pageStart,
// following load_from_swap_if_exists -> file read -> zero-fill, and records
// bookkeeping (page allocation count, per-segment allocation count, policy
// admission). It returns exactly PageSize bytes.
func (l *Loader) materialize(pageStart uint32) ([]byte, error) {
	buf := make([]byte, PageSize)

	found, err := l.swap.Load(pageStart, buf)
	if err != nil {
		return nil, err
	}
	if !found {
		seg := l.image.FindSegment(pageStart)
		if seg == nil {
			return nil, fmt.Errorf("page %#x: %w", pageStart, ErrGuestSegfault)
		}
		offsetInSegment := pageStart - seg.Vaddr
		if offsetInSegment < seg.Filesz {
			n, ferr := seg.ReadFileData(buf, offsetInSegment)
			if ferr != nil {
				return nil, ferr
			}
			for i := n; i < len(buf); i++ {
				buf[i] = 0
			}
		}
		// else: entirely past Filesz (pure BSS) -> buf is already zeroed.
	}

	seg := l.image.FindSegment(pageStart)
	if seg != nil {
		l.allocsBySegment[seg.Index]++
	}
	l.pol.Add(pageStart)
	l.pageAllocations++

	return buf, nil
}

// fragmentation sums, over every resident page, the bytes of that page
// which fall outside its owning segment's [Vaddr, Vaddr+Memsz) range —
// the internal-fragmentation accounting from calculate_page_waste /
// calculate_internal_fragmentation.
func (l *Loader) fragmentation() int64 {
	var total int64
	for _, addr := range l.pol.Resident() {
		total += l.pageWaste(addr)
	}
	return total
}

func (l *Loader) pageWaste(pageStart uint32) int64 {
	seg := l.image.FindSegment(pageStart)
	if seg == nil {
		return 0
	}
	pEnd := uint64(pageStart) + PageSize
	sStart := uint64(seg.Vaddr)
	sEnd := sStart + uint64(seg.Memsz)

	intersectStart := sStart
	if uint64(pageStart) > sStart {
		intersectStart = uint64(pageStart)
	}
	intersectEnd := pEnd
	if sEnd < pEnd {
		intersectEnd = sEnd
	}
	if intersectStart >= intersectEnd {
		return 0
	}
	useful := int64(intersectEnd - intersectStart)
	return PageSize - useful
}

// Stats snapshots the current counters, matching print_stats' fields.
func (l *Loader) Stats() Stats {
	return Stats{
		ReplacementMode:       l.policyName,
		PageFaults:            l.pageFaults,
		PageAllocations:       l.pageAllocations,
		InternalFragmentation: l.fragmentation(),
		PageEvictions:         l.pol.Evictions(),
	}
}

// Cleanup flushes every still-resident page through the replacement
// policy's standard offer-to-swap-then-unmap discipline, tears down the
// fault-servicing engine, then releases the swap store and the ELF file,
// matching loader_cleanup. The policy sweep must run before the engine
// teardown: once that tears down the mapping, there is no longer any live
// guest memory left to read back.
func (l *Loader) Cleanup() {
	l.pol.Cleanup()
	if engineTeardownHook != nil {
		engineTeardownHook()
	}
	if err := l.swap.Cleanup(); err != nil {
		fmt.Fprintf(os.Stderr, "smartos-loader: swap cleanup: %v\n", err)
	}
	l.image.Close()
}

func alignDown(v uint32, align uint32) uint32 { return v - v%align }

func alignUp(v uint32, align uint32) uint32 {
	if v%align == 0 {
		return v
	}
	return v + (align - v%align)
}

// Entry returns the guest's e_entry virtual address.
func (l *Loader) Entry() uint32 {
	return l.image.Entry
}
