// Package swap implements the on-disk backing store for evicted writable
// pages, grounded directly on swap_manager.c: a fixed-size slot table over a
// single image file (created empty and grown by slot writes), linear-scanned
// for both lookup and first-free-slot allocation.
package swap

import (
	"fmt"
	"os"
)

const (
	// MinEntries is the floor on table size regardless of max_pages.
	MinEntries = 1024
	// EntryMultiplier scales the table relative to max_pages "for safety".
	EntryMultiplier = 5
	// PageSize is the fixed slot size in the swap image, matching the host
	// page size used throughout the loader.
	PageSize = 4096

	imageFileName = "swap.img"
)

type entry struct {
	vaddr    uint32
	offset   int64
	isActive bool
}

// Store is the swap.img-backed table of evicted writable pages. It is not
// safe for concurrent use without external synchronization, matching the
// loader's single fault-processing critical section.
type Store struct {
	dir     string
	file    *os.File
	entries []entry
}

// Open creates (truncating) swap.img inside dir and sizes the in-memory slot
// table from maxPages, per init_swap_system.
func Open(dir string, maxPages int) (*Store, error) {
	n := maxPages * EntryMultiplier
	if n < MinEntries {
		n = MinEntries
	}

	path := imageFileName
	if dir != "" {
		path = dir + "/" + imageFileName
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return nil, fmt.Errorf("creating swap file: %w", err)
	}

	return &Store{
		dir:     dir,
		file:    f,
		entries: make([]entry, n),
	}, nil
}

// findSlot returns the index of addr's existing entry, or the first free
// slot if addr is not resident in swap. It returns -1 if addr is absent and
// the table has no free slot.
func (s *Store) findSlot(addr uint32) int {
	free := -1
	for i := range s.entries {
		if s.entries[i].isActive && s.entries[i].vaddr == addr {
			return i
		}
		if !s.entries[i].isActive && free == -1 {
			free = i
		}
	}
	return free
}

// Write persists page (exactly PageSize bytes) for addr, evicting it to disk.
// It is the caller's responsibility to check the owning segment's writable
// flag first — handle_page_eviction_to_swap's read-only short-circuit lives
// in the loader, which knows about segments; Store only knows about pages.
func (s *Store) Write(addr uint32, page []byte) error {
	if len(page) != PageSize {
		return fmt.Errorf("swap: page must be %d bytes, got %d", PageSize, len(page))
	}

	slot := s.findSlot(addr)
	if slot == -1 {
		return fmt.Errorf("swap table full: increase capacity (currently %d entries)", len(s.entries))
	}

	// Reuse the existing offset when updating an already-swapped page;
	// otherwise place it at its slot-determined offset in the file.
	var offset int64
	if s.entries[slot].isActive && s.entries[slot].vaddr == addr {
		offset = s.entries[slot].offset
	} else {
		offset = int64(slot) * PageSize
	}

	if _, err := s.file.WriteAt(page, offset); err != nil {
		return fmt.Errorf("swap write failed: %w", err)
	}

	s.entries[slot] = entry{vaddr: addr, offset: offset, isActive: true}
	return nil
}

// Load reads addr's page into buf (which must be PageSize bytes) if it is
// present in swap, reporting found=true. A false return with a nil error
// means addr has never been swapped out.
func (s *Store) Load(addr uint32, buf []byte) (found bool, err error) {
	if len(buf) != PageSize {
		return false, fmt.Errorf("swap: buf must be %d bytes, got %d", PageSize, len(buf))
	}
	for i := range s.entries {
		if s.entries[i].isActive && s.entries[i].vaddr == addr {
			if _, err := s.file.ReadAt(buf, s.entries[i].offset); err != nil {
				return false, fmt.Errorf("swap read failed: %w", err)
			}
			return true, nil
		}
	}
	return false, nil
}

// Cleanup closes and removes swap.img, matching cleanup_swap_system.
func (s *Store) Cleanup() error {
	path := imageFileName
	if s.dir != "" {
		path = s.dir + "/" + imageFileName
	}
	closeErr := s.file.Close()
	removeErr := os.Remove(path)
	if closeErr != nil {
		return closeErr
	}
	return removeErr
}
