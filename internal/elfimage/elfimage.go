// Package elfimage parses 32-bit statically-linked ELF executables and
// exposes their LOAD segments for demand paging. It is built on the standard
// library's debug/elf (the idiomatic Go equivalent of <elf.h> plus manual
// program-header walking), the same way other ELF-aware tooling in the
// ecosystem layers on top of debug/elf rather than reimplementing the
// container format.
package elfimage

import (
	"debug/elf"
	"fmt"
	"os"
)

// PageSize is fixed at 4096 bytes, matching the host OS.
const PageSize = 4096

// Segment is an immutable view of one PT_LOAD program header.
type Segment struct {
	Index    int    // position in file order; tie-break for overlapping ranges
	Vaddr    uint32 // segment start, virtual address
	Memsz    uint32 // size in memory (>= Filesz)
	Offset   uint32 // file offset of segment data
	Filesz   uint32 // size of segment data in the file
	Writable bool   // PF_W set
	prog     *elf.Prog
}

// Contains reports whether the virtual address fa lies in [Vaddr, Vaddr+Memsz).
func (s *Segment) Contains(fa uint32) bool {
	return fa >= s.Vaddr && fa < s.Vaddr+s.Memsz
}

// ReadFileData reads up to len(buf) bytes of this segment's file-backed data
// starting offsetInSegment bytes into the segment, clamped to Filesz. It
// returns the number of bytes read; a return less than len(buf) (with a nil
// error, or io.EOF) means the caller must zero-fill the remainder — this
// mirrors the BSS tail-zeroing step of the fault-handling algorithm.
func (s *Segment) ReadFileData(buf []byte, offsetInSegment uint32) (int, error) {
	if offsetInSegment >= s.Filesz {
		return 0, nil
	}
	n, err := s.prog.ReadAt(buf, int64(offsetInSegment))
	if n > 0 {
		return n, nil
	}
	return n, err
}

// Image is a parsed, validated 32-bit ELF executable ready for loading.
type Image struct {
	file     *os.File
	elf      *elf.File
	Entry    uint32
	Segments []Segment // LOAD segments, in file (program header table) order
}

// Open validates the ELF header per spec.md §6 (32-bit LE, ET_EXEC, magic
// \x7fELF) and records every PT_LOAD program header.
func Open(path string) (*Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}

	ef, err := elf.NewFile(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("parsing ELF header: %w", err)
	}

	if ef.Class != elf.ELFCLASS32 {
		f.Close()
		return nil, fmt.Errorf("not a 32-bit ELF")
	}
	if ef.Data != elf.ELFDATA2LSB {
		f.Close()
		return nil, fmt.Errorf("not a little-endian ELF")
	}
	if ef.Type != elf.ET_EXEC {
		f.Close()
		return nil, fmt.Errorf("not an executable ELF (ET_EXEC)")
	}

	var segs []Segment
	idx := 0
	for _, p := range ef.Progs {
		if p.Type != elf.PT_LOAD {
			continue
		}
		segs = append(segs, Segment{
			Index:    idx,
			Vaddr:    uint32(p.Vaddr),
			Memsz:    uint32(p.Memsz),
			Offset:   uint32(p.Off),
			Filesz:   uint32(p.Filesz),
			Writable: p.Flags&elf.PF_W != 0,
			prog:     p,
		})
		idx++
	}
	if len(segs) == 0 {
		f.Close()
		return nil, fmt.Errorf("no PT_LOAD segments found")
	}

	return &Image{
		file:     f,
		elf:      ef,
		Entry:    uint32(ef.Entry),
		Segments: segs,
	}, nil
}

// FindSegment returns the first (lowest file-order index) LOAD segment whose
// range contains fa, or nil if none does. File order is the documented
// tie-break for addresses in overlapping ranges.
func (img *Image) FindSegment(fa uint32) *Segment {
	for i := range img.Segments {
		if img.Segments[i].Contains(fa) {
			return &img.Segments[i]
		}
	}
	return nil
}

// Close releases the underlying file descriptor.
func (img *Image) Close() error {
	if img.elf != nil {
		img.elf.Close()
	}
	return img.file.Close()
}
