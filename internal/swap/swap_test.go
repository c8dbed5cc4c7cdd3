package swap

import (
	"bytes"
	"testing"
)

func TestWriteThenLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir, 4)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Cleanup()

	page := bytes.Repeat([]byte{0xAB}, PageSize)
	if err := s.Write(0x1000, page); err != nil {
		t.Fatalf("Write: %v", err)
	}

	buf := make([]byte, PageSize)
	found, err := s.Load(0x1000, buf)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !found {
		t.Fatalf("Load reported not found for a swapped page")
	}
	if !bytes.Equal(buf, page) {
		t.Errorf("round-tripped page content mismatch")
	}
}

func TestLoadMissingReturnsNotFound(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir, 4)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Cleanup()

	buf := make([]byte, PageSize)
	found, err := s.Load(0xDEAD, buf)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if found {
		t.Errorf("Load reported found for a page never written")
	}
}

func TestTableSizeHasFloor(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir, 1)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Cleanup()

	if len(s.entries) != MinEntries {
		t.Errorf("entries = %d, want floor of %d", len(s.entries), MinEntries)
	}
}

func TestWriteUpdatesExistingSlotInPlace(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir, 4)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Cleanup()

	page1 := bytes.Repeat([]byte{0x01}, PageSize)
	page2 := bytes.Repeat([]byte{0x02}, PageSize)

	if err := s.Write(0x2000, page1); err != nil {
		t.Fatalf("first Write: %v", err)
	}
	if err := s.Write(0x2000, page2); err != nil {
		t.Fatalf("second Write: %v", err)
	}

	buf := make([]byte, PageSize)
	found, err := s.Load(0x2000, buf)
	if err != nil || !found {
		t.Fatalf("Load after update: found=%v err=%v", found, err)
	}
	if !bytes.Equal(buf, page2) {
		t.Errorf("expected updated content, got stale page")
	}
}

func TestWriteFailsWhenTableFull(t *testing.T) {
	dir := t.TempDir()
	// maxPages=1 -> MinEntries floor of 1024 slots, too many to fill in a
	// unit test; instead verify the full-table error path directly by
	// shrinking entries after Open.
	s, err := Open(dir, 1)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Cleanup()
	s.entries = s.entries[:1]

	page := bytes.Repeat([]byte{0x03}, PageSize)
	if err := s.Write(0x3000, page); err != nil {
		t.Fatalf("first Write into single-slot table: %v", err)
	}
	if err := s.Write(0x4000, page); err == nil {
		t.Errorf("expected error writing a second distinct page into a full table")
	}
}
