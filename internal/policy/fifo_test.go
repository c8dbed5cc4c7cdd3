package policy

import "testing"

func TestFIFOEvictsOldestFirst(t *testing.T) {
	var evicted []uint32
	p, _ := New("FIFO", 2, func(addr uint32) { evicted = append(evicted, addr) })

	p.Add(0x1000)
	p.Add(0x2000)
	if p.Evictions() != 0 {
		t.Fatalf("Evictions() = %d before capacity reached, want 0", p.Evictions())
	}

	p.Add(0x3000) // evicts 0x1000, the oldest
	if p.Evictions() != 1 {
		t.Fatalf("Evictions() = %d, want 1", p.Evictions())
	}
	if len(evicted) != 1 || evicted[0] != 0x1000 {
		t.Fatalf("evicted = %#x, want [0x1000]", evicted)
	}

	resident := p.Resident()
	if len(resident) != 2 {
		t.Fatalf("Resident() has %d entries, want 2", len(resident))
	}

	p.Add(0x4000) // evicts 0x2000
	if evicted[1] != 0x2000 {
		t.Errorf("second eviction = %#x, want 0x2000", evicted[1])
	}
}

func TestFIFOCapacityOne(t *testing.T) {
	var evicted []uint32
	p, _ := New("FIFO", 1, func(addr uint32) { evicted = append(evicted, addr) })

	p.Add(0xA000)
	p.Add(0xB000)
	p.Add(0xC000)

	if p.Evictions() != 2 {
		t.Fatalf("Evictions() = %d, want 2", p.Evictions())
	}
	resident := p.Resident()
	if len(resident) != 1 || resident[0] != 0xC000 {
		t.Fatalf("Resident() = %#x, want [0xC000]", resident)
	}
}
