package policy

import "testing"

func TestNewDefaultsUnrecognizedToFIFO(t *testing.T) {
	_, name := New("bogus", 4, nil)
	if name != fifoFallbackLabel {
		t.Errorf("New(bogus) = %q, want %q", name, fifoFallbackLabel)
	}
}

func TestNewRandom(t *testing.T) {
	_, name := New("Random", 4, nil)
	if name != "Random" {
		t.Errorf("New(Random) = %q, want Random", name)
	}
}

func TestAddTwiceSameAddrPanics(t *testing.T) {
	p, _ := New("FIFO", 4, nil)
	p.Add(0x1000)
	defer func() {
		if recover() == nil {
			t.Errorf("expected panic on duplicate Add")
		}
	}()
	p.Add(0x1000)
}

func TestCleanupFlushesAllResidentAndReleasesStorage(t *testing.T) {
	for _, name := range []string{"FIFO", "Random"} {
		t.Run(name, func(t *testing.T) {
			var flushed []uint32
			p, _ := New(name, 3, func(addr uint32) { flushed = append(flushed, addr) })
			p.Add(0x1000)
			p.Add(0x2000)

			p.Cleanup()

			if len(flushed) != 2 {
				t.Fatalf("Cleanup flushed %d addresses, want 2", len(flushed))
			}
			if len(p.Resident()) != 0 {
				t.Fatalf("Resident() after Cleanup = %d, want 0", len(p.Resident()))
			}
			if p.Evictions() != 0 {
				t.Errorf("Cleanup's flush should not count as a replacement Eviction, got %d", p.Evictions())
			}
		})
	}
}
