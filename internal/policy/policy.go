// Package policy implements the pluggable page replacement strategies used
// by the demand-paged loader: FIFO and Random. Both are index-based,
// fixed-capacity structures over max_pages slots so that Add never touches
// the general-purpose allocator — it can be called safely from the
// fault-servicing goroutine under load.
package policy

import (
	"fmt"
	"math/rand"
	"time"
)

// Policy tracks which page-aligned virtual addresses are currently resident
// and decides which one to evict when a new page must be admitted past
// capacity. Implementations are not safe for concurrent use; the loader
// serializes all calls through its single fault-processing critical section.
type Policy interface {
	// Add admits addr as resident, evicting and reporting a victim first if
	// the policy is already at capacity. addr must not already be resident;
	// violating that is a programmer error and Add panics.
	Add(addr uint32)

	// Evictions returns the number of admissions that triggered an eviction.
	Evictions() int

	// Resident returns the currently resident addresses, in arbitrary order.
	Resident() []uint32

	// Cleanup offers every still-resident address to the OnEvict callback
	// and then releases the policy's slot storage. These final flushes are
	// not counted by Evictions.
	Cleanup()
}

// OnEvict is called synchronously by Add, before the evicted slot is reused,
// with the virtual address being evicted.
type OnEvict func(addr uint32)

// fifoFallbackLabel is what an unrecognized policy name resolves to, word
// for word matching assign_replacement_mode's default-mode message so the
// warning survives into Stats.ReplacementMode / print_stats-style output
// instead of silently reporting a plain "FIFO".
const fifoFallbackLabel = "FIFO (By Default, was unable to recognize mode entered)"

// New constructs the named policy. Unrecognized names fall back to FIFO,
// matching assign_replacement_mode's documented default, and the returned
// label carries the same warning the original prints in that case.
func New(name string, maxPages int, onEvict OnEvict) (Policy, string) {
	switch name {
	case "Random", "RANDOM", "random":
		return newRandom(maxPages, onEvict), "Random"
	case "FIFO", "fifo":
		return newFIFO(maxPages, onEvict), "FIFO"
	default:
		return newFIFO(maxPages, onEvict), fifoFallbackLabel
	}
}

func newRNG() *rand.Rand {
	return rand.New(rand.NewSource(time.Now().UnixNano()))
}

func assertNotResident(present map[uint32]struct{}, addr uint32) {
	if _, ok := present[addr]; ok {
		panic(fmt.Sprintf("policy: address %#x added twice while resident", addr))
	}
}
