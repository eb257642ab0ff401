package tlb

import (
	"fmt"
	"strings"

	"github.com/sarchlab/memsym/mem/vm/tlb/internal"
)

// A Policy decides how the TLB ages its blocks and which block should be
// evicted.
type Policy interface {
	// Name returns the name of the policy as written on the command line.
	Name() string

	// Touch is called when a lookup hits the block.
	Touch(set internal.Set, wayID int, now uint64)

	// FindVictim returns the block to fill.
	FindVictim(set internal.Set) int
}

// ParsePolicy returns the policy with the given name. The name is case
// insensitive.
func ParsePolicy(name string) (Policy, error) {
	switch strings.ToUpper(name) {
	case "FIFO":
		return FIFOPolicy{}, nil
	case "LRU":
		return LRUPolicy{}, nil
	default:
		return nil, fmt.Errorf("unknown replacement policy %q", name)
	}
}

// FIFOPolicy evicts the block that has been inserted first. Hits do not
// change the order.
type FIFOPolicy struct{}

// Name returns "FIFO".
func (FIFOPolicy) Name() string {
	return "FIFO"
}

// Touch does nothing. The insertion stamp is kept.
func (FIFOPolicy) Touch(internal.Set, int, uint64) {}

// FindVictim returns the empty block or the earliest inserted block.
func (FIFOPolicy) FindVictim(set internal.Set) int {
	return findOldest(set)
}

// LRUPolicy evicts the least recently used block.
type LRUPolicy struct{}

// Name returns "LRU".
func (LRUPolicy) Name() string {
	return "LRU"
}

// Touch marks the block as the most recently used.
func (LRUPolicy) Touch(set internal.Set, wayID int, now uint64) {
	set.Visit(wayID, now)
}

// FindVictim returns the empty block or the least recently used block.
func (LRUPolicy) FindVictim(set internal.Set) int {
	return findOldest(set)
}

// findOldest first tries an empty block and then the block with the smallest
// timestamp. Ties go to the lowest wayID.
func findOldest(set internal.Set) int {
	for i := 0; i < set.NumWays(); i++ {
		if !set.Block(i).IsValid() {
			return i
		}
	}

	victim := set.Block(0)
	for i := 1; i < set.NumWays(); i++ {
		block := set.Block(i)
		if block.Less(victim) {
			victim = block
		}
	}

	return victim.WayID
}
