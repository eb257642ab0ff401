// Package internal provides the definition required for defining TLB.
package internal

import (
	"fmt"

	"github.com/sarchlab/memsym/mem/vm"
)

// A Set holds a certain number of Pages. The ways are always scanned in
// ascending wayID order, so the lowest index wins every search.
type Set interface {
	Lookup(pid vm.PID, vpn uint64) (wayID int, found bool)
	Block(wayID int) Block
	NumWays() int
	Update(wayID int, page vm.Page, now uint64)
	Visit(wayID int, now uint64)
	Invalidate(wayID int)
	Reset()
}

// A Block is one way of the set.
type Block struct {
	WayID     int
	Page      vm.Page
	Timestamp uint64
}

// IsValid tells if the block holds a translation.
func (b Block) IsValid() bool {
	return b.Page.Valid
}

// Less tells if the block was stamped before another block.
func (b Block) Less(anotherBlock Block) bool {
	return b.Timestamp < anotherBlock.Timestamp
}

// NewSet creates a new TLB set.
func NewSet(numWays int) Set {
	s := &SetImpl{}
	s.blocks = make([]Block, numWays)
	s.Reset()

	return s
}

// SetImpl is the default implementation of a Set.
type SetImpl struct {
	blocks []Block
}

// NumWays returns the number of blocks in the set.
func (s *SetImpl) NumWays() int {
	return len(s.blocks)
}

// Block returns a copy of the block at the given way.
func (s *SetImpl) Block(wayID int) Block {
	s.wayMustBeInRange(wayID)
	return s.blocks[wayID]
}

// Lookup searches the valid block that translates the page of a process.
func (s *SetImpl) Lookup(pid vm.PID, vpn uint64) (wayID int, found bool) {
	for i, b := range s.blocks {
		if b.IsValid() && b.Page.PID == pid && b.Page.VPN == vpn {
			return i, true
		}
	}

	return 0, false
}

// Update replaces the content of a block and stamps it with the given time.
func (s *SetImpl) Update(wayID int, page vm.Page, now uint64) {
	s.wayMustBeInRange(wayID)

	page.Valid = true
	s.blocks[wayID].Page = page
	s.blocks[wayID].Timestamp = now
}

// Visit stamps a block with the time of its latest access.
func (s *SetImpl) Visit(wayID int, now uint64) {
	s.wayMustBeInRange(wayID)
	s.blocks[wayID].Timestamp = now
}

// Invalidate clears a block.
func (s *SetImpl) Invalidate(wayID int) {
	s.wayMustBeInRange(wayID)
	s.blocks[wayID] = Block{WayID: wayID}
}

// Reset invalidates all the blocks.
func (s *SetImpl) Reset() {
	for i := range s.blocks {
		s.blocks[i] = Block{WayID: i}
	}
}

func (s *SetImpl) wayMustBeInRange(wayID int) {
	if wayID < 0 || wayID >= len(s.blocks) {
		panic(fmt.Sprintf("way %d is out of range", wayID))
	}
}
