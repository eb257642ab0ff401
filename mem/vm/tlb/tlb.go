// Package tlb provides the translation lookaside buffer shared by all the
// simulated processes.
package tlb

import (
	"github.com/sarchlab/memsym/mem/vm"
	"github.com/sarchlab/memsym/mem/vm/tlb/internal"
)

// An Entry is a snapshot of one TLB slot.
type Entry struct {
	Slot      int
	VPN       uint64
	PFN       uint64
	PID       vm.PID
	Valid     bool
	Timestamp uint64
}

func entryFromBlock(b internal.Block) Entry {
	return Entry{
		Slot:      b.WayID,
		VPN:       b.Page.VPN,
		PFN:       b.Page.PFN,
		PID:       b.Page.PID,
		Valid:     b.Page.Valid,
		Timestamp: b.Timestamp,
	}
}

// A TLB is a fully associative cache of translations keyed by VPN and PID. It
// is never the source of truth: every entry is a copy of a page-table entry.
type TLB struct {
	set    internal.Set
	policy Policy
}

// Policy returns the replacement policy of the TLB.
func (t *TLB) Policy() Policy {
	return t.policy
}

// NumEntries returns the number of slots.
func (t *TLB) NumEntries() int {
	return t.set.NumWays()
}

// Lookup returns the valid entry that translates the page of a process. A hit
// is reported to the policy at the given time.
func (t *TLB) Lookup(pid vm.PID, vpn uint64, now uint64) (Entry, bool) {
	wayID, found := t.set.Lookup(pid, vpn)
	if !found {
		return Entry{}, false
	}

	t.policy.Touch(t.set, wayID, now)

	return entryFromBlock(t.set.Block(wayID)), true
}

// Insert caches a page. An entry of the same PID and VPN is overwritten in
// place. Otherwise the lowest empty slot is filled, or the policy's victim is
// evicted. The evicted entry is returned with evicted set to true.
func (t *TLB) Insert(
	page vm.Page,
	now uint64,
) (slot int, victim Entry, evicted bool) {
	wayID, found := t.set.Lookup(page.PID, page.VPN)
	if !found {
		wayID = t.policy.FindVictim(t.set)

		old := t.set.Block(wayID)
		if old.IsValid() {
			victim = entryFromBlock(old)
			evicted = true
		}
	}

	t.set.Update(wayID, page, now)

	return wayID, victim, evicted
}

// Invalidate clears every slot that translates the page of a process. It
// returns the number of slots cleared.
func (t *TLB) Invalidate(pid vm.PID, vpn uint64) int {
	n := 0

	for i := 0; i < t.set.NumWays(); i++ {
		b := t.set.Block(i)
		if b.IsValid() && b.Page.PID == pid && b.Page.VPN == vpn {
			t.set.Invalidate(i)
			n++
		}
	}

	return n
}

// Entry returns the content of a slot.
func (t *TLB) Entry(slot int) Entry {
	return entryFromBlock(t.set.Block(slot))
}

// Entries returns the content of all the slots.
func (t *TLB) Entries() []Entry {
	entries := make([]Entry, t.set.NumWays())
	for i := range entries {
		entries[i] = t.Entry(i)
	}

	return entries
}

// Reset invalidates all the slots.
func (t *TLB) Reset() {
	t.set.Reset()
}
