// Package addresstranslator resolves virtual addresses to physical addresses
// with a TLB backed by a page table.
package addresstranslator

import (
	"github.com/sarchlab/memsym/mem/vm"
	"github.com/sarchlab/memsym/mem/vm/tlb"
)

// A Translation describes how a virtual address has been resolved.
type Translation struct {
	PID    vm.PID
	VAddr  uint64
	VPN    uint64
	Offset uint64
	PFN    uint64
	PAddr  uint64

	// Hit tells if the TLB provided the translation. Slot is the TLB slot
	// that hit or that has been filled after a miss.
	Hit  bool
	Slot int

	// Evicted is set when filling the TLB replaced Victim.
	Evicted bool
	Victim  tlb.Entry
}

// Comp is an AddressTranslator. It owns no state of its own; the TLB and the
// page table are shared with the rest of the machine.
type Comp struct {
	layout    vm.AddressLayout
	tlb       *tlb.TLB
	pageTable vm.PageTable
}

// Layout returns the address layout used for decomposition.
func (c *Comp) Layout() vm.AddressLayout {
	return c.layout
}

// Translate resolves a virtual address of a process at the given time. On a
// TLB miss, the page table is consulted and the translation is cached. A
// page without a valid page-table entry results in a *vm.NotMappedError; the
// returned Translation still describes the miss.
func (c *Comp) Translate(
	pid vm.PID,
	vAddr uint64,
	now uint64,
) (Translation, error) {
	vpn, offset := c.layout.Decompose(vAddr)
	trans := Translation{
		PID:    pid,
		VAddr:  vAddr,
		VPN:    vpn,
		Offset: offset,
	}

	entry, hit := c.tlb.Lookup(pid, vpn, now)
	if hit {
		trans.Hit = true
		trans.Slot = entry.Slot
		c.complete(&trans, entry.PFN)

		return trans, nil
	}

	page, found := c.pageTable.Find(pid, vpn)
	if !found {
		return trans, &vm.NotMappedError{PID: pid, VPN: vpn}
	}

	trans.Slot, trans.Victim, trans.Evicted = c.tlb.Insert(page, now)
	c.complete(&trans, page.PFN)

	return trans, nil
}

func (c *Comp) complete(trans *Translation, pfn uint64) {
	trans.PFN = pfn
	trans.PAddr = c.layout.PhysicalAddress(pfn, trans.Offset)
}

// Map installs a mapping in the page table and in the TLB in one step. An
// existing mapping of the same page is overwritten in both.
func (c *Comp) Map(
	pid vm.PID,
	vpn, pfn uint64,
	now uint64,
) (slot int, victim tlb.Entry, evicted bool) {
	page := vm.Page{PID: pid, VPN: vpn, PFN: pfn, Valid: true}

	if _, found := c.pageTable.Find(pid, vpn); found {
		c.pageTable.Update(page)
	} else {
		c.pageTable.Insert(page)
	}

	return c.tlb.Insert(page, now)
}

// Unmap removes a mapping from every TLB slot that caches it and then from
// the page table. It returns the number of TLB slots cleared.
func (c *Comp) Unmap(pid vm.PID, vpn uint64) int {
	n := c.tlb.Invalidate(pid, vpn)
	c.pageTable.Remove(pid, vpn)

	return n
}
