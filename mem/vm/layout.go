// Package vm provides the virtual memory data model: address layout, pages
// and page tables.
package vm

import "fmt"

// PID stands for Process ID.
type PID uint32

// Bounds on the widths accepted by AddressLayout.Validate. They keep the
// storage and the page tables within a size a single process can allocate.
const (
	MaxPhysicalBits = 30
	MaxVPNBits      = 20
)

// An AddressLayout defines how many bits of an address are used for the page
// offset, the physical frame number and the virtual page number.
type AddressLayout struct {
	OffsetBits uint64
	PFNBits    uint64
	VPNBits    uint64
}

// Validate checks that the layout can be backed by real memory.
func (l AddressLayout) Validate() error {
	if l.OffsetBits > MaxPhysicalBits ||
		l.PFNBits > MaxPhysicalBits-l.OffsetBits {
		return fmt.Errorf(
			"offset bits (%d) plus PFN bits (%d) exceed %d",
			l.OffsetBits, l.PFNBits, MaxPhysicalBits)
	}

	if l.VPNBits > MaxVPNBits {
		return fmt.Errorf("VPN bits (%d) exceed %d", l.VPNBits, MaxVPNBits)
	}

	return nil
}

// PhysicalWordCount returns the number of words in physical memory.
func (l AddressLayout) PhysicalWordCount() uint64 {
	return 1 << (l.OffsetBits + l.PFNBits)
}

// VPNSpace returns the number of virtual pages of a process.
func (l AddressLayout) VPNSpace() uint64 {
	return 1 << l.VPNBits
}

// PFNSpace returns the number of physical frames.
func (l AddressLayout) PFNSpace() uint64 {
	return 1 << l.PFNBits
}

// Decompose splits a virtual address into its page number and its offset in
// the page.
func (l AddressLayout) Decompose(vAddr uint64) (vpn, offset uint64) {
	vpn = vAddr >> l.OffsetBits
	offset = vAddr & l.offsetMask()

	return vpn, offset
}

// PhysicalAddress composes the address of a word in a physical frame.
func (l AddressLayout) PhysicalAddress(pfn, offset uint64) uint64 {
	return pfn<<l.OffsetBits | offset&l.offsetMask()
}

func (l AddressLayout) offsetMask() uint64 {
	return (1 << l.OffsetBits) - 1
}

func (l AddressLayout) String() string {
	return fmt.Sprintf("offset:%d pfn:%d vpn:%d", l.OffsetBits, l.PFNBits, l.VPNBits)
}
