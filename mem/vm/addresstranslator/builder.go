package addresstranslator

import (
	"github.com/sarchlab/memsym/mem/vm"
	"github.com/sarchlab/memsym/mem/vm/tlb"
)

// A Builder can build AddressTranslators.
type Builder struct {
	layout    vm.AddressLayout
	tlb       *tlb.TLB
	pageTable vm.PageTable
}

// MakeBuilder creates a new Builder.
func MakeBuilder() Builder {
	return Builder{}
}

// WithLayout sets how addresses are split into page number and offset.
func (b Builder) WithLayout(layout vm.AddressLayout) Builder {
	b.layout = layout
	return b
}

// WithTLB sets the TLB that caches translations.
func (b Builder) WithTLB(t *tlb.TLB) Builder {
	b.tlb = t
	return b
}

// WithPageTable sets the page table that holds all the mappings.
func (b Builder) WithPageTable(pt vm.PageTable) Builder {
	b.pageTable = pt
	return b
}

// Build creates a new AddressTranslator.
func (b Builder) Build() *Comp {
	if b.tlb == nil || b.pageTable == nil {
		panic("an address translator requires a TLB and a page table")
	}

	return &Comp{
		layout:    b.layout,
		tlb:       b.tlb,
		pageTable: b.pageTable,
	}
}
