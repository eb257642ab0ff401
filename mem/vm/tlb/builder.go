package tlb

import "github.com/sarchlab/memsym/mem/vm/tlb/internal"

// A Builder can build TLBs
type Builder struct {
	numEntries int
	policy     Policy
}

// MakeBuilder returns a Builder
func MakeBuilder() Builder {
	return Builder{
		numEntries: 8,
		policy:     FIFOPolicy{},
	}
}

// WithNumEntries sets the number of slots in the TLB.
func (b Builder) WithNumEntries(n int) Builder {
	b.numEntries = n
	return b
}

// WithPolicy sets the replacement policy.
func (b Builder) WithPolicy(p Policy) Builder {
	b.policy = p
	return b
}

// Build creates a new TLB with all the slots invalid.
func (b Builder) Build() *TLB {
	if b.numEntries <= 0 {
		panic("a TLB must have at least one entry")
	}

	if b.policy == nil {
		panic("a TLB must have a replacement policy")
	}

	return &TLB{
		set:    internal.NewSet(b.numEntries),
		policy: b.policy,
	}
}
