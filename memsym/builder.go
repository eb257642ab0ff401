package memsym

import "github.com/sarchlab/memsym/mem/vm/tlb"

// A Builder can build Simulators.
type Builder struct {
	numProcesses  int
	numTLBEntries int
	policy        tlb.Policy
}

// MakeBuilder returns a Builder with 4 processes, 8 TLB entries and the FIFO
// policy.
func MakeBuilder() Builder {
	return Builder{
		numProcesses:  4,
		numTLBEntries: 8,
		policy:        tlb.FIFOPolicy{},
	}
}

// WithPolicy sets the TLB replacement policy.
func (b Builder) WithPolicy(p tlb.Policy) Builder {
	b.policy = p
	return b
}

// WithNumProcesses sets the number of processes that can be switched to.
func (b Builder) WithNumProcesses(n int) Builder {
	b.numProcesses = n
	return b
}

// WithNumTLBEntries sets the number of TLB slots.
func (b Builder) WithNumTLBEntries(n int) Builder {
	b.numTLBEntries = n
	return b
}

// Build creates an unconfigured Simulator.
func (b Builder) Build() *Simulator {
	if b.numProcesses <= 0 {
		panic("a simulator must have at least one process")
	}

	if b.policy == nil {
		panic("a simulator must have a TLB replacement policy")
	}

	return &Simulator{
		numProcesses:  b.numProcesses,
		numTLBEntries: b.numTLBEntries,
		policy:        b.policy,
	}
}
