package memsym

import (
	"github.com/sarchlab/memsym/mem/vm"
	"github.com/sarchlab/memsym/mem/vm/tlb"
)

// A Snapshot is a copy of the visible state of a Simulator. It does not share
// memory with the simulator and can be read from other goroutines.
type Snapshot struct {
	State      string
	Halted     string
	Policy     string
	Clock      uint64
	CurrentPID vm.PID
	Layout     vm.AddressLayout
	Stats      Stats

	TLB []tlb.Entry

	// Pages holds the valid page-table entries of each process.
	Pages [][]vm.Page

	Contexts []ProcessContext
}

// Snapshot copies the current state.
func (s *Simulator) Snapshot() Snapshot {
	snapshot := Snapshot{
		State:      s.state.String(),
		Policy:     s.policy.Name(),
		Clock:      s.clock,
		CurrentPID: s.currentPID,
		Layout:     s.layout,
		Stats:      s.stats,
	}

	if s.halt != nil {
		snapshot.Halted = s.halt.Error()
	}

	if s.state != StateReady {
		return snapshot
	}

	snapshot.TLB = s.tlb.Entries()
	snapshot.Contexts = append([]ProcessContext(nil), s.contexts...)
	snapshot.Pages = make([][]vm.Page, s.numProcesses)

	for pid := 0; pid < s.numProcesses; pid++ {
		for vpn := uint64(0); vpn < s.pageTable.NumPages(); vpn++ {
			page, found := s.pageTable.Find(vm.PID(pid), vpn)
			if found {
				snapshot.Pages[pid] = append(snapshot.Pages[pid], page)
			}
		}
	}

	return snapshot
}
