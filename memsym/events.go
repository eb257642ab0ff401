package memsym

import (
	"github.com/sarchlab/memsym/mem/vm"
	"github.com/sarchlab/memsym/mem/vm/tlb"
	"github.com/sarchlab/memsym/sim/hooking"
)

// The positions at which the simulator invokes its hooks. The item of the
// hook context is one of the events below.
var (
	HookPosConfigure = &hooking.HookPos{Name: "Configure"}
	HookPosSwitch    = &hooking.HookPos{Name: "Switch"}
	HookPosTranslate = &hooking.HookPos{Name: "Translate"}
	HookPosLoad      = &hooking.HookPos{Name: "Load"}
	HookPosStore     = &hooking.HookPos{Name: "Store"}
	HookPosAdd       = &hooking.HookPos{Name: "Add"}
	HookPosMap       = &hooking.HookPos{Name: "Map"}
	HookPosUnmap     = &hooking.HookPos{Name: "Unmap"}
	HookPosInspect   = &hooking.HookPos{Name: "Inspect"}
	HookPosError     = &hooking.HookPos{Name: "Error"}
)

// An Event is what the simulator reports to its hooks.
type Event interface {
	Meta() EventMeta
}

// EventMeta carries the fields shared by all events.
type EventMeta struct {
	// PID is the current process when the event happens.
	PID vm.PID

	// Clock is the value of the global clock, one tick per command.
	Clock uint64
}

// Meta returns the meta data of the event.
func (m EventMeta) Meta() EventMeta {
	return m
}

// ConfigureEvent reports a completed configuration.
type ConfigureEvent struct {
	EventMeta
	Layout vm.AddressLayout
}

// SwitchEvent reports a context switch. PID is already the new process.
type SwitchEvent struct {
	EventMeta
	From vm.PID
	To   vm.PID
}

// TLBHitEvent reports a translation served by the TLB.
type TLBHitEvent struct {
	EventMeta
	VPN  uint64
	Slot int
	PFN  uint64
}

// TLBMissEvent reports a translation that the TLB could not serve.
type TLBMissEvent struct {
	EventMeta
	VPN uint64
}

// TLBFillEvent reports that a translation has been cached after a miss.
type TLBFillEvent struct {
	EventMeta
	VPN     uint64
	PFN     uint64
	Slot    int
	Evicted bool
	Victim  tlb.Entry
}

// LoadImmediateEvent reports a literal loaded into a register.
type LoadImmediateEvent struct {
	EventMeta
	Register Register
	Value    uint32
}

// LoadMemoryEvent reports a word loaded from memory into a register.
type LoadMemoryEvent struct {
	EventMeta
	Register Register
	VAddr    uint64
	PAddr    uint64
	Value    uint32
}

// StoreImmediateEvent reports a literal stored into memory.
type StoreImmediateEvent struct {
	EventMeta
	VAddr uint64
	PAddr uint64
	Value uint32
}

// StoreRegisterEvent reports a register stored into memory.
type StoreRegisterEvent struct {
	EventMeta
	Register Register
	VAddr    uint64
	PAddr    uint64
	Value    uint32
}

// AddEvent reports an addition of r1 and r2 into r1.
type AddEvent struct {
	EventMeta
	R1     uint32
	R2     uint32
	Result uint32
}

// MapEvent reports an explicit mapping, written to both the page table and
// the TLB.
type MapEvent struct {
	EventMeta
	VPN     uint64
	PFN     uint64
	Slot    int
	Evicted bool
	Victim  tlb.Entry
}

// UnmapEvent reports an explicit unmapping. Invalidated is the number of TLB
// slots cleared.
type UnmapEvent struct {
	EventMeta
	VPN         uint64
	Invalidated int
}

// RegisterInspectEvent reports the content of a register.
type RegisterInspectEvent struct {
	EventMeta
	Register Register
	Value    uint32
}

// PageTableInspectEvent reports a page-table entry of the current process.
type PageTableInspectEvent struct {
	EventMeta
	VPN   uint64
	PFN   uint64
	Valid bool
}

// TLBInspectEvent reports the content of a TLB slot.
type TLBInspectEvent struct {
	EventMeta
	Entry tlb.Entry
}

// LocationInspectEvent reports the content of a physical word.
type LocationInspectEvent struct {
	EventMeta
	PAddr uint64
	Value uint32
}

// ErrorEvent reports the fatal error that stopped the simulator.
type ErrorEvent struct {
	EventMeta
	Err error
}
