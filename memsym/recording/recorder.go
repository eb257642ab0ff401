// Package recording stores the events of a simulation in a database.
package recording

import (
	"fmt"
	"sync"

	"github.com/sarchlab/memsym/datarecording"
	"github.com/sarchlab/memsym/mem/vm"
	"github.com/sarchlab/memsym/memsym"
	"github.com/sarchlab/memsym/sim/hooking"
	"github.com/sarchlab/memsym/sim/id"
)

// Table names written by an EventRecorder.
const (
	EventTableName = "memsym_events"
	TLBTableName   = "memsym_tlb"
)

// EventEntry is one row of the event table. Fields that do not apply to the
// kind of event are zero.
type EventEntry struct {
	ID       string `json:"id"`
	Clock    uint64 `json:"clock"`
	PID      uint32 `json:"pid"`
	Kind     string `json:"kind"`
	VPN      uint64 `json:"vpn"`
	PFN      uint64 `json:"pfn"`
	Slot     int    `json:"slot"`
	VAddr    uint64 `json:"vaddr"`
	PAddr    uint64 `json:"paddr"`
	Register string `json:"register"`
	Value    uint32 `json:"value"`
	Detail   string `json:"detail"`
}

// TLBEntry is one row of the TLB table, which holds the TLB content at the
// end of the run.
type TLBEntry struct {
	Slot      int    `json:"slot"`
	Valid     bool   `json:"valid"`
	PID       uint32 `json:"pid"`
	VPN       uint64 `json:"vpn"`
	PFN       uint64 `json:"pfn"`
	Timestamp uint64 `json:"timestamp"`
}

// An EventRecorder is a hook that writes every simulator event into a
// DataRecorder.
type EventRecorder struct {
	mu          sync.Mutex
	backend     datarecording.DataRecorder
	idGenerator id.IDGenerator
}

// NewEventRecorder creates the tables in the backend.
func NewEventRecorder(
	backend datarecording.DataRecorder,
	idGenerator id.IDGenerator,
) *EventRecorder {
	backend.CreateTable(EventTableName, EventEntry{})
	backend.CreateTable(TLBTableName, TLBEntry{})

	return &EventRecorder{
		backend:     backend,
		idGenerator: idGenerator,
	}
}

// Func writes the event carried by the hook context.
func (r *EventRecorder) Func(ctx hooking.HookCtx) {
	event, ok := ctx.Item.(memsym.Event)
	if !ok {
		return
	}

	entry, ok := entryOf(event)
	if !ok {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	meta := event.Meta()
	entry.ID = r.idGenerator.Generate()
	entry.Clock = meta.Clock
	entry.PID = uint32(meta.PID)

	r.backend.InsertData(EventTableName, entry)
}

// RecordFinalState writes the TLB content of the snapshot and flushes the
// backend.
func (r *EventRecorder) RecordFinalState(snapshot memsym.Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, e := range snapshot.TLB {
		r.backend.InsertData(TLBTableName, TLBEntry{
			Slot:      e.Slot,
			Valid:     e.Valid,
			PID:       uint32(e.PID),
			VPN:       e.VPN,
			PFN:       e.PFN,
			Timestamp: e.Timestamp,
		})
	}

	r.backend.Flush()
}

//nolint:gocyclo,funlen
func entryOf(event memsym.Event) (EventEntry, bool) {
	switch e := event.(type) {
	case memsym.ConfigureEvent:
		return EventEntry{
			Kind:   "configure",
			Detail: e.Layout.String(),
		}, true
	case memsym.SwitchEvent:
		return EventEntry{Kind: "switch", Value: uint32(e.From)}, true
	case memsym.TLBHitEvent:
		return EventEntry{
			Kind: "tlb_hit", VPN: e.VPN, PFN: e.PFN, Slot: e.Slot,
		}, true
	case memsym.TLBMissEvent:
		return EventEntry{Kind: "tlb_miss", VPN: e.VPN, Slot: -1}, true
	case memsym.TLBFillEvent:
		entry := EventEntry{
			Kind: "tlb_fill", VPN: e.VPN, PFN: e.PFN, Slot: e.Slot,
		}
		if e.Evicted {
			entry.Detail = victimDetail(e.Victim.PID, e.Victim.VPN)
		}

		return entry, true
	case memsym.LoadImmediateEvent:
		return EventEntry{
			Kind: "load_immediate", Register: e.Register.String(), Value: e.Value,
		}, true
	case memsym.LoadMemoryEvent:
		return EventEntry{
			Kind:     "load",
			Register: e.Register.String(),
			VAddr:    e.VAddr,
			PAddr:    e.PAddr,
			Value:    e.Value,
		}, true
	case memsym.StoreImmediateEvent:
		return EventEntry{
			Kind: "store_immediate", VAddr: e.VAddr, PAddr: e.PAddr, Value: e.Value,
		}, true
	case memsym.StoreRegisterEvent:
		return EventEntry{
			Kind:     "store",
			Register: e.Register.String(),
			VAddr:    e.VAddr,
			PAddr:    e.PAddr,
			Value:    e.Value,
		}, true
	case memsym.AddEvent:
		return EventEntry{
			Kind:     "add",
			Register: "r1",
			Value:    e.Result,
			Detail:   fmt.Sprintf("r1:%d r2:%d", e.R1, e.R2),
		}, true
	case memsym.MapEvent:
		entry := EventEntry{Kind: "map", VPN: e.VPN, PFN: e.PFN, Slot: e.Slot}
		if e.Evicted {
			entry.Detail = victimDetail(e.Victim.PID, e.Victim.VPN)
		}

		return entry, true
	case memsym.UnmapEvent:
		return EventEntry{
			Kind: "unmap", VPN: e.VPN, Value: uint32(e.Invalidated),
		}, true
	case memsym.ErrorEvent:
		return EventEntry{Kind: "error", Detail: e.Err.Error()}, true
	default:
		return EventEntry{}, false
	}
}

func victimDetail(pid vm.PID, vpn uint64) string {
	return fmt.Sprintf("evicted pid:%d vpn:%d", pid, vpn)
}
