// Package logging writes the events of a simulation as the lines of an output
// trace.
package logging

import (
	"errors"
	"fmt"
	"io"
	"log"

	"github.com/sarchlab/memsym/memsym"
	"github.com/sarchlab/memsym/sim/hooking"
)

// A LogHook is a hook that writes one line per simulator event.
type LogHook struct {
	*log.Logger
}

// NewLogHook creates a LogHook that writes to w without any prefix.
func NewLogHook(w io.Writer) *LogHook {
	return &LogHook{Logger: log.New(w, "", 0)}
}

// Func writes the line of the event carried by the hook context.
func (h *LogHook) Func(ctx hooking.HookCtx) {
	event, ok := ctx.Item.(memsym.Event)
	if !ok {
		return
	}

	line, ok := Format(event)
	if !ok {
		return
	}

	h.Println(line)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}

	return 0
}

// Format returns the output line of an event, or false if the event has no
// line.
//
//nolint:gocyclo,funlen
func Format(event memsym.Event) (string, bool) {
	var what string

	switch e := event.(type) {
	case memsym.ConfigureEvent:
		what = fmt.Sprintf(
			"Memory instantiation complete. OFF bits: %d. PFN bits: %d. VPN bits: %d",
			e.Layout.OffsetBits, e.Layout.PFNBits, e.Layout.VPNBits)
	case memsym.SwitchEvent:
		what = fmt.Sprintf("Switched execution context to process: %d", e.To)
	case memsym.TLBHitEvent:
		what = fmt.Sprintf(
			"Translating. Lookup for VPN %d hit in TLB entry %d. PFN is %d",
			e.VPN, e.Slot, e.PFN)
	case memsym.TLBMissEvent:
		what = fmt.Sprintf("Translating. Lookup for VPN %d caused a TLB miss",
			e.VPN)
	case memsym.TLBFillEvent:
		what = fmt.Sprintf("Translating. Successfully mapped VPN %d to PFN %d",
			e.VPN, e.PFN)
	case memsym.LoadImmediateEvent:
		what = fmt.Sprintf("Loaded immediate %d into register %s",
			e.Value, e.Register)
	case memsym.LoadMemoryEvent:
		what = fmt.Sprintf("Loaded value of location %d (%d) into register %s",
			e.VAddr, e.Value, e.Register)
	case memsym.StoreImmediateEvent:
		what = fmt.Sprintf("Stored immediate %d into location %d",
			e.Value, e.VAddr)
	case memsym.StoreRegisterEvent:
		what = fmt.Sprintf("Stored value of register %s (%d) into location %d",
			e.Register, e.Value, e.VAddr)
	case memsym.AddEvent:
		what = fmt.Sprintf(
			"Added contents of registers r1 (%d) and r2 (%d). Result: %d",
			e.R1, e.R2, e.Result)
	case memsym.MapEvent:
		what = fmt.Sprintf(
			"Mapped virtual page number %d to physical frame number %d",
			e.VPN, e.PFN)
	case memsym.UnmapEvent:
		what = fmt.Sprintf("Unmapped virtual page number %d", e.VPN)
	case memsym.RegisterInspectEvent:
		what = fmt.Sprintf("Inspected register %s. Content: %d",
			e.Register, e.Value)
	case memsym.PageTableInspectEvent:
		what = fmt.Sprintf(
			"Inspected page table entry %d. Physical frame number: %d. Valid: %d",
			e.VPN, e.PFN, boolToInt(e.Valid))
	case memsym.TLBInspectEvent:
		what = fmt.Sprintf(
			"Inspected TLB entry %d. VPN: %d. PFN: %d. Valid: %d. PID: %d. Timestamp: %d",
			e.Entry.Slot, e.Entry.VPN, e.Entry.PFN, boolToInt(e.Entry.Valid),
			e.Entry.PID, e.Entry.Timestamp)
	case memsym.LocationInspectEvent:
		what = fmt.Sprintf("Location %d contains value %d", e.PAddr, e.Value)
	case memsym.ErrorEvent:
		what = errorLine(e.Err)
	default:
		return "", false
	}

	return fmt.Sprintf("Current PID: %d. %s", event.Meta().PID, what), true
}

// errorLine keeps the translation failure in the wording of the translation
// lines. A failed switch has its own line without the error prefix.
func errorLine(err error) string {
	var transErr *memsym.TranslationError
	if errors.As(err, &transErr) {
		return transErr.Error()
	}

	var switchErr *memsym.SwitchError
	if errors.As(err, &switchErr) {
		return "Invalid context switch to process " + switchErr.Target
	}

	return "Error: " + err.Error()
}
