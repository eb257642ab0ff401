// Package memsym simulates virtual memory address translation driven by a
// trace of per-process instructions.
package memsym

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/sarchlab/memsym/mem/mem"
	"github.com/sarchlab/memsym/mem/vm"
	"github.com/sarchlab/memsym/mem/vm/addresstranslator"
	"github.com/sarchlab/memsym/mem/vm/tlb"
	"github.com/sarchlab/memsym/sim/hooking"
)

// State is the configuration state of a Simulator.
type State int

// A Simulator starts unconfigured and becomes ready after the configuration.
// Ready is never left.
const (
	StateUnconfigured State = iota
	StateReady
)

func (s State) String() string {
	if s == StateReady {
		return "Ready"
	}

	return "Unconfigured"
}

// Stats counts what happened during a run.
type Stats struct {
	Commands  uint64
	Hits      uint64
	Misses    uint64
	Evictions uint64
}

// A Simulator owns the whole simulated machine: storage, page tables, TLB and
// the saved contexts of the processes. Exactly one process is current.
//
// A Simulator is not safe for concurrent use.
type Simulator struct {
	hooking.HookableBase

	numProcesses  int
	numTLBEntries int
	policy        tlb.Policy

	state      State
	halt       error
	clock      uint64
	currentPID vm.PID
	stats      Stats

	layout     vm.AddressLayout
	storage    *mem.Storage
	pageTable  vm.PageTable
	tlb        *tlb.TLB
	translator *addresstranslator.Comp
	contexts   []ProcessContext
}

// State returns the configuration state.
func (s *Simulator) State() State {
	return s.state
}

// Halted returns the fatal error that stopped the simulator, or nil.
func (s *Simulator) Halted() error {
	return s.halt
}

// Clock returns the number of commands processed so far.
func (s *Simulator) Clock() uint64 {
	return s.clock
}

// CurrentPID returns the process that is currently executing.
func (s *Simulator) CurrentPID() vm.PID {
	return s.currentPID
}

// Policy returns the TLB replacement policy.
func (s *Simulator) Policy() tlb.Policy {
	return s.policy
}

// Stats returns the counters of the run.
func (s *Simulator) Stats() Stats {
	return s.stats
}

// Context returns the saved registers of a process.
func (s *Simulator) Context(pid vm.PID) ProcessContext {
	if int(pid) >= len(s.contexts) {
		return ProcessContext{}
	}

	return s.contexts[pid]
}

// run executes one command. It advances the clock, enforces the
// configure-first rule and turns the first error into the halt reason.
func (s *Simulator) run(isConfigure bool, op func() error) error {
	if s.halt != nil {
		return &HaltedError{Cause: s.halt}
	}

	s.clock++
	s.stats.Commands++

	var err error
	if !isConfigure && s.state == StateUnconfigured {
		err = &SequenceError{PID: s.currentPID}
	} else {
		err = op()
	}

	if err != nil {
		s.fail(err)
	}

	return err
}

func (s *Simulator) fail(err error) {
	s.halt = err
	s.emit(HookPosError, ErrorEvent{EventMeta: s.meta(), Err: err})
}

func (s *Simulator) meta() EventMeta {
	return EventMeta{PID: s.currentPID, Clock: s.clock}
}

func (s *Simulator) emit(pos *hooking.HookPos, event Event) {
	if s.NumHooks() == 0 {
		return
	}

	s.InvokeHook(hooking.HookCtx{
		Domain: s,
		Pos:    pos,
		Item:   event,
	})
}

func (s *Simulator) invalid(format string, args ...interface{}) error {
	return &ValidationError{
		PID:    s.currentPID,
		Detail: fmt.Sprintf(format, args...),
	}
}

func (s *Simulator) invalidSwitch(target string) error {
	err := &SwitchError{Target: target}

	return &ValidationError{
		PID:    s.currentPID,
		Detail: err.Error(),
		Err:    err,
	}
}

func (s *Simulator) checkRegister(r Register) error {
	if !r.IsValid() {
		return s.invalid("invalid register operand %s", r)
	}

	return nil
}

// Configure sets the address layout and creates the machine. It can only
// succeed once.
func (s *Simulator) Configure(offsetBits, pfnBits, vpnBits uint64) error {
	return s.run(true, func() error {
		return s.configure(layoutOf(offsetBits, pfnBits, vpnBits))
	})
}

func layoutOf(offsetBits, pfnBits, vpnBits uint64) vm.AddressLayout {
	return vm.AddressLayout{
		OffsetBits: offsetBits,
		PFNBits:    pfnBits,
		VPNBits:    vpnBits,
	}
}

func (s *Simulator) configure(layout vm.AddressLayout) error {
	if s.state == StateReady {
		return &ConfigError{PID: s.currentPID}
	}

	if err := layout.Validate(); err != nil {
		return s.invalid("invalid configuration: %s", err)
	}

	s.layout = layout
	s.storage = mem.NewStorage(layout.PhysicalWordCount())
	s.pageTable = vm.NewPageTable(s.numProcesses, layout.VPNSpace())
	s.tlb = tlb.MakeBuilder().
		WithNumEntries(s.numTLBEntries).
		WithPolicy(s.policy).
		Build()
	s.translator = addresstranslator.MakeBuilder().
		WithLayout(layout).
		WithTLB(s.tlb).
		WithPageTable(s.pageTable).
		Build()
	s.contexts = make([]ProcessContext, s.numProcesses)
	s.state = StateReady

	s.emit(HookPosConfigure, ConfigureEvent{EventMeta: s.meta(), Layout: layout})

	return nil
}

// Switch makes another process current.
func (s *Simulator) Switch(pid int) error {
	return s.run(false, func() error { return s.switchTo(pid) })
}

func (s *Simulator) switchTo(pid int) error {
	if pid < 0 || pid >= s.numProcesses {
		return s.invalidSwitch(strconv.Itoa(pid))
	}

	from := s.currentPID
	s.currentPID = vm.PID(pid)

	s.emit(HookPosSwitch, SwitchEvent{
		EventMeta: s.meta(),
		From:      from,
		To:        s.currentPID,
	})

	return nil
}

func (s *Simulator) currentContext() *ProcessContext {
	return &s.contexts[s.currentPID]
}

// Load writes an immediate or the word at a virtual address into a register
// of the current process.
func (s *Simulator) Load(dst Register, src Operand) error {
	return s.run(false, func() error { return s.load(dst, src) })
}

func (s *Simulator) load(dst Register, src Operand) error {
	if err := s.checkRegister(dst); err != nil {
		return err
	}

	switch src.Kind {
	case OperandImmediate:
		v := uint32(src.Value)
		s.currentContext().Set(dst, v)
		s.emit(HookPosLoad, LoadImmediateEvent{
			EventMeta: s.meta(),
			Register:  dst,
			Value:     v,
		})

		return nil
	case OperandAddress:
		trans, err := s.translate(src.Value)
		if err != nil {
			return err
		}

		v, err := s.storage.Read(trans.PAddr)
		if err != nil {
			return err
		}

		s.currentContext().Set(dst, v)
		s.emit(HookPosLoad, LoadMemoryEvent{
			EventMeta: s.meta(),
			Register:  dst,
			VAddr:     src.Value,
			PAddr:     trans.PAddr,
			Value:     v,
		})

		return nil
	default:
		return s.invalid("invalid source operand %s", src.Text)
	}
}

// Store writes an immediate or a register of the current process to a
// virtual address.
func (s *Simulator) Store(dst uint64, src Operand) error {
	return s.run(false, func() error { return s.store(dst, src) })
}

func (s *Simulator) store(dst uint64, src Operand) error {
	var v uint32

	switch src.Kind {
	case OperandImmediate:
		v = uint32(src.Value)
	case OperandRegister:
		if err := s.checkRegister(src.Register); err != nil {
			return err
		}

		v = s.currentContext().Get(src.Register)
	default:
		return s.invalid("invalid source operand %s", src.Text)
	}

	trans, err := s.translate(dst)
	if err != nil {
		return err
	}

	if err := s.storage.Write(trans.PAddr, v); err != nil {
		return err
	}

	if src.Kind == OperandImmediate {
		s.emit(HookPosStore, StoreImmediateEvent{
			EventMeta: s.meta(),
			VAddr:     dst,
			PAddr:     trans.PAddr,
			Value:     v,
		})
	} else {
		s.emit(HookPosStore, StoreRegisterEvent{
			EventMeta: s.meta(),
			Register:  src.Register,
			VAddr:     dst,
			PAddr:     trans.PAddr,
			Value:     v,
		})
	}

	return nil
}

func (s *Simulator) translate(
	vAddr uint64,
) (addresstranslator.Translation, error) {
	trans, err := s.translator.Translate(s.currentPID, vAddr, s.clock)

	if trans.Hit {
		s.stats.Hits++
		s.emit(HookPosTranslate, TLBHitEvent{
			EventMeta: s.meta(),
			VPN:       trans.VPN,
			Slot:      trans.Slot,
			PFN:       trans.PFN,
		})

		return trans, nil
	}

	s.stats.Misses++
	s.emit(HookPosTranslate, TLBMissEvent{EventMeta: s.meta(), VPN: trans.VPN})

	if err != nil {
		var notMapped *vm.NotMappedError
		if errors.As(err, &notMapped) {
			return trans, &TranslationError{
				PID: s.currentPID,
				VPN: notMapped.VPN,
				Err: err,
			}
		}

		return trans, err
	}

	if trans.Evicted {
		s.stats.Evictions++
	}

	s.emit(HookPosTranslate, TLBFillEvent{
		EventMeta: s.meta(),
		VPN:       trans.VPN,
		PFN:       trans.PFN,
		Slot:      trans.Slot,
		Evicted:   trans.Evicted,
		Victim:    trans.Victim,
	})

	return trans, nil
}

// Add sets r1 to r1 + r2 of the current process, wrapping at 32 bits.
func (s *Simulator) Add() error {
	return s.run(false, s.add)
}

func (s *Simulator) add() error {
	ctx := s.currentContext()
	r1, r2 := ctx.R1, ctx.R2
	ctx.R1 = r1 + r2

	s.emit(HookPosAdd, AddEvent{
		EventMeta: s.meta(),
		R1:        r1,
		R2:        r2,
		Result:    ctx.R1,
	})

	return nil
}

// Map maps a virtual page of the current process to a physical frame, in the
// page table and in the TLB.
func (s *Simulator) Map(vpn, pfn uint64) error {
	return s.run(false, func() error { return s.mapPage(vpn, pfn) })
}

func (s *Simulator) mapPage(vpn, pfn uint64) error {
	if vpn >= s.layout.VPNSpace() {
		return s.invalid("virtual page number %d out of range", vpn)
	}

	if pfn >= s.layout.PFNSpace() {
		return s.invalid("physical frame number %d out of range", pfn)
	}

	slot, victim, evicted := s.translator.Map(s.currentPID, vpn, pfn, s.clock)
	if evicted {
		s.stats.Evictions++
	}

	s.emit(HookPosMap, MapEvent{
		EventMeta: s.meta(),
		VPN:       vpn,
		PFN:       pfn,
		Slot:      slot,
		Evicted:   evicted,
		Victim:    victim,
	})

	return nil
}

// Unmap removes the mapping of a virtual page of the current process from the
// TLB and the page table.
func (s *Simulator) Unmap(vpn uint64) error {
	return s.run(false, func() error { return s.unmapPage(vpn) })
}

func (s *Simulator) unmapPage(vpn uint64) error {
	if vpn >= s.layout.VPNSpace() {
		return s.invalid("virtual page number %d out of range", vpn)
	}

	n := s.translator.Unmap(s.currentPID, vpn)

	s.emit(HookPosUnmap, UnmapEvent{
		EventMeta:   s.meta(),
		VPN:         vpn,
		Invalidated: n,
	})

	return nil
}
