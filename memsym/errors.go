package memsym

import (
	"fmt"

	"github.com/sarchlab/memsym/mem/vm"
)

// A ConfigError reports a second configuration of the same simulator.
type ConfigError struct {
	PID vm.PID
}

func (e *ConfigError) Error() string {
	return "multiple calls to define in the same trace"
}

// A SequenceError reports a command issued before the configuration.
type SequenceError struct {
	PID     vm.PID
	Command string
}

func (e *SequenceError) Error() string {
	return "attempt to execute instruction before define"
}

// A ValidationError reports a malformed or out-of-range operand. Err, when
// set, tells which operand was rejected.
type ValidationError struct {
	PID    vm.PID
	Detail string
	Err    error
}

func (e *ValidationError) Error() string {
	return e.Detail
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// A SwitchError reports a context switch to a process that does not exist.
type SwitchError struct {
	Target string
}

func (e *SwitchError) Error() string {
	return "invalid context switch to process " + e.Target
}

// A TranslationError reports a reference to a page that is not mapped.
type TranslationError struct {
	PID vm.PID
	VPN uint64
	Err error
}

func (e *TranslationError) Error() string {
	return fmt.Sprintf(
		"Translating. Translation for VPN %d not found in page table", e.VPN)
}

func (e *TranslationError) Unwrap() error {
	return e.Err
}

// A HaltedError is returned for every command after the simulator stopped on
// a fatal error.
type HaltedError struct {
	Cause error
}

func (e *HaltedError) Error() string {
	return "simulator halted: " + e.Cause.Error()
}

func (e *HaltedError) Unwrap() error {
	return e.Cause
}
