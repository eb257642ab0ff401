package memsym

import (
	"fmt"
	"strconv"
	"strings"
)

// A Register names one of the two general purpose registers.
type Register int

// The registers of a process.
const (
	R1 Register = iota
	R2
)

func (r Register) String() string {
	switch r {
	case R1:
		return "r1"
	case R2:
		return "r2"
	default:
		return fmt.Sprintf("r?(%d)", int(r))
	}
}

// IsValid tells whether r names a register of a process.
func (r Register) IsValid() bool {
	return r == R1 || r == R2
}

// ParseRegister returns the register with the given name.
func ParseRegister(name string) (Register, bool) {
	switch name {
	case "r1":
		return R1, true
	case "r2":
		return R2, true
	default:
		return 0, false
	}
}

// A ProcessContext holds the registers a process saved when it was switched
// out. Contexts are never shared and never cleared by a switch.
type ProcessContext struct {
	R1 uint32
	R2 uint32
}

// Get returns the value of a register.
func (c *ProcessContext) Get(r Register) uint32 {
	if r == R2 {
		return c.R2
	}

	return c.R1
}

// Set writes a register.
func (c *ProcessContext) Set(r Register, v uint32) {
	if r == R2 {
		c.R2 = v
		return
	}

	c.R1 = v
}

// OperandKind tells what an operand token denotes.
type OperandKind int

// The kinds of operands.
const (
	OperandAddress OperandKind = iota
	OperandImmediate
	OperandRegister
)

// An Operand is a parsed source or destination token.
type Operand struct {
	Kind     OperandKind
	Value    uint64
	Register Register
	Text     string
}

// Immediate creates an immediate operand.
func Immediate(v uint32) Operand {
	return Operand{
		Kind:  OperandImmediate,
		Value: uint64(v),
		Text:  "#" + strconv.FormatUint(uint64(v), 10),
	}
}

// Address creates a virtual address operand.
func Address(vAddr uint64) Operand {
	return Operand{
		Kind:  OperandAddress,
		Value: vAddr,
		Text:  strconv.FormatUint(vAddr, 10),
	}
}

// RegisterOperand creates a register operand.
func RegisterOperand(r Register) Operand {
	return Operand{Kind: OperandRegister, Register: r, Text: r.String()}
}

// ParseOperand parses `#<decimal>` as an immediate, `r1` and `r2` as
// registers and a bare decimal as an address.
func ParseOperand(token string) (Operand, error) {
	if strings.HasPrefix(token, "#") {
		v, err := strconv.ParseUint(token[1:], 10, 32)
		if err != nil {
			return Operand{}, fmt.Errorf("invalid immediate %s", token)
		}

		return Operand{Kind: OperandImmediate, Value: v, Text: token}, nil
	}

	if r, ok := ParseRegister(token); ok {
		return Operand{Kind: OperandRegister, Register: r, Text: token}, nil
	}

	v, err := strconv.ParseUint(token, 10, 64)
	if err != nil {
		return Operand{}, fmt.Errorf("invalid operand %s", token)
	}

	return Operand{Kind: OperandAddress, Value: v, Text: token}, nil
}
