package memsym

import (
	"strconv"
	"strings"
)

// A Command is one decoded line of a trace.
type Command struct {
	Name string
	Args []string

	// Line is the line number in the trace, for diagnostics only.
	Line int
}

func (c Command) String() string {
	return strings.Join(append([]string{c.Name}, c.Args...), " ")
}

type commandHandler struct {
	numArgs int
	handle  func(s *Simulator, args []string) error
}

var configureNames = map[string]bool{"define": true, "configure": true}

var commandHandlers = map[string]commandHandler{
	"define":    {3, (*Simulator).execConfigure},
	"configure": {3, (*Simulator).execConfigure},
	"ctxswitch": {1, (*Simulator).execSwitch},
	"switch":    {1, (*Simulator).execSwitch},
	"load":      {2, (*Simulator).execLoad},
	"store":     {2, (*Simulator).execStore},
	"add":       {0, func(s *Simulator, _ []string) error { return s.add() }},
	"map":       {2, (*Simulator).execMap},
	"unmap":     {1, (*Simulator).execUnmap},
	"rinspect":  {1, (*Simulator).execInspectRegister},
	"pinspect":  {1, (*Simulator).execInspectPageTable},
	"tinspect":  {1, (*Simulator).execInspectTLB},
	"linspect":  {1, (*Simulator).execInspectLocation},
}

// Execute runs one command of a trace. Commands other than the configuration
// fail with a SequenceError before the simulator is configured, whatever
// their operands. The first error is reported to the hooks and halts the
// simulator; every later command returns a HaltedError.
func (s *Simulator) Execute(cmd Command) error {
	return s.run(configureNames[cmd.Name], func() error {
		handler, found := commandHandlers[cmd.Name]
		if !found {
			return s.invalid("unknown command %s", cmd.Name)
		}

		if len(cmd.Args) != handler.numArgs {
			return s.invalid("%s expects %d operands, got %d",
				cmd.Name, handler.numArgs, len(cmd.Args))
		}

		return handler.handle(s, cmd.Args)
	})
}

func (s *Simulator) parseUint(token string) (uint64, error) {
	v, err := strconv.ParseUint(token, 10, 64)
	if err != nil {
		return 0, s.invalid("invalid operand %s", token)
	}

	return v, nil
}

func (s *Simulator) parseUints(tokens []string) ([]uint64, error) {
	values := make([]uint64, len(tokens))

	for i, t := range tokens {
		v, err := s.parseUint(t)
		if err != nil {
			return nil, err
		}

		values[i] = v
	}

	return values, nil
}

func (s *Simulator) parseRegister(token string) (Register, error) {
	r, ok := ParseRegister(token)
	if !ok {
		return 0, s.invalid("invalid register operand %s", token)
	}

	return r, nil
}

func (s *Simulator) parseOperand(token string) (Operand, error) {
	op, err := ParseOperand(token)
	if err != nil {
		return Operand{}, s.invalid("%s", err)
	}

	return op, nil
}

func (s *Simulator) execConfigure(args []string) error {
	if s.state == StateReady {
		return &ConfigError{PID: s.currentPID}
	}

	v, err := s.parseUints(args)
	if err != nil {
		return err
	}

	return s.configure(layoutOf(v[0], v[1], v[2]))
}

func (s *Simulator) execSwitch(args []string) error {
	pid, err := strconv.Atoi(args[0])
	if err != nil {
		return s.invalidSwitch(args[0])
	}

	return s.switchTo(pid)
}

func (s *Simulator) execLoad(args []string) error {
	dst, err := s.parseRegister(args[0])
	if err != nil {
		return err
	}

	src, err := s.parseOperand(args[1])
	if err != nil {
		return err
	}

	return s.load(dst, src)
}

func (s *Simulator) execStore(args []string) error {
	dst, err := s.parseUint(args[0])
	if err != nil {
		return err
	}

	src, err := s.parseOperand(args[1])
	if err != nil {
		return err
	}

	return s.store(dst, src)
}

func (s *Simulator) execMap(args []string) error {
	v, err := s.parseUints(args)
	if err != nil {
		return err
	}

	return s.mapPage(v[0], v[1])
}

func (s *Simulator) execUnmap(args []string) error {
	vpn, err := s.parseUint(args[0])
	if err != nil {
		return err
	}

	return s.unmapPage(vpn)
}

func (s *Simulator) execInspectRegister(args []string) error {
	r, err := s.parseRegister(args[0])
	if err != nil {
		return err
	}

	return s.inspectRegister(r)
}

func (s *Simulator) execInspectPageTable(args []string) error {
	vpn, err := s.parseUint(args[0])
	if err != nil {
		return err
	}

	return s.inspectPageTable(vpn)
}

func (s *Simulator) execInspectTLB(args []string) error {
	slot, err := strconv.Atoi(args[0])
	if err != nil {
		return s.invalid("invalid operand %s", args[0])
	}

	return s.inspectTLB(slot)
}

func (s *Simulator) execInspectLocation(args []string) error {
	pAddr, err := s.parseUint(args[0])
	if err != nil {
		return err
	}

	return s.inspectLocation(pAddr)
}
