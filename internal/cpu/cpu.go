// Package cpu implements the control unit: the fetch/decode/execute loop,
// the six per-opcode executors, tick accounting, the interrupt polling
// discipline, and the per-instruction execution log.
package cpu

import (
	"fmt"
	"strconv"

	"mregsim/internal/alu"
	"mregsim/internal/datapath"
	"mregsim/internal/isa"
	"mregsim/internal/schedule"
)

// Fault is a fatal error raised by the control unit itself: an unknown
// opcode, an IP outside code memory, or an opcode with no executor. Errors
// from the ALU and the datapath (division by zero, an unwired register, a
// read of a port with no scheduled event) are returned with their own types.
type Fault struct {
	Msg string
}

func (f *Fault) Error() string { return f.Msg }

func fault(format string, args ...any) *Fault { return &Fault{Msg: fmt.Sprintf(format, args...)} }

// LogLine is one row of the execution trace, matching the simulator log
// format: counter, tick, IP, raw instruction word, opcode name, and PS.
type LogLine struct {
	Counter     int
	Tick        int
	IP          uint32
	Instruction uint32
	Opcode      string
	PS          datapath.PS
}

func (l LogLine) String() string {
	return fmt.Sprintf("counter: %d | tick: %d | IP: %d | instruction: 0x%08X | opcode: %s | PS: %s",
		l.Counter, l.Tick, l.IP, l.Instruction, l.Opcode, psString(l.PS))
}

func psString(ps datapath.PS) string {
	return fmt.Sprintf("{Z:%t N:%t W:%t I:%t IA:%t E:%t}", ps.Z, ps.N, ps.W, ps.I, ps.IA, ps.E)
}

// ControlUnit drives a DataPath through one program's execution.
type ControlUnit struct {
	DP *datapath.DataPath

	IP      uint32
	Tick    int
	Counter int
	Running bool

	Log []LogLine

	// Trace, if set, receives each LogLine as it is produced (used by the
	// simulator CLI's --trace flag to echo progress to stderr).
	Trace func(LogLine)
}

// New returns a ControlUnit ready to run from entryPoint.
func New(dp *datapath.DataPath, entryPoint uint32) *ControlUnit {
	return &ControlUnit{DP: dp, IP: entryPoint, Running: true}
}

// LoadInputSchedule installs events onto the machine's one wired input port.
func (c *ControlUnit) LoadInputSchedule(events []datapath.InputEvent) {
	c.DP.InPorts[schedule.Port] = events
}

func (c *ControlUnit) tick(n int) { c.Tick += n }

// Run executes instructions until HLT or a fatal fault.
func (c *ControlUnit) Run() error {
	for c.Running {
		if err := c.step(); err != nil {
			return err
		}
	}
	return nil
}

func (c *ControlUnit) step() error {
	if int(c.IP) >= isa.CodeSize {
		return fault("cpu: IP %d out of code memory range", c.IP)
	}
	fetchAddr := c.IP
	word := c.DP.Code[c.IP]

	if err := c.DP.ExecuteALU(alu.IncRight, "0", strconv.Itoa(int(c.IP))); err != nil {
		return err
	}
	c.IP = uint32(c.DP.ALU.Result)
	c.tick(1)

	op := isa.DecodeOpcode(word)
	tpl, ok := isa.LookupOpcode(op)
	if !ok {
		return fault("cpu: unknown opcode %d at address %d", op, fetchAddr)
	}

	var err error
	switch tpl.Form {
	case isa.FormAddressed:
		err = c.executeAddressed(op, word)
	case isa.FormBranch:
		err = c.executeBranch(op, word)
	case isa.FormUnary:
		err = c.executeUnary(op, word)
	case isa.FormBinary:
		err = c.executeBinary(op, word)
	case isa.FormIO:
		err = c.executeIO(op, word)
	case isa.FormZeroArg:
		err = c.executeZeroArg(op)
	default:
		return fault("cpu: opcode %s has no executor", op)
	}
	if err != nil {
		return err
	}

	if c.Running {
		c.checkInterruption()
	}

	c.Counter++
	line := LogLine{Counter: c.Counter, Tick: c.Tick, IP: fetchAddr, Instruction: word, Opcode: op.String(), PS: c.DP.PS}
	c.Log = append(c.Log, line)
	if c.Trace != nil {
		c.Trace(line)
	}
	return nil
}

func regName(idx uint32) string { return "r" + strconv.Itoa(int(idx&0x1F)) }

// executeAddressed implements LD/ST (§4.3.1): resolve the effective
// address (immediate or register-base, optionally indirected through one
// extra memory read), then perform the store or load, then latch PS.
func (c *ControlUnit) executeAddressed(op isa.Opcode, word uint32) error {
	f := isa.DecodeAddressed(word)
	arg1 := regName(f.Reg)

	if f.RegBase {
		if err := c.DP.ExecuteALU(alu.SkipLeft, regName(f.Second), "0"); err != nil {
			return err
		}
	} else {
		if err := c.DP.ExecuteALU(alu.SkipRight, "0", strconv.Itoa(int(f.Second))); err != nil {
			return err
		}
	}
	c.DP.LatchAR()
	c.tick(1)

	if f.Indirect {
		if err := c.DP.LatchDR(datapath.FromMemory); err != nil {
			return err
		}
		c.tick(1)
		if err := c.DP.ExecuteALU(alu.SkipRight, "0", "dr"); err != nil {
			return err
		}
		c.DP.LatchAR()
		c.tick(1)
	}

	switch op {
	case isa.ST:
		if err := c.DP.ExecuteALU(alu.SkipLeft, arg1, "0"); err != nil {
			return err
		}
		if err := c.DP.LatchDR(datapath.FromALU); err != nil {
			return err
		}
		c.tick(1)
		c.DP.MemWrite()
	case isa.LD:
		c.DP.MemRead()
		c.tick(1)
		if err := c.DP.ExecuteALU(alu.SkipRight, "0", "dr"); err != nil {
			return err
		}
		if err := c.DP.LatchRegister(arg1); err != nil {
			return err
		}
	default:
		return fault("cpu: %s is not an addressed opcode", op)
	}

	c.DP.LatchPS()
	c.tick(1)
	return nil
}

// executeBranch implements BEQ/BNE/JNE/JMP/CALL (§4.3.2). BEQ/BNE cost 1
// tick untaken, 2 taken; JNE tests PS.E and costs no tick untaken, 1 taken;
// JMP and CALL are unconditional.
func (c *ControlUnit) executeBranch(op isa.Opcode, word uint32) error {
	f := isa.DecodeNonAddressed(word)
	arg := branchTarget(f)

	jump := func() error {
		if err := c.DP.ExecuteALU(alu.SkipRight, "0", arg); err != nil {
			return err
		}
		c.IP = uint32(c.DP.ALU.Result)
		c.tick(1)
		return nil
	}

	switch op {
	case isa.BEQ:
		c.tick(1)
		if c.DP.PS.Z {
			return jump()
		}
	case isa.BNE:
		c.tick(1)
		if !c.DP.PS.Z {
			return jump()
		}
	case isa.JNE:
		if !c.DP.PS.E {
			return jump()
		}
	case isa.JMP:
		return jump()
	case isa.CALL:
		c.DP.Push(strconv.Itoa(int(c.IP)))
		c.tick(1)
		return jump()
	default:
		return fault("cpu: %s is not a branch opcode", op)
	}
	return nil
}

func branchTarget(f isa.NonAddressedFields) string {
	if f.IsReg[0] {
		return regName(f.Arg[0])
	}
	return strconv.Itoa(int(f.Arg[0]))
}

// executeUnary implements INC/DEC/PUSH/POP/PRINTI (§4.3.3).
func (c *ControlUnit) executeUnary(op isa.Opcode, word uint32) error {
	f := isa.DecodeNonAddressed(word)
	arg := unaryOperand(f, 0)

	switch op {
	case isa.INC:
		if err := c.DP.ExecuteALU(alu.IncLeft, arg, "0"); err != nil {
			return err
		}
		if err := c.DP.LatchRegister(arg); err != nil {
			return err
		}
		c.DP.LatchPS()
		c.tick(1)
	case isa.DEC:
		if err := c.DP.ExecuteALU(alu.DecLeft, arg, "0"); err != nil {
			return err
		}
		if err := c.DP.LatchRegister(arg); err != nil {
			return err
		}
		c.DP.LatchPS()
		c.tick(1)
	case isa.PUSH:
		c.DP.Push(arg)
		c.tick(1)
	case isa.POP:
		if err := c.DP.Pop(arg); err != nil {
			return err
		}
		c.tick(1)
	case isa.PRINTI:
		if err := c.DP.Print(arg); err != nil {
			return err
		}
		c.tick(10)
	default:
		return fault("cpu: %s is not a unary opcode", op)
	}
	return nil
}

func unaryOperand(f isa.NonAddressedFields, i int) string {
	if f.IsReg[i] {
		return regName(f.Arg[i])
	}
	return strconv.Itoa(int(f.Arg[i]))
}

// executeBinary implements ADD/MOV/CMP/MOD/DIV (§4.3.4). ADD/MOD/DIV stage
// their right operand through DR before computing, matching the source's
// timing (this costs a tick whether the staged value is a register or an
// immediate).
func (c *ControlUnit) executeBinary(op isa.Opcode, word uint32) error {
	f := isa.DecodeNonAddressed(word)
	a0 := unaryOperand(f, 0)
	a1 := unaryOperand(f, 1)

	switch op {
	case isa.ADD:
		a2 := unaryOperand(f, 2)
		if err := c.stageThroughDR(a2); err != nil {
			return err
		}
		if err := c.DP.ExecuteALU(alu.Add, a1, "dr"); err != nil {
			return err
		}
		c.DP.LatchPS()
		if err := c.DP.LatchRegister(a0); err != nil {
			return err
		}
		c.tick(1)
	case isa.MOV:
		if err := c.DP.ExecuteALU(alu.SkipLeft, a1, "0"); err != nil {
			return err
		}
		if err := c.DP.LatchRegister(a0); err != nil {
			return err
		}
		c.tick(1)
	case isa.CMP:
		if err := c.DP.ExecuteALU(alu.Sub, a0, a1); err != nil {
			return err
		}
		c.DP.LatchPS()
		c.tick(1)
	case isa.MOD:
		a2 := unaryOperand(f, 2)
		if err := c.stageThroughDR(a2); err != nil {
			return err
		}
		if err := c.DP.ExecuteALU(alu.Mod, a1, "dr"); err != nil {
			return err
		}
		c.DP.LatchPS()
		if err := c.DP.LatchRegister(a0); err != nil {
			return err
		}
		c.tick(1)
	case isa.DIV:
		a2 := unaryOperand(f, 2)
		if err := c.stageThroughDR(a2); err != nil {
			return err
		}
		if err := c.DP.ExecuteALU(alu.Div, a1, "dr"); err != nil {
			return err
		}
		c.DP.LatchPS()
		if err := c.DP.LatchRegister(a0); err != nil {
			return err
		}
		c.tick(1)
	default:
		return fault("cpu: %s is not a binary opcode", op)
	}
	return nil
}

func (c *ControlUnit) stageThroughDR(name string) error {
	if err := c.DP.ExecuteALU(alu.SkipLeft, name, "0"); err != nil {
		return err
	}
	if err := c.DP.LatchDR(datapath.FromALU); err != nil {
		return err
	}
	c.tick(1)
	return nil
}

// executeIO implements IN/OUT (§4.3.5).
func (c *ControlUnit) executeIO(op isa.Opcode, word uint32) error {
	f := isa.DecodeNonAddressed(word)
	reg := unaryOperand(f, 0)
	port := int(f.Arg[1])

	switch op {
	case isa.IN:
		if err := c.DP.Input(port); err != nil {
			return err
		}
		c.tick(1)
		if err := c.DP.ExecuteALU(alu.SkipRight, "0", "dr"); err != nil {
			return err
		}
		if err := c.DP.LatchRegister(reg); err != nil {
			return err
		}
		c.tick(1)
	case isa.OUT:
		if err := c.DP.ExecuteALU(alu.SkipLeft, reg, "0"); err != nil {
			return err
		}
		if err := c.DP.LatchDR(datapath.FromALU); err != nil {
			return err
		}
		c.tick(1)
		c.DP.Output(port)
		c.tick(1)
	default:
		return fault("cpu: %s is not an IO opcode", op)
	}
	return nil
}

// executeZeroArg implements HLT/IRET/RET/NOP/INT (§4.3.6). INT is defined
// in the opcode table but never dispatched anywhere in the source this
// machine is modeled on; it decodes cleanly and costs no ticks.
func (c *ControlUnit) executeZeroArg(op isa.Opcode) error {
	switch op {
	case isa.HLT:
		c.Running = false
		c.tick(1)
	case isa.RET:
		c.IP = uint32(c.DP.PopValue())
		c.tick(1)
	case isa.IRET:
		c.IP = uint32(c.DP.PopValue())
		c.tick(1)
		savedE := c.DP.PS.E
		newPS := datapath.Unpack(c.DP.PopValue())
		newPS.E = savedE
		c.DP.PS = newPS
		c.tick(1)
		for i := isa.NumRegisters - 1; i >= 0; i-- {
			if err := c.DP.Pop(regName(uint32(i))); err != nil {
				return err
			}
			c.tick(1)
		}
	case isa.NOP, isa.INT:
		// no effect
	default:
		return fault("cpu: %s is not a zero-argument opcode", op)
	}
	return nil
}

// renewInput advances the sliding window over the port's pending events:
// drop every event whose tick has passed except the most recent one, which
// stays at the head as the candidate for delivery. This preserves the
// source's behavior of delivering a stale event rather than discarding it.
func (c *ControlUnit) renewInput(port int) {
	events := c.DP.InPorts[port]
	lastDue := -1
	for i, ev := range events {
		if ev.Tick <= c.Tick {
			lastDue = i
		} else {
			break
		}
	}
	if lastDue > 0 {
		c.DP.InPorts[port] = events[lastDue:]
	}
}

// checkInterruption runs after every completed instruction (§4.4): it
// advances the input window, then raises an interrupt if interrupts are
// armed, PS.E is not set, and the port's head event is due.
func (c *ControlUnit) checkInterruption() {
	c.renewInput(schedule.Port)
	events := c.DP.InPorts[schedule.Port]
	if c.DP.PS.IA && !c.DP.PS.E && len(events) > 0 && events[0].Tick <= c.Tick {
		c.raiseInterrupt()
	}
}

// raiseInterrupt implements §4.4's context save: push every general
// register, push PS (bit-packed), push IP, then jump to the vector handler
// with interrupts disarmed.
func (c *ControlUnit) raiseInterrupt() {
	for i := 0; i < isa.NumRegisters; i++ {
		c.DP.Push(regName(uint32(i)))
		c.tick(1)
	}
	c.DP.PushValue(c.DP.PS.Pack())
	c.tick(1)
	c.DP.PushValue(int32(c.IP))
	c.tick(1)

	c.IP = isa.DecodeVec(c.DP.Code[0])
	c.DP.PS = datapath.PS{I: true, IA: false}
	c.tick(1)
}
