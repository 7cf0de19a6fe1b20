package cpu

import (
	"fmt"
	"iter"
	"log"
)

// Bus is the memory interface seen by the CPU.
type Bus interface {
	Read32(address int) (uint32, error)
	Write32(address int, value uint32) error
}

// State is the execution state of the CPU.
type State int

//go:generate go tool stringer -linecomment -type=State
const (
	STATE_IDLE   = State(0) // idle
	STATE_READY  = State(1) // ready
	STATE_HALTED = State(2) // halted
)

// Cpu is the simulation context for the processor.
type Cpu struct {
	Verbose bool // Set to enable verbose logging.

	Bus Bus // Memory attached to the CPU.

	Register [REGISTER_COUNT]int32 // Register bank. r15 is the PC.
	Cpsr     uint32                // Status register.
	History  History               // Snapshots taken before each instruction.

	program *Program
	halted  bool
}

// NewCpu creates a new CPU attached to a memory bus.
func NewCpu(bus Bus) (cpu *Cpu) {
	cpu = &Cpu{
		Bus: bus,
	}

	return
}

// LoadProgram replaces the instruction stream, and resets the CPU.
func (cpu *Cpu) LoadProgram(prog *Program) {
	cpu.program = prog
	cpu.Reset()
}

// Program returns the loaded program, or nil.
func (cpu *Cpu) Program() *Program {
	return cpu.program
}

// Reset the CPU state.
// - Clears the registers and status.
// - Clears the history.
// - Leaves the halted state.
// The loaded program is kept.
func (cpu *Cpu) Reset() {
	if cpu.Verbose {
		log.Printf("cpu: reset")
	}

	clear(cpu.Register[:])
	cpu.Cpsr = 0
	cpu.History.Reset()
	cpu.halted = false
}

// State returns the current execution state.
func (cpu *Cpu) State() State {
	switch {
	case cpu.program == nil:
		return STATE_IDLE
	case cpu.halted:
		return STATE_HALTED
	}
	return STATE_READY
}

// Halted returns true once execution has ended or faulted.
func (cpu *Cpu) Halted() bool {
	return cpu.halted
}

// Pc returns the program counter.
func (cpu *Cpu) Pc() int32 {
	return cpu.Register[REG_PC]
}

// Registers returns a copy of the register file.
func (cpu *Cpu) Registers() [REGISTER_COUNT]int32 {
	return cpu.Register
}

// Status returns the raw status register.
func (cpu *Cpu) Status() uint32 {
	return cpu.Cpsr
}

// Flag returns true if any of the flags in mask are set.
func (cpu *Cpu) Flag(mask uint32) bool {
	return (cpu.Cpsr & mask) != 0
}

// SetFlag sets or clears the flags in mask.
func (cpu *Cpu) SetFlag(mask uint32, value bool) {
	if value {
		cpu.Cpsr |= mask
	} else {
		cpu.Cpsr &^= mask
	}
}

// Snapshot captures the registers and status.
func (cpu *Cpu) Snapshot() Snapshot {
	return Snapshot{
		Registers: cpu.Register,
		Status:    cpu.Cpsr,
	}
}

// Values iterates over the register names and values, then the status
// register.
func (cpu *Cpu) Values() iter.Seq2[string, uint32] {
	return func(yield func(name string, value uint32) bool) {
		for n, reg := range cpu.Register {
			if !yield(RegisterName(n), uint32(reg)) {
				return
			}
		}
		yield("CPSR", cpu.Cpsr)
	}
}

// String returns the current CPU state as a string.
func (cpu *Cpu) String() (text string) {
	for n, val := range cpu.Register {
		text += fmt.Sprintf("% 5s: %04X_%04X (%d)\n", RegisterName(n), uint32(val)>>16, uint32(val)&0xffff, val)
	}

	flags := []byte("nzcv")
	for n, mask := range []uint32{FLAG_N, FLAG_Z, FLAG_C, FLAG_V} {
		if cpu.Flag(mask) {
			flags[n] -= 'a' - 'A'
		}
	}
	text += fmt.Sprintf("% 5s: %v\n", "cpsr", string(flags))
	text += fmt.Sprintf("% 5s: %v\n", "state", cpu.State())

	return
}

// fetch returns the instruction at the PC, if there is one.
func (cpu *Cpu) fetch() (inst *Instruction, ok bool) {
	pc := cpu.Register[REG_PC]
	if pc < 0 {
		return
	}

	index := int(pc / INSTRUCTION_SIZE)
	if index >= len(cpu.program.Instructions) {
		return
	}

	return &cpu.program.Instructions[index], true
}

// Step executes a single instruction. It does nothing when halted or no
// program is loaded. A fault halts the CPU and is returned.
func (cpu *Cpu) Step() (err error) {
	_, err = cpu.step()
	return
}

// step executes one instruction, reporting if one was executed.
func (cpu *Cpu) step() (executed bool, err error) {
	if cpu.State() != STATE_READY {
		return
	}

	inst, ok := cpu.fetch()
	if !ok {
		cpu.halt()
		return
	}

	cpu.History.Push(cpu.Snapshot())

	executed = true
	err = cpu.Execute(inst)
	if err != nil {
		cpu.halt()
		err = &ErrExecution{Address: inst.Address, LineNo: inst.LineNo, Op: inst.Op, Err: err}
		return
	}

	// Halt as soon as the PC leaves the program.
	if _, ok = cpu.fetch(); !ok {
		cpu.halt()
	}

	return
}

func (cpu *Cpu) halt() {
	if cpu.Verbose && !cpu.halted {
		log.Printf("cpu: halt at %04x", cpu.Register[REG_PC])
	}
	cpu.halted = true
}

// Run steps until halted, a fault, or maxSteps instructions have
// executed. It returns the number of instructions executed.
func (cpu *Cpu) Run(maxSteps int) (steps int, err error) {
	for steps < maxSteps && cpu.State() == STATE_READY {
		var executed bool
		executed, err = cpu.step()
		if err != nil || !executed {
			return
		}
		steps++
	}

	return
}

// Execute executes a single instruction, then advances the PC.
// An instruction that writes the PC replaces the default PC+4.
func (cpu *Cpu) Execute(inst *Instruction) (err error) {
	err = checkShape(inst.Op, inst.Operands)
	if err != nil {
		return
	}

	if cpu.Verbose {
		log.Printf("%04x: %v", cpu.Register[REG_PC], inst)
	}

	next_pc := cpu.Register[REG_PC] + INSTRUCTION_SIZE
	branched := false

	set_target := func(reg int32, value int32) {
		cpu.Register[reg] = value
		if reg == REG_PC {
			branched = true
		}
	}
	jump := func(target Operand) {
		set_target(REG_PC, cpu.value(target))
	}

	args := inst.Operands

	switch inst.Op {
	case OP_MOV:
		output := cpu.value(args[1])
		set_target(args[0].Value, output)
		cpu.updateFlags(output)
	case OP_ADD, OP_SUB, OP_MUL, OP_AND, OP_ORR, OP_EOR, OP_LSL, OP_LSR:
		dst := args[0].Value
		input := cpu.Register[dst]
		arg := args[1]
		if len(args) == 3 {
			input = cpu.value(args[1])
			arg = args[2]
		}
		output := doAlu(inst.Op, input, cpu.value(arg))
		set_target(dst, output)
		cpu.updateFlags(output)
	case OP_CMP:
		cpu.updateFlags(doAlu(OP_SUB, cpu.value(args[0]), cpu.value(args[1])))
	case OP_B:
		jump(args[0])
	case OP_BEQ:
		if cpu.Flag(FLAG_Z) {
			jump(args[0])
		}
	case OP_BNE:
		if !cpu.Flag(FLAG_Z) {
			jump(args[0])
		}
	case OP_LDR:
		var word uint32
		word, err = cpu.Bus.Read32(cpu.address(args[1]))
		if err != nil {
			return
		}
		set_target(args[0].Value, int32(word))
	case OP_STR:
		err = cpu.Bus.Write32(cpu.address(args[1]), uint32(cpu.value(args[0])))
		if err != nil {
			return
		}
	default:
		err = ErrOpcodeDecode
		return
	}

	if !branched {
		if cpu.Verbose && inst.Op.Branch() {
			log.Printf("%04x: %v not taken", cpu.Register[REG_PC], inst.Op)
		}
		cpu.Register[REG_PC] = next_pc
	}

	return
}

// value gets the value of an operand used as a source.
func (cpu *Cpu) value(op Operand) (value int32) {
	switch op.Kind {
	case OPERAND_REGISTER:
		value = cpu.Register[op.Value]
	case OPERAND_IMMEDIATE, OPERAND_LABEL:
		value = op.Value
	case OPERAND_MEMORY:
		// Only LDR and STR dereference memory operands.
		value = 0
	}

	return
}

// address gets the effective address of a memory operand. The offset
// is not applied.
func (cpu *Cpu) address(op Operand) int {
	return int(cpu.Register[op.Value])
}

// updateFlags sets N and Z from a result. C and V are never computed.
func (cpu *Cpu) updateFlags(result int32) {
	cpu.SetFlag(FLAG_Z, result == 0)
	cpu.SetFlag(FLAG_N, result < 0)
}

// doAlu performs the requested ALU action, and returns the output value.
func doAlu(op Op, input int32, value int32) (output int32) {
	switch op {
	case OP_ADD:
		output = input + value
	case OP_SUB:
		output = input - value
	case OP_MUL:
		output = input * value
	case OP_AND:
		output = input & value
	case OP_ORR:
		output = input | value
	case OP_EOR:
		output = input ^ value
	case OP_LSL:
		output = int32(uint32(input) << (uint32(value) & 0x1f))
	case OP_LSR:
		output = int32(uint32(input) >> (uint32(value) & 0x1f))
	}

	return
}
