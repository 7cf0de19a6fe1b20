// Copyright 2024, Jason S. McMullan <jason.mcmullan@gmail.com>

package emulator

import (
	"io"
	"iter"
	"log"
	"maps"
	"slices"

	"github.com/ezrec/armsim/cpu"
	"github.com/ezrec/armsim/internal"
	"github.com/ezrec/armsim/memory"
)

const (
	MEMORY_SIZE = memory.MEMORY_SIZE // Memory capacity of a session.
	RUN_STEPS   = 1000               // Default step budget for Run.
	DUMP_WIDTH  = 16                 // Bytes per Dump row.
)

// Stop is the reason Run returned.
type Stop int

//go:generate go tool stringer -linecomment -type=Stop
const (
	STOP_BUDGET     = Stop(0) // budget
	STOP_HALTED     = Stop(1) // halted
	STOP_BREAKPOINT = Stop(2) // breakpoint
	STOP_WATCH      = Stop(3) // watch
	STOP_FAULT      = Stop(4) // fault
)

// Emulator is one simulation session: CPU + Memory + Program, along with
// the breakpoints and watches of its host.
type Emulator struct {
	Verbose  bool           // If set, enables verbose logging.
	*cpu.Cpu                // Reference to the CPU simulation.
	Memory   *memory.Memory // Memory attached to the CPU.
	Program  *cpu.Program   // Reference to the currently loaded program.

	breakpoints map[int]bool
	watches     []*Watch
}

// NewEmulator creates a new emulator with its own CPU and memory.
func NewEmulator() (emu *Emulator) {
	mem := memory.NewMemory(MEMORY_SIZE)

	emu = &Emulator{
		Cpu:         cpu.NewCpu(mem),
		Memory:      mem,
		breakpoints: make(map[int]bool),
	}

	return
}

// Load assembles source and loads it. On error, the previously loaded
// program is kept.
func (emu *Emulator) Load(source io.Reader) (err error) {
	asm := &cpu.Assembler{Verbose: emu.Verbose}

	prog, err := asm.Parse(source)
	if err != nil {
		return
	}

	emu.Program = prog
	emu.Cpu.Verbose = emu.Verbose
	emu.Memory.Verbose = emu.Verbose
	emu.Cpu.LoadProgram(prog)
	emu.Memory.Reset()

	if emu.Verbose {
		log.Printf("emulator: loaded %d instructions", len(prog.Instructions))
	}

	return
}

// Reset the CPU and memory, keeping the program.
func (emu *Emulator) Reset() {
	emu.Cpu.Verbose = emu.Verbose
	emu.Memory.Verbose = emu.Verbose

	emu.Cpu.Reset()
	emu.Memory.Reset()
}

// LineNo returns the current line number for the executing instruction,
// or 0 if there is none.
func (emu *Emulator) LineNo() int {
	if emu.Program == nil {
		return 0
	}

	return emu.Program.LineNo(int(emu.Cpu.Pc()))
}

// Tick performs a single step of the emulator.
func (emu *Emulator) Tick() (done bool, err error) {
	if emu.Program == nil {
		err = ErrNoProgram
		return
	}

	emu.Cpu.Verbose = emu.Verbose

	lineno := emu.LineNo()
	address := int(emu.Cpu.Pc())
	defer func() {
		if err != nil {
			err = &ErrRuntime{LineNo: lineno, Address: address, Err: err}
		}
	}()

	err = emu.Cpu.Step()
	done = emu.Cpu.State() != cpu.STATE_READY

	return
}

// Run executes up to maxSteps instructions. It stops early when the CPU
// halts or faults, when the next instruction is on a breakpoint line, or
// when a watch becomes true. A session that starts on a breakpoint first
// executes that instruction, so that repeated Runs make progress.
func (emu *Emulator) Run(maxSteps int) (steps int, stop Stop, err error) {
	if emu.Program == nil {
		err = ErrNoProgram
		return
	}

	emu.Cpu.Verbose = emu.Verbose

	for {
		if emu.Cpu.State() != cpu.STATE_READY {
			stop = STOP_HALTED
			return
		}
		if steps >= maxSteps {
			stop = STOP_BUDGET
			return
		}

		lineno := emu.LineNo()
		if steps > 0 && emu.breakpoints[lineno] {
			stop = STOP_BREAKPOINT
			return
		}

		address := int(emu.Cpu.Pc())
		var n int
		n, err = emu.Cpu.Run(1)
		steps += n
		if err != nil {
			stop = STOP_FAULT
			err = &ErrRuntime{LineNo: lineno, Address: address, Err: err}
			return
		}

		var hit bool
		hit, err = emu.checkWatches()
		if err != nil {
			stop = STOP_FAULT
			return
		}
		if hit {
			stop = STOP_WATCH
			return
		}
	}
}

// SetBreakpoint sets a breakpoint on a source line.
func (emu *Emulator) SetBreakpoint(lineno int) {
	emu.breakpoints[lineno] = true
}

// ClearBreakpoint removes a breakpoint from a source line.
func (emu *Emulator) ClearBreakpoint(lineno int) {
	delete(emu.breakpoints, lineno)
}

// ToggleBreakpoint flips a breakpoint, returning if it is now set.
func (emu *Emulator) ToggleBreakpoint(lineno int) (set bool) {
	set = !emu.breakpoints[lineno]
	if set {
		emu.SetBreakpoint(lineno)
	} else {
		emu.ClearBreakpoint(lineno)
	}

	return
}

// Breakpoints returns the sorted breakpoint lines.
func (emu *Emulator) Breakpoints() []int {
	return slices.Sorted(maps.Keys(emu.breakpoints))
}

// Watch adds a watch expression. The expression is evaluated once
// against the current state to catch errors early.
func (emu *Emulator) Watch(expr string) (err error) {
	w := &Watch{Expr: expr}

	_, err = w.Eval(emu)
	if err != nil {
		return
	}

	emu.watches = append(emu.watches, w)
	return
}

// Watches returns the watch expressions.
func (emu *Emulator) Watches() (exprs []string) {
	for _, w := range emu.watches {
		exprs = append(exprs, w.Expr)
	}
	return
}

// ClearWatches removes all watches.
func (emu *Emulator) ClearWatches() {
	emu.watches = nil
}

// checkWatches returns true if any watch is true.
func (emu *Emulator) checkWatches() (hit bool, err error) {
	for _, w := range emu.watches {
		hit, err = w.Eval(emu)
		if err != nil || hit {
			if hit && emu.Verbose {
				log.Printf("emulator: watch '%v' hit at line %d", w.Expr, emu.LineNo())
			}
			return
		}
	}

	return
}

// Dump reads count bytes of memory at address, as rows of DUMP_WIDTH
// bytes keyed by their address.
func (emu *Emulator) Dump(address int, count int) (rows iter.Seq2[int, []byte], err error) {
	data, err := emu.Memory.Read(address, count)
	if err != nil {
		return
	}

	rows = internal.Chunks(address, data, DUMP_WIDTH)
	return
}

// Values iterates over the CPU registers and status, followed by the
// session's halted flag and current line.
func (emu *Emulator) Values() iter.Seq2[string, uint32] {
	session := func(yield func(name string, value uint32) bool) {
		var halted uint32
		if emu.Cpu.Halted() {
			halted = 1
		}
		if !yield("HALTED", halted) {
			return
		}
		yield("LINE", uint32(emu.LineNo()))
	}

	return internal.Concat2(emu.Cpu.Values(), session)
}
