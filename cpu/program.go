package cpu

import (
	"fmt"
	"iter"
	"strings"
)

// Program is an assembled, address ordered instruction list.
type Program struct {
	Instructions []Instruction
}

// Debug returns the instruction at a byte address, or nil.
func (prog *Program) Debug(address int) (inst *Instruction) {
	if address < 0 || address%INSTRUCTION_SIZE != 0 {
		return
	}

	index := address / INSTRUCTION_SIZE
	if index < len(prog.Instructions) {
		inst = &prog.Instructions[index]
	}

	return
}

// LineNo returns the source line of the instruction at address,
// or 0 if there is none.
func (prog *Program) LineNo(address int) int {
	inst := prog.Debug(address)
	if inst == nil {
		return 0
	}

	return inst.LineNo
}

// Address returns the address of the instruction assembled from a
// source line.
func (prog *Program) Address(lineno int) (address int, ok bool) {
	for _, inst := range prog.Instructions {
		if inst.LineNo == lineno {
			return inst.Address, true
		}
	}

	return
}

// Lines iterates over the instructions by address.
func (prog *Program) Lines() iter.Seq2[int, *Instruction] {
	return func(yield func(address int, inst *Instruction) bool) {
		for n := range prog.Instructions {
			inst := &prog.Instructions[n]
			if !yield(inst.Address, inst) {
				return
			}
		}
	}
}

// String returns a listing of the program.
func (prog *Program) String() string {
	var text strings.Builder

	for address, inst := range prog.Lines() {
		fmt.Fprintf(&text, "%04x: %-24v ; line %d\n", address, inst.String(), inst.LineNo)
	}

	return text.String()
}
