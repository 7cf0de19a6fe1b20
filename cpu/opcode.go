package cpu

import (
	"fmt"
	"strings"
)

const (
	REGISTER_COUNT   = 16 // Size of the register file.
	REG_SP           = 13 // Stack pointer.
	REG_LR           = 14 // Link register.
	REG_PC           = 15 // Program counter, a byte address.
	INSTRUCTION_SIZE = 4  // Bytes per instruction.
)

// Status register flags.
const (
	FLAG_N = uint32(0x80000000) // Negative
	FLAG_Z = uint32(0x40000000) // Zero
	FLAG_C = uint32(0x20000000) // Carry, never computed.
	FLAG_V = uint32(0x10000000) // Overflow, never computed.
)

// Op is an instruction opcode.
type Op int

//go:generate go tool stringer -linecomment -type=Op
const (
	OP_MOV = Op(iota) // MOV
	OP_ADD            // ADD
	OP_SUB            // SUB
	OP_MUL            // MUL
	OP_AND            // AND
	OP_ORR            // ORR
	OP_EOR            // EOR
	OP_LSL            // LSL
	OP_LSR            // LSR
	OP_CMP            // CMP
	OP_B              // B
	OP_BEQ            // BEQ
	OP_BNE            // BNE
	OP_LDR            // LDR
	OP_STR            // STR
)

// opMap maps upper case mnemonics to opcodes.
var opMap = func() map[string]Op {
	ops := make(map[string]Op, int(OP_STR)+1)
	for op := OP_MOV; op <= OP_STR; op++ {
		ops[op.String()] = op
	}
	return ops
}()

// LookupOp returns the opcode for a mnemonic, in any case.
func LookupOp(name string) (op Op, ok bool) {
	op, ok = opMap[strings.ToUpper(name)]
	return
}

// Branch returns true for the branch family.
func (op Op) Branch() bool {
	return op == OP_B || op == OP_BEQ || op == OP_BNE
}

// RegisterName returns the conventional name of a register.
func RegisterName(index int) string {
	switch index {
	case REG_SP:
		return "SP"
	case REG_LR:
		return "LR"
	case REG_PC:
		return "PC"
	}
	return fmt.Sprintf("R%d", index)
}

// OperandKind tags the variant held by an Operand.
type OperandKind int

//go:generate go tool stringer -linecomment -type=OperandKind
const (
	OPERAND_REGISTER  = OperandKind(0) // register
	OPERAND_IMMEDIATE = OperandKind(1) // immediate
	OPERAND_MEMORY    = OperandKind(2) // memory
	OPERAND_LABEL     = OperandKind(3) // label
)

// Operand is a resolved instruction operand.
//
//   - OPERAND_REGISTER: Value is the register index.
//   - OPERAND_IMMEDIATE: Value is the immediate.
//   - OPERAND_MEMORY: Value is the base register index. Offset is parsed
//     from [Rn, #imm] but never applied.
//   - OPERAND_LABEL: Value is the absolute address of the label, and Text
//     its name. Executes exactly like an immediate.
type Operand struct {
	Kind   OperandKind
	Value  int32
	Offset int32
	Text   string
}

// Register makes a register operand.
func Register(index int) Operand {
	return Operand{Kind: OPERAND_REGISTER, Value: int32(index)}
}

// Immediate makes an immediate operand.
func Immediate(value int32) Operand {
	return Operand{Kind: OPERAND_IMMEDIATE, Value: value}
}

// Memory makes a memory reference operand through a base register.
func Memory(base int) Operand {
	return Operand{Kind: OPERAND_MEMORY, Value: int32(base)}
}

// Label makes an operand for a label resolved to address.
func Label(name string, address int) Operand {
	return Operand{Kind: OPERAND_LABEL, Value: int32(address), Text: name}
}

// validRegister is true if value indexes the register file.
func validRegister(value int32) bool {
	return value >= 0 && value < REGISTER_COUNT
}

func (op Operand) String() string {
	switch op.Kind {
	case OPERAND_REGISTER:
		return RegisterName(int(op.Value))
	case OPERAND_IMMEDIATE:
		return fmt.Sprintf("#%d", op.Value)
	case OPERAND_MEMORY:
		if op.Offset != 0 {
			return fmt.Sprintf("[%v, #%d]", RegisterName(int(op.Value)), op.Offset)
		}
		return fmt.Sprintf("[%v]", RegisterName(int(op.Value)))
	case OPERAND_LABEL:
		if len(op.Text) != 0 {
			return op.Text
		}
		return fmt.Sprintf("#%d", op.Value)
	}
	return "?"
}

// Instruction is a single assembled instruction.
type Instruction struct {
	Op       Op
	Operands []Operand
	LineNo   int    // 1-based source line.
	Address  int    // Byte address, a multiple of INSTRUCTION_SIZE.
	Line     string // Source text of the line.
}

func (inst Instruction) String() string {
	if len(inst.Operands) == 0 {
		return inst.Op.String()
	}

	args := make([]string, len(inst.Operands))
	for n, op := range inst.Operands {
		args[n] = op.String()
	}

	return fmt.Sprintf("%v %v", inst.Op, strings.Join(args, ", "))
}

// checkShape verifies that the operands fit the opcode.
func checkShape(op Op, operands []Operand) (err error) {
	for _, operand := range operands {
		switch operand.Kind {
		case OPERAND_REGISTER, OPERAND_MEMORY:
			if !validRegister(operand.Value) {
				return ErrRegisterInvalid
			}
		case OPERAND_IMMEDIATE, OPERAND_LABEL:
		default:
			return ErrOperandShape
		}
	}

	isReg := func(n int) bool { return operands[n].Kind == OPERAND_REGISTER }

	switch op {
	case OP_MOV, OP_CMP:
		if len(operands) != 2 {
			return ErrOperandCount
		}
		if !isReg(0) {
			return ErrRegisterInvalid
		}
	case OP_ADD, OP_SUB, OP_AND, OP_ORR, OP_EOR, OP_LSL, OP_LSR:
		if len(operands) != 2 && len(operands) != 3 {
			return ErrOperandCount
		}
		if !isReg(0) || (len(operands) == 3 && !isReg(1)) {
			return ErrRegisterInvalid
		}
	case OP_MUL:
		if len(operands) != 3 {
			return ErrOperandCount
		}
		if !isReg(0) || !isReg(1) {
			return ErrRegisterInvalid
		}
	case OP_B, OP_BEQ, OP_BNE:
		if len(operands) != 1 {
			return ErrOperandCount
		}
		if operands[0].Kind == OPERAND_MEMORY {
			return ErrTargetInvalid
		}
	case OP_LDR, OP_STR:
		if len(operands) != 2 {
			return ErrOperandCount
		}
		if !isReg(0) {
			return ErrRegisterInvalid
		}
		if operands[1].Kind != OPERAND_MEMORY {
			return ErrMemoryInvalid
		}
	default:
		return ErrOpcodeDecode
	}

	return
}
