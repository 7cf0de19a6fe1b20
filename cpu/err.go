package cpu

import (
	"errors"

	"github.com/ezrec/armsim/translate"
)

var f = translate.From

var (
	// Cpu errors
	ErrOpcodeDecode = errors.New(f("unimplemented instruction"))
	ErrOperandShape = errors.New(f("malformed operands"))

	// Assembler errors
	ErrInvalidSyntax   = errors.New(f("invalid syntax"))
	ErrOpcodeInvalid   = errors.New(f("unknown instruction"))
	ErrOperandCount    = errors.New(f("wrong number of operands"))
	ErrOperandUnknown  = errors.New(f("unknown operand"))
	ErrRegisterInvalid = errors.New(f("register expected"))
	ErrMemoryInvalid   = errors.New(f("memory reference expected"))
	ErrMemoryBase      = errors.New(f("invalid memory base"))
	ErrMemoryOffset    = errors.New(f("invalid memory offset"))
	ErrTargetInvalid   = errors.New(f("branch target invalid"))
)

// ErrOpcode is an unrecognized opcode mnemonic.
type ErrOpcode string

func (err ErrOpcode) Error() string {
	return f("unknown instruction '%v'", string(err))
}

func (err ErrOpcode) Is(target error) bool {
	return target == ErrOpcodeInvalid
}

// ErrSyntax is a malformed source line.
type ErrSyntax struct {
	LineNo int
	Line   string
	Err    error
}

func (err ErrSyntax) Error() string {
	return f("line %d: %v", err.LineNo, err.Err)
}

func (err ErrSyntax) Unwrap() error {
	return err.Err
}

// ErrResolve is an operand that could not be classified.
type ErrResolve struct {
	LineNo  int
	Operand string
	Err     error
}

func (err ErrResolve) Error() string {
	return f("line %d: %v '%v'", err.LineNo, err.Err, err.Operand)
}

func (err ErrResolve) Unwrap() error {
	return err.Err
}

type ErrParseNumber string

func (err ErrParseNumber) Error() string {
	return f("'%v' is not a number", string(err))
}

type ErrParseExpression string

func (err ErrParseExpression) Error() string {
	return f("$(%v) is not a valid expression", string(err))
}

// ErrExecution is a fault raised while executing an instruction.
type ErrExecution struct {
	Address int
	LineNo  int
	Op      Op
	Err     error
}

func (err ErrExecution) Error() string {
	return f("%v at %#04x (line %d): %v", err.Op, err.Address, err.LineNo, err.Err)
}

func (err ErrExecution) Unwrap() error {
	return err.Err
}
