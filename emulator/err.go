package emulator

import (
	"errors"

	"github.com/ezrec/armsim/translate"
)

var f = translate.From

var (
	ErrNoProgram = errors.New(f("no program loaded"))
	ErrWatchType = errors.New(f("watch did not evaluate to a boolean"))
)

// ErrRuntime indicates the source location of a runtime error.
type ErrRuntime struct {
	LineNo  int
	Address int
	Err     error
}

func (err *ErrRuntime) Error() string {
	return f("line %d (%#04x): %v", err.LineNo, err.Address, err.Err)
}

func (err *ErrRuntime) Unwrap() error {
	return err.Err
}

// ErrWatch is a watch expression that failed to compile or evaluate.
type ErrWatch struct {
	Expr string
	Err  error
}

func (err *ErrWatch) Error() string {
	return f("watch '%v': %v", err.Expr, err.Err)
}

func (err *ErrWatch) Unwrap() error {
	return err.Err
}
