package memory

import (
	"errors"

	"github.com/ezrec/armsim/translate"
)

var f = translate.From

var (
	// ErrAccess is matched by every out of range access.
	ErrAccess = errors.New(f("memory access violation"))
)

// ErrFault reports an access outside of the memory capacity.
type ErrFault struct {
	Address int // Faulting address.
	Size    int // Width of the attempted access, in bytes.
}

func (err *ErrFault) Error() string {
	return f("memory access violation at address %#x", err.Address)
}

func (err *ErrFault) Is(target error) bool {
	return target == ErrAccess
}
