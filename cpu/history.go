package cpu

import (
	"iter"
	"slices"
)

const (
	HISTORY_LIMIT = 500 // Maximum retained snapshots.
)

// Snapshot is the register and status state before an instruction.
type Snapshot struct {
	Registers [REGISTER_COUNT]int32
	Status    uint32
}

// History is a bounded FIFO of snapshots. When full, pushing evicts the
// oldest entry.
type History struct {
	Data []Snapshot
}

func (h *History) Push(snap Snapshot) {
	if h.Full() {
		h.Data = slices.Delete(h.Data, 0, 1)
	}
	h.Data = append(h.Data, snap)
}

func (h *History) Pop() (snap Snapshot, ok bool) {
	snap, ok = h.Peek()
	if ok {
		h.Data = h.Data[:len(h.Data)-1]
	}
	return
}

// Peek returns the most recent snapshot.
func (h *History) Peek() (snap Snapshot, ok bool) {
	if h.Empty() {
		return
	}

	return h.Data[len(h.Data)-1], true
}

func (h *History) Len() int {
	return len(h.Data)
}

func (h *History) Empty() bool {
	return len(h.Data) == 0
}

func (h *History) Full() bool {
	return len(h.Data) >= HISTORY_LIMIT
}

// All iterates from oldest to newest.
func (h *History) All() iter.Seq2[int, Snapshot] {
	return slices.All(h.Data)
}

func (h *History) Reset() {
	if len(h.Data) > 0 {
		h.Data = h.Data[:0]
	}
}
