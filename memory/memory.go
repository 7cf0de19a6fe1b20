// Package memory implements the flat, byte addressable store of the
// simulator with a little-endian 32-bit word view.
package memory

import (
	"encoding/binary"
	"log"
	"slices"
)

const (
	MEMORY_SIZE = 1024 // Default capacity, in bytes.
	WORD_SIZE   = 4    // Width of a word access, in bytes.
)

// Memory is a fixed capacity byte array.
type Memory struct {
	Verbose bool // If set, logs every write.

	data []byte
}

// NewMemory creates a zeroed memory of size bytes.
func NewMemory(size int) (mem *Memory) {
	mem = &Memory{
		data: make([]byte, size),
	}

	return
}

// Size returns the capacity in bytes.
func (mem *Memory) Size() int {
	return len(mem.data)
}

// Reset zeroes the backing store.
func (mem *Memory) Reset() {
	clear(mem.data)
}

// Check verifies that size bytes starting at address are addressable.
func (mem *Memory) Check(address int, size int) (err error) {
	if address < 0 || size < 0 || address+size > len(mem.data) {
		err = &ErrFault{Address: address, Size: size}
	}

	return
}

// Read8 reads a single byte.
func (mem *Memory) Read8(address int) (value uint8, err error) {
	err = mem.Check(address, 1)
	if err != nil {
		return
	}

	value = mem.data[address]
	return
}

// Write8 writes a single byte.
func (mem *Memory) Write8(address int, value uint8) (err error) {
	err = mem.Check(address, 1)
	if err != nil {
		return
	}

	if mem.Verbose {
		log.Printf("memory: %04x <= %02x", address, value)
	}

	mem.data[address] = value
	return
}

// Read32 reads a little-endian word. No alignment is required.
func (mem *Memory) Read32(address int) (value uint32, err error) {
	err = mem.Check(address, WORD_SIZE)
	if err != nil {
		return
	}

	value = binary.LittleEndian.Uint32(mem.data[address:])
	return
}

// Write32 writes a little-endian word. No alignment is required.
func (mem *Memory) Write32(address int, value uint32) (err error) {
	err = mem.Check(address, WORD_SIZE)
	if err != nil {
		return
	}

	if mem.Verbose {
		log.Printf("memory: %04x <= %08x", address, value)
	}

	binary.LittleEndian.PutUint32(mem.data[address:], value)
	return
}

// Read returns a copy of count bytes starting at address.
// The window must lie entirely inside the memory; it never wraps.
func (mem *Memory) Read(address int, count int) (data []byte, err error) {
	err = mem.Check(address, count)
	if err != nil {
		return
	}

	data = slices.Clone(mem.data[address : address+count])
	return
}
