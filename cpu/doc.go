// Package cpu implements the processor and assembler for the armsim teaching
// simulator.
//
// The CPU is a simplified ARM-like machine: sixteen signed 32-bit registers
// (r13 = SP, r14 = LR, r15 = PC), a status register with N/Z/C/V flags, and
// a byte addressed memory reached through a Bus. Instructions are fetched
// from an assembled Program, indexed by PC/4, and a bounded history of
// register snapshots is kept so that a host can inspect past state.
//
// The assembler is a two pass assembler for a small ARM subset (MOV, ADD,
// SUB, MUL, AND, ORR, EOR, LSL, LSR, CMP, B, BEQ, BNE, LDR, STR), supporting
// labels, forward references, and compile-time $(...) expressions.
package cpu
