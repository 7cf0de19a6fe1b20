package internal

import (
	"iter"
)

// Concat2 concatenates several key/value sequences into a single sequence.
func Concat2[K any, V any](seqs ...iter.Seq2[K, V]) iter.Seq2[K, V] {
	return func(yield func(K, V) bool) {
		for _, seq := range seqs {
			for key, val := range seq {
				if !yield(key, val) {
					return
				}
			}
		}
	}
}

// Chunks splits data into runs of at most width items, each keyed by
// base plus its offset into data.
func Chunks[T any](base int, data []T, width int) iter.Seq2[int, []T] {
	return func(yield func(int, []T) bool) {
		if width <= 0 {
			return
		}
		for off := 0; off < len(data); off += width {
			end := min(off+width, len(data))
			if !yield(base+off, data[off:end]) {
				return
			}
		}
	}
}
