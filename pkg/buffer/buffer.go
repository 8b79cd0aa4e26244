// Package buffer provides the engine's dynamic byte accumulator: an
// append-and-shift sequence with amortized geometric growth. The connection
// state machine appends inbound transport bytes to one of these and shifts
// off whatever a driving pass has fully consumed; the engine's concatenation
// of a HEADERS frame with its CONTINUATION frames uses the same type.
package buffer

import (
	"github.com/mardukas/h2engine/pkg/errors"
)

const (
	// MinAlloc is the floor for any single growth step.
	MinAlloc = 256
	// GrowthFactor is the geometric growth multiplier applied once MinAlloc
	// is insufficient to satisfy an append.
	GrowthFactor = 1.5
	// MaxSize caps a single buffer's capacity; exceeding it is NoMemory
	// rather than an unbounded allocation, since the engine has no
	// independent backpressure mechanism of its own.
	MaxSize = 256 * 1024 * 1024
)

// Buffer is a growable byte sequence supporting Append, Shift and AsView.
// It is not safe for concurrent use; the engine's single-threaded contract
// makes this unnecessary.
type Buffer struct {
	data []byte
}

// New creates an empty Buffer.
func New() *Buffer {
	return &Buffer{}
}

// NewWithData creates a Buffer pre-populated with data. The slice is copied.
func NewWithData(data []byte) *Buffer {
	b := &Buffer{}
	b.data = append(b.data, data...)
	return b
}

// Len returns the number of bytes currently held.
func (b *Buffer) Len() int {
	return len(b.data)
}

// Append copies p onto the end of the buffer, growing geometrically (factor
// GrowthFactor, floor MinAlloc) when the existing capacity is insufficient.
// Returns NoMemory if the resulting size would exceed MaxSize.
func (b *Buffer) Append(p []byte) error {
	if len(p) == 0 {
		return nil
	}
	need := len(b.data) + len(p)
	if need > MaxSize {
		return errors.NewNoMemory("buffer.append", nil)
	}
	if need > cap(b.data) {
		newCap := cap(b.data)
		if newCap < MinAlloc {
			newCap = MinAlloc
		}
		for newCap < need {
			grown := int(float64(newCap) * GrowthFactor)
			if grown <= newCap {
				grown = newCap + MinAlloc
			}
			newCap = grown
		}
		if newCap > MaxSize {
			newCap = MaxSize
		}
		grown := make([]byte, len(b.data), newCap)
		copy(grown, b.data)
		b.data = grown
	}
	b.data = append(b.data, p...)
	return nil
}

// Shift discards the leading n bytes, compacting the backing array. n must
// not exceed Len(); a larger n is clamped to Len().
func (b *Buffer) Shift(n int) {
	if n <= 0 {
		return
	}
	if n >= len(b.data) {
		b.data = b.data[:0]
		return
	}
	copy(b.data, b.data[n:])
	b.data = b.data[:len(b.data)-n]
}

// AsView borrows the current contents. The returned slice is invalidated by
// the next Append or Shift call; callers that need to retain data past that
// point must copy it.
func (b *Buffer) AsView() []byte {
	return b.data
}

// Reset empties the buffer without releasing its backing array, so a
// connection can reuse it across many drive-loop passes.
func (b *Buffer) Reset() {
	b.data = b.data[:0]
}
