// SPDX-License-Identifier: MIT
/*
Package buffer implements the fixed-capacity sample stores used by the tuner.

A Buffer is parameterised by two choices made at construction:
  - overwrite policy: Linear buffers refuse writes past capacity, Ring
    buffers wrap and silently overwrite the oldest slots.
  - slot width: scalar buffers hold one value per slot, vector buffers hold
    a fixed-size frame per slot (one FFT spectrum for example).

Storage is allocated once. Append never allocates, which keeps ring buffers
usable on the analysis hot path at audio rates.

Buffers are not safe for concurrent use. The tuner touches them only from
the analysis goroutine.
*/
package buffer

import (
	"errors"
	"fmt"
	"math"
)

// ErrCapacityExceeded is returned when a Linear buffer cannot hold an append.
// It points at a sizing bug upstream; Ring buffers never return it.
var ErrCapacityExceeded = errors.New("buffer capacity exceeded")

// Policy selects what happens when a write does not fit.
type Policy int

const (
	Linear Policy = iota // fail with ErrCapacityExceeded
	Ring                 // wrap around and overwrite the oldest slots
)

// String returns the policy name.
func (p Policy) String() string {
	switch p {
	case Linear:
		return "linear"
	case Ring:
		return "ring"
	default:
		return "unknown"
	}
}

// Buffer is a time-indexed store of float32 samples.
type Buffer struct {
	policy     Policy
	width      int       // values per slot
	capacity   int       // slots
	data       []float32 // capacity*width values
	filled     int       // slots ever written; never wraps
	sampleRate float64   // slots per second
	tMin       float64
}

// New allocates a buffer holding sampleRate*seconds slots of width values.
// Width must be at least 1 and sampleRate must be positive.
func New(policy Policy, sampleRate, seconds float64, width int, tMin float64) *Buffer {
	if width < 1 {
		panic(fmt.Sprintf("buffer: slot width must be >= 1, got %d", width))
	}
	if sampleRate <= 0 || seconds <= 0 {
		panic(fmt.Sprintf("buffer: sample rate and length must be positive, got %g Hz, %g s", sampleRate, seconds))
	}

	capacity := int(math.Round(sampleRate * seconds))
	if capacity < 1 {
		capacity = 1
	}

	return &Buffer{
		policy:     policy,
		width:      width,
		capacity:   capacity,
		data:       make([]float32, capacity*width),
		sampleRate: sampleRate,
		tMin:       tMin,
	}
}

// NewLinear returns a scalar buffer that fails when full.
func NewLinear(sampleRate, seconds float64) *Buffer {
	return New(Linear, sampleRate, seconds, 1, 0)
}

// NewRing returns a scalar buffer that wraps when full.
func NewRing(sampleRate, seconds float64) *Buffer {
	return New(Ring, sampleRate, seconds, 1, 0)
}

// NewRing2D returns a wrapping buffer whose slots hold width values each.
func NewRing2D(width int, sampleRate, seconds float64) *Buffer {
	return New(Ring, sampleRate, seconds, width, 0)
}

func (b *Buffer) Policy() Policy      { return b.policy }
func (b *Buffer) Width() int          { return b.width }
func (b *Buffer) Capacity() int       { return b.capacity }
func (b *Buffer) SampleRate() float64 { return b.sampleRate }
func (b *Buffer) TMin() float64       { return b.tMin }

// Filled returns the number of slots ever written. For ring buffers this
// keeps growing past Capacity.
func (b *Buffer) Filled() int { return b.filled }

// Retained returns how many of the most recent slots are still stored.
func (b *Buffer) Retained() int { return min(b.filled, b.capacity) }

// Delta is the time between two slots in seconds.
func (b *Buffer) Delta() float64 { return 1 / b.sampleRate }

// TMax is the time just past the last slot of a linear buffer.
func (b *Buffer) TMax() float64 { return b.tMin + float64(b.capacity)*b.Delta() }

// TFilled is the time up to which data has been written.
func (b *Buffer) TFilled() float64 { return b.XAt(b.filled) }

// XAt returns the time of slot i, counted from the first write.
func (b *Buffer) XAt(i int) float64 { return b.tMin + float64(i)/b.sampleRate }

// IndexAtTime returns the slot closest to time t.
func (b *Buffer) IndexAtTime(t float64) int {
	return int(math.Round((t - b.tMin) * b.sampleRate))
}

// Reset forgets all written data. Storage is kept.
func (b *Buffer) Reset() {
	b.filled = 0
	clear(b.data)
}

// Append writes len(d)/Width slots. len(d) must be a multiple of Width.
//
// Linear buffers write nothing and return ErrCapacityExceeded when the slots
// do not fit. Ring buffers always succeed; if d is longer than the whole
// buffer only its tail is kept.
func (b *Buffer) Append(d []float32) error {
	if len(d)%b.width != 0 {
		panic(fmt.Sprintf("buffer: append of %d values is not a multiple of slot width %d", len(d), b.width))
	}
	n := len(d) / b.width
	if n == 0 {
		return nil
	}

	if b.policy == Linear {
		if b.filled+n > b.capacity {
			return fmt.Errorf("%w: %d + %d slots > %d", ErrCapacityExceeded, b.filled, n, b.capacity)
		}
		copy(b.data[b.filled*b.width:], d)
		b.filled += n
		return nil
	}

	skip := 0
	if n > b.capacity {
		skip = n - b.capacity
	}
	src := d[skip*b.width:]
	start := ((b.filled + skip) % b.capacity) * b.width
	k := copy(b.data[start:], src)
	copy(b.data, src[k:])
	b.filled += n
	return nil
}

// AppendValue writes a single value into a scalar buffer.
func (b *Buffer) AppendValue(v float32) error {
	var one [1]float32
	one[0] = v
	return b.Append(one[:])
}

// LatestIndices returns the [start, stop) slot range covering the last
// seconds of data, in the unbounded write-counter domain. For ring buffers
// start never reaches further back than the retained history.
func (b *Buffer) LatestIndices(seconds float64) (int, int) {
	n := int(seconds * b.sampleRate)
	n = max(min(n, b.Retained()), 0)
	return b.filled - n, b.filled
}

// LatestFrame returns times and values of the last seconds of data. For
// vector buffers y holds len(x)*Width values.
func (b *Buffer) LatestFrame(seconds float64) ([]float64, []float32) {
	start, stop := b.LatestIndices(seconds)
	return b.frame(start, stop)
}

// LatestFrameData returns a contiguous copy of the last n slots. It reports
// false if fewer than n slots were ever written, and also when n is larger
// than the capacity of a ring buffer, where the oldest of the requested
// slots would already have been overwritten.
func (b *Buffer) LatestFrameData(n int) ([]float32, bool) {
	if n < 0 || n > b.Retained() {
		return nil, false
	}
	_, y := b.frame(b.filled-n, b.filled)
	return y, true
}

// LatestFrameDataInto copies the last len(dst)/Width slots into dst without
// allocating. It reports false under the same conditions as LatestFrameData.
func (b *Buffer) LatestFrameDataInto(dst []float32) bool {
	n := len(dst) / b.width
	if n > b.Retained() {
		return false
	}
	b.copySlots(dst, b.filled-n, b.filled)
	return true
}

// Latest returns a copy of the most recently written slot.
func (b *Buffer) Latest() ([]float32, bool) {
	return b.LatestFrameData(1)
}

// YData returns the retained values in write order.
func (b *Buffer) YData() []float32 {
	_, y := b.frame(b.filled-b.Retained(), b.filled)
	return y
}

// XData returns the times of the retained slots.
func (b *Buffer) XData() []float64 {
	x, _ := b.frame(b.filled-b.Retained(), b.filled)
	return x
}

// Energy sums squared values in consecutive blocks of block slots over the
// most recent window slots. x holds the time of the first slot of each block.
// The window is clamped to the retained history and rounded down to whole
// blocks. Only scalar buffers have an energy.
func (b *Buffer) Energy(window, block int) ([]float64, []float64) {
	if b.width != 1 {
		panic("buffer: energy of a vector buffer")
	}
	if block < 1 {
		block = 1
	}
	window = min(window, b.Retained())
	nblocks := window / block
	if nblocks <= 0 {
		return nil, nil
	}

	start := b.filled - nblocks*block
	x := make([]float64, nblocks)
	e := make([]float64, nblocks)
	for i := 0; i < nblocks; i++ {
		first := start + i*block
		x[i] = b.XAt(first)
		var sum float64
		for k := first; k < first+block; k++ {
			v := float64(b.data[k%b.capacity])
			sum += v * v
		}
		e[i] = sum
	}
	return x, e
}

// frame copies slots [start, stop) out of storage.
func (b *Buffer) frame(start, stop int) ([]float64, []float32) {
	n := stop - start
	x := make([]float64, n)
	for i := range x {
		x[i] = b.XAt(start + i)
	}
	y := make([]float32, n*b.width)
	b.copySlots(y, start, stop)
	return x, y
}

// copySlots copies slots [start, stop) into dst, unwrapping ring storage.
func (b *Buffer) copySlots(dst []float32, start, stop int) {
	if stop <= start {
		return
	}
	if b.policy == Linear {
		copy(dst, b.data[start*b.width:stop*b.width])
		return
	}
	first := (start % b.capacity) * b.width
	total := (stop - start) * b.width
	k := copy(dst[:total], b.data[first:])
	copy(dst[k:total], b.data)
}
