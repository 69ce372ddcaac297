// SPDX-License-Identifier: MIT
package buffer

import (
	"errors"
	"fmt"
	"math"
	"testing"
)

func seq(from, to int) []float32 {
	out := make([]float32, 0, to-from)
	for i := from; i < to; i++ {
		out = append(out, float32(i))
	}
	return out
}

func equalF32(a, b []float32) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func equalF64(a, b []float64, tol float64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if math.Abs(a[i]-b[i]) > tol {
			return false
		}
	}
	return true
}

func TestLinearAppendTwoChunks(t *testing.T) {
	b := NewLinear(10, 10)

	if err := b.Append([]float32{0, 1, 2, 3, 4}); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := b.Append([]float32{5, 6, 7, 8, 9}); err != nil {
		t.Fatalf("append: %v", err)
	}

	if got := b.YData(); !equalF32(got, seq(0, 10)) {
		t.Errorf("ydata = %v, want 0..9", got)
	}
	want := []float64{0, 0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9}
	if got := b.XData(); !equalF64(got, want, 1e-12) {
		t.Errorf("xdata = %v, want %v", got, want)
	}
}

func TestLinearIndexAtTime(t *testing.T) {
	b := NewLinear(10, 10)
	for x := 0; x < 5; x++ {
		if err := b.Append([]float32{float32(x * 2), float32(x*2 + 1)}); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	for tm := 0.0; tm <= b.TMax(); tm += 0.37 {
		want := int(math.Round((tm - b.TMin()) * b.SampleRate()))
		if got := b.IndexAtTime(tm); got != want {
			t.Errorf("IndexAtTime(%g) = %d, want %d", tm, got, want)
		}
	}
	for sec := 0; sec < 10; sec++ {
		if got := b.IndexAtTime(float64(sec)); got != sec*10 {
			t.Errorf("IndexAtTime(%d) = %d, want %d", sec, got, sec*10)
		}
	}
}

func TestLinearOverflow(t *testing.T) {
	b := NewLinear(1, 10)
	if err := b.Append(seq(0, 8)); err != nil {
		t.Fatalf("append: %v", err)
	}

	err := b.Append(seq(0, 3))
	if !errors.Is(err, ErrCapacityExceeded) {
		t.Fatalf("expected ErrCapacityExceeded, got %v", err)
	}
	if b.Filled() != 8 {
		t.Errorf("failed append must not write, filled = %d", b.Filled())
	}

	if err := b.Append(seq(8, 10)); err != nil {
		t.Errorf("exact fill should succeed: %v", err)
	}
}

func TestLinearLatestFrame(t *testing.T) {
	const rate = 10.0
	b := NewLinear(rate, 180)

	if err := b.Append(seq(0, 20)); err != nil {
		t.Fatalf("append: %v", err)
	}
	x, y := b.LatestFrame(2)
	if !equalF32(y, seq(0, 20)) {
		t.Errorf("y = %v, want 0..19", y)
	}
	wantX := make([]float64, 20)
	for i := range wantX {
		wantX[i] = float64(i) / rate
	}
	if !equalF64(x, wantX, 1e-12) {
		t.Errorf("x = %v, want %v", x, wantX)
	}

	if err := b.Append(seq(0, 20)); err != nil {
		t.Fatalf("append: %v", err)
	}
	x, y = b.LatestFrame(1)
	if !equalF32(y, seq(10, 20)) {
		t.Errorf("y = %v, want 10..19", y)
	}
	for i := range x {
		if want := float64(30+i) / rate; math.Abs(x[i]-want) > 1e-12 {
			t.Errorf("x[%d] = %g, want %g", i, x[i], want)
		}
	}
}

func TestLinearLatestFrameReturnsInsertionOrder(t *testing.T) {
	for _, n := range []int{1, 7, 50, 100} {
		t.Run(fmt.Sprint(n), func(t *testing.T) {
			b := NewLinear(10, 10)
			if err := b.Append(seq(0, n)); err != nil {
				t.Fatalf("append: %v", err)
			}
			_, y := b.LatestFrame(float64(n) / 10)
			if !equalF32(y, seq(0, n)) {
				t.Errorf("got %v", y)
			}
		})
	}
}

func TestLinearLatestFrameDataNeedsHistory(t *testing.T) {
	b := NewLinear(1, 10)
	if err := b.Append(seq(0, 4)); err != nil {
		t.Fatalf("append: %v", err)
	}
	if _, ok := b.LatestFrameData(5); ok {
		t.Error("expected no data for n > filled")
	}
	got, ok := b.LatestFrameData(3)
	if !ok || !equalF32(got, []float32{1, 2, 3}) {
		t.Errorf("LatestFrameData(3) = %v, %v", got, ok)
	}
}

func TestRingWrapAround(t *testing.T) {
	r := NewRing(1, 10)
	for i := 0; i < 4; i++ {
		if err := r.Append([]float32{0, 1, 2}); err != nil {
			t.Fatalf("ring append must not fail: %v", err)
		}
	}

	if r.Filled() != 12 {
		t.Errorf("filled = %d, want 12", r.Filled())
	}
	if r.Retained() != 10 {
		t.Errorf("retained = %d, want 10", r.Retained())
	}

	got, ok := r.LatestFrameData(3)
	if !ok || !equalF32(got, []float32{0, 1, 2}) {
		t.Errorf("latest 3 = %v, %v; want [0 1 2]", got, ok)
	}

	// writes 2..11 of the sequence 0,1,2,0,1,2,...
	want := []float32{2, 0, 1, 2, 0, 1, 2, 0, 1, 2}
	got, ok = r.LatestFrameData(10)
	if !ok || !equalF32(got, want) {
		t.Errorf("latest 10 = %v, want %v", got, want)
	}
}

func TestRingKeepsLastCapacitySamples(t *testing.T) {
	const capacity = 16
	for k := 0; k < capacity; k++ {
		t.Run(fmt.Sprintf("k=%d", k), func(t *testing.T) {
			r := NewRing(capacity, 1)
			all := seq(0, capacity+k)
			// uneven chunks so writes straddle the wrap point
			for i := 0; i < len(all); i += 5 {
				end := min(i+5, len(all))
				if err := r.Append(all[i:end]); err != nil {
					t.Fatalf("append: %v", err)
				}
			}
			got, ok := r.LatestFrameData(capacity)
			if !ok {
				t.Fatal("expected data")
			}
			if !equalF32(got, all[len(all)-capacity:]) {
				t.Errorf("got %v, want %v", got, all[len(all)-capacity:])
			}
		})
	}
}

func TestRingChunkLongerThanCapacity(t *testing.T) {
	r := NewRing(1, 4)
	if err := r.Append(seq(0, 10)); err != nil {
		t.Fatalf("append: %v", err)
	}
	if got := r.YData(); !equalF32(got, seq(6, 10)) {
		t.Errorf("ydata = %v, want [6 7 8 9]", got)
	}
	if r.Filled() != 10 {
		t.Errorf("filled = %d, want 10", r.Filled())
	}
}

func TestRingLatestFrameDataPolicy(t *testing.T) {
	r := NewRing(1, 5)
	if _, ok := r.LatestFrameData(1); ok {
		t.Error("empty ring must report no data")
	}
	if err := r.Append(seq(0, 3)); err != nil {
		t.Fatalf("append: %v", err)
	}
	if _, ok := r.LatestFrameData(4); ok {
		t.Error("n beyond written history must report no data")
	}
	if err := r.Append(seq(3, 12)); err != nil {
		t.Fatalf("append: %v", err)
	}
	if _, ok := r.LatestFrameData(6); ok {
		t.Error("n beyond capacity must report no data instead of repeating old samples")
	}
}

func TestRingLatestFrameTimeKeepsIncreasing(t *testing.T) {
	r := NewRing(2, 5) // 10 slots
	if err := r.Append(seq(0, 25)); err != nil {
		t.Fatalf("append: %v", err)
	}
	x, y := r.LatestFrame(100)
	if len(x) != 10 {
		t.Fatalf("frame length = %d, want clamp to capacity 10", len(x))
	}
	if !equalF32(y, seq(15, 25)) {
		t.Errorf("y = %v", y)
	}
	for i := range x {
		if want := float64(15+i) / 2; x[i] != want {
			t.Errorf("x[%d] = %g, want %g", i, x[i], want)
		}
	}

	start, stop := r.LatestIndices(1.5)
	if start != 22 || stop != 25 {
		t.Errorf("LatestIndices(1.5) = (%d, %d), want (22, 25)", start, stop)
	}
}

func TestRing2D(t *testing.T) {
	r := NewRing2D(3, 1, 2) // 2 slots of 3 values
	frames := [][]float32{{1, 1, 1}, {2, 2, 2}, {3, 3, 3}}
	for _, f := range frames {
		if err := r.Append(f); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	if r.Filled() != 3 {
		t.Errorf("filled = %d, want 3", r.Filled())
	}
	last, ok := r.Latest()
	if !ok || !equalF32(last, []float32{3, 3, 3}) {
		t.Errorf("latest = %v, %v", last, ok)
	}
	if got := r.YData(); !equalF32(got, []float32{2, 2, 2, 3, 3, 3}) {
		t.Errorf("ydata = %v", got)
	}

	x, y := r.LatestFrame(10)
	if len(x) != 2 || len(y) != 6 {
		t.Errorf("frame shape = %d x, %d y", len(x), len(y))
	}
}

func TestRing2DRejectsPartialSlot(t *testing.T) {
	r := NewRing2D(4, 1, 2)
	defer func() {
		if recover() == nil {
			t.Error("expected panic on partial slot")
		}
	}()
	_ = r.Append([]float32{1, 2, 3})
}

func TestEnergy(t *testing.T) {
	b := NewLinear(1, 10)
	if err := b.Append([]float32{1, 1, 2, 2, 3, 3}); err != nil {
		t.Fatalf("append: %v", err)
	}

	x, e := b.Energy(4, 2)
	if !equalF64(e, []float64{8, 18}, 1e-9) {
		t.Errorf("energy = %v, want [8 18]", e)
	}
	if !equalF64(x, []float64{2, 4}, 1e-12) {
		t.Errorf("x = %v, want [2 4]", x)
	}

	// window larger than history is clamped
	_, e = b.Energy(100, 3)
	if !equalF64(e, []float64{6, 22}, 1e-9) {
		t.Errorf("clamped energy = %v, want [6 22]", e)
	}
}

func TestEnergyAcrossWrap(t *testing.T) {
	r := NewRing(1, 4)
	if err := r.Append([]float32{9, 9, 1, 2, 3, 4}); err != nil {
		t.Fatalf("append: %v", err)
	}
	_, e := r.Energy(4, 4)
	if !equalF64(e, []float64{30}, 1e-9) {
		t.Errorf("energy = %v, want [30]", e)
	}
}

func TestReset(t *testing.T) {
	r := NewRing(1, 4)
	_ = r.Append(seq(0, 6))
	r.Reset()
	if r.Filled() != 0 || len(r.YData()) != 0 {
		t.Errorf("reset buffer still holds data: filled=%d", r.Filled())
	}
}

func TestRingAppendNoAllocs(t *testing.T) {
	r := NewRing(44100, 1)
	chunk := seq(0, 512)
	allocs := testing.AllocsPerRun(100, func() {
		_ = r.Append(chunk)
	})
	if allocs > 0 {
		t.Errorf("Expected zero allocations in ring append, got %.1f", allocs)
	}
}

func TestLatestFrameDataIntoNoAllocs(t *testing.T) {
	r := NewRing(44100, 1)
	_ = r.Append(seq(0, 4096))
	dst := make([]float32, 1024)
	allocs := testing.AllocsPerRun(100, func() {
		_ = r.LatestFrameDataInto(dst)
	})
	if allocs > 0 {
		t.Errorf("Expected zero allocations, got %.1f", allocs)
	}
	if dst[1023] != 4095 {
		t.Errorf("last copied value = %g, want 4095", dst[1023])
	}
}

func BenchmarkRingAppend(b *testing.B) {
	r := NewRing(48000, 100)
	chunk := seq(0, 512)
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = r.Append(chunk)
	}
}
