// SPDX-License-Identifier: MIT
package pitch

import (
	"gonum.org/v1/gonum/dsp/fourier"
)

// yin implements the YIN estimator (de Cheveigné & Kawahara, 2002).
//
// The tolerance is the absolute threshold on the cumulative mean normalized
// difference: the first lag dipping below it wins. When nothing dips below,
// the global minimum is used and the low confidence reports it.
type yin struct {
	sampleRate float64
	windowSize int
	threshold  float64
	diff       []float64 // difference function, then its normalized form
	difference func(window []float64, out []float64)
	algorithm  Algorithm
}

func newYin(windowSize int, sampleRate, tolerance float64) *yin {
	y := &yin{
		sampleRate: sampleRate,
		windowSize: windowSize,
		threshold:  tolerance,
		diff:       make([]float64, windowSize/2),
		algorithm:  YIN,
	}
	y.difference = differenceDirect
	return y
}

func (y *yin) WindowSize() int      { return y.windowSize }
func (y *yin) Algorithm() Algorithm { return y.algorithm }

func (y *yin) Detect(window []float64) (float64, float64) {
	if len(window) < y.windowSize {
		return 0, 0
	}
	d := y.diff
	y.difference(window[:y.windowSize], d)

	// cumulative mean normalized difference
	d[0] = 1
	var running float64
	for tau := 1; tau < len(d); tau++ {
		running += d[tau]
		if running == 0 {
			d[tau] = 1
			continue
		}
		d[tau] *= float64(tau) / running
	}

	tau := y.firstBelowThreshold(d)
	if tau < 0 {
		tau = argminFrom(d, 2)
	}
	if tau < 2 || d[tau] >= 1 {
		return 0, 0
	}

	period := parabolicPeak(d, tau)
	if period <= 0 {
		return 0, 0
	}
	confidence := clamp01(1 - d[tau])
	return y.sampleRate / period, confidence
}

// firstBelowThreshold returns the first lag under the threshold, advanced to
// the bottom of its dip, or -1.
func (y *yin) firstBelowThreshold(d []float64) int {
	for tau := 2; tau < len(d); tau++ {
		if d[tau] < y.threshold {
			for tau+1 < len(d) && d[tau+1] < d[tau] {
				tau++
			}
			return tau
		}
	}
	return -1
}

// differenceDirect computes d(tau) = sum (x[j] - x[j+tau])^2 over the first
// half of the window.
func differenceDirect(x []float64, out []float64) {
	half := len(out)
	for tau := 0; tau < half; tau++ {
		var sum float64
		for j := 0; j < half; j++ {
			delta := x[j] - x[j+tau]
			sum += delta * delta
		}
		out[tau] = sum
	}
}

// yinFast computes the same difference function from an FFT
// cross-correlation: d(tau) = e(0) + e(tau) - 2 r(tau).
type yinFast struct {
	*yin
	fft    *fourier.FFT
	head   []float64    // first half of the window, zero padded
	corr   []float64    // inverse transform output
	coefA  []complex128 // spectrum of head
	coefB  []complex128 // spectrum of the whole window
	energy []float64    // prefix sums of squares
}

func newYinFast(windowSize int, sampleRate, tolerance float64) *yinFast {
	y := &yinFast{
		yin:    newYin(windowSize, sampleRate, tolerance),
		fft:    fourier.NewFFT(windowSize),
		head:   make([]float64, windowSize),
		corr:   make([]float64, windowSize),
		coefA:  make([]complex128, windowSize/2+1),
		coefB:  make([]complex128, windowSize/2+1),
		energy: make([]float64, windowSize+1),
	}
	y.yin.algorithm = YINFast
	y.yin.difference = y.differenceFFT
	return y
}

func (y *yinFast) differenceFFT(x []float64, out []float64) {
	n := len(x)
	half := len(out)

	for i := range y.head {
		y.head[i] = 0
	}
	copy(y.head, x[:half])

	y.fft.Coefficients(y.coefA, y.head)
	y.fft.Coefficients(y.coefB, x)
	for i := range y.coefA {
		a := y.coefA[i]
		y.coefA[i] = complex(real(a), -imag(a)) * y.coefB[i]
	}
	// gonum transforms are unnormalized
	y.fft.Sequence(y.corr, y.coefA)
	scale := 1 / float64(n)

	y.energy[0] = 0
	for i, v := range x {
		y.energy[i+1] = y.energy[i] + v*v
	}
	e0 := y.energy[half]
	for tau := 0; tau < half; tau++ {
		etau := y.energy[tau+half] - y.energy[tau]
		v := e0 + etau - 2*y.corr[tau]*scale
		if v < 0 {
			v = 0
		}
		out[tau] = v
	}
}

// argminFrom returns the index of the smallest value in d[from:], or -1.
func argminFrom(d []float64, from int) int {
	best := -1
	for i := from; i < len(d); i++ {
		if best < 0 || d[i] < d[best] {
			best = i
		}
	}
	return best
}

// parabolicPeak refines the extremum at i with its two neighbours.
func parabolicPeak(d []float64, i int) float64 {
	if i <= 0 || i >= len(d)-1 {
		return float64(i)
	}
	s0, s1, s2 := d[i-1], d[i], d[i+1]
	den := 2 * (2*s1 - s2 - s0)
	if den == 0 {
		return float64(i)
	}
	return float64(i) + (s2-s0)/den
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
