// SPDX-License-Identifier: MIT
package pitch

import (
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/dsp/window"
)

const (
	hpsHarmonics = 5
	hpsMinHz     = 30.0
	hpsMaxHz     = 900.0
)

// hps picks the bin maximising the product of the magnitude spectrum
// sampled at the first hpsHarmonics multiples of its frequency. The window
// is Hamming-tapered. Resolution is one FFT bin, sampleRate/windowSize.
type hps struct {
	sampleRate float64
	windowSize int
	fft        *fourier.FFT
	taper      []float64
	work       []float64
	coef       []complex128
	mag        []float64
}

func newHPS(windowSize int, sampleRate float64) *hps {
	taper := make([]float64, windowSize)
	for i := range taper {
		taper[i] = 1
	}
	window.Hamming(taper)

	return &hps{
		sampleRate: sampleRate,
		windowSize: windowSize,
		fft:        fourier.NewFFT(windowSize),
		taper:      taper,
		work:       make([]float64, windowSize),
		coef:       make([]complex128, windowSize/2+1),
		mag:        make([]float64, windowSize/2+1),
	}
}

func (h *hps) WindowSize() int      { return h.windowSize }
func (h *hps) Algorithm() Algorithm { return HPS }

func (h *hps) Detect(x []float64) (float64, float64) {
	if len(x) < h.windowSize {
		return 0, 0
	}
	for i := range h.work {
		h.work[i] = x[i] * h.taper[i]
	}
	h.fft.Coefficients(h.coef, h.work)

	var total float64
	for i, c := range h.coef {
		h.mag[i] = cmplx.Abs(c)
		total += h.mag[i]
	}
	if total == 0 {
		return 0, 0
	}

	df := h.sampleRate / float64(h.windowSize)
	nmin := int(math.Ceil(hpsMinHz / df))
	nmax := int(math.Floor(hpsMaxHz / df))
	nmax = min(nmax, (len(h.mag)-1)/hpsHarmonics)
	nmin = max(nmin, 1)
	if nmax < nmin {
		return 0, 0
	}

	best, bestProduct := 0, 0.0
	var productSum float64
	for bin := nmin; bin <= nmax; bin++ {
		product := 1.0
		for k := 1; k <= hpsHarmonics; k++ {
			product *= h.mag[bin*k]
		}
		productSum += product
		if product > bestProduct {
			best, bestProduct = bin, product
		}
	}
	if best == 0 || productSum == 0 {
		return 0, 0
	}

	// share of the winning bin in the product spectrum
	return float64(best) * df, clamp01(bestProduct / productSum)
}
