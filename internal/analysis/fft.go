// SPDX-License-Identifier: MIT
package analysis

import (
	"fmt"
	"math/cmplx"
	"strings"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/dsp/window"
	"gonum.org/v1/gonum/floats"

	"tuner/pkg/bitint"
)

// WindowFunc selects the taper applied before the FFT.
type WindowFunc int

const (
	Rectangular WindowFunc = iota // no taper
	BartlettHann
	Blackman
	BlackmanNuttall
	Hann
	Hamming
	Lanczos
	Nuttall
)

var windowNames = map[WindowFunc]string{
	Rectangular:     "none",
	BartlettHann:    "bartletthann",
	Blackman:        "blackman",
	BlackmanNuttall: "blackmannuttall",
	Hann:            "hann",
	Hamming:         "hamming",
	Lanczos:         "lanczos",
	Nuttall:         "nuttall",
}

func (w WindowFunc) String() string {
	if name, ok := windowNames[w]; ok {
		return name
	}
	return fmt.Sprintf("WindowFunc(%d)", int(w))
}

// ParseWindowFunc converts a case-insensitive name to a WindowFunc. An
// empty name, "none" and "rectangular" select no taper. Unknown names
// return Rectangular and an error.
func ParseWindowFunc(name string) (WindowFunc, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "none", "rectangular", "boxcar":
		return Rectangular, nil
	case "bartletthann":
		return BartlettHann, nil
	case "blackman":
		return Blackman, nil
	case "blackmannuttall":
		return BlackmanNuttall, nil
	case "hann", "hanning":
		return Hann, nil
	case "hamming":
		return Hamming, nil
	case "lanczos":
		return Lanczos, nil
	case "nuttall":
		return Nuttall, nil
	default:
		return Rectangular, fmt.Errorf("unknown FFT window function name: '%s'", name)
	}
}

// fillWindow writes the coefficients of windowType into coeffs.
func fillWindow(coeffs []float64, windowType WindowFunc) {
	for i := range coeffs {
		coeffs[i] = 1.0
	}
	switch windowType {
	case BartlettHann:
		window.BartlettHann(coeffs)
	case Blackman:
		window.Blackman(coeffs)
	case BlackmanNuttall:
		window.BlackmanNuttall(coeffs)
	case Hann:
		window.Hann(coeffs)
	case Hamming:
		window.Hamming(coeffs)
	case Lanczos:
		window.Lanczos(coeffs)
	case Nuttall:
		window.Nuttall(coeffs)
	}
}

// Pre-allocated buffers for one FFT size.
type fftWorkspace struct {
	input       []float64    // windowed input
	fftOutput   []complex128 // rFFT coefficients, size/2+1
	magnitude   []float64
	magnitude32 []float32 // what the FFT ring stores
	window      []float64 // precomputed taper, nil for Rectangular
}

// Spectrum computes one-sided magnitude spectra of fixed-size windows.
// It is reused across frames and is not safe for concurrent use.
type Spectrum struct {
	fftCalculator *fourier.FFT
	fftSize       int
	sampleRate    float64
	windowType    WindowFunc
	workspace     fftWorkspace
}

// NewSpectrum prepares a workspace for fftSize-point transforms.
func NewSpectrum(fftSize int, sampleRate float64, windowType WindowFunc) (*Spectrum, error) {
	if !bitint.IsPowerOfTwo(fftSize) {
		return nil, fmt.Errorf("fft size must be a power of 2, got %d", fftSize)
	}
	if sampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %f", sampleRate)
	}

	var coeffs []float64
	if windowType != Rectangular {
		coeffs = make([]float64, fftSize)
		fillWindow(coeffs, windowType)
	}

	bins := fftSize/2 + 1
	return &Spectrum{
		fftCalculator: fourier.NewFFT(fftSize),
		fftSize:       fftSize,
		sampleRate:    sampleRate,
		windowType:    windowType,
		workspace: fftWorkspace{
			input:       make([]float64, fftSize),
			fftOutput:   make([]complex128, bins),
			magnitude:   make([]float64, bins),
			magnitude32: make([]float32, bins),
			window:      coeffs,
		},
	}, nil
}

// Compute transforms x, which must hold FFTSize samples, and returns the
// magnitude spectrum and the aggregate power sum(magnitude)/sampleRate.
// The returned slice is reused by the next call.
func (s *Spectrum) Compute(x []float64) ([]float32, float64) {
	ws := &s.workspace
	copy(ws.input, x[:s.fftSize])
	if ws.window != nil {
		floats.Mul(ws.input, ws.window)
	}

	s.fftCalculator.Coefficients(ws.fftOutput, ws.input)

	for i, c := range ws.fftOutput {
		m := cmplx.Abs(c)
		ws.magnitude[i] = m
		ws.magnitude32[i] = float32(m)
	}
	return ws.magnitude32, floats.Sum(ws.magnitude) / s.sampleRate
}

// FrequencyForBin returns the centre frequency of bin in Hz, or 0 when the
// bin is out of range.
func (s *Spectrum) FrequencyForBin(bin int) float64 {
	if bin < 0 || bin >= len(s.workspace.fftOutput) {
		return 0
	}
	return s.fftCalculator.Freq(bin) * s.sampleRate
}

func (s *Spectrum) FFTSize() int           { return s.fftSize }
func (s *Spectrum) SampleRate() float64    { return s.sampleRate }
func (s *Spectrum) WindowFunc() WindowFunc { return s.windowType }
