// SPDX-License-Identifier: MIT
/*
Package pitch estimates the fundamental frequency of one analysis window.

Detectors are constructed for a fixed window length and sample rate and
reuse their scratch buffers across calls, so Detect does not allocate.
A Detector is owned by a single channel and is not safe for concurrent use.
*/
package pitch

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// ErrUnknownAlgorithm is returned for algorithm names that have no detector.
var ErrUnknownAlgorithm = errors.New("unknown pitch algorithm")

// Algorithm names a pitch detection method.
type Algorithm string

const (
	YIN     Algorithm = "yin"     // time-domain YIN
	YINFast Algorithm = "yinfast" // YIN with an FFT difference function
	HPS     Algorithm = "hps"     // harmonic product spectrum
)

// DefaultTolerance is the detector tolerance used when none is configured.
const DefaultTolerance = 0.8

// Algorithms lists the selectable algorithms in display order.
func Algorithms() []Algorithm {
	return []Algorithm{YIN, YINFast, HPS}
}

// ParseAlgorithm converts a case-insensitive name to an Algorithm.
func ParseAlgorithm(name string) (Algorithm, error) {
	a := Algorithm(strings.ToLower(strings.TrimSpace(name)))
	for _, known := range Algorithms() {
		if a == known {
			return a, nil
		}
	}
	return "", fmt.Errorf("%w: '%s'", ErrUnknownAlgorithm, name)
}

// Detector estimates the pitch of a window of samples.
type Detector interface {
	// Detect returns the fundamental in Hz and a confidence in [0, 1].
	// A frequency of 0 means no pitch was found (silence, noise).
	Detect(window []float64) (hz, confidence float64)

	// WindowSize is the number of samples Detect expects.
	WindowSize() int

	// Algorithm reports which method the detector implements.
	Algorithm() Algorithm
}

// Params configures a detector. Unit is always Hz.
type Params struct {
	Algorithm  Algorithm
	WindowSize int     // samples per analysis window
	HopSize    int     // samples between windows; equal to WindowSize here
	SampleRate float64 // Hz
	Tolerance  float64 // (0, 1]
}

// New builds a detector for p.
func New(p Params) (Detector, error) {
	if p.WindowSize < 4 {
		return nil, fmt.Errorf("pitch window must hold at least 4 samples, got %d", p.WindowSize)
	}
	if p.SampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %f", p.SampleRate)
	}
	if p.Tolerance <= 0 || p.Tolerance > 1 {
		return nil, fmt.Errorf("tolerance must be in (0, 1], got %f", p.Tolerance)
	}

	switch p.Algorithm {
	case YIN:
		return newYin(p.WindowSize, p.SampleRate, p.Tolerance), nil
	case YINFast:
		return newYinFast(p.WindowSize, p.SampleRate, p.Tolerance), nil
	case HPS:
		return newHPS(p.WindowSize, p.SampleRate), nil
	default:
		return nil, fmt.Errorf("%w: '%s'", ErrUnknownAlgorithm, p.Algorithm)
	}
}

// FrequencyToCents converts f to cents relative to standard:
// 1200*log2(f/standard). It reports false for non-positive or NaN input,
// which silence commonly produces.
func FrequencyToCents(f, standard float64) (float64, bool) {
	if !(f > 0) || !(standard > 0) || math.IsInf(f, 0) {
		return math.NaN(), false
	}
	return 1200 * math.Log2(f/standard), true
}

// CentsToFrequency is the inverse of FrequencyToCents.
func CentsToFrequency(cents, standard float64) float64 {
	return standard * math.Exp2(cents/1200)
}
