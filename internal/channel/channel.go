// SPDX-License-Identifier: MIT
/*
Package channel holds the per-input state of the tuner: a ring of raw
samples, the buffers derived from it by analysis, and the pitch detector
that produces the pitch track.

Derived buffers run at the analysis rate, sampleRate/fftSize frames per
second, because one analysis frame consumes one FFT window (hop equals
window). Changing the FFT size therefore rebuilds all of them and starts a
new derived history.

A Channel is owned by the analysis goroutine. Nothing in it is locked.
*/
package channel

import (
	"errors"
	"fmt"
	"math"

	"tuner/internal/buffer"
	"tuner/internal/pitch"
	"tuner/pkg/bitint"
)

// ErrInvalidFFTSize is returned for FFT sizes that are not a power of two,
// are too small, or do not fit in the raw buffer.
var ErrInvalidFFTSize = errors.New("invalid fft size")

// MinFFTSize is the smallest window a detector can work with.
const MinFFTSize = 16

// Derived is the set of analysis buffers for one FFT size.
type Derived struct {
	FFTSize int
	Rate    float64   // frames per second
	Freqs   []float64 // rFFT bin centres in Hz, FFTSize/2+1 of them

	FFT        *buffer.Buffer // magnitude spectra, one per slot
	Power      *buffer.Buffer // sum(magnitude) / sampleRate
	Pitch      *buffer.Buffer // cents against the standard frequency, NaN without pitch
	Frequency  *buffer.Buffer // detector output in Hz, 0 without pitch
	Confidence *buffer.Buffer // detector confidence in [0, 1]
}

// NewDerived sizes a fresh set of derived buffers to hold seconds of
// history at sampleRate/fftSize frames per second.
func NewDerived(sampleRate float64, fftSize int, seconds float64) *Derived {
	rate := sampleRate / float64(fftSize)
	bins := fftSize/2 + 1

	freqs := make([]float64, bins)
	for i := range freqs {
		freqs[i] = float64(i) * sampleRate / float64(fftSize)
	}

	return &Derived{
		FFTSize:    fftSize,
		Rate:       rate,
		Freqs:      freqs,
		FFT:        buffer.NewRing2D(bins, rate, seconds),
		Power:      buffer.NewRing(rate, seconds),
		Pitch:      buffer.NewRing(rate, seconds),
		Frequency:  buffer.NewRing(rate, seconds),
		Confidence: buffer.NewRing(rate, seconds),
	}
}

// Reset empties every derived buffer.
func (d *Derived) Reset() {
	for _, b := range []*buffer.Buffer{d.FFT, d.Power, d.Pitch, d.Frequency, d.Confidence} {
		b.Reset()
	}
}

// Channel is one input channel.
type Channel struct {
	index         int
	sampleRate    float64
	bufferSeconds float64

	raw     *buffer.Buffer
	derived *Derived

	algorithm pitch.Algorithm
	tolerance float64
	detector  pitch.Detector

	// scratch for the latest analysis window
	window32 []float32
	window64 []float64
}

// New creates channel index with bufferSeconds of raw history, an FFT
// size of fftSize and a YIN detector at the default tolerance.
func New(index int, sampleRate, bufferSeconds float64, fftSize int) (*Channel, error) {
	if sampleRate <= 0 || bufferSeconds <= 0 {
		return nil, fmt.Errorf("channel %d: sample rate and buffer length must be positive", index)
	}

	c := &Channel{
		index:         index,
		sampleRate:    sampleRate,
		bufferSeconds: bufferSeconds,
		raw:           buffer.NewRing(sampleRate, bufferSeconds),
		algorithm:     pitch.YIN,
		tolerance:     pitch.DefaultTolerance,
	}
	if _, err := c.Reconfigure(fftSize); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Channel) Index() int               { return c.index }
func (c *Channel) SampleRate() float64      { return c.sampleRate }
func (c *Channel) Raw() *buffer.Buffer      { return c.raw }
func (c *Channel) Derived() *Derived        { return c.derived }
func (c *Channel) FFTSize() int             { return c.derived.FFTSize }
func (c *Channel) Freqs() []float64         { return c.derived.Freqs }
func (c *Channel) Detector() pitch.Detector { return c.detector }

// Append adds one hop of raw samples. The raw buffer is a ring, so this
// never fails.
func (c *Channel) Append(samples []float32) {
	// width 1, so the only error path (partial slot) cannot occur
	_ = c.raw.Append(samples)
}

// Reconfigure installs freshly sized derived buffers and a detector whose
// window matches the new FFT size. Previous derived history is dropped.
// On error the channel is left unchanged.
func (c *Channel) Reconfigure(fftSize int) (*Derived, error) {
	if !bitint.IsPowerOfTwo(fftSize) || fftSize < MinFFTSize {
		return nil, fmt.Errorf("%w: %d is not a power of two >= %d", ErrInvalidFFTSize, fftSize, MinFFTSize)
	}
	if fftSize > c.raw.Capacity() {
		return nil, fmt.Errorf("%w: %d exceeds the raw buffer of %d samples", ErrInvalidFFTSize, fftSize, c.raw.Capacity())
	}

	det, err := c.newDetector(c.algorithm, c.tolerance, fftSize)
	if err != nil {
		return nil, err
	}

	d := NewDerived(c.sampleRate, fftSize, c.bufferSeconds)
	c.derived = d
	c.detector = det
	c.window32 = make([]float32, fftSize)
	c.window64 = make([]float64, fftSize)
	return d, nil
}

// ConfigurePitchDetector replaces the detector. The window and hop are the
// current FFT size and the output unit is Hz.
func (c *Channel) ConfigurePitchDetector(name string, tolerance float64) error {
	algorithm, err := pitch.ParseAlgorithm(name)
	if err != nil {
		return err
	}
	det, err := c.newDetector(algorithm, tolerance, c.derived.FFTSize)
	if err != nil {
		return err
	}
	c.algorithm, c.tolerance, c.detector = algorithm, tolerance, det
	return nil
}

func (c *Channel) newDetector(a pitch.Algorithm, tolerance float64, fftSize int) (pitch.Detector, error) {
	det, err := pitch.New(pitch.Params{
		Algorithm:  a,
		WindowSize: fftSize,
		HopSize:    fftSize,
		SampleRate: c.sampleRate,
		Tolerance:  tolerance,
	})
	if err != nil {
		return nil, fmt.Errorf("channel %d: %w", c.index, err)
	}
	return det, nil
}

// PitchAlgorithm reports the configured detector and its tolerance.
func (c *Channel) PitchAlgorithm() (pitch.Algorithm, float64) {
	return c.algorithm, c.tolerance
}

// Window returns the most recent FFTSize raw samples, or false during
// warm-up. The slice is scratch owned by the channel and is overwritten by
// the next call.
func (c *Channel) Window() ([]float64, bool) {
	if !c.raw.LatestFrameDataInto(c.window32) {
		return nil, false
	}
	for i, v := range c.window32 {
		c.window64[i] = float64(v)
	}
	return c.window64, true
}

// LatestPitch converts the most recent detected frequency to cents against
// standard. It returns NaN and false before the first analysis frame and
// for frames without a pitch.
func (c *Channel) LatestPitch(standard float64) (float64, bool) {
	hz, ok := latestScalar(c.derived.Frequency)
	if !ok {
		return math.NaN(), false
	}
	return pitch.FrequencyToCents(hz, standard)
}

// LatestFrequency returns the most recent detected frequency in Hz.
func (c *Channel) LatestFrequency() (float64, bool) {
	return latestScalar(c.derived.Frequency)
}

// LatestConfidence returns the confidence of the most recent frame.
func (c *Channel) LatestConfidence() (float64, bool) {
	return latestScalar(c.derived.Confidence)
}

// LatestPower returns the spectral power of the most recent frame.
func (c *Channel) LatestPower() (float64, bool) {
	return latestScalar(c.derived.Power)
}

func latestScalar(b *buffer.Buffer) (float64, bool) {
	v, ok := b.Latest()
	if !ok {
		return 0, false
	}
	return float64(v[0]), true
}
