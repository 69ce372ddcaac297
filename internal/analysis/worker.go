// SPDX-License-Identifier: MIT
package analysis

import (
	"math"

	"tuner/internal/channel"
	"tuner/internal/log"
	"tuner/internal/pitch"
)

type spectrumKey struct {
	size int
	rate float64
}

// Worker runs one analysis pass per call: for every channel it takes the
// latest FFT-size window of raw audio and appends one frame to each derived
// buffer. Channels still warming up are skipped.
type Worker struct {
	logger     *log.Logger
	windowType WindowFunc
	standard   float64
	spectra    map[spectrumKey]*Spectrum
}

// NewWorker returns a worker tapering with windowType and converting pitch
// to cents against standard Hz.
func NewWorker(windowType WindowFunc, standard float64) *Worker {
	return &Worker{
		logger:     log.New("analysis"),
		windowType: windowType,
		standard:   standard,
		spectra:    make(map[spectrumKey]*Spectrum),
	}
}

// SetStandardFrequency changes the cents anchor for subsequent frames.
func (w *Worker) SetStandardFrequency(hz float64) {
	if hz > 0 {
		w.standard = hz
	}
}

func (w *Worker) StandardFrequency() float64 { return w.standard }

// Process analyses every channel and returns how many produced a frame.
func (w *Worker) Process(channels []*channel.Channel) int {
	analysed := 0
	for _, c := range channels {
		if w.ProcessChannel(c) {
			analysed++
		}
	}
	return analysed
}

// ProcessChannel appends one frame to each of c's derived buffers, or
// returns false when c does not yet hold a full window.
func (w *Worker) ProcessChannel(c *channel.Channel) bool {
	x, ok := c.Window()
	if !ok {
		w.logger.Debugf("channel %d warming up: %d of %d samples", c.Index(), c.Raw().Filled(), c.FFTSize())
		return false
	}

	sp, err := w.spectrum(c.FFTSize(), c.SampleRate())
	if err != nil {
		// channel sizes are validated on Reconfigure
		w.logger.Errorf("channel %d: %v", c.Index(), err)
		return false
	}

	d := c.Derived()
	mag, power := sp.Compute(x)
	if err := d.FFT.Append(mag); err != nil {
		w.logger.Errorf("channel %d: %v", c.Index(), err)
		return false
	}
	d.Power.AppendValue(float32(power))

	hz, confidence := c.Detector().Detect(x)
	cents, ok := pitch.FrequencyToCents(hz, w.standard)
	if !ok {
		cents = math.NaN()
	}
	d.Pitch.AppendValue(float32(cents))
	d.Frequency.AppendValue(float32(hz))
	d.Confidence.AppendValue(float32(confidence))
	return true
}

// spectrum returns the cached workspace for a size and rate.
func (w *Worker) spectrum(size int, rate float64) (*Spectrum, error) {
	key := spectrumKey{size, rate}
	if s, ok := w.spectra[key]; ok {
		return s, nil
	}
	s, err := NewSpectrum(size, rate, w.windowType)
	if err != nil {
		return nil, err
	}
	w.spectra[key] = s
	return s, nil
}
