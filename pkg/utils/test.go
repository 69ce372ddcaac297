// SPDX-License-Identifier: MIT
//
// Package utils generates deterministic signals for tests and benchmarks.
package utils

import "math"

// GenerateSineWave returns size samples of a sine at frequency Hz with the
// given peak amplitude.
func GenerateSineWave(size int, sampleRate, frequency, amplitude float64) []float64 {
	buffer := make([]float64, size)
	for i := range buffer {
		t := float64(i) / sampleRate
		buffer[i] = amplitude * math.Sin(2*math.Pi*frequency*t)
	}
	return buffer
}

// GenerateComplexWave returns a 440 Hz fundamental plus two harmonics.
func GenerateComplexWave(size int, sampleRate float64) []float64 {
	buffer := make([]float64, size)
	for i := range buffer {
		tm := float64(i) / sampleRate
		buffer[i] = math.Sin(2*math.Pi*440*tm)*0.5 +
			math.Sin(2*math.Pi*880*tm)*0.3 +
			math.Sin(2*math.Pi*1320*tm)*0.2
	}
	return buffer
}

// Float32 converts samples to float32.
func Float32(samples []float64) []float32 {
	out := make([]float32, len(samples))
	for i, v := range samples {
		out[i] = float32(v)
	}
	return out
}

// InterleavedInt16 renders one sine per channel at 90% of full scale and
// interleaves them the way an audio device delivers a multi-channel chunk.
// Sample index offset continues a previous chunk without a phase jump.
func InterleavedInt16(frames, offset int, sampleRate float64, frequencies ...float64) []int16 {
	channels := len(frequencies)
	out := make([]int16, frames*channels)
	for i := 0; i < frames; i++ {
		t := float64(offset+i) / sampleRate
		for c, f := range frequencies {
			out[i*channels+c] = int16(math.Sin(2*math.Pi*f*t) * math.MaxInt16 * 0.9)
		}
	}
	return out
}

// Ramp returns n interleaved int16 frames where channel c of frame i holds
// start + i*channels + c. Useful to check ordering through de-interleaving.
func Ramp(frames, channels, start int) []int16 {
	out := make([]int16, frames*channels)
	for i := range out {
		out[i] = int16(start + i)
	}
	return out
}

// FindPeakBin returns the index of the largest magnitude in [startBin, endBin].
func FindPeakBin(magnitudes []float64, startBin, endBin int) int {
	if len(magnitudes) == 0 {
		return 0
	}
	startBin = max(startBin, 0)
	endBin = min(endBin, len(magnitudes)-1)

	peakBin := startBin
	peakValue := magnitudes[startBin]
	for bin := startBin + 1; bin <= endBin; bin++ {
		if magnitudes[bin] > peakValue {
			peakValue = magnitudes[bin]
			peakBin = bin
		}
	}
	return peakBin
}
