// SPDX-License-Identifier: MIT
package audio

import "time"

// CallbackResult tells a stream whether to keep delivering chunks.
type CallbackResult int

const (
	Continue CallbackResult = iota
	Complete                // no further chunks wanted
)

// Callback receives one chunk of interleaved int16 samples. It runs on the
// backend's delivery thread and must return promptly. The slice is only
// valid for the duration of the call.
type Callback func(in []int16) CallbackResult

// StreamParams describes an input stream.
type StreamParams struct {
	Device          int // resolved device ID, never -1
	Channels        int
	SampleRate      float64
	FramesPerBuffer int
	LowLatency      bool
}

// Stream is an opened input stream.
type Stream interface {
	Start() error
	Stop() error
	Close() error
}

// Backend is the audio subsystem the Source captures from: PortAudio for
// live devices, or a WAV file replayed as a virtual device.
type Backend interface {
	Devices() ([]Device, error)
	DefaultInputDevice() (Device, error)
	IsFormatSupported(p StreamParams) error
	OpenStream(p StreamParams, cb Callback) (Stream, error)
}

// Device describes an audio device as reported by a Backend.
type Device struct {
	ID                      int
	Name                    string
	HostAPI                 string
	MaxInputChannels        int
	MaxOutputChannels       int
	DefaultSampleRate       float64
	DefaultLowInputLatency  time.Duration
	DefaultHighInputLatency time.Duration
}

// Kind is "Input", "Output" or "Input/Output".
func (d Device) Kind() string {
	switch {
	case d.MaxInputChannels > 0 && d.MaxOutputChannels > 0:
		return "Input/Output"
	case d.MaxInputChannels > 0:
		return "Input"
	case d.MaxOutputChannels > 0:
		return "Output"
	default:
		return ""
	}
}

// Latency picks the device's suggested input latency.
func (d Device) Latency(low bool) time.Duration {
	if low {
		return d.DefaultLowInputLatency
	}
	return d.DefaultHighInputLatency
}
