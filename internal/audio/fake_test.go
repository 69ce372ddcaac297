// SPDX-License-Identifier: MIT
package audio

import (
	"errors"
	"fmt"
	"slices"
	"sync"
)

// fakeBackend stands in for the audio hardware. Streams do not run on their
// own; tests push chunks through deliver.
type fakeBackend struct {
	devices   []Device
	defaultID int
	rates     map[int][]float64 // supported rates per device ID
	openErr   error
	startErr  error

	mu      sync.Mutex
	streams []*fakeStream
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		devices: []Device{
			{ID: 0, Name: "Built-in Microphone", MaxInputChannels: 2, DefaultSampleRate: 44100},
			{ID: 1, Name: "Speakers", MaxOutputChannels: 2, DefaultSampleRate: 48000},
			{ID: 2, Name: "USB Interface", MaxInputChannels: 4, MaxOutputChannels: 4, DefaultSampleRate: 48000},
		},
		defaultID: 0,
		rates: map[int][]float64{
			0: {44100, 48000},
			2: {44100, 48000, 96000},
		},
	}
}

func (b *fakeBackend) Devices() ([]Device, error) {
	return slices.Clone(b.devices), nil
}

func (b *fakeBackend) DefaultInputDevice() (Device, error) {
	if b.defaultID < 0 {
		return Device{}, errors.New("no default input device")
	}
	return b.devices[b.defaultID], nil
}

func (b *fakeBackend) IsFormatSupported(p StreamParams) error {
	if p.Device < 0 || p.Device >= len(b.devices) {
		return fmt.Errorf("invalid device ID: %d", p.Device)
	}
	if p.Channels > b.devices[p.Device].MaxInputChannels {
		return errors.New("invalid channel count")
	}
	if !slices.Contains(b.rates[p.Device], p.SampleRate) {
		return errors.New("invalid sample rate")
	}
	return nil
}

func (b *fakeBackend) OpenStream(p StreamParams, cb Callback) (Stream, error) {
	if b.openErr != nil {
		return nil, b.openErr
	}
	s := &fakeStream{params: p, cb: cb, startErr: b.startErr}
	b.mu.Lock()
	b.streams = append(b.streams, s)
	b.mu.Unlock()
	return s, nil
}

func (b *fakeBackend) lastStream() *fakeStream {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.streams) == 0 {
		return nil
	}
	return b.streams[len(b.streams)-1]
}

type fakeStream struct {
	params   StreamParams
	cb       Callback
	startErr error

	starts, stops, closes int
}

func (s *fakeStream) Start() error {
	if s.startErr != nil {
		return s.startErr
	}
	s.starts++
	return nil
}

func (s *fakeStream) Stop() error {
	s.stops++
	return nil
}

func (s *fakeStream) Close() error {
	s.closes++
	return nil
}

// deliver plays the role of the audio thread.
func (s *fakeStream) deliver(in []int16) CallbackResult {
	return s.cb(in)
}
