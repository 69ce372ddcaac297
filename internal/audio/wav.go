// SPDX-License-Identifier: MIT
package audio

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// WAVBackend replays a WAV file as a single virtual input device. Chunks go
// through the same callback path as a live device, paced at the file's
// sample rate unless Unpaced is set.
type WAVBackend struct {
	path       string
	name       string
	channels   int
	sampleRate float64
	bitDepth   int

	// Unpaced delivers chunks back to back instead of in real time.
	Unpaced bool
}

var _ Backend = (*WAVBackend)(nil)

// NewWAVBackend reads the header of the WAV file at path.
func NewWAVBackend(path string) (*WAVBackend, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open input file: %w", err)
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return nil, fmt.Errorf("%s is not a valid WAV file", path)
	}
	switch dec.BitDepth {
	case 8, 16, 24, 32:
	default:
		return nil, fmt.Errorf("%s: unsupported bit depth %d", path, dec.BitDepth)
	}

	return &WAVBackend{
		path:       path,
		name:       filepath.Base(path),
		channels:   int(dec.NumChans),
		sampleRate: float64(dec.SampleRate),
		bitDepth:   int(dec.BitDepth),
	}, nil
}

func (b *WAVBackend) device() Device {
	// latency of one 512-frame chunk, for display only
	latency := time.Duration(512 / b.sampleRate * float64(time.Second))
	return Device{
		ID:                      0,
		Name:                    b.name,
		HostAPI:                 "wav",
		MaxInputChannels:        b.channels,
		DefaultSampleRate:       b.sampleRate,
		DefaultLowInputLatency:  latency,
		DefaultHighInputLatency: latency,
	}
}

func (b *WAVBackend) Devices() ([]Device, error)          { return []Device{b.device()}, nil }
func (b *WAVBackend) DefaultInputDevice() (Device, error) { return b.device(), nil }

// IsFormatSupported accepts the file's own rate and up to its channel count.
func (b *WAVBackend) IsFormatSupported(p StreamParams) error {
	switch {
	case p.Device != 0:
		return fmt.Errorf("invalid device ID: %d", p.Device)
	case p.SampleRate != b.sampleRate:
		return fmt.Errorf("%s is sampled at %.0f Hz, not %.0f Hz", b.name, b.sampleRate, p.SampleRate)
	case p.Channels < 1 || p.Channels > b.channels:
		return fmt.Errorf("%s has %d channel(s), %d requested", b.name, b.channels, p.Channels)
	}
	return nil
}

func (b *WAVBackend) OpenStream(p StreamParams, cb Callback) (Stream, error) {
	if err := b.IsFormatSupported(p); err != nil {
		return nil, err
	}
	if p.FramesPerBuffer < 1 {
		return nil, errors.New("frames per buffer must be positive")
	}

	f, err := os.Open(b.path)
	if err != nil {
		return nil, err
	}
	dec := wav.NewDecoder(f)
	if err := dec.FwdToPCM(); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to seek to PCM data: %w", err)
	}

	return &wavStream{
		backend: b,
		params:  p,
		cb:      cb,
		file:    f,
		dec:     dec,
		pcm: &audio.IntBuffer{
			Format: dec.Format(),
			Data:   make([]int, p.FramesPerBuffer*b.channels),
		},
		chunk: make([]int16, p.FramesPerBuffer*p.Channels),
	}, nil
}

// wavStream delivers the file from a goroutine. Stop pauses at a chunk
// boundary; Start resumes where it paused.
type wavStream struct {
	backend *WAVBackend
	params  StreamParams
	cb      Callback

	mu      sync.Mutex
	file    *os.File
	dec     *wav.Decoder
	pcm     *audio.IntBuffer
	chunk   []int16
	stop    chan struct{}
	done    chan struct{}
	drained bool
}

func (s *wavStream) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		return errors.New("stream is closed")
	}
	if s.stop != nil {
		return nil
	}
	s.stop = make(chan struct{})
	s.done = make(chan struct{})
	go s.run(s.stop, s.done)
	return nil
}

func (s *wavStream) Stop() error {
	s.mu.Lock()
	stop, done := s.stop, s.done
	s.stop, s.done = nil, nil
	s.mu.Unlock()

	if stop != nil {
		close(stop)
		<-done
	}
	return nil
}

func (s *wavStream) Close() error {
	if err := s.Stop(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file = nil
	return err
}

func (s *wavStream) run(stop, done chan struct{}) {
	defer close(done)

	var tick <-chan time.Time
	if !s.backend.Unpaced {
		period := time.Duration(float64(s.params.FramesPerBuffer) / s.params.SampleRate * float64(time.Second))
		ticker := time.NewTicker(period)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-stop:
			return
		default:
		}

		if s.drained || !s.next() {
			s.drained = true
			return
		}
		if s.cb(s.chunk) == Complete {
			return
		}

		if tick != nil {
			select {
			case <-stop:
				return
			case <-tick:
			}
		}
	}
}

// next decodes one chunk into s.chunk, zero padding a short final chunk.
// It reports false at the end of the file.
func (s *wavStream) next() bool {
	n, err := s.dec.PCMBuffer(s.pcm)
	fileChans := s.backend.channels
	frames := n / fileChans
	if err != nil || frames == 0 {
		return false
	}

	shift := s.backend.bitDepth - 16
	for f := 0; f < s.params.FramesPerBuffer; f++ {
		for c := 0; c < s.params.Channels; c++ {
			var v int16
			if f < frames {
				v = toInt16(s.pcm.Data[f*fileChans+c], shift)
			}
			s.chunk[f*s.params.Channels+c] = v
		}
	}
	return true
}

// toInt16 rescales a decoded sample. 8-bit WAV data is unsigned.
func toInt16(v, shift int) int16 {
	switch {
	case shift == -8:
		return int16((v - 128) << 8)
	case shift > 0:
		return int16(v >> shift)
	default:
		return int16(v)
	}
}
