// SPDX-License-Identifier: MIT
/*
Package audio captures interleaved input from a Backend and hands it to the
per-channel buffers of the tuner.

Two goroutines touch a Source:
  - the backend's delivery thread runs the callback, which converts a chunk
    to float32 and queues it;
  - the analysis goroutine calls Flush, which drains the queue and
    de-interleaves the chunks into the channels.

The pending queue and the stop flag are the only state they share. Both are
guarded by one mutex held just long enough to append or swap the queue, so
the callback never waits on analysis. Chunk buffers are recycled through a
sync.Pool and the callback does not allocate in steady state.
*/
package audio

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"tuner/internal/channel"
	"tuner/internal/log"
)

var (
	// ErrUnsupportedSamplingRate is returned when the device does not report
	// support for the requested rate. Rates are never silently downgraded.
	ErrUnsupportedSamplingRate = errors.New("unsupported sampling rate")

	// ErrDeviceUnavailable is returned when a device cannot be resolved,
	// opened or started. The Source does not retry.
	ErrDeviceUnavailable = errors.New("audio device unavailable")

	// ErrTerminated is returned by operations on a terminated Source.
	ErrTerminated = errors.New("audio source terminated")
)

// int16 full scale maps to [-1, 1).
const int16Scale = 1.0 / 32768

// State is the lifecycle position of a Source.
type State int

const (
	Idle State = iota
	Streaming
	Stopped
	Terminated // absorbing
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Streaming:
		return "streaming"
	case Stopped:
		return "stopped"
	case Terminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// SourceConfig is what a Source is constructed against.
type SourceConfig struct {
	DeviceIndex         int // -1 for the default input
	SamplingRate        float64
	ChunkSize           int // frames per callback
	ChannelCount        int
	BufferLengthSeconds float64
	LowLatency          bool

	FFTSize        int
	PitchAlgorithm string
	PitchTolerance float64
}

// Source owns a device stream and the Channels it feeds.
type Source struct {
	logger  *log.Logger
	backend Backend
	cfg     SourceConfig

	// lifecycle, never touched by the callback
	lifeMu   sync.Mutex
	state    State
	device   Device
	rates    []float64
	stream   Stream
	channels []*channel.Channel

	// shared with the callback
	mu      sync.Mutex
	pending []*[]float32
	spare   []*[]float32
	stopped bool

	chunks sync.Pool

	// de-interleave scratch, analysis goroutine only
	split [][]float32
}

// NewSource resolves the device, checks once which sampling rates it
// supports and builds one Channel per input channel. The stream is opened
// by Start.
func NewSource(backend Backend, cfg SourceConfig) (*Source, error) {
	if cfg.ChannelCount < 1 || cfg.ChunkSize < 1 {
		return nil, fmt.Errorf("channel count and chunk size must be positive, got %d and %d", cfg.ChannelCount, cfg.ChunkSize)
	}

	device, err := ResolveDevice(backend, cfg.DeviceIndex)
	if err != nil {
		return nil, err
	}
	if device.MaxInputChannels < cfg.ChannelCount {
		return nil, fmt.Errorf("%w: device %d (%s) has %d input channel(s), %d requested",
			ErrDeviceUnavailable, device.ID, device.Name, device.MaxInputChannels, cfg.ChannelCount)
	}

	rates := SupportedSampleRates(backend, device, cfg.ChannelCount)
	if !slices.Contains(rates, cfg.SamplingRate) {
		return nil, fmt.Errorf("%w: %.0f Hz on device %d (%s), supported: %v",
			ErrUnsupportedSamplingRate, cfg.SamplingRate, device.ID, device.Name, rates)
	}

	channels := make([]*channel.Channel, cfg.ChannelCount)
	for i := range channels {
		c, err := channel.New(i, cfg.SamplingRate, cfg.BufferLengthSeconds, cfg.FFTSize)
		if err != nil {
			return nil, err
		}
		if cfg.PitchAlgorithm != "" {
			if err := c.ConfigurePitchDetector(cfg.PitchAlgorithm, cfg.PitchTolerance); err != nil {
				return nil, err
			}
		}
		channels[i] = c
	}

	s := &Source{
		logger:   log.New("audio"),
		backend:  backend,
		cfg:      cfg,
		device:   device,
		rates:    rates,
		channels: channels,
		split:    make([][]float32, cfg.ChannelCount),
	}
	s.chunks.New = func() any {
		buf := make([]float32, cfg.ChunkSize*cfg.ChannelCount)
		return &buf
	}

	s.logger.Infof("using device %d (%s), %.0f Hz, %d channel(s), %d frames per chunk",
		device.ID, device.Name, cfg.SamplingRate, cfg.ChannelCount, cfg.ChunkSize)
	return s, nil
}

// Channels returns the channels in device order.
func (s *Source) Channels() []*channel.Channel { return s.channels }

func (s *Source) Config() SourceConfig { return s.cfg }

// State reports the lifecycle state.
func (s *Source) State() State {
	s.lifeMu.Lock()
	defer s.lifeMu.Unlock()
	return s.state
}

// Device reports the current device.
func (s *Source) Device() Device {
	s.lifeMu.Lock()
	defer s.lifeMu.Unlock()
	return s.device
}

// SupportedRates returns the rates the current device accepted when it
// was selected.
func (s *Source) SupportedRates() []float64 {
	s.lifeMu.Lock()
	defer s.lifeMu.Unlock()
	return slices.Clone(s.rates)
}

// Start opens the stream if needed and resumes delivery.
func (s *Source) Start() error {
	s.lifeMu.Lock()
	defer s.lifeMu.Unlock()
	return s.startLocked()
}

func (s *Source) startLocked() error {
	switch s.state {
	case Terminated:
		return ErrTerminated
	case Streaming:
		return nil
	}

	s.mu.Lock()
	s.stopped = false
	s.mu.Unlock()

	if s.stream == nil {
		stream, err := s.backend.OpenStream(s.params(), s.callback)
		if err != nil {
			return fmt.Errorf("%w: open device %d: %w", ErrDeviceUnavailable, s.device.ID, err)
		}
		s.stream = stream
	}
	if err := s.stream.Start(); err != nil {
		return fmt.Errorf("%w: start device %d: %w", ErrDeviceUnavailable, s.device.ID, err)
	}

	s.state = Streaming
	s.logger.Debugf("stream started")
	return nil
}

// Stop raises the stop flag, which the next callback observes, and asks
// the backend to halt. The device stays open.
func (s *Source) Stop() error {
	s.lifeMu.Lock()
	defer s.lifeMu.Unlock()
	return s.stopLocked()
}

func (s *Source) stopLocked() error {
	if s.state != Streaming {
		return nil
	}

	s.mu.Lock()
	s.stopped = true
	s.mu.Unlock()

	s.state = Stopped
	if err := s.stream.Stop(); err != nil {
		return fmt.Errorf("failed to stop stream: %w", err)
	}
	s.logger.Debugf("stream stopped")
	return nil
}

// Terminate stops and releases the device. It is idempotent and safe on a
// Source that never started.
func (s *Source) Terminate() error {
	s.lifeMu.Lock()
	defer s.lifeMu.Unlock()

	if s.state == Terminated {
		return nil
	}

	var errs []error
	if err := s.stopLocked(); err != nil {
		errs = append(errs, err)
	}
	if err := s.closeStreamLocked(); err != nil {
		errs = append(errs, err)
	}
	s.state = Terminated

	// drop anything still queued
	s.mu.Lock()
	queued := s.pending
	s.pending = nil
	s.mu.Unlock()
	for _, p := range queued {
		s.putChunk(p)
	}

	s.logger.Infof("source terminated")
	return errors.Join(errs...)
}

// Close is Terminate, for defer.
func (s *Source) Close() error {
	return s.Terminate()
}

func (s *Source) closeStreamLocked() error {
	if s.stream == nil {
		return nil
	}
	err := s.stream.Close()
	s.stream = nil
	if err != nil {
		return fmt.Errorf("failed to close stream: %w", err)
	}
	return nil
}

// SetDevice switches to device id at the same configuration. The new
// device must support the current sampling rate and channel count; on
// failure the current device is kept. A streaming source resumes on the
// new device.
func (s *Source) SetDevice(id int) error {
	s.lifeMu.Lock()
	defer s.lifeMu.Unlock()

	if s.state == Terminated {
		return ErrTerminated
	}

	device, err := ResolveDevice(s.backend, id)
	if err != nil {
		return err
	}
	if device.MaxInputChannels < s.cfg.ChannelCount {
		return fmt.Errorf("%w: device %d (%s) has %d input channel(s), %d required",
			ErrDeviceUnavailable, device.ID, device.Name, device.MaxInputChannels, s.cfg.ChannelCount)
	}
	rates := SupportedSampleRates(s.backend, device, s.cfg.ChannelCount)
	if !slices.Contains(rates, s.cfg.SamplingRate) {
		return fmt.Errorf("%w: %.0f Hz on device %d (%s)", ErrUnsupportedSamplingRate, s.cfg.SamplingRate, device.ID, device.Name)
	}

	wasStreaming := s.state == Streaming
	if err := s.stopLocked(); err != nil {
		s.logger.Warnf("%v", err)
	}
	if err := s.closeStreamLocked(); err != nil {
		s.logger.Warnf("%v", err)
	}

	s.device, s.rates = device, rates
	s.cfg.DeviceIndex = device.ID
	s.state = Idle
	s.logger.Infof("switched to device %d (%s)", device.ID, device.Name)

	if wasStreaming {
		return s.startLocked()
	}
	return nil
}

func (s *Source) params() StreamParams {
	return StreamParams{
		Device:          s.device.ID,
		Channels:        s.cfg.ChannelCount,
		SampleRate:      s.cfg.SamplingRate,
		FramesPerBuffer: s.cfg.ChunkSize,
		LowLatency:      s.cfg.LowLatency,
	}
}

// callback runs on the backend's thread. Conversion happens outside the
// lock; the critical section is one flag check and one append.
func (s *Source) callback(in []int16) CallbackResult {
	p := s.getChunk(len(in))
	chunk := *p
	for i, v := range in {
		chunk[i] = float32(v) * int16Scale
	}

	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		s.putChunk(p)
		return Complete
	}
	s.pending = append(s.pending, p)
	s.mu.Unlock()
	return Continue
}

func (s *Source) getChunk(n int) *[]float32 {
	p := s.chunks.Get().(*[]float32)
	if cap(*p) < n {
		buf := make([]float32, n)
		return &buf
	}
	*p = (*p)[:n]
	return p
}

func (s *Source) putChunk(p *[]float32) {
	s.chunks.Put(p)
}

// GetAndClearPendingFrames swaps the pending queue for an empty one and
// returns its chunks in arrival order. Every chunk is returned by exactly
// one call. The caller owns the returned slices.
func (s *Source) GetAndClearPendingFrames() [][]float32 {
	s.mu.Lock()
	queued := s.pending
	s.pending = nil
	s.mu.Unlock()

	frames := make([][]float32, len(queued))
	for i, p := range queued {
		frames[i] = *p
	}
	return frames
}

// Flush drains the pending queue into the channels' raw buffers. Chunks
// are applied in arrival order and each is de-interleaved by channel. It
// returns the number of frames appended to each channel.
func (s *Source) Flush() int {
	s.mu.Lock()
	queued := s.pending
	s.pending = s.spare[:0]
	s.spare = nil
	s.mu.Unlock()

	nch := len(s.channels)
	appended := 0
	for _, p := range queued {
		chunk := *p
		frames := len(chunk) / nch
		for c := range s.channels {
			if cap(s.split[c]) < frames {
				s.split[c] = make([]float32, frames)
			}
			dst := s.split[c][:frames]
			for f := range dst {
				dst[f] = chunk[f*nch+c]
			}
			s.channels[c].Append(dst)
		}
		appended += frames
		s.putChunk(p)
	}

	clear(queued)
	s.mu.Lock()
	s.spare = queued[:0]
	s.mu.Unlock()
	return appended
}

// Pending reports how many chunks are queued.
func (s *Source) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}
