// SPDX-License-Identifier: MIT
/*
Package tuner drives the analysis side of the pipeline. Each refresh cycle
flushes the audio queue into the channels, runs the analyzer once and
summarizes the latest pitch of every channel in a Snapshot.

Cycles run on a ticker goroutine started by Start, or synchronously through
Refresh. Everything that touches channel buffers (cycles, Do, SetFFTSize)
is serialized, so channels keep a single logical owner even when the
caller is a UI goroutine.
*/
package tuner

import (
	"fmt"
	"math"
	"sync"
	"time"

	"tuner/internal/analysis"
	"tuner/internal/channel"
	"tuner/internal/log"
)

// DefaultInterval is the refresh period used when none is given.
const DefaultInterval = 58 * time.Millisecond

// Source is the capture side a Tuner drains. *audio.Source implements it.
type Source interface {
	Flush() int
	Channels() []*channel.Channel
}

// Options configures a Tuner.
type Options struct {
	Interval          time.Duration
	StandardFrequency float64 // Hz anchor for cents
	Gate              analysis.Gate

	// OnRefresh, if set, receives every snapshot. It runs on the goroutine
	// that performed the cycle and must not call back into the Tuner.
	OnRefresh func(Snapshot)
}

// Reading is the latest analysis result of one channel.
type Reading struct {
	Channel    int
	Hz         float64
	Cents      float64 // NaN without pitch
	Confidence float64
	Power      float64
	Valid      bool // pitched and through the gate
}

func (r Reading) String() string {
	if !r.Valid {
		return fmt.Sprintf("ch %d: no pitch", r.Channel)
	}
	return fmt.Sprintf("ch %d: %.2f Hz, %+.1f cents, confidence %.2f, power %.4f",
		r.Channel, r.Hz, r.Cents, r.Confidence, r.Power)
}

// Difference is the pitch of channel A relative to channel B in cents.
type Difference struct {
	A, B  int
	Cents float64 // NaN unless both readings are valid
}

func (d Difference) String() string {
	if math.IsNaN(d.Cents) {
		return fmt.Sprintf("ch %d - ch %d: --", d.A, d.B)
	}
	return fmt.Sprintf("ch %d - ch %d: %+.1f cents", d.A, d.B, d.Cents)
}

// Snapshot summarizes one refresh cycle.
type Snapshot struct {
	Time        float64 // seconds of audio captured so far
	Frames      int     // frames flushed per channel this cycle
	Analysed    int     // channels that produced a frame
	Standard    float64
	Readings    []Reading
	Differences []Difference
}

// Tuner runs refresh cycles over a Source.
type Tuner struct {
	logger    *log.Logger
	source    Source
	analyzer  analysis.Analyzer
	interval  time.Duration
	onRefresh func(Snapshot)

	cycleMu  sync.Mutex // serializes access to channel buffers
	standard float64
	gate     analysis.Gate

	snapMu sync.Mutex
	latest Snapshot

	// run state, as in a ticker-driven publisher
	mu       sync.Mutex
	ticker   *time.Ticker
	doneChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// New returns a stopped Tuner.
func New(source Source, analyzer analysis.Analyzer, opts Options) (*Tuner, error) {
	if source == nil || analyzer == nil {
		return nil, fmt.Errorf("tuner: source and analyzer are required")
	}
	if opts.StandardFrequency <= 0 {
		return nil, fmt.Errorf("tuner: standard frequency must be positive, got %g", opts.StandardFrequency)
	}

	logger := log.New("tuner")
	interval := opts.Interval
	if interval <= 0 {
		interval = DefaultInterval
		logger.Warnf("invalid interval, defaulting to %s", interval)
	}

	t := &Tuner{
		logger:    logger,
		source:    source,
		analyzer:  analyzer,
		interval:  interval,
		onRefresh: opts.OnRefresh,
		standard:  opts.StandardFrequency,
		gate:      opts.Gate,
	}
	if s, ok := analyzer.(analysis.StandardSetter); ok {
		s.SetStandardFrequency(opts.StandardFrequency)
	}
	return t, nil
}

func (t *Tuner) Interval() time.Duration { return t.interval }

// Refresh performs one cycle: flush, analyse, snapshot.
func (t *Tuner) Refresh() Snapshot {
	t.cycleMu.Lock()
	frames := t.source.Flush()
	analysed := t.analyzer.Process(t.source.Channels())
	snap := t.snapshotLocked(frames, analysed)
	t.cycleMu.Unlock()

	t.snapMu.Lock()
	t.latest = snap
	t.snapMu.Unlock()

	if t.onRefresh != nil {
		t.onRefresh(snap)
	}
	return snap
}

// Latest returns the snapshot of the most recent cycle.
func (t *Tuner) Latest() Snapshot {
	t.snapMu.Lock()
	defer t.snapMu.Unlock()
	return t.latest
}

func (t *Tuner) snapshotLocked(frames, analysed int) Snapshot {
	channels := t.source.Channels()
	snap := Snapshot{
		Frames:   frames,
		Analysed: analysed,
		Standard: t.standard,
		Readings: make([]Reading, len(channels)),
	}
	if len(channels) > 0 {
		snap.Time = channels[0].Raw().TFilled()
	}

	for i, c := range channels {
		r := Reading{Channel: c.Index()}
		r.Hz, _ = c.LatestFrequency()
		r.Confidence, _ = c.LatestConfidence()
		r.Power, _ = c.LatestPower()
		var pitched bool
		r.Cents, pitched = c.LatestPitch(t.standard)
		r.Valid = pitched && t.gate.Open(r.Cents, r.Power, r.Confidence)
		snap.Readings[i] = r
	}

	for a := 0; a < len(snap.Readings); a++ {
		for b := a + 1; b < len(snap.Readings); b++ {
			ra, rb := snap.Readings[a], snap.Readings[b]
			d := Difference{A: ra.Channel, B: rb.Channel, Cents: math.NaN()}
			if ra.Valid && rb.Valid {
				d.Cents = ra.Cents - rb.Cents
			}
			snap.Differences = append(snap.Differences, d)
		}
	}
	return snap
}

// Do runs fn between cycles with exclusive access to the channels.
func (t *Tuner) Do(fn func(channels []*channel.Channel)) {
	t.cycleMu.Lock()
	defer t.cycleMu.Unlock()
	fn(t.source.Channels())
}

// SetFFTSize reconfigures every channel. Either all channels switch or,
// on error, none do.
func (t *Tuner) SetFFTSize(n int) error {
	t.cycleMu.Lock()
	defer t.cycleMu.Unlock()

	channels := t.source.Channels()
	for i, c := range channels {
		old := c.FFTSize()
		if old == n {
			continue
		}
		if _, err := c.Reconfigure(n); err != nil {
			for _, done := range channels[:i] {
				if _, rerr := done.Reconfigure(old); rerr != nil {
					t.logger.Errorf("channel %d: restoring fft size %d: %v", done.Index(), old, rerr)
				}
			}
			return err
		}
	}
	t.logger.Infof("fft size set to %d", n)
	return nil
}

// FFTSize reports the FFT size of the first channel.
func (t *Tuner) FFTSize() int {
	t.cycleMu.Lock()
	defer t.cycleMu.Unlock()
	channels := t.source.Channels()
	if len(channels) == 0 {
		return 0
	}
	return channels[0].FFTSize()
}

// SetStandardFrequency moves the cents anchor for the next cycle.
func (t *Tuner) SetStandardFrequency(hz float64) error {
	if hz <= 0 || math.IsNaN(hz) || math.IsInf(hz, 0) {
		return fmt.Errorf("tuner: standard frequency must be positive, got %g", hz)
	}
	t.cycleMu.Lock()
	defer t.cycleMu.Unlock()
	t.standard = hz
	if s, ok := t.analyzer.(analysis.StandardSetter); ok {
		s.SetStandardFrequency(hz)
	}
	return nil
}

func (t *Tuner) StandardFrequency() float64 {
	t.cycleMu.Lock()
	defer t.cycleMu.Unlock()
	return t.standard
}

// SetGate replaces the power and confidence thresholds used for Valid.
func (t *Tuner) SetGate(g analysis.Gate) {
	t.cycleMu.Lock()
	defer t.cycleMu.Unlock()
	t.gate = g
}

func (t *Tuner) Gate() analysis.Gate {
	t.cycleMu.Lock()
	defer t.cycleMu.Unlock()
	return t.gate
}

// Start runs Refresh every interval on a new goroutine. Calling Start on a
// running Tuner is a no-op.
func (t *Tuner) Start() {
	t.mu.Lock()
	if t.ticker != nil {
		t.mu.Unlock()
		t.logger.Warnf("Start called but already running")
		return
	}

	t.ticker = time.NewTicker(t.interval)
	t.doneChan = make(chan struct{})
	t.stopOnce = sync.Once{}

	ticker := t.ticker
	doneChan := t.doneChan
	t.mu.Unlock()

	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		t.logger.Infof("refresh loop started (interval %s)", t.interval)
		for {
			select {
			case <-ticker.C:
				t.Refresh()
			case <-doneChan:
				t.logger.Debugf("refresh loop received stop signal")
				return
			}
		}
	}()
}

// Stop ends the refresh loop and waits for an in-flight cycle to finish.
// It is safe to call more than once.
func (t *Tuner) Stop() {
	t.mu.Lock()
	if t.ticker == nil {
		t.mu.Unlock()
		return
	}
	t.stopOnce.Do(func() {
		close(t.doneChan)
		t.ticker.Stop()
		t.ticker = nil
	})
	t.mu.Unlock()

	t.wg.Wait()
	t.logger.Infof("refresh loop stopped")
}

// Running reports whether the refresh loop is active.
func (t *Tuner) Running() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.ticker != nil
}
