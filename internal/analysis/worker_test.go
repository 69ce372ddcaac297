// SPDX-License-Identifier: MIT
package analysis

import (
	"math"
	"testing"

	"tuner/internal/channel"
	"tuner/pkg/utils"
)

const (
	testFFTSize    = 1024
	testSampleRate = 44100.0
)

func newChannels(t testing.TB, n int) []*channel.Channel {
	t.Helper()
	chans := make([]*channel.Channel, n)
	for i := range chans {
		c, err := channel.New(i, testSampleRate, 2, testFFTSize)
		if err != nil {
			t.Fatalf("channel.New: %v", err)
		}
		chans[i] = c
	}
	return chans
}

func TestWorkerWarmup(t *testing.T) {
	chans := newChannels(t, 1)
	c := chans[0]
	w := NewWorker(Rectangular, 220)

	c.Append(make([]float32, testFFTSize-1))
	if n := w.Process(chans); n != 0 {
		t.Fatalf("Process analysed %d channels during warm-up", n)
	}
	d := c.Derived()
	if d.FFT.Filled() != 0 || d.Pitch.Filled() != 0 || d.Power.Filled() != 0 {
		t.Fatal("warm-up must leave derived buffers empty")
	}

	c.Append([]float32{0})
	if n := w.Process(chans); n != 1 {
		t.Fatalf("Process analysed %d channels, want 1", n)
	}
	for name, b := range map[string]int{
		"fft":        d.FFT.Filled(),
		"power":      d.Power.Filled(),
		"pitch":      d.Pitch.Filled(),
		"frequency":  d.Frequency.Filled(),
		"confidence": d.Confidence.Filled(),
	} {
		if b != 1 {
			t.Errorf("%s buffer holds %d frames, want exactly 1", name, b)
		}
	}
}

func TestWorkerSkipsOnlyColdChannels(t *testing.T) {
	chans := newChannels(t, 2)
	chans[0].Append(make([]float32, testFFTSize))
	chans[1].Append(make([]float32, 10))

	w := NewWorker(Rectangular, 220)
	if n := w.Process(chans); n != 1 {
		t.Fatalf("analysed %d, want 1", n)
	}
	if chans[1].Derived().Pitch.Filled() != 0 {
		t.Error("cold channel received a frame")
	}
}

func TestWorkerSine(t *testing.T) {
	chans := newChannels(t, 1)
	c := chans[0]
	c.Append(utils.Float32(utils.GenerateSineWave(testFFTSize, testSampleRate, 440, 0.8)))

	w := NewWorker(Hann, 220)
	w.Process(chans)

	hz, _ := c.LatestFrequency()
	if math.Abs(hz-440) > 2 {
		t.Errorf("frequency = %.2f Hz, want ~440", hz)
	}
	cents, ok := c.LatestPitch(220)
	if !ok || math.Abs(cents-1200) > 10 {
		t.Errorf("pitch = %.1f cents (ok=%v), want ~1200", cents, ok)
	}

	stored, _ := c.Derived().Pitch.Latest()
	if math.Abs(float64(stored[0])-1200) > 10 {
		t.Errorf("stored pitch = %.1f cents", stored[0])
	}

	spectrum, _ := c.Derived().FFT.Latest()
	mags := make([]float64, len(spectrum))
	for i, v := range spectrum {
		mags[i] = float64(v)
	}
	peak := utils.FindPeakBin(mags, 1, len(mags)-1)
	if want := int(math.Round(440 * testFFTSize / testSampleRate)); peak != want {
		t.Errorf("peak bin = %d, want %d", peak, want)
	}

	if power, _ := c.LatestPower(); power <= 0 {
		t.Errorf("power = %g, want > 0", power)
	}
}

func TestWorkerSilenceStoresNaN(t *testing.T) {
	chans := newChannels(t, 1)
	chans[0].Append(make([]float32, testFFTSize))

	NewWorker(Rectangular, 220).Process(chans)

	v, ok := chans[0].Derived().Pitch.Latest()
	if !ok || !math.IsNaN(float64(v[0])) {
		t.Errorf("silence pitch = %v, want NaN", v)
	}
	if hz, _ := chans[0].LatestFrequency(); hz != 0 {
		t.Errorf("silence frequency = %g", hz)
	}
}

func TestWorkerStandardFrequency(t *testing.T) {
	chans := newChannels(t, 1)
	chans[0].Append(utils.Float32(utils.GenerateSineWave(testFFTSize, testSampleRate, 440, 0.8)))

	w := NewWorker(Rectangular, 220)
	w.SetStandardFrequency(440)
	w.SetStandardFrequency(-1) // ignored
	if w.StandardFrequency() != 440 {
		t.Fatalf("standard = %g", w.StandardFrequency())
	}
	w.Process(chans)

	stored, _ := chans[0].Derived().Pitch.Latest()
	if math.Abs(float64(stored[0])) > 10 {
		t.Errorf("440 Hz against 440 = %.1f cents, want ~0", stored[0])
	}
}

func TestWorkerFollowsReconfigure(t *testing.T) {
	chans := newChannels(t, 1)
	c := chans[0]
	c.Append(make([]float32, 4096))
	w := NewWorker(Rectangular, 220)
	w.Process(chans)

	if _, err := c.Reconfigure(2048); err != nil {
		t.Fatal(err)
	}
	if n := w.Process(chans); n != 1 {
		t.Fatal("expected a frame after reconfigure")
	}
	if got := c.Derived().FFT.Width(); got != 1025 {
		t.Errorf("fft width = %d", got)
	}
	if len(w.spectra) != 2 {
		t.Errorf("cached spectra = %d, want 2", len(w.spectra))
	}
}

func TestWorkerHotPathNoAllocs(t *testing.T) {
	chans := newChannels(t, 2)
	for _, c := range chans {
		c.Append(utils.Float32(utils.GenerateComplexWave(testFFTSize, testSampleRate)))
	}
	w := NewWorker(Hann, 220)
	w.Process(chans)

	allocs := testing.AllocsPerRun(50, func() {
		w.Process(chans)
	})
	if allocs > 0 {
		t.Errorf("Expected zero allocations in Worker.Process, got %.1f", allocs)
	}
}

func BenchmarkWorkerProcess(b *testing.B) {
	chans := newChannels(b, 2)
	for _, c := range chans {
		c.Append(utils.Float32(utils.GenerateComplexWave(testFFTSize, testSampleRate)))
	}
	w := NewWorker(Hann, 220)

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		w.Process(chans)
	}
}
