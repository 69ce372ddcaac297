// SPDX-License-Identifier: MIT
package pitch

import (
	"errors"
	"fmt"
	"math"
	"testing"

	"tuner/pkg/utils"
)

const (
	testSampleRate = 44100.0
	testWindow     = 2048
)

func mustDetector(t *testing.T, a Algorithm) Detector {
	t.Helper()
	d, err := New(Params{
		Algorithm:  a,
		WindowSize: testWindow,
		HopSize:    testWindow,
		SampleRate: testSampleRate,
		Tolerance:  DefaultTolerance,
	})
	if err != nil {
		t.Fatalf("New(%s): %v", a, err)
	}
	return d
}

func TestParseAlgorithm(t *testing.T) {
	tests := []struct {
		in      string
		want    Algorithm
		wantErr bool
	}{
		{"yin", YIN, false},
		{"YIN", YIN, false},
		{" yinfast ", YINFast, false},
		{"hps", HPS, false},
		{"mcomb", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseAlgorithm(tt.in)
			if tt.wantErr {
				if !errors.Is(err, ErrUnknownAlgorithm) {
					t.Errorf("expected ErrUnknownAlgorithm, got %v", err)
				}
				return
			}
			if err != nil || got != tt.want {
				t.Errorf("ParseAlgorithm(%q) = %q, %v", tt.in, got, err)
			}
		})
	}
}

func TestNewRejectsBadParams(t *testing.T) {
	base := Params{Algorithm: YIN, WindowSize: 1024, SampleRate: 44100, Tolerance: 0.8}

	tests := []struct {
		name   string
		mutate func(p *Params)
	}{
		{"tiny window", func(p *Params) { p.WindowSize = 2 }},
		{"zero rate", func(p *Params) { p.SampleRate = 0 }},
		{"zero tolerance", func(p *Params) { p.Tolerance = 0 }},
		{"tolerance above one", func(p *Params) { p.Tolerance = 1.5 }},
		{"unknown algorithm", func(p *Params) { p.Algorithm = "schmitt" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := base
			tt.mutate(&p)
			if _, err := New(p); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestDetectSine(t *testing.T) {
	frequencies := []float64{110, 220, 261.63, 440, 659.25}

	for _, a := range []Algorithm{YIN, YINFast} {
		for _, f := range frequencies {
			t.Run(fmt.Sprintf("%s_%.0fHz", a, f), func(t *testing.T) {
				d := mustDetector(t, a)
				hz, conf := d.Detect(utils.GenerateSineWave(testWindow, testSampleRate, f, 0.8))
				cents, ok := FrequencyToCents(hz, f)
				if !ok || math.Abs(cents) > 5 {
					t.Errorf("%s detected %.2f Hz for %.2f Hz (%.1f cents off)", a, hz, f, cents)
				}
				if conf < 0.9 {
					t.Errorf("%s confidence %.3f for a clean sine", a, conf)
				}
			})
		}
	}
}

func TestYinFastMatchesYin(t *testing.T) {
	slow := mustDetector(t, YIN)
	fast := mustDetector(t, YINFast)
	signal := utils.GenerateComplexWave(testWindow, testSampleRate)

	hzSlow, _ := slow.Detect(signal)
	hzFast, _ := fast.Detect(signal)
	if math.Abs(hzSlow-hzFast) > 0.01 {
		t.Errorf("yin %.4f Hz, yinfast %.4f Hz", hzSlow, hzFast)
	}
	if math.Abs(hzSlow-440) > 2 {
		t.Errorf("complex wave fundamental = %.2f Hz, want ~440", hzSlow)
	}
}

func TestDetectHPS(t *testing.T) {
	const f0 = 220.0
	signal := make([]float64, testWindow)
	for k := 1; k <= 5; k++ {
		harmonic := utils.GenerateSineWave(testWindow, testSampleRate, f0*float64(k), 1/float64(k))
		for i, v := range harmonic {
			signal[i] += v
		}
	}

	d := mustDetector(t, HPS)
	hz, conf := d.Detect(signal)

	binWidth := testSampleRate / testWindow
	if math.Abs(hz-f0) > binWidth {
		t.Errorf("hps detected %.2f Hz, want %.0f within one bin (%.2f Hz)", hz, f0, binWidth)
	}
	if conf <= 0 {
		t.Errorf("confidence = %g, want > 0", conf)
	}
}

func TestDetectSilence(t *testing.T) {
	silence := make([]float64, testWindow)
	for _, a := range Algorithms() {
		t.Run(string(a), func(t *testing.T) {
			hz, conf := mustDetector(t, a).Detect(silence)
			if hz != 0 || conf != 0 {
				t.Errorf("silence gave %.2f Hz, confidence %.2f", hz, conf)
			}
		})
	}
}

func TestDetectShortWindow(t *testing.T) {
	for _, a := range Algorithms() {
		hz, _ := mustDetector(t, a).Detect(make([]float64, 10))
		if hz != 0 {
			t.Errorf("%s: short window gave %.2f Hz", a, hz)
		}
	}
}

func TestFrequencyToCents(t *testing.T) {
	tests := []struct {
		f, standard float64
		want        float64
		ok          bool
	}{
		{220, 220, 0, true},
		{440, 220, 1200, true},
		{110, 220, -1200, true},
		{233.08, 220, 100, true},
		{0, 220, 0, false},
		{-5, 220, 0, false},
		{math.NaN(), 220, 0, false},
		{440, 0, 0, false},
	}
	for _, tt := range tests {
		got, ok := FrequencyToCents(tt.f, tt.standard)
		if ok != tt.ok {
			t.Errorf("FrequencyToCents(%g, %g) ok = %v, want %v", tt.f, tt.standard, ok, tt.ok)
			continue
		}
		if !ok {
			if !math.IsNaN(got) {
				t.Errorf("invalid input must return NaN, got %g", got)
			}
			continue
		}
		if math.Abs(got-tt.want) > 0.05 {
			t.Errorf("FrequencyToCents(%g, %g) = %.3f, want %.3f", tt.f, tt.standard, got, tt.want)
		}
	}
}

func TestCentsRoundTrip(t *testing.T) {
	for _, f := range []float64{55, 220, 327.5, 1760} {
		c, _ := FrequencyToCents(f, 220)
		if back := CentsToFrequency(c, 220); math.Abs(back-f) > 1e-9 {
			t.Errorf("round trip %g -> %g", f, back)
		}
	}
}

func TestDetectNoAllocs(t *testing.T) {
	signal := utils.GenerateSineWave(testWindow, testSampleRate, 440, 0.5)
	for _, a := range Algorithms() {
		d := mustDetector(t, a)
		d.Detect(signal)
		allocs := testing.AllocsPerRun(20, func() {
			d.Detect(signal)
		})
		if allocs > 0 {
			t.Errorf("%s: Expected zero allocations in Detect, got %.1f", a, allocs)
		}
	}
}

func BenchmarkDetect(b *testing.B) {
	signal := utils.GenerateComplexWave(testWindow, testSampleRate)
	for _, a := range Algorithms() {
		d, _ := New(Params{Algorithm: a, WindowSize: testWindow, HopSize: testWindow, SampleRate: testSampleRate, Tolerance: DefaultTolerance})
		b.Run(string(a), func(b *testing.B) {
			b.ReportAllocs()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				d.Detect(signal)
			}
		})
	}
}
