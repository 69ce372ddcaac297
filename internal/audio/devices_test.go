package audio

import (
	"bytes"
	"errors"
	"fmt"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/gordonklaus/portaudio"
)

func setupPortAudio(t *testing.T) {
	t.Helper()
	if err := Initialize(); err != nil {
		t.Skipf("PortAudio unavailable: %v", err)
	}
	t.Cleanup(func() {
		if err := Terminate(); err != nil {
			t.Fatalf("Failed to terminate PortAudio: %v", err)
		}
	})
}

func TestResolveDevice(t *testing.T) {
	b := newFakeBackend()

	tests := []struct {
		name    string
		id      int
		want    int
		wantErr bool
	}{
		{"Default device", -1, 0, false},
		{"Explicit input", 2, 2, false},
		{"Output only", 1, 0, true},
		{"Negative ID", -2, 0, true},
		{"Too high ID", 10, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := ResolveDevice(b, tt.id)
			if tt.wantErr {
				if !errors.Is(err, ErrDeviceUnavailable) {
					t.Errorf("ResolveDevice(%d) error = %v, want ErrDeviceUnavailable", tt.id, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ResolveDevice(%d): %v", tt.id, err)
			}
			if d.ID != tt.want {
				t.Errorf("ResolveDevice(%d) = device %d, want %d", tt.id, d.ID, tt.want)
			}
		})
	}
}

func TestSupportedSampleRates(t *testing.T) {
	b := newFakeBackend()

	if got := SupportedSampleRates(b, b.devices[2], 2); !slices.Equal(got, []float64{44100, 48000, 96000}) {
		t.Errorf("device 2 rates = %v", got)
	}
	if got := SupportedSampleRates(b, b.devices[0], 4); len(got) != 0 {
		t.Errorf("rates with too many channels = %v, want none", got)
	}

	// a non-standard default rate is probed too
	b.devices[0].DefaultSampleRate = 47250
	b.rates[0] = append(b.rates[0], 47250)
	if got := SupportedSampleRates(b, b.devices[0], 1); !slices.Equal(got, []float64{44100, 47250, 48000}) {
		t.Errorf("rates with odd default = %v", got)
	}
}

func TestListDevices(t *testing.T) {
	b := newFakeBackend()
	b.devices[2].HostAPI = "Core Audio"
	b.devices[2].DefaultLowInputLatency = 5 * time.Millisecond

	var buf bytes.Buffer
	if err := ListDevices(&buf, b); err != nil {
		t.Fatal(err)
	}
	out := buf.String()

	for _, want := range []string{
		"[0] Built-in Microphone (Input)",
		"[1] Speakers (Output)",
		"[2] USB Interface (Input/Output)",
		"Host API: Core Audio",
		"Input channels: 4, Output channels: 4",
		"Default sample rate: 48000 Hz",
		"Latency: Low=5.00ms, High=0.00ms",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Count(out, "Host API:") != 1 {
		t.Error("Host API line printed for devices without one")
	}
}

func TestListSampleRates(t *testing.T) {
	b := newFakeBackend()

	var buf bytes.Buffer
	ListSampleRates(&buf, b, b.devices[0], 2)
	want := "[0] Built-in Microphone, 2 channel(s):\n    44100 Hz\n    48000 Hz\n"
	if buf.String() != want {
		t.Errorf("got %q, want %q", buf.String(), want)
	}

	buf.Reset()
	ListSampleRates(&buf, b, b.devices[1], 1)
	if !strings.Contains(buf.String(), "no supported sample rates") {
		t.Errorf("got %q", buf.String())
	}
}

func TestDeviceLatency(t *testing.T) {
	d := Device{DefaultLowInputLatency: time.Millisecond, DefaultHighInputLatency: 10 * time.Millisecond}
	if d.Latency(true) != time.Millisecond || d.Latency(false) != 10*time.Millisecond {
		t.Errorf("latency low %v high %v", d.Latency(true), d.Latency(false))
	}
	if (Device{}).Kind() != "" {
		t.Error("device without channels has a kind")
	}
}

func TestFromDeviceInfo(t *testing.T) {
	info := &portaudio.DeviceInfo{
		Index:                   3,
		Name:                    "Line In",
		MaxInputChannels:        2,
		DefaultSampleRate:       48000,
		DefaultLowInputLatency:  3 * time.Millisecond,
		DefaultHighInputLatency: 12 * time.Millisecond,
		HostApi:                 &portaudio.HostApiInfo{Name: "ALSA"},
	}

	d := fromDeviceInfo(3, info)
	want := Device{
		ID:                      3,
		Name:                    "Line In",
		HostAPI:                 "ALSA",
		MaxInputChannels:        2,
		DefaultSampleRate:       48000,
		DefaultLowInputLatency:  3 * time.Millisecond,
		DefaultHighInputLatency: 12 * time.Millisecond,
	}
	if d != want {
		t.Errorf("got %+v, want %+v", d, want)
	}
}

func TestPortAudioBackend_paDevicesError(t *testing.T) {
	orig := paDevicesFunc
	defer func() { paDevicesFunc = orig }()
	paDevicesFunc = func() ([]*portaudio.DeviceInfo, error) {
		return nil, fmt.Errorf("mock error")
	}

	var b PortAudioBackend
	if _, err := b.Devices(); err == nil || !strings.Contains(err.Error(), "mock error") {
		t.Errorf("Devices: expected mock error, got %v", err)
	}
	if _, err := ResolveDevice(b, 0); !errors.Is(err, ErrDeviceUnavailable) {
		t.Errorf("ResolveDevice: expected ErrDeviceUnavailable, got %v", err)
	}
	if err := b.IsFormatSupported(StreamParams{Device: 0, Channels: 1, SampleRate: 44100}); err == nil {
		t.Error("IsFormatSupported: expected error")
	}
}

func TestPortAudioBackend_paDefaultInputDeviceError(t *testing.T) {
	orig := paDefaultInputDeviceFunc
	defer func() { paDefaultInputDeviceFunc = orig }()
	paDefaultInputDeviceFunc = func() (*portaudio.DeviceInfo, error) {
		return nil, fmt.Errorf("mock default input error")
	}

	_, err := ResolveDevice(PortAudioBackend{}, -1)
	if !errors.Is(err, ErrDeviceUnavailable) || !strings.Contains(err.Error(), "mock default input error") {
		t.Errorf("expected wrapped mock error, got %v", err)
	}
}

func TestPortAudioBackend_NilDevices(t *testing.T) {
	orig := paDevicesFunc
	defer func() { paDevicesFunc = orig }()
	paDevicesFunc = func() ([]*portaudio.DeviceInfo, error) {
		return nil, nil
	}

	devices, err := PortAudioBackend{}.Devices()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if devices == nil || len(devices) != 0 {
		t.Errorf("expected empty slice, got %v", devices)
	}
}

func TestPortAudioBackend_InvalidDevice(t *testing.T) {
	orig := paDevicesFunc
	defer func() { paDevicesFunc = orig }()
	paDevicesFunc = func() ([]*portaudio.DeviceInfo, error) {
		return []*portaudio.DeviceInfo{{Name: "only"}}, nil
	}

	_, err := PortAudioBackend{}.OpenStream(StreamParams{Device: 4, Channels: 1, SampleRate: 44100}, nil)
	if err == nil || !strings.Contains(err.Error(), "invalid device ID") {
		t.Errorf("expected invalid device error, got %v", err)
	}
}

func TestPortAudioDevices(t *testing.T) {
	setupPortAudio(t)

	b := PortAudioBackend{}
	devices, err := b.Devices()
	if err != nil {
		t.Fatalf("Devices error: %v", err)
	}
	if len(devices) == 0 {
		t.Skip("No audio devices found on system")
	}
	for i, d := range devices {
		if d.ID != i {
			t.Errorf("Device ID mismatch: got %d, want %d", d.ID, i)
		}
		if d.DefaultSampleRate <= 0 {
			t.Errorf("Device %d has invalid sample rate: %f", i, d.DefaultSampleRate)
		}
	}

	d, err := ResolveDevice(b, -1)
	if err != nil {
		t.Skipf("No default input device: %v", err)
	}
	if rates := SupportedSampleRates(b, d, 1); len(rates) == 0 {
		t.Logf("default input %q reports no standard rates", d.Name)
	}
}
