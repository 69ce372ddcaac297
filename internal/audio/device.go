package audio

import (
	"fmt"
	"io"
	"slices"
)

// StandardSampleRates are the rates probed when asking a device what it
// supports.
var StandardSampleRates = []float64{
	8000, 11025, 16000, 22050, 32000, 44100, 48000, 88200, 96000, 176400, 192000,
}

// ResolveDevice returns the device for deviceID, or the backend's default
// input for -1. Devices without input channels are unavailable.
func ResolveDevice(b Backend, deviceID int) (Device, error) {
	if deviceID == -1 {
		d, err := b.DefaultInputDevice()
		if err != nil {
			return Device{}, fmt.Errorf("%w: no default input: %w", ErrDeviceUnavailable, err)
		}
		return d, nil
	}

	devices, err := b.Devices()
	if err != nil {
		return Device{}, fmt.Errorf("%w: %w", ErrDeviceUnavailable, err)
	}
	if deviceID < 0 || deviceID >= len(devices) {
		return Device{}, fmt.Errorf("%w: invalid device ID %d", ErrDeviceUnavailable, deviceID)
	}

	d := devices[deviceID]
	if d.MaxInputChannels == 0 {
		return Device{}, fmt.Errorf("%w: device %d (%s) has no input channels", ErrDeviceUnavailable, d.ID, d.Name)
	}
	return d, nil
}

// SupportedSampleRates probes the standard rates, plus the device's own
// default, for an input of channels channels and returns the accepted ones
// in ascending order.
func SupportedSampleRates(b Backend, device Device, channels int) []float64 {
	candidates := slices.Clone(StandardSampleRates)
	if device.DefaultSampleRate > 0 && !slices.Contains(candidates, device.DefaultSampleRate) {
		candidates = append(candidates, device.DefaultSampleRate)
		slices.Sort(candidates)
	}

	var rates []float64
	for _, rate := range candidates {
		err := b.IsFormatSupported(StreamParams{
			Device:     device.ID,
			Channels:   channels,
			SampleRate: rate,
		})
		if err == nil {
			rates = append(rates, rate)
		}
	}
	return rates
}

// ListDevices writes a description of every device to w.
func ListDevices(w io.Writer, b Backend) error {
	devices, err := b.Devices()
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "\nAvailable Audio Devices\n\n")

	for _, device := range devices {
		fmt.Fprintf(w, "[%d] %s (%s)\n", device.ID, device.Name, device.Kind())
		if device.HostAPI != "" {
			fmt.Fprintf(w, "    Host API: %s\n", device.HostAPI)
		}
		fmt.Fprintf(w, "    Input channels: %d, Output channels: %d\n", device.MaxInputChannels, device.MaxOutputChannels)
		fmt.Fprintf(w, "    Default sample rate: %.0f Hz\n", device.DefaultSampleRate)
		fmt.Fprintf(w, "    Latency: Low=%.2fms, High=%.2fms\n",
			device.DefaultLowInputLatency.Seconds()*1000,
			device.DefaultHighInputLatency.Seconds()*1000)
		fmt.Fprintln(w)
	}

	return nil
}

// ListSampleRates writes the rates device supports for channels inputs.
func ListSampleRates(w io.Writer, b Backend, device Device, channels int) {
	fmt.Fprintf(w, "[%d] %s, %d channel(s):\n", device.ID, device.Name, channels)
	rates := SupportedSampleRates(b, device, channels)
	if len(rates) == 0 {
		fmt.Fprintln(w, "    no supported sample rates")
		return
	}
	for _, r := range rates {
		fmt.Fprintf(w, "    %.0f Hz\n", r)
	}
}
