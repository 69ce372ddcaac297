package audio

import (
	"fmt"

	"github.com/gordonklaus/portaudio"
)

// Initialize sets up the PortAudio subsystem.
// This must be called before any audio operations and paired with a Terminate() call.
func Initialize() error {
	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("failed to initialize PortAudio: %w", err)
	}
	return nil
}

// Terminate cleanly shuts down the PortAudio subsystem.
// This should be deferred immediately after Initialize().
func Terminate() error {
	if err := portaudio.Terminate(); err != nil {
		return fmt.Errorf("failed to terminate PortAudio: %w", err)
	}
	return nil
}

// Swapped in tests.
var (
	paDevicesFunc            = portaudio.Devices
	paDefaultInputDeviceFunc = portaudio.DefaultInputDevice
)

// PortAudioBackend captures from PortAudio devices. Initialize must have
// been called.
type PortAudioBackend struct{}

var _ Backend = PortAudioBackend{}

func (PortAudioBackend) Devices() ([]Device, error) {
	infos, err := paDevicesFunc()
	if err != nil {
		return nil, err
	}
	devices := make([]Device, len(infos))
	for i, info := range infos {
		devices[i] = fromDeviceInfo(i, info)
	}
	return devices, nil
}

func (PortAudioBackend) DefaultInputDevice() (Device, error) {
	info, err := paDefaultInputDeviceFunc()
	if err != nil {
		return Device{}, err
	}
	if info.Index < 0 {
		return Device{}, fmt.Errorf("no default input device")
	}
	return fromDeviceInfo(info.Index, info), nil
}

func (b PortAudioBackend) IsFormatSupported(p StreamParams) error {
	params, err := b.streamParameters(p)
	if err != nil {
		return err
	}
	// the callback only tells PortAudio the sample format
	return portaudio.IsFormatSupported(params, func([]int16) {})
}

func (b PortAudioBackend) OpenStream(p StreamParams, cb Callback) (Stream, error) {
	params, err := b.streamParameters(p)
	if err != nil {
		return nil, err
	}
	// PortAudio's Go callbacks cannot request completion; the Source
	// stops delivery itself once it has asked to stop.
	stream, err := portaudio.OpenStream(params, func(in []int16) {
		cb(in)
	})
	if err != nil {
		return nil, err
	}
	return stream, nil
}

func (PortAudioBackend) streamParameters(p StreamParams) (portaudio.StreamParameters, error) {
	infos, err := paDevicesFunc()
	if err != nil {
		return portaudio.StreamParameters{}, err
	}
	if p.Device < 0 || p.Device >= len(infos) {
		return portaudio.StreamParameters{}, fmt.Errorf("invalid device ID: %d", p.Device)
	}
	info := infos[p.Device]

	latency := info.DefaultHighInputLatency
	if p.LowLatency {
		latency = info.DefaultLowInputLatency
	}

	return portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Device:   info,
			Channels: p.Channels,
			Latency:  latency,
		},
		Output: portaudio.StreamDeviceParameters{
			Channels: 0, // input only
			Device:   nil,
		},
		FramesPerBuffer: p.FramesPerBuffer,
		SampleRate:      p.SampleRate,
	}, nil
}

func fromDeviceInfo(id int, info *portaudio.DeviceInfo) Device {
	d := Device{
		ID:                      id,
		Name:                    info.Name,
		MaxInputChannels:        info.MaxInputChannels,
		MaxOutputChannels:       info.MaxOutputChannels,
		DefaultSampleRate:       info.DefaultSampleRate,
		DefaultLowInputLatency:  info.DefaultLowInputLatency,
		DefaultHighInputLatency: info.DefaultHighInputLatency,
	}
	if info.HostApi != nil {
		d.HostAPI = info.HostApi.Name
	}
	return d
}
