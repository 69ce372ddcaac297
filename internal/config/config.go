package config

import "time"

// Defaults and hard limits for the capture and analysis pipeline.
const (
	DefaultLogLevel            = "info"
	DefaultDeviceIndex         = MinDeviceIndex // system default input
	DefaultSamplingRate        = 44100
	DefaultChunkSize           = 512 // frames per callback
	DefaultChannelCount        = 1
	DefaultBufferLengthSeconds = 100.0
	DefaultLowLatency          = false

	DefaultFFTSize           = 1024
	DefaultFFTWindow         = "none"
	DefaultPitchAlgorithm    = "yin"
	DefaultPitchTolerance    = 0.8
	DefaultStandardFrequency = 220.0
	DefaultRefreshInterval   = 58 * time.Millisecond

	DefaultExportDir            = "./pitch-tracks"
	DefaultExportPowerThreshold = 0.0
	DefaultExportMinConfidence  = 0.0

	MinDeviceIndex = -1 // -1 selects the host's default input
	MinSampleRate  = 8000
	MaxSampleRate  = 192000
	MinFFTSize     = 64
	MaxFFTSize     = 65536
)

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		LogLevel: DefaultLogLevel,
		Audio: AudioConfig{
			DeviceIndex:         DefaultDeviceIndex,
			SamplingRate:        DefaultSamplingRate,
			ChunkSize:           DefaultChunkSize,
			ChannelCount:        DefaultChannelCount,
			BufferLengthSeconds: DefaultBufferLengthSeconds,
			LowLatency:          DefaultLowLatency,
		},
		Analysis: AnalysisConfig{
			FFTSize:           DefaultFFTSize,
			FFTWindow:         DefaultFFTWindow,
			PitchAlgorithm:    DefaultPitchAlgorithm,
			PitchTolerance:    DefaultPitchTolerance,
			StandardFrequency: DefaultStandardFrequency,
			RefreshInterval:   DefaultRefreshInterval,
		},
		Export: ExportConfig{
			Dir:            DefaultExportDir,
			PowerThreshold: DefaultExportPowerThreshold,
			MinConfidence:  DefaultExportMinConfidence,
		},
	}
}

// AnalysisRate is the number of derived frames produced per second.
func (c *Config) AnalysisRate() float64 {
	return c.Audio.SamplingRate / float64(c.Analysis.FFTSize)
}

// RawBufferFrames is the capacity of each channel's raw ring in samples.
func (c *Config) RawBufferFrames() int {
	return int(c.Audio.SamplingRate*c.Audio.BufferLengthSeconds + 0.5)
}
