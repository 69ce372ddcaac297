// SPDX-License-Identifier: MIT
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"tuner/internal/analysis"
	"tuner/internal/log"
	"tuner/internal/pitch"
	"tuner/pkg/bitint"
)

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config is the application configuration, loaded from YAML or TOML.
type Config struct {
	LogLevel string         `yaml:"log_level" toml:"log_level"` // debug, info, warn, error
	Audio    AudioConfig    `yaml:"audio" toml:"audio"`
	Analysis AnalysisConfig `yaml:"analysis" toml:"analysis"`
	Export   ExportConfig   `yaml:"export" toml:"export"`
}

// AudioConfig holds capture settings.
type AudioConfig struct {
	DeviceIndex         int     `yaml:"device_index" toml:"device_index"`                   // -1 for the default input.
	SamplingRate        float64 `yaml:"sampling_rate" toml:"sampling_rate"`                 // Hz.
	ChunkSize           int     `yaml:"chunk_size" toml:"chunk_size"`                       // Frames per callback.
	ChannelCount        int     `yaml:"channel_count" toml:"channel_count"`                 // Input channels to capture.
	BufferLengthSeconds float64 `yaml:"buffer_length_seconds" toml:"buffer_length_seconds"` // Raw history per channel.
	LowLatency          bool    `yaml:"low_latency" toml:"low_latency"`                     // Request the device's low input latency.
	InputFile           string  `yaml:"input_file,omitempty" toml:"input_file,omitempty"`   // Replay a WAV file instead of a device.
}

// AnalysisConfig holds spectral and pitch settings.
type AnalysisConfig struct {
	FFTSize           int           `yaml:"fft_size" toml:"fft_size"`                     // Window length, power of two.
	FFTWindow         string        `yaml:"fft_window" toml:"fft_window"`                 // none, hann, hamming, blackman...
	PitchAlgorithm    string        `yaml:"pitch_algorithm" toml:"pitch_algorithm"`       // yin, yinfast, hps.
	PitchTolerance    float64       `yaml:"pitch_tolerance" toml:"pitch_tolerance"`       // (0, 1].
	StandardFrequency float64       `yaml:"standard_frequency" toml:"standard_frequency"` // Hz anchor for cents.
	RefreshInterval   time.Duration `yaml:"refresh_interval" toml:"refresh_interval"`     // Tuner loop period.
}

// ExportConfig holds pitch track export settings.
type ExportConfig struct {
	Dir            string  `yaml:"dir" toml:"dir"`
	PowerThreshold float64 `yaml:"power_threshold" toml:"power_threshold"` // Drop frames below this power.
	MinConfidence  float64 `yaml:"min_confidence" toml:"min_confidence"`   // Drop frames below this confidence.
}

// Format is the on-disk encoding of a config file.
type Format int

const (
	FormatYAML Format = iota
	FormatTOML
)

// DetectFormat picks the decoder from the file extension. Unknown
// extensions are treated as YAML.
func DetectFormat(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		return FormatTOML
	default:
		return FormatYAML
	}
}

// SearchPaths are tried in order when LoadConfig gets an empty path.
var SearchPaths = []string{"tuner.yaml", "tuner.toml"}

// LoadConfig loads configuration from path. If path is empty it searches
// SearchPaths and falls back to the built-in defaults. Environment
// overrides are applied last, then the result is validated.
func LoadConfig(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		for _, candidate := range SearchPaths {
			if _, err := os.Stat(candidate); err == nil {
				path = candidate
				break
			}
		}
	}

	if path != "" {
		if err := cfg.decodeFile(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (cfg *Config) decodeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	switch DetectFormat(path) {
	case FormatTOML:
		if _, err := toml.Decode(string(data), cfg); err != nil {
			return fmt.Errorf("failed to parse config file: %w", err)
		}
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("failed to parse config file: %w", err)
		}
	}
	return nil
}

// Validate reports the first setting the pipeline cannot run with.
func (c *Config) Validate() error {
	a, an := c.Audio, c.Analysis

	switch {
	case a.DeviceIndex < MinDeviceIndex:
		return fmt.Errorf("%w: audio.device_index %d (use -1 for the default device)", ErrInvalidConfig, a.DeviceIndex)
	case a.SamplingRate < MinSampleRate || a.SamplingRate > MaxSampleRate:
		return fmt.Errorf("%w: audio.sampling_rate %.0f outside [%d, %d]", ErrInvalidConfig, a.SamplingRate, MinSampleRate, MaxSampleRate)
	case a.ChunkSize < 1:
		return fmt.Errorf("%w: audio.chunk_size must be positive, got %d", ErrInvalidConfig, a.ChunkSize)
	case a.ChannelCount < 1:
		return fmt.Errorf("%w: audio.channel_count must be positive, got %d", ErrInvalidConfig, a.ChannelCount)
	case a.BufferLengthSeconds <= 0:
		return fmt.Errorf("%w: audio.buffer_length_seconds must be positive, got %g", ErrInvalidConfig, a.BufferLengthSeconds)
	case !bitint.IsPowerOfTwo(an.FFTSize) || an.FFTSize < MinFFTSize || an.FFTSize > MaxFFTSize:
		return fmt.Errorf("%w: analysis.fft_size %d must be a power of two in [%d, %d]", ErrInvalidConfig, an.FFTSize, MinFFTSize, MaxFFTSize)
	case an.FFTSize > c.RawBufferFrames():
		return fmt.Errorf("%w: analysis.fft_size %d exceeds the raw buffer (%d samples)", ErrInvalidConfig, an.FFTSize, c.RawBufferFrames())
	case an.PitchTolerance <= 0 || an.PitchTolerance > 1:
		return fmt.Errorf("%w: analysis.pitch_tolerance %g outside (0, 1]", ErrInvalidConfig, an.PitchTolerance)
	case an.StandardFrequency <= 0:
		return fmt.Errorf("%w: analysis.standard_frequency must be positive, got %g", ErrInvalidConfig, an.StandardFrequency)
	case an.RefreshInterval <= 0:
		return fmt.Errorf("%w: analysis.refresh_interval must be positive, got %s", ErrInvalidConfig, an.RefreshInterval)
	case c.Export.MinConfidence < 0 || c.Export.MinConfidence > 1:
		return fmt.Errorf("%w: export.min_confidence %g outside [0, 1]", ErrInvalidConfig, c.Export.MinConfidence)
	}

	if _, err := pitch.ParseAlgorithm(an.PitchAlgorithm); err != nil {
		return fmt.Errorf("%w: analysis.pitch_algorithm: %w", ErrInvalidConfig, err)
	}
	if _, err := analysis.ParseWindowFunc(an.FFTWindow); err != nil {
		return fmt.Errorf("%w: analysis.fft_window: %w", ErrInvalidConfig, err)
	}
	if _, ok := log.ParseLevel(c.LogLevel); !ok {
		return fmt.Errorf("%w: unknown log_level '%s'", ErrInvalidConfig, c.LogLevel)
	}
	return nil
}

// applyEnvOverrides applies ENV_* variables on top of the loaded values.
// Unparseable values are ignored with a warning.
func (cfg *Config) applyEnvOverrides() {
	if val, ok := os.LookupEnv("ENV_LOG_LEVEL"); ok {
		cfg.LogLevel = val
		log.Infof("configuration: overriding log_level from env: %s", val)
	}

	if val, ok := os.LookupEnv("ENV_DEVICE_INDEX"); ok {
		if n, err := strconv.Atoi(val); err == nil {
			cfg.Audio.DeviceIndex = n
			log.Infof("configuration: overriding audio.device_index from env: %d", n)
		} else {
			log.Warnf("configuration: ignoring ENV_DEVICE_INDEX=%q: %v", val, err)
		}
	}

	if val, ok := os.LookupEnv("ENV_SAMPLE_RATE"); ok {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			cfg.Audio.SamplingRate = f
			log.Infof("configuration: overriding audio.sampling_rate from env: %.0f", f)
		} else {
			log.Warnf("configuration: ignoring ENV_SAMPLE_RATE=%q: %v", val, err)
		}
	}

	if val, ok := os.LookupEnv("ENV_FFT_SIZE"); ok {
		if n, err := strconv.Atoi(val); err == nil {
			cfg.Analysis.FFTSize = n
			log.Infof("configuration: overriding analysis.fft_size from env: %d", n)
		} else {
			log.Warnf("configuration: ignoring ENV_FFT_SIZE=%q: %v", val, err)
		}
	}

	if val, ok := os.LookupEnv("ENV_PITCH_ALGORITHM"); ok {
		cfg.Analysis.PitchAlgorithm = val
		log.Infof("configuration: overriding analysis.pitch_algorithm from env: %s", val)
	}

	if val, ok := os.LookupEnv("ENV_STANDARD_FREQUENCY"); ok {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			cfg.Analysis.StandardFrequency = f
			log.Infof("configuration: overriding analysis.standard_frequency from env: %g", f)
		} else {
			log.Warnf("configuration: ignoring ENV_STANDARD_FREQUENCY=%q: %v", val, err)
		}
	}
}
