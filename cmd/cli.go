package cmd

import (
	"fmt"

	"tuner/internal/config"
	"tuner/pkg/build"

	"github.com/spf13/cobra"
)

// Commands selected on the command line.
const (
	CommandNone  = "" // help or version was printed
	CommandRun   = "run"
	CommandList  = "list"
	CommandRates = "rates"
	CommandPick  = "pick"
)

// Options is the parsed command line on top of the loaded configuration.
type Options struct {
	Config   *config.Config
	Command  string
	Headless bool // log snapshots instead of showing the meter
	Export   bool // write pitch tracks to Config.Export.Dir on exit
}

// flagValues holds raw flag values. Only flags the user changed are copied
// over the loaded configuration.
type flagValues struct {
	configPath        string
	deviceID          int
	sampleRate        float64
	channels          int
	chunkSize         int
	lowLatency        bool
	fftSize           int
	window            string
	algorithm         string
	tolerance         float64
	standardFrequency float64
	exportDir         string
	inputFile         string
	headless          bool
	verbose           bool
}

// ParseArgs parses args (without the program name), loads the configuration
// file and applies flag overrides.
func ParseArgs(args []string) (*Options, error) {
	buildInfo := build.GetBuildFlags()
	var (
		fv      flagValues
		command = CommandNone
	)

	rootCmd := &cobra.Command{
		Use:           buildInfo.Name,
		Short:         buildInfo.Description,
		Version:       buildInfo.String(),
		SilenceErrors: true,
		SilenceUsage:  true,
		Args:          cobra.NoArgs,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd:   true,
			DisableDescriptions: true,
			DisableNoDescFlag:   true,
			HiddenDefaultCmd:    true,
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			command = CommandRun
			return nil
		},
	}

	// Display help message
	rootCmd.SetHelpCommand(&cobra.Command{Hidden: true})

	rootCmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List available audio devices",
			Args:  cobra.NoArgs,
			Run:   func(cmd *cobra.Command, args []string) { command = CommandList },
		},
		&cobra.Command{
			Use:   "rates",
			Short: "List the sample rates the selected device supports",
			Args:  cobra.NoArgs,
			Run:   func(cmd *cobra.Command, args []string) { command = CommandRates },
		},
		&cobra.Command{
			Use:   "pick",
			Short: "Choose a device and sample rate interactively, then start tuning",
			Args:  cobra.NoArgs,
			Run:   func(cmd *cobra.Command, args []string) { command = CommandPick },
		},
	)

	flags := rootCmd.PersistentFlags()

	flags.StringVar(&fv.configPath, "config", "",
		"Configuration file (.yaml or .toml). Defaults to ./tuner.yaml or ./tuner.toml if present")

	// Audio Device Configuration
	flags.IntVarP(&fv.deviceID, "device", "d", config.DefaultDeviceIndex,
		"Specify input device ID. Use 'list' command to see available devices.")
	flags.IntVarP(&fv.channels, "channels", "c", config.DefaultChannelCount,
		"Number of input channels to analyse")
	flags.Float64VarP(&fv.sampleRate, "sample-rate", "s", config.DefaultSamplingRate,
		"Sample rate, measured in Hertz (Hz)")
	flags.IntVarP(&fv.chunkSize, "chunk-size", "b", config.DefaultChunkSize,
		"The number of frames per buffer (affects latency)")
	flags.BoolVarP(&fv.lowLatency, "low-latency", "l", config.DefaultLowLatency,
		"Use the device's low input latency")
	flags.StringVarP(&fv.inputFile, "input-file", "i", "",
		"Replay a WAV file instead of capturing from a device")

	// Analysis Configuration
	flags.IntVarP(&fv.fftSize, "fft-size", "n", config.DefaultFFTSize,
		"Analysis window in samples, a power of two")
	flags.StringVarP(&fv.window, "window", "w", config.DefaultFFTWindow,
		"FFT window (none, hann, hamming, blackman, ...)")
	flags.StringVarP(&fv.algorithm, "algorithm", "a", config.DefaultPitchAlgorithm,
		"Pitch detection algorithm (yin, yinfast, hps)")
	flags.Float64VarP(&fv.tolerance, "tolerance", "t", config.DefaultPitchTolerance,
		"Pitch detector tolerance in (0, 1]")
	flags.Float64Var(&fv.standardFrequency, "standard-frequency", config.DefaultStandardFrequency,
		"Reference frequency in Hz that 0 cents refers to")

	// Output Configuration
	flags.StringVarP(&fv.exportDir, "export", "e", "",
		"Write pitch tracks to this directory on exit")
	flags.BoolVar(&fv.headless, "headless", false,
		"Log readings instead of showing the live meter")

	// Debug Configuration
	flags.BoolVarP(&fv.verbose, "verbose", "v", false,
		"Show verbose output")

	rootCmd.SetArgs(args)
	executed, err := rootCmd.ExecuteC()
	if err != nil {
		return nil, err
	}
	if command == CommandNone {
		return &Options{Command: CommandNone}, nil
	}

	cfg, err := config.LoadConfig(fv.configPath)
	if err != nil {
		return nil, err
	}
	applyFlags(cfg, executed, &fv)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &Options{
		Config:   cfg,
		Command:  command,
		Headless: fv.headless,
		Export:   fv.exportDir != "",
	}, nil
}

// applyFlags copies every flag the user set over cfg.
func applyFlags(cfg *config.Config, cmd *cobra.Command, fv *flagValues) {
	changed := cmd.Flags().Changed

	if changed("device") {
		cfg.Audio.DeviceIndex = fv.deviceID
	}
	if changed("channels") {
		cfg.Audio.ChannelCount = fv.channels
	}
	if changed("sample-rate") {
		cfg.Audio.SamplingRate = fv.sampleRate
	}
	if changed("chunk-size") {
		cfg.Audio.ChunkSize = fv.chunkSize
	}
	if changed("low-latency") {
		cfg.Audio.LowLatency = fv.lowLatency
	}
	if changed("input-file") {
		cfg.Audio.InputFile = fv.inputFile
	}
	if changed("fft-size") {
		cfg.Analysis.FFTSize = fv.fftSize
	}
	if changed("window") {
		cfg.Analysis.FFTWindow = fv.window
	}
	if changed("algorithm") {
		cfg.Analysis.PitchAlgorithm = fv.algorithm
	}
	if changed("tolerance") {
		cfg.Analysis.PitchTolerance = fv.tolerance
	}
	if changed("standard-frequency") {
		cfg.Analysis.StandardFrequency = fv.standardFrequency
	}
	if changed("export") {
		cfg.Export.Dir = fv.exportDir
	}
	if fv.verbose {
		cfg.LogLevel = "debug"
	}
}

// Describe summarizes the capture and analysis settings in one line.
func Describe(cfg *config.Config) string {
	return fmt.Sprintf("%.0f Hz, %d channel(s), chunk %d, fft %d (%.1f frames/s), %s at tolerance %.2f, standard %.1f Hz",
		cfg.Audio.SamplingRate, cfg.Audio.ChannelCount, cfg.Audio.ChunkSize,
		cfg.Analysis.FFTSize, cfg.AnalysisRate(), cfg.Analysis.PitchAlgorithm,
		cfg.Analysis.PitchTolerance, cfg.Analysis.StandardFrequency)
}
