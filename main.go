package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"tuner/cmd"
	"tuner/internal/analysis"
	"tuner/internal/audio"
	"tuner/internal/channel"
	"tuner/internal/config"
	"tuner/internal/export"
	"tuner/internal/log"
	"tuner/internal/tui"
	"tuner/internal/tuner"
	"tuner/pkg/build"
)

// main is the entry point of the tuner.
// The program flow is divided into three distinct phases:
//
// 1. Startup Phase (Cold Path):
//   - Initialize build information
//   - Parse command line arguments and load the configuration
//   - Select the audio backend (PortAudio or a WAV file)
//   - Execute one-off commands if requested
//
// 2. Concurrent Phase (Hot Path):
//   - Open the input stream; the backend thread starts queueing chunks
//   - Start the refresh loop (flush, analyse, snapshot)
//   - Show the live meter, or log readings when headless
//
// 3. Shutdown Phase (Cold Path):
//   - Stop the refresh loop and the stream
//   - Export pitch tracks if requested
//   - Terminate the source and the audio subsystem
func main() {
	// ==================== STARTUP PHASE (Cold Path) ====================

	// Development builds carry no ldflags; that is not fatal.
	if err := build.Initialize(); err != nil {
		log.Debugf("build info incomplete: %v", err)
	}

	// One thread for the refresh loop, one for the UI and I/O. PortAudio
	// delivers on its own native thread.
	runtime.GOMAXPROCS(2)

	opts, err := cmd.ParseArgs(os.Args[1:])
	if err != nil {
		log.Fatalf("%v", err)
	}
	if opts.Command == cmd.CommandNone {
		return
	}

	cfg := opts.Config
	if level, ok := log.ParseLevel(cfg.LogLevel); ok {
		log.SetLevel(level)
	}

	if err := run(opts); err != nil {
		log.Fatalf("%v", err)
	}
}

func run(opts *cmd.Options) error {
	cfg := opts.Config

	backend, cleanup, err := openBackend(cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	// Handle one-off commands that don't require the source to be running
	switch opts.Command {
	case cmd.CommandList:
		return audio.ListDevices(os.Stdout, backend)
	case cmd.CommandRates:
		device, err := audio.ResolveDevice(backend, cfg.Audio.DeviceIndex)
		if err != nil {
			return err
		}
		audio.ListSampleRates(os.Stdout, backend, device, cfg.Audio.ChannelCount)
		return nil
	case cmd.CommandPick:
		restore := tui.RedirectLogs()
		sel, ok, err := tui.RunPicker(backend, cfg.Audio.ChannelCount)
		restore()
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		cfg.Audio.DeviceIndex = sel.Device.ID
		cfg.Audio.SamplingRate = sel.SampleRate
		if err := cfg.Validate(); err != nil {
			return err
		}
	}

	return tune(opts, backend)
}

// openBackend returns the WAV replay backend when an input file is
// configured and PortAudio otherwise. cleanup releases the subsystem.
func openBackend(cfg *config.Config) (audio.Backend, func(), error) {
	if cfg.Audio.InputFile != "" {
		b, err := audio.NewWAVBackend(cfg.Audio.InputFile)
		if err != nil {
			return nil, nil, err
		}
		return b, func() {}, nil
	}

	if err := audio.Initialize(); err != nil {
		return nil, nil, err
	}
	return audio.PortAudioBackend{}, func() {
		if err := audio.Terminate(); err != nil {
			log.Errorf("%v", err)
		}
	}, nil
}

func tune(opts *cmd.Options, backend audio.Backend) error {
	cfg := opts.Config

	source, err := audio.NewSource(backend, audio.SourceConfig{
		DeviceIndex:         cfg.Audio.DeviceIndex,
		SamplingRate:        cfg.Audio.SamplingRate,
		ChunkSize:           cfg.Audio.ChunkSize,
		ChannelCount:        cfg.Audio.ChannelCount,
		BufferLengthSeconds: cfg.Audio.BufferLengthSeconds,
		LowLatency:          cfg.Audio.LowLatency,
		FFTSize:             cfg.Analysis.FFTSize,
		PitchAlgorithm:      cfg.Analysis.PitchAlgorithm,
		PitchTolerance:      cfg.Analysis.PitchTolerance,
	})
	if err != nil {
		return err
	}
	// The source owns the device; it is released however tune returns.
	defer func() {
		if err := source.Close(); err != nil {
			log.Errorf("closing audio source: %v", err)
		}
	}()

	window, err := analysis.ParseWindowFunc(cfg.Analysis.FFTWindow)
	if err != nil {
		return err
	}
	worker := analysis.NewWorker(window, cfg.Analysis.StandardFrequency)

	var onRefresh func(tuner.Snapshot)
	if opts.Headless {
		onRefresh = snapshotLogger(cfg.Analysis.RefreshInterval)
	}
	t, err := tuner.New(source, worker, tuner.Options{
		Interval:          cfg.Analysis.RefreshInterval,
		StandardFrequency: cfg.Analysis.StandardFrequency,
		Gate:              analysis.NewGate(cfg.Export.PowerThreshold, cfg.Export.MinConfidence),
		OnRefresh:         onRefresh,
	})
	if err != nil {
		return err
	}

	exportTracks := func() ([]string, error) {
		var (
			paths []string
			err   error
		)
		t.Do(func(channels []*channel.Channel) {
			paths, err = export.PitchTracks(cfg.Export.Dir, channels, export.Options{
				PowerThreshold: cfg.Export.PowerThreshold,
				MinConfidence:  cfg.Export.MinConfidence,
			})
		})
		return paths, err
	}

	// ==================== CONCURRENT PHASE (Hot Path) ====================

	log.Infof("%s", cmd.Describe(cfg))

	// The first Start opens the stream and the backend begins calling the
	// callback, marking the start of the hot path
	if err := source.Start(); err != nil {
		return err
	}
	t.Start()

	device := source.Device()
	if opts.Headless {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		<-ctx.Done()
		stop()
	} else {
		restore := tui.RedirectLogs()
		err = tui.RunMeter(t, tui.MeterOptions{
			Title:    fmt.Sprintf("[%d] %s", device.ID, device.Name),
			Interval: cfg.Analysis.RefreshInterval,
			Export:   exportTracks,
		})
		restore()
	}

	// ==================== SHUTDOWN PHASE (Cold Path) ====================

	t.Stop()
	if serr := source.Stop(); serr != nil {
		log.Warnf("%v", serr)
	}
	// pick up whatever arrived before the stream stopped
	t.Refresh()

	if opts.Export {
		paths, xerr := exportTracks()
		if xerr != nil {
			return xerr
		}
		for _, p := range paths {
			fmt.Printf("Pitch track saved to: %s\n", p)
		}
	}
	return err
}

// snapshotLogger logs about one snapshot per second.
func snapshotLogger(interval time.Duration) func(tuner.Snapshot) {
	logger := log.New("tuner")
	every := max(int(time.Second/max(interval, time.Millisecond)), 1)
	n := 0
	return func(s tuner.Snapshot) {
		n++
		if n%every != 0 {
			return
		}
		for _, r := range s.Readings {
			logger.Infof("%s", r)
		}
		for _, d := range s.Differences {
			logger.Infof("%s", d)
		}
	}
}
