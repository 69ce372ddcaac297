// SPDX-License-Identifier: MIT
//
// Package export writes per-channel pitch tracks as two-column text.
package export

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"

	"tuner/internal/analysis"
	"tuner/internal/channel"
	"tuner/internal/log"
)

// Options selects which frames are written.
type Options struct {
	PowerThreshold float64
	MinConfidence  float64
}

// FileName is the track file of channel index.
func FileName(index int) string {
	return fmt.Sprintf("channel_%d.txt", index)
}

// PitchTracks writes one file per channel into dir, creating it if needed.
// Each line is "<time seconds> <cents>". Frames without pitch, below the
// power threshold or below the minimum confidence are dropped. It returns
// the paths written.
func PitchTracks(dir string, channels []*channel.Channel, opts Options) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create export directory: %w", err)
	}

	gate := analysis.NewGate(opts.PowerThreshold, opts.MinConfidence)
	logger := log.New("export")

	paths := make([]string, 0, len(channels))
	for _, c := range channels {
		path := filepath.Join(dir, FileName(c.Index()))
		n, err := writeTrack(path, c.Derived(), gate)
		if err != nil {
			return paths, err
		}
		logger.Infof("channel %d: %d frames to %s", c.Index(), n, path)
		paths = append(paths, path)
	}
	return paths, nil
}

func writeTrack(path string, d *channel.Derived, gate analysis.Gate) (n int, err error) {
	f, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("failed to create track file: %w", err)
	}
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("failed to close track file: %w", cerr)
		}
	}()

	times := d.Pitch.XData()
	cents := d.Pitch.YData()
	power := d.Power.YData()
	confidence := d.Confidence.YData()

	// all three are appended together, but keep to the shortest history
	frames := min(len(cents), len(power), len(confidence))
	offset := len(cents) - frames

	w := bufio.NewWriter(f)
	for i := 0; i < frames; i++ {
		c := float64(cents[offset+i])
		p := float64(power[len(power)-frames+i])
		conf := float64(confidence[len(confidence)-frames+i])
		if !gate.Open(c, p, conf) {
			continue
		}
		if _, err := fmt.Fprintf(w, "%.6f %.4f\n", times[offset+i], c); err != nil {
			return n, fmt.Errorf("failed to write track: %w", err)
		}
		n++
	}
	if err := w.Flush(); err != nil {
		return n, fmt.Errorf("failed to write track: %w", err)
	}
	return n, nil
}
