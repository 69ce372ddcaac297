// SPDX-License-Identifier: MIT
package analysis

import "tuner/internal/channel"

// Analyzer advances the derived buffers of a set of channels by at most one
// frame each. It is called once per refresh cycle from the analysis
// goroutine and reports how many channels produced a frame.
type Analyzer interface {
	Process(channels []*channel.Channel) int
}

// StandardSetter is implemented by analyzers that convert pitch to cents.
type StandardSetter interface {
	SetStandardFrequency(hz float64)
}

var (
	_ Analyzer       = (*Worker)(nil)
	_ StandardSetter = (*Worker)(nil)
)
