// SPDX-License-Identifier: MIT
package analysis

import "math"

// Gate decides whether an analysis frame carries a usable pitch. Frames
// below the power threshold or the minimum confidence are treated as
// silence by the meter and dropped from exports.
type Gate struct {
	powerThreshold float64
	minConfidence  float64
}

// NewGate returns a gate with the given thresholds, clamped to their
// valid ranges. A zero gate lets every pitched frame through.
func NewGate(powerThreshold, minConfidence float64) Gate {
	var g Gate
	g.SetPowerThreshold(powerThreshold)
	g.SetMinConfidence(minConfidence)
	return g
}

// SetPowerThreshold sets the lowest power that opens the gate. Negative
// values are treated as 0.
func (g *Gate) SetPowerThreshold(threshold float64) {
	g.powerThreshold = math.Max(threshold, 0)
}

// SetMinConfidence sets the lowest detector confidence, clamped to [0, 1].
func (g *Gate) SetMinConfidence(confidence float64) {
	g.minConfidence = math.Min(math.Max(confidence, 0), 1)
}

func (g Gate) PowerThreshold() float64 { return g.powerThreshold }
func (g Gate) MinConfidence() float64  { return g.minConfidence }

// Open reports whether a frame with this pitch, power and confidence passes.
// NaN pitch never passes.
func (g Gate) Open(cents, power, confidence float64) bool {
	if math.IsNaN(cents) {
		return false
	}
	return power >= g.powerThreshold && confidence >= g.minConfidence
}
