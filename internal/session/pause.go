package session

import "math"

// Defaults for pause detection.
const (
	DefaultPauseThreshold = 3
	DefaultEndTolerance   = 0.25
)

// PauseDetector decides whether an unchanged song timer means the game is
// paused.
//
// A stall mid-song is reported on the first unchanged cycle. A stall at
// timer 0 or inside the end-of-song tail is only reported once it has lasted
// Threshold consecutive cycles, because the game briefly freezes there on
// every song start and end.
type PauseDetector struct {
	Threshold    int
	EndTolerance float64

	unchanged int
}

func NewPauseDetector(threshold int, endTolerance float64) PauseDetector {
	return PauseDetector{Threshold: threshold, EndTolerance: endTolerance}
}

// Observe records one cycle and reports whether playback is paused.
func (p *PauseDetector) Observe(timer, last, length float64) bool {
	if timer != last {
		p.unchanged = 0
		return false
	}
	p.unchanged++
	if timer == 0 || p.inEndTail(timer, length) {
		return p.unchanged >= p.Threshold
	}
	return true
}

// Unchanged returns the number of consecutive cycles with a frozen timer.
func (p *PauseDetector) Unchanged() int { return p.unchanged }

func (p *PauseDetector) inEndTail(timer, length float64) bool {
	if length <= 0 {
		return false
	}
	return timer >= length || math.Abs(length-timer) <= p.EndTolerance
}

func (p *PauseDetector) reset() { p.unchanged = 0 }
