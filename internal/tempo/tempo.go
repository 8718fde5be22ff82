// Package tempo converts a tempo and a bars-per-chord setting into the
// durations that drive the practice scheduler.
package tempo

import "time"

const (
	// DefaultBPM is the fixed tempo of every backing loop in the catalog.
	DefaultBPM = 135.0

	// BeatsPerBar assumes 4/4 meter.
	BeatsPerBar = 4

	// PreviewBeats is how many beats before the end of a window the next
	// chord is announced (two bars).
	PreviewBeats = 8
)

// SecondsPerBeat returns the length of one beat at bpm.
func SecondsPerBeat(bpm float64) float64 {
	return 60 / bpm
}

// WindowDuration is the time one chord stays active.
func WindowDuration(bpm float64, barsPerChord int) time.Duration {
	return seconds(float64(barsPerChord) * SecondsPerBeat(bpm) * BeatsPerBar)
}

// PreviewLead is the fixed offset before the end of a window at which the
// upcoming chord is announced. It does not depend on bars-per-chord.
func PreviewLead(bpm float64) time.Duration {
	return seconds(SecondsPerBeat(bpm) * PreviewBeats)
}

// PreviewDelay is the offset from window start at which the preview fires.
// When the window is not longer than the lead the preview fires immediately.
func PreviewDelay(bpm float64, barsPerChord int) time.Duration {
	d := WindowDuration(bpm, barsPerChord) - PreviewLead(bpm)
	if d < 0 {
		return 0
	}
	return d
}

// Milliseconds reports d as fractional milliseconds.
func Milliseconds(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
