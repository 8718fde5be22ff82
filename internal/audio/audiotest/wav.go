// Package audiotest generates encoded audio fixtures for tests.
package audiotest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/wav"
)

// Constant produces frames samples of value v on both channels.
func Constant(frames int, v float64) beep.Streamer {
	return beep.StreamerFunc(func(samples [][2]float64) (int, bool) {
		if frames <= 0 {
			return 0, false
		}
		n := min(len(samples), frames)
		for i := 0; i < n; i++ {
			samples[i] = [2]float64{v, v}
		}
		frames -= n
		return n, true
	})
}

// WAV encodes a constant 16-bit stereo tone and returns the file bytes.
func WAV(t testing.TB, rate, frames int, v float64) []byte {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fixture.wav")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("Failed to create fixture: %v", err)
	}
	format := beep.Format{SampleRate: beep.SampleRate(rate), NumChannels: 2, Precision: 2}
	if err := wav.Encode(f, Constant(frames, v), format); err != nil {
		f.Close()
		t.Fatalf("Failed to encode fixture: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("Failed to close fixture: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read fixture: %v", err)
	}
	return data
}
