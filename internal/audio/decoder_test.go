package audio

import (
	"math"
	"testing"

	"github.com/gopxl/beep/v2"

	"github.com/audiolibrelab/improvlab/internal/audio/audiotest"
)

var testFormat = beep.Format{SampleRate: 44100, NumChannels: 2, Precision: 2}

func TestDecodeWAV(t *testing.T) {
	d := NewDecoder(testFormat, nil)
	buf, err := d.Decode("tone.wav", audiotest.WAV(t, 44100, 4410, 0.5))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if buf.Len() != 4410 {
		t.Errorf("Expected 4410 frames, got %d", buf.Len())
	}

	samples := make([][2]float64, 10)
	n, _ := buf.Streamer(0, buf.Len()).Stream(samples)
	if n != 10 {
		t.Fatalf("Expected 10 samples, got %d", n)
	}
	if math.Abs(samples[5][0]-0.5) > 0.001 {
		t.Errorf("Expected sample ~0.5, got %f", samples[5][0])
	}
}

func TestDecodeResamples(t *testing.T) {
	d := NewDecoder(testFormat, nil)
	buf, err := d.Decode("half.wav", audiotest.WAV(t, 22050, 2205, 0.5))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	// 100ms at 22050Hz becomes about 4410 frames at 44100Hz
	if buf.Len() < 4300 || buf.Len() > 4500 {
		t.Errorf("Expected about 4410 frames after resampling, got %d", buf.Len())
	}
}

func TestDecodeRejects(t *testing.T) {
	tests := []struct {
		name  string
		id    string
		data  []byte
		exts  []string
	}{
		{"unsupported extension", "tone.ogg", []byte("OggS"), nil},
		{"extension not enabled", "tone.wav", nil, []string{"flac"}},
		{"garbage wav", "tone.wav", []byte("not a wav file at all"), nil},
		{"no extension", "tone", []byte("data"), nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewDecoder(testFormat, tt.exts)
			if _, err := d.Decode(tt.id, tt.data); err == nil {
				t.Errorf("Expected error for %s", tt.id)
			}
		})
	}
}
