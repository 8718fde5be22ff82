package audio

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/speaker"
)

// ErrAudioUnavailable is returned when the output device cannot be opened.
var ErrAudioUnavailable = errors.New("audio output unavailable")

// BackendType represents the type of audio output
type BackendType string

const (
	BackendTypeSpeaker BackendType = "speaker"
	BackendTypeNull    BackendType = "null"
	BackendTypeAuto    BackendType = "auto"
)

// Output is where the master bus is played.
type Output interface {
	// Open starts pulling audio from s. Opening an open output is a no-op.
	Open(format beep.Format, s beep.Streamer) error
	Close() error
	Type() BackendType
}

// NewOutput creates an output for the configured backend name.
func NewOutput(backend string, bufferSize time.Duration) (Output, error) {
	switch determineBackend(backend) {
	case BackendTypeSpeaker:
		return &SpeakerOutput{bufferSize: bufferSize}, nil
	case BackendTypeNull:
		return NewNullOutput(), nil
	default:
		return nil, fmt.Errorf("unknown audio backend '%s' (expected speaker, null or auto)", backend)
	}
}

// determineBackend resolves "auto" and the empty string to the speaker.
func determineBackend(name string) BackendType {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", string(BackendTypeAuto), string(BackendTypeSpeaker):
		return BackendTypeSpeaker
	case string(BackendTypeNull):
		return BackendTypeNull
	default:
		return BackendType(name)
	}
}

// GetAvailableBackends returns the backends that can be configured.
func GetAvailableBackends() []BackendType {
	return []BackendType{BackendTypeSpeaker, BackendTypeNull}
}

// SpeakerOutput plays through the system audio device.
type SpeakerOutput struct {
	mu         sync.Mutex
	bufferSize time.Duration
	open       bool
}

func (o *SpeakerOutput) Open(format beep.Format, s beep.Streamer) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.open {
		return nil
	}
	size := format.SampleRate.N(o.bufferSize)
	if size <= 0 {
		size = format.SampleRate.N(100 * time.Millisecond)
	}
	if err := speaker.Init(format.SampleRate, size); err != nil {
		return fmt.Errorf("%w: %v", ErrAudioUnavailable, err)
	}
	speaker.Play(s)
	o.open = true
	return nil
}

func (o *SpeakerOutput) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.open {
		return nil
	}
	speaker.Clear()
	speaker.Close()
	o.open = false
	return nil
}

func (o *SpeakerOutput) Type() BackendType { return BackendTypeSpeaker }

// NullOutput discards audio unless it is pulled explicitly. It backs
// headless servers and lets tests inspect the mix.
type NullOutput struct {
	mu      sync.Mutex
	s       beep.Streamer
	failErr error
}

// NewNullOutput creates an output that never touches a device.
func NewNullOutput() *NullOutput {
	return &NullOutput{}
}

// FailWith makes subsequent Open calls fail, simulating a platform that
// refuses to start audio. Pass nil to clear.
func (o *NullOutput) FailWith(err error) {
	o.mu.Lock()
	o.failErr = err
	o.mu.Unlock()
}

func (o *NullOutput) Open(format beep.Format, s beep.Streamer) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.failErr != nil {
		return fmt.Errorf("%w: %v", ErrAudioUnavailable, o.failErr)
	}
	o.s = s
	return nil
}

func (o *NullOutput) Close() error {
	o.mu.Lock()
	o.s = nil
	o.mu.Unlock()
	return nil
}

func (o *NullOutput) Type() BackendType { return BackendTypeNull }

// IsOpen reports whether Open succeeded and Close has not been called.
func (o *NullOutput) IsOpen() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.s != nil
}

// Pull renders n frames of the master mix. It returns nil when closed.
func (o *NullOutput) Pull(n int) [][2]float64 {
	o.mu.Lock()
	s := o.s
	o.mu.Unlock()
	if s == nil {
		return nil
	}
	samples := make([][2]float64, n)
	got, _ := s.Stream(samples)
	return samples[:got]
}
