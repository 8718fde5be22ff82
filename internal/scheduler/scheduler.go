// Package scheduler runs a practice session: it keeps the backing loop of
// the active chord playing, announces the next chord two bars ahead and
// switches to it when the bar window ends.
package scheduler

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/audiolibrelab/improvlab/internal/audio"
	"github.com/audiolibrelab/improvlab/internal/catalog"
	"github.com/audiolibrelab/improvlab/internal/clock"
	"github.com/audiolibrelab/improvlab/internal/selection"
	"github.com/audiolibrelab/improvlab/internal/settings"
	"github.com/audiolibrelab/improvlab/internal/tempo"
	"github.com/audiolibrelab/improvlab/internal/transcript"
)

var (
	ErrAudioNotReady       = errors.New("audio is not ready")
	ErrNoChords            = errors.New("no chords available for the selected categories")
	ErrNoOutlineCategories = errors.New("no outline categories selected")
	ErrNoOutlines          = errors.New("no outlines for the selected filters")
)

// User-facing messages shown in the session state.
const (
	MessageAudioLoading     = "Audio is still loading, try again in a moment"
	MessageAudioUnavailable = "Audio output is unavailable, press start to try again"
	MessageNoChords         = "Select at least one chord category"
	MessageNoOutlineFilters = "Select at least one outline category"
	MessageNoOutlines       = "No outlines for the selected filters"
)

// Status is the session state.
type Status string

const (
	StatusIdle    Status = "IDLE"
	StatusPlaying Status = "PLAYING"
)

// AudioEngine is the part of the audio pool the scheduler drives.
type AudioEngine interface {
	Ready() bool
	Activate() error
	StartLoops(layers []audio.Layer) ([]*audio.Source, error)
	StopAll(sources []*audio.Source)
}

// ConfigStore supplies the playback configuration.
type ConfigStore interface {
	Snapshot() settings.Configuration
	Subscribe(fn func(settings.Configuration)) (cancel func())
}

// Snapshot is the observable session state.
type Snapshot struct {
	Status          Status        `json:"status"`
	SessionID       string        `json:"session_id,omitempty"`
	Chord           string        `json:"chord,omitempty"`
	ChordCategory   string        `json:"chord_category,omitempty"`
	Outline         string        `json:"outline,omitempty"`
	Upcoming        string        `json:"upcoming,omitempty"`
	Message         string        `json:"message,omitempty"`
	Suspended       bool          `json:"suspended"`
	ActiveSources   int           `json:"active_sources"`
	BarsPerChord    int           `json:"bars_per_chord"`
	BPM             float64       `json:"bpm"`
	WindowStartedAt time.Time     `json:"window_started_at"`
	WindowDuration  time.Duration `json:"-"`
	WindowMs        float64       `json:"window_ms"`
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithClock replaces the real clock.
func WithClock(c clock.Clock) Option {
	return func(s *Scheduler) {
		s.clock = c
	}
}

// WithSelector replaces the default selection engine.
func WithSelector(e *selection.Engine) Option {
	return func(s *Scheduler) {
		s.selector = e
	}
}

// WithTranscript sets where activated chords are recorded.
func WithTranscript(sink transcript.Sink) Option {
	return func(s *Scheduler) {
		s.sink = sink
	}
}

// Scheduler owns the playing sources and the two window timers. Every
// window gets a new generation; a timer whose generation is no longer
// current does nothing when it fires.
type Scheduler struct {
	catalog  *catalog.Catalog
	audio    AudioEngine
	config   ConfigStore
	clock    clock.Clock
	selector *selection.Engine
	sink     transcript.Sink

	unsubscribe func()

	mu           sync.Mutex
	status       Status
	generation   uint64
	sessionID    string
	active       *selection.Selection
	last         *selection.Selection
	next         *selection.Selection
	upcoming     string
	message      string
	suspended    bool
	sources      []*audio.Source
	previewTimer clock.Timer
	windowTimer  clock.Timer
	windowStart  time.Time
	windowDur    time.Duration
	windowBars   int
	windowBPM    float64
}

// New creates an idle scheduler.
func New(cat *catalog.Catalog, engine AudioEngine, config ConfigStore, opts ...Option) *Scheduler {
	s := &Scheduler{
		catalog: cat,
		audio:   engine,
		config:  config,
		clock:   clock.New(),
		status:  StatusIdle,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.selector == nil {
		s.selector = selection.NewEngine()
	}
	s.unsubscribe = config.Subscribe(s.configChanged)
	return s
}

// Start begins a session. Calling it while playing does nothing. When a
// precondition fails the scheduler stays idle, the message explains why
// and the matching error is returned.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status == StatusPlaying {
		return nil
	}

	if !s.audio.Ready() {
		s.message = MessageAudioLoading
		return ErrAudioNotReady
	}

	cfg := s.config.Snapshot()
	chords := s.catalog.Available(cfg.ChordCategories)
	if len(chords) == 0 {
		s.message = MessageNoChords
		return ErrNoChords
	}
	if len(cfg.EnabledOutlineCategories()) == 0 {
		s.message = MessageNoOutlineFilters
		return ErrNoOutlineCategories
	}
	sel, ok := s.selector.PickNext(chords, cfg.OutlineCategories, nil)
	if !ok {
		s.message = MessageNoOutlines
		return ErrNoOutlines
	}

	if err := s.audio.Activate(); err != nil {
		slog.Warn("Audio output could not be started", "error", err)
		s.message = MessageAudioUnavailable
		return fmt.Errorf("%w: %w", ErrAudioNotReady, err)
	}

	s.status = StatusPlaying
	s.sessionID = uuid.NewString()
	s.message = ""
	s.suspended = false
	slog.Info("Practice session started", "session", s.sessionID, "bars_per_chord", cfg.BarsPerChord)

	s.activate(sel)
	s.arm(cfg)
	return nil
}

// Stop ends the session. The last chord and outline stay visible.
// Calling it while idle does nothing.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status != StatusPlaying {
		return
	}
	s.cancelTimers()
	s.generation++
	s.audio.StopAll(s.sources)
	s.sources = nil
	s.upcoming = ""
	s.last = nil
	s.next = nil
	s.suspended = false
	s.status = StatusIdle
	slog.Info("Practice session stopped", "session", s.sessionID)
}

// Close stops the session and detaches from the configuration store.
func (s *Scheduler) Close() {
	s.Stop()
	if s.unsubscribe != nil {
		s.unsubscribe()
	}
}

// Snapshot returns the current session state.
func (s *Scheduler) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		Status:          s.status,
		SessionID:       s.sessionID,
		Upcoming:        s.upcoming,
		Message:         s.message,
		Suspended:       s.suspended,
		BarsPerChord:    s.windowBars,
		BPM:             s.windowBPM,
		WindowStartedAt: s.windowStart,
		WindowDuration:  s.windowDur,
		WindowMs:        tempo.Milliseconds(s.windowDur),
	}
	if s.active != nil {
		snap.Chord = s.active.Chord.Name
		snap.ChordCategory = string(s.active.Chord.Category)
		snap.Outline = s.active.Outline
	}
	for _, src := range s.sources {
		if src.Playing() {
			snap.ActiveSources++
		}
	}
	if s.status != StatusPlaying {
		cfg := s.config.Snapshot()
		snap.BarsPerChord = cfg.BarsPerChord
		snap.BPM = cfg.BPM
		snap.WindowStartedAt = time.Time{}
		snap.WindowDuration = 0
		snap.WindowMs = 0
	}
	return snap
}

// activate swaps the playing sources for sel's layers. Missing layers are
// skipped. Must be called with mu held.
func (s *Scheduler) activate(sel selection.Selection) {
	s.audio.StopAll(s.sources)
	s.sources = nil

	layers := []audio.Layer{
		{AssetID: s.catalog.DrumsAudioID(), Channel: audio.ChannelDrums},
		{AssetID: sel.Chord.PrimaryAudioID, Channel: audio.ChannelHarmony},
	}
	if sel.Chord.HasSecondary() {
		layers = append(layers, audio.Layer{AssetID: sel.Chord.SecondaryAudioID, Channel: audio.ChannelBass})
	}
	sources, err := s.audio.StartLoops(layers)
	if err != nil {
		slog.Warn("Skipping audio layers", "chord", sel.Chord.Name, "error", err)
	}
	s.sources = sources

	s.active = &sel
	s.last = &sel
	s.next = nil
	s.upcoming = ""
	slog.Info("Chord activated", "chord", sel.Chord.Name, "outline", sel.Outline, "layers", len(s.sources))

	if s.sink != nil {
		entry := transcript.Entry{
			Time:      s.clock.Now().UTC(),
			SessionID: s.sessionID,
			Chord:     sel.Chord.Name,
			Outline:   sel.Outline,
		}
		if err := s.sink.Append(entry); err != nil {
			slog.Warn("Failed to record transcript entry", "error", err)
		}
	}
}

// arm starts a new window using the tempo and length in cfg. Must be
// called with mu held.
func (s *Scheduler) arm(cfg settings.Configuration) {
	s.cancelTimers()
	s.generation++
	gen := s.generation

	s.windowStart = s.clock.Now()
	s.windowBars = cfg.BarsPerChord
	s.windowBPM = cfg.BPM
	s.windowDur = tempo.WindowDuration(cfg.BPM, cfg.BarsPerChord)
	delay := tempo.PreviewDelay(cfg.BPM, cfg.BarsPerChord)

	s.previewTimer = s.clock.AfterFunc(delay, func() { s.preview(gen) })
	s.windowTimer = s.clock.AfterFunc(s.windowDur, func() { s.windowEnd(gen) })
	slog.Debug("Window armed", "generation", gen, "window", s.windowDur, "preview", delay)
}

func (s *Scheduler) cancelTimers() {
	if s.previewTimer != nil {
		s.previewTimer.Stop()
		s.previewTimer = nil
	}
	if s.windowTimer != nil {
		s.windowTimer.Stop()
		s.windowTimer = nil
	}
}

// pick draws the next selection from the current configuration.
func (s *Scheduler) pick() (selection.Selection, bool) {
	cfg := s.config.Snapshot()
	chords := s.catalog.Available(cfg.ChordCategories)
	return s.selector.PickNext(chords, cfg.OutlineCategories, s.last)
}

func (s *Scheduler) preview(gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.generation || s.status != StatusPlaying {
		return
	}
	s.previewTimer = nil

	sel, ok := s.pick()
	if !ok {
		s.next = nil
		s.upcoming = MessageNoOutlines
		slog.Warn("No upcoming chord for the selected filters")
		return
	}
	s.next = &sel
	s.upcoming = sel.String()
	slog.Debug("Upcoming chord", "chord", sel.Chord.Name, "outline", sel.Outline)
}

func (s *Scheduler) windowEnd(gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.generation || s.status != StatusPlaying {
		return
	}
	s.windowTimer = nil
	s.cancelTimers()

	next := s.next
	if next == nil {
		sel, ok := s.pick()
		if !ok {
			s.suspend()
			return
		}
		next = &sel
	}
	s.activate(*next)
	s.arm(s.config.Snapshot())
}

// suspend keeps the current chord looping without further windows. Must
// be called with mu held.
func (s *Scheduler) suspend() {
	s.generation++
	s.suspended = true
	s.upcoming = MessageNoOutlines
	s.message = MessageNoOutlines
	slog.Warn("Chord advancement suspended", "session", s.sessionID, "chord", s.active.Chord.Name)
}

// configChanged resumes a suspended session when the new configuration
// allows a selection again.
func (s *Scheduler) configChanged(cfg settings.Configuration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status != StatusPlaying || !s.suspended {
		return
	}
	chords := s.catalog.Available(cfg.ChordCategories)
	sel, ok := s.selector.PickNext(chords, cfg.OutlineCategories, s.last)
	if !ok {
		return
	}
	s.suspended = false
	s.message = ""
	slog.Info("Chord advancement resumed", "session", s.sessionID)
	s.activate(sel)
	s.arm(cfg)
}
