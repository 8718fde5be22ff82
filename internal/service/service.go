package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/spf13/afero"

	"github.com/audiolibrelab/improvlab/internal/audio"
	"github.com/audiolibrelab/improvlab/internal/catalog"
	"github.com/audiolibrelab/improvlab/internal/clock"
	"github.com/audiolibrelab/improvlab/internal/config"
	"github.com/audiolibrelab/improvlab/internal/scheduler"
	"github.com/audiolibrelab/improvlab/internal/settings"
	"github.com/audiolibrelab/improvlab/internal/transcript"
)

// Service represents the core ImprovLab service interface
type Service interface {
	// Audio lifecycle
	Preload(ctx context.Context) audio.PreloadResult
	Close() error

	// Practice session
	Start() error
	Stop()
	GetStatus() Status

	// Playback settings
	GetSettings() settings.Configuration
	SetBarsPerChord(bars int) error
	SetChordCategories(enabled []catalog.ChordCategory) error
	SetOutlineCategories(enabled []catalog.OutlineCategory) error
	UpdateSettings(change settings.Change) error

	// Mixer
	SetChannelGain(channel string, level float64) error
	SetMasterGain(level float64)
	GetGains() audio.Gains

	// Information operations
	GetCatalog() *catalog.Catalog
	GetTranscript() []transcript.Entry
	GetTranscriptHistory() ([]transcript.Entry, error)
	ResetTranscript()
	GetConfig() *config.Config
	ListProfiles() ([]string, error)
	GetLastError() string
}

// Status is everything a control surface shows.
type Status struct {
	scheduler.Snapshot
	Settings       settings.Configuration `json:"settings"`
	Gains          audio.Gains            `json:"gains"`
	FullFeatureSet bool                   `json:"full_feature_set"`
	AudioReady     bool                   `json:"audio_ready"`
	Warnings       []string               `json:"warnings,omitempty"`
	Profile        string                 `json:"profile"`
	LastError      string                 `json:"last_error,omitempty"`
}

// Option overrides a collaborator, mainly for tests and headless use.
type Option func(*options)

type options struct {
	store  audio.AssetStore
	output audio.Output
	clock  clock.Clock
	fs     afero.Fs
}

// WithAssetStore replaces the store derived from the assets config.
func WithAssetStore(s audio.AssetStore) Option {
	return func(o *options) { o.store = s }
}

// WithOutput replaces the configured audio backend.
func WithOutput(out audio.Output) Option {
	return func(o *options) { o.output = out }
}

// WithClock replaces the real clock driving the scheduler.
func WithClock(c clock.Clock) Option {
	return func(o *options) { o.clock = c }
}

// WithFs sets the filesystem used for assets and the transcript file.
func WithFs(fs afero.Fs) Option {
	return func(o *options) { o.fs = fs }
}

// ImprovLabService is the main service implementation
type ImprovLabService struct {
	cfg        *config.Config
	configFile string

	catalog  *catalog.Catalog
	pool     *audio.Pool
	settings *settings.Store
	sched    *scheduler.Scheduler
	memory   *transcript.Memory
	history  *transcript.FileLog

	warningsMutex sync.RWMutex
	warnings      []string

	// Error tracking
	lastError      string
	lastErrorMutex sync.RWMutex
}

// New wires the catalog, audio pool, settings and scheduler described by cfg.
func New(cfg *config.Config, configFile string, opts ...Option) (*ImprovLabService, error) {
	o := options{fs: afero.NewOsFs()}
	for _, opt := range opts {
		opt(&o)
	}

	cat, err := catalog.LoadOrDefault(cfg.Catalog.File)
	if err != nil {
		return nil, err
	}

	store := o.store
	if store == nil {
		if cfg.Assets.BaseURL != "" {
			store = audio.NewHTTPStore(cfg.Assets.BaseURL, nil)
		} else {
			store = audio.NewFileStore(o.fs, cfg.Assets.Directory)
		}
	}

	output := o.output
	if output == nil {
		output, err = audio.NewOutput(cfg.Audio.Backend, time.Duration(cfg.Audio.BufferMs)*time.Millisecond)
		if err != nil {
			return nil, err
		}
	}

	pool := audio.NewPool(store, output,
		audio.WithSampleRate(cfg.Audio.SampleRate),
		audio.WithExtensions(cfg.SupportedAudioExtensions),
		audio.WithGains(cfg.Mix),
	)

	playback, err := cfg.Playback()
	if err != nil {
		return nil, err
	}
	settingsStore, err := settings.NewStore(playback, settings.StaticEntitlement(cfg.Entitlement.FullFeatureSet))
	if err != nil {
		return nil, fmt.Errorf("invalid practice settings: %w", err)
	}

	memory := transcript.NewMemory(transcript.DefaultCapacity)
	sinks := transcript.Multi{memory}
	var history *transcript.FileLog
	if cfg.Transcript.File != "" {
		history, err = transcript.NewFileLog(o.fs, cfg.Transcript.File)
		if err != nil {
			slog.Warn("Transcript file disabled", "file", cfg.Transcript.File, "error", err)
		} else {
			sinks = append(sinks, history)
		}
	}

	schedOpts := []scheduler.Option{scheduler.WithTranscript(sinks)}
	if o.clock != nil {
		schedOpts = append(schedOpts, scheduler.WithClock(o.clock))
	}

	return &ImprovLabService{
		cfg:        cfg,
		configFile: configFile,
		catalog:    cat,
		pool:       pool,
		settings:   settingsStore,
		sched:      scheduler.New(cat, pool, settingsStore, schedOpts...),
		memory:     memory,
		history:    history,
	}, nil
}

// Preload loads every asset the catalog references. Failed assets are kept
// as warnings; the layers that need them are skipped during playback.
func (s *ImprovLabService) Preload(ctx context.Context) audio.PreloadResult {
	ids := s.catalog.AssetIDs()
	slog.Debug("Service.Preload called", "assets", len(ids))

	result := s.pool.Preload(ctx, ids)

	s.warningsMutex.Lock()
	s.warnings = append([]string(nil), result.Warnings...)
	s.warningsMutex.Unlock()

	slog.Info("Audio assets loaded", "loaded", len(result.Loaded), "failed", len(result.Warnings))
	return result
}

// Start begins a practice session
func (s *ImprovLabService) Start() error {
	slog.Debug("Service.Start called")
	err := s.sched.Start()
	if err != nil {
		slog.Error("Service.Start failed", "error", err)
		s.setLastError(fmt.Sprintf("Failed to start practice: %v", err))
		return err
	}
	s.clearLastError()
	return nil
}

// Stop ends the practice session
func (s *ImprovLabService) Stop() {
	s.sched.Stop()
	s.clearLastError()
}

// GetStatus returns the session snapshot with settings and mixer levels
func (s *ImprovLabService) GetStatus() Status {
	s.warningsMutex.RLock()
	warnings := append([]string(nil), s.warnings...)
	s.warningsMutex.RUnlock()

	return Status{
		Snapshot:       s.sched.Snapshot(),
		Settings:       s.settings.Snapshot(),
		Gains:          s.pool.Gains(),
		FullFeatureSet: s.settings.FullFeatureSet(),
		AudioReady:     s.pool.Ready(),
		Warnings:       warnings,
		Profile:        s.cfg.Profile,
		LastError:      s.GetLastError(),
	}
}

func (s *ImprovLabService) GetSettings() settings.Configuration {
	return s.settings.Snapshot()
}

func (s *ImprovLabService) SetBarsPerChord(bars int) error {
	return s.trackSettingError(s.settings.SetBarsPerChord(bars))
}

func (s *ImprovLabService) SetChordCategories(enabled []catalog.ChordCategory) error {
	return s.trackSettingError(s.settings.SetChordCategories(enabled))
}

func (s *ImprovLabService) SetOutlineCategories(enabled []catalog.OutlineCategory) error {
	return s.trackSettingError(s.settings.SetOutlineCategories(enabled))
}

// UpdateSettings applies every field of change or none of them.
func (s *ImprovLabService) UpdateSettings(change settings.Change) error {
	return s.trackSettingError(s.settings.Apply(change))
}

func (s *ImprovLabService) trackSettingError(err error) error {
	if err != nil {
		s.setLastError(fmt.Sprintf("Failed to change settings: %v", err))
		return err
	}
	return nil
}

// SetChannelGain sets a channel level; "master" addresses the master bus.
func (s *ImprovLabService) SetChannelGain(channel string, level float64) error {
	if channel == "master" {
		s.pool.SetMasterGain(level)
		return nil
	}
	ch, err := audio.ParseChannel(channel)
	if err != nil {
		return err
	}
	return s.pool.SetChannelGain(ch, level)
}

func (s *ImprovLabService) SetMasterGain(level float64) {
	s.pool.SetMasterGain(level)
}

func (s *ImprovLabService) GetGains() audio.Gains {
	return s.pool.Gains()
}

func (s *ImprovLabService) GetCatalog() *catalog.Catalog {
	return s.catalog
}

// GetTranscript returns the chords played since the process started
func (s *ImprovLabService) GetTranscript() []transcript.Entry {
	return s.memory.Entries()
}

// GetTranscriptHistory returns every entry of the transcript file, or the
// in-memory transcript when no file is configured
func (s *ImprovLabService) GetTranscriptHistory() ([]transcript.Entry, error) {
	if s.history == nil {
		return s.memory.Entries(), nil
	}
	return s.history.ReadAll()
}

func (s *ImprovLabService) ResetTranscript() {
	s.memory.Reset()
}

// GetConfig returns the current configuration
func (s *ImprovLabService) GetConfig() *config.Config {
	return s.cfg
}

// ListProfiles returns the profiles of the config file the service was
// created from
func (s *ImprovLabService) ListProfiles() ([]string, error) {
	return config.ListProfiles(s.configFile)
}

// Close stops playback, detaches the scheduler and releases the audio output
func (s *ImprovLabService) Close() error {
	s.sched.Close()
	if err := s.pool.Close(); err != nil {
		return fmt.Errorf("closing audio output: %w", err)
	}
	return nil
}

// IsUserError reports whether err is caused by a setting the user can change,
// as opposed to an audio failure.
func IsUserError(err error) bool {
	return errors.Is(err, scheduler.ErrNoChords) ||
		errors.Is(err, scheduler.ErrNoOutlineCategories) ||
		errors.Is(err, scheduler.ErrNoOutlines)
}

// setLastError safely sets the last error message
func (s *ImprovLabService) setLastError(errorMsg string) {
	s.lastErrorMutex.Lock()
	defer s.lastErrorMutex.Unlock()
	s.lastError = errorMsg
}

// clearLastError safely clears the last error message
func (s *ImprovLabService) clearLastError() {
	s.lastErrorMutex.Lock()
	defer s.lastErrorMutex.Unlock()
	s.lastError = ""
}

// GetLastError returns the last error message
func (s *ImprovLabService) GetLastError() string {
	s.lastErrorMutex.RLock()
	defer s.lastErrorMutex.RUnlock()
	return s.lastError
}

var _ Service = (*ImprovLabService)(nil)
