package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/viper"

	"github.com/audiolibrelab/improvlab/internal/audio"
	"github.com/audiolibrelab/improvlab/internal/catalog"
	"github.com/audiolibrelab/improvlab/internal/settings"
)

const DefaultProfile = "default"

type GlobalsConfig struct {
	Assets     AssetsConfig     `mapstructure:"assets" yaml:"assets"`
	Transcript TranscriptConfig `mapstructure:"transcript" yaml:"transcript"`
}

type EntitlementConfig struct {
	FullFeatureSet bool `mapstructure:"full_feature_set" yaml:"full_feature_set"`
}

type RootConfig struct {
	ActiveConfig             string                    `mapstructure:"active_config" yaml:"active_config"`
	Globals                  *GlobalsConfig            `mapstructure:"globals,omitempty" yaml:"globals,omitempty"`
	Audio                    *AudioConfig              `mapstructure:"audio,omitempty" yaml:"audio,omitempty"`
	Entitlement              EntitlementConfig         `mapstructure:"entitlement" yaml:"entitlement"`
	Configs                  map[string]*ConfigProfile `mapstructure:"configs" yaml:"configs"`
	SupportedAudioExtensions []string                  `mapstructure:"supported_audio_extensions" yaml:"supported_audio_extensions"`
}

// Config is a fully resolved profile.
type Config struct {
	Profile                  string            `mapstructure:"-" yaml:"profile"`
	Audio                    AudioConfig       `mapstructure:"audio" yaml:"audio"`
	Assets                   AssetsConfig      `mapstructure:"assets" yaml:"assets"`
	Catalog                  CatalogConfig     `mapstructure:"catalog" yaml:"catalog"`
	Transcript               TranscriptConfig  `mapstructure:"transcript" yaml:"transcript"`
	Practice                 PracticeConfig    `mapstructure:"practice" yaml:"practice"`
	Mix                      audio.Gains       `mapstructure:"mix" yaml:"mix"`
	Entitlement              EntitlementConfig `mapstructure:"entitlement" yaml:"entitlement"`
	SupportedAudioExtensions []string          `mapstructure:"supported_audio_extensions" yaml:"supported_audio_extensions"`

	// Internal field to track inheritance information for config show
	Inheritance *InheritanceInfo `mapstructure:"-" yaml:"-"`
}

// ConfigProfile is one entry of the configs section. Unset fields fall
// back to the default profile.
type ConfigProfile struct {
	Audio      AudioConfig      `mapstructure:"audio" yaml:"audio"`
	Assets     AssetsConfig     `mapstructure:"assets" yaml:"assets"`
	Catalog    CatalogConfig    `mapstructure:"catalog" yaml:"catalog"`
	Transcript TranscriptConfig `mapstructure:"transcript" yaml:"transcript"`
	Practice   PracticeConfig   `mapstructure:"practice" yaml:"practice"`
	Mix        MixOverrides     `mapstructure:"mix" yaml:"mix"`
}

// InheritanceInfo records, per field, whether the value is "inherited",
// "profile-specific" or set in "global".
type InheritanceInfo struct {
	Fields map[string]string
}

func (i *InheritanceInfo) mark(field string, profileSpecific bool) {
	if profileSpecific {
		i.Fields[field] = "profile-specific"
		return
	}
	if _, ok := i.Fields[field]; !ok {
		i.Fields[field] = "inherited"
	}
}

type AudioConfig struct {
	SampleRate int    `mapstructure:"sample_rate" yaml:"sample_rate"`
	BufferMs   int    `mapstructure:"buffer_ms" yaml:"buffer_ms"`
	Backend    string `mapstructure:"backend" yaml:"backend"` // "speaker", "null", "auto"
}

type AssetsConfig struct {
	Directory string `mapstructure:"directory" yaml:"directory"`
	BaseURL   string `mapstructure:"base_url" yaml:"base_url,omitempty"`
}

type CatalogConfig struct {
	File string `mapstructure:"file" yaml:"file,omitempty"` // empty means the built-in catalog
}

type TranscriptConfig struct {
	File string `mapstructure:"file" yaml:"file,omitempty"`
}

type PracticeConfig struct {
	BarsPerChord      int      `mapstructure:"bars_per_chord" yaml:"bars_per_chord"`
	ChordCategories   []string `mapstructure:"chord_categories" yaml:"chord_categories"`
	OutlineCategories []string `mapstructure:"outline_categories" yaml:"outline_categories"`
}

// MixOverrides uses pointers so an explicit 0 (muted) differs from unset.
type MixOverrides struct {
	Master  *float64 `mapstructure:"master,omitempty" yaml:"master,omitempty"`
	Drums   *float64 `mapstructure:"drums,omitempty" yaml:"drums,omitempty"`
	Harmony *float64 `mapstructure:"harmony,omitempty" yaml:"harmony,omitempty"`
	Bass    *float64 `mapstructure:"bass,omitempty" yaml:"bass,omitempty"`
}

var defaultExtensions = []string{"flac", "wav", "mp3"}

// Default returns the built-in configuration used when no file exists.
func Default() *Config {
	home := os.Getenv("HOME")
	chords := make([]string, 0, len(catalog.ChordCategories))
	for _, c := range catalog.ChordCategories {
		chords = append(chords, string(c))
	}
	outlines := make([]string, 0, len(catalog.OutlineCategories))
	for _, c := range catalog.OutlineCategories {
		outlines = append(outlines, string(c))
	}
	return &Config{
		Profile: DefaultProfile,
		Audio: AudioConfig{
			SampleRate: 44100,
			BufferMs:   100,
			Backend:    "auto",
		},
		Assets: AssetsConfig{
			Directory: filepath.Join(home, "Audio", "ImprovLab", "sounds"),
		},
		Transcript: TranscriptConfig{
			File: filepath.Join(home, "Audio", "ImprovLab", "transcript.jsonl"),
		},
		Practice: PracticeConfig{
			BarsPerChord:      settings.DefaultBarsPerChord,
			ChordCategories:   chords,
			OutlineCategories: outlines,
		},
		Mix:                      audio.Gains{Master: 1, Drums: 1, Harmony: 1, Bass: 1},
		SupportedAudioExtensions: append([]string(nil), defaultExtensions...),
	}
}

// LoadWithProfile reads configFile and resolves profile, or the file's
// active_config when profile is empty. A missing file yields the built-in
// defaults.
func LoadWithProfile(configFile, profile string) (*Config, error) {
	rootConfig, err := readRoot(configFile)
	if err != nil {
		return nil, err
	}

	configName := profile
	if configName == "" {
		configName = rootConfig.ActiveConfig
	}
	if configName == "" {
		configName = DefaultProfile
	}

	result := Default()
	result.Inheritance = &InheritanceInfo{Fields: make(map[string]string)}
	if len(rootConfig.SupportedAudioExtensions) > 0 {
		result.SupportedAudioExtensions = rootConfig.SupportedAudioExtensions
	}
	result.Entitlement = rootConfig.Entitlement

	// Apply global audio settings as base
	if rootConfig.Audio != nil {
		if rootConfig.Audio.SampleRate != 0 {
			result.Audio.SampleRate = rootConfig.Audio.SampleRate
		}
		if rootConfig.Audio.BufferMs != 0 {
			result.Audio.BufferMs = rootConfig.Audio.BufferMs
		}
		if rootConfig.Audio.Backend != "" {
			result.Audio.Backend = rootConfig.Audio.Backend
		}
	}

	selectedProfile, exists := rootConfig.Configs[configName]
	if !exists && configName != DefaultProfile {
		return nil, fmt.Errorf("configuration profile '%s' not found", configName)
	}

	// Selection & Fallback: the default profile first, then the selected one
	if defaultProfile, ok := rootConfig.Configs[DefaultProfile]; ok && configName != DefaultProfile {
		result = mergeConfigs(result, defaultProfile)
		for field := range result.Inheritance.Fields {
			result.Inheritance.Fields[field] = "inherited"
		}
	}
	if selectedProfile != nil {
		result = mergeConfigs(result, selectedProfile)
	}
	result.Profile = configName

	// Global directories take priority over any profile
	if rootConfig.Globals != nil {
		if rootConfig.Globals.Assets.Directory != "" {
			result.Assets.Directory = rootConfig.Globals.Assets.Directory
			result.Inheritance.Fields["assets.directory"] = "global"
		}
		if rootConfig.Globals.Assets.BaseURL != "" {
			result.Assets.BaseURL = rootConfig.Globals.Assets.BaseURL
			result.Inheritance.Fields["assets.base_url"] = "global"
		}
		if rootConfig.Globals.Transcript.File != "" {
			result.Transcript.File = rootConfig.Globals.Transcript.File
			result.Inheritance.Fields["transcript.file"] = "global"
		}
	}

	result.Assets.Directory = expandPath(result.Assets.Directory)
	result.Catalog.File = expandPath(result.Catalog.File)
	result.Transcript.File = expandPath(result.Transcript.File)

	if err := validateConfig(result); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return result, nil
}

// readRoot parses configFile; a missing file is an empty root.
func readRoot(configFile string) (*RootConfig, error) {
	if configFile == "" {
		return &RootConfig{}, nil
	}
	if _, err := os.Stat(configFile); errors.Is(err, os.ErrNotExist) {
		return &RootConfig{}, nil
	}
	rootConfig, err := ValidateConfigurationFormat(configFile)
	if err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return rootConfig, nil
}

// UpdateActiveConfig updates the active_config field in the config file
func UpdateActiveConfig(configFile, newActiveConfig string) error {
	if configFile == "" {
		return fmt.Errorf("no config file specified")
	}

	// Create a new viper instance to avoid interfering with the global one
	v := viper.New()
	v.SetConfigFile(configFile)

	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("error reading config file %s: %w", configFile, err)
	}

	var rootConfig RootConfig
	if err := v.Unmarshal(&rootConfig); err != nil {
		return fmt.Errorf("error unmarshaling config: %w", err)
	}
	if _, ok := rootConfig.Configs[newActiveConfig]; !ok && newActiveConfig != DefaultProfile {
		return fmt.Errorf("configuration profile '%s' not found", newActiveConfig)
	}

	v.Set("active_config", newActiveConfig)

	if err := v.WriteConfig(); err != nil {
		return fmt.Errorf("error writing config file %s: %w", configFile, err)
	}

	return nil
}

// mergeConfigs implements the "Selection & Fallback" inheritance model:
// every field set in the profile replaces the base value, everything else
// is kept from base.
func mergeConfigs(base *Config, profile *ConfigProfile) *Config {
	result := *base
	result.Practice.ChordCategories = append([]string(nil), base.Practice.ChordCategories...)
	result.Practice.OutlineCategories = append([]string(nil), base.Practice.OutlineCategories...)
	result.Inheritance = &InheritanceInfo{Fields: make(map[string]string)}
	if base.Inheritance != nil {
		for k, v := range base.Inheritance.Fields {
			result.Inheritance.Fields[k] = v
		}
	}
	info := result.Inheritance

	if profile == nil {
		return &result
	}

	setString := func(field string, dst *string, v string) {
		if v != "" {
			*dst = v
		}
		info.mark(field, v != "")
	}
	setInt := func(field string, dst *int, v int) {
		if v != 0 {
			*dst = v
		}
		info.mark(field, v != 0)
	}
	setGain := func(field string, dst *float64, v *float64) {
		if v != nil {
			*dst = *v
		}
		info.mark(field, v != nil)
	}

	setInt("audio.sample_rate", &result.Audio.SampleRate, profile.Audio.SampleRate)
	setInt("audio.buffer_ms", &result.Audio.BufferMs, profile.Audio.BufferMs)
	setString("audio.backend", &result.Audio.Backend, profile.Audio.Backend)
	setString("assets.directory", &result.Assets.Directory, profile.Assets.Directory)
	setString("assets.base_url", &result.Assets.BaseURL, profile.Assets.BaseURL)
	setString("catalog.file", &result.Catalog.File, profile.Catalog.File)
	setString("transcript.file", &result.Transcript.File, profile.Transcript.File)
	setInt("practice.bars_per_chord", &result.Practice.BarsPerChord, profile.Practice.BarsPerChord)

	if profile.Practice.ChordCategories != nil {
		result.Practice.ChordCategories = append([]string(nil), profile.Practice.ChordCategories...)
	}
	info.mark("practice.chord_categories", profile.Practice.ChordCategories != nil)
	if profile.Practice.OutlineCategories != nil {
		result.Practice.OutlineCategories = append([]string(nil), profile.Practice.OutlineCategories...)
	}
	info.mark("practice.outline_categories", profile.Practice.OutlineCategories != nil)

	setGain("mix.master", &result.Mix.Master, profile.Mix.Master)
	setGain("mix.drums", &result.Mix.Drums, profile.Mix.Drums)
	setGain("mix.harmony", &result.Mix.Harmony, profile.Mix.Harmony)
	setGain("mix.bass", &result.Mix.Bass, profile.Mix.Bass)

	return &result
}

func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		homeDir, _ := os.UserHomeDir()
		return filepath.Join(homeDir, path[2:])
	}
	return path
}

// Playback converts the practice section into the initial playback settings.
func (c *Config) Playback() (settings.Configuration, error) {
	cfg := settings.Configuration{
		ChordCategories:   make(map[catalog.ChordCategory]bool),
		OutlineCategories: make(map[catalog.OutlineCategory]bool),
		BarsPerChord:      c.Practice.BarsPerChord,
		BPM:               settings.Default().BPM,
	}
	for _, cat := range catalog.ChordCategories {
		cfg.ChordCategories[cat] = false
	}
	for _, cat := range catalog.OutlineCategories {
		cfg.OutlineCategories[cat] = false
	}
	for _, name := range c.Practice.ChordCategories {
		cat := catalog.ChordCategory(name)
		if !cat.IsValid() {
			return settings.Configuration{}, fmt.Errorf("practice.chord_categories: unknown category '%s'", name)
		}
		cfg.ChordCategories[cat] = true
	}
	for _, name := range c.Practice.OutlineCategories {
		cat := catalog.OutlineCategory(name)
		if !cat.IsValid() {
			return settings.Configuration{}, fmt.Errorf("practice.outline_categories: unknown category '%s'", name)
		}
		cfg.OutlineCategories[cat] = true
	}
	return cfg, nil
}

// ValidateConfigurationFormat validates the configuration file format and returns parsed config
func ValidateConfigurationFormat(configFile string) (*RootConfig, error) {
	v := viper.New()
	v.SetConfigFile(configFile)

	// Set environment variable prefix
	v.SetEnvPrefix("IMPROVLAB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file %s: %w", configFile, err)
	}

	var rootConfig RootConfig
	if err := v.Unmarshal(&rootConfig); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	// Environment overrides for the scalar top level keys
	rootConfig.ActiveConfig = v.GetString("active_config")
	rootConfig.Entitlement.FullFeatureSet = v.GetBool("entitlement.full_feature_set")

	if rootConfig.Audio != nil {
		if err := validateAudio(*rootConfig.Audio, "audio"); err != nil {
			return nil, err
		}
	}
	if err := validateExtensions(rootConfig.SupportedAudioExtensions); err != nil {
		return nil, err
	}
	for configName, configProfile := range rootConfig.Configs {
		if configProfile == nil {
			continue
		}
		if err := validateProfile(configProfile); err != nil {
			return nil, fmt.Errorf("invalid config '%s': %w", configName, err)
		}
	}
	if rootConfig.ActiveConfig != "" && rootConfig.ActiveConfig != DefaultProfile {
		if _, ok := rootConfig.Configs[rootConfig.ActiveConfig]; !ok {
			return nil, fmt.Errorf("active_config '%s' does not name a profile", rootConfig.ActiveConfig)
		}
	}

	return &rootConfig, nil
}

func validateAudio(a AudioConfig, prefix string) error {
	if a.SampleRate < 0 {
		return fmt.Errorf("%s.sample_rate must be >= 0, got: %d", prefix, a.SampleRate)
	}
	if a.BufferMs < 0 {
		return fmt.Errorf("%s.buffer_ms must be >= 0, got: %d", prefix, a.BufferMs)
	}
	if a.Backend != "" {
		if _, err := audio.NewOutput(a.Backend, 0); err != nil {
			return fmt.Errorf("%s.backend: %w", prefix, err)
		}
	}
	return nil
}

func validateExtensions(exts []string) error {
	for i, ext := range exts {
		supported := false
		for _, known := range defaultExtensions {
			if strings.EqualFold(strings.TrimPrefix(ext, "."), known) {
				supported = true
				break
			}
		}
		if !supported {
			return fmt.Errorf("supported_audio_extensions[%d]: no decoder for '%s'", i, ext)
		}
	}
	return nil
}

// validateProfile checks the fields a profile sets.
func validateProfile(p *ConfigProfile) error {
	if err := validateAudio(p.Audio, "audio"); err != nil {
		return err
	}
	if p.Practice.BarsPerChord != 0 && !settings.ValidBarsPerChord(p.Practice.BarsPerChord) {
		return fmt.Errorf("practice.bars_per_chord must be one of %v, got: %d", settings.AllowedBarsPerChord, p.Practice.BarsPerChord)
	}
	for i, name := range p.Practice.ChordCategories {
		if !catalog.ChordCategory(name).IsValid() {
			return fmt.Errorf("practice.chord_categories[%d]: unknown category '%s'", i, name)
		}
	}
	for i, name := range p.Practice.OutlineCategories {
		if !catalog.OutlineCategory(name).IsValid() {
			return fmt.Errorf("practice.outline_categories[%d]: unknown category '%s'", i, name)
		}
	}
	gains := []struct {
		name string
		v    *float64
	}{
		{"master", p.Mix.Master},
		{"drums", p.Mix.Drums},
		{"harmony", p.Mix.Harmony},
		{"bass", p.Mix.Bass},
	}
	for _, g := range gains {
		if g.v != nil && (*g.v < 0 || *g.v > 1) {
			return fmt.Errorf("mix.%s must be between 0 and 1, got: %.2f", g.name, *g.v)
		}
	}
	if p.Assets.BaseURL != "" && !strings.HasPrefix(p.Assets.BaseURL, "http://") && !strings.HasPrefix(p.Assets.BaseURL, "https://") {
		return fmt.Errorf("assets.base_url must be an http(s) url, got: %s", p.Assets.BaseURL)
	}
	return nil
}

// validateConfig checks a resolved configuration.
func validateConfig(c *Config) error {
	if c.Audio.SampleRate <= 0 {
		return fmt.Errorf("audio.sample_rate must be > 0, got: %d", c.Audio.SampleRate)
	}
	if !settings.ValidBarsPerChord(c.Practice.BarsPerChord) {
		return fmt.Errorf("practice.bars_per_chord must be one of %v, got: %d", settings.AllowedBarsPerChord, c.Practice.BarsPerChord)
	}
	if c.Assets.Directory == "" && c.Assets.BaseURL == "" {
		return fmt.Errorf("assets.directory or assets.base_url is required")
	}
	if _, err := c.Playback(); err != nil {
		return err
	}
	return nil
}

// ListProfiles returns the profile names defined in configFile, sorted.
// The default profile is always present.
func ListProfiles(configFile string) ([]string, error) {
	rootConfig, err := readRoot(configFile)
	if err != nil {
		return nil, err
	}
	names := []string{DefaultProfile}
	for name := range rootConfig.Configs {
		if name != DefaultProfile {
			names = append(names, name)
		}
	}
	sort.Strings(names[1:])
	return names, nil
}
