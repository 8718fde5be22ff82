package config

import (
	"strings"
	"testing"
)

func TestValidateConfigurationFormat_ValidConfig(t *testing.T) {
	validConfig := `
active_config: practice

audio:
  sample_rate: 44100
  buffer_ms: 50
  backend: speaker

configs:
  default:
    assets:
      directory: ~/Audio/ImprovLab/sounds
  practice:
    assets:
      base_url: https://cdn.example.com/sounds
    practice:
      bars_per_chord: 16
      chord_categories:
        - major-seventh
        - minor-seventh
    mix:
      bass: 0.5

supported_audio_extensions:
  - flac
  - wav
`
	rootConfig, err := ValidateConfigurationFormat(createTempConfig(t, validConfig))
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if rootConfig.ActiveConfig != "practice" {
		t.Errorf("Expected active config 'practice', got %s", rootConfig.ActiveConfig)
	}
	if rootConfig.Audio == nil || rootConfig.Audio.BufferMs != 50 {
		t.Errorf("Expected global audio section, got %+v", rootConfig.Audio)
	}
	profile := rootConfig.Configs["practice"]
	if profile == nil {
		t.Fatal("Expected practice profile")
	}
	if profile.Practice.BarsPerChord != 16 || len(profile.Practice.ChordCategories) != 2 {
		t.Errorf("Unexpected practice section: %+v", profile.Practice)
	}
	if profile.Mix.Bass == nil || *profile.Mix.Bass != 0.5 || profile.Mix.Master != nil {
		t.Errorf("Unexpected mix overrides: %+v", profile.Mix)
	}
	if len(rootConfig.SupportedAudioExtensions) != 2 {
		t.Errorf("Expected 2 extensions, got %v", rootConfig.SupportedAudioExtensions)
	}
}

func TestValidateConfigurationFormat_Errors(t *testing.T) {
	tests := []struct {
		name    string
		config  string
		wantErr string
	}{
		{
			name: "invalid bars per chord",
			config: `
configs:
  default:
    practice:
      bars_per_chord: 6
`,
			wantErr: "practice.bars_per_chord",
		},
		{
			name: "unknown chord category",
			config: `
configs:
  default:
    practice:
      chord_categories: [major-seventh, ninth]
`,
			wantErr: "practice.chord_categories[1]",
		},
		{
			name: "unknown outline category",
			config: `
configs:
  default:
    practice:
      outline_categories: [arpeggio]
`,
			wantErr: "practice.outline_categories[0]",
		},
		{
			name: "gain out of range",
			config: `
configs:
  default:
    mix:
      harmony: 1.5
`,
			wantErr: "mix.harmony",
		},
		{
			name: "negative gain",
			config: `
configs:
  default:
    mix:
      master: -0.1
`,
			wantErr: "mix.master",
		},
		{
			name: "unknown backend",
			config: `
audio:
  backend: pipewire
`,
			wantErr: "audio.backend",
		},
		{
			name: "negative buffer",
			config: `
configs:
  default:
    audio:
      buffer_ms: -5
`,
			wantErr: "audio.buffer_ms",
		},
		{
			name: "unsupported extension",
			config: `
supported_audio_extensions: [wav, ogg]
`,
			wantErr: "supported_audio_extensions[1]",
		},
		{
			name: "active config missing",
			config: `
active_config: gig
configs:
  default: {}
`,
			wantErr: "active_config 'gig'",
		},
		{
			name: "base url scheme",
			config: `
configs:
  default:
    assets:
      base_url: ftp://example.com
`,
			wantErr: "assets.base_url",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ValidateConfigurationFormat(createTempConfig(t, tt.config))
			if err == nil {
				t.Fatalf("Expected error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Expected error containing %q, got: %v", tt.wantErr, err)
			}
		})
	}
}

func TestValidateConfigurationFormat_UnreadableFile(t *testing.T) {
	if _, err := ValidateConfigurationFormat(createTempConfig(t, "configs: [unclosed")); err == nil {
		t.Error("Expected error for invalid YAML")
	}
}
