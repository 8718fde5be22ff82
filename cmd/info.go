package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show the resolved configuration of the active profile",
	Long:  `Display the resolved configuration with inheritance indicators. Shows which values are inherited from default vs profile-specific.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Printf("=== PROFILE ===\n")
		fmt.Printf("config_file: %s\n", cfgFile)
		fmt.Printf("profile: %s\n", cfg.Profile)

		// Display resolved configuration with inheritance indicators
		fmt.Printf("\n=== RESOLVED CONFIGURATION ===\n")

		fmt.Printf("\n[Audio]\n")
		fmt.Printf("sample_rate: %d %s\n", cfg.Audio.SampleRate, indicator("audio.sample_rate"))
		fmt.Printf("buffer_ms: %d %s\n", cfg.Audio.BufferMs, indicator("audio.buffer_ms"))
		fmt.Printf("backend: %s %s\n", cfg.Audio.Backend, indicator("audio.backend"))

		fmt.Printf("\n[Assets]\n")
		fmt.Printf("directory: %s %s\n", cfg.Assets.Directory, indicator("assets.directory"))
		if cfg.Assets.BaseURL != "" {
			fmt.Printf("base_url: %s %s\n", cfg.Assets.BaseURL, indicator("assets.base_url"))
		}
		fmt.Printf("extensions: %s\n", strings.Join(cfg.SupportedAudioExtensions, ", "))

		fmt.Printf("\n[Catalog]\n")
		catalogFile := cfg.Catalog.File
		if catalogFile == "" {
			catalogFile = "(built-in)"
		}
		fmt.Printf("file: %s %s\n", catalogFile, indicator("catalog.file"))

		fmt.Printf("\n[Practice]\n")
		fmt.Printf("bars_per_chord: %d %s\n", cfg.Practice.BarsPerChord, indicator("practice.bars_per_chord"))
		fmt.Printf("chord_categories: %s %s\n", strings.Join(cfg.Practice.ChordCategories, ", "), indicator("practice.chord_categories"))
		fmt.Printf("outline_categories: %s %s\n", strings.Join(cfg.Practice.OutlineCategories, ", "), indicator("practice.outline_categories"))
		if !cfg.Entitlement.FullFeatureSet {
			fmt.Printf("note: free tier, practice runs with 4 bars and every category enabled\n")
		}

		fmt.Printf("\n[Mix]\n")
		fmt.Printf("master: %.2f %s\n", cfg.Mix.Master, indicator("mix.master"))
		fmt.Printf("drums: %.2f %s\n", cfg.Mix.Drums, indicator("mix.drums"))
		fmt.Printf("harmony: %.2f %s\n", cfg.Mix.Harmony, indicator("mix.harmony"))
		fmt.Printf("bass: %.2f %s\n", cfg.Mix.Bass, indicator("mix.bass"))

		fmt.Printf("\n[Transcript]\n")
		transcriptFile := cfg.Transcript.File
		if transcriptFile == "" {
			transcriptFile = "(disabled)"
		}
		fmt.Printf("file: %s %s\n", transcriptFile, indicator("transcript.file"))

		return nil
	},
}

func indicator(field string) string {
	if cfg.Inheritance == nil {
		return getInheritanceIndicator("")
	}
	return getInheritanceIndicator(cfg.Inheritance.Fields[field])
}

// getInheritanceIndicator returns a formatted indicator for inheritance status
func getInheritanceIndicator(status string) string {
	switch status {
	case "inherited":
		return "[inherited]"
	case "profile-specific":
		return "[profile-specific]"
	case "global":
		return "[global]"
	default:
		return "[default]"
	}
}
