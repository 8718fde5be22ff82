package cmd

import (
	"fmt"

	"github.com/audiolibrelab/improvlab/internal/audio"
	"github.com/audiolibrelab/improvlab/internal/service"

	"github.com/spf13/cobra"
)

var preloadCmd = &cobra.Command{
	Use:   "preload",
	Short: "Check that every audio asset loads",
	Long:  `Load and decode every audio asset referenced by the catalog without playing anything, and report the assets that could not be loaded.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := service.New(cfg, cfgFile, service.WithOutput(audio.NewNullOutput()))
		if err != nil {
			return fmt.Errorf("failed to create service: %w", err)
		}
		defer svc.Close()

		source := cfg.Assets.Directory
		if cfg.Assets.BaseURL != "" {
			source = cfg.Assets.BaseURL
		}
		fmt.Printf("🎵 Audio assets (%s)\n", source)
		fmt.Printf("═══════════════════════════════════════\n\n")

		result := svc.Preload(cmd.Context())
		fmt.Printf("📋 LOADED (%d):\n", len(result.Loaded))
		for i, id := range result.Loaded {
			fmt.Printf("  %d. %s\n", i+1, id)
		}

		if len(result.Warnings) > 0 {
			fmt.Printf("\n⚠️  NOT LOADED (%d):\n", len(result.Warnings))
			for _, w := range result.Warnings {
				fmt.Printf("  • %s\n", w)
			}
		}

		fmt.Printf("\n💡 Output backends: ")
		for i, b := range audio.GetAvailableBackends() {
			if i > 0 {
				fmt.Print(", ")
			}
			fmt.Print(b)
		}
		fmt.Printf(" (configured: %s)\n", cfg.Audio.Backend)

		if len(result.Loaded) == 0 {
			return fmt.Errorf("no audio asset could be loaded")
		}
		return nil
	},
}
