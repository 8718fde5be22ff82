package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/audiolibrelab/improvlab/internal/service"
	"github.com/audiolibrelab/improvlab/internal/tui"

	"github.com/spf13/cobra"
)

var playCmd = &cobra.Command{
	Use:   "play",
	Short: "Open the practice screen",
	Long: `Load the audio assets and open the practice screen in the terminal.

Press space to start and stop, 4/8/1 to choose 4, 8 or 16 bars per chord
and ? for every key. Logs go to a file while the screen is open.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		logFile, _ := cmd.Flags().GetString("log-file")
		if logFile == "" {
			logFile = filepath.Join(os.TempDir(), "improvlab.log")
		}
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		defer f.Close()

		fmt.Printf("Loading audio from %s...\n", cfg.Assets.Directory)
		svc, err := service.New(cfg, cfgFile)
		if err != nil {
			return fmt.Errorf("failed to create service: %w", err)
		}
		defer svc.Close()

		result := svc.Preload(cmd.Context())
		for _, w := range result.Warnings {
			fmt.Printf("⚠️  %s\n", w)
		}

		// The screen owns the terminal from here on
		setupLogging(verboseLevel, f)

		return tui.Run(svc)
	},
}

func init() {
	playCmd.Flags().String("log-file", "", "log file while the practice screen is open (default is improvlab.log in the temp directory)")
}
