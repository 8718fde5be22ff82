package cmd

import (
	"fmt"
	"log/slog"

	"github.com/audiolibrelab/improvlab/internal/server"
	"github.com/audiolibrelab/improvlab/internal/service"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the web server for remote control",
	Long: `Start the ImprovLab web server to control practice via a web interface.
This allows you to start, stop and change settings from your smartphone or any
device on the same network while the audio plays on this machine.

The server will display the local network URL for easy access from mobile devices.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		port, _ := cmd.Flags().GetString("port")

		svc, err := service.New(cfg, cfgFile)
		if err != nil {
			return fmt.Errorf("failed to create service: %w", err)
		}
		defer svc.Close()

		result := svc.Preload(cmd.Context())
		for _, w := range result.Warnings {
			slog.Warn("Asset not loaded", "detail", w)
		}

		slog.Info("ImprovLab web server starting", "port", port, "config", cfgFile, "profile", cfg.Profile)

		// Start server (this blocks)
		srv := server.New(svc, port)
		if err := srv.Start(); err != nil {
			return fmt.Errorf("server failed: %w", err)
		}

		return nil
	},
}

func init() {
	serveCmd.Flags().String("port", "8080", "port for the web server")
}
