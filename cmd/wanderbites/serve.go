package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/eringen/wanderbites"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the web server",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := wanderbites.LoadConfig(flagConfig)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}

		app := wanderbites.New(cfg, wanderbites.DefaultViews())
		defer func() {
			if err := app.Close(); err != nil {
				app.Log.Error().Err(err).Msg("shutdown cleanup failed")
			}
		}()

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return app.Start(ctx)
	},
}
