package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vjranagit/thermotrack/internal/app"
	"github.com/vjranagit/thermotrack/internal/config"
	"github.com/vjranagit/thermotrack/internal/logging"
)

var configPath string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the API server",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVarP(&configPath, "config", "c", "", "path to a YAML config file")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	log, closer, err := logging.New(cfg.Log.Level, cfg.Log.Path)
	if err != nil {
		return err
	}
	defer closer.Close()

	log.Info("configuration loaded",
		"version", version,
		"listen", cfg.Server.ListenAddr,
		"driver", cfg.Storage.Driver,
		"path", cfg.Storage.Path,
		"sensor", cfg.Sensor.Kind,
		"increment", cfg.Playback.Increment,
		"period", cfg.Playback.Period,
	)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			log.Error("shutdown failed", "err", err)
		}
	}()

	return a.Run(ctx)
}
