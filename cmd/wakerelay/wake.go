package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/tobiasge/wakerelay/internal/config"
	"github.com/tobiasge/wakerelay/internal/services/dispatch"
	"github.com/tobiasge/wakerelay/internal/services/probe"
)

var wakeCmd = &cobra.Command{
	Use:   "wake",
	Short: "Send the wake request for the configured device",
	Long: `Send a Wake-on-LAN request for the configured device:
1. Relay dispatch (if a relay is configured and enabled), with
   health check, retries and optional local fallback
2. Local delivery otherwise: broadcast and directed magic packets
   on ports 9 and 7
3. Reachability polling until the device responds (if configured)`,
	RunE: runWake,
}

func runWake(cmd *cobra.Command, args []string) error {
	if configFile == "" {
		log.Error().Msg("config file is required")
		return cmd.Help()
	}

	// Load configuration
	parser := config.NewParser()
	cfg, err := parser.LoadFile(configFile)
	if err != nil {
		log.Error().Err(err).Str("file", configFile).Msg("failed to load config")
		return err
	}

	// Validate configuration
	if err := config.ValidateWake(cfg); err != nil {
		log.Error().Err(err).Msg("invalid configuration")
		return err
	}

	log.Info().
		Str("config", configFile).
		Str("device", cfg.Device.Name).
		Str("mac", cfg.Device.MAC).
		Bool("relay", cfg.Relay != nil && cfg.Relay.Enabled).
		Msg("configuration loaded")

	// Set up context with signal handling
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		log.Warn().Str("signal", sig.String()).Msg("received signal, shutting down")
		cancel()
	}()

	// Dispatch the wake
	orchestrator := dispatch.New(log.Logger)
	result := orchestrator.SendWake(ctx, cfg.Device, cfg.Relay)
	if !result.Success {
		log.Error().
			Str("method", result.Method).
			Str("detail", result.Message).
			Msg("wake dispatch failed")
		return fmt.Errorf("wake dispatch failed: %s", result.Message)
	}

	log.Info().
		Str("method", result.Method).
		Str("detail", result.Message).
		Msg("wake dispatched")

	// Wait for the device to come up (if configured)
	if cfg.Probe != nil {
		probeSvc := probe.New(log.Logger)
		probeResult := probeSvc.Wait(ctx, *cfg.Probe)
		if probeResult.Error != nil {
			log.Error().Err(probeResult.Error).Msg("device did not become reachable")
			return fmt.Errorf("device did not become reachable: %w", probeResult.Error)
		}

		log.Info().
			Dur("wait_duration", probeResult.WaitDuration).
			Msg("device is reachable")
	}

	return nil
}
