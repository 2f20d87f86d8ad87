package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/tobiasge/wakerelay/internal/config"
	"github.com/tobiasge/wakerelay/internal/services/relayserver"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the relay gateway server",
	Long: `Run the HTTP relay gateway that accepts authenticated wake requests
from remote wakerelay clients and performs local magic packet delivery
on their behalf. Endpoints:
  GET  /health   liveness and counters
  POST /wake     wake request {"mac", "ip", "name"}`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
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

	if err := config.ValidateServe(cfg); err != nil {
		log.Error().Err(err).Msg("invalid configuration")
		return err
	}

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

	server := relayserver.New(log.Logger, *cfg.Server)
	if err := server.Run(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error().Err(err).Msg("relay gateway failed")
		return err
	}

	log.Info().Msg("relay gateway stopped")
	return nil
}
