package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/tobiasge/wakerelay/internal/config"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration file",
	Long:  `Validate the configuration file without sending any packets.`,
	RunE:  validateConfig,
}

func validateConfig(cmd *cobra.Command, args []string) error {
	if configFile == "" {
		log.Error().Msg("config file is required")
		return cmd.Help()
	}

	// Check if file exists
	if _, err := os.Stat(configFile); os.IsNotExist(err) {
		log.Error().Str("file", configFile).Msg("config file not found")
		return fmt.Errorf("config file not found: %s", configFile)
	}

	// Load configuration
	parser := config.NewParser()
	cfg, err := parser.LoadFile(configFile)
	if err != nil {
		log.Error().Err(err).Str("file", configFile).Msg("failed to parse config")
		return err
	}

	// A config may describe a wake client, a relay gateway, or both.
	wakeErr := config.ValidateWake(cfg)
	serveErr := config.ValidateServe(cfg)
	if wakeErr != nil && serveErr != nil {
		log.Error().Err(wakeErr).Msg("configuration validation failed")
		return wakeErr
	}

	// Print configuration summary
	fmt.Println("Configuration is valid!")
	fmt.Println()

	if wakeErr == nil {
		fmt.Println("Wake Target:")
		fmt.Printf("  Name: %s\n", cfg.Device.Name)
		fmt.Printf("  MAC: %s\n", cfg.Device.MAC)
		if cfg.Device.IP != "" {
			fmt.Printf("  IP: %s\n", cfg.Device.IP)
		}
		fmt.Println()
	}

	fmt.Println("Modes:")
	fmt.Printf("  Relay dispatch: %v\n", cfg.Relay != nil && cfg.Relay.Enabled)
	fmt.Printf("  Reachability probe: %v\n", cfg.Probe != nil)
	fmt.Printf("  Gateway server: %v\n", cfg.Server != nil)

	if cfg.Relay != nil {
		fmt.Println()
		fmt.Println("Relay Configuration:")
		fmt.Printf("  Host: %s\n", cfg.Relay.Host)
		fmt.Printf("  Port: %d\n", cfg.Relay.Port)
		fmt.Printf("  API Key: %v\n", boolWord(cfg.Relay.APIKey != ""))
		fmt.Printf("  Fallback to local: %v\n", cfg.Relay.FallbackLocal)
	}

	if cfg.Probe != nil {
		fmt.Println()
		fmt.Println("Probe Configuration:")
		fmt.Printf("  URL: %s\n", cfg.Probe.URL)
		fmt.Printf("  Timeout: %s\n", cfg.Probe.Timeout)
		fmt.Printf("  Poll interval: %s\n", cfg.Probe.PollInterval)
		fmt.Printf("  Stabilize wait: %s\n", cfg.Probe.StabilizeWait)
	}

	if cfg.Server != nil {
		fmt.Println()
		fmt.Println("Server Configuration:")
		fmt.Printf("  Listen: %s\n", cfg.Server.Listen)
		fmt.Printf("  Port: %d\n", cfg.Server.Port)
		fmt.Printf("  Auth: %v\n", boolWord(cfg.Server.APIKey != "" || cfg.Server.APIKeyHash != ""))
	}

	return nil
}

func boolWord(b bool) string {
	if b {
		return "(configured)"
	}
	return "(none)"
}
