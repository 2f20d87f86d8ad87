// Package config provides configuration file parsing.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/tobiasge/wakerelay/internal/magic"
	"github.com/tobiasge/wakerelay/internal/models"
)

// Parser handles configuration file parsing.
type Parser struct {
	v *viper.Viper
}

// NewParser creates a new configuration parser.
func NewParser() *Parser {
	v := viper.New()
	v.SetConfigType("yaml")
	return &Parser{v: v}
}

// LoadFile loads configuration from a file path.
func (p *Parser) LoadFile(path string) (*models.Config, error) {
	p.v.SetConfigFile(path)

	if err := p.v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	return p.parse()
}

// LoadReader loads configuration from a reader (useful for testing).
func (p *Parser) LoadReader(content string) (*models.Config, error) {
	if err := p.v.ReadConfig(strings.NewReader(content)); err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	return p.parse()
}

//nolint:gocognit,gocyclo // parsing config requires checking many fields
func (p *Parser) parse() (*models.Config, error) {
	cfg := &models.Config{}

	// Parse device section.
	if p.v.IsSet("device") {
		cfg.Device = models.WakeTarget{
			Name: p.v.GetString("device.name"),
			IP:   p.v.GetString("device.ip"),
			MAC:  p.v.GetString("device.mac"),
		}
	}

	// Parse optional relay config.
	if p.v.IsSet("relay") { //nolint:nestif // config parsing with defaults
		cfg.Relay = &models.RelayConfig{
			Host:          p.v.GetString("relay.host"),
			Port:          p.v.GetInt("relay.port"),
			APIKey:        p.expandEnv(p.v.GetString("relay.api_key")),
			FallbackLocal: p.v.GetBool("relay.fallback_local"),
		}

		// A relay section means relay mode unless explicitly disabled.
		if p.v.IsSet("relay.enabled") {
			cfg.Relay.Enabled = p.v.GetBool("relay.enabled")
		} else {
			cfg.Relay.Enabled = true
		}

		if cfg.Relay.Host == "" {
			return nil, fmt.Errorf("relay.host is required when relay is configured")
		}
		if cfg.Relay.Port == 0 {
			cfg.Relay.Port = 5000
		}
		if cfg.Relay.Port < 1 || cfg.Relay.Port > 65535 {
			return nil, fmt.Errorf("relay.port must be in [1,65535]")
		}
	}

	// Parse optional probe config.
	if p.v.IsSet("probe") {
		cfg.Probe = &models.ProbeConfig{
			URL:           p.v.GetString("probe.url"),
			Timeout:       p.v.GetDuration("probe.timeout"),
			PollInterval:  p.v.GetDuration("probe.poll_interval"),
			StabilizeWait: p.v.GetDuration("probe.stabilize_wait"),
		}

		if cfg.Probe.URL == "" {
			return nil, fmt.Errorf("probe.url is required when probe is configured")
		}

		// Set defaults.
		if cfg.Probe.Timeout == 0 {
			cfg.Probe.Timeout = 5 * time.Minute
		}
		if cfg.Probe.PollInterval == 0 {
			cfg.Probe.PollInterval = 10 * time.Second
		}
		if cfg.Probe.StabilizeWait == 0 {
			cfg.Probe.StabilizeWait = 10 * time.Second
		}
	}

	// Parse optional server config.
	if p.v.IsSet("server") {
		cfg.Server = &models.ServerConfig{
			Listen:     p.v.GetString("server.listen"),
			Port:       p.v.GetInt("server.port"),
			APIKey:     p.expandEnv(p.v.GetString("server.api_key")),
			APIKeyHash: p.expandEnv(p.v.GetString("server.api_key_hash")),
		}

		if cfg.Server.Listen == "" {
			cfg.Server.Listen = "0.0.0.0"
		}
		if cfg.Server.Port == 0 {
			cfg.Server.Port = 5000
		}
		if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
			return nil, fmt.Errorf("server.port must be in [1,65535]")
		}
	}

	return cfg, nil
}

// expandEnv expands environment variables in the format ${VAR} or $VAR.
func (p *Parser) expandEnv(s string) string {
	return os.ExpandEnv(s)
}

// ValidateWake checks everything a wake dispatch needs.
func ValidateWake(cfg *models.Config) error {
	if cfg == nil {
		return fmt.Errorf("configuration is nil")
	}

	if cfg.Device.MAC == "" {
		return fmt.Errorf("device.mac is required")
	}
	if _, err := magic.ParseMAC(cfg.Device.MAC); err != nil {
		return fmt.Errorf("device.mac is invalid: %w", err)
	}

	return nil
}

// ValidateServe checks everything the relay gateway server needs.
func ValidateServe(cfg *models.Config) error {
	if cfg == nil {
		return fmt.Errorf("configuration is nil")
	}

	if cfg.Server == nil {
		return fmt.Errorf("server section is required for serve mode")
	}

	return nil
}
