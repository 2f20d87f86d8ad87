// Package models contains the data structures used throughout wakerelay.
package models

import "time"

// Config holds the complete wakerelay configuration.
type Config struct {
	Device WakeTarget
	Relay  *RelayConfig  // nil if not configured
	Probe  *ProbeConfig  // nil if not configured
	Server *ServerConfig // nil if not configured
}

// WakeTarget describes the device to wake. MAC is the only field the
// protocol strictly needs; IP enables directed delivery and Name is for
// display and relay logs.
type WakeTarget struct {
	Name string
	IP   string
	MAC  string
}

// RelayConfig holds the remote relay gateway settings.
type RelayConfig struct {
	Enabled       bool
	Host          string
	Port          int
	APIKey        string
	FallbackLocal bool // fall back to local delivery when the relay fails
}

// ProbeConfig holds post-wake reachability polling settings.
type ProbeConfig struct {
	URL           string        // URL to poll until the device is ready
	Timeout       time.Duration // max time to wait for the device
	PollInterval  time.Duration // how often to poll the URL
	StabilizeWait time.Duration // extra wait after the device responds
}

// ServerConfig holds the relay gateway server settings.
type ServerConfig struct {
	Listen     string
	Port       int
	APIKey     string // plain API key, compared in constant time
	APIKeyHash string // bcrypt hash, takes precedence over APIKey
}
