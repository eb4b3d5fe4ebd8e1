// Package config loads environment variables and provides a typed Config used across the service.
// It applies sensible defaults so the binary can run locally with no setup at all.
package config

import (
	"fmt"
	"net/url"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	// HTTP
	HTTPAddr        string        `env:"HTTP_ADDR" envDefault:":8080"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"5s"`

	// CORS for browser-based control surfaces
	CORSPermissive     bool     `env:"CORS_PERMISSIVE" envDefault:"true"`
	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:","`

	// Logging
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"text"`

	// Platforms
	ConfirmTimeout       time.Duration `env:"CONFIRM_TIMEOUT" envDefault:"5s"`
	TikTokConnectTimeout time.Duration `env:"TIKTOK_CONNECT_TIMEOUT" envDefault:"10s"`
	TwitchConnectTimeout time.Duration `env:"TWITCH_CONNECT_TIMEOUT" envDefault:"10s"`
	TikTokRelayURL       string        `env:"TIKTOK_RELAY_URL" envDefault:"ws://localhost:8081/webcast"`

	// Observer link
	ObserverPingInterval time.Duration `env:"OBSERVER_PING_INTERVAL" envDefault:"30s"`
	ObserverWriteTimeout time.Duration `env:"OBSERVER_WRITE_TIMEOUT" envDefault:"5s"`
	ObserverSendBuffer   int           `env:"OBSERVER_SEND_BUFFER" envDefault:"64"`

	// Tracing
	OTLPEndpoint string `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
}

// Load reads environment variables and applies defaults.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

// Validate checks values that would otherwise fail late at runtime.
func (c *Config) Validate() error {
	durations := []struct {
		name string
		d    time.Duration
	}{
		{"SHUTDOWN_TIMEOUT", c.ShutdownTimeout},
		{"CONFIRM_TIMEOUT", c.ConfirmTimeout},
		{"TIKTOK_CONNECT_TIMEOUT", c.TikTokConnectTimeout},
		{"TWITCH_CONNECT_TIMEOUT", c.TwitchConnectTimeout},
		{"OBSERVER_PING_INTERVAL", c.ObserverPingInterval},
		{"OBSERVER_WRITE_TIMEOUT", c.ObserverWriteTimeout},
	}
	for _, d := range durations {
		if d.d <= 0 {
			return fmt.Errorf("invalid %s: must be positive, got %s", d.name, d.d)
		}
	}
	if c.ObserverSendBuffer <= 0 {
		return fmt.Errorf("invalid OBSERVER_SEND_BUFFER: must be positive, got %d", c.ObserverSendBuffer)
	}
	u, err := url.Parse(c.TikTokRelayURL)
	if err != nil {
		return fmt.Errorf("invalid TIKTOK_RELAY_URL: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return fmt.Errorf("invalid TIKTOK_RELAY_URL: scheme must be ws or wss, got %q", u.Scheme)
	}
	return nil
}

const (
	minWriteTimeout = 30 * time.Second
	writeSlack      = 10 * time.Second
)

// HTTPWriteTimeout covers the slowest /start answer (TikTok connect plus
// confirmation, or the Twitch connect) with some slack, and is never below 30s.
func (c *Config) HTTPWriteTimeout() time.Duration {
	wait := max(c.TikTokConnectTimeout+c.ConfirmTimeout, c.TwitchConnectTimeout)
	return max(wait+writeSlack, minWriteTimeout)
}

// AddrForPort turns a bare port (as passed on the command line) into a listen address.
func AddrForPort(port string) string {
	if port == "" {
		return ""
	}
	return ":" + port
}
