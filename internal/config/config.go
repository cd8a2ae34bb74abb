// Package config handles YAML configuration loading, environment variable
// expansion, and structural validation for connectd.
package config

import (
	"errors"
	"fmt"
	"time"
)

// Config is the top-level configuration structure.
type Config struct {
	// Detection controls connection scoring and caching.
	Detection DetectionConfig `yaml:"detection"`

	// Notifications controls event dispatch channels.
	Notifications NotificationConfig `yaml:"notifications"`

	// Gateway controls the HTTP API server.
	Gateway GatewayConfig `yaml:"gateway"`
}

// DetectionConfig configures the connection detector.
type DetectionConfig struct {
	// Threshold is the minimum score for a connection to count as
	// high relevance. Must be within [0, 1].
	Threshold float64 `yaml:"threshold"`

	// MaxConnections caps how many connections a single detection
	// run may return.
	MaxConnections int `yaml:"max_connections"`

	// Order selects how connections are truncated when MaxConnections
	// is exceeded: "insertion" or "score".
	Order string `yaml:"order"`

	// Strategies lists the scoring strategies to run. Empty means all
	// registered strategies.
	Strategies []string `yaml:"strategies,omitempty"`

	// CacheSize bounds the detection result cache.
	CacheSize int `yaml:"cache_size"`
}

// NotificationConfig configures event dispatch.
type NotificationConfig struct {
	// Threshold is the minimum connection score that triggers a
	// notification. Must be within [0, 1].
	Threshold float64 `yaml:"threshold"`

	// Channels lists the channels to enable: "console", "file", "webhook".
	Channels []string `yaml:"channels"`

	// Console configures the console channel.
	Console ConsoleConfig `yaml:"console"`

	// File configures the file channel.
	File FileConfig `yaml:"file"`

	// Webhook configures the webhook channel.
	Webhook WebhookConfig `yaml:"webhook"`

	// Ledger configures persistent delivery tracking. An empty path
	// disables the ledger.
	Ledger LedgerConfig `yaml:"ledger"`
}

// ConsoleConfig configures the console channel.
type ConsoleConfig struct {
	// Color enables ANSI color output.
	Color bool `yaml:"color"`
}

// FileConfig configures the file channel.
type FileConfig struct {
	// Path is the notification log file location.
	Path string `yaml:"path"`

	// MaxSize is the rotation threshold in bytes.
	MaxSize int64 `yaml:"max_size"`
}

// WebhookConfig configures the webhook channel.
type WebhookConfig struct {
	// URL is the endpoint notifications are POSTed to.
	URL string `yaml:"url"`

	// Timeout bounds each HTTP request.
	Timeout time.Duration `yaml:"timeout"`

	// Retries is the number of delivery attempts per event.
	Retries int `yaml:"retries"`
}

// LedgerConfig configures the delivery ledger.
type LedgerConfig struct {
	// Path is the SQLite database file location.
	Path string `yaml:"path"`
}

// GatewayConfig configures the HTTP API server.
type GatewayConfig struct {
	// Listen is the address the server binds to.
	Listen string `yaml:"listen"`
}

// defaults fills in zero-valued fields with sensible defaults.
func (c *Config) defaults() {
	if c.Detection.Threshold == 0 {
		c.Detection.Threshold = 0.7
	}
	if c.Detection.MaxConnections == 0 {
		c.Detection.MaxConnections = 50
	}
	if c.Detection.Order == "" {
		c.Detection.Order = "insertion"
	}
	if c.Detection.CacheSize == 0 {
		c.Detection.CacheSize = 256
	}

	if c.Notifications.Threshold == 0 {
		c.Notifications.Threshold = 0.7
	}
	if len(c.Notifications.Channels) == 0 {
		c.Notifications.Channels = []string{"console"}
	}
	if c.Notifications.File.Path == "" {
		c.Notifications.File.Path = "notifications.log"
	}
	if c.Notifications.File.MaxSize == 0 {
		c.Notifications.File.MaxSize = 10 * 1024 * 1024
	}
	if c.Notifications.Webhook.Timeout == 0 {
		c.Notifications.Webhook.Timeout = 30 * time.Second
	}
	if c.Notifications.Webhook.Retries == 0 {
		c.Notifications.Webhook.Retries = 3
	}

	if c.Gateway.Listen == "" {
		c.Gateway.Listen = "127.0.0.1:8080"
	}
}

// validate checks the structural validity of a Config.
// It returns all problems found, joined into a single error.
func (c *Config) validate() error {
	var errs []error

	if c.Detection.Threshold < 0 || c.Detection.Threshold > 1 {
		errs = append(errs, fmt.Errorf("config: detection.threshold %v outside [0, 1]", c.Detection.Threshold))
	}
	if c.Detection.MaxConnections < 1 {
		errs = append(errs, fmt.Errorf("config: detection.max_connections must be positive, got %d", c.Detection.MaxConnections))
	}
	if c.Detection.Order != "insertion" && c.Detection.Order != "score" {
		errs = append(errs, fmt.Errorf("config: detection.order %q (supported: \"insertion\", \"score\")", c.Detection.Order))
	}
	if c.Detection.CacheSize < 1 {
		errs = append(errs, fmt.Errorf("config: detection.cache_size must be positive, got %d", c.Detection.CacheSize))
	}

	if c.Notifications.Threshold < 0 || c.Notifications.Threshold > 1 {
		errs = append(errs, fmt.Errorf("config: notifications.threshold %v outside [0, 1]", c.Notifications.Threshold))
	}
	for i, name := range c.Notifications.Channels {
		switch name {
		case "console", "file", "webhook":
		default:
			errs = append(errs, fmt.Errorf("config: notifications.channels[%d]: unknown channel %q", i, name))
		}
	}
	if c.hasChannel("webhook") && c.Notifications.Webhook.URL == "" {
		errs = append(errs, errors.New("config: webhook channel enabled but notifications.webhook.url is empty"))
	}
	if c.Notifications.Webhook.Retries < 1 {
		errs = append(errs, fmt.Errorf("config: notifications.webhook.retries must be positive, got %d", c.Notifications.Webhook.Retries))
	}
	if c.Notifications.File.MaxSize < 1 {
		errs = append(errs, fmt.Errorf("config: notifications.file.max_size must be positive, got %d", c.Notifications.File.MaxSize))
	}

	if c.Gateway.Listen == "" {
		errs = append(errs, errors.New("config: gateway.listen is required"))
	}

	return errors.Join(errs...)
}

func (c *Config) hasChannel(name string) bool {
	for _, ch := range c.Notifications.Channels {
		if ch == name {
			return true
		}
	}
	return false
}
