package config

import (
	"fmt"
	"time"

	"github.com/hashicorp/go-version"
)

// Config holds all configuration for the host.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Lifecycle  LifecycleConfig  `yaml:"lifecycle"`
	Pipeline   PipelineConfig   `yaml:"pipeline"`
	Tracing    TracingConfig    `yaml:"tracing"`
	Components ComponentsConfig `yaml:"components"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	// Port is the port the API server listens on; 0 picks a free port
	Port int `yaml:"port"`

	// ShutdownTimeoutSeconds bounds the whole stop transition
	ShutdownTimeoutSeconds int `yaml:"shutdown_timeout_seconds"`
}

// LifecycleConfig orders lifecycle groups.
type LifecycleConfig struct {
	// Order lists group names by priority; unlisted groups follow alphabetically
	Order []string `yaml:"order"`

	// Parallel notifies the members of one group concurrently
	Parallel bool `yaml:"parallel"`
}

// PipelineConfig orders middleware phases.
type PipelineConfig struct {
	Order []string `yaml:"order"`
}

// TracingConfig configures OTLP trace export.
type TracingConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Endpoint    string `yaml:"endpoint"`
	TLSCAPath   string `yaml:"tls_ca_path"`
	TLSInsecure bool   `yaml:"tls_insecure"`
}

// ComponentsConfig constrains component registrations.
type ComponentsConfig struct {
	// MinVersion rejects components whose version tag is lower
	MinVersion string `yaml:"min_version"`
}

// DefaultLifecycleOrder starts telemetry before the server and stops it last.
var DefaultLifecycleOrder = []string{"telemetry", "server"}

// DefaultPipelineOrder matches the built-in middleware phases.
var DefaultPipelineOrder = []string{"recover", "request-id", "access-log", "metrics", "cors"}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:                   8080,
			ShutdownTimeoutSeconds: 10,
		},
		Lifecycle: LifecycleConfig{
			Order: append([]string(nil), DefaultLifecycleOrder...),
		},
		Pipeline: PipelineConfig{
			Order: append([]string(nil), DefaultPipelineOrder...),
		},
	}
}

// ShutdownTimeout returns the server shutdown timeout as a duration.
func (c *Config) ShutdownTimeout() time.Duration {
	return time.Duration(c.Server.ShutdownTimeoutSeconds) * time.Second
}

// Validate checks that the configuration is valid. Unknown or duplicate group
// names in an order are not errors.
func (c *Config) Validate() error {
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return NewConfigError("server.port must be between 0 and 65535")
	}

	if c.Server.ShutdownTimeoutSeconds < 0 {
		return NewConfigError("server.shutdown_timeout_seconds must not be negative")
	}

	if c.Tracing.Enabled && c.Tracing.Endpoint == "" {
		return NewConfigError("tracing.endpoint must be set when tracing is enabled")
	}

	if c.Components.MinVersion != "" {
		if _, err := version.NewVersion(c.Components.MinVersion); err != nil {
			return NewConfigError(fmt.Sprintf("components.min_version %q is not a valid version", c.Components.MinVersion))
		}
	}

	return nil
}

// ConfigError represents a configuration error
type ConfigError struct {
	message string
}

// NewConfigError creates a new configuration error
func NewConfigError(message string) *ConfigError {
	return &ConfigError{message: message}
}

// Error returns the error message
func (e *ConfigError) Error() string {
	return e.message
}
