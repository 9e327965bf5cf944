package config

import (
	"fmt"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Load reads and validates a configuration file. Keys missing from the file
// keep their Default values.
//
// Error cases:
//   - File not found or cannot be read
//   - Invalid YAML syntax
//   - Validation failure
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("failed to load config from %q: %w", path, err)
	}

	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "yaml"}); err != nil {
		return nil, fmt.Errorf("failed to parse config from %q: %w", path, err)
	}
	applyDefaults(k, &cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed for %q: %w", path, err)
	}

	return &cfg, nil
}

// applyDefaults fills keys absent from k. Present keys win even when empty,
// so "order: []" disables the default order.
func applyDefaults(k *koanf.Koanf, cfg *Config) {
	def := Default()
	if !k.Exists("server.port") {
		cfg.Server.Port = def.Server.Port
	}
	if !k.Exists("server.shutdown_timeout_seconds") {
		cfg.Server.ShutdownTimeoutSeconds = def.Server.ShutdownTimeoutSeconds
	}
	if !k.Exists("lifecycle.order") {
		cfg.Lifecycle.Order = def.Lifecycle.Order
	}
	if !k.Exists("pipeline.order") {
		cfg.Pipeline.Order = def.Pipeline.Order
	}
}
