// Package config loads the service configuration from a YAML or JSON file
// with optional environment overrides (LIFTD_ prefix, "__" as separator).
package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/verticore/liftd/core/dispatch"
	"github.com/verticore/liftd/core/metrics"
	"github.com/verticore/liftd/infra/persistence"
)

// FleetConfig sizes the building and the fleet.
type FleetConfig struct {
	NumFloors           int     `json:"numFloors"`
	NumElevators        int     `json:"numElevators"`
	FloorTransitSeconds float64 `json:"floorTransitSeconds"`
	DoorSeconds         float64 `json:"doorSeconds"`
}

// SetDefaults applies the defaults used when fields are zero.
func (c *FleetConfig) SetDefaults() {
	if c.NumFloors == 0 {
		c.NumFloors = 10
	}
	if c.NumElevators == 0 {
		c.NumElevators = 5
	}
	if c.FloorTransitSeconds == 0 {
		c.FloorTransitSeconds = 5
	}
	if c.DoorSeconds == 0 {
		c.DoorSeconds = 2
	}
}

// Validate checks fleet sizing.
func (c FleetConfig) Validate() error {
	if c.NumFloors < 2 {
		return fmt.Errorf("fleet: numFloors must be at least 2, got %d", c.NumFloors)
	}
	if c.NumElevators < 1 {
		return fmt.Errorf("fleet: numElevators must be at least 1, got %d", c.NumElevators)
	}
	if c.FloorTransitSeconds < 0 || c.DoorSeconds < 0 {
		return fmt.Errorf("fleet: transit and door durations must not be negative")
	}
	return nil
}

// DispatchConfig holds the dispatcher knobs expressed in file-friendly units.
type DispatchConfig struct {
	IdempotencyTTLSeconds float64 `json:"idempotencyTtlSeconds"`
}

// SetDefaults applies the defaults used when fields are zero.
func (c *DispatchConfig) SetDefaults() {
	if c.IdempotencyTTLSeconds == 0 {
		c.IdempotencyTTLSeconds = 600
	}
}

// Config is the root configuration of the service.
type Config struct {
	Fleet       FleetConfig        `json:"fleet"`
	Dispatch    DispatchConfig     `json:"dispatch"`
	Persistence persistence.Config `json:"persistence"`
	Metrics     metrics.Config     `json:"metrics"`
}

// DispatcherConfig converts the file representation into the core dispatcher
// configuration.
func (c Config) DispatcherConfig() dispatch.Config {
	return dispatch.Config{
		NumFloors:      c.Fleet.NumFloors,
		FloorTransit:   seconds(c.Fleet.FloorTransitSeconds),
		DoorTime:       seconds(c.Fleet.DoorSeconds),
		IdempotencyTTL: seconds(c.Dispatch.IdempotencyTTLSeconds),
	}
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

// SetDefaults fills in every section.
func (c *Config) SetDefaults() {
	c.Fleet.SetDefaults()
	c.Dispatch.SetDefaults()
	c.Persistence.SetDefaults()
	c.Metrics.SetDefaults()
}

// Validate checks every section.
func (c Config) Validate() error {
	if err := c.Fleet.Validate(); err != nil {
		return err
	}
	if err := c.Persistence.Validate(); err != nil {
		return err
	}
	return c.DispatcherConfig().Validate()
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	var cfg Config
	cfg.SetDefaults()
	return &cfg
}

// Load reads the configuration file at path, applies environment overrides,
// defaults and validation.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	ext := strings.ToLower(filepath.Ext(path))
	var parser koanf.Parser
	switch ext {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		return nil, fmt.Errorf("unsupported config format: %s", ext)
	}
	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, err
	}
	// Optional environment overrides
	if err := k.Load(env.Provider("LIFTD_", ".", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), "liftd_")
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
