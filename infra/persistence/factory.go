package persistence

import (
	"fmt"

	"github.com/verticore/liftd/core/persistence"
)

// Config selects and parameterizes the persistence backend.
type Config struct {
	// Backend is one of "none", "memory", "sqlite" or "mqtt".
	Backend string     `json:"backend" koanf:"backend"`
	Path    string     `json:"path" koanf:"path"`
	MQTT    MQTTConfig `json:"mqtt" koanf:"mqtt"`
}

// SetDefaults fills missing values.
func (c *Config) SetDefaults() {
	if c.Backend == "" {
		c.Backend = "memory"
	}
	c.MQTT.SetDefaults()
}

// Validate checks backend-specific requirements.
func (c Config) Validate() error {
	switch c.Backend {
	case "", "none", "memory":
	case "sqlite":
		if c.Path == "" {
			return fmt.Errorf("persistence: sqlite backend requires path")
		}
	case "mqtt":
		if c.MQTT.Broker == "" {
			return fmt.Errorf("persistence: mqtt backend requires broker")
		}
	default:
		return fmt.Errorf("persistence: unknown backend %q", c.Backend)
	}
	return nil
}

// New builds the gateway described by cfg.
func New(cfg Config) (persistence.Gateway, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	switch cfg.Backend {
	case "none":
		return persistence.NopGateway{}, nil
	case "memory":
		return persistence.NewMemoryGateway(), nil
	case "sqlite":
		return NewSQLiteGateway(cfg.Path)
	case "mqtt":
		return NewMQTTGateway(cfg.MQTT)
	}
	return nil, fmt.Errorf("persistence: unknown backend %q", cfg.Backend)
}
