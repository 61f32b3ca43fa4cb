package config

import (
	"fmt"
	"time"
)

const (
	// SourceFile loads rules from a YAML or JSON file and watches it for changes.
	SourceFile = "file"
	// SourceRedis loads rule snapshots published by the syncer.
	SourceRedis = "redis"
)

// SourceConfig selects where the data plane loads its rule definitions from.
type SourceConfig struct {
	Kind string `envconfig:"KIND" default:"file" validate:"oneof=file redis"`

	// File is the definition file (SourceFile only).
	File string `envconfig:"FILE" default:"rules.yaml"`

	// Watch reloads the file when it changes.
	Watch bool `envconfig:"WATCH" default:"true"`

	// Debounce coalesces bursts of file events (editors write in several steps).
	Debounce time.Duration `envconfig:"DEBOUNCE" default:"250ms"`

	// Resync re-reads the Redis snapshot periodically in case a PubSub
	// notice was lost (SourceRedis only). Zero disables it.
	Resync time.Duration `envconfig:"RESYNC" default:"30s" validate:"min=0"`
}

// Validate checks SourceConfig fields for correctness.
func (c *SourceConfig) Validate() error {
	if c.Kind == SourceFile {
		if err := requireToken(c.File, "source file"); err != nil {
			return err
		}
		if c.Watch && c.Debounce <= 0 {
			return fmt.Errorf("source debounce must be positive when watching, got %s", c.Debounce)
		}
	}
	return nil
}
