package config

import "time"

// CacheConfig configures the data plane L1 decision cache.
// Entries are keyed by generation, so a reload never serves stale decisions;
// the TTL only bounds memory held by contexts that stop recurring.
type CacheConfig struct {
	Enabled  bool          `envconfig:"ENABLED" default:"true"`
	Capacity int           `envconfig:"CAPACITY" default:"100000" validate:"min=1"`
	TTL      time.Duration `envconfig:"TTL" default:"60s" validate:"gt=0"`
}
