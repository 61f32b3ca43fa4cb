package config

import (
	"fmt"
	"time"
)

// SyncerConfig controls how often the syncer polls PostgreSQL and how hard
// it retries publishing to Redis.
type SyncerConfig struct {
	Interval time.Duration `envconfig:"INTERVAL" default:"10s" validate:"gt=0"`
	// Timeout bounds one cycle: revision poll, load, dry-run build, publish.
	Timeout time.Duration `envconfig:"TIMEOUT" default:"5s" validate:"gt=0"`

	// MaxRetries is the number of publish attempts after the first failure.
	MaxRetries     int           `envconfig:"MAX_RETRIES" default:"3" validate:"min=0"`
	BaseRetryDelay time.Duration `envconfig:"BASE_RETRY_DELAY" default:"1s" validate:"min=0"`
}

// Validate rejects a cycle timeout longer than the polling interval, which
// would let cycles queue behind each other.
func (c *SyncerConfig) Validate() error {
	if c.Timeout > c.Interval {
		return fmt.Errorf("syncer timeout (%s) cannot exceed interval (%s)", c.Timeout, c.Interval)
	}
	return nil
}
