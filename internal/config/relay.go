package config

import "time"

type Relay struct {
	Enabled   bool          `env:"RELAY_ENABLED" envDefault:"false"`
	BatchSize int           `env:"RELAY_BATCH_SIZE" envDefault:"100"`
	Interval  time.Duration `env:"RELAY_INTERVAL" envDefault:"1s"`
	// MaxAttempts bounds how often a message is produced before it is
	// parked with its last error.
	MaxAttempts int `env:"RELAY_MAX_ATTEMPTS" envDefault:"5"`
	// Retention is how long processed messages are kept. Zero keeps them.
	Retention     time.Duration `env:"RELAY_RETENTION" envDefault:"168h"`
	PurgeInterval time.Duration `env:"RELAY_PURGE_INTERVAL" envDefault:"1h"`
}
