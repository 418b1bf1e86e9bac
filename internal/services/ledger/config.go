package ledger

import (
	"time"

	"github.com/fastprodman/casinoledger/internal/config"
)

// Config is the resolved engine configuration.
type Config struct {
	InstanceID           string // origin id stamped on bus events
	OpTimeout            time.Duration
	LockTimeout          time.Duration
	MaxTransientAttempts int
	BackoffInitial       time.Duration
	BackoffMax           time.Duration
	MaxConflictRetries   int
	OutboxSize           int
}

func DefaultConfig() Config {
	return Config{
		OpTimeout:            3 * time.Second,
		LockTimeout:          5 * time.Second,
		MaxTransientAttempts: 5,
		BackoffInitial:       50 * time.Millisecond,
		BackoffMax:           2 * time.Second,
		MaxConflictRetries:   8,
		OutboxSize:           1024,
	}
}

// ConfigFrom maps the process configuration onto the engine's.
func ConfigFrom(c config.Config) Config {
	return Config{
		InstanceID:           c.InstanceID,
		OpTimeout:            c.Ledger.OpTimeout,
		LockTimeout:          c.Ledger.LockTimeout,
		MaxTransientAttempts: c.Ledger.MaxTransientAttempts,
		BackoffInitial:       c.Ledger.BackoffInitial,
		BackoffMax:           c.Ledger.BackoffMax,
		MaxConflictRetries:   c.Ledger.MaxConflictRetries,
		OutboxSize:           c.Bus.OutboxSize,
	}
}

// withDefaults fills zero fields so a partially filled Config still works.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.OpTimeout <= 0 {
		c.OpTimeout = d.OpTimeout
	}
	if c.LockTimeout <= 0 {
		c.LockTimeout = d.LockTimeout
	}
	if c.MaxTransientAttempts <= 0 {
		c.MaxTransientAttempts = d.MaxTransientAttempts
	}
	if c.BackoffInitial <= 0 {
		c.BackoffInitial = d.BackoffInitial
	}
	if c.BackoffMax <= 0 {
		c.BackoffMax = d.BackoffMax
	}
	if c.MaxConflictRetries < 0 {
		c.MaxConflictRetries = 0
	}
	if c.OutboxSize <= 0 {
		c.OutboxSize = d.OutboxSize
	}
	return c
}
