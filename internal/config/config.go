package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

const (
	StoreSQLite   = "sqlite"
	StorePostgres = "postgres"

	BusNone     = "none"
	BusPostgres = "postgres"
	BusRedis    = "redis"
)

// Config is the resolved configuration shared by every binary.
type Config struct {
	LogLevel   slog.Level `env:"APP_LOG_LEVEL" envDefault:"INFO"`
	InstanceID string     `env:"LEDGER_INSTANCE_ID"`

	Store    StoreConfig
	Postgres PostgresConfig
	SQLite   SQLiteConfig
	Ledger   LedgerConfig
	Cache    CacheConfig
	Bus      BusConfig
	Redis    RedisConfig

	CurrencyDecimals  int32         `env:"CURRENCY_DECIMALS" envDefault:"2"`
	Retention         time.Duration `env:"RETENTION" envDefault:"0s"`
	RetentionInterval time.Duration `env:"RETENTION_INTERVAL" envDefault:"1h"`
}

type StoreConfig struct {
	Backend string `env:"LEDGER_STORE" envDefault:"sqlite"`
}

type PostgresConfig struct {
	DSN             string        `env:"PG_DSN"`
	MaxOpenConns    int           `env:"PG_MAX_OPEN_CONNS" envDefault:"10"`
	MaxIdleConns    int           `env:"PG_MAX_IDLE_CONNS" envDefault:"2"`
	ConnMaxIdleTime time.Duration `env:"PG_CONN_MAX_IDLE_TIME" envDefault:"10m"`
	ConnMaxLifetime time.Duration `env:"PG_CONN_MAX_LIFETIME" envDefault:"30m"`
}

type SQLiteConfig struct {
	Path        string        `env:"SQLITE_PATH" envDefault:"casino.db"`
	BusyTimeout time.Duration `env:"SQLITE_BUSY_TIMEOUT" envDefault:"5s"`
}

type LedgerConfig struct {
	OpTimeout            time.Duration `env:"LEDGER_OP_TIMEOUT" envDefault:"3s"`
	LockTimeout          time.Duration `env:"LEDGER_LOCK_TIMEOUT" envDefault:"5s"`
	MaxTransientAttempts int           `env:"LEDGER_MAX_TRANSIENT_ATTEMPTS" envDefault:"5"`
	BackoffInitial       time.Duration `env:"LEDGER_BACKOFF_INITIAL" envDefault:"50ms"`
	BackoffMax           time.Duration `env:"LEDGER_BACKOFF_MAX" envDefault:"2s"`
	MaxConflictRetries   int           `env:"LEDGER_MAX_CONFLICT_RETRIES" envDefault:"8"`
}

type CacheConfig struct {
	MaxEntries int           `env:"CACHE_MAX_ENTRIES" envDefault:"1000"`
	TTL        time.Duration `env:"CACHE_TTL" envDefault:"5m"`
}

type BusConfig struct {
	Driver     string `env:"BUS_DRIVER" envDefault:"none"`
	Channel    string `env:"BUS_CHANNEL" envDefault:"casino_ledger_events"`
	OutboxSize int    `env:"BUS_OUTBOX_SIZE" envDefault:"1024"`
}

type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB" envDefault:"0"`
}

// Validate reports every inconsistency at once.
func (c *Config) Validate() error {
	var errs []error

	c.Store.Backend = strings.ToLower(strings.TrimSpace(c.Store.Backend))
	c.Bus.Driver = strings.ToLower(strings.TrimSpace(c.Bus.Driver))

	switch c.Store.Backend {
	case StoreSQLite:
		if strings.TrimSpace(c.SQLite.Path) == "" {
			errs = append(errs, errors.New("SQLITE_PATH is required for the sqlite store"))
		}
	case StorePostgres:
		if strings.TrimSpace(c.Postgres.DSN) == "" {
			errs = append(errs, errors.New("PG_DSN is required for the postgres store"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown LEDGER_STORE %q", c.Store.Backend))
	}

	switch c.Bus.Driver {
	case BusNone, BusRedis:
	case BusPostgres:
		if strings.TrimSpace(c.Postgres.DSN) == "" {
			errs = append(errs, errors.New("PG_DSN is required for the postgres bus"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown BUS_DRIVER %q", c.Bus.Driver))
	}

	if c.Cache.MaxEntries <= 0 {
		errs = append(errs, errors.New("CACHE_MAX_ENTRIES must be positive"))
	}
	if c.Ledger.MaxTransientAttempts <= 0 {
		errs = append(errs, errors.New("LEDGER_MAX_TRANSIENT_ATTEMPTS must be positive"))
	}
	if c.Ledger.MaxConflictRetries < 0 {
		errs = append(errs, errors.New("LEDGER_MAX_CONFLICT_RETRIES must be >= 0"))
	}
	if c.Ledger.OpTimeout <= 0 || c.Ledger.LockTimeout <= 0 {
		errs = append(errs, errors.New("LEDGER_OP_TIMEOUT and LEDGER_LOCK_TIMEOUT must be positive"))
	}
	if c.CurrencyDecimals < 0 || c.CurrencyDecimals > 8 {
		errs = append(errs, errors.New("CURRENCY_DECIMALS must be between 0 and 8"))
	}

	return errors.Join(errs...)
}
