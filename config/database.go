package config

import (
	"fmt"
	"strings"
	"time"
)

// DBConfig contains PostgreSQL database configuration.
type DBConfig struct {
	Host     string `env:"HOST"                    envDefault:"localhost"`
	Port     int    `env:"PORT"                    envDefault:"5432"`
	User     string `env:"USER"                    envDefault:"repodoc"`
	Password string `env:"PASSWORD"                envDefault:"repodoc"`
	Name     string `env:"NAME"                    envDefault:"repodoc"`
	SSLMode  string `env:"SSL_MODE"                envDefault:"disable"` // Use 'disable' for local dev, 'require' for production
	// RunMigrationsOnStart controls whether the application automatically applies migrations during startup.
	RunMigrationsOnStart bool `env:"RUN_MIGRATIONS_ON_START" envDefault:"true"`
}

// RedisConfig contains Redis configuration.
type RedisConfig struct {
	URI                string   `env:"URI"                  envDefault:"localhost:6379"`
	Password           string   `env:"PASSWORD"             envDefault:""`
	DB                 int      `env:"DB"                   envDefault:"0"`
	SentinelNodes      []string `env:"SENTINEL_NODES"       envDefault:"localhost:26379"`
	SentinelMasterName string   `env:"SENTINEL_MASTER_NAME" envDefault:"mymaster"`
	SentinelPassword   string   `env:"SENTINEL_PASSWORD"    envDefault:""`
	UseSentinel        bool     `env:"USE_SENTINEL"         envDefault:"false"`
	ClusterNodes       []string `env:"CLUSTER_NODES"        envDefault:""`
	UseCluster         bool     `env:"USE_CLUSTER"          envDefault:"false"`
}

// LedgerBackend selects the version ledger implementation.
type LedgerBackend string

const (
	// LedgerBackendFile keeps versions.json beside the archives.
	LedgerBackendFile LedgerBackend = "file"
	// LedgerBackendPostgres keeps counters in the archive_versions table.
	LedgerBackendPostgres LedgerBackend = "postgres"
)

// UnmarshalText implements encoding.TextUnmarshaler for LedgerBackend.
func (b *LedgerBackend) UnmarshalText(text []byte) error {
	v := strings.ToLower(strings.TrimSpace(string(text)))
	switch v {
	case "", "file":
		*b = LedgerBackendFile
		return nil
	case "postgres":
		*b = LedgerBackendPostgres
		return nil
	default:
		return fmt.Errorf("invalid LedgerBackend: %q (valid options: file, postgres)", v)
	}
}

// LedgerConfig selects where archive version counters live.
type LedgerConfig struct {
	Backend LedgerBackend `env:"LEDGER_BACKEND" envDefault:"file"`
}

// Sanitize defaults an empty backend to file.
func (l *LedgerConfig) Sanitize() {
	if l.Backend == "" {
		l.Backend = LedgerBackendFile
	}
}

// LockBackend selects how concurrent archivers of the same repository are serialized.
type LockBackend string

const (
	// LockBackendNone relies on the single worker for exclusion.
	LockBackendNone LockBackend = "none"
	// LockBackendDir uses lock directories under <archive root>/.locks.
	LockBackendDir LockBackend = "dir"
	// LockBackendRedis uses SET NX with a TTL.
	LockBackendRedis LockBackend = "redis"
)

// UnmarshalText implements encoding.TextUnmarshaler for LockBackend.
func (b *LockBackend) UnmarshalText(text []byte) error {
	v := strings.ToLower(strings.TrimSpace(string(text)))
	switch v {
	case "", "none":
		*b = LockBackendNone
		return nil
	case "dir":
		*b = LockBackendDir
		return nil
	case "redis":
		*b = LockBackendRedis
		return nil
	default:
		return fmt.Errorf("invalid LockBackend: %q (valid options: none, dir, redis)", v)
	}
}

// LockConfig controls the per-repository archive lock.
type LockConfig struct {
	Backend   LockBackend   `env:"LOCK_BACKEND"    envDefault:"dir"`
	TTL       time.Duration `env:"LOCK_TTL"        envDefault:"30m"`
	KeyPrefix string        `env:"LOCK_KEY_PREFIX" envDefault:"repodoc:archive-lock:"`
}

// Sanitize applies defaults to lock settings.
func (l *LockConfig) Sanitize() {
	if l.Backend == "" {
		l.Backend = LockBackendNone
	}
	if l.TTL <= 0 {
		l.TTL = 30 * time.Minute
	}
	if l.KeyPrefix = strings.TrimSpace(l.KeyPrefix); l.KeyPrefix == "" {
		l.KeyPrefix = "repodoc:archive-lock:"
	}
}
