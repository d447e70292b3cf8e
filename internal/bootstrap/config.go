package bootstrap

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/target/repodoc/config"
)

// InitLogger initializes the structured logger at the given level and installs it as the default.
func InitLogger(level string) *slog.Logger {
	return initLogger(os.Stdout, level)
}

func initLogger(w io.Writer, level string) *slog.Logger {
	logger := slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: ParseLogLevel(level),
	}))
	slog.SetDefault(logger)
	return logger
}

// ParseLogLevel maps LOG_LEVEL values onto slog levels. Unknown values fall back to info.
func ParseLogLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// LoadConfig loads configuration from environment variables.
// Configuration failures are reported here, before any stage runs.
func LoadConfig() (config.AppConfig, error) {
	// Load .env file if it exists (development)
	if err := godotenv.Load(); err != nil {
		var pathErr *os.PathError
		if !errors.As(err, &pathErr) {
			return config.AppConfig{}, fmt.Errorf("load .env file: %w", err)
		}
	}

	var cfg config.AppConfig
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}

	cfg.Sanitize()
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// LogStartupInfo logs the effective configuration without secrets.
func LogStartupInfo(logger *slog.Logger, cfg *config.AppConfig) {
	if logger == nil || cfg == nil {
		return
	}
	logger.Info("starting repodoc",
		"target_dir", cfg.Pipeline.TargetDir,
		"archive_root", cfg.Pipeline.ArchiveRoot,
		"pipeline_file", cfg.Pipeline.DefinitionFile,
		"ledger_backend", cfg.Ledger.Backend,
		"lock_backend", cfg.Lock.Backend,
		"archive_mirror", cfg.Mirror.Enabled,
		"delivery_configured", cfg.Webhook.ArchiveEndpoint != "",
		"signature_verification", cfg.Webhook.Secret != "",
		"enforce_signature", cfg.Webhook.EnforceSignature,
		"metrics", cfg.Observability.Metrics.IsEnabled(),
		"dev", cfg.IsDev,
	)
}
