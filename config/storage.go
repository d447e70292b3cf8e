package config

import (
	"errors"
	"strings"
)

// MirrorConfig configures the optional object storage copy of every archive bundle.
type MirrorConfig struct {
	Enabled   bool   `env:"ENABLED"    envDefault:"false"`
	Endpoint  string `env:"ENDPOINT"`
	AccessKey string `env:"ACCESS_KEY"`
	SecretKey string `env:"SECRET_KEY"`
	Bucket    string `env:"BUCKET"     envDefault:"repodoc-archives"`
	Region    string `env:"REGION"`
	Prefix    string `env:"PREFIX"`
	UseSSL    bool   `env:"USE_SSL"    envDefault:"false"`
}

// Sanitize trims values loaded from env.
func (m *MirrorConfig) Sanitize() {
	m.Endpoint = strings.TrimSpace(m.Endpoint)
	m.AccessKey = strings.TrimSpace(m.AccessKey)
	m.SecretKey = strings.TrimSpace(m.SecretKey)
	m.Bucket = strings.TrimSpace(m.Bucket)
	m.Region = strings.TrimSpace(m.Region)
	m.Prefix = strings.Trim(strings.TrimSpace(m.Prefix), "/")
}

// Validate requires connection details once the mirror is enabled.
func (m *MirrorConfig) Validate() error {
	if !m.Enabled {
		return nil
	}
	var errs []error
	if m.Endpoint == "" {
		errs = append(errs, errors.New("ARCHIVE_MIRROR_ENDPOINT is required when the mirror is enabled"))
	}
	if m.AccessKey == "" || m.SecretKey == "" {
		errs = append(errs, errors.New("ARCHIVE_MIRROR_ACCESS_KEY and ARCHIVE_MIRROR_SECRET_KEY are required"))
	}
	if m.Bucket == "" {
		errs = append(errs, errors.New("ARCHIVE_MIRROR_BUCKET is required"))
	}
	return errors.Join(errs...)
}
