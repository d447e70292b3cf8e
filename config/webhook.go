package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// WebhookConfig controls ingress signature checks and the archive delivery endpoint.
type WebhookConfig struct {
	// Secret is the shared HMAC secret. Empty disables signature verification.
	Secret string `env:"GITHUB_WEBHOOK_SECRET"`

	// EnforceSignature rejects requests whose signature is missing or wrong.
	// When false a bad signature is only logged.
	EnforceSignature bool `env:"WEBHOOK_ENFORCE_SIGNATURE" envDefault:"false"`

	// ArchiveEndpoint receives the deliverable package. It takes precedence over
	// the per-request X-Archive-Webhook header.
	ArchiveEndpoint string `env:"ARCHIVE_WEBHOOK_URL"`

	// AllowEndpointHeader lets callers supply X-Archive-Webhook when ArchiveEndpoint is unset.
	AllowEndpointHeader bool `env:"WEBHOOK_ALLOW_ENDPOINT_HEADER" envDefault:"true"`

	// RefExpression is a JMESPath expression that reads the reference token from a JSON
	// body when neither the path nor ?ref= supplies one.
	RefExpression string `env:"WEBHOOK_REF_EXPRESSION"`
}

// Sanitize trims values loaded from env.
func (w *WebhookConfig) Sanitize() {
	w.Secret = strings.TrimSpace(w.Secret)
	w.ArchiveEndpoint = strings.TrimSpace(w.ArchiveEndpoint)
	w.RefExpression = strings.TrimSpace(w.RefExpression)
}

// Validate checks the endpoint URL and signature settings.
func (w *WebhookConfig) Validate() error {
	if w.EnforceSignature && w.Secret == "" {
		return errors.New("WEBHOOK_ENFORCE_SIGNATURE requires GITHUB_WEBHOOK_SECRET")
	}
	if w.ArchiveEndpoint != "" {
		if err := ValidateEndpoint(w.ArchiveEndpoint); err != nil {
			return fmt.Errorf("ARCHIVE_WEBHOOK_URL: %w", err)
		}
	}
	return nil
}

// ValidateEndpoint checks that raw is an absolute http(s) URL.
func ValidateEndpoint(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("parse endpoint: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("endpoint scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return errors.New("endpoint host is required")
	}
	return nil
}
