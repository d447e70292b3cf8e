package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// DefaultDocFolders lists the documentation folders produced by the documentation stages.
var DefaultDocFolders = []string{
	"API Documentation",
	"Classifier",
	"Logic Understanding",
	"UAT Documentation",
}

// PipelineConfig contains configuration for the stage pipeline, archiving and deletion.
type PipelineConfig struct {
	// TargetDir is the directory repositories are cloned into.
	TargetDir string `env:"TARGET_DIR" envDefault:"."`

	// ArchiveRoot holds one archive directory per repository.
	// Defaults to <TargetDir>/Archives when empty.
	ArchiveRoot string `env:"ARCHIVE_ROOT"`

	// DefinitionFile is a YAML file describing the external stage commands.
	DefinitionFile string `env:"PIPELINE_FILE"`

	DocFolders []string `env:"DOC_FOLDERS" envDefault:"API Documentation,Classifier,Logic Understanding,UAT Documentation" envSeparator:","`

	// DeliveryTimeout bounds the single delivery POST.
	DeliveryTimeout time.Duration `env:"DELIVERY_TIMEOUT" envDefault:"5m"`

	// DeleteGracePeriod is how long terminated lock holders get to exit before being killed again.
	DeleteGracePeriod time.Duration `env:"DELETE_GRACE_PERIOD" envDefault:"1s"`

	// VCSProcessNames are substrings of process names terminated before deletion.
	VCSProcessNames []string `env:"VCS_PROCESS_NAMES" envDefault:"git" envSeparator:","`

	// ArchiveWithoutDelivery archives documentation locally before DELETE when no endpoint is set.
	ArchiveWithoutDelivery bool `env:"ARCHIVE_WITHOUT_DELIVERY" envDefault:"true"`

	// GitHubToken is injected into clone URLs for private repositories.
	GitHubToken string `env:"GITHUB_TOKEN"`
	GitBinary   string `env:"GIT_BINARY"   envDefault:"git"`

	// StageTimeout bounds a single external stage; zero disables the bound.
	StageTimeout time.Duration `env:"STAGE_TIMEOUT" envDefault:"0s"`

	// OutputExcerptBytes caps the stage output kept on each stage record.
	OutputExcerptBytes int `env:"STAGE_OUTPUT_EXCERPT_BYTES" envDefault:"4096"`
}

// Sanitize applies guardrails to pipeline configuration values.
func (p *PipelineConfig) Sanitize() {
	p.TargetDir = strings.TrimSpace(p.TargetDir)
	if p.TargetDir == "" {
		p.TargetDir = "."
	}
	p.ArchiveRoot = strings.TrimSpace(p.ArchiveRoot)
	if p.ArchiveRoot == "" {
		p.ArchiveRoot = filepath.Join(p.TargetDir, "Archives")
	}
	p.DefinitionFile = strings.TrimSpace(p.DefinitionFile)
	p.DocFolders = trimNonEmpty(p.DocFolders)
	if len(p.DocFolders) == 0 {
		p.DocFolders = append([]string(nil), DefaultDocFolders...)
	}
	p.VCSProcessNames = trimNonEmpty(p.VCSProcessNames)
	if p.DeliveryTimeout <= 0 {
		p.DeliveryTimeout = 5 * time.Minute
	}
	if p.DeleteGracePeriod < 0 {
		p.DeleteGracePeriod = 0
	}
	if p.DeleteGracePeriod > time.Minute {
		p.DeleteGracePeriod = time.Minute
	}
	p.GitHubToken = strings.TrimSpace(p.GitHubToken)
	if p.GitBinary = strings.TrimSpace(p.GitBinary); p.GitBinary == "" {
		p.GitBinary = "git"
	}
	if p.StageTimeout < 0 {
		p.StageTimeout = 0
	}
	if p.OutputExcerptBytes <= 0 {
		p.OutputExcerptBytes = 4096
	}
}

// Validate checks pipeline settings that cannot be defaulted.
func (p *PipelineConfig) Validate() error {
	for _, folder := range p.DocFolders {
		if strings.ContainsAny(folder, `/\`) || folder == "." || folder == ".." {
			return fmt.Errorf("DOC_FOLDERS entry %q must be a plain folder name", folder)
		}
	}
	if p.TargetDir == "" {
		return errors.New("TARGET_DIR is required")
	}
	return nil
}

func trimNonEmpty(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
