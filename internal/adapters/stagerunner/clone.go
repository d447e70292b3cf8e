package stagerunner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/target/repodoc/internal/core"
	"github.com/target/repodoc/internal/domain/model"
)

// ErrInvalidRepoURL is returned when a clone URL is not a GitHub repository URL.
var ErrInvalidRepoURL = errors.New("invalid repository url")

// CloneOptions configures a GitCloneExecutor.
type CloneOptions struct {
	// GitBinary defaults to "git".
	GitBinary string
	// Token is injected into https clone URLs. Tokens without a ghp_ or github_pat_ prefix are ignored.
	Token        string
	Timeout      time.Duration
	ExcerptBytes int
	Logger       *slog.Logger
}

// GitCloneExecutor clones a GitHub repository into <targetPath>/<repo>.
// The repository URL is the first argument.
type GitCloneExecutor struct {
	git     string
	token   string
	timeout time.Duration
	excerpt int
	logger  *slog.Logger
}

var _ core.StageExecutor = (*GitCloneExecutor)(nil)

// NewGitCloneExecutor builds a clone executor.
func NewGitCloneExecutor(opts CloneOptions) *GitCloneExecutor {
	logger := resolveLogger(opts.Logger).With("component", "git_clone")
	git := strings.TrimSpace(opts.GitBinary)
	if git == "" {
		git = "git"
	}
	excerpt := opts.ExcerptBytes
	if excerpt <= 0 {
		excerpt = defaultExcerptBytes
	}
	token := strings.TrimSpace(opts.Token)
	if token != "" && !ValidTokenFormat(token) {
		logger.Warn("ignoring GitHub token with unexpected format; private repositories may not be accessible")
		token = ""
	}
	return &GitCloneExecutor{git: git, token: token, timeout: opts.Timeout, excerpt: excerpt, logger: logger}
}

// ValidTokenFormat reports whether token looks like a GitHub personal access token.
func ValidTokenFormat(token string) bool {
	return strings.HasPrefix(token, "ghp_") || strings.HasPrefix(token, "github_pat_")
}

// Run clones args[0] into targetPath.
func (e *GitCloneExecutor) Run(ctx context.Context, targetPath string, args []string) model.StageOutcome {
	if len(args) == 0 {
		return model.Failed(fmt.Errorf("%w: repository url argument is required", ErrInvalidRepoURL), "")
	}
	owner, repo, err := ParseRepoURL(args[0])
	if err != nil {
		return model.Failed(err, "")
	}
	dest := filepath.Join(targetPath, repo)
	if err := os.MkdirAll(targetPath, 0o755); err != nil {
		return model.Failed(fmt.Errorf("create target directory: %w", err), "")
	}

	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	cloneURL := e.authenticatedURL(args[0])
	cmd := exec.CommandContext(ctx, e.git, "clone", "--quiet", "--", cloneURL, dest)
	cmd.Env = mergeEnv(os.Environ(), map[string]string{"GIT_TERMINAL_PROMPT": "0"})
	cmd.WaitDelay = waitDelay
	out := newTailBuffer(e.excerpt)
	cmd.Stdout = out
	cmd.Stderr = out

	e.logger.InfoContext(ctx, "cloning repository",
		"owner", owner,
		"repository", repo,
		"destination", dest,
		"authenticated", e.token != "",
	)
	if err := cmd.Run(); err != nil {
		output := e.redact(out.String())
		e.logger.WarnContext(ctx, "git clone failed", "repository", repo, "error", err, "output", output)
		return model.Failed(fmt.Errorf("git clone %s/%s: %w", owner, repo, err), output)
	}
	return model.Succeeded("cloned into " + dest)
}

func (e *GitCloneExecutor) authenticatedURL(raw string) string {
	if e.token == "" {
		return raw
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme != "https" {
		return raw
	}
	u.User = url.User(e.token)
	return u.String()
}

func (e *GitCloneExecutor) redact(s string) string {
	if e.token == "" {
		return s
	}
	return strings.ReplaceAll(s, e.token, "***")
}

// ParseRepoURL validates a GitHub repository URL and returns its owner and repository name.
func ParseRepoURL(raw string) (string, string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", "", fmt.Errorf("%w: empty url", ErrInvalidRepoURL)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", "", fmt.Errorf("%w: %w", ErrInvalidRepoURL, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", "", fmt.Errorf("%w: %q is not an absolute url", ErrInvalidRepoURL, raw)
	}
	host := strings.ToLower(u.Hostname())
	if host != "github.com" && !strings.HasSuffix(host, ".github.com") {
		return "", "", fmt.Errorf("%w: host %q is not github.com", ErrInvalidRepoURL, host)
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("%w: path %q is not owner/repo", ErrInvalidRepoURL, u.Path)
	}
	owner := parts[len(parts)-2]
	repo := strings.TrimSuffix(parts[len(parts)-1], ".git")
	if repo == "" || repo == "." || repo == ".." {
		return "", "", fmt.Errorf("%w: empty repository name", ErrInvalidRepoURL)
	}
	return owner, repo, nil
}
