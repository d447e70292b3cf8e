// Package stagerunner runs external programs as pipeline stage executors.
package stagerunner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/target/repodoc/internal/core"
	"github.com/target/repodoc/internal/domain/model"
	"github.com/target/repodoc/internal/domain/pipeline"
)

const (
	defaultExcerptBytes = 4096
	// waitDelay bounds how long Wait blocks on inherited pipes after the process is killed.
	waitDelay = 5 * time.Second
)

// CommandOptions configures a CommandExecutor.
type CommandOptions struct {
	Stage   model.Stage
	Command pipeline.StageCommand
	// ExcerptBytes is how much of the tail of combined output is kept.
	ExcerptBytes int
	// DefaultTimeout applies when the command has no timeout of its own. Zero means none.
	DefaultTimeout time.Duration
	Logger         *slog.Logger
}

// CommandExecutor runs one configured external program.
type CommandExecutor struct {
	stage   model.Stage
	command pipeline.StageCommand
	excerpt int
	timeout time.Duration
	logger  *slog.Logger
}

var _ core.StageExecutor = (*CommandExecutor)(nil)

// NewCommandExecutor validates opts and builds an executor.
func NewCommandExecutor(opts CommandOptions) (*CommandExecutor, error) {
	if len(opts.Command.Command) == 0 || strings.TrimSpace(opts.Command.Command[0]) == "" {
		return nil, fmt.Errorf("%w: %s", pipeline.ErrMissingCommand, opts.Stage)
	}
	excerpt := opts.ExcerptBytes
	if excerpt <= 0 {
		excerpt = defaultExcerptBytes
	}
	timeout := opts.Command.Timeout
	if timeout <= 0 {
		timeout = opts.DefaultTimeout
	}
	return &CommandExecutor{
		stage:   opts.Stage,
		command: opts.Command,
		excerpt: excerpt,
		timeout: timeout,
		logger:  resolveLogger(opts.Logger).With("component", "stage_command", "stage", string(opts.Stage)),
	}, nil
}

// Run executes the command against targetPath. A non-zero exit, a start failure or a
// timeout produce a failed outcome carrying the tail of the program's output.
func (e *CommandExecutor) Run(ctx context.Context, targetPath string, args []string) model.StageOutcome {
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	argv := e.command.Argv(targetPath, args)
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = e.command.Dir
	cmd.Env = mergeEnv(os.Environ(), e.command.Env)
	cmd.WaitDelay = waitDelay

	out := newTailBuffer(e.excerpt)
	cmd.Stdout = out
	cmd.Stderr = out

	start := time.Now()
	e.logger.InfoContext(ctx, "running stage command", "argv", argv, "target", targetPath)
	err := cmd.Run()
	elapsed := time.Since(start)

	if err != nil {
		if ctx.Err() != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
			err = fmt.Errorf("timed out after %s: %w", e.timeout, err)
		}
		e.logger.WarnContext(ctx, "stage command failed",
			"error", err,
			"duration", elapsed,
			"exit_code", exitCode(cmd),
		)
		return model.Failed(fmt.Errorf("%s: %w", e.stage, err), out.String())
	}

	e.logger.InfoContext(ctx, "stage command completed", "duration", elapsed)
	return model.Succeeded(out.String())
}

func exitCode(cmd *exec.Cmd) int {
	if cmd.ProcessState == nil {
		return -1
	}
	return cmd.ProcessState.ExitCode()
}

// mergeEnv appends extra to base in a stable order; later entries win in exec.
func mergeEnv(base []string, extra map[string]string) []string {
	if len(extra) == 0 {
		return base
	}
	keys := make([]string, 0, len(extra))
	for k := range extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]string, 0, len(base)+len(keys))
	out = append(out, base...)
	for _, k := range keys {
		out = append(out, k+"="+extra[k])
	}
	return out
}

func resolveLogger(l *slog.Logger) *slog.Logger {
	if l != nil {
		return l
	}
	return slog.Default()
}

// tailBuffer keeps the last limit bytes written to it.
type tailBuffer struct {
	mu        sync.Mutex
	limit     int
	buf       []byte
	truncated bool
}

func newTailBuffer(limit int) *tailBuffer {
	return &tailBuffer{limit: limit}
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.buf = append(t.buf, p...)
	if over := len(t.buf) - t.limit; over > 0 {
		t.buf = append(t.buf[:0], t.buf[over:]...)
		t.truncated = true
	}
	return len(p), nil
}

func (t *tailBuffer) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	s := strings.TrimSpace(string(t.buf))
	if t.truncated {
		return "..." + s
	}
	return s
}
