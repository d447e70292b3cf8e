package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"strings"

	"github.com/target/repodoc/config"
	"github.com/target/repodoc/internal/bootstrap"
	apperrors "github.com/target/repodoc/internal/errors"
)

type commandFn func(ctx *commandContext, args []string) error

type command struct {
	name        string
	description string
	run         commandFn
}

type commandContext struct {
	Ctx    context.Context
	Logger *slog.Logger
	Config config.AppConfig
	Stdout io.Writer
	Stdin  io.Reader
}

// runtime wires storage adapters without requiring a pipeline definition.
func (c *commandContext) runtime() (*bootstrap.Runtime, error) {
	return bootstrap.BuildRuntime(c.Ctx, bootstrap.RuntimeOptions{
		Config: &c.Config,
		Logger: c.Logger,
	})
}

func main() {
	if len(os.Args) < 2 {
		if err := printUsage(os.Stdout); err != nil {
			slog.Error("print usage failed", "error", err)
		}
		os.Exit(2) //nolint:forbidigo // CLI must exit with failure status when no command is provided
	}

	cmdName := os.Args[1]
	cmd, ok := commands()[cmdName]
	if !ok {
		if err := writef(os.Stderr, "unknown command %q\n\n", cmdName); err != nil {
			slog.Error("print unknown command message failed", "error", err)
		}
		if err := printUsage(os.Stdout); err != nil {
			slog.Error("print usage failed", "error", err)
		}
		os.Exit(2) //nolint:forbidigo // CLI must exit with failure status when command is unknown
	}

	cfg, err := bootstrap.LoadConfig()
	logger := bootstrap.InitLogger(cfg.LogLevel)
	if err != nil {
		logger.ErrorContext(context.Background(), "load config", "error", err)
		os.Exit(1) //nolint:forbidigo // CLI must signal configuration load failure to shell scripts
	}

	cmdCtx := &commandContext{
		Ctx:    context.Background(),
		Logger: logger,
		Config: cfg,
		Stdout: os.Stdout,
		Stdin:  os.Stdin,
	}
	if runErr := cmd.run(cmdCtx, os.Args[2:]); runErr != nil {
		code := apperrors.ExitCode(runErr)
		logger.ErrorContext(cmdCtx.Ctx, "command failed", "command", cmdName, "error", runErr, "exit_code", code)
		os.Exit(code) //nolint:forbidigo // CLI must propagate command execution failure to callers
	}
}

func commands() map[string]command {
	return map[string]command{
		"archive": {
			name:        "archive",
			description: "Archive a repository's documentation folders without deleting anything",
			run:         runArchive,
		},
		"delete": {
			name:        "delete",
			description: "Archive documentation, then forcefully delete a repository directory",
			run:         runDelete,
		},
		"send": {
			name:        "send",
			description: "Package a repository's archives and POST them to a delivery endpoint",
			run:         runSend,
		},
		"ledger": {
			name:        "ledger",
			description: "Print the archive version ledger of a repository",
			run:         runLedger,
		},
		"migrate": {
			name:        "migrate",
			description: "Run database migrations for the Postgres ledger",
			run:         runMigrations,
		},
	}
}

func printUsage(w io.Writer) error {
	if err := writef(w, "Usage: repodoc-admin <command> [flags]\n\n"); err != nil {
		return err
	}
	if err := writef(w, "Available commands:\n"); err != nil {
		return err
	}
	cmds := commands()
	names := make([]string, 0, len(cmds))
	for name := range cmds {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := writef(w, "  %-10s %s\n", name, cmds[name].description); err != nil {
			return err
		}
	}
	return nil
}

func confirmAction(cmdCtx *commandContext, prompt string) error {
	if err := writef(cmdCtx.Stdout, "%s\nContinue? [y/N]: ", prompt); err != nil {
		return fmt.Errorf("print confirmation prompt: %w", err)
	}
	reader := bufio.NewReader(cmdCtx.Stdin)
	resp, err := reader.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("read confirmation: %w", err)
	}
	resp = strings.ToLower(strings.TrimSpace(resp))
	if resp == "y" || resp == "yes" {
		return nil
	}
	return errors.New("aborted by user")
}

func writef(w io.Writer, format string, args ...any) error {
	_, err := fmt.Fprintf(w, format, args...)
	return err
}
