package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/target/repodoc/config"
	"github.com/target/repodoc/internal/bootstrap"
)

const defaultMigrationTimeout = 5 * time.Minute

type ledgerOptions struct {
	Repository string
	JSON       bool
}

type migrateOptions struct {
	Timeout time.Duration
}

func runLedger(cmdCtx *commandContext, args []string) error {
	fs := flag.NewFlagSet("ledger", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	opts := ledgerOptions{}
	fs.StringVar(&opts.Repository, "repo", "", "Repository name (required)")
	fs.BoolVar(&opts.JSON, "json", false, "Print the ledger as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if opts.Repository = strings.TrimSpace(opts.Repository); opts.Repository == "" {
		return errors.New("-repo is required")
	}

	rt, err := cmdCtx.runtime()
	if err != nil {
		return err
	}
	defer func() { _ = rt.Close() }()

	versions, err := rt.Ledger.Versions(cmdCtx.Ctx, opts.Repository)
	if err != nil {
		return fmt.Errorf("read ledger: %w", err)
	}

	if opts.JSON {
		enc := json.NewEncoder(cmdCtx.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(versions)
	}

	if len(versions) == 0 {
		return writef(cmdCtx.Stdout, "No archive versions recorded for %s (backend: %s)\n", opts.Repository, cmdCtx.Config.Ledger.Backend)
	}
	folders := make([]string, 0, len(versions))
	for folder := range versions {
		folders = append(folders, folder)
	}
	sort.Strings(folders)

	tw := tabwriter.NewWriter(cmdCtx.Stdout, 0, 4, 2, ' ', 0)
	if _, err := fmt.Fprintln(tw, "FOLDER\tLAST VERSION"); err != nil {
		return err
	}
	for _, folder := range folders {
		if _, err := fmt.Fprintf(tw, "%s\t%d\n", folder, versions[folder]); err != nil {
			return err
		}
	}
	return tw.Flush()
}

func runMigrations(cmdCtx *commandContext, args []string) error {
	opts, err := parseMigrateFlags(args)
	if err != nil {
		return err
	}
	if cmdCtx.Config.Ledger.Backend != config.LedgerBackendPostgres {
		cmdCtx.Logger.Warn("LEDGER_BACKEND is not postgres; migrations only affect the Postgres ledger",
			"backend", cmdCtx.Config.Ledger.Backend)
	}

	ctx, stop := signal.NotifyContext(cmdCtx.Ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	ctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	db, err := bootstrap.ConnectDB(ctx, bootstrap.DatabaseConfig{
		DBConfig: cmdCtx.Config.Postgres,
		Logger:   cmdCtx.Logger,
	})
	if err != nil {
		return fmt.Errorf("connect db: %w", err)
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			cmdCtx.Logger.Warn("db close failed", "error", closeErr)
		}
	}()

	cmdCtx.Logger.Info("running database migrations")
	if migrateErr := bootstrap.RunMigrations(ctx, db, cmdCtx.Logger); migrateErr != nil {
		return migrateErr
	}
	cmdCtx.Logger.Info("migrations completed successfully")
	return nil
}

func parseMigrateFlags(args []string) (migrateOptions, error) {
	fs := flag.NewFlagSet("migrate", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	opts := migrateOptions{}
	fs.DurationVar(
		&opts.Timeout,
		"timeout",
		defaultMigrationTimeout,
		"Maximum duration to wait for migrations to complete",
	)

	if err := fs.Parse(args); err != nil {
		return migrateOptions{}, err
	}
	if opts.Timeout <= 0 {
		return migrateOptions{}, errors.New("--timeout must be greater than zero")
	}
	return opts, nil
}
