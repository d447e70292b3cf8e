package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/target/repodoc/config"
	"github.com/target/repodoc/internal/bootstrap"
	"github.com/target/repodoc/internal/domain/model"
	"github.com/target/repodoc/internal/util"
)

type options struct {
	Repository  string
	TargetDir   string
	Endpoint    string
	ReferenceID string
	Verbose     bool
}

func main() {
	opts, err := parseFlags(os.Args[1:], os.Stderr)
	if err != nil {
		os.Exit(2) //nolint:forbidigo // flag errors are already printed by the flag set
	}
	os.Exit(run(context.Background(), opts, os.Stdout)) //nolint:forbidigo // exit code reports job success
}

func parseFlags(args []string, out io.Writer) (options, error) {
	fs := flag.NewFlagSet("repodoc", flag.ContinueOnError)
	fs.SetOutput(out)
	var opts options
	fs.StringVar(&opts.Repository, "repo", "", "Process a single repository URL and exit instead of serving webhooks")
	fs.StringVar(&opts.TargetDir, "target-dir", "", "Directory to clone into (default: TARGET_DIR)")
	fs.StringVar(&opts.Endpoint, "archive-webhook", "", "Delivery endpoint for the archive package, used when ARCHIVE_WEBHOOK_URL is unset")
	fs.StringVar(&opts.ReferenceID, "reference-id", "", "Reference identifier forwarded with the delivery")
	fs.BoolVar(&opts.Verbose, "v", false, "Enable debug logging")
	if err := fs.Parse(args); err != nil {
		return options{}, err
	}
	return opts, nil
}

// run returns the process exit code: 0 on success, 1 on configuration, critical-stage or deletion failure.
func run(ctx context.Context, opts options, stdout io.Writer) int {
	cfg, err := bootstrap.LoadConfig()
	level := cfg.LogLevel
	if opts.Verbose {
		level = "debug"
	}
	logger := bootstrap.InitLogger(level)
	if err != nil {
		logger.ErrorContext(ctx, "configuration failure", "error", err)
		return 1
	}
	bootstrap.LogStartupInfo(logger, &cfg)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := bootstrap.BuildRuntime(ctx, bootstrap.RuntimeOptions{
		Config:            &cfg,
		Logger:            logger,
		RequireDefinition: true,
	})
	if err != nil {
		logger.ErrorContext(ctx, "configuration failure", "error", err)
		return 1
	}
	defer func() {
		if cerr := rt.Close(); cerr != nil {
			logger.Error("close runtime failed", "error", cerr)
		}
	}()

	if opts.Repository == "" {
		if err := bootstrap.RunServer(ctx, rt, nil); err != nil {
			logger.Error("server stopped with error", "error", err)
			return 1
		}
		return 0
	}

	res, err := bootstrap.RunOnce(ctx, rt, bootstrap.SingleRunRequest{
		Repository:  opts.Repository,
		TargetDir:   opts.TargetDir,
		Endpoint:    opts.Endpoint,
		ReferenceID: opts.ReferenceID,
	})
	if err != nil {
		logger.ErrorContext(ctx, "cannot process repository", "repository", opts.Repository, "error", err)
		return 1
	}
	if err := printSummary(stdout, &cfg, res); err != nil {
		logger.Warn("print summary failed", "error", err)
	}
	if !res.Success {
		return 1
	}
	return 0
}

func printSummary(w io.Writer, cfg *config.AppConfig, res model.Result) error {
	status := "SUCCESS"
	if !res.Success {
		status = "FAILED at " + string(res.FailedStage)
	}
	lines := []string{
		"",
		"Repository: " + res.Repository,
		"Job: " + res.JobID,
		"Status: " + status,
		"Started: " + res.StartedAt.Format("2006-01-02 15:04:05"),
		"Finished: " + res.EndedAt.Format("2006-01-02 15:04:05"),
		"Duration: " + util.FormatDuration(res.Duration()),
		"Archives: " + cfg.Pipeline.ArchiveRoot,
		"",
		"Stages:",
	}
	for _, l := range lines {
		if _, err := fmt.Fprintln(w, l); err != nil {
			return err
		}
	}
	for _, s := range model.Stages() {
		rec := res.Stages[s]
		if _, err := fmt.Fprintf(w, "  %-13s %s\n", s, rec.Status); err != nil {
			return err
		}
	}

	counts := res.Counts()
	statuses := make([]string, 0, len(counts))
	for st := range counts {
		statuses = append(statuses, string(st))
	}
	sort.Strings(statuses)
	for _, st := range statuses {
		if _, err := fmt.Fprintf(w, "%s: %d\n", st, counts[model.StageStatus(st)]); err != nil {
			return err
		}
	}
	return nil
}
