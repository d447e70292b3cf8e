package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/target/repodoc/config"
	"github.com/target/repodoc/internal/domain/model"
	"github.com/target/repodoc/internal/util"
)

type archiveOptions struct {
	Path       string
	Repository string
}

type deleteOptions struct {
	archiveOptions
	SkipArchive bool
	Yes         bool
}

type sendOptions struct {
	Repository  string
	Endpoint    string
	ReferenceID string
}

func parseArchiveFlags(name string, out io.Writer) (*flag.FlagSet, *archiveOptions) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(out)
	opts := &archiveOptions{}
	fs.StringVar(&opts.Path, "path", "", "Repository directory whose documentation folders are archived (required)")
	fs.StringVar(&opts.Repository, "repo", "", "Repository name used for the archive directory (default: base name of -path)")
	return fs, opts
}

func (o *archiveOptions) normalize() error {
	o.Path = strings.TrimSpace(o.Path)
	if o.Path == "" {
		return errors.New("-path is required")
	}
	abs, err := filepath.Abs(o.Path)
	if err != nil {
		return fmt.Errorf("resolve -path: %w", err)
	}
	o.Path = abs
	if o.Repository = strings.TrimSpace(o.Repository); o.Repository == "" {
		o.Repository = filepath.Base(abs)
	}
	return nil
}

func runArchive(cmdCtx *commandContext, args []string) error {
	fs, opts := parseArchiveFlags("archive", os.Stderr)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := opts.normalize(); err != nil {
		return err
	}

	rt, err := cmdCtx.runtime()
	if err != nil {
		return err
	}
	defer func() { _ = rt.Close() }()

	ctx, stop := signal.NotifyContext(cmdCtx.Ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	records, err := rt.Archiver.ArchiveAll(ctx, opts.Repository, opts.Path)
	if printErr := printArchiveRecords(cmdCtx.Stdout, rt.Archiver.ArchiveDir(opts.Repository), records); printErr != nil {
		return errors.Join(err, printErr)
	}
	return err
}

func runDelete(cmdCtx *commandContext, args []string) error {
	fs, archive := parseArchiveFlags("delete", os.Stderr)
	opts := deleteOptions{}
	fs.BoolVar(&opts.SkipArchive, "skip-archive", false, "Delete without archiving documentation first")
	fs.BoolVar(&opts.Yes, "yes", false, "Skip the confirmation prompt")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := archive.normalize(); err != nil {
		return err
	}
	opts.archiveOptions = *archive

	if !opts.Yes {
		if err := confirmAction(cmdCtx, fmt.Sprintf("About to forcefully delete %s.", opts.Path)); err != nil {
			return err
		}
	}

	rt, err := cmdCtx.runtime()
	if err != nil {
		return err
	}
	defer func() { _ = rt.Close() }()

	// Deletion is not interrupted once started.
	ctx := cmdCtx.Ctx

	if !opts.SkipArchive {
		records, archiveErr := rt.Archiver.ArchiveAll(ctx, opts.Repository, opts.Path)
		if err := printArchiveRecords(cmdCtx.Stdout, rt.Archiver.ArchiveDir(opts.Repository), records); err != nil {
			return err
		}
		if archiveErr != nil {
			return fmt.Errorf("archive before delete: %w", archiveErr)
		}
	}

	rep, err := rt.Deleter.DeleteWithReport(ctx, opts.Path)
	if writeErr := writef(cmdCtx.Stdout,
		"Deleted: %t\nKilled processes: %v\nFallbacks: %d\nBottom-up walk: %t\nDuration: %s\n",
		err == nil, rep.KilledPIDs, rep.Fallbacks, rep.BottomUp, util.FormatDuration(rep.Duration),
	); writeErr != nil {
		return errors.Join(err, writeErr)
	}
	return err
}

func runSend(cmdCtx *commandContext, args []string) error {
	fs := flag.NewFlagSet("send", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	opts := sendOptions{}
	fs.StringVar(&opts.Repository, "repo", "", "Repository name whose archive directory is sent (required)")
	fs.StringVar(&opts.Endpoint, "endpoint", cmdCtx.Config.Webhook.ArchiveEndpoint, "Delivery endpoint (default: ARCHIVE_WEBHOOK_URL)")
	fs.StringVar(&opts.ReferenceID, "reference-id", "", "Reference identifier forwarded to the endpoint")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if opts.Repository = strings.TrimSpace(opts.Repository); opts.Repository == "" {
		return errors.New("-repo is required")
	}
	if opts.Endpoint = strings.TrimSpace(opts.Endpoint); opts.Endpoint == "" {
		return errors.New("-endpoint or ARCHIVE_WEBHOOK_URL is required")
	}
	if err := config.ValidateEndpoint(opts.Endpoint); err != nil {
		return err
	}

	rt, err := cmdCtx.runtime()
	if err != nil {
		return err
	}
	defer func() { _ = rt.Close() }()

	ctx, stop := signal.NotifyContext(cmdCtx.Ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	dir := rt.Archiver.ArchiveDir(opts.Repository)
	if err := rt.Deliverer.Send(ctx, model.DeliveryRequest{
		Repository:  opts.Repository,
		ArchiveDir:  dir,
		Endpoint:    opts.Endpoint,
		ReferenceID: strings.TrimSpace(opts.ReferenceID),
	}); err != nil {
		return err
	}
	return writef(cmdCtx.Stdout, "Sent archives in %s\n", dir)
}

func printArchiveRecords(w io.Writer, dir string, records []model.ArchiveRecord) error {
	if len(records) == 0 {
		return writef(w, "No documentation folders archived into %s\n", dir)
	}
	if err := writef(w, "Archived into %s\n", dir); err != nil {
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	if _, err := fmt.Fprintln(tw, "FOLDER\tVERSION\tFILE"); err != nil {
		return err
	}
	for _, rec := range records {
		if _, err := fmt.Fprintf(tw, "%s\t%d\t%s\n", rec.Folder, rec.Version, filepath.Base(rec.Path)); err != nil {
			return err
		}
	}
	return tw.Flush()
}
