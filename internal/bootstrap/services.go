package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/target/repodoc/config"
	"github.com/target/repodoc/internal/adapters/forcedelete"
	"github.com/target/repodoc/internal/adapters/worker"
	"github.com/target/repodoc/internal/core"
	"github.com/target/repodoc/internal/domain/model"
	"github.com/target/repodoc/internal/observability/notify/slack"
	"github.com/target/repodoc/internal/observability/statsd"
	"github.com/target/repodoc/internal/service"
	"github.com/target/repodoc/internal/service/failurenotifier"
)

// ObservabilityContainer holds the metrics sink and failure notifier shared by every component.
type ObservabilityContainer struct {
	// MetricsSink is nil when metrics are disabled.
	MetricsSink     statsd.Sink
	metricsClient   *statsd.Client
	FailureNotifier *failurenotifier.Service
}

// Close flushes the StatsD client if one was created.
func (o ObservabilityContainer) Close() error {
	if o.metricsClient == nil {
		return nil
	}
	return o.metricsClient.Close()
}

// buildObservability configures metrics and notification adapters.
func buildObservability(logger *slog.Logger, cfg config.ObservabilityConfig) ObservabilityContainer {
	obsLogger := logger
	if obsLogger == nil {
		obsLogger = slog.Default()
	}

	var out ObservabilityContainer
	if cfg.Metrics.IsEnabled() {
		client, err := statsd.NewClient(statsd.Config{
			Enabled:    true,
			Address:    cfg.Metrics.StatsdAddress,
			Prefix:     cfg.Metrics.Prefix,
			GlobalTags: cfg.Metrics.Tags,
			Logger:     obsLogger,
		})
		if err != nil {
			obsLogger.Error("failed to initialise statsd client", "error", err)
		} else {
			out.metricsClient = client
			out.MetricsSink = client
		}
	}

	out.FailureNotifier = buildFailureNotifier(obsLogger, cfg.Notifications)
	return out
}

func buildFailureNotifier(logger *slog.Logger, cfg config.ObservabilityNotificationsConfig) *failurenotifier.Service {
	baseLogger := logger
	if baseLogger == nil {
		baseLogger = slog.Default()
	}

	if !cfg.Enabled {
		return failurenotifier.NewService(failurenotifier.Options{
			Logger: baseLogger.With("component", "failure_notifier"),
		})
	}

	sinks := make([]failurenotifier.SinkRegistration, 0, 1)
	if cfg.Slack.Enabled {
		client, err := slack.NewClient(slack.Config{
			WebhookURL: cfg.Slack.WebhookURL,
			Channel:    cfg.Slack.Channel,
			Username:   cfg.Slack.Username,
			Timeout:    cfg.Timeout,
			RetryLimit: cfg.RetryLimit,
		})
		if err != nil {
			baseLogger.Error("failed to initialise slack notifier", "error", err)
		} else {
			sinks = append(sinks, failurenotifier.SinkRegistration{
				Name: "slack",
				Sink: client,
			})
		}
	}

	return failurenotifier.NewService(failurenotifier.Options{
		Logger: baseLogger.With("component", "failure_notifier"),
		Sinks:  sinks,
		// Room for every Slack attempt.
		Timeout:  cfg.Timeout * time.Duration(cfg.RetryLimit+1),
		Cooldown: cfg.Cooldown,
	})
}

// Runtime is the fully wired pipeline: storage adapters, stage executors, processor and queue.
type Runtime struct {
	Config        *config.AppConfig
	Logger        *slog.Logger
	Conns         *Connections
	Observability ObservabilityContainer

	Ledger    core.VersionLedger
	Archiver  *service.Archiver
	Deleter   *forcedelete.Deleter
	Deliverer core.ArchiveDeliverer
	Processor *service.RepositoryProcessor
	Queue     *service.JobQueue
	// RefExpression reads reference tokens from webhook bodies. Nil when unset.
	RefExpression *service.ReferenceExpression
}

// RuntimeOptions configures BuildRuntime.
type RuntimeOptions struct {
	Config *config.AppConfig
	Logger *slog.Logger
	// Conns overrides OpenConnections. Optional.
	Conns *Connections
	// RequireDefinition makes a missing or incomplete PIPELINE_FILE a configuration failure.
	// The admin commands that never run external stages leave it false.
	RequireDefinition bool
}

// BuildRuntime wires every component from configuration. Any error here is a
// configuration failure and no stage has run.
func BuildRuntime(ctx context.Context, opts RuntimeOptions) (*Runtime, error) {
	if opts.Config == nil {
		return nil, errors.New("config is required")
	}
	cfg := opts.Config
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	conns := opts.Conns
	if conns == nil {
		var err error
		if conns, err = OpenConnections(ctx, cfg, logger); err != nil {
			return nil, err
		}
	}

	rt := &Runtime{
		Config:        cfg,
		Logger:        logger,
		Conns:         conns,
		Observability: buildObservability(logger, cfg.Observability),
	}
	if err := rt.wire(opts.RequireDefinition); err != nil {
		return nil, errors.Join(err, rt.Close())
	}
	return rt, nil
}

func (rt *Runtime) wire(requireDefinition bool) error {
	deps := AdapterDeps{
		Config:  rt.Config,
		Conns:   rt.Conns,
		Metrics: rt.Observability.MetricsSink,
		Logger:  rt.Logger,
	}

	ledger, err := NewVersionLedger(deps)
	if err != nil {
		return err
	}
	lock, err := NewRepositoryLock(deps)
	if err != nil {
		return err
	}
	mirror, err := NewArchiveMirror(deps)
	if err != nil {
		return fmt.Errorf("archive mirror: %w", err)
	}
	archiver, err := service.NewArchiver(service.ArchiverOptions{
		Root:    rt.Config.Pipeline.ArchiveRoot,
		Ledger:  ledger,
		Folders: rt.Config.Pipeline.DocFolders,
		Lock:    lock,
		Mirror:  mirror,
		Logger:  rt.Logger,
	})
	if err != nil {
		return err
	}
	rt.Ledger = ledger
	rt.Archiver = archiver
	rt.Deleter = NewTreeDeleter(deps)
	rt.Deliverer = NewDeliverer(deps)

	if !requireDefinition {
		return nil
	}
	processor, err := rt.newProcessor()
	if err != nil {
		return err
	}
	rt.Processor = processor
	rt.Queue = service.NewJobQueue(service.JobQueueOptions{Logger: rt.Logger})
	if rt.RefExpression, err = service.NewReferenceExpression(rt.Config.Webhook.RefExpression); err != nil {
		return fmt.Errorf("WEBHOOK_REF_EXPRESSION: %w", err)
	}
	return nil
}

func (rt *Runtime) newProcessor() (*service.RepositoryProcessor, error) {
	def, err := LoadPipelineDefinition(rt.Config.Pipeline)
	if err != nil {
		return nil, err
	}
	executors, err := NewExternalExecutors(def, rt.Config.Pipeline, rt.Logger)
	if err != nil {
		return nil, err
	}

	archiveSend, err := service.NewArchiveSendExecutor(service.ArchiveSendExecutorOptions{
		Archiver:  rt.Archiver,
		Deliverer: rt.Deliverer,
		Logger:    rt.Logger,
	})
	if err != nil {
		return nil, err
	}
	deleteExec, err := service.NewDeleteExecutor(rt.Deleter)
	if err != nil {
		return nil, err
	}
	executors[model.StageArchiveSend] = archiveSend
	executors[model.StageDelete] = deleteExec

	opts := service.RepositoryProcessorOptions{
		Executors:       executors,
		Logger:          rt.Logger,
		Metrics:         rt.Observability.MetricsSink,
		FailureNotifier: rt.Observability.FailureNotifier,
	}
	if rt.Config.Pipeline.ArchiveWithoutDelivery {
		opts.LocalArchiver = rt.Archiver
	}
	return service.NewRepositoryProcessor(opts)
}

// NewWorker builds the single background worker draining the runtime's queue.
func (rt *Runtime) NewWorker(onResult func(model.Result)) (*worker.Worker, error) {
	if rt.Processor == nil || rt.Queue == nil {
		return nil, errors.New("runtime was built without a pipeline definition")
	}
	return worker.New(worker.Options{
		Queue:     rt.Queue,
		Processor: rt.Processor,
		Logger:    rt.Logger,
		Metrics:   rt.Observability.MetricsSink,
		OnResult:  onResult,
	})
}

// Close releases connections and flushes metrics.
func (rt *Runtime) Close() error {
	if rt == nil {
		return nil
	}
	return errors.Join(rt.Conns.Close(), rt.Observability.Close())
}

// SingleRunRequest describes one repository processed outside the server.
type SingleRunRequest struct {
	// Repository is a github.com repository URL, optionally carrying a reference token.
	Repository string
	TargetDir  string
	// Endpoint is used only when ARCHIVE_WEBHOOK_URL is unset.
	Endpoint    string
	ReferenceID string
}

// deliveryEndpoint applies the same precedence as webhook ingress: configuration wins.
func deliveryEndpoint(configured, requested string) string {
	if configured != "" {
		return configured
	}
	return requested
}

// RunOnce processes one repository synchronously and returns its result.
// Errors are configuration or input failures raised before any stage runs.
func RunOnce(ctx context.Context, rt *Runtime, req SingleRunRequest) (model.Result, error) {
	if rt == nil || rt.Processor == nil {
		return model.Result{}, errors.New("runtime was built without a pipeline definition")
	}
	loc, err := service.ParseLocator(req.Repository, req.ReferenceID)
	if err != nil {
		return model.Result{}, err
	}
	targetDir := req.TargetDir
	if targetDir == "" {
		targetDir = rt.Config.Pipeline.TargetDir
	}
	endpoint := deliveryEndpoint(rt.Config.Webhook.ArchiveEndpoint, req.Endpoint)
	if req.Endpoint != "" && endpoint != req.Endpoint {
		rt.Logger.WarnContext(ctx, "ignoring requested endpoint; ARCHIVE_WEBHOOK_URL is configured")
	}
	if endpoint != "" {
		if err := config.ValidateEndpoint(endpoint); err != nil {
			return model.Result{}, err
		}
	}

	job, err := model.NewJob(model.NewJobRequest{
		SourceURL:   loc.SourceURL,
		RepoName:    loc.Repo,
		TargetDir:   targetDir,
		Endpoint:    endpoint,
		ReferenceID: loc.ReferenceID,
	}, time.Now())
	if err != nil {
		return model.Result{}, err
	}
	rt.Logger.InfoContext(ctx, "processing repository",
		"job_id", job.ID,
		"repository", job.RepoName,
		"target", job.RepoPath(),
		"delivery", job.HasEndpoint(),
	)
	return rt.Processor.Process(context.WithoutCancel(ctx), job), nil
}
