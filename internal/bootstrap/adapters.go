package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/target/repodoc/config"
	"github.com/target/repodoc/internal/adapters/deliverer"
	"github.com/target/repodoc/internal/adapters/forcedelete"
	"github.com/target/repodoc/internal/adapters/stagerunner"
	"github.com/target/repodoc/internal/core"
	"github.com/target/repodoc/internal/data"
	"github.com/target/repodoc/internal/domain/model"
	"github.com/target/repodoc/internal/domain/pipeline"
	"github.com/target/repodoc/internal/observability/statsd"
)

// AdapterDeps carries what adapter construction needs from configuration and infrastructure.
type AdapterDeps struct {
	Config  *config.AppConfig
	Conns   *Connections
	Metrics statsd.Sink
	Logger  *slog.Logger
}

// NewVersionLedger selects the ledger backend named by LEDGER_BACKEND.
//
//nolint:ireturn // backend is chosen at runtime.
func NewVersionLedger(deps AdapterDeps) (core.VersionLedger, error) {
	switch deps.Config.Ledger.Backend {
	case config.LedgerBackendPostgres:
		if deps.Conns == nil || deps.Conns.DB == nil {
			return nil, errors.New("postgres ledger requires a database connection")
		}
		return data.NewLedgerRepo(deps.Conns.DB, deps.Config.Pipeline.ArchiveRoot), nil
	case config.LedgerBackendFile, "":
		return data.NewFileLedger(data.FileLedgerOptions{
			Root:   deps.Config.Pipeline.ArchiveRoot,
			Logger: deps.Logger,
		}), nil
	default:
		return nil, fmt.Errorf("unsupported ledger backend %q", deps.Config.Ledger.Backend)
	}
}

// NewRepositoryLock selects the lock backend named by LOCK_BACKEND.
//
//nolint:ireturn // backend is chosen at runtime.
func NewRepositoryLock(deps AdapterDeps) (core.RepositoryLock, error) {
	lockCfg := deps.Config.Lock
	switch lockCfg.Backend {
	case config.LockBackendRedis:
		if deps.Conns == nil || deps.Conns.Redis == nil {
			return nil, errors.New("redis lock requires a redis connection")
		}
		return data.NewRedisLockRepo(deps.Conns.Redis, data.RedisLockOptions{
			KeyPrefix: lockCfg.KeyPrefix,
			TTL:       lockCfg.TTL,
		}), nil
	case config.LockBackendDir:
		return data.NewDirLock(data.DirLockOptions{
			Root: deps.Config.Pipeline.ArchiveRoot,
			TTL:  lockCfg.TTL,
		}), nil
	case config.LockBackendNone, "":
		return data.NoopLock{}, nil
	default:
		return nil, fmt.Errorf("unsupported lock backend %q", lockCfg.Backend)
	}
}

// NewArchiveMirror returns nil when mirroring is disabled.
//
//nolint:ireturn // nil interface signals a disabled mirror.
func NewArchiveMirror(deps AdapterDeps) (core.ArchiveMirror, error) {
	m := deps.Config.Mirror
	if !m.Enabled {
		return nil, nil
	}
	client, err := data.NewMinioClient(data.MinioClientConfig{
		Endpoint:  m.Endpoint,
		AccessKey: m.AccessKey,
		SecretKey: m.SecretKey,
		Region:    m.Region,
		UseSSL:    m.UseSSL,
	})
	if err != nil {
		return nil, err
	}
	mirror, err := data.NewObjectMirror(data.ObjectMirrorOptions{
		Store:  client,
		Bucket: m.Bucket,
		Region: m.Region,
		Prefix: m.Prefix,
		Logger: deps.Logger,
	})
	if err != nil {
		return nil, err
	}
	return mirror, nil
}

// NewDeliverer builds the HTTP archive deliverer.
func NewDeliverer(deps AdapterDeps) *deliverer.Deliverer {
	return deliverer.New(deliverer.Options{
		HTTPClient: &http.Client{},
		Timeout:    deps.Config.Pipeline.DeliveryTimeout,
		Logger:     deps.Logger,
	})
}

// NewTreeDeleter builds the forceful deleter backed by the host process table.
func NewTreeDeleter(deps AdapterDeps) *forcedelete.Deleter {
	return forcedelete.New(forcedelete.Options{
		Processes:   forcedelete.SystemProcesses(),
		VCSNames:    deps.Config.Pipeline.VCSProcessNames,
		GracePeriod: deps.Config.Pipeline.DeleteGracePeriod,
		Logger:      deps.Logger,
		Metrics:     deps.Metrics,
	})
}

// LoadPipelineDefinition reads PIPELINE_FILE and checks every critical external stage has a command.
func LoadPipelineDefinition(cfg config.PipelineConfig) (pipeline.Definition, error) {
	if cfg.DefinitionFile == "" {
		return pipeline.Definition{}, fmt.Errorf("%w: PIPELINE_FILE is not set", pipeline.ErrMissingCommand)
	}
	def, err := pipeline.LoadDefinitionFile(cfg.DefinitionFile)
	if err != nil {
		return pipeline.Definition{}, err
	}
	if err := def.Validate(); err != nil {
		return pipeline.Definition{}, err
	}
	return def, nil
}

// NewExternalExecutors binds CLONE and the documentation stages to executors.
// CLONE uses the built-in git clone unless the definition overrides it. DOC_API
// is optional; without a command it fails and is downgraded to skipped.
func NewExternalExecutors(def pipeline.Definition, cfg config.PipelineConfig, logger *slog.Logger) (map[model.Stage]core.StageExecutor, error) {
	executors := make(map[model.Stage]core.StageExecutor, 5)

	if cmd, ok := def.Command(model.StageClone); ok {
		exec, err := newCommandExecutor(model.StageClone, cmd, cfg, logger)
		if err != nil {
			return nil, err
		}
		executors[model.StageClone] = exec
	} else {
		executors[model.StageClone] = stagerunner.NewGitCloneExecutor(stagerunner.CloneOptions{
			GitBinary:    cfg.GitBinary,
			Token:        cfg.GitHubToken,
			Timeout:      cfg.StageTimeout,
			ExcerptBytes: cfg.OutputExcerptBytes,
			Logger:       logger,
		})
	}

	for _, s := range []model.Stage{model.StageClassify, model.StageDocProject, model.StageDocUAT, model.StageDocAPI} {
		cmd, ok := def.Command(s)
		if !ok {
			executors[s] = missingCommand(s)
			continue
		}
		exec, err := newCommandExecutor(s, cmd, cfg, logger)
		if err != nil {
			return nil, err
		}
		executors[s] = exec
	}
	return executors, nil
}

func newCommandExecutor(s model.Stage, cmd pipeline.StageCommand, cfg config.PipelineConfig, logger *slog.Logger) (*stagerunner.CommandExecutor, error) {
	exec, err := stagerunner.NewCommandExecutor(stagerunner.CommandOptions{
		Stage:          s,
		Command:        cmd,
		ExcerptBytes:   cfg.OutputExcerptBytes,
		DefaultTimeout: cfg.StageTimeout,
		Logger:         logger,
	})
	if err != nil {
		return nil, fmt.Errorf("stage %s: %w", s, err)
	}
	return exec, nil
}

func missingCommand(s model.Stage) core.StageExecutorFunc {
	return func(context.Context, string, []string) model.StageOutcome {
		return model.Failed(fmt.Errorf("no command configured for %s", s), "")
	}
}
