package internal

import (
	"context"
	"crypto/tls"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/DukeRupert/hacbridge/internal/audit"
	"github.com/DukeRupert/hacbridge/internal/backend"
	"github.com/DukeRupert/hacbridge/internal/metrics"
	"github.com/DukeRupert/hacbridge/internal/storage"
	"github.com/DukeRupert/hacbridge/internal/tools"
	"github.com/DukeRupert/hacbridge/internal/worker"
)

// Bridge holds the components shared by the server and the CLI.
type Bridge struct {
	DB       *sql.DB // nil when DATABASE_URL is unset
	Audit    *audit.PostgresRecorder
	Auth     *backend.Authenticator
	Console  *backend.Console
	ReadAPI  *backend.ReadAPI
	Storage  storage.Storage // nil when STORAGE_PROVIDER is "none"
	Local    *storage.LocalStorage
	Recorder audit.Recorder
	Registry *tools.Registry
}

// NewBridge connects the database (when configured), builds the backend
// clients and storage, and registers the tool catalog.
func NewBridge(ctx context.Context, cfg *Config, logger *slog.Logger) (*Bridge, error) {
	b := &Bridge{Recorder: audit.NopRecorder{}}

	if cfg.DatabaseUrl != "" {
		db, err := sql.Open("pgx", cfg.DatabaseUrl)
		if err != nil {
			return nil, fmt.Errorf("database connection failed: %w", err)
		}
		if err := db.PingContext(ctx); err != nil {
			db.Close()
			return nil, fmt.Errorf("database ping failed: %w", err)
		}
		if err := RunMigrations(ctx, db, logger); err != nil {
			db.Close()
			return nil, fmt.Errorf("migration failed: %w", err)
		}
		b.DB = db
		b.Audit = audit.NewPostgresRecorder(db)
		b.Recorder = b.Audit
		logger.Info("Database ready")
	} else {
		logger.Warn("DATABASE_URL not set, invocation audit log disabled")
	}

	backendCfg := backend.Config{
		BaseURL:        cfg.HACURL,
		ConsolePath:    cfg.HACPath,
		Username:       cfg.HACUsername,
		Password:       cfg.HACPassword,
		ReadAPIURL:     cfg.OCCURL,
		ReadUsername:   cfg.OCCUsername,
		ReadPassword:   cfg.OCCPassword,
		RequestTimeout: cfg.RequestTimeout,
		Transport:      newTransport(cfg.InsecureSkipVerify),
		Observer:       metrics.Observer{},
		Logger:         logger.With("component", "backend"),
	}

	auth, err := backend.NewAuthenticator(backendCfg)
	if err != nil {
		b.Close()
		return nil, fmt.Errorf("backend configuration: %w", err)
	}
	b.Auth = auth
	b.Console = backend.NewConsole(auth)

	if b.ReadAPI, err = backend.NewReadAPI(backendCfg); err != nil {
		b.Close()
		return nil, fmt.Errorf("read API configuration: %w", err)
	}

	if err := b.initStorage(cfg, logger); err != nil {
		b.Close()
		return nil, err
	}

	if err := b.initRegistry(cfg, logger); err != nil {
		b.Close()
		return nil, err
	}

	return b, nil
}

func (b *Bridge) initStorage(cfg *Config, logger *slog.Logger) error {
	switch cfg.StorageProvider {
	case storage.ProviderR2:
		r2, err := storage.NewR2Storage(storage.R2Config{
			AccountID:       cfg.R2AccountID,
			AccessKeyID:     cfg.R2AccessKeyID,
			SecretAccessKey: cfg.R2SecretAccessKey,
			BucketName:      cfg.R2BucketName,
			PublicURL:       cfg.R2PublicURL,
			Endpoint:        cfg.R2Endpoint,
		}, logger)
		if err != nil {
			return fmt.Errorf("storage initialization failed: %w", err)
		}
		b.Storage = r2
	case storage.ProviderLocal:
		local, err := storage.NewLocalStorage(storage.LocalConfig{
			BasePath: cfg.LocalStoragePath,
			BaseURL:  cfg.LocalStorageURL,
		}, logger)
		if err != nil {
			return fmt.Errorf("storage initialization failed: %w", err)
		}
		b.Storage = local
		b.Local = local
	default:
		logger.Warn("artifact storage disabled, export_impex will be unavailable")
	}
	return nil
}

func (b *Bridge) initRegistry(cfg *Config, logger *slog.Logger) error {
	b.Registry = tools.NewRegistry(logger, b.Recorder)
	if err := b.Registry.Register(tools.Builtin(b.Console, b.ReadAPI, b.Storage, cfg.OCCBaseSite)...); err != nil {
		return err
	}

	if cfg.ToolsFile != "" {
		queries, err := tools.LoadSavedQueries(cfg.ToolsFile)
		if err != nil {
			return err
		}
		for _, q := range queries {
			if err := b.Registry.Register(tools.NewSavedSearch(b.Console, q)); err != nil {
				return fmt.Errorf("saved query %q: %w", q.Name, err)
			}
		}
		logger.Info("Saved queries loaded", "count", len(queries), "file", cfg.ToolsFile)
	}

	if err := b.Registry.Restrict(cfg.ToolsEnabled); err != nil {
		return fmt.Errorf("TOOLS_ENABLED: %w", err)
	}
	logger.Info("Tools registered", "count", len(b.Registry.List()))
	return nil
}

// NewWorker returns the background worker with the tasks the configuration
// enables. It has no tasks when the audit log is disabled.
func (b *Bridge) NewWorker(cfg *Config, logger *slog.Logger) (*worker.Worker, error) {
	w, err := worker.New(worker.DefaultConfig(), logger.With("component", "worker"))
	if err != nil {
		return nil, err
	}

	if b.Audit != nil && cfg.AuditRetention > 0 {
		task, err := audit.NewRetentionTask(b.Audit, cfg.AuditRetention, time.Hour, logger)
		if err != nil {
			return nil, err
		}
		if err := w.Register(task); err != nil {
			return nil, err
		}
	}
	return w, nil
}

// Close releases the database connection.
func (b *Bridge) Close() error {
	if b.DB != nil {
		return b.DB.Close()
	}
	return nil
}

func newTransport(insecure bool) http.RoundTripper {
	if !insecure {
		return http.DefaultTransport
	}
	t := http.DefaultTransport.(*http.Transport).Clone()
	t.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // local backends use self-signed certificates
	return t
}
