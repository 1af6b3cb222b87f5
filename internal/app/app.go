// Package app initializes and holds long-lived application services,
// acting as the dependency injection container for the CLI commands.
package app

import (
	"context"
	"fmt"

	gstorage "cloud.google.com/go/storage"
	"go.uber.org/zap"

	"github.com/hempwatch/harvester/internal/config"
	"github.com/hempwatch/harvester/internal/ledger"
	"github.com/hempwatch/harvester/internal/logging"
	"github.com/hempwatch/harvester/internal/notify"
	"github.com/hempwatch/harvester/internal/storage"
	"github.com/hempwatch/harvester/internal/storage/gcs"
	"github.com/hempwatch/harvester/internal/storage/local"
	"github.com/hempwatch/harvester/internal/storage/memory"
)

// App holds the shared services a command needs: configuration, logger,
// store, notifier, and ledger. Built once at startup, closed on exit.
type App struct {
	Cfg      config.Config
	Logger   *zap.Logger
	Store    storage.Store
	Notifier notify.Notifier
	Ledger   ledger.Ledger

	gcsClient    *gstorage.Client
	pubsubCloser interface{ Close() error }
}

// New loads configuration and constructs every collaborator, failing fast
// when a required backend is unreachable.
func New(ctx context.Context, cfgPath string) (*App, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}

	a := &App{
		Cfg:    cfg,
		Logger: logger,
	}

	if err := a.initStore(ctx); err != nil {
		return nil, err
	}
	if err := a.initNotifier(ctx); err != nil {
		return nil, err
	}
	if err := a.initLedger(ctx); err != nil {
		return nil, err
	}

	return a, nil
}

func (a *App) initStore(ctx context.Context) error {
	switch a.Cfg.Storage.Provider {
	case "gcs":
		client, err := gstorage.NewClient(ctx)
		if err != nil {
			return fmt.Errorf("create gcs client: %w", err)
		}
		store, err := gcs.New(ctx, client, gcs.Config{Bucket: a.Cfg.Storage.GCSBucket})
		if err != nil {
			_ = client.Close()
			return fmt.Errorf("init gcs store: %w", err)
		}
		a.gcsClient = client
		a.Store = store
		a.Logger.Info("using gcs store", zap.String("bucket", a.Cfg.Storage.GCSBucket))
	case "local":
		store, err := local.New(local.Config{BaseDir: a.Cfg.Storage.LocalDir})
		if err != nil {
			return fmt.Errorf("init local store: %w", err)
		}
		a.Store = store
		a.Logger.Info("using local store", zap.String("base_dir", a.Cfg.Storage.LocalDir))
	case "memory":
		a.Store = memory.New()
		a.Logger.Warn("using in-memory store; nothing will be durable")
	default:
		return fmt.Errorf("unknown storage provider: %s", a.Cfg.Storage.Provider)
	}
	return nil
}

func (a *App) initNotifier(ctx context.Context) error {
	switch a.Cfg.Notify.Provider {
	case "smtp":
		mailer, err := notify.NewMailer(notify.SMTPConfig{
			Host:     a.Cfg.Notify.SMTP.Host,
			Port:     a.Cfg.Notify.SMTP.Port,
			Username: a.Cfg.Notify.SMTP.Username,
			Password: a.Cfg.Notify.SMTP.Password,
			From:     a.Cfg.Notify.SMTP.From,
			To:       a.Cfg.Notify.SMTP.To,
		})
		if err != nil {
			return fmt.Errorf("init smtp notifier: %w", err)
		}
		a.Notifier = mailer
	case "pubsub":
		ps, err := notify.NewPubSub(ctx, notify.PubSubConfig{
			ProjectID: a.Cfg.Notify.PubSub.ProjectID,
			TopicID:   a.Cfg.Notify.PubSub.TopicID,
		})
		if err != nil {
			return fmt.Errorf("init pubsub notifier: %w", err)
		}
		a.Notifier = ps
		a.pubsubCloser = ps
	default:
		a.Notifier = notify.Noop{}
	}
	return nil
}

func (a *App) initLedger(ctx context.Context) error {
	if a.Cfg.Ledger.DSN == "" {
		a.Ledger = ledger.Noop{}
		return nil
	}
	pg, err := ledger.New(ctx, a.Cfg.Ledger.DSN)
	if err != nil {
		return fmt.Errorf("init run ledger: %w", err)
	}
	a.Ledger = pg
	a.Logger.Info("run ledger enabled")
	return nil
}

// Close shuts down every service the container owns and flushes the
// logger.
func (a *App) Close() {
	a.Ledger.Close()
	if a.pubsubCloser != nil {
		if err := a.pubsubCloser.Close(); err != nil {
			a.Logger.Warn("close pubsub notifier", zap.Error(err))
		}
	}
	if a.gcsClient != nil {
		if err := a.gcsClient.Close(); err != nil {
			a.Logger.Warn("close gcs client", zap.Error(err))
		}
	}
	_ = a.Logger.Sync()
}
