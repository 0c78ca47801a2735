// Package app assembles the engine from configuration.
package app

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/nhle/tempvortex/internal/credential"
	"github.com/nhle/tempvortex/internal/event"
	"github.com/nhle/tempvortex/internal/model"
	"github.com/nhle/tempvortex/internal/monitoring"
	"github.com/nhle/tempvortex/internal/provider"
	"github.com/nhle/tempvortex/internal/session"
	"github.com/nhle/tempvortex/internal/store"
	"github.com/nhle/tempvortex/internal/sync"
)

// App holds the wired engine components.
type App struct {
	Config   *model.AppConfig
	Logger   *zap.Logger
	Metrics  *monitoring.Metrics
	Bus      *event.Bus
	Registry *provider.Registry
	Store    store.Store
	Sync     *sync.Synchronizer
	Session  *session.Manager
}

// New wires every component. Metrics are registered on reg.
func New(ctx context.Context, cfg *model.AppConfig, log *zap.Logger, reg prometheus.Registerer) (*App, error) {
	registry, err := NewRegistry(cfg.Providers, log)
	if err != nil {
		return nil, fmt.Errorf("building provider registry: %w", err)
	}

	st, err := OpenStore(ctx, cfg.Store, log)
	if err != nil {
		return nil, err
	}

	return Assemble(cfg, log, reg, registry, st), nil
}

// Assemble wires the engine around an existing registry and store.
func Assemble(
	cfg *model.AppConfig,
	log *zap.Logger,
	reg prometheus.Registerer,
	registry *provider.Registry,
	st store.Store,
) *App {
	metrics := monitoring.NewMetrics(reg)
	bus := event.NewBus()

	syncer := sync.New(registry, bus,
		sync.WithInterval(time.Duration(cfg.Sync.PollIntervalSec)*time.Second),
		sync.WithFetchTimeout(time.Duration(cfg.Sync.FetchTimeoutSec)*time.Second),
		sync.WithLogger(log.Named("sync")),
		sync.WithMetrics(metrics),
	)

	mgr := session.NewManager(registry,
		session.WithStore(st),
		session.WithBus(bus),
		session.WithLogger(log.Named("session")),
		session.WithMetrics(metrics),
		session.WithDefaultProvider(model.ProviderID(cfg.Session.DefaultProvider)),
		session.WithListener(syncer.Reset),
	)

	return &App{
		Config:   cfg,
		Logger:   log,
		Metrics:  metrics,
		Bus:      bus,
		Registry: registry,
		Store:    st,
		Sync:     syncer,
		Session:  mgr,
	}
}

// Start restores the session from entry or the store and, when nothing
// was found and auto_create is set, provisions a mailbox on the
// default provider. A failed auto-create is logged and leaves the
// engine in NoSession.
func (a *App) Start(ctx context.Context, entry *url.URL) (session.Source, error) {
	src, err := a.Session.Initialize(ctx, entry)
	if err != nil {
		return src, fmt.Errorf("initializing session: %w", err)
	}

	if src == session.NoSession && a.Config.Session.AutoCreate {
		if _, err := a.Session.CreateAccount(ctx, a.Session.Provider(), ""); err != nil {
			a.Logger.Warn("automatic mailbox creation failed", zap.Error(err))
		}
	}

	a.Logger.Info("engine started", zap.Stringer("session", src))
	return src, nil
}

// Close stops polling and releases the store.
func (a *App) Close() error {
	a.Sync.Stop()
	a.Bus.Close()
	if err := a.Store.Close(); err != nil {
		return fmt.Errorf("closing store: %w", err)
	}
	return nil
}

// OpenStore opens the configured session backend.
func OpenStore(ctx context.Context, cfg model.StoreConfig, log *zap.Logger) (store.Store, error) {
	switch cfg.Backend {
	case "redis":
		st, err := store.NewRedisStore(ctx, cfg.RedisAddr, cfg.RedisDB)
		if err != nil {
			return nil, fmt.Errorf("opening redis store: %w", err)
		}
		return st, nil
	default:
		if dir := filepath.Dir(cfg.SQLitePath); dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("creating store directory %s: %w", dir, err)
			}
		}

		var opts []store.SQLiteOption
		if cfg.UseKeyring {
			vault, err := credential.Open(cfg.KeyringDir)
			if err != nil {
				log.Warn("keyring unavailable, tokens stay in the database", zap.Error(err))
			} else {
				opts = append(opts, store.WithSecrets(vault))
			}
		}

		st, err := store.NewSQLiteStore(cfg.SQLitePath, opts...)
		if err != nil {
			return nil, fmt.Errorf("opening sqlite store %s: %w", cfg.SQLitePath, err)
		}
		return st, nil
	}
}
