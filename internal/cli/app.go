// Package cli wires configuration into engines and drives the operator commands.
package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"github.com/aretw0/playbook"
	"github.com/aretw0/playbook/internal/config"
	"github.com/aretw0/playbook/internal/logging"
	playbookhttp "github.com/aretw0/playbook/pkg/adapters/http"
	"github.com/aretw0/playbook/pkg/adapters/file"
	"github.com/aretw0/playbook/pkg/adapters/memory"
	"github.com/aretw0/playbook/pkg/adapters/redis"
	"github.com/aretw0/playbook/pkg/adapters/remote"
	"github.com/aretw0/playbook/pkg/adapters/sqlite"
	"github.com/aretw0/playbook/pkg/domain"
	"github.com/aretw0/playbook/pkg/observability"
	"github.com/aretw0/playbook/pkg/persistence/middleware"
	"github.com/aretw0/playbook/pkg/ports"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// App is a fully wired engine plus the resources it owns.
type App struct {
	Config   *config.Config
	Logger   *slog.Logger
	Engine   *playbook.Engine
	Store    ports.ProgressStore
	Registry *prometheus.Registry
	Streams  *playbookhttp.StreamManager

	closers []func() error
}

// NewApp builds the authority, the store stack and the engine described by cfg.
func NewApp(cfg *config.Config) (*App, error) {
	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, err
	}
	app := &App{
		Config:  cfg,
		Logger:  logging.NewWithWriter(stderr, level, cfg.Log.JSON),
		Streams: playbookhttp.NewStreamManager(),
	}

	authority, err := app.authority()
	if err != nil {
		return nil, err
	}

	base, locker, err := app.store()
	if err != nil {
		_ = app.Close()
		return nil, err
	}
	app.Store, err = app.wrapStore(base)
	if err != nil {
		_ = app.Close()
		return nil, err
	}

	opts := []playbook.Option{
		playbook.WithLogger(app.Logger),
		playbook.WithTimeout(cfg.Remote.Timeout),
		playbook.WithObserver(app.Streams.Observe),
		playbook.WithLifecycleHooks(observability.TracingHooks()),
	}
	if locker != nil {
		opts = append(opts, playbook.WithLocker(locker))
	}
	if cfg.Log.Level == "debug" {
		opts = append(opts, playbook.WithLifecycleHooks(debugHooks(app.Logger)))
	}
	if cfg.Metrics.Enabled {
		app.Registry = prometheus.NewRegistry()
		app.Registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		opts = append(opts, playbook.WithLifecycleHooks(observability.NewMetrics(app.Registry).Hooks()))
	}

	traced := observability.NewTracedAuthority(authority, nil)
	app.Engine = playbook.New(traced, app.Store, opts...)
	return app, nil
}

// Gatherer returns the metrics registry, or nil when metrics are disabled.
func (a *App) Gatherer() prometheus.Gatherer {
	if a.Registry == nil {
		return nil
	}
	return a.Registry
}

// Close releases store connections.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	a.closers = nil
	return errors.Join(errs...)
}

func (a *App) authority() (ports.Authority, error) {
	if a.Config.Remote.Fixture != "" {
		auth, err := memory.LoadFixture(a.Config.Remote.Fixture)
		if err != nil {
			return nil, err
		}
		a.Logger.Info("serving workflows from fixture", "path", a.Config.Remote.Fixture)
		return auth, nil
	}
	return remote.New(a.Config.Remote.BaseURL, remote.WithLogger(a.Logger)), nil
}

func (a *App) store() (ports.ProgressStore, ports.DistributedLocker, error) {
	cfg := a.Config
	switch cfg.Store.Backend {
	case config.BackendMemory:
		return memory.NewStore(), nil, nil

	case config.BackendFile:
		return file.New(cfg.Store.Path), nil, nil

	case config.BackendSQLite:
		s, err := sqlite.Open(cfg.Store.Path)
		if err != nil {
			return nil, nil, err
		}
		a.closers = append(a.closers, s.Close)
		return s, nil, nil

	case config.BackendRedis:
		s := redis.New(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB,
			redis.WithPrefix(cfg.Redis.Prefix),
			redis.WithTTL(cfg.Redis.TTL),
		)
		a.closers = append(a.closers, s.Close)

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.Ping(ctx); err != nil {
			return nil, nil, fmt.Errorf("redis %s: %w", cfg.Redis.Addr, err)
		}
		if cfg.Redis.Lock {
			return s, redis.NewLocker(s.Client(), cfg.Redis.Prefix), nil
		}
		return s, nil, nil
	}
	return nil, nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
}

// wrapStore masks PII before encryption so the sealed payload never holds it.
func (a *App) wrapStore(base ports.ProgressStore) (ports.ProgressStore, error) {
	var mws []middleware.Middleware

	if patterns := a.Config.Store.MaskPatterns; len(patterns) > 0 {
		for _, p := range patterns {
			if _, err := regexp.Compile(p); err != nil {
				return nil, fmt.Errorf("store.mask_patterns: %w", err)
			}
		}
		mws = append(mws, middleware.NewPIIMiddleware(patterns))
	}

	if key := a.Config.Store.EncryptionKey; key != "" {
		active, err := middleware.ParseKey(key)
		if err != nil {
			return nil, fmt.Errorf("store.encryption_key: %w", err)
		}
		enc := middleware.EncryptionConfig{ActiveKey: active}
		for _, fk := range a.Config.Store.FallbackKeys {
			k, err := middleware.ParseKey(fk)
			if err != nil {
				return nil, fmt.Errorf("store.fallback_keys: %w", err)
			}
			enc.FallbackKeys = append(enc.FallbackKeys, k)
		}
		mws = append(mws, middleware.NewEncryptionMiddleware(enc))
	}

	return middleware.Chain(base, mws...), nil
}

func debugHooks(logger *slog.Logger) domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnNodeEnter: func(ctx context.Context, e *domain.NodeEvent) {
			logger.Debug("Enter Question", "question_id", e.QuestionID, "type", e.QuestionType)
		},
		OnAnswerCommitted: func(ctx context.Context, e *domain.AnswerEvent) {
			logger.Debug("Answer Committed", "question_id", e.QuestionID, "skipped", e.IsSkipped, "duration", e.Duration)
		},
		OnSubmissionFailed: func(ctx context.Context, e *domain.AnswerEvent) {
			logger.Debug("Submission Failed", "question_id", e.QuestionID, "err", e.Err)
		},
		OnSnapshotFailed: func(ctx context.Context, e *domain.SnapshotEvent) {
			logger.Debug("Snapshot Failed", "question_id", e.QuestionID, "err", e.Err)
		},
	}
}
