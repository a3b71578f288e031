package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/JonnyWalker81/ecotrack/backend/internal/analytics"
	"github.com/JonnyWalker81/ecotrack/backend/internal/cache"
	"github.com/JonnyWalker81/ecotrack/backend/internal/config"
	"github.com/JonnyWalker81/ecotrack/backend/internal/generative"
	"github.com/JonnyWalker81/ecotrack/backend/internal/logger"
	"github.com/JonnyWalker81/ecotrack/backend/internal/metrics"
	"github.com/JonnyWalker81/ecotrack/backend/internal/middleware"
	"github.com/JonnyWalker81/ecotrack/backend/internal/repository"
	"github.com/JonnyWalker81/ecotrack/backend/internal/service"
	"github.com/JonnyWalker81/ecotrack/backend/pkg/supabase"
)

// app holds the wired dependencies shared by every command
type app struct {
	cfg      *config.Config
	metrics  *metrics.Metrics
	db       *sql.DB
	supabase *supabase.Client
	service  service.InsightService
	closers  []func() error
}

func setupLogger(cfg *config.Config) {
	logger.SetDefault(logger.NewSlogLogger(logger.Config{
		Level:     logger.ParseLevel(cfg.Log.Level),
		Format:    cfg.Log.Format,
		AddSource: cfg.Server.Env != "production",
	}))
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	a := &app{cfg: cfg, metrics: metrics.New()}
	if cfg.Supabase.URL != "" {
		a.supabase = supabase.NewClient(cfg.Supabase.URL, cfg.Supabase.ServiceKey)
	}

	activities, challenges, err := a.openStore(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}

	insightCache, err := a.openCache(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}

	policy, err := a.newPolicy(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}

	catalog, err := analytics.DefaultCatalog()
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("load challenge catalog: %w", err)
	}

	a.service = service.NewInsightService(activities, challenges, insightCache, policy, catalog)
	return a, nil
}

// openDatabase opens and migrates the SQL database for the configured driver
func openDatabase(ctx context.Context, cfg config.StoreConfig) (*sql.DB, repository.Dialect, error) {
	dialect := repository.DialectSQLite
	dsn := cfg.DSN
	switch cfg.Driver {
	case "memory":
		dsn = ""
	case "sqlite":
	case "postgres", "supabase":
		dialect = repository.DialectPostgres
	default:
		return nil, dialect, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}

	db, err := repository.Open(dialect, dsn)
	if err != nil {
		return nil, dialect, fmt.Errorf("open %s store: %w", cfg.Driver, err)
	}
	if err := repository.Migrate(ctx, db, dialect); err != nil {
		db.Close()
		return nil, dialect, fmt.Errorf("migrate %s store: %w", cfg.Driver, err)
	}
	return db, dialect, nil
}

func (a *app) openStore(ctx context.Context) (repository.ActivityRepository, repository.ChallengeRepository, error) {
	db, dialect, err := openDatabase(ctx, a.cfg.Store)
	if err != nil {
		return nil, nil, err
	}
	a.db = db
	a.closers = append(a.closers, db.Close)

	store := repository.NewSQLStore(db, dialect)
	logger.Info("store ready", logger.String("driver", a.cfg.Store.Driver))

	if a.cfg.Store.Driver == "supabase" {
		if a.supabase == nil {
			return nil, nil, errors.New("supabase store requires supabase.url")
		}
		return repository.NewSupabaseActivityRepository(a.supabase), store, nil
	}
	return store, store, nil
}

func (a *app) openCache(ctx context.Context) (*cache.InsightCache, error) {
	var store cache.Store
	switch a.cfg.Cache.Backend {
	case "redis":
		rs, err := cache.NewRedisStoreFromURL(ctx, a.cfg.Cache.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("connect insight cache: %w", err)
		}
		a.closers = append(a.closers, rs.Close)
		store = rs
	default:
		ms := cache.NewMemoryStore(time.Minute)
		a.closers = append(a.closers, ms.Close)
		store = ms
	}
	logger.Info("insight cache ready", logger.String("backend", a.cfg.Cache.Backend))

	return cache.New(store, cache.WithPrefix(a.cfg.Cache.KeyPrefix), cache.WithObserver(a.metrics)), nil
}

func (a *app) newPolicy(ctx context.Context) (*generative.Policy, error) {
	gc := a.cfg.Generative

	var svc generative.Service
	switch gc.Provider {
	case "openrouter":
		svc = generative.NewOpenAIClient(generative.OpenAIClientConfig{
			BaseURL:     gc.BaseURL,
			APIKey:      gc.APIKey,
			Model:       gc.Model,
			Temperature: gc.Temperature,
			Title:       "EcoTrack",
		}, &http.Client{})
	case "bedrock":
		client, err := generative.NewBedrockClientFromEnv(ctx, gc.Region, gc.Model, gc.Temperature)
		if err != nil {
			return nil, fmt.Errorf("init bedrock client: %w", err)
		}
		svc = client
	default:
		logger.Info("generative text disabled, using rule-based text only")
		return generative.NewPolicy(nil, generative.PolicyConfig{Observer: a.metrics}), nil
	}

	breaker := generative.NewBreaker(gc.Provider, generative.BreakerConfig{
		MaxFailures:  gc.BreakerMaxFailures,
		ResetTimeout: gc.BreakerResetTimeout,
	})
	breaker.OnStateChange(a.metrics.BreakerStateChanged)

	logger.Info("generative text enabled",
		logger.String("provider", gc.Provider),
		logger.String("model", gc.Model),
		logger.Duration("timeout", gc.Timeout),
	)
	return generative.NewPolicy(svc, generative.PolicyConfig{
		Timeout:   gc.Timeout,
		MaxTokens: gc.MaxTokens,
		Breaker:   breaker,
		Observer:  a.metrics,
	}), nil
}

func (a *app) userResolver() (middleware.UserResolver, error) {
	switch a.cfg.Auth.Mode {
	case "supabase":
		if a.supabase == nil {
			return nil, errors.New("supabase auth requires supabase.url")
		}
		return middleware.BearerResolver{Verifier: a.supabase}, nil
	default:
		return middleware.HeaderResolver{Header: a.cfg.Auth.UserHeader}, nil
	}
}

// Close releases resources in reverse order of acquisition
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	a.closers = nil
	return errors.Join(errs...)
}
