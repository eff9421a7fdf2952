package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/kapu/game-metadata-sync-go/internal/config"
	"github.com/kapu/game-metadata-sync-go/internal/constants"
	"github.com/kapu/game-metadata-sync-go/internal/domain"
	"github.com/kapu/game-metadata-sync-go/internal/service/cache"
	"github.com/kapu/game-metadata-sync-go/internal/service/catalog"
	"github.com/kapu/game-metadata-sync-go/internal/service/checkpoint"
	"github.com/kapu/game-metadata-sync-go/internal/service/fetch"
	"github.com/kapu/game-metadata-sync-go/internal/service/matcher"
	"github.com/kapu/game-metadata-sync-go/internal/service/provider"
	"github.com/kapu/game-metadata-sync-go/internal/service/query"
	"github.com/kapu/game-metadata-sync-go/internal/service/reconcile"
	"github.com/kapu/game-metadata-sync-go/internal/service/resolver"
	"github.com/kapu/game-metadata-sync-go/internal/store"
	"github.com/kapu/game-metadata-sync-go/internal/util"
)

// Container bundles the configured store and override tables, and builds one
// fully wired runner per provider session.
type Container struct {
	Config    *config.Config
	Logger    *zap.Logger
	Store     store.Store
	Overrides *config.Overrides

	closers []func()
}

// Build opens the checkpoint store and loads the override tables. Fetch
// sessions are created per runner, not here.
func Build(ctx context.Context, cfg *config.Config, logger *zap.Logger) (container *Container, err error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger must not be nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	var closers []func()
	defer func() {
		if err != nil {
			for i := len(closers) - 1; i >= 0; i-- {
				closers[i]()
			}
		}
	}()

	st, err := store.Open(StoreOptions(cfg, cfg.Store.Backend), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s store: %w", cfg.Store.Backend, err)
	}
	closers = append(closers, func() {
		_ = st.Close()
	})

	overrides, err := config.LoadOverrides(cfg.Overrides.File)
	if err != nil {
		return nil, fmt.Errorf("failed to load overrides: %w", err)
	}
	logger.Info("Overrides loaded",
		zap.String("file", cfg.Overrides.File),
		zap.Int("titles", len(overrides.Titles)),
		zap.Int("urls", len(overrides.URLs)),
		zap.Int("skip", len(overrides.Skip.Titles)),
	)

	return &Container{
		Config:    cfg,
		Logger:    logger,
		Store:     st,
		Overrides: overrides,
		closers:   closers,
	}, nil
}

// Close releases everything Build opened, in reverse order.
func (c *Container) Close() {
	if c == nil {
		return
	}
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
	c.closers = nil
}

// StoreOptions maps configuration onto store options for the given backend.
func StoreOptions(cfg *config.Config, backend string) store.Options {
	return store.Options{
		Backend:    backend,
		Dir:        cfg.Store.Dir,
		SQLitePath: cfg.Store.SQLitePath,
		Postgres: store.PostgresConfig{
			Host:     cfg.Postgres.Host,
			Port:     cfg.Postgres.Port,
			User:     cfg.Postgres.User,
			Password: cfg.Postgres.Password,
			Database: cfg.Postgres.Database,
			SSLMode:  cfg.Postgres.SSLMode,
		},
		Redis: store.RedisConfig{
			Host:     cfg.Redis.Host,
			Port:     cfg.Redis.Port,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Prefix:   cfg.Redis.Prefix,
		},
	}
}

// LoadCatalog reads the configured catalog, sorted by id.
func (c *Container) LoadCatalog() ([]domain.CatalogRecord, error) {
	return catalog.Load(c.Config.Catalog.Path, c.Logger)
}

// RunSpec describes one runner to build.
type RunSpec struct {
	Provider string
	Shard    reconcile.Shard
	Quota    int
	RunID    string
}

// NewRunner wires a provider session: HTTP fetcher, fetch controller, run
// cache, query generator and resolver. Nothing in it is shared with other
// runners except the store.
func (c *Container) NewRunner(spec RunSpec) (*reconcile.Runner, error) {
	cfg := c.Config

	p, err := provider.New(spec.Provider, cfg.Providers.BaseURL(spec.Provider), util.NowUTC)
	if err != nil {
		return nil, err
	}

	logger := c.Logger.With(
		zap.String("provider", p.Name()),
		zap.Int("shard", spec.Shard.Index),
	)

	controller := fetch.NewController(fetch.NewHTTPFetcher(cfg.Fetch.UserAgent), fetch.Options{
		MaxAttempts:     cfg.Fetch.MaxAttempts,
		AttemptTimeouts: cfg.Fetch.AttemptTimeouts,
		TimeoutStep:     cfg.Fetch.TimeoutStep,
		Politeness: constants.DelayRange{
			Min: cfg.Fetch.PolitenessMin,
			Max: cfg.Fetch.PolitenessMax,
		},
		Escalation:       cfg.Fetch.Escalation,
		BreakerThreshold: cfg.Fetch.BreakerThreshold,
	}, logger)

	runCache := cache.NewRunCache()

	generator := query.NewGenerator(query.Options{
		Overrides:   c.Overrides.Titles,
		MaxVariants: cfg.Run.MaxVariants,
	})

	res := resolver.New(p, controller, generator, runCache, resolver.Options{
		Thresholds: matcher.Thresholds{
			Strong:         cfg.Matching.Strong,
			Weak:           cfg.Matching.Weak,
			TiedTop:        cfg.Matching.TiedTop,
			YearLookupTopK: cfg.Matching.YearLookupTopK,
		},
		AcceptScore:  cfg.Matching.Accept,
		URLOverrides: c.Overrides.URLs,
		Skip:         c.Overrides.Skip.Titles,
	}, logger)

	policy := checkpoint.NewPolicy(checkpoint.Windows{
		Refresh:          cfg.Recheck.Refresh,
		Settled:          cfg.Recheck.Settled,
		Unreleased:       cfg.Recheck.Unreleased,
		NoScore:          cfg.Recheck.NoScore,
		NotFoundMaxCheck: cfg.Recheck.NotFoundMaxCheck,
		NotFoundBackoff:  cfg.Recheck.NotFoundBackoff,
	})

	return reconcile.NewRunner(res, controller, c.Store, policy, runCache, reconcile.Options{
		Key:       store.Key{Provider: p.Name(), Shard: spec.Shard.Index},
		Start:     spec.Shard.Start,
		End:       spec.Shard.End,
		Quota:     spec.Quota,
		SaveEvery: cfg.Run.SaveEvery,
		RunID:     spec.RunID,
	}, logger), nil
}

// RunnerFactory adapts NewRunner for reconcile.RunShards.
func (c *Container) RunnerFactory(providerName string, quota int, runID string) reconcile.RunnerFactory {
	return func(shard reconcile.Shard) (*reconcile.Runner, error) {
		return c.NewRunner(RunSpec{
			Provider: providerName,
			Shard:    shard,
			Quota:    quota,
			RunID:    runID,
		})
	}
}
