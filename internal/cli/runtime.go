package cli

import (
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/maltesIam/cyberdemo-sub000/internal/adapters"
	"github.com/maltesIam/cyberdemo-sub000/internal/cache"
	"github.com/maltesIam/cyberdemo-sub000/internal/config"
	"github.com/maltesIam/cyberdemo-sub000/internal/service"
	"github.com/maltesIam/cyberdemo-sub000/internal/store"
	"github.com/maltesIam/cyberdemo-sub000/pkg/log"
)

// runtime wires the full stack from configuration: logging, store, the
// synthetic source registry and the enrichment service.
type runtime struct {
	cfg      *config.Config
	store    store.Store
	registry *adapters.Registry
	service  *service.EnrichmentService
}

func newRuntime() (*runtime, error) {
	cfg, err := config.New()
	if err != nil {
		return nil, errors.Wrap(err, "reading configuration")
	}

	logger := log.InitLog(log.NewLevel(cfg.Service.LogLevel))
	zap.ReplaceGlobals(logger)

	st, err := newStore(cfg)
	if err != nil {
		return nil, err
	}

	registry := adapters.NewSyntheticRegistry(adapters.SyntheticOptions{
		BreakerThreshold: cfg.Service.BreakerThreshold,
		BreakerTimeout:   cfg.Service.BreakerTimeout,
		RateWindow:       cfg.Service.RateWindow,
		RateOverrides:    cfg.Service.RateOverrides,
	})

	srv := service.NewEnrichmentService(st, registry, cache.New(cfg.Service.CacheTTL),
		service.WithMaxBatch(cfg.Service.MaxBatch),
		service.WithAdapterTimeout(cfg.Service.AdapterTimeout),
	)

	return &runtime{cfg: cfg, store: st, registry: registry, service: srv}, nil
}

func newStore(cfg *config.Config) (store.Store, error) {
	mem := store.NewMemoryStore()
	if cfg.Database.Type != "sqlite" {
		return mem, nil
	}

	db, err := store.InitDB(cfg)
	if err != nil {
		return nil, errors.Wrap(err, "initializing data store")
	}
	dbStore := store.NewDatabaseStore(db)
	if err := dbStore.InitialMigration(); err != nil {
		return nil, errors.Wrap(err, "running initial migration")
	}
	return store.NewDurableStore(mem, dbStore), nil
}

func (r *runtime) Close() {
	if err := r.store.Close(); err != nil {
		zap.S().Errorf("failed to close store: %s", err)
	}
	_ = zap.L().Sync()
}
