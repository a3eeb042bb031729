// Package di wires the graph engine together. Providers are plain
// constructors usable both by Wire-generated injectors and by the
// manual InitializeEngine fallback.
package di

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"braindump/application/ports"
	"braindump/application/services"
	domainconfig "braindump/domain/config"
	"braindump/domain/core/aggregates"
	"braindump/domain/core/valueobjects"
	"braindump/infrastructure/config"
	"braindump/infrastructure/observability"
	"braindump/infrastructure/persistence"
	"braindump/infrastructure/persistence/memory"
	"braindump/infrastructure/persistence/supabase"
)

// Container holds the assembled engine and its collaborators
type Container struct {
	Config      *config.Config
	Engine      *domainconfig.EngineConfig
	Logger      *zap.Logger
	Persistence ports.PersistenceService
	Observer    ports.Observer
	Registry    *prometheus.Registry
	Store       *services.GraphStore
	History     *services.HistoryManager
	Mutations   *services.MutationService
	Reconciler  *services.Reconciler
}

// ProvideLogger creates a logger for the configured environment
func ProvideLogger(cfg *config.Config) (*zap.Logger, error) {
	if cfg.IsProduction() {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}

// ProvideEngineConfig derives the engine settings from the app config
func ProvideEngineConfig(cfg *config.Config) (*domainconfig.EngineConfig, error) {
	engine := cfg.EngineConfig()
	if err := engine.Validate(); err != nil {
		return nil, fmt.Errorf("engine config: %w", err)
	}
	return engine, nil
}

// ProvidePersistence selects the remote adapter when Supabase is
// configured, the in-process store otherwise. Either way the result is
// wrapped in the circuit breaker.
func ProvidePersistence(cfg *config.Config, logger *zap.Logger) (ports.PersistenceService, error) {
	var inner ports.PersistenceService
	if cfg.SupabaseURL != "" {
		remote, err := supabase.NewPersistence(cfg.SupabaseURL, cfg.SupabaseServiceKey, logger)
		if err != nil {
			return nil, err
		}
		inner = remote
	} else {
		logger.Info("no supabase configuration, using in-memory persistence")
		inner = memory.NewStore()
	}
	return persistence.NewResilient(inner, logger), nil
}

// ProvideRegistry creates the process metrics registry
func ProvideRegistry() *prometheus.Registry {
	return prometheus.NewRegistry()
}

// ProvideObserver creates the metrics observer, or a no-op one when
// metrics are disabled
func ProvideObserver(cfg *config.Config, registry *prometheus.Registry) ports.Observer {
	if !cfg.EnableMetrics {
		return ports.NopObserver{}
	}
	return observability.NewMetrics(registry)
}

// ProvideWorkspace reconstructs the configured workspace id, or creates
// a fresh workspace when none is configured
func ProvideWorkspace(cfg *config.Config) (*aggregates.Workspace, error) {
	if cfg.WorkspaceID == "" {
		return aggregates.NewWorkspace(cfg.WorkspaceName)
	}
	id, err := valueobjects.NewWorkspaceIDFromString(cfg.WorkspaceID)
	if err != nil {
		return nil, fmt.Errorf("workspace id: %w", err)
	}
	now := time.Now()
	return aggregates.ReconstructWorkspace(id, cfg.WorkspaceName, 0, 0, valueobjects.DefaultViewport(), now, now)
}

// ProvideHistory creates the history manager fed by the store's
// snapshots
func ProvideHistory(
	store *services.GraphStore,
	engine *domainconfig.EngineConfig,
	observer ports.Observer,
	logger *zap.Logger,
) *services.HistoryManager {
	history := services.NewHistoryManager(engine, store.Snapshot, observer, logger)
	store.AttachHistory(history)
	return history
}

// ProvideGraphStore assembles the in-memory store
func ProvideGraphStore(
	workspace *aggregates.Workspace,
	engine *domainconfig.EngineConfig,
	persistenceService ports.PersistenceService,
	enricher ports.Enricher,
	observer ports.Observer,
	logger *zap.Logger,
) *services.GraphStore {
	return services.NewGraphStore(workspace, engine, persistenceService, enricher, observer, logger)
}

// ProvideReconciler creates the undo/redo persistence reconciler
func ProvideReconciler(persistenceService ports.PersistenceService, logger *zap.Logger) *services.Reconciler {
	return services.NewReconciler(persistenceService, logger)
}

// ProvideMutations creates the compound-operation service
func ProvideMutations(
	store *services.GraphStore,
	history *services.HistoryManager,
	reconciler *services.Reconciler,
	engine *domainconfig.EngineConfig,
	observer ports.Observer,
	logger *zap.Logger,
) *services.MutationService {
	return services.NewMutationService(store, history, reconciler, engine, observer, logger)
}

// InitializeEngine builds the full container by hand, in dependency
// order. Wire generates the equivalent injector at build time; this
// manual version is kept for tests and for callers that assemble the
// engine with custom collaborators.
func InitializeEngine(ctx context.Context, cfg *config.Config, enricher ports.Enricher) (*Container, func(), error) {
	logger, err := ProvideLogger(cfg)
	if err != nil {
		return nil, nil, err
	}

	engine, err := ProvideEngineConfig(cfg)
	if err != nil {
		return nil, nil, err
	}

	persistenceService, err := ProvidePersistence(cfg, logger)
	if err != nil {
		return nil, nil, err
	}

	registry := ProvideRegistry()
	observer := ProvideObserver(cfg, registry)

	workspace, err := ProvideWorkspace(cfg)
	if err != nil {
		return nil, nil, err
	}

	store := ProvideGraphStore(workspace, engine, persistenceService, enricher, observer, logger)
	history := ProvideHistory(store, engine, observer, logger)

	if cfg.WorkspaceID != "" {
		if err := store.Load(ctx); err != nil {
			return nil, nil, fmt.Errorf("load workspace: %w", err)
		}
	}
	if err := store.EnsureWorkspacePersisted(ctx); err != nil {
		logger.Warn("workspace row not persisted", zap.Error(err))
	}
	// Seed history with the starting state so the first mutation is
	// undoable
	history.CaptureImmediate(store.Snapshot())

	reconciler := ProvideReconciler(persistenceService, logger)
	mutations := ProvideMutations(store, history, reconciler, engine, observer, logger)

	container := &Container{
		Config:      cfg,
		Engine:      engine,
		Logger:      logger,
		Persistence: persistenceService,
		Observer:    observer,
		Registry:    registry,
		Store:       store,
		History:     history,
		Mutations:   mutations,
		Reconciler:  reconciler,
	}

	cleanup := func() {
		store.Dispose()
		history.Dispose()
		_ = logger.Sync()
	}
	return container, cleanup, nil
}
