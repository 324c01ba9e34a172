// Package app assembles the service dependencies from configuration.
package app

import (
	"context"
	"fmt"

	gcppubsub "cloud.google.com/go/pubsub"
	"cloud.google.com/go/storage"
	"go.uber.org/zap"

	archivegcs "github.com/fedleads/harvester/internal/archive/gcs"
	archivelocal "github.com/fedleads/harvester/internal/archive/local"
	archivememory "github.com/fedleads/harvester/internal/archive/memory"
	"github.com/fedleads/harvester/internal/config"
	"github.com/fedleads/harvester/internal/contracts"
	"github.com/fedleads/harvester/internal/logging"
	pubmemory "github.com/fedleads/harvester/internal/publisher/memory"
	pubgcp "github.com/fedleads/harvester/internal/publisher/pubsub"
	storagememory "github.com/fedleads/harvester/internal/storage/memory"
	storagepostgres "github.com/fedleads/harvester/internal/storage/postgres"
	storagesqlite "github.com/fedleads/harvester/internal/storage/sqlite"
)

// App holds the wired dependencies for a run. Archive and Publisher are nil
// when their provider is "none".
type App struct {
	Config    *config.Config
	Logger    *zap.Logger
	Store     contracts.Store
	Archive   contracts.BlobStore
	Publisher contracts.Publisher

	closers []func()
}

// New builds an App from cfg, connecting to the configured backends.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return nil, err
	}

	a := &App{Config: cfg, Logger: logger}

	if err := a.buildStore(ctx); err != nil {
		return nil, err
	}
	if err := a.buildArchive(ctx); err != nil {
		a.Close()
		return nil, err
	}
	if err := a.buildPublisher(ctx); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) buildStore(ctx context.Context) error {
	cfg := a.Config.Storage
	switch cfg.Provider {
	case "memory":
		a.Store = storagememory.New()
	case "sqlite":
		store, err := storagesqlite.New(ctx, cfg.Path)
		if err != nil {
			return fmt.Errorf("build sqlite store: %w", err)
		}
		a.Store = store
	case "postgres":
		store, err := storagepostgres.New(ctx, storagepostgres.Config{
			DSN:   cfg.DSN,
			Table: cfg.Table,
		})
		if err != nil {
			return fmt.Errorf("build postgres store: %w", err)
		}
		a.Store = store
	default:
		return fmt.Errorf("unknown storage provider %q", cfg.Provider)
	}
	a.Logger.Info("contract store ready", zap.String("provider", cfg.Provider))
	return nil
}

func (a *App) buildArchive(ctx context.Context) error {
	cfg := a.Config.Archive
	switch cfg.Provider {
	case "none", "":
		return nil
	case "memory":
		a.Archive = archivememory.New()
	case "local":
		store, err := archivelocal.New(archivelocal.Config{BaseDir: cfg.BaseDir})
		if err != nil {
			return fmt.Errorf("build local archive: %w", err)
		}
		a.Archive = store
	case "gcs":
		client, err := storage.NewClient(ctx)
		if err != nil {
			return fmt.Errorf("create gcs client: %w", err)
		}
		a.closers = append(a.closers, func() { _ = client.Close() })
		store, err := archivegcs.New(client, archivegcs.Config{Bucket: cfg.Bucket})
		if err != nil {
			return fmt.Errorf("build gcs archive: %w", err)
		}
		a.Archive = store
	default:
		return fmt.Errorf("unknown archive provider %q", cfg.Provider)
	}
	a.Logger.Info("payload archive ready", zap.String("provider", cfg.Provider))
	return nil
}

func (a *App) buildPublisher(ctx context.Context) error {
	cfg := a.Config.Publisher
	switch cfg.Provider {
	case "none", "":
		return nil
	case "memory":
		a.Publisher = pubmemory.New()
	case "pubsub":
		client, err := gcppubsub.NewClient(ctx, cfg.ProjectID)
		if err != nil {
			return fmt.Errorf("create pubsub client: %w", err)
		}
		a.closers = append(a.closers, func() { _ = client.Close() })
		pub, err := pubgcp.New(client)
		if err != nil {
			return fmt.Errorf("build pubsub publisher: %w", err)
		}
		a.Publisher = pub
	default:
		return fmt.Errorf("unknown publisher provider %q", cfg.Provider)
	}
	a.Logger.Info("run publisher ready", zap.String("provider", cfg.Provider))
	return nil
}

// Close releases every backend the App opened, in reverse order.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
	if a.Store != nil {
		a.Store.Close()
	}
	if a.Logger != nil {
		_ = a.Logger.Sync()
	}
}
