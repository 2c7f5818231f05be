package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/noah-isme/drive-api/internal/repository"
	"github.com/noah-isme/drive-api/internal/service"
	"github.com/noah-isme/drive-api/pkg/cache"
	"github.com/noah-isme/drive-api/pkg/config"
	"github.com/noah-isme/drive-api/pkg/database"
	"github.com/noah-isme/drive-api/pkg/jobs"
	"github.com/noah-isme/drive-api/pkg/storage"
)

// DriveApp owns the engine and every backing client built from config.
// The caller must call Close when done.
type DriveApp struct {
	Filesystem *service.Filesystem
	Metrics    *service.MetricsService
	Tokens     *service.TokenService
	Signer     *storage.SignedURLSigner
	Queue      *jobs.Queue

	logger  *zap.Logger
	closers []func(context.Context) error
}

// New wires a DriveApp from cfg. The blob queue is started before returning.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*DriveApp, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &DriveApp{
		Metrics: service.NewMetricsService(),
		logger:  logger,
	}

	nodes, deltas, err := a.openStore(ctx, cfg)
	if err != nil {
		a.Close(ctx)
		return nil, err
	}

	blobs, err := openBlobs(ctx, cfg)
	if err != nil {
		a.Close(ctx)
		return nil, err
	}

	a.Queue = jobs.NewQueue("blobs", jobs.QueueConfig{
		Workers:    cfg.Blobs.Workers,
		MaxRetries: cfg.Blobs.Retries,
		RetryDelay: cfg.Blobs.RetryDelay,
		Logger:     logger,
	})
	reaper := service.NewBlobReaper(a.Queue, blobs, logger)

	sinks, err := a.openSinks(ctx, cfg)
	if err != nil {
		a.Close(ctx)
		return nil, err
	}

	a.Filesystem = service.NewFilesystem(nodes, deltas, blobs, service.FilesystemOptions{
		MaxFileVersion: cfg.Files.MaxFileVersion,
		DeltaLimit:     cfg.Delta.DefaultLimit,
		DeltaMaxLimit:  cfg.Delta.MaxLimit,
		Metrics:        a.Metrics,
		Events:         service.NewEventDispatcher(logger, sinks...),
		Reaper:         reaper,
		Logger:         logger,
	})
	a.Tokens = service.NewTokenService(service.TokenConfig{
		Secret: cfg.JWT.Secret,
		Issuer: cfg.JWT.Issuer,
		Expiry: cfg.JWT.Expiry,
	})
	a.Signer = storage.NewSignedURLSigner(cfg.Download.Secret, cfg.Download.TTL)

	a.Queue.Start(ctx)
	a.closers = append(a.closers, func(context.Context) error {
		a.Queue.Stop()
		return nil
	})
	return a, nil
}

func (a *DriveApp) openStore(ctx context.Context, cfg *config.Config) (service.NodeStore, service.DeltaLog, error) {
	if cfg.Store.Driver == config.StoreMemory {
		return repository.NewMemoryNodeRepository(), repository.NewMemoryDeltaRepository(), nil
	}
	client, db, err := database.NewMongo(ctx, cfg.Mongo)
	if err != nil {
		return nil, nil, fmt.Errorf("connecting mongo: %w", err)
	}
	a.closers = append(a.closers, client.Disconnect)
	if err := database.EnsureIndexes(ctx, db); err != nil {
		return nil, nil, fmt.Errorf("ensuring indexes: %w", err)
	}
	return repository.NewMongoNodeRepository(db, a.Metrics), repository.NewMongoDeltaRepository(db, a.Metrics), nil
}

func openBlobs(ctx context.Context, cfg *config.Config) (*storage.Registry, error) {
	local, err := storage.NewLocalStorage(cfg.Storage.Dir)
	if err != nil {
		return nil, fmt.Errorf("opening blob directory: %w", err)
	}
	if cfg.Storage.Driver != config.StorageS3 {
		return storage.NewRegistry(local), nil
	}

	client, err := storage.NewS3Client(ctx, cfg.Storage.S3)
	if err != nil {
		return nil, fmt.Errorf("creating s3 client: %w", err)
	}
	remote, err := storage.NewS3Storage(client, cfg.Storage.S3.Bucket, cfg.Storage.S3.Prefix)
	if err != nil {
		return nil, err
	}
	// Blobs written before a switch to s3 stay readable from disk.
	return storage.NewRegistry(remote, local), nil
}

func (a *DriveApp) openSinks(ctx context.Context, cfg *config.Config) ([]service.EventSink, error) {
	var sinks []service.EventSink
	if cfg.Events.Enabled {
		client, err := cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			return nil, fmt.Errorf("connecting redis: %w", err)
		}
		a.closers = append(a.closers, func(context.Context) error { return client.Close() })
		sinks = append(sinks, repository.NewEventStreamRepository(client, cfg.Events.Stream, cfg.Events.MaxLen))
	}
	if cfg.Audit.Enabled {
		db, err := database.NewPostgres(ctx, cfg.Audit.Database)
		if err != nil {
			return nil, fmt.Errorf("connecting audit database: %w", err)
		}
		a.closers = append(a.closers, func(context.Context) error { return db.Close() })
		if err := database.EnsureAuditSchema(ctx, db); err != nil {
			return nil, err
		}
		sinks = append(sinks, service.NewAuditSink(repository.NewAuditRepository(db)))
	}
	return sinks, nil
}

// Close releases clients in reverse order of creation.
func (a *DriveApp) Close(ctx context.Context) {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			a.logger.Warn("failed to close dependency", zap.Error(err))
		}
	}
	a.closers = nil
}
