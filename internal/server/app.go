// Package server wires configuration, storage, services, the trash reaper
// and the HTTP API into one process and runs it until it is signalled.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/dmitrijs2005/gophdrive/internal/dbx"
	"github.com/dmitrijs2005/gophdrive/internal/logging"
	"github.com/dmitrijs2005/gophdrive/internal/server/blobstore"
	"github.com/dmitrijs2005/gophdrive/internal/server/config"
	"github.com/dmitrijs2005/gophdrive/internal/server/httpapi"
	"github.com/dmitrijs2005/gophdrive/internal/server/reaper"
	"github.com/dmitrijs2005/gophdrive/internal/server/repositories/memory"
	"github.com/dmitrijs2005/gophdrive/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/gophdrive/internal/server/services"
)

type App struct {
	config *config.Config
	logger logging.Logger
	db     *sql.DB
	http   *httpapi.Server
	reaper *reaper.Reaper
}

// openDB is a seam for tests.
var openDB = func(dsn string) (*sql.DB, error) {
	return sql.Open("pgx", dsn)
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger := logging.New(c.LogFormat, c.LogLevel, os.Stdout)

	tx, rm, db, err := openEntityStore(ctx, c)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	blobs, err := openBlobStore(ctx, c)
	if err != nil {
		if db != nil {
			_ = db.Close()
		}
		return nil, fmt.Errorf("blob store init error: %w", err)
	}
	blobs = blobstore.Instrumented(blobs)

	trash := services.NewTrashService(tx, rm, blobs, logger)
	svc := httpapi.Services{
		Tree:      services.NewTreeService(tx, rm, blobs, logger),
		Trash:     trash,
		Bulk:      services.NewBulkService(tx, rm, logger),
		Favorites: services.NewFavoriteService(tx, rm, logger),
		Users:     services.NewUserService(tx, rm, c, logger),
	}

	return &App{
		config: c,
		logger: logger,
		db:     db,
		http:   httpapi.NewServer(c.HTTPAddr, logger, svc, c.SecretKey),
		reaper: reaper.New(trash, reaper.Config{
			Interval:  c.ReaperInterval,
			Retention: c.TrashRetention,
			BatchSize: c.ReaperBatchSize,
		}, logger),
	}, nil
}

// openEntityStore returns the in-memory store for config.MemoryDSN and a
// migrated PostgreSQL database otherwise.
func openEntityStore(ctx context.Context, c *config.Config) (dbx.Transactor, repomanager.RepositoryManager, *sql.DB, error) {
	if c.DatabaseDSN == config.MemoryDSN {
		m := memory.New()
		return m, m, nil, nil
	}

	db, err := openDB(c.DatabaseDSN)
	if err != nil {
		return nil, nil, nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, nil, nil, err
	}

	rm := &repomanager.PostgresRepositoryManager{}
	if err := rm.RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, nil, nil, fmt.Errorf("migrations: %w", err)
	}
	return dbx.NewSQLTransactor(db, nil), rm, db, nil
}

func openBlobStore(ctx context.Context, c *config.Config) (blobstore.Store, error) {
	switch c.StorageBackend {
	case "s3":
		s, err := blobstore.NewS3Store(ctx, blobstore.S3Config{
			Bucket:       c.S3Bucket,
			Region:       c.S3Region,
			AccessKey:    c.S3RootUser,
			SecretKey:    c.S3RootPassword,
			BaseEndpoint: c.S3BaseEndpoint,
		})
		if err != nil {
			return nil, err
		}
		if err := s.EnsureBucket(ctx); err != nil {
			return nil, err
		}
		return s, nil
	case "local":
		return blobstore.NewLocalStore(c.LocalStorageRoot)
	case "memory":
		return blobstore.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", c.StorageBackend)
	}
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {
	if err := app.http.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

// Run blocks until ctx is cancelled, a termination signal arrives or the
// HTTP server fails.
func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	if err := app.reaper.Start(ctx); err != nil {
		app.logger.Error(ctx, "trash reaper start failed", "error", err)
		app.close(ctx)
		return
	}

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()

	wg.Wait()

	app.reaper.Stop()
	app.close(ctx)
	app.logger.Info(ctx, "App stopped")
}

func (app *App) close(ctx context.Context) {
	if app.db == nil {
		return
	}
	if err := app.db.Close(); err != nil {
		app.logger.Error(ctx, "db close failed", "error", err)
	}
}
