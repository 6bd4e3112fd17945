package server

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/gophdrive/internal/server/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func memoryConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := &config.Config{}
	cfg.LoadDefaults()
	cfg.DatabaseDSN = config.MemoryDSN
	cfg.StorageBackend = "memory"
	cfg.HTTPAddr = "127.0.0.1:0"
	cfg.LogLevel = "error"
	return cfg
}

func TestNewApp_MemoryModeRunsAndStops(t *testing.T) {
	cfg := memoryConfig(t)
	app, err := NewApp(context.Background(), cfg)
	require.NoError(t, err)
	assert.Nil(t, app.db)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		app.Run(ctx)
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("app did not stop")
	}
}

func TestOpenBlobStore(t *testing.T) {
	cfg := memoryConfig(t)

	cfg.StorageBackend = "local"
	cfg.LocalStorageRoot = t.TempDir()
	s, err := openBlobStore(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, "local", s.Type())

	cfg.StorageBackend = "tape"
	_, err = openBlobStore(context.Background(), cfg)
	assert.Error(t, err)
}

func TestNewApp_DatabaseErrors(t *testing.T) {
	prev := openDB
	t.Cleanup(func() { openDB = prev })

	cfg := memoryConfig(t)
	cfg.DatabaseDSN = "postgres://example/db"

	openDB = func(string) (*sql.DB, error) { return nil, errors.New("bad dsn") }
	_, err := NewApp(context.Background(), cfg)
	assert.ErrorContains(t, err, "db init error")

	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	mock.ExpectPing().WillReturnError(errors.New("connection refused"))
	mock.ExpectClose()
	openDB = func(string) (*sql.DB, error) { return db, nil }

	_, err = NewApp(context.Background(), cfg)
	assert.ErrorContains(t, err, "connection refused")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRun_StopsOnInvalidReaperBatchSize(t *testing.T) {
	cfg := memoryConfig(t)
	cfg.ReaperBatchSize = 0
	app, err := NewApp(context.Background(), cfg)
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		app.Run(context.Background())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("app kept running with a zero reaper batch size")
	}
}
