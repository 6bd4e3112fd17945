// Package blobstore holds file contents. Metadata lives in the entity store;
// a blob is addressed only by its storage key.
package blobstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/dmitrijs2005/gophdrive/internal/server/metrics"
	"github.com/google/uuid"
)

// ErrNotFound is returned when no blob exists under a key.
var ErrNotFound = errors.New("blob not found")

// Store is the blob store contract. Key uniqueness is the caller's concern.
type Store interface {
	Put(ctx context.Context, key string, r io.Reader, size int64) error
	// Get returns the content and its size.
	Get(ctx context.Context, key string) (io.ReadCloser, int64, error)
	// Delete removes a blob and returns ErrNotFound if it does not exist.
	Delete(ctx context.Context, key string) error
	// Type returns the backend identifier ("s3", "local", "memory").
	Type() string
}

// NewStorageKey returns a fresh key for a blob owned by ownerID.
func NewStorageKey(ownerID string, now time.Time) string {
	return fmt.Sprintf("users/%s/%d/%02d/%02d/%v", ownerID, now.Year(), now.Month(), now.Day(), uuid.New())
}

// Instrumented wraps s so every call is recorded in metrics.
func Instrumented(s Store) Store {
	return &instrumented{next: s}
}

type instrumented struct {
	next Store
}

func (i *instrumented) Type() string { return i.next.Type() }

func (i *instrumented) Put(ctx context.Context, key string, r io.Reader, size int64) error {
	start := time.Now()
	err := i.next.Put(ctx, key, r, size)
	metrics.RecordBlobOperation(i.next.Type(), "put", time.Since(start), err == nil)
	if err == nil {
		metrics.RecordContentUpload(size)
	}
	return err
}

func (i *instrumented) Get(ctx context.Context, key string) (io.ReadCloser, int64, error) {
	start := time.Now()
	rc, size, err := i.next.Get(ctx, key)
	metrics.RecordBlobOperation(i.next.Type(), "get", time.Since(start), err == nil)
	return rc, size, err
}

func (i *instrumented) Delete(ctx context.Context, key string) error {
	start := time.Now()
	err := i.next.Delete(ctx, key)
	metrics.RecordBlobOperation(i.next.Type(), "delete", time.Since(start), err == nil || errors.Is(err, ErrNotFound))
	return err
}
