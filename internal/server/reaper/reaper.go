// Package reaper periodically purges trash items older than the retention
// window. It owns its ticker; Sweep runs one pass and is what tests call.
package reaper

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/dmitrijs2005/gophdrive/internal/logging"
	"github.com/dmitrijs2005/gophdrive/internal/server/metrics"
	"github.com/dmitrijs2005/gophdrive/internal/server/services"
)

// Purger is the part of the trash service the reaper drives.
type Purger interface {
	ListExpired(ctx context.Context, cutoff time.Time, limit int) ([]services.ExpiredItem, error)
	PurgeExpired(ctx context.Context, item services.ExpiredItem, cutoff time.Time) (services.PurgeResult, error)
}

type Config struct {
	Interval  time.Duration
	Retention time.Duration
	BatchSize int
}

// SweepResult summarises one pass.
type SweepResult struct {
	Candidates    int
	Purged        int
	Skipped       int
	Failed        int
	BytesReleased int64
}

type Reaper struct {
	purger Purger
	cfg    Config
	logger logging.Logger
	now    func() time.Time

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func New(p Purger, cfg Config, logger logging.Logger) *Reaper {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Reaper{purger: p, cfg: cfg, logger: logger.With("module", "reaper"), now: time.Now}
}

var (
	errNotPositive      = errors.New("reaper interval must be positive")
	errBatchNotPositive = errors.New("reaper batch size must be positive")
)

// Start launches the sweep loop. Calling Start on a running reaper is a
// no-op.
func (r *Reaper) Start(ctx context.Context) error {
	if r.cfg.Interval <= 0 {
		return errNotPositive
	}
	if r.cfg.BatchSize <= 0 {
		return errBatchNotPositive
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancel != nil {
		return nil
	}

	ctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.done = make(chan struct{})
	go r.loop(ctx, r.done)

	r.logger.Info(ctx, "reaper started", "interval", r.cfg.Interval.String(), "retention", r.cfg.Retention.String())
	return nil
}

// Stop ends the loop and waits for a running sweep to finish.
func (r *Reaper) Stop() {
	r.mu.Lock()
	cancel, done := r.cancel, r.done
	r.cancel, r.done = nil, nil
	r.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (r *Reaper) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := r.Sweep(ctx); err != nil && ctx.Err() == nil {
				r.logger.Error(ctx, "trash sweep failed", "error", err)
			}
		}
	}
}

// Sweep purges up to BatchSize items trashed before now minus Retention.
// Each item is purged in its own unit of work; a failing item is logged and
// the sweep moves on.
func (r *Reaper) Sweep(ctx context.Context) (SweepResult, error) {
	if r.cfg.BatchSize <= 0 {
		return SweepResult{}, errBatchNotPositive
	}
	now := r.now()
	cutoff := now.Add(-r.cfg.Retention)

	items, err := r.purger.ListExpired(ctx, cutoff, r.cfg.BatchSize)
	if err != nil {
		metrics.RecordReaperError()
		return SweepResult{}, err
	}

	res := SweepResult{Candidates: len(items)}
	for _, item := range items {
		if ctx.Err() != nil {
			break
		}
		p, err := r.purger.PurgeExpired(ctx, item, cutoff)
		switch {
		case err != nil:
			res.Failed++
			r.logger.Error(ctx, "purge of expired item failed",
				"owner_id", item.OwnerID, "item", item.Ref.String(), "error", err)
		case !p.Found:
			res.Skipped++
		default:
			res.Purged++
			res.BytesReleased += p.BytesReleased
		}
	}

	metrics.RecordReaperRun(res.Failed, now)
	if res.Candidates > 0 {
		r.logger.Info(ctx, "trash sweep completed", "candidates", res.Candidates,
			"purged", res.Purged, "skipped", res.Skipped, "failed", res.Failed,
			"bytes_released", res.BytesReleased)
	}
	return res, ctx.Err()
}
