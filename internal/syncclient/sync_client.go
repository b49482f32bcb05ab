// Package syncclient delivers session deltas to the remote audit log merge
// endpoint on a schedule and on lifecycle boundaries.
package syncclient

import (
	"context"
	"sync"
	"time"

	"github.com/timbocorrea/studylog/internal/accumulator"
	"github.com/timbocorrea/studylog/internal/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// MergeAPI is the remote merge contract: the server applies the request
// additively and idempotently per idempotency key.
type MergeAPI interface {
	AppendAuditLog(ctx context.Context, req *models.MergeRequest) error
}

// SyncClient flushes one session's unflushed delta periodically and on
// demand. Flushes for the session are strictly serialized: a flush
// requested while one is in flight is coalesced into a follow-up run
// instead of being issued concurrently.
type SyncClient struct {
	api           MergeAPI
	acc           *accumulator.SessionAccumulator
	flushInterval time.Duration
	logger        *zap.Logger

	mu       sync.Mutex
	inFlight bool
	queued   bool

	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// New creates a sync client for one session accumulator. The flush loop
// reads the accumulator through the receiver on every tick, so state
// recorded after Start is always picked up by the next flush.
func New(api MergeAPI, acc *accumulator.SessionAccumulator, flushInterval time.Duration, logger *zap.Logger) *SyncClient {
	return &SyncClient{
		api:           api,
		acc:           acc,
		flushInterval: flushInterval,
		logger:        logger,
		stopChan:      make(chan struct{}),
	}
}

// Start begins the recurring flush loop.
func (sc *SyncClient) Start() {
	sc.wg.Add(1)
	go sc.flushLoop()

	sc.logger.Info("Sync client started",
		zap.String("session_id", sc.acc.Meta().SessionID),
		zap.Duration("flush_interval", sc.flushInterval),
	)
}

// Stop halts the loop and performs a final flush so the tail of the
// session is not dropped on navigation-away or unmount.
func (sc *SyncClient) Stop(ctx context.Context) {
	sc.stopOnce.Do(func() {
		close(sc.stopChan)
	})
	sc.wg.Wait()

	sc.acc.Tick(time.Now())
	if err := sc.Flush(ctx); err != nil {
		sc.logger.Warn("Final flush failed", zap.Error(err))
	}
	sc.logger.Info("Sync client stopped",
		zap.String("session_id", sc.acc.Meta().SessionID),
	)
}

// NotifyHidden triggers an out-of-band flush for a visibility change
// (tab hidden). Failures are logged, not surfaced: telemetry delivery is
// invisible to the end user.
func (sc *SyncClient) NotifyHidden(ctx context.Context) {
	sc.acc.Tick(time.Now())
	if err := sc.Flush(ctx); err != nil {
		sc.logger.Warn("Visibility flush failed", zap.Error(err))
	}
}

// Flush takes the current unflushed delta and, if non-empty, ships it to
// the merge endpoint. On transport or server failure the drained delta is
// restored into the accumulator and retried by a later flush; the
// idempotency key makes a duplicated delivery harmless.
func (sc *SyncClient) Flush(ctx context.Context) error {
	sc.mu.Lock()
	if sc.inFlight {
		// Coalesce into a follow-up run after the current flush lands.
		sc.queued = true
		sc.mu.Unlock()
		return nil
	}
	sc.inFlight = true
	sc.mu.Unlock()

	err := sc.flushOnce(ctx)

	sc.mu.Lock()
	sc.inFlight = false
	rerun := sc.queued
	sc.queued = false
	sc.mu.Unlock()

	if rerun {
		if rerr := sc.Flush(ctx); rerr != nil && err == nil {
			err = rerr
		}
	}
	return err
}

func (sc *SyncClient) flushOnce(ctx context.Context) error {
	delta := sc.acc.TakeUnflushedDelta()
	if delta.Empty() {
		return nil
	}

	if err := delta.Validate(); err != nil {
		// A malformed delta must never leave the client. Dropping it is
		// the only safe option; restoring would wedge every later flush.
		sc.logger.Error("Discarding invalid delta", zap.Error(err))
		return err
	}

	meta := sc.acc.Meta()
	req := &models.MergeRequest{
		SessionID:          meta.SessionID,
		UserID:             meta.UserID,
		Path:               meta.Path,
		PageTitle:          meta.PageTitle,
		ResourceTitle:      meta.ResourceTitle,
		Device:             meta.Device,
		IdempotencyKey:     uuid.NewString(),
		NewEvents:          delta.Events,
		StatsDelta:         delta.Stats,
		TotalDeltaSeconds:  delta.TotalDeltaSeconds,
		ActiveDeltaSeconds: delta.ActiveDeltaSeconds,
	}

	if err := sc.api.AppendAuditLog(ctx, req); err != nil {
		sc.acc.RestoreDelta(delta)
		sc.logger.Warn("Flush failed, delta restored for retry",
			zap.Error(err),
			zap.String("session_id", meta.SessionID),
			zap.Int("event_count", len(delta.Events)),
		)
		return err
	}

	sc.logger.Debug("Delta flushed",
		zap.String("session_id", meta.SessionID),
		zap.Int("event_count", len(delta.Events)),
		zap.Int64("total_delta_seconds", delta.TotalDeltaSeconds),
	)
	return nil
}

func (sc *SyncClient) flushLoop() {
	defer sc.wg.Done()

	ticker := time.NewTicker(sc.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			sc.acc.Tick(time.Now())
			if err := sc.Flush(context.Background()); err != nil {
				sc.logger.Warn("Scheduled flush failed", zap.Error(err))
			}
		case <-sc.stopChan:
			return
		}
	}
}
