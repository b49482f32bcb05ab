// Package accumulator holds the live, in-memory state of one tracked
// session and exposes only the new information since the last flush.
package accumulator

import (
	"sync"
	"time"

	"github.com/timbocorrea/studylog/internal/models"

	"go.uber.org/zap"
)

// DefaultIdleThreshold is how long without input before clock time stops
// counting as active.
const DefaultIdleThreshold = 30 * time.Second

// SessionMeta is the immutable identity of one tracked episode. The
// resource title may be supplied late, on first flush.
type SessionMeta struct {
	SessionID     string
	UserID        string
	Path          string
	PageTitle     string
	ResourceTitle *string
	Device        models.DeviceClass
}

// SessionAccumulator is the per-session mutable aggregate of interaction
// counters and the append-only event buffer. It is owned by a single
// capturing context; the internal mutex only guards against the flush
// timer racing the recording callbacks.
type SessionAccumulator struct {
	meta          SessionMeta
	idleThreshold time.Duration
	logger        *zap.Logger

	mu            sync.Mutex
	totalStats    models.InteractionStats
	pendingStats  models.InteractionStats
	pendingEvents []models.AuditEvent
	allEvents     []models.AuditEvent
	totalSeconds  int64
	activeSeconds int64
	pendingTotal  int64
	pendingActive int64
	scrollDepth   int64 // lifetime high-water mark
	lastActivity  time.Time
	lastTick      time.Time
	mediaPlaying  bool
	startedAt     time.Time
}

// New creates an accumulator for one session. A zero idleThreshold falls
// back to DefaultIdleThreshold.
func New(meta SessionMeta, idleThreshold time.Duration, logger *zap.Logger) *SessionAccumulator {
	if idleThreshold <= 0 {
		idleThreshold = DefaultIdleThreshold
	}
	now := time.Now()
	return &SessionAccumulator{
		meta:          meta,
		idleThreshold: idleThreshold,
		logger:        logger,
		totalStats:    make(models.InteractionStats),
		pendingStats:  make(models.InteractionStats),
		lastActivity:  now,
		lastTick:      now,
		startedAt:     now,
	}
}

// Meta returns the session identity.
func (a *SessionAccumulator) Meta() SessionMeta {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.meta
}

// SetResourceTitle supplies the resource title late, before first flush.
func (a *SessionAccumulator) SetResourceTitle(title string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.meta.ResourceTitle == nil {
		a.meta.ResourceTitle = &title
	}
}

// RecordEvent appends one audit event to the pending buffer and counts it
// as user activity.
func (a *SessionAccumulator) RecordEvent(event models.AuditEvent) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if event.Timestamp == 0 {
		event.Timestamp = time.Now().UnixMilli()
	}
	a.pendingEvents = append(a.pendingEvents, event)
	a.allEvents = append(a.allEvents, event)
	a.lastActivity = time.Now()
}

// AddStat adds a non-negative increment to a named counter and counts it
// as user activity. scroll_depth must go through RaiseScrollDepth.
func (a *SessionAccumulator) AddStat(name string, delta int64) {
	if delta <= 0 || name == models.StatScrollDepth {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	a.totalStats.Add(name, delta)
	a.pendingStats.Add(name, delta)
	a.lastActivity = time.Now()
}

// RaiseScrollDepth lifts the scroll high-water mark. Lower values are
// ignored; the mark never moves down.
func (a *SessionAccumulator) RaiseScrollDepth(depth int64) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if depth > a.scrollDepth {
		a.scrollDepth = depth
		a.totalStats.Raise(models.StatScrollDepth, depth)
		a.pendingStats.Raise(models.StatScrollDepth, depth)
	}
	a.lastActivity = time.Now()
}

// SetMediaPlaying marks whether audio/video is currently playing; playing
// media keeps the session active regardless of input.
func (a *SessionAccumulator) SetMediaPlaying(playing bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.mediaPlaying = playing
	if playing {
		a.lastActivity = time.Now()
	}
}

// Tick advances the duration clocks to now. Elapsed time counts as active
// when media is playing or the last input was within the idle threshold.
func (a *SessionAccumulator) Tick(now time.Time) {
	a.mu.Lock()
	defer a.mu.Unlock()

	elapsed := int64(now.Sub(a.lastTick).Seconds())
	if elapsed <= 0 {
		return
	}
	a.lastTick = now

	a.totalSeconds += elapsed
	a.pendingTotal += elapsed
	if a.mediaPlaying || now.Sub(a.lastActivity) < a.idleThreshold {
		a.activeSeconds += elapsed
		a.pendingActive += elapsed
	}
}

// TakeUnflushedDelta drains the pending counters and events. A second call
// without intervening records yields an empty delta; the drained increment
// becomes part of the already-sent baseline unless RestoreDelta is called.
func (a *SessionAccumulator) TakeUnflushedDelta() models.StatsDelta {
	a.mu.Lock()
	defer a.mu.Unlock()

	delta := models.StatsDelta{
		Stats:              a.pendingStats,
		Events:             a.pendingEvents,
		TotalDeltaSeconds:  a.pendingTotal,
		ActiveDeltaSeconds: a.pendingActive,
	}
	a.pendingStats = make(models.InteractionStats)
	a.pendingEvents = nil
	a.pendingTotal = 0
	a.pendingActive = 0
	return delta
}

// RestoreDelta folds a drained delta back into the pending state after a
// failed flush, so the increment is retried instead of silently lost.
// Counters merge additively, scroll_depth by maximum, and restored events
// are re-queued ahead of anything recorded since.
func (a *SessionAccumulator) RestoreDelta(delta models.StatsDelta) {
	if delta.Empty() {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	a.pendingStats.Merge(delta.Stats)
	a.pendingTotal += delta.TotalDeltaSeconds
	a.pendingActive += delta.ActiveDeltaSeconds
	if len(delta.Events) > 0 {
		a.pendingEvents = append(append([]models.AuditEvent{}, delta.Events...), a.pendingEvents...)
	}

	if a.logger != nil {
		a.logger.Debug("Delta restored after failed flush",
			zap.String("session_id", a.meta.SessionID),
			zap.Int("event_count", len(delta.Events)),
		)
	}
}

// Dirty reports whether unflushed information exists.
func (a *SessionAccumulator) Dirty() bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	if len(a.pendingEvents) > 0 || a.pendingTotal > 0 || a.pendingActive > 0 {
		return true
	}
	for _, v := range a.pendingStats {
		if v > 0 {
			return true
		}
	}
	return false
}

// Snapshot returns the current lifetime view of the session, including
// the derived idle_time counter.
func (a *SessionAccumulator) Snapshot() *models.Session {
	a.mu.Lock()
	defer a.mu.Unlock()

	stats := a.totalStats.Clone()
	stats[models.StatIdleTime] = a.totalSeconds - a.activeSeconds

	events := make([]models.AuditEvent, len(a.allEvents))
	copy(events, a.allEvents)

	return &models.Session{
		ID:                    a.meta.SessionID,
		UserID:                a.meta.UserID,
		Path:                  a.meta.Path,
		PageTitle:             a.meta.PageTitle,
		ResourceTitle:         a.meta.ResourceTitle,
		Device:                a.meta.Device,
		TotalDurationSeconds:  a.totalSeconds,
		ActiveDurationSeconds: a.activeSeconds,
		InteractionStats:      stats,
		Events:                events,
		CreatedAt:             a.startedAt,
	}
}
