// Package presenter drives a scrollable, filterable, paginated review
// surface over the audit log. It composes the query service, the scoring
// function and the windowing arithmetic; the rendering surface only
// consumes the computed row range and offsets.
package presenter

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/timbocorrea/studylog/internal/models"
	"github.com/timbocorrea/studylog/internal/scoring"
	"github.com/timbocorrea/studylog/internal/window"

	"go.uber.org/zap"
)

// DetailPhase is the drill-down state:
// Closed -> Loading -> {Ready | Missing | Failed} -> Closed.
type DetailPhase string

const (
	DetailClosed  DetailPhase = "closed"
	DetailLoading DetailPhase = "loading"
	DetailReady   DetailPhase = "ready"
	DetailMissing DetailPhase = "missing"
	DetailFailed  DetailPhase = "failed"
)

// DetailView is the current drill-down state plus its session, when ready.
type DetailView struct {
	Phase     DetailPhase
	SessionID string
	Session   *models.Session
}

// Filter narrows the already-loaded summaries client-side. A filter change
// alone never re-queries the remote store.
type Filter struct {
	DatePrefix string       // RFC3339 prefix of creation time, "" = all
	Tier       scoring.Tier // engagement tier bucket, "" = all
}

// Row is one summary row with its derived engagement score.
type Row struct {
	Session *models.Session
	Score   int
	Tier    scoring.Tier
}

// QueryAPI is the read surface the presenter depends on.
type QueryAPI interface {
	ListSummaries(ctx context.Context, page, pageSize int, userID string) ([]*models.Session, bool, error)
	GetDetail(ctx context.Context, id string) (*models.Session, error)
}

// Config tunes one presenter instance.
type Config struct {
	PageSize       int
	ItemHeight     int
	Overscan       int
	ScrollThrottle time.Duration
	UserID         string
}

const (
	defaultPageSize       = 20
	defaultItemHeight     = 68
	defaultScrollThrottle = 50 * time.Millisecond
)

// ReviewPresenter tracks the loaded summary set, the active filter, the
// scroll metrics and the drill-down state.
type ReviewPresenter struct {
	queries QueryAPI
	cfg     Config
	logger  *zap.Logger

	mu          sync.Mutex
	loaded      []Row
	visible     []Row
	page        int
	endReached  bool
	loadingMore bool
	loadFailed  bool
	filter      Filter

	detail    DetailView
	detailGen uint64

	scrollTop      int
	viewportHeight int
	rng            window.Range
	lastCompute    time.Time
	throttleTimer  *time.Timer
}

// New creates a presenter. Zero config fields fall back to defaults.
func New(queries QueryAPI, cfg Config, logger *zap.Logger) *ReviewPresenter {
	if cfg.PageSize <= 0 {
		cfg.PageSize = defaultPageSize
	}
	if cfg.ItemHeight <= 0 {
		cfg.ItemHeight = defaultItemHeight
	}
	if cfg.Overscan <= 0 {
		cfg.Overscan = window.DefaultOverscan
	}
	if cfg.ScrollThrottle <= 0 {
		cfg.ScrollThrottle = defaultScrollThrottle
	}
	return &ReviewPresenter{
		queries: queries,
		cfg:     cfg,
		logger:  logger,
		detail:  DetailView{Phase: DetailClosed},
	}
}

// LoadMore requests the next summary page and appends it to the loaded
// set. It is a no-op once the end of data was reached, and a request
// arriving while one is outstanding is ignored rather than duplicated.
func (p *ReviewPresenter) LoadMore(ctx context.Context) error {
	p.mu.Lock()
	if p.loadingMore || p.endReached {
		p.mu.Unlock()
		return nil
	}
	p.loadingMore = true
	page := p.page
	p.mu.Unlock()

	rows, hasMore, err := p.queries.ListSummaries(ctx, page, p.cfg.PageSize, p.cfg.UserID)

	p.mu.Lock()
	defer p.mu.Unlock()
	p.loadingMore = false

	if err != nil {
		// Degraded state: the view shows "could not load" instead of
		// presenting stale rows as current.
		p.loadFailed = true
		p.logger.Warn("Failed to load summary page",
			zap.Error(err),
			zap.Int("page", page),
		)
		return err
	}

	p.loadFailed = false
	for _, session := range rows {
		score, tier := scoring.Evaluate(session.ActiveDurationSeconds, session.TotalDurationSeconds)
		p.loaded = append(p.loaded, Row{Session: session, Score: score, Tier: tier})
	}
	p.page++
	p.endReached = !hasMore
	p.rebuildVisibleLocked()
	p.computeWindowLocked(time.Now())
	return nil
}

// ApplyFilter re-derives the visible subset of the already-loaded rows.
func (p *ReviewPresenter) ApplyFilter(filter Filter) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.filter = filter
	p.rebuildVisibleLocked()
	p.computeWindowLocked(time.Now())
}

// Open starts a drill-down into one session. If another Open (or Close)
// happens before the detail fetch resolves, the stale result is discarded
// silently instead of overwriting the newer selection.
func (p *ReviewPresenter) Open(ctx context.Context, sessionID string) error {
	p.mu.Lock()
	p.detailGen++
	gen := p.detailGen
	p.detail = DetailView{Phase: DetailLoading, SessionID: sessionID}
	p.mu.Unlock()

	session, err := p.queries.GetDetail(ctx, sessionID)

	p.mu.Lock()
	defer p.mu.Unlock()
	if gen != p.detailGen {
		// Superseded while in flight.
		p.logger.Debug("Discarding stale detail response",
			zap.String("session_id", sessionID),
		)
		return nil
	}

	switch {
	case err != nil:
		p.detail = DetailView{Phase: DetailFailed, SessionID: sessionID}
		p.logger.Warn("Failed to load session detail",
			zap.Error(err),
			zap.String("session_id", sessionID),
		)
		return err
	case session == nil:
		p.detail = DetailView{Phase: DetailMissing, SessionID: sessionID}
	default:
		p.detail = DetailView{Phase: DetailReady, SessionID: sessionID, Session: session}
	}
	return nil
}

// CloseDetail returns the drill-down to Closed. Closing is always
// possible; an in-flight fetch for the closed session is discarded on
// arrival.
func (p *ReviewPresenter) CloseDetail() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.detailGen++
	p.detail = DetailView{Phase: DetailClosed}
}

// Detail returns the current drill-down state.
func (p *ReviewPresenter) Detail() DetailView {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.detail
}

// HandleScroll records a new scroll offset and recomputes the render
// window through the rate limiter.
func (p *ReviewPresenter) HandleScroll(scrollTop int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.scrollTop = scrollTop
	p.throttledComputeLocked()
}

// HandleResize records a new viewport height and recomputes the render
// window through the rate limiter.
func (p *ReviewPresenter) HandleResize(viewportHeight int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.viewportHeight = viewportHeight
	p.throttledComputeLocked()
}

// Window returns the current render range.
func (p *ReviewPresenter) Window() window.Range {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.rng
}

// WindowedRows returns the visible rows inside the current render range,
// the only slice a rendering surface needs to materialize.
func (p *ReviewPresenter) WindowedRows() []Row {
	p.mu.Lock()
	defer p.mu.Unlock()

	start, end := p.rng.StartIndex, p.rng.EndIndex
	if start > len(p.visible) {
		start = len(p.visible)
	}
	if end > len(p.visible) {
		end = len(p.visible)
	}
	out := make([]Row, end-start)
	copy(out, p.visible[start:end])
	return out
}

// Rows returns the filtered view of all loaded rows.
func (p *ReviewPresenter) Rows() []Row {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Row, len(p.visible))
	copy(out, p.visible)
	return out
}

// LoadFailed reports whether the last page load failed, for the degraded
// "could not load" rendering.
func (p *ReviewPresenter) LoadFailed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.loadFailed
}

// EndReached reports whether the final page was seen.
func (p *ReviewPresenter) EndReached() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.endReached
}

func (p *ReviewPresenter) rebuildVisibleLocked() {
	p.visible = p.visible[:0]
	for _, row := range p.loaded {
		if p.filter.DatePrefix != "" {
			created := row.Session.CreatedAt.Format(time.RFC3339)
			if !strings.HasPrefix(created, p.filter.DatePrefix) {
				continue
			}
		}
		if p.filter.Tier != "" && row.Tier != p.filter.Tier {
			continue
		}
		p.visible = append(p.visible, row)
	}
}

// throttledComputeLocked recomputes immediately when outside the throttle
// interval, otherwise schedules one trailing recomputation so the last
// scroll position always lands.
func (p *ReviewPresenter) throttledComputeLocked() {
	now := time.Now()
	if now.Sub(p.lastCompute) >= p.cfg.ScrollThrottle {
		p.computeWindowLocked(now)
		return
	}
	if p.throttleTimer == nil {
		delay := p.cfg.ScrollThrottle - now.Sub(p.lastCompute)
		p.throttleTimer = time.AfterFunc(delay, func() {
			p.mu.Lock()
			defer p.mu.Unlock()
			p.throttleTimer = nil
			p.computeWindowLocked(time.Now())
		})
	}
}

func (p *ReviewPresenter) computeWindowLocked(now time.Time) {
	p.rng = window.Compute(window.Params{
		ItemCount:      len(p.visible),
		ItemHeight:     p.cfg.ItemHeight,
		ViewportHeight: p.viewportHeight,
		ScrollTop:      p.scrollTop,
		Overscan:       p.cfg.Overscan,
	})
	p.lastCompute = now
}
