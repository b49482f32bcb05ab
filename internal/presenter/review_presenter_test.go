package presenter

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/timbocorrea/studylog/internal/models"
	"github.com/timbocorrea/studylog/internal/scoring"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeQueryAPI struct {
	mu        sync.Mutex
	sessions  []*models.Session
	failList  bool
	failGet   bool
	listCalls int
	blockGet  chan struct{} // when set, GetDetail blocks until closed
}

func (f *fakeQueryAPI) ListSummaries(_ context.Context, page, pageSize int, _ string) ([]*models.Session, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	if f.failList {
		return nil, false, errors.New("connection reset")
	}
	start := page * pageSize
	if start >= len(f.sessions) {
		return nil, false, nil
	}
	end := start + pageSize
	if end > len(f.sessions) {
		end = len(f.sessions)
	}
	rows := f.sessions[start:end]
	return rows, len(rows) == pageSize, nil
}

func (f *fakeQueryAPI) GetDetail(_ context.Context, id string) (*models.Session, error) {
	f.mu.Lock()
	block := f.blockGet
	failGet := f.failGet
	f.mu.Unlock()
	if block != nil {
		<-block
	}
	if failGet {
		return nil, errors.New("connection reset")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.sessions {
		if s.ID == id {
			return s, nil
		}
	}
	return nil, nil
}

func makeSessions(n int) []*models.Session {
	base := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)
	out := make([]*models.Session, n)
	for i := range out {
		// Alternate engagement levels so tier filtering has both buckets.
		active := int64(90)
		if i%2 == 1 {
			active = 30
		}
		out[i] = &models.Session{
			ID:                    fmt.Sprintf("sess-%02d", i),
			Path:                  "/courses/go",
			TotalDurationSeconds:  100,
			ActiveDurationSeconds: active,
			CreatedAt:             base.Add(time.Duration(i) * time.Hour),
		}
	}
	return out
}

func newTestPresenter(api QueryAPI) *ReviewPresenter {
	return New(api, Config{
		PageSize:       20,
		ItemHeight:     68,
		Overscan:       5,
		ScrollThrottle: time.Nanosecond,
	}, zap.NewNop())
}

func TestLoadMorePaginates(t *testing.T) {
	api := &fakeQueryAPI{sessions: makeSessions(27)}
	p := newTestPresenter(api)
	ctx := context.Background()

	require.NoError(t, p.LoadMore(ctx))
	assert.Len(t, p.Rows(), 20)
	assert.False(t, p.EndReached())

	require.NoError(t, p.LoadMore(ctx))
	assert.Len(t, p.Rows(), 27)
	assert.True(t, p.EndReached())

	// End of data: further calls never hit the store again.
	calls := api.listCalls
	require.NoError(t, p.LoadMore(ctx))
	assert.Equal(t, calls, api.listCalls)
}

func TestLoadMoreScoresRows(t *testing.T) {
	api := &fakeQueryAPI{sessions: makeSessions(2)}
	p := newTestPresenter(api)

	require.NoError(t, p.LoadMore(context.Background()))
	rows := p.Rows()
	require.Len(t, rows, 2)
	assert.Equal(t, 90, rows[0].Score)
	assert.Equal(t, scoring.TierProductive, rows[0].Tier)
	assert.Equal(t, 30, rows[1].Score)
	assert.Equal(t, scoring.TierIdle, rows[1].Tier)
}

func TestLoadMoreConcurrentCallIgnored(t *testing.T) {
	api := &fakeQueryAPI{sessions: makeSessions(5)}
	p := newTestPresenter(api)

	// Simulate an outstanding request.
	p.mu.Lock()
	p.loadingMore = true
	p.mu.Unlock()

	require.NoError(t, p.LoadMore(context.Background()))
	assert.Zero(t, api.listCalls, "double-click must not issue a second request")
}

func TestLoadMoreFailureIsDegradedNotFatal(t *testing.T) {
	api := &fakeQueryAPI{failList: true}
	p := newTestPresenter(api)

	require.Error(t, p.LoadMore(context.Background()))
	assert.True(t, p.LoadFailed())
	assert.Empty(t, p.Rows())

	// Recovery clears the degraded state.
	api.mu.Lock()
	api.failList = false
	api.sessions = makeSessions(3)
	api.mu.Unlock()
	require.NoError(t, p.LoadMore(context.Background()))
	assert.False(t, p.LoadFailed())
	assert.Len(t, p.Rows(), 3)
}

func TestApplyFilterTier(t *testing.T) {
	api := &fakeQueryAPI{sessions: makeSessions(10)}
	p := newTestPresenter(api)
	require.NoError(t, p.LoadMore(context.Background()))

	p.ApplyFilter(Filter{Tier: scoring.TierProductive})
	rows := p.Rows()
	require.Len(t, rows, 5)
	for _, r := range rows {
		assert.Equal(t, scoring.TierProductive, r.Tier)
	}

	p.ApplyFilter(Filter{})
	assert.Len(t, p.Rows(), 10)
}

func TestApplyFilterDatePrefix(t *testing.T) {
	api := &fakeQueryAPI{sessions: makeSessions(30)} // spans into 2026-09-02
	p := newTestPresenter(api)
	require.NoError(t, p.LoadMore(context.Background()))
	require.NoError(t, p.LoadMore(context.Background()))

	p.ApplyFilter(Filter{DatePrefix: "2026-09-01"})
	for _, r := range p.Rows() {
		assert.Equal(t, "2026-09-01", r.Session.CreatedAt.Format("2006-01-02"))
	}
	assert.Len(t, p.Rows(), 14) // 10:00 through 23:00 on the first day

	// Filtering alone never re-queries the store.
	calls := api.listCalls
	p.ApplyFilter(Filter{DatePrefix: "2026-09-02"})
	assert.Equal(t, calls, api.listCalls)
}

func TestOpenDetailStateMachine(t *testing.T) {
	api := &fakeQueryAPI{sessions: makeSessions(3)}
	p := newTestPresenter(api)
	ctx := context.Background()

	assert.Equal(t, DetailClosed, p.Detail().Phase)

	require.NoError(t, p.Open(ctx, "sess-01"))
	view := p.Detail()
	assert.Equal(t, DetailReady, view.Phase)
	require.NotNil(t, view.Session)
	assert.Equal(t, "sess-01", view.Session.ID)

	p.CloseDetail()
	assert.Equal(t, DetailClosed, p.Detail().Phase)

	require.NoError(t, p.Open(ctx, "nope"))
	assert.Equal(t, DetailMissing, p.Detail().Phase)

	api.mu.Lock()
	api.failGet = true
	api.mu.Unlock()
	require.Error(t, p.Open(ctx, "sess-02"))
	assert.Equal(t, DetailFailed, p.Detail().Phase)
}

func TestOpenSupersededResponseDiscarded(t *testing.T) {
	api := &fakeQueryAPI{sessions: makeSessions(3)}
	p := newTestPresenter(api)
	ctx := context.Background()

	block := make(chan struct{})
	api.mu.Lock()
	api.blockGet = block
	api.mu.Unlock()

	firstDone := make(chan struct{})
	go func() {
		_ = p.Open(ctx, "sess-00")
		close(firstDone)
	}()

	require.Eventually(t, func() bool {
		return p.Detail().Phase == DetailLoading
	}, time.Second, time.Millisecond)

	// The user opens a different session before the first detail resolves.
	api.mu.Lock()
	api.blockGet = nil
	api.mu.Unlock()
	require.NoError(t, p.Open(ctx, "sess-02"))
	require.Equal(t, "sess-02", p.Detail().SessionID)

	close(block)
	<-firstDone

	view := p.Detail()
	assert.Equal(t, DetailReady, view.Phase)
	assert.Equal(t, "sess-02", view.SessionID, "stale response must not overwrite the newer selection")
}

func TestCloseDiscardsInFlightDetail(t *testing.T) {
	api := &fakeQueryAPI{sessions: makeSessions(1)}
	p := newTestPresenter(api)

	block := make(chan struct{})
	api.mu.Lock()
	api.blockGet = block
	api.mu.Unlock()

	done := make(chan struct{})
	go func() {
		_ = p.Open(context.Background(), "sess-00")
		close(done)
	}()
	require.Eventually(t, func() bool {
		return p.Detail().Phase == DetailLoading
	}, time.Second, time.Millisecond)

	p.CloseDetail()
	close(block)
	<-done

	assert.Equal(t, DetailClosed, p.Detail().Phase)
}

func TestWindowFollowsScroll(t *testing.T) {
	api := &fakeQueryAPI{sessions: makeSessions(100)}
	p := New(api, Config{
		PageSize:       100,
		ItemHeight:     68,
		Overscan:       5,
		ScrollThrottle: time.Nanosecond,
	}, zap.NewNop())
	require.NoError(t, p.LoadMore(context.Background()))

	p.HandleResize(500)
	p.HandleScroll(2000)

	rng := p.Window()
	assert.Equal(t, 24, rng.StartIndex)
	assert.Equal(t, 42, rng.EndIndex)
	assert.Equal(t, 1632, rng.TopOffset)

	rows := p.WindowedRows()
	assert.Len(t, rows, 18)
	assert.Equal(t, "sess-24", rows[0].Session.ID)
}

func TestScrollThrottleAppliesTrailingPosition(t *testing.T) {
	api := &fakeQueryAPI{sessions: makeSessions(100)}
	p := New(api, Config{
		PageSize:       100,
		ItemHeight:     68,
		Overscan:       5,
		ScrollThrottle: 30 * time.Millisecond,
	}, zap.NewNop())
	require.NoError(t, p.LoadMore(context.Background()))
	p.HandleResize(500)

	// A burst of scroll positions inside one throttle interval.
	p.HandleScroll(100)
	p.HandleScroll(800)
	p.HandleScroll(2000)

	require.Eventually(t, func() bool {
		return p.Window().StartIndex == 24
	}, time.Second, time.Millisecond, "the last scroll position must land after the throttle interval")
}
