package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/timbocorrea/studylog/internal/database"
	"github.com/timbocorrea/studylog/internal/models"
	"github.com/timbocorrea/studylog/internal/repository"
	"github.com/timbocorrea/studylog/internal/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestHandler(t *testing.T) *AuditHandler {
	t.Helper()

	db, err := database.New(filepath.Join(t.TempDir(), "audit.db"), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	repo := repository.NewSessionRepository(db.DB, zap.NewNop())
	queries := service.NewLogQueryService(repo, zap.NewNop())
	return NewAuditHandler(repo, queries, zap.NewNop())
}

func postAppend(t *testing.T, h *AuditHandler, req *models.MergeRequest, userAgent string) *httptest.ResponseRecorder {
	t.Helper()

	body, err := json.Marshal(req)
	require.NoError(t, err)

	r := httptest.NewRequest(http.MethodPost, "/api/v1/audit/append", bytes.NewReader(body))
	if userAgent != "" {
		r.Header.Set("User-Agent", userAgent)
	}
	w := httptest.NewRecorder()
	h.Append(w, r)
	return w
}

func TestAppendAndGetDetail(t *testing.T) {
	h := newTestHandler(t)

	w := postAppend(t, h, &models.MergeRequest{
		SessionID:          "sess-1",
		UserID:             "user-1",
		Path:               "/courses/go/lesson-1",
		PageTitle:          "Lesson 1",
		IdempotencyKey:     "key-1",
		TotalDeltaSeconds:  60,
		ActiveDeltaSeconds: 45,
		StatsDelta:         models.InteractionStats{models.StatMouseClicks: 3},
		NewEvents: []models.AuditEvent{
			{Type: "page_view", Timestamp: 100, Description: "opened"},
		},
	}, "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X)")
	require.Equal(t, http.StatusOK, w.Code)

	r := httptest.NewRequest(http.MethodGet, "/api/v1/audit/sessions?id=sess-1", nil)
	w = httptest.NewRecorder()
	h.GetDetail(w, r)
	require.Equal(t, http.StatusOK, w.Code)

	var session models.Session
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &session))
	assert.Equal(t, "sess-1", session.ID)
	assert.Equal(t, int64(60), session.TotalDurationSeconds)
	assert.Equal(t, int64(3), session.InteractionStats[models.StatMouseClicks])
	assert.Equal(t, models.DeviceMobile, session.Device, "device class inferred from User-Agent")
	require.Len(t, session.Events, 1)
}

func TestAppendRejectsMalformedDelta(t *testing.T) {
	h := newTestHandler(t)

	w := postAppend(t, h, &models.MergeRequest{
		SessionID:  "sess-1",
		Path:       "/p",
		StatsDelta: models.InteractionStats{models.StatKeypresses: -2},
	}, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListSummaries(t *testing.T) {
	h := newTestHandler(t)

	for i := 0; i < 3; i++ {
		w := postAppend(t, h, &models.MergeRequest{
			SessionID:      "sess-" + string(rune('a'+i)),
			UserID:         "user-1",
			Path:           "/p",
			IdempotencyKey: "key-" + string(rune('a'+i)),
		}, "")
		require.Equal(t, http.StatusOK, w.Code)
	}

	r := httptest.NewRequest(http.MethodGet, "/api/v1/audit/sessions?page=0&page_size=2", nil)
	w := httptest.NewRecorder()
	h.ListSummaries(w, r)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Sessions []*models.Session `json:"sessions"`
		HasMore  bool              `json:"has_more"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Len(t, resp.Sessions, 2)
	assert.True(t, resp.HasMore)
}

func TestGetDetailNotFound(t *testing.T) {
	h := newTestHandler(t)

	r := httptest.NewRequest(http.MethodGet, "/api/v1/audit/sessions?id=nope", nil)
	w := httptest.NewRecorder()
	h.GetDetail(w, r)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRecentActivity(t *testing.T) {
	h := newTestHandler(t)

	w := postAppend(t, h, &models.MergeRequest{
		SessionID:      "sess-1",
		UserID:         "user-1",
		Path:           "/p",
		IdempotencyKey: "key-1",
	}, "")
	require.Equal(t, http.StatusOK, w.Code)

	r := httptest.NewRequest(http.MethodGet, "/api/v1/audit/recent?user_id=user-1&limit=5", nil)
	w = httptest.NewRecorder()
	h.RecentActivity(w, r)
	require.Equal(t, http.StatusOK, w.Code)

	var rows []*models.Session
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rows))
	assert.Len(t, rows, 1)
}

func TestRecentActivityRequiresUserID(t *testing.T) {
	h := newTestHandler(t)

	r := httptest.NewRequest(http.MethodGet, "/api/v1/audit/recent", nil)
	w := httptest.NewRecorder()
	h.RecentActivity(w, r)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
