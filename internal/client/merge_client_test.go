package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/timbocorrea/studylog/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func validMergeRequest() *models.MergeRequest {
	return &models.MergeRequest{
		SessionID:      "sess-1",
		Path:           "/courses/go",
		PageTitle:      "Go",
		IdempotencyKey: "key-1",
		StatsDelta:     models.InteractionStats{models.StatMouseClicks: 1},
	}
}

func TestAppendAuditLogDelivers(t *testing.T) {
	var got models.MergeRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v1/audit/append", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewMergeClient(srv.URL, "test-key", time.Second, zap.NewNop())
	require.NoError(t, c.AppendAuditLog(context.Background(), validMergeRequest()))
	assert.Equal(t, "sess-1", got.SessionID)
	assert.Equal(t, int64(1), got.StatsDelta[models.StatMouseClicks])
}

func TestAppendAuditLogStatusErrors(t *testing.T) {
	tests := []struct {
		status int
		check  func(t *testing.T, err error)
	}{
		{http.StatusUnauthorized, func(t *testing.T, err error) {
			var e *AuthError
			require.ErrorAs(t, err, &e)
		}},
		{http.StatusTooManyRequests, func(t *testing.T, err error) {
			var e *RateLimitError
			require.ErrorAs(t, err, &e)
		}},
		{http.StatusBadRequest, func(t *testing.T, err error) {
			var e *BadRequestError
			require.ErrorAs(t, err, &e)
		}},
		{http.StatusInternalServerError, func(t *testing.T, err error) {
			var e *BackendError
			require.ErrorAs(t, err, &e)
		}},
	}

	for _, tt := range tests {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(tt.status)
		}))
		c := NewMergeClient(srv.URL, "", time.Second, zap.NewNop())
		err := c.AppendAuditLog(context.Background(), validMergeRequest())
		require.Error(t, err)
		tt.check(t, err)
		srv.Close()
	}
}

func TestAppendAuditLogTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	srv.Close() // connection refused from now on

	c := NewMergeClient(srv.URL, "", time.Second, zap.NewNop())
	err := c.AppendAuditLog(context.Background(), validMergeRequest())

	var terr *TransportError
	require.ErrorAs(t, err, &terr)
}

func TestAppendAuditLogValidatesBeforeSending(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		called = true
	}))
	defer srv.Close()

	c := NewMergeClient(srv.URL, "", time.Second, zap.NewNop())
	req := validMergeRequest()
	req.StatsDelta[models.StatKeypresses] = -1

	err := c.AppendAuditLog(context.Background(), req)
	var verr *models.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.False(t, called, "malformed delta must never leave the client")
}

func TestHealthCheck(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/health", r.URL.Path)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewMergeClient(srv.URL, "", time.Second, zap.NewNop())
	assert.NoError(t, c.HealthCheck(context.Background()))
}
