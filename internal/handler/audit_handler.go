package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/timbocorrea/studylog/internal/device"
	"github.com/timbocorrea/studylog/internal/models"
	"github.com/timbocorrea/studylog/internal/repository"
	"github.com/timbocorrea/studylog/internal/service"

	"go.uber.org/zap"
)

type AuditHandler struct {
	repo    *repository.SessionRepository
	queries *service.LogQueryService
	logger  *zap.Logger
}

func NewAuditHandler(repo *repository.SessionRepository, queries *service.LogQueryService, logger *zap.Logger) *AuditHandler {
	return &AuditHandler{
		repo:    repo,
		queries: queries,
		logger:  logger,
	}
}

// Append applies one batched merge request to the audit log.
func (h *AuditHandler) Append(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req models.MergeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Error("Failed to decode merge request", zap.Error(err))
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if req.Device == "" {
		req.Device = device.Classify(r.Header.Get("User-Agent"))
	}

	if err := h.repo.AppendAuditLog(r.Context(), &req); err != nil {
		var verr *models.ValidationError
		if errors.As(err, &verr) {
			h.logger.Warn("Rejected malformed delta", zap.Error(err))
			http.Error(w, verr.Error(), http.StatusBadRequest)
			return
		}
		h.logger.Error("Failed to append audit log", zap.Error(err))
		http.Error(w, "Failed to append audit log", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}

// ListSummaries returns one page of lightweight session rows.
func (h *AuditHandler) ListSummaries(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	page := 0
	pageSize := 20
	if pageStr := r.URL.Query().Get("page"); pageStr != "" {
		if p, err := strconv.Atoi(pageStr); err == nil {
			page = p
		}
	}
	if sizeStr := r.URL.Query().Get("page_size"); sizeStr != "" {
		if s, err := strconv.Atoi(sizeStr); err == nil {
			pageSize = s
		}
	}
	userID := r.URL.Query().Get("user_id")

	rows, hasMore, err := h.queries.ListSummaries(r.Context(), page, pageSize, userID)
	if err != nil {
		h.logger.Error("Failed to list session summaries", zap.Error(err))
		http.Error(w, "Failed to list sessions", http.StatusInternalServerError)
		return
	}
	if rows == nil {
		rows = []*models.Session{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"sessions": rows,
		"has_more": hasMore,
	})
}

// GetDetail returns the full projection of one session.
func (h *AuditHandler) GetDetail(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	id := r.URL.Query().Get("id")
	if id == "" {
		http.Error(w, "Missing id parameter", http.StatusBadRequest)
		return
	}

	session, err := h.queries.GetDetail(r.Context(), id)
	if err != nil {
		h.logger.Error("Failed to get session detail", zap.Error(err))
		http.Error(w, "Failed to get session", http.StatusInternalServerError)
		return
	}
	if session == nil {
		http.Error(w, "Session not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(session)
}

// RecentActivity returns the last N sessions for one user.
func (h *AuditHandler) RecentActivity(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		http.Error(w, "Missing user_id parameter", http.StatusBadRequest)
		return
	}

	limit := 10
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil {
			limit = l
		}
	}

	rows, err := h.queries.RecentActivity(r.Context(), userID, limit)
	if err != nil {
		h.logger.Error("Failed to get recent activity", zap.Error(err))
		http.Error(w, "Failed to get recent activity", http.StatusInternalServerError)
		return
	}
	if rows == nil {
		rows = []*models.Session{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(rows)
}
