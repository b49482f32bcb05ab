package router

import (
	"net/http"

	"github.com/timbocorrea/studylog/internal/handler"

	"go.uber.org/zap"
)

func New(auditHandler *handler.AuditHandler, logger *zap.Logger) http.Handler {
	mux := http.NewServeMux()

	// Health check endpoint
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})

	// Audit log endpoints
	mux.HandleFunc("/api/v1/audit/append", auditHandler.Append)
	mux.HandleFunc("/api/v1/audit/sessions", func(w http.ResponseWriter, r *http.Request) {
		// A single detail row or a summary page
		if r.URL.Query().Get("id") != "" {
			auditHandler.GetDetail(w, r)
		} else {
			auditHandler.ListSummaries(w, r)
		}
	})
	mux.HandleFunc("/api/v1/audit/recent", auditHandler.RecentActivity)

	// Logging middleware
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger.Info("HTTP request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("remote_addr", r.RemoteAddr),
		)
		mux.ServeHTTP(w, r)
	})
}
