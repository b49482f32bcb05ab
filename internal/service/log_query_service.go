package service

import (
	"context"

	"github.com/timbocorrea/studylog/internal/models"

	"go.uber.org/zap"
)

const (
	defaultPageSize = 50
	defaultRecent   = 10
)

// RowStore is the ordered, range-paginated read side of the audit log.
type RowStore interface {
	ListSummaries(ctx context.Context, page, pageSize int, userID string) ([]*models.Session, error)
	GetDetail(ctx context.Context, id string) (*models.Session, error)
	RecentActivity(ctx context.Context, userID string, limit int) ([]*models.Session, error)
}

// LogQueryService is the two-tier read API over the audit log: cheap
// summary pages for list views, full detail rows fetched on demand.
type LogQueryService struct {
	store  RowStore
	logger *zap.Logger
}

func NewLogQueryService(store RowStore, logger *zap.Logger) *LogQueryService {
	return &LogQueryService{store: store, logger: logger}
}

// ListSummaries returns one zero-based page of summary rows plus the
// hasMore flag: a full page implies more data may follow, a short page
// means the end was reached.
func (s *LogQueryService) ListSummaries(ctx context.Context, page, pageSize int, userID string) ([]*models.Session, bool, error) {
	if page < 0 {
		page = 0
	}
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}

	rows, err := s.store.ListSummaries(ctx, page, pageSize, userID)
	if err != nil {
		s.logger.Error("Failed to list session summaries",
			zap.Error(err),
			zap.Int("page", page),
		)
		return nil, false, err
	}

	return rows, len(rows) == pageSize, nil
}

// GetDetail returns the full projection of one session, or nil when the
// id does not exist. A missing row is a valid empty result, not an error.
func (s *LogQueryService) GetDetail(ctx context.Context, id string) (*models.Session, error) {
	session, err := s.store.GetDetail(ctx, id)
	if err != nil {
		s.logger.Error("Failed to get session detail",
			zap.Error(err),
			zap.String("session_id", id),
		)
		return nil, err
	}
	return session, nil
}

// RecentActivity returns the last limit sessions for one user, for the
// "last N actions" widget.
func (s *LogQueryService) RecentActivity(ctx context.Context, userID string, limit int) ([]*models.Session, error) {
	if limit <= 0 {
		limit = defaultRecent
	}

	rows, err := s.store.RecentActivity(ctx, userID, limit)
	if err != nil {
		s.logger.Error("Failed to get recent activity",
			zap.Error(err),
			zap.String("user_id", userID),
		)
		return nil, err
	}
	return rows, nil
}
