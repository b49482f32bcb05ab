package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/timbocorrea/studylog/internal/models"

	"go.uber.org/zap"
)

// SessionRepository is the durable, append-only session store. Merges are
// additive and events preserve receipt order, so concurrent clients never
// need locks on their side.
type SessionRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewSessionRepository(db *sql.DB, logger *zap.Logger) *SessionRepository {
	return &SessionRepository{db: db, logger: logger}
}

// AppendAuditLog applies one merge request atomically: the session row is
// created or counter-incremented, scroll_depth is raised only if greater,
// and new events are appended preserving order. A request whose
// idempotency key was already applied is a no-op.
func (r *SessionRepository) AppendAuditLog(ctx context.Context, req *models.MergeRequest) error {
	if err := req.Validate(); err != nil {
		return err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if req.IdempotencyKey != "" {
		res, err := tx.ExecContext(ctx, `
			INSERT INTO applied_flushes (idempotency_key, session_id)
			VALUES (?, ?)
			ON CONFLICT(idempotency_key) DO NOTHING
		`, req.IdempotencyKey, req.SessionID)
		if err != nil {
			return fmt.Errorf("failed to record flush key: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		}
		if affected == 0 {
			r.logger.Debug("Replayed flush ignored",
				zap.String("session_id", req.SessionID),
				zap.String("idempotency_key", req.IdempotencyKey),
			)
			return tx.Commit()
		}
	}

	device := req.Device
	if device == "" {
		device = models.DeviceDesktop
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO audit_sessions
			(id, user_id, path, page_title, resource_title, device,
			 total_seconds, active_seconds,
			 video_time, audio_time, scroll_depth, mouse_clicks, keypresses)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			total_seconds  = total_seconds + excluded.total_seconds,
			active_seconds = active_seconds + excluded.active_seconds,
			video_time     = video_time + excluded.video_time,
			audio_time     = audio_time + excluded.audio_time,
			scroll_depth   = MAX(scroll_depth, excluded.scroll_depth),
			mouse_clicks   = mouse_clicks + excluded.mouse_clicks,
			keypresses     = keypresses + excluded.keypresses,
			resource_title = COALESCE(resource_title, excluded.resource_title),
			updated_at     = CURRENT_TIMESTAMP
	`,
		req.SessionID,
		req.UserID,
		req.Path,
		req.PageTitle,
		req.ResourceTitle,
		string(device),
		req.TotalDeltaSeconds,
		req.ActiveDeltaSeconds,
		req.StatsDelta[models.StatVideoTime],
		req.StatsDelta[models.StatAudioTime],
		req.StatsDelta[models.StatScrollDepth],
		req.StatsDelta[models.StatMouseClicks],
		req.StatsDelta[models.StatKeypresses],
	)
	if err != nil {
		return fmt.Errorf("failed to merge session: %w", err)
	}

	if len(req.NewEvents) > 0 {
		var nextSeq int64
		err := tx.QueryRowContext(ctx, `
			SELECT COALESCE(MAX(seq), 0) FROM audit_events WHERE session_id = ?
		`, req.SessionID).Scan(&nextSeq)
		if err != nil {
			return fmt.Errorf("failed to read event sequence: %w", err)
		}

		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO audit_events (session_id, seq, event_type, timestamp, description, metadata)
			VALUES (?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return fmt.Errorf("failed to prepare statement: %w", err)
		}
		defer stmt.Close()

		for i, event := range req.NewEvents {
			var metadata any
			if event.Metadata != nil {
				data, err := json.Marshal(event.Metadata)
				if err != nil {
					r.logger.Error("Failed to marshal event metadata",
						zap.Error(err),
						zap.String("session_id", req.SessionID),
					)
				} else {
					metadata = string(data)
				}
			}

			_, err = stmt.ExecContext(ctx,
				req.SessionID,
				nextSeq+int64(i)+1,
				event.Type,
				event.Timestamp,
				event.Description,
				metadata,
			)
			if err != nil {
				return fmt.Errorf("failed to append event: %w", err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	r.logger.Debug("Merge applied",
		zap.String("session_id", req.SessionID),
		zap.Int("event_count", len(req.NewEvents)),
	)
	return nil
}

const summaryColumns = `id, user_id, path, page_title, resource_title, device,
	total_seconds, active_seconds, created_at, updated_at`

// ListSummaries returns the lightweight projection of sessions, ordered by
// creation time descending. Page is zero-based; userID narrows to one
// actor when non-empty. Interaction stats and events are always empty in
// the returned rows.
func (r *SessionRepository) ListSummaries(ctx context.Context, page, pageSize int, userID string) ([]*models.Session, error) {
	offset := page * pageSize

	var (
		rows *sql.Rows
		err  error
	)
	if userID != "" {
		rows, err = r.db.QueryContext(ctx, `
			SELECT `+summaryColumns+`
			FROM audit_sessions
			WHERE user_id = ?
			ORDER BY created_at DESC, id DESC
			LIMIT ? OFFSET ?
		`, userID, pageSize, offset)
	} else {
		rows, err = r.db.QueryContext(ctx, `
			SELECT `+summaryColumns+`
			FROM audit_sessions
			ORDER BY created_at DESC, id DESC
			LIMIT ? OFFSET ?
		`, pageSize, offset)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query summaries: %w", err)
	}
	defer rows.Close()

	return scanSummaries(rows)
}

// RecentActivity returns the last limit sessions for one user, same shape
// as a summary row. Not pagination-aware.
func (r *SessionRepository) RecentActivity(ctx context.Context, userID string, limit int) ([]*models.Session, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+summaryColumns+`
		FROM audit_sessions
		WHERE user_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent activity: %w", err)
	}
	defer rows.Close()

	return scanSummaries(rows)
}

// GetDetail returns the full projection of one session, including
// interaction stats and the ordered event log. A missing id yields
// (nil, nil), not an error.
func (r *SessionRepository) GetDetail(ctx context.Context, id string) (*models.Session, error) {
	var (
		session     models.Session
		videoTime   int64
		audioTime   int64
		scrollDepth int64
		mouseClicks int64
		keypresses  int64
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, path, page_title, resource_title, device,
			total_seconds, active_seconds,
			video_time, audio_time, scroll_depth, mouse_clicks, keypresses,
			created_at, updated_at
		FROM audit_sessions
		WHERE id = ?
	`, id).Scan(
		&session.ID,
		&session.UserID,
		&session.Path,
		&session.PageTitle,
		&session.ResourceTitle,
		&session.Device,
		&session.TotalDurationSeconds,
		&session.ActiveDurationSeconds,
		&videoTime,
		&audioTime,
		&scrollDepth,
		&mouseClicks,
		&keypresses,
		&session.CreatedAt,
		&session.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	session.InteractionStats = models.InteractionStats{
		models.StatVideoTime:   videoTime,
		models.StatAudioTime:   audioTime,
		models.StatScrollDepth: scrollDepth,
		models.StatMouseClicks: mouseClicks,
		models.StatKeypresses:  keypresses,
		models.StatIdleTime:    session.TotalDurationSeconds - session.ActiveDurationSeconds,
	}

	events, err := r.loadEvents(ctx, id)
	if err != nil {
		return nil, err
	}
	session.Events = events

	return &session, nil
}

func (r *SessionRepository) loadEvents(ctx context.Context, sessionID string) ([]models.AuditEvent, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT event_type, timestamp, description, metadata
		FROM audit_events
		WHERE session_id = ?
		ORDER BY seq ASC
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	var events []models.AuditEvent
	for rows.Next() {
		var (
			event    models.AuditEvent
			metadata sql.NullString
		)
		if err := rows.Scan(&event.Type, &event.Timestamp, &event.Description, &metadata); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		if metadata.Valid && metadata.String != "" {
			if err := json.Unmarshal([]byte(metadata.String), &event.Metadata); err != nil {
				r.logger.Error("Failed to unmarshal event metadata",
					zap.Error(err),
					zap.String("session_id", sessionID),
				)
			}
		}
		events = append(events, event)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return events, nil
}

func scanSummaries(rows *sql.Rows) ([]*models.Session, error) {
	var sessions []*models.Session
	for rows.Next() {
		var (
			session   models.Session
			createdAt time.Time
			updatedAt time.Time
		)
		err := rows.Scan(
			&session.ID,
			&session.UserID,
			&session.Path,
			&session.PageTitle,
			&session.ResourceTitle,
			&session.Device,
			&session.TotalDurationSeconds,
			&session.ActiveDurationSeconds,
			&createdAt,
			&updatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan summary: %w", err)
		}
		session.CreatedAt = createdAt
		session.UpdatedAt = updatedAt
		session.InteractionStats = models.InteractionStats{}
		session.Events = []models.AuditEvent{}
		sessions = append(sessions, &session)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return sessions, nil
}
