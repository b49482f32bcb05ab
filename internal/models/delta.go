package models

import "fmt"

// ValidationError reports a malformed delta that must not leave the client.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// StatsDelta is the unflushed increment of a session since the last
// successful flush: pending counters plus the pending suffix of events.
// scroll_depth inside Stats carries the current high-water value, not an
// increment.
type StatsDelta struct {
	Stats              InteractionStats `json:"stats"`
	Events             []AuditEvent     `json:"events"`
	TotalDeltaSeconds  int64            `json:"total_delta_seconds"`
	ActiveDeltaSeconds int64            `json:"active_delta_seconds"`
}

// Empty reports whether the delta carries no new information.
func (d *StatsDelta) Empty() bool {
	if d == nil {
		return true
	}
	if len(d.Events) > 0 || d.TotalDeltaSeconds > 0 || d.ActiveDeltaSeconds > 0 {
		return false
	}
	for _, v := range d.Stats {
		if v > 0 {
			return false
		}
	}
	return true
}

// Validate rejects malformed deltas before they leave the client.
func (d *StatsDelta) Validate() error {
	for name, v := range d.Stats {
		if v < 0 {
			return &ValidationError{Field: name, Message: "counter must be non-negative"}
		}
	}
	if d.TotalDeltaSeconds < 0 {
		return &ValidationError{Field: "total_delta_seconds", Message: "must be non-negative"}
	}
	if d.ActiveDeltaSeconds < 0 {
		return &ValidationError{Field: "active_delta_seconds", Message: "must be non-negative"}
	}
	if d.ActiveDeltaSeconds > d.TotalDeltaSeconds {
		return &ValidationError{Field: "active_delta_seconds", Message: "cannot exceed total_delta_seconds"}
	}
	return nil
}

// MergeRequest is the batch merge payload shipped to the audit log backend.
// The server applies it additively: counters are added, events appended in
// order, scroll_depth raised only if greater. The idempotency key lets the
// server drop a replayed flush after a transport failure.
type MergeRequest struct {
	SessionID          string           `json:"session_id"`
	UserID             string           `json:"user_id,omitempty"`
	Path               string           `json:"path"`
	PageTitle          string           `json:"page_title"`
	ResourceTitle      *string          `json:"resource_title,omitempty"`
	Device             DeviceClass      `json:"device,omitempty"`
	IdempotencyKey     string           `json:"idempotency_key"`
	NewEvents          []AuditEvent     `json:"new_events"`
	StatsDelta         InteractionStats `json:"stats_delta"`
	TotalDeltaSeconds  int64            `json:"total_delta_seconds"`
	ActiveDeltaSeconds int64            `json:"active_delta_seconds"`
}

// Validate checks the merge payload before it is sent or applied.
func (r *MergeRequest) Validate() error {
	if r.SessionID == "" {
		return &ValidationError{Field: "session_id", Message: "required"}
	}
	if r.Path == "" {
		return &ValidationError{Field: "path", Message: "required"}
	}
	delta := StatsDelta{
		Stats:              r.StatsDelta,
		Events:             r.NewEvents,
		TotalDeltaSeconds:  r.TotalDeltaSeconds,
		ActiveDeltaSeconds: r.ActiveDeltaSeconds,
	}
	return delta.Validate()
}
