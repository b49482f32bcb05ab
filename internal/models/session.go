package models

import "time"

// DeviceClass is a coarse device classification, set once per session.
type DeviceClass string

const (
	DeviceDesktop DeviceClass = "Desktop"
	DeviceMobile  DeviceClass = "Mobile"
	DeviceTablet  DeviceClass = "Tablet"
)

// Interaction counter names matching the backend audit log columns
const (
	StatVideoTime   = "video_time"
	StatAudioTime   = "audio_time"
	StatScrollDepth = "scroll_depth"
	StatMouseClicks = "mouse_clicks"
	StatKeypresses  = "keypresses"
	StatIdleTime    = "idle_time"
)

// InteractionStats holds named non-negative interaction counters.
// scroll_depth is a high-water mark; idle_time is derived (total - active)
// and never accumulated directly.
type InteractionStats map[string]int64

// Add increments a counter. Negative increments are ignored.
func (s InteractionStats) Add(name string, delta int64) {
	if delta <= 0 {
		return
	}
	s[name] = s[name] + delta
}

// Raise lifts a high-water counter, never lowering it.
func (s InteractionStats) Raise(name string, value int64) {
	if value > s[name] {
		s[name] = value
	}
}

// Clone returns an independent copy of the counters.
func (s InteractionStats) Clone() InteractionStats {
	out := make(InteractionStats, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// Merge folds other into s: scroll_depth by maximum, everything else additive.
func (s InteractionStats) Merge(other InteractionStats) {
	for k, v := range other {
		if k == StatScrollDepth {
			s.Raise(k, v)
		} else {
			s.Add(k, v)
		}
	}
}

// AuditEvent is one entry in a session's append-only event sequence.
// Metadata is an open key/value bag whose shape varies by event type.
type AuditEvent struct {
	Type        string         `json:"type"`
	Timestamp   int64          `json:"timestamp"` // Unix timestamp in milliseconds
	Description string         `json:"description"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// Session represents one tracked viewing episode of a path/resource.
// Counters only grow, events are append-only, and active duration never
// exceeds total duration.
type Session struct {
	ID                    string           `json:"id"`
	UserID                string           `json:"user_id,omitempty"`
	Path                  string           `json:"path"`
	PageTitle             string           `json:"page_title"`
	ResourceTitle         *string          `json:"resource_title,omitempty"`
	Device                DeviceClass      `json:"device"`
	TotalDurationSeconds  int64            `json:"total_duration_seconds"`
	ActiveDurationSeconds int64            `json:"active_duration_seconds"`
	InteractionStats      InteractionStats `json:"interaction_stats"`
	Events                []AuditEvent     `json:"events"`
	CreatedAt             time.Time        `json:"created_at"`
	UpdatedAt             time.Time        `json:"updated_at"`
}
