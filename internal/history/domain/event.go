package domain

import "time"

// Event is one append-only audit record. Events are never updated or
// deleted.
type Event struct {
	ID        string         `json:"id"`
	UserID    string         `json:"userId"`
	EventType string         `json:"eventType"`
	Meta      map[string]any `json:"meta,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}
