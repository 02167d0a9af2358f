package models

import "time"

// Event represents a loggable action or alert in the system.
type Event struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`  // e.g. "post.created", "reconcile.artifact"
	Level     string    `json:"level"` // e.g. "info", "warn", "error"
	Message   string    `json:"message"`
	PostID    *string   `json:"postId,omitempty"` // Nullable for system-wide events
	CreatedAt time.Time `json:"createdAt"`
}
