// Package cache keeps the last known notification feed so a bell can render it when a fetch fails.
package cache

import (
	"context"
	"time"

	"crimewatch/backend/internal/models"
)

// Snapshot is the last known state of one feed.
type Snapshot struct {
	Items   []models.Notification `json:"items"`
	Unread  int                   `json:"unread"`
	SavedAt time.Time             `json:"saved_at"`
}

// Store is last-writer-wins. Entries older than the store's max age are treated as absent.
type Store interface {
	Get(ctx context.Context, key string) (*Snapshot, bool)
	Set(ctx context.Context, key string, s Snapshot) error
	Invalidate(ctx context.Context, key string) error
}

func clone(s Snapshot) *Snapshot {
	out := s
	out.Items = append([]models.Notification(nil), s.Items...)
	return &out
}
