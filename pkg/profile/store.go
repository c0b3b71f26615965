// Package profile stores per-user profile records keyed by principal id.
package profile

import (
	"context"
	"time"
)

// Profile is a user's editable account record.
type Profile struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Website   string    `json:"website"`
	AvatarURL string    `json:"avatar_url"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Store persists profiles.
type Store interface {
	// Get returns the profile for id, or ErrNotFound.
	Get(ctx context.Context, id string) (*Profile, error)

	// Upsert inserts or replaces the profile with p.ID. UpdatedAt is set by the store.
	Upsert(ctx context.Context, p *Profile) error

	// Close releases the store.
	Close() error
}

// ErrNotFound is returned when no profile exists for an id.
type ErrNotFound struct {
	ID string
}

func (e ErrNotFound) Error() string {
	if e.ID == "" {
		return "profile not found"
	}

	return "profile not found: " + e.ID
}
