package model

import (
	"context"
	"time"
)

// Profile is the application-level user record kept in the profile store.
type Profile struct {
	UserID      string
	PhoneNumber string
	CreatedAt   time.Time
}

// ProfileStore is a document store of profiles keyed by user id.
type ProfileStore interface {
	Get(ctx context.Context, userID string) (Profile, error)
	// CreateIfAbsent inserts the profile unless one already exists for the
	// user id. It returns the stored profile and whether it was created.
	CreateIfAbsent(ctx context.Context, profile Profile) (Profile, bool, error)
}
