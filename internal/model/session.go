package model

import (
	"context"
	"time"
)

// Session is an authenticated identity issued by the identity provider.
type Session struct {
	ID          string
	UserID      string
	PhoneNumber string
	IssuedAt    time.Time
	ExpiresAt   time.Time
}

// ChallengeContext carries the anti-abuse material a UI must supply when
// asking for a verification code.
type ChallengeContext struct {
	AppVerifierToken string
}

// SessionMarker is the locally persisted, advisory copy of the signed-in identity.
type SessionMarker struct {
	UserID      string `json:"uid"`
	PhoneNumber string `json:"phoneNumber"`
}

// StoredSession is the provider-side record of an issued session.
type StoredSession struct {
	ID          string
	UserID      string
	PhoneNumber string
	IssuedAt    time.Time
	ExpiresAt   time.Time
	RevokedAt   *time.Time
}

// SessionStore persists issued sessions.
type SessionStore interface {
	Create(ctx context.Context, session StoredSession) error
	GetByID(ctx context.Context, id string) (StoredSession, error)
	Revoke(ctx context.Context, id string) error
}
