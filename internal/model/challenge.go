package model

import (
	"context"
	"time"
)

// ChallengeDuration is the default TTL for verification challenges.
const ChallengeDuration = time.Minute * 5

// Challenge is an in-flight phone verification attempt.
type Challenge struct {
	ID              string
	PhoneNumber     string
	VerificationRef string
	ExpiresAt       time.Time
	Consumed        bool
	CreatedAt       time.Time
}

// ChallengeStore persists verification challenges.
type ChallengeStore interface {
	Create(ctx context.Context, challenge Challenge) error
	GetByID(ctx context.Context, id string) (Challenge, error)
	// Consume marks the challenge used. It returns false when the challenge
	// had already been consumed by someone else.
	Consume(ctx context.Context, id string) (bool, error)
	CountSince(ctx context.Context, phoneNumber string, since time.Time) (int, error)
	CountAllSince(ctx context.Context, since time.Time) (int, error)
}
