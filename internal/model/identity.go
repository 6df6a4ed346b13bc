package model

import "context"

// IdentityProvider issues phone challenges and sessions.
type IdentityProvider interface {
	CreatePhoneChallenge(ctx context.Context, phoneNumber string, challengeCtx ChallengeContext) (string, error)
	ExchangeChallenge(ctx context.Context, challengeID, code string) (Session, error)
	InvalidateSession(ctx context.Context) error
	// SubscribeSessionChanges registers cb and delivers the current session
	// (possibly nil) right away. The returned func removes the subscription.
	SubscribeSessionChanges(cb func(*Session)) (unsubscribe func())
}
