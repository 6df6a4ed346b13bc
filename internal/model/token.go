package model

import "time"

// TokenClaims is the identity carried by a session token.
type TokenClaims struct {
	SessionID   string
	UserID      string
	PhoneNumber string
	IssuedAt    time.Time
	ExpiresAt   time.Time
}

// TokenManager generates and validates session tokens.
type TokenManager interface {
	GenerateSessionToken(userID, phoneNumber string) (token string, claims TokenClaims, err error)
	ParseSessionToken(token string) (TokenClaims, error)
}
