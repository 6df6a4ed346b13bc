package token

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/dtroode/phoneauth/internal/model"
)

// Claims represents session token claims. The registered ID holds the session id.
type Claims struct {
	jwt.RegisteredClaims
	PhoneNumber string `json:"phone_number"`
	TokenType   string `json:"typ"`
}

// JWT implements TokenManager backed by symmetric HMAC.
type JWT struct {
	secretKey string
	ttl       time.Duration
	now       func() time.Time
}

// NewJWT creates a new JWT token manager with the provided secret key and session lifetime.
func NewJWT(secretKey string, ttl time.Duration) *JWT {
	return &JWT{secretKey: secretKey, ttl: ttl, now: time.Now}
}

const (
	typeSession = "session"
	issuer      = "phoneauth"
)

var _ model.TokenManager = (*JWT)(nil)

// GenerateSessionToken signs a new session token for the user.
func (j *JWT) GenerateSessionToken(userID, phoneNumber string) (string, model.TokenClaims, error) {
	now := j.now().UTC().Truncate(time.Second)
	sessionID := uuid.NewString()
	expiresAt := now.Add(j.ttl)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        sessionID,
			Subject:   userID,
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		PhoneNumber: phoneNumber,
		TokenType:   typeSession,
	})

	tokenString, err := token.SignedString([]byte(j.secretKey))
	if err != nil {
		return "", model.TokenClaims{}, fmt.Errorf("failed to sign session token: %w", err)
	}

	return tokenString, model.TokenClaims{
		SessionID:   sessionID,
		UserID:      userID,
		PhoneNumber: phoneNumber,
		IssuedAt:    now,
		ExpiresAt:   expiresAt,
	}, nil
}

// ParseSessionToken validates the token signature, expiry and type.
func (j *JWT) ParseSessionToken(tokenString string) (model.TokenClaims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("wrong signing method %v", t.Header["alg"])
		}
		return []byte(j.secretKey), nil
	}, jwt.WithIssuer(issuer), jwt.WithTimeFunc(j.now))
	if err != nil {
		return model.TokenClaims{}, fmt.Errorf("failed to parse session token: %w", err)
	}
	if !token.Valid {
		return model.TokenClaims{}, fmt.Errorf("session token is invalid")
	}
	if claims.TokenType != typeSession {
		return model.TokenClaims{}, fmt.Errorf("token type mismatch: %s", claims.TokenType)
	}
	if claims.ID == "" || claims.Subject == "" {
		return model.TokenClaims{}, fmt.Errorf("session token is missing identity claims")
	}

	out := model.TokenClaims{
		SessionID:   claims.ID,
		UserID:      claims.Subject,
		PhoneNumber: claims.PhoneNumber,
	}
	if claims.IssuedAt != nil {
		out.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		out.ExpiresAt = claims.ExpiresAt.Time
	}
	return out, nil
}
