// Package identity implements the phone/OTP identity provider: challenges,
// single-use code exchange, issued sessions and session-change fan-out.
package identity

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dtroode/phoneauth/internal/logger"
	"github.com/dtroode/phoneauth/internal/model"
)

// SessionTokenKey is the vault key holding the current session token.
const SessionTokenKey = "identity/session-token"

var _ model.IdentityProvider = (*Provider)(nil)

var e164 = regexp.MustCompile(`^\+[1-9][0-9]{6,14}$`)

// Limits bounds how often verification codes may be sent.
type Limits struct {
	ChallengeTTL    time.Duration
	RateLimitWindow time.Duration
	RateLimitMax    int
	// DailySMSQuota caps challenges across all numbers per 24h. Zero disables it.
	DailySMSQuota int
}

type Provider struct {
	challenges model.ChallengeStore
	accounts   model.AccountStore
	sessions   model.SessionStore
	vault      model.KeyValueStore
	tokens     model.TokenManager
	verifier   Verifier
	limits     Limits
	logger     *logger.Logger
	now        func() time.Time

	// mu serializes changes of current together with their delivery.
	mu        sync.Mutex
	current   *model.Session
	listeners map[int]func(*model.Session)
	nextID    int
}

func NewProvider(
	challenges model.ChallengeStore,
	accounts model.AccountStore,
	sessions model.SessionStore,
	vault model.KeyValueStore,
	tokens model.TokenManager,
	verifier Verifier,
	limits Limits,
	logger *logger.Logger,
) *Provider {
	if limits.ChallengeTTL <= 0 {
		limits.ChallengeTTL = model.ChallengeDuration
	}
	return &Provider{
		challenges: challenges,
		accounts:   accounts,
		sessions:   sessions,
		vault:      vault,
		tokens:     tokens,
		verifier:   verifier,
		limits:     limits,
		logger:     logger,
		now:        time.Now,
		listeners:  make(map[int]func(*model.Session)),
	}
}

func (p *Provider) CreatePhoneChallenge(ctx context.Context, phoneNumber string, challengeCtx model.ChallengeContext) (string, error) {
	if strings.TrimSpace(challengeCtx.AppVerifierToken) == "" {
		return "", model.NewProviderError(model.CodeInvalidAppCredential, "app verifier token is required")
	}
	if !e164.MatchString(phoneNumber) {
		return "", model.NewProviderError(model.CodeInvalidPhoneNumber, "phone number is not in E.164 format")
	}

	now := p.now()

	sent, err := p.challenges.CountSince(ctx, phoneNumber, now.Add(-p.limits.RateLimitWindow))
	if err != nil {
		return "", fmt.Errorf("failed to count recent challenges: %w", err)
	}
	if p.limits.RateLimitMax > 0 && sent >= p.limits.RateLimitMax {
		p.logger.Info("Identity provider: rate limit hit",
			"phone_number", phoneNumber,
			"sent", sent)
		return "", model.NewProviderError(model.CodeTooManyRequests, "too many verification requests for this number")
	}

	if p.limits.DailySMSQuota > 0 {
		total, err := p.challenges.CountAllSince(ctx, now.Add(-24*time.Hour))
		if err != nil {
			return "", fmt.Errorf("failed to count daily challenges: %w", err)
		}
		if total >= p.limits.DailySMSQuota {
			p.logger.Warn("Identity provider: daily sms quota exhausted",
				"quota", p.limits.DailySMSQuota)
			return "", model.NewProviderError(model.CodeQuotaExceeded, "daily sms quota exceeded")
		}
	}

	ref, err := p.verifier.Send(ctx, phoneNumber)
	if err != nil {
		p.logger.Error("Identity provider: failed to send verification code",
			"phone_number", phoneNumber,
			"error", err.Error())
		return "", err
	}

	challenge := model.Challenge{
		ID:              uuid.NewString(),
		PhoneNumber:     phoneNumber,
		VerificationRef: ref,
		ExpiresAt:       now.Add(p.limits.ChallengeTTL),
		CreatedAt:       now,
	}
	if err := p.challenges.Create(ctx, challenge); err != nil {
		return "", fmt.Errorf("failed to store challenge: %w", err)
	}

	p.logger.Debug("Identity provider: challenge created",
		"challenge_id", challenge.ID,
		"phone_number", phoneNumber)

	return challenge.ID, nil
}

func (p *Provider) ExchangeChallenge(ctx context.Context, challengeID, code string) (model.Session, error) {
	challenge, err := p.challenges.GetByID(ctx, challengeID)
	if errors.Is(err, model.ErrNotFound) {
		return model.Session{}, model.NewProviderError(model.CodeInvalidVerificationID, "unknown verification id")
	}
	if err != nil {
		return model.Session{}, fmt.Errorf("failed to get challenge: %w", err)
	}

	if challenge.Consumed {
		return model.Session{}, model.NewProviderError(model.CodeSessionExpired, "verification id was already used")
	}
	if !p.now().Before(challenge.ExpiresAt) {
		return model.Session{}, model.NewProviderError(model.CodeCodeExpired, "verification code has expired")
	}

	// consumed before the code is checked: a wrong guess burns the challenge too
	ok, err := p.challenges.Consume(ctx, challengeID)
	if err != nil {
		return model.Session{}, fmt.Errorf("failed to consume challenge: %w", err)
	}
	if !ok {
		return model.Session{}, model.NewProviderError(model.CodeSessionExpired, "verification id was already used")
	}

	valid, err := p.verifier.Check(ctx, challenge.VerificationRef, challenge.PhoneNumber, code)
	if err != nil {
		return model.Session{}, err
	}
	if !valid {
		return model.Session{}, model.NewProviderError(model.CodeInvalidVerificationCode, "verification code does not match")
	}

	account, err := p.findOrCreateAccount(ctx, challenge.PhoneNumber)
	if err != nil {
		return model.Session{}, err
	}

	token, claims, err := p.tokens.GenerateSessionToken(account.ID.String(), account.PhoneNumber)
	if err != nil {
		return model.Session{}, fmt.Errorf("failed to issue session token: %w", err)
	}

	err = p.sessions.Create(ctx, model.StoredSession{
		ID:          claims.SessionID,
		UserID:      claims.UserID,
		PhoneNumber: claims.PhoneNumber,
		IssuedAt:    claims.IssuedAt,
		ExpiresAt:   claims.ExpiresAt,
	})
	if err != nil {
		return model.Session{}, fmt.Errorf("failed to store session: %w", err)
	}

	if err := p.vault.Write(ctx, SessionTokenKey, []byte(token)); err != nil {
		p.logger.Warn("Identity provider: failed to persist session token",
			"session_id", claims.SessionID,
			"error", err.Error())
	}

	session := sessionFromClaims(claims)
	p.setCurrent(&session)

	p.logger.Info("Identity provider: session issued",
		"session_id", session.ID,
		"user_id", session.UserID)

	return session, nil
}

// InvalidateSession revokes the current session. It is a no-op when no one
// is signed in.
func (p *Provider) InvalidateSession(ctx context.Context) error {
	p.mu.Lock()
	current := p.current
	p.mu.Unlock()

	if current == nil {
		return nil
	}

	if err := p.sessions.Revoke(ctx, current.ID); err != nil {
		return fmt.Errorf("failed to revoke session: %w", err)
	}

	if err := p.vault.Erase(ctx, SessionTokenKey); err != nil {
		p.logger.Warn("Identity provider: failed to erase session token",
			"session_id", current.ID,
			"error", err.Error())
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current != nil && p.current.ID == current.ID {
		p.current = nil
		p.deliverLocked()
	}

	p.logger.Info("Identity provider: session revoked",
		"session_id", current.ID)

	return nil
}

// SubscribeSessionChanges registers cb and calls it right away with the
// current session. cb runs under the provider lock and must not call back
// into the provider.
func (p *Provider) SubscribeSessionChanges(cb func(*model.Session)) func() {
	p.mu.Lock()
	id := p.nextID
	p.nextID++
	p.listeners[id] = cb
	cb(copySession(p.current))
	p.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			p.mu.Lock()
			delete(p.listeners, id)
			p.mu.Unlock()
		})
	}
}

// Restore loads the session persisted in the vault, if it is still valid.
func (p *Provider) Restore(ctx context.Context) error {
	blob, err := p.vault.Read(ctx, SessionTokenKey)
	if errors.Is(err, model.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read session token: %w", err)
	}

	claims, err := p.tokens.ParseSessionToken(string(blob))
	if err != nil {
		p.logger.Info("Identity provider: discarding invalid session token",
			"error", err.Error())
		p.discardToken(ctx)
		return nil
	}

	stored, err := p.sessions.GetByID(ctx, claims.SessionID)
	if errors.Is(err, model.ErrNotFound) {
		p.discardToken(ctx)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to get stored session: %w", err)
	}
	if stored.RevokedAt != nil || !p.now().Before(stored.ExpiresAt) {
		p.logger.Info("Identity provider: stored session no longer valid",
			"session_id", stored.ID)
		p.discardToken(ctx)
		return nil
	}

	session := sessionFromClaims(claims)
	p.setCurrent(&session)

	p.logger.Info("Identity provider: session restored",
		"session_id", session.ID,
		"user_id", session.UserID)

	return nil
}

func (p *Provider) findOrCreateAccount(ctx context.Context, phoneNumber string) (model.Account, error) {
	account, err := p.accounts.GetByPhone(ctx, phoneNumber)
	if err == nil {
		return account, nil
	}
	if !errors.Is(err, model.ErrNotFound) {
		return model.Account{}, fmt.Errorf("failed to get account by phone: %w", err)
	}

	account, err = p.accounts.Create(ctx, model.Account{ID: uuid.New(), PhoneNumber: phoneNumber})
	if err != nil {
		return model.Account{}, fmt.Errorf("failed to create account: %w", err)
	}
	p.logger.Info("Identity provider: account created",
		"user_id", account.ID.String())
	return account, nil
}

func (p *Provider) discardToken(ctx context.Context) {
	if err := p.vault.Erase(ctx, SessionTokenKey); err != nil {
		p.logger.Warn("Identity provider: failed to erase session token",
			"error", err.Error())
	}
}

func (p *Provider) setCurrent(s *model.Session) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.current = s
	p.deliverLocked()
}

func (p *Provider) deliverLocked() {
	for _, cb := range p.listeners {
		cb(copySession(p.current))
	}
}

func copySession(s *model.Session) *model.Session {
	if s == nil {
		return nil
	}
	c := *s
	return &c
}

func sessionFromClaims(c model.TokenClaims) model.Session {
	return model.Session{
		ID:          c.SessionID,
		UserID:      c.UserID,
		PhoneNumber: c.PhoneNumber,
		IssuedAt:    c.IssuedAt,
		ExpiresAt:   c.ExpiresAt,
	}
}
