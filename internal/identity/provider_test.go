package identity

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dtroode/phoneauth/internal/model"
	"github.com/dtroode/phoneauth/internal/testutil"
	"github.com/dtroode/phoneauth/internal/token"
)

const (
	testPhone = "+3317220554"
	testCode  = "123456"
)

var validCtx = model.ChallengeContext{AppVerifierToken: "recaptcha-token"}

type fixture struct {
	provider   *Provider
	challenges *memChallenges
	accounts   *memAccounts
	sessions   *memSessions
	vault      *testutil.MemoryKV
	tokens     *token.JWT
}

func newFixture(t *testing.T, limits Limits) *fixture {
	t.Helper()
	f := &fixture{
		challenges: newMemChallenges(),
		accounts:   newMemAccounts(),
		sessions:   newMemSessions(),
		vault:      testutil.NewMemoryKV(),
		tokens:     token.NewJWT("secret", time.Hour),
	}
	f.provider = f.newProvider(limits)
	return f
}

func (f *fixture) newProvider(limits Limits) *Provider {
	verifier := NewRouter(NewStaticVerifier(map[string]string{
		testPhone:      testCode,
		"+15550001111": "654321",
	}), nil)
	return NewProvider(f.challenges, f.accounts, f.sessions, f.vault, f.tokens, verifier, limits, testutil.MakeNoopLogger())
}

func defaultLimits() Limits {
	return Limits{ChallengeTTL: time.Minute, RateLimitWindow: time.Hour, RateLimitMax: 5, DailySMSQuota: 100}
}

type recorder struct {
	mu     sync.Mutex
	events []*model.Session
}

func (r *recorder) record(s *model.Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, s)
}

func (r *recorder) all() []*model.Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*model.Session(nil), r.events...)
}

func requireProviderCode(t *testing.T, err error, code string) {
	t.Helper()
	var pe *model.ProviderError
	require.True(t, errors.As(err, &pe), "expected provider error, got %v", err)
	assert.Equal(t, code, pe.Code)
}

func TestProvider_CreatePhoneChallenge_Validation(t *testing.T) {
	f := newFixture(t, defaultLimits())
	ctx := context.Background()

	_, err := f.provider.CreatePhoneChallenge(ctx, testPhone, model.ChallengeContext{})
	requireProviderCode(t, err, model.CodeInvalidAppCredential)

	for _, phone := range []string{"3317220554", "+0123456789", "+12", "+1234567890123456"} {
		_, err = f.provider.CreatePhoneChallenge(ctx, phone, validCtx)
		requireProviderCode(t, err, model.CodeInvalidPhoneNumber)
	}
}

func TestProvider_CreatePhoneChallenge_UnknownNumberWithoutBackend(t *testing.T) {
	f := newFixture(t, defaultLimits())

	_, err := f.provider.CreatePhoneChallenge(context.Background(), "+447700900123", validCtx)
	requireProviderCode(t, err, model.CodeInternal)
}

func TestProvider_CreatePhoneChallenge_RateLimit(t *testing.T) {
	limits := defaultLimits()
	limits.RateLimitMax = 2
	f := newFixture(t, limits)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := f.provider.CreatePhoneChallenge(ctx, testPhone, validCtx)
		require.NoError(t, err)
	}
	_, err := f.provider.CreatePhoneChallenge(ctx, testPhone, validCtx)
	requireProviderCode(t, err, model.CodeTooManyRequests)

	// window slides
	f.provider.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	_, err = f.provider.CreatePhoneChallenge(ctx, testPhone, validCtx)
	require.NoError(t, err)
}

func TestProvider_CreatePhoneChallenge_Quota(t *testing.T) {
	limits := defaultLimits()
	limits.DailySMSQuota = 1
	f := newFixture(t, limits)
	ctx := context.Background()

	_, err := f.provider.CreatePhoneChallenge(ctx, testPhone, validCtx)
	require.NoError(t, err)

	_, err = f.provider.CreatePhoneChallenge(ctx, "+15550001111", validCtx)
	requireProviderCode(t, err, model.CodeQuotaExceeded)
}

func TestProvider_ExchangeChallenge_Success(t *testing.T) {
	f := newFixture(t, defaultLimits())
	ctx := context.Background()

	rec := &recorder{}
	unsubscribe := f.provider.SubscribeSessionChanges(rec.record)
	defer unsubscribe()

	id, err := f.provider.CreatePhoneChallenge(ctx, testPhone, validCtx)
	require.NoError(t, err)

	session, err := f.provider.ExchangeChallenge(ctx, id, testCode)
	require.NoError(t, err)
	assert.NotEmpty(t, session.ID)
	assert.NotEmpty(t, session.UserID)
	assert.Equal(t, testPhone, session.PhoneNumber)

	events := rec.all()
	require.Len(t, events, 2)
	assert.Nil(t, events[0])
	require.NotNil(t, events[1])
	assert.Equal(t, session, *events[1])

	raw, err := f.vault.Read(ctx, SessionTokenKey)
	require.NoError(t, err)
	claims, err := f.tokens.ParseSessionToken(string(raw))
	require.NoError(t, err)
	assert.Equal(t, session.ID, claims.SessionID)

	stored, err := f.sessions.GetByID(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, session.UserID, stored.UserID)

	// a second login maps to the same account
	id2, err := f.provider.CreatePhoneChallenge(ctx, testPhone, validCtx)
	require.NoError(t, err)
	session2, err := f.provider.ExchangeChallenge(ctx, id2, testCode)
	require.NoError(t, err)
	assert.Equal(t, session.UserID, session2.UserID)
	assert.NotEqual(t, session.ID, session2.ID)
}

func TestProvider_ExchangeChallenge_SingleUse(t *testing.T) {
	f := newFixture(t, defaultLimits())
	ctx := context.Background()

	id, err := f.provider.CreatePhoneChallenge(ctx, testPhone, validCtx)
	require.NoError(t, err)

	_, err = f.provider.ExchangeChallenge(ctx, id, testCode)
	require.NoError(t, err)

	_, err = f.provider.ExchangeChallenge(ctx, id, testCode)
	requireProviderCode(t, err, model.CodeSessionExpired)
}

func TestProvider_ExchangeChallenge_WrongCodeBurnsChallenge(t *testing.T) {
	f := newFixture(t, defaultLimits())
	ctx := context.Background()

	id, err := f.provider.CreatePhoneChallenge(ctx, testPhone, validCtx)
	require.NoError(t, err)

	_, err = f.provider.ExchangeChallenge(ctx, id, "000000")
	requireProviderCode(t, err, model.CodeInvalidVerificationCode)

	_, err = f.provider.ExchangeChallenge(ctx, id, testCode)
	requireProviderCode(t, err, model.CodeSessionExpired)
}

func TestProvider_ExchangeChallenge_Expired(t *testing.T) {
	f := newFixture(t, defaultLimits())
	ctx := context.Background()

	id, err := f.provider.CreatePhoneChallenge(ctx, testPhone, validCtx)
	require.NoError(t, err)

	f.provider.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	_, err = f.provider.ExchangeChallenge(ctx, id, testCode)
	requireProviderCode(t, err, model.CodeCodeExpired)
}

func TestProvider_ExchangeChallenge_UnknownID(t *testing.T) {
	f := newFixture(t, defaultLimits())

	_, err := f.provider.ExchangeChallenge(context.Background(), "nope", testCode)
	requireProviderCode(t, err, model.CodeInvalidVerificationID)
}

func TestProvider_InvalidateSession(t *testing.T) {
	f := newFixture(t, defaultLimits())
	ctx := context.Background()

	require.NoError(t, f.provider.InvalidateSession(ctx))

	id, err := f.provider.CreatePhoneChallenge(ctx, testPhone, validCtx)
	require.NoError(t, err)
	session, err := f.provider.ExchangeChallenge(ctx, id, testCode)
	require.NoError(t, err)

	rec := &recorder{}
	unsubscribe := f.provider.SubscribeSessionChanges(rec.record)
	defer unsubscribe()

	require.NoError(t, f.provider.InvalidateSession(ctx))

	events := rec.all()
	require.Len(t, events, 2)
	require.NotNil(t, events[0])
	assert.Equal(t, session.ID, events[0].ID)
	assert.Nil(t, events[1])

	stored, err := f.sessions.GetByID(ctx, session.ID)
	require.NoError(t, err)
	assert.NotNil(t, stored.RevokedAt)
	assert.False(t, f.vault.Has(SessionTokenKey))
}

func TestProvider_Unsubscribe(t *testing.T) {
	f := newFixture(t, defaultLimits())
	ctx := context.Background()

	rec := &recorder{}
	unsubscribe := f.provider.SubscribeSessionChanges(rec.record)
	unsubscribe()
	unsubscribe()

	id, err := f.provider.CreatePhoneChallenge(ctx, testPhone, validCtx)
	require.NoError(t, err)
	_, err = f.provider.ExchangeChallenge(ctx, id, testCode)
	require.NoError(t, err)

	assert.Len(t, rec.all(), 1)
}

func TestProvider_Restore(t *testing.T) {
	ctx := context.Background()

	t.Run("nothing stored", func(t *testing.T) {
		f := newFixture(t, defaultLimits())
		require.NoError(t, f.provider.Restore(ctx))

		rec := &recorder{}
		f.provider.SubscribeSessionChanges(rec.record)()
		assert.Equal(t, []*model.Session{nil}, rec.all())
	})

	t.Run("valid session", func(t *testing.T) {
		f := newFixture(t, defaultLimits())
		id, err := f.provider.CreatePhoneChallenge(ctx, testPhone, validCtx)
		require.NoError(t, err)
		session, err := f.provider.ExchangeChallenge(ctx, id, testCode)
		require.NoError(t, err)

		restarted := f.newProvider(defaultLimits())
		require.NoError(t, restarted.Restore(ctx))

		rec := &recorder{}
		restarted.SubscribeSessionChanges(rec.record)()
		events := rec.all()
		require.Len(t, events, 1)
		require.NotNil(t, events[0])
		assert.Equal(t, session.ID, events[0].ID)
		assert.Equal(t, session.UserID, events[0].UserID)
	})

	t.Run("revoked session", func(t *testing.T) {
		f := newFixture(t, defaultLimits())
		id, err := f.provider.CreatePhoneChallenge(ctx, testPhone, validCtx)
		require.NoError(t, err)
		session, err := f.provider.ExchangeChallenge(ctx, id, testCode)
		require.NoError(t, err)
		require.NoError(t, f.sessions.Revoke(ctx, session.ID))

		restarted := f.newProvider(defaultLimits())
		require.NoError(t, restarted.Restore(ctx))

		rec := &recorder{}
		restarted.SubscribeSessionChanges(rec.record)()
		assert.Equal(t, []*model.Session{nil}, rec.all())
		assert.False(t, f.vault.Has(SessionTokenKey))
	})

	t.Run("expired session", func(t *testing.T) {
		f := newFixture(t, defaultLimits())
		id, err := f.provider.CreatePhoneChallenge(ctx, testPhone, validCtx)
		require.NoError(t, err)
		session, err := f.provider.ExchangeChallenge(ctx, id, testCode)
		require.NoError(t, err)
		f.sessions.update(session.ID, func(s *model.StoredSession) {
			s.ExpiresAt = time.Now().Add(-time.Minute)
		})

		restarted := f.newProvider(defaultLimits())
		require.NoError(t, restarted.Restore(ctx))
		assert.False(t, f.vault.Has(SessionTokenKey))
	})

	t.Run("garbage token", func(t *testing.T) {
		f := newFixture(t, defaultLimits())
		require.NoError(t, f.vault.Write(ctx, SessionTokenKey, []byte("not-a-jwt")))

		require.NoError(t, f.provider.Restore(ctx))
		assert.False(t, f.vault.Has(SessionTokenKey))
	})
}
