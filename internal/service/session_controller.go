package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/dtroode/phoneauth/internal/logger"
	"github.com/dtroode/phoneauth/internal/marker"
	"github.com/dtroode/phoneauth/internal/model"
)

const minPhoneLength = 10

var (
	nonPhoneChars = regexp.MustCompile(`[^0-9+]`)
	codePattern   = regexp.MustCompile(`^[0-9]{6}$`)
)

var errControllerClosed = errors.New("session controller closed")

// ControllerConfig tunes profile sync retries.
type ControllerConfig struct {
	ProfileSyncRetries uint64
	ProfileSyncBackoff time.Duration
}

// SessionController owns the signed-in state of the application. It wraps
// the identity provider, keeps the profile record in sync and mirrors the
// session into the marker store.
type SessionController struct {
	provider model.IdentityProvider
	profiles model.ProfileStore
	marker   *marker.Store
	logger   *logger.Logger
	cfg      ControllerConfig

	// op admits one RequestVerification/VerifyCode/SignOut/RetryProfileSync at a time.
	op sync.Mutex

	mu          sync.Mutex
	state       model.State
	pending     *model.Session
	watchers    map[int]chan model.State
	nextWatcher int
	closed      bool

	markerMu      sync.Mutex
	startupMarker *model.SessionMarker

	queueMu sync.Mutex
	queue   []*model.Session
	wake    chan struct{}

	ready     chan struct{}
	readyOnce sync.Once

	loopCtx     context.Context
	cancelLoop  context.CancelFunc
	done        chan struct{}
	stopped     chan struct{}
	unsubscribe func()
	closeOnce   sync.Once
}

// NewSessionController reads the session marker, subscribes to provider
// session changes and starts applying them. Call Close to release it.
func NewSessionController(
	ctx context.Context,
	provider model.IdentityProvider,
	profiles model.ProfileStore,
	markers *marker.Store,
	logger *logger.Logger,
	cfg ControllerConfig,
) *SessionController {
	loopCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))

	c := &SessionController{
		provider:   provider,
		profiles:   profiles,
		marker:     markers,
		logger:     logger,
		cfg:        cfg,
		state:      model.State{Phase: model.PhaseLoading, Loading: true},
		watchers:   make(map[int]chan model.State),
		wake:       make(chan struct{}, 1),
		ready:      make(chan struct{}),
		loopCtx:    loopCtx,
		cancelLoop: cancel,
		done:       make(chan struct{}),
		stopped:    make(chan struct{}),
	}

	m, ok, err := markers.Load(ctx)
	switch {
	case err != nil:
		logger.Warn("Session controller: failed to read session marker",
			"error", err.Error())
	case ok:
		c.startupMarker = &m
		logger.Debug("Session controller: found session marker",
			"user_id", m.UserID)
	}

	go c.run()
	c.unsubscribe = provider.SubscribeSessionChanges(c.enqueue)

	return c
}

// RequestVerification asks the provider to send a code to phoneNumber and
// returns the challenge id the caller must pass to VerifyCode.
func (c *SessionController) RequestVerification(ctx context.Context, phoneNumber string, challengeCtx model.ChallengeContext) (string, error) {
	normalized, err := NormalizePhoneNumber(phoneNumber)
	if err != nil {
		return "", err
	}

	if !c.op.TryLock() {
		return "", model.ErrBusy
	}
	defer c.op.Unlock()

	c.logger.Debug("Session controller: requesting verification",
		"phone_number", normalized)

	challengeID, err := c.provider.CreatePhoneChallenge(context.WithoutCancel(ctx), normalized, challengeCtx)
	if err != nil {
		c.logger.Info("Session controller: verification request rejected",
			"phone_number", normalized,
			"error", err.Error())
		return "", classifyRequestError(err)
	}

	c.logger.Info("Session controller: verification requested",
		"phone_number", normalized,
		"challenge_id", challengeID)

	return challengeID, nil
}

// VerifyCode exchanges a challenge and code for a session, then loads or
// creates the profile and publishes the authenticated state.
func (c *SessionController) VerifyCode(ctx context.Context, challengeID, code string) error {
	if strings.TrimSpace(challengeID) == "" {
		return model.NewInvalidInput("challenge id is required")
	}
	if !codePattern.MatchString(code) {
		return model.NewInvalidInput("code must be exactly 6 digits")
	}

	if !c.op.TryLock() {
		return model.ErrBusy
	}
	defer c.op.Unlock()

	ctx = context.WithoutCancel(ctx)

	session, err := c.provider.ExchangeChallenge(ctx, challengeID, code)
	if err != nil {
		c.logger.Info("Session controller: code exchange rejected",
			"challenge_id", challengeID,
			"error", err.Error())
		return classifyExchangeError(err)
	}

	c.logger.Info("Session controller: code verified",
		"challenge_id", challengeID,
		"user_id", session.UserID)

	return c.authenticate(ctx, session, false)
}

// SignOut invalidates the provider session. On failure the published state
// is left untouched.
func (c *SessionController) SignOut(ctx context.Context) error {
	if !c.op.TryLock() {
		return model.ErrBusy
	}
	defer c.op.Unlock()

	ctx = context.WithoutCancel(ctx)

	if err := c.provider.InvalidateSession(ctx); err != nil {
		c.logger.Error("Session controller: failed to sign out",
			"error", err.Error())
		return &model.Error{Kind: model.KindSignOutFailed, Message: "failed to sign out", Err: err}
	}

	c.mu.Lock()
	c.pending = nil
	c.state = model.State{Phase: model.PhaseAnonymous, Loading: c.state.Loading}
	c.publishLocked()
	c.mu.Unlock()

	c.syncMarker(ctx)

	c.logger.Info("Session controller: signed out")

	return nil
}

// RetryProfileSync repeats the profile lookup-or-create for a provider
// session whose previous sync failed.
func (c *SessionController) RetryProfileSync(ctx context.Context) (model.State, error) {
	if !c.op.TryLock() {
		return c.State(), model.ErrBusy
	}
	defer c.op.Unlock()

	c.mu.Lock()
	pending := c.pending
	failed := pending != nil && c.state.Phase == model.PhaseAnonymous && c.state.SyncError != ""
	c.mu.Unlock()

	if !failed {
		return c.State(), model.NewInvalidInput("no failed profile sync to retry")
	}

	err := c.authenticate(context.WithoutCancel(ctx), *pending, false)
	return c.State(), err
}

// State returns a snapshot of the published state.
func (c *SessionController) State() model.State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// Marker returns the session marker found at startup, if any.
func (c *SessionController) Marker() (model.SessionMarker, bool) {
	c.markerMu.Lock()
	defer c.markerMu.Unlock()
	if c.startupMarker == nil {
		return model.SessionMarker{}, false
	}
	return *c.startupMarker, true
}

// WaitReady blocks until the first session change has been applied.
func (c *SessionController) WaitReady(ctx context.Context) error {
	select {
	case <-c.ready:
		return nil
	case <-c.done:
		return errControllerClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Watch streams published states, starting with the current one. Slow
// readers only see the latest state. The channel is closed when ctx is done
// or the controller is closed.
func (c *SessionController) Watch(ctx context.Context) <-chan model.State {
	ch := make(chan model.State, 1)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		close(ch)
		return ch
	}
	id := c.nextWatcher
	c.nextWatcher++
	c.watchers[id] = ch
	ch <- c.snapshotLocked()
	c.mu.Unlock()

	go func() {
		select {
		case <-ctx.Done():
		case <-c.done:
		}
		c.mu.Lock()
		defer c.mu.Unlock()
		if _, ok := c.watchers[id]; ok {
			delete(c.watchers, id)
			close(ch)
		}
	}()

	return ch
}

// Close releases the provider subscription and stops the event loop. No
// session change is applied after Close returns.
func (c *SessionController) Close() {
	c.closeOnce.Do(func() {
		c.unsubscribe()
		c.cancelLoop()
		close(c.done)
		<-c.stopped

		c.mu.Lock()
		c.closed = true
		c.mu.Unlock()

		c.logger.Debug("Session controller: closed")
	})
}

func (c *SessionController) enqueue(s *model.Session) {
	c.queueMu.Lock()
	c.queue = append(c.queue, s)
	c.queueMu.Unlock()

	select {
	case c.wake <- struct{}{}:
	default:
	}
}

func (c *SessionController) dequeue() (*model.Session, bool) {
	c.queueMu.Lock()
	defer c.queueMu.Unlock()
	if len(c.queue) == 0 {
		return nil, false
	}
	s := c.queue[0]
	c.queue[0] = nil
	c.queue = c.queue[1:]
	return s, true
}

func (c *SessionController) run() {
	defer close(c.stopped)

	for {
		select {
		case <-c.done:
			return
		case <-c.wake:
		}

		for {
			s, ok := c.dequeue()
			if !ok {
				break
			}
			select {
			case <-c.done:
				return
			default:
			}
			c.handleSessionChange(s)
		}
	}
}

func (c *SessionController) handleSessionChange(s *model.Session) {
	if s == nil {
		c.logger.Debug("Session controller: provider reports no session")

		c.mu.Lock()
		c.pending = nil
		c.state = model.State{Phase: model.PhaseAnonymous}
		c.markReadyLocked()
		c.publishLocked()
		c.mu.Unlock()

		c.syncMarker(c.loopCtx)
		return
	}

	c.logger.Debug("Session controller: provider reports session",
		"session_id", s.ID,
		"user_id", s.UserID)

	c.mu.Lock()
	if cur := c.state.Session; cur != nil && cur.ID == s.ID && c.state.Profile != nil {
		c.markReadyLocked()
		c.publishLocked()
		c.mu.Unlock()
		return
	}
	if c.pending != nil && c.pending.ID == s.ID && c.state.Phase == model.PhaseAuthenticating {
		// an operation is already syncing this session
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()

	if err := c.authenticate(c.loopCtx, *s, true); err != nil {
		c.logger.Warn("Session controller: failed to apply provider session",
			"session_id", s.ID,
			"error", err.Error())
	}
}

// authenticate moves s through Authenticating to Authenticated, or back to
// Anonymous with SyncError when the profile cannot be synced.
func (c *SessionController) authenticate(ctx context.Context, s model.Session, fromEvent bool) error {
	c.mu.Lock()
	c.pending = &s
	c.state.Phase = model.PhaseAuthenticating
	c.state.Session = nil
	c.state.Profile = nil
	c.state.SyncError = ""
	c.publishLocked()
	c.mu.Unlock()

	profile, syncErr := c.syncProfile(ctx, s)

	if fromEvent {
		select {
		case <-c.done:
			return errControllerClosed
		default:
		}
	}

	c.mu.Lock()
	if cur := c.state.Session; cur != nil && cur.ID == s.ID && c.state.Profile != nil {
		// applied concurrently by the event loop or an operation
		if fromEvent {
			c.markReadyLocked()
			c.publishLocked()
		}
		c.mu.Unlock()
		return nil
	}
	if c.pending == nil || c.pending.ID != s.ID {
		c.mu.Unlock()
		return &model.Error{Kind: model.KindUnknown, Message: "session changed while signing in"}
	}

	if syncErr != nil {
		c.state = model.State{
			Phase:     model.PhaseAnonymous,
			Loading:   c.state.Loading,
			SyncError: syncErr.Error(),
		}
		if fromEvent {
			c.markReadyLocked()
		}
		c.publishLocked()
		c.mu.Unlock()

		c.logger.Error("Session controller: profile sync failed",
			"user_id", s.UserID,
			"error", syncErr.Error())
		return &model.Error{Kind: model.KindProfileSyncFailed, Message: "failed to sync profile", Err: syncErr}
	}

	c.pending = nil
	c.state = model.State{
		Phase:   model.PhaseAuthenticated,
		Session: &s,
		Profile: &profile,
		Loading: c.state.Loading,
	}
	if fromEvent {
		c.markReadyLocked()
	}
	c.publishLocked()
	c.mu.Unlock()

	c.syncMarker(ctx)

	c.logger.Info("Session controller: authenticated",
		"user_id", s.UserID)

	return nil
}

// syncProfile loads the profile for s, creating it when absent.
func (c *SessionController) syncProfile(ctx context.Context, s model.Session) (model.Profile, error) {
	var profile model.Profile

	operation := func() error {
		p, err := c.profiles.Get(ctx, s.UserID)
		if err == nil {
			profile = p
			return nil
		}
		if !errors.Is(err, model.ErrNotFound) {
			return fmt.Errorf("failed to get profile: %w", err)
		}

		p, created, err := c.profiles.CreateIfAbsent(ctx, model.Profile{
			UserID:      s.UserID,
			PhoneNumber: s.PhoneNumber,
		})
		if err != nil {
			return fmt.Errorf("failed to create profile: %w", err)
		}
		if created {
			c.logger.Info("Session controller: profile created",
				"user_id", s.UserID)
		}
		profile = p
		return nil
	}

	eb := backoff.NewExponentialBackOff()
	if c.cfg.ProfileSyncBackoff > 0 {
		eb.InitialInterval = c.cfg.ProfileSyncBackoff
	}
	policy := backoff.WithContext(backoff.WithMaxRetries(eb, c.cfg.ProfileSyncRetries), ctx)

	notify := func(err error, wait time.Duration) {
		c.logger.Warn("Session controller: retrying profile sync",
			"user_id", s.UserID,
			"wait", wait.String(),
			"error", err.Error())
	}

	if err := backoff.RetryNotify(operation, policy, notify); err != nil {
		return model.Profile{}, err
	}
	return profile, nil
}

// syncMarker makes the marker mirror the currently published session.
// Failures are logged only.
func (c *SessionController) syncMarker(ctx context.Context) {
	c.markerMu.Lock()
	defer c.markerMu.Unlock()

	c.mu.Lock()
	var session *model.Session
	if c.state.Session != nil {
		s := *c.state.Session
		session = &s
	}
	c.mu.Unlock()

	if session == nil {
		if err := c.marker.Clear(ctx); err != nil {
			c.logger.Warn("Session controller: failed to erase session marker",
				"error", err.Error())
		}
		return
	}

	err := c.marker.Save(ctx, model.SessionMarker{UserID: session.UserID, PhoneNumber: session.PhoneNumber})
	if err != nil {
		c.logger.Warn("Session controller: failed to write session marker",
			"user_id", session.UserID,
			"error", err.Error())
	}
}

func (c *SessionController) markReadyLocked() {
	c.state.Loading = false
	c.readyOnce.Do(func() { close(c.ready) })
}

func (c *SessionController) publishLocked() {
	snapshot := c.snapshotLocked()
	for _, ch := range c.watchers {
		// latest wins
		select {
		case <-ch:
		default:
		}
		ch <- snapshot
	}
}

func (c *SessionController) snapshotLocked() model.State {
	s := c.state
	if s.Session != nil {
		session := *s.Session
		s.Session = &session
	}
	if s.Profile != nil {
		profile := *s.Profile
		s.Profile = &profile
	}
	s.Authenticated = s.Session != nil
	return s
}

// NormalizePhoneNumber strips everything but digits and '+', prefixes '+'
// when missing and rejects results shorter than 10 characters.
func NormalizePhoneNumber(raw string) (string, error) {
	if strings.TrimSpace(raw) == "" {
		return "", model.NewInvalidInput("phone number is required")
	}

	normalized := nonPhoneChars.ReplaceAllString(raw, "")
	if !strings.HasPrefix(normalized, "+") {
		normalized = "+" + normalized
	}
	if len(normalized) < minPhoneLength {
		return "", model.NewInvalidInput("please enter a valid phone number")
	}
	return normalized, nil
}

func classifyRequestError(err error) error {
	var pe *model.ProviderError
	if !errors.As(err, &pe) {
		return &model.Error{Kind: model.KindUnknown, Message: "failed to send verification code", Err: err}
	}

	switch pe.Code {
	case model.CodeInvalidPhoneNumber:
		return &model.Error{Kind: model.KindProviderRejected, Reason: model.ReasonInvalidPhoneFormat,
			Message: "invalid phone number format, use +1234567890", Err: err}
	case model.CodeTooManyRequests:
		return &model.Error{Kind: model.KindProviderRejected, Reason: model.ReasonRateLimited,
			Message: "too many requests, please try again later", Err: err}
	case model.CodeQuotaExceeded:
		return &model.Error{Kind: model.KindProviderRejected, Reason: model.ReasonQuotaExceeded,
			Message: "sms quota exceeded, please use test phone numbers", Err: err}
	default:
		return &model.Error{Kind: model.KindUnknown, Message: pe.Message, Err: err}
	}
}

func classifyExchangeError(err error) error {
	var pe *model.ProviderError
	if !errors.As(err, &pe) {
		return &model.Error{Kind: model.KindUnknown, Message: "failed to verify code", Err: err}
	}

	switch pe.Code {
	case model.CodeInvalidVerificationCode:
		return &model.Error{Kind: model.KindProviderRejected, Reason: model.ReasonInvalidCode,
			Message: "invalid verification code", Err: err}
	case model.CodeCodeExpired, model.CodeInvalidVerificationID, model.CodeSessionExpired:
		return &model.Error{Kind: model.KindProviderRejected, Reason: model.ReasonChallengeExpired,
			Message: "verification expired, request a new code", Err: err}
	case model.CodeTooManyRequests:
		return &model.Error{Kind: model.KindProviderRejected, Reason: model.ReasonRateLimited,
			Message: "too many attempts, please try again later", Err: err}
	default:
		return &model.Error{Kind: model.KindUnknown, Message: pe.Message, Err: err}
	}
}
