package identity

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dtroode/phoneauth/internal/model"
)

type memChallenges struct {
	mu   sync.Mutex
	byID map[string]model.Challenge
}

func newMemChallenges() *memChallenges {
	return &memChallenges{byID: make(map[string]model.Challenge)}
}

func (m *memChallenges) Create(_ context.Context, c model.Challenge) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byID[c.ID] = c
	return nil
}

func (m *memChallenges) GetByID(_ context.Context, id string) (model.Challenge, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.byID[id]
	if !ok {
		return model.Challenge{}, model.ErrNotFound
	}
	return c, nil
}

func (m *memChallenges) Consume(_ context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.byID[id]
	if !ok || c.Consumed {
		return false, nil
	}
	c.Consumed = true
	m.byID[id] = c
	return true, nil
}

func (m *memChallenges) CountSince(_ context.Context, phone string, since time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.byID {
		if c.PhoneNumber == phone && !c.CreatedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

func (m *memChallenges) CountAllSince(_ context.Context, since time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.byID {
		if !c.CreatedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

type memAccounts struct {
	mu      sync.Mutex
	byPhone map[string]model.Account
}

func newMemAccounts() *memAccounts {
	return &memAccounts{byPhone: make(map[string]model.Account)}
}

func (m *memAccounts) GetByPhone(_ context.Context, phone string) (model.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.byPhone[phone]
	if !ok {
		return model.Account{}, model.ErrNotFound
	}
	return a, nil
}

func (m *memAccounts) Create(_ context.Context, a model.Account) (model.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.byPhone[a.PhoneNumber]; ok {
		return existing, nil
	}
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	a.CreatedAt = time.Now()
	m.byPhone[a.PhoneNumber] = a
	return a, nil
}

type memSessions struct {
	mu   sync.Mutex
	byID map[string]model.StoredSession
}

func newMemSessions() *memSessions {
	return &memSessions{byID: make(map[string]model.StoredSession)}
}

func (m *memSessions) Create(_ context.Context, s model.StoredSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byID[s.ID] = s
	return nil
}

func (m *memSessions) GetByID(_ context.Context, id string) (model.StoredSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.byID[id]
	if !ok {
		return model.StoredSession{}, model.ErrNotFound
	}
	return s, nil
}

func (m *memSessions) Revoke(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.byID[id]
	if !ok {
		return nil
	}
	now := time.Now()
	s.RevokedAt = &now
	m.byID[id] = s
	return nil
}

func (m *memSessions) update(id string, fn func(*model.StoredSession)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.byID[id]
	fn(&s)
	m.byID[id] = s
}
