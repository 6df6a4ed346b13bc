package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/dtroode/phoneauth/internal/model"
)

var _ model.SessionStore = (*SessionRepository)(nil)

type SessionRepository struct {
	db *Connection
}

func NewSessionRepository(db *Connection) *SessionRepository {
	return &SessionRepository{db: db}
}

func (r *SessionRepository) Create(ctx context.Context, session model.StoredSession) error {
	const query = `
        INSERT INTO sessions (id, user_id, phone_number, issued_at, expires_at, revoked_at)
        VALUES ($1, $2, $3, $4, $5, $6)
    `
	_, err := r.db.Exec(ctx, query,
		session.ID, session.UserID, session.PhoneNumber, session.IssuedAt, session.ExpiresAt, session.RevokedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

func (r *SessionRepository) GetByID(ctx context.Context, id string) (model.StoredSession, error) {
	const query = `
        SELECT id, user_id, phone_number, issued_at, expires_at, revoked_at
        FROM sessions WHERE id = $1
    `
	var s model.StoredSession
	err := r.db.QueryRow(ctx, query, id).Scan(
		&s.ID, &s.UserID, &s.PhoneNumber, &s.IssuedAt, &s.ExpiresAt, &s.RevokedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.StoredSession{}, model.ErrNotFound
		}
		return model.StoredSession{}, fmt.Errorf("failed to get session by id: %w", err)
	}
	return s, nil
}

func (r *SessionRepository) Revoke(ctx context.Context, id string) error {
	const query = `
        UPDATE sessions SET revoked_at = NOW()
        WHERE id = $1 AND revoked_at IS NULL
    `
	if _, err := r.db.Exec(ctx, query, id); err != nil {
		return fmt.Errorf("failed to revoke session: %w", err)
	}
	return nil
}
