package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/dtroode/phoneauth/internal/model"
)

var _ model.ChallengeStore = (*ChallengeRepository)(nil)

type ChallengeRepository struct {
	db *Connection
}

func NewChallengeRepository(db *Connection) *ChallengeRepository {
	return &ChallengeRepository{db: db}
}

func (r *ChallengeRepository) Create(ctx context.Context, challenge model.Challenge) error {
	const query = `
        INSERT INTO challenges (id, phone_number, verification_ref, expires_at, consumed, created_at)
        VALUES ($1, $2, $3, $4, $5, $6)
    `

	if _, err := r.db.Exec(ctx, query,
		challenge.ID,
		challenge.PhoneNumber,
		challenge.VerificationRef,
		challenge.ExpiresAt,
		challenge.Consumed,
		challenge.CreatedAt,
	); err != nil {
		return fmt.Errorf("failed to create challenge: %w", err)
	}
	return nil
}

func (r *ChallengeRepository) GetByID(ctx context.Context, id string) (model.Challenge, error) {
	const query = `
        SELECT id, phone_number, verification_ref, expires_at, consumed, created_at
        FROM challenges
        WHERE id = $1
    `
	var c model.Challenge
	if err := r.db.QueryRow(ctx, query, id).Scan(
		&c.ID,
		&c.PhoneNumber,
		&c.VerificationRef,
		&c.ExpiresAt,
		&c.Consumed,
		&c.CreatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Challenge{}, model.ErrNotFound
		}
		return model.Challenge{}, fmt.Errorf("failed to get challenge by id: %w", err)
	}
	return c, nil
}

// Consume flips consumed in a single conditional update so two concurrent
// exchanges of the same challenge cannot both succeed.
func (r *ChallengeRepository) Consume(ctx context.Context, id string) (bool, error) {
	const query = `
        UPDATE challenges
        SET consumed = TRUE
        WHERE id = $1 AND consumed = FALSE
    `
	tag, err := r.db.Exec(ctx, query, id)
	if err != nil {
		return false, fmt.Errorf("failed to consume challenge: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *ChallengeRepository) CountSince(ctx context.Context, phoneNumber string, since time.Time) (int, error) {
	const query = `
        SELECT COUNT(*) FROM challenges
        WHERE phone_number = $1 AND created_at >= $2
    `
	var n int
	if err := r.db.QueryRow(ctx, query, phoneNumber, since).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count challenges by phone: %w", err)
	}
	return n, nil
}

func (r *ChallengeRepository) CountAllSince(ctx context.Context, since time.Time) (int, error) {
	const query = `SELECT COUNT(*) FROM challenges WHERE created_at >= $1`
	var n int
	if err := r.db.QueryRow(ctx, query, since).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count challenges: %w", err)
	}
	return n, nil
}
