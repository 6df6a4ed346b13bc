package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/dtroode/phoneauth/internal/model"
)

var _ model.ProfileStore = (*ProfileRepository)(nil)

// ProfileRepository is the profile document store.
type ProfileRepository struct {
	db *Connection
}

func NewProfileRepository(db *Connection) *ProfileRepository {
	return &ProfileRepository{db: db}
}

func (r *ProfileRepository) Get(ctx context.Context, userID string) (model.Profile, error) {
	const query = `SELECT user_id, phone_number, created_at FROM profiles WHERE user_id = $1`

	var p model.Profile
	err := r.db.QueryRow(ctx, query, userID).Scan(&p.UserID, &p.PhoneNumber, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Profile{}, model.ErrNotFound
		}
		return model.Profile{}, fmt.Errorf("failed to get profile: %w", err)
	}
	return p, nil
}

// CreateIfAbsent inserts with a server-assigned created_at. A concurrent
// insert for the same user id loses and reads back the winner's row.
func (r *ProfileRepository) CreateIfAbsent(ctx context.Context, profile model.Profile) (model.Profile, bool, error) {
	const query = `
		WITH ins AS (
			INSERT INTO profiles (user_id, phone_number, created_at)
			VALUES ($1, $2, NOW())
			ON CONFLICT (user_id) DO NOTHING
			RETURNING user_id, phone_number, created_at
		)
		SELECT user_id, phone_number, created_at, TRUE FROM ins
		UNION ALL
		SELECT p.user_id, p.phone_number, p.created_at, FALSE FROM profiles p
		WHERE NOT EXISTS (SELECT 1 FROM ins) AND p.user_id = $1
		LIMIT 1`

	var (
		saved   model.Profile
		created bool
	)
	err := r.db.QueryRow(ctx, query, profile.UserID, profile.PhoneNumber).Scan(
		&saved.UserID, &saved.PhoneNumber, &saved.CreatedAt, &created,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		// the conflicting row was committed after this statement's snapshot
		saved, err = r.Get(ctx, profile.UserID)
		return saved, false, err
	}
	if err != nil {
		return model.Profile{}, false, fmt.Errorf("failed to create profile: %w", err)
	}
	return saved, created, nil
}
