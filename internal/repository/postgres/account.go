package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/dtroode/phoneauth/internal/model"
)

var _ model.AccountStore = (*AccountRepository)(nil)

type AccountRepository struct {
	db *Connection
}

func NewAccountRepository(db *Connection) *AccountRepository {
	return &AccountRepository{
		db: db,
	}
}

func (r *AccountRepository) GetByPhone(ctx context.Context, phoneNumber string) (model.Account, error) {
	var account model.Account
	query := `SELECT id, phone_number, created_at FROM accounts WHERE phone_number = $1`

	err := r.db.QueryRow(ctx, query, phoneNumber).Scan(&account.ID, &account.PhoneNumber, &account.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Account{}, model.ErrNotFound
		}
		return model.Account{}, fmt.Errorf("failed to get account by phone: %w", err)
	}

	return account, nil
}

// Create inserts the account. When an account for the phone number already
// exists the existing row is returned instead.
func (r *AccountRepository) Create(ctx context.Context, account model.Account) (model.Account, error) {
	query := `
		WITH ins AS (
			INSERT INTO accounts (id, phone_number)
			VALUES ($1, $2)
			ON CONFLICT (phone_number) DO NOTHING
			RETURNING id, phone_number, created_at
		)
		SELECT id, phone_number, created_at FROM ins
		UNION ALL
		SELECT a.id, a.phone_number, a.created_at FROM accounts a
		WHERE NOT EXISTS (SELECT 1 FROM ins) AND a.phone_number = $2
		LIMIT 1`

	var saved model.Account
	err := r.db.QueryRow(ctx, query, account.ID, account.PhoneNumber).Scan(
		&saved.ID, &saved.PhoneNumber, &saved.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return r.GetByPhone(ctx, account.PhoneNumber)
	}
	if err != nil {
		return model.Account{}, fmt.Errorf("failed to create account: %w", err)
	}

	return saved, nil
}
