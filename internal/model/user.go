package model

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// AccountStore persists identity provider accounts.
type AccountStore interface {
	GetByPhone(ctx context.Context, phoneNumber string) (Account, error)
	Create(ctx context.Context, account Account) (Account, error)
}

// Account is an identity known to the provider, one per phone number.
type Account struct {
	ID          uuid.UUID
	PhoneNumber string
	CreatedAt   time.Time
}
