package postgres

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRepositories(t *testing.T) {
	db := &Connection{}

	challenges := NewChallengeRepository(db)
	assert.Equal(t, db, challenges.db)

	sessions := NewSessionRepository(db)
	assert.Equal(t, db, sessions.db)

	accounts := NewAccountRepository(db)
	assert.Equal(t, db, accounts.db)

	profiles := NewProfileRepository(db)
	assert.Equal(t, db, profiles.db)
}

func TestConnection_NilPool(t *testing.T) {
	conn := &Connection{}

	require.NoError(t, conn.Close())
	assert.Error(t, conn.Ping(context.Background()))
}
