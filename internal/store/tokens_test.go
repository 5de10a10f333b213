package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erazemk/posoja/internal/db"
)

func TestRevokeAndCheckToken(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	revoked, err := IsTokenRevoked(ctx, database, "test-jti-1")
	require.NoError(t, err)
	assert.False(t, revoked)

	require.NoError(t, RevokeToken(ctx, database, "test-jti-1", time.Now().Add(time.Hour)))

	revoked, err = IsTokenRevoked(ctx, database, "test-jti-1")
	require.NoError(t, err)
	assert.True(t, revoked)

	revoked, err = IsTokenRevoked(ctx, database, "test-jti-2")
	require.NoError(t, err)
	assert.False(t, revoked)

	// Revoking twice is fine.
	require.NoError(t, RevokeToken(ctx, database, "test-jti-1", time.Now().Add(time.Hour)))
}

func TestPurgeRevokedTokens(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	require.NoError(t, RevokeToken(ctx, database, "old", time.Now().Add(time.Hour)))
	require.NoError(t, RevokeToken(ctx, database, "new", time.Now().Add(3*time.Hour)))

	n, err := PurgeRevokedTokens(ctx, database, time.Now().Add(2*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	revoked, err := IsTokenRevoked(ctx, database, "old")
	require.NoError(t, err)
	assert.False(t, revoked)
	revoked, err = IsTokenRevoked(ctx, database, "new")
	require.NoError(t, err)
	assert.True(t, revoked)
}
