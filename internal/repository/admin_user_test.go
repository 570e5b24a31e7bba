package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdminUserRepository_Upsert(t *testing.T) {
	repo := NewAdminUserRepository(openTestDB(t))
	ctx := context.Background()

	user, err := repo.Upsert(ctx, "  Root ", "hash-1")
	require.NoError(t, err)
	require.NotNil(t, user)
	assert.Equal(t, "root", user.Username)

	again, err := repo.Upsert(ctx, "root", "hash-2")
	require.NoError(t, err)
	assert.Equal(t, user.ID, again.ID)
	assert.Equal(t, "hash-2", again.Password)

	found, err := repo.GetByUsername(ctx, "ROOT")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, "hash-2", found.Password)
}

func TestAdminUserRepository_Missing(t *testing.T) {
	repo := NewAdminUserRepository(openTestDB(t))
	ctx := context.Background()

	user, err := repo.GetByUsername(ctx, "ghost")
	require.NoError(t, err)
	assert.Nil(t, user)

	_, err = repo.Upsert(ctx, "   ", "hash")
	require.Error(t, err)
}
