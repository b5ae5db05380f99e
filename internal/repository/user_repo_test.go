package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestUserRepositoryCredentials(t *testing.T) {
	db := setupTestDB(t)
	repo := NewUserRepository(db)
	alice := seedUser(t, db, "alice")
	bob := seedUser(t, db, "bob")
	ctx := context.Background()

	require.NoError(t, repo.UpdateCredentials(ctx, alice.ID, "ssh-ed25519 AAAAkey", "uploadkeyuploadkey00alice"))

	inUse, err := repo.SSHKeyInUse(ctx, "ssh-ed25519 AAAAkey", bob.ID)
	require.NoError(t, err)
	require.True(t, inUse)

	inUse, err = repo.SSHKeyInUse(ctx, "ssh-ed25519 AAAAkey", alice.ID)
	require.NoError(t, err)
	require.False(t, inUse, "own key does not count as taken")

	found, err := repo.GetByUploadKey(ctx, "uploadkeyuploadkey00alice")
	require.NoError(t, err)
	require.Equal(t, alice.ID, found.ID)
	require.Equal(t, "ssh-ed25519 AAAAkey", found.CurrentSSHKey())

	_, err = repo.GetByUploadKey(ctx, "")
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestUserRepositoryUpdatesSingleColumns(t *testing.T) {
	db := setupTestDB(t)
	repo := NewUserRepository(db)
	user := seedUser(t, db, "alice")
	ctx := context.Background()

	require.NoError(t, repo.UpdateName(ctx, user.ID, "Alice"))
	require.NoError(t, repo.UpdatePassword(ctx, user.ID, "new-hash"))

	stored, err := repo.GetByID(ctx, user.ID)
	require.NoError(t, err)
	require.Equal(t, "Alice", stored.Meta.Name)
	require.Equal(t, "alice", stored.Meta.ID)
	require.Equal(t, "new-hash", stored.Password)
	require.Equal(t, "alice@example.com", stored.Email)

	require.ErrorIs(t, repo.UpdateName(ctx, 999, "ghost"), gorm.ErrRecordNotFound)
}

func TestProblemRepositoryListFiltersHidden(t *testing.T) {
	db := setupTestDB(t)
	repo := NewProblemRepository(db)
	seedProblem(t, db, "Visible", true)
	seedProblem(t, db, "Hidden", false)
	ctx := context.Background()

	visible, err := repo.List(ctx, false)
	require.NoError(t, err)
	require.Len(t, visible, 1)
	require.Equal(t, "Visible", visible[0].Name)

	all, err := repo.List(ctx, true)
	require.NoError(t, err)
	require.Len(t, all, 2)
}
