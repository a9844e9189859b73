package memorystorage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/patric-chuzhbe/securevault/internal/db/storage"
	"github.com/patric-chuzhbe/securevault/internal/models"
	"github.com/patric-chuzhbe/securevault/internal/user"
)

var _ storage.Storage = (*MemoryStorage)(nil)

func TestMemoryStorage(t *testing.T) {
	ctx := context.Background()
	theStorage, err := New()
	require.NoError(t, err)
	defer func() {
		require.NoError(t, theStorage.Close())
	}()

	require.NoError(t, theStorage.Ping(ctx))

	require.NoError(t, theStorage.CreateUser(ctx, &user.User{ID: "u1", Email: "alice@example.com"}))
	require.NoError(t, theStorage.InsertEntry(ctx, &models.PasswordEntry{
		ID:        "e1",
		UserID:    "u1",
		Website:   "example.com",
		Username:  "alice",
		Password:  "p@ss1",
		CreatedAt: time.Now().UTC(),
	}))

	entries, err := theStorage.ListEntries(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "example.com", entries[0].Website)

	other, err := theStorage.ListEntries(ctx, "u2")
	require.NoError(t, err)
	assert.Empty(t, other)
}
