package jsondb

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/patric-chuzhbe/securevault/internal/db/storage"
	"github.com/patric-chuzhbe/securevault/internal/models"
	"github.com/patric-chuzhbe/securevault/internal/user"
)

var _ storage.Storage = (*JSONDB)(nil)

func newUser(id, email string) *user.User {
	return &user.User{
		ID:           id,
		Email:        email,
		PasswordHash: []byte("hash-of-" + id),
		CreatedAt:    time.Now().UTC(),
	}
}

func entry(id, userID, website string, createdAt time.Time) *models.PasswordEntry {
	return &models.PasswordEntry{
		ID:        id,
		UserID:    userID,
		Website:   website,
		Username:  "alice",
		Password:  "p@ss-" + id,
		CreatedAt: createdAt,
	}
}

func Test(t *testing.T) {
	ctx := context.Background()
	testDBFileName := filepath.Join(t.TempDir(), "db_test.json")

	t.Run("The base jsondb package test", func(t *testing.T) {
		theStorage, err := New(testDBFileName)
		require.NoError(t, err)
		require.NotNil(t, theStorage)

		require.NoError(t, theStorage.CreateUser(ctx, newUser("u1", "alice@example.com")))
		require.NoError(t, theStorage.CreateUser(ctx, newUser("u2", "bob@example.com")))

		err = theStorage.CreateUser(ctx, newUser("u3", "alice@example.com"))
		assert.ErrorIs(t, err, models.ErrEmailTaken)

		usr, err := theStorage.GetUserByEmail(ctx, "alice@example.com")
		require.NoError(t, err)
		assert.Equal(t, "u1", usr.ID)

		_, err = theStorage.GetUserByID(ctx, "nobody")
		assert.ErrorIs(t, err, models.ErrUserNotFound)

		base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
		require.NoError(t, theStorage.InsertEntry(ctx, entry("e1", "u1", "first.com", base)))
		require.NoError(t, theStorage.InsertEntry(ctx, entry("e2", "u1", "second.com", base.Add(time.Minute))))
		require.NoError(t, theStorage.InsertEntry(ctx, entry("e3", "u2", "bobs.com", base)))

		err = theStorage.InsertEntry(ctx, entry("e4", "ghost", "ghost.com", base))
		assert.ErrorIs(t, err, models.ErrUserNotFound)

		entries, err := theStorage.ListEntries(ctx, "u1")
		require.NoError(t, err)
		require.Len(t, entries, 2)
		assert.Equal(t, "e2", entries[0].ID, "newest entry goes first")
		assert.Equal(t, "e1", entries[1].ID)

		deleted, err := theStorage.DeleteEntry(ctx, "u1", "e3")
		require.NoError(t, err)
		assert.False(t, deleted, "foreign entries must not be deleted")

		deleted, err = theStorage.DeleteEntry(ctx, "u1", "e1")
		require.NoError(t, err)
		assert.True(t, deleted)

		require.NoError(t, theStorage.Close())
	})

	t.Run("The data survives reopening", func(t *testing.T) {
		defer func() {
			err := os.Remove(testDBFileName)
			require.NoError(t, err)
		}()

		theStorage, err := New(testDBFileName)
		require.NoError(t, err)

		usr, err := theStorage.GetUserByID(ctx, "u2")
		require.NoError(t, err)
		assert.Equal(t, "bob@example.com", usr.Email)
		assert.Equal(t, []byte("hash-of-u2"), usr.PasswordHash)

		entries, err := theStorage.ListEntries(ctx, "u1")
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, "e2", entries[0].ID)

		users, err := theStorage.GetNumberOfUsers(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(2), users)

		total, err := theStorage.GetNumberOfEntries(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(2), total)

		require.NoError(t, theStorage.Close())
	})
}

func TestListEntriesSameTimestamp(t *testing.T) {
	ctx := context.Background()
	theStorage := NewInMemory()
	require.NoError(t, theStorage.CreateUser(ctx, newUser("u1", "alice@example.com")))

	createdAt := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, theStorage.InsertEntry(ctx, entry(id, "u1", id+".com", createdAt)))
	}

	entries, err := theStorage.ListEntries(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, []string{"c", "b", "a"}, []string{entries[0].ID, entries[1].ID, entries[2].ID})
}

func TestListEntriesEmpty(t *testing.T) {
	entries, err := NewInMemory().ListEntries(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestSessions(t *testing.T) {
	ctx := context.Background()
	theStorage := NewInMemory()
	require.NoError(t, theStorage.CreateUser(ctx, newUser("u1", "alice@example.com")))

	now := time.Now().UTC()
	live := &models.Session{ID: "live", UserID: "u1", CreatedAt: now, ExpiresAt: now.Add(time.Hour)}
	stale := &models.Session{ID: "stale", UserID: "u1", CreatedAt: now.Add(-2 * time.Hour), ExpiresAt: now.Add(-time.Hour)}
	require.NoError(t, theStorage.CreateSession(ctx, live))
	require.NoError(t, theStorage.CreateSession(ctx, stale))

	err := theStorage.CreateSession(ctx, &models.Session{ID: "orphan", UserID: "ghost"})
	assert.ErrorIs(t, err, models.ErrUserNotFound)

	got, err := theStorage.GetSession(ctx, "live")
	require.NoError(t, err)
	assert.Equal(t, "u1", got.UserID)

	expired, err := theStorage.DeleteExpiredSessions(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, []string{"stale"}, expired)

	_, err = theStorage.GetSession(ctx, "stale")
	assert.ErrorIs(t, err, models.ErrSessionNotFound)

	require.NoError(t, theStorage.DeleteSession(ctx, "live"))
	require.NoError(t, theStorage.DeleteSession(ctx, "live"), "deleting twice is not an error")

	_, err = theStorage.GetSession(ctx, "live")
	assert.ErrorIs(t, err, models.ErrSessionNotFound)
}

func TestFailedWriteLeavesCacheUntouched(t *testing.T) {
	ctx := context.Background()
	fileName := filepath.Join(t.TempDir(), "db.json")

	theStorage, err := New(fileName)
	require.NoError(t, err)
	require.NoError(t, theStorage.CreateUser(ctx, newUser("u1", "alice@example.com")))

	now := time.Now().UTC()
	require.NoError(t, theStorage.InsertEntry(ctx, entry("e1", "u1", "first.com", now)))
	require.NoError(t, theStorage.CreateSession(ctx, &models.Session{
		ID: "stale", UserID: "u1", CreatedAt: now.Add(-2 * time.Hour), ExpiresAt: now.Add(-time.Hour),
	}))

	// A directory in place of the file makes every write fail.
	require.NoError(t, os.Remove(fileName))
	require.NoError(t, os.Mkdir(fileName, 0o700))

	assert.Error(t, theStorage.InsertEntry(ctx, entry("e2", "u1", "second.com", now)))
	entries, err := theStorage.ListEntries(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, entries, 1, "a failed insert must not be listed")
	assert.Equal(t, "e1", entries[0].ID)

	deleted, err := theStorage.DeleteEntry(ctx, "u1", "e1")
	assert.Error(t, err)
	assert.False(t, deleted)
	entries, err = theStorage.ListEntries(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, entries, 1, "a failed delete keeps the entry")

	assert.Error(t, theStorage.CreateUser(ctx, newUser("u2", "bob@example.com")))
	_, err = theStorage.GetUserByEmail(ctx, "bob@example.com")
	assert.ErrorIs(t, err, models.ErrUserNotFound)

	_, err = theStorage.DeleteExpiredSessions(ctx, now)
	assert.Error(t, err)
	_, err = theStorage.GetSession(ctx, "stale")
	assert.NoError(t, err)
}
