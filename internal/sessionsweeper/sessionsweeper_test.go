package sessionsweeper

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/patric-chuzhbe/securevault/internal/db/memorystorage"
	"github.com/patric-chuzhbe/securevault/internal/mockstorage"
	"github.com/patric-chuzhbe/securevault/internal/models"
	"github.com/patric-chuzhbe/securevault/internal/user"
	"github.com/patric-chuzhbe/securevault/internal/viewstate"
)

func TestSweep(t *testing.T) {
	ctx := context.Background()
	db, err := memorystorage.New()
	require.NoError(t, err)
	require.NoError(t, db.CreateUser(ctx, &user.User{ID: "u1", Email: "alice@example.com"}))

	now := time.Now().UTC()
	require.NoError(t, db.CreateSession(ctx, &models.Session{ID: "live", UserID: "u1", CreatedAt: now, ExpiresAt: now.Add(time.Hour)}))
	require.NoError(t, db.CreateSession(ctx, &models.Session{ID: "stale", UserID: "u1", CreatedAt: now, ExpiresAt: now.Add(-time.Second)}))

	states := viewstate.New()
	states.OpenAddForm("live")
	states.OpenAddForm("stale")

	sweeper := New(db, states, time.Minute, 1)
	removed, err := sweeper.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	assert.Equal(t, 1, states.Len())
	assert.True(t, states.Snapshot("live").AddFormOpen)

	_, err = db.GetSession(ctx, "stale")
	assert.ErrorIs(t, err, models.ErrSessionNotFound)
	_, err = db.GetSession(ctx, "live")
	assert.NoError(t, err)
}

func TestRunReportsErrors(t *testing.T) {
	db := new(mockstorage.StorageMock)
	db.On("DeleteExpiredSessions", mock.Anything, mock.Anything).Return(nil, errors.New("db down"))

	sweeper := New(db, viewstate.New(), 10*time.Millisecond, 1)

	errs := make(chan error, 1)
	sweeper.ListenErrors(func(err error) {
		select {
		case errs <- err:
		default:
		}
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sweeper.Run(ctx)

	select {
	case err := <-errs:
		assert.EqualError(t, err, "db down")
	case <-time.After(2 * time.Second):
		t.Fatal("the sweeper did not report the storage error")
	}
}

func TestRunDropsExpiredState(t *testing.T) {
	db := new(mockstorage.StorageMock)
	db.On("DeleteExpiredSessions", mock.Anything, mock.Anything).Return([]string{"s1"}, nil)

	states := viewstate.New()
	states.OpenAddForm("s1")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	New(db, states, 10*time.Millisecond, 1).Run(ctx)

	assert.Eventually(t, func() bool {
		return states.Len() == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestStopEndsErrorListener(t *testing.T) {
	db := new(mockstorage.StorageMock)
	db.On("DeleteExpiredSessions", mock.Anything, mock.Anything).Return(nil, nil).Maybe()

	sweeper := New(db, viewstate.New(), time.Hour, 1)

	listenerDone := make(chan struct{})
	go func() {
		defer close(listenerDone)
		for range sweeper.errorChannel {
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	sweeper.Run(ctx)
	cancel()

	select {
	case <-listenerDone:
	case <-time.After(2 * time.Second):
		t.Fatal("the error channel stayed open after the sweeper stopped")
	}
}
