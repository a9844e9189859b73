// Package storage describes the persistence contract shared by every
// backend. Entry operations take the caller's user ID and must only ever
// read or modify rows owned by that user.
package storage

import (
	"context"
	"time"

	"github.com/patric-chuzhbe/securevault/internal/models"
	"github.com/patric-chuzhbe/securevault/internal/user"
)

type UserKeeper interface {
	// CreateUser fails with models.ErrEmailTaken when the email is in use.
	CreateUser(ctx context.Context, usr *user.User) error

	GetUserByID(ctx context.Context, userID string) (*user.User, error)

	GetUserByEmail(ctx context.Context, email string) (*user.User, error)
}

type SessionKeeper interface {
	CreateSession(ctx context.Context, session *models.Session) error

	GetSession(ctx context.Context, sessionID string) (*models.Session, error)

	DeleteSession(ctx context.Context, sessionID string) error

	// DeleteExpiredSessions removes sessions expiring at or before now and
	// returns their IDs.
	DeleteExpiredSessions(ctx context.Context, now time.Time) ([]string, error)
}

type EntryKeeper interface {
	// ListEntries returns the user's entries, newest first.
	ListEntries(ctx context.Context, userID string) (models.PasswordEntries, error)

	InsertEntry(ctx context.Context, entry *models.PasswordEntry) error

	// DeleteEntry reports whether a row owned by userID was removed.
	DeleteEntry(ctx context.Context, userID, entryID string) (bool, error)
}

type StatsKeeper interface {
	GetNumberOfUsers(ctx context.Context) (int64, error)

	GetNumberOfEntries(ctx context.Context) (int64, error)
}

type Storage interface {
	UserKeeper
	SessionKeeper
	EntryKeeper
	StatsKeeper

	Ping(ctx context.Context) error

	Close() error
}
