// Package mockstorage provides a testify-based mock implementation
// of storage.Storage. It is used for unit testing HTTP handlers and the
// auth layer by simulating storage behavior, failures included.
package mockstorage

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/patric-chuzhbe/securevault/internal/models"
	"github.com/patric-chuzhbe/securevault/internal/user"
)

// StorageMock is a testify mock that implements storage.Storage.
type StorageMock struct {
	mock.Mock

	// OnGetNumberOfUsers is an optional function field that can be assigned
	// to define custom mock behavior for GetNumberOfUsers in tests.
	//
	// If set, GetNumberOfUsers will delegate to this function instead of
	// returning zero.
	OnGetNumberOfUsers func(ctx context.Context) (int64, error)

	// OnGetNumberOfEntries works the same way for GetNumberOfEntries.
	OnGetNumberOfEntries func(ctx context.Context) (int64, error)
}

// Ping mocks the health check.
func (m *StorageMock) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// Close mocks closing the storage and releasing resources.
func (m *StorageMock) Close() error {
	args := m.Called()
	return args.Error(0)
}

// CreateUser mocks user creation.
func (m *StorageMock) CreateUser(ctx context.Context, usr *user.User) error {
	args := m.Called(ctx, usr)
	return args.Error(0)
}

// GetUserByID mocks fetching a user by their ID.
func (m *StorageMock) GetUserByID(ctx context.Context, userID string) (*user.User, error) {
	args := m.Called(ctx, userID)
	usr, _ := args.Get(0).(*user.User)
	return usr, args.Error(1)
}

// GetUserByEmail mocks fetching a user by their email.
func (m *StorageMock) GetUserByEmail(ctx context.Context, email string) (*user.User, error) {
	args := m.Called(ctx, email)
	usr, _ := args.Get(0).(*user.User)
	return usr, args.Error(1)
}

func (m *StorageMock) CreateSession(ctx context.Context, session *models.Session) error {
	args := m.Called(ctx, session)
	return args.Error(0)
}

func (m *StorageMock) GetSession(ctx context.Context, sessionID string) (*models.Session, error) {
	args := m.Called(ctx, sessionID)
	session, _ := args.Get(0).(*models.Session)
	return session, args.Error(1)
}

func (m *StorageMock) DeleteSession(ctx context.Context, sessionID string) error {
	args := m.Called(ctx, sessionID)
	return args.Error(0)
}

func (m *StorageMock) DeleteExpiredSessions(ctx context.Context, now time.Time) ([]string, error) {
	args := m.Called(ctx, now)
	ids, _ := args.Get(0).([]string)
	return ids, args.Error(1)
}

// ListEntries mocks fetching a user's password entries.
func (m *StorageMock) ListEntries(ctx context.Context, userID string) (models.PasswordEntries, error) {
	args := m.Called(ctx, userID)
	entries, _ := args.Get(0).(models.PasswordEntries)
	return entries, args.Error(1)
}

// InsertEntry mocks storing a new entry.
func (m *StorageMock) InsertEntry(ctx context.Context, entry *models.PasswordEntry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

// DeleteEntry mocks removing an entry owned by userID.
func (m *StorageMock) DeleteEntry(ctx context.Context, userID, entryID string) (bool, error) {
	args := m.Called(ctx, userID, entryID)
	return args.Bool(0), args.Error(1)
}

// GetNumberOfUsers returns the number of users as defined by the mock.
//
// If OnGetNumberOfUsers is non-nil, it will be called to produce the result.
// Otherwise, the method returns 0 and no error by default.
func (m *StorageMock) GetNumberOfUsers(ctx context.Context) (int64, error) {
	if m.OnGetNumberOfUsers != nil {
		return m.OnGetNumberOfUsers(ctx)
	}
	return 0, nil
}

// GetNumberOfEntries returns the number of stored entries.
func (m *StorageMock) GetNumberOfEntries(ctx context.Context) (int64, error) {
	if m.OnGetNumberOfEntries != nil {
		return m.OnGetNumberOfEntries(ctx)
	}
	return 0, nil
}
