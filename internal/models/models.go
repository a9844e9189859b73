package models

import "time"

type PasswordEntry struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Website   string    `json:"website"`
	Username  string    `json:"username"`
	Password  string    `json:"password"`
	CreatedAt time.Time `json:"created_at"`
}

type PasswordEntries []PasswordEntry

type NewEntryRequest struct {
	Website  string `json:"website" validate:"required"`
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type CredentialsRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type UserResponse struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

type Session struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// IsExpired reports whether the session is no longer usable at the given moment.
func (s *Session) IsExpired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

type InternalStatsResponse struct {
	Users   int64 `json:"users"`
	Entries int64 `json:"entries"`
}

const (
	StorageTypeUnknown = iota
	StorageTypePostgresql
	StorageTypeSQLite
	StorageTypeFile
	StorageTypeMemory
)
