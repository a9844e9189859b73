// Package user defines the account model owned by the authentication layer.
// Password entries reference it by ID only.
package user

import (
	"strings"
	"time"
)

// User represents a registered account.
type User struct {
	// ID is the unique identifier of the user, meaning a UUID.
	ID string `json:"id"`

	// Email is stored normalized, see NormalizeEmail.
	Email string `json:"email"`

	// PasswordHash is the bcrypt hash of the account password.
	PasswordHash []byte `json:"password_hash"`

	CreatedAt time.Time `json:"created_at"`
}

// NormalizeEmail trims surrounding spaces and lower-cases the address,
// so that lookups are case-insensitive.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
