package models

import "errors"

// Authentication errors: bad credentials, duplicate registration, expired session.
var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrEmailTaken         = errors.New("email is already registered")
	ErrSessionExpired     = errors.New("session expired or revoked")
)

// Authorization errors. A row that is not owned by the caller is reported
// exactly like a missing one.
var (
	ErrUnauthorized  = errors.New("no authenticated user")
	ErrEntryNotFound = errors.New("password entry not found")
)

var (
	ErrInvalidEntry             = errors.New("website, username and password are required")
	ErrInvalidCredentialsFormat = errors.New("a valid email and a password are required")
)

// Storage lookup misses.
var (
	ErrUserNotFound    = errors.New("user not found")
	ErrSessionNotFound = errors.New("session not found")
)
