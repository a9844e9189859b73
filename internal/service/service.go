// Package service is the credential store client: list, insert and delete
// operations on password entries, always scoped to the calling user.
package service

import (
	"context"
	"fmt"
	"time"

	validator "github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/patric-chuzhbe/securevault/internal/models"
)

type entryKeeper interface {
	ListEntries(ctx context.Context, userID string) (models.PasswordEntries, error)

	InsertEntry(ctx context.Context, entry *models.PasswordEntry) error

	DeleteEntry(ctx context.Context, userID, entryID string) (bool, error)
}

type statsKeeper interface {
	GetNumberOfUsers(ctx context.Context) (int64, error)

	GetNumberOfEntries(ctx context.Context) (int64, error)
}

type pinger interface {
	Ping(ctx context.Context) error
}

type storage interface {
	entryKeeper
	statsKeeper
	pinger
}

// Service scopes every entry operation to the calling user.
type Service struct {
	db       storage
	validate *validator.Validate
	now      func() time.Time
}

// Errors returned by the service, shared with the models package so that
// callers may match either.
var (
	ErrUnauthorized  = models.ErrUnauthorized
	ErrEntryNotFound = models.ErrEntryNotFound
	ErrInvalidEntry  = models.ErrInvalidEntry
)

// Option customizes a Service built by New.
type Option func(*Service)

// WithClock replaces time.Now as the source of creation timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// New returns a Service on top of db.
func New(db storage, options ...Option) *Service {
	s := &Service{
		db:       db,
		validate: validator.New(),
		now:      time.Now,
	}
	for _, option := range options {
		option(s)
	}

	return s
}

// ListEntries returns every entry owned by userID, newest first.
// An empty slice is returned when the user has no entries.
func (s *Service) ListEntries(ctx context.Context, userID string) (models.PasswordEntries, error) {
	if userID == "" {
		return nil, ErrUnauthorized
	}

	entries, err := s.db.ListEntries(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("listing entries: %w", err)
	}
	if entries == nil {
		entries = models.PasswordEntries{}
	}

	return entries, nil
}

// AddEntry stores a new entry tagged with userID. All three fields are required.
func (s *Service) AddEntry(ctx context.Context, userID string, request models.NewEntryRequest) (*models.PasswordEntry, error) {
	if userID == "" {
		return nil, ErrUnauthorized
	}

	if err := s.validate.Struct(request); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEntry, err)
	}

	entry := &models.PasswordEntry{
		ID:        uuid.NewString(),
		UserID:    userID,
		Website:   request.Website,
		Username:  request.Username,
		Password:  request.Password,
		CreatedAt: s.now().UTC(),
	}
	if err := s.db.InsertEntry(ctx, entry); err != nil {
		return nil, fmt.Errorf("inserting entry: %w", err)
	}

	return entry, nil
}

// DeleteEntry removes the entry when userID owns it. Missing and foreign
// entries both yield ErrEntryNotFound.
func (s *Service) DeleteEntry(ctx context.Context, userID, entryID string) error {
	if userID == "" {
		return ErrUnauthorized
	}

	deleted, err := s.db.DeleteEntry(ctx, userID, entryID)
	if err != nil {
		return fmt.Errorf("deleting entry: %w", err)
	}
	if !deleted {
		return ErrEntryNotFound
	}

	return nil
}

// Ping checks the health of the storage layer.
func (s *Service) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// GetInternalStats returns the number of users and stored entries.
func (s *Service) GetInternalStats(ctx context.Context) (models.InternalStatsResponse, error) {
	users, err := s.db.GetNumberOfUsers(ctx)
	if err != nil {
		return models.InternalStatsResponse{}, err
	}

	entries, err := s.db.GetNumberOfEntries(ctx)
	if err != nil {
		return models.InternalStatsResponse{}, err
	}

	return models.InternalStatsResponse{
		Users:   users,
		Entries: entries,
	}, nil
}
