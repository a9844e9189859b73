// Package dashboard drives the password vault page: it combines the user's
// entries from the credential store with the per-session view state and
// turns the page actions (open/cancel the add form, save, delete, reveal)
// into state transitions.
package dashboard

import (
	"context"
	"errors"

	"github.com/patric-chuzhbe/securevault/internal/auth"
	"github.com/patric-chuzhbe/securevault/internal/logger"
	"github.com/patric-chuzhbe/securevault/internal/models"
	"github.com/patric-chuzhbe/securevault/internal/views"
	"github.com/patric-chuzhbe/securevault/internal/viewstate"
)

type vault interface {
	ListEntries(ctx context.Context, userID string) (models.PasswordEntries, error)

	AddEntry(ctx context.Context, userID string, request models.NewEntryRequest) (*models.PasswordEntry, error)

	DeleteEntry(ctx context.Context, userID, entryID string) error
}

// Dashboard is shared by all sessions; per-session data lives in the store.
type Dashboard struct {
	vault  vault
	states *viewstate.Store
}

// New wires the dashboard to the credential store and the view state.
func New(vault vault, states *viewstate.Store) *Dashboard {
	return &Dashboard{
		vault:  vault,
		states: states,
	}
}

// Page builds the dashboard for the identity. A failing store read is
// logged and rendered as an empty list.
func (d *Dashboard) Page(ctx context.Context, identity *auth.Identity) views.Dashboard {
	state := d.states.Snapshot(identity.SessionID)

	entries, err := d.vault.ListEntries(ctx, identity.UserID)
	if err != nil {
		logger.Log.Errorw("loading password entries", "user", identity.UserID, "error", err)
		entries = nil
	}

	cards := make([]views.EntryCard, 0, len(entries))
	for _, entry := range entries {
		revealed := state.IsRevealed(entry.ID)
		password := views.MaskedPassword
		if revealed {
			password = entry.Password
		}
		cards = append(cards, views.EntryCard{
			ID:       entry.ID,
			Website:  entry.Website,
			Username: entry.Username,
			Password: password,
			Revealed: revealed,
		})
	}

	return views.Dashboard{
		Email:       identity.Email,
		AddFormOpen: state.AddFormOpen,
		Website:     state.Draft.Website,
		Username:    state.Draft.Username,
		Password:    state.Draft.Password,
		Entries:     cards,
	}
}

func (d *Dashboard) OpenAddForm(identity *auth.Identity) {
	d.states.OpenAddForm(identity.SessionID)
}

func (d *Dashboard) CancelAddForm(identity *auth.Identity) {
	d.states.CancelAddForm(identity.SessionID)
}

// SaveEntry inserts the draft. On success the form is closed and reset;
// on failure it stays open with the submitted values and the error is
// logged. The error is returned for callers that want to react to it.
func (d *Dashboard) SaveEntry(ctx context.Context, identity *auth.Identity, draft viewstate.Draft) error {
	_, err := d.vault.AddEntry(ctx, identity.UserID, models.NewEntryRequest{
		Website:  draft.Website,
		Username: draft.Username,
		Password: draft.Password,
	})
	if err != nil {
		d.states.KeepDraft(identity.SessionID, draft)
		logger.Log.Errorw("saving password entry", "user", identity.UserID, "error", err)
		return err
	}

	d.states.CompleteSave(identity.SessionID)

	return nil
}

// DeleteEntry removes the entry. A failed delete leaves the list untouched.
func (d *Dashboard) DeleteEntry(ctx context.Context, identity *auth.Identity, entryID string) error {
	err := d.vault.DeleteEntry(ctx, identity.UserID, entryID)
	if err != nil && !errors.Is(err, models.ErrEntryNotFound) {
		logger.Log.Errorw("deleting password entry", "user", identity.UserID, "entry", entryID, "error", err)
		return err
	}
	d.states.Forget(identity.SessionID, entryID)

	return err
}

// ToggleReveal flips the visibility of one entry's password. Ids that are
// not among the caller's entries leave the view state untouched and yield
// ErrEntryNotFound.
func (d *Dashboard) ToggleReveal(ctx context.Context, identity *auth.Identity, entryID string) (bool, error) {
	entries, err := d.vault.ListEntries(ctx, identity.UserID)
	if err != nil {
		logger.Log.Errorw("loading password entries", "user", identity.UserID, "error", err)
		return false, err
	}

	for _, entry := range entries {
		if entry.ID == entryID {
			return d.states.ToggleReveal(identity.SessionID, entryID), nil
		}
	}

	return false, models.ErrEntryNotFound
}

// Leave drops the session's view state.
func (d *Dashboard) Leave(identity *auth.Identity) {
	d.states.Drop(identity.SessionID)
}
