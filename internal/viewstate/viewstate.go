// Package viewstate keeps the ephemeral dashboard state of each browser
// session: whether the "add entry" form is open, the values typed into it
// and which entries currently show their password in clear text.
//
// Nothing here is persisted. The state of a session lives from its first
// use until Drop is called on logout or session expiry.
package viewstate

import "sync"

// Draft is the in-progress "new entry" form.
type Draft struct {
	Website  string
	Username string
	Password string
}

// State is a copy of one session's view state.
type State struct {
	AddFormOpen bool
	Draft       Draft
	Revealed    map[string]bool
}

// IsRevealed reports whether the entry's password is shown. Entries are
// hidden by default.
func (s State) IsRevealed(entryID string) bool {
	return s.Revealed[entryID]
}

type sessionState struct {
	addFormOpen bool
	draft       Draft
	revealed    map[string]bool
}

// Store is safe for concurrent use.
type Store struct {
	mu       sync.Mutex
	sessions map[string]*sessionState
}

func New() *Store {
	return &Store{
		sessions: map[string]*sessionState{},
	}
}

// get must be called with mu held.
func (s *Store) get(sessionID string) *sessionState {
	state, ok := s.sessions[sessionID]
	if !ok {
		state = &sessionState{revealed: map[string]bool{}}
		s.sessions[sessionID] = state
	}

	return state
}

// Snapshot returns a copy of the session's state.
func (s *Store) Snapshot(sessionID string) State {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, ok := s.sessions[sessionID]
	if !ok {
		return State{Revealed: map[string]bool{}}
	}

	revealed := make(map[string]bool, len(state.revealed))
	for id, shown := range state.revealed {
		revealed[id] = shown
	}

	return State{
		AddFormOpen: state.addFormOpen,
		Draft:       state.draft,
		Revealed:    revealed,
	}
}

// OpenAddForm moves the dashboard from idle to addFormOpen.
func (s *Store) OpenAddForm(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.get(sessionID).addFormOpen = true
}

// CancelAddForm closes the form. The draft is kept so that reopening the
// form shows what was typed before.
func (s *Store) CancelAddForm(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.get(sessionID).addFormOpen = false
}

// KeepDraft remembers submitted form values after a failed save; the form stays open.
func (s *Store) KeepDraft(sessionID string, draft Draft) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state := s.get(sessionID)
	state.draft = draft
	state.addFormOpen = true
}

// CompleteSave resets the draft and closes the form after a successful save.
func (s *Store) CompleteSave(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state := s.get(sessionID)
	state.draft = Draft{}
	state.addFormOpen = false
}

// ToggleReveal flips the visibility of one entry's password and returns
// the new value. Other entries are not affected.
func (s *Store) ToggleReveal(sessionID, entryID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	state := s.get(sessionID)
	state.revealed[entryID] = !state.revealed[entryID]

	return state.revealed[entryID]
}

// Forget drops the reveal flag of a deleted entry.
func (s *Store) Forget(sessionID, entryID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if state, ok := s.sessions[sessionID]; ok {
		delete(state.revealed, entryID)
	}
}

// Drop tears down all state of a session.
func (s *Store) Drop(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, sessionID)
}

// Len returns the number of sessions holding state.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.sessions)
}
