package viewstate

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAddFormTransitions(t *testing.T) {
	store := New()

	state := store.Snapshot("s1")
	assert.False(t, state.AddFormOpen, "the dashboard starts idle")

	store.OpenAddForm("s1")
	assert.True(t, store.Snapshot("s1").AddFormOpen)

	draft := Draft{Website: "example.com", Username: "alice", Password: ""}
	store.KeepDraft("s1", draft)
	state = store.Snapshot("s1")
	assert.True(t, state.AddFormOpen, "a failed save keeps the form open")
	assert.Equal(t, draft, state.Draft)

	store.CancelAddForm("s1")
	state = store.Snapshot("s1")
	assert.False(t, state.AddFormOpen)
	assert.Equal(t, draft, state.Draft, "cancel keeps the typed values")

	store.OpenAddForm("s1")
	store.CompleteSave("s1")
	state = store.Snapshot("s1")
	assert.False(t, state.AddFormOpen)
	assert.Equal(t, Draft{}, state.Draft)
}

func TestToggleReveal(t *testing.T) {
	store := New()

	assert.False(t, store.Snapshot("s1").IsRevealed("e1"), "passwords are hidden by default")

	assert.True(t, store.ToggleReveal("s1", "e1"))
	state := store.Snapshot("s1")
	assert.True(t, state.IsRevealed("e1"))
	assert.False(t, state.IsRevealed("e2"), "other entries are not affected")

	assert.False(t, store.ToggleReveal("s1", "e1"), "toggling twice restores the original state")
	assert.False(t, store.Snapshot("s1").IsRevealed("e1"))

	store.ToggleReveal("s1", "e2")
	assert.False(t, store.Snapshot("s2").IsRevealed("e2"), "sessions do not share state")
}

func TestSnapshotIsACopy(t *testing.T) {
	store := New()
	store.ToggleReveal("s1", "e1")

	state := store.Snapshot("s1")
	state.Revealed["e1"] = false
	state.Revealed["e9"] = true

	assert.True(t, store.Snapshot("s1").IsRevealed("e1"))
	assert.False(t, store.Snapshot("s1").IsRevealed("e9"))
}

func TestForgetAndDrop(t *testing.T) {
	store := New()
	store.ToggleReveal("s1", "e1")
	store.ToggleReveal("s1", "e2")
	store.OpenAddForm("s2")
	assert.Equal(t, 2, store.Len())

	store.Forget("s1", "e1")
	state := store.Snapshot("s1")
	assert.False(t, state.IsRevealed("e1"))
	assert.True(t, state.IsRevealed("e2"))

	store.Forget("missing", "e1")

	store.Drop("s1")
	assert.Equal(t, 1, store.Len())
	assert.False(t, store.Snapshot("s1").IsRevealed("e2"))
}

func TestConcurrentUse(t *testing.T) {
	store := New()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			store.ToggleReveal("s1", "e1")
			store.OpenAddForm("s1")
			_ = store.Snapshot("s1")
		}()
	}
	wg.Wait()

	assert.False(t, store.Snapshot("s1").IsRevealed("e1"), "an even number of toggles leaves the entry hidden")
}
