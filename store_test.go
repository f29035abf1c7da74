package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *roomStore {
	t.Helper()

	store, err := newRoomStore(&Config{dataDir: t.TempDir()}, GameCodenames)
	require.NoError(t, err)

	return store
}

func TestStoreLoadMissingDocument(t *testing.T) {
	store := newTestStore(t)

	rooms := store.load()
	assert.Empty(t, rooms)
}

func TestStoreLoadCorruptDocument(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, os.WriteFile(store.path, []byte("{not json"), 0o644))

	rooms := store.load()
	assert.Empty(t, rooms)
}

func TestStoreRoundTrip(t *testing.T) {
	store := newTestStore(t)

	now := time.Now().UTC().Truncate(time.Millisecond)
	rooms := map[string]*Room{
		"abcd1234": {
			ID:           "abcd1234",
			Game:         GameCodenames,
			CreatedAt:    now,
			LastActivity: now.UnixMilli(),
			Status:       StatusPlaying,
			HostID:       "p1",
			Players: []*Player{
				{ID: "p1", Name: "Alice", IsHost: true, IsReady: true, Team: "red", Role: RoleCaptain, Score: 3, JoinedAt: now, LastAction: now},
				{ID: "p2", Name: "Bob", Team: "red", Role: RoleMember, JoinedAt: now, LastAction: now},
			},
			Teams: []*Team{
				{ID: "red", Name: "red", Color: "red", Captain: "p1", Members: []string{"p2"}},
			},
			Settings: Settings{GridSize: 5, HintMode: HintModeFree},
			Data: &GameData{
				Words: &WordsData{
					Field:       []Card{{Symbol: "Кот", Owner: "red"}, {Symbol: "Дом", Owner: OwnerAssassin}},
					TurnOrder:   []string{"red", "blue"},
					CurrentTeam: "red",
					Hint:        &Hint{Text: "животное", Count: 1},
				},
			},
		},
	}

	require.NoError(t, store.save(rooms))

	loaded := store.load()
	require.Len(t, loaded, 1)
	assert.Equal(t, rooms["abcd1234"], loaded["abcd1234"])
}

func TestStoreSaveReplacesAtomically(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.save(map[string]*Room{
		"one": {ID: "one", Game: GameCodenames, Players: []*Player{{ID: "p1"}}},
	}))
	require.NoError(t, store.save(map[string]*Room{
		"two": {ID: "two", Game: GameCodenames, Players: []*Player{{ID: "p2"}}},
	}))

	loaded := store.load()
	require.Len(t, loaded, 1)
	assert.Contains(t, loaded, "two")

	// No temp files may survive a successful save.
	entries, err := os.ReadDir(filepath.Dir(store.path))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, filepath.Base(store.path), entries[0].Name())
}

func TestStoreDeletionPersists(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.save(map[string]*Room{
		"one": {ID: "one", Players: []*Player{{ID: "p1"}}},
		"two": {ID: "two", Players: []*Player{{ID: "p2"}}},
	}))

	rooms := store.load()
	delete(rooms, "one")
	require.NoError(t, store.save(rooms))

	loaded := store.load()
	require.Len(t, loaded, 1)
	assert.Contains(t, loaded, "two")
}
