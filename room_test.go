package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubRules is a minimal variant used to exercise the engine on its own.
type stubRules struct{}

func (stubRules) Kind() GameKind                  { return GameKind("stub") }
func (stubRules) DefaultSettings() Settings       { return Settings{} }
func (stubRules) ReadyToStart(r *Room) error      { return nil }
func (stubRules) Start(r *Room) error             { r.Data = &GameData{}; return nil }
func (stubRules) Apply(*Room, string, Action) error {
	return errBadAction
}
func (stubRules) Terminal(*Room) (*Outcome, bool) { return nil, false }
func (stubRules) View(*Room, string)              {}

func mustClone(t *testing.T, r *Room) *Room {
	t.Helper()

	out, err := r.clone()
	require.NoError(t, err)

	return out
}

func newTestService(t *testing.T, rules GameRules) *RoomService {
	t.Helper()

	cfg := &Config{
		dataDir: t.TempDir(),
	}

	svc, err := newRoomService(cfg, rules)
	require.NoError(t, err)

	return svc
}

func TestCreateMakesReadyHost(t *testing.T) {
	svc := newTestService(t, stubRules{})

	roomID, err := svc.Create("p1", "Alice")
	require.NoError(t, err)
	require.True(t, svc.Exists(roomID))

	room, err := svc.Room(roomID, "p1")
	require.NoError(t, err)

	assert.Equal(t, StatusWaiting, room.Status)
	assert.Equal(t, "p1", room.HostID)
	require.Len(t, room.Players, 1)
	assert.True(t, room.Players[0].IsHost)
	assert.True(t, room.Players[0].IsReady)
}

func TestJoinIsIdempotent(t *testing.T) {
	svc := newTestService(t, stubRules{})

	roomID, err := svc.Create("p1", "Alice")
	require.NoError(t, err)

	require.NoError(t, svc.Join(roomID, "p2", "Bob"))
	require.NoError(t, svc.JoinTeam(roomID, "p2", "red", RoleCaptain))

	// Rejoining must not duplicate the player nor touch team or role.
	require.NoError(t, svc.Join(roomID, "p2", "Bob"))

	room, err := svc.Room(roomID, "p2")
	require.NoError(t, err)

	require.Len(t, room.Players, 2)
	assert.Equal(t, "red", room.Players[1].Team)
	assert.Equal(t, RoleCaptain, room.Players[1].Role)
}

func TestJoinUnknownRoom(t *testing.T) {
	svc := newTestService(t, stubRules{})

	assert.ErrorIs(t, svc.Join("nope", "p1", "Alice"), errRoomNotFound)
}

func TestNewPlayersCannotJoinStartedGame(t *testing.T) {
	svc := newTestService(t, stubRules{})

	roomID, err := svc.Create("p1", "Alice")
	require.NoError(t, err)
	require.NoError(t, svc.Join(roomID, "p2", "Bob"))
	require.NoError(t, svc.SetReady(roomID, "p2", true))
	require.NoError(t, svc.Start(roomID, "p1"))

	assert.ErrorIs(t, svc.Join(roomID, "p3", "Eve"), errWrongPhase)

	// Present players may still refresh their membership.
	assert.NoError(t, svc.Join(roomID, "p2", "Bob"))
}

func TestLeavePromotesNextHost(t *testing.T) {
	svc := newTestService(t, stubRules{})

	roomID, err := svc.Create("p1", "Alice")
	require.NoError(t, err)
	require.NoError(t, svc.Join(roomID, "p2", "Bob"))
	require.NoError(t, svc.Join(roomID, "p3", "Eve"))

	require.NoError(t, svc.Leave(roomID, "p1"))

	room, err := svc.Room(roomID, "p2")
	require.NoError(t, err)

	assert.Equal(t, "p2", room.HostID)
	assert.True(t, room.Players[0].IsHost)
	require.Len(t, room.Players, 2)
}

func TestLastLeaveDeletesRoom(t *testing.T) {
	svc := newTestService(t, stubRules{})

	roomID, err := svc.Create("p1", "Alice")
	require.NoError(t, err)
	require.NoError(t, svc.Join(roomID, "p2", "Bob"))

	require.NoError(t, svc.Leave(roomID, "p2"))
	require.True(t, svc.Exists(roomID))

	require.NoError(t, svc.Leave(roomID, "p1"))
	assert.False(t, svc.Exists(roomID))

	_, err = svc.Room(roomID, "p1")
	assert.ErrorIs(t, err, errRoomNotFound)
}

func TestJoinTeamAsCaptainCreatesTeam(t *testing.T) {
	svc := newTestService(t, stubRules{})

	roomID, err := svc.Create("p1", "Alice")
	require.NoError(t, err)

	require.NoError(t, svc.JoinTeam(roomID, "p1", "red", RoleCaptain))

	room, err := svc.Room(roomID, "p1")
	require.NoError(t, err)

	require.Len(t, room.Teams, 1)
	assert.Equal(t, "p1", room.Teams[0].Captain)
	assert.Empty(t, room.Teams[0].Members)
}

func TestJoinTeamAsCaptainDemotesPrevious(t *testing.T) {
	svc := newTestService(t, stubRules{})

	roomID, err := svc.Create("p1", "Alice")
	require.NoError(t, err)
	require.NoError(t, svc.Join(roomID, "p2", "Bob"))

	require.NoError(t, svc.JoinTeam(roomID, "p1", "red", RoleCaptain))
	require.NoError(t, svc.JoinTeam(roomID, "p2", "red", RoleCaptain))

	room, err := svc.Room(roomID, "p1")
	require.NoError(t, err)

	require.Len(t, room.Teams, 1)
	assert.Equal(t, "p2", room.Teams[0].Captain)
	assert.Equal(t, []string{"p1"}, room.Teams[0].Members)
	assert.Equal(t, RoleMember, room.player("p1").Role)
}

func TestJoinTeamAsMemberRequiresTeam(t *testing.T) {
	svc := newTestService(t, stubRules{})

	roomID, err := svc.Create("p1", "Alice")
	require.NoError(t, err)

	assert.ErrorIs(t, svc.JoinTeam(roomID, "p1", "red", RoleMember), errTeamNotFound)
}

func TestSwitchingTeamsLeavesPreviousFirst(t *testing.T) {
	svc := newTestService(t, stubRules{})

	roomID, err := svc.Create("p1", "Alice")
	require.NoError(t, err)
	require.NoError(t, svc.Join(roomID, "p2", "Bob"))
	require.NoError(t, svc.Join(roomID, "p3", "Eve"))

	require.NoError(t, svc.JoinTeam(roomID, "p1", "red", RoleCaptain))
	require.NoError(t, svc.JoinTeam(roomID, "p2", "red", RoleMember))
	require.NoError(t, svc.JoinTeam(roomID, "p3", "blue", RoleCaptain))

	require.NoError(t, svc.JoinTeam(roomID, "p2", "blue", RoleMember))

	room, err := svc.Room(roomID, "p1")
	require.NoError(t, err)

	assert.Empty(t, room.team("red").Members)
	assert.Equal(t, []string{"p2"}, room.team("blue").Members)
	assert.Equal(t, "blue", room.player("p2").Team)
}

func TestLeavingCaptainPromotesFirstMember(t *testing.T) {
	svc := newTestService(t, stubRules{})

	roomID, err := svc.Create("p1", "Alice")
	require.NoError(t, err)
	require.NoError(t, svc.Join(roomID, "p2", "Bob"))
	require.NoError(t, svc.Join(roomID, "p3", "Eve"))

	require.NoError(t, svc.JoinTeam(roomID, "p2", "red", RoleCaptain))
	require.NoError(t, svc.JoinTeam(roomID, "p3", "red", RoleMember))

	require.NoError(t, svc.Leave(roomID, "p2"))

	room, err := svc.Room(roomID, "p1")
	require.NoError(t, err)

	require.Len(t, room.Teams, 1)
	assert.Equal(t, "p3", room.Teams[0].Captain)
	assert.Empty(t, room.Teams[0].Members)
	assert.Equal(t, RoleCaptain, room.player("p3").Role)
}

func TestLeavingLastTeamPlayerDisbandsTeam(t *testing.T) {
	svc := newTestService(t, stubRules{})

	roomID, err := svc.Create("p1", "Alice")
	require.NoError(t, err)
	require.NoError(t, svc.Join(roomID, "p2", "Bob"))
	require.NoError(t, svc.JoinTeam(roomID, "p2", "red", RoleCaptain))

	require.NoError(t, svc.Leave(roomID, "p2"))

	room, err := svc.Room(roomID, "p1")
	require.NoError(t, err)

	assert.Empty(t, room.Teams)
}

func TestStartGuards(t *testing.T) {
	svc := newTestService(t, stubRules{})

	roomID, err := svc.Create("p1", "Alice")
	require.NoError(t, err)
	require.NoError(t, svc.Join(roomID, "p2", "Bob"))

	assert.ErrorIs(t, svc.Start(roomID, "p2"), errNotHost)
	assert.ErrorIs(t, svc.Start(roomID, "p1"), errNotReady)

	require.NoError(t, svc.SetReady(roomID, "p2", true))
	require.NoError(t, svc.Start(roomID, "p1"))

	room, err := svc.Room(roomID, "p1")
	require.NoError(t, err)
	assert.Equal(t, StatusPlaying, room.Status)

	assert.ErrorIs(t, svc.Start(roomID, "p1"), errWrongPhase)
}

func TestResetPreservesPlayersAndScores(t *testing.T) {
	svc := newTestService(t, stubRules{})

	roomID, err := svc.Create("p1", "Alice")
	require.NoError(t, err)
	require.NoError(t, svc.Join(roomID, "p2", "Bob"))
	require.NoError(t, svc.SetReady(roomID, "p2", true))
	require.NoError(t, svc.Start(roomID, "p1"))

	// Bake in a score the way a finished round would.
	require.NoError(t, svc.update(roomID, func(r *Room) error {
		r.player("p2").Score = 6
		return nil
	}))

	assert.ErrorIs(t, svc.Reset(roomID, "p2"), errNotHost)
	require.NoError(t, svc.Reset(roomID, "p1"))

	room, err := svc.Room(roomID, "p1")
	require.NoError(t, err)

	assert.Equal(t, StatusWaiting, room.Status)
	assert.Nil(t, room.Data)
	require.Len(t, room.Players, 2)
	assert.Equal(t, 6, room.player("p2").Score)
	assert.False(t, room.player("p2").IsReady)
	assert.True(t, room.player("p1").IsReady)
}

func TestRejectionLeavesRoomUntouched(t *testing.T) {
	svc := newTestService(t, stubRules{})

	roomID, err := svc.Create("p1", "Alice")
	require.NoError(t, err)

	before, err := svc.Room(roomID, "p1")
	require.NoError(t, err)

	// stubRules rejects every action.
	require.NoError(t, svc.SetReady(roomID, "p1", true))
	require.NoError(t, svc.Start(roomID, "p1"))
	assert.Error(t, svc.Apply(roomID, "p1", Action{Type: "bogus"}))

	after, err := svc.Room(roomID, "p1")
	require.NoError(t, err)

	// The failed action must not move the watermark past the successful start.
	assert.Greater(t, after.LastActivity, before.LastActivity)
	mark := after.LastActivity

	assert.Error(t, svc.Apply(roomID, "p1", Action{Type: "bogus"}))

	again, err := svc.Room(roomID, "p1")
	require.NoError(t, err)
	assert.Equal(t, mark, again.LastActivity)
}

func TestWatermarkStrictlyIncreases(t *testing.T) {
	svc := newTestService(t, stubRules{})

	roomID, err := svc.Create("p1", "Alice")
	require.NoError(t, err)

	var last int64
	for i := 0; i < 5; i++ {
		require.NoError(t, svc.SetReady(roomID, "p1", i%2 == 0))

		room, err := svc.Room(roomID, "p1")
		require.NoError(t, err)

		assert.Greater(t, room.LastActivity, last)
		last = room.LastActivity
	}
}

func TestSetSettingsHostOnlyWhileWaiting(t *testing.T) {
	svc := newTestService(t, stubRules{})

	roomID, err := svc.Create("p1", "Alice")
	require.NoError(t, err)
	require.NoError(t, svc.Join(roomID, "p2", "Bob"))

	assert.ErrorIs(t, svc.SetSettings(roomID, "p2", Settings{GridSize: 6}), errNotHost)
	require.NoError(t, svc.SetSettings(roomID, "p1", Settings{GridSize: 6}))

	require.NoError(t, svc.SetReady(roomID, "p2", true))
	require.NoError(t, svc.Start(roomID, "p1"))
	assert.ErrorIs(t, svc.SetSettings(roomID, "p1", Settings{GridSize: 4}), errWrongPhase)

	room, err := svc.Room(roomID, "p1")
	require.NoError(t, err)
	assert.Equal(t, 6, room.Settings.GridSize)
}

func TestSnapshotDoesNotAliasStore(t *testing.T) {
	svc := newTestService(t, stubRules{})

	roomID, err := svc.Create("p1", "Alice")
	require.NoError(t, err)

	snap, err := svc.Room(roomID, "p1")
	require.NoError(t, err)
	snap.Players[0].Name = "Mallory"
	snap.LastActivity = 0

	room, err := svc.Room(roomID, "p1")
	require.NoError(t, err)
	assert.Equal(t, "Alice", room.Players[0].Name)
	assert.NotZero(t, room.LastActivity)
}
