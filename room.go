// Partyroom Room & Turn-State Engine
//
// Every game variant runs on the same skeleton: a shared Room document that
// independent clients mutate and poll. Mutations follow one discipline,
// serialized per service: load the collection, locate the room, validate,
// mutate, bump the activity watermark, save the collection atomically, then
// notify subscribers. Clients either poll with their last-seen watermark or
// hold a websocket open for pushes; polling remains the fallback.

package main

import (
	"crypto/rand"
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

type GameKind string

const (
	GameCodenames GameKind = "codenames"
	GameImpostor  GameKind = "impostor"
	GameSpyfall   GameKind = "spyfall"
	GamePairs     GameKind = "pairs"
)

type RoomStatus string

const (
	StatusWaiting  RoomStatus = "waiting"
	StatusPlaying  RoomStatus = "playing"
	StatusFinished RoomStatus = "finished"
)

type Role string

const (
	RoleCaptain Role = "captain"
	RoleMember  Role = "member"
)

type Player struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	IsHost     bool      `json:"is_host"`
	IsReady    bool      `json:"is_ready"`
	Team       string    `json:"team,omitempty"`
	Role       Role      `json:"role,omitempty"`
	Score      int       `json:"score"`
	JoinedAt   time.Time `json:"joined_at"`
	LastAction time.Time `json:"last_action"`
}

// Team is used by the word-guessing variant. A player belongs to at most one
// team, and a team's captain is never also listed among its members.
type Team struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	Color   string   `json:"color"`
	Captain string   `json:"captain"`
	Members []string `json:"members,omitempty"`
}

type Settings struct {
	GridSize int    `json:"grid_size,omitempty"` // codenames field is grid_size x grid_size
	HintMode string `json:"hint_mode,omitempty"` // "free" or "limited" (count+1 guesses per hint)
	Category string `json:"category,omitempty"`  // impostor word category
}

type Room struct {
	ID           string     `json:"id"`
	Game         GameKind   `json:"game"`
	CreatedAt    time.Time  `json:"created_at"`
	LastActivity int64      `json:"last_activity"` // watermark, unix milliseconds, strictly increasing
	Status       RoomStatus `json:"status"`
	HostID       string     `json:"host_id"`
	Players      []*Player  `json:"players"` // insertion order = join order
	Teams        []*Team    `json:"teams,omitempty"`
	Settings     Settings   `json:"settings"`
	Data         *GameData  `json:"game_data,omitempty"`
}

// GameData is a closed union: exactly one branch is set, matching Room.Game.
type GameData struct {
	Words  *WordsData  `json:"words,omitempty"`
	Hidden *HiddenData `json:"hidden,omitempty"`
	Pairs  *PairsData  `json:"pairs,omitempty"`
}

func (r *Room) player(id string) *Player {
	for _, p := range r.Players {
		if p.ID == id {
			return p
		}
	}
	return nil
}

func (r *Room) playerIndex(id string) int {
	for i, p := range r.Players {
		if p.ID == id {
			return i
		}
	}
	return -1
}

func (r *Room) team(id string) *Team {
	for _, t := range r.Teams {
		if t.ID == id {
			return t
		}
	}
	return nil
}

// clone deep-copies a room so snapshots handed to callers never alias the
// collection about to be saved.
func (r *Room) clone() (*Room, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("encoding room snapshot: %w", err)
	}
	out := &Room{}
	if err := json.Unmarshal(data, out); err != nil {
		return nil, fmt.Errorf("decoding room snapshot: %w", err)
	}
	return out, nil
}

// RoomService drives one game variant's rooms. All mutations run under mu, so
// concurrent load-modify-save cycles cannot silently drop each other's writes.
type RoomService struct {
	cfg   *Config
	rules GameRules
	store *roomStore
	notes *notifier

	mu sync.Mutex
}

func newRoomService(cfg *Config, rules GameRules) (*RoomService, error) {
	store, err := newRoomStore(cfg, rules.Kind())
	if err != nil {
		return nil, err
	}

	svc := &RoomService{
		cfg:   cfg,
		rules: rules,
		store: store,
		notes: newNotifier(),
	}

	if cfg.sessionTimeout > 0 || cfg.playerTimeout > 0 {
		go svc.reaperLoop()
	}

	return svc, nil
}

// update is the single mutation path: load, locate, validate/mutate via fn,
// bump the watermark, save, notify. If fn fails nothing is saved, so the
// persisted document stays byte-identical. A room whose player list empties
// is deleted instead of saved.
func (s *RoomService) update(roomID string, fn func(*Room) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rooms := s.store.load()

	room, ok := rooms[roomID]
	if !ok {
		return errRoomNotFound
	}

	if err := fn(room); err != nil {
		return err
	}

	room.LastActivity = nextWatermark(room.LastActivity)

	if len(room.Players) == 0 {
		delete(rooms, roomID)
		if err := s.store.save(rooms); err != nil {
			return err
		}
		logf(s.cfg, "GAMES: Deleted empty %s room %s", s.rules.Kind(), roomID)
		s.notes.closeRoom(roomID)
		return nil
	}

	if err := s.store.save(rooms); err != nil {
		return err
	}

	s.notes.notify(roomID, room.LastActivity)
	return nil
}

// Create builds a room with the given player as its ready host and returns
// the new room id.
func (s *RoomService) Create(hostID, hostName string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rooms := s.store.load()

	id := newRoomID(rooms)
	now := time.Now()

	room := &Room{
		ID:        id,
		Game:      s.rules.Kind(),
		CreatedAt: now,
		Status:    StatusWaiting,
		HostID:    hostID,
		Settings:  s.rules.DefaultSettings(),
		Players: []*Player{{
			ID:         hostID,
			Name:       hostName,
			IsHost:     true,
			IsReady:    true,
			JoinedAt:   now,
			LastAction: now,
		}},
	}
	room.LastActivity = nextWatermark(0)

	rooms[id] = room
	if err := s.store.save(rooms); err != nil {
		return "", err
	}

	logf(s.cfg, "GAMES: Player %q created %s room %s", hostName, s.rules.Kind(), id)
	s.notes.notify(id, room.LastActivity)

	return id, nil
}

// Join adds a player to a room. Joining with an id already present only
// refreshes that player's last-action time; new players may only join rooms
// that are still waiting.
func (s *RoomService) Join(roomID, playerID, name string) error {
	return s.update(roomID, func(r *Room) error {
		now := time.Now()

		if p := r.player(playerID); p != nil {
			p.LastAction = now
			return nil
		}

		if r.Status != StatusWaiting {
			return errWrongPhase
		}

		r.Players = append(r.Players, &Player{
			ID:         playerID,
			Name:       name,
			JoinedAt:   now,
			LastAction: now,
		})

		logf(s.cfg, "GAMES: Player %q joined %s room %s", name, r.Game, roomID)
		return nil
	})
}

// Leave removes a player. The first remaining player inherits the host seat,
// team membership is cleaned up, and the room itself is deleted once empty.
func (s *RoomService) Leave(roomID, playerID string) error {
	return s.update(roomID, func(r *Room) error {
		idx := r.playerIndex(playerID)
		if idx < 0 {
			return errPlayerNotFound
		}

		wasHost := r.Players[idx].IsHost
		r.Players = append(r.Players[:idx], r.Players[idx+1:]...)

		if wasHost && len(r.Players) > 0 {
			r.Players[0].IsHost = true
			r.HostID = r.Players[0].ID
		}

		r.removeFromTeams(playerID)
		r.adjustAfterRemoval(idx)

		logf(s.cfg, "GAMES: Player %s left %s room %s", playerID, r.Game, roomID)
		return nil
	})
}

// adjustAfterRemoval keeps player-index references inside game data pointing
// at the same players once the player at idx is gone. A departed impostor or
// round host clears the seat rather than shifting it onto a neighbor.
func (r *Room) adjustAfterRemoval(idx int) {
	if r.Data == nil {
		return
	}

	if d := r.Data.Hidden; d != nil {
		switch {
		case d.ImpostorIndex > idx:
			d.ImpostorIndex--
		case d.ImpostorIndex == idx:
			d.ImpostorIndex = -1
		}
	}

	if d := r.Data.Pairs; d != nil {
		if d.HostIndex > idx {
			d.HostIndex--
		} else if d.HostIndex == idx && d.HostIndex >= len(r.Players) {
			d.HostIndex = 0
		}
	}
}

// removeFromTeams drops a player from whichever team holds them. A departing
// captain is replaced by the first remaining member; a team left empty is
// disbanded.
func (r *Room) removeFromTeams(playerID string) {
	for i := 0; i < len(r.Teams); i++ {
		t := r.Teams[i]

		if t.Captain == playerID {
			if len(t.Members) > 0 {
				t.Captain = t.Members[0]
				t.Members = t.Members[1:]
				if p := r.player(t.Captain); p != nil {
					p.Role = RoleCaptain
				}
				return
			}
			r.Teams = append(r.Teams[:i], r.Teams[i+1:]...)
			return
		}

		for j, m := range t.Members {
			if m == playerID {
				t.Members = append(t.Members[:j], t.Members[j+1:]...)
				if t.Captain == "" && len(t.Members) == 0 {
					r.Teams = append(r.Teams[:i], r.Teams[i+1:]...)
				}
				return
			}
		}
	}
}

func (s *RoomService) SetReady(roomID, playerID string, ready bool) error {
	return s.update(roomID, func(r *Room) error {
		p := r.player(playerID)
		if p == nil {
			return errPlayerNotFound
		}

		p.IsReady = ready
		p.LastAction = time.Now()
		return nil
	})
}

var teamColors = []string{"red", "blue", "green", "yellow", "purple"}

// JoinTeam assigns a player to a team. Joining as captain creates the team if
// it does not exist, or demotes the previous captain to member if it does.
// Joining as member appends to the member list. Either way the player leaves
// any previous team first.
func (s *RoomService) JoinTeam(roomID, playerID, teamID string, role Role) error {
	if role != RoleCaptain && role != RoleMember {
		return errBadAction
	}

	return s.update(roomID, func(r *Room) error {
		p := r.player(playerID)
		if p == nil {
			return errPlayerNotFound
		}
		if r.Status != StatusWaiting {
			return errWrongPhase
		}

		r.removeFromTeams(playerID)

		t := r.team(teamID)

		switch role {
		case RoleCaptain:
			if t == nil {
				t = &Team{
					ID:    teamID,
					Name:  teamID,
					Color: teamColors[len(r.Teams)%len(teamColors)],
				}
				r.Teams = append(r.Teams, t)
			} else if t.Captain != "" {
				t.Members = append(t.Members, t.Captain)
				if prev := r.player(t.Captain); prev != nil {
					prev.Role = RoleMember
				}
			}
			t.Captain = playerID

		case RoleMember:
			if t == nil {
				return errTeamNotFound
			}
			t.Members = append(t.Members, playerID)
		}

		p.Team = teamID
		p.Role = role
		p.LastAction = time.Now()
		return nil
	})
}

// SetSettings replaces the room settings. Host only, and only before the game
// starts.
func (s *RoomService) SetSettings(roomID, playerID string, settings Settings) error {
	return s.update(roomID, func(r *Room) error {
		if r.HostID != playerID {
			return errNotHost
		}
		if r.Status != StatusWaiting {
			return errWrongPhase
		}

		r.Settings = settings
		return nil
	})
}

// Exists reports whether a room is currently stored.
func (s *RoomService) Exists(roomID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.store.load()[roomID]
	return ok
}

// Room returns a snapshot of the room as the given viewer is allowed to see
// it, with variant secrets redacted.
func (s *RoomService) Room(roomID, viewerID string) (*Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	room, ok := s.store.load()[roomID]
	if !ok {
		return nil, errRoomNotFound
	}

	view, err := room.clone()
	if err != nil {
		return nil, err
	}
	s.rules.View(view, viewerID)

	return view, nil
}

// ChangedSince implements the polling contract: it returns the room's current
// watermark and whether it moved past the caller's last-seen value.
func (s *RoomService) ChangedSince(roomID string, since int64) (int64, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	room, ok := s.store.load()[roomID]
	if !ok {
		return 0, false, errRoomNotFound
	}

	return room.LastActivity, room.LastActivity > since, nil
}

const roomIDLetters = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// newRoomID generates a crypto-random 8-char room id that does not collide
// with any stored room.
func newRoomID(rooms map[string]*Room) string {
	for {
		buf := make([]byte, 8)
		if _, err := rand.Read(buf); err != nil {
			panic("crypto/rand failure: " + err.Error())
		}
		out := make([]byte, 8)
		for i := range out {
			out[i] = roomIDLetters[int(buf[i])%len(roomIDLetters)]
		}
		id := string(out)

		if _, exists := rooms[id]; !exists {
			return id
		}
	}
}
