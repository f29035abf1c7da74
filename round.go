package main

import (
	"crypto/rand"
	"time"
)

// GameRules is the per-variant capability set plugged into RoomService. The
// engine owns lifecycle, persistence and synchronization; the rules own the
// shape of game_data and the legality and outcome of every in-game action.
type GameRules interface {
	Kind() GameKind

	// DefaultSettings seeds Room.Settings on creation.
	DefaultSettings() Settings

	// ReadyToStart reports why a waiting room cannot start yet, or nil.
	ReadyToStart(r *Room) error

	// Start populates r.Data with the variant's initial round state.
	Start(r *Room) error

	// Apply validates and executes one in-game action. On error the room is
	// left exactly as it was.
	Apply(r *Room, actorID string, a Action) error

	// Terminal reports the final outcome once the game has ended.
	Terminal(r *Room) (*Outcome, bool)

	// View redacts variant secrets from a cloned room before it is handed to
	// the given viewer.
	View(r *Room, viewerID string)
}

// Action is the single wire shape for all in-game moves; Type selects the
// variant-specific rule and the other fields carry its payload.
type Action struct {
	Type string `json:"type"`

	Card   int            `json:"card,omitempty"`   // reveal: field index
	Hint   string         `json:"hint,omitempty"`   // hint: text
	Count  int            `json:"count,omitempty"`  // hint: related card count
	Target string         `json:"target,omitempty"` // vote: accused player id
	Guess  string         `json:"guess,omitempty"`  // guess_secret: the secret
	Pairs  map[int]string `json:"pairs,omitempty"`  // pair / guess: noun index -> adjective
}

type Outcome struct {
	Winner string `json:"winner,omitempty"`
	Loser  string `json:"loser,omitempty"`
	Reason string `json:"reason,omitempty"`
}

// Start moves a waiting room into play. Host only; every player must be ready
// and the variant's own start guard must pass.
func (s *RoomService) Start(roomID, playerID string) error {
	return s.update(roomID, func(r *Room) error {
		if r.HostID != playerID {
			return errNotHost
		}
		if r.Status != StatusWaiting {
			return errWrongPhase
		}
		for _, p := range r.Players {
			if !p.IsReady {
				return errNotReady
			}
		}
		if err := s.rules.ReadyToStart(r); err != nil {
			return err
		}

		if err := s.rules.Start(r); err != nil {
			return err
		}

		r.Status = StatusPlaying
		r.player(playerID).LastAction = time.Now()

		logf(s.cfg, "GAMES: Started %s room %s with %d players", r.Game, roomID, len(r.Players))
		return nil
	})
}

// Reset returns a room to the lobby: game_data is cleared and status goes back
// to waiting, while players and their accumulated scores are preserved.
// Non-host players must ready up again.
func (s *RoomService) Reset(roomID, playerID string) error {
	return s.update(roomID, func(r *Room) error {
		if r.HostID != playerID {
			return errNotHost
		}

		r.Data = nil
		r.Status = StatusWaiting
		for _, p := range r.Players {
			p.IsReady = p.IsHost
		}

		logf(s.cfg, "GAMES: Reset %s room %s", r.Game, roomID)
		return nil
	})
}

// Apply runs one in-game action through the variant rules. Rooms that have
// already finished reject every action.
func (s *RoomService) Apply(roomID, playerID string, a Action) error {
	return s.update(roomID, func(r *Room) error {
		p := r.player(playerID)
		if p == nil {
			return errPlayerNotFound
		}
		if r.Status == StatusFinished {
			return errGameOver
		}
		if r.Status != StatusPlaying || r.Data == nil {
			return errWrongPhase
		}

		if err := s.rules.Apply(r, playerID, a); err != nil {
			return err
		}

		p.LastAction = time.Now()

		if _, done := s.rules.Terminal(r); done {
			r.Status = StatusFinished
			logf(s.cfg, "GAMES: Finished %s room %s", r.Game, roomID)
		}

		return nil
	})
}

// randIntn returns a crypto-random int in [0, n) for small n.
func randIntn(n int) int {
	var b [1]byte
	if _, err := rand.Read(b[:]); err != nil {
		return 0
	}
	return int(b[0]) % n
}

// Fisher-Yates shuffle using crypto/rand
func shuffleStrings(s []string) {
	for i := len(s) - 1; i > 0; i-- {
		j := randIntn(i + 1)
		s[i], s[j] = s[j], s[i]
	}
}
