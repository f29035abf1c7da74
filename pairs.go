// Partyroom pairing-guess game ("pairs")
//
// Each round one player hosts: they secretly pair five dealt adjectives with
// five dealt nouns, then everyone else submits their guess at the pairing.
// Every matched pair is worth two points; the round host earns a bonus point
// for every guesser who matched at least three. The host seat then rotates
// through the player list in join order.

package main

const pairsPerRound = 5

// Pairing phases, stored in PairsData.Phase.
const (
	pairsPairing  = 1
	pairsGuessing = 2
	pairsResults  = 3
)

type PairsData struct {
	Round      int                       `json:"round"`
	Phase      int                       `json:"phase"`
	HostIndex  int                       `json:"host_index"` // index into Room.Players
	Nouns      []string                  `json:"nouns"`
	Adjectives []string                  `json:"adjectives"`
	HostPairs  map[int]string            `json:"host_pairings,omitempty"`  // noun index -> adjective
	Guesses    map[string]map[int]string `json:"player_guesses,omitempty"` // player id -> noun index -> adjective
	Scored     bool                      `json:"scored,omitempty"`
}

type pairsRules struct{}

func (pairsRules) Kind() GameKind { return GamePairs }

func (pairsRules) DefaultSettings() Settings { return Settings{} }

func (pairsRules) ReadyToStart(r *Room) error {
	if len(r.Players) < 2 {
		return errNotReady
	}
	return nil
}

// Start deals the first round. A room re-started after a round end keeps its
// prepared data, so the rotated host and round counter survive the trip back
// through the lobby.
func (pairsRules) Start(r *Room) error {
	if r.Data != nil && r.Data.Pairs != nil {
		return nil
	}

	d := &PairsData{
		Round:     1,
		Phase:     pairsPairing,
		HostIndex: 0,
	}
	dealPairsRound(d)

	r.Data = &GameData{Pairs: d}
	return nil
}

func (pairsRules) Apply(r *Room, actorID string, a Action) error {
	d := r.Data.Pairs
	if d == nil {
		return errWrongPhase
	}

	roundHost := pairsHostID(r, d)

	switch a.Type {
	case "pair":
		if actorID != roundHost {
			return errNotYourTurn
		}
		if d.Phase != pairsPairing {
			return errWrongPhase
		}
		if err := validPairing(d, a.Pairs); err != nil {
			return err
		}

		d.HostPairs = copyPairing(a.Pairs)
		d.Phase = pairsGuessing
		return nil

	case "guess":
		if d.Phase != pairsGuessing {
			return errWrongPhase
		}
		if actorID == roundHost {
			return errNotYourTurn
		}
		if _, done := d.Guesses[actorID]; done {
			return errAlreadyDone
		}
		if err := validPairing(d, a.Pairs); err != nil {
			return err
		}

		if d.Guesses == nil {
			d.Guesses = make(map[string]map[int]string)
		}
		d.Guesses[actorID] = copyPairing(a.Pairs)

		if len(d.Guesses) >= len(r.Players)-1 {
			d.Phase = pairsResults
			applyPairsScores(r, d)
		}
		return nil

	case "next_round":
		if d.Phase != pairsResults {
			return errWrongPhase
		}
		if actorID != roundHost {
			return errNotYourTurn
		}

		d.HostIndex = (d.HostIndex + 1) % len(r.Players)
		d.Round++
		d.Phase = pairsPairing
		d.HostPairs = nil
		d.Guesses = nil
		d.Scored = false
		dealPairsRound(d)

		// Back through the lobby so everyone readies up for the next round.
		r.Status = StatusWaiting
		for _, p := range r.Players {
			p.IsReady = p.IsHost
		}
		return nil

	default:
		return errBadAction
	}
}

func (pairsRules) Terminal(r *Room) (*Outcome, bool) {
	// Rounds rotate until the host resets the room.
	return nil, false
}

// View hides the host's pairing until results, and every guess except the
// viewer's own.
func (pairsRules) View(r *Room, viewerID string) {
	if r.Data == nil || r.Data.Pairs == nil {
		return
	}
	d := r.Data.Pairs

	if d.Phase == pairsResults {
		return
	}

	if viewerID != pairsHostID(r, d) {
		d.HostPairs = nil
	}

	for id := range d.Guesses {
		if id != viewerID {
			delete(d.Guesses, id)
		}
	}
}

func pairsHostID(r *Room, d *PairsData) string {
	if d.HostIndex < 0 || d.HostIndex >= len(r.Players) {
		return ""
	}
	return r.Players[d.HostIndex].ID
}

func dealPairsRound(d *PairsData) {
	nouns := make([]string, len(pairsNouns))
	copy(nouns, pairsNouns)
	shuffleStrings(nouns)

	adjectives := make([]string, len(pairsAdjectives))
	copy(adjectives, pairsAdjectives)
	shuffleStrings(adjectives)

	d.Nouns = nouns[:pairsPerRound]
	d.Adjectives = adjectives[:pairsPerRound]
}

// validPairing accepts only a complete assignment: every dealt noun paired
// with a distinct dealt adjective. Anything partial, duplicated or foreign is
// rejected outright so no partial state is ever recorded.
func validPairing(d *PairsData, pairs map[int]string) error {
	if len(pairs) != pairsPerRound {
		return errBadAction
	}

	seen := make(map[string]bool, pairsPerRound)
	for idx, adjective := range pairs {
		if idx < 0 || idx >= len(d.Nouns) {
			return errBadAction
		}
		if seen[adjective] {
			return errBadAction
		}
		if !containsString(d.Adjectives, adjective) {
			return errBadAction
		}
		seen[adjective] = true
	}

	return nil
}

func copyPairing(pairs map[int]string) map[int]string {
	out := make(map[int]string, len(pairs))
	for k, v := range pairs {
		out[k] = v
	}
	return out
}

// applyPairsScores commits the round's points exactly once: two per correct
// pair for each guesser, plus one host bonus per guesser with three or more
// correct.
func applyPairsScores(r *Room, d *PairsData) {
	if d.Scored {
		return
	}
	d.Scored = true

	hostBonus := 0
	for playerID, guess := range d.Guesses {
		correct := 0
		for idx, adjective := range guess {
			if d.HostPairs[idx] == adjective {
				correct++
			}
		}

		if p := r.player(playerID); p != nil {
			p.Score += correct * 2
		}
		if correct >= 3 {
			hostBonus++
		}
	}

	if host := r.player(pairsHostID(r, d)); host != nil {
		host.Score += hostBonus
	}
}

var pairsNouns = []string{
	"кот", "чемодан", "робот", "арбуз", "дедушка", "телефон",
	"диван", "огурец", "трактор", "чайник", "пират", "компьютер",
	"самовар", "бегемот", "зонтик", "холодильник", "гном", "велосипед",
	"попугай", "будильник",
}

var pairsAdjectives = []string{
	"Большой", "Странный", "Весёлый", "Ленивый", "Колючий", "Блестящий",
	"Грустный", "Шумный", "Невидимый", "Квадратный", "Пушистый", "Железный",
	"Сонный", "Хитрый", "Прозрачный", "Горячий", "Резиновый", "Вредный",
	"Волшебный", "Скользкий",
}
