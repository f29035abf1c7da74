// Partyroom hidden-role games ("impostor" and "spyfall")
//
// Every player but one receives a shared secret: a word from a category in
// impostor, a location in spyfall. The odd one out must blend in during live
// discussion; afterwards everyone votes on who the impostor is. All players
// tied for most votes are accused at once. A caught impostor gets a single
// shot at naming the secret, and a correct guess steals the win back.

package main

import (
	"strings"
)

// Hidden-role phases, stored in HiddenData.Round.
const (
	hiddenDiscussion = 1
	hiddenVoting     = 2
	hiddenResults    = 3
)

type HiddenData struct {
	Category      string            `json:"category"`
	Secret        string            `json:"secret"`
	ImpostorIndex int               `json:"impostor_index"` // index into Room.Players, kept aligned across leaves; -1 once the impostor is gone
	Round         int               `json:"round"`
	Votes         map[string]string `json:"votes"` // voter id -> accused id, immutable once cast
	SecretGuess   string            `json:"secret_guess,omitempty"`

	// Computed on read from Votes, never persisted with meaningful values.
	Accused []string `json:"accused,omitempty"`
	Caught  bool     `json:"caught,omitempty"`
	Winner  string   `json:"winner,omitempty"`
}

// hiddenRules covers both hidden-role variants; they differ only in where the
// secret comes from.
type hiddenRules struct {
	kind GameKind
}

func (h hiddenRules) Kind() GameKind { return h.kind }

func (h hiddenRules) DefaultSettings() Settings {
	if h.kind == GameImpostor {
		return Settings{Category: "random"}
	}
	return Settings{}
}

func (hiddenRules) ReadyToStart(r *Room) error {
	if len(r.Players) < 3 {
		return errNotReady
	}
	return nil
}

func (h hiddenRules) Start(r *Room) error {
	var category, secret string

	if h.kind == GameSpyfall {
		category = "locations"
		secret = spyfallLocations[randIntn(len(spyfallLocations))]
	} else {
		category = r.Settings.Category
		words, ok := impostorCategories[category]
		if !ok {
			names := impostorCategoryNames()
			category = names[randIntn(len(names))]
			words = impostorCategories[category]
		}
		secret = words[randIntn(len(words))]
	}

	r.Data = &GameData{Hidden: &HiddenData{
		Category:      category,
		Secret:        secret,
		ImpostorIndex: randIntn(len(r.Players)),
		Round:         hiddenDiscussion,
		Votes:         make(map[string]string),
	}}

	return nil
}

func (h hiddenRules) Apply(r *Room, actorID string, a Action) error {
	d := r.Data.Hidden
	if d == nil {
		return errWrongPhase
	}

	switch a.Type {
	case "advance":
		// Host calls the discussion to an end and opens the vote.
		if r.HostID != actorID {
			return errNotHost
		}
		if d.Round != hiddenDiscussion {
			return errWrongPhase
		}
		d.Round = hiddenVoting
		return nil

	case "vote":
		if d.Round != hiddenVoting {
			return errWrongPhase
		}
		if _, voted := d.Votes[actorID]; voted {
			return errAlreadyDone
		}
		if r.player(a.Target) == nil {
			return errPlayerNotFound
		}

		d.Votes[actorID] = a.Target

		if len(d.Votes) >= len(r.Players) {
			d.Round = hiddenResults
		}
		return nil

	case "guess_secret":
		if d.Round != hiddenResults {
			return errWrongPhase
		}
		if actorID != h.impostorID(r, d) {
			return errNotYourTurn
		}
		accused, _ := voteTally(d)
		if !containsString(accused, actorID) {
			return errWrongPhase
		}
		if d.SecretGuess != "" {
			return errAlreadyDone
		}
		if a.Guess == "" {
			return errBadAction
		}

		d.SecretGuess = a.Guess
		return nil

	default:
		return errBadAction
	}
}

func (hiddenRules) Terminal(r *Room) (*Outcome, bool) {
	// Hidden-role rooms stay open through the results round; the host resets
	// for the next game.
	return nil, false
}

// View hides the secret from the impostor, the impostor's identity from
// everyone until results, and other players' votes while voting is open.
// The accused set and winner are computed here, never cached.
func (h hiddenRules) View(r *Room, viewerID string) {
	if r.Data == nil || r.Data.Hidden == nil {
		return
	}
	d := r.Data.Hidden

	impostor := h.impostorID(r, d)

	if d.Round < hiddenResults {
		if viewerID == impostor || r.player(viewerID) == nil {
			d.Secret = ""
		}
		d.ImpostorIndex = -1

		redacted := make(map[string]string, len(d.Votes))
		for voter := range d.Votes {
			redacted[voter] = ""
		}
		d.Votes = redacted
		return
	}

	d.Accused, _ = voteTally(d)
	d.Caught = containsString(d.Accused, impostor)
	d.Winner = hiddenWinner(d, impostor)
}

func (h hiddenRules) impostorID(r *Room, d *HiddenData) string {
	if d.ImpostorIndex < 0 || d.ImpostorIndex >= len(r.Players) {
		return ""
	}
	return r.Players[d.ImpostorIndex].ID
}

// voteTally returns every player holding the maximum vote count. Ties are not
// broken: all leaders are simultaneously accused.
func voteTally(d *HiddenData) (accused []string, any bool) {
	counts := make(map[string]int)
	for _, target := range d.Votes {
		counts[target]++
	}

	max := 0
	for _, n := range counts {
		if n > max {
			max = n
		}
	}
	if max == 0 {
		return nil, false
	}

	for id, n := range counts {
		if n == max {
			accused = append(accused, id)
		}
	}
	return accused, true
}

// hiddenWinner resolves the results round. An uncaught impostor wins outright.
// A caught impostor still wins by naming the secret; until that guess is in,
// the result stays open.
func hiddenWinner(d *HiddenData, impostor string) string {
	accused, _ := voteTally(d)
	if !containsString(accused, impostor) {
		return "impostor"
	}
	if d.SecretGuess == "" {
		return ""
	}
	if strings.EqualFold(strings.TrimSpace(d.SecretGuess), d.Secret) {
		return "impostor"
	}
	return "players"
}

func containsString(s []string, v string) bool {
	for _, x := range s {
		if x == v {
			return true
		}
	}
	return false
}

func impostorCategoryNames() []string {
	names := make([]string, 0, len(impostorCategories))
	for name := range impostorCategories {
		names = append(names, name)
	}
	return names
}

var impostorCategories = map[string][]string{
	"животные": {
		"слон", "жираф", "пингвин", "дельфин", "верблюд", "белка",
		"крокодил", "сова", "хомяк", "кенгуру", "ёж", "волк",
	},
	"еда": {
		"пельмени", "борщ", "блины", "пицца", "суши", "шашлык",
		"оливье", "мороженое", "сырники", "плов", "хачапури", "компот",
	},
	"профессии": {
		"врач", "учитель", "пожарный", "космонавт", "повар", "актёр",
		"программист", "журналист", "водитель", "архитектор", "садовник", "судья",
	},
	"спорт": {
		"футбол", "хоккей", "шахматы", "теннис", "плавание", "бокс",
		"биатлон", "гимнастика", "волейбол", "фехтование", "кёрлинг", "регби",
	},
}

var spyfallLocations = []string{
	"пляж", "казино", "цирк", "посольство", "больница", "гостиница",
	"военная база", "полярная станция", "кинотеатр", "банк", "подводная лодка",
	"поезд", "самолёт", "театр", "университет", "ресторан", "космическая станция",
	"пиратский корабль", "супермаркет", "зоопарк",
}
