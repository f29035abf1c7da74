// Partyroom word-guessing game ("codenames")
//
// Teams take turns revealing cards on a shared grid. Each card belongs to one
// team, to nobody, or to the assassin. The captain of the acting team gives a
// hint, team members reveal cards: an own-team card keeps the turn, anything
// else passes it, and the assassin ends the game on the spot with the
// revealing team losing. A team wins the moment all of its cards are revealed.

package main

const (
	OwnerNeutral  = "neutral"
	OwnerAssassin = "assassin"
)

const (
	HintModeFree    = "free"    // no limit on guesses per hint
	HintModeLimited = "limited" // at most count+1 reveals per hint
)

type Card struct {
	Symbol   string `json:"symbol"`
	Owner    string `json:"owner"` // team id, "neutral" or "assassin"
	Revealed bool   `json:"revealed"`
}

type Hint struct {
	Text        string `json:"text"`
	Count       int    `json:"count"`
	GuessesMade int    `json:"guesses_made"`
}

type WordsData struct {
	Field       []Card   `json:"field"`
	TurnOrder   []string `json:"turn_order"` // cyclic team id sequence
	CurrentTeam string   `json:"current_team"`
	Hint        *Hint    `json:"current_hint,omitempty"`
	Outcome     *Outcome `json:"outcome,omitempty"`
}

type codenamesRules struct{}

func (codenamesRules) Kind() GameKind { return GameCodenames }

func (codenamesRules) DefaultSettings() Settings {
	return Settings{
		GridSize: 5,
		HintMode: HintModeFree,
	}
}

func (codenamesRules) ReadyToStart(r *Room) error {
	if len(r.Teams) < 2 {
		return errNotReady
	}
	for _, t := range r.Teams {
		if t.Captain == "" {
			return errNotReady
		}
	}
	return nil
}

// Start deals the field: grid² cards, one assassin, base = total/(teams+1)
// cards per team with the opening team getting one extra, the rest neutral.
func (codenamesRules) Start(r *Room) error {
	size := r.Settings.GridSize
	if size < 4 || size > 6 {
		size = 5
	}
	total := size * size

	order := make([]string, 0, len(r.Teams))
	for _, t := range r.Teams {
		order = append(order, t.ID)
	}
	shuffleStrings(order)

	base := total / (len(order) + 1)

	owners := make([]string, 0, total)
	owners = append(owners, OwnerAssassin)
	for i, team := range order {
		n := base
		if i == 0 {
			n++
		}
		for j := 0; j < n; j++ {
			owners = append(owners, team)
		}
	}
	for len(owners) < total {
		owners = append(owners, OwnerNeutral)
	}
	shuffleStrings(owners)

	words := make([]string, len(codenamesWords))
	copy(words, codenamesWords)
	shuffleStrings(words)

	field := make([]Card, total)
	for i := range field {
		field[i] = Card{
			Symbol: words[i],
			Owner:  owners[i],
		}
	}

	r.Data = &GameData{Words: &WordsData{
		Field:       field,
		TurnOrder:   order,
		CurrentTeam: order[0],
	}}

	return nil
}

func (codenamesRules) Apply(r *Room, actorID string, a Action) error {
	d := r.Data.Words
	if d == nil {
		return errWrongPhase
	}
	if d.Outcome != nil {
		return errGameOver
	}

	p := r.player(actorID)
	if p == nil {
		return errPlayerNotFound
	}

	switch a.Type {
	case "hint":
		if p.Team != d.CurrentTeam || p.Role != RoleCaptain {
			return errNotCaptain
		}
		if a.Hint == "" || a.Count < 1 {
			return errBadAction
		}
		d.Hint = &Hint{
			Text:  a.Hint,
			Count: a.Count,
		}
		return nil

	case "reveal":
		if p.Team != d.CurrentTeam {
			return errNotYourTurn
		}
		if a.Card < 0 || a.Card >= len(d.Field) {
			return errBadAction
		}
		card := &d.Field[a.Card]
		if card.Revealed {
			return errAlreadyDone
		}

		card.Revealed = true
		if d.Hint != nil {
			d.Hint.GuessesMade++
		}

		switch {
		case card.Owner == OwnerAssassin:
			d.Outcome = assassinOutcome(d, p.Team)

		case card.Owner == p.Team:
			if fullyRevealed(d, card.Owner) {
				d.Outcome = &Outcome{Winner: card.Owner, Reason: "all_revealed"}
			} else if r.Settings.HintMode == HintModeLimited && d.Hint != nil && d.Hint.GuessesMade > d.Hint.Count {
				passTurn(d)
			}

		default:
			// Revealing a card owned by another team can hand them the win.
			if card.Owner != OwnerNeutral && fullyRevealed(d, card.Owner) {
				d.Outcome = &Outcome{Winner: card.Owner, Reason: "all_revealed"}
			} else {
				passTurn(d)
			}
		}
		return nil

	default:
		return errBadAction
	}
}

func (codenamesRules) Terminal(r *Room) (*Outcome, bool) {
	if r.Data == nil || r.Data.Words == nil || r.Data.Words.Outcome == nil {
		return nil, false
	}
	return r.Data.Words.Outcome, true
}

// View hides unrevealed card owners from everybody except captains until the
// game has ended.
func (codenamesRules) View(r *Room, viewerID string) {
	if r.Data == nil || r.Data.Words == nil || r.Status == StatusFinished {
		return
	}

	if p := r.player(viewerID); p != nil && p.Role == RoleCaptain {
		return
	}

	for i := range r.Data.Words.Field {
		if !r.Data.Words.Field[i].Revealed {
			r.Data.Words.Field[i].Owner = ""
		}
	}
}

// passTurn advances current_team to the next entry of turn_order, wrapping
// cyclically, and retires the spent hint.
func passTurn(d *WordsData) {
	for i, team := range d.TurnOrder {
		if team == d.CurrentTeam {
			d.CurrentTeam = d.TurnOrder[(i+1)%len(d.TurnOrder)]
			break
		}
	}
	d.Hint = nil
}

func fullyRevealed(d *WordsData, team string) bool {
	for _, c := range d.Field {
		if c.Owner == team && !c.Revealed {
			return false
		}
	}
	return true
}

func assassinOutcome(d *WordsData, loser string) *Outcome {
	out := &Outcome{Loser: loser, Reason: "assassin"}
	if len(d.TurnOrder) == 2 {
		for _, team := range d.TurnOrder {
			if team != loser {
				out.Winner = team
			}
		}
	}
	return out
}

var codenamesWords = []string{
	"якорь", "яблоко", "берег", "башня", "ветер", "волна", "гора", "город",
	"дерево", "дорога", "замок", "звезда", "зима", "игла", "камень", "карта",
	"ключ", "книга", "корабль", "кошка", "крыло", "лампа", "лев", "лес",
	"луна", "маска", "медведь", "молния", "море", "мост", "небо", "огонь",
	"океан", "орел", "остров", "перо", "песок", "письмо", "поле", "поезд",
	"птица", "река", "роза", "рыба", "сад", "свет", "снег", "собака",
	"солнце", "стекло", "стрела", "тень", "тигр", "туман", "улица", "час",
	"шляпа", "щит", "юг", "якорь-цепь",
}
