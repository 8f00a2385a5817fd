package engine

import (
	"strings"

	"cardroom/internal/cards"
)

// ActionType discriminates the Action union.
type ActionType string

const (
	// ActionBid covers euchre order-up/name-suit calls and spades numeric
	// bids. Suit, Bid and Alone are interpreted per engine.
	ActionBid ActionType = "bid"
	// ActionPass declines: a bid round pass or a tien len pass.
	ActionPass ActionType = "pass"
	// ActionPlay plays cards: one card in the trick games, a combination in
	// tien len.
	ActionPlay ActionType = "play"
	// ActionDiscard is the euchre dealer discarding after picking up.
	ActionDiscard ActionType = "discard"
	// ActionGive hands cards to another seat during the tien len exchange.
	ActionGive ActionType = "give"
)

// Action is the union of everything a seat can do. Engines reject fields
// that do not apply to them.
type Action struct {
	Type  ActionType   `json:"type"`
	Cards []cards.Card `json:"cards,omitempty"`
	Suit  cards.Suit   `json:"suit,omitempty"`
	Bid   int          `json:"bid,omitempty"`
	Alone bool         `json:"alone,omitempty"`
}

// PlayCard is shorthand for a single-card play.
func PlayCard(c cards.Card) Action {
	return Action{Type: ActionPlay, Cards: []cards.Card{c}}
}

// Equal reports whether two actions are the same move. Card order within a
// combination is not significant.
func (a Action) Equal(b Action) bool {
	if a.Type != b.Type || a.Suit != b.Suit || a.Bid != b.Bid || a.Alone != b.Alone {
		return false
	}
	if len(a.Cards) != len(b.Cards) {
		return false
	}
	return cards.ContainsAll(a.Cards, b.Cards)
}

// String renders the action for logs.
func (a Action) String() string {
	var sb strings.Builder
	sb.WriteString(string(a.Type))
	if len(a.Cards) > 0 {
		sb.WriteString(" " + strings.Join(cards.IDs(a.Cards), ","))
	}
	return sb.String()
}

// Contains reports whether act appears in the legal set.
func Contains(legal []Action, act Action) bool {
	for _, l := range legal {
		if l.Equal(act) {
			return true
		}
	}
	return false
}
