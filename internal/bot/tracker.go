package bot

import (
	"cardroom/internal/cards"
	"cardroom/internal/engine"
	"cardroom/internal/engine/euchre"
	"cardroom/internal/engine/spades"
	"cardroom/internal/engine/tienlen"
)

// Tracker is the per-round accumulator behind the tracking tier: cards that
// have appeared, and seats known to be void in a suit. It is reset at the
// start of every round and discarded when the seat stops being AI-driven.
type Tracker struct {
	Seen  map[cards.Card]bool
	Voids map[int]map[cards.Suit]bool
}

// NewTracker returns an empty accumulator.
func NewTracker() *Tracker {
	t := &Tracker{}
	t.Reset()
	return t
}

// Reset clears everything for a new round.
func (t *Tracker) Reset() {
	t.Seen = make(map[cards.Card]bool)
	t.Voids = make(map[int]map[cards.Suit]bool)
}

// MarkSeen records cards that have appeared face up.
func (t *Tracker) MarkSeen(cs []cards.Card) {
	for _, c := range cs {
		t.Seen[c] = true
	}
}

func (t *Tracker) markVoid(seat int, suit cards.Suit) {
	if t.Voids[seat] == nil {
		t.Voids[seat] = make(map[cards.Suit]bool)
	}
	t.Voids[seat][suit] = true
}

// IsVoid reports whether the seat is known to hold none of the suit.
func (t *Tracker) IsVoid(seat int, suit cards.Suit) bool {
	return t.Voids[seat][suit]
}

// Observe folds one applied action into the accumulator. view is the public
// state as it was when the seat acted, so trick/pile context is still
// visible.
func (t *Tracker) Observe(view engine.View, seat int, act engine.Action) {
	if act.Type != engine.ActionPlay {
		return
	}
	t.MarkSeen(act.Cards)

	// Void inference: a card off the led suit from a following seat means
	// that seat is out of the led suit.
	switch table := view.Table.(type) {
	case euchre.Table:
		if len(table.Trick) == 0 || table.Trump == nil || len(act.Cards) != 1 {
			return
		}
		trump := *table.Trump
		lead := euchre.EffectiveSuit(table.Trick[0].Card, trump)
		if euchre.EffectiveSuit(act.Cards[0], trump) != lead {
			t.markVoid(seat, lead)
		}
	case spades.Table:
		if len(table.Trick) == 0 || len(act.Cards) != 1 {
			return
		}
		lead := table.Trick[0].Card.Suit
		if act.Cards[0].Suit != lead {
			t.markVoid(seat, lead)
		}
	}
}

// BossIn reports whether c is currently unbeatable within the given deck and
// power ordering: every strictly higher card is already seen or in own.
func (t *Tracker) BossIn(c cards.Card, deck []cards.Card, power func(cards.Card) int, own []cards.Card) bool {
	held := make(map[cards.Card]bool, len(own))
	for _, o := range own {
		held[o] = true
	}
	p := power(c)
	for _, d := range deck {
		if power(d) > p && !t.Seen[d] && !held[d] {
			return false
		}
	}
	return true
}

// tienlen convenience: boss against the full standard deck.
func (t *Tracker) bossTienLen(c cards.Card, own []cards.Card) bool {
	return t.BossIn(c, cards.StandardDeck(), tienlen.Power, own)
}
