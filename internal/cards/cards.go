package cards

import (
	"fmt"
	"sort"
)

// Suit identifies one of the four French suits.
type Suit int8

const (
	Spades Suit = iota
	Clubs
	Diamonds
	Hearts
)

var suitLetters = [...]string{"S", "C", "D", "H"}

// String returns the one-letter suit code used on the wire.
func (s Suit) String() string {
	if s < Spades || s > Hearts {
		return "?"
	}
	return suitLetters[s]
}

// IsRed reports whether the suit is diamonds or hearts.
func (s Suit) IsRed() bool {
	return s == Diamonds || s == Hearts
}

// SameColor reports whether two suits share a color.
func (s Suit) SameColor(o Suit) bool {
	return s.IsRed() == o.IsRed()
}

// ParseSuit converts a one-letter suit code back to a Suit.
func ParseSuit(code string) (Suit, error) {
	for i, l := range suitLetters {
		if l == code {
			return Suit(i), nil
		}
	}
	return 0, fmt.Errorf("unknown suit %q", code)
}

// Rank runs 2..14 with aces high. Game-specific orderings (aces low,
// deuces high) are derived by the engines, never stored on the card.
type Rank int8

const (
	Two   Rank = 2
	Three Rank = 3
	Four  Rank = 4
	Five  Rank = 5
	Six   Rank = 6
	Seven Rank = 7
	Eight Rank = 8
	Nine  Rank = 9
	Ten   Rank = 10
	Jack  Rank = 11
	Queen Rank = 12
	King  Rank = 13
	Ace   Rank = 14
)

var rankLetters = map[Rank]string{
	Two: "2", Three: "3", Four: "4", Five: "5", Six: "6", Seven: "7",
	Eight: "8", Nine: "9", Ten: "T", Jack: "J", Queen: "Q", King: "K", Ace: "A",
}

// String returns the one-letter rank code.
func (r Rank) String() string {
	if l, ok := rankLetters[r]; ok {
		return l
	}
	return "?"
}

// ParseRank converts a one-letter rank code back to a Rank.
func ParseRank(code string) (Rank, error) {
	for r, l := range rankLetters {
		if l == code {
			return r, nil
		}
	}
	return 0, fmt.Errorf("unknown rank %q", code)
}

// Card is a single playing card.
type Card struct {
	Rank Rank `json:"rank"`
	Suit Suit `json:"suit"`
}

// ID returns the compact wire identifier, e.g. "AS", "TD", "9H".
func (c Card) ID() string {
	return c.Rank.String() + c.Suit.String()
}

// String is the same as ID, for log readability.
func (c Card) String() string { return c.ID() }

// Parse converts a wire identifier back to a Card.
func Parse(id string) (Card, error) {
	if len(id) != 2 {
		return Card{}, fmt.Errorf("bad card id %q", id)
	}
	r, err := ParseRank(id[:1])
	if err != nil {
		return Card{}, fmt.Errorf("bad card id %q: %w", id, err)
	}
	s, err := ParseSuit(id[1:])
	if err != nil {
		return Card{}, fmt.Errorf("bad card id %q: %w", id, err)
	}
	return Card{Rank: r, Suit: s}, nil
}

// ParseAll converts a slice of wire identifiers.
func ParseAll(ids []string) ([]Card, error) {
	out := make([]Card, len(ids))
	for i, id := range ids {
		c, err := Parse(id)
		if err != nil {
			return nil, err
		}
		out[i] = c
	}
	return out, nil
}

// IDs returns the wire identifiers for a slice of cards.
func IDs(cs []Card) []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = c.ID()
	}
	return out
}

// StandardDeck returns a sorted 52-card deck.
func StandardDeck() []Card {
	deck := make([]Card, 0, 52)
	for r := Two; r <= Ace; r++ {
		for s := Spades; s <= Hearts; s++ {
			deck = append(deck, Card{Rank: r, Suit: s})
		}
	}
	return deck
}

// EuchreDeck returns the 24-card deck (nines through aces).
func EuchreDeck() []Card {
	deck := make([]Card, 0, 24)
	for r := Nine; r <= Ace; r++ {
		for s := Spades; s <= Hearts; s++ {
			deck = append(deck, Card{Rank: r, Suit: s})
		}
	}
	return deck
}

// Remove returns hand with the given cards removed. Each card removes at
// most one copy; cards not present are ignored by the caller's validation.
func Remove(hand []Card, played []Card) []Card {
	counts := make(map[Card]int, len(played))
	for _, c := range played {
		counts[c]++
	}
	out := make([]Card, 0, len(hand))
	for _, c := range hand {
		if counts[c] > 0 {
			counts[c]--
			continue
		}
		out = append(out, c)
	}
	return out
}

// ContainsAll reports whether hand holds every card in want, respecting
// multiplicity.
func ContainsAll(hand []Card, want []Card) bool {
	counts := make(map[Card]int, len(hand))
	for _, c := range hand {
		counts[c]++
	}
	for _, c := range want {
		if counts[c] == 0 {
			return false
		}
		counts[c]--
	}
	return true
}

// SortBy orders cards in place by the supplied power function, suit as the
// tie-break so equal-rank cards have a stable order.
func SortBy(cs []Card, power func(Card) int) {
	sort.Slice(cs, func(i, j int) bool {
		pi, pj := power(cs[i]), power(cs[j])
		if pi != pj {
			return pi < pj
		}
		return cs[i].Suit < cs[j].Suit
	})
}
