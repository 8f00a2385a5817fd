package tienlen

import (
	"sort"

	"cardroom/internal/cards"
)

// ComboType classifies a tien len combination.
type ComboType int

const (
	Invalid ComboType = iota
	Single
	Pair
	Triple
	Straight // three or more consecutive ranks
	Bomb     // quad or consecutive pairs
)

// Combo is a detected combination of cards.
type Combo struct {
	Type  ComboType
	Cards []cards.Card // sorted ascending by power
	Value int          // power of the highest card
	Count int
}

// Power orders cards the tien len way: threes lowest, twos highest, suits
// break ties (spades < clubs < diamonds < hearts).
func Power(c cards.Card) int {
	return rankPower(c.Rank)*4 + int(c.Suit)
}

func rankPower(r cards.Rank) int {
	if r == cards.Two {
		return 12
	}
	return int(r) - 3
}

// SortHand orders a hand ascending by power.
func SortHand(hand []cards.Card) {
	cards.SortBy(hand, Power)
}

// IsValidSet reports whether the cards form a playable combination.
func IsValidSet(cs []cards.Card) bool {
	switch {
	case len(cs) == 0:
		return false
	case len(cs) == 1:
		return true
	case allSameRank(cs):
		return len(cs) <= 4
	}
	return isStraight(cs) || isConsecutivePairs(cs)
}

// Identify analyzes cards and returns the combination they form.
func Identify(cs []cards.Card) Combo {
	if !IsValidSet(cs) {
		return Combo{Type: Invalid}
	}
	sorted := append([]cards.Card(nil), cs...)
	SortHand(sorted)
	n := len(sorted)
	val := Power(sorted[n-1])

	if n == 1 {
		return Combo{Type: Single, Cards: sorted, Value: val, Count: 1}
	}
	if allSameRank(sorted) {
		switch n {
		case 2:
			return Combo{Type: Pair, Cards: sorted, Value: val, Count: 2}
		case 3:
			return Combo{Type: Triple, Cards: sorted, Value: val, Count: 3}
		case 4:
			return Combo{Type: Bomb, Cards: sorted, Value: val, Count: 4}
		}
	}
	if isStraight(sorted) {
		return Combo{Type: Straight, Cards: sorted, Value: val, Count: n}
	}
	return Combo{Type: Bomb, Cards: sorted, Value: val, Count: n}
}

// Rules wraps the table options the comparison logic depends on.
type Rules struct {
	// SuperTwos lets a pair of twos clear any pile: a two-card answer to
	// combinations that normally demand a three-card-plus chop.
	SuperTwos bool
}

// IsSuperTwos reports whether the cards are the variant's instant clear.
func (r Rules) IsSuperTwos(cs []cards.Card) bool {
	return r.SuperTwos && len(cs) == 2 && allSameRank(cs) && cs[0].Rank == cards.Two
}

// CanBeat reports whether next beats prev on the pile, including the
// quad/consecutive-pair chopping ladder and the super-twos table rule.
func (r Rules) CanBeat(prev, next []cards.Card) bool {
	if r.IsSuperTwos(next) {
		return true
	}

	nextQuad := isQuad(next)
	next3P := isNConsecutivePairs(next, 3)
	next4P := isNConsecutivePairs(next, 4)
	next5P := isNConsecutivePairs(next, 5)

	prevSingle2 := len(prev) == 1 && prev[0].Rank == cards.Two
	prevPair2 := len(prev) == 2 && allSameRank(prev) && prev[0].Rank == cards.Two
	prevQuad := isQuad(prev)
	prev3P := isNConsecutivePairs(prev, 3)
	prev4P := isNConsecutivePairs(prev, 4)
	prev5P := isNConsecutivePairs(prev, 5)

	// Five consecutive pairs beat everything below them in the ladder.
	if next5P {
		if prevSingle2 || prevPair2 || prevQuad || prev3P || prev4P {
			return true
		}
		if prev5P {
			return maxPower(next) > maxPower(prev)
		}
	}
	if next4P {
		if prevSingle2 || prevPair2 || prevQuad || prev3P {
			return true
		}
		if prev4P {
			return maxPower(next) > maxPower(prev)
		}
	}
	if nextQuad {
		if prevSingle2 || prevPair2 || prev3P {
			return true
		}
		if prevQuad {
			return rankPower(next[0].Rank) > rankPower(prev[0].Rank)
		}
	}
	if next3P {
		if prevSingle2 {
			return true
		}
		if prev3P {
			return maxPower(next) > maxPower(prev)
		}
	}

	// Standard rule: same shape, higher top card.
	if len(prev) != len(next) {
		return false
	}
	prevCombo, nextCombo := Identify(prev), Identify(next)
	if prevCombo.Type != nextCombo.Type {
		return false
	}
	return nextCombo.Value > prevCombo.Value
}

func isQuad(cs []cards.Card) bool {
	return len(cs) == 4 && allSameRank(cs)
}

func isNConsecutivePairs(cs []cards.Card, n int) bool {
	return len(cs) == 2*n && isConsecutivePairs(cs)
}

func maxPower(cs []cards.Card) int {
	max := -1
	for _, c := range cs {
		if p := Power(c); p > max {
			max = p
		}
	}
	return max
}

func allSameRank(cs []cards.Card) bool {
	if len(cs) == 0 {
		return false
	}
	for _, c := range cs {
		if c.Rank != cs[0].Rank {
			return false
		}
	}
	return true
}

func isStraight(cs []cards.Card) bool {
	if len(cs) < 3 {
		return false
	}
	powers := make([]int, len(cs))
	for i, c := range cs {
		if c.Rank == cards.Two { // twos never run
			return false
		}
		powers[i] = rankPower(c.Rank)
	}
	sort.Ints(powers)
	for i := 1; i < len(powers); i++ {
		if powers[i] != powers[i-1]+1 {
			return false
		}
	}
	return true
}

func isConsecutivePairs(cs []cards.Card) bool {
	if len(cs) < 6 || len(cs)%2 != 0 {
		return false
	}
	powers := make([]int, len(cs))
	for i, c := range cs {
		if c.Rank == cards.Two {
			return false
		}
		powers[i] = rankPower(c.Rank)
	}
	sort.Ints(powers)
	pairRanks := make([]int, 0, len(powers)/2)
	for i := 0; i < len(powers); i += 2 {
		if powers[i] != powers[i+1] {
			return false
		}
		pairRanks = append(pairRanks, powers[i])
	}
	for i := 1; i < len(pairRanks); i++ {
		if pairRanks[i] != pairRanks[i-1]+1 {
			return false
		}
	}
	return true
}
