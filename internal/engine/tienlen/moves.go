package tienlen

import "cardroom/internal/cards"

// ValidMoves enumerates every combination the hand can legally put on the
// pile. A pile of type Invalid means the seat is leading and may play any
// valid set.
func ValidMoves(hand []cards.Card, pile Combo, rules Rules) [][]cards.Card {
	sorted := append([]cards.Card(nil), hand...)
	SortHand(sorted)

	var moves [][]cards.Card
	if pile.Type == Invalid {
		moves = append(moves, singles(sorted)...)
		moves = append(moves, sameRankSets(sorted, 2)...)
		moves = append(moves, sameRankSets(sorted, 3)...)
		moves = append(moves, sameRankSets(sorted, 4)...)
		moves = append(moves, straights(sorted)...)
		moves = append(moves, consecutivePairRuns(sorted)...)
		return moves
	}

	var candidates [][]cards.Card
	switch pile.Type {
	case Single:
		candidates = singles(sorted)
	case Pair:
		candidates = sameRankSets(sorted, 2)
	case Triple:
		candidates = sameRankSets(sorted, 3)
	case Straight:
		candidates = straightsOfLength(sorted, pile.Count)
	case Bomb:
		candidates = append(sameRankSets(sorted, 4), consecutivePairRuns(sorted)...)
	}
	// Chops answer shapes they do not match: quads, pair runs, super twos.
	candidates = append(candidates, sameRankSets(sorted, 4)...)
	candidates = append(candidates, consecutivePairRuns(sorted)...)
	if rules.SuperTwos {
		candidates = append(candidates, twosPairs(sorted)...)
	}

	seen := make(map[string]bool, len(candidates))
	for _, move := range candidates {
		key := moveKey(move)
		if seen[key] {
			continue
		}
		seen[key] = true
		if rules.CanBeat(pile.Cards, move) {
			moves = append(moves, move)
		}
	}
	return moves
}

func moveKey(move []cards.Card) string {
	key := ""
	for _, c := range move {
		key += c.ID()
	}
	return key
}

func singles(hand []cards.Card) [][]cards.Card {
	out := make([][]cards.Card, 0, len(hand))
	for _, c := range hand {
		out = append(out, []cards.Card{c})
	}
	return out
}

// sameRankSets returns every size-n same-rank subset, ascending.
func sameRankSets(hand []cards.Card, n int) [][]cards.Card {
	byRank := map[cards.Rank][]cards.Card{}
	for _, c := range hand {
		byRank[c.Rank] = append(byRank[c.Rank], c)
	}
	var out [][]cards.Card
	for p := 0; p <= 12; p++ {
		for r, group := range byRank {
			if rankPower(r) != p || len(group) < n {
				continue
			}
			out = append(out, combinationsOf(group, n)...)
		}
	}
	return out
}

func combinationsOf(group []cards.Card, n int) [][]cards.Card {
	var out [][]cards.Card
	var walk func(start int, cur []cards.Card)
	walk = func(start int, cur []cards.Card) {
		if len(cur) == n {
			out = append(out, append([]cards.Card(nil), cur...))
			return
		}
		for i := start; i < len(group); i++ {
			walk(i+1, append(cur, group[i]))
		}
	}
	walk(0, nil)
	return out
}

func twosPairs(hand []cards.Card) [][]cards.Card {
	var twos []cards.Card
	for _, c := range hand {
		if c.Rank == cards.Two {
			twos = append(twos, c)
		}
	}
	if len(twos) < 2 {
		return nil
	}
	return combinationsOf(twos, 2)
}

// straights returns runs of every length from 3 up, one per starting rank
// using the lowest suit at each rank to keep the set small.
func straights(hand []cards.Card) [][]cards.Card {
	var out [][]cards.Card
	for n := 3; n <= 12; n++ {
		out = append(out, straightsOfLength(hand, n)...)
	}
	return out
}

func straightsOfLength(hand []cards.Card, n int) [][]cards.Card {
	if n < 3 {
		return nil
	}
	byPower := map[int]cards.Card{}
	for _, c := range hand {
		if c.Rank == cards.Two {
			continue
		}
		p := rankPower(c.Rank)
		if cur, ok := byPower[p]; !ok || Power(c) < Power(cur) {
			byPower[p] = c
		}
	}
	var out [][]cards.Card
	for start := 0; start+n <= 12; start++ {
		run := make([]cards.Card, 0, n)
		for p := start; p < start+n; p++ {
			c, ok := byPower[p]
			if !ok {
				break
			}
			run = append(run, c)
		}
		if len(run) == n {
			out = append(out, run)
		}
	}
	return out
}

// consecutivePairRuns returns runs of 3, 4 and 5 consecutive pairs.
func consecutivePairRuns(hand []cards.Card) [][]cards.Card {
	byPower := map[int][]cards.Card{}
	for _, c := range hand {
		if c.Rank == cards.Two {
			continue
		}
		p := rankPower(c.Rank)
		byPower[p] = append(byPower[p], c)
	}
	var out [][]cards.Card
	for _, n := range []int{3, 4, 5} {
		for start := 0; start+n <= 12; start++ {
			run := make([]cards.Card, 0, 2*n)
			for p := start; p < start+n; p++ {
				group := byPower[p]
				if len(group) < 2 {
					break
				}
				run = append(run, group[0], group[1])
			}
			if len(run) == 2*n {
				out = append(out, run)
			}
		}
	}
	return out
}
