package bot

import (
	"cardroom/internal/cards"
	"cardroom/internal/engine"
	"cardroom/internal/engine/spades"
)

// spadesStrategy bids by counting sure winners, covers its contract with the
// cheapest winning card, and dumps from the bottom once the bid is safe. The
// tracking tier cashes boss leads and dodges suits opponents are void in.
type spadesStrategy struct {
	tracking bool
}

func (s *spadesStrategy) ChooseAction(view engine.View, legal []engine.Action, tracker *Tracker) engine.Action {
	table, ok := view.Table.(spades.Table)
	if !ok {
		return firstLegal(legal)
	}
	switch view.Phase {
	case spades.PhaseBidding:
		return s.chooseBid(view, legal)
	case spades.PhasePlaying:
		return s.choosePlay(view, legal, table, tracker)
	}
	return firstLegal(legal)
}

func (s *spadesStrategy) chooseBid(view engine.View, legal []engine.Action) engine.Action {
	estimate := 0
	spadeCount := 0
	for _, c := range view.Hand {
		if c.Suit == cards.Spades {
			spadeCount++
			if c.Rank >= cards.Queen {
				estimate++
			}
			continue
		}
		switch c.Rank {
		case cards.Ace, cards.King:
			estimate++
		}
	}
	if spadeCount > 3 {
		estimate += spadeCount - 3
	}
	if estimate > 13 {
		estimate = 13
	}
	want := engine.Action{Type: engine.ActionBid, Bid: estimate}
	if engine.Contains(legal, want) {
		return want
	}
	return firstLegal(legal)
}

func (s *spadesStrategy) choosePlay(view engine.View, legal []engine.Action, table spades.Table, tracker *Tracker) engine.Action {
	bidSafe := table.Bids[view.Seat] >= 0 && table.TricksWon[view.Seat] >= table.Bids[view.Seat]

	if len(table.Trick) == 0 {
		return s.chooseLead(view, legal, bidSafe, tracker)
	}

	lead := table.Trick[0].Card.Suit
	bestOut, bestSeat := -1, -1
	for _, p := range table.Trick {
		pw := 0
		switch {
		case p.Card.Suit == cards.Spades:
			pw = 100 + int(p.Card.Rank)
		case p.Card.Suit == lead:
			pw = int(p.Card.Rank)
		}
		if pw > bestOut {
			bestOut, bestSeat = pw, p.Seat
		}
	}

	partnerWinning := bestSeat >= 0 && bestSeat%2 == view.Seat%2
	if bidSafe || (partnerWinning && len(table.Trick) == 3) {
		return s.cheapest(legal, lead)
	}

	// Cheapest card that currently takes the trick.
	if act, ok := pickPlay(legal, func(act engine.Action) int {
		pw := spadesTrickPower(act.Cards[0], lead)
		if pw <= bestOut {
			return 1 << 20
		}
		return pw
	}); ok && spadesTrickPower(act.Cards[0], lead) > bestOut {
		return act
	}
	return s.cheapest(legal, lead)
}

func (s *spadesStrategy) chooseLead(view engine.View, legal []engine.Action, bidSafe bool, tracker *Tracker) engine.Action {
	if bidSafe {
		return s.cheapest(legal, cards.Spades)
	}
	if s.tracking && tracker != nil {
		var boss engine.Action
		found := false
		for _, act := range legal {
			c := act.Cards[0]
			if c.Suit == cards.Spades {
				continue
			}
			if tracker.BossIn(c, cards.StandardDeck(), func(d cards.Card) int {
				return spadesTrickPower(d, c.Suit)
			}, view.Hand) {
				if !found || c.Rank > boss.Cards[0].Rank {
					boss, found = act, true
				}
			}
		}
		if found {
			return boss
		}
	}
	// Lead the strongest off-spade card; dodge known voids when tracking.
	if act, ok := pickPlay(legal, func(act engine.Action) int {
		c := act.Cards[0]
		if c.Suit == cards.Spades {
			return 1 << 20
		}
		cost := -int(c.Rank)
		if s.tracking && tracker != nil {
			for seat := range view.HandCounts {
				if seat%2 != view.Seat%2 && tracker.IsVoid(seat, c.Suit) {
					cost += 100
				}
			}
		}
		return cost
	}); ok && act.Cards[0].Suit != cards.Spades {
		return act
	}
	return s.cheapest(legal, cards.Spades)
}

func (s *spadesStrategy) cheapest(legal []engine.Action, lead cards.Suit) engine.Action {
	if act, ok := pickPlay(legal, func(act engine.Action) int {
		return spadesTrickPower(act.Cards[0], lead)
	}); ok {
		return act
	}
	return firstLegal(legal)
}

func spadesTrickPower(c cards.Card, lead cards.Suit) int {
	switch {
	case c.Suit == cards.Spades:
		return 100 + int(c.Rank)
	case c.Suit == lead:
		return int(c.Rank)
	default:
		return int(c.Rank) - 20
	}
}
