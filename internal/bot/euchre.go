package bot

import (
	"cardroom/internal/cards"
	"cardroom/internal/engine"
	"cardroom/internal/engine/euchre"
)

// euchreStrategy bids on trump length, plays the cheapest card that still
// takes the trick, and otherwise sheds from the bottom. The tracking tier
// leads boss cards and steers leads away from suits opponents are void in.
type euchreStrategy struct {
	tracking bool
}

func (s *euchreStrategy) ChooseAction(view engine.View, legal []engine.Action, tracker *Tracker) engine.Action {
	table, ok := view.Table.(euchre.Table)
	if !ok {
		return firstLegal(legal)
	}
	switch view.Phase {
	case euchre.PhaseBidding1, euchre.PhaseBidding2:
		return s.chooseBid(view, legal)
	case euchre.PhaseDiscard:
		return s.chooseDiscard(view, legal, table)
	case euchre.PhasePlaying:
		return s.choosePlay(view, legal, table, tracker)
	}
	return firstLegal(legal)
}

// trumpStrength counts effective trump cards, weighting the bowers.
func trumpStrength(hand []cards.Card, trump cards.Suit) int {
	n := 0
	for _, c := range hand {
		if euchre.EffectiveSuit(c, trump) != trump {
			continue
		}
		n++
		if c.Rank == cards.Jack {
			n++ // a bower is worth an extra card
		}
	}
	return n
}

func (s *euchreStrategy) chooseBid(view engine.View, legal []engine.Action) engine.Action {
	best, bestStrength := engine.Action{Type: engine.ActionPass}, 0
	for _, act := range legal {
		if act.Type != engine.ActionBid || act.Alone {
			continue
		}
		if st := trumpStrength(view.Hand, act.Suit); st > bestStrength {
			best, bestStrength = act, st
		}
	}
	if bestStrength < 4 {
		for _, act := range legal {
			if act.Type == engine.ActionPass {
				return act
			}
		}
		return firstLegal(legal)
	}
	if bestStrength >= 6 {
		alone := best
		alone.Alone = true
		if engine.Contains(legal, alone) {
			return alone
		}
	}
	return best
}

func (s *euchreStrategy) chooseDiscard(view engine.View, legal []engine.Action, table euchre.Table) engine.Action {
	trump := cards.Spades
	if table.Trump != nil {
		trump = *table.Trump
	}
	// Shed the weakest off-suit card.
	if act, ok := pickPlayType(legal, engine.ActionDiscard, func(act engine.Action) int {
		c := act.Cards[0]
		if euchre.EffectiveSuit(c, trump) == trump {
			return 100 + int(c.Rank)
		}
		return int(c.Rank)
	}); ok {
		return act
	}
	return firstLegal(legal)
}

func (s *euchreStrategy) choosePlay(view engine.View, legal []engine.Action, table euchre.Table, tracker *Tracker) engine.Action {
	if table.Trump == nil {
		return firstLegal(legal)
	}
	trump := *table.Trump

	if len(table.Trick) == 0 {
		return s.chooseLead(view, legal, trump, tracker)
	}

	lead := euchre.EffectiveSuit(table.Trick[0].Card, trump)
	bestOut, bestSeat := 0, -1
	for _, p := range table.Trick {
		if pw := euchre.TrickPower(p.Card, trump, lead); pw > bestOut {
			bestOut, bestSeat = pw, p.Seat
		}
	}

	partnerWinning := bestSeat >= 0 && bestSeat%2 == view.Seat%2
	lastToAct := len(table.Trick) == trickPlays(table)-1
	if partnerWinning && lastToAct {
		return cheapestPlay(legal, trump, lead)
	}

	// Cheapest card that currently takes the trick.
	if act, ok := pickPlay(legal, func(act engine.Action) int {
		pw := euchre.TrickPower(act.Cards[0], trump, lead)
		if pw <= bestOut {
			return 1 << 20 // cannot win; rank above every winner
		}
		return pw
	}); ok && euchre.TrickPower(act.Cards[0], trump, lead) > bestOut {
		return act
	}
	return cheapestPlay(legal, trump, lead)
}

func trickPlays(table euchre.Table) int {
	if table.Alone {
		return 3
	}
	return 4
}

func (s *euchreStrategy) chooseLead(view engine.View, legal []engine.Action, trump cards.Suit, tracker *Tracker) engine.Action {
	if s.tracking && tracker != nil {
		// Cash a boss card when holding one.
		var boss engine.Action
		found := false
		for _, act := range legal {
			c := act.Cards[0]
			if tracker.BossIn(c, cards.EuchreDeck(), func(d cards.Card) int {
				return euchre.TrickPower(d, trump, euchre.EffectiveSuit(c, trump))
			}, view.Hand) {
				if !found || int(c.Rank) > int(boss.Cards[0].Rank) {
					boss, found = act, true
				}
			}
		}
		if found {
			return boss
		}
	}

	trumps := 0
	for _, c := range view.Hand {
		if euchre.EffectiveSuit(c, trump) == trump {
			trumps++
		}
	}
	if trumps >= 3 {
		// Long trump: pull the opposition's trump out.
		if act, ok := pickPlay(legal, func(act engine.Action) int {
			c := act.Cards[0]
			if euchre.EffectiveSuit(c, trump) != trump {
				return 1 << 20
			}
			return -euchre.TrickPower(c, trump, trump)
		}); ok && euchre.EffectiveSuit(act.Cards[0], trump) == trump {
			return act
		}
	}

	// Lead the highest off-suit card, avoiding suits opponents are void in
	// when tracking.
	if act, ok := pickPlay(legal, func(act engine.Action) int {
		c := act.Cards[0]
		if euchre.EffectiveSuit(c, trump) == trump {
			return 1 << 20
		}
		cost := -int(c.Rank)
		if s.tracking && tracker != nil {
			for seat := range view.HandCounts {
				if seat%2 != view.Seat%2 && tracker.IsVoid(seat, c.Suit) {
					cost += 100 // likely trumped
				}
			}
		}
		return cost
	}); ok && euchre.EffectiveSuit(act.Cards[0], trump) != trump {
		return act
	}
	return cheapestPlay(legal, trump, trump)
}

// cheapestPlay sheds the least valuable legal card.
func cheapestPlay(legal []engine.Action, trump, lead cards.Suit) engine.Action {
	if act, ok := pickPlay(legal, func(act engine.Action) int {
		c := act.Cards[0]
		if euchre.EffectiveSuit(c, trump) == trump {
			return 100 + euchre.TrickPower(c, trump, lead)
		}
		return int(c.Rank)
	}); ok {
		return act
	}
	return firstLegal(legal)
}
