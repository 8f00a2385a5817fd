package bot

import (
	"cardroom/internal/cards"
	"cardroom/internal/engine"
	"cardroom/internal/engine/tienlen"
)

// tienlenStrategy sheds from the bottom of the hand: the cheapest
// combination that answers the pile, the cheapest lead otherwise. The
// tracking tier additionally hoards twos and bombs until they matter and
// cashes boss cards when leading.
type tienlenStrategy struct {
	tracking bool
}

func (s *tienlenStrategy) ChooseAction(view engine.View, legal []engine.Action, tracker *Tracker) engine.Action {
	if view.Phase == tienlen.PhaseExchange {
		return s.chooseGive(view, legal)
	}

	finishers := finishingPlays(view.Hand, legal)
	if len(finishers) > 0 {
		// Going out beats every other consideration.
		return finishers[0]
	}

	if s.tracking && tracker != nil {
		if act, ok := s.chooseTracked(view, legal, tracker); ok {
			return act
		}
	}

	if act, ok := pickPlay(legal, func(act engine.Action) int {
		return playCost(act.Cards)
	}); ok {
		return act
	}
	return firstLegal(legal) // pass
}

// chooseGive hands over the lowest card: the duty costs a card either way,
// so keep the strong ones.
func (s *tienlenStrategy) chooseGive(view engine.View, legal []engine.Action) engine.Action {
	best, bestPower, ok := engine.Action{}, 0, false
	for _, act := range legal {
		if act.Type != engine.ActionGive || len(act.Cards) == 0 {
			continue
		}
		p := tienlen.Power(act.Cards[0])
		if !ok || p < bestPower {
			best, bestPower, ok = act, p, true
		}
	}
	if !ok {
		return firstLegal(legal)
	}
	return best
}

func (s *tienlenStrategy) chooseTracked(view engine.View, legal []engine.Action, tracker *Tracker) (engine.Action, bool) {
	table, ok := view.Table.(tienlen.Table)
	if !ok {
		return engine.Action{}, false
	}

	leading := len(table.Pile) == 0
	if leading {
		// Cash a boss single: it wins the lead back by construction.
		var boss engine.Action
		found := false
		for _, act := range legal {
			if act.Type != engine.ActionPlay || len(act.Cards) != 1 {
				continue
			}
			c := act.Cards[0]
			if c.Rank != cards.Two && tracker.bossTienLen(c, view.Hand) {
				if !found || tienlen.Power(c) > tienlen.Power(boss.Cards[0]) {
					boss, found = act, true
				}
			}
		}
		if found {
			return boss, true
		}
	}

	// Answer the pile with the cheapest play that is not a hoarded two or
	// bomb, unless an opponent is about to shed out.
	endgame := false
	for seat, n := range view.HandCounts {
		if seat != view.Seat && n > 0 && n <= 2 {
			endgame = true
		}
	}
	best, bestCost, found := engine.Action{}, 0, false
	for _, act := range legal {
		if act.Type != engine.ActionPlay {
			continue
		}
		cost := playCost(act.Cards)
		if !endgame && holdsBack(act.Cards) {
			continue
		}
		if !found || cost < bestCost {
			best, bestCost, found = act, cost, true
		}
	}
	if found {
		return best, true
	}
	return engine.Action{}, false
}

// holdsBack reports plays worth hoarding: twos and four-card bombs.
func holdsBack(cs []cards.Card) bool {
	if len(cs) == 4 && cs[0].Rank == cs[1].Rank && cs[1].Rank == cs[2].Rank && cs[2].Rank == cs[3].Rank {
		return true
	}
	for _, c := range cs {
		if c.Rank == cards.Two {
			return true
		}
	}
	return false
}

// playCost ranks plays for the shedding heuristic: lower tops first, bigger
// dumps preferred at equal tops.
func playCost(cs []cards.Card) int {
	combo := tienlen.Identify(cs)
	return combo.Value*16 - len(cs)
}

// finishingPlays returns the legal plays that empty the hand.
func finishingPlays(hand []cards.Card, legal []engine.Action) []engine.Action {
	var out []engine.Action
	for _, act := range legal {
		if act.Type == engine.ActionPlay && len(act.Cards) == len(hand) {
			out = append(out, act)
		}
	}
	return out
}
