// Package bot provides the AI strategies that drive unattended seats. Each
// game kind has a stateless heuristic tier and a tracking tier that carries
// a per-round accumulator of observed cards.
package bot

import (
	"fmt"

	"cardroom/internal/engine"
)

// Tier selects the strength of a strategy.
type Tier string

const (
	TierHeuristic Tier = "heuristic"
	TierTracking  Tier = "tracking"
)

// Strategy decides the action for an unattended seat. Implementations must
// return an element of legal; callers never invoke them with an empty set.
// The tracker is nil for heuristic-tier strategies.
type Strategy interface {
	ChooseAction(view engine.View, legal []engine.Action, tracker *Tracker) engine.Action
}

// New builds the strategy for a game kind and tier.
func New(kind engine.Kind, tier Tier) (Strategy, error) {
	if tier != TierHeuristic && tier != TierTracking {
		return nil, fmt.Errorf("unknown bot tier: %s", tier)
	}
	tracking := tier == TierTracking
	switch kind {
	case engine.KindEuchre:
		return &euchreStrategy{tracking: tracking}, nil
	case engine.KindSpades:
		return &spadesStrategy{tracking: tracking}, nil
	case engine.KindTienLen:
		return &tienlenStrategy{tracking: tracking}, nil
	default:
		return nil, fmt.Errorf("no strategy for game kind: %s", kind)
	}
}

// firstLegal is the deterministic fallback when a strategy's heuristics come
// up empty. Unreachable with a non-empty legal set, but never fail a turn.
func firstLegal(legal []engine.Action) engine.Action {
	return legal[0]
}

// pickPlay returns the legal play whose score fn ranks lowest, skipping
// non-play actions. ok is false when legal holds no plays.
func pickPlay(legal []engine.Action, score func(engine.Action) int) (engine.Action, bool) {
	return pickPlayType(legal, engine.ActionPlay, score)
}

func pickPlayType(legal []engine.Action, typ engine.ActionType, score func(engine.Action) int) (engine.Action, bool) {
	best, bestScore, ok := engine.Action{}, 0, false
	for _, act := range legal {
		if act.Type != typ {
			continue
		}
		sc := score(act)
		if !ok || sc < bestScore {
			best, bestScore, ok = act, sc, true
		}
	}
	return best, ok
}
