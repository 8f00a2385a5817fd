// Package spades implements the bid-and-bags trick-taking rules engine:
// one bid per seat (nil allowed), spades as permanent trump that cannot be
// led until broken, contract scoring with a ten-bag penalty, partnerships on
// seats 0+2 and 1+3.
package spades

import (
	"fmt"
	"math/rand"

	"cardroom/internal/cards"
	"cardroom/internal/engine"
)

const (
	PhaseBidding   = "bidding"
	PhasePlaying   = "playing"
	PhaseRoundOver = "round_over"
	PhaseGameOver  = "game_over"

	seatCount          = 4
	handSize           = 13
	bagLimit           = 10
	bagPenalty         = 100
	nilBonus           = 100
	defaultTargetScore = 500
)

func init() {
	engine.Register(engine.KindSpades, func() engine.Engine { return Engine{} })
}

// Play is one card put into the current trick.
type Play struct {
	Seat int        `json:"seat"`
	Card cards.Card `json:"card"`
}

type state struct {
	variant engine.Variant
	rng     *rand.Rand

	phase   string
	dealer  int
	current int

	hands [seatCount][]cards.Card
	bids  [seatCount]int // -1 until bid; 0 is nil

	trick        []Play
	leadSuit     cards.Suit
	tricksWon    [seatCount]int
	tricksOut    int
	spadesBroken bool

	scores    [2]int
	bags      [2]int
	lastDelta engine.ScoreDelta
}

func (s *state) GameKind() engine.Kind { return engine.KindSpades }

// Table is the public portion of the state.
type Table struct {
	Dealer       int    `json:"dealer"`
	Bids         [4]int `json:"bids"`
	Trick        []Play `json:"trick"`
	TricksWon    [4]int `json:"tricks_won"`
	SpadesBroken bool   `json:"spades_broken"`
	Bags         [2]int `json:"bags"`
}

// Engine implements engine.Engine for spades.
type Engine struct{}

func (Engine) Kind() engine.Kind     { return engine.KindSpades }
func (Engine) SeatRange() (int, int) { return seatCount, seatCount }

func (Engine) Deal(seats int, variant engine.Variant, rng *rand.Rand) (engine.State, error) {
	if seats != seatCount {
		return nil, fmt.Errorf("spades: seat count %d, want %d", seats, seatCount)
	}
	if variant.TargetScore == 0 {
		variant.TargetScore = defaultTargetScore
	}
	st := &state{variant: variant, rng: rng, dealer: 0}
	st.deal()
	return st, nil
}

func (s *state) deal() {
	deck := cards.StandardDeck()
	cards.Shuffle(deck, s.rng)
	for i := 0; i < seatCount; i++ {
		s.hands[i] = append([]cards.Card(nil), deck[i*handSize:(i+1)*handSize]...)
		s.bids[i] = -1
	}
	s.trick = nil
	s.tricksWon = [seatCount]int{}
	s.tricksOut = 0
	s.spadesBroken = false
	s.phase = PhaseBidding
	s.current = (s.dealer + 1) % seatCount
}

func get(st engine.State) *state { return st.(*state) }

func (e Engine) LegalActions(st engine.State, seat int) []engine.Action {
	s := get(st)
	if seat != s.current {
		return nil
	}
	switch s.phase {
	case PhaseBidding:
		acts := make([]engine.Action, 0, handSize+1)
		for bid := 0; bid <= handSize; bid++ {
			acts = append(acts, engine.Action{Type: engine.ActionBid, Bid: bid})
		}
		return acts
	case PhasePlaying:
		var acts []engine.Action
		for _, c := range s.playable(seat) {
			acts = append(acts, engine.PlayCard(c))
		}
		return acts
	}
	return nil
}

// playable enforces follow-suit and the no-leading-spades-until-broken rule.
func (s *state) playable(seat int) []cards.Card {
	hand := s.hands[seat]
	if len(s.trick) == 0 {
		if s.spadesBroken {
			return hand
		}
		var nonSpades []cards.Card
		for _, c := range hand {
			if c.Suit != cards.Spades {
				nonSpades = append(nonSpades, c)
			}
		}
		if len(nonSpades) > 0 {
			return nonSpades
		}
		return hand // nothing but spades left
	}
	var follow []cards.Card
	for _, c := range hand {
		if c.Suit == s.leadSuit {
			follow = append(follow, c)
		}
	}
	if len(follow) > 0 {
		return follow
	}
	return hand
}

func (e Engine) Apply(st engine.State, seat int, act engine.Action) error {
	s := get(st)
	if s.phase == PhaseGameOver {
		return engine.ErrGameOver
	}
	if seat != s.current {
		return fmt.Errorf("%w: seat %d", engine.ErrNotYourTurn, seat)
	}
	switch s.phase {
	case PhaseBidding:
		return s.applyBid(seat, act)
	case PhasePlaying:
		return s.applyCard(seat, act)
	default:
		return fmt.Errorf("%w: no actions in phase %s", engine.ErrIllegalAction, s.phase)
	}
}

func (s *state) applyBid(seat int, act engine.Action) error {
	if act.Type != engine.ActionBid {
		return fmt.Errorf("%w: %s while bidding", engine.ErrIllegalAction, act.Type)
	}
	if act.Bid < 0 || act.Bid > handSize {
		return fmt.Errorf("%w: bid %d out of range", engine.ErrIllegalAction, act.Bid)
	}
	s.bids[seat] = act.Bid
	if seat == s.dealer {
		s.phase = PhasePlaying
		s.current = (s.dealer + 1) % seatCount
		return nil
	}
	s.current = (s.current + 1) % seatCount
	return nil
}

func (s *state) applyCard(seat int, act engine.Action) error {
	if act.Type != engine.ActionPlay || len(act.Cards) != 1 {
		return fmt.Errorf("%w: play one card", engine.ErrIllegalAction)
	}
	c := act.Cards[0]
	if !cards.ContainsAll(s.hands[seat], act.Cards) {
		return fmt.Errorf("%w: card not in hand", engine.ErrIllegalAction)
	}
	if len(s.trick) == 0 {
		if c.Suit == cards.Spades && !s.spadesBroken && s.holdsNonSpade(seat) {
			return fmt.Errorf("%w: spades not broken", engine.ErrIllegalAction)
		}
	} else if c.Suit != s.leadSuit {
		for _, held := range s.hands[seat] {
			if held.Suit == s.leadSuit {
				return fmt.Errorf("%w: must follow %s", engine.ErrIllegalAction, s.leadSuit)
			}
		}
	}

	s.hands[seat] = cards.Remove(s.hands[seat], act.Cards)
	if len(s.trick) == 0 {
		s.leadSuit = c.Suit
	}
	if c.Suit == cards.Spades {
		s.spadesBroken = true
	}
	s.trick = append(s.trick, Play{Seat: seat, Card: c})

	if len(s.trick) < seatCount {
		s.current = (seat + 1) % seatCount
		return nil
	}

	winner := s.trickWinner()
	s.tricksWon[winner]++
	s.tricksOut++
	s.trick = nil
	if s.tricksOut == handSize {
		s.endRound()
		return nil
	}
	s.current = winner
	return nil
}

func (s *state) holdsNonSpade(seat int) bool {
	for _, c := range s.hands[seat] {
		if c.Suit != cards.Spades {
			return true
		}
	}
	return false
}

func (s *state) trickWinner() int {
	best, winner := -1, s.trick[0].Seat
	for _, p := range s.trick {
		pw := 0
		switch {
		case p.Card.Suit == cards.Spades:
			pw = 100 + int(p.Card.Rank)
		case p.Card.Suit == s.leadSuit:
			pw = int(p.Card.Rank)
		}
		if pw > best {
			best, winner = pw, p.Seat
		}
	}
	return winner
}

func (s *state) endRound() {
	delta := engine.ScoreDelta{Points: map[int]int{}, Labels: map[int]string{}}

	for team := 0; team < 2; team++ {
		a, b := team, team+2
		points, bags := 0, 0

		contract, contractTricks := 0, 0
		for _, seat := range []int{a, b} {
			if s.bids[seat] == 0 {
				// Nil is settled per seat; a broken nil's tricks never
				// feed the contract but still bag the team.
				if s.tricksWon[seat] == 0 {
					points += nilBonus
					delta.Labels[seat] = "nil made"
				} else {
					points -= nilBonus
					bags += s.tricksWon[seat]
					delta.Labels[seat] = "nil set"
				}
				continue
			}
			contract += s.bids[seat]
			contractTricks += s.tricksWon[seat]
		}

		if contract > 0 {
			if contractTricks >= contract {
				over := contractTricks - contract
				points += contract*10 + over
				bags += over
			} else {
				points -= contract * 10
				delta.Labels[a] = appendLabel(delta.Labels[a], "set")
				delta.Labels[b] = appendLabel(delta.Labels[b], "set")
			}
		}

		s.bags[team] += bags
		if s.bags[team] >= bagLimit {
			points -= bagPenalty
			s.bags[team] -= bagLimit
			delta.Labels[a] = appendLabel(delta.Labels[a], "bag penalty")
			delta.Labels[b] = appendLabel(delta.Labels[b], "bag penalty")
		}

		s.scores[team] += points
		delta.Points[a] = points
		delta.Points[b] = points
	}
	s.lastDelta = delta

	s.phase = PhaseRoundOver
	for _, score := range s.scores {
		if score >= s.variant.TargetScore {
			s.phase = PhaseGameOver
		}
	}
}

func appendLabel(existing, label string) string {
	if existing == "" {
		return label
	}
	return existing + ", " + label
}

func (e Engine) ActiveSeats(st engine.State) []int {
	s := get(st)
	switch s.phase {
	case PhaseRoundOver, PhaseGameOver:
		return nil
	}
	return []int{s.current}
}

func (e Engine) IsRoundOver(st engine.State) bool {
	p := get(st).phase
	return p == PhaseRoundOver || p == PhaseGameOver
}

func (e Engine) IsGameOver(st engine.State) bool {
	return get(st).phase == PhaseGameOver
}

func (e Engine) ScoreRound(st engine.State) engine.ScoreDelta {
	return get(st).lastDelta
}

func (e Engine) NextRound(st engine.State) error {
	s := get(st)
	if s.phase != PhaseRoundOver {
		return fmt.Errorf("%w: round not over", engine.ErrIllegalAction)
	}
	s.dealer = (s.dealer + 1) % seatCount
	s.deal()
	return nil
}

func (e Engine) Standings(st engine.State) []int {
	s := get(st)
	if s.scores[0] >= s.scores[1] {
		return []int{0, 2, 1, 3}
	}
	return []int{1, 3, 0, 2}
}

func (e Engine) View(st engine.State, seat int) engine.View {
	s := get(st)
	counts := make([]int, seatCount)
	for i, h := range s.hands {
		counts[i] = len(h)
	}
	var hand []cards.Card
	if seat >= 0 && seat < seatCount {
		hand = append([]cards.Card(nil), s.hands[seat]...)
	}
	return engine.View{
		Kind:       engine.KindSpades,
		Seat:       seat,
		Phase:      s.phase,
		Active:     e.ActiveSeats(st),
		Hand:       hand,
		HandCounts: counts,
		Scores:     []int{s.scores[0], s.scores[1]},
		Terminal:   s.phase == PhaseGameOver,
		Table: Table{
			Dealer:       s.dealer,
			Bids:         s.bids,
			Trick:        append([]Play(nil), s.trick...),
			TricksWon:    s.tricksWon,
			SpadesBroken: s.spadesBroken,
			Bags:         s.bags,
		},
	}
}
