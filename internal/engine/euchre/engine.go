// Package euchre implements the trump trick-taking rules engine: two bidding
// rounds over the upcard, the bower ranking, going alone and standard
// 1/2/4-point scoring for fixed partnerships (seats 0+2 vs 1+3).
package euchre

import (
	"fmt"
	"math/rand"

	"cardroom/internal/cards"
	"cardroom/internal/engine"
)

const (
	PhaseBidding1  = "bidding_1"
	PhaseBidding2  = "bidding_2"
	PhaseDiscard   = "discard"
	PhasePlaying   = "playing"
	PhaseRoundOver = "round_over"
	PhaseGameOver  = "game_over"

	seatCount          = 4
	handSize           = 5
	defaultTargetScore = 10
)

func init() {
	engine.Register(engine.KindEuchre, func() engine.Engine { return Engine{} })
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

	hands  [seatCount][]cards.Card
	kitty  []cards.Card
	upcard cards.Card

	trump    cards.Suit
	hasTrump bool
	maker    int
	alone    bool
	skipSeat int // maker's partner when alone, else -1

	trick     []Play
	leadSuit  cards.Suit // effective suit of the lead
	tricksWon [seatCount]int
	tricksOut int

	scores    [2]int // team 0 = seats 0,2
	lastDelta engine.ScoreDelta
}

func (s *state) GameKind() engine.Kind { return engine.KindEuchre }

// Table is the public portion of the state.
type Table struct {
	Dealer    int         `json:"dealer"`
	Upcard    *cards.Card `json:"upcard,omitempty"` // nil once turned down or picked up
	Trump     *cards.Suit `json:"trump,omitempty"`
	Maker     int         `json:"maker"`
	Alone     bool        `json:"alone"`
	SkipSeat  int         `json:"skip_seat"`
	Trick     []Play      `json:"trick"`
	TricksWon [4]int      `json:"tricks_won"`
}

// Engine implements engine.Engine for euchre.
type Engine struct{}

func (Engine) Kind() engine.Kind     { return engine.KindEuchre }
func (Engine) SeatRange() (int, int) { return seatCount, seatCount }

func (Engine) Deal(seats int, variant engine.Variant, rng *rand.Rand) (engine.State, error) {
	if seats != seatCount {
		return nil, fmt.Errorf("euchre: seat count %d, want %d", seats, seatCount)
	}
	if variant.TargetScore == 0 {
		variant.TargetScore = defaultTargetScore
	}
	st := &state{variant: variant, rng: rng, dealer: 0}
	st.deal()
	return st, nil
}

func (s *state) deal() {
	deck := cards.EuchreDeck()
	cards.Shuffle(deck, s.rng)
	for i := 0; i < seatCount; i++ {
		s.hands[i] = append([]cards.Card(nil), deck[i*handSize:(i+1)*handSize]...)
	}
	s.kitty = append([]cards.Card(nil), deck[seatCount*handSize:]...)
	s.upcard = s.kitty[0]
	s.hasTrump = false
	s.maker = -1
	s.alone = false
	s.skipSeat = -1
	s.trick = nil
	s.tricksWon = [seatCount]int{}
	s.tricksOut = 0
	s.phase = PhaseBidding1
	s.current = (s.dealer + 1) % seatCount
}

func get(st engine.State) *state { return st.(*state) }

// IsLeftBower reports whether c is the jack sharing the trump's color.
func IsLeftBower(c cards.Card, trump cards.Suit) bool {
	return c.Rank == cards.Jack && c.Suit != trump && c.Suit.SameColor(trump)
}

// EffectiveSuit treats the left bower as a member of the trump suit for both
// following and ranking.
func EffectiveSuit(c cards.Card, trump cards.Suit) cards.Suit {
	if IsLeftBower(c, trump) {
		return trump
	}
	return c.Suit
}

// TrickPower ranks a played card inside one trick. Trump outranks the led
// suit, bowers top the trump suit, off-suit cards never win.
func TrickPower(c cards.Card, trump, lead cards.Suit) int {
	eff := EffectiveSuit(c, trump)
	switch {
	case eff == trump && c.Rank == cards.Jack && c.Suit == trump:
		return 200 // right bower
	case eff == trump && c.Rank == cards.Jack:
		return 199 // left bower
	case eff == trump:
		return 100 + int(c.Rank)
	case eff == lead:
		return int(c.Rank)
	default:
		return 0
	}
}

func (e Engine) LegalActions(st engine.State, seat int) []engine.Action {
	s := get(st)
	if seat != s.current {
		return nil
	}
	switch s.phase {
	case PhaseBidding1:
		return []engine.Action{
			{Type: engine.ActionPass},
			{Type: engine.ActionBid, Suit: s.upcard.Suit},
			{Type: engine.ActionBid, Suit: s.upcard.Suit, Alone: true},
		}
	case PhaseBidding2:
		acts := []engine.Action{{Type: engine.ActionPass}}
		for suit := cards.Spades; suit <= cards.Hearts; suit++ {
			if suit == s.upcard.Suit {
				continue
			}
			acts = append(acts,
				engine.Action{Type: engine.ActionBid, Suit: suit},
				engine.Action{Type: engine.ActionBid, Suit: suit, Alone: true})
		}
		return acts
	case PhaseDiscard:
		acts := make([]engine.Action, 0, len(s.hands[seat]))
		for _, c := range s.hands[seat] {
			acts = append(acts, engine.Action{Type: engine.ActionDiscard, Cards: []cards.Card{c}})
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

// playable returns the cards the seat may put on the current trick: must
// follow the effective lead suit when able.
func (s *state) playable(seat int) []cards.Card {
	hand := s.hands[seat]
	if len(s.trick) == 0 {
		return hand
	}
	var follow []cards.Card
	for _, c := range hand {
		if EffectiveSuit(c, s.trump) == s.leadSuit {
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
	case PhaseBidding1, PhaseBidding2:
		return s.applyBid(seat, act)
	case PhaseDiscard:
		return s.applyDiscard(seat, act)
	case PhasePlaying:
		return s.applyCard(seat, act)
	default:
		return fmt.Errorf("%w: no actions in phase %s", engine.ErrIllegalAction, s.phase)
	}
}

func (s *state) applyBid(seat int, act engine.Action) error {
	switch act.Type {
	case engine.ActionPass:
		if s.current == s.dealer {
			if s.phase == PhaseBidding1 {
				s.phase = PhaseBidding2
				s.current = (s.dealer + 1) % seatCount
				return nil
			}
			// Dealer turned the second round down: throw the hand in.
			s.dealer = (s.dealer + 1) % seatCount
			s.deal()
			return nil
		}
		s.current = (s.current + 1) % seatCount
		return nil
	case engine.ActionBid:
		if s.phase == PhaseBidding1 && act.Suit != s.upcard.Suit {
			return fmt.Errorf("%w: round one orders up %s", engine.ErrIllegalAction, s.upcard.Suit)
		}
		if s.phase == PhaseBidding2 && act.Suit == s.upcard.Suit {
			return fmt.Errorf("%w: %s was turned down", engine.ErrIllegalAction, act.Suit)
		}
		s.trump = act.Suit
		s.hasTrump = true
		s.maker = seat
		s.alone = act.Alone
		if act.Alone {
			s.skipSeat = (seat + 2) % seatCount
		}
		if s.phase == PhaseBidding1 {
			// Dealer picks the upcard up and sheds one.
			s.hands[s.dealer] = append(s.hands[s.dealer], s.upcard)
			s.phase = PhaseDiscard
			s.current = s.dealer
			return nil
		}
		s.startPlay()
		return nil
	default:
		return fmt.Errorf("%w: %s while bidding", engine.ErrIllegalAction, act.Type)
	}
}

func (s *state) applyDiscard(seat int, act engine.Action) error {
	if act.Type != engine.ActionDiscard || len(act.Cards) != 1 {
		return fmt.Errorf("%w: dealer must discard one card", engine.ErrIllegalAction)
	}
	if !cards.ContainsAll(s.hands[seat], act.Cards) {
		return fmt.Errorf("%w: card not in hand", engine.ErrIllegalAction)
	}
	s.hands[seat] = cards.Remove(s.hands[seat], act.Cards)
	s.startPlay()
	return nil
}

func (s *state) startPlay() {
	s.phase = PhasePlaying
	s.trick = nil
	s.current = s.nextActive((s.dealer + 1) % seatCount)
}

// nextActive returns seat itself unless it is sitting out the lone hand.
func (s *state) nextActive(seat int) int {
	if seat == s.skipSeat {
		return (seat + 1) % seatCount
	}
	return seat
}

func (s *state) trickSize() int {
	if s.alone {
		return seatCount - 1
	}
	return seatCount
}

func (s *state) applyCard(seat int, act engine.Action) error {
	if act.Type != engine.ActionPlay || len(act.Cards) != 1 {
		return fmt.Errorf("%w: play one card", engine.ErrIllegalAction)
	}
	c := act.Cards[0]
	if !cards.ContainsAll(s.hands[seat], act.Cards) {
		return fmt.Errorf("%w: card not in hand", engine.ErrIllegalAction)
	}
	if len(s.trick) > 0 && EffectiveSuit(c, s.trump) != s.leadSuit {
		for _, held := range s.hands[seat] {
			if EffectiveSuit(held, s.trump) == s.leadSuit {
				return fmt.Errorf("%w: must follow %s", engine.ErrIllegalAction, s.leadSuit)
			}
		}
	}

	s.hands[seat] = cards.Remove(s.hands[seat], act.Cards)
	if len(s.trick) == 0 {
		s.leadSuit = EffectiveSuit(c, s.trump)
	}
	s.trick = append(s.trick, Play{Seat: seat, Card: c})

	if len(s.trick) < s.trickSize() {
		s.current = s.nextActive((seat + 1) % seatCount)
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
	s.current = s.nextActive(winner)
	return nil
}

func (s *state) trickWinner() int {
	best, winner := -1, s.trick[0].Seat
	for _, p := range s.trick {
		if pw := TrickPower(p.Card, s.trump, s.leadSuit); pw > best {
			best, winner = pw, p.Seat
		}
	}
	return winner
}

func (s *state) endRound() {
	makerTeam := s.maker % 2
	makerTricks := s.tricksWon[makerTeam] + s.tricksWon[makerTeam+2]

	points, label := 0, ""
	team := makerTeam
	switch {
	case makerTricks == handSize && s.alone:
		points, label = 4, "lone march"
	case makerTricks == handSize:
		points, label = 2, "march"
	case makerTricks >= 3:
		points, label = 1, "made it"
	default:
		team = 1 - makerTeam
		points, label = 2, "euchred"
	}
	s.scores[team] += points

	delta := engine.ScoreDelta{Points: map[int]int{}, Labels: map[int]string{}}
	for seat := 0; seat < seatCount; seat++ {
		if seat%2 == team {
			delta.Points[seat] = points
			delta.Labels[seat] = label
		} else {
			delta.Points[seat] = 0
		}
	}
	s.lastDelta = delta

	s.phase = PhaseRoundOver
	if s.scores[team] >= s.variant.TargetScore {
		s.phase = PhaseGameOver
	}
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
	table := Table{
		Dealer:    s.dealer,
		Maker:     s.maker,
		Alone:     s.alone,
		SkipSeat:  s.skipSeat,
		Trick:     append([]Play(nil), s.trick...),
		TricksWon: s.tricksWon,
	}
	if s.phase == PhaseBidding1 {
		up := s.upcard
		table.Upcard = &up
	}
	if s.hasTrump {
		trump := s.trump
		table.Trump = &trump
	}
	var hand []cards.Card
	if seat >= 0 && seat < seatCount {
		hand = append([]cards.Card(nil), s.hands[seat]...)
	}
	return engine.View{
		Kind:       engine.KindEuchre,
		Seat:       seat,
		Phase:      s.phase,
		Active:     e.ActiveSeats(st),
		Hand:       hand,
		HandCounts: counts,
		Scores:     []int{s.scores[0], s.scores[1]},
		Terminal:   s.phase == PhaseGameOver,
		Table:      table,
	}
}
