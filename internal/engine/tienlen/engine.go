// Package tienlen implements the shedding/climbing rules engine: combination
// play over a shared pile, pass-out pile clears, chop ladders, the super-twos
// table variant and the between-round card exchange.
package tienlen

import (
	"fmt"
	"math/rand"

	"cardroom/internal/cards"
	"cardroom/internal/engine"
)

const (
	PhaseExchange  = "exchange"
	PhasePlaying   = "playing"
	PhaseRoundOver = "round_over"
	PhaseGameOver  = "game_over"

	defaultTargetScore = 15
)

func init() {
	engine.Register(engine.KindTienLen, func() engine.Engine { return Engine{} })
}

// ExchangeDuty records one seat's outstanding give during the exchange.
type ExchangeDuty struct {
	To    int  `json:"to"`
	Count int  `json:"count"`
	Given bool `json:"given"`
}

type state struct {
	variant engine.Variant
	rules   Rules
	rng     *rand.Rand

	seats   int
	phase   string
	round   int
	current int

	hands    [][]cards.Card
	passed   []bool
	finished []bool

	pile      Combo
	pileOwner int

	finishOrder []int // seats in the order they shed out this round
	lastFinish  []int // previous round's full finish order
	scores      []int
	lastDelta   engine.ScoreDelta

	// exchange maps giver seat to its duty; owned by the exchange sub-phase
	// and dropped when it ends.
	exchange map[int]*ExchangeDuty
}

func (s *state) GameKind() engine.Kind { return engine.KindTienLen }

// Table is the public (unfiltered) portion of the state shared with every
// seat and with the AI strategies.
type Table struct {
	Pile        []cards.Card `json:"pile"`
	PileOwner   int          `json:"pile_owner"`
	Round       int          `json:"round"`
	Passed      []bool       `json:"passed"`
	FinishOrder []int        `json:"finish_order"`
	SuperTwos   bool         `json:"super_twos"`
	// Duty is the receiving seat's own outstanding exchange duty, nil
	// otherwise. Other seats' duties are not disclosed.
	Duty *ExchangeDuty `json:"duty,omitempty"`
}

// Engine implements engine.Engine for tien len.
type Engine struct{}

func (Engine) Kind() engine.Kind         { return engine.KindTienLen }
func (Engine) SeatRange() (int, int)     { return 4, 8 }

func (Engine) Deal(seats int, variant engine.Variant, rng *rand.Rand) (engine.State, error) {
	if seats < 4 || seats > 8 {
		return nil, fmt.Errorf("tienlen: seat count %d out of range", seats)
	}
	if variant.TargetScore == 0 {
		variant.TargetScore = defaultTargetScore
	}
	st := &state{
		variant: variant,
		rules:   Rules{SuperTwos: variant.SuperTwos},
		rng:     rng,
		seats:   seats,
		round:   1,
		scores:  make([]int, seats),
	}
	st.deal()
	st.phase = PhasePlaying
	st.current = st.lowestCardHolder()
	return st, nil
}

func (s *state) deal() {
	deck := cards.StandardDeck()
	cards.Shuffle(deck, s.rng)
	per := len(deck) / s.seats
	s.hands = make([][]cards.Card, s.seats)
	for i := 0; i < s.seats; i++ {
		s.hands[i] = append([]cards.Card(nil), deck[i*per:(i+1)*per]...)
		SortHand(s.hands[i])
	}
	s.passed = make([]bool, s.seats)
	s.finished = make([]bool, s.seats)
	s.finishOrder = nil
	s.pile = Combo{Type: Invalid}
	s.pileOwner = -1
}

func (s *state) lowestCardHolder() int {
	best, holder := 1<<30, 0
	for seat, hand := range s.hands {
		for _, c := range hand {
			if p := Power(c); p < best {
				best, holder = p, seat
			}
		}
	}
	return holder
}

func get(st engine.State) *state { return st.(*state) }

func (e Engine) LegalActions(st engine.State, seat int) []engine.Action {
	s := get(st)
	if seat < 0 || seat >= s.seats {
		return nil
	}
	switch s.phase {
	case PhaseExchange:
		duty, ok := s.exchange[seat]
		if !ok || duty.Given {
			return nil
		}
		// Any cards of the giver's choosing, one action per candidate card
		// for single-card duties so clients can present a concrete set.
		var acts []engine.Action
		if duty.Count == 1 {
			for _, c := range s.hands[seat] {
				acts = append(acts, engine.Action{Type: engine.ActionGive, Cards: []cards.Card{c}})
			}
		}
		return acts
	case PhasePlaying:
		if seat != s.current || s.finished[seat] {
			return nil
		}
		var acts []engine.Action
		for _, move := range ValidMoves(s.hands[seat], s.pile, s.rules) {
			acts = append(acts, engine.Action{Type: engine.ActionPlay, Cards: move})
		}
		// Passing is only meaningful against a live pile; a fresh lead must
		// play.
		if s.pile.Type != Invalid {
			acts = append(acts, engine.Action{Type: engine.ActionPass})
		}
		return acts
	}
	return nil
}

func (e Engine) Apply(st engine.State, seat int, act engine.Action) error {
	s := get(st)
	if s.phase == PhaseGameOver {
		return engine.ErrGameOver
	}
	if seat < 0 || seat >= s.seats {
		return fmt.Errorf("%w: seat %d", engine.ErrIllegalAction, seat)
	}

	switch s.phase {
	case PhaseExchange:
		if act.Type != engine.ActionGive {
			return fmt.Errorf("%w: %s during exchange", engine.ErrIllegalAction, act.Type)
		}
		return s.applyGive(seat, act)
	case PhasePlaying:
		if seat != s.current {
			return fmt.Errorf("%w: seat %d", engine.ErrNotYourTurn, seat)
		}
		switch act.Type {
		case engine.ActionPlay:
			return s.applyPlay(seat, act)
		case engine.ActionPass:
			return s.applyPass(seat)
		default:
			return fmt.Errorf("%w: %s", engine.ErrIllegalAction, act.Type)
		}
	default:
		return fmt.Errorf("%w: no actions in phase %s", engine.ErrIllegalAction, s.phase)
	}
}

func (s *state) applyGive(seat int, act engine.Action) error {
	duty, ok := s.exchange[seat]
	if !ok {
		return fmt.Errorf("%w: seat %d owes no cards", engine.ErrNotYourTurn, seat)
	}
	if duty.Given {
		return fmt.Errorf("%w: seat %d already gave", engine.ErrIllegalAction, seat)
	}
	if len(act.Cards) != duty.Count {
		return fmt.Errorf("%w: must give %d cards", engine.ErrIllegalAction, duty.Count)
	}
	if !cards.ContainsAll(s.hands[seat], act.Cards) {
		return fmt.Errorf("%w: cards not in hand", engine.ErrIllegalAction)
	}

	s.hands[seat] = cards.Remove(s.hands[seat], act.Cards)
	s.hands[duty.To] = append(s.hands[duty.To], act.Cards...)
	SortHand(s.hands[duty.To])
	duty.Given = true

	for _, d := range s.exchange {
		if !d.Given {
			return nil
		}
	}
	// Every duty settled: the sub-phase ends and its map is discarded.
	s.exchange = nil
	s.phase = PhasePlaying
	return nil
}

func (s *state) applyPlay(seat int, act engine.Action) error {
	if len(act.Cards) == 0 {
		return fmt.Errorf("%w: no cards", engine.ErrIllegalAction)
	}
	if !cards.ContainsAll(s.hands[seat], act.Cards) {
		return fmt.Errorf("%w: cards not in hand", engine.ErrIllegalAction)
	}
	combo := Identify(act.Cards)
	superTwos := s.rules.IsSuperTwos(act.Cards)
	if combo.Type == Invalid && !superTwos {
		return fmt.Errorf("%w: not a valid combination", engine.ErrIllegalAction)
	}
	if s.pile.Type != Invalid && !s.rules.CanBeat(s.pile.Cards, act.Cards) {
		return fmt.Errorf("%w: does not beat the pile", engine.ErrIllegalAction)
	}

	s.hands[seat] = cards.Remove(s.hands[seat], act.Cards)
	s.pile = combo
	s.pileOwner = seat

	if len(s.hands[seat]) == 0 {
		s.finished[seat] = true
		s.finishOrder = append(s.finishOrder, seat)
	}

	if s.remaining() <= 1 {
		s.endRound()
		return nil
	}

	if superTwos {
		// The variant clear hands the lead straight back, regardless of
		// whose turn would otherwise come next.
		s.clearPile(seat)
		return nil
	}

	s.current = s.nextContender(seat)
	if s.current == -1 || (s.current == s.pileOwner && !s.finished[s.pileOwner]) {
		s.clearPile(s.pileOwner)
	}
	return nil
}

func (s *state) applyPass(seat int) error {
	if s.pile.Type == Invalid {
		return fmt.Errorf("%w: must play on a fresh lead", engine.ErrIllegalAction)
	}
	s.passed[seat] = true
	s.current = s.nextContender(seat)
	if s.current == -1 || s.current == s.pileOwner {
		s.clearPile(s.pileOwner)
	}
	return nil
}

// nextContender returns the next seat after from that is unfinished and has
// not passed on the live pile, or -1 when no such seat exists. The pile
// owner is a valid stop: reaching it means the table passed around.
func (s *state) nextContender(from int) int {
	for i := 1; i <= s.seats; i++ {
		seat := (from + i) % s.seats
		if s.finished[seat] {
			continue
		}
		if seat == s.pileOwner {
			return seat
		}
		if !s.passed[seat] {
			return seat
		}
	}
	return -1
}

// clearPile resets the battle and gives the lead to winner, or to the next
// unfinished seat after it when the winner already shed out.
func (s *state) clearPile(winner int) {
	s.pile = Combo{Type: Invalid}
	s.pileOwner = -1
	for i := range s.passed {
		s.passed[i] = false
	}
	lead := winner
	for i := 0; i < s.seats; i++ {
		seat := (winner + i) % s.seats
		if !s.finished[seat] {
			lead = seat
			break
		}
	}
	s.current = lead
}

func (s *state) remaining() int {
	n := 0
	for _, f := range s.finished {
		if !f {
			n++
		}
	}
	return n
}

func (s *state) endRound() {
	for seat := 0; seat < s.seats; seat++ {
		if !s.finished[seat] {
			s.finishOrder = append(s.finishOrder, seat)
		}
	}
	delta := engine.ScoreDelta{Points: map[int]int{}, Labels: map[int]string{}}
	for pos, seat := range s.finishOrder {
		pts := s.seats - 1 - pos
		delta.Points[seat] = pts
		s.scores[seat] += pts
	}
	delta.Labels[s.finishOrder[0]] = "first out"
	delta.Labels[s.finishOrder[len(s.finishOrder)-1]] = "last"
	s.lastDelta = delta
	s.lastFinish = append([]int(nil), s.finishOrder...)

	s.phase = PhaseRoundOver
	for _, score := range s.scores {
		if score >= s.variant.TargetScore {
			s.phase = PhaseGameOver
			break
		}
	}
}

func (e Engine) ActiveSeats(st engine.State) []int {
	s := get(st)
	switch s.phase {
	case PhaseExchange:
		var seats []int
		for seat := 0; seat < s.seats; seat++ {
			if d, ok := s.exchange[seat]; ok && !d.Given {
				seats = append(seats, seat)
			}
		}
		return seats
	case PhasePlaying:
		return []int{s.current}
	}
	return nil
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
	s.round++
	s.deal()

	// Losers' tribute: the bottom half each owe one card of their choosing
	// to the mirrored seat in the top half of last round's finish order.
	s.exchange = map[int]*ExchangeDuty{}
	n := len(s.lastFinish)
	for i := 0; i < n/2; i++ {
		giver := s.lastFinish[n-1-i]
		receiver := s.lastFinish[i]
		s.exchange[giver] = &ExchangeDuty{To: receiver, Count: 1}
	}
	s.phase = PhaseExchange
	// Last round's winner leads once the exchange settles.
	s.current = s.lastFinish[0]
	return nil
}

func (e Engine) Standings(st engine.State) []int {
	s := get(st)
	order := make([]int, s.seats)
	for i := range order {
		order[i] = i
	}
	finishPos := map[int]int{}
	for pos, seat := range s.lastFinish {
		finishPos[seat] = pos
	}
	for i := 0; i < len(order); i++ {
		for j := i + 1; j < len(order); j++ {
			a, b := order[i], order[j]
			if s.scores[b] > s.scores[a] ||
				(s.scores[b] == s.scores[a] && finishPos[b] < finishPos[a]) {
				order[i], order[j] = order[j], order[i]
			}
		}
	}
	return order
}

func (e Engine) View(st engine.State, seat int) engine.View {
	s := get(st)
	counts := make([]int, s.seats)
	for i, h := range s.hands {
		counts[i] = len(h)
	}
	table := Table{
		Pile:        append([]cards.Card(nil), s.pile.Cards...),
		PileOwner:   s.pileOwner,
		Round:       s.round,
		Passed:      append([]bool(nil), s.passed...),
		FinishOrder: append([]int(nil), s.finishOrder...),
		SuperTwos:   s.rules.SuperTwos,
	}
	if d, ok := s.exchange[seat]; ok && !d.Given {
		duty := *d
		table.Duty = &duty
	}
	var hand []cards.Card
	if seat >= 0 && seat < s.seats {
		hand = append([]cards.Card(nil), s.hands[seat]...)
	}
	return engine.View{
		Kind:       engine.KindTienLen,
		Seat:       seat,
		Phase:      s.phase,
		Active:     e.ActiveSeats(st),
		Hand:       hand,
		HandCounts: counts,
		Scores:     append([]int(nil), s.scores...),
		Terminal:   s.phase == PhaseGameOver,
		Table:      table,
	}
}
