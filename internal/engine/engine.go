// Package engine defines the contract every rules engine implements so one
// session runtime can drive euchre, spades and tien len tables. Engines are
// pure state machines: no I/O, no timers, no knowledge of connections.
package engine

import (
	"errors"
	"math/rand"

	"cardroom/internal/cards"
)

// Kind names a rules engine.
type Kind string

const (
	KindEuchre  Kind = "euchre"
	KindSpades  Kind = "spades"
	KindTienLen Kind = "tienlen"
)

// Variant carries the table options fixed at session creation.
type Variant struct {
	// Seats is the number of seats at the table. Euchre and spades require
	// exactly 4; tien len accepts 4 through 8.
	Seats int `json:"seats"`
	// TargetScore ends the game when reached. Zero selects the engine default.
	TargetScore int `json:"target_score,omitempty"`
	// SuperTwos enables the tien len table rule that a pair of twos clears
	// any pile outright.
	SuperTwos bool `json:"super_twos,omitempty"`
}

// State is the opaque engine-owned value the runtime passes through.
type State interface {
	GameKind() Kind
}

// Rejection reasons returned by Apply. Callers match with errors.Is; the
// wrapped message carries the human-readable detail.
var (
	ErrNotYourTurn   = errors.New("not your turn")
	ErrIllegalAction = errors.New("illegal action")
	ErrGameOver      = errors.New("game already over")
)

// ScoreDelta is the outcome of one round.
type ScoreDelta struct {
	// Points maps seat index to the points earned this round. Team games
	// report the same value on both partner seats.
	Points map[int]int `json:"points"`
	// Labels annotates notable outcomes per seat ("euchred", "nil made",
	// "bag penalty") for the round-complete breakdown.
	Labels map[int]string `json:"labels,omitempty"`
}

// View is the seat-filtered projection of an engine state. It must be
// reconstructible from the state plus the receiving seat alone.
type View struct {
	Kind       Kind         `json:"kind"`
	Seat       int          `json:"seat"`
	Phase      string       `json:"phase"`
	Active     []int        `json:"active"`
	Hand       []cards.Card `json:"hand"`
	HandCounts []int        `json:"hand_counts"`
	Scores     []int        `json:"scores"`
	Terminal   bool         `json:"terminal"`
	// Table is engine-specific public information: trump and trick for the
	// trick games, pile and variant flags for tien len. JSON-marshalable.
	Table any `json:"table,omitempty"`
}

// Engine is the plug-in contract shared by all three game kinds.
//
// Apply revalidates legality even though LegalActions exists: the runtime is
// never trusted to have consulted it. A failed Apply leaves the state
// untouched.
type Engine interface {
	Kind() Kind

	// SeatRange returns the inclusive bounds on table size.
	SeatRange() (min, max int)

	// Deal produces a fresh state for a new game. The rng is retained by the
	// state for redeals and subsequent rounds.
	Deal(seats int, variant Variant, rng *rand.Rand) (State, error)

	// LegalActions returns every action the seat may take now, or an empty
	// slice when it is not that seat's turn or the seat has finished.
	LegalActions(st State, seat int) []Action

	// Apply validates and applies one action.
	Apply(st State, seat int, act Action) error

	// ActiveSeats lists the seats awaiting input: exactly one in turn-based
	// phases, several during a simultaneous exchange, none when over.
	ActiveSeats(st State) []int

	IsRoundOver(st State) bool
	IsGameOver(st State) bool

	// ScoreRound reports the delta for the just-completed round.
	ScoreRound(st State) ScoreDelta

	// NextRound deals the following round. Only valid when the round is over
	// and the game is not.
	NextRound(st State) error

	// Standings returns seats ordered best-first. Only meaningful once
	// IsGameOver reports true.
	Standings(st State) []int

	// View builds the filtered projection delivered to one seat.
	View(st State, seat int) View
}

// New returns the engine for a kind.
func New(kind Kind) (Engine, error) {
	ctor, ok := registry[kind]
	if !ok {
		return nil, errors.New("unknown game kind: " + string(kind))
	}
	return ctor(), nil
}

var registry = map[Kind]func() Engine{}

// Register installs an engine constructor. Called from engine package init
// functions; not safe for concurrent use and not meant to be.
func Register(kind Kind, ctor func() Engine) {
	registry[kind] = ctor
}
