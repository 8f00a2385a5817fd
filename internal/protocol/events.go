package protocol

import (
	"encoding/json"

	"cardroom/internal/engine"
)

// SeatInfo is the per-seat roster entry broadcast with every snapshot.
type SeatInfo struct {
	Seat      int    `json:"seat"`
	UserID    string `json:"user_id,omitempty"`
	Username  string `json:"username,omitempty"`
	Connected bool   `json:"connected"`
	AI        bool   `json:"ai"`
}

// Snapshot is the seat-filtered view of the session sent to one client.
// Resync is set when the snapshot was triggered by a detected drift.
type Snapshot struct {
	StateSequence int64       `json:"state_seq"`
	View          engine.View `json:"view"`
	Seats         []SeatInfo  `json:"seats"`
	Resync        bool        `json:"resync,omitempty"`
}

// TurnPrompt tells the active seat what it may do and by when.
type TurnPrompt struct {
	StateSequence int64    `json:"state_seq"`
	Seat          int      `json:"seat"`
	Legal         []Action `json:"legal"`
	DeadlineUnix  int64    `json:"deadline_unix"`
}

// Action is the wire form of engine.Action.
type Action struct {
	Type    string   `json:"type"`
	CardIDs []string `json:"card_ids,omitempty"`
	Suit    string   `json:"suit,omitempty"`
	Bid     int      `json:"bid,omitempty"`
	Alone   bool     `json:"alone,omitempty"`
}

// Reminder nudges a seat that has not acted.
type Reminder struct {
	Seat      int `json:"seat"`
	Remaining int `json:"remaining_seconds"`
	Count     int `json:"count"`
}

// TimedOut announces that a seat ran out the turn clock and is now
// played by the server.
type TimedOut struct {
	Seat int `json:"seat"`
}

// SeatBooted announces a seat removed from the session.
type SeatBooted struct {
	Seat   int    `json:"seat"`
	UserID string `json:"user_id,omitempty"`
	By     int    `json:"by"`
}

// RoundComplete carries the score movement for a finished round.
type RoundComplete struct {
	Round  int               `json:"round"`
	Delta  engine.ScoreDelta `json:"delta"`
	Scores []int             `json:"scores"`
}

// GameOver carries the final standings, best seat first.
type GameOver struct {
	Standings []int `json:"standings"`
	Scores    []int `json:"scores"`
}

// Welcome is sent privately to a player when they take a seat. The
// rejoin token lets them reclaim the seat after a disconnect.
type Welcome struct {
	SessionID   string     `json:"session_id"`
	Game        string     `json:"game"`
	Seat        int        `json:"seat"`
	RejoinToken string     `json:"rejoin_token,omitempty"`
	Seats       []SeatInfo `json:"seats"`
}

// Error codes sent to clients. Kept stable; clients switch on them.
const (
	ErrCodeNotYourTurn   = "not_your_turn"
	ErrCodeIllegalAction = "illegal_action"
	ErrCodeBadRequest    = "bad_request"
	ErrCodeSeatTaken     = "seat_taken"
	ErrCodeSessionOver   = "session_over"
	ErrCodeNotBootable   = "not_bootable"
	ErrCodeInternal      = "internal"
)

// ErrorEvent reports a rejected command back to its sender.
type ErrorEvent struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// WireAction converts an engine action to its wire form.
func WireAction(act engine.Action) Action {
	w := Action{Type: string(act.Type), Bid: act.Bid, Alone: act.Alone}
	if len(act.Cards) > 0 {
		w.CardIDs = make([]string, len(act.Cards))
		for i, c := range act.Cards {
			w.CardIDs[i] = c.ID()
		}
	}
	if act.Type == engine.ActionBid {
		w.Suit = act.Suit.String()
	}
	return w
}

// WireActions converts a legal action set to wire form.
func WireActions(acts []engine.Action) []Action {
	out := make([]Action, len(acts))
	for i, a := range acts {
		out[i] = WireAction(a)
	}
	return out
}

// Encode marshals an outbound payload. Marshal failures cannot happen for
// the types above, so the error is swallowed the way the prototype does it.
func Encode(v any) []byte {
	b, _ := json.Marshal(v)
	return b
}
