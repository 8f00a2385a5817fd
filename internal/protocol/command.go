package protocol

import (
	"encoding/json"
	"fmt"

	"cardroom/internal/cards"
	"cardroom/internal/engine"
)

// Envelope carries the optional reliability fields every inbound command may
// set. A zero ClientSequence means the client is not using sequence dedup.
type Envelope struct {
	ClientSequence        int64  `json:"client_seq,omitempty"`
	IdempotencyToken      string `json:"idem_token,omitempty"`
	ExpectedStateSequence int64  `json:"expect_state_seq,omitempty"`
}

// Command is a structurally valid inbound message. Action is nil for
// non-gameplay commands (start, boot, resync, leave).
type Command struct {
	Envelope
	OpCode   int64
	Action   *engine.Action
	BootSeat int
}

type makeBidPayload struct {
	Envelope
	Bid   int    `json:"bid"`
	Pass  bool   `json:"pass"`
	Suit  string `json:"suit,omitempty"`
	Alone bool   `json:"alone,omitempty"`
}

type cardPayload struct {
	Envelope
	CardID  string   `json:"card_id,omitempty"`
	CardIDs []string `json:"card_ids,omitempty"`
}

func (p cardPayload) cards() ([]cards.Card, error) {
	ids := p.CardIDs
	if p.CardID != "" {
		ids = append([]string{p.CardID}, ids...)
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("missing card_id")
	}
	return cards.ParseAll(ids)
}

type passPayload struct {
	Envelope
}

type giveCardsPayload struct {
	Envelope
	CardIDs []string `json:"card_ids"`
}

type bootSeatPayload struct {
	Envelope
	Seat int `json:"seat"`
}

// DecodeCommand parses and structurally validates one inbound message.
// Rule legality is not checked here; that belongs to the engine.
func DecodeCommand(opCode int64, data []byte) (Command, error) {
	switch opCode {
	case OpStartGame, OpLeaveSeat:
		var p passPayload
		if err := unmarshal(data, &p); err != nil {
			return Command{}, err
		}
		return Command{Envelope: p.Envelope, OpCode: opCode}, nil

	case OpRequestFullState:
		var p passPayload
		if err := unmarshal(data, &p); err != nil {
			return Command{}, err
		}
		return Command{Envelope: p.Envelope, OpCode: opCode}, nil

	case OpMakeBid:
		var p makeBidPayload
		if err := unmarshal(data, &p); err != nil {
			return Command{}, err
		}
		act := engine.Action{Type: engine.ActionBid, Bid: p.Bid, Alone: p.Alone}
		if p.Pass {
			act = engine.Action{Type: engine.ActionPass}
		}
		if p.Suit != "" {
			suit, err := cards.ParseSuit(p.Suit)
			if err != nil {
				return Command{}, fmt.Errorf("make-bid: %w", err)
			}
			act.Suit = suit
		}
		if !p.Pass && (p.Bid < 0 || p.Bid > 13) {
			return Command{}, fmt.Errorf("make-bid: bid %d out of range", p.Bid)
		}
		return Command{Envelope: p.Envelope, OpCode: opCode, Action: &act}, nil

	case OpPlayCard:
		act, env, err := decodeCardAction(data, engine.ActionPlay, "play-card")
		if err != nil {
			return Command{}, err
		}
		return Command{Envelope: env, OpCode: opCode, Action: act}, nil

	case OpDiscardCard:
		act, env, err := decodeCardAction(data, engine.ActionDiscard, "discard-card")
		if err != nil {
			return Command{}, err
		}
		return Command{Envelope: env, OpCode: opCode, Action: act}, nil

	case OpPassTurn:
		var p passPayload
		if err := unmarshal(data, &p); err != nil {
			return Command{}, err
		}
		act := engine.Action{Type: engine.ActionPass}
		return Command{Envelope: p.Envelope, OpCode: opCode, Action: &act}, nil

	case OpGiveCards:
		var p giveCardsPayload
		if err := unmarshal(data, &p); err != nil {
			return Command{}, err
		}
		if len(p.CardIDs) == 0 {
			return Command{}, fmt.Errorf("give-cards: empty card list")
		}
		cs, err := cards.ParseAll(p.CardIDs)
		if err != nil {
			return Command{}, fmt.Errorf("give-cards: %w", err)
		}
		act := engine.Action{Type: engine.ActionGive, Cards: cs}
		return Command{Envelope: p.Envelope, OpCode: opCode, Action: &act}, nil

	case OpBootSeat:
		var p bootSeatPayload
		if err := unmarshal(data, &p); err != nil {
			return Command{}, err
		}
		if p.Seat < 0 {
			return Command{}, fmt.Errorf("boot-seat: seat %d out of range", p.Seat)
		}
		return Command{Envelope: p.Envelope, OpCode: opCode, BootSeat: p.Seat}, nil
	}
	return Command{}, fmt.Errorf("unknown opcode %d", opCode)
}

func decodeCardAction(data []byte, typ engine.ActionType, name string) (*engine.Action, Envelope, error) {
	var p cardPayload
	if err := unmarshal(data, &p); err != nil {
		return nil, Envelope{}, err
	}
	cs, err := p.cards()
	if err != nil {
		return nil, Envelope{}, fmt.Errorf("%s: %w", name, err)
	}
	if typ == engine.ActionDiscard && len(cs) != 1 {
		return nil, Envelope{}, fmt.Errorf("%s: exactly one card expected", name)
	}
	return &engine.Action{Type: typ, Cards: cs}, p.Envelope, nil
}

func unmarshal(data []byte, v any) error {
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("malformed payload: %w", err)
	}
	return nil
}
