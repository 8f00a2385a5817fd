package nakama

import (
	"github.com/heroiclabs/nakama-common/runtime"
)

// dispatcherTransport routes session output through the match dispatcher.
// Seat indexes resolve to presences via the match state; a seat without a
// live presence drops the message, which is what the session expects.
type dispatcherTransport struct {
	state      *MatchState
	dispatcher runtime.MatchDispatcher
	logger     runtime.Logger
}

// bind refreshes the dispatcher handle for the current callback.
func (t *dispatcherTransport) bind(dispatcher runtime.MatchDispatcher, logger runtime.Logger) {
	t.dispatcher = dispatcher
	t.logger = logger
}

func (t *dispatcherTransport) ToSeat(seat int, opCode int64, payload []byte) {
	p, ok := t.state.SeatPresences[seat]
	if !ok {
		return
	}
	if err := t.dispatcher.BroadcastMessage(opCode, payload, []runtime.Presence{p}, nil, true); err != nil {
		t.logger.Error("ToSeat: broadcast failed: %v", err)
	}
}

func (t *dispatcherTransport) Broadcast(opCode int64, payload []byte) {
	if err := t.dispatcher.BroadcastMessage(opCode, payload, nil, nil, true); err != nil {
		t.logger.Error("Broadcast: failed: %v", err)
	}
}
