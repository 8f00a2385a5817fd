package session

// Transport delivers outbound messages to the table. The Nakama adapter
// backs it with a match dispatcher; tests back it with a recorder.
// Sends to seats without a live connection are dropped silently.
type Transport interface {
	ToSeat(seat int, opCode int64, payload []byte)
	Broadcast(opCode int64, payload []byte)
}
