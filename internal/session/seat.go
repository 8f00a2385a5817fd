package session

import "time"

// Control says who is expected to produce actions for a seat.
type Control string

const (
	// ControlHuman seats are played by their user, even while the user
	// is disconnected or timed out; the seat waits for them or a boot.
	ControlHuman Control = "human"
	// ControlAI seats are played by the server permanently.
	ControlAI Control = "ai"
)

const idemCacheSize = 64

// Seat is one chair at the table. The roster is fixed when the game
// starts; seats change control, never occupants.
type Seat struct {
	Index    int
	UserID   string
	Username string
	Control  Control

	Connected      bool
	DisconnectedAt time.Time
	// TimedOut marks a connected human whose turn clock ran out. The
	// turn stays pending; the flag makes the seat boot-eligible and is
	// cleared the moment the human acts again.
	TimedOut bool

	lastClientSeq int64
	idemTokens    map[string]struct{}
	idemOrder     []string
}

// Occupied reports whether anything sits here.
func (s *Seat) Occupied() bool {
	return s.Control == ControlAI || s.UserID != ""
}

// serverActs reports whether the server should produce this seat's moves.
func (s *Seat) serverActs() bool {
	return s.Control == ControlAI
}

// tokenSeen reports whether an idempotency token was already honored.
// Only applied commands record their token.
func (s *Seat) tokenSeen(token string) bool {
	if token == "" {
		return false
	}
	_, ok := s.idemTokens[token]
	return ok
}

// rememberToken caches an applied command's token. The cache holds the
// most recent tokens only.
func (s *Seat) rememberToken(token string) {
	if token == "" {
		return
	}
	if s.idemTokens == nil {
		s.idemTokens = make(map[string]struct{}, idemCacheSize)
	}
	if _, ok := s.idemTokens[token]; ok {
		return
	}
	s.idemTokens[token] = struct{}{}
	s.idemOrder = append(s.idemOrder, token)
	if len(s.idemOrder) > idemCacheSize {
		delete(s.idemTokens, s.idemOrder[0])
		s.idemOrder = s.idemOrder[1:]
	}
}

// staleSequence reports whether the client sequence was already handled.
// Zero means the client does not use sequence numbers. The watermark
// advances only when the command is applied.
func (s *Seat) staleSequence(seq int64) bool {
	return seq != 0 && seq <= s.lastClientSeq
}

func (s *Seat) advanceSequence(seq int64) {
	if seq > s.lastClientSeq {
		s.lastClientSeq = seq
	}
}
