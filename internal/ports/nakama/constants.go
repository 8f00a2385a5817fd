package nakama

// RPC ids clients call.
const (
	// RpcQuickMatch finds or creates a joinable match for a game kind.
	RpcQuickMatch = "quick_match"
	// RpcRejoin resolves a seat-claim token back to a match id and seat.
	RpcRejoin = "rejoin"
)

// Authoritative match handler names registered with Nakama.
const (
	MatchNameEuchre  = "euchre_match"
	MatchNameSpades  = "spades_match"
	MatchNameTienLen = "tienlen_match"
)

// Match label keys used in MatchList queries.
const (
	MatchLabelKey_OpenSeats = "open"
	MatchLabelKey_Game      = "game"
	MatchLabelKey_Phase     = "phase"
)
