package protocol

// Client -> server opcodes.
const (
	OpStartGame        int64 = 1
	OpPlayCard         int64 = 2
	OpPassTurn         int64 = 3
	OpMakeBid          int64 = 4
	OpDiscardCard      int64 = 5
	OpGiveCards        int64 = 6
	OpBootSeat         int64 = 7
	OpRequestFullState int64 = 8
	OpLeaveSeat        int64 = 9
)

// Server -> client opcodes.
const (
	OpSnapshot      int64 = 100
	OpTurnPrompt    int64 = 101
	OpReminder      int64 = 102
	OpTimedOut      int64 = 103
	OpSeatBooted    int64 = 104
	OpRoundComplete int64 = 105
	OpGameOver      int64 = 106
	OpSeatUpdate    int64 = 107
	OpError         int64 = 108
	OpWelcome       int64 = 109
)
