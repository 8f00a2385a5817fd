package session

import (
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/heroiclabs/nakama-common/runtime"

	"cardroom/internal/bot"
	"cardroom/internal/cards"
	"cardroom/internal/config"
	"cardroom/internal/engine"
	"cardroom/internal/protocol"
)

// Session is the authoritative runtime for one table. It owns the engine
// state, the turn clock, seat lifecycle and the outbound message flow.
// All methods must be called from a single goroutine; the Nakama match
// loop provides that serialization.
type Session struct {
	ID      string
	Kind    engine.Kind
	Variant engine.Variant

	cfg *config.Config
	log runtime.Logger
	tr  Transport

	eng engine.Engine
	st  engine.State
	rng *rand.Rand

	seats    []*Seat
	stateSeq int64
	round    int
	started  bool
	over     bool

	timers     map[int]*turnTimer
	botDue     map[int]time.Time
	botTier    bot.Tier
	strategies map[int]bot.Strategy
	trackers   map[int]*bot.Tracker

	// resyncSeat marks one seat whose next snapshot carries the resync
	// flag, set when a command arrives with a drifted expected sequence.
	resyncSeat    int
	noHumansSince time.Time
}

// New builds an idle session. Seats are filled by Sit/SitAI before Start.
func New(id string, kind engine.Kind, variant engine.Variant, cfg *config.Config, log runtime.Logger, tr Transport) (*Session, error) {
	eng, err := engine.New(kind)
	if err != nil {
		return nil, err
	}
	minSeats, maxSeats := eng.SeatRange()
	if variant.Seats == 0 {
		variant.Seats = minSeats
	}
	if variant.Seats < minSeats || variant.Seats > maxSeats {
		return nil, fmt.Errorf("%s: seat count %d out of range %d..%d", kind, variant.Seats, minSeats, maxSeats)
	}
	if variant.TargetScore == 0 {
		variant.TargetScore = cfg.TargetScore(string(kind))
	}
	s := &Session{
		ID:         id,
		Kind:       kind,
		Variant:    variant,
		cfg:        cfg,
		log:        log,
		tr:         tr,
		eng:        eng,
		rng:        cards.NewRNG(),
		seats:      make([]*Seat, variant.Seats),
		timers:     make(map[int]*turnTimer),
		botDue:     make(map[int]time.Time),
		botTier:    bot.Tier(cfg.BotTier),
		strategies: make(map[int]bot.Strategy),
		trackers:   make(map[int]*bot.Tracker),
		resyncSeat: -1,
	}
	for i := range s.seats {
		s.seats[i] = &Seat{Index: i, Control: ControlHuman}
	}
	return s, nil
}

// Started reports whether cards have been dealt.
func (s *Session) Started() bool { return s.started }

// Over reports whether the game reached its target score.
func (s *Session) Over() bool { return s.over }

// StateSequence returns the current authoritative sequence number.
func (s *Session) StateSequence() int64 { return s.stateSeq }

// SeatCount returns the table size.
func (s *Session) SeatCount() int { return len(s.seats) }

// SeatOf returns the seat index bound to a user, or -1.
func (s *Session) SeatOf(userID string) int {
	for _, seat := range s.seats {
		if seat.UserID == userID && seat.Control == ControlHuman {
			return seat.Index
		}
	}
	return -1
}

// Sit binds a user to the lowest open seat before the game starts.
func (s *Session) Sit(userID, username string) (int, error) {
	if s.started {
		return -1, ErrSessionOver
	}
	if s.SeatOf(userID) >= 0 {
		return -1, ErrSeatOccupied
	}
	for _, seat := range s.seats {
		if !seat.Occupied() {
			seat.UserID = userID
			seat.Username = username
			seat.Control = ControlHuman
			seat.Connected = true
			return seat.Index, nil
		}
	}
	return -1, ErrSeatOccupied
}

// SitAI fills every open seat with a server player.
func (s *Session) SitAI() {
	for _, seat := range s.seats {
		if !seat.Occupied() {
			seat.Control = ControlAI
			seat.Username = fmt.Sprintf("CPU %d", seat.Index+1)
		}
	}
}

// Unsit frees a seat before the game starts. Once cards are dealt the
// roster is fixed; use Leave or Boot instead.
func (s *Session) Unsit(seatIdx int) {
	if s.started || seatIdx < 0 || seatIdx >= len(s.seats) {
		return
	}
	s.seats[seatIdx] = &Seat{Index: seatIdx, Control: ControlHuman}
}

// HumanSeats counts seats under human control, connected or not.
func (s *Session) HumanSeats() int {
	n := 0
	for _, seat := range s.seats {
		if seat.Control == ControlHuman && seat.UserID != "" {
			n++
		}
	}
	return n
}

// Start deals the first round and opens play.
func (s *Session) Start(now time.Time) error {
	if s.started {
		return ErrSessionOver
	}
	for _, seat := range s.seats {
		if !seat.Occupied() {
			return fmt.Errorf("seat %d: %w", seat.Index, ErrSeatVacant)
		}
	}
	st, err := s.eng.Deal(len(s.seats), s.Variant, s.rng)
	if err != nil {
		return err
	}
	s.st = st
	s.started = true
	s.round = 1
	s.stateSeq++
	s.log.Info("session %s: started %s round 1 with %d seats", s.ID, s.Kind, len(s.seats))
	s.sendSnapshots(false)
	s.rearm(now)
	return nil
}

// HandleCommand admits, deduplicates and dispatches one client command.
// Rejections are reported back to the sender; the returned error mirrors
// what was sent.
func (s *Session) HandleCommand(seatIdx int, cmd protocol.Command, now time.Time) error {
	if seatIdx < 0 || seatIdx >= len(s.seats) {
		return ErrUnknownSeat
	}
	seat := s.seats[seatIdx]

	if cmd.OpCode == protocol.OpRequestFullState {
		s.sendSnapshot(seatIdx, true)
		return nil
	}
	if s.over {
		s.sendError(seatIdx, protocol.ErrCodeSessionOver, ErrSessionOver.Error())
		return ErrSessionOver
	}

	if seat.staleSequence(cmd.ClientSequence) {
		s.sendSnapshot(seatIdx, false)
		return nil
	}
	if seat.tokenSeen(cmd.IdempotencyToken) {
		s.sendSnapshot(seatIdx, false)
		return nil
	}
	// A drifted client never blocks its own command: the action still
	// applies against the live state, and the snapshot that follows is
	// flagged so the client rebuilds from it.
	if cmd.ExpectedStateSequence > 0 && cmd.ExpectedStateSequence != s.stateSeq {
		s.resyncSeat = seatIdx
	}

	switch cmd.OpCode {
	case protocol.OpBootSeat:
		if err := s.Boot(seatIdx, cmd.BootSeat, now); err != nil {
			s.sendError(seatIdx, bootErrCode(err), err.Error())
			return err
		}
		return nil
	case protocol.OpLeaveSeat:
		s.Leave(seatIdx, now)
		return nil
	}

	if cmd.Action == nil {
		s.sendError(seatIdx, protocol.ErrCodeBadRequest, ErrBadCommand.Error())
		return ErrBadCommand
	}

	// Acting at all clears the timed-out flag, even if the action is
	// then rejected; the seat gets its clock back.
	if seat.TimedOut {
		seat.TimedOut = false
		if s.started && !s.over {
			s.rearm(now)
		}
	}

	if err := s.applyAction(seatIdx, *cmd.Action, now); err != nil {
		s.sendError(seatIdx, applyErrCode(err), err.Error())
		if s.resyncSeat == seatIdx {
			s.sendSnapshot(seatIdx, true)
		}
		return err
	}
	seat.advanceSequence(cmd.ClientSequence)
	seat.rememberToken(cmd.IdempotencyToken)
	return nil
}

// applyAction runs one action through the engine and drives everything
// that follows from a successful mutation.
func (s *Session) applyAction(seatIdx int, act engine.Action, now time.Time) error {
	preViews := s.trackerViews()

	if err := s.eng.Apply(s.st, seatIdx, act); err != nil {
		return err
	}
	s.stateSeq++
	delete(s.botDue, seatIdx)
	// A fresh clock if the same seat is still on the move.
	delete(s.timers, seatIdx)

	for i, v := range preViews {
		s.trackers[i].Observe(v, seatIdx, act)
	}

	// Every increment gets its own snapshot: the round-closing play is
	// delivered before the deal resets it.
	s.sendSnapshots(false)
	if s.eng.IsRoundOver(s.st) {
		s.finishRound(now)
	}
	if !s.over {
		s.rearm(now)
	}
	return nil
}

func (s *Session) finishRound(now time.Time) {
	delta := s.eng.ScoreRound(s.st)
	view := s.eng.View(s.st, 0)
	s.tr.Broadcast(protocol.OpRoundComplete, protocol.Encode(protocol.RoundComplete{
		Round:  s.round,
		Delta:  delta,
		Scores: view.Scores,
	}))

	if s.eng.IsGameOver(s.st) {
		s.over = true
		s.stateSeq++
		standings := s.eng.Standings(s.st)
		s.log.Info("session %s: game over, standings %v", s.ID, standings)
		s.sendSnapshots(false)
		s.tr.Broadcast(protocol.OpGameOver, protocol.Encode(protocol.GameOver{
			Standings: standings,
			Scores:    s.eng.View(s.st, 0).Scores,
		}))
		s.disarmAll()
		return
	}

	if err := s.eng.NextRound(s.st); err != nil {
		s.log.Error("session %s: next round: %v", s.ID, err)
		return
	}
	s.round++
	s.stateSeq++
	for _, t := range s.trackers {
		t.Reset()
	}
	s.sendSnapshots(false)
}

// Tick drives the clocks: reminders, timeouts, server moves and the
// empty-table shutdown. It returns true when the match should terminate.
func (s *Session) Tick(now time.Time) bool {
	if s.started && !s.over {
		s.tickTimers(now)
		s.tickBots(now)
	}
	return s.tickHumansGone(now)
}

func (s *Session) tickTimers(now time.Time) {
	for seatIdx, t := range s.timers {
		if t.isPaused() {
			continue
		}
		if t.reminderDue(now, s.cfg) {
			s.tr.ToSeat(seatIdx, protocol.OpReminder, protocol.Encode(protocol.Reminder{
				Seat:      seatIdx,
				Remaining: t.remaining(now),
				Count:     t.remindersSent,
			}))
		}
		if t.expired(now) {
			delete(s.timers, seatIdx)
			s.timeOut(seatIdx)
		}
	}
}

// timeOut flags the seat and stops its clock. The turn stays pending
// until the human acts or another seat boots them.
func (s *Session) timeOut(seatIdx int) {
	seat := s.seats[seatIdx]
	seat.TimedOut = true
	s.stateSeq++
	s.log.Info("session %s: seat %d timed out", s.ID, seatIdx)
	s.tr.Broadcast(protocol.OpTimedOut, protocol.Encode(protocol.TimedOut{Seat: seatIdx}))
	s.sendSnapshots(false)
}

func (s *Session) tickBots(now time.Time) {
	// One pass per tick; a move schedules the follow-up through rearm.
	for seatIdx, due := range s.botDue {
		if now.Before(due) {
			continue
		}
		if !s.seats[seatIdx].serverActs() {
			delete(s.botDue, seatIdx)
			continue
		}
		legal := s.eng.LegalActions(s.st, seatIdx)
		if len(legal) == 0 {
			delete(s.botDue, seatIdx)
			continue
		}
		act := s.strategyFor(seatIdx).ChooseAction(s.eng.View(s.st, seatIdx), legal, s.trackers[seatIdx])
		if err := s.applyAction(seatIdx, act, now); err != nil {
			s.log.Error("session %s: server move for seat %d rejected: %v", s.ID, seatIdx, err)
			delete(s.botDue, seatIdx)
		}
		if s.over {
			return
		}
	}
}

func (s *Session) tickHumansGone(now time.Time) bool {
	connected := 0
	for _, seat := range s.seats {
		if seat.Control == ControlHuman && seat.Connected {
			connected++
		}
	}
	if connected > 0 {
		s.noHumansSince = time.Time{}
		return false
	}
	if s.noHumansSince.IsZero() {
		s.noHumansSince = now
		return false
	}
	return now.Sub(s.noHumansSince) >= time.Duration(s.cfg.EmptySessionTTLSeconds)*time.Second
}

// rearm synchronizes clocks and server-move schedules with the set of
// seats the engine is waiting on.
func (s *Session) rearm(now time.Time) {
	active := s.eng.ActiveSeats(s.st)
	isActive := make(map[int]bool, len(active))
	for _, seatIdx := range active {
		isActive[seatIdx] = true
	}
	for seatIdx := range s.timers {
		if !isActive[seatIdx] || s.seats[seatIdx].serverActs() {
			delete(s.timers, seatIdx)
		}
	}
	for seatIdx := range s.botDue {
		if !isActive[seatIdx] {
			delete(s.botDue, seatIdx)
		}
	}
	for _, seatIdx := range active {
		seat := s.seats[seatIdx]
		if seat.serverActs() {
			if _, ok := s.botDue[seatIdx]; !ok {
				s.botDue[seatIdx] = now.Add(s.thinkDelay())
			}
			continue
		}
		// No clock for an absent or already timed-out human; the seat
		// waits for them or for a boot.
		if !seat.Connected || seat.TimedOut {
			continue
		}
		t, ok := s.timers[seatIdx]
		if !ok {
			t = newTurnTimer(seatIdx, now, s.cfg)
			s.timers[seatIdx] = t
		}
		s.tr.ToSeat(seatIdx, protocol.OpTurnPrompt, protocol.Encode(protocol.TurnPrompt{
			StateSequence: s.stateSeq,
			Seat:          seatIdx,
			Legal:         protocol.WireActions(s.eng.LegalActions(s.st, seatIdx)),
			DeadlineUnix:  t.deadline.Unix(),
		}))
	}
}

func (s *Session) disarmAll() {
	s.timers = make(map[int]*turnTimer)
	s.botDue = make(map[int]time.Time)
}

func (s *Session) thinkDelay() time.Duration {
	span := s.cfg.BotThinkMaxMillis - s.cfg.BotThinkMinMillis
	ms := s.cfg.BotThinkMinMillis
	if span > 0 {
		ms += s.rng.Intn(span + 1)
	}
	return time.Duration(ms) * time.Millisecond
}

func (s *Session) strategyFor(seatIdx int) bot.Strategy {
	if st, ok := s.strategies[seatIdx]; ok {
		return st
	}
	st, err := bot.New(s.Kind, s.botTier)
	if err != nil {
		st, _ = bot.New(s.Kind, bot.TierHeuristic)
	}
	s.strategies[seatIdx] = st
	if s.botTier == bot.TierTracking {
		s.trackers[seatIdx] = bot.NewTracker()
	}
	return st
}

// trackerViews captures each tracking seat's view before a mutation so
// void inference sees the table as the actor saw it.
func (s *Session) trackerViews() map[int]engine.View {
	if len(s.trackers) == 0 {
		return nil
	}
	views := make(map[int]engine.View, len(s.trackers))
	for i := range s.trackers {
		views[i] = s.eng.View(s.st, i)
	}
	return views
}

// Disconnect marks a human seat as away. The seat keeps its hand and its
// pending turn; a running clock freezes until the user returns.
func (s *Session) Disconnect(seatIdx int, now time.Time) {
	if seatIdx < 0 || seatIdx >= len(s.seats) {
		return
	}
	seat := s.seats[seatIdx]
	if seat.Control != ControlHuman || !seat.Connected {
		return
	}
	seat.Connected = false
	seat.DisconnectedAt = now
	if t, ok := s.timers[seatIdx]; ok {
		t.pause(now)
	}
	s.stateSeq++
	s.log.Info("session %s: seat %d (%s) disconnected", s.ID, seatIdx, seat.UserID)
	s.sendSnapshots(false)
}

// Reconnect returns a seat to its user. Fails if the seat was booted or
// never belonged to them.
func (s *Session) Reconnect(seatIdx int, userID string, now time.Time) error {
	if seatIdx < 0 || seatIdx >= len(s.seats) {
		return ErrUnknownSeat
	}
	seat := s.seats[seatIdx]
	if seat.Control != ControlHuman || seat.UserID == "" {
		return ErrSeatVacant
	}
	if seat.UserID != userID {
		return ErrWrongUser
	}
	seat.Connected = true
	if t, ok := s.timers[seatIdx]; ok {
		t.resume(now)
	}
	s.stateSeq++
	s.log.Info("session %s: seat %d (%s) reconnected", s.ID, seatIdx, userID)
	if s.started && !s.over {
		s.resyncSeat = seatIdx
		s.sendSnapshots(false)
		s.rearm(now)
	}
	return nil
}

// Leave gives a seat up for good; the server plays it from here on.
func (s *Session) Leave(seatIdx int, now time.Time) {
	if seatIdx < 0 || seatIdx >= len(s.seats) {
		return
	}
	seat := s.seats[seatIdx]
	if seat.Control != ControlHuman {
		return
	}
	s.log.Info("session %s: seat %d (%s) left", s.ID, seatIdx, seat.UserID)
	s.convertToAI(seat)
	s.stateSeq++
	s.broadcastSeats()
	if s.started && !s.over {
		s.sendSnapshots(false)
		s.rearm(now)
	}
}

/// Bootable reports whether a seat may be removed right now: a timed-out
// seat, or a disconnected one whose reconnect grace has run out.
func (s *Session) Bootable(seatIdx int, now time.Time) bool {
	if seatIdx < 0 || seatIdx >= len(s.seats) {
		return false
	}
	seat := s.seats[seatIdx]
	if seat.Control != ControlHuman || seat.UserID == "" {
		return false
	}
	if seat.TimedOut {
		return true
	}
	grace := time.Duration(s.cfg.ReconnectGraceSeconds) * time.Second
	return !seat.Connected && now.Sub(seat.DisconnectedAt) >= grace
}

// Boot removes a bootable seat's occupant. A boot that lands before a
// reconnect wins; the returning user is turned away.
func (s *Session) Boot(bySeat, targetSeat int, now time.Time) error {
	if s.over {
		return ErrSessionOver
	}
	if targetSeat < 0 || targetSeat >= len(s.seats) {
		return ErrUnknownSeat
	}
	if !s.Bootable(targetSeat, now) {
		return ErrNotBootable
	}
	seat := s.seats[targetSeat]
	s.log.Info("session %s: seat %d (%s) booted by seat %d", s.ID, targetSeat, seat.UserID, bySeat)
	s.tr.Broadcast(protocol.OpSeatBooted, protocol.Encode(protocol.SeatBooted{
		Seat:   targetSeat,
		UserID: seat.UserID,
		By:     bySeat,
	}))
	s.convertToAI(seat)
	s.stateSeq++
	s.broadcastSeats()
	if s.started && !s.over {
		s.sendSnapshots(false)
		s.rearm(now)
		// A booted seat that was holding up the table moves at once.
		if _, ok := s.botDue[targetSeat]; ok {
			s.botDue[targetSeat] = now
			s.tickBots(now)
		}
	}
	return nil
}

func (s *Session) convertToAI(seat *Seat) {
	if seat.UserID != "" {
		Default.UnbindSeat(s.ID, seat.UserID)
	}
	seat.UserID = ""
	seat.Username = fmt.Sprintf("CPU %d", seat.Index+1)
	seat.Control = ControlAI
	seat.Connected = false
	seat.TimedOut = false
}

// SeatInfos returns the current roster, valid before and after Start.
func (s *Session) SeatInfos() []protocol.SeatInfo {
	infos := make([]protocol.SeatInfo, len(s.seats))
	for i, seat := range s.seats {
		infos[i] = protocol.SeatInfo{
			Seat:      i,
			UserID:    seat.UserID,
			Username:  seat.Username,
			Connected: seat.Connected,
			AI:        seat.Control == ControlAI,
		}
	}
	return infos
}

// Snapshot builds the seat-filtered snapshot payload for one seat.
func (s *Session) Snapshot(seatIdx int, resync bool) protocol.Snapshot {
	return protocol.Snapshot{
		StateSequence: s.stateSeq,
		View:          s.eng.View(s.st, seatIdx),
		Seats:         s.SeatInfos(),
		Resync:        resync,
	}
}

func (s *Session) sendSnapshot(seatIdx int, resync bool) {
	if !s.started {
		return
	}
	if s.resyncSeat == seatIdx {
		resync = true
		s.resyncSeat = -1
	}
	s.tr.ToSeat(seatIdx, protocol.OpSnapshot, protocol.Encode(s.Snapshot(seatIdx, resync)))
}

func (s *Session) sendSnapshots(resync bool) {
	for _, seat := range s.seats {
		if seat.Control == ControlHuman && seat.Connected {
			s.sendSnapshot(seat.Index, resync)
		}
	}
}

func (s *Session) broadcastSeats() {
	s.tr.Broadcast(protocol.OpSeatUpdate, protocol.Encode(struct {
		Seats []protocol.SeatInfo `json:"seats"`
	}{s.SeatInfos()}))
}

func (s *Session) sendError(seatIdx int, code, msg string) {
	s.tr.ToSeat(seatIdx, protocol.OpError, protocol.Encode(protocol.ErrorEvent{Code: code, Message: msg}))
}

func applyErrCode(err error) string {
	switch {
	case errors.Is(err, engine.ErrNotYourTurn):
		return protocol.ErrCodeNotYourTurn
	case errors.Is(err, engine.ErrIllegalAction):
		return protocol.ErrCodeIllegalAction
	case errors.Is(err, engine.ErrGameOver):
		return protocol.ErrCodeSessionOver
	default:
		return protocol.ErrCodeInternal
	}
}

func bootErrCode(err error) string {
	switch {
	case errors.Is(err, ErrNotBootable):
		return protocol.ErrCodeNotBootable
	case errors.Is(err, ErrSessionOver):
		return protocol.ErrCodeSessionOver
	default:
		return protocol.ErrCodeBadRequest
	}
}
