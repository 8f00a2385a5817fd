package session

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/heroiclabs/nakama-common/runtime"

	"cardroom/internal/config"
	"cardroom/internal/engine"
	"cardroom/internal/protocol"

	_ "cardroom/internal/engine/spades"
	_ "cardroom/internal/engine/tienlen"
)

type noopLogger struct{}

func (noopLogger) Debug(format string, v ...interface{})                      {}
func (noopLogger) Info(format string, v ...interface{})                       {}
func (noopLogger) Warn(format string, v ...interface{})                       {}
func (noopLogger) Error(format string, v ...interface{})                      {}
func (l noopLogger) WithField(key string, v interface{}) runtime.Logger      { return l }
func (l noopLogger) WithFields(fields map[string]interface{}) runtime.Logger { return l }
func (noopLogger) Fields() map[string]interface{}                            { return nil }

type sentMsg struct {
	seat int
	op   int64
	data []byte
}

// recorder captures outbound traffic for assertions.
type recorder struct {
	direct     []sentMsg
	broadcasts []sentMsg
}

func (r *recorder) ToSeat(seat int, opCode int64, payload []byte) {
	r.direct = append(r.direct, sentMsg{seat: seat, op: opCode, data: payload})
}

func (r *recorder) Broadcast(opCode int64, payload []byte) {
	r.broadcasts = append(r.broadcasts, sentMsg{seat: -1, op: opCode, data: payload})
}

func (r *recorder) lastTo(seat int, op int64) ([]byte, bool) {
	for i := len(r.direct) - 1; i >= 0; i-- {
		if r.direct[i].seat == seat && r.direct[i].op == op {
			return r.direct[i].data, true
		}
	}
	return nil, false
}

func (r *recorder) countTo(seat int, op int64) int {
	n := 0
	for _, m := range r.direct {
		if m.seat == seat && m.op == op {
			n++
		}
	}
	return n
}

func (r *recorder) countBroadcast(op int64) int {
	n := 0
	for _, m := range r.broadcasts {
		if m.op == op {
			n++
		}
	}
	return n
}

var t0 = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

// newStartedSpades seats humans u0 and u1 on seats 0 and 1, fills the rest
// with server players and deals. Spades starts in bidding with seat 1 to
// act, which keeps these tests independent of the shuffle.
func newStartedSpades(t *testing.T) (*Session, *recorder) {
	t.Helper()
	tr := &recorder{}
	s, err := New("sess-1", engine.KindSpades, engine.Variant{}, config.Default(), noopLogger{}, tr)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := s.Sit("u0", "Ada"); err != nil {
		t.Fatalf("Sit u0: %v", err)
	}
	if _, err := s.Sit("u1", "Ben"); err != nil {
		t.Fatalf("Sit u1: %v", err)
	}
	s.SitAI()
	if err := s.Start(t0); err != nil {
		t.Fatalf("Start: %v", err)
	}
	return s, tr
}

func bidCommand(bid int, env protocol.Envelope) protocol.Command {
	act := engine.Action{Type: engine.ActionBid, Bid: bid}
	return protocol.Command{Envelope: env, OpCode: protocol.OpMakeBid, Action: &act}
}

func TestStartRequiresFullTable(t *testing.T) {
	tr := &recorder{}
	s, err := New("sess-2", engine.KindSpades, engine.Variant{}, config.Default(), noopLogger{}, tr)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := s.Sit("u0", "Ada"); err != nil {
		t.Fatalf("Sit: %v", err)
	}
	if err := s.Start(t0); !errors.Is(err, ErrSeatVacant) {
		t.Fatalf("Start with open seats: err = %v", err)
	}
	s.SitAI()
	if err := s.Start(t0); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if !s.Started() || s.StateSequence() != 1 {
		t.Fatalf("started=%v seq=%d", s.Started(), s.StateSequence())
	}
}

func TestNewRejectsBadSeatCount(t *testing.T) {
	_, err := New("s", engine.KindSpades, engine.Variant{Seats: 6}, config.Default(), noopLogger{}, &recorder{})
	if err == nil {
		t.Fatalf("six-seat spades accepted")
	}
	_, err = New("s", engine.KindTienLen, engine.Variant{Seats: 6}, config.Default(), noopLogger{}, &recorder{})
	if err != nil {
		t.Fatalf("six-seat tien len rejected: %v", err)
	}
}

func TestStartPromptsOnlyActiveHuman(t *testing.T) {
	_, tr := newStartedSpades(t)
	if n := tr.countTo(1, protocol.OpTurnPrompt); n != 1 {
		t.Errorf("seat 1 prompts = %d, want 1", n)
	}
	if n := tr.countTo(0, protocol.OpTurnPrompt); n != 0 {
		t.Errorf("seat 0 prompted out of turn")
	}
	data, ok := tr.lastTo(1, protocol.OpTurnPrompt)
	if !ok {
		t.Fatalf("no prompt captured")
	}
	var p protocol.TurnPrompt
	if err := json.Unmarshal(data, &p); err != nil {
		t.Fatalf("unmarshal prompt: %v", err)
	}
	if p.Seat != 1 || len(p.Legal) == 0 {
		t.Errorf("prompt = %+v", p)
	}
	// Deadline is grace plus the full turn clock.
	if want := t0.Add(78 * time.Second).Unix(); p.DeadlineUnix != want {
		t.Errorf("deadline = %d, want %d", p.DeadlineUnix, want)
	}
}

func TestSnapshotsAreSeatFiltered(t *testing.T) {
	_, tr := newStartedSpades(t)
	for _, seat := range []int{0, 1} {
		data, ok := tr.lastTo(seat, protocol.OpSnapshot)
		if !ok {
			t.Fatalf("seat %d got no snapshot", seat)
		}
		var snap protocol.Snapshot
		if err := json.Unmarshal(data, &snap); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if snap.View.Seat != seat {
			t.Errorf("seat %d received view for seat %d", seat, snap.View.Seat)
		}
		if len(snap.View.Hand) != snap.View.HandCounts[seat] {
			t.Errorf("seat %d hand %d != count %d", seat, len(snap.View.Hand), snap.View.HandCounts[seat])
		}
	}
}

func TestCommandAppliesAndAdvancesSequence(t *testing.T) {
	s, _ := newStartedSpades(t)
	before := s.StateSequence()
	if err := s.HandleCommand(1, bidCommand(3, protocol.Envelope{ClientSequence: 1}), t0); err != nil {
		t.Fatalf("HandleCommand: %v", err)
	}
	if s.StateSequence() != before+1 {
		t.Fatalf("seq = %d, want %d", s.StateSequence(), before+1)
	}
}

func TestOutOfTurnRejected(t *testing.T) {
	s, tr := newStartedSpades(t)
	before := s.StateSequence()
	err := s.HandleCommand(0, bidCommand(3, protocol.Envelope{}), t0)
	if !errors.Is(err, engine.ErrNotYourTurn) {
		t.Fatalf("err = %v, want ErrNotYourTurn", err)
	}
	if s.StateSequence() != before {
		t.Fatalf("rejected command mutated state")
	}
	data, ok := tr.lastTo(0, protocol.OpError)
	if !ok {
		t.Fatalf("no error event sent")
	}
	var ev protocol.ErrorEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if ev.Code != protocol.ErrCodeNotYourTurn {
		t.Errorf("code = %q", ev.Code)
	}
}

func TestIdempotentRetrySwallowed(t *testing.T) {
	s, tr := newStartedSpades(t)
	env := protocol.Envelope{IdempotencyToken: "tok-1"}
	if err := s.HandleCommand(1, bidCommand(3, env), t0); err != nil {
		t.Fatalf("first: %v", err)
	}
	after := s.StateSequence()
	snaps := tr.countTo(1, protocol.OpSnapshot)

	if err := s.HandleCommand(1, bidCommand(3, env), t0); err != nil {
		t.Fatalf("retry: %v", err)
	}
	if s.StateSequence() != after {
		t.Fatalf("retry mutated state: %d -> %d", after, s.StateSequence())
	}
	if got := tr.countTo(1, protocol.OpSnapshot); got != snaps+1 {
		t.Errorf("retry should answer with a snapshot, got %d sends", got-snaps)
	}
}

func TestStaleClientSequenceSwallowed(t *testing.T) {
	s, _ := newStartedSpades(t)
	if err := s.HandleCommand(1, bidCommand(3, protocol.Envelope{ClientSequence: 5}), t0); err != nil {
		t.Fatalf("first: %v", err)
	}
	after := s.StateSequence()
	if err := s.HandleCommand(1, bidCommand(4, protocol.Envelope{ClientSequence: 4}), t0); err != nil {
		t.Fatalf("stale: %v", err)
	}
	if s.StateSequence() != after {
		t.Fatalf("stale command mutated state")
	}
}

func TestRejectedCommandConsumesNothing(t *testing.T) {
	s, _ := newStartedSpades(t)
	env := protocol.Envelope{ClientSequence: 9, IdempotencyToken: "tok-x"}
	if err := s.HandleCommand(0, bidCommand(3, env), t0); err == nil {
		t.Fatalf("out-of-turn bid accepted")
	}
	seat := s.seats[0]
	if seat.tokenSeen("tok-x") {
		t.Errorf("rejected command recorded its idempotency token")
	}
	if seat.staleSequence(9) {
		t.Errorf("rejected command advanced the sequence watermark")
	}
}

func TestDriftAppliesAndFlagsResync(t *testing.T) {
	s, tr := newStartedSpades(t)
	env := protocol.Envelope{ExpectedStateSequence: s.StateSequence() + 7}
	before := s.StateSequence()
	if err := s.HandleCommand(1, bidCommand(3, env), t0); err != nil {
		t.Fatalf("HandleCommand: %v", err)
	}
	// Drift never blocks the command itself.
	if s.StateSequence() != before+1 {
		t.Fatalf("drifted command was not applied: seq %d -> %d", before, s.StateSequence())
	}
	data, ok := tr.lastTo(1, protocol.OpSnapshot)
	if !ok {
		t.Fatalf("no snapshot after the drifted command")
	}
	var snap protocol.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !snap.Resync {
		t.Errorf("drifted sender's snapshot not flagged as resync")
	}
	if snap.StateSequence != before+1 {
		t.Errorf("snapshot seq = %d, want %d", snap.StateSequence, before+1)
	}
	// Only the drifted seat is told to rebuild.
	data, ok = tr.lastTo(0, protocol.OpSnapshot)
	if !ok {
		t.Fatalf("no snapshot for the other seat")
	}
	var other protocol.Snapshot
	if err := json.Unmarshal(data, &other); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if other.Resync {
		t.Errorf("undrifted seat flagged for resync")
	}
}

func TestDriftOnRejectedCommandStillResyncs(t *testing.T) {
	s, tr := newStartedSpades(t)
	env := protocol.Envelope{ExpectedStateSequence: s.StateSequence() + 7}
	before := s.StateSequence()
	if err := s.HandleCommand(0, bidCommand(3, env), t0); !errors.Is(err, engine.ErrNotYourTurn) {
		t.Fatalf("err = %v, want ErrNotYourTurn", err)
	}
	if s.StateSequence() != before {
		t.Fatalf("rejected command mutated state")
	}
	data, ok := tr.lastTo(0, protocol.OpSnapshot)
	if !ok {
		t.Fatalf("no corrective snapshot for the drifted sender")
	}
	var snap protocol.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !snap.Resync {
		t.Errorf("corrective snapshot not flagged as resync")
	}
}

func TestRemindersThenTimeout(t *testing.T) {
	s, tr := newStartedSpades(t)
	// The clock arms for 3s, then reminds every 15s.
	s.Tick(t0.Add(17 * time.Second))
	s.Tick(t0.Add(18 * time.Second))
	s.Tick(t0.Add(33 * time.Second))
	s.Tick(t0.Add(48 * time.Second))
	s.Tick(t0.Add(63 * time.Second))
	if n := tr.countTo(1, protocol.OpReminder); n != 4 {
		t.Fatalf("reminders = %d, want limit 4", n)
	}
	data, _ := tr.lastTo(1, protocol.OpReminder)
	var rem protocol.Reminder
	if err := json.Unmarshal(data, &rem); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if rem.Count != 4 || rem.Remaining != 15 {
		t.Errorf("reminder = %+v", rem)
	}

	before := s.StateSequence()
	s.Tick(t0.Add(79 * time.Second))
	if n := tr.countBroadcast(protocol.OpTimedOut); n != 1 {
		t.Fatalf("timed-out broadcasts = %d", n)
	}
	if !s.seats[1].TimedOut {
		t.Fatalf("seat not flagged timed out")
	}
	// One increment for the flag itself; the turn stays pending and no
	// move is made for the seat.
	if s.StateSequence() != before+1 {
		t.Fatalf("timeout seq %d -> %d, want +1", before, s.StateSequence())
	}
	if active := s.eng.ActiveSeats(s.st); len(active) != 1 || active[0] != 1 {
		t.Fatalf("turn moved past a timed-out human: %v", active)
	}
	if _, ok := s.timers[1]; ok {
		t.Fatalf("clock still running after the timeout")
	}
}

func TestHumanActionReclaimsTimedOutSeat(t *testing.T) {
	s, _ := newStartedSpades(t)
	s.Tick(t0.Add(79 * time.Second))
	if !s.seats[1].TimedOut {
		t.Fatalf("setup: seat 1 not timed out")
	}
	// The turn is still seat 1's, so a late bid lands and the flag clears.
	if err := s.HandleCommand(1, bidCommand(3, protocol.Envelope{}), t0.Add(80*time.Second)); err != nil {
		t.Fatalf("late bid rejected: %v", err)
	}
	if s.seats[1].TimedOut {
		t.Fatalf("human action did not reclaim the seat")
	}
}

func TestArmedGraceHoldsTheClock(t *testing.T) {
	s, tr := newStartedSpades(t)
	s.Tick(t0.Add(17 * time.Second)) // grace 3s + interval 15s not yet up
	if n := tr.countTo(1, protocol.OpReminder); n != 0 {
		t.Fatalf("reminder inside the armed grace: %d", n)
	}
	s.Tick(t0.Add(18 * time.Second))
	if n := tr.countTo(1, protocol.OpReminder); n != 1 {
		t.Fatalf("reminders = %d once the grace elapsed", n)
	}
}

func TestLifecycleMutationsAdvanceSequence(t *testing.T) {
	s, _ := newStartedSpades(t)
	seq := s.StateSequence()

	s.Disconnect(0, t0)
	if s.StateSequence() != seq+1 {
		t.Fatalf("disconnect: seq %d, want %d", s.StateSequence(), seq+1)
	}
	if err := s.Reconnect(0, "u0", t0.Add(time.Second)); err != nil {
		t.Fatalf("Reconnect: %v", err)
	}
	if s.StateSequence() != seq+2 {
		t.Fatalf("reconnect: seq %d, want %d", s.StateSequence(), seq+2)
	}

	s.Tick(t0.Add(79 * time.Second)) // seat 1 times out
	if s.StateSequence() != seq+3 {
		t.Fatalf("timeout: seq %d, want %d", s.StateSequence(), seq+3)
	}

	s.Leave(0, t0.Add(80*time.Second))
	if s.StateSequence() != seq+4 {
		t.Fatalf("leave: seq %d, want %d", s.StateSequence(), seq+4)
	}

	// Boot bumps once for the roster change, then once more for the
	// released pending bid.
	if err := s.Boot(0, 1, t0.Add(80*time.Second)); err != nil {
		t.Fatalf("Boot: %v", err)
	}
	if s.StateSequence() != seq+6 {
		t.Fatalf("boot: seq %d, want %d", s.StateSequence(), seq+6)
	}
}

func TestSnapshotSequencesAreContiguous(t *testing.T) {
	s, tr := newStartedSpades(t)
	s.Leave(1, t0)

	now := t0
	for i := 0; i < 20000 && !s.Over(); i++ {
		if active := s.eng.ActiveSeats(s.st); len(active) == 1 && active[0] == 0 {
			legal := s.eng.LegalActions(s.st, 0)
			if err := s.applyAction(0, legal[0], now); err != nil {
				t.Fatalf("apply for seat 0: %v", err)
			}
			continue
		}
		now = now.Add(3 * time.Second)
		s.Tick(now)
	}
	if !s.Over() {
		t.Fatalf("game did not finish")
	}

	var last int64 = -1
	for _, m := range tr.direct {
		if m.seat != 0 || m.op != protocol.OpSnapshot {
			continue
		}
		var snap protocol.Snapshot
		if err := json.Unmarshal(m.data, &snap); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if last >= 0 && snap.StateSequence != last && snap.StateSequence != last+1 {
			t.Fatalf("snapshot seq jumped %d -> %d", last, snap.StateSequence)
		}
		last = snap.StateSequence
	}
	if last < 0 {
		t.Fatalf("no snapshots captured")
	}
}

func TestDisconnectPausesTurnClock(t *testing.T) {
	s, tr := newStartedSpades(t)
	s.Disconnect(1, t0.Add(10*time.Second))
	timer, ok := s.timers[1]
	if !ok || !timer.isPaused() {
		t.Fatalf("turn clock not paused on disconnect")
	}
	before := s.StateSequence()
	s.Tick(t0.Add(79 * time.Second)) // well past the original deadline
	if s.StateSequence() != before {
		t.Fatalf("state moved while the seat was away")
	}
	if s.seats[1].TimedOut {
		t.Fatalf("frozen clock expired")
	}
	// Seventy seconds away shift the deadline by seventy seconds.
	if err := s.Reconnect(1, "u1", t0.Add(80*time.Second)); err != nil {
		t.Fatalf("Reconnect: %v", err)
	}
	if timer.isPaused() {
		t.Fatalf("clock not resumed")
	}
	if want := t0.Add((78 + 70) * time.Second); !timer.deadline.Equal(want) {
		t.Fatalf("deadline = %v, want %v", timer.deadline, want)
	}
	if n := tr.countBroadcast(protocol.OpTimedOut); n != 0 {
		t.Errorf("disconnect is not a timeout")
	}
}

func TestReconnect(t *testing.T) {
	s, tr := newStartedSpades(t)
	s.Disconnect(1, t0)
	if err := s.Reconnect(1, "intruder", t0.Add(time.Second)); !errors.Is(err, ErrWrongUser) {
		t.Fatalf("wrong user: err = %v", err)
	}
	snaps := tr.countTo(1, protocol.OpSnapshot)
	if err := s.Reconnect(1, "u1", t0.Add(time.Second)); err != nil {
		t.Fatalf("Reconnect: %v", err)
	}
	if !s.seats[1].Connected {
		t.Fatalf("seat not reconnected")
	}
	if got := tr.countTo(1, protocol.OpSnapshot); got != snaps+1 {
		t.Errorf("reconnect should resync the seat")
	}
}

func TestBootRules(t *testing.T) {
	s, tr := newStartedSpades(t)
	if s.Bootable(1, t0) {
		t.Fatalf("connected in-time seat bootable")
	}
	if err := s.Boot(0, 1, t0); !errors.Is(err, ErrNotBootable) {
		t.Fatalf("err = %v, want ErrNotBootable", err)
	}

	s.Disconnect(1, t0)
	if s.Bootable(1, t0.Add(299*time.Second)) {
		t.Fatalf("bootable inside the reconnect grace")
	}
	if !s.Bootable(1, t0.Add(300*time.Second)) {
		t.Fatalf("not bootable after the grace ran out")
	}
	before := s.StateSequence()
	if err := s.Boot(0, 1, t0.Add(300*time.Second)); err != nil {
		t.Fatalf("Boot: %v", err)
	}
	// The stalled turn is released in the same step: the server bids
	// for the freshly converted seat without waiting a tick.
	if s.StateSequence() <= before {
		t.Fatalf("boot left the pending turn stalled")
	}
	if n := tr.countBroadcast(protocol.OpSeatBooted); n != 1 {
		t.Fatalf("booted broadcasts = %d", n)
	}
	seat := s.seats[1]
	if seat.Control != ControlAI || seat.UserID != "" {
		t.Fatalf("booted seat = %+v, want permanent server control", seat)
	}
	if s.SeatOf("u1") != -1 {
		t.Fatalf("booted user still seated")
	}
	// Boot wins over a late reconnect.
	if err := s.Reconnect(1, "u1", t0.Add(301*time.Second)); err == nil {
		t.Fatalf("booted user allowed back in")
	}
}

func TestTimedOutSeatBootableImmediately(t *testing.T) {
	s, _ := newStartedSpades(t)
	s.Tick(t0.Add(79 * time.Second))
	if !s.Bootable(1, t0.Add(79*time.Second)) {
		t.Fatalf("timed-out seat should be bootable without a grace wait")
	}
}

func TestEmptySessionTTL(t *testing.T) {
	s, _ := newStartedSpades(t)
	s.Disconnect(0, t0)
	s.Disconnect(1, t0)
	if s.Tick(t0) {
		t.Fatalf("terminated on the first empty tick")
	}
	if s.Tick(t0.Add(29 * time.Second)) {
		t.Fatalf("terminated inside the TTL")
	}
	if !s.Tick(t0.Add(30 * time.Second)) {
		t.Fatalf("no termination after the TTL")
	}
}

func TestReconnectResetsEmptyTimer(t *testing.T) {
	s, _ := newStartedSpades(t)
	s.Disconnect(0, t0)
	s.Disconnect(1, t0)
	s.Tick(t0)
	if err := s.Reconnect(0, "u0", t0.Add(10*time.Second)); err != nil {
		t.Fatalf("Reconnect: %v", err)
	}
	if s.Tick(t0.Add(40 * time.Second)) {
		t.Fatalf("terminated with a human connected")
	}
}

func TestCommandsAfterGameOver(t *testing.T) {
	s, tr := newStartedSpades(t)
	s.over = true
	err := s.HandleCommand(1, bidCommand(3, protocol.Envelope{}), t0)
	if !errors.Is(err, ErrSessionOver) {
		t.Fatalf("err = %v, want ErrSessionOver", err)
	}
	// Full-state requests are still served so clients can render the end.
	snaps := tr.countTo(0, protocol.OpSnapshot)
	if err := s.HandleCommand(0, protocol.Command{OpCode: protocol.OpRequestFullState}, t0); err != nil {
		t.Fatalf("resync: %v", err)
	}
	if got := tr.countTo(0, protocol.OpSnapshot); got != snaps+1 {
		t.Errorf("no snapshot after game over")
	}
}

func TestServerPlaysToCompletion(t *testing.T) {
	s, _ := newStartedSpades(t)
	s.Leave(0, t0)
	s.Leave(1, t0)
	now := t0
	for i := 0; i < 20000 && !s.Over(); i++ {
		now = now.Add(3 * time.Second)
		s.Tick(now)
	}
	if !s.Over() {
		t.Fatalf("all-server table never finished")
	}
	if len(s.timers) != 0 || len(s.botDue) != 0 {
		t.Fatalf("clocks still armed after game over")
	}
}
