package nakama

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/heroiclabs/nakama-common/runtime"

	"cardroom/internal/config"
	"cardroom/internal/engine"
	"cardroom/internal/protocol"
	"cardroom/internal/session"
)

// noopLogger implements runtime.Logger for tests that only need to satisfy
// the interface.
type noopLogger struct{}

func (noopLogger) Debug(string, ...interface{}) {}
func (noopLogger) Info(string, ...interface{})  {}
func (noopLogger) Warn(string, ...interface{})  {}
func (noopLogger) Error(string, ...interface{}) {}
func (noopLogger) WithField(string, interface{}) runtime.Logger {
	return noopLogger{}
}
func (noopLogger) WithFields(map[string]interface{}) runtime.Logger {
	return noopLogger{}
}
func (noopLogger) Fields() map[string]interface{} {
	return nil
}

// mockDispatcher records match dispatcher calls for assertions.
type mockDispatcher struct {
	broadcastCount int
	labelUpdates   int
	lastLabel      string
	lastOpCode     int64
	lastData       []byte
}

func (md *mockDispatcher) BroadcastMessage(opCode int64, data []byte, presences []runtime.Presence, sender runtime.Presence, reliable bool) error {
	md.broadcastCount++
	md.lastOpCode = opCode
	md.lastData = append([]byte(nil), data...)
	return nil
}

func (md *mockDispatcher) BroadcastMessageDeferred(opCode int64, data []byte, presences []runtime.Presence, sender runtime.Presence, reliable bool) error {
	return nil
}

func (md *mockDispatcher) MatchKick(presences []runtime.Presence) error {
	return nil
}

func (md *mockDispatcher) MatchLabelUpdate(label string) error {
	md.labelUpdates++
	md.lastLabel = label
	return nil
}

type mockPresence struct {
	userID   string
	username string
}

func (p mockPresence) GetUserId() string                  { return p.userID }
func (p mockPresence) GetSessionId() string               { return "session-" + p.userID }
func (p mockPresence) GetNodeId() string                  { return "node" }
func (p mockPresence) GetHidden() bool                    { return false }
func (p mockPresence) GetPersistence() bool               { return true }
func (p mockPresence) GetUsername() string                { return p.username }
func (p mockPresence) GetStatus() string                  { return "" }
func (p mockPresence) GetReason() runtime.PresenceReason  { return runtime.PresenceReasonUnknown }

type mockMatchData struct {
	mockPresence
	opCode int64
	data   []byte
}

func (m mockMatchData) GetOpCode() int64      { return m.opCode }
func (m mockMatchData) GetData() []byte       { return m.data }
func (m mockMatchData) GetReliable() bool     { return true }
func (m mockMatchData) GetReceiveTime() int64 { return 0 }

func initMatch(t *testing.T, kind engine.Kind) (*matchHandler, *MatchState) {
	t.Helper()
	mh := newMatchHandler(kind)
	state, tickRate, label := mh.MatchInit(context.Background(), noopLogger{}, nil, nil, map[string]interface{}{})
	ms, ok := state.(*MatchState)
	if !ok || ms.Session == nil {
		t.Fatalf("MatchInit state = %T", state)
	}
	if tickRate != 1 {
		t.Fatalf("tick rate = %d, want 1", tickRate)
	}
	var l MatchLabel
	if err := json.Unmarshal([]byte(label), &l); err != nil {
		t.Fatalf("label %q: %v", label, err)
	}
	if l.Phase != "lobby" || l.Game != string(kind) {
		t.Fatalf("label = %+v", l)
	}
	t.Cleanup(func() { session.Default.Remove(ms.Session.ID) })
	return mh, ms
}

func joinUser(t *testing.T, mh *matchHandler, ms *MatchState, md *mockDispatcher, userID string) {
	t.Helper()
	p := mockPresence{userID: userID, username: "name-" + userID}
	_, allowed, reason := mh.MatchJoinAttempt(context.Background(), noopLogger{}, nil, nil, md, 0, ms, p, nil)
	if !allowed {
		t.Fatalf("join attempt for %s rejected: %s", userID, reason)
	}
	mh.MatchJoin(context.Background(), noopLogger{}, nil, nil, md, 0, ms, []runtime.Presence{p})
}

func TestMatchJoinSeatsAndWelcomes(t *testing.T) {
	mh, ms := initMatch(t, engine.KindSpades)
	md := &mockDispatcher{}

	joinUser(t, mh, ms, md, "u0")
	joinUser(t, mh, ms, md, "u1")

	if ms.Session.SeatOf("u0") != 0 || ms.Session.SeatOf("u1") != 1 {
		t.Fatalf("seats: u0=%d u1=%d", ms.Session.SeatOf("u0"), ms.Session.SeatOf("u1"))
	}
	if ms.OwnerSeat != 0 {
		t.Fatalf("owner = %d, want first joiner", ms.OwnerSeat)
	}
	if _, ok := ms.SeatPresences[1]; !ok {
		t.Fatalf("presence not tracked")
	}
	if md.labelUpdates == 0 {
		t.Fatalf("label never updated on join")
	}
	var l MatchLabel
	if err := json.Unmarshal([]byte(md.lastLabel), &l); err != nil {
		t.Fatalf("label: %v", err)
	}
	if l.Open != 2 {
		t.Fatalf("open = %d, want 2 of 4 seats left", l.Open)
	}
	// The roster broadcast is the last message of a join.
	if md.lastOpCode != protocol.OpSeatUpdate {
		t.Fatalf("last opcode = %d, want seat update", md.lastOpCode)
	}

	e, seat, ok := session.Default.FindByUser("u1")
	if !ok || seat != 1 || e.SessionID != ms.Session.ID {
		t.Fatalf("registry binding: %+v, %d, %v", e, seat, ok)
	}
}

func TestStartGameOwnerOnly(t *testing.T) {
	mh, ms := initMatch(t, engine.KindSpades)
	md := &mockDispatcher{}
	joinUser(t, mh, ms, md, "u0")
	joinUser(t, mh, ms, md, "u1")

	start := func(userID string) {
		msg := mockMatchData{
			mockPresence: mockPresence{userID: userID},
			opCode:       protocol.OpStartGame,
		}
		mh.MatchLoop(context.Background(), noopLogger{}, nil, nil, md, 1, ms, []runtime.MatchData{msg})
	}

	start("u1")
	if ms.Session.Started() {
		t.Fatalf("non-owner started the game")
	}
	start("u0")
	if !ms.Session.Started() {
		t.Fatalf("owner could not start the game")
	}

	var l MatchLabel
	if err := json.Unmarshal([]byte(md.lastLabel), &l); err != nil {
		t.Fatalf("label: %v", err)
	}
	if l.Phase != "playing" || l.Open != 0 {
		t.Fatalf("label after start = %+v", l)
	}
}

func TestJoinAttemptRejections(t *testing.T) {
	mh, ms := initMatch(t, engine.KindSpades)
	md := &mockDispatcher{}
	for _, uid := range []string{"u0", "u1", "u2", "u3"} {
		joinUser(t, mh, ms, md, uid)
	}

	_, allowed, reason := mh.MatchJoinAttempt(context.Background(), noopLogger{}, nil, nil, md, 0, ms, mockPresence{userID: "u4"}, nil)
	if allowed {
		t.Fatalf("fifth user joined a four-seat table")
	}
	if reason != "match full" {
		t.Errorf("reason = %q", reason)
	}

	start := mockMatchData{mockPresence: mockPresence{userID: "u0"}, opCode: protocol.OpStartGame}
	mh.MatchLoop(context.Background(), noopLogger{}, nil, nil, md, 1, ms, []runtime.MatchData{start})

	_, allowed, reason = mh.MatchJoinAttempt(context.Background(), noopLogger{}, nil, nil, md, 2, ms, mockPresence{userID: "u9"}, nil)
	if allowed {
		t.Fatalf("stranger joined a started match")
	}
	if reason != "match in progress" {
		t.Errorf("reason = %q", reason)
	}

	// A seated user reconnecting is always let through.
	_, allowed, _ = mh.MatchJoinAttempt(context.Background(), noopLogger{}, nil, nil, md, 2, ms, mockPresence{userID: "u1"}, nil)
	if !allowed {
		t.Fatalf("returning occupant rejected")
	}
}

func TestJoinAttemptVerifiesSeatToken(t *testing.T) {
	mh, ms := initMatch(t, engine.KindSpades)
	md := &mockDispatcher{}
	joinUser(t, mh, ms, md, "u0")
	joinUser(t, mh, ms, md, "u1")

	good, err := issueSeatToken(ms.TokenSecret, ms.Session.ID, "u1", 1)
	if err != nil {
		t.Fatalf("issueSeatToken: %v", err)
	}
	_, allowed, _ := mh.MatchJoinAttempt(context.Background(), noopLogger{}, nil, nil, md, 1, ms, mockPresence{userID: "u1"}, map[string]string{"seat_token": good})
	if !allowed {
		t.Fatalf("matching seat token rejected")
	}

	wrongSeat, err := issueSeatToken(ms.TokenSecret, ms.Session.ID, "u1", 0)
	if err != nil {
		t.Fatalf("issueSeatToken: %v", err)
	}
	_, allowed, reason := mh.MatchJoinAttempt(context.Background(), noopLogger{}, nil, nil, md, 1, ms, mockPresence{userID: "u1"}, map[string]string{"seat_token": wrongSeat})
	if allowed {
		t.Fatalf("token for another seat admitted")
	}
	if reason != "invalid seat token" {
		t.Errorf("reason = %q", reason)
	}

	_, allowed, _ = mh.MatchJoinAttempt(context.Background(), noopLogger{}, nil, nil, md, 1, ms, mockPresence{userID: "u1"}, map[string]string{"seat_token": "garbage"})
	if allowed {
		t.Fatalf("garbage token admitted")
	}
}

func TestMatchLeaveEmptyLobbyTerminates(t *testing.T) {
	mh, ms := initMatch(t, engine.KindSpades)
	md := &mockDispatcher{}
	joinUser(t, mh, ms, md, "u0")
	sessionID := ms.Session.ID

	out := mh.MatchLeave(context.Background(), noopLogger{}, nil, nil, md, 2, ms, []runtime.Presence{mockPresence{userID: "u0"}})
	if out != nil {
		t.Fatalf("empty lobby should terminate the match")
	}
	if _, ok := session.Default.Lookup(sessionID); ok {
		t.Fatalf("terminated match still registered")
	}
}

func TestMatchLeaveReassignsOwner(t *testing.T) {
	mh, ms := initMatch(t, engine.KindSpades)
	md := &mockDispatcher{}
	joinUser(t, mh, ms, md, "u0")
	joinUser(t, mh, ms, md, "u1")

	mh.MatchLeave(context.Background(), noopLogger{}, nil, nil, md, 2, ms, []runtime.Presence{mockPresence{userID: "u0"}})
	if ms.OwnerSeat != 1 {
		t.Fatalf("owner = %d, want surviving human", ms.OwnerSeat)
	}
	if ms.Session.SeatOf("u0") != -1 {
		t.Fatalf("lobby leaver kept a seat")
	}
}

func TestMatchLeaveMidGameDisconnects(t *testing.T) {
	mh, ms := initMatch(t, engine.KindSpades)
	md := &mockDispatcher{}
	joinUser(t, mh, ms, md, "u0")
	joinUser(t, mh, ms, md, "u1")
	start := mockMatchData{mockPresence: mockPresence{userID: "u0"}, opCode: protocol.OpStartGame}
	mh.MatchLoop(context.Background(), noopLogger{}, nil, nil, md, 1, ms, []runtime.MatchData{start})

	out := mh.MatchLeave(context.Background(), noopLogger{}, nil, nil, md, 2, ms, []runtime.Presence{mockPresence{userID: "u1"}})
	if out == nil {
		t.Fatalf("mid-game leave terminated the match")
	}
	if seat := ms.Session.SeatOf("u1"); seat != 1 {
		t.Fatalf("seat released mid-game: %d", seat)
	}
	if _, _, ok := session.Default.FindByUser("u1"); !ok {
		t.Fatalf("registry binding dropped; rejoin would be refused")
	}
}

func TestVariantFromParams(t *testing.T) {
	cfg := config.Default()
	cfg.SuperTwos = true

	v := variantFromParams(engine.KindTienLen, map[string]interface{}{
		"seats":        float64(6),
		"target_score": float64(21),
	}, cfg)
	if v.Seats != 6 || v.TargetScore != 21 {
		t.Fatalf("variant = %+v", v)
	}
	if !v.SuperTwos {
		t.Fatalf("tien len should inherit the configured super-twos default")
	}

	v = variantFromParams(engine.KindTienLen, map[string]interface{}{
		"super_twos": false,
	}, cfg)
	if v.SuperTwos {
		t.Fatalf("explicit super_twos param should win over the config")
	}

	v = variantFromParams(engine.KindSpades, map[string]interface{}{}, cfg)
	if v.SuperTwos || v.Seats != 0 {
		t.Fatalf("variant = %+v", v)
	}
}
