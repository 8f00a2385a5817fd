package nakama

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/heroiclabs/nakama-common/runtime"

	"cardroom/internal/config"
	"cardroom/internal/engine"
	"cardroom/internal/protocol"
	"cardroom/internal/session"
)

// MatchState holds the per-match adapter state around the session runtime.
type MatchState struct {
	Session       *session.Session
	Transport     *dispatcherTransport
	SeatPresences map[int]runtime.Presence
	OwnerSeat     int
	MatchID       string
	TokenSecret   string
}

// MatchLabel is the JSON document Nakama indexes for MatchList queries.
type MatchLabel struct {
	Open  int    `json:"open"`
	Game  string `json:"game"`
	Phase string `json:"phase"`
}

type matchHandler struct {
	kind engine.Kind
}

// newMatchHandler returns the runtime.Match implementation for one game kind.
func newMatchHandler(kind engine.Kind) *matchHandler {
	return &matchHandler{kind: kind}
}

func (mh *matchHandler) MatchInit(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, params map[string]interface{}) (interface{}, int, string) {
	cfg := config.Get()
	env, _ := ctx.Value(runtime.RUNTIME_CTX_ENV).(map[string]string)
	if env != nil {
		cfg = cfg.ApplyEnv(env)
	}

	ms := &MatchState{
		SeatPresences: make(map[int]runtime.Presence),
		OwnerSeat:     -1,
		TokenSecret:   seatTokenSecret(env),
	}
	if matchID, ok := ctx.Value(runtime.RUNTIME_CTX_MATCH_ID).(string); ok {
		ms.MatchID = matchID
	}
	ms.Transport = &dispatcherTransport{state: ms, logger: logger}

	variant := variantFromParams(mh.kind, params, cfg)
	sess, err := session.New(uuid.NewString(), mh.kind, variant, cfg, logger, ms.Transport)
	if err != nil {
		logger.Error("MatchInit: %v", err)
		return nil, 0, ""
	}
	ms.Session = sess
	session.Default.Put(sess.ID, ms.MatchID, mh.kind, true)

	tickRate := 1
	return ms, tickRate, buildLabel(ms)
}

func (mh *matchHandler) MatchJoinAttempt(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, dispatcher runtime.MatchDispatcher, tick int64, state interface{}, presence runtime.Presence, metadata map[string]string) (interface{}, bool, string) {
	ms, ok := state.(*MatchState)
	if !ok {
		return state, false, "state not found"
	}
	uid := presence.GetUserId()
	if seat := ms.Session.SeatOf(uid); seat >= 0 {
		// A rejoin carries the token minted by rpcRejoin; when one is
		// presented it has to name this session, this user, this seat.
		if tok := metadata["seat_token"]; tok != "" {
			claim, err := parseSeatToken(ms.TokenSecret, tok)
			if err != nil || claim.SessionID != ms.Session.ID || claim.UserID != uid || claim.Seat != seat {
				return ms, false, "invalid seat token"
			}
		}
		return ms, true, ""
	}
	if ms.Session.Started() {
		return ms, false, "match in progress"
	}
	if ms.Session.HumanSeats() >= ms.Session.SeatCount() {
		return ms, false, "match full"
	}
	return ms, true, ""
}

func (mh *matchHandler) MatchJoin(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, dispatcher runtime.MatchDispatcher, tick int64, state interface{}, presences []runtime.Presence) interface{} {
	ms, ok := state.(*MatchState)
	if !ok {
		logger.Error("MatchJoin: state not found")
		return state
	}
	ms.Transport.bind(dispatcher, logger)
	now := time.Now()

	for _, p := range presences {
		uid := p.GetUserId()

		if seat := ms.Session.SeatOf(uid); seat >= 0 {
			// Returning occupant.
			ms.SeatPresences[seat] = p
			if ms.Session.Started() {
				if err := ms.Session.Reconnect(seat, uid, now); err != nil {
					logger.Warn("MatchJoin: reconnect for %s failed: %v", uid, err)
				}
			}
			mh.sendWelcome(ms, logger, seat, uid)
			continue
		}

		seat, err := ms.Session.Sit(uid, p.GetUsername())
		if err != nil {
			logger.Warn("MatchJoin: no seat for %s: %v", uid, err)
			continue
		}
		ms.SeatPresences[seat] = p
		session.Default.BindSeat(ms.Session.ID, uid, seat)
		if ms.OwnerSeat < 0 {
			ms.OwnerSeat = seat
		}
		mh.sendWelcome(ms, logger, seat, uid)
	}

	mh.updateLabel(ms, dispatcher, logger)
	ms.Transport.Broadcast(protocol.OpSeatUpdate, protocol.Encode(struct {
		Seats []protocol.SeatInfo `json:"seats"`
	}{ms.Session.SeatInfos()}))
	return ms
}

func (mh *matchHandler) MatchLeave(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, dispatcher runtime.MatchDispatcher, tick int64, state interface{}, presences []runtime.Presence) interface{} {
	ms, ok := state.(*MatchState)
	if !ok {
		logger.Error("MatchLeave: state not found")
		return state
	}
	ms.Transport.bind(dispatcher, logger)
	now := time.Now()

	for _, p := range presences {
		uid := p.GetUserId()
		seat := ms.Session.SeatOf(uid)
		if seat < 0 {
			continue
		}
		delete(ms.SeatPresences, seat)

		if ms.Session.Started() {
			// The seat survives; the user may rejoin within the grace.
			ms.Session.Disconnect(seat, now)
			continue
		}

		ms.Session.Unsit(seat)
		session.Default.UnbindSeat(ms.Session.ID, uid)
		if ms.OwnerSeat == seat {
			ms.OwnerSeat = firstHumanSeat(ms)
		}
	}

	if !ms.Session.Started() && ms.Session.HumanSeats() == 0 {
		logger.Info("MatchLeave: empty lobby, terminating.")
		session.Default.Remove(ms.Session.ID)
		return nil
	}

	mh.updateLabel(ms, dispatcher, logger)
	return ms
}

func (mh *matchHandler) MatchLoop(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, dispatcher runtime.MatchDispatcher, tick int64, state interface{}, messages []runtime.MatchData) interface{} {
	ms, ok := state.(*MatchState)
	if !ok {
		return state
	}
	ms.Transport.bind(dispatcher, logger)
	now := time.Now()

	for _, msg := range messages {
		mh.handleMessage(ms, dispatcher, logger, msg, now)
	}

	if ms.Session.Tick(now) {
		logger.Info("MatchLoop: no humans left, terminating match %s", ms.MatchID)
		session.Default.Remove(ms.Session.ID)
		return nil
	}
	if ms.Session.Over() {
		logger.Info("MatchLoop: game over, closing match %s", ms.MatchID)
		session.Default.Remove(ms.Session.ID)
		return nil
	}
	return ms
}

func (mh *matchHandler) handleMessage(ms *MatchState, dispatcher runtime.MatchDispatcher, logger runtime.Logger, msg runtime.MatchData, now time.Time) {
	uid := msg.GetUserId()
	seat := ms.Session.SeatOf(uid)
	if seat < 0 {
		logger.Warn("handleMessage: %s has no seat", uid)
		return
	}

	cmd, err := protocol.DecodeCommand(msg.GetOpCode(), msg.GetData())
	if err != nil {
		logger.Warn("handleMessage: bad command from %s: %v", uid, err)
		ms.Transport.ToSeat(seat, protocol.OpError, protocol.Encode(protocol.ErrorEvent{
			Code:    protocol.ErrCodeBadRequest,
			Message: err.Error(),
		}))
		return
	}

	if cmd.OpCode == protocol.OpStartGame {
		mh.handleStartGame(ms, dispatcher, logger, seat, now)
		return
	}

	if err := ms.Session.HandleCommand(seat, cmd, now); err != nil {
		logger.Debug("handleMessage: seat %d command rejected: %v", seat, err)
	}
}

func (mh *matchHandler) handleStartGame(ms *MatchState, dispatcher runtime.MatchDispatcher, logger runtime.Logger, seat int, now time.Time) {
	if seat != ms.OwnerSeat {
		logger.Warn("handleStartGame: seat %d is not the owner (%d)", seat, ms.OwnerSeat)
		ms.Transport.ToSeat(seat, protocol.OpError, protocol.Encode(protocol.ErrorEvent{
			Code:    protocol.ErrCodeBadRequest,
			Message: "only the owner can start the game",
		}))
		return
	}
	if ms.Session.Started() {
		return
	}
	if ms.Session.HumanSeats() == 0 {
		return
	}
	ms.Session.SitAI()
	if err := ms.Session.Start(now); err != nil {
		logger.Error("handleStartGame: %v", err)
		return
	}
	session.Default.Put(ms.Session.ID, ms.MatchID, mh.kind, false)
	mh.updateLabel(ms, dispatcher, logger)
}

func (mh *matchHandler) MatchTerminate(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, dispatcher runtime.MatchDispatcher, tick int64, state interface{}, graceSeconds int) interface{} {
	if ms, ok := state.(*MatchState); ok {
		session.Default.Remove(ms.Session.ID)
	}
	return state
}

func (mh *matchHandler) MatchSignal(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, dispatcher runtime.MatchDispatcher, tick int64, state interface{}, data string) (interface{}, string) {
	return state, ""
}

func (mh *matchHandler) sendWelcome(ms *MatchState, logger runtime.Logger, seat int, uid string) {
	token, err := issueSeatToken(ms.TokenSecret, ms.Session.ID, uid, seat)
	if err != nil {
		logger.Warn("sendWelcome: seat token for %s: %v", uid, err)
	}
	ms.Transport.ToSeat(seat, protocol.OpWelcome, protocol.Encode(protocol.Welcome{
		SessionID:   ms.Session.ID,
		Game:        string(mh.kind),
		Seat:        seat,
		RejoinToken: token,
		Seats:       ms.Session.SeatInfos(),
	}))
}

func (mh *matchHandler) updateLabel(ms *MatchState, dispatcher runtime.MatchDispatcher, logger runtime.Logger) {
	if err := dispatcher.MatchLabelUpdate(buildLabel(ms)); err != nil {
		logger.Error("updateLabel: %v", err)
	}
}

func buildLabel(ms *MatchState) string {
	phase := "lobby"
	open := ms.Session.SeatCount() - ms.Session.HumanSeats()
	if ms.Session.Started() {
		phase = "playing"
		open = 0
	}
	b, _ := json.Marshal(MatchLabel{
		Open:  open,
		Game:  string(ms.Session.Kind),
		Phase: phase,
	})
	return string(b)
}

func firstHumanSeat(ms *MatchState) int {
	for seat := 0; seat < ms.Session.SeatCount(); seat++ {
		if _, ok := ms.SeatPresences[seat]; ok {
			return seat
		}
	}
	return -1
}

func variantFromParams(kind engine.Kind, params map[string]interface{}, cfg *config.Config) engine.Variant {
	v := engine.Variant{}
	if n, ok := numberParam(params, "seats"); ok {
		v.Seats = n
	}
	if n, ok := numberParam(params, "target_score"); ok {
		v.TargetScore = n
	}
	if b, ok := params["super_twos"].(bool); ok {
		v.SuperTwos = b
	} else if kind == engine.KindTienLen {
		v.SuperTwos = cfg.SuperTwos
	}
	return v
}

func numberParam(params map[string]interface{}, key string) (int, bool) {
	switch n := params[key].(type) {
	case float64:
		return int(n), true
	case int:
		return n, true
	}
	return 0, false
}

func seatTokenSecret(env map[string]string) string {
	if s, ok := env["seat_token_secret"]; ok && s != "" {
		return s
	}
	return "local-dev-seat-secret"
}
