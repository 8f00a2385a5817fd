package nakama

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/heroiclabs/nakama-common/runtime"

	"cardroom/internal/engine"
	"cardroom/internal/session"
)

// QuickMatchRequest selects the game to join. Variant fields are applied
// only when a new match has to be created.
type QuickMatchRequest struct {
	Game        string `json:"game"`
	Seats       int    `json:"seats,omitempty"`
	TargetScore int    `json:"target_score,omitempty"`
	SuperTwos   bool   `json:"super_twos,omitempty"`
}

// QuickMatchResponse is the payload returned to clients when requesting
// a joinable match.
type QuickMatchResponse struct {
	MatchID string `json:"match_id"`
	IsNew   bool   `json:"is_new"`
}

// RejoinRequest carries the seat-claim token minted at join time.
type RejoinRequest struct {
	Token string `json:"token"`
}

// RejoinResponse routes the client back to its seat.
type RejoinResponse struct {
	MatchID string `json:"match_id"`
	Seat    int    `json:"seat"`
}

// RegisterRPCs registers Nakama RPC endpoints.
func RegisterRPCs(initializer runtime.Initializer) error {
	if err := initializer.RegisterRpc(RpcQuickMatch, rpcQuickMatch); err != nil {
		return err
	}
	return initializer.RegisterRpc(RpcRejoin, rpcRejoin)
}

func matchName(kind engine.Kind) (string, error) {
	switch kind {
	case engine.KindEuchre:
		return MatchNameEuchre, nil
	case engine.KindSpades:
		return MatchNameSpades, nil
	case engine.KindTienLen:
		return MatchNameTienLen, nil
	}
	return "", fmt.Errorf("unknown game kind: %s", kind)
}

func rpcQuickMatch(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
	userID, _ := ctx.Value(runtime.RUNTIME_CTX_USER_ID).(string)

	req := QuickMatchRequest{Game: string(engine.KindTienLen)}
	if payload != "" {
		if err := json.Unmarshal([]byte(payload), &req); err != nil {
			return "", runtime.NewError("malformed payload", 3)
		}
	}
	kind := engine.Kind(req.Game)
	name, err := matchName(kind)
	if err != nil {
		return "", runtime.NewError(err.Error(), 3)
	}

	// Find an open lobby for this game.
	query := fmt.Sprintf("+label.%s:>=1 +label.%s:%s +label.%s:lobby",
		MatchLabelKey_OpenSeats, MatchLabelKey_Game, req.Game, MatchLabelKey_Phase)
	limit := 10
	authoritative := true
	minSize := 0
	maxSize := 8

	matches, err := nk.MatchList(ctx, limit, authoritative, "", &minSize, &maxSize, query)
	if err != nil {
		logger.Error("rpcQuickMatch [User:%s]: MatchList: %v", userID, err)
		return "", err
	}
	if len(matches) > 0 {
		resp := QuickMatchResponse{MatchID: matches[0].MatchId, IsNew: false}
		b, _ := json.Marshal(resp)
		return string(b), nil
	}

	params := map[string]interface{}{}
	if req.Seats > 0 {
		params["seats"] = req.Seats
	}
	if req.TargetScore > 0 {
		params["target_score"] = req.TargetScore
	}
	if req.SuperTwos {
		params["super_twos"] = true
	}
	matchID, err := nk.MatchCreate(ctx, name, params)
	if err != nil {
		logger.Error("rpcQuickMatch [User:%s]: MatchCreate: %v", userID, err)
		return "", err
	}

	resp := QuickMatchResponse{MatchID: matchID, IsNew: true}
	b, _ := json.Marshal(resp)
	return string(b), nil
}

func rpcRejoin(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
	userID, _ := ctx.Value(runtime.RUNTIME_CTX_USER_ID).(string)

	var req RejoinRequest
	if err := json.Unmarshal([]byte(payload), &req); err != nil || req.Token == "" {
		return "", runtime.NewError("malformed payload", 3)
	}

	env, _ := ctx.Value(runtime.RUNTIME_CTX_ENV).(map[string]string)
	claim, err := parseSeatToken(seatTokenSecret(env), req.Token)
	if err != nil {
		logger.Warn("rpcRejoin [User:%s]: %v", userID, err)
		return "", runtime.NewError("invalid token", 16)
	}
	if claim.UserID != userID {
		return "", runtime.NewError("token belongs to another user", 7)
	}

	entry, ok := session.Default.Lookup(claim.SessionID)
	if !ok {
		return "", runtime.NewError("session not found", 5)
	}
	// The registry is authoritative: a booted user has been unbound even
	// if their token is still fresh.
	regEntry, seat, ok := session.Default.FindByUser(userID)
	if !ok || regEntry.SessionID != claim.SessionID {
		return "", runtime.NewError("seat no longer held", 5)
	}

	resp := RejoinResponse{MatchID: entry.MatchID, Seat: seat}
	b, _ := json.Marshal(resp)
	return string(b), nil
}
