package nakama

import (
	"context"
	"database/sql"

	"github.com/heroiclabs/nakama-common/runtime"

	"cardroom/internal/config"
	"cardroom/internal/engine"

	// Engines register themselves with the shared registry.
	_ "cardroom/internal/engine/euchre"
	_ "cardroom/internal/engine/spades"
	_ "cardroom/internal/engine/tienlen"
)

// InitModule wires RPCs and match handlers for the Nakama runtime.
func InitModule(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, initializer runtime.Initializer) error {
	if err := config.Load("data/cardroom_config.json"); err != nil {
		logger.Warn("InitModule: could not load config: %v", err)
	}

	if err := RegisterRPCs(initializer); err != nil {
		return err
	}

	handlers := map[string]engine.Kind{
		MatchNameEuchre:  engine.KindEuchre,
		MatchNameSpades:  engine.KindSpades,
		MatchNameTienLen: engine.KindTienLen,
	}
	for name, kind := range handlers {
		k := kind
		if err := initializer.RegisterMatch(name, func(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule) (runtime.Match, error) {
			return newMatchHandler(k), nil
		}); err != nil {
			return err
		}
	}

	logger.Info("Card room module loaded.")
	return nil
}
