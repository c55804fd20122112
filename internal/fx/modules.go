package fx

import (
	"database/sql"
	"fmt"

	"sub2play/internal/config"
	"sub2play/internal/database"
	"sub2play/internal/kv"
	"sub2play/internal/logger"
	"sub2play/internal/repository"
	"sub2play/internal/riot"
	"sub2play/internal/server"
	"sub2play/internal/service"

	"github.com/rs/zerolog"
	"go.uber.org/fx"
)

// StoreResult carries the selected kv backend. DB is nil unless the sqlite
// backend is active; main closes it on shutdown when present.
type StoreResult struct {
	fx.Out

	Store kv.Store
	DB    *sql.DB
}

func ProvideStore(cfg *config.Config, log zerolog.Logger) (StoreResult, error) {
	switch cfg.StoreBackend {
	case config.BackendSQLite:
		db, err := database.New(cfg, log)
		if err != nil {
			return StoreResult{}, err
		}
		return StoreResult{Store: kv.NewSQLiteStore(db), DB: db}, nil
	case config.BackendDynamoDB:
		client, err := database.NewDynamoClient(cfg, log)
		if err != nil {
			return StoreResult{}, err
		}
		return StoreResult{Store: kv.NewDynamoStore(client, cfg.DynamoTable)}, nil
	default:
		return StoreResult{}, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
}

func ProvideRiotAPI(client *riot.Client) service.RiotAPI {
	return client
}

var Module = fx.Options(
	fx.Provide(logger.New),
	fx.Provide(config.Load),
	fx.Provide(ProvideStore),
	// repos
	fx.Provide(repository.NewLobbyRepository),
	fx.Provide(repository.NewUserRepository),
	fx.Provide(repository.NewRiotProfileRepository),
	fx.Provide(repository.NewMatchRepository),
	// api client
	fx.Provide(riot.NewClient),
	fx.Provide(ProvideRiotAPI),
	// svc
	fx.Provide(service.NewLobbyService),
	fx.Provide(service.NewRiotService),
	fx.Provide(service.NewAuthService),
	// server
	fx.Provide(server.NewServer),
)
