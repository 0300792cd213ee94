package app

import (
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/collabhub/collabhub/internal/platform/clock"
	"github.com/collabhub/collabhub/internal/sessions"
)

// SessionStore is a session record store that can also be swept.
type SessionStore interface {
	sessions.Store
	sessions.Sweeper
}

// NewSessionStore selects the record store named by cfg.SessionStore. The
// pool is only required for the postgres backend.
func NewSessionStore(cfg *Config, client *redis.Client, pool *pgxpool.Pool, clk clock.Clock) (SessionStore, error) {
	switch cfg.SessionStore {
	case SessionStoreRedis:
		if client == nil {
			return nil, fmt.Errorf("session store %q: redis client required", cfg.SessionStore)
		}
		return sessions.NewRedisStore(client, cfg.SessionInactivityWindow, clk), nil
	case SessionStorePostgres:
		if pool == nil {
			return nil, fmt.Errorf("session store %q: postgres pool required", cfg.SessionStore)
		}
		return sessions.NewPGStore(pool), nil
	default:
		return nil, fmt.Errorf("unsupported session store %q", cfg.SessionStore)
	}
}
