package store

import (
	"fmt"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/kapu/game-metadata-sync-go/pkg/errors"
)

// Options selects and configures a backend.
type Options struct {
	Backend    string
	Dir        string
	SQLitePath string
	Postgres   PostgresConfig
	Redis      RedisConfig
}

// Open builds the store named by opts.Backend. An empty backend means json.
func Open(opts Options, logger *zap.Logger) (Store, error) {
	switch opts.Backend {
	case "", BackendJSON:
		return NewJSONStore(opts.Dir, logger)
	case BackendSQLite:
		path := opts.SQLitePath
		if path == "" {
			path = filepath.Join(opts.Dir, "checkpoints.db")
		}
		return OpenSQLite(path, logger)
	case BackendPostgres:
		return OpenPostgres(opts.Postgres, logger)
	case BackendRedis:
		return NewRedisStore(opts.Redis, logger)
	default:
		return nil, errors.NewValidationError(fmt.Sprintf("unknown store backend %q", opts.Backend), "STORE_BACKEND", opts.Backend)
	}
}
