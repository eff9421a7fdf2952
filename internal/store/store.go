package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/kapu/game-metadata-sync-go/internal/domain"
)

// Backend names accepted by STORE_BACKEND.
const (
	BackendJSON     = "json"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
)

// Key addresses one checkpoint document.
type Key struct {
	Provider string
	Shard    int
}

func (k Key) String() string {
	return fmt.Sprintf("%s/%d", k.Provider, k.Shard)
}

// ParseKey accepts the "provider/shard" form produced by String.
func ParseKey(s string) (Key, error) {
	provider, shard, found := strings.Cut(s, "/")
	if !found {
		return Key{Provider: s}, nil
	}
	n, err := strconv.Atoi(shard)
	if err != nil || n < 0 {
		return Key{}, fmt.Errorf("invalid shard in key %q", s)
	}
	return Key{Provider: provider, Shard: n}, nil
}

// Store persists checkpoint documents. Load of a missing document returns an
// empty checkpoint, not an error.
type Store interface {
	Backend() string
	Load(ctx context.Context, key Key) (*domain.Checkpoint, error)
	Save(ctx context.Context, key Key, cp *domain.Checkpoint) error
	Reset(ctx context.Context, key Key) error
	List(ctx context.Context) ([]Key, error)
	Close() error
}

func sortKeys(keys []Key) {
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Provider != keys[j].Provider {
			return keys[i].Provider < keys[j].Provider
		}
		return keys[i].Shard < keys[j].Shard
	})
}

func encodeDocument(cp *domain.Checkpoint) ([]byte, error) {
	cp.Ensure()
	cp.TotalGames = len(cp.Games)
	return json.MarshalIndent(cp, "", "  ")
}

func decodeDocument(data []byte, key Key) (*domain.Checkpoint, error) {
	cp := domain.NewCheckpoint(key.Provider, key.Shard)
	if len(strings.TrimSpace(string(data))) == 0 {
		return cp, nil
	}
	if err := json.Unmarshal(data, cp); err != nil {
		return nil, err
	}
	cp.Ensure()
	if cp.Provider == "" {
		cp.Provider = key.Provider
	}
	cp.Shard = key.Shard
	return cp, nil
}
