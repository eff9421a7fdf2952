package store

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/kapu/game-metadata-sync-go/internal/constants"
	"github.com/kapu/game-metadata-sync-go/internal/domain"
	"github.com/kapu/game-metadata-sync-go/pkg/errors"
)

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
	Prefix   string
}

// RedisStore keeps each document as one JSON string at <prefix>:<provider>:<shard>.
type RedisStore struct {
	client *redis.Client
	prefix string
	logger *zap.Logger
}

func NewRedisStore(cfg RedisConfig, logger *zap.Logger) (*RedisStore, error) {
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     4,
	})

	ctx, cancel := context.WithTimeout(context.Background(), constants.StoreConfig.ReadyTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, errors.NewStoreError("failed to connect to Redis", BackendRedis, "ping", err)
	}

	logger.Info("Redis connected",
		zap.String("addr", addr),
		zap.Int("db", cfg.DB),
	)

	prefix := cfg.Prefix
	if prefix == "" {
		prefix = constants.StoreConfig.RedisKeyPrefix
	}
	return &RedisStore{client: client, prefix: prefix, logger: logger}, nil
}

func (s *RedisStore) Backend() string {
	return BackendRedis
}

func redisKey(prefix string, key Key) string {
	return fmt.Sprintf("%s:%s:%d", prefix, key.Provider, key.Shard)
}

func parseRedisKey(prefix, raw string) (Key, bool) {
	rest, ok := strings.CutPrefix(raw, prefix+":")
	if !ok {
		return Key{}, false
	}
	idx := strings.LastIndex(rest, ":")
	if idx <= 0 {
		return Key{}, false
	}
	shard, err := strconv.Atoi(rest[idx+1:])
	if err != nil {
		return Key{}, false
	}
	return Key{Provider: rest[:idx], Shard: shard}, true
}

func (s *RedisStore) Load(ctx context.Context, key Key) (*domain.Checkpoint, error) {
	k := redisKey(s.prefix, key)
	value, err := s.client.Get(ctx, k).Bytes()
	if err == redis.Nil {
		return domain.NewCheckpoint(key.Provider, key.Shard), nil
	}
	if err != nil {
		s.logger.Error("Checkpoint get failed", zap.String("key", k), zap.Error(err))
		return nil, errors.NewStoreError("get failed", BackendRedis, "load", err)
	}

	cp, err := decodeDocument(value, key)
	if err != nil {
		return nil, errors.NewStoreError("unmarshal failed", BackendRedis, "load", err)
	}
	return cp, nil
}

func (s *RedisStore) Save(ctx context.Context, key Key, cp *domain.Checkpoint) error {
	data, err := encodeDocument(cp)
	if err != nil {
		return errors.NewStoreError("marshal failed", BackendRedis, "save", err)
	}

	k := redisKey(s.prefix, key)
	if err := s.client.Set(ctx, k, data, 0).Err(); err != nil {
		s.logger.Error("Checkpoint set failed", zap.String("key", k), zap.Error(err))
		return errors.NewStoreError("set failed", BackendRedis, "save", err)
	}
	return nil
}

func (s *RedisStore) Reset(ctx context.Context, key Key) error {
	k := redisKey(s.prefix, key)
	if err := s.client.Del(ctx, k).Err(); err != nil {
		s.logger.Error("Checkpoint delete failed", zap.String("key", k), zap.Error(err))
		return errors.NewStoreError("delete failed", BackendRedis, "reset", err)
	}
	s.logger.Info("Checkpoint reset", zap.String("key", k))
	return nil
}

func (s *RedisStore) List(ctx context.Context) ([]Key, error) {
	pattern := s.prefix + ":*"
	raw, err := s.client.Keys(ctx, pattern).Result()
	if err != nil {
		s.logger.Error("Checkpoint keys search failed", zap.String("pattern", pattern), zap.Error(err))
		return nil, errors.NewStoreError("keys search failed", BackendRedis, "list", err)
	}

	keys := make([]Key, 0, len(raw))
	for _, r := range raw {
		if key, ok := parseRedisKey(s.prefix, r); ok {
			keys = append(keys, key)
		}
	}
	sortKeys(keys)
	return keys, nil
}

func (s *RedisStore) Close() error {
	if err := s.client.Close(); err != nil {
		s.logger.Error("Failed to close Redis connection", zap.Error(err))
		return err
	}
	s.logger.Info("Redis disconnected")
	return nil
}
