package store

import (
	"context"
	stderrors "errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"go.uber.org/zap"

	"github.com/kapu/game-metadata-sync-go/internal/constants"
	"github.com/kapu/game-metadata-sync-go/internal/domain"
	"github.com/kapu/game-metadata-sync-go/pkg/errors"
)

const (
	filePrefix = "checkpoint_"
	fileSuffix = ".json"
)

// JSONStore keeps one file per document. Writes replace the whole file via a
// temp file and rename. The first write to a document takes an exclusive
// flock that is held until Close, so a second process cannot write the same
// document concurrently.
type JSONStore struct {
	dir         string
	lockTimeout time.Duration
	logger      *zap.Logger

	mu    sync.Mutex
	locks map[Key]*flock.Flock
}

func NewJSONStore(dir string, logger *zap.Logger) (*JSONStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.NewStoreError("create store directory", BackendJSON, "open", err)
	}
	return &JSONStore{
		dir:         dir,
		lockTimeout: constants.StoreConfig.LockTimeout,
		logger:      logger,
		locks:       make(map[Key]*flock.Flock),
	}, nil
}

func (s *JSONStore) Backend() string {
	return BackendJSON
}

func (s *JSONStore) path(key Key) string {
	return filepath.Join(s.dir, fmt.Sprintf("%s%s_%d%s", filePrefix, key.Provider, key.Shard, fileSuffix))
}

func (s *JSONStore) Load(_ context.Context, key Key) (*domain.Checkpoint, error) {
	data, err := os.ReadFile(s.path(key))
	if stderrors.Is(err, fs.ErrNotExist) {
		return domain.NewCheckpoint(key.Provider, key.Shard), nil
	}
	if err != nil {
		return nil, errors.NewStoreError("read checkpoint", BackendJSON, "load", err)
	}

	cp, err := decodeDocument(data, key)
	if err != nil {
		return nil, errors.NewStoreError("decode checkpoint", BackendJSON, "load", err)
	}
	return cp, nil
}

func (s *JSONStore) Save(ctx context.Context, key Key, cp *domain.Checkpoint) error {
	if err := s.acquire(ctx, key); err != nil {
		return err
	}

	data, err := encodeDocument(cp)
	if err != nil {
		return errors.NewStoreError("encode checkpoint", BackendJSON, "save", err)
	}
	if err := writeFileAtomic(s.path(key), data, 0o644); err != nil {
		return errors.NewStoreError("write checkpoint", BackendJSON, "save", err)
	}

	s.logger.Debug("Checkpoint saved",
		zap.String("key", key.String()),
		zap.Int("games", len(cp.Games)),
	)
	return nil
}

func (s *JSONStore) Reset(ctx context.Context, key Key) error {
	if err := s.acquire(ctx, key); err != nil {
		return err
	}
	if err := os.Remove(s.path(key)); err != nil && !stderrors.Is(err, fs.ErrNotExist) {
		return errors.NewStoreError("remove checkpoint", BackendJSON, "reset", err)
	}
	s.logger.Info("Checkpoint reset", zap.String("key", key.String()))
	return nil
}

func (s *JSONStore) List(_ context.Context) ([]Key, error) {
	matches, err := filepath.Glob(filepath.Join(s.dir, filePrefix+"*"+fileSuffix))
	if err != nil {
		return nil, errors.NewStoreError("list checkpoints", BackendJSON, "list", err)
	}

	keys := make([]Key, 0, len(matches))
	for _, m := range matches {
		if key, ok := keyFromFileName(filepath.Base(m)); ok {
			keys = append(keys, key)
		}
	}
	sortKeys(keys)
	return keys, nil
}

func (s *JSONStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var firstErr error
	for key, lock := range s.locks {
		if err := lock.Unlock(); err != nil {
			s.logger.Warn("Failed to release checkpoint lock", zap.String("key", key.String()), zap.Error(err))
			if firstErr == nil {
				firstErr = err
			}
		}
		delete(s.locks, key)
	}
	return firstErr
}

func (s *JSONStore) acquire(ctx context.Context, key Key) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, held := s.locks[key]; held {
		return nil
	}

	lock := flock.New(s.path(key) + ".lock")
	lockCtx, cancel := context.WithTimeout(ctx, s.lockTimeout)
	defer cancel()

	ok, err := lock.TryLockContext(lockCtx, 100*time.Millisecond)
	if err != nil || !ok {
		if err == nil {
			err = fmt.Errorf("document %s is locked by another process", key)
		}
		return errors.NewStoreError("acquire checkpoint lock", BackendJSON, "lock", err)
	}
	s.locks[key] = lock
	return nil
}

func keyFromFileName(name string) (Key, bool) {
	if !strings.HasPrefix(name, filePrefix) || !strings.HasSuffix(name, fileSuffix) {
		return Key{}, false
	}
	body := strings.TrimSuffix(strings.TrimPrefix(name, filePrefix), fileSuffix)
	idx := strings.LastIndex(body, "_")
	if idx <= 0 {
		return Key{}, false
	}
	shard, err := strconv.Atoi(body[idx+1:])
	if err != nil {
		return Key{}, false
	}
	return Key{Provider: body[:idx], Shard: shard}, true
}

func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "checkpoint-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Chmod(perm); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}
