package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/kapu/game-metadata-sync-go/internal/constants"
	"github.com/kapu/game-metadata-sync-go/internal/domain"
	"github.com/kapu/game-metadata-sync-go/pkg/errors"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS checkpoints (
		provider             TEXT    NOT NULL,
		shard                INTEGER NOT NULL,
		last_updated         TEXT    NOT NULL DEFAULT '',
		total_games          INTEGER NOT NULL DEFAULT 0,
		last_processed_index INTEGER NOT NULL DEFAULT 0,
		full_cycle_complete  BOOLEAN NOT NULL DEFAULT FALSE,
		run_id               TEXT    NOT NULL DEFAULT '',
		PRIMARY KEY (provider, shard)
	)`,
	`CREATE TABLE IF NOT EXISTS resolved_records (
		provider TEXT    NOT NULL,
		shard    INTEGER NOT NULL,
		game_id  TEXT    NOT NULL,
		record   TEXT    NOT NULL,
		PRIMARY KEY (provider, shard, game_id)
	)`,
}

// PostgresConfig holds connection settings for the postgres backend.
type PostgresConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

// SQLStore keeps checkpoints in two tables and rewrites a whole document
// inside one transaction. The same statements serve sqlite and postgres;
// only the placeholder style differs.
type SQLStore struct {
	db       *sql.DB
	backend  string
	numbered bool
	logger   *zap.Logger
}

func OpenPostgres(cfg PostgresConfig, logger *zap.Logger) (*SQLStore, error) {
	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, sslMode)

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, errors.NewStoreError("open postgres", BackendPostgres, "open", err)
	}

	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	s := &SQLStore{db: db, backend: BackendPostgres, numbered: true, logger: logger}
	if err := s.init(); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("PostgreSQL connected",
		zap.String("host", cfg.Host),
		zap.Int("port", cfg.Port),
		zap.String("database", cfg.Database),
	)
	return s, nil
}

func OpenSQLite(path string, logger *zap.Logger) (*SQLStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errors.NewStoreError("create sqlite directory", BackendSQLite, "open", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.NewStoreError("open sqlite", BackendSQLite, "open", err)
	}
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, errors.NewStoreError(fmt.Sprintf("apply pragma %q", pragma), BackendSQLite, "open", execErr)
		}
	}

	s := &SQLStore{db: db, backend: BackendSQLite, logger: logger}
	if err := s.init(); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("SQLite store opened", zap.String("path", path))
	return s, nil
}

func (s *SQLStore) init() error {
	ctx, cancel := context.WithTimeout(context.Background(), constants.StoreConfig.ReadyTimeout)
	defer cancel()

	if err := s.db.PingContext(ctx); err != nil {
		return errors.NewStoreError("ping database", s.backend, "open", err)
	}
	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return errors.NewStoreError("apply schema", s.backend, "open", err)
		}
	}
	return nil
}

func (s *SQLStore) Backend() string {
	return s.backend
}

// rebind rewrites ? placeholders to $N for postgres.
func rebind(query string, numbered bool) string {
	if !numbered {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *SQLStore) q(query string) string {
	return rebind(query, s.numbered)
}

func (s *SQLStore) Load(ctx context.Context, key Key) (*domain.Checkpoint, error) {
	cp := domain.NewCheckpoint(key.Provider, key.Shard)

	var lastUpdated string
	err := s.db.QueryRowContext(ctx, s.q(
		`SELECT last_updated, total_games, last_processed_index, full_cycle_complete, run_id
		FROM checkpoints WHERE provider = ? AND shard = ?`),
		key.Provider, key.Shard,
	).Scan(&lastUpdated, &cp.TotalGames, &cp.LastProcessedIndex, &cp.FullCycleComplete, &cp.RunID)
	if err == sql.ErrNoRows {
		return cp, nil
	}
	if err != nil {
		return nil, errors.NewStoreError("load checkpoint", s.backend, "load", err)
	}
	if lastUpdated != "" {
		if t, perr := time.Parse(time.RFC3339Nano, lastUpdated); perr == nil {
			cp.LastUpdated = t
		}
	}

	rows, err := s.db.QueryContext(ctx, s.q(
		`SELECT game_id, record FROM resolved_records WHERE provider = ? AND shard = ?`),
		key.Provider, key.Shard,
	)
	if err != nil {
		return nil, errors.NewStoreError("load records", s.backend, "load", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id, raw string
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, errors.NewStoreError("scan record", s.backend, "load", err)
		}
		var rec domain.ResolvedRecord
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			s.logger.Warn("Skipping undecodable record",
				zap.String("key", key.String()),
				zap.String("game_id", id),
				zap.Error(err),
			)
			continue
		}
		cp.Games[id] = &rec
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewStoreError("iterate records", s.backend, "load", err)
	}

	cp.TotalGames = len(cp.Games)
	return cp, nil
}

func (s *SQLStore) Save(ctx context.Context, key Key, cp *domain.Checkpoint) error {
	cp.Ensure()
	cp.TotalGames = len(cp.Games)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.NewStoreError("begin transaction", s.backend, "save", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, s.q(
		`INSERT INTO checkpoints (provider, shard, last_updated, total_games, last_processed_index, full_cycle_complete, run_id)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (provider, shard) DO UPDATE SET
			last_updated = excluded.last_updated,
			total_games = excluded.total_games,
			last_processed_index = excluded.last_processed_index,
			full_cycle_complete = excluded.full_cycle_complete,
			run_id = excluded.run_id`),
		key.Provider, key.Shard, cp.LastUpdated.UTC().Format(time.RFC3339Nano),
		cp.TotalGames, cp.LastProcessedIndex, cp.FullCycleComplete, cp.RunID,
	)
	if err != nil {
		return errors.NewStoreError("upsert checkpoint", s.backend, "save", err)
	}

	if _, err := tx.ExecContext(ctx, s.q(
		`DELETE FROM resolved_records WHERE provider = ? AND shard = ?`),
		key.Provider, key.Shard,
	); err != nil {
		return errors.NewStoreError("clear records", s.backend, "save", err)
	}

	stmt, err := tx.PrepareContext(ctx, s.q(
		`INSERT INTO resolved_records (provider, shard, game_id, record) VALUES (?, ?, ?, ?)
		ON CONFLICT (provider, shard, game_id) DO UPDATE SET record = excluded.record`))
	if err != nil {
		return errors.NewStoreError("prepare record upsert", s.backend, "save", err)
	}
	defer stmt.Close()

	for id, rec := range cp.Games {
		if rec == nil {
			continue
		}
		raw, err := json.Marshal(rec)
		if err != nil {
			return errors.NewStoreError("encode record "+id, s.backend, "save", err)
		}
		if _, err := stmt.ExecContext(ctx, key.Provider, key.Shard, id, string(raw)); err != nil {
			return errors.NewStoreError("upsert record "+id, s.backend, "save", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.NewStoreError("commit checkpoint", s.backend, "save", err)
	}

	s.logger.Debug("Checkpoint saved",
		zap.String("backend", s.backend),
		zap.String("key", key.String()),
		zap.Int("games", cp.TotalGames),
	)
	return nil
}

func (s *SQLStore) Reset(ctx context.Context, key Key) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.NewStoreError("begin transaction", s.backend, "reset", err)
	}
	defer tx.Rollback()

	for _, stmt := range []string{
		`DELETE FROM resolved_records WHERE provider = ? AND shard = ?`,
		`DELETE FROM checkpoints WHERE provider = ? AND shard = ?`,
	} {
		if _, err := tx.ExecContext(ctx, s.q(stmt), key.Provider, key.Shard); err != nil {
			return errors.NewStoreError("delete checkpoint", s.backend, "reset", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return errors.NewStoreError("commit reset", s.backend, "reset", err)
	}

	s.logger.Info("Checkpoint reset", zap.String("backend", s.backend), zap.String("key", key.String()))
	return nil
}

func (s *SQLStore) List(ctx context.Context) ([]Key, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT provider, shard FROM checkpoints`)
	if err != nil {
		return nil, errors.NewStoreError("list checkpoints", s.backend, "list", err)
	}
	defer rows.Close()

	var keys []Key
	for rows.Next() {
		var k Key
		if err := rows.Scan(&k.Provider, &k.Shard); err != nil {
			return nil, errors.NewStoreError("scan checkpoint key", s.backend, "list", err)
		}
		keys = append(keys, k)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewStoreError("iterate checkpoint keys", s.backend, "list", err)
	}
	sortKeys(keys)
	return keys, nil
}

func (s *SQLStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
