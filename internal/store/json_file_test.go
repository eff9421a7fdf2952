package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kapu/game-metadata-sync-go/internal/domain"
)

func sampleCheckpoint() *domain.Checkpoint {
	cp := domain.NewCheckpoint("critic", 0)
	cp.LastUpdated = time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	cp.LastProcessedIndex = 42
	cp.RunID = "run-1"
	cp.Put("1", &domain.ResolvedRecord{
		Name:      "Halo",
		Scores:    map[string]float64{domain.MetricMetascore: 97},
		Timestamp: cp.LastUpdated,
	})
	return cp
}

func TestJSONStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	s, err := NewJSONStore(t.TempDir(), zap.NewNop())
	if err != nil {
		t.Fatalf("NewJSONStore: %v", err)
	}
	defer s.Close()

	key := Key{Provider: "critic"}
	if err := s.Save(ctx, key, sampleCheckpoint()); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := s.Load(ctx, key)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.LastProcessedIndex != 42 || got.TotalGames != 1 || got.RunID != "run-1" {
		t.Fatalf("unexpected checkpoint: %+v", got)
	}
	if v, _ := got.Get("1").Score(domain.MetricMetascore); v != 97 {
		t.Fatalf("metascore = %v", v)
	}
}

func TestJSONStore_MissingDocumentIsEmpty(t *testing.T) {
	s, err := NewJSONStore(t.TempDir(), zap.NewNop())
	if err != nil {
		t.Fatalf("NewJSONStore: %v", err)
	}
	defer s.Close()

	cp, err := s.Load(context.Background(), Key{Provider: "completion", Shard: 4})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(cp.Games) != 0 || cp.Shard != 4 {
		t.Fatalf("expected empty checkpoint, got %+v", cp)
	}
}

func TestJSONStore_CorruptDocument(t *testing.T) {
	dir := t.TempDir()
	s, err := NewJSONStore(dir, zap.NewNop())
	if err != nil {
		t.Fatalf("NewJSONStore: %v", err)
	}
	defer s.Close()

	key := Key{Provider: "critic"}
	if err := os.WriteFile(s.path(key), []byte("{broken"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := s.Load(context.Background(), key); err == nil {
		t.Fatalf("expected decode error")
	}
}

func TestJSONStore_SingleWriter(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	first, err := NewJSONStore(dir, zap.NewNop())
	if err != nil {
		t.Fatalf("NewJSONStore: %v", err)
	}
	key := Key{Provider: "critic"}
	if err := first.Save(ctx, key, sampleCheckpoint()); err != nil {
		t.Fatalf("first Save: %v", err)
	}

	second, err := NewJSONStore(dir, zap.NewNop())
	if err != nil {
		t.Fatalf("NewJSONStore: %v", err)
	}
	second.lockTimeout = 200 * time.Millisecond
	defer second.Close()

	if err := second.Save(ctx, key, sampleCheckpoint()); err == nil {
		t.Fatalf("expected lock error while another writer holds the document")
	}
	if _, err := second.Load(ctx, key); err != nil {
		t.Fatalf("reads should not need the lock: %v", err)
	}

	if err := first.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := second.Save(ctx, key, sampleCheckpoint()); err != nil {
		t.Fatalf("Save after release: %v", err)
	}
}

func TestJSONStore_ListAndReset(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s, err := NewJSONStore(dir, zap.NewNop())
	if err != nil {
		t.Fatalf("NewJSONStore: %v", err)
	}
	defer s.Close()

	keys := []Key{{Provider: "critic", Shard: 1}, {Provider: "completion"}, {Provider: "critic"}}
	for _, k := range keys {
		if err := s.Save(ctx, k, domain.NewCheckpoint(k.Provider, k.Shard)); err != nil {
			t.Fatalf("Save %s: %v", k, err)
		}
	}
	if err := os.WriteFile(filepath.Join(dir, "notes.json"), []byte("{}"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	got, err := s.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	want := []Key{{Provider: "completion"}, {Provider: "critic"}, {Provider: "critic", Shard: 1}}
	if len(got) != len(want) {
		t.Fatalf("List = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("List[%d] = %v, want %v", i, got[i], want[i])
		}
	}

	if err := s.Reset(ctx, Key{Provider: "critic", Shard: 1}); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	got, _ = s.List(ctx)
	if len(got) != 2 {
		t.Fatalf("after reset List = %v", got)
	}
	if err := s.Reset(ctx, Key{Provider: "critic", Shard: 1}); err != nil {
		t.Fatalf("Reset of a missing document should succeed: %v", err)
	}
}
