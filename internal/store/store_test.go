package store

import (
	"testing"

	"github.com/kapu/game-metadata-sync-go/internal/domain"
)

func TestParseKey(t *testing.T) {
	tests := []struct {
		in      string
		want    Key
		wantErr bool
	}{
		{"critic/0", Key{Provider: "critic"}, false},
		{"completion/3", Key{Provider: "completion", Shard: 3}, false},
		{"critic", Key{Provider: "critic"}, false},
		{"critic/x", Key{}, true},
		{"critic/-1", Key{}, true},
	}
	for _, tt := range tests {
		got, err := ParseKey(tt.in)
		if (err != nil) != tt.wantErr {
			t.Fatalf("ParseKey(%q) error = %v", tt.in, err)
		}
		if !tt.wantErr && got != tt.want {
			t.Fatalf("ParseKey(%q) = %+v, want %+v", tt.in, got, tt.want)
		}
		if !tt.wantErr && tt.in != "critic" && got.String() != tt.in {
			t.Fatalf("String() = %q, want %q", got.String(), tt.in)
		}
	}
}

func TestDecodeDocument_EmptyAndLegacy(t *testing.T) {
	key := Key{Provider: "critic", Shard: 2}

	cp, err := decodeDocument(nil, key)
	if err != nil || cp.Games == nil || cp.Provider != "critic" || cp.Shard != 2 {
		t.Fatalf("empty document: %+v, %v", cp, err)
	}

	legacy := []byte(`{"last_processed_index": 12, "full_cycle_complete": true}`)
	cp, err = decodeDocument(legacy, key)
	if err != nil {
		t.Fatalf("decode legacy: %v", err)
	}
	if cp.Games == nil || cp.LastProcessedIndex != 12 || !cp.FullCycleComplete || cp.Provider != "critic" {
		t.Fatalf("legacy document decoded as %+v", cp)
	}

	if _, err := decodeDocument([]byte("{not json"), key); err == nil {
		t.Fatalf("expected decode error")
	}
}

func TestEncodeDocument_CountsGames(t *testing.T) {
	cp := domain.NewCheckpoint("critic", 0)
	cp.Games["1"] = &domain.ResolvedRecord{Name: "Halo"}
	cp.Games["2"] = &domain.ResolvedRecord{Name: "Myst"}
	cp.TotalGames = 99

	if _, err := encodeDocument(cp); err != nil {
		t.Fatalf("encode: %v", err)
	}
	if cp.TotalGames != 2 {
		t.Fatalf("total_games = %d, want 2", cp.TotalGames)
	}
}

func TestRedisKey(t *testing.T) {
	k := redisKey("gamesync", Key{Provider: "completion", Shard: 1})
	if k != "gamesync:completion:1" {
		t.Fatalf("redisKey = %q", k)
	}
	got, ok := parseRedisKey("gamesync", k)
	if !ok || got != (Key{Provider: "completion", Shard: 1}) {
		t.Fatalf("parseRedisKey = %+v, %v", got, ok)
	}
	if _, ok := parseRedisKey("gamesync", "other:critic:0"); ok {
		t.Fatalf("foreign prefix accepted")
	}
	if _, ok := parseRedisKey("gamesync", "gamesync:critic"); ok {
		t.Fatalf("key without shard accepted")
	}
}

func TestRebind(t *testing.T) {
	q := "SELECT a FROM t WHERE b = ? AND c = ?"
	if got := rebind(q, false); got != q {
		t.Fatalf("sqlite query rewritten: %q", got)
	}
	if got := rebind(q, true); got != "SELECT a FROM t WHERE b = $1 AND c = $2" {
		t.Fatalf("postgres rebind = %q", got)
	}
}

func TestOpen_UnknownBackend(t *testing.T) {
	if _, err := Open(Options{Backend: "mongo"}, nil); err == nil {
		t.Fatalf("expected error for unknown backend")
	}
}
