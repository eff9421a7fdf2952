package catalog

import (
	"encoding/json"
	"os"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kapu/game-metadata-sync-go/internal/domain"
)

func TestMerge_WritesProviderKeys(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "games_1.json", `[
		{"id": 1, "name": "Halo", "custom": "keep me"},
		{"id": 2, "name": "Myst"}
	]`)

	ts := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	resolved := map[string]map[string]*domain.ResolvedRecord{
		"critic": {
			"1": {Name: "Halo", Scores: map[string]float64{domain.MetricMetascore: 97}, Timestamp: ts},
		},
		"completion": {
			"1": {Name: "Halo", Times: map[string]*domain.CompletionTime{domain.CategoryMainStory: {Hours: 9}}, Timestamp: ts},
			"3": {Name: "Not In Catalog", Timestamp: ts},
		},
	}

	stats, err := Merge(dir, resolved, zap.NewNop())
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if stats.Files != 1 || stats.Rewritten != 1 || stats.Updated != 1 {
		t.Fatalf("stats = %+v", stats)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var rows []map[string]json.RawMessage
	if err := json.Unmarshal(data, &rows); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if string(rows[0]["custom"]) != `"keep me"` {
		t.Fatalf("unknown fields not preserved: %s", rows[0]["custom"])
	}
	var mc domain.ResolvedRecord
	if err := json.Unmarshal(rows[0]["metacritic"], &mc); err != nil {
		t.Fatalf("decode metacritic: %v", err)
	}
	if v, _ := mc.Score(domain.MetricMetascore); v != 97 {
		t.Fatalf("metascore = %v", v)
	}
	if _, ok := rows[0]["hltb"]; !ok {
		t.Fatalf("hltb key missing")
	}
	if _, ok := rows[1]["metacritic"]; ok {
		t.Fatalf("unresolved record should not gain a key")
	}
}

func TestMerge_SkipsUnchangedFiles(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "games_1.json", `[{"id": 1, "name": "Halo"}]`)

	resolved := map[string]map[string]*domain.ResolvedRecord{
		"critic": {"1": {Name: "Halo", Scores: map[string]float64{domain.MetricMetascore: 97}}},
	}
	if _, err := Merge(dir, resolved, zap.NewNop()); err != nil {
		t.Fatalf("first Merge: %v", err)
	}
	before, _ := os.Stat(path)

	stats, err := Merge(dir, resolved, zap.NewNop())
	if err != nil {
		t.Fatalf("second Merge: %v", err)
	}
	if stats.Rewritten != 0 || stats.Updated != 0 {
		t.Fatalf("expected no rewrite, got %+v", stats)
	}
	after, _ := os.Stat(path)
	if !after.ModTime().Equal(before.ModTime()) {
		t.Fatalf("unchanged file was rewritten")
	}
}

func TestCombine(t *testing.T) {
	a := domain.NewCheckpoint("critic", 0)
	a.Put("1", &domain.ResolvedRecord{Name: "Halo"})
	b := domain.NewCheckpoint("critic", 1)
	b.Put("2", &domain.ResolvedRecord{Name: "Myst"})

	got := Combine(a, nil, b)
	if len(got) != 2 || got["1"].Name != "Halo" || got["2"].Name != "Myst" {
		t.Fatalf("Combine = %+v", got)
	}
}
