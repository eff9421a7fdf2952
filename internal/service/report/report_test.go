package report

import (
	"strings"
	"testing"

	"github.com/kapu/game-metadata-sync-go/internal/domain"
	"github.com/kapu/game-metadata-sync-go/internal/store"
)

func TestCompute(t *testing.T) {
	cp := domain.NewCheckpoint("critic", 0)
	cp.LastProcessedIndex = 7
	cp.Put("1", &domain.ResolvedRecord{Scores: map[string]float64{domain.MetricMetascore: 90, domain.MetricUserscore: 8.1}, NoMoreUpdates: true})
	cp.Put("2", &domain.ResolvedRecord{Scores: map[string]float64{domain.MetricMetascore: 70}})
	cp.Put("3", &domain.ResolvedRecord{Note: domain.NoteNotFound, NoMoreUpdates: true})
	cp.Put("4", &domain.ResolvedRecord{Note: domain.NoteUnreleased})
	cp.Put("5", &domain.ResolvedRecord{Note: domain.NoteNoScore})
	cp.Put("6", &domain.ResolvedRecord{Times: map[string]*domain.CompletionTime{domain.CategoryMainStory: {Hours: 10}}})

	s := Compute(store.Key{Provider: "critic"}, cp)
	if s.Total != 6 || s.WithMetascore != 2 || s.WithUserscore != 1 || s.WithTimes != 1 {
		t.Fatalf("metric counts = %+v", s)
	}
	if s.NotFound != 1 || s.Unreleased != 1 || s.NoScore != 1 || s.Settled != 1 || s.NextIndex != 7 {
		t.Fatalf("note counts = %+v", s)
	}
}

func TestRender(t *testing.T) {
	out := Render([]Stats{{Key: store.Key{Provider: "completion", Shard: 1}, Total: 3}})
	for _, want := range []string{"Not Found", "Full Cycle", "completion/1"} {
		if !strings.Contains(out, want) {
			t.Fatalf("rendered table missing %q:\n%s", want, out)
		}
	}
}
