package checkpoint

import (
	"testing"
	"time"

	"github.com/kapu/game-metadata-sync-go/internal/domain"
)

var now = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func days(n int) time.Duration {
	return time.Duration(n) * 24 * time.Hour
}

func at(t time.Time) *time.Time {
	return &t
}

func TestEvaluate_NewRecordIsProcessed(t *testing.T) {
	p := NewPolicy(Windows{})
	d := p.Evaluate(nil, domain.CatalogRecord{ID: "1", Name: "Halo"}, now, true)
	if !d.Process || d.Reason != ReasonNew {
		t.Fatalf("expected new record to be processed, got %+v", d)
	}
}

func TestEvaluate_NoMoreUpdatesAlwaysSkipped(t *testing.T) {
	p := NewPolicy(Windows{})
	prev := &domain.ResolvedRecord{Name: "Halo", NoMoreUpdates: true, Timestamp: now.Add(-days(400))}

	for _, full := range []bool{false, true} {
		d := p.Evaluate(prev, domain.CatalogRecord{ID: "1"}, now, full)
		if d.Process {
			t.Fatalf("no_more_updates record processed (full cycle %v)", full)
		}
	}
}

func TestEvaluate_FirstPassProcessesEverything(t *testing.T) {
	p := NewPolicy(Windows{})
	prev := &domain.ResolvedRecord{
		Name:      "Halo",
		Scores:    map[string]float64{domain.MetricMetascore: 97},
		Timestamp: now.Add(-time.Hour),
	}
	d := p.Evaluate(prev, domain.CatalogRecord{ID: "1"}, now, false)
	if !d.Process || d.Reason != ReasonFirstPass {
		t.Fatalf("expected first pass to process, got %+v", d)
	}
}

func TestEvaluate_ScoredRecords(t *testing.T) {
	p := NewPolicy(Windows{})
	scored := func(checked time.Duration) *domain.ResolvedRecord {
		return &domain.ResolvedRecord{
			Scores:    map[string]float64{domain.MetricMetascore: 80},
			Timestamp: now.Add(-checked),
		}
	}

	tests := []struct {
		name    string
		prev    *domain.ResolvedRecord
		release *time.Time
		process bool
		settle  bool
	}{
		{"fresh", scored(days(5)), at(now.Add(-days(10))), false, false},
		{"stale", scored(days(31)), at(now.Add(-days(40))), true, false},
		{"settled", scored(days(31)), at(now.Add(-days(61))), false, true},
		{"unknown release refreshes", scored(days(31)), nil, true, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := p.Evaluate(tt.prev, domain.CatalogRecord{ID: "1", ReleaseDate: tt.release}, now, true)
			if d.Process != tt.process || d.MarkNoMoreUpdates != tt.settle {
				t.Fatalf("got %+v", d)
			}
		})
	}
}

func TestEvaluate_NotFoundBackoff(t *testing.T) {
	p := NewPolicy(Windows{})
	miss := func(count int, first time.Duration) *domain.ResolvedRecord {
		return &domain.ResolvedRecord{
			Note:         domain.NoteNotFound,
			CheckCount:   count,
			FirstUpdated: at(now.Add(-first)),
			Timestamp:    now.Add(-days(1)),
		}
	}

	tests := []struct {
		name    string
		prev    *domain.ResolvedRecord
		process bool
	}{
		{"first miss retried immediately", miss(0, days(0)), true},
		{"second check waits 30 days", miss(1, days(20)), false},
		{"second check due", miss(1, days(30)), true},
		{"third check waits 60 days", miss(2, days(45)), false},
		{"third check due", miss(2, days(65)), true},
		{"exhausted", miss(3, days(365)), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := p.Evaluate(tt.prev, domain.CatalogRecord{ID: "1"}, now, true)
			if d.Process != tt.process {
				t.Fatalf("process = %v, want %v (%s)", d.Process, tt.process, d.Reason)
			}
		})
	}
}

func TestEvaluate_NoScoreAndUnreleased(t *testing.T) {
	p := NewPolicy(Windows{})

	noScore := &domain.ResolvedRecord{Note: domain.NoteNoScore, Timestamp: now.Add(-days(59))}
	if d := p.Evaluate(noScore, domain.CatalogRecord{}, now, true); d.Process {
		t.Fatalf("no_score checked 59 days ago should wait")
	}
	noScore.Timestamp = now.Add(-days(60))
	if d := p.Evaluate(noScore, domain.CatalogRecord{}, now, true); !d.Process {
		t.Fatalf("no_score checked 60 days ago should be processed")
	}

	unreleased := &domain.ResolvedRecord{Note: domain.NoteUnreleased, Timestamp: now.Add(-days(10))}
	if d := p.Evaluate(unreleased, domain.CatalogRecord{}, now, true); d.Process {
		t.Fatalf("unreleased checked 10 days ago should wait")
	}
	unreleased.Timestamp = now.Add(-days(31))
	if d := p.Evaluate(unreleased, domain.CatalogRecord{}, now, true); !d.Process {
		t.Fatalf("unreleased checked 31 days ago should be processed")
	}
}

func TestEvaluate_FetchFailedRetried(t *testing.T) {
	p := NewPolicy(Windows{})
	prev := &domain.ResolvedRecord{Note: domain.NoteFetchFailed, Timestamp: now.Add(-time.Minute)}
	if d := p.Evaluate(prev, domain.CatalogRecord{}, now, true); !d.Process {
		t.Fatalf("fetch_failed should be retried, got %+v", d)
	}
}

func TestEvaluate_DoesNotMutate(t *testing.T) {
	p := NewPolicy(Windows{})
	prev := &domain.ResolvedRecord{Note: domain.NoteNotFound, CheckCount: 3, Timestamp: now}
	p.Evaluate(prev, domain.CatalogRecord{}, now, true)
	if prev.NoMoreUpdates || prev.CheckCount != 3 {
		t.Fatalf("Evaluate mutated prev: %+v", prev)
	}
}

func TestApply_NotFoundLifecycle(t *testing.T) {
	p := NewPolicy(Windows{})
	first := now.Add(-days(65))
	prev := &domain.ResolvedRecord{
		Name:         "Obscure Game",
		Note:         domain.NoteNotFound,
		CheckCount:   2,
		FirstUpdated: at(first),
		Timestamp:    now.Add(-days(35)),
	}

	d := p.Evaluate(prev, domain.CatalogRecord{ID: "7"}, now, true)
	if !d.Process {
		t.Fatalf("expected record to be eligible, got %+v", d)
	}

	result := &domain.ResolvedRecord{Name: "Obscure Game", Note: domain.NoteNotFound, Timestamp: now}
	out := p.Apply(prev, result, now)
	if out.CheckCount != 3 {
		t.Fatalf("check count = %d, want 3", out.CheckCount)
	}
	if !out.NoMoreUpdates {
		t.Fatalf("expected no_more_updates after the third miss")
	}
	if out.FirstUpdated == nil || !out.FirstUpdated.Equal(first) {
		t.Fatalf("first_updated not preserved: %v", out.FirstUpdated)
	}
	if prev.CheckCount != 2 {
		t.Fatalf("Apply mutated prev")
	}

	later := now.Add(days(400))
	if d := p.Evaluate(out, domain.CatalogRecord{ID: "7"}, later, true); d.Process {
		t.Fatalf("exhausted record should never be fetched again")
	}
}

func TestApply_FirstMissStartsCounting(t *testing.T) {
	p := NewPolicy(Windows{})
	out := p.Apply(nil, &domain.ResolvedRecord{Note: domain.NoteAmbiguous, Timestamp: now}, now)
	if out.CheckCount != 1 || out.NoMoreUpdates {
		t.Fatalf("got %+v", out)
	}
	if out.FirstUpdated == nil || !out.FirstUpdated.Equal(now) {
		t.Fatalf("first_updated = %v", out.FirstUpdated)
	}
}

func TestApply_FetchFailedKeepsBudget(t *testing.T) {
	p := NewPolicy(Windows{})
	prev := &domain.ResolvedRecord{
		Note:         domain.NoteNotFound,
		CheckCount:   1,
		FirstUpdated: at(now.Add(-days(40))),
		Timestamp:    now.Add(-days(40)),
	}
	out := p.Apply(prev, &domain.ResolvedRecord{Note: domain.NoteFetchFailed, Timestamp: now}, now)
	if out.CheckCount != 1 || out.Note != domain.NoteNotFound {
		t.Fatalf("fetch failure changed bookkeeping: %+v", out)
	}
}

func TestApply_SuccessResetsBookkeeping(t *testing.T) {
	p := NewPolicy(Windows{})
	first := now.Add(-days(90))
	prev := &domain.ResolvedRecord{Note: domain.NoteNotFound, CheckCount: 2, FirstUpdated: at(first)}
	result := &domain.ResolvedRecord{
		Scores:    map[string]float64{domain.MetricMetascore: 75},
		Timestamp: now,
	}
	out := p.Apply(prev, result, now)
	if out.CheckCount != 0 || out.NoMoreUpdates || out.Note != domain.NoteNone {
		t.Fatalf("got %+v", out)
	}
	if !out.FirstUpdated.Equal(first) {
		t.Fatalf("first_updated = %v, want %v", out.FirstUpdated, first)
	}
}

func TestApply_MissKeepsExistingScores(t *testing.T) {
	p := NewPolicy(Windows{})
	prev := &domain.ResolvedRecord{
		Scores:    map[string]float64{domain.MetricMetascore: 75},
		Timestamp: now.Add(-days(31)),
	}
	out := p.Apply(prev, &domain.ResolvedRecord{Note: domain.NoteNotFound}, now)
	if v, _ := out.Score(domain.MetricMetascore); v != 75 {
		t.Fatalf("scores dropped: %+v", out)
	}
	if !out.Timestamp.Equal(now) || out.NoteDetail == "" {
		t.Fatalf("expected refreshed timestamp and note detail, got %+v", out)
	}
}

func TestWindows_Overridable(t *testing.T) {
	p := NewPolicy(Windows{Refresh: days(7)})
	prev := &domain.ResolvedRecord{
		Scores:    map[string]float64{domain.MetricMetascore: 75},
		Timestamp: now.Add(-days(8)),
	}
	if d := p.Evaluate(prev, domain.CatalogRecord{}, now, true); !d.Process {
		t.Fatalf("custom refresh window ignored: %+v", d)
	}
	if p.Windows().Settled != days(60) {
		t.Fatalf("unset window not defaulted: %v", p.Windows().Settled)
	}
}

func TestMarkSettled(t *testing.T) {
	prev := &domain.ResolvedRecord{Name: "Halo"}
	out := MarkSettled(prev)
	if !out.NoMoreUpdates || prev.NoMoreUpdates {
		t.Fatalf("MarkSettled should flag a copy only")
	}
	if MarkSettled(nil) != nil {
		t.Fatalf("nil input should stay nil")
	}
}
