package reconcile

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kapu/game-metadata-sync-go/internal/domain"
	"github.com/kapu/game-metadata-sync-go/internal/service/resolver"
	"github.com/kapu/game-metadata-sync-go/internal/store"
)

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

type memStore struct {
	mu      sync.Mutex
	docs    map[store.Key]*domain.Checkpoint
	saves   []int
	loadErr error
	saveErr error
}

func newMemStore() *memStore {
	return &memStore{docs: make(map[store.Key]*domain.Checkpoint)}
}

func (s *memStore) Backend() string { return "memory" }

func (s *memStore) Load(_ context.Context, key store.Key) (*domain.Checkpoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loadErr != nil {
		return nil, s.loadErr
	}
	if cp, ok := s.docs[key]; ok {
		return cp, nil
	}
	return domain.NewCheckpoint(key.Provider, key.Shard), nil
}

func (s *memStore) Save(_ context.Context, key store.Key, cp *domain.Checkpoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return s.saveErr
	}
	copied := *cp
	copied.Games = make(map[string]*domain.ResolvedRecord, len(cp.Games))
	for id, rec := range cp.Games {
		copied.Games[id] = rec.Clone()
	}
	s.docs[key] = &copied
	s.saves = append(s.saves, cp.LastProcessedIndex)
	return nil
}

func (s *memStore) Reset(_ context.Context, key store.Key) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.docs, key)
	return nil
}

func (s *memStore) List(context.Context) ([]store.Key, error) { return nil, nil }
func (s *memStore) Close() error                               { return nil }

type fakeMeter struct {
	ops    int
	halted bool
}

func (m *fakeMeter) Halted() bool    { return m.halted }
func (m *fakeMeter) Operations() int { return m.ops }

// fakeResolver scores every record unless a hook overrides the result.
type fakeResolver struct {
	meter       *fakeMeter
	calls       []string
	externalIDs []string
	opsPer      int
	hook        func(rec domain.CatalogRecord) (resolver.Result, bool)
}

func (f *fakeResolver) Resolve(_ context.Context, rec domain.CatalogRecord) resolver.Result {
	f.calls = append(f.calls, rec.ID)
	f.externalIDs = append(f.externalIDs, rec.ExternalID)
	if f.meter != nil {
		f.meter.ops += f.opsPer
	}
	if f.hook != nil {
		if res, ok := f.hook(rec); ok {
			return res
		}
	}
	return resolver.Result{
		Class: domain.ClassSuccess,
		Record: &domain.ResolvedRecord{
			Name:      rec.Name,
			Scores:    map[string]float64{domain.MetricMetascore: 80},
			Timestamp: testNow,
		},
	}
}

func catalog(n int) []domain.CatalogRecord {
	out := make([]domain.CatalogRecord, n)
	for i := range out {
		out[i] = domain.CatalogRecord{ID: fmt.Sprint(i + 1), Name: fmt.Sprintf("Game %d", i+1)}
	}
	return out
}

func newTestRunner(res RecordResolver, meter *fakeMeter, st store.Store, opts Options) *Runner {
	if opts.Key.Provider == "" {
		opts.Key = store.Key{Provider: "critic"}
	}
	opts.Now = func() time.Time { return testNow }
	opts.RunID = "run-test"
	return NewRunner(res, meter, st, nil, nil, opts, zap.NewNop())
}

func TestRun_CompletesAndSavesPeriodically(t *testing.T) {
	meter := &fakeMeter{}
	res := &fakeResolver{meter: meter, opsPer: 1}
	st := newMemStore()

	summary, err := newTestRunner(res, meter, st, Options{}).Run(context.Background(), catalog(25))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Reason != StopCompleted || summary.Processed != 25 || summary.Resolved != 25 {
		t.Fatalf("summary = %+v", summary)
	}
	if len(st.saves) != 3 || st.saves[0] != 10 || st.saves[1] != 20 || st.saves[2] != 0 {
		t.Fatalf("saves at %v, want [10 20 0]", st.saves)
	}

	cp := st.docs[store.Key{Provider: "critic"}]
	if !cp.FullCycleComplete || cp.LastProcessedIndex != 0 || cp.TotalGames != 25 || cp.RunID != "run-test" {
		t.Fatalf("checkpoint = %+v", cp)
	}
	if cp.Get("1").FirstUpdated == nil {
		t.Fatalf("bookkeeping not applied")
	}
}

func TestRun_QuotaStopsAtNextUnprocessed(t *testing.T) {
	meter := &fakeMeter{}
	res := &fakeResolver{meter: meter, opsPer: 2}
	st := newMemStore()

	summary, err := newTestRunner(res, meter, st, Options{Quota: 6}).Run(context.Background(), catalog(10))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Reason != StopQuota || summary.NextIndex != 3 || len(res.calls) != 3 {
		t.Fatalf("summary = %+v, calls = %v", summary, res.calls)
	}
	if cp := st.docs[store.Key{Provider: "critic"}]; cp.LastProcessedIndex != 3 || cp.FullCycleComplete {
		t.Fatalf("checkpoint = %+v", cp)
	}
}

func TestRun_ResumesFromCheckpoint(t *testing.T) {
	meter := &fakeMeter{}
	res := &fakeResolver{meter: meter}
	st := newMemStore()
	cp := domain.NewCheckpoint("critic", 0)
	cp.LastProcessedIndex = 3
	st.docs[store.Key{Provider: "critic"}] = cp

	if _, err := newTestRunner(res, meter, st, Options{}).Run(context.Background(), catalog(5)); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(res.calls) != 2 || res.calls[0] != "4" {
		t.Fatalf("calls = %v, want [4 5]", res.calls)
	}
}

func TestRun_HaltKeepsRecordForNextRun(t *testing.T) {
	meter := &fakeMeter{}
	res := &fakeResolver{meter: meter}
	res.hook = func(rec domain.CatalogRecord) (resolver.Result, bool) {
		if rec.ID != "2" {
			return resolver.Result{}, false
		}
		meter.halted = true
		return resolver.Result{
			Class:  domain.ClassBlocked,
			Record: &domain.ResolvedRecord{Name: rec.Name, Note: domain.NoteFetchFailed},
		}, true
	}
	st := newMemStore()

	summary, err := newTestRunner(res, meter, st, Options{}).Run(context.Background(), catalog(5))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Reason != StopHalted || summary.NextIndex != 1 {
		t.Fatalf("summary = %+v", summary)
	}
	cp := st.docs[store.Key{Provider: "critic"}]
	if cp.LastProcessedIndex != 1 || cp.Get("2") != nil || cp.Get("1") == nil {
		t.Fatalf("checkpoint = %+v", cp)
	}
}

func TestRun_CancellationDiscardsInFlightRecord(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	meter := &fakeMeter{}
	res := &fakeResolver{meter: meter}
	res.hook = func(rec domain.CatalogRecord) (resolver.Result, bool) {
		if rec.ID == "3" {
			cancel()
		}
		return resolver.Result{}, false
	}
	st := newMemStore()

	summary, err := newTestRunner(res, meter, st, Options{}).Run(ctx, catalog(5))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Reason != StopCancelled || summary.NextIndex != 2 {
		t.Fatalf("summary = %+v", summary)
	}
	cp := st.docs[store.Key{Provider: "critic"}]
	if cp == nil || cp.Get("3") != nil || cp.LastProcessedIndex != 2 {
		t.Fatalf("checkpoint = %+v", cp)
	}
}

func TestRun_StoreWriteFailureAborts(t *testing.T) {
	meter := &fakeMeter{}
	res := &fakeResolver{meter: meter}
	st := newMemStore()
	st.saveErr = fmt.Errorf("disk full")

	_, err := newTestRunner(res, meter, st, Options{SaveEvery: 2}).Run(context.Background(), catalog(5))
	if err == nil {
		t.Fatalf("expected store error")
	}
	if len(res.calls) != 2 {
		t.Fatalf("run continued after the failed save: %v", res.calls)
	}
}

func TestRun_LoadFailureStartsEmpty(t *testing.T) {
	meter := &fakeMeter{}
	res := &fakeResolver{meter: meter}
	st := newMemStore()
	st.loadErr = fmt.Errorf("corrupt")

	summary, err := newTestRunner(res, meter, st, Options{}).Run(context.Background(), catalog(3))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Processed != 3 {
		t.Fatalf("summary = %+v", summary)
	}
}

func TestRun_NoMoreUpdatesNeverFetched(t *testing.T) {
	meter := &fakeMeter{}
	res := &fakeResolver{meter: meter}
	st := newMemStore()

	cp := domain.NewCheckpoint("critic", 0)
	cp.Put("2", &domain.ResolvedRecord{Name: "Game 2", Note: domain.NoteNotFound, CheckCount: 3, NoMoreUpdates: true})
	settledRelease := testNow.Add(-90 * 24 * time.Hour)
	cp.Put("3", &domain.ResolvedRecord{
		Name:      "Game 3",
		Scores:    map[string]float64{domain.MetricMetascore: 70},
		Timestamp: testNow.Add(-40 * 24 * time.Hour),
	})
	cp.FullCycleComplete = true
	st.docs[store.Key{Provider: "critic"}] = cp

	records := catalog(3)
	records[2].ReleaseDate = &settledRelease

	summary, err := newTestRunner(res, meter, st, Options{}).Run(context.Background(), records)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(res.calls) != 1 || res.calls[0] != "1" {
		t.Fatalf("calls = %v, want [1]", res.calls)
	}
	if summary.Skipped != 2 {
		t.Fatalf("skipped = %d, want 2", summary.Skipped)
	}
	if !st.docs[store.Key{Provider: "critic"}].Get("3").NoMoreUpdates {
		t.Fatalf("settled record not flagged")
	}
}

func TestRun_CarriesKnownExternalID(t *testing.T) {
	meter := &fakeMeter{}
	res := &fakeResolver{meter: meter}
	res.hook = func(rec domain.CatalogRecord) (resolver.Result, bool) {
		return resolver.Result{
			Class:  domain.ClassNotFound,
			Record: &domain.ResolvedRecord{Name: rec.Name, Note: domain.NoteNotFound},
		}, true
	}
	st := newMemStore()
	cp := domain.NewCheckpoint("critic", 0)
	cp.Put("1", &domain.ResolvedRecord{Name: "Game 1", ExternalID: "game-1", Note: domain.NoteFetchFailed})
	st.docs[store.Key{Provider: "critic"}] = cp

	if _, err := newTestRunner(res, meter, st, Options{}).Run(context.Background(), catalog(1)); err != nil {
		t.Fatalf("Run: %v", err)
	}
	got := st.docs[store.Key{Provider: "critic"}].Get("1")
	if got.ExternalID != "game-1" || got.CheckCount != 1 {
		t.Fatalf("record = %+v", got)
	}
}

func TestRun_PassesStoredExternalIDToResolver(t *testing.T) {
	meter := &fakeMeter{}
	res := &fakeResolver{meter: meter}
	st := newMemStore()
	cp := domain.NewCheckpoint("critic", 0)
	stale := testNow.Add(-90 * 24 * time.Hour)
	cp.Put("1", &domain.ResolvedRecord{
		Name:         "Game 1",
		ExternalID:   "game-1",
		Scores:       map[string]float64{domain.MetricMetascore: 70},
		Timestamp:    stale,
		FirstUpdated: &stale,
	})
	cp.FullCycleComplete = true
	st.docs[store.Key{Provider: "critic"}] = cp

	if _, err := newTestRunner(res, meter, st, Options{}).Run(context.Background(), catalog(1)); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(res.externalIDs) != 1 || res.externalIDs[0] != "game-1" {
		t.Fatalf("resolver saw external ids %q, want [game-1]", res.externalIDs)
	}
}

func TestRun_ShardCompletionEnablesRecheckWindows(t *testing.T) {
	meter := &fakeMeter{}
	res := &fakeResolver{meter: meter}
	res.hook = func(rec domain.CatalogRecord) (resolver.Result, bool) {
		return resolver.Result{
			Class:  domain.ClassNotFound,
			Record: &domain.ResolvedRecord{Name: rec.Name, Note: domain.NoteNotFound, Timestamp: testNow},
		}, true
	}
	st := newMemStore()
	key := store.Key{Provider: "critic", Shard: 1}

	for run := 0; run < 3; run++ {
		now := testNow.Add(time.Duration(run) * time.Hour)
		r := NewRunner(res, meter, st, nil, nil, Options{
			Key:   key,
			Start: 2,
			End:   4,
			RunID: fmt.Sprintf("run-%d", run),
			Now:   func() time.Time { return now },
		}, zap.NewNop())
		summary, err := r.Run(context.Background(), catalog(6))
		if err != nil {
			t.Fatalf("run %d: %v", run, err)
		}
		if summary.Reason != StopCompleted || !summary.FullCycle {
			t.Fatalf("run %d summary = %+v", run, summary)
		}
	}

	if len(res.calls) != 2 || res.calls[0] != "3" || res.calls[1] != "4" {
		t.Fatalf("resolver calls = %v, want [3 4] once", res.calls)
	}
	cp := st.docs[key]
	if !cp.FullCycleComplete {
		t.Fatalf("shard checkpoint never completed its cycle")
	}
	for _, id := range []string{"3", "4"} {
		got := cp.Get(id)
		if got.CheckCount != 1 || got.NoMoreUpdates {
			t.Fatalf("record %s = %+v, want one check and still eligible", id, got)
		}
	}
	if cp.Get("1") != nil || cp.Get("5") != nil {
		t.Fatalf("records outside the shard were touched")
	}
}

func TestRun_SkippedByOverride(t *testing.T) {
	meter := &fakeMeter{}
	res := &fakeResolver{meter: meter}
	res.hook = func(rec domain.CatalogRecord) (resolver.Result, bool) {
		return resolver.Result{Skipped: true}, true
	}
	st := newMemStore()

	summary, err := newTestRunner(res, meter, st, Options{}).Run(context.Background(), catalog(2))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Skipped != 2 || len(st.docs[store.Key{Provider: "critic"}].Games) != 0 {
		t.Fatalf("summary = %+v", summary)
	}
}
