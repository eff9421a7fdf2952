package fetch

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"github.com/kapu/game-metadata-sync-go/internal/domain"
	"go.uber.org/zap"
)

type scriptedStep struct {
	resp *Response
	err  error
}

type fakeFetcher struct {
	steps    []scriptedStep
	fallback scriptedStep
	calls    int
	timeouts []time.Duration
}

func (f *fakeFetcher) Fetch(_ context.Context, _ string, timeout time.Duration) (*Response, error) {
	f.timeouts = append(f.timeouts, timeout)
	step := f.fallback
	if f.calls < len(f.steps) {
		step = f.steps[f.calls]
	}
	f.calls++
	return step.resp, step.err
}

type fakeClock struct {
	now    time.Time
	sleeps []time.Duration
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.sleeps = append(c.sleeps, d)
	c.now = c.now.Add(d)
	return nil
}

func okPage() scriptedStep {
	return scriptedStep{resp: &Response{Status: 200, Body: []byte("<html><title>Game</title>content</html>")}}
}

func blockedPage() scriptedStep {
	return scriptedStep{resp: &Response{Status: 200, Body: []byte("<html>Access Denied</html>")}}
}

func newTestController(f Fetcher, clock *fakeClock, opts Options) *Controller {
	opts.Sleep = clock.Sleep
	opts.Now = clock.Now
	opts.Rand = rand.New(rand.NewSource(7))
	return NewController(f, opts, zap.NewNop())
}

func within(d time.Duration, lo, hi time.Duration) bool {
	return d >= lo && d <= hi
}

func TestControllerSuccess(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	f := &fakeFetcher{fallback: okPage()}
	c := newTestController(f, clock, Options{})

	out := c.Do(context.Background(), Operation{Kind: OpSearch, URL: "https://example.test/search/halo"})
	if !out.OK() || out.Attempts != 1 || out.Err != nil {
		t.Fatalf("unexpected outcome: %+v", out)
	}
	if len(clock.sleeps) != 1 || !within(clock.sleeps[0], 3*time.Second, 7*time.Second) {
		t.Fatalf("expected one politeness delay in [3s,7s], got %v", clock.sleeps)
	}
	if c.Operations() != 1 {
		t.Fatalf("expected 1 operation, got %d", c.Operations())
	}
}

func TestControllerBlockEscalates(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	f := &fakeFetcher{fallback: blockedPage()}
	c := newTestController(f, clock, Options{})

	out := c.Do(context.Background(), Operation{Kind: OpDetail, URL: "https://example.test/game/halo"})
	if out.Class != domain.ClassBlocked {
		t.Fatalf("expected blocked, got %s", out.Class)
	}
	if out.Attempts != 3 || f.calls != 3 {
		t.Fatalf("expected 3 attempts, got %d (calls %d)", out.Attempts, f.calls)
	}
	if out.Err == nil {
		t.Fatalf("expected informational error on give-up")
	}

	// politeness, escalation, politeness, escalation, politeness; nothing after the last fetch
	if len(clock.sleeps) != 5 {
		t.Fatalf("expected 5 sleeps, got %v", clock.sleeps)
	}
	if !within(clock.sleeps[1], 15*time.Second, 18*time.Second) {
		t.Fatalf("first escalation %v outside [15s,18s]", clock.sleeps[1])
	}
	if !within(clock.sleeps[3], 65*time.Second, 70*time.Second) {
		t.Fatalf("second escalation %v outside [65s,70s]", clock.sleeps[3])
	}
	if !within(clock.sleeps[4], 3*time.Second, 7*time.Second) {
		t.Fatalf("last sleep %v should be the politeness delay before the final attempt", clock.sleeps[4])
	}
	if c.EscalationLevel() != 2 {
		t.Fatalf("expected sticky escalation level 2, got %d", c.EscalationLevel())
	}
}

func TestControllerNoBackoffAfterFinalDefenseAttempt(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	f := &fakeFetcher{fallback: blockedPage()}
	c := newTestController(f, clock, Options{MaxAttempts: 1})

	out := c.Do(context.Background(), Operation{Kind: OpSearch, URL: "u"})
	if out.Class != domain.ClassBlocked || out.Attempts != 1 {
		t.Fatalf("expected one blocked attempt, got %+v", out)
	}
	for _, d := range clock.sleeps {
		if d > 7*time.Second {
			t.Fatalf("slept %v after the only attempt; sleeps %v", d, clock.sleeps)
		}
	}
	if c.EscalationLevel() != 0 {
		t.Fatalf("escalation raised without a retry, got %d", c.EscalationLevel())
	}
}

func TestControllerEscalationResetsOnSuccess(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	f := &fakeFetcher{steps: []scriptedStep{blockedPage(), okPage()}, fallback: okPage()}
	c := newTestController(f, clock, Options{})

	out := c.Do(context.Background(), Operation{Kind: OpSearch, URL: "u"})
	if !out.OK() || out.Attempts != 2 {
		t.Fatalf("expected success on second attempt, got %+v", out)
	}
	if c.EscalationLevel() != 0 {
		t.Fatalf("expected escalation reset, got %d", c.EscalationLevel())
	}
}

func TestControllerTimeoutsGrow(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	f := &fakeFetcher{fallback: scriptedStep{err: context.DeadlineExceeded}}
	c := newTestController(f, clock, Options{MaxAttempts: 5})

	out := c.Do(context.Background(), Operation{Kind: OpSearch, URL: "u"})
	if out.Class != domain.ClassTimeout || out.Attempts != 5 {
		t.Fatalf("expected timeout after 5 attempts, got %+v", out)
	}

	want := []time.Duration{20 * time.Second, 30 * time.Second, 45 * time.Second, 60 * time.Second, 75 * time.Second}
	for i, d := range want {
		if f.timeouts[i] != d {
			t.Fatalf("attempt %d timeout = %v, want %v", i+1, f.timeouts[i], d)
		}
	}
	if c.Halted() {
		t.Fatalf("timeouts must not trip the defense breaker")
	}
}

func TestControllerAttemptsClamped(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	f := &fakeFetcher{fallback: scriptedStep{err: context.DeadlineExceeded}}
	c := newTestController(f, clock, Options{MaxAttempts: 12})

	out := c.Do(context.Background(), Operation{Kind: OpSearch, URL: "u"})
	if out.Attempts != 5 {
		t.Fatalf("expected attempts clamped to 5, got %d", out.Attempts)
	}
}

func TestControllerNotFoundIsTerminal(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	f := &fakeFetcher{fallback: scriptedStep{resp: &Response{Status: 404}}}
	c := newTestController(f, clock, Options{})

	out := c.Do(context.Background(), Operation{Kind: OpDetail, URL: "u"})
	if out.Class != domain.ClassNotFound || out.Attempts != 1 {
		t.Fatalf("expected a single not-found attempt, got %+v", out)
	}
}

func TestControllerHaltsAfterConsecutiveDefenses(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	f := &fakeFetcher{fallback: blockedPage()}
	c := newTestController(f, clock, Options{BreakerThreshold: 3})

	for i := 0; i < 3; i++ {
		if c.Halted() {
			t.Fatalf("halted too early after %d operations", i)
		}
		c.Do(context.Background(), Operation{Kind: OpSearch, URL: "u"})
	}
	if !c.Halted() {
		t.Fatalf("expected halt after 3 consecutive defense give-ups")
	}

	calls := f.calls
	out := c.Do(context.Background(), Operation{Kind: OpSearch, URL: "u"})
	if out.Class != domain.ClassBlocked || f.calls != calls {
		t.Fatalf("halted controller must not fetch, got %+v (calls %d -> %d)", out, calls, f.calls)
	}
}

func TestControllerCancelled(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	f := &fakeFetcher{fallback: okPage()}
	c := newTestController(f, clock, Options{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out := c.Do(ctx, Operation{Kind: OpSearch, URL: "u"})
	if out.OK() || out.Err == nil || f.calls != 0 {
		t.Fatalf("expected cancelled outcome without fetching, got %+v", out)
	}
}

func TestControllerLongBreaks(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	f := &fakeFetcher{fallback: okPage()}
	c := newTestController(f, clock, Options{})

	for i := 0; i < 250; i++ {
		c.Do(context.Background(), Operation{Kind: OpSearch, URL: "u"})
	}

	breaks := 0
	for _, d := range clock.sleeps {
		if within(d, 40*time.Second, 80*time.Second) {
			breaks++
		}
	}
	if breaks == 0 {
		t.Fatalf("expected at least one long break over %v of activity", clock.now.Sub(time.Unix(1_700_000_000, 0)))
	}
}
