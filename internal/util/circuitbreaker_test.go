package util

import (
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestCircuitBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	cb := NewCircuitBreaker(3, time.Minute, zap.NewNop()).WithClock(func() time.Time { return now })

	cb.RecordFailure(0)
	cb.RecordFailure(0)
	if !cb.CanExecute() {
		t.Fatalf("expected circuit to stay closed below threshold")
	}

	cb.RecordFailure(0)
	if cb.CanExecute() {
		t.Fatalf("expected circuit to open at threshold")
	}

	status := cb.GetStatus()
	if status.State != CircuitStateOpen || status.NextRetryTime == nil {
		t.Fatalf("unexpected status: %+v", status)
	}

	now = now.Add(2 * time.Minute)
	if got := cb.GetState(); got != CircuitStateHalfOpen {
		t.Fatalf("expected HALF_OPEN after reset timeout, got %s", got)
	}

	cb.RecordSuccess()
	if got := cb.GetState(); got != CircuitStateClosed {
		t.Fatalf("expected CLOSED after recovery, got %s", got)
	}
}

func TestCircuitBreakerSuccessResetsCount(t *testing.T) {
	cb := NewCircuitBreaker(2, 0, nil)

	cb.RecordFailure(0)
	cb.RecordSuccess()
	cb.RecordFailure(0)

	if !cb.CanExecute() {
		t.Fatalf("non-consecutive failures must not open the circuit")
	}
}

func TestCircuitBreakerWithoutResetTimeoutStaysOpen(t *testing.T) {
	cb := NewCircuitBreaker(1, 0, nil)
	cb.RecordFailure(0)

	if cb.CanExecute() {
		t.Fatalf("expected open circuit")
	}
	cb.Reset()
	if !cb.CanExecute() {
		t.Fatalf("expected manual reset to close the circuit")
	}
}
