package network

import (
	"testing"
	"time"
)

func TestCircuitBreaker_OpensAfterThreshold(t *testing.T) {
	b := NewCircuitBreaker(CircuitConfig{FailureThreshold: 3, Window: time.Second, Cooldown: time.Minute, SuccessThreshold: 1})
	now := time.Now()
	for i := 0; i < 2; i++ {
		b.RecordFailure(now)
		if !b.Allow(now) {
			t.Fatalf("expected breaker to stay closed after %d failures", i+1)
		}
	}
	b.RecordFailure(now)
	if b.Allow(now) {
		t.Fatal("expected breaker to open after 3 consecutive failures")
	}
}

func TestCircuitBreaker_ResetsStreakOutsideWindow(t *testing.T) {
	b := NewCircuitBreaker(CircuitConfig{FailureThreshold: 2, Window: time.Millisecond, Cooldown: time.Minute, SuccessThreshold: 1})
	base := time.Now()
	b.RecordFailure(base)
	b.RecordFailure(base.Add(time.Second)) // well past the window, streak resets to 1
	if b.Allow(base) == false {
		t.Fatal("expected breaker to remain closed since failures were not consecutive within the window")
	}
}

func TestCircuitBreaker_HalfOpensAfterCooldown(t *testing.T) {
	b := NewCircuitBreaker(CircuitConfig{FailureThreshold: 1, Window: time.Second, Cooldown: 10 * time.Millisecond, SuccessThreshold: 1})
	now := time.Now()
	b.RecordFailure(now)
	if b.Allow(now) {
		t.Fatal("expected breaker to be open immediately after tripping")
	}
	later := now.Add(20 * time.Millisecond)
	if !b.Allow(later) {
		t.Fatal("expected breaker to half-open after cooldown elapses")
	}
}

func TestCircuitBreaker_ClosesAfterSuccessThreshold(t *testing.T) {
	b := NewCircuitBreaker(CircuitConfig{FailureThreshold: 1, Window: time.Second, Cooldown: time.Millisecond, SuccessThreshold: 2})
	now := time.Now()
	b.RecordFailure(now)
	later := now.Add(10 * time.Millisecond)
	if !b.Allow(later) {
		t.Fatal("expected half-open probe to be allowed")
	}
	b.RecordSuccess(later)
	if b.State() != "half_open" {
		t.Fatalf("expected still half-open after one success, got %s", b.State())
	}
	b.RecordSuccess(later)
	if b.State() != "closed" {
		t.Fatalf("expected closed after success threshold met, got %s", b.State())
	}
}

func TestCircuitBreaker_HalfOpenFailureReopens(t *testing.T) {
	b := NewCircuitBreaker(CircuitConfig{FailureThreshold: 1, Window: time.Second, Cooldown: time.Millisecond, SuccessThreshold: 1})
	now := time.Now()
	b.RecordFailure(now)
	later := now.Add(10 * time.Millisecond)
	b.Allow(later) // transitions to half-open
	b.RecordFailure(later)
	if b.State() != "open" {
		t.Fatalf("expected reopen on half-open failure, got %s", b.State())
	}
}
