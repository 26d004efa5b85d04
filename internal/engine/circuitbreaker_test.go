package engine

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func setupTestCB(t *testing.T) (*CircuitBreaker, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	return NewCircuitBreaker(client, 3, 30*time.Second, logger), mr
}

func tripBreaker(cb *CircuitBreaker, dependency string) {
	for i := 0; i < cb.threshold; i++ {
		cb.Failure(context.Background(), dependency)
	}
}

func TestCircuitBreaker_ClosedByDefault(t *testing.T) {
	cb, _ := setupTestCB(t)
	ctx := context.Background()

	if !cb.Allow(ctx, "pwned") {
		t.Error("unknown dependency should be allowed")
	}
	if got := cb.State(ctx, "pwned"); got.State != StateClosed || got.Failures != 0 {
		t.Errorf("unexpected default state %+v", got)
	}
}

func TestCircuitBreaker_OpensAtThreshold(t *testing.T) {
	cb, _ := setupTestCB(t)
	ctx := context.Background()

	cb.Failure(ctx, "pwned")
	cb.Failure(ctx, "pwned")
	if !cb.Allow(ctx, "pwned") {
		t.Fatal("circuit should stay closed below the threshold")
	}

	cb.Failure(ctx, "pwned")
	if cb.Allow(ctx, "pwned") {
		t.Error("circuit should be open after reaching the threshold")
	}
	state := cb.State(ctx, "pwned")
	if state.State != StateOpen || state.Failures != 3 {
		t.Errorf("expected open with 3 failures, got %+v", state)
	}
	if state.LastFailedAt == "" {
		t.Error("expected last_failed_at to be set")
	}
}

func TestCircuitBreaker_SuccessResets(t *testing.T) {
	cb, _ := setupTestCB(t)
	ctx := context.Background()

	cb.Failure(ctx, "pwned")
	cb.Failure(ctx, "pwned")
	cb.Success(ctx, "pwned")
	cb.Failure(ctx, "pwned")

	if !cb.Allow(ctx, "pwned") {
		t.Error("a success should reset the failure count")
	}
}

func TestCircuitBreaker_SingleProbeAfterCooldown(t *testing.T) {
	cb, _ := setupTestCB(t)
	ctx := context.Background()
	tripBreaker(cb, "pwned")

	cb.now = func() time.Time { return time.Now().Add(31 * time.Second) }

	if !cb.Allow(ctx, "pwned") {
		t.Fatal("first call after cooldown should be allowed as a probe")
	}
	if cb.Allow(ctx, "pwned") {
		t.Error("only one probe should be let through")
	}
	if got := cb.State(ctx, "pwned").State; got != StateHalfOpen {
		t.Errorf("expected half-open, got %q", got)
	}

	cb.Success(ctx, "pwned")
	if got := cb.State(ctx, "pwned").State; got != StateClosed {
		t.Errorf("expected closed after a successful probe, got %q", got)
	}
	if !cb.Allow(ctx, "pwned") {
		t.Error("closed circuit should allow calls")
	}
}

func TestCircuitBreaker_FailedProbeReopens(t *testing.T) {
	cb, _ := setupTestCB(t)
	ctx := context.Background()
	tripBreaker(cb, "pwned")

	later := time.Now().Add(31 * time.Second)
	cb.now = func() time.Time { return later }
	if !cb.Allow(ctx, "pwned") {
		t.Fatal("expected a probe after cooldown")
	}

	cb.Failure(ctx, "pwned")
	if got := cb.State(ctx, "pwned").State; got != StateOpen {
		t.Errorf("expected open after failed probe, got %q", got)
	}
	if cb.Allow(ctx, "pwned") {
		t.Error("reopened circuit should reject calls until the next cooldown")
	}
}

func TestCircuitBreaker_DependenciesAreIsolated(t *testing.T) {
	cb, _ := setupTestCB(t)
	ctx := context.Background()
	tripBreaker(cb, "pwned")

	if !cb.Allow(ctx, "webhook") {
		t.Error("an open circuit for one dependency must not affect another")
	}
}

func TestCircuitBreaker_RedisDownAllows(t *testing.T) {
	cb, mr := setupTestCB(t)
	mr.Close()

	if !cb.Allow(context.Background(), "pwned") {
		t.Error("breaker should allow calls when redis is unavailable")
	}
}
