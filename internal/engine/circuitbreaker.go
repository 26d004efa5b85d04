package engine

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Breaker states.
const (
	StateClosed   = "closed"
	StateOpen     = "open"
	StateHalfOpen = "half-open"
)

// CircuitBreaker tracks the health of outbound dependencies in Redis so every
// replica sees the same state. A dependency that fails threshold times in a
// row is skipped until cooldown has passed, then one probe is let through.
type CircuitBreaker struct {
	client    *redis.Client
	logger    *slog.Logger
	threshold int
	cooldown  time.Duration
	now       func() time.Time
}

// BreakerState is a snapshot of one dependency's circuit.
type BreakerState struct {
	State        string `json:"state"`
	Failures     int    `json:"failures"`
	LastFailedAt string `json:"last_failed_at,omitempty"`
}

func NewCircuitBreaker(client *redis.Client, threshold int, cooldown time.Duration, logger *slog.Logger) *CircuitBreaker {
	if threshold <= 0 {
		threshold = 5
	}
	if cooldown <= 0 {
		cooldown = 30 * time.Second
	}
	return &CircuitBreaker{
		client:    client,
		logger:    logger,
		threshold: threshold,
		cooldown:  cooldown,
		now:       time.Now,
	}
}

func breakerKey(dependency string) string {
	return "breaker:" + dependency
}

// Allow reports whether a call to the dependency should be attempted. Redis
// errors keep the circuit closed.
func (cb *CircuitBreaker) Allow(ctx context.Context, dependency string) bool {
	key := breakerKey(dependency)
	data, err := cb.client.HGetAll(ctx, key).Result()
	if err != nil || len(data) == 0 {
		return true
	}

	switch data["state"] {
	case StateOpen:
		lastFailedAt, _ := strconv.ParseInt(data["last_failed_at"], 10, 64)
		if cb.now().Unix()-lastFailedAt < int64(cb.cooldown.Seconds()) {
			return false
		}
	case StateHalfOpen:
	default:
		return true
	}

	// One probe at a time. The probe key expires so a lost probe does not
	// wedge the circuit half-open.
	acquired, err := cb.client.HSetNX(ctx, key+":probe", "at", cb.now().Unix()).Result()
	if err != nil || !acquired {
		return false
	}
	cb.client.Expire(ctx, key+":probe", cb.cooldown)
	cb.client.HSet(ctx, key, "state", StateHalfOpen)
	cb.logger.Info("circuit half-open", "dependency", dependency)
	return true
}

// Success closes the circuit.
func (cb *CircuitBreaker) Success(ctx context.Context, dependency string) {
	key := breakerKey(dependency)
	prev, _ := cb.client.HGet(ctx, key, "state").Result()

	pipe := cb.client.TxPipeline()
	pipe.HSet(ctx, key, "state", StateClosed, "failures", 0)
	pipe.Del(ctx, key+":probe")
	if _, err := pipe.Exec(ctx); err != nil {
		cb.logger.Error("failed to reset circuit", "dependency", dependency, "error", err)
		return
	}
	if prev == StateHalfOpen {
		cb.logger.Info("circuit closed", "dependency", dependency)
	}
}

// Failure counts a failed call and opens the circuit once the threshold is
// reached. A failed half-open probe reopens it immediately.
func (cb *CircuitBreaker) Failure(ctx context.Context, dependency string) {
	key := breakerKey(dependency)

	failures, err := cb.client.HIncrBy(ctx, key, "failures", 1).Result()
	if err != nil {
		cb.logger.Error("failed to record circuit failure", "dependency", dependency, "error", err)
		return
	}
	cb.client.HSet(ctx, key, "last_failed_at", cb.now().Unix())

	state, _ := cb.client.HGet(ctx, key, "state").Result()
	switch {
	case state == StateHalfOpen:
		cb.client.HSet(ctx, key, "state", StateOpen)
		cb.client.Del(ctx, key+":probe")
		cb.logger.Warn("circuit reopened", "dependency", dependency)
	case failures >= int64(cb.threshold) && state != StateOpen:
		cb.client.HSet(ctx, key, "state", StateOpen)
		cb.logger.Warn("circuit opened",
			"dependency", dependency,
			"failures", failures,
			"threshold", cb.threshold,
		)
	case state == "":
		cb.client.HSet(ctx, key, "state", StateClosed)
	}
}

// State returns the circuit as callers would currently see it.
func (cb *CircuitBreaker) State(ctx context.Context, dependency string) BreakerState {
	data, err := cb.client.HGetAll(ctx, breakerKey(dependency)).Result()
	if err != nil || len(data) == 0 {
		return BreakerState{State: StateClosed}
	}

	failures, _ := strconv.Atoi(data["failures"])
	out := BreakerState{State: data["state"], Failures: failures}
	if out.State == "" {
		out.State = StateClosed
	}

	lastFailedAt, _ := strconv.ParseInt(data["last_failed_at"], 10, 64)
	if lastFailedAt > 0 {
		out.LastFailedAt = time.Unix(lastFailedAt, 0).UTC().Format(time.RFC3339)
		if out.State == StateOpen && cb.now().Unix()-lastFailedAt >= int64(cb.cooldown.Seconds()) {
			out.State = StateHalfOpen
		}
	}
	return out
}
