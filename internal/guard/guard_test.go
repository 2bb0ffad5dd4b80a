package guard

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time { return c.t }

func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)}
}

func TestRateLimiter_AllowsUnderLimit(t *testing.T) {
	rl := NewRateLimiter(3, time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		result := rl.Check(ctx, "admin-1")
		assert.True(t, result.Allowed, "request %d should be allowed", i+1)
	}
}

func TestRateLimiter_BlocksOverLimit(t *testing.T) {
	rl := NewRateLimiter(2, time.Minute)
	ctx := context.Background()

	rl.Check(ctx, "admin-1")
	rl.Check(ctx, "admin-1")
	result := rl.Check(ctx, "admin-1")

	assert.False(t, result.Allowed)
	assert.Equal(t, "rate_limiter", result.Guard)
}

func TestRateLimiter_WindowSlides(t *testing.T) {
	clock := newClock()
	rl := NewRateLimiter(1, time.Minute)
	rl.now = clock.now
	ctx := context.Background()

	require.True(t, rl.Check(ctx, "admin-1").Allowed)
	require.False(t, rl.Check(ctx, "admin-1").Allowed)

	clock.advance(61 * time.Second)
	assert.True(t, rl.Check(ctx, "admin-1").Allowed)
}

func TestRateLimiter_SeparateKeys(t *testing.T) {
	rl := NewRateLimiter(1, time.Minute)
	ctx := context.Background()

	r1 := rl.Check(ctx, "admin-1")
	r2 := rl.Check(ctx, "admin-2")

	assert.True(t, r1.Allowed)
	assert.True(t, r2.Allowed)
}

func TestCircuitBreaker_ClosedByDefault(t *testing.T) {
	cb := NewCircuitBreaker(3, 5*time.Second)
	ctx := context.Background()

	result := cb.Check(ctx, "rebates")
	assert.True(t, result.Allowed)
	assert.Equal(t, CircuitClosed, cb.State("rebates"))
}

func TestCircuitBreaker_OpensOnThreshold(t *testing.T) {
	cb := NewCircuitBreaker(2, 5*time.Second)
	ctx := context.Background()

	cb.Check(ctx, "rebates")
	cb.RecordFailure("rebates")
	cb.RecordFailure("rebates")

	result := cb.Check(ctx, "rebates")
	assert.False(t, result.Allowed)
	assert.Equal(t, "circuit_breaker", result.Guard)
}

func TestCircuitBreaker_SuccessResets(t *testing.T) {
	cb := NewCircuitBreaker(2, 5*time.Second)
	ctx := context.Background()

	cb.Check(ctx, "rebates")
	cb.RecordFailure("rebates")
	cb.RecordSuccess("rebates")
	cb.RecordFailure("rebates")

	result := cb.Check(ctx, "rebates")
	assert.True(t, result.Allowed)
}

func TestCircuitBreaker_HalfOpenTrial(t *testing.T) {
	clock := newClock()
	cb := NewCircuitBreaker(1, 5*time.Second)
	cb.now = clock.now
	ctx := context.Background()

	cb.RecordFailure("rebates")
	require.Equal(t, CircuitOpen, cb.State("rebates"))

	clock.advance(6 * time.Second)
	require.True(t, cb.Check(ctx, "rebates").Allowed)
	assert.Equal(t, CircuitHalfOpen, cb.State("rebates"))

	cb.RecordFailure("rebates")
	assert.Equal(t, CircuitOpen, cb.State("rebates"))

	clock.advance(6 * time.Second)
	require.True(t, cb.Check(ctx, "rebates").Allowed)
	cb.RecordSuccess("rebates")
	assert.Equal(t, CircuitClosed, cb.State("rebates"))
}

func TestCircuitBreaker_HalfOpenAdmitsSingleTrial(t *testing.T) {
	clock := newClock()
	cb := NewCircuitBreaker(1, time.Second)
	cb.now = clock.now
	ctx := context.Background()

	cb.RecordFailure("rebates")
	clock.advance(2 * time.Second)

	assert.True(t, cb.Check(ctx, "rebates").Allowed)
	second := cb.Check(ctx, "rebates")
	assert.False(t, second.Allowed)
	assert.Equal(t, "circuit_breaker", second.Guard)
	assert.False(t, cb.Check(ctx, "rebates").Allowed)

	cb.RecordSuccess("rebates")
	assert.Equal(t, CircuitClosed, cb.State("rebates"))
	assert.True(t, cb.Check(ctx, "rebates").Allowed)
	assert.True(t, cb.Check(ctx, "rebates").Allowed)
}

type flakyPublisher struct {
	calls int
	err   error
}

func (p *flakyPublisher) Publish(context.Context, string, []byte, []byte) error {
	p.calls++
	return p.err
}

func TestBreakingPublisher(t *testing.T) {
	clock := newClock()
	cb := NewCircuitBreaker(2, 30*time.Second)
	cb.now = clock.now
	next := &flakyPublisher{err: errors.New("broker unavailable")}
	pub := NewBreakingPublisher(next, cb, slog.New(slog.NewTextHandler(io.Discard, nil)))
	ctx := context.Background()

	assert.Error(t, pub.Publish(ctx, "rebates", []byte("t1"), nil))
	assert.Error(t, pub.Publish(ctx, "rebates", []byte("t2"), nil))

	err := pub.Publish(ctx, "rebates", []byte("t3"), nil)
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.Equal(t, 2, next.calls)

	next.err = nil
	clock.advance(31 * time.Second)
	require.NoError(t, pub.Publish(ctx, "rebates", []byte("t4"), nil))
	assert.Equal(t, 3, next.calls)
	assert.Equal(t, CircuitClosed, cb.State("rebates"))
}

func TestIdempotencyGuard_AllowsFirst(t *testing.T) {
	ig := NewIdempotencyGuard()
	ctx := context.Background()

	result := ig.Check(ctx, "tx-123")
	assert.True(t, result.Allowed)
}

func TestIdempotencyGuard_BlocksDuplicate(t *testing.T) {
	ig := NewIdempotencyGuard()
	ctx := context.Background()

	ig.Check(ctx, "tx-123")
	result := ig.Check(ctx, "tx-123")

	assert.False(t, result.Allowed)
	assert.Equal(t, "idempotency", result.Guard)
}

func TestIdempotencyGuard_EmptyKeyAllowed(t *testing.T) {
	ig := NewIdempotencyGuard()
	ctx := context.Background()

	r1 := ig.Check(ctx, "")
	r2 := ig.Check(ctx, "")

	assert.True(t, r1.Allowed)
	assert.True(t, r2.Allowed)
}

func TestIdempotencyGuard_RemoveAllowsRetry(t *testing.T) {
	ig := NewIdempotencyGuard()
	ctx := context.Background()

	ig.Check(ctx, "tx-456")
	ig.Remove("tx-456")

	result := ig.Check(ctx, "tx-456")
	require.True(t, result.Allowed)
}
