package guard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// CircuitState represents the state of a circuit breaker.
type CircuitState int

const (
	CircuitClosed CircuitState = iota
	CircuitOpen
	CircuitHalfOpen
)

// CircuitBreaker implements a per-key circuit breaker.
type CircuitBreaker struct {
	mu            sync.Mutex
	circuits      map[string]*circuit
	failThreshold int
	resetTimeout  time.Duration
	halfOpenMax   int
	now           func() time.Time
}

type circuit struct {
	state       CircuitState
	failures    int
	successes   int
	trialOut    bool
	lastFailure time.Time
}

// NewCircuitBreaker creates a circuit breaker with configurable thresholds.
func NewCircuitBreaker(failThreshold int, resetTimeout time.Duration) *CircuitBreaker {
	return &CircuitBreaker{
		circuits:      make(map[string]*circuit),
		failThreshold: failThreshold,
		resetTimeout:  resetTimeout,
		halfOpenMax:   1,
		now:           time.Now,
	}
}

// Check returns whether the circuit for the given key allows a request.
func (cb *CircuitBreaker) Check(_ context.Context, key string) Result {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	c, ok := cb.circuits[key]
	if !ok {
		cb.circuits[key] = &circuit{state: CircuitClosed}
		return Result{Allowed: true}
	}

	switch c.state {
	case CircuitOpen:
		since := cb.now().Sub(c.lastFailure)
		if since > cb.resetTimeout {
			c.state = CircuitHalfOpen
			c.successes = 0
			c.trialOut = true
			return Result{Allowed: true}
		}
		return Result{
			Allowed: false,
			Reason:  fmt.Sprintf("circuit open for %s, resets in %s", key, cb.resetTimeout-since),
			Guard:   "circuit_breaker",
		}
	case CircuitHalfOpen:
		if c.trialOut || c.successes >= cb.halfOpenMax {
			return Result{
				Allowed: false,
				Reason:  "circuit half-open, trial request in flight",
				Guard:   "circuit_breaker",
			}
		}
		c.trialOut = true
		return Result{Allowed: true}
	default:
		return Result{Allowed: true}
	}
}

// State reports the current state for key.
func (cb *CircuitBreaker) State(key string) CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if c, ok := cb.circuits[key]; ok {
		return c.state
	}
	return CircuitClosed
}

// RecordSuccess marks a successful execution for the given key.
func (cb *CircuitBreaker) RecordSuccess(key string) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	c, ok := cb.circuits[key]
	if !ok {
		return
	}

	c.trialOut = false
	switch c.state {
	case CircuitHalfOpen:
		c.successes++
		if c.successes >= cb.halfOpenMax {
			c.state = CircuitClosed
			c.failures = 0
		}
	case CircuitClosed:
		c.failures = 0
	}
}

// RecordFailure marks a failed execution for the given key.
func (cb *CircuitBreaker) RecordFailure(key string) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	c, ok := cb.circuits[key]
	if !ok {
		c = &circuit{state: CircuitClosed}
		cb.circuits[key] = c
	}

	c.trialOut = false
	c.failures++
	c.lastFailure = cb.now()

	if c.state == CircuitHalfOpen || c.failures >= cb.failThreshold {
		c.state = CircuitOpen
	}
}

// ErrCircuitOpen is returned by BreakingPublisher while a topic's circuit is open.
var ErrCircuitOpen = errors.New("circuit open")

// Publisher matches infra.KafkaProducer.Publish.
type Publisher interface {
	Publish(ctx context.Context, topic string, key, value []byte) error
}

// BreakingPublisher stops calling a failing broker for a topic until the reset
// timeout has passed.
type BreakingPublisher struct {
	next    Publisher
	breaker *CircuitBreaker
	logger  *slog.Logger
}

// NewBreakingPublisher wraps next with breaker, keyed by topic.
func NewBreakingPublisher(next Publisher, breaker *CircuitBreaker, logger *slog.Logger) *BreakingPublisher {
	return &BreakingPublisher{next: next, breaker: breaker, logger: logger}
}

// Publish forwards to the wrapped publisher unless the topic's circuit is open.
func (p *BreakingPublisher) Publish(ctx context.Context, topic string, key, value []byte) error {
	if res := p.breaker.Check(ctx, topic); !res.Allowed {
		return fmt.Errorf("%w: %s", ErrCircuitOpen, res.Reason)
	}
	if err := p.next.Publish(ctx, topic, key, value); err != nil {
		p.breaker.RecordFailure(topic)
		if p.breaker.State(topic) == CircuitOpen {
			p.logger.Warn("event publishing suspended", "topic", topic, "error", err)
		}
		return err
	}
	p.breaker.RecordSuccess(topic)
	return nil
}
