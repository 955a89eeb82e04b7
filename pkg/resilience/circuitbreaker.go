// Package resilience guards calls to remote services: a circuit breaker for
// the NCBI hosts, exponential-backoff retry for archive and link fetches, and
// a timeout wrapper for per-index reads at query time.
package resilience

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// ErrCircuitOpen is returned without calling the host while its breaker is
// open.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// State is exported as the circuit_breaker_state gauge, so the values are
// fixed.
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	}
	return "unknown"
}

// BreakerConfig tunes a Breaker. Zero values take the defaults: 5 failures
// and a 30s cooldown.
type BreakerConfig struct {
	// Threshold is the number of consecutive failures that opens the circuit.
	Threshold int
	// Cooldown is how long the circuit stays open before one trial call.
	Cooldown time.Duration
	// Counts reports whether err says the host is unhealthy. Nil counts
	// every error. An error that does not count leaves the state as it was.
	Counts func(err error) bool
	// OnChange is called under the breaker's lock and must not call back
	// into it.
	OnChange func(host string, to State)
}

// Breaker fails fast against a host that keeps failing. While open it
// rejects calls until the cooldown passes, then lets exactly one trial call
// through: success closes the circuit and failure reopens it.
type Breaker struct {
	host   string
	cfg    BreakerConfig
	logger *slog.Logger

	mu        sync.Mutex
	state     State
	failures  int
	openUntil time.Time
	trialing  bool
}

func NewBreaker(host string, cfg BreakerConfig) *Breaker {
	if cfg.Threshold <= 0 {
		cfg.Threshold = 5
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 30 * time.Second
	}
	return &Breaker{
		host:   host,
		cfg:    cfg,
		logger: slog.Default().With("component", "circuit-breaker", "host", host),
	}
}

// Do calls fn unless the circuit is open and records the outcome.
func (b *Breaker) Do(fn func() error) error {
	if err := b.admit(); err != nil {
		return err
	}
	err := fn()
	b.record(err)
	return err
}

func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

func (b *Breaker) admit() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch b.state {
	case StateOpen:
		if wait := time.Until(b.openUntil); wait > 0 {
			return fmt.Errorf("%w: %s (retry in %v)", ErrCircuitOpen, b.host, wait.Round(time.Millisecond))
		}
		b.transition(StateHalfOpen)
		b.trialing = true
	case StateHalfOpen:
		if b.trialing {
			return fmt.Errorf("%w: %s (trial call in flight)", ErrCircuitOpen, b.host)
		}
		b.trialing = true
	}
	return nil
}

func (b *Breaker) record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.trialing = false
	if err != nil && b.cfg.Counts != nil && !b.cfg.Counts(err) {
		return
	}
	if err == nil {
		b.failures = 0
		if b.state != StateClosed {
			b.transition(StateClosed)
			b.logger.Info("circuit closed")
		}
		return
	}
	b.failures++
	if b.state == StateHalfOpen || b.failures >= b.cfg.Threshold {
		b.openUntil = time.Now().Add(b.cfg.Cooldown)
		if b.state != StateOpen {
			b.transition(StateOpen)
			b.logger.Warn("circuit opened", "consecutive_failures", b.failures, "cooldown", b.cfg.Cooldown, "error", err)
		}
	}
}

func (b *Breaker) transition(to State) {
	b.state = to
	if b.cfg.OnChange != nil {
		b.cfg.OnChange(b.host, to)
	}
}
