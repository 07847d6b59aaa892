// Package resilience keeps a failing cloud provider from stalling the device.
//
// A [CircuitBreaker] stops calling a provider after repeated failures and
// lets a trial call through once a cool-down has passed. A [FallbackGroup] puts a
// breaker in front of every configured provider of one kind and tries them
// in order, so a press still gets an answer when the primary is down.
//
// All types are safe for concurrent use.
package resilience

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrCircuitOpen is returned by [CircuitBreaker.Execute] while the breaker
// rejects calls.
var ErrCircuitOpen = errors.New("resilience: circuit open")

// State is the operating mode of a [CircuitBreaker].
type State int

const (
	// StateClosed forwards every call.
	StateClosed State = iota

	// StateOpen rejects calls with [ErrCircuitOpen] until ResetTimeout has
	// passed since the breaker tripped.
	StateOpen

	// StateHalfOpen lets up to HalfOpenMax trial calls through. One failed
	// trial re-opens the breaker; HalfOpenMax successes close it.
	StateHalfOpen
)

// String returns the name used in logs and health reports.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// CircuitBreakerConfig tunes a [CircuitBreaker]. Zero values select defaults.
type CircuitBreakerConfig struct {
	// Name labels the breaker in logs, usually the provider name.
	Name string

	// MaxFailures is the number of consecutive failures that trips the
	// breaker. Default: 3.
	MaxFailures int

	// ResetTimeout is how long the breaker stays open. Default: 30s.
	ResetTimeout time.Duration

	// HalfOpenMax is the number of trial calls admitted, and the number of
	// successes needed to close again. Default: 1.
	HalfOpenMax int

	// IsFailure decides whether an error counts against the breaker. The
	// default counts everything except context.Canceled.
	IsFailure func(error) bool

	// OnStateChange is called after every transition, outside the lock.
	OnStateChange func(name string, from, to State)

	now func() time.Time
}

// CircuitBreaker is a three-state breaker guarding one provider.
type CircuitBreaker struct {
	cfg CircuitBreakerConfig

	mu        sync.Mutex
	state     State
	gen       uint64
	failures  int
	openedAt  time.Time
	trials    int
	successes int
	pending   []transition
}

type transition struct{ from, to State }

// ticket identifies the breaker generation a call was admitted under, so a
// result arriving after a transition does not skew the new state's counters.
type ticket struct {
	gen   uint64
	trial bool
}

// NewCircuitBreaker creates a closed [CircuitBreaker].
func NewCircuitBreaker(cfg CircuitBreakerConfig) *CircuitBreaker {
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = 3
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = 30 * time.Second
	}
	if cfg.HalfOpenMax <= 0 {
		cfg.HalfOpenMax = 1
	}
	if cfg.IsFailure == nil {
		cfg.IsFailure = func(err error) bool {
			return err != nil && !errors.Is(err, context.Canceled)
		}
	}
	if cfg.now == nil {
		cfg.now = time.Now
	}
	return &CircuitBreaker{cfg: cfg}
}

// Name returns the configured label.
func (cb *CircuitBreaker) Name() string { return cb.cfg.Name }

// Execute runs fn unless the breaker is open, and records its outcome.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	t, err := cb.admit()
	if err != nil {
		return err
	}
	err = fn()
	cb.record(t, err)
	return err
}

func (cb *CircuitBreaker) admit() (ticket, error) {
	cb.mu.Lock()
	defer cb.unlock()

	if cb.state == StateOpen && cb.cfg.now().Sub(cb.openedAt) >= cb.cfg.ResetTimeout {
		cb.setLocked(StateHalfOpen)
	}
	switch cb.state {
	case StateOpen:
		return ticket{}, ErrCircuitOpen
	case StateHalfOpen:
		if cb.trials >= cb.cfg.HalfOpenMax {
			return ticket{}, ErrCircuitOpen
		}
		cb.trials++
		return ticket{gen: cb.gen, trial: true}, nil
	}
	return ticket{gen: cb.gen}, nil
}

func (cb *CircuitBreaker) record(t ticket, err error) {
	cb.mu.Lock()
	defer cb.unlock()

	if t.gen != cb.gen {
		return
	}
	failed := cb.cfg.IsFailure(err)
	if t.trial {
		switch {
		case failed:
			cb.setLocked(StateOpen)
		case err == nil:
			cb.successes++
			if cb.successes >= cb.cfg.HalfOpenMax {
				cb.setLocked(StateClosed)
			}
		default:
			cb.trials--
		}
		return
	}
	switch {
	case failed:
		cb.failures++
		if cb.failures >= cb.cfg.MaxFailures {
			cb.setLocked(StateOpen)
		}
	case err == nil:
		cb.failures = 0
	}
}

// setLocked moves to s and starts a new generation. cb.mu must be held.
func (cb *CircuitBreaker) setLocked(s State) {
	if s == StateOpen {
		cb.openedAt = cb.cfg.now()
	}
	cb.pending = append(cb.pending, transition{from: cb.state, to: s})
	cb.state = s
	cb.gen++
	cb.failures = 0
	cb.trials = 0
	cb.successes = 0
}

// unlock releases cb.mu and reports the transitions made while it was held.
func (cb *CircuitBreaker) unlock() {
	pending := cb.pending
	cb.pending = nil
	cb.mu.Unlock()
	for _, t := range pending {
		if t.to == StateOpen {
			slog.Warn("resilience: circuit opened", "provider", cb.cfg.Name, "from", t.from)
		} else {
			slog.Info("resilience: circuit state changed", "provider", cb.cfg.Name, "from", t.from, "to", t.to)
		}
		if cb.cfg.OnStateChange != nil {
			cb.cfg.OnStateChange(cb.cfg.Name, t.from, t.to)
		}
	}
}

// State returns the current state. An open breaker whose timeout has passed
// reports [StateHalfOpen]; the transition itself happens on the next call.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if cb.state == StateOpen && cb.cfg.now().Sub(cb.openedAt) >= cb.cfg.ResetTimeout {
		return StateHalfOpen
	}
	return cb.state
}

// Reset closes the breaker and clears its counters.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.unlock()
	if cb.state != StateClosed {
		cb.setLocked(StateClosed)
	}
	cb.failures = 0
}
