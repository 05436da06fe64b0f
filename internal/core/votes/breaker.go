package votes

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// ErrCircuitOpen indicates the backend failed repeatedly and votes are
// failing fast until the cool-down passes
var ErrCircuitOpen = errors.New("vote backend unavailable")

// circuitState represents the state of the breaker
type circuitState int

const (
	stateClosed   circuitState = iota // Normal operation
	stateOpen                         // Backend failing, calls rejected
	stateHalfOpen                     // One probe allowed through
)

func (s circuitState) String() string {
	switch s {
	case stateOpen:
		return "open"
	case stateHalfOpen:
		return "half-open"
	default:
		return "closed"
	}
}

// BreakerOptions configures a CircuitBreaker
type BreakerOptions struct {
	FailureThreshold int           // Consecutive failures that open the circuit. Default 3
	OpenDuration     time.Duration // How long to fail fast. Default 30s

	// Counts reports whether err says the backend is unhealthy.
	// Nil counts every error except context cancellation.
	Counts func(err error) bool
}

// CircuitBreaker wraps a Caster and fails fast after repeated backend errors.
// A rejected call fails like any other, so the controller rolls it back at once
// instead of leaving the optimistic value up until the timeout.
type CircuitBreaker struct {
	next   Caster
	clock  clockwork.Clock
	logger *slog.Logger
	counts func(error) bool

	threshold    int
	openDuration time.Duration

	mu          sync.Mutex
	state       circuitState
	failures    int
	lastFailure time.Time
	probing     bool
}

// Ensure CircuitBreaker implements Caster.
var _ Caster = (*CircuitBreaker)(nil)

// NewCircuitBreaker wraps next
func NewCircuitBreaker(next Caster, clock clockwork.Clock, opts BreakerOptions, logger *slog.Logger) *CircuitBreaker {
	if logger == nil {
		logger = slog.Default()
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if opts.FailureThreshold <= 0 {
		opts.FailureThreshold = 3
	}
	if opts.OpenDuration <= 0 {
		opts.OpenDuration = 30 * time.Second
	}
	counts := opts.Counts
	if counts == nil {
		counts = func(err error) bool {
			return !errors.Is(err, context.Canceled)
		}
	}
	return &CircuitBreaker{
		next:         next,
		clock:        clock,
		logger:       logger,
		counts:       counts,
		threshold:    opts.FailureThreshold,
		openDuration: opts.OpenDuration,
	}
}

// CastVote forwards to the wrapped Caster unless the circuit is open
func (cb *CircuitBreaker) CastVote(ctx context.Context, subject Subject, direction Direction) error {
	if err := cb.acquire(); err != nil {
		return err
	}

	err := cb.next.CastVote(ctx, subject, direction)
	if err != nil && cb.counts(err) {
		cb.recordFailure(err)
	} else {
		cb.recordSuccess()
	}
	return err
}

// acquire checks whether a call may go through.
// In half-open only one probe is in flight at a time.
func (cb *CircuitBreaker) acquire() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == stateOpen && cb.clock.Since(cb.lastFailure) >= cb.openDuration {
		cb.setState(stateHalfOpen)
	}

	switch cb.state {
	case stateOpen:
		retryAt := cb.lastFailure.Add(cb.openDuration)
		return fmt.Errorf("%w: %d consecutive failures, retry after %s",
			ErrCircuitOpen, cb.failures, retryAt.Format(time.TimeOnly))
	case stateHalfOpen:
		if cb.probing {
			return fmt.Errorf("%w: probe in flight", ErrCircuitOpen)
		}
		cb.probing = true
	}
	return nil
}

func (cb *CircuitBreaker) recordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failures = 0
	cb.probing = false
	if cb.state != stateClosed {
		cb.setState(stateClosed)
	}
}

func (cb *CircuitBreaker) recordFailure(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failures++
	cb.lastFailure = cb.clock.Now()
	cb.probing = false

	if cb.state == stateHalfOpen || cb.failures >= cb.threshold {
		if cb.state != stateOpen {
			cb.logger.Warn("vote backend failing, opening circuit",
				"failures", cb.failures,
				"open_for", cb.openDuration,
				"error", err)
		}
		cb.state = stateOpen
		return
	}

	cb.logger.Debug("vote backend failure",
		"failures", cb.failures,
		"threshold", cb.threshold,
		"error", err)
}

// setState must be called with mu held
func (cb *CircuitBreaker) setState(s circuitState) {
	cb.logger.Info("vote circuit state changed", "from", cb.state, "to", s)
	cb.state = s
}
