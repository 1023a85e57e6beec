package resilience

import (
	"fmt"
	"sync"
	"time"
)

// State is the circuit breaker state.
type State int

const (
	// StateClosed allows calls through and samples their outcomes.
	StateClosed State = iota

	// StateOpen rejects calls until the break duration elapses.
	StateOpen

	// StateHalfOpen allows a single probe call to test recovery.
	StateHalfOpen
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// BreakerSettings configures a CircuitBreaker.
type BreakerSettings struct {
	// FailureRatio is the failure fraction that opens the breaker once
	// MinimumThroughput outcomes have been sampled.
	FailureRatio float64

	// MinimumThroughput is the minimum sample size before FailureRatio
	// is evaluated. Sampled counts reset each SamplingWindow.
	MinimumThroughput int

	// BreakDuration is how long the breaker stays open before allowing
	// a probe.
	BreakDuration time.Duration

	// SamplingWindow bounds the age of sampled outcomes. Zero means one
	// minute.
	SamplingWindow time.Duration
}

// CircuitBreaker tracks call outcomes and stops calling a failing
// dependency for a cool-down period once the failure ratio threshold is
// crossed. It is shared by all callers of a named pipeline and is safe
// for concurrent use.
type CircuitBreaker struct {
	mu sync.Mutex

	settings BreakerSettings

	state       State
	failures    int
	total       int
	windowStart time.Time
	openedAt    time.Time
	probing     bool

	// now is the clock, replaceable in tests.
	now func() time.Time

	// onStateChange, when set, is called for every transition. It runs
	// under mu, so hooks must not call back into the breaker.
	onStateChange func(from, to State)
}

// NewCircuitBreaker creates a breaker with the given settings.
func NewCircuitBreaker(settings BreakerSettings) *CircuitBreaker {
	if settings.SamplingWindow <= 0 {
		settings.SamplingWindow = time.Minute
	}
	return &CircuitBreaker{
		settings: settings,
		state:    StateClosed,
		now:      time.Now,
	}
}

// State returns the current breaker state, accounting for break duration
// expiry.
func (b *CircuitBreaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == StateOpen && b.now().Sub(b.openedAt) >= b.settings.BreakDuration {
		return StateHalfOpen
	}
	return b.state
}

// Allow reports whether a call may proceed. When the breaker is open it
// returns false along with the remaining break duration. An open breaker
// whose break duration has elapsed admits exactly one probe call.
func (b *CircuitBreaker) Allow() (bool, time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		return true, 0
	case StateOpen:
		remaining := b.settings.BreakDuration - b.now().Sub(b.openedAt)
		if remaining > 0 {
			return false, remaining
		}
		b.transition(StateHalfOpen)
		b.probing = true
		return true, 0
	case StateHalfOpen:
		if b.probing {
			return false, b.settings.BreakDuration
		}
		b.probing = true
		return true, 0
	}
	return true, 0
}

// RecordSuccess samples a successful call outcome. A successful probe
// closes the breaker and resets the sample.
func (b *CircuitBreaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == StateHalfOpen {
		b.probing = false
		b.resetSample()
		b.transition(StateClosed)
		return
	}
	b.sample(false)
}

// RecordFailure samples a failed call outcome, opening the breaker when
// the failure ratio threshold is crossed or a probe fails.
func (b *CircuitBreaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == StateHalfOpen {
		b.probing = false
		b.openedAt = b.now()
		b.transition(StateOpen)
		return
	}

	b.sample(true)
	if b.total >= b.settings.MinimumThroughput &&
		float64(b.failures)/float64(b.total) >= b.settings.FailureRatio {
		b.openedAt = b.now()
		b.transition(StateOpen)
	}
}

// sample records one outcome, restarting the sampling window when it has
// aged out. Callers must hold mu.
func (b *CircuitBreaker) sample(failed bool) {
	now := b.now()
	if b.windowStart.IsZero() || now.Sub(b.windowStart) > b.settings.SamplingWindow {
		b.windowStart = now
		b.total = 0
		b.failures = 0
	}
	b.total++
	if failed {
		b.failures++
	}
}

// resetSample clears the outcome counts. Callers must hold mu.
func (b *CircuitBreaker) resetSample() {
	b.total = 0
	b.failures = 0
	b.windowStart = time.Time{}
}

// transition moves the breaker to a new state and fires the state-change
// hook. Callers must hold mu.
func (b *CircuitBreaker) transition(to State) {
	from := b.state
	if from == to {
		return
	}
	b.state = to
	if b.onStateChange != nil {
		// Hook runs under mu; hooks must not call back into the breaker.
		b.onStateChange(from, to)
	}
}
