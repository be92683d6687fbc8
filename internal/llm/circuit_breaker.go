package llm

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/BerkeliumLabs/berkelium/internal/logging"
)

// CircuitState is the breaker position in front of a provider.
type CircuitState int

const (
	CircuitClosed CircuitState = iota
	CircuitOpen
	CircuitHalfOpen
)

var circuitStateNames = [...]string{"closed", "open", "half_open"}

func (s CircuitState) String() string {
	if int(s) < len(circuitStateNames) {
		return circuitStateNames[s]
	}
	return "unknown"
}

// CircuitBreaker rejects model calls after repeated failures. Once the
// cooldown passes it lets probes through one at a time and closes again
// after probeSuccesses of them succeed.
type CircuitBreaker struct {
	threshold      int
	cooldown       time.Duration
	probeSuccesses int
	now            func() time.Time
	log            *zap.Logger

	mu       sync.Mutex
	state    CircuitState
	failures int
	probed   int  // successful probes since half-open
	inFlight bool // a half-open probe is running
	openedAt time.Time
}

// NewCircuitBreaker opens after threshold consecutive failures and stays open
// for cooldown. Non-positive values select 5 failures and 30s.
func NewCircuitBreaker(threshold int, cooldown time.Duration) *CircuitBreaker {
	if threshold <= 0 {
		threshold = 5
	}
	if cooldown <= 0 {
		cooldown = 30 * time.Second
	}
	return &CircuitBreaker{
		threshold:      threshold,
		cooldown:       cooldown,
		probeSuccesses: 2,
		now:            time.Now,
		log:            logging.Named("breaker"),
	}
}

// Allow reports whether a call may reach the provider.
func (cb *CircuitBreaker) Allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case CircuitOpen:
		if cb.now().Sub(cb.openedAt) < cb.cooldown {
			return false
		}
		cb.moveTo(CircuitHalfOpen)
		cb.inFlight = true
		return true
	case CircuitHalfOpen:
		if cb.inFlight {
			return false
		}
		cb.inFlight = true
		return true
	default:
		return true
	}
}

// RecordSuccess notes a completed call.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failures = 0
	if cb.state != CircuitHalfOpen {
		return
	}
	cb.inFlight = false
	cb.probed++
	if cb.probed >= cb.probeSuccesses {
		cb.moveTo(CircuitClosed)
	}
}

// RecordFailure notes a failed call. A failed probe reopens immediately.
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failures++
	switch {
	case cb.state == CircuitHalfOpen:
		cb.inFlight = false
		cb.open()
	case cb.state == CircuitClosed && cb.failures >= cb.threshold:
		cb.open()
	}
}

// RetryAfter is the time left before an open breaker admits a probe.
func (cb *CircuitBreaker) RetryAfter() time.Duration {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if cb.state != CircuitOpen {
		return 0
	}
	return max(cb.cooldown-cb.now().Sub(cb.openedAt), 0)
}

// State returns the current position.
func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Reset closes the breaker and forgets past failures.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.failures = 0
	cb.inFlight = false
	cb.moveTo(CircuitClosed)
}

func (cb *CircuitBreaker) open() {
	cb.openedAt = cb.now()
	cb.moveTo(CircuitOpen)
}

// moveTo must be called with mu held.
func (cb *CircuitBreaker) moveTo(to CircuitState) {
	from := cb.state
	cb.state = to
	cb.probed = 0
	if from != to {
		cb.log.Info("model circuit "+to.String(),
			logging.From(from.String()),
			logging.To(to.String()),
			zap.Int("failures", cb.failures),
		)
	}
}
