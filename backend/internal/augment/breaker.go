package augment

import (
	"errors"
	"sync"
	"time"
)

// CircuitState represents the state of the circuit breaker
type CircuitState int

const (
	CircuitClosed   CircuitState = iota // Normal operation
	CircuitOpen                         // Failing, skip the reasoning service
	CircuitHalfOpen                     // Testing if service recovered
)

func (s CircuitState) String() string {
	switch s {
	case CircuitOpen:
		return "open"
	case CircuitHalfOpen:
		return "half-open"
	default:
		return "closed"
	}
}

// BreakerConfig holds circuit breaker settings
type BreakerConfig struct {
	Enabled          bool
	FailureThreshold int           // Consecutive failed augmentations before opening
	SuccessThreshold int           // Successes needed to close from half-open
	Cooldown         time.Duration // How long to stay open before half-open
}

// ErrCircuitOpen is returned when the circuit is open
var ErrCircuitOpen = errors.New("circuit breaker is open: reasoning service unavailable")

// Breaker stops calling a reasoning service that keeps failing. A disabled
// Breaker allows every call. Safe for concurrent use.
type Breaker struct {
	config BreakerConfig
	now    func() time.Time

	mu          sync.Mutex
	state       CircuitState
	failures    int
	successes   int
	lastFailure time.Time
}

// NewBreaker creates a new circuit breaker
func NewBreaker(config BreakerConfig) *Breaker {
	if config.FailureThreshold == 0 {
		config.FailureThreshold = 5
	}
	if config.SuccessThreshold == 0 {
		config.SuccessThreshold = 1
	}
	if config.Cooldown == 0 {
		config.Cooldown = 30 * time.Second
	}

	return &Breaker{
		config: config,
		now:    time.Now,
		state:  CircuitClosed,
	}
}

// Allow reports whether a call may be attempted now.
func (b *Breaker) Allow() bool {
	if !b.config.Enabled {
		return true
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == CircuitOpen {
		if b.now().Sub(b.lastFailure) < b.config.Cooldown {
			return false
		}
		b.state = CircuitHalfOpen
		b.successes = 0
	}
	return true
}

// RecordFailure counts a failed augmentation.
func (b *Breaker) RecordFailure() {
	if !b.config.Enabled {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures++
	b.lastFailure = b.now()

	if b.state == CircuitHalfOpen {
		b.state = CircuitOpen
		return
	}

	if b.failures >= b.config.FailureThreshold {
		b.state = CircuitOpen
	}
}

// RecordSuccess counts a successful augmentation.
func (b *Breaker) RecordSuccess() {
	if !b.config.Enabled {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == CircuitHalfOpen {
		b.successes++
		if b.successes >= b.config.SuccessThreshold {
			b.state = CircuitClosed
			b.failures = 0
		}
		return
	}
	b.failures = 0
}

// State returns the current circuit state
func (b *Breaker) State() CircuitState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Stats returns circuit breaker statistics
func (b *Breaker) Stats() map[string]interface{} {
	b.mu.Lock()
	defer b.mu.Unlock()
	return map[string]interface{}{
		"enabled":  b.config.Enabled,
		"state":    b.state.String(),
		"failures": b.failures,
	}
}
