package generative

import (
	"sync"
	"time"

	"github.com/JonnyWalker81/ecotrack/backend/internal/logger"
)

// BreakerState is the state of a Breaker
type BreakerState int

const (
	BreakerClosed BreakerState = iota
	BreakerHalfOpen
	BreakerOpen
)

func (s BreakerState) String() string {
	switch s {
	case BreakerClosed:
		return "closed"
	case BreakerHalfOpen:
		return "half_open"
	case BreakerOpen:
		return "open"
	default:
		return "unknown"
	}
}

// BreakerConfig tunes a Breaker
type BreakerConfig struct {
	// MaxFailures is the number of consecutive failures that opens the breaker
	MaxFailures int
	// ResetTimeout is how long the breaker stays open before a probe call
	ResetTimeout time.Duration
}

// Breaker fast-fails calls to a failing upstream. After ResetTimeout in
// the open state a single probe call is let through; its result closes or
// reopens the breaker.
type Breaker struct {
	name string
	cfg  BreakerConfig
	now  func() time.Time

	mu       sync.Mutex
	state    BreakerState
	failures int
	openedAt time.Time

	onChange func(name string, state BreakerState)
}

// NewBreaker creates a closed breaker. A non-positive MaxFailures disables
// tripping.
func NewBreaker(name string, cfg BreakerConfig) *Breaker {
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = 30 * time.Second
	}
	return &Breaker{name: name, cfg: cfg, now: time.Now, state: BreakerClosed}
}

// OnStateChange registers fn to be called on every transition
func (b *Breaker) OnStateChange(fn func(name string, state BreakerState)) {
	b.mu.Lock()
	b.onChange = fn
	b.mu.Unlock()
}

// State returns the current state
func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Allow reports whether a call may proceed. Moving from open to half-open
// admits exactly one probe.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case BreakerClosed:
		return true
	case BreakerOpen:
		if b.now().Sub(b.openedAt) < b.cfg.ResetTimeout {
			return false
		}
		b.transition(BreakerHalfOpen)
		return true
	default:
		// a probe is already in flight
		return false
	}
}

// Success records a successful call
func (b *Breaker) Success() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures = 0
	if b.state != BreakerClosed {
		b.transition(BreakerClosed)
	}
}

// Failure records a failed call
func (b *Breaker) Failure() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures++

	if b.state == BreakerHalfOpen || (b.cfg.MaxFailures > 0 && b.failures >= b.cfg.MaxFailures) {
		b.openedAt = b.now()
		if b.state != BreakerOpen {
			b.transition(BreakerOpen)
		}
	}
}

// Release records a call that ended without a verdict on the upstream. A
// half-open breaker returns to open with its reset window already spent, so
// the next call becomes the probe.
func (b *Breaker) Release() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == BreakerHalfOpen {
		b.transition(BreakerOpen)
	}
}

// transition must be called with mu held
func (b *Breaker) transition(to BreakerState) {
	from := b.state
	b.state = to
	logger.Default().Info("generative breaker state change",
		logger.String("breaker", b.name),
		logger.String("from", from.String()),
		logger.String("to", to.String()),
		logger.Int("failures", b.failures),
	)
	if b.onChange != nil {
		b.onChange(b.name, to)
	}
}
