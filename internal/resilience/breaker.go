package resilience

import (
	"sync"
	"time"

	"trade_guard/pkg/logger"
)

// CircuitBreaker считает подряд идущие ошибки одного класса операций.
// После MaxFailures ошибок вызовы отклоняются до openUntil, затем breaker снова пропускает.
type CircuitBreaker struct {
	name        string
	maxFailures int
	cooldown    time.Duration
	now         func() time.Time

	mu        sync.Mutex
	failures  int
	openUntil time.Time
}

type Option func(*CircuitBreaker)

// WithClock подменяет часы (для тестов).
func WithClock(now func() time.Time) Option {
	return func(b *CircuitBreaker) {
		if now != nil {
			b.now = now
		}
	}
}

func NewCircuitBreaker(name string, maxFailures int, cooldown time.Duration, opts ...Option) *CircuitBreaker {
	if maxFailures < 1 {
		maxFailures = 1
	}
	b := &CircuitBreaker{
		name:        name,
		maxFailures: maxFailures,
		cooldown:    cooldown,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *CircuitBreaker) Name() string { return b.name }

// Allow: false тогда и только тогда, когда now < openUntil.
func (b *CircuitBreaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return !b.now().Before(b.openUntil)
}

func (b *CircuitBreaker) OnSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures = 0
	b.openUntil = time.Time{}
}

// OnFailure. Ошибка, пришедшая пока breaker открыт, окно не продлевает и не считается.
func (b *CircuitBreaker) OnFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	if now.Before(b.openUntil) {
		return
	}

	b.failures++
	if b.failures >= b.maxFailures {
		b.openUntil = now.Add(b.cooldown)
		b.failures = 0
		logger.Warn("[circuit] %s open for %s (until %s)", b.name, b.cooldown, b.openUntil.UTC().Format(time.RFC3339))
	}
}

type BreakerSnapshot struct {
	Name      string
	Failures  int
	Open      bool
	OpenUntil time.Time
}

func (b *CircuitBreaker) Snapshot() BreakerSnapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	return BreakerSnapshot{
		Name:      b.name,
		Failures:  b.failures,
		Open:      b.now().Before(b.openUntil),
		OpenUntil: b.openUntil,
	}
}
