package resilience

import (
	"context"
	"time"

	"github.com/pkg/errors"
)

var ErrCircuitOpen = errors.New("circuit open")

// Guard = breaker + retry + таймаут на каждую попытку.
type Guard struct {
	Breaker *CircuitBreaker
	Policy  RetryPolicy
	Timeout time.Duration
}

func NewGuard(b *CircuitBreaker, p RetryPolicy, timeout time.Duration) *Guard {
	return &Guard{Breaker: b, Policy: p, Timeout: timeout}
}

// Execute: открытый breaker -> ErrCircuitOpen без вызова fn. Иначе fn под retry,
// итог отмечается в breaker. Отмена внешнего ctx ошибкой breaker не считается.
func Execute[T any](ctx context.Context, g *Guard, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	if !g.Breaker.Allow() {
		return zero, errors.Wrap(ErrCircuitOpen, g.Breaker.Name())
	}

	out, err := Retry(ctx, g.Policy, func(ctx context.Context) (T, error) {
		if g.Timeout <= 0 {
			return fn(ctx)
		}
		actx, cancel := context.WithTimeout(ctx, g.Timeout)
		defer cancel()
		return fn(actx)
	})
	if err != nil {
		if ctx.Err() == nil {
			g.Breaker.OnFailure()
		}
		return zero, err
	}

	g.Breaker.OnSuccess()
	return out, nil
}
