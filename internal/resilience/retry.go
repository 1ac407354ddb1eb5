package resilience

import (
	"context"
	"fmt"
	"time"
)

// RetryPolicy - до Tries попыток одного удалённого вызова, пауза Delay растёт в Backoff раз.
type RetryPolicy struct {
	Tries   int
	Delay   time.Duration
	Backoff float64
	// RetryIf решает, стоит ли повторять. nil - повторяем любую ошибку.
	RetryIf func(error) bool
}

// sleep подменяется в тестах.
var sleep = func(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Do возвращает ошибку последней попытки как есть. Если паузу прервал ctx,
// возвращается ошибка ctx, обёрнутая вместе с последней ошибкой (errors.Is работает для обеих).
func (p RetryPolicy) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	tries := p.Tries
	if tries < 1 {
		tries = 1
	}
	backoff := p.Backoff
	if backoff <= 0 {
		backoff = 1
	}
	delay := p.Delay

	var err error
	for attempt := 1; attempt <= tries; attempt++ {
		if err = fn(ctx); err == nil {
			return nil
		}
		if p.RetryIf != nil && !p.RetryIf(err) {
			return err
		}
		if attempt == tries {
			break
		}
		if werr := sleep(ctx, delay); werr != nil {
			return fmt.Errorf("%w (last attempt: %w)", werr, err)
		}
		delay = time.Duration(float64(delay) * backoff)
	}
	return err
}

// Retry - то же самое для вызова с результатом.
func Retry[T any](ctx context.Context, p RetryPolicy, fn func(ctx context.Context) (T, error)) (T, error) {
	var out T
	err := p.Do(ctx, func(ctx context.Context) error {
		v, err := fn(ctx)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, err
}
