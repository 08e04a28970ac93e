// Package retry повторяет операции, упёршиеся в лимит запросов,
// с экспоненциальной задержкой.
package retry

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"culture-sentinel/internal/domain/entity"
)

// SleepFunc ожидание с учётом отмены контекста
type SleepFunc func(ctx context.Context, d time.Duration) error

// Sleep реальное ожидание
func Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Policy политика повторов. Повторяются только ошибки entity.ErrRateLimited.
type Policy struct {
	MaxAttempts int           // всего попыток, включая первую
	BaseDelay   time.Duration // задержка перед второй попыткой
	MaxDelay    time.Duration // 0 без ограничения
	Jitter      float64       // доля случайного разброса задержки, 0..1
	Sleep       SleepFunc
	Rand        func() float64
}

// Default три попытки, задержка 2с с удвоением.
func Default() Policy {
	return Policy{
		MaxAttempts: 3,
		BaseDelay:   2 * time.Second,
		MaxDelay:    time.Minute,
	}
}

// Delay задержка перед попыткой attempt+1 после неудачной попытки attempt (с 1).
// Если провайдер указал задержку, берётся она.
func (p Policy) Delay(attempt int, err error) time.Duration {
	var rl *entity.RateLimitError
	if errors.As(err, &rl) && rl.RetryAfter > 0 {
		return rl.RetryAfter
	}
	d := p.BaseDelay << (attempt - 1)
	if p.MaxDelay > 0 && (d > p.MaxDelay || d <= 0) {
		d = p.MaxDelay
	}
	if p.Jitter > 0 {
		rnd := rand.Float64
		if p.Rand != nil {
			rnd = p.Rand
		}
		d += time.Duration(float64(d) * p.Jitter * rnd())
	}
	return d
}

// Do вызывает fn, пока она возвращает ErrRateLimited и попытки не исчерпаны.
// Возвращает число сделанных попыток и последнюю ошибку.
func (p Policy) Do(ctx context.Context, fn func(ctx context.Context) error) (int, error) {
	maxAttempts := max(p.MaxAttempts, 1)
	sleep := p.Sleep
	if sleep == nil {
		sleep = Sleep
	}

	var err error
	for attempt := 1; ; attempt++ {
		err = fn(ctx)
		if err == nil {
			return attempt, nil
		}
		if !errors.Is(err, entity.ErrRateLimited) || attempt >= maxAttempts {
			return attempt, err
		}
		if serr := sleep(ctx, p.Delay(attempt, err)); serr != nil {
			return attempt, errors.Join(err, serr)
		}
	}
}
