package entity

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrConfiguration   = errors.New("configuration error")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrNoSamples       = errors.New("no samples")
	ErrNotFound        = errors.New("not found")
	ErrModelNotReady   = errors.New("model is not trained or loaded")
	ErrImageDecode     = errors.New("image decode failed")
	ErrRateLimited     = errors.New("rate limited")
	ErrOracleFailure   = errors.New("oracle failure")
	ErrParseFailure    = errors.New("oracle response parse failure")
	ErrAssetTimeout    = errors.New("uploaded asset processing timeout")
)

// RateLimitError ошибка превышения лимита запросов.
// RetryAfter заполняется, если провайдер указал задержку.
type RateLimitError struct {
	RetryAfter time.Duration
	Err        error
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("rate limited (retry after %s): %v", e.RetryAfter, e.Err)
	}
	return fmt.Sprintf("rate limited: %v", e.Err)
}

func (e *RateLimitError) Unwrap() error { return e.Err }

// Is позволяет проверять errors.Is(err, ErrRateLimited).
func (e *RateLimitError) Is(target error) bool { return target == ErrRateLimited }
