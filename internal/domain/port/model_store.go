package port

import (
	"context"

	"culture-sentinel/internal/ml"
)

// ModelStore хранилище обученной модели (скейлер + лес)
type ModelStore interface {
	// Save записывает оба артефакта; при ошибке старая пара остаётся на месте
	Save(ctx context.Context, model *ml.Model) error

	// Load читает оба артефакта или возвращает entity.ErrModelNotReady
	Load(ctx context.Context) (*ml.Model, error)
}
