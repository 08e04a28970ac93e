package port

import (
	"context"

	"culture-sentinel/internal/domain/entity"
)

// ExperimentRepository хранилище экспериментов
type ExperimentRepository interface {
	// Save атомарно сохраняет эксперимент под его ID
	Save(ctx context.Context, exp *entity.Experiment) error

	// Get возвращает эксперимент или entity.ErrNotFound
	Get(ctx context.Context, id string) (*entity.Experiment, error)

	// List возвращает идентификаторы в порядке создания
	List(ctx context.Context) ([]string, error)
}
