package port

import (
	"context"
	"image"

	"culture-sentinel/internal/domain/entity"
)

// ContaminationPredictor локальный классификатор заражения
type ContaminationPredictor interface {
	// Predict классифицирует одно изображение лунки
	Predict(ctx context.Context, img image.Image) (*entity.Prediction, error)
}
