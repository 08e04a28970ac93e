package port

import (
	"context"
	"image"

	"culture-sentinel/internal/domain/entity"
)

// DatasetInfo сводка по набору изображений
type DatasetInfo struct {
	TotalImages        int                     `json:"total_images"`
	CleanImages        int                     `json:"clean_images"`
	ContaminatedImages int                     `json:"contaminated_images"`
	Breakdown          map[entity.Severity]int `json:"contamination_breakdown"`
	TargetSize         int                     `json:"target_size"`
}

// ImagePool источник изображений лунок по классу и степени заражения
type ImagePool interface {
	// Random выбирает случайное изображение класса; level фильтрует по подстроке имени файла
	Random(ctx context.Context, label entity.Label, level entity.Severity) (string, *image.Gray, error)

	// Load загружает изображение по пути
	Load(ctx context.Context, path string) (*image.Gray, error)

	// Info возвращает сводку по набору
	Info() DatasetInfo
}
