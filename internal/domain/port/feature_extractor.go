package port

import (
	"context"
	"image"

	"culture-sentinel/internal/domain/entity"
)

// FeatureExtractor превращает снимок лунки в вектор признаков
type FeatureExtractor interface {
	// Backend имя реализации; сохраняется вместе с моделью
	Backend() string

	// Extract приводит снимок к рабочему размеру и считает признаки
	Extract(ctx context.Context, img image.Image) (entity.FeatureVector, error)
}

// ImageFiles снимки на диске
type ImageFiles interface {
	// List отсортированные пути поддерживаемых изображений каталога
	List(dir string) ([]string, error)

	// Load читает и декодирует изображение
	Load(ctx context.Context, path string) (*image.Gray, error)

	// Raw исходные байты файла и их MIME-тип
	Raw(path string) ([]byte, string, error)

	// Encode кодирует снимок для внешних сервисов
	Encode(img image.Image) ([]byte, string, error)
}
