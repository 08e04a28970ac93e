package imagepool

import (
	"context"
	"fmt"
	"image"
	"math/rand"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"

	"culture-sentinel/internal/domain/entity"
	"culture-sentinel/internal/domain/port"
	"culture-sentinel/internal/infrastructure/vision"
)

// DirectoryPool набор снимков из двух плоских каталогов: чистые и заражённые.
type DirectoryPool struct {
	clean        []string
	contaminated []string
	size         int

	mu  sync.Mutex
	rng *rand.Rand
}

// NewDirectoryPool сканирует каталоги. Отсутствующий каталог даёт пустой класс
// и предупреждение в лог; ошибка будет при попытке взять снимок.
func NewDirectoryPool(cleanDir, contaminatedDir string, size int, rng *rand.Rand, logger *zap.Logger) *DirectoryPool {
	if logger == nil {
		logger = zap.NewNop()
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(rand.Int63()))
	}
	p := &DirectoryPool{size: size, rng: rng}

	var err error
	if p.clean, err = vision.ListImages(cleanDir); err != nil {
		logger.Warn("clean image directory unavailable", zap.String("dir", cleanDir), zap.Error(err))
	}
	if p.contaminated, err = vision.ListImages(contaminatedDir); err != nil {
		logger.Warn("contaminated image directory unavailable", zap.String("dir", contaminatedDir), zap.Error(err))
	}
	logger.Info("image pool loaded",
		zap.Int("clean", len(p.clean)),
		zap.Int("contaminated", len(p.contaminated)))
	return p
}

// Random выбирает снимок класса. Для заражённых level сужает выбор по имени
// файла; если подходящих нет, берётся любой заражённый.
func (p *DirectoryPool) Random(ctx context.Context, label entity.Label, level entity.Severity) (string, *image.Gray, error) {
	var candidates []string
	switch label {
	case entity.LabelClean:
		candidates = p.clean
	case entity.LabelContaminated:
		candidates = p.contaminated
		if level != entity.SeverityNone {
			if filtered := filterLevel(candidates, level); len(filtered) > 0 {
				candidates = filtered
			}
		}
	default:
		return "", nil, fmt.Errorf("image pool label %q: %w", label, entity.ErrInvalidArgument)
	}
	if len(candidates) == 0 {
		return "", nil, fmt.Errorf("no %s images available: %w", label, entity.ErrNoSamples)
	}

	p.mu.Lock()
	path := candidates[p.rng.Intn(len(candidates))]
	p.mu.Unlock()

	img, err := p.Load(ctx, path)
	if err != nil {
		return "", nil, err
	}
	return path, img, nil
}

// Load загружает снимок, приводя его к рабочему размеру
func (p *DirectoryPool) Load(ctx context.Context, path string) (*image.Gray, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return vision.LoadFile(path, p.size)
}

// Info сводка по набору, включая разбивку заражённых по степени
func (p *DirectoryPool) Info() port.DatasetInfo {
	breakdown := make(map[entity.Severity]int, len(entity.Severities))
	for _, level := range entity.Severities {
		breakdown[level] = len(filterLevel(p.contaminated, level))
	}
	return port.DatasetInfo{
		TotalImages:        len(p.clean) + len(p.contaminated),
		CleanImages:        len(p.clean),
		ContaminatedImages: len(p.contaminated),
		Breakdown:          breakdown,
		TargetSize:         p.size,
	}
}

func filterLevel(paths []string, level entity.Severity) []string {
	var out []string
	needle := strings.ToLower(string(level))
	for _, path := range paths {
		if strings.Contains(strings.ToLower(filepath.Base(path)), needle) {
			out = append(out, path)
		}
	}
	return out
}

var _ port.ImagePool = (*DirectoryPool)(nil)
