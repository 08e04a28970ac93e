package vision

import (
	"context"
	"fmt"
	"image"
	"os"

	"culture-sentinel/internal/domain/entity"
	"culture-sentinel/internal/domain/port"
)

// Extractor считает признаки на снимках, приведённых к Size×Size.
type Extractor struct {
	Size int
}

func NewExtractor() *Extractor {
	return &Extractor{Size: TargetSize}
}

func (e *Extractor) Backend() string { return Backend }

func (e *Extractor) Extract(ctx context.Context, img image.Image) (entity.FeatureVector, error) {
	if err := ctx.Err(); err != nil {
		return entity.FeatureVector{}, err
	}
	g, err := Prepare(img, e.Size)
	if err != nil {
		return entity.FeatureVector{}, err
	}
	return Extract(g)
}

// Files снимки на локальном диске
type Files struct {
	Size int
}

func NewFiles() *Files {
	return &Files{Size: TargetSize}
}

func (f *Files) List(dir string) ([]string, error) {
	return ListImages(dir)
}

func (f *Files) Load(ctx context.Context, path string) (*image.Gray, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return LoadFile(path, f.Size)
}

func (f *Files) Raw(path string) ([]byte, string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, "", fmt.Errorf("read image %s: %w", path, err)
	}
	return data, MIMEType(path), nil
}

func (f *Files) Encode(img image.Image) ([]byte, string, error) {
	data, err := EncodeJPEG(img)
	if err != nil {
		return nil, "", err
	}
	return data, "image/jpeg", nil
}

var (
	_ port.FeatureExtractor = (*Extractor)(nil)
	_ port.ImageFiles       = (*Files)(nil)
)
