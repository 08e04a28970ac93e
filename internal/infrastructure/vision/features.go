package vision

import (
	"fmt"
	"image"
	"math"

	"gonum.org/v1/gonum/stat"

	"culture-sentinel/internal/domain/entity"
)

// Extract считает 28 признаков серого изображения в фиксированном порядке:
// яркость (7), GLCM (12), LBP (3), границы (2), градиент (2), спектр (2).
// Одинаковые пиксели дают побитово одинаковый вектор.
func Extract(img image.Image) (entity.FeatureVector, error) {
	var v entity.FeatureVector
	if img == nil || img.Bounds().Empty() {
		return v, fmt.Errorf("empty image: %w", entity.ErrImageDecode)
	}
	p := newPlane(ToGray(img))

	groups := [][]float64{
		intensityFeatures(p),
		glcmFeatures(p),
		lbpFeatures(p),
		edgeFeatures(p),
		gradientFeatures(p),
		spectrumFeatures(p),
	}

	i := 0
	for _, g := range groups {
		for _, x := range g {
			if math.IsNaN(x) || math.IsInf(x, 0) {
				x = 0
			}
			v[i] = x
			i++
		}
	}
	if i != entity.FeatureCount {
		return v, fmt.Errorf("extracted %d features, want %d", i, entity.FeatureCount)
	}
	return v, nil
}

// edgeFeatures доля пикселей-границ и std карты границ.
func edgeFeatures(p plane) []float64 {
	edges := cannyEdges(p)
	values := make([]float64, len(edges))
	count := 0
	for i, e := range edges {
		if e > 0 {
			count++
		}
		values[i] = float64(e)
	}
	_, std := stat.PopMeanStdDev(values, nil)
	return []float64{float64(count) / float64(len(edges)), std}
}

// gradientFeatures среднее и std модуля градиента Собеля.
func gradientFeatures(p plane) []float64 {
	gx, gy := gradients(p)
	magnitude := make([]float64, len(gx))
	for i := range gx {
		magnitude[i] = math.Sqrt(gx[i]*gx[i] + gy[i]*gy[i])
	}
	mean, std := stat.PopMeanStdDev(magnitude, nil)
	return []float64{mean, std}
}
