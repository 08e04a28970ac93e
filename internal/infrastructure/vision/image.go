package vision

import (
	"fmt"
	"image"
	"image/draw"

	xdraw "golang.org/x/image/draw"

	"culture-sentinel/internal/domain/entity"
)

// TargetSize сторона квадрата, к которому приводятся снимки лунок
const TargetSize = 128

// ToGray переводит изображение в 8-битный оттенок серого (проекция яркости).
func ToGray(img image.Image) *image.Gray {
	if g, ok := img.(*image.Gray); ok {
		return g
	}
	b := img.Bounds()
	gray := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(gray, gray.Bounds(), img, b.Min, draw.Src)
	return gray
}

// Resize масштабирует серое изображение до size×size бикубической интерполяцией.
func Resize(g *image.Gray, size int) *image.Gray {
	if g.Bounds().Dx() == size && g.Bounds().Dy() == size {
		return g
	}
	dst := image.NewGray(image.Rect(0, 0, size, size))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), g, g.Bounds(), xdraw.Src, nil)
	return dst
}

// Prepare приводит произвольное изображение к виду, на котором считаются признаки.
func Prepare(img image.Image, size int) (*image.Gray, error) {
	if img == nil || img.Bounds().Empty() {
		return nil, fmt.Errorf("empty image: %w", entity.ErrImageDecode)
	}
	return Resize(ToGray(img), size), nil
}

// FromFloats строит изображение из матрицы интенсивностей по строкам.
// Значения больше 1 нормируются на максимум, затем переводятся в [0, 255].
func FromFloats(width, height int, values []float64) (*image.Gray, error) {
	if width <= 0 || height <= 0 || len(values) != width*height {
		return nil, fmt.Errorf("matrix %dx%d with %d values: %w", width, height, len(values), entity.ErrInvalidArgument)
	}
	maxV := 0.0
	for _, v := range values {
		maxV = max(maxV, v)
	}
	div := 1.0
	if maxV > 1 {
		div = maxV
	}
	g := image.NewGray(image.Rect(0, 0, width, height))
	for i, v := range values {
		n := min(max(v/div, 0), 1)
		g.Pix[i] = uint8(n * 255)
	}
	return g, nil
}

// plane плотное представление серого изображения
type plane struct {
	w, h int
	pix  []uint8
}

func newPlane(g *image.Gray) plane {
	b := g.Bounds()
	p := plane{w: b.Dx(), h: b.Dy(), pix: make([]uint8, b.Dx()*b.Dy())}
	for y := 0; y < p.h; y++ {
		start := y * g.Stride
		copy(p.pix[y*p.w:(y+1)*p.w], g.Pix[start:start+p.w])
	}
	return p
}

func (p plane) at(r, c int) uint8 { return p.pix[r*p.w+c] }

func (p plane) floats() []float64 {
	out := make([]float64, len(p.pix))
	for i, v := range p.pix {
		out[i] = float64(v)
	}
	return out
}
