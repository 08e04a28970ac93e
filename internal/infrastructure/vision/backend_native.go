//go:build !gocv
// +build !gocv

package vision

// Backend имя реализации границ и градиентов; сохраняется вместе с моделью.
const Backend = "native"

func cannyEdges(p plane) []uint8 {
	return canny(p, cannyLow, cannyHigh)
}

func gradients(p plane) (gx, gy []float64) {
	return sobel(p, reflect101)
}
