//go:build gocv
// +build gocv

package vision

import "gocv.io/x/gocv"

// Backend имя реализации границ и градиентов; сохраняется вместе с моделью.
const Backend = "gocv"

// cannyEdges карта границ Canny (0/255) средствами OpenCV.
func cannyEdges(p plane) []uint8 {
	src, err := planeToMat(p)
	if err != nil {
		return canny(p, cannyLow, cannyHigh)
	}
	defer src.Close()

	edges := gocv.NewMat()
	defer edges.Close()
	gocv.Canny(src, &edges, cannyLow, cannyHigh)

	out := make([]uint8, p.w*p.h)
	for r := 0; r < p.h; r++ {
		for c := 0; c < p.w; c++ {
			out[r*p.w+c] = edges.GetUCharAt(r, c)
		}
	}
	return out
}

// gradients производные Собеля (ksize 3) по x и y средствами OpenCV.
func gradients(p plane) (gx, gy []float64) {
	src, err := planeToMat(p)
	if err != nil {
		return sobel(p, reflect101)
	}
	defer src.Close()

	dx := gocv.NewMat()
	defer dx.Close()
	dy := gocv.NewMat()
	defer dy.Close()
	gocv.Sobel(src, &dx, gocv.MatTypeCV64F, 1, 0, 3, 1, 0, gocv.BorderDefault)
	gocv.Sobel(src, &dy, gocv.MatTypeCV64F, 0, 1, 3, 1, 0, gocv.BorderDefault)

	gx = make([]float64, p.w*p.h)
	gy = make([]float64, p.w*p.h)
	for r := 0; r < p.h; r++ {
		for c := 0; c < p.w; c++ {
			gx[r*p.w+c] = dx.GetDoubleAt(r, c)
			gy[r*p.w+c] = dy.GetDoubleAt(r, c)
		}
	}
	return gx, gy
}
