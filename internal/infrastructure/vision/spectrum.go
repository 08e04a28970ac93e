package vision

import (
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/stat"
)

// spectrumFeatures среднее и std амплитудного спектра двумерного БПФ
// со сдвигом нулевой частоты в центр.
func spectrumFeatures(p plane) []float64 {
	w, h := p.w, p.h
	data := make([]complex128, w*h)
	for i, v := range p.pix {
		data[i] = complex(float64(v), 0)
	}

	rowFFT := fourier.NewCmplxFFT(w)
	row := make([]complex128, w)
	for r := 0; r < h; r++ {
		rowFFT.Coefficients(row, data[r*w:(r+1)*w])
		copy(data[r*w:(r+1)*w], row)
	}

	colFFT := fourier.NewCmplxFFT(h)
	col := make([]complex128, h)
	out := make([]complex128, h)
	for c := 0; c < w; c++ {
		for r := 0; r < h; r++ {
			col[r] = data[r*w+c]
		}
		colFFT.Coefficients(out, col)
		for r := 0; r < h; r++ {
			data[r*w+c] = out[r]
		}
	}

	magnitude := make([]float64, w*h)
	for r := 0; r < h; r++ {
		for c := 0; c < w; c++ {
			sr, sc := (r+h/2)%h, (c+w/2)%w
			magnitude[sr*w+sc] = cmplx.Abs(data[r*w+c])
		}
	}

	mean, std := stat.PopMeanStdDev(magnitude, nil)
	return []float64{mean, std}
}
