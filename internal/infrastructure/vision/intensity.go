package vision

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// intensityFeatures: mean, std, min, max, median, skew, kurtosis.
// Асимметрия и эксцесс смещённые; для плоского изображения оба равны 0.
func intensityFeatures(p plane) []float64 {
	x := p.floats()
	mean, std := stat.PopMeanStdDev(x, nil)

	m2 := stat.Moment(2, x, nil)
	var skew, kurt float64
	if m2 > 0 {
		skew = stat.Moment(3, x, nil) / math.Pow(m2, 1.5)
		kurt = stat.Moment(4, x, nil)/(m2*m2) - 3
	}

	return []float64{
		mean,
		std,
		floats.Min(x),
		floats.Max(x),
		median(p.pix),
		skew,
		kurt,
	}
}

// median по гистограмме; при чётном числе пикселей среднее двух средних.
func median(pix []uint8) float64 {
	var hist [256]int
	for _, v := range pix {
		hist[v]++
	}
	n := len(pix)
	lo, hi := (n-1)/2, n/2
	var loV, hiV float64
	seen := 0
	for v, cnt := range hist {
		if cnt == 0 {
			continue
		}
		if seen <= lo && lo < seen+cnt {
			loV = float64(v)
		}
		if seen <= hi && hi < seen+cnt {
			hiV = float64(v)
			break
		}
		seen += cnt
	}
	return (loV + hiV) / 2
}
