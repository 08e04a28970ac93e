package vision

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

const (
	lbpRadius = 3
	lbpPoints = 8 * lbpRadius
)

// lbpFeatures среднее, std и максимум гистограммы плотности
// равномерных вращательно-инвариантных кодов LBP (P=24, R=3).
func lbpFeatures(p plane) []float64 {
	codes := lbpCodes(p, lbpPoints, lbpRadius)

	maxCode := 0
	for _, c := range codes {
		maxCode = max(maxCode, c)
	}
	hist := make([]float64, maxCode+1)
	for _, c := range codes {
		hist[c]++
	}
	floats.Scale(1/float64(len(codes)), hist)

	mean, std := stat.PopMeanStdDev(hist, nil)
	return []float64{mean, std, floats.Max(hist)}
}

// lbpCodes коды для каждого пикселя. Соседи берутся билинейной интерполяцией,
// пиксели за краем равны нулю. Равномерный код = число единиц при не более
// чем двух переходах (без замыкания круга), иначе P+1.
func lbpCodes(p plane, points int, radius float64) []int {
	rp := make([]float64, points)
	cp := make([]float64, points)
	for i := 0; i < points; i++ {
		angle := 2 * math.Pi * float64(i) / float64(points)
		rp[i] = round5(-radius * math.Sin(angle))
		cp[i] = round5(radius * math.Cos(angle))
	}

	codes := make([]int, p.w*p.h)
	signs := make([]int, points)
	for r := 0; r < p.h; r++ {
		for c := 0; c < p.w; c++ {
			center := float64(p.at(r, c))
			ones := 0
			for i := 0; i < points; i++ {
				v := bilinear(p, float64(r)+rp[i], float64(c)+cp[i])
				signs[i] = 0
				if v-center >= 0 {
					signs[i] = 1
					ones++
				}
			}
			changes := 0
			for i := 0; i < points-1; i++ {
				if signs[i] != signs[i+1] {
					changes++
				}
			}
			if changes <= 2 {
				codes[r*p.w+c] = ones
			} else {
				codes[r*p.w+c] = points + 1
			}
		}
	}
	return codes
}

func round5(v float64) float64 {
	return math.Round(v*1e5) / 1e5
}

func bilinear(p plane, r, c float64) float64 {
	minR, minC := math.Floor(r), math.Floor(c)
	maxR, maxC := math.Ceil(r), math.Ceil(c)
	dr, dc := r-minR, c-minC

	px := func(rr, cc float64) float64 {
		ri, ci := int(rr), int(cc)
		if ri < 0 || ri >= p.h || ci < 0 || ci >= p.w {
			return 0
		}
		return float64(p.at(ri, ci))
	}

	top := (1-dc)*px(minR, minC) + dc*px(minR, maxC)
	bottom := (1-dc)*px(maxR, minC) + dc*px(maxR, maxC)
	return (1-dr)*top + dr*bottom
}
