package vision

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

const glcmLevels = 256

var (
	glcmDistances = []int{1, 2}
	glcmAngles    = []float64{0, math.Pi / 4, math.Pi / 2, 3 * math.Pi / 4}
)

// glcmProps свойства одной матрицы совместной встречаемости
type glcmProps struct {
	contrast, dissimilarity, homogeneity, energy, correlation, asm float64
}

// glcmFeatures среднее и std каждого из шести свойств по 8 матрицам
// (2 расстояния × 4 угла).
func glcmFeatures(p plane) []float64 {
	matrix := make([]float64, glcmLevels*glcmLevels)
	var props []glcmProps
	for _, d := range glcmDistances {
		for _, angle := range glcmAngles {
			dr := int(math.Round(math.Sin(angle) * float64(d)))
			dc := int(math.Round(math.Cos(angle) * float64(d)))
			cooccurrence(p, dr, dc, matrix)
			props = append(props, computeProps(matrix))
		}
	}

	columns := [6]func(glcmProps) float64{
		func(g glcmProps) float64 { return g.contrast },
		func(g glcmProps) float64 { return g.dissimilarity },
		func(g glcmProps) float64 { return g.homogeneity },
		func(g glcmProps) float64 { return g.energy },
		func(g glcmProps) float64 { return g.correlation },
		func(g glcmProps) float64 { return g.asm },
	}
	out := make([]float64, 0, 12)
	values := make([]float64, len(props))
	for _, get := range columns {
		for i, pr := range props {
			values[i] = get(pr)
		}
		mean, std := stat.PopMeanStdDev(values, nil)
		out = append(out, mean, std)
	}
	return out
}

// cooccurrence заполняет симметричную нормированную матрицу для смещения (dr, dc).
func cooccurrence(p plane, dr, dc int, matrix []float64) {
	clear(matrix)
	total := 0.0
	for r := max(0, -dr); r < min(p.h, p.h-dr); r++ {
		for c := max(0, -dc); c < min(p.w, p.w-dc); c++ {
			i := int(p.at(r, c))
			j := int(p.at(r+dr, c+dc))
			matrix[i*glcmLevels+j]++
			matrix[j*glcmLevels+i]++
			total += 2
		}
	}
	if total == 0 {
		return
	}
	for k := range matrix {
		matrix[k] /= total
	}
}

func computeProps(P []float64) glcmProps {
	var g glcmProps
	var meanI, meanJ float64
	for i := 0; i < glcmLevels; i++ {
		for j := 0; j < glcmLevels; j++ {
			v := P[i*glcmLevels+j]
			if v == 0 {
				continue
			}
			diff := float64(i - j)
			g.contrast += v * diff * diff
			g.dissimilarity += v * math.Abs(diff)
			g.homogeneity += v / (1 + diff*diff)
			g.asm += v * v
			meanI += v * float64(i)
			meanJ += v * float64(j)
		}
	}
	g.energy = math.Sqrt(g.asm)

	var varI, varJ, cov float64
	for i := 0; i < glcmLevels; i++ {
		for j := 0; j < glcmLevels; j++ {
			v := P[i*glcmLevels+j]
			if v == 0 {
				continue
			}
			di, dj := float64(i)-meanI, float64(j)-meanJ
			varI += v * di * di
			varJ += v * dj * dj
			cov += v * di * dj
		}
	}
	stdI, stdJ := math.Sqrt(varI), math.Sqrt(varJ)
	if stdI < 1e-15 || stdJ < 1e-15 {
		g.correlation = 1
	} else {
		g.correlation = cov / (stdI * stdJ)
	}
	return g
}
