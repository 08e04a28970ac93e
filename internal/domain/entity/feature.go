package entity

// FeatureCount длина вектора признаков
const FeatureCount = 28

// FeatureVector упорядоченный вектор признаков изображения лунки.
// Скейлер и классификатор опираются на позиции, а не на имена.
type FeatureVector [FeatureCount]float64

// FeatureNames имена признаков в порядке их вычисления.
var FeatureNames = [FeatureCount]string{
	// статистики яркости
	"Mean", "Std", "Min", "Max", "Median", "Skew", "Kurtosis",
	// текстура GLCM
	"GLCM_contrast_mean", "GLCM_contrast_std",
	"GLCM_dissimilarity_mean", "GLCM_dissimilarity_std",
	"GLCM_homogeneity_mean", "GLCM_homogeneity_std",
	"GLCM_energy_mean", "GLCM_energy_std",
	"GLCM_correlation_mean", "GLCM_correlation_std",
	"GLCM_ASM_mean", "GLCM_ASM_std",
	// LBP
	"LBP_mean", "LBP_std", "LBP_max",
	// границы
	"EdgeDensity", "EdgeVariation",
	// градиент
	"GradientMean", "GradientStd",
	// спектр
	"FFT_mean", "FFT_std",
}

// Slice возвращает копию вектора в виде среза.
func (v FeatureVector) Slice() []float64 {
	out := make([]float64, FeatureCount)
	copy(out, v[:])
	return out
}
