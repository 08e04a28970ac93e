package ml

// Accuracy доля совпавших меток
func Accuracy(yTrue, yPred []int) float64 {
	if len(yTrue) == 0 {
		return 0
	}
	hit := 0
	for i := range yTrue {
		if yTrue[i] == yPred[i] {
			hit++
		}
	}
	return float64(hit) / float64(len(yTrue))
}

// Confusion матрица ошибок: [истинный класс][предсказанный класс].
func Confusion(yTrue, yPred []int) [2][2]int {
	var m [2][2]int
	for i := range yTrue {
		m[yTrue[i]][yPred[i]]++
	}
	return m
}

// ClassScore точность, полнота и F1 одного класса
type ClassScore struct {
	Precision float64
	Recall    float64
	F1        float64
	Support   int
}

// Scores считает метрики по матрице ошибок для обоих классов.
func Scores(m [2][2]int) [2]ClassScore {
	var out [2]ClassScore
	for c := 0; c < 2; c++ {
		tp := m[c][c]
		predicted := m[0][c] + m[1][c]
		actual := m[c][0] + m[c][1]
		s := ClassScore{Support: actual}
		if predicted > 0 {
			s.Precision = float64(tp) / float64(predicted)
		}
		if actual > 0 {
			s.Recall = float64(tp) / float64(actual)
		}
		if s.Precision+s.Recall > 0 {
			s.F1 = 2 * s.Precision * s.Recall / (s.Precision + s.Recall)
		}
		out[c] = s
	}
	return out
}
