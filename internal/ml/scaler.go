// Package ml содержит классические модели для классификации векторов признаков:
// стандартизацию, случайный лес и вспомогательные метрики.
package ml

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/stat"
)

// ErrNotFitted модель ещё не обучена
var ErrNotFitted = errors.New("ml: not fitted")

// Scaler приводит каждый признак к нулевому среднему и единичной дисперсии.
type Scaler struct {
	Mean  []float64 `msgpack:"mean"`
	Scale []float64 `msgpack:"scale"`
}

// FitScaler считает статистики по обучающей выборке.
// Для признака с нулевой дисперсией масштаб равен 1.
func FitScaler(X [][]float64) (*Scaler, error) {
	if len(X) == 0 {
		return nil, errors.New("ml: empty sample set")
	}
	dim := len(X[0])
	s := &Scaler{Mean: make([]float64, dim), Scale: make([]float64, dim)}
	col := make([]float64, len(X))
	for j := 0; j < dim; j++ {
		for i, row := range X {
			if len(row) != dim {
				return nil, fmt.Errorf("ml: row %d has %d features, want %d", i, len(row), dim)
			}
			col[i] = row[j]
		}
		mean, std := stat.PopMeanStdDev(col, nil)
		if std == 0 {
			std = 1
		}
		s.Mean[j] = mean
		s.Scale[j] = std
	}
	return s, nil
}

// Dim размерность признаков
func (s *Scaler) Dim() int { return len(s.Mean) }

// Transform стандартизирует один вектор.
func (s *Scaler) Transform(x []float64) ([]float64, error) {
	if s == nil || len(s.Mean) == 0 {
		return nil, ErrNotFitted
	}
	if len(x) != len(s.Mean) {
		return nil, fmt.Errorf("ml: got %d features, scaler fitted on %d", len(x), len(s.Mean))
	}
	out := make([]float64, len(x))
	for j, v := range x {
		out[j] = (v - s.Mean[j]) / s.Scale[j]
	}
	return out, nil
}

// TransformAll стандартизирует набор векторов.
func (s *Scaler) TransformAll(X [][]float64) ([][]float64, error) {
	out := make([][]float64, len(X))
	for i, row := range X {
		t, err := s.Transform(row)
		if err != nil {
			return nil, err
		}
		out[i] = t
	}
	return out, nil
}
