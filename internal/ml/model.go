package ml

import (
	"fmt"
	"slices"
	"time"
)

// Model обученная пара скейлер + лес. После обучения не меняется.
type Model struct {
	Generation   string    `msgpack:"generation"`
	Backend      string    `msgpack:"backend"`
	FeatureNames []string  `msgpack:"feature_names"`
	TrainedAt    time.Time `msgpack:"trained_at"`
	Scaler       *Scaler   `msgpack:"-"`
	Forest       *Forest   `msgpack:"-"`
}

// Validate проверяет согласованность компонентов модели.
func (m *Model) Validate(featureNames []string, backend string) error {
	if m == nil || m.Scaler == nil || m.Forest == nil {
		return ErrNotFitted
	}
	if !slices.Equal(m.FeatureNames, featureNames) {
		return fmt.Errorf("ml: model feature list differs from extractor")
	}
	if m.Backend != backend {
		return fmt.Errorf("ml: model trained with %q feature backend, running %q", m.Backend, backend)
	}
	if m.Scaler.Dim() != m.Forest.NumFeatures || m.Scaler.Dim() != len(featureNames) {
		return fmt.Errorf("ml: scaler has %d features, forest %d", m.Scaler.Dim(), m.Forest.NumFeatures)
	}
	return nil
}

// PredictProba стандартизирует вектор и возвращает вероятности классов.
func (m *Model) PredictProba(x []float64) ([2]float64, error) {
	scaled, err := m.Scaler.Transform(x)
	if err != nil {
		return [2]float64{}, err
	}
	return m.Forest.PredictProba(scaled)
}
