package ml

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFitScaler_StandardizesColumns(t *testing.T) {
	X := [][]float64{{1, 10, 5}, {2, 20, 5}, {3, 30, 5}}
	s, err := FitScaler(X)
	require.NoError(t, err)
	require.InDeltaSlice(t, []float64{2, 20, 5}, s.Mean, 1e-12)
	// постоянный признак не делится на ноль
	require.Equal(t, 1.0, s.Scale[2])

	out, err := s.TransformAll(X)
	require.NoError(t, err)
	var sum float64
	for _, row := range out {
		sum += row[0]
		require.Equal(t, 0.0, row[2])
	}
	require.InDelta(t, 0, sum, 1e-12)
	require.InDelta(t, -1.224744871, out[0][0], 1e-6)
}

func TestScaler_DimensionMismatch(t *testing.T) {
	s, err := FitScaler([][]float64{{1, 2}, {3, 4}})
	require.NoError(t, err)
	_, err = s.Transform([]float64{1})
	require.Error(t, err)

	var empty *Scaler
	_, err = empty.Transform([]float64{1})
	require.ErrorIs(t, err, ErrNotFitted)
}
