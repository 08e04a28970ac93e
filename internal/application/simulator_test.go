package app

import (
	"context"
	"fmt"
	"image"
	"math/rand"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"culture-sentinel/internal/domain/entity"
	"culture-sentinel/internal/domain/port"
	"culture-sentinel/internal/infrastructure/storage"
)

// fakePool отдаёт пути вида "<label>/<level>.png" и серые квадраты
type fakePool struct {
	mu    sync.Mutex
	calls []string
}

func (p *fakePool) Random(ctx context.Context, label entity.Label, level entity.Severity) (string, *image.Gray, error) {
	path := fmt.Sprintf("%s/%s.png", label, level)
	p.mu.Lock()
	p.calls = append(p.calls, path)
	p.mu.Unlock()
	return path, image.NewGray(image.Rect(0, 0, 4, 4)), nil
}

func (p *fakePool) Load(ctx context.Context, path string) (*image.Gray, error) {
	return image.NewGray(image.Rect(0, 0, 4, 4)), nil
}

func (p *fakePool) Info() port.DatasetInfo { return port.DatasetInfo{} }

func newSimulator(seed int64) (*ExperimentSimulator, *fakePool) {
	pool := &fakePool{}
	repo := storage.NewMemoryExperimentRepository(storage.Retention{MaxExperiments: 100})
	return NewExperimentSimulator(pool, repo, rand.New(rand.NewSource(seed)), nil), pool
}

func TestExperimentSimulator_Gradual(t *testing.T) {
	sim, _ := newSimulator(1)
	ctx := context.Background()

	id, err := sim.CreateExperiment(ctx, 6, 10, entity.ScenarioGradual)
	require.NoError(t, err)

	exp, err := sim.GetExperiment(ctx, id)
	require.NoError(t, err)
	require.Len(t, exp.Timepoints, 6)
	require.Equal(t, entity.StatusCompleted, exp.Status)
	require.Equal(t, []int{3, 4, 5}, exp.Contaminated("A1"))
	require.Equal(t, []int{5}, exp.Contaminated("A2"))
	require.Empty(t, exp.Contaminated("A3"))

	for i, tp := range exp.Timepoints {
		require.Equal(t, i*10, tp.Time)
		require.Len(t, tp.Wells, 3)
	}

	// 6 точек: индексы 3 -> medium, 4 и 5 -> heavy
	well, ok := exp.Well(30, "A1")
	require.True(t, ok)
	require.Equal(t, entity.SeverityMedium, well.Severity)
	require.Equal(t, "contaminated/medium.png", well.ImagePath)
	well, _ = exp.Well(50, "A2")
	require.Equal(t, entity.SeverityHeavy, well.Severity)
}

func TestExperimentSimulator_Sudden(t *testing.T) {
	sim, _ := newSimulator(1)
	ctx := context.Background()

	for _, n := range []int{3, 5, 9} {
		id, err := sim.CreateExperiment(ctx, n, 60, entity.ScenarioSudden)
		require.NoError(t, err)
		exp, err := sim.GetExperiment(ctx, id)
		require.NoError(t, err)

		var want []int
		for i := 2; i < n; i++ {
			want = append(want, i)
		}
		require.Equal(t, want, exp.Contaminated("A2"))
		require.Empty(t, exp.Contaminated("A1"))
		require.Empty(t, exp.Contaminated("A3"))
	}
}

func TestExperimentSimulator_CleanAndRandom(t *testing.T) {
	ctx := context.Background()
	sim, pool := newSimulator(1)

	id, err := sim.CreateExperiment(ctx, 4, 1, entity.ScenarioClean)
	require.NoError(t, err)
	exp, err := sim.GetExperiment(ctx, id)
	require.NoError(t, err)
	for _, w := range WellIDs {
		require.Empty(t, exp.Contaminated(w))
	}
	require.Len(t, pool.calls, 12)

	// одинаковый seed даёт одинаковую разметку
	labels := func(seed int64) [][]entity.Label {
		sim, _ := newSimulator(seed)
		id, err := sim.CreateExperiment(ctx, 8, 1, entity.ScenarioRandom)
		require.NoError(t, err)
		exp, err := sim.GetExperiment(ctx, id)
		require.NoError(t, err)
		var out [][]entity.Label
		for _, tp := range exp.Timepoints {
			var row []entity.Label
			for _, w := range tp.Wells {
				row = append(row, w.TrueLabel)
			}
			out = append(out, row)
		}
		return out
	}
	first := labels(5)
	require.Equal(t, first, labels(5))
	// в нулевой точке вероятность заражения 0
	require.Equal(t, []entity.Label{entity.LabelClean, entity.LabelClean, entity.LabelClean}, first[0])
}

func TestExperimentSimulator_Errors(t *testing.T) {
	sim, _ := newSimulator(1)
	ctx := context.Background()

	_, err := sim.CreateExperiment(ctx, 0, 10, entity.ScenarioClean)
	require.ErrorIs(t, err, entity.ErrInvalidArgument)
	_, err = sim.CreateExperiment(ctx, 3, -1, entity.ScenarioClean)
	require.ErrorIs(t, err, entity.ErrInvalidArgument)
	_, err = sim.CreateExperiment(ctx, 3, 10, entity.Scenario(42))
	require.ErrorIs(t, err, entity.ErrInvalidArgument)

	_, err = sim.GetExperiment(ctx, "missing")
	require.ErrorIs(t, err, entity.ErrNotFound)

	id, err := sim.CreateExperiment(ctx, 3, 10, entity.ScenarioSudden)
	require.NoError(t, err)
	path, err := sim.WellImagePath(ctx, id, 20, "A2")
	require.NoError(t, err)
	require.Equal(t, "contaminated/heavy.png", path)
	_, err = sim.WellImagePath(ctx, id, 25, "A2")
	require.ErrorIs(t, err, entity.ErrNotFound)
}

func TestSeverityAt(t *testing.T) {
	got := make([]entity.Severity, 9)
	for i := range got {
		got[i] = SeverityAt(i, 9)
	}
	require.Equal(t, []entity.Severity{
		entity.SeverityLight, entity.SeverityLight, entity.SeverityLight,
		entity.SeverityMedium, entity.SeverityMedium, entity.SeverityMedium,
		entity.SeverityHeavy, entity.SeverityHeavy, entity.SeverityHeavy,
	}, got)
}
