package app

import (
	"context"
	"errors"
	"image"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"culture-sentinel/internal/domain/entity"
	"culture-sentinel/internal/infrastructure/storage"
	"culture-sentinel/internal/infrastructure/vision"
	"culture-sentinel/internal/retry"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakePredictor struct {
	err error
}

func (p *fakePredictor) Predict(ctx context.Context, img image.Image) (*entity.Prediction, error) {
	if p.err != nil {
		return nil, p.err
	}
	return &entity.Prediction{
		Label:         entity.LabelContaminated,
		Confidence:    0.8,
		Probabilities: entity.Probabilities{Clean: 0.2, Contaminated: 0.8},
	}, nil
}

// scriptedOracle возвращает ошибки из списка, затем reply
type scriptedOracle struct {
	mu       sync.Mutex
	failures []error
	reply    string
	calls    int
	mimes    []string
}

func (o *scriptedOracle) Judge(ctx context.Context, data []byte, mimeType string) (string, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.calls++
	o.mimes = append(o.mimes, mimeType)
	if len(o.failures) > 0 {
		err := o.failures[0]
		o.failures = o.failures[1:]
		return "", err
	}
	return o.reply, nil
}

type recordedSleep struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (s *recordedSleep) Sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	s.delays = append(s.delays, d)
	s.mu.Unlock()
	return ctx.Err()
}

func newAnalyzer(oracle *scriptedOracle, sleep *recordedSleep) *WellAnalyzer {
	policy := retry.Default()
	policy.Sleep = sleep.Sleep
	return NewWellAnalyzer(&fakePredictor{}, oracle, vision.NewFiles(), nil, nil, AnalyzerConfig{Retry: policy}, nil)
}

func TestWellAnalyzer_RetriesRateLimit(t *testing.T) {
	rateLimited := &entity.RateLimitError{Err: errors.New("429")}
	oracle := &scriptedOracle{
		failures: []error{rateLimited, rateLimited},
		reply:    "Judgment: contaminated\nReasoning: Mixed colonies.",
	}
	sleep := &recordedSleep{}
	analyzer := newAnalyzer(oracle, sleep)

	res := analyzer.AnalyzeWell(context.Background(), image.NewGray(image.Rect(0, 0, 8, 8)), "")
	require.True(t, res.Oracle.OK())
	require.Equal(t, entity.LabelContaminated, res.Oracle.Label)
	require.Equal(t, "Judgment: contaminated\nReasoning: Mixed colonies.", res.Oracle.Reasoning)
	require.Equal(t, 3, res.Oracle.Attempts)
	require.Equal(t, 3, oracle.calls)
	require.Equal(t, []time.Duration{2 * time.Second, 4 * time.Second}, sleep.delays)
	require.Equal(t, []string{"image/jpeg", "image/jpeg", "image/jpeg"}, oracle.mimes)

	require.Equal(t, entity.LabelContaminated, res.Local.Label)
	require.Equal(t, 0.8, res.Local.Confidence)
}

func TestWellAnalyzer_GivesUpAfterThreeAttempts(t *testing.T) {
	rateLimited := &entity.RateLimitError{Err: errors.New("429")}
	oracle := &scriptedOracle{failures: []error{rateLimited, rateLimited, rateLimited, rateLimited}}
	analyzer := newAnalyzer(oracle, &recordedSleep{})

	res := analyzer.AnalyzeWell(context.Background(), image.NewGray(image.Rect(0, 0, 8, 8)), "")
	require.False(t, res.Oracle.OK())
	require.Equal(t, 3, oracle.calls)
	require.Equal(t, 3, res.Oracle.Attempts)
	require.Contains(t, res.Oracle.Reasoning, "Analysis failed")
}

func TestWellAnalyzer_NoRetryOnOtherErrors(t *testing.T) {
	oracle := &scriptedOracle{failures: []error{entity.ErrOracleFailure}}
	sleep := &recordedSleep{}
	analyzer := newAnalyzer(oracle, sleep)

	res := analyzer.AnalyzeWell(context.Background(), image.NewGray(image.Rect(0, 0, 8, 8)), "")
	require.Equal(t, entity.LabelError, res.Oracle.Label)
	require.Equal(t, 1, oracle.calls)
	require.Empty(t, sleep.delays)
}

func TestWellAnalyzer_ReadsImagePath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "well.png")
	require.NoError(t, os.WriteFile(path, []byte("png bytes"), 0o644))
	oracle := &scriptedOracle{reply: "The culture looks clean and healthy."}
	analyzer := newAnalyzer(oracle, &recordedSleep{})

	res := analyzer.AnalyzeWell(context.Background(), nil, path)
	require.Equal(t, entity.LabelClean, res.Oracle.Label)
	require.Equal(t, []string{"image/png"}, oracle.mimes)
}

func TestWellAnalyzer_LocalErrorKeepsOracle(t *testing.T) {
	oracle := &scriptedOracle{reply: "no idea"}
	analyzer := NewWellAnalyzer(&fakePredictor{err: entity.ErrModelNotReady}, oracle, vision.NewFiles(), nil, nil, AnalyzerConfig{}, nil)

	res := analyzer.AnalyzeWell(context.Background(), image.NewGray(image.Rect(0, 0, 8, 8)), "")
	require.Equal(t, entity.LabelError, res.Local.Label)
	require.Nil(t, res.Local.Probabilities)
	require.Contains(t, res.Local.Error, "model")
	require.Equal(t, entity.LabelUncertain, res.Oracle.Label)

	analyzer = NewWellAnalyzer(&fakePredictor{}, nil, vision.NewFiles(), nil, nil, AnalyzerConfig{}, nil)
	res = analyzer.AnalyzeWell(context.Background(), image.NewGray(image.Rect(0, 0, 8, 8)), "")
	require.True(t, res.Local.OK())
	require.False(t, res.Oracle.OK())
}

// countingOracle падает на лунке A2 и отвечает на остальные
type countingOracle struct {
	calls atomic.Int32
}

func (o *countingOracle) Judge(ctx context.Context, data []byte, mimeType string) (string, error) {
	o.calls.Add(1)
	if string(data) == "A2" {
		return "", entity.ErrOracleFailure
	}
	return "contamination visible", nil
}

// savedExperiment две точки по три лунки; файл лунки содержит её ID
func savedExperiment(t *testing.T) *storage.MemoryExperimentRepository {
	t.Helper()
	dir := t.TempDir()
	for _, id := range WellIDs {
		require.NoError(t, os.WriteFile(filepath.Join(dir, id), []byte(id), 0o644))
	}
	repo := storage.NewMemoryExperimentRepository(storage.Retention{})
	exp := &entity.Experiment{
		ID:              "exp-1",
		Status:          entity.StatusCompleted,
		NumTimepoints:   2,
		IntervalSeconds: 10,
		Scenario:        entity.ScenarioSudden,
	}
	for idx := 0; idx < 2; idx++ {
		tp := entity.Timepoint{Index: idx, Time: idx * 10}
		for _, id := range WellIDs {
			tp.Wells = append(tp.Wells, entity.Well{ID: id, ImagePath: filepath.Join(dir, id), TrueLabel: entity.LabelClean})
		}
		exp.Timepoints = append(exp.Timepoints, tp)
	}
	require.NoError(t, repo.Save(context.Background(), exp))
	return repo
}

func TestWellAnalyzer_AnalyzeExperiment(t *testing.T) {
	repo := savedExperiment(t)

	oracle := &countingOracle{}
	analyzer := NewWellAnalyzer(&fakePredictor{}, oracle, vision.NewFiles(), repo, &fakePool{},
		AnalyzerConfig{WellTimeout: time.Second, Workers: 2}, nil)

	res, err := analyzer.AnalyzeExperiment(context.Background(), "exp-1")
	require.NoError(t, err)
	require.Equal(t, "sudden", res.Scenario)
	require.Len(t, res.Timepoints, 2)
	require.Equal(t, 10, res.Timepoints[1].Time)
	require.Equal(t, int32(6), oracle.calls.Load())
	require.Equal(t, 2, res.Failures())

	for _, tp := range res.Timepoints {
		require.Equal(t, "A1", tp.Wells[0].ID)
		require.Equal(t, entity.LabelContaminated, tp.Wells[0].Oracle.Label)
		require.Equal(t, entity.LabelError, tp.Wells[1].Oracle.Label)
		require.True(t, tp.Wells[1].Local.OK())
	}

	_, err = analyzer.AnalyzeExperiment(context.Background(), "missing")
	require.ErrorIs(t, err, entity.ErrNotFound)
}

// cancellingOracle отменяет анализ на первом же вызове, успев ответить
type cancellingOracle struct {
	cancel context.CancelFunc
	calls  atomic.Int32
}

func (o *cancellingOracle) Judge(ctx context.Context, data []byte, mimeType string) (string, error) {
	o.calls.Add(1)
	o.cancel()
	return "contamination visible", nil
}

func TestWellAnalyzer_AnalyzeExperimentKeepsPartialResult(t *testing.T) {
	repo := savedExperiment(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	oracle := &cancellingOracle{cancel: cancel}
	analyzer := NewWellAnalyzer(&fakePredictor{}, oracle, vision.NewFiles(), repo, &fakePool{},
		AnalyzerConfig{WellTimeout: time.Second, Workers: 1}, nil)

	res, err := analyzer.AnalyzeExperiment(ctx, "exp-1")
	require.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, res)
	require.Len(t, res.Timepoints, 2)
	require.Equal(t, int32(1), oracle.calls.Load())

	first := res.Timepoints[0].Wells[0]
	require.Equal(t, "A1", first.ID)
	require.True(t, first.Local.OK())
	require.Equal(t, entity.LabelContaminated, first.Oracle.Label)

	require.Equal(t, 5, res.Failures())
	last := res.Timepoints[1].Wells[2]
	require.Equal(t, "A3", last.ID)
	require.Equal(t, entity.LabelError, last.Local.Label)
	require.Equal(t, entity.LabelError, last.Oracle.Label)
	require.Contains(t, last.Oracle.Error, "context canceled")
}
