package app

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"culture-sentinel/internal/domain/entity"
	"culture-sentinel/internal/domain/port"
	"culture-sentinel/internal/logging"
)

const (
	DefaultTimepoints = 6
	DefaultInterval   = 10 // секунды
)

// WellIDs лунки синтетического планшета
var WellIDs = []string{"A1", "A2", "A3"}

// ExperimentSimulator строит синтетические эксперименты с известной разметкой.
type ExperimentSimulator struct {
	pool   port.ImagePool
	repo   port.ExperimentRepository
	logger *zap.Logger
	now    func() time.Time

	mu  sync.Mutex
	rng *rand.Rand
}

// NewExperimentSimulator создаёт симулятор. rng управляет сценарием random;
// nil означает случайный seed.
func NewExperimentSimulator(pool port.ImagePool, repo port.ExperimentRepository, rng *rand.Rand, logger *zap.Logger) *ExperimentSimulator {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &ExperimentSimulator{
		pool:   pool,
		repo:   repo,
		logger: logging.OrNop(logger),
		now:    time.Now,
		rng:    rng,
	}
}

// CreateExperiment генерирует все точки эксперимента сразу и сохраняет его.
func (s *ExperimentSimulator) CreateExperiment(ctx context.Context, numTimepoints, intervalSeconds int, scenario entity.Scenario) (string, error) {
	if numTimepoints <= 0 {
		return "", fmt.Errorf("num_timepoints %d: %w", numTimepoints, entity.ErrInvalidArgument)
	}
	if intervalSeconds < 0 {
		return "", fmt.Errorf("interval_seconds %d: %w", intervalSeconds, entity.ErrInvalidArgument)
	}
	if _, err := scenario.MarshalText(); err != nil {
		return "", err
	}

	exp := &entity.Experiment{
		ID:              uuid.NewString(),
		Status:          entity.StatusCompleted,
		NumTimepoints:   numTimepoints,
		IntervalSeconds: intervalSeconds,
		Scenario:        scenario,
		CreatedAt:       s.now().UTC(),
		Timepoints:      make([]entity.Timepoint, 0, numTimepoints),
	}
	for idx := 0; idx < numTimepoints; idx++ {
		wells, err := s.wellsAt(ctx, scenario, idx, numTimepoints)
		if err != nil {
			return "", fmt.Errorf("timepoint %d: %w", idx, err)
		}
		exp.Timepoints = append(exp.Timepoints, entity.Timepoint{
			Index: idx,
			Time:  idx * intervalSeconds,
			Wells: wells,
		})
	}

	if err := s.repo.Save(ctx, exp); err != nil {
		return "", err
	}
	s.logger.Info("experiment created",
		zap.String("experiment_id", exp.ID),
		zap.Stringer("scenario", scenario),
		zap.Int("timepoints", numTimepoints))
	return exp.ID, nil
}

// GetExperiment возвращает эксперимент или entity.ErrNotFound
func (s *ExperimentSimulator) GetExperiment(ctx context.Context, id string) (*entity.Experiment, error) {
	return s.repo.Get(ctx, id)
}

// WellImagePath путь к снимку лунки в заданный момент времени.
func (s *ExperimentSimulator) WellImagePath(ctx context.Context, id string, timeSeconds int, wellID string) (string, error) {
	exp, err := s.repo.Get(ctx, id)
	if err != nil {
		return "", err
	}
	well, ok := exp.Well(timeSeconds, wellID)
	if !ok {
		return "", fmt.Errorf("well %s at %ds: %w", wellID, timeSeconds, entity.ErrNotFound)
	}
	return well.ImagePath, nil
}

func (s *ExperimentSimulator) wellsAt(ctx context.Context, scenario entity.Scenario, idx, total int) ([]entity.Well, error) {
	wells := make([]entity.Well, 0, len(WellIDs))
	for _, id := range WellIDs {
		well := entity.Well{ID: id, TrueLabel: entity.LabelClean}
		if s.contaminated(scenario, id, idx, total) {
			well.TrueLabel = entity.LabelContaminated
			well.Severity = SeverityAt(idx, total)
		}
		path, _, err := s.pool.Random(ctx, well.TrueLabel, well.Severity)
		if err != nil {
			return nil, err
		}
		well.ImagePath = path
		wells = append(wells, well)
	}
	return wells, nil
}

// contaminated решает, заражена ли лунка в точке idx.
func (s *ExperimentSimulator) contaminated(scenario entity.Scenario, wellID string, idx, total int) bool {
	switch scenario {
	case entity.ScenarioClean:
		return false
	case entity.ScenarioGradual:
		return gradualOnset(wellID, idx)
	case entity.ScenarioSudden:
		return wellID == "A2" && idx >= 2
	case entity.ScenarioRandom:
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.rng.Float64() < float64(idx)/float64(total)
	default:
		panic(fmt.Sprintf("unhandled scenario %v", scenario))
	}
}

func gradualOnset(wellID string, idx int) bool {
	switch wellID {
	case "A1":
		return idx >= 3
	case "A2":
		return idx >= 5
	default:
		return false
	}
}

// SeverityAt степень заражения по третям эксперимента.
func SeverityAt(idx, total int) entity.Severity {
	switch {
	case idx < total/3:
		return entity.SeverityLight
	case idx < 2*total/3:
		return entity.SeverityMedium
	default:
		return entity.SeverityHeavy
	}
}
