package app

import (
	"context"
	"errors"
	"fmt"
	"image"
	"runtime"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"culture-sentinel/internal/domain/entity"
	"culture-sentinel/internal/domain/port"
	"culture-sentinel/internal/logging"
	"culture-sentinel/internal/ml"
)

const (
	DefaultTestFraction = 0.2
	DefaultSeed         = 42
)

// TrainRequest параметры обучения
type TrainRequest struct {
	CleanDir        string  `json:"clean_dir"`
	ContaminatedDir string  `json:"contaminated_dir"`
	TestFraction    float64 `json:"test_size"`
	Seed            int64   `json:"random_state"`
}

// DefaultTrainRequest запрос с долей теста 0.2 и seed 42.
func DefaultTrainRequest(cleanDir, contaminatedDir string) TrainRequest {
	return TrainRequest{
		CleanDir:        cleanDir,
		ContaminatedDir: contaminatedDir,
		TestFraction:    DefaultTestFraction,
		Seed:            DefaultSeed,
	}
}

// ClassifierService обучает и применяет локальный классификатор заражения.
// Предсказания читают модель без блокировок; обучение идёт строго по одному.
type ClassifierService struct {
	store     port.ModelStore
	extractor port.FeatureExtractor
	files     port.ImageFiles
	forest    func(seed int64) ml.ForestParams
	logger    *zap.Logger

	model   atomic.Pointer[ml.Model]
	trainMu sync.Mutex
	loadMu  sync.Mutex
}

// ClassifierOption настройка ClassifierService
type ClassifierOption func(*ClassifierService)

// WithForestParams подменяет параметры леса
func WithForestParams(fn func(seed int64) ml.ForestParams) ClassifierOption {
	return func(s *ClassifierService) { s.forest = fn }
}

// NewClassifierService создаёт сервис классификатора поверх хранилища модели.
// files нужен только для обучения.
func NewClassifierService(
	store port.ModelStore,
	extractor port.FeatureExtractor,
	files port.ImageFiles,
	logger *zap.Logger,
	opts ...ClassifierOption,
) *ClassifierService {
	s := &ClassifierService{
		store:     store,
		extractor: extractor,
		files:     files,
		forest:    ml.DefaultForestParams,
		logger:    logging.OrNop(logger),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Ready сообщает, загружена ли модель
func (s *ClassifierService) Ready() bool {
	return s.model.Load() != nil
}

// Load читает модель из хранилища и публикует её.
func (s *ClassifierService) Load(ctx context.Context) error {
	s.loadMu.Lock()
	defer s.loadMu.Unlock()

	model, err := s.store.Load(ctx)
	if err != nil {
		return err
	}
	if err := model.Validate(featureNames(), s.extractor.Backend()); err != nil {
		return fmt.Errorf("%w: %v", entity.ErrModelNotReady, err)
	}
	s.model.Store(model)
	s.logger.Info("model loaded",
		zap.String("generation", model.Generation),
		zap.Int("trees", len(model.Forest.Trees)))
	return nil
}

// current возвращает опубликованную модель, при необходимости подгружая её.
func (s *ClassifierService) current(ctx context.Context) (*ml.Model, error) {
	if m := s.model.Load(); m != nil {
		return m, nil
	}
	if err := s.Load(ctx); err != nil {
		if errors.Is(err, entity.ErrModelNotReady) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", entity.ErrModelNotReady, err)
	}
	return s.model.Load(), nil
}

// Predict классифицирует одно изображение.
func (s *ClassifierService) Predict(ctx context.Context, img image.Image) (*entity.Prediction, error) {
	model, err := s.current(ctx)
	if err != nil {
		return nil, err
	}

	features, err := s.extractor.Extract(ctx, img)
	if err != nil {
		return nil, err
	}
	probs, err := model.PredictProba(features.Slice())
	if err != nil {
		return nil, fmt.Errorf("predict: %w", err)
	}

	// при равенстве побеждает clean
	class := 0
	if probs[1] > probs[0] {
		class = 1
	}
	return &entity.Prediction{
		Label:      entity.LabelFromClass(class),
		Confidence: probs[class],
		Probabilities: entity.Probabilities{
			Clean:        probs[0],
			Contaminated: probs[1],
		},
	}, nil
}

// Train обучает модель на двух каталогах, сохраняет оба артефакта
// и только после этого публикует новую модель.
func (s *ClassifierService) Train(ctx context.Context, req TrainRequest) (*entity.TrainingReport, error) {
	if req.TestFraction == 0 {
		req.TestFraction = DefaultTestFraction
	}
	if req.TestFraction < 0 || req.TestFraction >= 1 {
		return nil, fmt.Errorf("test fraction %.3f: %w", req.TestFraction, entity.ErrInvalidArgument)
	}

	s.trainMu.Lock()
	defer s.trainMu.Unlock()

	start := time.Now()
	cleanX, err := s.extractDir(ctx, req.CleanDir)
	if err != nil {
		return nil, fmt.Errorf("clean images: %w", err)
	}
	contaminatedX, err := s.extractDir(ctx, req.ContaminatedDir)
	if err != nil {
		return nil, fmt.Errorf("contaminated images: %w", err)
	}

	X := append(cleanX, contaminatedX...)
	y := make([]int, len(X))
	for i := len(cleanX); i < len(y); i++ {
		y[i] = 1
	}
	s.logger.Info("features extracted",
		zap.Int("clean", len(cleanX)),
		zap.Int("contaminated", len(contaminatedX)),
		zap.Duration("elapsed", time.Since(start)))

	trainIdx, testIdx, err := ml.StratifiedSplit(y, req.TestFraction, req.Seed)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", entity.ErrInvalidArgument, err)
	}
	trainX, trainY := ml.Take(X, y, trainIdx)
	testX, testY := ml.Take(X, y, testIdx)

	scaler, err := ml.FitScaler(trainX)
	if err != nil {
		return nil, err
	}
	trainScaled, err := scaler.TransformAll(trainX)
	if err != nil {
		return nil, err
	}
	testScaled, err := scaler.TransformAll(testX)
	if err != nil {
		return nil, err
	}

	forest, err := ml.FitForest(ctx, trainScaled, trainY, s.forest(req.Seed))
	if err != nil {
		return nil, fmt.Errorf("fit forest: %w", err)
	}

	model := &ml.Model{
		Generation:   uuid.NewString(),
		Backend:      s.extractor.Backend(),
		FeatureNames: featureNames(),
		TrainedAt:    time.Now().UTC(),
		Scaler:       scaler,
		Forest:       forest,
	}
	if err := model.Validate(featureNames(), model.Backend); err != nil {
		return nil, err
	}

	trainPred, err := forest.PredictAll(trainScaled)
	if err != nil {
		return nil, err
	}
	testPred, err := forest.PredictAll(testScaled)
	if err != nil {
		return nil, err
	}

	if err := s.store.Save(ctx, model); err != nil {
		return nil, fmt.Errorf("save model: %w", err)
	}
	s.model.Store(model)

	report := buildReport(testY, testPred)
	report.TrainAccuracy = ml.Accuracy(trainY, trainPred)
	report.NumSamples = len(X)
	report.NumFeatures = entity.FeatureCount
	report.NumClean = len(cleanX)
	report.NumContaminated = len(contaminatedX)
	report.NumTrain = len(trainIdx)
	report.NumTest = len(testIdx)
	report.ModelGeneration = model.Generation
	report.FeatureBackendName = model.Backend

	s.logger.Info("model trained",
		zap.String("generation", model.Generation),
		zap.Float64("train_accuracy", report.TrainAccuracy),
		zap.Float64("test_accuracy", report.TestAccuracy),
		zap.Duration("elapsed", time.Since(start)))
	return report, nil
}

func buildReport(yTrue, yPred []int) *entity.TrainingReport {
	confusion := ml.Confusion(yTrue, yPred)
	scores := ml.Scores(confusion)
	classes := make(map[entity.Label]entity.ClassMetrics, 2)
	for class, sc := range scores {
		classes[entity.LabelFromClass(class)] = entity.ClassMetrics{
			Precision: sc.Precision,
			Recall:    sc.Recall,
			F1:        sc.F1,
			Support:   sc.Support,
		}
	}
	return &entity.TrainingReport{
		TestAccuracy:    ml.Accuracy(yTrue, yPred),
		ConfusionMatrix: confusion,
		Classes:         classes,
	}
}

// extractDir извлекает признаки всех изображений каталога параллельно.
// Любой нечитаемый файл прерывает обучение.
func (s *ClassifierService) extractDir(ctx context.Context, dir string) ([][]float64, error) {
	paths, err := s.files.List(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", entity.ErrNoSamples, err)
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no images in %s: %w", dir, entity.ErrNoSamples)
	}

	out := make([][]float64, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, path := range paths {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			img, err := s.files.Load(gctx, path)
			if err != nil {
				return err
			}
			features, err := s.extractor.Extract(gctx, img)
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			out[i] = features.Slice()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func featureNames() []string {
	return slices.Clone(entity.FeatureNames[:])
}

var _ port.ContaminationPredictor = (*ClassifierService)(nil)
