package app

import (
	"context"
	"errors"
	"fmt"
	"image"
	"runtime"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"culture-sentinel/internal/domain/entity"
	"culture-sentinel/internal/domain/port"
	"culture-sentinel/internal/logging"
	"culture-sentinel/internal/retry"
)

// DefaultWellTimeout ограничение на анализ одной лунки
const DefaultWellTimeout = 2 * time.Minute

// AnalyzerConfig параметры WellAnalyzer
type AnalyzerConfig struct {
	Retry       retry.Policy
	WellTimeout time.Duration
	Workers     int // 0 означает runtime.GOMAXPROCS
}

// WellAnalyzer прогоняет снимок лунки через локальный классификатор и оракул.
// Вердикты возвращаются оба, без сведения в один.
type WellAnalyzer struct {
	predictor   port.ContaminationPredictor
	oracle      port.VisionOracle
	files       port.ImageFiles
	experiments port.ExperimentRepository
	pool        port.ImagePool
	cfg         AnalyzerConfig
	logger      *zap.Logger
}

// NewWellAnalyzer создаёт анализатор. oracle может быть nil:
// тогда путь оракула всегда возвращает ошибку конфигурации.
func NewWellAnalyzer(
	predictor port.ContaminationPredictor,
	visionOracle port.VisionOracle,
	files port.ImageFiles,
	experiments port.ExperimentRepository,
	pool port.ImagePool,
	cfg AnalyzerConfig,
	logger *zap.Logger,
) *WellAnalyzer {
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry = retry.Default()
	}
	if cfg.WellTimeout <= 0 {
		cfg.WellTimeout = DefaultWellTimeout
	}
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.GOMAXPROCS(0)
	}
	return &WellAnalyzer{
		predictor:   predictor,
		oracle:      visionOracle,
		files:       files,
		experiments: experiments,
		pool:        pool,
		cfg:         cfg,
		logger:      logging.OrNop(logger),
	}
}

// AnalyzeWell анализирует один снимок. imagePath необязателен: если файл
// существует, оракулу уходят его байты, иначе JPEG-кодировка img.
func (a *WellAnalyzer) AnalyzeWell(ctx context.Context, img image.Image, imagePath string) entity.WellAnalysis {
	return entity.WellAnalysis{
		Local:  a.analyzeLocal(ctx, img),
		Oracle: a.analyzeOracle(ctx, img, imagePath),
	}
}

func (a *WellAnalyzer) analyzeLocal(ctx context.Context, img image.Image) entity.LocalVerdict {
	pred, err := a.predictor.Predict(ctx, img)
	if err != nil {
		a.logger.Warn("local analysis failed", zap.Error(err))
		return entity.LocalError(err)
	}
	return entity.NewLocalVerdict(pred)
}

func (a *WellAnalyzer) analyzeOracle(ctx context.Context, img image.Image, imagePath string) entity.OracleVerdict {
	if a.oracle == nil {
		return oracleError(fmt.Errorf("vision oracle: %w", entity.ErrConfiguration), 0)
	}

	data, mimeType, err := a.oraclePayload(img, imagePath)
	if err != nil {
		return oracleError(err, 0)
	}

	var text string
	attempts, err := a.cfg.Retry.Do(ctx, func(ctx context.Context) error {
		var jerr error
		text, jerr = a.oracle.Judge(ctx, data, mimeType)
		if errors.Is(jerr, entity.ErrRateLimited) {
			a.logger.Warn("oracle rate limited", zap.Error(jerr))
		}
		return jerr
	})
	if err != nil {
		a.logger.Warn("oracle analysis failed", zap.Int("attempts", attempts), zap.Error(err))
		return oracleError(err, attempts)
	}

	label, reasoning, err := entity.ParseOracleText(text)
	if err != nil {
		v := oracleError(err, attempts)
		v.RawResponse = text
		return v
	}
	return entity.OracleVerdict{
		Label:       label,
		Reasoning:   reasoning,
		RawResponse: text,
		Attempts:    attempts,
	}
}

func oracleError(err error, attempts int) entity.OracleVerdict {
	return entity.OracleVerdict{
		Label:     entity.LabelError,
		Reasoning: fmt.Sprintf("Analysis failed: %v", err),
		Attempts:  attempts,
		Error:     err.Error(),
	}
}

// oraclePayload байты изображения для оракула и их MIME-тип.
func (a *WellAnalyzer) oraclePayload(img image.Image, imagePath string) ([]byte, string, error) {
	if imagePath != "" {
		if data, mimeType, err := a.files.Raw(imagePath); err == nil {
			return data, mimeType, nil
		}
	}
	if img == nil {
		return nil, "", fmt.Errorf("no image for oracle: %w", entity.ErrInvalidArgument)
	}
	return a.files.Encode(img)
}

// AnalyzeExperiment анализирует все лунки всех точек эксперимента параллельно.
// Ошибка отдельной лунки попадает в её вердикты и не прерывает остальные.
// При отмене ctx возвращается частичный результат вместе с ошибкой контекста:
// неначатые лунки помечены ошибкой.
func (a *WellAnalyzer) AnalyzeExperiment(ctx context.Context, id string) (*entity.ExperimentResult, error) {
	exp, err := a.experiments.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	result := &entity.ExperimentResult{
		ID:              exp.ID,
		Status:          exp.Status,
		NumTimepoints:   exp.NumTimepoints,
		IntervalSeconds: exp.IntervalSeconds,
		Scenario:        exp.Scenario.String(),
		Timepoints:      make([]entity.TimepointResult, len(exp.Timepoints)),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.cfg.Workers)
	for t, tp := range exp.Timepoints {
		result.Timepoints[t] = entity.TimepointResult{
			Time:  tp.Time,
			Wells: make([]entity.WellResult, len(tp.Wells)),
		}
		for w, well := range tp.Wells {
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					result.Timepoints[t].Wells[w] = wellError(well, err)
					return nil
				}
				result.Timepoints[t].Wells[w] = a.analyzeExperimentWell(gctx, well)
				return nil
			})
		}
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		a.logger.Warn("experiment analysis interrupted",
			zap.String("experiment_id", id),
			zap.Int("failures", result.Failures()))
		return result, fmt.Errorf("analyse experiment %s: %w", id, err)
	}
	a.logger.Info("experiment analysed",
		zap.String("experiment_id", id),
		zap.Int("failures", result.Failures()))
	return result, nil
}

func (a *WellAnalyzer) analyzeExperimentWell(ctx context.Context, well entity.Well) entity.WellResult {
	ctx, cancel := context.WithTimeout(ctx, a.cfg.WellTimeout)
	defer cancel()

	img, err := a.pool.Load(ctx, well.ImagePath)
	if err != nil {
		return wellError(well, err)
	}
	res := entity.WellResult{
		ID:        well.ID,
		ImagePath: well.ImagePath,
		TrueLabel: well.TrueLabel,
	}
	analysis := a.AnalyzeWell(ctx, img, well.ImagePath)
	res.Local = analysis.Local
	res.Oracle = analysis.Oracle
	return res
}

func wellError(well entity.Well, err error) entity.WellResult {
	return entity.WellResult{
		ID:        well.ID,
		ImagePath: well.ImagePath,
		TrueLabel: well.TrueLabel,
		Local:     entity.LocalError(err),
		Oracle:    oracleError(err, 0),
	}
}
