package container

import (
	"math/rand"

	"go.uber.org/zap"

	app "culture-sentinel/internal/application"
	"culture-sentinel/internal/domain/port"
	"culture-sentinel/internal/logging"
)

// Deps инфраструктура, которую собирает вызывающая сторона
type Deps struct {
	Users       port.UserRepository
	Models      port.ModelStore
	Extractor   port.FeatureExtractor
	Files       port.ImageFiles
	Experiments port.ExperimentRepository
	Pool        port.ImagePool
	Oracle      port.VisionOracle // nil: оракул не настроен
	Rand        *rand.Rand        // генератор сценария random
}

type Container struct {
	UserService *app.UserService
	Classifier  *app.ClassifierService
	Simulator   *app.ExperimentSimulator
	Analyzer    *app.WellAnalyzer
	Pool        port.ImagePool
}

func New(deps Deps, analyzer app.AnalyzerConfig, logger *zap.Logger, opts ...app.ClassifierOption) *Container {
	logger = logging.OrNop(logger)

	userService := app.NewUserService(deps.Users)
	classifier := app.NewClassifierService(deps.Models, deps.Extractor, deps.Files, logger.Named("classifier"), opts...)
	simulator := app.NewExperimentSimulator(deps.Pool, deps.Experiments, deps.Rand, logger.Named("simulator"))
	wellAnalyzer := app.NewWellAnalyzer(classifier, deps.Oracle, deps.Files, deps.Experiments, deps.Pool, analyzer, logger.Named("analyzer"))

	return &Container{
		UserService: userService,
		Classifier:  classifier,
		Simulator:   simulator,
		Analyzer:    wellAnalyzer,
		Pool:        deps.Pool,
	}
}
