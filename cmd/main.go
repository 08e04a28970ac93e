package main

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"culture-sentinel/config"
	telegram "culture-sentinel/internal/api"
	app "culture-sentinel/internal/application"
	"culture-sentinel/internal/container"
	"culture-sentinel/internal/domain/entity"
	"culture-sentinel/internal/domain/port"
	"culture-sentinel/internal/infrastructure/imagepool"
	"culture-sentinel/internal/infrastructure/oracle"
	"culture-sentinel/internal/infrastructure/storage"
	"culture-sentinel/internal/infrastructure/vision"
	"culture-sentinel/internal/logging"
	"culture-sentinel/internal/retry"
)

var (
	configPath string
	seed       int64
)

var rootCmd = &cobra.Command{
	Use:           "sentinel",
	Short:         "Детектор заражения бактериальных культур по снимкам лунок",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Обучить модель на каталогах чистых и заражённых снимков",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withRuntime(cmd, func(ctx context.Context, rt *runtime) error {
			testSize, _ := cmd.Flags().GetFloat64("test-size")
			req := app.DefaultTrainRequest(rt.cfg.Dataset.CleanDir, rt.cfg.Dataset.ContaminatedDir)
			req.TestFraction = testSize
			req.Seed = seed
			report, err := rt.c.Classifier.Train(ctx, req)
			if err != nil {
				return err
			}
			return printJSON(report)
		})
	},
}

var predictCmd = &cobra.Command{
	Use:   "predict <image>",
	Short: "Классифицировать снимок локальной моделью",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withRuntime(cmd, func(ctx context.Context, rt *runtime) error {
			img, err := vision.LoadFile(args[0], vision.TargetSize)
			if err != nil {
				return err
			}
			pred, err := rt.c.Classifier.Predict(ctx, img)
			if err != nil {
				return err
			}
			return printJSON(pred)
		})
	},
}

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Создать синтетический эксперимент",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withRuntime(cmd, func(ctx context.Context, rt *runtime) error {
			n, _ := cmd.Flags().GetInt("timepoints")
			interval, _ := cmd.Flags().GetInt("interval")
			tag, _ := cmd.Flags().GetString("scenario")
			analyze, _ := cmd.Flags().GetBool("analyze")

			scenario, err := entity.ParseScenario(tag)
			if err != nil {
				return err
			}
			id, err := rt.c.Simulator.CreateExperiment(ctx, n, interval, scenario)
			if err != nil {
				return err
			}
			if analyze {
				return analyzeExperiment(ctx, rt, id)
			}
			exp, err := rt.c.Simulator.GetExperiment(ctx, id)
			if err != nil {
				return err
			}
			return printJSON(exp)
		})
	},
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze [image]",
	Short: "Проверить снимок моделью и оракулом, либо весь эксперимент (--experiment)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withRuntime(cmd, func(ctx context.Context, rt *runtime) error {
			id, _ := cmd.Flags().GetString("experiment")
			if id != "" {
				return analyzeExperiment(ctx, rt, id)
			}
			if len(args) == 0 {
				return fmt.Errorf("image path or --experiment is required: %w", entity.ErrInvalidArgument)
			}
			img, err := vision.LoadFile(args[0], vision.TargetSize)
			if err != nil {
				return err
			}
			return printJSON(rt.c.Analyzer.AnalyzeWell(ctx, img, args[0]))
		})
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Запустить REST API",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withRuntime(cmd, func(ctx context.Context, rt *runtime) error {
			server := telegram.NewRESTServer(rt.c.Classifier, rt.c.Simulator, rt.c.Analyzer, rt.c.Pool,
				app.DefaultTrainRequest(rt.cfg.Dataset.CleanDir, rt.cfg.Dataset.ContaminatedDir),
				rt.logger.Named("rest"))
			return server.ListenAndServe(ctx, rt.cfg.HTTPAddr)
		})
	},
}

var botCmd = &cobra.Command{
	Use:   "bot",
	Short: "Запустить Telegram-бота",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withRuntime(cmd, func(ctx context.Context, rt *runtime) error {
			if err := rt.cfg.RequireTelegram(); err != nil {
				return err
			}
			bot, err := telegram.NewBot(rt.cfg.TelegramToken, rt.c.UserService, rt.c.Analyzer, rt.logger.Named("bot"))
			if err != nil {
				return fmt.Errorf("create bot: %w", err)
			}
			rt.logger.Info("bot is running")
			if err := bot.Run(ctx); err != nil && ctx.Err() == nil {
				return err
			}
			return nil
		})
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML-файл конфигурации")
	rootCmd.PersistentFlags().Int64Var(&seed, "seed", app.DefaultSeed, "seed обучения и сценария random")

	trainCmd.Flags().Float64("test-size", app.DefaultTestFraction, "доля тестовой выборки")

	simulateCmd.Flags().Int("timepoints", app.DefaultTimepoints, "число точек")
	simulateCmd.Flags().Int("interval", app.DefaultInterval, "интервал между точками, с")
	simulateCmd.Flags().String("scenario", entity.ScenarioGradual.String(), "clean, gradual, sudden или random")
	simulateCmd.Flags().Bool("analyze", false, "сразу проанализировать все лунки")

	analyzeCmd.Flags().String("experiment", "", "ID эксперимента")

	rootCmd.AddCommand(trainCmd, predictCmd, simulateCmd, analyzeCmd, serveCmd, botCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// runtime собранное приложение для одной команды
type runtime struct {
	cfg     *config.Config
	logger  *zap.Logger
	c       *container.Container
	closers []func() error
}

func withRuntime(cmd *cobra.Command, fn func(ctx context.Context, rt *runtime) error) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger, err := logging.New(cfg.Debug)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	rt, err := build(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer rt.close()

	return fn(ctx, rt)
}

// build собирает инфраструктуру и передаёт её в контейнер
func build(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*runtime, error) {
	rt := &runtime{cfg: cfg, logger: logger}

	retention := storage.Retention{MaxExperiments: cfg.Store.MaxExperiments, TTL: cfg.Store.TTL}
	var experiments port.ExperimentRepository
	if cfg.Store.Path != "" {
		repo, err := storage.NewSQLiteExperimentRepository(ctx, cfg.Store.Path, retention)
		if err != nil {
			return nil, err
		}
		rt.closers = append(rt.closers, repo.Close)
		experiments = repo
	} else {
		experiments = storage.NewMemoryExperimentRepository(retention)
	}

	rng := rand.New(rand.NewSource(seed))
	pool := imagepool.NewDirectoryPool(cfg.Dataset.CleanDir, cfg.Dataset.ContaminatedDir,
		vision.TargetSize, rand.New(rand.NewSource(seed+1)), logger.Named("pool"))

	var visionOracle port.VisionOracle
	if err := cfg.RequireOracle(); err != nil {
		logger.Warn("vision oracle disabled", zap.Error(err))
	} else {
		o, err := oracle.NewGeminiOracle(ctx, cfg.GoogleAPIKey, cfg.GeminiModel, logger.Named("oracle"),
			oracle.WithUploadWait(cfg.Analyzer.UploadPoll, cfg.Analyzer.UploadMaxWait))
		if err != nil {
			return nil, err
		}
		visionOracle = o
	}

	policy := retry.Default()
	policy.MaxAttempts = cfg.Analyzer.MaxAttempts
	policy.BaseDelay = cfg.Analyzer.BaseDelay
	policy.Jitter = cfg.Analyzer.Jitter

	rt.c = container.New(container.Deps{
		Users:       storage.NewMemoryUserRepository(),
		Models:      storage.NewFileModelStore(cfg.ModelDir, logger.Named("models")),
		Extractor:   vision.NewExtractor(),
		Files:       vision.NewFiles(),
		Experiments: experiments,
		Pool:        pool,
		Oracle:      visionOracle,
		Rand:        rng,
	}, app.AnalyzerConfig{
		Retry:       policy,
		WellTimeout: cfg.Analyzer.WellTimeout,
		Workers:     cfg.Analyzer.Workers,
	}, logger)

	// модель может быть ещё не обучена, это не ошибка
	if err := rt.c.Classifier.Load(ctx); err != nil {
		logger.Info("model not loaded", zap.Error(err))
	}
	return rt, nil
}

// analyzeExperiment печатает результат, в том числе частичный после прерывания
func analyzeExperiment(ctx context.Context, rt *runtime, id string) error {
	res, err := rt.c.Analyzer.AnalyzeExperiment(ctx, id)
	if res != nil {
		if perr := printJSON(res); perr != nil {
			return perr
		}
	}
	return err
}

func (rt *runtime) close() {
	for _, closeFn := range rt.closers {
		if err := closeFn(); err != nil {
			rt.logger.Warn("close", zap.Error(err))
		}
	}
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

