package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	app "culture-sentinel/internal/application"
	"culture-sentinel/internal/domain/entity"
	"culture-sentinel/internal/domain/port"
	"culture-sentinel/internal/infrastructure/vision"
	"culture-sentinel/internal/logging"
)

const maxUploadBytes = 32 << 20

// Classifier обучение и локальное предсказание
type Classifier interface {
	Train(ctx context.Context, req app.TrainRequest) (*entity.TrainingReport, error)
	Predict(ctx context.Context, img image.Image) (*entity.Prediction, error)
	Ready() bool
}

// Simulator создание и чтение экспериментов
type Simulator interface {
	CreateExperiment(ctx context.Context, numTimepoints, intervalSeconds int, scenario entity.Scenario) (string, error)
	GetExperiment(ctx context.Context, id string) (*entity.Experiment, error)
}

// ExperimentAnalyzer анализ одной лунки и целого эксперимента
type ExperimentAnalyzer interface {
	WellAnalyzer
	AnalyzeExperiment(ctx context.Context, id string) (*entity.ExperimentResult, error)
}

// RESTServer HTTP API движка
type RESTServer struct {
	classifier Classifier
	simulator  Simulator
	analyzer   ExperimentAnalyzer
	pool       port.ImagePool
	dataset    app.TrainRequest // каталоги по умолчанию для /api/train
	logger     *zap.Logger
	router     *mux.Router
}

// NewRESTServer создаёт сервер и регистрирует маршруты
func NewRESTServer(classifier Classifier, simulator Simulator, analyzer ExperimentAnalyzer, pool port.ImagePool, dataset app.TrainRequest, logger *zap.Logger) *RESTServer {
	s := &RESTServer{
		classifier: classifier,
		simulator:  simulator,
		analyzer:   analyzer,
		pool:       pool,
		dataset:    dataset,
		logger:     logging.OrNop(logger),
		router:     mux.NewRouter(),
	}

	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	api := s.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/train", s.handleTrain).Methods(http.MethodPost)
	api.HandleFunc("/predict", s.handlePredict).Methods(http.MethodPost)
	api.HandleFunc("/analyze", s.handleAnalyze).Methods(http.MethodPost)
	api.HandleFunc("/dataset", s.handleDataset).Methods(http.MethodGet)
	api.HandleFunc("/experiments", s.handleCreateExperiment).Methods(http.MethodPost)
	api.HandleFunc("/experiments/{id}", s.handleGetExperiment).Methods(http.MethodGet)
	api.HandleFunc("/experiments/{id}/analysis", s.handleAnalyzeExperiment).Methods(http.MethodGet)
	return s
}

// Handler корневой обработчик
func (s *RESTServer) Handler() http.Handler { return s.router }

// ListenAndServe обслуживает addr до отмены ctx
func (s *RESTServer) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("rest server listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

func (s *RESTServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respond(w, r, http.StatusOK, map[string]any{
		"status":      "healthy",
		"model_ready": s.classifier.Ready(),
	})
}

func (s *RESTServer) handleTrain(w http.ResponseWriter, r *http.Request) {
	req := s.dataset
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			s.fail(w, r, fmt.Errorf("train request: %v: %w", err, entity.ErrInvalidArgument))
			return
		}
	}

	report, err := s.classifier.Train(r.Context(), req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.respond(w, r, http.StatusOK, report)
}

func (s *RESTServer) handlePredict(w http.ResponseWriter, r *http.Request) {
	up, err := readUpload(w, r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	img, err := vision.Decode(up.data, vision.TargetSize)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	pred, err := s.classifier.Predict(r.Context(), img)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.respond(w, r, http.StatusOK, pred)
}

func (s *RESTServer) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	up, err := readUpload(w, r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	img, err := vision.Decode(up.data, vision.TargetSize)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	path, cleanup, err := spoolImage(up.data, up.ext)
	if err != nil {
		s.logger.Warn("spool upload", zap.Error(err))
	}
	defer cleanup()

	s.respond(w, r, http.StatusOK, s.analyzer.AnalyzeWell(r.Context(), img, path))
}

func (s *RESTServer) handleDataset(w http.ResponseWriter, r *http.Request) {
	s.respond(w, r, http.StatusOK, s.pool.Info())
}

type createExperimentRequest struct {
	NumTimepoints   *int             `json:"num_timepoints"`
	IntervalSeconds *int             `json:"interval_seconds"`
	Scenario        *entity.Scenario `json:"contamination_scenario"`
}

func (s *RESTServer) handleCreateExperiment(w http.ResponseWriter, r *http.Request) {
	var body createExperimentRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil && !errors.Is(err, io.EOF) {
			s.fail(w, r, fmt.Errorf("experiment request: %v: %w", err, entity.ErrInvalidArgument))
			return
		}
	}

	numTimepoints, interval, scenario := app.DefaultTimepoints, app.DefaultInterval, entity.ScenarioGradual
	if body.NumTimepoints != nil {
		numTimepoints = *body.NumTimepoints
	}
	if body.IntervalSeconds != nil {
		interval = *body.IntervalSeconds
	}
	if body.Scenario != nil {
		scenario = *body.Scenario
	}

	id, err := s.simulator.CreateExperiment(r.Context(), numTimepoints, interval, scenario)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.respond(w, r, http.StatusCreated, map[string]any{
		"experiment_id":          id,
		"status":                 entity.StatusCompleted,
		"num_timepoints":         numTimepoints,
		"contamination_scenario": scenario,
	})
}

func (s *RESTServer) handleGetExperiment(w http.ResponseWriter, r *http.Request) {
	exp, err := s.simulator.GetExperiment(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.respond(w, r, http.StatusOK, exp)
}

func (s *RESTServer) handleAnalyzeExperiment(w http.ResponseWriter, r *http.Request) {
	res, err := s.analyzer.AnalyzeExperiment(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.respond(w, r, http.StatusOK, res)
}

func (s *RESTServer) respond(w http.ResponseWriter, r *http.Request, status int, data any) {
	if err := writeResponse(w, r, status, data); err != nil {
		s.logger.Warn("write response", zap.String("path", r.URL.Path), zap.Error(err))
	}
}

func (s *RESTServer) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", zap.String("path", r.URL.Path), zap.Error(err))
	} else {
		s.logger.Debug("request rejected", zap.String("path", r.URL.Path), zap.Error(err))
	}
	s.respond(w, r, status, errorResponse{Error: err.Error()})
}

type upload struct {
	data []byte
	ext  string
}

// readUpload принимает файл из поля "file" multipart-формы или сырое тело запроса
func readUpload(w http.ResponseWriter, r *http.Request) (*upload, error) {
	body := http.MaxBytesReader(w, r.Body, maxUploadBytes)

	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		r.Body = body
		file, header, err := r.FormFile("file")
		if err != nil {
			return nil, fmt.Errorf("form file: %v: %w", err, entity.ErrInvalidArgument)
		}
		defer file.Close()
		data, err := io.ReadAll(file)
		if err != nil {
			return nil, fmt.Errorf("read upload: %v: %w", err, entity.ErrInvalidArgument)
		}
		return &upload{data: data, ext: extOrDefault(header.Filename)}, nil
	}

	data, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("read body: %v: %w", err, entity.ErrInvalidArgument)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("empty image: %w", entity.ErrInvalidArgument)
	}
	return &upload{data: data, ext: ".jpg"}, nil
}

func extOrDefault(name string) string {
	if vision.IsSupported(name) {
		return strings.ToLower(filepath.Ext(name))
	}
	return ".jpg"
}
