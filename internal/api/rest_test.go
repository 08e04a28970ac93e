package api

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"

	app "culture-sentinel/internal/application"
	"culture-sentinel/internal/domain/entity"
	"culture-sentinel/internal/domain/port"
)

type fakeClassifier struct {
	ready   bool
	trained app.TrainRequest
}

func (c *fakeClassifier) Train(ctx context.Context, req app.TrainRequest) (*entity.TrainingReport, error) {
	c.trained = req
	if req.CleanDir == "" {
		return nil, entity.ErrNoSamples
	}
	return &entity.TrainingReport{TestAccuracy: 0.95, NumSamples: 10}, nil
}

func (c *fakeClassifier) Predict(ctx context.Context, img image.Image) (*entity.Prediction, error) {
	if !c.ready {
		return nil, entity.ErrModelNotReady
	}
	return &entity.Prediction{
		Label:         entity.LabelClean,
		Confidence:    0.7,
		Probabilities: entity.Probabilities{Clean: 0.7, Contaminated: 0.3},
	}, nil
}

func (c *fakeClassifier) Ready() bool { return c.ready }

type fakeSimulator struct {
	created []entity.Scenario
}

func (s *fakeSimulator) CreateExperiment(ctx context.Context, n, interval int, scenario entity.Scenario) (string, error) {
	if n <= 0 {
		return "", entity.ErrInvalidArgument
	}
	s.created = append(s.created, scenario)
	return "exp-1", nil
}

func (s *fakeSimulator) GetExperiment(ctx context.Context, id string) (*entity.Experiment, error) {
	if id != "exp-1" {
		return nil, entity.ErrNotFound
	}
	return &entity.Experiment{ID: id, Scenario: entity.ScenarioSudden, NumTimepoints: 3}, nil
}

type fakeExperimentAnalyzer struct {
	fakeWellAnalyzer
}

func (a *fakeExperimentAnalyzer) AnalyzeExperiment(ctx context.Context, id string) (*entity.ExperimentResult, error) {
	if id != "exp-1" {
		return nil, entity.ErrNotFound
	}
	return &entity.ExperimentResult{ID: id, Scenario: "sudden", Timepoints: []entity.TimepointResult{{Time: 0}}}, nil
}

type fakeInfoPool struct {
	port.ImagePool
}

func (fakeInfoPool) Info() port.DatasetInfo {
	return port.DatasetInfo{TotalImages: 7, CleanImages: 3, ContaminatedImages: 4}
}

func newTestServer(ready bool) (*RESTServer, *fakeClassifier, *fakeSimulator, *fakeExperimentAnalyzer) {
	classifier := &fakeClassifier{ready: ready}
	simulator := &fakeSimulator{}
	analyzer := &fakeExperimentAnalyzer{fakeWellAnalyzer{result: entity.WellAnalysis{
		Local:  entity.LocalVerdict{Label: entity.LabelClean, Confidence: 0.7},
		Oracle: entity.OracleVerdict{Label: entity.LabelClean, Reasoning: "ok"},
	}}}
	srv := NewRESTServer(classifier, simulator, analyzer, fakeInfoPool{},
		app.DefaultTrainRequest("clean", "contaminated"), nil)
	return srv, classifier, simulator, analyzer
}

func do(t *testing.T, h http.Handler, method, target string, body []byte, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRESTServer_HealthAndDataset(t *testing.T) {
	srv, _, _, _ := newTestServer(true)

	rec := do(t, srv.Handler(), http.MethodGet, "/health", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"status":"healthy","model_ready":true}`, rec.Body.String())

	rec = do(t, srv.Handler(), http.MethodGet, "/api/dataset?format=msgpack", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "application/x-msgpack", rec.Header().Get("Content-Type"))
	var info map[string]any
	require.NoError(t, msgpack.Unmarshal(rec.Body.Bytes(), &info))
	require.EqualValues(t, 7, info["total_images"])
}

func TestRESTServer_Train(t *testing.T) {
	srv, classifier, _, _ := newTestServer(false)

	rec := do(t, srv.Handler(), http.MethodPost, "/api/train", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "clean", classifier.trained.CleanDir)
	require.EqualValues(t, 42, classifier.trained.Seed)

	rec = do(t, srv.Handler(), http.MethodPost, "/api/train", []byte(`{"clean_dir":"","test_size":0.3}`), "application/json")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, 0.3, classifier.trained.TestFraction)

	rec = do(t, srv.Handler(), http.MethodPost, "/api/train", []byte(`{`), "application/json")
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRESTServer_Predict(t *testing.T) {
	srv, _, _, _ := newTestServer(false)
	data := pngBytes(t)

	rec := do(t, srv.Handler(), http.MethodPost, "/api/predict", data, "image/png")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	srv, _, _, _ = newTestServer(true)
	rec = do(t, srv.Handler(), http.MethodPost, "/api/predict", data, "image/png")
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"label":"clean","confidence":0.7,"probabilities":{"clean":0.7,"contaminated":0.3}}`, rec.Body.String())

	rec = do(t, srv.Handler(), http.MethodPost, "/api/predict", []byte("garbage"), "image/png")
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, srv.Handler(), http.MethodPost, "/api/predict", nil, "image/png")
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRESTServer_AnalyzeMultipart(t *testing.T) {
	srv, _, _, analyzer := newTestServer(true)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "well.PNG")
	require.NoError(t, err)
	_, err = part.Write(pngBytes(t))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	rec := do(t, srv.Handler(), http.MethodPost, "/api/analyze", buf.Bytes(), mw.FormDataContentType())
	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, analyzer.pathExisted)

	var got entity.WellAnalysis
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Equal(t, entity.LabelClean, got.Oracle.Label)
	require.Contains(t, rec.Body.String(), `"rf_prediction"`)
	require.Contains(t, rec.Body.String(), `"llm_prediction"`)
}

func TestRESTServer_Experiments(t *testing.T) {
	srv, _, simulator, _ := newTestServer(true)
	h := srv.Handler()

	rec := do(t, h, http.MethodPost, "/api/experiments", []byte(`{"num_timepoints":3,"contamination_scenario":"sudden"}`), "application/json")
	require.Equal(t, http.StatusCreated, rec.Code)
	require.Contains(t, rec.Body.String(), `"experiment_id":"exp-1"`)
	require.Equal(t, []entity.Scenario{entity.ScenarioSudden}, simulator.created)

	rec = do(t, h, http.MethodPost, "/api/experiments", nil, "")
	require.Equal(t, http.StatusCreated, rec.Code)
	require.Equal(t, entity.ScenarioGradual, simulator.created[1])

	rec = do(t, h, http.MethodPost, "/api/experiments", []byte(`{"contamination_scenario":"volcanic"}`), "application/json")
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodPost, "/api/experiments", []byte(`{"num_timepoints":0}`), "application/json")
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodGet, "/api/experiments/exp-1", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"contamination_scenario":"sudden"`)

	rec = do(t, h, http.MethodGet, "/api/experiments/nope", nil, "")
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.True(t, strings.Contains(rec.Body.String(), "not found"))

	rec = do(t, h, http.MethodGet, "/api/experiments/exp-1/analysis", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"timepoints":[{"time":0`)
}
