package oracle

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"culture-sentinel/internal/domain/entity"
	"culture-sentinel/internal/domain/port"
	"culture-sentinel/internal/retry"
)

// DefaultModel модель Gemini по умолчанию
const DefaultModel = "gemini-2.0-flash"

// geminiAPI узкий срез клиента genai, нужный оракулу
type geminiAPI interface {
	Upload(ctx context.Context, data []byte, mimeType string) (*genai.File, error)
	GetFile(ctx context.Context, name string) (*genai.File, error)
	DeleteFile(ctx context.Context, name string) error
	Generate(ctx context.Context, model string, contents []*genai.Content) (string, error)
}

// GeminiOracle визуальный оракул на Gemini: загружает снимок,
// ждёт его обработки и просит классифицировать лунку.
type GeminiOracle struct {
	api          geminiAPI
	model        string
	pollInterval time.Duration
	maxWait      time.Duration
	sleep        retry.SleepFunc
	logger       *zap.Logger
}

// Option настройка оракула
type Option func(*GeminiOracle)

// WithUploadWait задаёт шаг опроса и предел ожидания обработки файла.
func WithUploadWait(poll, limit time.Duration) Option {
	return func(o *GeminiOracle) {
		o.pollInterval = poll
		o.maxWait = limit
	}
}

// WithSleep подменяет ожидание (для тестов).
func WithSleep(sleep retry.SleepFunc) Option {
	return func(o *GeminiOracle) { o.sleep = sleep }
}

// NewGeminiOracle создаёт оракул с клиентом Gemini API.
func NewGeminiOracle(ctx context.Context, apiKey, model string, logger *zap.Logger, opts ...Option) (*GeminiOracle, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("GOOGLE_API_KEY is required: %w", entity.ErrConfiguration)
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return newGeminiOracle(&genaiClient{client: client}, model, logger, opts...), nil
}

func newGeminiOracle(api geminiAPI, model string, logger *zap.Logger, opts ...Option) *GeminiOracle {
	if model == "" {
		model = DefaultModel
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	o := &GeminiOracle{
		api:          api,
		model:        model,
		pollInterval: time.Second,
		maxWait:      30 * time.Second,
		sleep:        retry.Sleep,
		logger:       logger,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Judge отправляет снимок и возвращает сырой текст ответа.
func (o *GeminiOracle) Judge(ctx context.Context, imageData []byte, mimeType string) (string, error) {
	file, err := o.api.Upload(ctx, imageData, mimeType)
	if err != nil {
		return "", classify("upload", err)
	}
	defer o.cleanup(file.Name)

	file, err = o.waitActive(ctx, file)
	if err != nil {
		return "", err
	}

	parts := []*genai.Part{
		genai.NewPartFromText(Prompt),
		genai.NewPartFromURI(file.URI, file.MIMEType),
	}
	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}

	text, err := o.api.Generate(ctx, o.model, contents)
	if err != nil {
		return "", classify("generate", err)
	}
	return text, nil
}

// waitActive опрашивает файл, пока он в обработке, не дольше maxWait.
func (o *GeminiOracle) waitActive(ctx context.Context, file *genai.File) (*genai.File, error) {
	var waited time.Duration
	for file.State == genai.FileStateProcessing {
		if waited >= o.maxWait {
			return nil, fmt.Errorf("file %s still processing after %s: %w", file.Name, o.maxWait, entity.ErrAssetTimeout)
		}
		if err := o.sleep(ctx, o.pollInterval); err != nil {
			return nil, err
		}
		waited += o.pollInterval

		next, err := o.api.GetFile(ctx, file.Name)
		if err != nil {
			return nil, classify("get file", err)
		}
		file = next
	}
	if file.State == genai.FileStateFailed {
		return nil, fmt.Errorf("file %s processing failed: %w", file.Name, entity.ErrOracleFailure)
	}
	return file, nil
}

func (o *GeminiOracle) cleanup(name string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := o.api.DeleteFile(ctx, name); err != nil {
		o.logger.Debug("delete uploaded file", zap.String("file", name), zap.Error(err))
	}
}

var retryInRe = regexp.MustCompile(`retry in (\d+(?:\.\d+)?)`)

// classify переводит ошибку API в таксономию: 429 становится RateLimitError.
func classify(op string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var apiErr genai.APIError
	if errors.As(err, &apiErr) && (apiErr.Code == 429 || apiErr.Status == "RESOURCE_EXHAUSTED") {
		return &entity.RateLimitError{RetryAfter: retryAfter(apiErr), Err: fmt.Errorf("%s: %w", op, err)}
	}
	return fmt.Errorf("%s: %w: %v", op, entity.ErrOracleFailure, err)
}

// retryAfter достаёт задержку из RetryInfo или из текста сообщения.
func retryAfter(apiErr genai.APIError) time.Duration {
	for _, d := range apiErr.Details {
		kind, _ := d["@type"].(string)
		delay, _ := d["retryDelay"].(string)
		if strings.HasSuffix(kind, "RetryInfo") && delay != "" {
			if parsed, err := time.ParseDuration(delay); err == nil {
				return parsed
			}
		}
	}
	if m := retryInRe.FindStringSubmatch(apiErr.Message); m != nil {
		if secs, err := strconv.ParseFloat(m[1], 64); err == nil {
			return time.Duration((secs + 1) * float64(time.Second))
		}
	}
	return 0
}

// genaiClient адаптер *genai.Client к geminiAPI
type genaiClient struct {
	client *genai.Client
}

func (c *genaiClient) Upload(ctx context.Context, data []byte, mimeType string) (*genai.File, error) {
	return c.client.Files.Upload(ctx, bytes.NewReader(data), &genai.UploadFileConfig{MIMEType: mimeType})
}

func (c *genaiClient) GetFile(ctx context.Context, name string) (*genai.File, error) {
	return c.client.Files.Get(ctx, name, nil)
}

func (c *genaiClient) DeleteFile(ctx context.Context, name string) error {
	_, err := c.client.Files.Delete(ctx, name, nil)
	return err
}

func (c *genaiClient) Generate(ctx context.Context, model string, contents []*genai.Content) (string, error) {
	resp, err := c.client.Models.GenerateContent(ctx, model, contents, nil)
	if err != nil {
		return "", err
	}
	return resp.Text(), nil
}

var _ port.VisionOracle = (*GeminiOracle)(nil)
