package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"culture-sentinel/internal/domain/entity"
)

type Config struct {
	TelegramToken string `yaml:"telegram_token"`
	GoogleAPIKey  string `yaml:"google_api_key"`
	GeminiModel   string `yaml:"gemini_model"`
	Debug         bool   `yaml:"debug"`
	HTTPAddr      string `yaml:"http_addr"`
	ModelDir      string `yaml:"model_dir"`

	Dataset  DatasetConfig  `yaml:"dataset"`
	Store    StoreConfig    `yaml:"store"`
	Analyzer AnalyzerConfig `yaml:"analyzer"`
}

// DatasetConfig каталоги обучающих снимков
type DatasetConfig struct {
	CleanDir        string `yaml:"clean_dir"`
	ContaminatedDir string `yaml:"contaminated_dir"`
}

// StoreConfig хранилище экспериментов. Пустой Path означает хранение в памяти.
type StoreConfig struct {
	Path           string        `yaml:"path"`
	MaxExperiments int           `yaml:"max_experiments"`
	TTL            time.Duration `yaml:"ttl"`
}

// AnalyzerConfig повторы и таймауты обращения к оракулу
type AnalyzerConfig struct {
	MaxAttempts   int           `yaml:"max_attempts"`
	BaseDelay     time.Duration `yaml:"base_delay"`
	Jitter        float64       `yaml:"jitter"`
	WellTimeout   time.Duration `yaml:"well_timeout"`
	Workers       int           `yaml:"workers"`
	UploadPoll    time.Duration `yaml:"upload_poll"`
	UploadMaxWait time.Duration `yaml:"upload_max_wait"`
}

// Default значения по умолчанию
func Default() *Config {
	return &Config{
		GeminiModel: "gemini-2.0-flash",
		HTTPAddr:    ":8000",
		ModelDir:    "models",
		Dataset: DatasetConfig{
			CleanDir:        "1_Clean_Samples",
			ContaminatedDir: "2_Contaminated_Samples",
		},
		Store: StoreConfig{
			MaxExperiments: 100,
			TTL:            24 * time.Hour,
		},
		Analyzer: AnalyzerConfig{
			MaxAttempts:   3,
			BaseDelay:     2 * time.Second,
			WellTimeout:   2 * time.Minute,
			UploadPoll:    time.Second,
			UploadMaxWait: 30 * time.Second,
		},
	}
}

// Load собирает конфигурацию: значения по умолчанию, YAML-файл (если задан), переменные окружения.
func Load(path string) (*Config, error) {
	// Загружаем .env файл (игнорируем ошибку если файла нет)
	_ = godotenv.Load()

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			return nil, fmt.Errorf("config file %s not found: %w", path, entity.ErrConfiguration)
		case err != nil:
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %v: %w", path, err, entity.ErrConfiguration)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	vars := map[string]*string{
		"TELEGRAM_TOKEN":   &c.TelegramToken,
		"GOOGLE_API_KEY":   &c.GoogleAPIKey,
		"GEMINI_MODEL":     &c.GeminiModel,
		"CLEAN_DIR":        &c.Dataset.CleanDir,
		"CONTAMINATED_DIR": &c.Dataset.ContaminatedDir,
		"MODEL_DIR":        &c.ModelDir,
		"STORE_PATH":       &c.Store.Path,
		"HTTP_ADDR":        &c.HTTPAddr,
	}
	for key, dst := range vars {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			*dst = v
		}
	}

	if v, ok := os.LookupEnv("DEBUG"); ok && v != "" {
		debug, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("DEBUG=%q: %w", v, entity.ErrConfiguration)
		}
		c.Debug = debug
	}
	return nil
}

// Validate проверяет значения, без которых не работает ни одна команда.
func (c *Config) Validate() error {
	switch {
	case c.ModelDir == "":
		return fmt.Errorf("model_dir is empty: %w", entity.ErrConfiguration)
	case c.Analyzer.MaxAttempts < 1:
		return fmt.Errorf("analyzer.max_attempts must be positive: %w", entity.ErrConfiguration)
	case c.Analyzer.Jitter < 0 || c.Analyzer.Jitter > 1:
		return fmt.Errorf("analyzer.jitter must be within [0, 1]: %w", entity.ErrConfiguration)
	case c.Store.MaxExperiments < 0 || c.Store.TTL < 0:
		return fmt.Errorf("store retention must not be negative: %w", entity.ErrConfiguration)
	}
	return nil
}

// RequireOracle нужен ключ Gemini
func (c *Config) RequireOracle() error {
	if c.GoogleAPIKey == "" {
		return fmt.Errorf("GOOGLE_API_KEY is required: %w", entity.ErrConfiguration)
	}
	return nil
}

// RequireTelegram нужен токен бота
func (c *Config) RequireTelegram() error {
	if c.TelegramToken == "" {
		return fmt.Errorf("TELEGRAM_TOKEN is required: %w", entity.ErrConfiguration)
	}
	return nil
}
