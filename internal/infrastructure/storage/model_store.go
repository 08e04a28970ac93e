package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/vmihailenco/msgpack/v5"
	"go.uber.org/zap"

	"culture-sentinel/internal/domain/entity"
	"culture-sentinel/internal/domain/port"
	"culture-sentinel/internal/ml"
)

const (
	scalerFile   = "scaler.msgpack"
	forestFile   = "rf_model.msgpack"
	manifestFile = "CURRENT"
)

type artifactHeader struct {
	Generation   string    `msgpack:"generation"`
	Backend      string    `msgpack:"backend"`
	FeatureNames []string  `msgpack:"feature_names"`
	TrainedAt    time.Time `msgpack:"trained_at"`
}

type scalerArtifact struct {
	Header artifactHeader `msgpack:"header"`
	Scaler *ml.Scaler     `msgpack:"scaler"`
}

type forestArtifact struct {
	Header artifactHeader `msgpack:"header"`
	Forest *ml.Forest     `msgpack:"forest"`
}

// FileModelStore хранит скейлер и лес двумя msgpack-файлами в каталоге поколения:
//
//	<dir>/<generation>/scaler.msgpack
//	<dir>/<generation>/rf_model.msgpack
//	<dir>/CURRENT      имя опубликованного поколения
//
// Публикация сводится к одному переименованию CURRENT, поэтому на диске
// всегда видна либо старая пара, либо новая.
type FileModelStore struct {
	dir    string
	logger *zap.Logger
	rename func(oldpath, newpath string) error
}

// NewFileModelStore создаёт хранилище в каталоге dir
func NewFileModelStore(dir string, logger *zap.Logger) *FileModelStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FileModelStore{dir: dir, logger: logger, rename: os.Rename}
}

func (s *FileModelStore) paths(generation string) (scaler, forest string) {
	genDir := filepath.Join(s.dir, generation)
	return filepath.Join(genDir, scalerFile), filepath.Join(genDir, forestFile)
}

// Save пишет оба артефакта во временный каталог, переименовывает его
// в каталог поколения и только потом переключает CURRENT.
// При любой ошибке опубликованной остаётся прежняя пара.
func (s *FileModelStore) Save(ctx context.Context, model *ml.Model) error {
	if model == nil || model.Scaler == nil || model.Forest == nil {
		return fmt.Errorf("save model: %w", ml.ErrNotFitted)
	}
	gen := model.Generation
	if gen == "" || gen != filepath.Base(gen) || strings.HasPrefix(gen, ".") || gen == manifestFile {
		return fmt.Errorf("model generation %q: %w", gen, entity.ErrInvalidArgument)
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create model dir: %w", err)
	}
	previous, _ := s.current()

	header := artifactHeader{
		Generation:   gen,
		Backend:      model.Backend,
		FeatureNames: model.FeatureNames,
		TrainedAt:    model.TrainedAt,
	}

	tmpDir, err := os.MkdirTemp(s.dir, ".gen-*")
	if err != nil {
		return fmt.Errorf("create temp generation: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	if err := writeArtifact(filepath.Join(tmpDir, scalerFile), scalerArtifact{Header: header, Scaler: model.Scaler}); err != nil {
		return err
	}
	if err := writeArtifact(filepath.Join(tmpDir, forestFile), forestArtifact{Header: header, Forest: model.Forest}); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	genDir := filepath.Join(s.dir, gen)
	if err := s.rename(tmpDir, genDir); err != nil {
		return fmt.Errorf("publish generation %s: %w", gen, err)
	}
	if err := s.publish(gen); err != nil {
		os.RemoveAll(genDir)
		return err
	}

	s.prune(gen, previous)
	scalerPath, forestPath := s.paths(gen)
	s.logger.Info("model saved",
		zap.String("generation", gen),
		zap.String("scaler", scalerPath),
		zap.String("forest", forestPath))
	return nil
}

// publish атомарно записывает имя поколения в CURRENT
func (s *FileModelStore) publish(gen string) error {
	f, err := os.CreateTemp(s.dir, ".current-*")
	if err != nil {
		return fmt.Errorf("create manifest: %w", err)
	}
	name := f.Name()
	defer os.Remove(name)

	_, err = f.WriteString(gen + "\n")
	if err == nil {
		err = f.Sync()
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	if err := s.rename(name, filepath.Join(s.dir, manifestFile)); err != nil {
		return fmt.Errorf("publish manifest: %w", err)
	}
	return nil
}

// prune удаляет поколения, кроме текущего и предыдущего.
// Предыдущее остаётся для загрузки, начатой до переключения.
func (s *FileModelStore) prune(keep ...string) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return
	}
	for _, e := range entries {
		name := e.Name()
		if !e.IsDir() || strings.HasPrefix(name, ".") || slices.Contains(keep, name) {
			continue
		}
		if err := os.RemoveAll(filepath.Join(s.dir, name)); err != nil {
			s.logger.Warn("prune generation", zap.String("generation", name), zap.Error(err))
		}
	}
}

// current имя опубликованного поколения
func (s *FileModelStore) current() (string, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, manifestFile))
	if errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("%s missing: %w", manifestFile, entity.ErrModelNotReady)
	}
	if err != nil {
		return "", fmt.Errorf("read manifest: %w", err)
	}
	gen := strings.TrimSpace(string(data))
	if gen == "" {
		return "", fmt.Errorf("empty manifest: %w", entity.ErrModelNotReady)
	}
	return gen, nil
}

func writeArtifact(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create artifact: %w", err)
	}
	err = msgpack.NewEncoder(f).Encode(v)
	if err == nil {
		err = f.Sync()
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("write artifact %s: %w", filepath.Base(path), err)
	}
	return nil
}

// Load читает пару артефактов опубликованного поколения.
// Отсутствие любого из них означает необученную модель.
func (s *FileModelStore) Load(ctx context.Context) (*ml.Model, error) {
	gen, err := s.current()
	if err != nil {
		return nil, err
	}
	scalerPath, forestPath := s.paths(gen)

	var sa scalerArtifact
	if err := readArtifact(scalerPath, &sa); err != nil {
		return nil, err
	}
	var fa forestArtifact
	if err := readArtifact(forestPath, &fa); err != nil {
		return nil, err
	}

	if sa.Header.Generation != gen || fa.Header.Generation != gen {
		return nil, fmt.Errorf("generation %s: scaler %s, forest %s: %w",
			gen, sa.Header.Generation, fa.Header.Generation, entity.ErrModelNotReady)
	}
	if sa.Scaler == nil || fa.Forest == nil {
		return nil, fmt.Errorf("artifact without payload: %w", entity.ErrModelNotReady)
	}

	return &ml.Model{
		Generation:   gen,
		Backend:      sa.Header.Backend,
		FeatureNames: sa.Header.FeatureNames,
		TrainedAt:    sa.Header.TrainedAt,
		Scaler:       sa.Scaler,
		Forest:       fa.Forest,
	}, nil
}

func readArtifact(path string, v any) error {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%s missing: %w", filepath.Base(path), entity.ErrModelNotReady)
	}
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	if err := msgpack.NewDecoder(f).Decode(v); err != nil {
		return fmt.Errorf("decode %s: %v: %w", path, err, entity.ErrModelNotReady)
	}
	return nil
}

var _ port.ModelStore = (*FileModelStore)(nil)
