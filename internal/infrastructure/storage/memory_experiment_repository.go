package storage

import (
	"context"
	"fmt"
	"sync"
	"time"

	"culture-sentinel/internal/domain/entity"
	"culture-sentinel/internal/domain/port"
)

// Retention политика хранения экспериментов в памяти.
// Нулевые значения отключают соответствующее ограничение.
type Retention struct {
	MaxExperiments int
	TTL            time.Duration
}

// MemoryExperimentRepository in-memory хранилище экспериментов.
// Старые записи вытесняются в порядке создания.
type MemoryExperimentRepository struct {
	mu          sync.RWMutex
	experiments map[string]*entity.Experiment
	order       []string
	retention   Retention
	now         func() time.Time
}

// NewMemoryExperimentRepository создаёт хранилище с заданной политикой хранения
func NewMemoryExperimentRepository(retention Retention) *MemoryExperimentRepository {
	return &MemoryExperimentRepository{
		experiments: make(map[string]*entity.Experiment),
		retention:   retention,
		now:         time.Now,
	}
}

// Save сохраняет эксперимент; повторное сохранение того же ID запрещено
func (r *MemoryExperimentRepository) Save(ctx context.Context, exp *entity.Experiment) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.experiments[exp.ID]; exists {
		return fmt.Errorf("experiment %s already exists: %w", exp.ID, entity.ErrInvalidArgument)
	}
	r.experiments[exp.ID] = exp
	r.order = append(r.order, exp.ID)
	r.evictLocked()
	return nil
}

// Get возвращает эксперимент по ID
func (r *MemoryExperimentRepository) Get(ctx context.Context, id string) (*entity.Experiment, error) {
	r.mu.RLock()
	exp, ok := r.experiments[id]
	r.mu.RUnlock()

	if !ok || r.expired(exp) {
		return nil, fmt.Errorf("experiment %s: %w", id, entity.ErrNotFound)
	}
	return exp, nil
}

// List возвращает ID живых экспериментов в порядке создания
func (r *MemoryExperimentRepository) List(ctx context.Context) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.evictLocked()
	ids := make([]string, len(r.order))
	copy(ids, r.order)
	return ids, nil
}

func (r *MemoryExperimentRepository) expired(exp *entity.Experiment) bool {
	return r.retention.TTL > 0 && r.now().Sub(exp.CreatedAt) > r.retention.TTL
}

func (r *MemoryExperimentRepository) evictLocked() {
	drop := 0
	for drop < len(r.order) {
		exp := r.experiments[r.order[drop]]
		overflow := r.retention.MaxExperiments > 0 && len(r.order)-drop > r.retention.MaxExperiments
		if !overflow && !r.expired(exp) {
			break
		}
		delete(r.experiments, r.order[drop])
		drop++
	}
	r.order = r.order[drop:]
}

// Проверка реализации интерфейса
var _ port.ExperimentRepository = (*MemoryExperimentRepository)(nil)
