package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"culture-sentinel/internal/domain/entity"
	"culture-sentinel/internal/domain/port"
)

const experimentSchema = `
CREATE TABLE IF NOT EXISTS experiments (
	seq        INTEGER PRIMARY KEY AUTOINCREMENT,
	id         TEXT NOT NULL UNIQUE,
	scenario   TEXT NOT NULL,
	created_ns INTEGER NOT NULL,
	body       TEXT NOT NULL
);`

// SQLiteExperimentRepository хранит эксперименты в SQLite, переживая перезапуск.
// Политика хранения та же, что у in-memory варианта.
type SQLiteExperimentRepository struct {
	db        *sql.DB
	retention Retention
	now       func() time.Time
}

// NewSQLiteExperimentRepository открывает базу и создаёт схему.
func NewSQLiteExperimentRepository(ctx context.Context, path string, retention Retention) (*SQLiteExperimentRepository, error) {
	dsn := path
	if path != ":memory:" {
		dsn = path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	// одно соединение: у in-memory базы своя копия на каждое соединение
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, experimentSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &SQLiteExperimentRepository{db: db, retention: retention, now: time.Now}, nil
}

// Save сохраняет эксперимент и вытесняет лишние записи одной транзакцией
func (r *SQLiteExperimentRepository) Save(ctx context.Context, exp *entity.Experiment) error {
	body, err := json.Marshal(exp)
	if err != nil {
		return fmt.Errorf("marshal experiment: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO experiments (id, scenario, created_ns, body) VALUES (?, ?, ?, ?)`,
		exp.ID, exp.Scenario.String(), exp.CreatedAt.UnixNano(), string(body))
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE") {
			return fmt.Errorf("experiment %s already exists: %w", exp.ID, entity.ErrInvalidArgument)
		}
		return fmt.Errorf("insert experiment %s: %w", exp.ID, err)
	}

	if r.retention.TTL > 0 {
		if _, err := tx.ExecContext(ctx, `DELETE FROM experiments WHERE created_ns < ?`, r.cutoff()); err != nil {
			return fmt.Errorf("expire experiments: %w", err)
		}
	}
	if r.retention.MaxExperiments > 0 {
		_, err := tx.ExecContext(ctx,
			`DELETE FROM experiments WHERE seq NOT IN (SELECT seq FROM experiments ORDER BY seq DESC LIMIT ?)`,
			r.retention.MaxExperiments)
		if err != nil {
			return fmt.Errorf("evict experiments: %w", err)
		}
	}
	return tx.Commit()
}

// cutoff граница TTL в наносекундах; без TTL подходит любая запись
func (r *SQLiteExperimentRepository) cutoff() int64 {
	if r.retention.TTL <= 0 {
		return math.MinInt64
	}
	return r.now().Add(-r.retention.TTL).UnixNano()
}

// Get читает эксперимент по ID
func (r *SQLiteExperimentRepository) Get(ctx context.Context, id string) (*entity.Experiment, error) {
	var body string
	err := r.db.QueryRowContext(ctx, `SELECT body FROM experiments WHERE id = ? AND created_ns >= ?`, id, r.cutoff()).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("experiment %s: %w", id, entity.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("select experiment %s: %w", id, err)
	}

	var exp entity.Experiment
	if err := json.Unmarshal([]byte(body), &exp); err != nil {
		return nil, fmt.Errorf("decode experiment %s: %w", id, err)
	}
	return &exp, nil
}

// List возвращает ID в порядке создания
func (r *SQLiteExperimentRepository) List(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id FROM experiments WHERE created_ns >= ? ORDER BY seq`, r.cutoff())
	if err != nil {
		return nil, fmt.Errorf("list experiments: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Close закрывает базу
func (r *SQLiteExperimentRepository) Close() error {
	return r.db.Close()
}

var _ port.ExperimentRepository = (*SQLiteExperimentRepository)(nil)
