package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	// Need to use SQLite connections.
	_ "github.com/mattn/go-sqlite3"

	"github.com/vjranagit/thermotrack/pkg/types"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS readings (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	time        REAL    NOT NULL,
	temperature REAL    NOT NULL,
	created_at  INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS runs (
	id           TEXT    PRIMARY KEY,
	created_at   INTEGER NOT NULL,
	sample_count INTEGER NOT NULL,
	payload      BLOB
);`

// sqliteStorage implements Storage on a SQLite database file
type sqliteStorage struct {
	db         *sql.DB
	compressor *Compressor
}

func newSQLiteStorage(cfg *Config) (*sqliteStorage, error) {
	dsn := ":memory:"
	if !cfg.InMemory {
		if err := os.MkdirAll(cfg.Path, 0755); err != nil {
			return nil, fmt.Errorf("failed to create storage directory: %w", err)
		}
		dsn = filepath.Join(cfg.Path, "temperature_data.sqlite")
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	compressor, err := NewCompressor(cfg.CompressionLevel)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create compressor: %w", err)
	}

	return &sqliteStorage{db: db, compressor: compressor}, nil
}

// ListReadings implements Storage.ListReadings
func (s *sqliteStorage) ListReadings(ctx context.Context) ([]types.Reading, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, time, temperature, created_at FROM readings ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query readings: %w", err)
	}
	defer rows.Close()

	readings := []types.Reading{}
	for rows.Next() {
		var (
			r       types.Reading
			created int64
		)
		if err := rows.Scan(&r.ID, &r.Time, &r.Temperature, &created); err != nil {
			return nil, fmt.Errorf("failed to scan reading: %w", err)
		}
		r.CreatedAt = time.Unix(0, created).UTC()
		readings = append(readings, r)
	}
	return readings, rows.Err()
}

// AddReading implements Storage.AddReading
func (s *sqliteStorage) AddReading(ctx context.Context, p types.ControlPoint) (types.Reading, error) {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO readings (time, temperature, created_at) VALUES (?, ?, ?)`,
		p.Time, p.Temperature, now.UnixNano())
	if err != nil {
		return types.Reading{}, fmt.Errorf("failed to insert reading: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return types.Reading{}, fmt.Errorf("failed to read reading id: %w", err)
	}

	return types.Reading{ID: id, Time: p.Time, Temperature: p.Temperature, CreatedAt: now}, nil
}

// DeleteReading implements Storage.DeleteReading
func (s *sqliteStorage) DeleteReading(ctx context.Context, id int64) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM readings WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete reading: %w", err)
	}
	return nil
}

// SaveRun implements Storage.SaveRun
func (s *sqliteStorage) SaveRun(ctx context.Context, run *types.Run) error {
	payload, err := s.compressor.CompressSamples(run.Samples)
	if err != nil {
		return fmt.Errorf("failed to compress samples: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO runs (id, created_at, sample_count, payload) VALUES (?, ?, ?, ?)`,
		run.ID, run.CreatedAt.UnixNano(), len(run.Samples), payload)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}
	return nil
}

// GetRun implements Storage.GetRun
func (s *sqliteStorage) GetRun(ctx context.Context, id string) (*types.Run, error) {
	var (
		created int64
		count   int
		payload []byte
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT created_at, sample_count, payload FROM runs WHERE id = ?`, id).
		Scan(&created, &count, &payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query run: %w", err)
	}

	samples, err := s.compressor.DecompressSamples(payload, count)
	if err != nil {
		return nil, fmt.Errorf("failed to decompress run %s: %w", id, err)
	}

	return &types.Run{ID: id, CreatedAt: time.Unix(0, created).UTC(), Samples: samples}, nil
}

// ListRuns implements Storage.ListRuns
func (s *sqliteStorage) ListRuns(ctx context.Context) ([]types.RunSummary, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, created_at, sample_count FROM runs ORDER BY created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	runs := []types.RunSummary{}
	for rows.Next() {
		var (
			r       types.RunSummary
			created int64
		)
		if err := rows.Scan(&r.ID, &created, &r.SampleCount); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		r.CreatedAt = time.Unix(0, created).UTC()
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Close implements Storage.Close
func (s *sqliteStorage) Close() error {
	s.compressor.Close()
	return s.db.Close()
}
