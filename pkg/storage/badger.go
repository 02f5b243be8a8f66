package storage

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/vjranagit/thermotrack/pkg/types"
)

var (
	readingPrefix = []byte("reading/")
	runPrefix     = []byte("run/")
	readingSeqKey = []byte("seq/readings")
)

// badgerStorage implements Storage using BadgerDB
type badgerStorage struct {
	cfg        *Config
	db         *badger.DB
	seq        *badger.Sequence
	compressor *Compressor
}

// runRecord is the stored form of a run
type runRecord struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	Count     int       `json:"count"`
	Payload   []byte    `json:"payload"`
}

func newBadgerStorage(cfg *Config) (*badgerStorage, error) {
	opts := badger.DefaultOptions(filepath.Join(cfg.Path, "badger"))
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	}
	opts.Logger = nil // Disable BadgerDB logging

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open BadgerDB: %w", err)
	}

	seq, err := db.GetSequence(readingSeqKey, 64)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to open reading sequence: %w", err)
	}

	compressor, err := NewCompressor(cfg.CompressionLevel)
	if err != nil {
		seq.Release()
		db.Close()
		return nil, fmt.Errorf("failed to create compressor: %w", err)
	}

	return &badgerStorage{
		cfg:        cfg,
		db:         db,
		seq:        seq,
		compressor: compressor,
	}, nil
}

// ListReadings implements Storage.ListReadings
func (s *badgerStorage) ListReadings(ctx context.Context) ([]types.Reading, error) {
	readings := []types.Reading{}

	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(readingPrefix); it.ValidForPrefix(readingPrefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			var r types.Reading
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &r)
			})
			if err != nil {
				return fmt.Errorf("failed to decode reading: %w", err)
			}
			readings = append(readings, r)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return readings, nil
}

// AddReading implements Storage.AddReading
func (s *badgerStorage) AddReading(ctx context.Context, p types.ControlPoint) (types.Reading, error) {
	if err := ctx.Err(); err != nil {
		return types.Reading{}, err
	}

	// sequences start at zero, reading IDs at one
	n, err := s.seq.Next()
	if err != nil {
		return types.Reading{}, fmt.Errorf("failed to allocate reading id: %w", err)
	}

	r := types.Reading{
		ID:          int64(n) + 1,
		Time:        p.Time,
		Temperature: p.Temperature,
		CreatedAt:   time.Now().UTC(),
	}

	data, err := json.Marshal(r)
	if err != nil {
		return types.Reading{}, fmt.Errorf("failed to marshal reading: %w", err)
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(readingKey(r.ID), data)
	})
	if err != nil {
		return types.Reading{}, fmt.Errorf("failed to write reading: %w", err)
	}

	return r, nil
}

// DeleteReading implements Storage.DeleteReading
func (s *badgerStorage) DeleteReading(ctx context.Context, id int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(readingKey(id))
	})
}

// SaveRun implements Storage.SaveRun
func (s *badgerStorage) SaveRun(ctx context.Context, run *types.Run) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	payload, err := s.compressor.CompressSamples(run.Samples)
	if err != nil {
		return fmt.Errorf("failed to compress samples: %w", err)
	}

	data, err := json.Marshal(runRecord{
		ID:        run.ID,
		CreatedAt: run.CreatedAt,
		Count:     len(run.Samples),
		Payload:   payload,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal run: %w", err)
	}

	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(runKey(run.ID), data)
	})
}

// GetRun implements Storage.GetRun
func (s *badgerStorage) GetRun(ctx context.Context, id string) (*types.Run, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var rec runRecord
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(runKey(id))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &rec)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, fmt.Errorf("run %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read run: %w", err)
	}

	samples, err := s.compressor.DecompressSamples(rec.Payload, rec.Count)
	if err != nil {
		return nil, fmt.Errorf("failed to decompress run %s: %w", id, err)
	}

	return &types.Run{ID: rec.ID, CreatedAt: rec.CreatedAt, Samples: samples}, nil
}

// ListRuns implements Storage.ListRuns
func (s *badgerStorage) ListRuns(ctx context.Context) ([]types.RunSummary, error) {
	runs := []types.RunSummary{}

	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(runPrefix); it.ValidForPrefix(runPrefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			var rec runRecord
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &rec)
			})
			if err != nil {
				return fmt.Errorf("failed to decode run: %w", err)
			}
			runs = append(runs, types.RunSummary{ID: rec.ID, CreatedAt: rec.CreatedAt, SampleCount: rec.Count})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(runs, func(i, j int) bool {
		return runs[i].CreatedAt.Before(runs[j].CreatedAt)
	})
	return runs, nil
}

// Close implements Storage.Close
func (s *badgerStorage) Close() error {
	s.compressor.Close()
	if err := s.seq.Release(); err != nil {
		s.db.Close()
		return fmt.Errorf("failed to release sequence: %w", err)
	}
	return s.db.Close()
}

// readingKey keeps readings in ID order under the reading prefix
func readingKey(id int64) []byte {
	key := make([]byte, len(readingPrefix)+8)
	copy(key, readingPrefix)
	binary.BigEndian.PutUint64(key[len(readingPrefix):], uint64(id))
	return key
}

func runKey(id string) []byte {
	return append(append([]byte{}, runPrefix...), id...)
}
