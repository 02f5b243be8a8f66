package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/vjranagit/thermotrack/pkg/types"
)

// ErrNotFound is returned when a requested record does not exist
var ErrNotFound = errors.New("not found")

// Storage interface defines the contract for reading and run persistence
type Storage interface {
	// ListReadings returns all readings in creation order
	ListReadings(ctx context.Context) ([]types.Reading, error)

	// AddReading persists a control point and returns it with its ID
	AddReading(ctx context.Context, p types.ControlPoint) (types.Reading, error)

	// DeleteReading removes a reading; unknown IDs are not an error
	DeleteReading(ctx context.Context, id int64) error

	// SaveRun persists an archived realized trace
	SaveRun(ctx context.Context, run *types.Run) error

	// GetRun loads a run with its samples
	GetRun(ctx context.Context, id string) (*types.Run, error)

	// ListRuns returns run summaries, oldest first
	ListRuns(ctx context.Context) ([]types.RunSummary, error)

	// Close closes the storage
	Close() error
}

// Supported drivers
const (
	DriverBadger = "badger"
	DriverSQLite = "sqlite"
)

// Config holds storage configuration
type Config struct {
	Driver           string
	Path             string
	CompressionLevel int
	CacheSize        int
	CacheTTL         time.Duration
	InMemory         bool
}

// DefaultConfig returns default storage configuration
func DefaultConfig() *Config {
	return &Config{
		Driver:           DriverBadger,
		Path:             "./data",
		CompressionLevel: 3,
		CacheSize:        64,
		CacheTTL:         30 * time.Second,
	}
}

// DefaultSeed is written into an empty store on first start
var DefaultSeed = []types.ControlPoint{
	{Time: 0, Temperature: 10},
	{Time: 1, Temperature: 20},
	{Time: 2, Temperature: 15},
	{Time: 3, Temperature: 25},
}

// NewStorage opens the configured backend, wrapped in a read cache when
// cfg.CacheSize is positive
func NewStorage(cfg *Config) (Storage, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	var (
		s   Storage
		err error
	)
	switch cfg.Driver {
	case DriverBadger, "":
		s, err = newBadgerStorage(cfg)
	case DriverSQLite:
		s, err = newSQLiteStorage(cfg)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, err
	}

	if cfg.CacheSize > 0 {
		s = NewCachedStorage(s, cfg.CacheSize, cfg.CacheTTL)
	}
	return s, nil
}

// Seed adds points to s when it holds no readings yet. It reports whether
// anything was written.
func Seed(ctx context.Context, s Storage, points []types.ControlPoint) (bool, error) {
	existing, err := s.ListReadings(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to list readings: %w", err)
	}
	if len(existing) > 0 {
		return false, nil
	}

	for _, p := range points {
		if _, err := s.AddReading(ctx, p); err != nil {
			return false, fmt.Errorf("failed to seed reading: %w", err)
		}
	}
	return len(points) > 0, nil
}
