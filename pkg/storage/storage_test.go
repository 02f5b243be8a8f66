package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/vjranagit/thermotrack/pkg/types"
)

var drivers = []string{DriverBadger, DriverSQLite}

func openStorage(t *testing.T, driver string, dir string) Storage {
	t.Helper()

	cfg := &Config{
		Driver:           driver,
		Path:             dir,
		CompressionLevel: 3,
	}

	store, err := NewStorage(cfg)
	if err != nil {
		t.Fatalf("Failed to create %s storage: %v", driver, err)
	}
	return store
}

func TestStorageAddAndList(t *testing.T) {
	for _, driver := range drivers {
		t.Run(driver, func(t *testing.T) {
			store := openStorage(t, driver, t.TempDir())
			defer store.Close()

			ctx := context.Background()
			points := []types.ControlPoint{
				{Time: 10, Temperature: 15},
				{Time: 0, Temperature: 10},
				{Time: 5, Temperature: -2.5},
			}

			var ids []int64
			for _, p := range points {
				r, err := store.AddReading(ctx, p)
				if err != nil {
					t.Fatalf("Failed to add: %v", err)
				}
				if r.ID <= 0 {
					t.Errorf("Expected positive id, got %d", r.ID)
				}
				ids = append(ids, r.ID)
			}

			readings, err := store.ListReadings(ctx)
			if err != nil {
				t.Fatalf("Failed to list: %v", err)
			}

			if len(readings) != len(points) {
				t.Fatalf("Expected %d readings, got %d", len(points), len(readings))
			}

			// creation order, not time order
			for i, r := range readings {
				if r.ID != ids[i] || r.Point() != points[i] {
					t.Errorf("Reading %d: expected id %d point %+v, got %+v", i, ids[i], points[i], r)
				}
			}
		})
	}
}

func TestStorageDelete(t *testing.T) {
	for _, driver := range drivers {
		t.Run(driver, func(t *testing.T) {
			store := openStorage(t, driver, t.TempDir())
			defer store.Close()

			ctx := context.Background()
			a, _ := store.AddReading(ctx, types.ControlPoint{Time: 0, Temperature: 10})
			b, _ := store.AddReading(ctx, types.ControlPoint{Time: 1, Temperature: 20})

			if err := store.DeleteReading(ctx, a.ID); err != nil {
				t.Fatalf("Failed to delete: %v", err)
			}

			// unknown ids are a no-op
			if err := store.DeleteReading(ctx, 9999); err != nil {
				t.Fatalf("Delete of unknown id failed: %v", err)
			}

			readings, err := store.ListReadings(ctx)
			if err != nil {
				t.Fatalf("Failed to list: %v", err)
			}
			if len(readings) != 1 || readings[0].ID != b.ID {
				t.Errorf("Expected only reading %d, got %+v", b.ID, readings)
			}

			// ids are never reused
			c, err := store.AddReading(ctx, types.ControlPoint{Time: 2, Temperature: 30})
			if err != nil {
				t.Fatalf("Failed to add: %v", err)
			}
			if c.ID == a.ID || c.ID == b.ID {
				t.Errorf("Reused id %d", c.ID)
			}
		})
	}
}

func TestStoragePersistsAcrossReopen(t *testing.T) {
	for _, driver := range drivers {
		t.Run(driver, func(t *testing.T) {
			dir := t.TempDir()
			ctx := context.Background()

			store := openStorage(t, driver, dir)
			first, err := store.AddReading(ctx, types.ControlPoint{Time: 3, Temperature: 25})
			if err != nil {
				t.Fatalf("Failed to add: %v", err)
			}
			if err := store.Close(); err != nil {
				t.Fatalf("Failed to close: %v", err)
			}

			store = openStorage(t, driver, dir)
			defer store.Close()

			readings, err := store.ListReadings(ctx)
			if err != nil {
				t.Fatalf("Failed to list: %v", err)
			}
			if len(readings) != 1 || readings[0].ID != first.ID {
				t.Fatalf("Expected reading %d after reopen, got %+v", first.ID, readings)
			}

			next, err := store.AddReading(ctx, types.ControlPoint{Time: 4, Temperature: 26})
			if err != nil {
				t.Fatalf("Failed to add: %v", err)
			}
			if next.ID <= first.ID {
				t.Errorf("Expected id after %d, got %d", first.ID, next.ID)
			}
		})
	}
}

func TestStorageRuns(t *testing.T) {
	for _, driver := range drivers {
		t.Run(driver, func(t *testing.T) {
			store := openStorage(t, driver, t.TempDir())
			defer store.Close()

			ctx := context.Background()
			now := time.Now().UTC()

			older := &types.Run{
				ID:        "run-a",
				CreatedAt: now.Add(-time.Hour),
				Samples: []types.Sample{
					{Time: 0, Temperature: 20},
					{Time: 1.0 / 12, Temperature: 21},
					{Time: 2.0 / 12, Temperature: 21},
				},
			}
			newer := &types.Run{ID: "run-b", CreatedAt: now, Samples: []types.Sample{}}

			for _, run := range []*types.Run{newer, older} {
				if err := store.SaveRun(ctx, run); err != nil {
					t.Fatalf("Failed to save run %s: %v", run.ID, err)
				}
			}

			got, err := store.GetRun(ctx, "run-a")
			if err != nil {
				t.Fatalf("Failed to get run: %v", err)
			}
			if len(got.Samples) != 3 {
				t.Fatalf("Expected 3 samples, got %d", len(got.Samples))
			}
			for i := range older.Samples {
				if got.Samples[i] != older.Samples[i] {
					t.Errorf("Sample %d: expected %+v, got %+v", i, older.Samples[i], got.Samples[i])
				}
			}

			empty, err := store.GetRun(ctx, "run-b")
			if err != nil {
				t.Fatalf("Failed to get run: %v", err)
			}
			if len(empty.Samples) != 0 {
				t.Errorf("Expected empty run, got %d samples", len(empty.Samples))
			}

			summaries, err := store.ListRuns(ctx)
			if err != nil {
				t.Fatalf("Failed to list runs: %v", err)
			}
			if len(summaries) != 2 || summaries[0].ID != "run-a" || summaries[0].SampleCount != 3 {
				t.Errorf("Unexpected summaries %+v", summaries)
			}

			if _, err := store.GetRun(ctx, "missing"); !errors.Is(err, ErrNotFound) {
				t.Errorf("Expected ErrNotFound, got %v", err)
			}
		})
	}
}

func TestSeed(t *testing.T) {
	store := openStorage(t, DriverBadger, t.TempDir())
	defer store.Close()

	ctx := context.Background()

	seeded, err := Seed(ctx, store, DefaultSeed)
	if err != nil {
		t.Fatalf("Seed failed: %v", err)
	}
	if !seeded {
		t.Error("Expected empty store to be seeded")
	}

	seeded, err = Seed(ctx, store, DefaultSeed)
	if err != nil {
		t.Fatalf("Seed failed: %v", err)
	}
	if seeded {
		t.Error("Expected non-empty store to be left alone")
	}

	readings, _ := store.ListReadings(ctx)
	if len(readings) != len(DefaultSeed) {
		t.Errorf("Expected %d readings, got %d", len(DefaultSeed), len(readings))
	}
}

func TestNewStorageUnknownDriver(t *testing.T) {
	if _, err := NewStorage(&Config{Driver: "postgres", Path: t.TempDir()}); err == nil {
		t.Error("Expected error for unknown driver")
	}
}

func TestNewStorageInMemory(t *testing.T) {
	for _, driver := range drivers {
		t.Run(driver, func(t *testing.T) {
			store, err := NewStorage(&Config{Driver: driver, InMemory: true, CompressionLevel: 1, CacheSize: 8, CacheTTL: time.Minute})
			if err != nil {
				t.Fatalf("Failed to create storage: %v", err)
			}
			defer store.Close()

			if _, ok := store.(*CachedStorage); !ok {
				t.Errorf("Expected cached storage, got %T", store)
			}

			if _, err := store.AddReading(context.Background(), types.ControlPoint{Time: 1, Temperature: 2}); err != nil {
				t.Fatalf("Failed to add: %v", err)
			}
		})
	}
}
