package storage

import (
	"container/list"
	"context"
	"sync"
	"time"

	"github.com/vjranagit/thermotrack/pkg/types"
)

// QueryCache implements an LRU cache with per-entry expiry
type QueryCache struct {
	capacity int
	ttl      time.Duration
	mu       sync.Mutex
	cache    map[string]*cacheEntry
	lru      *list.List
}

// cacheEntry represents a cached result
type cacheEntry struct {
	key       string
	value     any
	timestamp time.Time
	element   *list.Element
}

// NewQueryCache creates a new query cache
func NewQueryCache(capacity int, ttl time.Duration) *QueryCache {
	return &QueryCache{
		capacity: capacity,
		ttl:      ttl,
		cache:    make(map[string]*cacheEntry),
		lru:      list.New(),
	}
}

// Get retrieves a cached value
func (qc *QueryCache) Get(key string) (any, bool) {
	qc.mu.Lock()
	defer qc.mu.Unlock()

	entry, exists := qc.cache[key]
	if !exists {
		return nil, false
	}

	if qc.ttl > 0 && time.Since(entry.timestamp) > qc.ttl {
		qc.removeLocked(key)
		return nil, false
	}

	qc.lru.MoveToFront(entry.element)
	return entry.value, true
}

// Put stores a value in the cache
func (qc *QueryCache) Put(key string, value any) {
	qc.mu.Lock()
	defer qc.mu.Unlock()

	if entry, exists := qc.cache[key]; exists {
		entry.value = value
		entry.timestamp = time.Now()
		qc.lru.MoveToFront(entry.element)
		return
	}

	entry := &cacheEntry{
		key:       key,
		value:     value,
		timestamp: time.Now(),
	}
	entry.element = qc.lru.PushFront(entry)
	qc.cache[key] = entry

	// Evict oldest entry if cache is full
	if qc.lru.Len() > qc.capacity {
		if oldest := qc.lru.Back(); oldest != nil {
			qc.removeLocked(oldest.Value.(*cacheEntry).key)
		}
	}
}

// Invalidate drops a single key
func (qc *QueryCache) Invalidate(key string) {
	qc.mu.Lock()
	defer qc.mu.Unlock()
	qc.removeLocked(key)
}

// removeLocked removes an entry from the cache (must hold lock)
func (qc *QueryCache) removeLocked(key string) {
	if entry, exists := qc.cache[key]; exists {
		qc.lru.Remove(entry.element)
		delete(qc.cache, key)
	}
}

// Clear clears all cache entries
func (qc *QueryCache) Clear() {
	qc.mu.Lock()
	defer qc.mu.Unlock()

	qc.cache = make(map[string]*cacheEntry)
	qc.lru = list.New()
}

// Size returns the current cache size
func (qc *QueryCache) Size() int {
	qc.mu.Lock()
	defer qc.mu.Unlock()
	return len(qc.cache)
}

// Stats returns cache statistics
func (qc *QueryCache) Stats() CacheStats {
	qc.mu.Lock()
	defer qc.mu.Unlock()

	expired := 0
	for _, entry := range qc.cache {
		if qc.ttl > 0 && time.Since(entry.timestamp) > qc.ttl {
			expired++
		}
	}

	return CacheStats{
		Size:     len(qc.cache),
		Capacity: qc.capacity,
		Expired:  expired,
	}
}

// CacheStats contains cache statistics
type CacheStats struct {
	Size     int
	Capacity int
	Expired  int
}

const (
	readingsKey = "readings"
	runsKey     = "runs"
)

// CachedStorage wraps a storage with read caching. Every mutation
// invalidates the entries it could affect.
type CachedStorage struct {
	storage Storage
	cache   *QueryCache
	hits    uint64
	misses  uint64
	mu      sync.Mutex
}

// NewCachedStorage creates a cached storage wrapper
func NewCachedStorage(storage Storage, cacheCapacity int, cacheTTL time.Duration) *CachedStorage {
	return &CachedStorage{
		storage: storage,
		cache:   NewQueryCache(cacheCapacity, cacheTTL),
	}
}

// ListReadings serves from cache when possible
func (cs *CachedStorage) ListReadings(ctx context.Context) ([]types.Reading, error) {
	if v, ok := cs.cache.Get(readingsKey); ok {
		cs.hit()
		return append([]types.Reading{}, v.([]types.Reading)...), nil
	}
	cs.miss()

	readings, err := cs.storage.ListReadings(ctx)
	if err != nil {
		return nil, err
	}
	cs.cache.Put(readingsKey, append([]types.Reading{}, readings...))
	return readings, nil
}

// AddReading passes through and invalidates the reading list
func (cs *CachedStorage) AddReading(ctx context.Context, p types.ControlPoint) (types.Reading, error) {
	defer cs.cache.Invalidate(readingsKey)
	return cs.storage.AddReading(ctx, p)
}

// DeleteReading passes through and invalidates the reading list
func (cs *CachedStorage) DeleteReading(ctx context.Context, id int64) error {
	defer cs.cache.Invalidate(readingsKey)
	return cs.storage.DeleteReading(ctx, id)
}

// SaveRun passes through and invalidates the run list and that run
func (cs *CachedStorage) SaveRun(ctx context.Context, run *types.Run) error {
	defer func() {
		cs.cache.Invalidate(runsKey)
		cs.cache.Invalidate(runKeyFor(run.ID))
	}()
	return cs.storage.SaveRun(ctx, run)
}

// GetRun serves from cache when possible
func (cs *CachedStorage) GetRun(ctx context.Context, id string) (*types.Run, error) {
	key := runKeyFor(id)
	if v, ok := cs.cache.Get(key); ok {
		cs.hit()
		return copyRun(v.(*types.Run)), nil
	}
	cs.miss()

	run, err := cs.storage.GetRun(ctx, id)
	if err != nil {
		return nil, err
	}
	cs.cache.Put(key, copyRun(run))
	return run, nil
}

// ListRuns serves from cache when possible
func (cs *CachedStorage) ListRuns(ctx context.Context) ([]types.RunSummary, error) {
	if v, ok := cs.cache.Get(runsKey); ok {
		cs.hit()
		return append([]types.RunSummary{}, v.([]types.RunSummary)...), nil
	}
	cs.miss()

	runs, err := cs.storage.ListRuns(ctx)
	if err != nil {
		return nil, err
	}
	cs.cache.Put(runsKey, append([]types.RunSummary{}, runs...))
	return runs, nil
}

// Close closes the underlying storage
func (cs *CachedStorage) Close() error {
	cs.cache.Clear()
	return cs.storage.Close()
}

// CacheStats returns cache statistics
func (cs *CachedStorage) CacheStats() (CacheStats, uint64, uint64) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	return cs.cache.Stats(), cs.hits, cs.misses
}

// CacheHitRate returns the cache hit rate as a percentage
func (cs *CachedStorage) CacheHitRate() float64 {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	total := cs.hits + cs.misses
	if total == 0 {
		return 0.0
	}

	return float64(cs.hits) / float64(total) * 100.0
}

func (cs *CachedStorage) hit() {
	cs.mu.Lock()
	cs.hits++
	cs.mu.Unlock()
}

func (cs *CachedStorage) miss() {
	cs.mu.Lock()
	cs.misses++
	cs.mu.Unlock()
}

func runKeyFor(id string) string {
	return "run/" + id
}

func copyRun(r *types.Run) *types.Run {
	out := *r
	out.Samples = append([]types.Sample{}, r.Samples...)
	return &out
}
