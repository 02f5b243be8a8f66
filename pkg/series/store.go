// Package series holds the control points of the set-point curve.
//
// Points are kept in insertion order, not time order. Callers that need
// sorted points must sort a copy themselves; the interpolator does not
// depend on ordering.
package series

import (
	"sync"

	"github.com/vjranagit/thermotrack/pkg/types"
)

// Listener is notified with a copy of the series after every mutation
type Listener func([]types.Reading)

// Store is an ordered, mutable collection of readings
type Store struct {
	mu        sync.RWMutex
	readings  []types.Reading
	nextID    int64
	listeners map[int]Listener
	nextSub   int
}

// NewStore creates an empty store
func NewStore() *Store {
	return &Store{
		nextID:    1,
		listeners: make(map[int]Listener),
	}
}

// Add appends a control point under a freshly assigned ID
func (s *Store) Add(p types.ControlPoint) types.Reading {
	s.mu.Lock()
	r := types.Reading{
		ID:          s.nextID,
		Time:        p.Time,
		Temperature: p.Temperature,
	}
	s.nextID++
	s.readings = append(s.readings, r)
	snapshot, listeners := s.snapshotLocked()
	s.mu.Unlock()

	notify(listeners, snapshot)
	return r
}

// Put appends a reading whose ID was assigned elsewhere, e.g. by storage.
// Later calls to Add never reuse that ID.
func (s *Store) Put(r types.Reading) {
	s.mu.Lock()
	s.readings = append(s.readings, r)
	if r.ID >= s.nextID {
		s.nextID = r.ID + 1
	}
	snapshot, listeners := s.snapshotLocked()
	s.mu.Unlock()

	notify(listeners, snapshot)
}

// Remove deletes the reading with the given ID. Unknown IDs are ignored
// and reported as false.
func (s *Store) Remove(id int64) bool {
	s.mu.Lock()
	idx := -1
	for i, r := range s.readings {
		if r.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		s.mu.Unlock()
		return false
	}
	s.readings = append(s.readings[:idx], s.readings[idx+1:]...)
	snapshot, listeners := s.snapshotLocked()
	s.mu.Unlock()

	notify(listeners, snapshot)
	return true
}

// All returns the readings in insertion order
func (s *Store) All() []types.Reading {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]types.Reading, len(s.readings))
	copy(out, s.readings)
	return out
}

// Points returns the control points in insertion order
func (s *Store) Points() []types.ControlPoint {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]types.ControlPoint, len(s.readings))
	for i, r := range s.readings {
		out[i] = r.Point()
	}
	return out
}

// Len returns the number of readings
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.readings)
}

// Subscribe registers a listener and returns a function that removes it
func (s *Store) Subscribe(fn Listener) func() {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.listeners[id] = fn
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.listeners, id)
			s.mu.Unlock()
		})
	}
}

// snapshotLocked copies readings and listeners (must hold lock)
func (s *Store) snapshotLocked() ([]types.Reading, []Listener) {
	snapshot := make([]types.Reading, len(s.readings))
	copy(snapshot, s.readings)

	listeners := make([]Listener, 0, len(s.listeners))
	for _, l := range s.listeners {
		listeners = append(listeners, l)
	}
	return snapshot, listeners
}

func notify(listeners []Listener, snapshot []types.Reading) {
	for _, l := range listeners {
		l(snapshot)
	}
}
