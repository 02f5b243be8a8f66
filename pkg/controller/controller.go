// Package controller ties the playback clock to the series store.
//
// On every clock change and every series mutation the controller
// recomputes the set point at the current simulated time and publishes an
// Update to its subscribers. While the clock runs it also records the
// realized trace: the actual temperature observed at each distinct
// simulated time.
package controller

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vjranagit/thermotrack/pkg/playback"
	"github.com/vjranagit/thermotrack/pkg/series"
	"github.com/vjranagit/thermotrack/pkg/setpoint"
	"github.com/vjranagit/thermotrack/pkg/types"
)

// ActualSource supplies the latest actual temperature, if any is known
type ActualSource interface {
	Current() (float64, bool)
}

// Archiver stores a realized trace when playback is reset
type Archiver interface {
	SaveRun(ctx context.Context, run *types.Run) error
}

// Update is what the controller publishes to the display side
type Update struct {
	Time     float64        `json:"currentTime"`
	Playing  bool           `json:"isPlaying"`
	SetPoint *float64       `json:"setPoint"`
	Display  string         `json:"display"`
	Trace    []types.Sample `json:"trace"`
}

// Value returns the set point and whether it is determined
func (u Update) Value() (float64, bool) {
	if u.SetPoint == nil {
		return 0, false
	}
	return *u.SetPoint, true
}

// Listener receives every published update
type Listener func(Update)

// Option configures a Controller
type Option func(*Controller)

// WithArchiver archives non-empty traces on reset
func WithArchiver(a Archiver) Option {
	return func(c *Controller) { c.archiver = a }
}

// WithLogger sets the logger
func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) { c.log = l }
}

// WithArchiveTimeout bounds each archive call
func WithArchiveTimeout(d time.Duration) Option {
	return func(c *Controller) { c.archiveTimeout = d }
}

// Controller publishes the set point at the clock's current time
type Controller struct {
	store  *series.Store
	clock  *playback.Clock
	actual ActualSource

	archiver       Archiver
	archiveTimeout time.Duration
	log            *slog.Logger

	// serializes recompute+deliver so listeners see updates in order
	publishMu sync.Mutex

	mu         sync.Mutex
	current    Update
	trace      []types.Sample
	lastSample float64
	hasSample  bool
	listeners  map[int]Listener
	nextSub    int
	cancels    []func()
}

// New creates a controller. actual may be nil, in which case no realized
// trace is recorded.
func New(store *series.Store, clock *playback.Clock, actual ActualSource, opts ...Option) *Controller {
	c := &Controller{
		store:          store,
		clock:          clock,
		actual:         actual,
		archiveTimeout: 5 * time.Second,
		log:            slog.Default(),
		listeners:      make(map[int]Listener),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.current = c.compute(clock.Snapshot(), store.Points())
	return c
}

// Start subscribes the controller to the clock and the store
func (c *Controller) Start() {
	c.mu.Lock()
	if len(c.cancels) > 0 {
		c.mu.Unlock()
		return
	}
	c.cancels = append(c.cancels,
		c.clock.Subscribe(c.onClock),
		c.store.Subscribe(c.onSeries),
	)
	c.mu.Unlock()

	c.Refresh()
}

// Close detaches the controller from the clock and the store
func (c *Controller) Close() {
	c.mu.Lock()
	cancels := c.cancels
	c.cancels = nil
	c.mu.Unlock()

	for _, cancel := range cancels {
		cancel()
	}
}

// Refresh recomputes and publishes the current update
func (c *Controller) Refresh() {
	c.publishMu.Lock()
	defer c.publishMu.Unlock()

	snap := c.clock.Snapshot()
	c.mu.Lock()
	u := c.recomputeLocked(snap)
	listeners := c.listenersLocked()
	c.mu.Unlock()

	deliver(listeners, u)
}

// Current returns the latest published update
func (c *Controller) Current() Update {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// Trace returns a copy of the realized trace
func (c *Controller) Trace() []types.Sample {
	c.mu.Lock()
	defer c.mu.Unlock()
	return copySamples(c.trace)
}

// Subscribe registers a listener and returns a function that removes it.
// Listeners must not call Play, Pause or Reset on the clock synchronously.
func (c *Controller) Subscribe(fn Listener) func() {
	c.mu.Lock()
	id := c.nextSub
	c.nextSub++
	c.listeners[id] = fn
	c.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.listeners, id)
			c.mu.Unlock()
		})
	}
}

func (c *Controller) onClock(snap playback.Snapshot) {
	c.publishMu.Lock()
	defer c.publishMu.Unlock()

	var archived []types.Sample

	c.mu.Lock()
	switch {
	case snap.Reset:
		archived = c.trace
		c.trace = nil
		c.hasSample = false
	case snap.Playing && (!c.hasSample || snap.Time != c.lastSample):
		c.recordLocked(snap.Time)
	}
	u := c.recomputeLocked(snap)
	listeners := c.listenersLocked()
	c.mu.Unlock()

	if len(archived) > 0 {
		c.archive(archived)
	}
	deliver(listeners, u)
}

func (c *Controller) onSeries([]types.Reading) {
	c.Refresh()
}

// recordLocked appends an actual sample at simulated time t (must hold lock)
func (c *Controller) recordLocked(t float64) {
	if c.actual == nil {
		return
	}
	v, ok := c.actual.Current()
	if !ok {
		return
	}
	c.trace = append(c.trace, types.Sample{Time: t, Temperature: v})
	c.lastSample = t
	c.hasSample = true
}

// recomputeLocked refreshes c.current (must hold lock)
func (c *Controller) recomputeLocked(snap playback.Snapshot) Update {
	u := c.compute(snap, c.store.Points())
	u.Trace = copySamples(c.trace)
	c.current = u
	return u
}

func (c *Controller) compute(snap playback.Snapshot, points []types.ControlPoint) Update {
	v, ok := setpoint.Interpolate(points, snap.Time)
	u := Update{
		Time:    snap.Time,
		Playing: snap.Playing,
		Display: setpoint.Format(v, ok),
		Trace:   []types.Sample{},
	}
	if ok {
		u.SetPoint = &v
	}
	return u
}

func (c *Controller) archive(samples []types.Sample) {
	if c.archiver == nil {
		return
	}

	run := &types.Run{
		ID:        uuid.NewString(),
		CreatedAt: time.Now().UTC(),
		Samples:   samples,
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.archiveTimeout)
	defer cancel()

	if err := c.archiver.SaveRun(ctx, run); err != nil {
		c.log.Error("archive realized trace failed", "run", run.ID, "samples", len(samples), "err", err)
		return
	}
	c.log.Info("realized trace archived", "run", run.ID, "samples", len(samples))
}

func (c *Controller) listenersLocked() []Listener {
	out := make([]Listener, 0, len(c.listeners))
	for _, l := range c.listeners {
		out = append(out, l)
	}
	return out
}

func deliver(listeners []Listener, u Update) {
	for _, l := range listeners {
		l(u)
	}
}

func copySamples(in []types.Sample) []types.Sample {
	out := make([]types.Sample, len(in))
	copy(out, in)
	return out
}
