// Package playback implements the simulated clock that scrubs across the
// set-point curve.
//
// The clock is either Stopped or Running. While Running a recurring timer
// advances the simulated time by a fixed increment every period. The timer
// is acquired by Play and released by Pause, Reset and Close, so at most one
// timer is ever live for a clock.
package playback

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// State is the playback state of a clock
type State int

const (
	Stopped State = iota
	Running
)

func (s State) String() string {
	switch s {
	case Stopped:
		return "stopped"
	case Running:
		return "running"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Defaults used when Options leave a field unset
const (
	DefaultIncrement = 1.0 / 12
	DefaultPeriod    = 5 * time.Second
)

// Options configures a clock
type Options struct {
	// Increment is the simulated time added on every tick
	Increment float64
	// Period is the wall-clock interval between ticks
	Period time.Duration
}

// Snapshot is the observable state of a clock
type Snapshot struct {
	Time    float64 `json:"currentTime"`
	Ticks   int64   `json:"ticks"`
	Playing bool    `json:"isPlaying"`
	// Reset is set on the notification emitted by Reset
	Reset bool `json:"-"`
}

// State returns the playback state of the snapshot
func (s Snapshot) State() State {
	if s.Playing {
		return Running
	}
	return Stopped
}

// Listener receives a snapshot after every state change and tick.
// Listeners run on the goroutine that caused the change, which for ticks is
// the timer goroutine; they must not call Close.
type Listener func(Snapshot)

// Clock is a simulated clock driven by a recurring timer
type Clock struct {
	increment float64
	period    time.Duration

	mu        sync.Mutex
	ticks     int64
	playing   bool
	gen       uint64
	stop      chan struct{}
	done      chan struct{}
	closed    bool
	listeners map[int]Listener
	nextSub   int

	// number of timer goroutines currently alive
	timers atomic.Int32
}

// New creates a stopped clock at time zero
func New(opts Options) *Clock {
	if opts.Increment <= 0 {
		opts.Increment = DefaultIncrement
	}
	if opts.Period <= 0 {
		opts.Period = DefaultPeriod
	}
	return &Clock{
		increment: opts.Increment,
		period:    opts.Period,
		listeners: make(map[int]Listener),
	}
}

// Increment returns the simulated time added per tick
func (c *Clock) Increment() float64 {
	return c.increment
}

// Period returns the wall-clock tick period
func (c *Clock) Period() time.Duration {
	return c.period
}

// Play starts the clock. Playing an already running or closed clock does
// nothing.
func (c *Clock) Play() {
	c.mu.Lock()
	if c.playing || c.closed {
		c.mu.Unlock()
		return
	}
	c.playing = true
	c.gen++
	c.stop = make(chan struct{})
	c.done = make(chan struct{})
	c.timers.Add(1)
	go c.run(c.gen, c.stop, c.done)
	snap, listeners := c.snapshotLocked(false)
	c.mu.Unlock()

	notify(listeners, snap)
}

// Pause stops the clock, keeping the current time
func (c *Clock) Pause() {
	c.mu.Lock()
	if !c.playing {
		c.mu.Unlock()
		return
	}
	c.playing = false
	c.releaseLocked()
	snap, listeners := c.snapshotLocked(false)
	c.mu.Unlock()

	notify(listeners, snap)
}

// Reset stops the clock and rewinds it to zero
func (c *Clock) Reset() {
	c.mu.Lock()
	c.playing = false
	c.releaseLocked()
	c.ticks = 0
	snap, listeners := c.snapshotLocked(true)
	c.mu.Unlock()

	notify(listeners, snap)
}

// Tick advances the clock by one increment if it is running and reports
// whether it did.
func (c *Clock) Tick() bool {
	c.mu.Lock()
	if !c.playing {
		c.mu.Unlock()
		return false
	}
	c.ticks++
	snap, listeners := c.snapshotLocked(false)
	c.mu.Unlock()

	notify(listeners, snap)
	return true
}

// tickGen advances the clock only if the timer of generation gen is still
// the live one
func (c *Clock) tickGen(gen uint64) {
	c.mu.Lock()
	if !c.playing || c.gen != gen {
		c.mu.Unlock()
		return
	}
	c.ticks++
	snap, listeners := c.snapshotLocked(false)
	c.mu.Unlock()

	notify(listeners, snap)
}

// Snapshot returns the current state of the clock
func (c *Clock) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Snapshot{Time: c.timeLocked(), Ticks: c.ticks, Playing: c.playing}
}

// Time returns the current simulated time
func (c *Clock) Time() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.timeLocked()
}

// State returns Running or Stopped
func (c *Clock) State() State {
	return c.Snapshot().State()
}

// Subscribe registers a listener and returns a function that removes it
func (c *Clock) Subscribe(fn Listener) func() {
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

// Close stops the clock for good and waits for its timer to exit
func (c *Clock) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.playing = false
	done := c.done
	c.releaseLocked()
	c.mu.Unlock()

	if done != nil {
		<-done
	}
}

func (c *Clock) run(gen uint64, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	defer c.timers.Add(-1)

	t := time.NewTicker(c.period)
	defer t.Stop()

	for {
		select {
		case <-t.C:
			c.tickGen(gen)
		case <-stop:
			return
		}
	}
}

// releaseLocked signals the live timer to exit (must hold lock)
func (c *Clock) releaseLocked() {
	if c.stop != nil {
		close(c.stop)
		c.stop = nil
	}
	c.gen++
}

func (c *Clock) timeLocked() float64 {
	return float64(c.ticks) * c.increment
}

func (c *Clock) snapshotLocked(reset bool) (Snapshot, []Listener) {
	snap := Snapshot{Time: c.timeLocked(), Ticks: c.ticks, Playing: c.playing, Reset: reset}
	listeners := make([]Listener, 0, len(c.listeners))
	for _, l := range c.listeners {
		listeners = append(listeners, l)
	}
	return snap, listeners
}

func notify(listeners []Listener, snap Snapshot) {
	for _, l := range listeners {
		l(snap)
	}
}
