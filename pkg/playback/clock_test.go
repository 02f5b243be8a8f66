package playback

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// manual returns a clock whose timer never fires during a test
func manual(increment float64) *Clock {
	return New(Options{Increment: increment, Period: time.Hour})
}

func TestClockStartsStopped(t *testing.T) {
	c := manual(1)
	defer c.Close()

	assert.Equal(t, Stopped, c.State())
	assert.Equal(t, 0.0, c.Time())
}

func TestClockDefaults(t *testing.T) {
	c := New(Options{})
	defer c.Close()

	assert.Equal(t, DefaultIncrement, c.Increment())
	assert.Equal(t, DefaultPeriod, c.Period())
}

func TestClockTicksOnlyWhileRunning(t *testing.T) {
	c := manual(0.5)
	defer c.Close()

	assert.False(t, c.Tick())
	assert.Equal(t, 0.0, c.Time())

	c.Play()
	for i := 0; i < 7; i++ {
		require.True(t, c.Tick())
	}
	assert.Equal(t, 3.5, c.Time())

	c.Pause()
	assert.False(t, c.Tick())
	assert.Equal(t, 3.5, c.Time())
	assert.Equal(t, Stopped, c.State())
}

func TestClockNTicksIsNTimesIncrement(t *testing.T) {
	inc := 1.0 / 12
	c := manual(inc)
	defer c.Close()

	c.Play()
	const n = 37
	for i := 0; i < n; i++ {
		c.Tick()
	}

	assert.Equal(t, float64(n)*inc, c.Time())
	assert.Equal(t, int64(n), c.Snapshot().Ticks)
}

func TestClockReset(t *testing.T) {
	c := manual(1)
	defer c.Close()

	c.Play()
	c.Tick()
	c.Tick()
	c.Reset()

	assert.Equal(t, 0.0, c.Time())
	assert.Equal(t, Stopped, c.State())

	// reset from stopped too
	c.Play()
	c.Tick()
	c.Pause()
	c.Reset()
	assert.Equal(t, 0.0, c.Time())
	assert.Equal(t, Stopped, c.State())
}

func TestClockNotifiesListeners(t *testing.T) {
	c := manual(1)
	defer c.Close()

	var mu sync.Mutex
	var seen []Snapshot
	cancel := c.Subscribe(func(s Snapshot) {
		mu.Lock()
		seen = append(seen, s)
		mu.Unlock()
	})

	c.Play()
	c.Tick()
	c.Pause()
	c.Reset()
	cancel()
	c.Play()

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, seen, 4)
	assert.True(t, seen[0].Playing)
	assert.Equal(t, 1.0, seen[1].Time)
	assert.False(t, seen[2].Playing)
	assert.True(t, seen[3].Reset)
	assert.Equal(t, 0.0, seen[3].Time)
}

func TestClockTimerAdvances(t *testing.T) {
	c := New(Options{Increment: 1, Period: 5 * time.Millisecond})
	defer c.Close()

	c.Play()
	require.Eventually(t, func() bool { return c.Time() >= 3 }, time.Second, time.Millisecond)

	c.Pause()
	stopped := c.Time()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, stopped, c.Time())
}

func TestClockSingleTimerAcrossToggles(t *testing.T) {
	c := New(Options{Increment: 1, Period: time.Millisecond})

	for i := 0; i < 200; i++ {
		c.Play()
		c.Play()
		c.Pause()
	}
	c.Play()

	require.Eventually(t, func() bool { return c.timers.Load() == 1 }, time.Second, time.Millisecond)

	c.Close()
	require.Eventually(t, func() bool { return c.timers.Load() == 0 }, time.Second, time.Millisecond)
	assert.Equal(t, Stopped, c.State())

	c.Play()
	assert.Equal(t, Stopped, c.State())
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "stopped", Stopped.String())
	assert.Equal(t, "running", Running.String())
}
