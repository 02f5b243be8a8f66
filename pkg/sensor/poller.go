package sensor

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Observer is told about every poll outcome
type Observer interface {
	PollSucceeded(value float64, ok bool)
	PollFailed(err error)
}

// Poller polls a Source at a fixed interval and keeps the last known value.
// Fetch errors are logged and swallowed; the previous value is retained.
type Poller struct {
	source   Source
	interval time.Duration
	timeout  time.Duration
	log      *slog.Logger
	observer Observer

	mu      sync.RWMutex
	value   float64
	ok      bool
	updated time.Time
}

// NewPoller creates a poller; observer may be nil
func NewPoller(source Source, interval, timeout time.Duration, log *slog.Logger, observer Observer) *Poller {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	if timeout <= 0 || timeout > interval {
		timeout = interval
	}
	return &Poller{
		source:   source,
		interval: interval,
		timeout:  timeout,
		log:      log,
		observer: observer,
	}
}

// Run polls immediately and then on every interval until ctx is done
func (p *Poller) Run(ctx context.Context) {
	t := time.NewTicker(p.interval)
	defer t.Stop()

	p.log.Info("sensor poller started", "interval", p.interval.String())
	p.Poll(ctx)

	for {
		select {
		case <-t.C:
			p.Poll(ctx)
		case <-ctx.Done():
			p.log.Info("sensor poller stopped")
			return
		}
	}
}

// Poll performs a single fetch
func (p *Poller) Poll(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	v, ok, err := p.source.Current(ctx)
	if err != nil {
		p.log.Warn("temperature fetch failed", "err", err)
		if p.observer != nil {
			p.observer.PollFailed(err)
		}
		return
	}

	p.mu.Lock()
	p.value, p.ok, p.updated = v, ok, time.Now()
	p.mu.Unlock()

	if p.observer != nil {
		p.observer.PollSucceeded(v, ok)
	}
}

// Current returns the last known temperature
func (p *Poller) Current() (float64, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.value, p.ok
}

// Updated returns when the last successful poll happened
func (p *Poller) Updated() time.Time {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.updated
}
