// Package sensor provides live temperature sources and a poller that keeps
// the last known reading.
package sensor

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Source reports the current temperature. ok is false when the source is
// reachable but has no reading.
type Source interface {
	Current(ctx context.Context) (value float64, ok bool, err error)
}

// Payload is the JSON body exchanged with temperature endpoints
type Payload struct {
	Temperature *float64 `json:"temperature"`
}

// Simulated returns a random whole temperature in [Min, Max]
type Simulated struct {
	Min, Max int

	mu  sync.Mutex
	rnd *rand.Rand
}

// NewSimulated creates a simulated sensor over [0, 100]
func NewSimulated() *Simulated {
	return &Simulated{Min: 0, Max: 100, rnd: rand.New(rand.NewSource(time.Now().UnixNano()))}
}

// Current implements Source
func (s *Simulated) Current(ctx context.Context) (float64, bool, error) {
	if err := ctx.Err(); err != nil {
		return 0, false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.rnd == nil {
		s.rnd = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	span := s.Max - s.Min
	if span < 0 {
		span = 0
	}
	return float64(s.Min + s.rnd.Intn(span+1)), true, nil
}

// HTTPSource reads the temperature from a JSON endpoint
type HTTPSource struct {
	url     string
	client  *http.Client
	limiter *rate.Limiter
}

// NewHTTPSource creates a source for url. Requests are limited to rps per
// second; rps <= 0 disables limiting.
func NewHTTPSource(url string, timeout time.Duration, rps float64) *HTTPSource {
	limit := rate.Inf
	burst := 1
	if rps > 0 {
		limit = rate.Limit(rps)
		if int(rps) > burst {
			burst = int(rps)
		}
	}
	return &HTTPSource{
		url:     url,
		client:  &http.Client{Timeout: timeout},
		limiter: rate.NewLimiter(limit, burst),
	}
}

// Current implements Source
func (s *HTTPSource) Current(ctx context.Context) (float64, bool, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return 0, false, fmt.Errorf("rate limiter: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return 0, false, fmt.Errorf("building request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, false, fmt.Errorf("fetching temperature: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, false, fmt.Errorf("fetching temperature: unexpected status %d", resp.StatusCode)
	}

	var p Payload
	if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
		return 0, false, fmt.Errorf("decoding temperature: %w", err)
	}
	if p.Temperature == nil {
		return 0, false, nil
	}
	return *p.Temperature, true, nil
}
