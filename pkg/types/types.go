package types

import "time"

// ControlPoint is a single (time, temperature) pair of the set-point curve.
// Time is expressed in simulated minutes.
type ControlPoint struct {
	Time        float64 `json:"time"`
	Temperature float64 `json:"temperature"`
}

// Reading is a control point with an identity assigned at creation
type Reading struct {
	ID          int64     `json:"id"`
	Time        float64   `json:"time"`
	Temperature float64   `json:"temperature"`
	CreatedAt   time.Time `json:"createdAt,omitempty"`
}

// Point returns the control point carried by the reading
func (r Reading) Point() ControlPoint {
	return ControlPoint{Time: r.Time, Temperature: r.Temperature}
}

// Sample is one entry of the realized trace
type Sample struct {
	Time        float64 `json:"time"`
	Temperature float64 `json:"temperature"`
}

// Run is an archived realized trace
type Run struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	Samples   []Sample  `json:"samples"`
}

// RunSummary describes a run without its samples
type RunSummary struct {
	ID          string    `json:"id"`
	CreatedAt   time.Time `json:"createdAt"`
	SampleCount int       `json:"sampleCount"`
}
