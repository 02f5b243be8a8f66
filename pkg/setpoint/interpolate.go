// Package setpoint computes the set-point temperature at an arbitrary time
// from a sparse, unordered series of control points.
package setpoint

import (
	"strconv"

	"github.com/vjranagit/thermotrack/pkg/types"
)

// NotAvailable is the display form of an undetermined set point
const NotAvailable = "N/A"

// Interpolate returns the set-point temperature at time t.
//
// The second result is false when no set point can be determined: fewer
// than two points, or a left and right point that are distinct points
// sharing the same time.
//
// The left point is the latest point at or before t; when every point lies
// after t the earliest point is used. The right point is the first point in
// stored order strictly after t, or the last stored point when none is.
// When both sides land on the same point, t sits on or beyond an end of the
// curve and the adjacent segment is used instead, so values outside the
// covered time range are extrapolated rather than clamped.
func Interpolate(points []types.ControlPoint, t float64) (float64, bool) {
	if len(points) < 2 {
		return 0, false
	}

	l := leftIndex(points, t)
	r := rightIndex(points, t)

	if l == r {
		if points[l].Time <= t {
			l = predecessor(points, r)
		} else {
			r = successor(points, l)
		}
		if l < 0 || r < 0 {
			return 0, false
		}
	}

	left, right := points[l], points[r]
	if left.Time == right.Time {
		return 0, false
	}

	slope := (right.Temperature - left.Temperature) / (right.Time - left.Time)
	intercept := left.Temperature - slope*left.Time
	return slope*t + intercept, true
}

// leftIndex picks the latest point with time <= t, falling back to the
// earliest point. Ties keep the first in stored order.
func leftIndex(points []types.ControlPoint, t float64) int {
	best := -1
	for i, p := range points {
		if p.Time > t {
			continue
		}
		if best < 0 || p.Time > points[best].Time {
			best = i
		}
	}
	if best >= 0 {
		return best
	}

	best = 0
	for i, p := range points {
		if p.Time < points[best].Time {
			best = i
		}
	}
	return best
}

func rightIndex(points []types.ControlPoint, t float64) int {
	for i, p := range points {
		if p.Time > t {
			return i
		}
	}
	return len(points) - 1
}

// predecessor returns the latest point strictly before points[i], or -1
func predecessor(points []types.ControlPoint, i int) int {
	best := -1
	for j, p := range points {
		if p.Time >= points[i].Time {
			continue
		}
		if best < 0 || p.Time > points[best].Time {
			best = j
		}
	}
	return best
}

// successor returns the earliest point strictly after points[i], or -1
func successor(points []types.ControlPoint, i int) int {
	best := -1
	for j, p := range points {
		if p.Time <= points[i].Time {
			continue
		}
		if best < 0 || p.Time < points[best].Time {
			best = j
		}
	}
	return best
}

// Format renders a set point for display
func Format(v float64, ok bool) string {
	if !ok {
		return NotAvailable
	}
	return strconv.FormatFloat(v, 'f', 2, 64)
}
