// Package metrics exposes the service's Prometheus collectors.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vjranagit/thermotrack/pkg/controller"
)

const namespace = "thermotrack"

// Metrics holds the collectors on a private registry
type Metrics struct {
	registry *prometheus.Registry

	ReadingsAdded   prometheus.Counter
	ReadingsRemoved prometheus.Counter
	SensorPolls     *prometheus.CounterVec
	SensorValue     prometheus.Gauge
	SetPoint        prometheus.Gauge
	SetPointDefined prometheus.Gauge
	SimulatedTime   prometheus.Gauge
	Playing         prometheus.Gauge
	TraceSamples    prometheus.Gauge
}

// New registers all collectors on a fresh registry
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		ReadingsAdded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "readings_added_total",
			Help: "Control points added through the API.",
		}),
		ReadingsRemoved: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "readings_removed_total",
			Help: "Control points removed through the API.",
		}),
		SensorPolls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "sensor_polls_total",
			Help: "Live sensor polls by outcome.",
		}, []string{"outcome"}),
		SensorValue: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "sensor_temperature_celsius",
			Help: "Last temperature reported by the live sensor.",
		}),
		SetPoint: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "setpoint_temperature_celsius",
			Help: "Set point at the current simulated time.",
		}),
		SetPointDefined: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "setpoint_defined",
			Help: "1 when the set point can be determined, 0 otherwise.",
		}),
		SimulatedTime: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "playback_time_minutes",
			Help: "Current simulated time.",
		}),
		Playing: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "playback_running",
			Help: "1 while the playback clock runs.",
		}),
		TraceSamples: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "realized_trace_samples",
			Help: "Samples in the current realized trace.",
		}),
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.ReadingsAdded, m.ReadingsRemoved, m.SensorPolls, m.SensorValue,
		m.SetPoint, m.SetPointDefined, m.SimulatedTime, m.Playing, m.TraceSamples,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry returns the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveUpdate records a controller update
func (m *Metrics) ObserveUpdate(u controller.Update) {
	m.SimulatedTime.Set(u.Time)
	m.Playing.Set(boolGauge(u.Playing))
	m.TraceSamples.Set(float64(len(u.Trace)))
	if v, ok := u.Value(); ok {
		m.SetPoint.Set(v)
		m.SetPointDefined.Set(1)
		return
	}
	m.SetPointDefined.Set(0)
}

// PollSucceeded implements sensor.Observer
func (m *Metrics) PollSucceeded(value float64, ok bool) {
	m.SensorPolls.WithLabelValues("ok").Inc()
	if ok {
		m.SensorValue.Set(value)
	}
}

// PollFailed implements sensor.Observer
func (m *Metrics) PollFailed(error) {
	m.SensorPolls.WithLabelValues("error").Inc()
}

func boolGauge(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
