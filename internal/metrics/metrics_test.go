package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vjranagit/thermotrack/pkg/controller"
	"github.com/vjranagit/thermotrack/pkg/types"
)

func TestObserveUpdate(t *testing.T) {
	m := New()

	v := 17.5
	m.ObserveUpdate(controller.Update{Time: 2, Playing: true, SetPoint: &v, Trace: []types.Sample{{}, {}}})

	assert.Equal(t, 17.5, testutil.ToFloat64(m.SetPoint))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SetPointDefined))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.SimulatedTime))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Playing))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.TraceSamples))

	m.ObserveUpdate(controller.Update{})
	assert.Equal(t, 0.0, testutil.ToFloat64(m.SetPointDefined))
	assert.Equal(t, 17.5, testutil.ToFloat64(m.SetPoint))
}

func TestPollObserver(t *testing.T) {
	m := New()

	m.PollSucceeded(40, true)
	m.PollSucceeded(0, false)
	m.PollFailed(errors.New("offline"))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.SensorPolls.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SensorPolls.WithLabelValues("error")))
	assert.Equal(t, 40.0, testutil.ToFloat64(m.SensorValue))
}

func TestHandler(t *testing.T) {
	m := New()
	m.ReadingsAdded.Inc()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "thermotrack_readings_added_total 1")
}
