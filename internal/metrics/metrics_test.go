package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hoangvanthinh/ses-110kv-thermal-mea/internal/queue"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Counters(t *testing.T) {
	m := New("thermal-gateway")

	m.IncReading("cam1")
	m.IncReading("cam1")
	m.IncResult("ptz-move", "success")
	m.IncCommand("rtsp-refresh", "dropped")
	m.IncSink("fallback", "logged")

	assert.Equal(t, float64(2), testutil.ToFloat64(m.readingsTotal.WithLabelValues("cam1")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.resultsTotal.WithLabelValues("ptz-move", "success")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.commandsTotal.WithLabelValues("rtsp-refresh", "dropped")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.sinkTotal.WithLabelValues("fallback", "logged")))
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	m.IncReading("cam1")
	m.IncResult("ptz-move", "error")
	m.IncCommand("generic", "logged")
	m.IncSink("transport", "published")
	m.RegisterQueue("out", func() queue.Stats { return queue.Stats{} })
}

func TestMetrics_QueueExport(t *testing.T) {
	m := New("thermal-gateway")
	q := queue.New[int]("output", 1)
	m.RegisterQueue(q.Name(), q.Stats)

	require.NoError(t, q.Offer(1))
	_ = q.Offer(2)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)

	text := string(body)
	assert.True(t, strings.Contains(text, `thermal_gateway_queue_dropped_total{queue="output"} 1`), text)
	assert.True(t, strings.Contains(text, `thermal_gateway_queue_accepted_total{queue="output"} 1`), text)
}
