package selfmetrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecorders(t *testing.T) {
	before := testutil.ToFloat64(hubEventsDropped.WithLabelValues("benchmark"))
	RecordDropped("benchmark")
	assert.Equal(t, before+1, testutil.ToFloat64(hubEventsDropped.WithLabelValues("benchmark")))

	SetSubscribers(3)
	assert.Equal(t, float64(3), testutil.ToFloat64(hubSubscribers))

	before = testutil.ToFloat64(sourceQueries.WithLabelValues("prometheus", "unavailable"))
	RecordSourceQuery("prometheus", false, 20*time.Millisecond)
	assert.Equal(t, before+1, testutil.ToFloat64(sourceQueries.WithLabelValues("prometheus", "unavailable")))

	SetBenchmarkActive(true)
	assert.Equal(t, float64(1), testutil.ToFloat64(benchmarkActive))
	SetBenchmarkActive(false)
	assert.Equal(t, float64(0), testutil.ToFloat64(benchmarkActive))
}
