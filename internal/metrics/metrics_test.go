package metrics

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Handler(t *testing.T) {
	m := New()
	m.IngestRecords.WithLabelValues(IngestInserted).Add(3)
	m.IngestRecords.WithLabelValues(IngestDuplicate).Inc()

	assert.Equal(t, 3.0, testutil.ToFloat64(m.IngestRecords.WithLabelValues(IngestInserted)))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)

	assert.Contains(t, string(body), `jobboard_ingest_records_total{result="duplicate"} 1`)
}

func TestNew_IsolatedRegistries(t *testing.T) {
	assert.NotPanics(t, func() {
		New()
		New()
	})
}
