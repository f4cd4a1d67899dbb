package metrics

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveScan(t *testing.T) {
	t.Parallel()

	m := New()
	m.ObserveScan("lore", 0, 1)
	m.ObserveScan("phoronix", 3, 0)
	m.ObserveScan("phoronix", 2, 0)

	assert.InDelta(t, 5, testutil.ToFloat64(m.ItemsCollected.WithLabelValues("phoronix")), 0)
	assert.InDelta(t, 0, testutil.ToFloat64(m.ItemsCollected.WithLabelValues("lore")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.BotChallenges), 0)
}

func TestObserveRunSkippedLeavesGauge(t *testing.T) {
	t.Parallel()

	m := New()
	m.ObserveRun(OutcomeDelivered, 10*time.Second, 42)
	m.ObserveRun(OutcomeSkipped, 0, 0)

	assert.InDelta(t, 1, testutil.ToFloat64(m.Runs.WithLabelValues(OutcomeSkipped)), 0)
	assert.InDelta(t, 42, testutil.ToFloat64(m.CachedLinks), 0)
}

func TestNilMetricsIsNoop(t *testing.T) {
	t.Parallel()

	var m *Metrics
	m.ObserveScan("lore", 1, 1)
	m.ScannerFailed("lore")
	m.ObserveRun(OutcomeFailed, time.Second, 1)
}

func TestHandlerExposesCollectors(t *testing.T) {
	t.Parallel()

	m := New()
	m.ScannerFailed("itsfoss")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `tuxletter_scanner_errors_total{source="itsfoss"} 1`)
}
