package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestDeliveriesCounter(t *testing.T) {
	before := testutil.ToFloat64(DeliveriesTotal.WithLabelValues("delivered"))
	DeliveriesTotal.WithLabelValues("delivered").Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(DeliveriesTotal.WithLabelValues("delivered")))
}

func TestSubscriberGaugeReadsSource(t *testing.T) {
	SetSubscriberSource(func() int { return 3 })
	t.Cleanup(func() { SetSubscriberSource(func() int { return 0 }) })

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	Handler().ServeHTTP(w, req)

	assert.Contains(t, w.Body.String(), "relay_subscribers 3")
}

func TestHandlerExposesRelayMetrics(t *testing.T) {
	IngestTotal.WithLabelValues("accepted").Inc()
	ObserveDispatch(time.Now())

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.True(t, strings.Contains(body, "relay_ingest_total"))
	assert.True(t, strings.Contains(body, "relay_dispatch_duration_seconds"))
}
