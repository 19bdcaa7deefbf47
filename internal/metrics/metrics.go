package metrics

import (
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	DeliveriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_deliveries_total",
			Help: "Per-subscriber delivery attempts by outcome (delivered, evicted)",
		},
		[]string{"outcome"},
	)

	IngestTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_ingest_total",
			Help: "Ingestion calls by outcome",
		},
		[]string{"outcome"},
	)

	DispatchDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "relay_dispatch_duration_seconds",
			Help:    "Time taken to complete one dispatch cycle",
			Buckets: prometheus.DefBuckets,
		},
	)

	ForwardTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_forward_total",
			Help: "Downstream forwarding attempts by outcome (forwarded, failed)",
		},
		[]string{"outcome"},
	)

	ProcessTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_process_total",
			Help: "Object processing runs by outcome",
		},
		[]string{"outcome"},
	)

	ConnectionsOpened = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_connections_opened_total",
			Help: "Subscriber connections accepted",
		},
	)
)

var subscriberSource atomic.Pointer[func() int]

func init() {
	prometheus.MustRegister(DeliveriesTotal)
	prometheus.MustRegister(IngestTotal)
	prometheus.MustRegister(DispatchDuration)
	prometheus.MustRegister(ForwardTotal)
	prometheus.MustRegister(ProcessTotal)
	prometheus.MustRegister(ConnectionsOpened)
	prometheus.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "relay_subscribers",
			Help: "Currently registered subscriber connections",
		},
		func() float64 {
			if fn := subscriberSource.Load(); fn != nil {
				return float64((*fn)())
			}
			return 0
		},
	))
}

// SetSubscriberSource makes relay_subscribers report count. The latest call wins.
func SetSubscriberSource(count func() int) {
	subscriberSource.Store(&count)
}

// ObserveDispatch records the duration of a dispatch cycle that started at start.
func ObserveDispatch(start time.Time) {
	DispatchDuration.Observe(time.Since(start).Seconds())
}

// Handler returns the HTTP handler for the metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
