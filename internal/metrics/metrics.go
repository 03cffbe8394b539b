package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// ActiveRooms tracks rooms currently held in the hub registry.
	ActiveRooms = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "peerhub",
		Name:      "active_rooms",
		Help:      "Number of rooms currently registered in the hub",
	})

	// ActiveConnections tracks live websocket connections.
	ActiveConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "peerhub",
		Name:      "active_connections",
		Help:      "Number of live websocket connections",
	})

	// EventsTotal counts dispatched inbound events by type.
	EventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "peerhub",
		Name:      "events_total",
		Help:      "Total inbound events dispatched, by event type",
	}, []string{"event"})

	// DroppedEvents counts events discarded on the fail-open path.
	DroppedEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "peerhub",
		Name:      "dropped_events_total",
		Help:      "Inbound events dropped without dispatch, by reason",
	}, []string{"reason"})

	httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "peerhub",
		Name:      "http_requests_total",
		Help:      "Total number of HTTP requests received",
	}, []string{"method", "path", "status"})

	httpLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "peerhub",
		Name:      "http_request_duration_seconds",
		Help:      "Duration of HTTP requests in seconds",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	httpInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "peerhub",
		Name:      "http_in_flight_requests",
		Help:      "Current number of in-flight HTTP requests",
	})
)

type responseRecorder struct {
	http.ResponseWriter
	status int
}

func (r *responseRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *responseRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	return r.ResponseWriter.Write(b)
}

// Middleware records request metrics. Websocket upgrades bypass it because
// the recorder does not implement http.Hijacker.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Upgrade") == "websocket" {
			next.ServeHTTP(w, r)
			return
		}

		rec := &responseRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		httpInFlight.Inc()
		defer httpInFlight.Dec()

		next.ServeHTTP(rec, r)

		labels := prometheus.Labels{
			"method": r.Method,
			"path":   r.URL.Path,
			"status": strconv.Itoa(rec.status),
		}
		httpRequests.With(labels).Inc()
		httpLatency.With(labels).Observe(time.Since(start).Seconds())
	})
}

// Handler exposes the default Prometheus metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
