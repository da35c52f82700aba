package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Recorder collects client side counters for the SunBalance API and the session lifecycle.
type Recorder struct {
	registry        *prometheus.Registry
	requests        *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	sessionEvents   *prometheus.CounterVec
	facadeRequests  *prometheus.CounterVec
}

// NewRecorder registers the collectors on a private registry.
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sunbalance",
			Subsystem: "api",
			Name:      "requests_total",
			Help:      "Requests sent to the SunBalance API by method, route and status.",
		}, []string{"method", "route", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "sunbalance",
			Subsystem: "api",
			Name:      "request_duration_seconds",
			Help:      "Latency of SunBalance API requests.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		sessionEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sunbalance",
			Subsystem: "session",
			Name:      "events_total",
			Help:      "Session lifecycle events by kind and outcome.",
		}, []string{"event", "outcome"}),
		facadeRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sunbalance",
			Subsystem: "facade",
			Name:      "requests_total",
			Help:      "Requests served by the local facade by method, route and status.",
		}, []string{"method", "route", "status"}),
	}
	r.registry.MustRegister(
		r.requests,
		r.requestDuration,
		r.sessionEvents,
		r.facadeRequests,
		collectors.NewGoCollector(),
	)
	return r
}

// Registry exposes the underlying registry for promhttp.
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

// ObserveRequest records one API round trip. status 0 means the request never got a response.
func (r *Recorder) ObserveRequest(method, route string, status int, elapsed time.Duration) {
	if r == nil {
		return
	}
	code := "error"
	if status > 0 {
		code = strconv.Itoa(status)
	}
	r.requests.WithLabelValues(method, route, code).Inc()
	r.requestDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// SessionEvent counts login/refresh/logout outcomes.
func (r *Recorder) SessionEvent(event string, err error) {
	if r == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	r.sessionEvents.WithLabelValues(event, outcome).Inc()
}

// ObserveFacade counts one request served by the local facade.
func (r *Recorder) ObserveFacade(method, route string, status int) {
	if r == nil {
		return
	}
	r.facadeRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
}
