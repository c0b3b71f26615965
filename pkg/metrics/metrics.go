// Package metrics holds the Prometheus collectors for the chat relay.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "chatrelay"

// Recorder records request and stream outcomes on its own registry.
type Recorder struct {
	registry *prometheus.Registry

	requests       *prometheus.CounterVec
	fragments      prometheus.Counter
	streamDuration *prometheus.HistogramVec
	authDuration   prometheus.Histogram
}

// New creates a Recorder with process and Go runtime collectors registered.
func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Relay requests by route and outcome.",
		}, []string{"route", "outcome"}),
		fragments: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fragments_relayed_total",
			Help:      "Fragments written to clients.",
		}),
		streamDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stream_duration_seconds",
			Help:      "Time from opening the upstream stream to its end.",
			Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 30, 60, 120},
		}, []string{"outcome"}),
		authDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "auth_duration_seconds",
			Help:      "Credential validation latency.",
			Buckets:   prometheus.DefBuckets,
		}),
	}

	r.registry.MustRegister(
		r.requests,
		r.fragments,
		r.streamDuration,
		r.authDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return r
}

// Request counts one finished request.
func (r *Recorder) Request(route, outcome string) {
	r.requests.WithLabelValues(route, outcome).Inc()
}

// Fragment counts one relayed fragment.
func (r *Recorder) Fragment() {
	r.fragments.Inc()
}

// StreamFinished observes a stream's lifetime.
func (r *Recorder) StreamFinished(outcome string, d time.Duration) {
	r.streamDuration.WithLabelValues(outcome).Observe(d.Seconds())
}

// AuthObserved observes a credential validation call.
func (r *Recorder) AuthObserved(d time.Duration) {
	r.authDuration.Observe(d.Seconds())
}

// Registry exposes the underlying registry, mostly for tests.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Handler serves the exposition format for this recorder.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
