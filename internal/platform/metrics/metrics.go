package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus counters and gauges the sink exposes,
// generalized from the teacher's stream/rendition series to the sink's
// pad-lifecycle and storage-adapter events.
type Metrics struct {
	registry              *prometheus.Registry
	requestsTotal         prometheus.Counter
	errorsTotal           prometheus.Counter
	fragmentsWrittenTotal prometheus.Counter
	bytesWrittenTotal     prometheus.Counter
	streamPlayableTotal   prometheus.Counter
	adapterErrorsTotal    prometheus.Counter
	segmentsEvictedTotal  prometheus.Counter
	activeTracks          prometheus.Gauge
}

// New creates and registers the sink's Prometheus metrics.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	requestsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sink_requests_total",
		Help: "Total number of HTTP requests received",
	})
	errorsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sink_errors_total",
		Help: "Total number of HTTP responses with error status (4xx or 5xx)",
	})
	fragmentsWrittenTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sink_fragments_written_total",
		Help: "Total number of fragments successfully committed to storage",
	})
	bytesWrittenTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sink_bytes_written_total",
		Help: "Total number of fragment payload bytes committed to storage",
	})
	streamPlayableTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sink_stream_playable_total",
		Help: "Total number of stream_playable notifications emitted",
	})
	adapterErrorsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sink_adapter_errors_total",
		Help: "Total number of storage adapter calls that returned an error",
	})
	segmentsEvictedTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sink_segments_evicted_total",
		Help: "Total number of segments evicted by the sliding window policy",
	})
	activeTracks := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "sink_active_tracks",
		Help: "Number of tracks currently in the streaming state",
	})

	registry.MustRegister(
		requestsTotal,
		errorsTotal,
		fragmentsWrittenTotal,
		bytesWrittenTotal,
		streamPlayableTotal,
		adapterErrorsTotal,
		segmentsEvictedTotal,
		activeTracks,
	)

	return &Metrics{
		registry:              registry,
		requestsTotal:         requestsTotal,
		errorsTotal:           errorsTotal,
		fragmentsWrittenTotal: fragmentsWrittenTotal,
		bytesWrittenTotal:     bytesWrittenTotal,
		streamPlayableTotal:   streamPlayableTotal,
		adapterErrorsTotal:    adapterErrorsTotal,
		segmentsEvictedTotal:  segmentsEvictedTotal,
		activeTracks:          activeTracks,
	}
}

// IncRequests increments the total request counter.
func (m *Metrics) IncRequests() {
	m.requestsTotal.Inc()
}

// IncErrors increments the errors counter.
func (m *Metrics) IncErrors() {
	m.errorsTotal.Inc()
}

// ObserveFragmentWritten records one fragment of byteSize bytes
// successfully committed to storage.
func (m *Metrics) ObserveFragmentWritten(byteSize int) {
	m.fragmentsWrittenTotal.Inc()
	m.bytesWrittenTotal.Add(float64(byteSize))
}

// IncStreamPlayable increments the stream_playable notification counter.
func (m *Metrics) IncStreamPlayable() {
	m.streamPlayableTotal.Inc()
}

// IncAdapterErrors increments the storage adapter error counter.
func (m *Metrics) IncAdapterErrors() {
	m.adapterErrorsTotal.Inc()
}

// AddSegmentsEvicted adds n to the evicted segment counter.
func (m *Metrics) AddSegmentsEvicted(n int) {
	if n <= 0 {
		return
	}
	m.segmentsEvictedTotal.Add(float64(n))
}

// SetActiveTracks sets the active track gauge.
func (m *Metrics) SetActiveTracks(n int) {
	m.activeTracks.Set(float64(n))
}

// Handler returns an http.Handler that serves Prometheus metrics.
// updateGauges is called before each scrape to refresh gauge values.
func (m *Metrics) Handler(updateGauges func()) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if updateGauges != nil {
			updateGauges()
		}
		promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}).ServeHTTP(w, r)
	})
}
