package metrics

import (
	"math"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all application metrics
type Metrics struct {
	// Frame processing counters
	FramesRead      atomic.Uint64
	FramesAnalyzed  atomic.Uint64
	FramesNoSubject atomic.Uint64
	FramesFailed    atomic.Uint64
	AcquireErrors   atomic.Uint64
	SessionsStarted atomic.Uint64
	SessionsEnded   atomic.Uint64

	// Latency tracking
	FrameLatencyMs   atomic.Uint64 // Capture to analysis, last frame
	ProcessLatencyUs atomic.Uint64 // Pipeline time, last frame

	// Posture state
	DebounceCounter atomic.Uint64
	AlarmActive     atomic.Uint64 // 0 = inactive, 1 = active
	SedentaryActive atomic.Uint64 // 0 = inactive, 1 = active
	SitSeconds      atomic.Uint64
	smoothedAngle   atomic.Uint64 // float64 bits
	smoothedNeck    atomic.Uint64 // float64 bits

	// Push clients (SSE, WebSocket, MJPEG, WebRTC)
	ActiveClients atomic.Int64
	TotalClients  atomic.Uint64

	// Publishing
	PayloadsPublished atomic.Uint64
	PayloadsDropped   atomic.Uint64 // Overwritten in the slot before dispatch
	SinkErrors        atomic.Uint64

	// Prometheus collectors
	registry *prometheus.Registry
}

// New creates a new Metrics instance with Prometheus collectors
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
	}

	m.registerPrometheusMetrics()

	return m
}

func (m *Metrics) gauge(name, help string, fn func() float64) {
	m.registry.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{Name: name, Help: help},
		fn,
	))
}

func loadU(v *atomic.Uint64) func() float64 {
	return func() float64 { return float64(v.Load()) }
}

// registerPrometheusMetrics registers all metrics with Prometheus
func (m *Metrics) registerPrometheusMetrics() {
	// Frame processing metrics
	m.gauge("posture_frames_read_total", "Total landmark frames acquired", loadU(&m.FramesRead))
	m.gauge("posture_frames_analyzed_total", "Total frames with a measured subject", loadU(&m.FramesAnalyzed))
	m.gauge("posture_frames_no_subject_total", "Total frames without a usable subject", loadU(&m.FramesNoSubject))
	m.gauge("posture_frames_failed_total", "Total frames that failed processing", loadU(&m.FramesFailed))
	m.gauge("posture_acquire_errors_total", "Total frame acquisition errors", loadU(&m.AcquireErrors))
	m.gauge("posture_sessions_started_total", "Total sitting sessions started", loadU(&m.SessionsStarted))
	m.gauge("posture_sessions_ended_total", "Total sitting sessions ended", loadU(&m.SessionsEnded))

	// Latency metrics
	m.gauge("posture_frame_latency_ms", "Capture to analysis latency of the last frame in milliseconds", loadU(&m.FrameLatencyMs))
	m.gauge("posture_process_latency_us", "Pipeline latency of the last frame in microseconds", loadU(&m.ProcessLatencyUs))

	// Posture metrics
	m.gauge("posture_debounce_counter", "Current bad-posture debounce counter", loadU(&m.DebounceCounter))
	m.gauge("posture_alarm_active", "Posture alarm active (0=inactive, 1=active)", loadU(&m.AlarmActive))
	m.gauge("posture_sedentary_active", "Stand-up alarm active (0=inactive, 1=active)", loadU(&m.SedentaryActive))
	m.gauge("posture_sit_seconds", "Elapsed seconds of the current sitting session", loadU(&m.SitSeconds))
	m.gauge("posture_smoothed_angle_degrees", "Smoothed trunk angle", m.SmoothedAngle)
	m.gauge("posture_smoothed_neck_offset", "Smoothed neck offset ratio", m.SmoothedNeckOffset)

	// Client metrics
	m.gauge("posture_active_clients", "Number of connected push clients",
		func() float64 { return float64(m.ActiveClients.Load()) })
	m.gauge("posture_total_clients", "Total push clients connected", loadU(&m.TotalClients))

	// Publish metrics
	m.gauge("posture_payloads_published_total", "Total payloads accepted by at least one sink", loadU(&m.PayloadsPublished))
	m.gauge("posture_payloads_dropped_total", "Total payloads superseded before dispatch", loadU(&m.PayloadsDropped))
	m.gauge("posture_sink_errors_total", "Total sink delivery failures", loadU(&m.SinkErrors))
}

// UpdateFrameLatency records the latency of a frame captured at captureTime
func (m *Metrics) UpdateFrameLatency(captureTime time.Time) {
	if captureTime.IsZero() {
		return
	}
	latency := time.Since(captureTime).Milliseconds()
	if latency < 0 {
		latency = 0
	}
	m.FrameLatencyMs.Store(uint64(latency))
}

// UpdateProcessLatency records how long the pipeline took for one frame
func (m *Metrics) UpdateProcessLatency(duration time.Duration) {
	m.ProcessLatencyUs.Store(uint64(duration.Microseconds()))
}

// UpdateFilter stores the smoothed signals
func (m *Metrics) UpdateFilter(angle, neckOffset float64) {
	m.smoothedAngle.Store(math.Float64bits(angle))
	m.smoothedNeck.Store(math.Float64bits(neckOffset))
}

// SmoothedAngle returns the last stored smoothed angle
func (m *Metrics) SmoothedAngle() float64 {
	return math.Float64frombits(m.smoothedAngle.Load())
}

// SmoothedNeckOffset returns the last stored smoothed neck offset
func (m *Metrics) SmoothedNeckOffset() float64 {
	return math.Float64frombits(m.smoothedNeck.Load())
}

// SetFlag stores a boolean gauge as 0/1
func SetFlag(v *atomic.Uint64, on bool) {
	if on {
		v.Store(1)
		return
	}
	v.Store(0)
}

// ClientConnected tracks a new push client
func (m *Metrics) ClientConnected() {
	m.ActiveClients.Add(1)
	m.TotalClients.Add(1)
}

// ClientDisconnected tracks a push client going away
func (m *Metrics) ClientDisconnected() {
	m.ActiveClients.Add(-1)
}

// Handler returns the Prometheus HTTP handler
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// StartServer starts a dedicated metrics HTTP server
func (m *Metrics) StartServer(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	return http.ListenAndServe(addr, mux)
}
