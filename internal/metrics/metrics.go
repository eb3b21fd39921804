package metrics

import (
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all worker counters
type Metrics struct {
	// Frame pipeline
	FramesProcessed   atomic.Uint64
	ViolationFrames   atomic.Uint64
	Violations        atomic.Uint64
	DetectionFailures atomic.Uint64

	// Side effects
	LogWrites       atomic.Uint64
	LogWriteErrors  atomic.Uint64
	VoiceAlerts     atomic.Uint64
	VoiceErrors     atomic.Uint64
	EventsPublished atomic.Uint64
	PublishErrors   atomic.Uint64

	// Sessions
	ActiveSessions atomic.Int64
	TotalSessions  atomic.Uint64

	// Latency
	ProcessLatencyMs atomic.Uint64

	registry *prometheus.Registry
}

// Snapshot is a point-in-time copy of the counters
type Snapshot struct {
	FramesProcessed   uint64 `json:"frames_processed"`
	ViolationFrames   uint64 `json:"violation_frames"`
	Violations        uint64 `json:"violations"`
	DetectionFailures uint64 `json:"detection_failures"`
	LogWrites         uint64 `json:"log_writes"`
	LogWriteErrors    uint64 `json:"log_write_errors"`
	VoiceAlerts       uint64 `json:"voice_alerts"`
	VoiceErrors       uint64 `json:"voice_errors"`
	EventsPublished   uint64 `json:"events_published"`
	PublishErrors     uint64 `json:"publish_errors"`
	ActiveSessions    int64  `json:"active_sessions"`
	TotalSessions     uint64 `json:"total_sessions"`
	ProcessLatencyMs  uint64 `json:"process_latency_ms"`
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
	}
	m.registerPrometheusMetrics()
	return m
}

func (m *Metrics) counter(name, help string, v *atomic.Uint64) {
	m.registry.MustRegister(prometheus.NewCounterFunc(
		prometheus.CounterOpts{Name: name, Help: help},
		func() float64 { return float64(v.Load()) },
	))
}

func (m *Metrics) registerPrometheusMetrics() {
	m.counter("helmet_frames_processed_total", "Total frames run through detection and annotation", &m.FramesProcessed)
	m.counter("helmet_violation_frames_total", "Total frames containing at least one violation", &m.ViolationFrames)
	m.counter("helmet_violations_total", "Total no-helmet detections above threshold", &m.Violations)
	m.counter("helmet_detection_failures_total", "Total frames skipped because detection failed", &m.DetectionFailures)

	m.counter("helmet_log_writes_total", "Total rows appended to the violation log", &m.LogWrites)
	m.counter("helmet_log_write_errors_total", "Total failed violation log appends", &m.LogWriteErrors)
	m.counter("helmet_voice_alerts_total", "Total spoken warnings fired", &m.VoiceAlerts)
	m.counter("helmet_voice_errors_total", "Total failed speech syntheses", &m.VoiceErrors)
	m.counter("helmet_events_published_total", "Total violation events published", &m.EventsPublished)
	m.counter("helmet_publish_errors_total", "Total failed violation event publishes", &m.PublishErrors)
	m.counter("helmet_sessions_total", "Total detection sessions started", &m.TotalSessions)

	m.registry.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "helmet_active_sessions",
			Help: "Number of running detection sessions",
		},
		func() float64 { return float64(m.ActiveSessions.Load()) },
	))

	m.registry.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "helmet_process_latency_ms",
			Help: "Latency of the most recent frame in milliseconds",
		},
		func() float64 { return float64(m.ProcessLatencyMs.Load()) },
	))
}

// UpdateProcessLatency records the latest per-frame processing time
func (m *Metrics) UpdateProcessLatency(d time.Duration) {
	m.ProcessLatencyMs.Store(uint64(d.Milliseconds()))
}

func (m *Metrics) Snapshot() Snapshot {
	return Snapshot{
		FramesProcessed:   m.FramesProcessed.Load(),
		ViolationFrames:   m.ViolationFrames.Load(),
		Violations:        m.Violations.Load(),
		DetectionFailures: m.DetectionFailures.Load(),
		LogWrites:         m.LogWrites.Load(),
		LogWriteErrors:    m.LogWriteErrors.Load(),
		VoiceAlerts:       m.VoiceAlerts.Load(),
		VoiceErrors:       m.VoiceErrors.Load(),
		EventsPublished:   m.EventsPublished.Load(),
		PublishErrors:     m.PublishErrors.Load(),
		ActiveSessions:    m.ActiveSessions.Load(),
		TotalSessions:     m.TotalSessions.Load(),
		ProcessLatencyMs:  m.ProcessLatencyMs.Load(),
	}
}

// Handler returns the Prometheus HTTP handler
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
