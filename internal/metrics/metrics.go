// Package metrics exposes Prometheus instrumentation for the engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds Prometheus counters and gauges for the broadcast engine.
type Metrics struct {
	registry            *prometheus.Registry
	framesSentTotal     prometheus.Counter
	framesDroppedTotal  prometheus.Counter
	bytesSentTotal      prometheus.Counter
	framesRenderedTotal prometheus.Counter
	recordingsTotal     prometheus.Counter
	streamLive          prometheus.Gauge
	recordingActive     prometheus.Gauge
	bufferHealthPercent prometheus.Gauge
}

// New creates and registers engine metrics on a private registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	framesSentTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "broadcast_frames_sent_total",
		Help: "Total number of frames forwarded to the live encoder",
	})
	framesDroppedTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "broadcast_frames_dropped_total",
		Help: "Total number of frames dropped due to backpressure",
	})
	bytesSentTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "broadcast_bytes_sent_total",
		Help: "Total number of raw frame bytes forwarded to the live encoder",
	})
	framesRenderedTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "broadcast_frames_rendered_total",
		Help: "Total number of frames rendered by the compositor",
	})
	recordingsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "broadcast_recordings_total",
		Help: "Total number of recordings started",
	})
	streamLive := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "broadcast_stream_live",
		Help: "1 while a live stream is active",
	})
	recordingActive := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "broadcast_recording_active",
		Help: "1 while a local recording is active",
	})
	bufferHealthPercent := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "broadcast_buffer_health_percent",
		Help: "Free capacity of the outbound frame buffer, in percent",
	})

	registry.MustRegister(
		framesSentTotal,
		framesDroppedTotal,
		bytesSentTotal,
		framesRenderedTotal,
		recordingsTotal,
		streamLive,
		recordingActive,
		bufferHealthPercent,
	)

	return &Metrics{
		registry:            registry,
		framesSentTotal:     framesSentTotal,
		framesDroppedTotal:  framesDroppedTotal,
		bytesSentTotal:      bytesSentTotal,
		framesRenderedTotal: framesRenderedTotal,
		recordingsTotal:     recordingsTotal,
		streamLive:          streamLive,
		recordingActive:     recordingActive,
		bufferHealthPercent: bufferHealthPercent,
	}
}

// IncFramesSent increments the sent-frame counter and adds the frame size
// to the byte counter.
func (m *Metrics) IncFramesSent(sizeBytes int) {
	m.framesSentTotal.Inc()
	m.bytesSentTotal.Add(float64(sizeBytes))
}

// IncFramesDropped increments the dropped-frame counter.
func (m *Metrics) IncFramesDropped() {
	m.framesDroppedTotal.Inc()
}

// IncFramesRendered increments the rendered-frame counter.
func (m *Metrics) IncFramesRendered() {
	m.framesRenderedTotal.Inc()
}

// IncRecordings increments the recordings counter.
func (m *Metrics) IncRecordings() {
	m.recordingsTotal.Inc()
}

// SetStreamLive sets the live gauge.
func (m *Metrics) SetStreamLive(live bool) {
	m.streamLive.Set(boolToGauge(live))
}

// SetRecordingActive sets the recording gauge.
func (m *Metrics) SetRecordingActive(active bool) {
	m.recordingActive.Set(boolToGauge(active))
}

// SetBufferHealth sets the buffer health gauge.
func (m *Metrics) SetBufferHealth(percent float64) {
	m.bufferHealthPercent.Set(percent)
}

// Registry returns the underlying registry, for exposition by a host
// process.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func boolToGauge(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
