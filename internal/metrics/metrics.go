// Package metrics holds the Prometheus collectors for presence and fan-out.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the realtime side of the server.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	// Users with a registered live connection
	OnlineUsers prometheus.Gauge

	// Frames handed to a connection, by frame type
	FramesDelivered *prometheus.CounterVec

	// Frames that never reached a connection, by reason
	FramesDropped *prometheus.CounterVec

	// Time spent delivering one published event to all recipients
	FanoutLatency prometheus.Histogram
}

// New registers every collector with reg. Tests pass prometheus.NewRegistry()
// so repeated construction does not collide on the default registerer.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		OnlineUsers: f.NewGauge(prometheus.GaugeOpts{
			Name: "flockr_presence_online_users",
			Help: "Number of users currently holding a live connection",
		}),

		FramesDelivered: f.NewCounterVec(prometheus.CounterOpts{
			Name: "flockr_fanout_frames_delivered_total",
			Help: "Total frames written to a recipient connection by frame type",
		}, []string{"type"}),

		FramesDropped: f.NewCounterVec(prometheus.CounterOpts{
			Name: "flockr_fanout_frames_dropped_total",
			Help: "Total frames dropped before delivery by reason",
		}, []string{"reason"}), // reason: "queue_full", "encode", "send"

		FanoutLatency: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "flockr_fanout_duration_seconds",
			Help:    "Duration of delivering one event to all online recipients",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 1},
		}),
	}
}

// SetOnline records the current number of online users.
func (m *Metrics) SetOnline(n int) {
	if m != nil {
		m.OnlineUsers.Set(float64(n))
	}
}

// IncrementDelivered records one frame written to a connection.
func (m *Metrics) IncrementDelivered(frameType string) {
	if m != nil {
		m.FramesDelivered.WithLabelValues(frameType).Inc()
	}
}

// IncrementDropped records one frame that was not delivered.
func (m *Metrics) IncrementDropped(reason string) {
	if m != nil {
		m.FramesDropped.WithLabelValues(reason).Inc()
	}
}

// ObserveFanout records how long one event took to deliver.
func (m *Metrics) ObserveFanout(seconds float64) {
	if m != nil {
		m.FanoutLatency.Observe(seconds)
	}
}
