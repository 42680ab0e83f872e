package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/turtacn/pushgate/internal/domain/models"
	"github.com/turtacn/pushgate/internal/domain/service"
)

var _ service.Metrics = (*Metrics)(nil)

// Metrics manages the Prometheus metrics.
type Metrics struct {
	PushSends          *prometheus.CounterVec
	PushSendLatency    *prometheus.HistogramVec
	CredentialRefresh  *prometheus.CounterVec
	RegistryOps        *prometheus.CounterVec
	BroadcastRecipient *prometheus.CounterVec

	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec
}

// NewMetrics creates the metrics and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		PushSends: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pushgate_push_sends_total",
				Help: "Total number of gateway sends by outcome.",
			},
			[]string{"environment", "outcome"},
		),
		PushSendLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pushgate_push_send_latency_seconds",
				Help:    "Latency of gateway sends, including connection setup.",
				Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 15},
			},
			[]string{"environment"},
		),
		CredentialRefresh: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pushgate_credential_refresh_total",
				Help: "Total number of credential generations.",
			},
			[]string{"result"},
		),
		RegistryOps: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pushgate_registry_ops_total",
				Help: "Total number of registry operations.",
			},
			[]string{"op", "result"},
		),
		BroadcastRecipient: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pushgate_broadcast_recipients_total",
				Help: "Total number of broadcast recipients processed.",
			},
			[]string{"result"},
		),
		HTTPRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pushgate_http_requests_total",
				Help: "Total number of REST requests.",
			},
			[]string{"method", "path", "status"},
		),
		HTTPDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pushgate_http_request_duration_seconds",
				Help:    "Latency of REST requests.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
	}
}

// RecordSend records metrics for one gateway send.
func (m *Metrics) RecordSend(env models.Environment, outcome string, duration time.Duration) {
	m.PushSends.WithLabelValues(env.String(), outcome).Inc()
	m.PushSendLatency.WithLabelValues(env.String()).Observe(duration.Seconds())
}

// RecordCredentialRefresh records a credential generation attempt.
func (m *Metrics) RecordCredentialRefresh(success bool) {
	m.CredentialRefresh.WithLabelValues(resultLabel(success)).Inc()
}

// RecordRegistryOp records a registry operation.
func (m *Metrics) RecordRegistryOp(op, result string) {
	m.RegistryOps.WithLabelValues(op, result).Inc()
}

// RecordBroadcastRecipient records one broadcast recipient result.
func (m *Metrics) RecordBroadcastRecipient(success bool) {
	m.BroadcastRecipient.WithLabelValues(resultLabel(success)).Inc()
}

func resultLabel(success bool) string {
	if success {
		return "success"
	}
	return "failure"
}
