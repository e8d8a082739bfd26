package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the daemon
type Metrics struct {
	registry *prometheus.Registry

	// Session metrics
	SessionsActive prometheus.Gauge
	SessionsTotal  prometheus.Counter

	// Command metrics
	CommandsTotal       *prometheus.CounterVec
	CommandDuration     prometheus.Histogram
	InterruptsTotal     prometheus.Counter
	BusyRejectionsTotal prometheus.Counter

	// Publication metrics
	PublishesTotal     *prometheus.CounterVec
	PublishErrorsTotal prometheus.Counter
	BufferedBytes      prometheus.Gauge

	// Transfer metrics
	TransfersTotal  *prometheus.CounterVec
	TransfersActive prometheus.Gauge

	// Telegram metrics
	MessagesReceivedTotal prometheus.Counter
	MessagesSentTotal     prometheus.Counter
	UnauthorizedTotal     prometheus.Counter
}

// New creates and registers all metrics
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,

		SessionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "telsh_sessions_active",
			Help: "Number of live shell sessions",
		}),
		SessionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "telsh_sessions_total",
			Help: "Total number of shell sessions started",
		}),

		CommandsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "telsh_commands_total",
				Help: "Total number of dispatched commands",
			},
			[]string{"kind"}, // plain, chdir, raw
		),
		CommandDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "telsh_command_duration_seconds",
			Help:    "Time from dispatch to completion marker",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
		}),
		InterruptsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "telsh_interrupts_total",
			Help: "Total number of interrupt signals sent",
		}),
		BusyRejectionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "telsh_busy_rejections_total",
			Help: "Commands rejected because one was already running",
		}),

		PublishesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "telsh_publishes_total",
				Help: "Output publications by mode",
			},
			[]string{"mode"}, // periodic, final
		),
		PublishErrorsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "telsh_publish_errors_total",
			Help: "Failed output publications",
		}),
		BufferedBytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "telsh_buffered_bytes",
			Help: "Bytes currently buffered and not yet published",
		}),

		TransfersTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "telsh_transfers_total",
				Help: "Remote copy jobs by outcome",
			},
			[]string{"status"}, // ok, failed, cancelled
		),
		TransfersActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "telsh_transfers_active",
			Help: "Remote copy jobs currently running",
		}),

		MessagesReceivedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "telsh_messages_received_total",
			Help: "Inbound Telegram updates handled",
		}),
		MessagesSentTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "telsh_messages_sent_total",
			Help: "Outbound Telegram messages sent",
		}),
		UnauthorizedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "telsh_unauthorized_total",
			Help: "Updates rejected by the allowlist",
		}),
	}

	registry.MustRegister(
		m.SessionsActive,
		m.SessionsTotal,
		m.CommandsTotal,
		m.CommandDuration,
		m.InterruptsTotal,
		m.BusyRejectionsTotal,
		m.PublishesTotal,
		m.PublishErrorsTotal,
		m.BufferedBytes,
		m.TransfersTotal,
		m.TransfersActive,
		m.MessagesReceivedTotal,
		m.MessagesSentTotal,
		m.UnauthorizedTotal,
	)

	return m
}

// Handler returns an HTTP handler exposing the registry
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
