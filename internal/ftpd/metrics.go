package ftpd

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// MetricsCollector is an optional sink for server-lifecycle metrics.
// All methods must be non-blocking; the server checks for a nil
// collector before calling, so implementations don't need to.
type MetricsCollector interface {
	RecordCommand(cmd string, success bool, duration time.Duration)
	RecordTransfer(operation string, bytes int64, duration time.Duration)
	RecordConnection(accepted bool, reason string)
	RecordAuthentication(success bool, user string)
}

// PrometheusCollector implements MetricsCollector on top of
// client_golang, exposing counters/histograms for scraping.
type PrometheusCollector struct {
	commands      *prometheus.CounterVec
	commandTiming *prometheus.HistogramVec
	transferBytes *prometheus.CounterVec
	transferTime  *prometheus.HistogramVec
	connections   *prometheus.CounterVec
	authAttempts  *prometheus.CounterVec
}

// NewPrometheusCollector registers its metrics with reg (typically
// prometheus.DefaultRegisterer) and returns a ready-to-use collector.
func NewPrometheusCollector(reg prometheus.Registerer) *PrometheusCollector {
	c := &PrometheusCollector{
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "xftpd",
			Name:      "commands_total",
			Help:      "FTP commands processed, by command and outcome.",
		}, []string{"cmd", "success"}),
		commandTiming: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "xftpd",
			Name:      "command_duration_seconds",
			Help:      "Command handler latency.",
		}, []string{"cmd"}),
		transferBytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "xftpd",
			Name:      "transfer_bytes_total",
			Help:      "Bytes transferred, by operation.",
		}, []string{"operation"}),
		transferTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "xftpd",
			Name:      "transfer_duration_seconds",
			Help:      "Transfer duration, by operation.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
		}, []string{"operation"}),
		connections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "xftpd",
			Name:      "connections_total",
			Help:      "Accepted/rejected connections, by reason.",
		}, []string{"accepted", "reason"}),
		authAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "xftpd",
			Name:      "auth_attempts_total",
			Help:      "Authentication attempts, by outcome.",
		}, []string{"success"}),
	}
	reg.MustRegister(c.commands, c.commandTiming, c.transferBytes, c.transferTime, c.connections, c.authAttempts)
	return c
}

func (c *PrometheusCollector) RecordCommand(cmd string, success bool, duration time.Duration) {
	c.commands.WithLabelValues(cmd, boolLabel(success)).Inc()
	c.commandTiming.WithLabelValues(cmd).Observe(duration.Seconds())
}

func (c *PrometheusCollector) RecordTransfer(operation string, bytes int64, duration time.Duration) {
	c.transferBytes.WithLabelValues(operation).Add(float64(bytes))
	c.transferTime.WithLabelValues(operation).Observe(duration.Seconds())
}

func (c *PrometheusCollector) RecordConnection(accepted bool, reason string) {
	c.connections.WithLabelValues(boolLabel(accepted), reason).Inc()
}

func (c *PrometheusCollector) RecordAuthentication(success bool, user string) {
	c.authAttempts.WithLabelValues(boolLabel(success)).Inc()
}

func boolLabel(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
