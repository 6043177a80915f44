package statesync

import (
	"github.com/go-kit/kit/metrics"
	"github.com/go-kit/kit/metrics/discard"
	"github.com/go-kit/kit/metrics/prometheus"
	stdprometheus "github.com/prometheus/client_golang/prometheus"
)

const (
	// MetricsSubsystem is a subsystem shared by all metrics exposed by this package.
	MetricsSubsystem = "statesync"
)

// Metrics contains metrics exposed by this package.
type Metrics struct {
	// Version of the last persisted transaction.
	SyncedVersion metrics.Gauge
	// Epoch whose validator set is trusted.
	SyncedEpoch metrics.Gauge
	// Version of the highest known target.
	TargetVersion metrics.Gauge
	// Number of chunks persisted.
	ChunksApplied metrics.Counter
	// Number of chunk requests by result.
	ChunkRequests metrics.Counter `metrics_labels:"result"`
	// Number of responses that failed verification.
	VerificationFailures metrics.Counter
	// Number of times a peer was put in cool-down.
	PeerCooldowns metrics.Counter
	// Coordinator state: 0 idle, 1 syncing, 2 halted.
	State metrics.Gauge
	// Time spent persisting a chunk, including retries.
	ChunkApplySeconds metrics.Histogram
}

// PrometheusMetrics returns Metrics build using Prometheus client library.
// Optionally, labels can be provided along with their values ("foo",
// "fooValue").
func PrometheusMetrics(namespace string, labelsAndValues ...string) *Metrics {
	labels := []string{}
	for i := 0; i < len(labelsAndValues); i += 2 {
		labels = append(labels, labelsAndValues[i])
	}
	return &Metrics{
		SyncedVersion: prometheus.NewGaugeFrom(stdprometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      "synced_version",
			Help:      "Version of the last persisted transaction.",
		}, labels).With(labelsAndValues...),
		SyncedEpoch: prometheus.NewGaugeFrom(stdprometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      "synced_epoch",
			Help:      "Epoch whose validator set is trusted.",
		}, labels).With(labelsAndValues...),
		TargetVersion: prometheus.NewGaugeFrom(stdprometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      "target_version",
			Help:      "Version of the highest known target ledger info.",
		}, labels).With(labelsAndValues...),
		ChunksApplied: prometheus.NewCounterFrom(stdprometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      "chunks_applied",
			Help:      "Number of chunks persisted.",
		}, labels).With(labelsAndValues...),
		ChunkRequests: prometheus.NewCounterFrom(stdprometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      "chunk_requests",
			Help:      "Number of chunk requests by result.",
		}, append(labels, "result")).With(labelsAndValues...),
		VerificationFailures: prometheus.NewCounterFrom(stdprometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      "verification_failures",
			Help:      "Number of chunk responses that failed verification.",
		}, labels).With(labelsAndValues...),
		PeerCooldowns: prometheus.NewCounterFrom(stdprometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      "peer_cooldowns",
			Help:      "Number of times a peer was put in cool-down.",
		}, labels).With(labelsAndValues...),
		State: prometheus.NewGaugeFrom(stdprometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      "state",
			Help:      "Coordinator state: 0 idle, 1 syncing, 2 halted.",
		}, labels).With(labelsAndValues...),
		ChunkApplySeconds: prometheus.NewHistogramFrom(stdprometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      "chunk_apply_seconds",
			Help:      "Time spent persisting a chunk, including retries.",
			Buckets:   stdprometheus.ExponentialBuckets(0.001, 4, 8),
		}, labels).With(labelsAndValues...),
	}
}

// NopMetrics returns no-op Metrics.
func NopMetrics() *Metrics {
	return &Metrics{
		SyncedVersion:        discard.NewGauge(),
		SyncedEpoch:          discard.NewGauge(),
		TargetVersion:        discard.NewGauge(),
		ChunksApplied:        discard.NewCounter(),
		ChunkRequests:        discard.NewCounter(),
		VerificationFailures: discard.NewCounter(),
		PeerCooldowns:        discard.NewCounter(),
		State:                discard.NewGauge(),
		ChunkApplySeconds:    discard.NewHistogram(),
	}
}
