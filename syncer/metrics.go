// Package syncer runs the block pipeline: head listener, per-transaction dispatch,
// snipe execution and its metrics.
package syncer

import (
	"context"
	"encoding/json"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/puzpuzpuz/xsync/v4"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const metricsKey = "friendrekt:metrics"

// Metrics holds the pipeline counters. Prometheus series are registered on a
// private registry; the xsync counters back the JSON stats snapshot.
type Metrics struct {
	registry *prometheus.Registry

	blocks       *xsync.Counter
	fetchFailed  *xsync.Counter
	txSeen       *xsync.Counter
	txDuplicate  *xsync.Counter
	txDropped    *xsync.Counter
	txRefused    *xsync.Counter
	buyActions   *xsync.Counter
	relays       *xsync.Counter
	transfers    *xsync.Counter
	enrichMisses *xsync.Counter
	decisions    *xsync.Counter
	submitted    *xsync.Counter
	submitFailed *xsync.Counter
	panics       *xsync.Counter

	BlocksTotal       prometheus.Counter
	BlockFetchErrors  prometheus.Counter
	TransactionsTotal *prometheus.CounterVec
	DroppedTotal      prometheus.Counter
	RejectedTotal     prometheus.Counter
	EnrichmentsTotal  *prometheus.CounterVec
	SubmissionsTotal  *prometheus.CounterVec
	SubmitLatency     prometheus.Histogram
	BlockHandleTime   prometheus.Histogram
	BatchCacheSize    prometheus.Histogram
}

// PipelineStats is a point-in-time copy of the pipeline counters.
type PipelineStats struct {
	Blocks           int64     `json:"blocks"`
	BlockFetchFailed int64     `json:"block_fetch_failed"`
	TxSeen           int64     `json:"tx_seen"`
	TxDuplicate      int64     `json:"tx_duplicate"`
	TxDropped        int64     `json:"tx_dropped"`
	TxRejected       int64     `json:"tx_rejected"`
	BuyActions       int64     `json:"buy_actions"`
	RelayMessages    int64     `json:"relay_messages"`
	Transfers        int64     `json:"transfers"`
	EnrichMisses     int64     `json:"enrich_misses"`
	Decisions        int64     `json:"decisions"`
	Submitted        int64     `json:"submitted"`
	SubmitFailed     int64     `json:"submit_failed"`
	HandlerPanics    int64     `json:"handler_panics"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// NewMetrics creates a Metrics instance with its own Prometheus registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	const ns = "friendrekt"

	return &Metrics{
		registry: reg,

		blocks:       xsync.NewCounter(),
		fetchFailed:  xsync.NewCounter(),
		txSeen:       xsync.NewCounter(),
		txDuplicate:  xsync.NewCounter(),
		txDropped:    xsync.NewCounter(),
		txRefused:    xsync.NewCounter(),
		buyActions:   xsync.NewCounter(),
		relays:       xsync.NewCounter(),
		transfers:    xsync.NewCounter(),
		enrichMisses: xsync.NewCounter(),
		decisions:    xsync.NewCounter(),
		submitted:    xsync.NewCounter(),
		submitFailed: xsync.NewCounter(),
		panics:       xsync.NewCounter(),

		BlocksTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: ns,
			Subsystem: "listener",
			Name:      "blocks_total",
			Help:      "Blocks fetched and dispatched",
		}),
		BlockFetchErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: ns,
			Subsystem: "listener",
			Name:      "block_fetch_errors_total",
			Help:      "Blocks skipped because the fetch failed",
		}),
		TransactionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Subsystem: "dispatcher",
			Name:      "transactions_total",
			Help:      "Transactions handled by classification",
		}, []string{"kind"}),
		DroppedTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: ns,
			Subsystem: "dispatcher",
			Name:      "dropped_total",
			Help:      "Transactions dropped because the worker queue was full",
		}),
		RejectedTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: ns,
			Subsystem: "dispatcher",
			Name:      "rejected_total",
			Help:      "Transactions the worker pool refused for any other reason",
		}),
		EnrichmentsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Subsystem: "enricher",
			Name:      "resolutions_total",
			Help:      "Reputation resolutions by result",
		}, []string{"result"}),
		SubmissionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Subsystem: "executor",
			Name:      "submissions_total",
			Help:      "Snipe submissions by result",
		}, []string{"result"}),
		SubmitLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: ns,
			Subsystem: "executor",
			Name:      "submit_latency_seconds",
			Help:      "Time from nonce reservation to sequencer response",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		}),
		BlockHandleTime: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: ns,
			Subsystem: "dispatcher",
			Name:      "block_handle_seconds",
			Help:      "Time until every handler of a block finished",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
		}),
		BatchCacheSize: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: ns,
			Subsystem: "enricher",
			Name:      "batch_cache_entries",
			Help:      "Reputation records cached per block",
			Buckets:   []float64{0, 1, 2, 5, 10, 25, 50, 100},
		}),
	}
}

// Registry returns the registry to expose at /metrics.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) blockDispatched() {
	m.blocks.Inc()
	m.BlocksTotal.Inc()
}

func (m *Metrics) blockFetchFailed() {
	m.fetchFailed.Inc()
	m.BlockFetchErrors.Inc()
}

func (m *Metrics) txObserved(kind string) {
	m.txSeen.Inc()
	m.TransactionsTotal.WithLabelValues(kind).Inc()
	switch kind {
	case "buy_action":
		m.buyActions.Inc()
	case "relay_message":
		m.relays.Inc()
	case "plain_transfer":
		m.transfers.Inc()
	}
}

func (m *Metrics) txDuplicated() {
	m.txDuplicate.Inc()
	m.TransactionsTotal.WithLabelValues("duplicate").Inc()
}

func (m *Metrics) txDroppedFull() {
	m.txDropped.Inc()
	m.DroppedTotal.Inc()
}

func (m *Metrics) txRejected() {
	m.txRefused.Inc()
	m.RejectedTotal.Inc()
}

func (m *Metrics) enrichment(ok bool) {
	if ok {
		m.EnrichmentsTotal.WithLabelValues("resolved").Inc()
		return
	}
	m.enrichMisses.Inc()
	m.EnrichmentsTotal.WithLabelValues("no_identity").Inc()
}

func (m *Metrics) decided() {
	m.decisions.Inc()
}

func (m *Metrics) submission(ok bool, latency time.Duration) {
	m.SubmitLatency.Observe(latency.Seconds())
	if ok {
		m.submitted.Inc()
		m.SubmissionsTotal.WithLabelValues("sent").Inc()
		return
	}
	m.submitFailed.Inc()
	m.SubmissionsTotal.WithLabelValues("failed").Inc()
}

func (m *Metrics) handlerPanicked() {
	m.panics.Inc()
}

// Snapshot returns the current counter values.
func (m *Metrics) Snapshot() PipelineStats {
	return PipelineStats{
		Blocks:           m.blocks.Value(),
		BlockFetchFailed: m.fetchFailed.Value(),
		TxSeen:           m.txSeen.Value(),
		TxDuplicate:      m.txDuplicate.Value(),
		TxDropped:        m.txDropped.Value(),
		TxRejected:       m.txRefused.Value(),
		BuyActions:       m.buyActions.Value(),
		RelayMessages:    m.relays.Value(),
		Transfers:        m.transfers.Value(),
		EnrichMisses:     m.enrichMisses.Value(),
		Decisions:        m.decisions.Value(),
		Submitted:        m.submitted.Value(),
		SubmitFailed:     m.submitFailed.Value(),
		HandlerPanics:    m.panics.Value(),
		UpdatedAt:        time.Now(),
	}
}

// MetricsStore persists stats snapshots in Redis so they survive restarts and can be
// read by other processes.
type MetricsStore struct {
	redis *redis.Client
	ttl   time.Duration
}

// NewMetricsStore creates a new metrics store
func NewMetricsStore(redisClient *redis.Client) *MetricsStore {
	return &MetricsStore{redis: redisClient, ttl: 24 * time.Hour}
}

// SaveStats stores a snapshot.
func (s *MetricsStore) SaveStats(ctx context.Context, stats PipelineStats) error {
	data, err := json.Marshal(stats)
	if err != nil {
		return err
	}
	return s.redis.Set(ctx, metricsKey, data, s.ttl).Err()
}

// GetStats retrieves the last snapshot. A missing key yields zero stats.
func (s *MetricsStore) GetStats(ctx context.Context) (*PipelineStats, error) {
	data, err := s.redis.Get(ctx, metricsKey).Result()
	if err != nil {
		if err == redis.Nil {
			return &PipelineStats{}, nil
		}
		return nil, err
	}

	var stats PipelineStats
	if err := json.Unmarshal([]byte(data), &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

// StatsSink receives periodic snapshots.
type StatsSink interface {
	SaveStats(ctx context.Context, stats PipelineStats) error
}

// Reporter periodically writes metrics snapshots to a sink.
type Reporter struct {
	metrics  *Metrics
	sink     StatsSink
	interval time.Duration
	logger   *zap.Logger
}

// NewReporter creates a reporter writing every interval.
func NewReporter(metrics *Metrics, sink StatsSink, interval time.Duration, logger *zap.Logger) *Reporter {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reporter{metrics: metrics, sink: sink, interval: interval, logger: logger.Named("reporter")}
}

// Run writes a snapshot on every tick and once more when ctx ends.
func (r *Reporter) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			flushCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			r.flush(flushCtx)
			cancel()
			return
		case <-ticker.C:
			r.flush(ctx)
		}
	}
}

func (r *Reporter) flush(ctx context.Context) {
	if err := r.sink.SaveStats(ctx, r.metrics.Snapshot()); err != nil {
		r.logger.Warn("stats snapshot failed", zap.Error(err))
	}
}
