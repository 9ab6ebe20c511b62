package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	namespace = "pumpfun"
	subsystem = "indexer"
)

// Metrics 索引器运行指标
type Metrics struct {
	Gatherer prometheus.Gatherer

	blocks        prometheus.Counter
	txs           *prometheus.CounterVec
	events        *prometheus.CounterVec
	skips         *prometheus.CounterVec
	kafkaFailures prometheus.Counter
	missingSlots  prometheus.Counter
	latestSlot    prometheus.Gauge
	blockSeconds  prometheus.Histogram
}

// New 在 reg 上注册全部指标；reg 为 nil 时使用独立 registry
func New(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	f := promauto.With(reg)
	return &Metrics{
		Gatherer: reg,
		blocks: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "blocks_total",
			Help:      "Blocks processed from the gRPC stream.",
		}),
		txs: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "transactions_total",
			Help:      "Transactions seen, by outcome (parsed, failed, adapt_error).",
		}, []string{"outcome"}),
		events: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "events_total",
			Help:      "Decoded Pump.fun events by type.",
		}, []string{"type"}),
		skips: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "skipped_total",
			Help:      "Instructions or log entries skipped during decoding, by reason.",
		}, []string{"reason"}),
		kafkaFailures: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "kafka_failures_total",
			Help:      "Events that failed Kafka delivery.",
		}),
		missingSlots: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "missing_slots_total",
			Help:      "Slots confirmed by RPC to have a block that never arrived on the stream.",
		}),
		latestSlot: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "latest_slot",
			Help:      "Most recent slot processed.",
		}),
		blockSeconds: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "block_process_seconds",
			Help:      "Wall time spent decoding and dispatching a block.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12),
		}),
	}
}

const (
	TxParsed     = "parsed"
	TxFailed     = "failed"
	TxAdaptError = "adapt_error"
)

// 以下方法均允许 nil 接收者，便于在测试与一次性工具中省略指标

func (m *Metrics) ObserveBlock(slot uint64, seconds float64) {
	if m == nil {
		return
	}
	m.blocks.Inc()
	m.latestSlot.Set(float64(slot))
	m.blockSeconds.Observe(seconds)
}

func (m *Metrics) AddTx(outcome string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.txs.WithLabelValues(outcome).Add(float64(n))
}

// AddEvents 按类型累计事件数
func (m *Metrics) AddEvents(counts map[string]int) {
	if m == nil {
		return
	}
	for typ, n := range counts {
		m.events.WithLabelValues(typ).Add(float64(n))
	}
}

// AddSkips 累计跳过原因，counts 为 SkipStats.Snapshot 的结果
func (m *Metrics) AddSkips(counts map[string]int) {
	if m == nil {
		return
	}
	for reason, n := range counts {
		m.skips.WithLabelValues(reason).Add(float64(n))
	}
}

func (m *Metrics) AddKafkaFailures(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.kafkaFailures.Add(float64(n))
}

func (m *Metrics) IncMissingSlot() {
	if m == nil {
		return
	}
	m.missingSlots.Inc()
}
