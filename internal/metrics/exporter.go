package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/ensuro/eth-exporter/internal/model"
)

// BlockMetrics tracks the progress of the block pipeline. A nil
// *BlockMetrics records nothing.
type BlockMetrics struct {
	LastBlock          prometheus.Gauge
	LastBlockTimestamp prometheus.Gauge
	ProcessingDuration prometheus.Histogram
	QueueDepth         prometheus.Gauge
	ProcessingErrors   prometheus.Counter
}

func NewBlockMetrics(reg prometheus.Registerer) *BlockMetrics {
	factory := promauto.With(reg)
	return &BlockMetrics{
		LastBlock: factory.NewGauge(prometheus.GaugeOpts{
			Name: "last_block",
			Help: "Last block number",
		}),
		LastBlockTimestamp: factory.NewGauge(prometheus.GaugeOpts{
			Name: "last_block_timestamp_seconds",
			Help: "Last block timestamp",
		}),
		ProcessingDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name: "block_processing_duration_seconds",
			Help: "Duration of block processing",
		}),
		QueueDepth: factory.NewGauge(prometheus.GaugeOpts{
			Name: "block_queue_depth",
			Help: "Number of blocks waiting to be processed",
		}),
		ProcessingErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "block_processing_errors_total",
			Help: "Number of blocks whose processing failed",
		}),
	}
}

// Processed records a completed block.
func (m *BlockMetrics) Processed(block model.Block) {
	if m == nil {
		return
	}
	m.LastBlock.Set(float64(block.Number))
	m.LastBlockTimestamp.Set(float64(block.Timestamp))
}

func (m *BlockMetrics) ObserveDuration(d time.Duration) {
	if m == nil {
		return
	}
	m.ProcessingDuration.Observe(d.Seconds())
}

func (m *BlockMetrics) Failed() {
	if m == nil {
		return
	}
	m.ProcessingErrors.Inc()
}

func (m *BlockMetrics) SetQueueDepth(depth int) {
	if m == nil {
		return
	}
	m.QueueDepth.Set(float64(depth))
}

// RPCMetrics tracks node round trips per JSON-RPC method. A nil *RPCMetrics
// records nothing.
type RPCMetrics struct {
	duration *prometheus.HistogramVec
	inFlight *prometheus.GaugeVec
}

func NewRPCMetrics(reg prometheus.Registerer) *RPCMetrics {
	factory := promauto.With(reg)
	return &RPCMetrics{
		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name: "rpc_calls_duration_seconds",
			Help: "Duration of rpc calls",
		}, []string{"method"}),
		inFlight: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "rpc_calls_in_flight",
			Help: "Number of rpc calls in flight",
		}, []string{"method"}),
	}
}

// Track marks the start of an RPC call and returns the function that marks its end.
func (m *RPCMetrics) Track(method string) func() {
	if m == nil {
		return func() {}
	}
	inFlight := m.inFlight.WithLabelValues(method)
	inFlight.Inc()
	start := time.Now()
	return func() {
		inFlight.Dec()
		m.duration.WithLabelValues(method).Observe(time.Since(start).Seconds())
	}
}
