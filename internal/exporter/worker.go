package exporter

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ensuro/eth-exporter/internal/calls"
	"github.com/ensuro/eth-exporter/internal/metrics"
	"github.com/ensuro/eth-exporter/internal/model"
)

// BlockExecutor runs the configured calls at a block.
type BlockExecutor interface {
	Execute(ctx context.Context, block model.Block, contractCalls []*calls.ContractCall) error
}

// Worker processes queued blocks one at a time, in order.
type Worker struct {
	queue       *Queue
	executor    BlockExecutor
	calls       []*calls.ContractCall
	metrics     *metrics.BlockMetrics
	exitOnError bool
	logger      *zap.Logger
}

func NewWorker(queue *Queue, executor BlockExecutor, cfg *calls.MetricsConfig, m *metrics.BlockMetrics, exitOnError bool, logger *zap.Logger) *Worker {
	if logger == nil {
		logger = zap.NewNop()
	}
	w := &Worker{
		queue:       queue,
		executor:    executor,
		metrics:     m,
		exitOnError: exitOnError,
		logger:      logger,
	}
	if cfg != nil {
		w.calls = cfg.Calls
	}
	return w
}

// Process runs every call at block and records the block metrics.
func (w *Worker) Process(ctx context.Context, block model.Block) error {
	start := time.Now()
	err := w.executor.Execute(ctx, block, w.calls)
	w.metrics.ObserveDuration(time.Since(start))
	if err != nil {
		return fmt.Errorf("process block %d: %w", block.Number, err)
	}

	w.metrics.Processed(block)
	w.logger.Info("block processed",
		zap.Uint64("block", block.Number),
		zap.Time("block_time", block.Time()),
		zap.Duration("duration", time.Since(start)),
	)
	return nil
}

// Run consumes the queue until ctx is cancelled. A failed block ends the run
// when exitOnError is set; otherwise it is counted and skipped.
func (w *Worker) Run(ctx context.Context) error {
	for {
		block, err := w.queue.Pop(ctx)
		if err != nil {
			return err
		}

		if err := w.Process(ctx, block); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			w.metrics.Failed()
			if w.exitOnError {
				return err
			}
			w.logger.Error("block failed", zap.Uint64("block", block.Number), zap.Error(err))
		}
	}
}
