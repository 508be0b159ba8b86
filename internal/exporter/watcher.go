package exporter

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ensuro/eth-exporter/internal/chain"
	"github.com/ensuro/eth-exporter/internal/model"
)

// BlockSource returns the current block at a commitment level.
type BlockSource interface {
	BlockAt(ctx context.Context, level chain.Commitment) (model.Block, error)
}

// WatcherConfig holds the polling settings.
type WatcherConfig struct {
	Commitment      chain.Commitment
	MaxBlockAge     time.Duration
	RefreshInterval time.Duration
}

// Watcher polls the node and enqueues every new block.
type Watcher struct {
	source BlockSource
	queue  *Queue
	cfg    WatcherConfig
	logger *zap.Logger
	now    func() time.Time

	last           *model.Block
	lastObservedAt time.Time
}

func NewWatcher(source BlockSource, queue *Queue, cfg WatcherConfig, logger *zap.Logger) *Watcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Commitment == "" {
		cfg.Commitment = chain.Finalized
	}
	return &Watcher{
		source: source,
		queue:  queue,
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
	}
}

// Poll runs one cycle. The node is only asked for a block once the last
// observed one is older than MaxBlockAge. A block with the same number as the
// last one is reported as stale and not enqueued; the age clock keeps running
// so the next cycle asks again.
func (w *Watcher) Poll(ctx context.Context) error {
	now := w.now()
	if w.last != nil && now.Sub(w.lastObservedAt) <= w.cfg.MaxBlockAge {
		return nil
	}

	block, err := w.source.BlockAt(ctx, w.cfg.Commitment)
	if err != nil {
		return fmt.Errorf("fetch %s block: %w", w.cfg.Commitment, err)
	}

	if w.last != nil && block.Number == w.last.Number {
		w.logger.Warn("no new block",
			zap.Uint64("block", block.Number),
			zap.Duration("age", now.Sub(w.lastObservedAt)),
			zap.String("commitment", string(w.cfg.Commitment)),
		)
		return nil
	}

	w.last = &block
	w.lastObservedAt = now
	w.queue.Push(block)
	w.logger.Debug("new block", zap.Uint64("block", block.Number), zap.Uint64("timestamp", block.Timestamp))
	return nil
}

// Run polls until ctx is cancelled or a fetch fails.
func (w *Watcher) Run(ctx context.Context) error {
	for {
		if err := w.Poll(ctx); err != nil {
			return err
		}

		timer := time.NewTimer(w.cfg.RefreshInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}
