package exporter

import (
	"context"
	"sync"

	"github.com/ensuro/eth-exporter/internal/metrics"
	"github.com/ensuro/eth-exporter/internal/model"
)

// Queue is an unbounded FIFO of observed blocks with a single consumer.
type Queue struct {
	mu      sync.Mutex
	items   []model.Block
	ready   chan struct{}
	metrics *metrics.BlockMetrics
}

func NewQueue(m *metrics.BlockMetrics) *Queue {
	return &Queue{ready: make(chan struct{}, 1), metrics: m}
}

// Push appends a block. It never blocks.
func (q *Queue) Push(block model.Block) {
	q.mu.Lock()
	q.items = append(q.items, block)
	q.metrics.SetQueueDepth(len(q.items))
	q.mu.Unlock()

	select {
	case q.ready <- struct{}{}:
	default:
	}
}

// Pop waits for the oldest block.
func (q *Queue) Pop(ctx context.Context) (model.Block, error) {
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			block := q.items[0]
			q.items = q.items[1:]
			q.metrics.SetQueueDepth(len(q.items))
			q.mu.Unlock()
			return block, nil
		}
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			return model.Block{}, ctx.Err()
		case <-q.ready:
		}
	}
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
