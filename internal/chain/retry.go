package chain

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"go.uber.org/zap"
)

func withRetry(ctx context.Context, maxRetries int, baseDelay time.Duration, fn func(context.Context) error) error {
	if maxRetries < 0 {
		maxRetries = 0
	}
	if baseDelay <= 0 {
		baseDelay = 100 * time.Millisecond
	}

	delay := baseDelay
	for attempt := 0; ; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if attempt >= maxRetries {
			return err
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		delay *= 2
	}
}

type chainIDReader interface {
	ChainID(ctx context.Context) (*big.Int, error)
}

// WaitReady probes the node for its chain id, retrying with exponential backoff.
func WaitReady(ctx context.Context, node chainIDReader, maxRetries int, backoff time.Duration, logger *zap.Logger) (*big.Int, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	var chainID *big.Int
	attempt := 0
	err := withRetry(ctx, maxRetries, backoff, func(ctx context.Context) error {
		attempt++
		id, err := node.ChainID(ctx)
		if err != nil {
			logger.Warn("node not ready", zap.Int("attempt", attempt), zap.Error(err))
			return err
		}
		chainID = id
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("get chain id: %w", err)
	}
	return chainID, nil
}
