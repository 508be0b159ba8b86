package exporter

import (
	"context"
	"errors"

	"golang.org/x/sync/errgroup"
)

// Run drives the watcher and the worker until ctx is cancelled or either of
// them fails. Cancellation of ctx is a clean stop.
func Run(ctx context.Context, watcher *Watcher, worker *Worker) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return watcher.Run(gctx) })
	g.Go(func() error { return worker.Run(gctx) })

	err := g.Wait()
	if ctx.Err() != nil && errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
