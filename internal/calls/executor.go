package calls

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/ensuro/eth-exporter/internal/contracts"
	"github.com/ensuro/eth-exporter/internal/model"
)

// ExecutorOptions configures an Executor.
type ExecutorOptions struct {
	// MaxConcurrentCalls caps RPC calls in flight across a whole block. Values below 1 mean 1.
	MaxConcurrentCalls int
	// CallsPerSecond limits the RPC call rate. Zero disables the limit.
	CallsPerSecond float64
	// Aggregator batches every call of a block into one request when set.
	Aggregator *contracts.Aggregator
	Logger     *zap.Logger
}

// Executor runs the configured calls for a block and publishes their results.
type Executor struct {
	caller     contracts.Caller
	sem        *semaphore.Weighted
	limiter    *rate.Limiter
	aggregator *contracts.Aggregator
	logger     *zap.Logger
}

func NewExecutor(caller contracts.Caller, opts ExecutorOptions) *Executor {
	if opts.MaxConcurrentCalls < 1 {
		opts.MaxConcurrentCalls = 1
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	var limiter *rate.Limiter
	if opts.CallsPerSecond > 0 {
		burst := int(opts.CallsPerSecond)
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.CallsPerSecond), burst)
	}

	return &Executor{
		caller:     caller,
		sem:        semaphore.NewWeighted(int64(opts.MaxConcurrentCalls)),
		limiter:    limiter,
		aggregator: opts.Aggregator,
		logger:     opts.Logger,
	}
}

// Execute runs calls at block and updates their bindings.
func (e *Executor) Execute(ctx context.Context, block model.Block, calls []*ContractCall) error {
	if len(calls) == 0 {
		return nil
	}
	if e.aggregator != nil {
		return e.executeBatched(ctx, block, calls)
	}
	return e.executeDirect(ctx, block, calls)
}

// executeDirect issues one eth_call per (call, address). A ContractCall with
// any failing address publishes nothing; the others still complete.
func (e *Executor) executeDirect(ctx context.Context, block model.Block, calls []*ContractCall) error {
	errs := make([]error, len(calls))

	var wg sync.WaitGroup
	for i, call := range calls {
		wg.Add(1)
		go func(i int, call *ContractCall) {
			defer wg.Done()
			errs[i] = e.runCall(ctx, block, call)
		}(i, call)
	}
	wg.Wait()

	return errors.Join(errs...)
}

func (e *Executor) runCall(ctx context.Context, block model.Block, call *ContractCall) error {
	fns := call.Functions()
	values := make([]contracts.Value, len(fns))

	g, gctx := errgroup.WithContext(ctx)
	for i, fn := range fns {
		i, fn := i, fn
		g.Go(func() error {
			value, err := e.callOne(gctx, fn, block.Number)
			if err != nil {
				if gctx.Err() == nil || !errors.Is(err, context.Canceled) {
					e.logger.Error("contract call failed",
						zap.Uint64("block", block.Number),
						zap.String("contract_type", call.ContractType),
						zap.String("function", call.Method.Sig),
						zap.String("address", fn.Target.Hex()),
						zap.Error(err),
					)
				}
				return fmt.Errorf("%s at %s: %w", call, fn.Target.Hex(), err)
			}
			values[i] = value
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	if err := call.Publish(call.Results(values, nil)); err != nil {
		e.logger.Warn("publish failed", zap.String("call", call.String()), zap.Error(err))
	}
	return nil
}

func (e *Executor) callOne(ctx context.Context, fn contracts.BoundFunction, blockNumber uint64) (contracts.Value, error) {
	release, err := e.acquire(ctx)
	if err != nil {
		return contracts.Value{}, err
	}
	defer release()
	return contracts.Call(ctx, e.caller, fn, blockNumber)
}

// executeBatched sends every function of the block in one aggregate request.
// Failed or undecodable slots are skipped by the bindings.
func (e *Executor) executeBatched(ctx context.Context, block model.Block, calls []*ContractCall) error {
	var fns []contracts.BoundFunction
	offsets := make([]int, len(calls))
	for i, call := range calls {
		offsets[i] = len(fns)
		fns = append(fns, call.Functions()...)
	}

	release, err := e.acquire(ctx)
	if err != nil {
		return err
	}
	outcomes, err := e.aggregator.Aggregate(ctx, block.Number, fns)
	release()
	if err != nil {
		return fmt.Errorf("block %d: %w", block.Number, err)
	}

	for i, call := range calls {
		slots := outcomes[offsets[i] : offsets[i]+len(call.Addresses)]
		values := make([]contracts.Value, len(slots))
		slotErrs := make([]error, len(slots))
		for j, outcome := range slots {
			values[j] = outcome.Value
			slotErrs[j] = outcome.Err
			if outcome.Err != nil {
				e.logger.Warn("batched call failed",
					zap.Uint64("block", block.Number),
					zap.String("contract_type", call.ContractType),
					zap.String("function", call.Method.Sig),
					zap.String("address", call.Addresses[j].Address.Hex()),
					zap.Bool("success", outcome.Success),
					zap.String("return_data", hexutil.Encode(outcome.ReturnData)),
					zap.Error(outcome.Err),
				)
			}
		}
		if err := call.Publish(call.Results(values, slotErrs)); err != nil {
			e.logger.Warn("publish failed", zap.String("call", call.String()), zap.Error(err))
		}
	}
	return nil
}

// acquire waits for the rate limiter and a concurrency slot. The returned
// function releases the slot.
func (e *Executor) acquire(ctx context.Context) (func(), error) {
	if e.limiter != nil {
		if err := e.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}
	if err := e.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	return func() { e.sem.Release(1) }, nil
}
