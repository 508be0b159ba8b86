package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/ensuro/eth-exporter/internal/addrbook"
	"github.com/ensuro/eth-exporter/internal/calls"
	"github.com/ensuro/eth-exporter/internal/chain"
	"github.com/ensuro/eth-exporter/internal/config"
	"github.com/ensuro/eth-exporter/internal/contracts"
	"github.com/ensuro/eth-exporter/internal/exporter"
	"github.com/ensuro/eth-exporter/internal/metrics"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          "eth-exporter",
		Short:        "Prometheus exporter for EVM contract state",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Poll blocks and serve metrics",
		RunE:  runExporter,
	}

	addDocumentFlags(runCmd.Flags())
	runCmd.Flags().String("node-https-url", "", "node JSON-RPC URL")
	runCmd.Flags().String("max-block-age", "60s", "fetch a new block once the last one is older than this")
	runCmd.Flags().String("block-refresh-interval", "30s", "pause between polling cycles")
	runCmd.Flags().String("block-commitment-level", "finalized", "block tag to poll (finalized, safe, latest)")
	runCmd.Flags().Bool("poa-headers", false, "read only number and timestamp from block headers")
	runCmd.Flags().String("metrics-host", "", "metrics server listen host")
	runCmd.Flags().Int("metrics-port", 8000, "metrics server port")
	runCmd.Flags().Bool("use-multicall3", false, "batch every call of a block through Multicall3")
	runCmd.Flags().String("multicall3-address", contracts.DefaultMulticall3Address, "Multicall3 contract address")
	runCmd.Flags().Int("max-concurrent-calls", 4, "maximum RPC calls in flight")
	runCmd.Flags().Float64("max-calls-per-second", 0, "RPC call rate limit, 0 disables it")
	runCmd.Flags().Bool("exit-on-block-error", true, "stop when a block fails instead of skipping it")
	runCmd.Flags().Int("max-retries", 5, "maximum attempts of the startup node probe")
	runCmd.Flags().Duration("retry-backoff", 500*time.Millisecond, "initial retry backoff")

	root.AddCommand(runCmd)

	checkCmd := &cobra.Command{
		Use:   "check",
		Short: "Validate the metrics config and print the metrics it defines",
		RunE:  runCheck,
	}

	addDocumentFlags(checkCmd.Flags())

	root.AddCommand(checkCmd)

	return root
}

func addDocumentFlags(flags *pflag.FlagSet) {
	flags.String("abis-path", "./abis", "directory with contract ABIs or build artifacts")
	flags.String("metrics-config-path", "./metrics.yaml", "metrics config YAML")
	flags.String("address-book-path", "", "JSON or YAML address book")
	flags.String("env-file", "", "dotenv file loaded before reading the environment")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")
}

func runExporter(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	commitment, err := chain.ParseCommitment(cfg.CommitmentLevel)
	if err != nil {
		return err
	}

	registry := metrics.NewRegistry(logger)
	blockMetrics := metrics.NewBlockMetrics(registry.Registerer())
	rpcMetrics := metrics.NewRPCMetrics(registry.Registerer())

	metricsCfg, err := loadMetricsConfig(cfg, registry)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	chainClient, err := chain.NewClient(ctx, cfg.NodeURL, chain.Options{
		LenientHeaders: cfg.PoAHeaders,
		Metrics:        rpcMetrics,
	})
	if err != nil {
		return fmt.Errorf("connect rpc: %w", err)
	}
	defer chainClient.Close()

	chainID, err := chain.WaitReady(ctx, chainClient, cfg.MaxRetries, cfg.RetryBackoff, logger)
	if err != nil {
		return err
	}

	opts := calls.ExecutorOptions{
		MaxConcurrentCalls: cfg.MaxConcurrentCalls,
		CallsPerSecond:     cfg.MaxCallsPerSecond,
		Logger:             logger,
	}
	if cfg.UseMulticall3 {
		address, err := addrbook.ParseAddress(cfg.Multicall3Address)
		if err != nil {
			return fmt.Errorf("multicall3-address: %w", err)
		}
		opts.Aggregator, err = contracts.NewAggregator(chainClient, address)
		if err != nil {
			return err
		}
	}

	server, err := metrics.StartServer(logger, cfg.MetricsHost, cfg.MetricsPort, registry.Gatherer())
	if err != nil {
		return fmt.Errorf("start metrics server: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	queue := exporter.NewQueue(blockMetrics)
	watcher := exporter.NewWatcher(chainClient, queue, exporter.WatcherConfig{
		Commitment:      commitment,
		MaxBlockAge:     cfg.MaxBlockAge,
		RefreshInterval: cfg.BlockRefreshInterval,
	}, logger)
	worker := exporter.NewWorker(queue, calls.NewExecutor(chainClient, opts), metricsCfg, blockMetrics, cfg.ExitOnBlockError, logger)

	logger.Info("exporter start",
		zap.String("node", cfg.NodeURL),
		zap.String("chain_id", chainID.String()),
		zap.String("commitment", string(commitment)),
		zap.Int("calls", len(metricsCfg.Calls)),
		zap.Int("metrics", len(registry.Names())),
		zap.Bool("multicall3", cfg.UseMulticall3),
		zap.Int("max_concurrent_calls", cfg.MaxConcurrentCalls),
		zap.String("metrics_addr", server.Addr()),
	)

	return exporter.Run(ctx, watcher, worker)
}

// loadMetricsConfig loads the ABIs, the address book and the metrics document
// and registers every configured metric in registry.
func loadMetricsConfig(cfg config.Config, registry *metrics.Registry) (*calls.MetricsConfig, error) {
	lib, err := contracts.LoadLibrary(cfg.ABIsPath)
	if err != nil {
		return nil, err
	}

	var book addrbook.AddressBook = addrbook.Nop{}
	if cfg.AddressBookPath != "" {
		loaded, err := addrbook.LoadFile(cfg.AddressBookPath)
		if err != nil {
			return nil, err
		}
		book = loaded
	}

	doc, err := config.LoadMetricsDocument(cfg.MetricsConfigPath)
	if err != nil {
		return nil, err
	}

	return calls.Load(doc, lib, addrbook.NewResolver(book), registry)
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}
