package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ensuro/eth-exporter/internal/config"
	"github.com/ensuro/eth-exporter/internal/metrics"
)

func runCheck(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	registry := metrics.NewRegistry(logger)
	metricsCfg, err := loadMetricsConfig(cfg, registry)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for _, call := range metricsCfg.Calls {
		names := make([]string, len(call.Addresses))
		for i, addr := range call.Addresses {
			names[i] = addr.Name
		}
		fmt.Fprintf(out, "%s on %s\n", call, strings.Join(names, ", "))
		for _, binding := range call.Bindings {
			source := binding.Source
			if source == "" {
				source = "-"
			}
			fmt.Fprintf(out, "  %s %s source=%s labels=%s\n", binding.Kind, binding.Name, source, strings.Join(binding.Labels(), ","))
		}
	}

	logger.Info("metrics config valid",
		zap.String("path", cfg.MetricsConfigPath),
		zap.Int("calls", len(metricsCfg.Calls)),
		zap.Int("metrics", len(registry.Names())),
	)
	return nil
}
