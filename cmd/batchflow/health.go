package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/batchflow/llm/factory"
)

// =============================================================================
// 🏥 健康检查命令
// =============================================================================

func runHealthCheck(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("health", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "Path to config file")
	timeout := fs.Duration("timeout", 10*time.Second, "Health check timeout")
	if err := fs.Parse(args); err != nil {
		return exitFailure
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(stderr, "Failed to load config: %v\n", err)
		return exitFailure
	}
	logger := initLogger(cfg.Log)
	defer logger.Sync()

	provider, err := factory.NewProviderFromConfig(cfg.Provider.Name, cfg.Provider.FactoryConfig(cfg.Batch.Model), logger)
	if err != nil {
		fmt.Fprintf(stderr, "Health check failed: %v\n", err)
		return exitFailure
	}

	ctx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()

	status, err := provider.HealthCheck(ctx)
	if err != nil || status == nil || !status.Healthy {
		logger.Debug("health check failed", zap.String("provider", provider.Name()), zap.Error(err))
		fmt.Fprintf(stderr, "Health check failed: provider=%s err=%v\n", provider.Name(), err)
		return exitFailure
	}

	fmt.Fprintf(stdout, "OK provider=%s latency=%s\n", provider.Name(), status.Latency.Round(time.Millisecond))
	return exitOK
}
