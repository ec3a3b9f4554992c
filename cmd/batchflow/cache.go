package main

import (
	"context"
	"flag"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/BaSui01/batchflow/llm/batch"
)

// =============================================================================
// 🗑️ cache 命令
// =============================================================================

func runCache(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if len(args) < 1 || args[0] != "invalidate" {
		fmt.Fprintln(stderr, "Usage: batchflow cache invalidate [--config path] (--prompts-file|--conversations-file|--input-dir) ...")
		return exitFailure
	}

	fs := flag.NewFlagSet("cache invalidate", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var in inputFlags
	in.register(fs)
	dryRun := fs.Bool("dry-run", false, "Print the cache keys without removing them")
	if err := fs.Parse(args[1:]); err != nil {
		return exitFailure
	}

	req, err := in.request()
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitFailure
	}
	cfg, logger, mc, err := in.setup()
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitFailure
	}
	defer logger.Sync()

	d, err := wire(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to wire dependencies", zap.Error(err))
		return exitFailure
	}
	defer d.Close()

	proc, err := d.processor(batch.NopProgress{})
	if err != nil {
		logger.Error("failed to create processor", zap.Error(err))
		return exitFailure
	}

	var keys []string
	if *dryRun {
		_, keys, err = proc.Keys(mc, req)
	} else {
		keys, err = proc.Invalidate(ctx, mc, req)
	}
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitFailure
	}

	for _, k := range keys {
		fmt.Fprintln(stdout, k)
	}
	if !*dryRun {
		logger.Info("cache entries invalidated", zap.Int("count", len(keys)))
	}
	return exitOK
}
