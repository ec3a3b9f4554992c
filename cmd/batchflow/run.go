package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"

	"github.com/BaSui01/batchflow/config"
	"github.com/BaSui01/batchflow/llm/batch"
)

// =============================================================================
// 📥 输入参数
// =============================================================================

// inputFlags run 与 cache invalidate 共用的输入参数
type inputFlags struct {
	configPath        string
	model             string
	promptsFile       string
	conversationsFile string
	inputDir          string
}

func (f *inputFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&f.configPath, "config", "", "Path to config file")
	fs.StringVar(&f.model, "model", "", "Override batch.model")
	fs.StringVar(&f.promptsFile, "prompts-file", "", "JSON file with flat prompts")
	fs.StringVar(&f.conversationsFile, "conversations-file", "", "JSON file with conversations")
	fs.StringVar(&f.inputDir, "input-dir", "", "Directory of *.txt prompt files")
}

// request 把输入参数读成 batch.Request；三种来源互斥的检查交给 batch.Normalize
func (f *inputFlags) request() (batch.Request, error) {
	var req batch.Request
	if f.promptsFile == "" && f.conversationsFile == "" && f.inputDir == "" {
		return req, errors.New("one of --prompts-file, --conversations-file or --input-dir is required")
	}
	if f.promptsFile != "" {
		if err := readJSONFile(f.promptsFile, &req.Prompts); err != nil {
			return req, err
		}
		if req.Prompts == nil {
			req.Prompts = []batch.PromptInput{}
		}
	}
	if f.conversationsFile != "" {
		if err := readJSONFile(f.conversationsFile, &req.Conversations); err != nil {
			return req, err
		}
		if req.Conversations == nil {
			req.Conversations = []batch.ConversationInput{}
		}
	}
	req.InputDir = f.inputDir
	return req, nil
}

// setup 加载配置并构建日志与模型配置
func (f *inputFlags) setup() (*config.Config, *zap.Logger, batch.ModelConfig, error) {
	cfg, err := loadConfig(f.configPath)
	if err != nil {
		return nil, nil, batch.ModelConfig{}, fmt.Errorf("failed to load config: %w", err)
	}
	if f.model != "" {
		cfg.Batch.Model = f.model
	}
	mc, err := cfg.Batch.ResolveModelConfig()
	if err != nil {
		return nil, nil, batch.ModelConfig{}, fmt.Errorf("invalid batch config: %w", err)
	}
	return cfg, initLogger(cfg.Log), mc, nil
}

func readJSONFile(path string, dest any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

// =============================================================================
// ▶️ run 命令
// =============================================================================

func runBatch(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var in inputFlags
	in.register(fs)
	output := fs.String("output", "", "Write result JSON to this file (default stdout)")
	force := fs.Bool("force", false, "Ignore cached responses")
	quiet := fs.Bool("quiet", false, "Disable the progress line")
	desc := fs.String("desc", "batch", "Progress description")
	if err := fs.Parse(args); err != nil {
		return exitFailure
	}

	req, err := in.request()
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitFailure
	}
	req.Force = *force
	req.Desc = *desc

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
	defer func() {
		if err := d.Close(); err != nil {
			logger.Warn("shutdown errors", zap.Error(err))
		}
	}()

	var progress batch.Progress = batch.NewWriterProgress(stderr)
	if *quiet {
		progress = batch.NopProgress{}
	}
	proc, err := d.processor(progress)
	if err != nil {
		logger.Error("failed to create processor", zap.Error(err))
		return exitFailure
	}

	logger.Info("starting batch",
		zap.String("version", Version),
		zap.String("provider", d.provider.Name()),
		zap.String("model", mc.Model),
		zap.String("cache", cfg.Cache.Backend),
		zap.Bool("force", req.Force),
	)

	results, err := proc.Run(ctx, mc, req)
	if err != nil {
		if batch.IsValidationError(err) {
			fmt.Fprintf(stderr, "Invalid input: %v\n", err)
		} else {
			logger.Error("batch aborted", zap.Error(err))
		}
		return exitFailure
	}

	if err := writeResults(results, *output, stdout); err != nil {
		logger.Error("failed to write results", zap.Error(err))
		return exitFailure
	}

	summary := results.Summary()
	logger.Info("batch finished",
		zap.Int("succeeded", summary.Succeeded),
		zap.Int("cached", summary.Cached),
		zap.Int("failed", summary.Failed),
		zap.Float64("cache_hit_rate", proc.Stats().CacheHitRate()),
		zap.Int("total_tokens", results.Usage().TotalTokens),
	)
	return exitCode(summary)
}

// exitCode 全部成功为 0，全部失败为 1，部分失败为 2
func exitCode(s batch.Summary) int {
	switch {
	case s.Failed == 0:
		return exitOK
	case s.Succeeded == 0:
		return exitFailure
	default:
		return exitPartial
	}
}

// writeResults 以 {item_id: result} 的有序 JSON 输出结果
func writeResults(results *batch.Results, path string, stdout io.Writer) error {
	data, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	if path == "" {
		_, err = stdout.Write(data)
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
