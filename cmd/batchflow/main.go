// =============================================================================
// BatchFlow 主入口
// =============================================================================
// 批量 LLM 调用命令行：缓存、重试、校验、并发控制
//
// 使用方法:
//
//	batchflow run --prompts-file prompts.json            # 运行一个批次
//	batchflow run --input-dir ./prompts --force           # 目录模式，忽略缓存
//	batchflow cache invalidate --prompts-file prompts.json # 删除这些输入的缓存
//	batchflow health                                      # Provider 健康检查
//	batchflow version                                     # 显示版本信息
// =============================================================================

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/BaSui01/batchflow/config"
)

// =============================================================================
// 📦 版本信息（构建时注入）
// =============================================================================

var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// 退出码
const (
	exitOK      = 0
	exitFailure = 1
	// 批次完成但存在失败条目
	exitPartial = 2
)

// =============================================================================
// 🎯 主函数
// =============================================================================

func main() {
	os.Exit(dispatch(os.Args[1:], os.Stdout, os.Stderr))
}

func dispatch(args []string, stdout, stderr io.Writer) int {
	if len(args) < 1 {
		printUsage(stderr)
		return exitFailure
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch args[0] {
	case "run":
		return runBatch(ctx, args[1:], stdout, stderr)
	case "cache":
		return runCache(ctx, args[1:], stdout, stderr)
	case "health":
		return runHealthCheck(ctx, args[1:], stdout, stderr)
	case "version":
		printVersion(stdout)
		return exitOK
	case "help", "-h", "--help":
		printUsage(stdout)
		return exitOK
	default:
		fmt.Fprintf(stderr, "Unknown command: %s\n", args[0])
		printUsage(stderr)
		return exitFailure
	}
}

// =============================================================================
// 🔧 配置与日志
// =============================================================================

// loadConfig 读取 .env（可选）、YAML 与 BATCHFLOW_* 环境变量，并校验
func loadConfig(path string) (*config.Config, error) {
	// .env 不存在是正常情况
	_ = godotenv.Load()

	cfg, err := config.NewLoader().
		WithConfigPath(path).
		WithValidator(func(c *config.Config) error { return c.Validate() }).
		Load()
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

func initLogger(cfg config.LogConfig) *zap.Logger {
	// 解析日志级别
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}

	// 配置编码器
	var encoderConfig zapcore.EncoderConfig
	encoding := "json"
	if cfg.Format == "console" {
		encoding = "console"
		encoderConfig = zap.NewDevelopmentEncoderConfig()
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		encoderConfig = zap.NewProductionEncoderConfig()
		encoderConfig.TimeKey = "timestamp"
		encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}

	outputs := cfg.OutputPaths
	if len(outputs) == 0 {
		outputs = []string{"stderr"}
	}

	zapConfig := zap.Config{
		Level:             zap.NewAtomicLevelAt(level),
		Development:       encoding == "console",
		Encoding:          encoding,
		EncoderConfig:     encoderConfig,
		OutputPaths:       outputs,
		ErrorOutputPaths:  []string{"stderr"},
		DisableCaller:     !cfg.EnableCaller,
		DisableStacktrace: !cfg.EnableStacktrace,
	}

	logger, err := zapConfig.Build()
	if err != nil {
		// 回退到基本 logger
		logger, _ = zap.NewProduction()
	}
	return logger
}

// =============================================================================
// 📋 版本和帮助
// =============================================================================

func printVersion(w io.Writer) {
	fmt.Fprintf(w, "BatchFlow %s\n", Version)
	fmt.Fprintf(w, "  Build Time: %s\n", BuildTime)
	fmt.Fprintf(w, "  Git Commit: %s\n", GitCommit)
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, `BatchFlow - batch LLM processing with caching, retries and verification

Usage:
  batchflow <command> [options]

Commands:
  run               Process a batch of prompts or conversations
  cache invalidate  Remove cached responses for the given inputs
  health            Check provider reachability
  version           Show version information
  help              Show this help message

Input options (run, cache invalidate; exactly one):
  --prompts-file <path>        JSON array of "text", ["id","text"] or {"id","text"}
  --conversations-file <path>  JSON array of message lists, pairs or {"id","messages"}
  --input-dir <dir>            every *.txt file in the directory

Common options:
  --config <path>   Path to configuration file (YAML)
  --model <name>    Override batch.model

Options for 'run':
  --output <path>   Write result JSON to a file instead of stdout
  --force           Ignore cached responses (results are still cached)
  --quiet           Disable the progress line on stderr

Examples:
  batchflow run --prompts-file prompts.json --output results.json
  batchflow run --config batchflow.yaml --input-dir ./prompts --force
  batchflow cache invalidate --prompts-file prompts.json
  batchflow health --config batchflow.yaml
  batchflow version`)
}
