package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/BaSui01/batchflow/config"
	rediscache "github.com/BaSui01/batchflow/internal/cache"
	"github.com/BaSui01/batchflow/internal/database"
	"github.com/BaSui01/batchflow/internal/metrics"
	"github.com/BaSui01/batchflow/internal/server"
	"github.com/BaSui01/batchflow/internal/telemetry"
	"github.com/BaSui01/batchflow/llm"
	"github.com/BaSui01/batchflow/llm/batch"
	"github.com/BaSui01/batchflow/llm/cache"
	"github.com/BaSui01/batchflow/llm/factory"
)

// =============================================================================
// 🔌 依赖装配
// =============================================================================

// deps 一次命令执行所需的全部组件
type deps struct {
	cfg        *config.Config
	logger     *zap.Logger
	provider   llm.Provider
	store      cache.Store
	registry   *prometheus.Registry
	collector  *metrics.Collector
	metricsSrv *server.Manager
	telemetry  *telemetry.Providers

	closers []func() error
}

// wire 根据配置创建 Provider、缓存后端、指标与遥测
func wire(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*deps, error) {
	d := &deps{
		cfg:      cfg,
		logger:   logger,
		registry: prometheus.NewRegistry(),
	}
	d.collector = metrics.NewCollectorWithRegisterer(cfg.Metrics.Namespace, d.registry, logger)

	tp, err := telemetry.Init(cfg.Telemetry, logger)
	if err != nil {
		logger.Warn("failed to initialize telemetry", zap.Error(err))
	} else {
		d.telemetry = tp
	}

	provider, err := factory.NewProviderFromConfig(cfg.Provider.Name, cfg.Provider.FactoryConfig(cfg.Batch.Model), logger)
	if err != nil {
		d.Close()
		return nil, fmt.Errorf("create provider: %w", err)
	}
	d.provider = provider

	store, closer, err := openStore(ctx, cfg, d.collector, logger)
	if err != nil {
		d.Close()
		return nil, fmt.Errorf("open %s cache: %w", cfg.Cache.Backend, err)
	}
	d.store = store
	if closer != nil {
		d.closers = append(d.closers, closer)
	}

	if cfg.Metrics.Enabled {
		scfg := server.DefaultConfig()
		scfg.Addr = cfg.Metrics.Addr
		d.metricsSrv = server.NewManager(server.Handler(d.registry), scfg, logger)
		if err := d.metricsSrv.Start(); err != nil {
			d.Close()
			return nil, err
		}
	}

	return d, nil
}

// processor 用装配好的组件创建批处理器
func (d *deps) processor(progress batch.Progress) (*batch.Processor, error) {
	return batch.NewProcessor(d.provider, d.store,
		batch.WithKeyStrategy(d.cfg.Batch.KeyStrategyImpl()),
		batch.WithMetrics(d.collector),
		batch.WithLogger(d.logger),
		batch.WithProgress(progress),
		batch.WithTracer(d.telemetry.Tracer()),
	)
}

// Close 按创建的逆序释放资源
func (d *deps) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var errs []error
	if d.metricsSrv != nil {
		errs = append(errs, d.metricsSrv.Shutdown(ctx))
	}
	for i := len(d.closers) - 1; i >= 0; i-- {
		errs = append(errs, d.closers[i]())
	}
	if d.telemetry != nil {
		errs = append(errs, d.telemetry.Shutdown(ctx))
	}
	return errors.Join(errs...)
}

// =============================================================================
// 💾 缓存后端
// =============================================================================

// openStore 创建配置的缓存后端。远端后端在 local_size > 0 时前置一层本地 LRU。
func openStore(ctx context.Context, cfg *config.Config, collector *metrics.Collector, logger *zap.Logger) (cache.Store, func() error, error) {
	cc := cfg.Cache

	var (
		remote cache.Store
		closer func() error
	)

	switch cc.Backend {
	case config.CacheBackendFile:
		s, err := cache.NewFileStore(cc.Dir, logger)
		if err != nil {
			return nil, nil, err
		}
		return s, nil, nil

	case config.CacheBackendMemory:
		return cache.NewMemoryStore(cc.LocalSize, cc.LocalTTL), nil, nil

	case config.CacheBackendRedis:
		mgr, err := rediscache.NewManager(cfg.Redis, logger)
		if err != nil {
			return nil, nil, err
		}
		remote = cache.NewRedisStore(mgr, cc.RedisPrefix, cc.RedisTTL)
		closer = mgr.Close

	case config.CacheBackendSQL:
		driver := cfg.Database.Driver
		pool, err := database.Open(cfg.Database, logger, database.WithStatsReporter(func(s sql.DBStats) {
			collector.RecordDBConnections(driver, s.OpenConnections, s.Idle)
		}))
		if err != nil {
			return nil, nil, err
		}
		s, err := cache.NewSQLStore(pool.DB(), cc.AutoMigrate)
		if err != nil {
			_ = pool.Close()
			return nil, nil, err
		}
		remote = s
		closer = pool.Close

	case config.CacheBackendMongo:
		cctx, cancel := context.WithTimeout(ctx, cfg.Mongo.Timeout)
		defer cancel()
		s, err := cache.NewMongoStore(cctx, cfg.Mongo.StoreConfig())
		if err != nil {
			return nil, nil, err
		}
		remote = s
		closer = s.Close

	default:
		return nil, nil, fmt.Errorf("unknown cache backend %q", cc.Backend)
	}

	if cc.LocalSize > 0 {
		local := cache.NewMemoryStore(cc.LocalSize, cc.LocalTTL)
		return cache.NewMultiLevel(local, remote, logger), closer, nil
	}
	return remote, closer, nil
}
