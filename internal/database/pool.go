package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ErrPoolClosed Close 之后的调用
var ErrPoolClosed = errors.New("pool is closed")

// StatsReporter 每次探活成功后收到连接池统计，用于导出连接数指标
type StatsReporter func(stats sql.DBStats)

// PoolConfig 连接池参数
type PoolConfig struct {
	MaxIdleConns    int           `yaml:"max_idle_conns" json:"max_idle_conns" env:"MAX_IDLE_CONNS"`
	MaxOpenConns    int           `yaml:"max_open_conns" json:"max_open_conns" env:"MAX_OPEN_CONNS"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" json:"conn_max_lifetime" env:"CONN_MAX_LIFETIME"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time" json:"conn_max_idle_time" env:"CONN_MAX_IDLE_TIME"`

	// 后台探活间隔，0 关闭
	HealthCheckInterval time.Duration `yaml:"health_check_interval" json:"health_check_interval" env:"HEALTH_CHECK_INTERVAL"`
}

// DefaultPoolConfig 缓存读写都是单行操作，连接数按批处理并发量收紧
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		MaxIdleConns:        5,
		MaxOpenConns:        20,
		ConnMaxLifetime:     time.Hour,
		ConnMaxIdleTime:     10 * time.Minute,
		HealthCheckInterval: 30 * time.Second,
	}
}

// Validate 返回全部问题而不是第一个
func (c PoolConfig) Validate() error {
	var errs []error
	if c.MaxOpenConns <= 0 {
		errs = append(errs, fmt.Errorf("max_open_conns must be positive, got %d", c.MaxOpenConns))
	}
	if c.MaxIdleConns <= 0 {
		errs = append(errs, fmt.Errorf("max_idle_conns must be positive, got %d", c.MaxIdleConns))
	}
	if c.MaxOpenConns > 0 && c.MaxIdleConns > c.MaxOpenConns {
		errs = append(errs, fmt.Errorf("max_idle_conns (%d) exceeds max_open_conns (%d)", c.MaxIdleConns, c.MaxOpenConns))
	}
	if c.ConnMaxLifetime < 0 || c.ConnMaxIdleTime < 0 || c.HealthCheckInterval < 0 {
		errs = append(errs, errors.New("durations must not be negative"))
	}
	return errors.Join(errs...)
}

// PoolOption 调整 Pool 的可选行为
type PoolOption func(*Pool)

// WithStatsReporter 探活成功后上报统计
func WithStatsReporter(r StatsReporter) PoolOption {
	return func(p *Pool) { p.reporter = r }
}

// Pool 持有 GORM 实例与底层 sql.DB。HealthCheckInterval > 0 时后台探活。
type Pool struct {
	db       *gorm.DB
	sqlDB    *sql.DB
	logger   *zap.Logger
	reporter StatsReporter

	closed  atomic.Bool
	stop    context.CancelFunc
	stopped sync.WaitGroup
}

// NewPool 应用连接池参数并启动探活
func NewPool(db *gorm.DB, cfg PoolConfig, logger *zap.Logger, opts ...PoolOption) (*Pool, error) {
	if db == nil {
		return nil, errors.New("db cannot be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("underlying sql.DB: %w", err)
	}
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	p := &Pool{
		db:     db,
		sqlDB:  sqlDB,
		logger: logger.With(zap.String("component", "db_pool")),
		stop:   func() {},
	}
	for _, opt := range opts {
		opt(p)
	}
	if cfg.HealthCheckInterval > 0 {
		ctx, cancel := context.WithCancel(context.Background())
		p.stop = cancel
		p.stopped.Add(1)
		go p.monitor(ctx, cfg.HealthCheckInterval)
	}

	p.logger.Debug("database pool ready",
		zap.Int("max_open_conns", cfg.MaxOpenConns),
		zap.Int("max_idle_conns", cfg.MaxIdleConns),
	)
	return p, nil
}

// DB GORM 实例
func (p *Pool) DB() *gorm.DB { return p.db }

// Ping 连通性检查
func (p *Pool) Ping(ctx context.Context) error {
	if p.closed.Load() {
		return ErrPoolClosed
	}
	return p.sqlDB.PingContext(ctx)
}

// Stats 底层连接池统计
func (p *Pool) Stats() sql.DBStats { return p.sqlDB.Stats() }

// Close 停止探活并关闭连接，可重复调用
func (p *Pool) Close() error {
	if !p.closed.CompareAndSwap(false, true) {
		return nil
	}
	p.stop()
	p.stopped.Wait()
	return p.sqlDB.Close()
}

func (p *Pool) monitor(ctx context.Context, interval time.Duration) {
	defer p.stopped.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := p.sqlDB.PingContext(pingCtx)
		cancel()
		if err != nil {
			if ctx.Err() == nil {
				p.logger.Warn("database ping failed", zap.Error(err))
			}
			continue
		}
		if p.reporter != nil {
			p.reporter(p.sqlDB.Stats())
		}
	}
}
