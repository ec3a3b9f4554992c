package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/BaSui01/batchflow/internal/tlsutil"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

var (
	// ErrCacheMiss 键不存在或已过期
	ErrCacheMiss = errors.New("cache miss")
	// ErrManagerClosed Close 之后的调用
	ErrManagerClosed = errors.New("cache manager is closed")
)

// IsCacheMiss 判断是否为缓存未命中
func IsCacheMiss(err error) bool {
	return errors.Is(err, ErrCacheMiss)
}

// Config Redis 连接配置
type Config struct {
	Addr     string `yaml:"addr" json:"addr" env:"ADDR"`
	Password string `yaml:"password" json:"password" env:"PASSWORD"`
	DB       int    `yaml:"db" json:"db" env:"DB"`

	// 写入时未指定 TTL 的默认过期时间，0 表示不过期
	DefaultTTL time.Duration `yaml:"default_ttl" json:"default_ttl" env:"DEFAULT_TTL"`

	// go-redis 语义：0 取库默认值（3），-1 关闭重试
	MaxRetries   int           `yaml:"max_retries" json:"max_retries" env:"MAX_RETRIES"`
	PoolSize     int           `yaml:"pool_size" json:"pool_size" env:"POOL_SIZE"`
	MinIdleConns int           `yaml:"min_idle_conns" json:"min_idle_conns" env:"MIN_IDLE_CONNS"`
	DialTimeout  time.Duration `yaml:"dial_timeout" json:"dial_timeout" env:"DIAL_TIMEOUT"`
	TLSEnabled   bool          `yaml:"tls_enabled" json:"tls_enabled" env:"TLS_ENABLED"`

	// 后台 PING 间隔，0 关闭
	HealthCheckInterval time.Duration `yaml:"health_check_interval" json:"health_check_interval" env:"HEALTH_CHECK_INTERVAL"`
}

// DefaultConfig 本地单机 Redis
func DefaultConfig() Config {
	return Config{
		Addr:                "localhost:6379",
		MaxRetries:          3,
		PoolSize:            10,
		MinIdleConns:        2,
		DialTimeout:         5 * time.Second,
		HealthCheckInterval: 30 * time.Second,
	}
}

func (c Config) options() *redis.Options {
	opts := &redis.Options{
		Addr:         c.Addr,
		Password:     c.Password,
		DB:           c.DB,
		MaxRetries:   c.MaxRetries,
		PoolSize:     c.PoolSize,
		MinIdleConns: c.MinIdleConns,
		DialTimeout:  c.DialTimeout,
	}
	if c.TLSEnabled {
		opts.TLSConfig = tlsutil.DefaultTLSConfig()
	}
	return opts
}

// Manager 共享结果缓存使用的 Redis 客户端。值统一以 JSON 字符串存放。
type Manager struct {
	client     *redis.Client
	defaultTTL time.Duration
	logger     *zap.Logger

	closed    atomic.Bool
	stopWatch context.CancelFunc
	watchDone sync.WaitGroup
}

// NewManager 建立连接并 PING 一次，失败时不返回 Manager。
func NewManager(config Config, logger *zap.Logger) (*Manager, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	client := redis.NewClient(config.options())

	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", config.Addr, err)
	}

	m := &Manager{
		client:     client,
		defaultTTL: config.DefaultTTL,
		logger:     logger.With(zap.String("component", "redis")),
		stopWatch:  func() {},
	}
	if config.HealthCheckInterval > 0 {
		ctx, stop := context.WithCancel(context.Background())
		m.stopWatch = stop
		m.watchDone.Add(1)
		go m.watch(ctx, config.HealthCheckInterval)
	}

	m.logger.Info("redis connected",
		zap.String("addr", config.Addr),
		zap.Int("db", config.DB),
		zap.Bool("tls", config.TLSEnabled),
	)
	return m, nil
}

func (m *Manager) check(err error) error {
	if m.closed.Load() || errors.Is(err, redis.ErrClosed) {
		return ErrManagerClosed
	}
	return err
}

// Get 读取字符串值
func (m *Manager) Get(ctx context.Context, key string) (string, error) {
	if err := m.check(nil); err != nil {
		return "", err
	}
	val, err := m.client.Get(ctx, key).Result()
	switch {
	case errors.Is(err, redis.Nil):
		return "", ErrCacheMiss
	case err != nil:
		return "", fmt.Errorf("redis get %s: %w", key, m.check(err))
	}
	return val, nil
}

// Set 写入字符串值。ttl 为 0 时使用 DefaultTTL。
func (m *Manager) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := m.check(nil); err != nil {
		return err
	}
	if ttl == 0 {
		ttl = m.defaultTTL
	}
	if err := m.client.Set(ctx, key, value, ttl).Err(); err != nil {
		m.logger.Warn("redis set failed", zap.String("key", key), zap.Error(err))
		return fmt.Errorf("redis set %s: %w", key, m.check(err))
	}
	return nil
}

// GetJSON 读取并反序列化到 dest
func (m *Manager) GetJSON(ctx context.Context, key string, dest any) error {
	raw, err := m.Get(ctx, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(raw), dest); err != nil {
		return fmt.Errorf("decode %s: %w", key, err)
	}
	return nil
}

// SetJSON 序列化后写入
func (m *Manager) SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return m.Set(ctx, key, string(raw), ttl)
}

// Delete 删除键，键不存在不算错误
func (m *Manager) Delete(ctx context.Context, keys ...string) error {
	if err := m.check(nil); err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	if err := m.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("redis del: %w", m.check(err))
	}
	return nil
}

// Ping 连通性检查
func (m *Manager) Ping(ctx context.Context) error {
	if err := m.check(nil); err != nil {
		return err
	}
	return m.check(m.client.Ping(ctx).Err())
}

// Close 停止后台检查并关闭连接池，可重复调用
func (m *Manager) Close() error {
	if !m.closed.CompareAndSwap(false, true) {
		return nil
	}
	m.stopWatch()
	m.watchDone.Wait()
	return m.client.Close()
}

// watch 定期 PING，只记录日志，不影响调用方
func (m *Manager) watch(ctx context.Context, interval time.Duration) {
	defer m.watchDone.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	healthy := true
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := m.client.Ping(pingCtx).Err()
		cancel()
		switch {
		case err != nil && ctx.Err() == nil && healthy:
			m.logger.Error("redis unreachable", zap.Error(err))
			healthy = false
		case err == nil && !healthy:
			m.logger.Info("redis reachable again")
			healthy = true
		}
	}
}
