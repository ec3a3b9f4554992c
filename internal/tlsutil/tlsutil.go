// Package tlsutil 为 Provider HTTP 客户端与 Redis 连接提供统一的 TLS 设置：
// 最低 TLS 1.2，只允许 AEAD 密码套件。
package tlsutil

import (
	"crypto/tls"
	"net"
	"net/http"
	"slices"
	"time"
)

// DefaultMaxConnsPerHost 单个 Provider 主机保留的空闲连接数。
// 批处理会并发打同一个主机，net/http 默认的 2 会导致连接反复重建。
const DefaultMaxConnsPerHost = 32

var aeadSuites = []uint16{
	tls.TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384,
	tls.TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384,
	tls.TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256,
	tls.TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256,
	tls.TLS_ECDHE_ECDSA_WITH_CHACHA20_POLY1305,
	tls.TLS_ECDHE_RSA_WITH_CHACHA20_POLY1305,
}

// IsAEAD 报告密码套件是否在允许列表中
func IsAEAD(suite uint16) bool {
	return slices.Contains(aeadSuites, suite)
}

// DefaultTLSConfig 每次返回新实例，调用方可以继续修改（如 ServerName）。
func DefaultTLSConfig() *tls.Config {
	return &tls.Config{
		MinVersion:   tls.VersionTLS12,
		CipherSuites: slices.Clone(aeadSuites),
	}
}

// TransportOptions 连接池参数，零值取默认
type TransportOptions struct {
	MaxConnsPerHost int
	DialTimeout     time.Duration
	IdleTimeout     time.Duration
}

func (o TransportOptions) withDefaults() TransportOptions {
	if o.MaxConnsPerHost <= 0 {
		o.MaxConnsPerHost = DefaultMaxConnsPerHost
	}
	if o.DialTimeout <= 0 {
		o.DialTimeout = 30 * time.Second
	}
	if o.IdleTimeout <= 0 {
		o.IdleTimeout = 90 * time.Second
	}
	return o
}

// NewTransport 构建带 TLS 加固的 http.Transport
func NewTransport(opts TransportOptions) *http.Transport {
	opts = opts.withDefaults()
	dialer := &net.Dialer{Timeout: opts.DialTimeout, KeepAlive: 30 * time.Second}
	return &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		TLSClientConfig:       DefaultTLSConfig(),
		TLSHandshakeTimeout:   10 * time.Second,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          max(100, opts.MaxConnsPerHost),
		MaxIdleConnsPerHost:   opts.MaxConnsPerHost,
		IdleConnTimeout:       opts.IdleTimeout,
		ExpectContinueTimeout: time.Second,
	}
}

// SecureHTTPClient Provider 使用的 HTTP 客户端。timeout 限制单次请求（含读取响应体）。
func SecureHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{Timeout: timeout, Transport: NewTransport(TransportOptions{})}
}
