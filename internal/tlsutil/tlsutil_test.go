package tlsutil

import (
	"crypto/tls"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultTLSConfig_OnlyAEAD(t *testing.T) {
	cfg := DefaultTLSConfig()
	assert.Equal(t, uint16(tls.VersionTLS12), cfg.MinVersion)
	require.NotEmpty(t, cfg.CipherSuites)
	for _, cs := range cfg.CipherSuites {
		assert.True(t, IsAEAD(cs), tls.CipherSuiteName(cs))
	}
	assert.False(t, IsAEAD(tls.TLS_RSA_WITH_AES_128_CBC_SHA))
}

func TestDefaultTLSConfig_IndependentCopies(t *testing.T) {
	a := DefaultTLSConfig()
	a.CipherSuites[0] = tls.TLS_RSA_WITH_AES_128_CBC_SHA
	a.ServerName = "redis.internal"

	b := DefaultTLSConfig()
	assert.True(t, IsAEAD(b.CipherSuites[0]))
	assert.Empty(t, b.ServerName)
}

func TestNewTransport(t *testing.T) {
	tr := NewTransport(TransportOptions{})
	assert.Equal(t, DefaultMaxConnsPerHost, tr.MaxIdleConnsPerHost)
	assert.Equal(t, 90*time.Second, tr.IdleConnTimeout)
	assert.True(t, tr.ForceAttemptHTTP2)
	require.NotNil(t, tr.TLSClientConfig)

	big := NewTransport(TransportOptions{MaxConnsPerHost: 256, IdleTimeout: time.Minute})
	assert.Equal(t, 256, big.MaxIdleConnsPerHost)
	assert.Equal(t, 256, big.MaxIdleConns)
	assert.Equal(t, time.Minute, big.IdleConnTimeout)
}

func TestSecureHTTPClient(t *testing.T) {
	c := SecureHTTPClient(15 * time.Second)
	assert.Equal(t, 15*time.Second, c.Timeout)
	tr, ok := c.Transport.(*http.Transport)
	require.True(t, ok)
	assert.Equal(t, DefaultMaxConnsPerHost, tr.MaxIdleConnsPerHost)
}
