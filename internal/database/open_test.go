package database

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestDialector(t *testing.T) {
	tests := []struct {
		driver  string
		dsn     string
		name    string
		wantErr bool
	}{
		{driver: "postgres", dsn: "host=localhost user=x dbname=y", name: "postgres"},
		{driver: "PG", dsn: "host=localhost", name: "postgres"},
		{driver: "mysql", dsn: "user:pass@tcp(localhost:3306)/db", name: "mysql"},
		{driver: "sqlite", dsn: "file::memory:", name: "sqlite"},
		{driver: "oracle", dsn: "x", wantErr: true},
		{driver: "sqlite", dsn: " ", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.driver+"/"+tt.dsn, func(t *testing.T) {
			d, err := Dialector(tt.driver, tt.dsn)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.name, d.Name())
		})
	}
}

func TestOpen_SQLite(t *testing.T) {
	cfg := Config{
		Driver: DriverSQLite,
		DSN:    "file::memory:",
		Pool:   PoolConfig{MaxOpenConns: 1, MaxIdleConns: 1},
	}
	pool, err := Open(cfg, zap.NewNop())
	require.NoError(t, err)
	defer pool.Close()

	assert.NoError(t, pool.Ping(context.Background()))
	assert.Equal(t, 1, pool.Stats().MaxOpenConnections)
}

func TestOpen_InvalidPool(t *testing.T) {
	_, err := Open(Config{Driver: DriverSQLite, DSN: "file::memory:"}, nil)
	assert.Error(t, err)
}
