package metrics

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

var collectorNamespaceSeq uint64

func nextTestNamespace() string {
	seq := atomic.AddUint64(&collectorNamespaceSeq, 1)
	return fmt.Sprintf("test_%d", seq)
}

func newTestCollector() *Collector {
	return NewCollectorWithRegisterer(nextTestNamespace(), prometheus.NewRegistry(), zap.NewNop())
}

// =============================================================================
// 🧪 Collector 测试
// =============================================================================

func TestNewCollector(t *testing.T) {
	collector := NewCollector(nextTestNamespace(), zap.NewNop())

	assert.NotNil(t, collector)
	assert.NotNil(t, collector.itemsTotal)
	assert.NotNil(t, collector.attemptsTotal)
	assert.NotNil(t, collector.llmRequestsTotal)
	assert.NotNil(t, collector.llmRequestDuration)
	assert.NotNil(t, collector.llmTokensUsed)
}

func TestCollector_RecordItem(t *testing.T) {
	c := newTestCollector()

	c.RecordItem("generated", 100*time.Millisecond)
	c.RecordItem("generated", 200*time.Millisecond)
	c.RecordItem("cached", time.Millisecond)
	c.RecordItem("failed", time.Second)

	assert.Equal(t, float64(2), testutil.ToFloat64(c.itemsTotal.WithLabelValues("generated")))
	assert.Equal(t, float64(1), testutil.ToFloat64(c.itemsTotal.WithLabelValues("cached")))
	assert.Equal(t, float64(1), testutil.ToFloat64(c.itemsTotal.WithLabelValues("failed")))
	assert.Equal(t, 3, testutil.CollectAndCount(c.itemDuration))
}

func TestCollector_RecordAttemptAndRejection(t *testing.T) {
	c := newTestCollector()

	c.RecordAttempt("rate_limit")
	c.RecordAttempt("rejected")
	c.RecordAttempt("success")
	c.RecordVerificationRejection()

	assert.Equal(t, float64(1), testutil.ToFloat64(c.attemptsTotal.WithLabelValues("rate_limit")))
	assert.Equal(t, float64(1), testutil.ToFloat64(c.verificationRejection))
}

func TestCollector_Inflight(t *testing.T) {
	c := newTestCollector()

	c.IncInflight()
	c.IncInflight()
	c.DecInflight()

	assert.Equal(t, float64(1), testutil.ToFloat64(c.inflight))
}

func TestCollector_RecordBatch(t *testing.T) {
	c := newTestCollector()
	c.RecordBatch("completed", 3*time.Second)

	assert.Equal(t, float64(1), testutil.ToFloat64(c.batchesTotal.WithLabelValues("completed")))
	assert.Equal(t, 1, testutil.CollectAndCount(c.batchDuration))
}

func TestCollector_RecordLLMRequest(t *testing.T) {
	c := newTestCollector()

	c.RecordLLMRequest("openai", "gpt-4o-mini", "success", 500*time.Millisecond, 100, 50)

	assert.Equal(t, float64(1), testutil.ToFloat64(c.llmRequestsTotal.WithLabelValues("openai", "gpt-4o-mini", "success")))
	assert.Equal(t, float64(100), testutil.ToFloat64(c.llmTokensUsed.WithLabelValues("openai", "gpt-4o-mini", "prompt")))
	assert.Equal(t, float64(50), testutil.ToFloat64(c.llmTokensUsed.WithLabelValues("openai", "gpt-4o-mini", "completion")))
}

func TestCollector_RecordCacheOperation(t *testing.T) {
	c := newTestCollector()

	c.RecordCacheHit("file")
	c.RecordCacheMiss("file")
	c.RecordCacheError("redis", "put")

	assert.Equal(t, float64(1), testutil.ToFloat64(c.cacheHits.WithLabelValues("file")))
	assert.Equal(t, float64(1), testutil.ToFloat64(c.cacheMisses.WithLabelValues("file")))
	assert.Equal(t, float64(1), testutil.ToFloat64(c.cacheErrors.WithLabelValues("redis", "put")))
}

func TestCollector_UpdateConnectionPool(t *testing.T) {
	c := newTestCollector()

	c.RecordDBConnections("postgres", 10, 5)

	assert.Equal(t, float64(10), testutil.ToFloat64(c.dbConnectionsOpen.WithLabelValues("postgres")))
	assert.Equal(t, float64(5), testutil.ToFloat64(c.dbConnectionsIdle.WithLabelValues("postgres")))
}

func TestCollector_NilIsNoop(t *testing.T) {
	var c *Collector
	assert.NotPanics(t, func() {
		c.RecordBatch("completed", time.Second)
		c.RecordItem("generated", time.Second)
		c.RecordAttempt("success")
		c.RecordVerificationRejection()
		c.IncInflight()
		c.DecInflight()
		c.RecordLLMRequest("p", "m", "success", time.Second, 1, 1)
		c.RecordCacheHit("file")
		c.RecordCacheMiss("file")
		c.RecordCacheError("file", "get")
		c.RecordDBConnections("db", 1, 1)
	})
}

func TestCollector_ConcurrentRecording(t *testing.T) {
	c := newTestCollector()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.RecordItem("generated", 100*time.Millisecond)
			c.RecordLLMRequest("openai", "gpt-4o-mini", "success", 500*time.Millisecond, 100, 50)
			c.RecordCacheHit("file")
		}()
	}
	wg.Wait()

	assert.Equal(t, float64(10), testutil.ToFloat64(c.itemsTotal.WithLabelValues("generated")))
	assert.Equal(t, float64(10), testutil.ToFloat64(c.cacheHits.WithLabelValues("file")))
}

func TestCollector_RegistersIntoCustomRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollectorWithRegisterer("iso", reg, nil)
	c.RecordItem("cached", time.Millisecond)

	families, err := reg.Gather()
	assert.NoError(t, err)
	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "iso_items_total")
}
