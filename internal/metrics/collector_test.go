package metrics

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/BaSui01/clubcms/internal/database"
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

// Collector 可直接作为连接管理器的指标记录器
var _ database.MetricsRecorder = (*Collector)(nil)

// =============================================================================
// 🧪 Collector 测试
// =============================================================================

func TestNewCollector(t *testing.T) {
	logger := zap.NewNop()
	collector := NewCollector(nextTestNamespace(), logger)

	assert.NotNil(t, collector)
	assert.NotNil(t, collector.httpRequestsTotal)
	assert.NotNil(t, collector.httpRequestDuration)
	assert.NotNil(t, collector.dbRetriesTotal)
	assert.NotNil(t, collector.dbIdleTerminatedTotal)
	assert.NotNil(t, collector.dbPoolTimeoutsTotal)
	assert.NotNil(t, collector.dbSessions)
	assert.NotNil(t, collector.sessionLookups)
}

func TestCollector_RecordHTTPRequest(t *testing.T) {
	logger := zap.NewNop()
	collector := NewCollector(nextTestNamespace(), logger)

	// 记录请求
	collector.RecordHTTPRequest("GET", "/api/pages", 200, 100*time.Millisecond, 1024, 2048)
	collector.RecordHTTPRequest("GET", "/api/pages", 201, 50*time.Millisecond, 512, 1024)
	collector.RecordHTTPRequest("POST", "/health/db/terminate-idle", 401, time.Millisecond, 0, 64)

	assert.Equal(t, 2.0, testutil.ToFloat64(collector.httpRequestsTotal.WithLabelValues("GET", "/api/pages", "2xx")))
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.httpRequestsTotal.WithLabelValues("POST", "/health/db/terminate-idle", "4xx")))
}

func TestCollector_RecordDBRetry(t *testing.T) {
	collector := NewCollector(nextTestNamespace(), zap.NewNop())

	collector.RecordDBRetry("retry")
	collector.RecordDBRetry("retry")
	collector.RecordDBRetry("success")

	assert.Equal(t, 2.0, testutil.ToFloat64(collector.dbRetriesTotal.WithLabelValues("retry")))
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.dbRetriesTotal.WithLabelValues("success")))
}

func TestCollector_RecordIdleTerminated(t *testing.T) {
	collector := NewCollector(nextTestNamespace(), zap.NewNop())

	collector.RecordIdleTerminated(3)
	collector.RecordIdleTerminated(0)
	collector.RecordIdleTerminated(2)

	assert.Equal(t, 5.0, testutil.ToFloat64(collector.dbIdleTerminatedTotal))
}

func TestCollector_RecordPoolTimeout(t *testing.T) {
	collector := NewCollector(nextTestNamespace(), zap.NewNop())

	collector.RecordPoolTimeout()

	assert.Equal(t, 1.0, testutil.ToFloat64(collector.dbPoolTimeoutsTotal))
}

func TestCollector_RecordDBSessions(t *testing.T) {
	collector := NewCollector(nextTestNamespace(), zap.NewNop())

	collector.RecordDBSessions(4, 7)

	assert.Equal(t, 4.0, testutil.ToFloat64(collector.dbSessions.WithLabelValues("active")))
	assert.Equal(t, 7.0, testutil.ToFloat64(collector.dbSessions.WithLabelValues("idle")))
}

func TestCollector_RecordDatabaseQuery(t *testing.T) {
	logger := zap.NewNop()
	collector := NewCollector(nextTestNamespace(), logger)

	// 记录数据库查询
	collector.RecordDBQuery("postgres", "SELECT", 20*time.Millisecond)

	// 验证指标
	count := testutil.CollectAndCount(collector.dbQueryDuration)
	assert.Greater(t, count, 0)
}

func TestCollector_UpdateConnectionPool(t *testing.T) {
	logger := zap.NewNop()
	collector := NewCollector(nextTestNamespace(), logger)

	// 更新连接池状态
	collector.RecordDBConnections("postgres", 10, 5)

	assert.Equal(t, 10.0, testutil.ToFloat64(collector.dbConnectionsOpen.WithLabelValues("postgres")))
	assert.Equal(t, 5.0, testutil.ToFloat64(collector.dbConnectionsIdle.WithLabelValues("postgres")))
}

func TestCollector_RecordSessionLookups(t *testing.T) {
	collector := NewCollector(nextTestNamespace(), zap.NewNop())

	collector.RecordSessionHit("redis")
	collector.RecordSessionMiss("redis")
	collector.RecordSessionMiss("memory")

	assert.Equal(t, 1.0, testutil.ToFloat64(collector.sessionLookups.WithLabelValues("redis", "hit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.sessionLookups.WithLabelValues("redis", "miss")))
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.sessionLookups.WithLabelValues("memory", "miss")))
}

func TestCollector_ConcurrentRecording(t *testing.T) {
	logger := zap.NewNop()
	collector := NewCollector(nextTestNamespace(), logger)

	// 并发记录多个指标
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			collector.RecordHTTPRequest("GET", "/test", 200, 100*time.Millisecond, 1024, 2048)
			collector.RecordDBRetry("retry")
			collector.RecordSessionHit("redis")
		}()
	}
	wg.Wait()

	assert.Equal(t, 10.0, testutil.ToFloat64(collector.httpRequestsTotal.WithLabelValues("GET", "/test", "2xx")))
	assert.Equal(t, 10.0, testutil.ToFloat64(collector.dbRetriesTotal.WithLabelValues("retry")))
	assert.Equal(t, 10.0, testutil.ToFloat64(collector.sessionLookups.WithLabelValues("redis", "hit")))
}

func TestCollector_MetricsRegistration(t *testing.T) {
	logger := zap.NewNop()

	// 创建自定义 registry
	registry := prometheus.NewRegistry()

	// 创建 collector（会自动注册到默认 registry）
	collector := NewCollector(nextTestNamespace(), logger)

	// 手动注册到自定义 registry
	registry.MustRegister(collector.dbRetriesTotal)
	registry.MustRegister(collector.dbPoolTimeoutsTotal)

	collector.RecordDBRetry("exhausted")

	count := testutil.CollectAndCount(collector.dbRetriesTotal)
	assert.Greater(t, count, 0)
}

func TestStatusCode(t *testing.T) {
	assert.Equal(t, "2xx", statusCode(204))
	assert.Equal(t, "3xx", statusCode(302))
	assert.Equal(t, "4xx", statusCode(404))
	assert.Equal(t, "5xx", statusCode(503))
	assert.Equal(t, "unknown", statusCode(100))
}
