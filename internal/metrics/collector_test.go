package metrics

import (
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/BaSui01/imagine3d/pipeline"
)

var collectorNamespaceSeq uint64

func nextTestNamespace() string {
	seq := atomic.AddUint64(&collectorNamespaceSeq, 1)
	return fmt.Sprintf("test_%d", seq)
}

// =============================================================================
// 🧪 Collector 测试
// =============================================================================

func TestNewCollector(t *testing.T) {
	collector := NewCollector(nextTestNamespace(), zap.NewNop())

	assert.NotNil(t, collector)
	assert.NotNil(t, collector.httpRequestsTotal)
	assert.NotNil(t, collector.httpRequestDuration)
	assert.NotNil(t, collector.stageTotal)
	assert.NotNil(t, collector.stageDuration)
	assert.NotNil(t, collector.runsTotal)
	assert.NotNil(t, collector.auditWrites)
}

func TestNewCollector_NilLogger(t *testing.T) {
	assert.NotPanics(t, func() { NewCollector(nextTestNamespace(), nil) })
}

func TestCollector_RecordHTTPRequest(t *testing.T) {
	collector := NewCollector(nextTestNamespace(), zap.NewNop())

	collector.RecordHTTPRequest("GET", "/test", 200, 100*time.Millisecond, 1024, 2048)
	collector.RecordHTTPRequest("GET", "/test", 200, 50*time.Millisecond, 512, 1024)
	collector.RecordHTTPRequest("POST", "/test", 503, 50*time.Millisecond, 512, 1024)

	assert.Equal(t, 2.0, testutil.ToFloat64(collector.httpRequestsTotal.WithLabelValues("GET", "/test", "2xx")))
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.httpRequestsTotal.WithLabelValues("POST", "/test", "5xx")))
}

func TestCollector_ObserveStage(t *testing.T) {
	collector := NewCollector(nextTestNamespace(), zap.NewNop())

	collector.ObserveStage(pipeline.StageImage, pipeline.OutcomeSuccess, 2*time.Second)
	collector.ObserveStage(pipeline.StageImage, pipeline.OutcomeFailed, time.Second)
	collector.ObserveStage(pipeline.StageModel3D, pipeline.OutcomeSkipped, 0)

	assert.Equal(t, 1.0, testutil.ToFloat64(collector.stageTotal.WithLabelValues("image", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.stageTotal.WithLabelValues("image", "failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.stageTotal.WithLabelValues("model_3d", "skipped")))
	assert.Equal(t, 2, testutil.CollectAndCount(collector.stageDuration))
}

func TestCollector_ObserveAuditWriteAndRun(t *testing.T) {
	collector := NewCollector(nextTestNamespace(), zap.NewNop())

	collector.ObserveAuditWrite(nil)
	collector.ObserveAuditWrite(errors.New("disk full"))
	collector.ObserveAuditWrite(nil)
	collector.ObserveRun(3 * time.Second)

	assert.Equal(t, 2.0, testutil.ToFloat64(collector.auditWrites.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.auditWrites.WithLabelValues("error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.runsTotal))
}

func TestCollector_Idempotency(t *testing.T) {
	collector := NewCollector(nextTestNamespace(), zap.NewNop())

	collector.RecordIdempotencyMiss()
	collector.RecordIdempotencyHit()
	collector.RecordIdempotencyHit()

	assert.Equal(t, 2.0, testutil.ToFloat64(collector.idempotencyHits))
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.idempotencyMisses))
}

func TestCollector_RecordDBStats(t *testing.T) {
	collector := NewCollector(nextTestNamespace(), zap.NewNop())

	collector.RecordDBStats("sqlite", sql.DBStats{OpenConnections: 3, Idle: 2, InUse: 1})

	assert.Equal(t, 3.0, testutil.ToFloat64(collector.dbConnectionsOpen.WithLabelValues("sqlite")))
	assert.Equal(t, 2.0, testutil.ToFloat64(collector.dbConnectionsIdle.WithLabelValues("sqlite")))
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.dbConnectionsUse.WithLabelValues("sqlite")))
}

func TestCollector_ConcurrentRecording(t *testing.T) {
	collector := NewCollector(nextTestNamespace(), zap.NewNop())

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			collector.RecordHTTPRequest("GET", "/test", 200, 100*time.Millisecond, 1024, 2048)
			collector.ObserveStage(pipeline.StageExpand, pipeline.OutcomeSuccess, time.Millisecond)
			collector.ObserveRun(time.Second)
		}()
	}
	wg.Wait()

	assert.Equal(t, 10.0, testutil.ToFloat64(collector.httpRequestsTotal.WithLabelValues("GET", "/test", "2xx")))
	assert.Equal(t, 10.0, testutil.ToFloat64(collector.stageTotal.WithLabelValues("expand", "success")))
	assert.Equal(t, 10.0, testutil.ToFloat64(collector.runsTotal))
}

func TestCollector_MetricsRegistration(t *testing.T) {
	registry := prometheus.NewRegistry()
	collector := NewCollector(nextTestNamespace(), zap.NewNop())

	registry.MustRegister(collector.stageTotal)
	collector.ObserveStage(pipeline.StageExpand, pipeline.OutcomeSkipped, 0)

	families, err := registry.Gather()
	assert.NoError(t, err)
	assert.Len(t, families, 1)
}

func TestStatusCode(t *testing.T) {
	tests := map[int]string{200: "2xx", 302: "3xx", 404: "4xx", 500: "5xx", 100: "unknown"}
	for code, want := range tests {
		assert.Equal(t, want, statusCode(code))
	}
}
