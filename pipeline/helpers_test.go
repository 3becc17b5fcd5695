package pipeline

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/BaSui01/imagine3d/audit"
	"github.com/BaSui01/imagine3d/gateway"
)

const (
	testImageCap = "image-cap"
	testModelCap = "model-cap"
)

var fixedNow = time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)

func testConfig(dir string) Config {
	return Config{
		OutputDir:            dir,
		ImageCapability:      testImageCap,
		ModelCapability:      testModelCap,
		DefaultModelFilename: "generated_model.obj",
	}
}

// capabilityFunc adapts a function to gateway.Capability and counts calls.
type capabilityFunc struct {
	mu    sync.Mutex
	calls []map[string]any
	fn    func(payload map[string]any) (*gateway.Result, error)
}

func (c *capabilityFunc) Invoke(_ context.Context, payload map[string]any, _ string) (*gateway.Result, error) {
	c.mu.Lock()
	c.calls = append(c.calls, payload)
	c.mu.Unlock()
	return c.fn(payload)
}

func (c *capabilityFunc) callCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.calls)
}

func returning(res *gateway.Result, err error) *capabilityFunc {
	return &capabilityFunc{fn: func(map[string]any) (*gateway.Result, error) { return res, err }}
}

// staticConnector connects whatever capabilities it holds, ignoring app ids.
type staticConnector struct {
	caps map[string]gateway.Capability
}

func (c staticConnector) Connect(context.Context, []string) gateway.Gateway {
	return gateway.NewStub(c.caps, nil)
}

func connectorWith(image, model gateway.Capability) staticConnector {
	caps := map[string]gateway.Capability{}
	if image != nil {
		caps[testImageCap] = image
	}
	if model != nil {
		caps[testModelCap] = model
	}
	return staticConnector{caps: caps}
}

type expanderFunc func(ctx context.Context, prompt string) (string, error)

func (f expanderFunc) Expand(ctx context.Context, prompt string) (string, error) { return f(ctx, prompt) }

func expandTo(text string) expanderFunc {
	return func(context.Context, string) (string, error) { return text, nil }
}

// memStore is an in-memory AuditStore.
type memStore struct {
	mu        sync.Mutex
	records   []audit.GenerationRecord
	recordErr error
	schemaErr error
	ensured   int
}

func (s *memStore) EnsureSchema(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensured++
	return s.schemaErr
}

func (s *memStore) Record(_ context.Context, rec *audit.GenerationRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.recordErr != nil {
		return s.recordErr
	}
	rec.ID = uint(len(s.records) + 1)
	s.records = append(s.records, *rec)
	return nil
}

var errBoom = errors.New("boom")

func hasSentinelPrefix(path string) bool {
	return strings.HasPrefix(path, ErrorPrefix) || strings.HasPrefix(path, SkippedPrefix)
}

func containsCount(s, sub string) int { return strings.Count(s, sub) }

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// recordingObserver collects stage outcomes.
type recordingObserver struct {
	mu     sync.Mutex
	stages map[string]OutcomeKind
	audits []error
	runs   int
}

func (o *recordingObserver) ObserveStage(stage string, kind OutcomeKind, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.stages == nil {
		o.stages = map[string]OutcomeKind{}
	}
	o.stages[stage] = kind
}

func (o *recordingObserver) ObserveAuditWrite(err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.audits = append(o.audits, err)
}

func (o *recordingObserver) ObserveRun(time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.runs++
}
