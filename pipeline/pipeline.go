package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/BaSui01/imagine3d/audit"
	"github.com/BaSui01/imagine3d/gateway"
	"github.com/BaSui01/imagine3d/types"
)

// Fallback expansion texts.
const (
	NoPromptText           = "No prompt provided."
	expanderUnavailableFmt = "LLM not available. Using original prompt: %s"
	expansionFailedFmt     = "Error expanding prompt: %s"
)

// Expander expands a prompt with a text model. It may fail.
type Expander interface {
	Expand(ctx context.Context, prompt string) (string, error)
}

// Connector opens the capability connections for one run.
type Connector interface {
	Connect(ctx context.Context, capabilityIDs []string) gateway.Gateway
}

// AuditStore is the write side of the audit log.
type AuditStore interface {
	EnsureSchema(ctx context.Context) error
	Record(ctx context.Context, rec *audit.GenerationRecord) error
}

// Observer receives per-stage results, e.g. for metrics.
type Observer interface {
	ObserveStage(stage string, kind OutcomeKind, duration time.Duration)
	ObserveAuditWrite(err error)
	ObserveRun(duration time.Duration)
}

// Config is the static part of the pipeline.
type Config struct {
	OutputDir            string
	ImageCapability      string
	ModelCapability      string
	DefaultModelFilename string
}

// RunConfig is resolved once per run from the caller's configuration and
// handed to Execute.
type RunConfig struct {
	// Caller is the identity capabilities are invoked under.
	Caller string
	// AppIDs are the capabilities the caller may connect to.
	AppIDs []string
}

// GenerationRequest is the input of one run.
type GenerationRequest struct {
	Prompt string `json:"prompt"`
}

// Pipeline runs expand, image, 3D and audit in that order. Every stage
// resolves to a StageOutcome and Execute never fails.
type Pipeline struct {
	cfg       Config
	expander  Expander
	connector Connector
	store     AuditStore
	observer  Observer
	tracer    trace.Tracer
	logger    *zap.Logger
	now       func() time.Time
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithObserver sets the stage observer.
func WithObserver(o Observer) Option {
	return func(p *Pipeline) {
		if o != nil {
			p.observer = o
		}
	}
}

// WithClock overrides time.Now, used for file names.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) {
		if now != nil {
			p.now = now
		}
	}
}

// WithTracer overrides the global OTel tracer.
func WithTracer(t trace.Tracer) Option {
	return func(p *Pipeline) {
		if t != nil {
			p.tracer = t
		}
	}
}

// New creates a Pipeline. expander may be nil, meaning expansion is
// unavailable. store must not be nil.
func New(cfg Config, expander Expander, connector Connector, store AuditStore, logger *zap.Logger, opts ...Option) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.DefaultModelFilename == "" {
		cfg.DefaultModelFilename = "generated_model.obj"
	}
	p := &Pipeline{
		cfg:       cfg,
		expander:  expander,
		connector: connector,
		store:     store,
		observer:  nopObserver{},
		tracer:    otel.Tracer("github.com/BaSui01/imagine3d/pipeline"),
		logger:    logger.With(zap.String("component", "pipeline")),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Execute performs one run. Failures are reported in the response only.
func (p *Pipeline) Execute(ctx context.Context, req GenerationRequest, run RunConfig) *GenerationResponse {
	// A run always reaches the audit write, even when the caller goes away;
	// values and the trace context are kept.
	ctx = context.WithoutCancel(ctx)

	runID := uuid.NewString()
	ctx = types.WithRunID(ctx, runID)
	ctx, span := p.tracer.Start(ctx, "pipeline.execute", trace.WithAttributes(
		attribute.String("run_id", runID),
		attribute.String("caller", run.Caller),
	))
	defer span.End()

	start := p.now()
	logger := p.runLogger(ctx)
	logger.Info("pipeline run started", zap.Int("prompt_chars", len(req.Prompt)))

	if err := p.store.EnsureSchema(ctx); err != nil {
		logger.Error("failed to ensure audit schema", zap.Error(err))
	}

	gw := p.connect(ctx, run)

	var expanded string
	expandOutcome := p.stage(ctx, StageExpand, func(ctx context.Context) StageOutcome {
		var out StageOutcome
		expanded, out = p.expand(ctx, req.Prompt)
		return out
	})
	if expanded == "" {
		// the expander panicked
		expanded = fmt.Sprintf(expansionFailedFmt, req.Prompt)
	}

	var image, model Artifact
	imageOutcome := p.stage(ctx, StageImage, func(ctx context.Context) StageOutcome {
		image = p.generateImage(ctx, gw, run.Caller, expanded)
		return image.Outcome
	})
	if image.Kind == "" {
		image = Artifact{Kind: ArtifactImage, Outcome: imageOutcome}
	}

	modelOutcome := p.stage(ctx, StageModel3D, func(ctx context.Context) StageOutcome {
		model = p.generate3D(ctx, gw, run.Caller, image)
		return model.Outcome
	})
	if model.Kind == "" {
		model = Artifact{Kind: ArtifactModel3D, Outcome: modelOutcome}
	}

	rec := &audit.GenerationRecord{
		OriginalPrompt: req.Prompt,
		ExpandedPrompt: expanded,
		ImagePath:      image.Path(),
		Model3DPath:    model.Path(),
	}
	p.persist(ctx, rec)

	resp := buildResponse(req.Prompt, expanded, expandOutcome, image, model)
	resp.RunID = runID
	resp.RecordID = rec.ID

	p.observer.ObserveRun(p.now().Sub(start))
	logger.Info("pipeline run finished",
		zap.String("image_path", resp.ImagePath),
		zap.String("model_3d_path", resp.Model3DPath),
		zap.String("status_message", resp.StatusMessage),
	)
	return resp
}

func (p *Pipeline) connect(ctx context.Context, run RunConfig) gateway.Gateway {
	if p.connector == nil {
		return gateway.Empty()
	}
	gw := p.connector.Connect(ctx, run.AppIDs)
	if gw == nil {
		return gateway.Empty()
	}
	return gw
}

// expand applies the fallback rules in priority order: empty prompt,
// unavailable expander, expansion error.
func (p *Pipeline) expand(ctx context.Context, prompt string) (string, StageOutcome) {
	logger := p.runLogger(ctx)

	if prompt == "" {
		logger.Warn("no prompt provided by the user")
		return NoPromptText, Failed("no prompt provided")
	}
	if p.expander == nil {
		logger.Warn("LLM not available, using original prompt")
		return fmt.Sprintf(expanderUnavailableFmt, prompt), Skipped("expander unavailable")
	}

	expanded, err := p.expander.Expand(ctx, prompt)
	if err != nil {
		logger.Error("error during LLM prompt expansion", zap.Error(err))
		return fmt.Sprintf(expansionFailedFmt, prompt), Failed(err.Error())
	}
	if expanded == "" {
		logger.Error("LLM prompt expansion returned an empty reply")
		return fmt.Sprintf(expansionFailedFmt, prompt), Failed("empty reply")
	}

	logger.Info("prompt expanded", zap.String("expanded_prompt", expanded))
	return expanded, Success(expanded)
}

// persist writes the audit row. Errors are logged and dropped.
func (p *Pipeline) persist(ctx context.Context, rec *audit.GenerationRecord) {
	ctx, span := p.tracer.Start(ctx, "pipeline.audit")
	defer span.End()

	err := p.safeRecord(ctx, rec)
	p.observer.ObserveAuditWrite(err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		p.runLogger(ctx).Error("error saving generation data to database", zap.Error(err))
		return
	}
	span.SetAttributes(attribute.Int64("record_id", int64(rec.ID)))
	p.runLogger(ctx).Info("generation data saved to database", zap.Uint("record_id", rec.ID))
}

func (p *Pipeline) safeRecord(ctx context.Context, rec *audit.GenerationRecord) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("audit store panic: %v", r)
		}
	}()
	return p.store.Record(ctx, rec)
}

// stage runs fn in a span, converts a panic into a failure and reports the
// outcome to the observer.
func (p *Pipeline) stage(ctx context.Context, name string, fn func(context.Context) StageOutcome) (out StageOutcome) {
	ctx, span := p.tracer.Start(ctx, "pipeline."+name)
	start := p.now()

	defer func() {
		if r := recover(); r != nil {
			p.runLogger(ctx).Error("stage panicked", zap.String("stage", name), zap.Any("panic", r))
			out = Failed(fmt.Sprintf("%v", r))
		}
		span.SetAttributes(attribute.String("outcome", out.Kind.String()))
		if out.Kind == OutcomeFailed {
			span.SetStatus(codes.Error, out.Reason)
		}
		span.End()
		p.observer.ObserveStage(name, out.Kind, p.now().Sub(start))
	}()

	return fn(ctx)
}

func (p *Pipeline) runLogger(ctx context.Context) *zap.Logger {
	if id, ok := types.RunID(ctx); ok {
		return p.logger.With(zap.String("run_id", id))
	}
	return p.logger
}

type nopObserver struct{}

func (nopObserver) ObserveStage(string, OutcomeKind, time.Duration) {}
func (nopObserver) ObserveAuditWrite(error)                         {}
func (nopObserver) ObserveRun(time.Duration)                        {}
