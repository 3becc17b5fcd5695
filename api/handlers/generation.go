package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/imagine3d/api"
	"github.com/BaSui01/imagine3d/audit"
	"github.com/BaSui01/imagine3d/internal/idempotency"
	"github.com/BaSui01/imagine3d/pipeline"
	"github.com/BaSui01/imagine3d/types"
)

// IdempotencyKeyHeader 客户端提供的幂等键请求头
const IdempotencyKeyHeader = "Idempotency-Key"

// maxIdempotencyKeyLen 幂等键长度上限
const maxIdempotencyKeyLen = 255

// =============================================================================
// 🎨 生成 Handler
// =============================================================================

// Runner 执行一次生成流水线
type Runner interface {
	Execute(ctx context.Context, req pipeline.GenerationRequest, run pipeline.RunConfig) *pipeline.GenerationResponse
}

// HistoryReader 审计记录的只读视图
type HistoryReader interface {
	List(ctx context.Context, limit, offset int) ([]audit.GenerationRecord, error)
	Get(ctx context.Context, id uint) (*audit.GenerationRecord, error)
	Count(ctx context.Context) (int64, error)
}

// CallerResolver 返回调用方需要连接的能力 ID
type CallerResolver interface {
	Resolve(userID string) []string
}

// IdempotencyRecorder 记录幂等命中情况（可选）
type IdempotencyRecorder interface {
	RecordIdempotencyHit()
	RecordIdempotencyMiss()
}

// GenerationOptions 生成 Handler 的可选依赖
type GenerationOptions struct {
	// DefaultCaller 未认证请求使用的调用方
	DefaultCaller string
	// Idempotency 为 nil 时忽略 Idempotency-Key
	Idempotency    idempotency.Manager
	IdempotencyTTL time.Duration
	Recorder       IdempotencyRecorder
}

// GenerationHandler 生成与历史查询处理器
type GenerationHandler struct {
	runner  Runner
	history HistoryReader
	callers CallerResolver
	opts    GenerationOptions
	logger  *zap.Logger
}

// NewGenerationHandler 创建生成处理器
func NewGenerationHandler(runner Runner, history HistoryReader, callers CallerResolver, opts GenerationOptions, logger *zap.Logger) *GenerationHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GenerationHandler{
		runner:  runner,
		history: history,
		callers: callers,
		opts:    opts,
		logger:  logger.With(zap.String("handler", "generation")),
	}
}

// RunConfigFor 解析一次运行的配置快照
func (h *GenerationHandler) RunConfigFor(ctx context.Context) pipeline.RunConfig {
	caller := h.opts.DefaultCaller
	if id, ok := types.UserID(ctx); ok {
		caller = id
	}
	run := pipeline.RunConfig{Caller: caller}
	if h.callers != nil {
		run.AppIDs = h.callers.Resolve(caller)
	}
	return run
}

// =============================================================================
// 🎯 HTTP 处理程序
// =============================================================================

// HandleCreate 处理 POST /api/v1/generations
// 流水线本身的失败只体现在响应内容中，因此总是返回 200。
// @Summary 运行生成流水线
// @Tags 生成
// @Accept json
// @Produce json
// @Param request body api.GenerateRequest true "生成请求"
// @Param Idempotency-Key header string false "幂等键"
// @Success 200 {object} Response "生成结果"
// @Failure 400 {object} Response "请求无效"
// @Failure 422 {object} Response "幂等键冲突"
// @Router /api/v1/generations [post]
func (h *GenerationHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	if !ValidateContentType(w, r, h.logger) {
		return
	}

	var req api.GenerateRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}

	ctx := r.Context()
	run := h.RunConfigFor(ctx)

	key := strings.TrimSpace(r.Header.Get(IdempotencyKeyHeader))
	if len(key) > maxIdempotencyKeyLen {
		WriteErrorMessage(w, r, http.StatusBadRequest, types.ErrInvalidRequest, "Idempotency-Key is too long", h.logger)
		return
	}

	var storeKey, fingerprint string
	if key != "" && h.opts.Idempotency != nil {
		storeKey = idempotency.Key(run.Caller, key)
		fingerprint, _ = idempotency.Fingerprint(req.Prompt)

		cached, found, err := idempotency.LookupTyped[pipeline.GenerationResponse](h.opts.Idempotency, ctx, storeKey, fingerprint)
		switch {
		case errors.Is(err, idempotency.ErrConflict):
			WriteError(w, r, types.NewError(types.ErrIdempotencyConflict, "Idempotency-Key was already used with a different request").WithCause(err), h.logger)
			return
		case err != nil:
			h.logger.Warn("idempotency lookup failed, running pipeline", zap.Error(err))
		case found:
			h.recordIdempotency(true)
			h.logger.Info("replaying generation response", zap.Uint("record_id", cached.RecordID))
			w.Header().Set("Idempotent-Replayed", "true")
			WriteSuccess(w, r, &cached)
			return
		default:
			h.recordIdempotency(false)
		}
	}

	resp := h.runner.Execute(ctx, pipeline.GenerationRequest{Prompt: req.Prompt}, run)

	if storeKey != "" {
		// 客户端断开后也要保存结果，以便重试时重放
		saveCtx := context.WithoutCancel(ctx)
		if err := idempotency.SaveTyped(h.opts.Idempotency, saveCtx, storeKey, fingerprint, resp, h.opts.IdempotencyTTL); err != nil {
			h.logger.Warn("failed to store idempotent response", zap.Error(err))
		}
	}

	WriteSuccess(w, r, resp)
}

func (h *GenerationHandler) recordIdempotency(hit bool) {
	if h.opts.Recorder == nil {
		return
	}
	if hit {
		h.opts.Recorder.RecordIdempotencyHit()
	} else {
		h.opts.Recorder.RecordIdempotencyMiss()
	}
}

// HandleList 处理 GET /api/v1/generations?limit=&offset=
// @Summary 审计记录列表
// @Tags 生成
// @Produce json
// @Param limit query int false "每页数量（默认 20，最大 100）"
// @Param offset query int false "偏移"
// @Success 200 {object} Response{data=api.GenerationList} "记录列表"
// @Router /api/v1/generations [get]
func (h *GenerationHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit")
	if err != nil {
		WriteErrorMessage(w, r, http.StatusBadRequest, types.ErrInvalidRequest, "limit must be an integer", h.logger)
		return
	}
	offset, err := queryInt(r, "offset")
	if err != nil {
		WriteErrorMessage(w, r, http.StatusBadRequest, types.ErrInvalidRequest, "offset must be an integer", h.logger)
		return
	}
	limit, offset = audit.NormalizePage(limit, offset)

	ctx := r.Context()
	rows, err := h.history.List(ctx, limit, offset)
	if err != nil {
		WriteError(w, r, types.NewError(types.ErrInternalError, "failed to list generations").WithCause(err), h.logger)
		return
	}
	total, err := h.history.Count(ctx)
	if err != nil {
		WriteError(w, r, types.NewError(types.ErrInternalError, "failed to count generations").WithCause(err), h.logger)
		return
	}

	items := make([]api.GenerationRecord, 0, len(rows))
	for i := range rows {
		items = append(items, toAPIRecord(&rows[i]))
	}
	WriteSuccess(w, r, api.GenerationList{
		Items:  items,
		Total:  total,
		Limit:  limit,
		Offset: offset,
	})
}

// HandleGet 处理 GET /api/v1/generations/{id}
// @Summary 查询单条审计记录
// @Tags 生成
// @Produce json
// @Param id path int true "记录 ID"
// @Success 200 {object} Response{data=api.GenerationRecord} "记录"
// @Failure 404 {object} Response "记录不存在"
// @Router /api/v1/generations/{id} [get]
func (h *GenerationHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(r.PathValue("id"), 10, 0)
	if err != nil || id == 0 {
		WriteErrorMessage(w, r, http.StatusBadRequest, types.ErrInvalidRequest, "id must be a positive integer", h.logger)
		return
	}

	rec, err := h.history.Get(r.Context(), uint(id))
	if errors.Is(err, audit.ErrNotFound) {
		WriteErrorMessage(w, r, http.StatusNotFound, types.ErrNotFound, "generation not found", h.logger)
		return
	}
	if err != nil {
		WriteError(w, r, types.NewError(types.ErrInternalError, "failed to load generation").WithCause(err), h.logger)
		return
	}

	WriteSuccess(w, r, toAPIRecord(rec))
}

func queryInt(r *http.Request, name string) (int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return 0, nil
	}
	return strconv.Atoi(v)
}

func toAPIRecord(rec *audit.GenerationRecord) api.GenerationRecord {
	return api.GenerationRecord{
		ID:             rec.ID,
		Timestamp:      rec.Timestamp,
		OriginalPrompt: rec.OriginalPrompt,
		ExpandedPrompt: rec.ExpandedPrompt,
		ImagePath:      rec.ImagePath,
		Model3DPath:    rec.Model3DPath,
	}
}
