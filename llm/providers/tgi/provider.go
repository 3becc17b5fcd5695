package tgi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/BaSui01/imagine3d/internal/tlsutil"
	"github.com/BaSui01/imagine3d/llm"
	"github.com/BaSui01/imagine3d/llm/providers"
	"go.uber.org/zap"
)

// Config TGI 后端配置
type Config struct {
	providers.BaseProviderConfig `yaml:",inline"`
}

// Provider 通过 text-generation-inference 的 /generate 接口生成文本。
// 同样适用于 Hugging Face Inference Endpoints（返回数组形式）。
type Provider struct {
	cfg    Config
	client *http.Client
	logger *zap.Logger
}

// New 创建 TGI Provider
func New(cfg Config, logger *zap.Logger) *Provider {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 2 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Provider{
		cfg:    cfg,
		client: tlsutil.SecureHTTPClient(timeout),
		logger: logger.With(zap.String("provider", "tgi")),
	}
}

func (p *Provider) Name() string { return "tgi" }

type parameters struct {
	MaxNewTokens   int      `json:"max_new_tokens,omitempty"`
	Temperature    float32  `json:"temperature,omitempty"`
	TopK           int      `json:"top_k,omitempty"`
	TopP           float32  `json:"top_p,omitempty"`
	DoSample       bool     `json:"do_sample"`
	ReturnFullText bool     `json:"return_full_text"`
	Stop           []string `json:"stop,omitempty"`
}

type generateRequest struct {
	Inputs     string     `json:"inputs"`
	Parameters parameters `json:"parameters"`
}

type generation struct {
	GeneratedText string `json:"generated_text"`
	Details       *struct {
		FinishReason    string `json:"finish_reason"`
		GeneratedTokens int    `json:"generated_tokens"`
	} `json:"details,omitempty"`
}

// Generate 调用 POST {base}/generate。return_full_text 固定为 true，
// 返回文本以输入开头。
func (p *Provider) Generate(ctx context.Context, req *llm.GenerateRequest) (*llm.GenerateResponse, error) {
	if req == nil || req.Prompt == "" {
		return nil, &llm.Error{Code: llm.ErrInvalidRequest, Message: "prompt is required", HTTPStatus: http.StatusBadRequest, Provider: p.Name()}
	}

	params := parameters{
		MaxNewTokens:   req.MaxNewTokens,
		DoSample:       req.DoSample,
		ReturnFullText: true,
		Stop:           req.Stop,
	}
	// 贪心解码时 TGI 会拒绝采样参数
	if req.DoSample {
		params.Temperature = req.Temperature
		params.TopK = req.TopK
		params.TopP = req.TopP
	}

	payload, err := json.Marshal(generateRequest{Inputs: req.Prompt, Parameters: params})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, providers.Endpoint(p.cfg.BaseURL, "/generate"), bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if p.cfg.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)
	}

	start := time.Now()
	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, providers.UpstreamError(err, p.Name())
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		msg := providers.ReadErrorMessage(resp.Body)
		return nil, providers.MapHTTPError(resp.StatusCode, msg, p.Name())
	}

	gen, err := decodeGeneration(resp.Body)
	if err != nil {
		return nil, providers.UpstreamError(err, p.Name())
	}

	out := &llm.GenerateResponse{
		Provider:  p.Name(),
		Model:     providers.ChooseModel(req, p.cfg.Model),
		Text:      gen.GeneratedText,
		CreatedAt: time.Now(),
	}
	if gen.Details != nil {
		out.FinishReason = gen.Details.FinishReason
		out.Usage.CompletionTokens = gen.Details.GeneratedTokens
	}

	p.logger.Debug("generation completed",
		zap.Duration("latency", time.Since(start)),
		zap.Int("chars", len(out.Text)),
	)
	return out, nil
}

// decodeGeneration 接受对象与单元素数组两种响应形态
func decodeGeneration(r io.Reader) (*generation, error) {
	var raw json.RawMessage
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode generate response: %w", err)
	}
	raw = bytes.TrimSpace(raw)

	if len(raw) > 0 && raw[0] == '[' {
		var list []generation
		if err := json.Unmarshal(raw, &list); err != nil {
			return nil, fmt.Errorf("decode generate response: %w", err)
		}
		if len(list) == 0 {
			return nil, fmt.Errorf("generate response is an empty list")
		}
		return &list[0], nil
	}

	var gen generation
	if err := json.Unmarshal(raw, &gen); err != nil {
		return nil, fmt.Errorf("decode generate response: %w", err)
	}
	return &gen, nil
}

// HealthCheck 调用 GET {base}/health
func (p *Provider) HealthCheck(ctx context.Context) (*llm.HealthStatus, error) {
	start := time.Now()
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, providers.Endpoint(p.cfg.BaseURL, "/health"), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if p.cfg.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)
	}

	resp, err := p.client.Do(httpReq)
	latency := time.Since(start)
	if err != nil {
		return &llm.HealthStatus{Healthy: false, Latency: latency}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg := providers.ReadErrorMessage(resp.Body)
		return &llm.HealthStatus{Healthy: false, Latency: latency},
			fmt.Errorf("tgi health check failed: status=%d msg=%s", resp.StatusCode, msg)
	}
	return &llm.HealthStatus{Healthy: true, Latency: latency}, nil
}
