// =============================================================================
// OpenAI-Compatible Completions Provider
// =============================================================================
// Raw text completion against servers that speak the legacy OpenAI
// /v1/completions API (vLLM, llama.cpp server, LocalAI). The prompt is
// already rendered through a chat template, so chat completions would apply
// a second template on the server side.
// =============================================================================

package openaicompat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/BaSui01/imagine3d/internal/tlsutil"
	"github.com/BaSui01/imagine3d/llm"
	"github.com/BaSui01/imagine3d/llm/providers"
	"go.uber.org/zap"
)

// Config holds the configuration for an OpenAI-compatible provider.
type Config struct {
	// ProviderName is the unique identifier reported by Name(). Defaults to "openai-compat".
	ProviderName string

	APIKey string

	// BaseURL is the server root, e.g. "http://localhost:8000".
	BaseURL string

	// DefaultModel is used when the request does not name a model.
	DefaultModel string

	// Timeout is the HTTP client timeout. Defaults to 2m if zero.
	Timeout time.Duration

	// EndpointPath defaults to "/v1/completions".
	EndpointPath string

	// ModelsEndpoint defaults to "/v1/models" and backs HealthCheck.
	ModelsEndpoint string

	// BuildHeaders overrides the default "Authorization: Bearer <apiKey>" header.
	BuildHeaders func(req *http.Request, apiKey string)
}

// Provider implements llm.Provider on /v1/completions.
type Provider struct {
	Cfg    Config
	Client *http.Client
	Logger *zap.Logger
}

// New creates a new OpenAI-compatible provider with the given config.
func New(cfg Config, logger *zap.Logger) *Provider {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 2 * time.Minute
	}
	if cfg.ProviderName == "" {
		cfg.ProviderName = "openai-compat"
	}
	if cfg.EndpointPath == "" {
		cfg.EndpointPath = "/v1/completions"
	}
	if cfg.ModelsEndpoint == "" {
		cfg.ModelsEndpoint = "/v1/models"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Provider{
		Cfg:    cfg,
		Client: tlsutil.SecureHTTPClient(timeout),
		Logger: logger.With(zap.String("provider", cfg.ProviderName)),
	}
}

// Name returns the provider name.
func (p *Provider) Name() string { return p.Cfg.ProviderName }

func (p *Provider) buildHeaders(req *http.Request) {
	if p.Cfg.BuildHeaders != nil {
		p.Cfg.BuildHeaders(req, p.Cfg.APIKey)
		return
	}
	if p.Cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.Cfg.APIKey)
	}
	req.Header.Set("Content-Type", "application/json")
}

type completionRequest struct {
	Model       string   `json:"model,omitempty"`
	Prompt      string   `json:"prompt"`
	MaxTokens   int      `json:"max_tokens,omitempty"`
	Temperature float32  `json:"temperature"`
	TopP        float32  `json:"top_p,omitempty"`
	TopK        int      `json:"top_k,omitempty"` // vLLM / llama.cpp extension
	Stop        []string `json:"stop,omitempty"`
	Echo        bool     `json:"echo"`
}

type completionResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Created int64  `json:"created"`
	Choices []struct {
		Index        int    `json:"index"`
		Text         string `json:"text"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage *struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage,omitempty"`
}

// Generate performs a non-streaming completion with echo enabled.
func (p *Provider) Generate(ctx context.Context, req *llm.GenerateRequest) (*llm.GenerateResponse, error) {
	if req == nil || req.Prompt == "" {
		return nil, &llm.Error{Code: llm.ErrInvalidRequest, Message: "prompt is required", HTTPStatus: http.StatusBadRequest, Provider: p.Name()}
	}

	body := completionRequest{
		Model:     providers.ChooseModel(req, p.Cfg.DefaultModel),
		Prompt:    req.Prompt,
		MaxTokens: req.MaxNewTokens,
		Stop:      req.Stop,
		Echo:      true,
	}
	// temperature 0 is greedy decoding
	if req.DoSample {
		body.Temperature = req.Temperature
		body.TopP = req.TopP
		body.TopK = req.TopK
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, providers.Endpoint(p.Cfg.BaseURL, p.Cfg.EndpointPath), bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	p.buildHeaders(httpReq)

	resp, err := p.Client.Do(httpReq)
	if err != nil {
		return nil, providers.UpstreamError(err, p.Name())
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		msg := providers.ReadErrorMessage(resp.Body)
		return nil, providers.MapHTTPError(resp.StatusCode, msg, p.Name())
	}

	var cr completionResponse
	if err := json.NewDecoder(resp.Body).Decode(&cr); err != nil {
		return nil, providers.UpstreamError(err, p.Name())
	}
	if len(cr.Choices) == 0 {
		return nil, &llm.Error{
			Code: llm.ErrUpstreamError, Message: "completion returned no choices",
			HTTPStatus: http.StatusBadGateway, Provider: p.Name(),
		}
	}

	text := cr.Choices[0].Text
	// Some servers ignore echo; keep the "text starts with the prompt" contract.
	if !strings.HasPrefix(text, req.Prompt) {
		text = req.Prompt + text
	}

	out := &llm.GenerateResponse{
		Provider:     p.Name(),
		Model:        cr.Model,
		Text:         text,
		FinishReason: cr.Choices[0].FinishReason,
		CreatedAt:    time.Now(),
	}
	if cr.Created != 0 {
		out.CreatedAt = time.Unix(cr.Created, 0)
	}
	if cr.Usage != nil {
		out.Usage = llm.Usage{
			PromptTokens:     cr.Usage.PromptTokens,
			CompletionTokens: cr.Usage.CompletionTokens,
			TotalTokens:      cr.Usage.TotalTokens,
		}
	}
	return out, nil
}

// HealthCheck verifies the provider is reachable.
func (p *Provider) HealthCheck(ctx context.Context) (*llm.HealthStatus, error) {
	start := time.Now()
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, providers.Endpoint(p.Cfg.BaseURL, p.Cfg.ModelsEndpoint), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	p.buildHeaders(httpReq)

	resp, err := p.Client.Do(httpReq)
	latency := time.Since(start)
	if err != nil {
		return &llm.HealthStatus{Healthy: false, Latency: latency}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg := providers.ReadErrorMessage(resp.Body)
		return &llm.HealthStatus{Healthy: false, Latency: latency},
			fmt.Errorf("%s health check failed: status=%d msg=%s", p.Cfg.ProviderName, resp.StatusCode, msg)
	}

	return &llm.HealthStatus{Healthy: true, Latency: latency}, nil
}
