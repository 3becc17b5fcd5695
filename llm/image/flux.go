package image

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/BaSui01/imagine3d/internal/tlsutil"
)

// FluxProvider implements image generation using Black Forest Labs Flux.
// API Docs: https://docs.bfl.ai/quick_start/generating_images
type FluxProvider struct {
	cfg    FluxConfig
	client *http.Client
}

// NewFluxProvider creates a new Flux image provider.
func NewFluxProvider(cfg FluxConfig) *FluxProvider {
	def := DefaultFluxConfig()
	if cfg.BaseURL == "" {
		cfg.BaseURL = def.BaseURL
	}
	if cfg.Model == "" {
		cfg.Model = def.Model
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = def.PollInterval
	}
	if cfg.MaxPolls <= 0 {
		cfg.MaxPolls = def.MaxPolls
	}

	return &FluxProvider{
		cfg:    cfg,
		client: tlsutil.SecureHTTPClient(cfg.Timeout),
	}
}

func (p *FluxProvider) Name() string { return "flux" }

type fluxRequest struct {
	Prompt       string  `json:"prompt"`
	AspectRatio  string  `json:"aspect_ratio,omitempty"` // e.g., "1:1", "16:9", "9:16"
	Steps        int     `json:"steps,omitempty"`
	Guidance     float64 `json:"guidance,omitempty"`
	Seed         int64   `json:"seed,omitempty"`
	OutputFormat string  `json:"output_format,omitempty"`
}

type fluxResponse struct {
	ID         string `json:"id"`
	Status     string `json:"status"`
	PollingURL string `json:"polling_url,omitempty"`
	Result     struct {
		Sample string `json:"sample"` // Signed URL (valid 10 min)
	} `json:"result,omitempty"`
}

// Generate submits a task to POST /v1/{model} and polls until the sample is ready.
// Auth: x-key header
func (p *FluxProvider) Generate(ctx context.Context, req *GenerateRequest) (*GenerateResponse, error) {
	model := req.Model
	if model == "" {
		model = p.cfg.Model
	}
	format := req.OutputFormat
	if format == "" {
		format = "png"
	}

	body := fluxRequest{
		Prompt:       req.Prompt,
		AspectRatio:  aspectRatio(req.Size),
		Steps:        req.Steps,
		Guidance:     req.CFGScale,
		Seed:         req.Seed,
		OutputFormat: format,
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to encode flux request: %w", err)
	}
	endpoint := fmt.Sprintf("%s/v1/%s", strings.TrimRight(p.cfg.BaseURL, "/"), model)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("x-key", p.cfg.APIKey)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("accept", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("flux request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("flux error: status=%d body=%s", resp.StatusCode, string(errBody))
	}

	var fResp fluxResponse
	if err := json.NewDecoder(resp.Body).Decode(&fResp); err != nil {
		return nil, fmt.Errorf("failed to decode flux response: %w", err)
	}

	if fResp.Status != "Ready" {
		pollingURL := fResp.PollingURL
		if pollingURL == "" {
			pollingURL = fmt.Sprintf("%s/v1/get_result?id=%s", strings.TrimRight(p.cfg.BaseURL, "/"), fResp.ID)
		}
		result, err := p.pollResult(ctx, pollingURL)
		if err != nil {
			return nil, err
		}
		fResp = *result
	}

	return &GenerateResponse{
		Provider: p.Name(),
		Model:    model,
		Images: []ImageData{{
			URL:    fResp.Result.Sample,
			Format: format,
			Seed:   req.Seed,
		}},
		CreatedAt: time.Now(),
	}, nil
}

// pollResult polls the polling URL until the task is Ready or fails.
func (p *FluxProvider) pollResult(ctx context.Context, pollingURL string) (*fluxResponse, error) {
	for i := 0; i < p.cfg.MaxPolls; i++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(p.cfg.PollInterval):
		}

		httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, pollingURL, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		httpReq.Header.Set("x-key", p.cfg.APIKey)
		httpReq.Header.Set("accept", "application/json")

		resp, err := p.client.Do(httpReq)
		if err != nil {
			continue
		}

		var fResp fluxResponse
		decodeErr := json.NewDecoder(resp.Body).Decode(&fResp)
		resp.Body.Close()
		if decodeErr != nil {
			continue
		}

		switch fResp.Status {
		case "Ready":
			return &fResp, nil
		case "Error", "Failed", "Content Moderated", "Request Moderated":
			return nil, fmt.Errorf("flux generation failed: %s", fResp.Status)
		}
	}

	return nil, fmt.Errorf("flux generation timeout after %d polls", p.cfg.MaxPolls)
}

func aspectRatio(size string) string {
	var width, height int
	if _, err := fmt.Sscanf(size, "%dx%d", &width, &height); err != nil || width <= 0 || height <= 0 {
		return "1:1"
	}
	switch {
	case width == height:
		return "1:1"
	case width > height:
		return "16:9"
	default:
		return "9:16"
	}
}
