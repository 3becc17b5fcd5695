package threed

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

// MeshyProvider 使用 Meshy image-to-3d API 生成模型.
type MeshyProvider struct {
	cfg    MeshyConfig
	client *http.Client
}

// NewMeshyProvider 创建新的 Meshy 3D 提供者.
func NewMeshyProvider(cfg MeshyConfig) *MeshyProvider {
	def := DefaultMeshyConfig()
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
	return &MeshyProvider{
		cfg:    cfg,
		client: tlsutil.SecureHTTPClient(cfg.Timeout),
	}
}

func (p *MeshyProvider) Name() string { return "meshy" }

type meshyImageTo3DRequest struct {
	ImageURL  string `json:"image_url"`
	AIModel   string `json:"ai_model,omitempty"`
	EnablePBR bool   `json:"enable_pbr,omitempty"`
}

type meshyTaskResponse struct {
	Result    string `json:"result"`
	ID        string `json:"id,omitempty"`
	Status    string `json:"status"`
	Progress  int    `json:"progress"`
	ModelURLs struct {
		GLB  string `json:"glb"`
		FBX  string `json:"fbx"`
		OBJ  string `json:"obj"`
		USDZ string `json:"usdz"`
	} `json:"model_urls"`
	ThumbnailURL string `json:"thumbnail_url"`
	TaskError    struct {
		Message string `json:"message"`
	} `json:"task_error"`
}

// Generate 创建 image-to-3d 任务并轮询到完成.
func (p *MeshyProvider) Generate(ctx context.Context, req *GenerateRequest) (*GenerateResponse, error) {
	if req.Image == "" && req.ImageURL == "" {
		return nil, fmt.Errorf("meshy: image or image_url is required")
	}

	taskID, err := p.createImageTo3DTask(ctx, req)
	if err != nil {
		return nil, err
	}

	result, err := p.pollTask(ctx, taskID)
	if err != nil {
		return nil, err
	}

	format := req.Format
	if format == "" {
		format = "glb"
	}

	var modelURL string
	switch format {
	case "fbx":
		modelURL = result.ModelURLs.FBX
	case "obj":
		modelURL = result.ModelURLs.OBJ
	case "usdz":
		modelURL = result.ModelURLs.USDZ
	default:
		modelURL = result.ModelURLs.GLB
	}

	return &GenerateResponse{
		Provider: p.Name(),
		Model:    p.cfg.Model,
		Models: []ModelData{{
			ID:           taskID,
			URL:          modelURL,
			Format:       format,
			ThumbnailURL: result.ThumbnailURL,
		}},
		CreatedAt: time.Now(),
	}, nil
}

func (p *MeshyProvider) createImageTo3DTask(ctx context.Context, req *GenerateRequest) (string, error) {
	imageURL := req.ImageURL
	if imageURL == "" {
		mime := req.MimeType
		if mime == "" {
			mime = "image/png"
		}
		imageURL = "data:" + mime + ";base64," + req.Image
	}
	model := req.Model
	if model == "" {
		model = p.cfg.Model
	}

	payload, err := json.Marshal(meshyImageTo3DRequest{ImageURL: imageURL, AIModel: model})
	if err != nil {
		return "", fmt.Errorf("failed to encode meshy request: %w", err)
	}
	endpoint := fmt.Sprintf("%s/image-to-3d", strings.TrimRight(p.cfg.BaseURL, "/"))

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("meshy request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("meshy error: status=%d body=%s", resp.StatusCode, string(errBody))
	}

	var mResp meshyTaskResponse
	if err := json.NewDecoder(resp.Body).Decode(&mResp); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}

	taskID := mResp.Result
	if taskID == "" {
		taskID = mResp.ID
	}
	if taskID == "" {
		return "", fmt.Errorf("meshy returned no task id")
	}
	return taskID, nil
}

func (p *MeshyProvider) pollTask(ctx context.Context, taskID string) (*meshyTaskResponse, error) {
	ticker := time.NewTicker(p.cfg.PollInterval)
	defer ticker.Stop()

	endpoint := fmt.Sprintf("%s/image-to-3d/%s", strings.TrimRight(p.cfg.BaseURL, "/"), taskID)
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
			httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
			if err != nil {
				return nil, fmt.Errorf("failed to create request: %w", err)
			}
			httpReq.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)

			resp, err := p.client.Do(httpReq)
			if err != nil {
				continue
			}

			var mResp meshyTaskResponse
			decodeErr := json.NewDecoder(resp.Body).Decode(&mResp)
			resp.Body.Close()
			if decodeErr != nil {
				continue
			}

			switch mResp.Status {
			case "SUCCEEDED":
				return &mResp, nil
			case "FAILED", "CANCELED", "EXPIRED":
				if mResp.TaskError.Message != "" {
					return nil, fmt.Errorf("meshy generation %s: %s", strings.ToLower(mResp.Status), mResp.TaskError.Message)
				}
				return nil, fmt.Errorf("meshy generation failed: %s", mResp.Status)
			}
		}
	}
}
