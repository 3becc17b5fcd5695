// 包 image 提供文生图提供者接口.
package image

import (
	"context"
	"time"
)

// GenerateRequest 代表图像生成请求.
type GenerateRequest struct {
	Prompt         string  `json:"prompt"`
	NegativePrompt string  `json:"negative_prompt,omitempty"`
	Model          string  `json:"model,omitempty"`
	Size           string  `json:"size,omitempty"`          // 1024x1024, 1536x1024, etc.
	OutputFormat   string  `json:"output_format,omitempty"` // png, jpeg
	Seed           int64   `json:"seed,omitempty"`
	Steps          int     `json:"steps,omitempty"`
	CFGScale       float64 `json:"cfg_scale,omitempty"` // Guidance scale
}

// GenerateResponse 代表图像生成的响应.
type GenerateResponse struct {
	Provider  string      `json:"provider"`
	Model     string      `json:"model"`
	Images    []ImageData `json:"images"`
	CreatedAt time.Time   `json:"created_at"`
}

// ImageData 代表生成的图像，URL 与 B64JSON 至少一个非空.
type ImageData struct {
	URL     string `json:"url,omitempty"`
	B64JSON string `json:"b64_json,omitempty"`
	Format  string `json:"format,omitempty"`
	Seed    int64  `json:"seed,omitempty"`
}

// Provider 定义文生图提供者接口.
type Provider interface {
	// Generate 从文本提示生成图像.
	Generate(ctx context.Context, req *GenerateRequest) (*GenerateResponse, error)

	// Name 返回提供者名称.
	Name() string
}
