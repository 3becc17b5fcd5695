// Package threed provides image-to-3D model generation.
package threed

import (
	"context"
	"time"
)

// ThreeDProvider defines the interface for 3D model generation.
type ThreeDProvider interface {
	Name() string
	Generate(ctx context.Context, req *GenerateRequest) (*GenerateResponse, error)
}

// GenerateRequest represents an image-to-3D generation request.
type GenerateRequest struct {
	Image       string `json:"image,omitempty"`        // Base64 source image
	ImageURL    string `json:"image_url,omitempty"`    // Source image URL
	MimeType    string `json:"mime_type,omitempty"`    // Used with Image, default image/png
	Model       string `json:"model,omitempty"`        // Model to use
	Format      string `json:"format,omitempty"`       // Output format (glb, fbx, obj, usdz)
	TextureSize int    `json:"texture_size,omitempty"` // Texture resolution
}

// GenerateResponse represents a 3D generation response.
type GenerateResponse struct {
	Provider  string      `json:"provider"`
	Model     string      `json:"model"`
	Models    []ModelData `json:"models"`
	CreatedAt time.Time   `json:"created_at"`
}

// ModelData represents a generated 3D model.
type ModelData struct {
	ID           string `json:"id,omitempty"`
	URL          string `json:"url,omitempty"`      // Download URL
	B64Data      string `json:"b64_data,omitempty"` // Base64 encoded model
	Format       string `json:"format"`             // File format
	ThumbnailURL string `json:"thumbnail_url,omitempty"`
}
