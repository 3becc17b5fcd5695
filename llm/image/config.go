package image

import "time"

// FluxConfig 配置 Black Forest Labs Flux 提供者.
type FluxConfig struct {
	APIKey       string        `json:"api_key" yaml:"api_key"`
	BaseURL      string        `json:"base_url" yaml:"base_url"`
	Model        string        `json:"model,omitempty" yaml:"model,omitempty"` // flux-1.1-pro
	Timeout      time.Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`
	PollInterval time.Duration `json:"poll_interval,omitempty" yaml:"poll_interval,omitempty"`
	MaxPolls     int           `json:"max_polls,omitempty" yaml:"max_polls,omitempty"`
}

// DefaultFluxConfig 返回默认 Flux 配置.
func DefaultFluxConfig() FluxConfig {
	return FluxConfig{
		BaseURL:      "https://api.bfl.ml",
		Model:        "flux-1.1-pro",
		Timeout:      120 * time.Second,
		PollInterval: 2 * time.Second,
		MaxPolls:     120,
	}
}
