package threed

import "time"

// MeshyConfig configures the Meshy 3D provider.
type MeshyConfig struct {
	APIKey       string        `json:"api_key" yaml:"api_key"`
	BaseURL      string        `json:"base_url" yaml:"base_url"`
	Model        string        `json:"model,omitempty" yaml:"model,omitempty"`
	Timeout      time.Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`
	PollInterval time.Duration `json:"poll_interval,omitempty" yaml:"poll_interval,omitempty"`
}

// DefaultMeshyConfig returns default Meshy config.
func DefaultMeshyConfig() MeshyConfig {
	return MeshyConfig{
		BaseURL:      "https://api.meshy.ai/openapi/v1",
		Model:        "meshy-4",
		Timeout:      600 * time.Second,
		PollInterval: 5 * time.Second,
	}
}
