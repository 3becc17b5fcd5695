package factory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// =============================================================================
// Factory Tests
// =============================================================================

func TestNewProviderFromConfig(t *testing.T) {
	tests := []struct {
		providerName string
		wantName     string
	}{
		{"tgi", "tgi"},
		{"TGI", "tgi"},
		{"huggingface", "tgi"},
		{"openai-compat", "openai-compat"},
		{"vllm", "openai-compat"},
	}

	for _, tt := range tests {
		t.Run(tt.providerName, func(t *testing.T) {
			p, err := NewProviderFromConfig(tt.providerName, ProviderConfig{BaseURL: "http://localhost:8081"}, zap.NewNop())
			require.NoError(t, err)
			assert.Equal(t, tt.wantName, p.Name())
		})
	}
}

func TestNewProviderFromConfig_Errors(t *testing.T) {
	_, err := NewProviderFromConfig("tgi", ProviderConfig{}, nil)
	assert.ErrorContains(t, err, "base_url is required")

	_, err = NewProviderFromConfig("gpt-9", ProviderConfig{BaseURL: "http://x"}, nil)
	assert.ErrorContains(t, err, "unknown text provider")
	assert.ErrorContains(t, err, "tgi")
}

func TestSupportedProviders_Sorted(t *testing.T) {
	names := SupportedProviders()
	assert.IsIncreasing(t, names)
	assert.Contains(t, names, "openai-compat")
}
