// Package factory provides a centralized factory for creating text generation
// Provider instances by name. It imports the provider sub-packages so the llm
// package does not have to.
package factory

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/BaSui01/imagine3d/llm"
	"github.com/BaSui01/imagine3d/llm/providers"
	"github.com/BaSui01/imagine3d/llm/providers/openaicompat"
	"github.com/BaSui01/imagine3d/llm/providers/tgi"
	"go.uber.org/zap"
)

// ProviderConfig is the generic configuration accepted by the factory function.
type ProviderConfig struct {
	APIKey  string        `json:"api_key" yaml:"api_key"`
	BaseURL string        `json:"base_url" yaml:"base_url"`
	Model   string        `json:"model,omitempty" yaml:"model,omitempty"`
	Timeout time.Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`
}

type constructor func(cfg ProviderConfig, logger *zap.Logger) llm.Provider

var constructors = map[string]constructor{
	"tgi": func(cfg ProviderConfig, logger *zap.Logger) llm.Provider {
		return tgi.New(tgi.Config{BaseProviderConfig: providers.BaseProviderConfig{
			APIKey:  cfg.APIKey,
			BaseURL: cfg.BaseURL,
			Model:   cfg.Model,
			Timeout: cfg.Timeout,
		}}, logger)
	},
	"openai-compat": func(cfg ProviderConfig, logger *zap.Logger) llm.Provider {
		return openaicompat.New(openaicompat.Config{
			APIKey:       cfg.APIKey,
			BaseURL:      cfg.BaseURL,
			DefaultModel: cfg.Model,
			Timeout:      cfg.Timeout,
		}, logger)
	},
}

// aliases map alternate spellings onto canonical names.
var aliases = map[string]string{
	"text-generation-inference": "tgi",
	"huggingface":               "tgi",
	"openaicompat":              "openai-compat",
	"vllm":                      "openai-compat",
	"llamacpp":                  "openai-compat",
}

// NewProviderFromConfig creates a Provider instance based on the provider name.
//
// Supported names: tgi, openai-compat (and the aliases in SupportedProviders).
func NewProviderFromConfig(name string, cfg ProviderConfig, logger *zap.Logger) (llm.Provider, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, fmt.Errorf("provider %q: base_url is required", name)
	}

	key := strings.ToLower(strings.TrimSpace(name))
	if canonical, ok := aliases[key]; ok {
		key = canonical
	}
	ctor, ok := constructors[key]
	if !ok {
		return nil, fmt.Errorf("unknown text provider %q (supported: %s)", name, strings.Join(SupportedProviders(), ", "))
	}
	return ctor(cfg, logger), nil
}

// SupportedProviders returns every accepted name, sorted.
func SupportedProviders() []string {
	names := make([]string, 0, len(constructors)+len(aliases))
	for n := range constructors {
		names = append(names, n)
	}
	for n := range aliases {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
