package expander

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/imagine3d/config"
	"github.com/BaSui01/imagine3d/llm"
	"github.com/BaSui01/imagine3d/llm/factory"
)

var (
	// ErrEmptyReply means generation succeeded but no reply text was left
	// after extraction.
	ErrEmptyReply = errors.New("model returned an empty reply")
	// ErrDisabled is returned by Load when expansion is turned off.
	ErrDisabled = errors.New("prompt expander disabled")
)

// Options are the generation settings applied to every expansion.
type Options struct {
	Template     ChatTemplate
	SystemPrompt string
	Model        string
	MaxNewTokens int
	Temperature  float32
	TopK         int
	TopP         float32
	DoSample     bool
}

// Expander turns a short user idea into a detailed image prompt with a
// chat-tuned text model. Output is sampled, so two calls with the same
// prompt usually differ.
type Expander struct {
	provider llm.Provider
	opts     Options
	logger   *zap.Logger
}

// New creates an Expander on provider.
func New(provider llm.Provider, opts Options, logger *zap.Logger) (*Expander, error) {
	if provider == nil {
		return nil, errors.New("text provider is required")
	}
	if opts.Template.AssistantHeader == "" {
		opts.Template = Zephyr
	}
	if opts.SystemPrompt == "" {
		opts.SystemPrompt = config.DefaultSystemPrompt
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Expander{
		provider: provider,
		opts:     opts,
		logger:   logger.With(zap.String("component", "expander"), zap.String("provider", provider.Name())),
	}, nil
}

// Expand renders prompt into the chat template, generates and returns the
// isolated assistant reply.
func (e *Expander) Expand(ctx context.Context, prompt string) (string, error) {
	rendered := e.opts.Template.Render(e.opts.SystemPrompt, prompt)

	resp, err := e.provider.Generate(ctx, &llm.GenerateRequest{
		Prompt:       rendered,
		Model:        e.opts.Model,
		MaxNewTokens: e.opts.MaxNewTokens,
		Temperature:  e.opts.Temperature,
		TopK:         e.opts.TopK,
		TopP:         e.opts.TopP,
		DoSample:     e.opts.DoSample,
	})
	if err != nil {
		return "", fmt.Errorf("generate: %w", err)
	}

	reply := e.opts.Template.ExtractReply(resp.Text, rendered)
	if reply == "" {
		return "", ErrEmptyReply
	}

	e.logger.Debug("prompt expanded",
		zap.Int("input_chars", len(prompt)),
		zap.Int("output_chars", len(reply)),
		zap.String("finish_reason", resp.FinishReason),
	)
	return reply, nil
}

// OptionsFromConfig maps the expander config section onto Options.
func OptionsFromConfig(cfg config.ExpanderConfig) (Options, error) {
	tmpl, err := TemplateByName(cfg.Template)
	if err != nil {
		return Options{}, err
	}
	return Options{
		Template:     tmpl,
		SystemPrompt: cfg.SystemPrompt,
		Model:        cfg.Model,
		MaxNewTokens: cfg.MaxNewTokens,
		Temperature:  float32(cfg.Temperature),
		TopK:         cfg.TopK,
		TopP:         float32(cfg.TopP),
		DoSample:     cfg.DoSample,
	}, nil
}

// Load builds the process-wide Expander once at startup. Any error means the
// expander is unavailable for the process lifetime and runs fall back to the
// original prompt.
func Load(ctx context.Context, cfg config.ExpanderConfig, logger *zap.Logger) (*Expander, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if !cfg.Enabled {
		return nil, ErrDisabled
	}

	opts, err := OptionsFromConfig(cfg)
	if err != nil {
		return nil, err
	}

	provider, err := factory.NewProviderFromConfig(cfg.Provider, factory.ProviderConfig{
		APIKey:  cfg.APIKey,
		BaseURL: cfg.BaseURL,
		Model:   cfg.Model,
		Timeout: cfg.Timeout,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("create text provider: %w", err)
	}

	if cfg.HealthCheckOnStart {
		hctx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		if _, err := provider.HealthCheck(hctx); err != nil {
			return nil, fmt.Errorf("text provider %s unhealthy: %w", provider.Name(), err)
		}
	}

	exp, err := New(provider, opts, logger)
	if err != nil {
		return nil, err
	}
	logger.Info("prompt expander ready",
		zap.String("provider", provider.Name()),
		zap.String("model", cfg.Model),
		zap.String("template", opts.Template.Name),
	)
	return exp, nil
}
