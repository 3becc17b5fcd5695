package tgi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/imagine3d/llm"
	"github.com/BaSui01/imagine3d/llm/providers"
)

func newTestProvider(t *testing.T, h http.HandlerFunc) *Provider {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return New(Config{BaseProviderConfig: providers.BaseProviderConfig{BaseURL: srv.URL, Model: "tiny", APIKey: "k"}}, nil)
}

func TestProvider_Generate_ObjectResponse(t *testing.T) {
	var got generateRequest
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/generate", r.URL.Path)
		assert.Equal(t, "Bearer k", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"generated_text":"<|user|>\nhi</s>\n<|assistant|>\nhello","details":{"finish_reason":"length","generated_tokens":3}}`))
	})

	resp, err := p.Generate(context.Background(), &llm.GenerateRequest{
		Prompt:       "<|user|>\nhi</s>\n<|assistant|>\n",
		MaxNewTokens: 150,
		Temperature:  0.7,
		TopK:         50,
		TopP:         0.95,
		DoSample:     true,
	})
	require.NoError(t, err)

	assert.Equal(t, "<|user|>\nhi</s>\n<|assistant|>\n", got.Inputs)
	assert.Equal(t, 150, got.Parameters.MaxNewTokens)
	assert.InDelta(t, 0.7, got.Parameters.Temperature, 1e-6)
	assert.Equal(t, 50, got.Parameters.TopK)
	assert.True(t, got.Parameters.DoSample)
	assert.True(t, got.Parameters.ReturnFullText)

	assert.Equal(t, "<|user|>\nhi</s>\n<|assistant|>\nhello", resp.Text)
	assert.Equal(t, "length", resp.FinishReason)
	assert.Equal(t, 3, resp.Usage.CompletionTokens)
	assert.Equal(t, "tiny", resp.Model)
	assert.Equal(t, "tgi", resp.Provider)
}

func TestProvider_Generate_ArrayResponse(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"generated_text":"prompt and more"}]`))
	})

	resp, err := p.Generate(context.Background(), &llm.GenerateRequest{Prompt: "prompt"})
	require.NoError(t, err)
	assert.Equal(t, "prompt and more", resp.Text)
}

func TestProvider_Generate_GreedyOmitsSampling(t *testing.T) {
	var raw map[string]map[string]any
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&raw))
		_, _ = w.Write([]byte(`{"generated_text":"x"}`))
	})

	_, err := p.Generate(context.Background(), &llm.GenerateRequest{Prompt: "x", Temperature: 0.7, TopK: 50})
	require.NoError(t, err)
	assert.NotContains(t, raw["parameters"], "temperature")
	assert.NotContains(t, raw["parameters"], "top_k")
	assert.Equal(t, false, raw["parameters"]["do_sample"])
}

func TestProvider_Generate_Errors(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":"Model is overloaded","error_type":"overloaded"}`))
	})

	_, err := p.Generate(context.Background(), &llm.GenerateRequest{Prompt: "x"})
	var llmErr *llm.Error
	require.True(t, errors.As(err, &llmErr))
	assert.Equal(t, llm.ErrRateLimited, llmErr.Code)
	assert.True(t, llmErr.Retryable)
	assert.Equal(t, "Model is overloaded (type: overloaded)", llmErr.Message)

	_, err = p.Generate(context.Background(), &llm.GenerateRequest{})
	require.True(t, errors.As(err, &llmErr))
	assert.Equal(t, llm.ErrInvalidRequest, llmErr.Code)
}

func TestProvider_Generate_EmptyList(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	})
	_, err := p.Generate(context.Background(), &llm.GenerateRequest{Prompt: "x"})
	assert.Error(t, err)
}

func TestProvider_HealthCheck(t *testing.T) {
	healthy := true
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/health", r.URL.Path)
		if !healthy {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
	})

	status, err := p.HealthCheck(context.Background())
	require.NoError(t, err)
	assert.True(t, status.Healthy)

	healthy = false
	status, err = p.HealthCheck(context.Background())
	assert.Error(t, err)
	assert.False(t, status.Healthy)
}
