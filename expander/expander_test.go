package expander

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/BaSui01/imagine3d/config"
	"github.com/BaSui01/imagine3d/llm"
	"github.com/BaSui01/imagine3d/testutil"
	"github.com/BaSui01/imagine3d/testutil/mocks"
)

type mockProvider struct {
	mock.Mock
}

func (m *mockProvider) Generate(ctx context.Context, req *llm.GenerateRequest) (*llm.GenerateResponse, error) {
	args := m.Called(ctx, req)
	resp, _ := args.Get(0).(*llm.GenerateResponse)
	return resp, args.Error(1)
}

func (m *mockProvider) HealthCheck(ctx context.Context) (*llm.HealthStatus, error) {
	return &llm.HealthStatus{Healthy: true}, nil
}

func (m *mockProvider) Name() string { return "mock" }

func testOptions() Options {
	opts, _ := OptionsFromConfig(config.DefaultExpanderConfig())
	return opts
}

func TestExpander_Expand(t *testing.T) {
	p := new(mockProvider)
	rendered := Zephyr.Render(config.DefaultSystemPrompt, "a cat")

	p.On("Generate", mock.Anything, mock.MatchedBy(func(req *llm.GenerateRequest) bool {
		return req.Prompt == rendered &&
			req.MaxNewTokens == 150 &&
			req.TopK == 50 &&
			req.DoSample
	})).Return(&llm.GenerateResponse{Text: rendered + "  A ginger cat curled on a sunny windowsill.  </s>"}, nil)

	exp, err := New(p, testOptions(), zaptest.NewLogger(t))
	require.NoError(t, err)

	got, err := exp.Expand(context.Background(), "a cat")
	require.NoError(t, err)
	assert.Equal(t, "A ginger cat curled on a sunny windowsill.", got)
	p.AssertExpectations(t)
}

func TestExpander_Expand_ProviderError(t *testing.T) {
	p := new(mockProvider)
	upstream := &llm.Error{Code: llm.ErrUpstreamError, Message: "boom"}
	p.On("Generate", mock.Anything, mock.Anything).Return(nil, upstream)

	exp, err := New(p, testOptions(), nil)
	require.NoError(t, err)

	_, err = exp.Expand(context.Background(), "a cat")
	require.Error(t, err)
	var llmErr *llm.Error
	assert.True(t, errors.As(err, &llmErr))
}

func TestExpander_Expand_EmptyReply(t *testing.T) {
	p := new(mockProvider)
	p.On("Generate", mock.Anything, mock.Anything).Return(&llm.GenerateResponse{Text: "<|assistant|>\n   </s>"}, nil)

	exp, err := New(p, Options{}, nil)
	require.NoError(t, err)

	_, err = exp.Expand(context.Background(), "a cat")
	assert.ErrorIs(t, err, ErrEmptyReply)
}

func TestExpander_Expand_EchoedPrompt(t *testing.T) {
	p := mocks.NewMockProvider().WithReply(" A ginger cat asleep in a sunbeam.</s>")

	exp, err := New(p, testOptions(), zaptest.NewLogger(t))
	require.NoError(t, err)

	got, err := exp.Expand(testutil.TestContext(t), "a cat")
	require.NoError(t, err)
	assert.Equal(t, "A ginger cat asleep in a sunbeam.", got)
	require.Equal(t, 1, p.CallCount())
	assert.Equal(t, Zephyr.Render(config.DefaultSystemPrompt, "a cat"), p.LastRequest().Prompt)
}

func TestExpander_Expand_FailsAfterFirstCall(t *testing.T) {
	p := mocks.NewMockProvider().WithFailAfter(1)

	exp, err := New(p, testOptions(), nil)
	require.NoError(t, err)

	_, err = exp.Expand(testutil.TestContext(t), "a cat")
	require.NoError(t, err)

	_, err = exp.Expand(testutil.TestContext(t), "a cat")
	assert.ErrorIs(t, err, mocks.ErrMockFailure)
}

func TestExpander_Expand_HonoursCancellation(t *testing.T) {
	p := mocks.NewMockProvider().WithDelay(time.Second)

	exp, err := New(p, testOptions(), nil)
	require.NoError(t, err)

	_, err = exp.Expand(testutil.CancelledContext(), "a cat")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNew_RequiresProvider(t *testing.T) {
	_, err := New(nil, Options{}, nil)
	assert.Error(t, err)
}

func TestLoad(t *testing.T) {
	healthy := true
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !healthy {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
	}))
	defer srv.Close()

	cfg := config.DefaultExpanderConfig()
	cfg.BaseURL = srv.URL

	exp, err := Load(context.Background(), cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.NotNil(t, exp)

	healthy = false
	_, err = Load(context.Background(), cfg, nil)
	assert.ErrorContains(t, err, "unhealthy")

	cfg.HealthCheckOnStart = false
	_, err = Load(context.Background(), cfg, nil)
	assert.NoError(t, err)

	cfg.Template = "nope"
	_, err = Load(context.Background(), cfg, nil)
	assert.Error(t, err)

	cfg.Enabled = false
	_, err = Load(context.Background(), cfg, nil)
	assert.ErrorIs(t, err, ErrDisabled)
}
