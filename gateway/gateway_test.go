package gateway

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capabilityFunc func(ctx context.Context, payload map[string]any, caller string) (*Result, error)

func (f capabilityFunc) Invoke(ctx context.Context, payload map[string]any, caller string) (*Result, error) {
	return f(ctx, payload, caller)
}

func TestStub_HasConnectionAndInvoke(t *testing.T) {
	var gotCaller string
	stub := NewStub(map[string]Capability{
		"img": capabilityFunc(func(_ context.Context, payload map[string]any, caller string) (*Result, error) {
			gotCaller = caller
			return &Result{Data: []byte(payload["prompt"].(string))}, nil
		}),
		"nil-entry": nil,
	}, nil)

	assert.True(t, stub.HasConnection("img"))
	assert.False(t, stub.HasConnection("nil-entry"))
	assert.False(t, stub.HasConnection("3d"))
	assert.Equal(t, []string{"img"}, stub.Connections())

	res, err := stub.Invoke(context.Background(), "img", map[string]any{"prompt": "cat"}, "super-user")
	require.NoError(t, err)
	assert.Equal(t, []byte("cat"), res.Data)
	assert.Equal(t, "super-user", gotCaller)
}

func TestStub_InvokeNotConnected(t *testing.T) {
	_, err := Empty().Invoke(context.Background(), "missing", nil, "u")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotConnected))
}
