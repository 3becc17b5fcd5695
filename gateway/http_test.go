package gateway

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/BaSui01/imagine3d/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dialHTTP(t *testing.T, handler http.HandlerFunc) Capability {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/manifest" {
			w.WriteHeader(http.StatusOK)
			return
		}
		handler(w, r)
	}))
	t.Cleanup(srv.Close)

	u, err := url.Parse(srv.URL)
	require.NoError(t, err)
	c, err := NewHTTPDialer(5*time.Second).Dial(context.Background(), "cap", u)
	require.NoError(t, err)
	return c
}

func TestHTTPCapability_JSONResult(t *testing.T) {
	c := dialHTTP(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/execution", r.URL.Path)
		assert.Equal(t, "super-user", r.Header.Get("X-Caller-ID"))
		var payload map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, "a cat", payload["prompt"])

		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		_ = json.NewEncoder(w).Encode(map[string]string{
			"result":   base64.StdEncoding.EncodeToString([]byte("PNGDATA")),
			"filename": "cat.png",
		})
	})

	res, err := c.Invoke(context.Background(), map[string]any{"prompt": "a cat"}, "super-user")
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, []byte("PNGDATA"), res.Data)
	assert.Equal(t, "cat.png", res.Filename)
}

func TestHTTPCapability_BinaryResult(t *testing.T) {
	c := dialHTTP(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "model/obj")
		w.Header().Set("Content-Disposition", `attachment; filename="mesh.obj"`)
		_, _ = w.Write([]byte("v 0 0 0"))
	})

	res, err := c.Invoke(context.Background(), map[string]any{}, "u")
	require.NoError(t, err)
	assert.Equal(t, []byte("v 0 0 0"), res.Data)
	assert.Equal(t, "mesh.obj", res.Filename)
	assert.Equal(t, "model/obj", res.MimeType)
}

func TestHTTPCapability_NoResultObject(t *testing.T) {
	for name, handler := range map[string]http.HandlerFunc{
		"json null": func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte("null"))
		},
		"no content": func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		},
	} {
		t.Run(name, func(t *testing.T) {
			res, err := dialHTTP(t, handler).Invoke(context.Background(), nil, "u")
			require.NoError(t, err)
			assert.Nil(t, res)
		})
	}
}

func TestHTTPCapability_MissingResultField(t *testing.T) {
	c := dialHTTP(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"filename":"x.obj","result":null}`))
	})

	res, err := c.Invoke(context.Background(), nil, "u")
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Empty(t, res.Data)
	assert.Equal(t, "x.obj", res.Filename)
}

func TestHTTPCapability_Errors(t *testing.T) {
	t.Run("upstream status", func(t *testing.T) {
		c := dialHTTP(t, func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "model crashed", http.StatusBadGateway)
		})
		_, err := c.Invoke(context.Background(), nil, "u")
		require.Error(t, err)
		assert.Equal(t, types.ErrUpstreamError, types.GetErrorCode(err))
		assert.True(t, types.IsRetryable(err))
		assert.Contains(t, err.Error(), "model crashed")
	})

	t.Run("bad base64", func(t *testing.T) {
		c := dialHTTP(t, func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"result":"!!!not-base64"}`))
		})
		_, err := c.Invoke(context.Background(), nil, "u")
		assert.Error(t, err)
	})

	t.Run("result not a string", func(t *testing.T) {
		c := dialHTTP(t, func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"result":42}`))
		})
		_, err := c.Invoke(context.Background(), nil, "u")
		assert.Error(t, err)
	})
}

func TestHTTPDialer_ProbeFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	u, _ := url.Parse(srv.URL)
	_, err := NewHTTPDialer(time.Second).Dial(context.Background(), "cap", u)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}

func TestDispositionFilename(t *testing.T) {
	assert.Equal(t, "a.glb", dispositionFilename(`attachment; filename="a.glb"`))
	assert.Equal(t, "", dispositionFilename(""))
	assert.Equal(t, "", dispositionFilename("attachment"))
}
