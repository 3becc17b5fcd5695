package threed

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMeshyProvider_GenerateFromBase64(t *testing.T) {
	var polls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer k", r.Header.Get("Authorization"))
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/image-to-3d":
			var body meshyImageTo3DRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.True(t, strings.HasPrefix(body.ImageURL, "data:image/png;base64,"))
			assert.Equal(t, "meshy-4", body.AIModel)
			_ = json.NewEncoder(w).Encode(map[string]string{"result": "task-9"})
		case r.Method == http.MethodGet && r.URL.Path == "/image-to-3d/task-9":
			status := "IN_PROGRESS"
			if polls.Add(1) >= 2 {
				status = "SUCCEEDED"
			}
			_ = json.NewEncoder(w).Encode(map[string]any{
				"id":     "task-9",
				"status": status,
				"model_urls": map[string]string{
					"glb": "https://cdn/model.glb",
					"obj": "https://cdn/model.obj",
				},
			})
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	p := NewMeshyProvider(MeshyConfig{APIKey: "k", BaseURL: srv.URL, PollInterval: 5 * time.Millisecond})

	resp, err := p.Generate(context.Background(), &GenerateRequest{Image: "aGVsbG8=", Format: "obj"})
	require.NoError(t, err)
	require.Len(t, resp.Models, 1)
	assert.Equal(t, "https://cdn/model.obj", resp.Models[0].URL)
	assert.Equal(t, "obj", resp.Models[0].Format)
	assert.Equal(t, "task-9", resp.Models[0].ID)
}

func TestMeshyProvider_TaskFailed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			_ = json.NewEncoder(w).Encode(map[string]string{"result": "t1"})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status":     "FAILED",
			"task_error": map[string]string{"message": "image too small"},
		})
	}))
	defer srv.Close()

	p := NewMeshyProvider(MeshyConfig{BaseURL: srv.URL, PollInterval: time.Millisecond})
	_, err := p.Generate(context.Background(), &GenerateRequest{ImageURL: "https://x/img.png"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "image too small")
}

func TestMeshyProvider_RequiresImage(t *testing.T) {
	p := NewMeshyProvider(MeshyConfig{})
	_, err := p.Generate(context.Background(), &GenerateRequest{})
	assert.Error(t, err)
}

func TestMeshyProvider_ContextCanceled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			_ = json.NewEncoder(w).Encode(map[string]string{"result": "t1"})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "PENDING"})
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	p := NewMeshyProvider(MeshyConfig{BaseURL: srv.URL, PollInterval: 2 * time.Millisecond})
	_, err := p.Generate(ctx, &GenerateRequest{Image: "eA=="})
	require.Error(t, err)
}
