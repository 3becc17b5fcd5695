package main

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/BaSui01/imagine3d/config"
	"github.com/BaSui01/imagine3d/internal/idempotency"
	"github.com/BaSui01/imagine3d/internal/metrics"
	"github.com/BaSui01/imagine3d/pipeline"
)

var pngBytes = []byte("\x89PNG\r\n\x1a\nfake")

// fakeCapabilities serves an image and a 3D capability over the HTTP protocol
func fakeCapabilities(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{cap}/manifest", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("POST /image/execution", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(pngBytes)
	})
	mux.HandleFunc("POST /model/execution", func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]any
		_ = json.NewDecoder(r.Body).Decode(&payload)
		if payload["image"] == nil {
			http.Error(w, "missing image", http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/octet-stream")
		w.Header().Set("Content-Disposition", `attachment; filename="cat.obj"`)
		_, _ = w.Write([]byte("o cat\n"))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func testConfig(t *testing.T, capabilities string) *config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.Pipeline.OutputDir = filepath.Join(dir, "outputs")
	cfg.Pipeline.ImageCapability = "img"
	cfg.Pipeline.ModelCapability = "mdl"
	cfg.Pipeline.Users = map[string]config.UserConfig{
		cfg.Pipeline.DefaultCaller: {AppIDs: []string{"img", "mdl"}},
	}
	cfg.Expander.Enabled = false
	cfg.Database.Name = filepath.Join(dir, "audit.db")
	cfg.Gateway.Endpoints = map[string]string{
		"img": capabilities + "/image",
		"mdl": capabilities + "/model",
	}
	return cfg
}

func newTestServer(t *testing.T, cfg *config.Config) (*Server, http.Handler) {
	t.Helper()
	logger := zaptest.NewLogger(t)
	s := NewServer(cfg, logger, nil)
	s.metricsCollector = metrics.NewCollector(nextTestNamespace(), logger)

	a, err := newApp(t.Context(), cfg, logger, pipeline.WithObserver(s.metricsCollector))
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	s.app = a

	mgr := idempotency.NewMemoryManager(logger)
	t.Cleanup(func() { _ = mgr.Close() })
	s.idempotency = mgr

	s.initHandlers()
	return s, Chain(s.routes(), RequestID())
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any, headers map[string]string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(b)
	}
	r := httptest.NewRequest(method, path, rd)
	if body != nil {
		r.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		r.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	var env envelope
	_ = json.Unmarshal(w.Body.Bytes(), &env)
	return w, env
}

func TestServer_GenerateEndToEnd(t *testing.T) {
	caps := fakeCapabilities(t)
	cfg := testConfig(t, caps.URL)
	_, h := newTestServer(t, cfg)

	w, env := doJSON(t, h, http.MethodPost, "/api/v1/generations", map[string]string{"prompt": "a cat"}, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.True(t, env.Success)

	var resp pipeline.GenerationResponse
	require.NoError(t, json.Unmarshal(env.Data, &resp))
	assert.Equal(t, "a cat", resp.OriginalPrompt)
	assert.Equal(t, "LLM not available. Using original prompt: a cat", resp.ExpandedPrompt)
	assert.Equal(t, "Pipeline execution completed.", resp.StatusMessage)
	require.NotZero(t, resp.RecordID)

	img, err := os.ReadFile(resp.ImagePath)
	require.NoError(t, err)
	assert.Equal(t, pngBytes, img)
	assert.True(t, strings.HasSuffix(resp.Model3DPath, "_cat.obj"), resp.Model3DPath)
	model, err := os.ReadFile(resp.Model3DPath)
	require.NoError(t, err)
	assert.Equal(t, "o cat\n", string(model))

	// the artifact is downloadable
	r := httptest.NewRequest(http.MethodGet, "/outputs/"+filepath.Base(resp.ImagePath), nil)
	dl := httptest.NewRecorder()
	h.ServeHTTP(dl, r)
	assert.Equal(t, http.StatusOK, dl.Code)
	assert.Equal(t, pngBytes, dl.Body.Bytes())

	// and recorded
	w, env = doJSON(t, h, http.MethodGet, "/api/v1/generations/"+itoa(resp.RecordID), nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var rec map[string]any
	require.NoError(t, json.Unmarshal(env.Data, &rec))
	assert.Equal(t, resp.ImagePath, rec["image_path"])
	assert.Equal(t, resp.Model3DPath, rec["model_3d_path"])
}

func TestServer_UnknownCallerSkipsGeneration(t *testing.T) {
	caps := fakeCapabilities(t)
	cfg := testConfig(t, caps.URL)
	cfg.Pipeline.DefaultCaller = "nobody"
	_, h := newTestServer(t, cfg)

	_, env := doJSON(t, h, http.MethodPost, "/api/v1/generations", map[string]string{"prompt": "a cat"}, nil)
	var resp pipeline.GenerationResponse
	require.NoError(t, json.Unmarshal(env.Data, &resp))
	assert.Equal(t, "Skipped: Text-to-Image app not available.", resp.ImagePath)
	assert.Equal(t, "Skipped: Image generation failed or was skipped.", resp.Model3DPath)

	_, err := os.Stat(cfg.Pipeline.OutputDir)
	assert.True(t, os.IsNotExist(err), "no artifact means no output directory")
}

func TestServer_UserConfigDrivesLaterRuns(t *testing.T) {
	caps := fakeCapabilities(t)
	cfg := testConfig(t, caps.URL)
	cfg.Pipeline.DefaultCaller = "carol"
	_, h := newTestServer(t, cfg)

	w, _ := doJSON(t, h, http.MethodGet, "/api/v1/users/carol/config", nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, _ = doJSON(t, h, http.MethodPut, "/api/v1/users/carol/config", map[string]any{"app_ids": []string{"img"}}, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	_, env := doJSON(t, h, http.MethodPost, "/api/v1/generations", map[string]string{"prompt": "a dog"}, nil)
	var resp pipeline.GenerationResponse
	require.NoError(t, json.Unmarshal(env.Data, &resp))
	assert.FileExists(t, resp.ImagePath)
	assert.Equal(t, "Skipped: Image-to-3D app not available.", resp.Model3DPath)
	assert.Contains(t, resp.StatusMessage, "3D model generation issue")
}

func TestServer_IdempotentReplay(t *testing.T) {
	caps := fakeCapabilities(t)
	cfg := testConfig(t, caps.URL)
	_, h := newTestServer(t, cfg)
	hdr := map[string]string{"Idempotency-Key": "k-1"}

	w1, env1 := doJSON(t, h, http.MethodPost, "/api/v1/generations", map[string]string{"prompt": "a cat"}, hdr)
	w2, env2 := doJSON(t, h, http.MethodPost, "/api/v1/generations", map[string]string{"prompt": "a cat"}, hdr)
	require.Equal(t, http.StatusOK, w1.Code)
	require.Equal(t, http.StatusOK, w2.Code)
	assert.Equal(t, "true", w2.Header().Get("Idempotent-Replayed"))
	assert.JSONEq(t, string(env1.Data), string(env2.Data))

	w3, _ := doJSON(t, h, http.MethodPost, "/api/v1/generations", map[string]string{"prompt": "a dog"}, hdr)
	assert.Equal(t, http.StatusUnprocessableEntity, w3.Code)

	_, env := doJSON(t, h, http.MethodGet, "/api/v1/generations", nil, nil)
	var list struct {
		Total int64 `json:"total"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &list))
	assert.EqualValues(t, 1, list.Total, "a replay does not run the pipeline again")
}

func TestServer_Health(t *testing.T) {
	caps := fakeCapabilities(t)
	cfg := testConfig(t, caps.URL)
	s, h := newTestServer(t, cfg)

	// expander disabled: degraded but ready
	w, _ := doJSON(t, h, http.MethodGet, "/ready", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	status := s.app.health.Evaluate(t.Context())
	assert.Equal(t, "degraded", status.Status)
	assert.Equal(t, "pass", status.Checks["database"].Status)
	assert.Equal(t, "pass", status.Checks["capabilities"].Status)
	assert.Equal(t, "fail", status.Checks["expander"].Status)

	w, _ = doJSON(t, h, http.MethodGet, "/version", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestServer_MethodNotAllowed(t *testing.T) {
	caps := fakeCapabilities(t)
	_, h := newTestServer(t, testConfig(t, caps.URL))

	w, _ := doJSON(t, h, http.MethodDelete, "/api/v1/generations", nil, nil)
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func itoa(id uint) string {
	b, _ := json.Marshal(id)
	return string(b)
}
