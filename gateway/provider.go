package gateway

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"sync"

	"github.com/BaSui01/imagine3d/llm/image"
	"github.com/BaSui01/imagine3d/llm/threed"
)

// ProviderScheme is the endpoint scheme of in-process, provider-backed
// capabilities, e.g. provider://flux or provider://meshy.
const ProviderScheme = "provider"

// ProviderDialer exposes hosted image and 3D providers as capabilities.
// Text-to-image providers take {prompt}; image-to-3D providers take
// {image: base64, filename}. Generated assets are downloaded and returned
// as raw bytes.
type ProviderDialer struct {
	mu          sync.RWMutex
	images      map[string]image.Provider
	models      map[string]threed.ThreeDProvider
	client      *http.Client
	modelFormat string
}

// NewProviderDialer creates a dialer; client downloads generated assets and
// modelFormat selects the requested 3D format (obj when empty).
func NewProviderDialer(client *http.Client, modelFormat string) *ProviderDialer {
	if client == nil {
		client = http.DefaultClient
	}
	if modelFormat == "" {
		modelFormat = "obj"
	}
	return &ProviderDialer{
		images:      make(map[string]image.Provider),
		models:      make(map[string]threed.ThreeDProvider),
		client:      client,
		modelFormat: modelFormat,
	}
}

// RegisterImageProvider exposes p as provider://name.
func (d *ProviderDialer) RegisterImageProvider(name string, p image.Provider) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.images[name] = p
}

// RegisterModelProvider exposes p as provider://name.
func (d *ProviderDialer) RegisterModelProvider(name string, p threed.ThreeDProvider) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.models[name] = p
}

// Dial succeeds when a provider is registered under the endpoint host.
func (d *ProviderDialer) Dial(_ context.Context, capabilityID string, endpoint *url.URL) (Capability, error) {
	name := endpoint.Host
	if name == "" {
		name = endpoint.Opaque
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	if p, ok := d.images[name]; ok {
		return &imageCapability{provider: p, dialer: d}, nil
	}
	if p, ok := d.models[name]; ok {
		return &modelCapability{provider: p, dialer: d}, nil
	}
	return nil, fmt.Errorf("capability %s: no provider registered as %q", capabilityID, name)
}

type imageCapability struct {
	provider image.Provider
	dialer   *ProviderDialer
}

func (c *imageCapability) Invoke(ctx context.Context, payload map[string]any, _ string) (*Result, error) {
	prompt, err := stringField(payload, "prompt")
	if err != nil {
		return nil, err
	}

	resp, err := c.provider.Generate(ctx, &image.GenerateRequest{Prompt: prompt, OutputFormat: "png"})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", c.provider.Name(), err)
	}
	if resp == nil {
		return nil, nil
	}
	if len(resp.Images) == 0 {
		return &Result{}, nil
	}

	img := resp.Images[0]
	format := img.Format
	if format == "" {
		format = "png"
	}
	out := &Result{Filename: "image." + format, MimeType: "image/" + format}
	switch {
	case img.B64JSON != "":
		out.Data, err = base64.StdEncoding.DecodeString(img.B64JSON)
		if err != nil {
			return nil, fmt.Errorf("%s: invalid base64 image: %w", c.provider.Name(), err)
		}
	case img.URL != "":
		out.Data, err = c.dialer.download(ctx, img.URL)
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

type modelCapability struct {
	provider threed.ThreeDProvider
	dialer   *ProviderDialer
}

func (c *modelCapability) Invoke(ctx context.Context, payload map[string]any, _ string) (*Result, error) {
	encoded, err := stringField(payload, "image")
	if err != nil {
		return nil, err
	}
	filename, _ := payload["filename"].(string)

	resp, err := c.provider.Generate(ctx, &threed.GenerateRequest{
		Image:    encoded,
		MimeType: imageMimeType(filename),
		Format:   c.dialer.modelFormat,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", c.provider.Name(), err)
	}
	if resp == nil {
		return nil, nil
	}
	if len(resp.Models) == 0 {
		return &Result{}, nil
	}

	m := resp.Models[0]
	format := m.Format
	if format == "" {
		format = c.dialer.modelFormat
	}
	out := &Result{Filename: "model." + format}
	switch {
	case m.B64Data != "":
		out.Data, err = base64.StdEncoding.DecodeString(m.B64Data)
		if err != nil {
			return nil, fmt.Errorf("%s: invalid base64 model: %w", c.provider.Name(), err)
		}
	case m.URL != "":
		out.Data, err = c.dialer.download(ctx, m.URL)
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (d *ProviderDialer) download(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create download request: %w", err)
	}
	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download %s: %w", redactQuery(rawURL), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download %s: status %d", redactQuery(rawURL), resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResultBytes+1))
	if err != nil {
		return nil, fmt.Errorf("download %s: %w", redactQuery(rawURL), err)
	}
	if len(data) > maxResultBytes {
		return nil, fmt.Errorf("download %s: asset exceeds %d bytes", redactQuery(rawURL), maxResultBytes)
	}
	return data, nil
}

func stringField(payload map[string]any, key string) (string, error) {
	v, ok := payload[key].(string)
	if !ok || v == "" {
		return "", fmt.Errorf("payload field %q is required", key)
	}
	return v, nil
}

func imageMimeType(filename string) string {
	switch strings.ToLower(path.Ext(filename)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".webp":
		return "image/webp"
	default:
		return "image/png"
	}
}

// redactQuery strips signed-URL query strings from log and error output.
func redactQuery(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "<invalid url>"
	}
	u.RawQuery = ""
	return u.String()
}
