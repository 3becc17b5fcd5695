package gateway

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/BaSui01/imagine3d/internal/tlsutil"
	"github.com/BaSui01/imagine3d/types"
)

// maxResultBytes bounds a single capability payload.
const maxResultBytes = 256 << 20

// HTTPDialer connects to capabilities served over HTTP.
//
// Probe: GET {endpoint}/manifest must answer 2xx.
// Call:  POST {endpoint}/execution with the JSON payload and an X-Caller-ID
// header. The reply is either JSON {"result": "<base64>", "filename": "..."}
// (JSON null meaning no result) or a raw binary body.
type HTTPDialer struct {
	client *http.Client
}

// NewHTTPDialer creates a dialer whose calls time out after callTimeout.
func NewHTTPDialer(callTimeout time.Duration) *HTTPDialer {
	return &HTTPDialer{client: tlsutil.SecureHTTPClient(callTimeout)}
}

// NewHTTPDialerWithClient creates a dialer over a caller-supplied client.
func NewHTTPDialerWithClient(client *http.Client) *HTTPDialer {
	return &HTTPDialer{client: client}
}

// Dial probes the manifest endpoint.
func (d *HTTPDialer) Dial(ctx context.Context, capabilityID string, endpoint *url.URL) (Capability, error) {
	base := strings.TrimRight(endpoint.String(), "/")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"/manifest", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create probe request: %w", err)
	}
	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("probe %s: %w", capabilityID, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("probe %s: unexpected status %d", capabilityID, resp.StatusCode)
	}
	return &httpCapability{id: capabilityID, base: base, client: d.client}, nil
}

type httpCapability struct {
	id     string
	base   string
	client *http.Client
}

type executionResponse struct {
	Result   json.RawMessage `json:"result"`
	Filename string          `json:"filename"`
	MimeType string          `json:"mime_type"`
}

func (c *httpCapability) Invoke(ctx context.Context, payload map[string]any, caller string) (*Result, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/execution", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json, application/octet-stream")
	req.Header.Set("X-Caller-ID", caller)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, types.NewError(types.ErrUpstreamError, "capability request failed").
			WithCause(err).
			WithRetryable(true).
			WithProvider(c.id)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, types.NewError(types.ErrUpstreamError,
			fmt.Sprintf("capability returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))).
			WithHTTPStatus(resp.StatusCode).
			WithRetryable(resp.StatusCode >= 500).
			WithProvider(c.id)
	}
	if resp.StatusCode == http.StatusNoContent {
		return nil, nil
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResultBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read capability response: %w", err)
	}
	if len(data) > maxResultBytes {
		return nil, fmt.Errorf("capability response exceeds %d bytes", maxResultBytes)
	}

	mediaType, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if mediaType == "application/json" {
		return decodeJSONResult(data)
	}

	return &Result{
		Data:     data,
		Filename: dispositionFilename(resp.Header.Get("Content-Disposition")),
		MimeType: mediaType,
	}, nil
}

// decodeJSONResult decodes an execution envelope. null and empty bodies mean
// no result object; a missing or null result field yields an empty Result.
func decodeJSONResult(data []byte) (*Result, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}

	var env executionResponse
	if err := json.Unmarshal(trimmed, &env); err != nil {
		return nil, fmt.Errorf("failed to decode capability response: %w", err)
	}

	out := &Result{Filename: env.Filename, MimeType: env.MimeType}
	if len(env.Result) == 0 || bytes.Equal(env.Result, []byte("null")) {
		return out, nil
	}

	var encoded string
	if err := json.Unmarshal(env.Result, &encoded); err != nil {
		return nil, fmt.Errorf("capability result is not a base64 string: %w", err)
	}
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("capability result is not valid base64: %w", err)
	}
	out.Data = raw
	return out, nil
}

func dispositionFilename(header string) string {
	if header == "" {
		return ""
	}
	_, params, err := mime.ParseMediaType(header)
	if err != nil {
		return ""
	}
	return params["filename"]
}
