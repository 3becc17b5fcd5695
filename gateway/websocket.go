package gateway

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
)

// WSDialer connects to capabilities that speak one JSON request/response
// exchange per websocket connection.
type WSDialer struct {
	callTimeout time.Duration
}

// NewWSDialer creates a websocket dialer.
func NewWSDialer(callTimeout time.Duration) *WSDialer {
	return &WSDialer{callTimeout: callTimeout}
}

type wsRequest struct {
	Caller  string         `json:"caller"`
	Payload map[string]any `json:"payload"`
}

type wsResponse struct {
	Result   *string `json:"result"`
	Filename string  `json:"filename,omitempty"`
	MimeType string  `json:"mime_type,omitempty"`
	Error    string  `json:"error,omitempty"`
}

// Dial opens and closes a connection to prove the endpoint is reachable.
func (d *WSDialer) Dial(ctx context.Context, capabilityID string, endpoint *url.URL) (Capability, error) {
	conn, _, err := websocket.Dial(ctx, endpoint.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("probe %s: %w", capabilityID, err)
	}
	_ = conn.Close(websocket.StatusNormalClosure, "probe")

	return &wsCapability{id: capabilityID, endpoint: endpoint.String(), callTimeout: d.callTimeout}, nil
}

type wsCapability struct {
	id          string
	endpoint    string
	callTimeout time.Duration
}

func (c *wsCapability) Invoke(ctx context.Context, payload map[string]any, caller string) (*Result, error) {
	if c.callTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.callTimeout)
		defer cancel()
	}

	conn, _, err := websocket.Dial(ctx, c.endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", c.id, err)
	}
	defer conn.CloseNow()
	conn.SetReadLimit(maxResultBytes * 2)

	if err := wsjson.Write(ctx, conn, wsRequest{Caller: caller, Payload: payload}); err != nil {
		return nil, fmt.Errorf("send to %s: %w", c.id, err)
	}

	var resp *wsResponse
	if err := wsjson.Read(ctx, conn, &resp); err != nil {
		return nil, fmt.Errorf("receive from %s: %w", c.id, err)
	}
	_ = conn.Close(websocket.StatusNormalClosure, "")

	if resp == nil {
		return nil, nil
	}
	if resp.Error != "" {
		return nil, errors.New(resp.Error)
	}

	out := &Result{Filename: resp.Filename, MimeType: resp.MimeType}
	if resp.Result == nil {
		return out, nil
	}
	raw, err := base64.StdEncoding.DecodeString(*resp.Result)
	if err != nil {
		return nil, fmt.Errorf("capability result is not valid base64: %w", err)
	}
	out.Data = raw
	return out, nil
}
