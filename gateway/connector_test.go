package gateway

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestConnector_Resolve(t *testing.T) {
	c := NewConnector(Config{
		URLTemplate: "https://{id}.node3.openfabric.network",
		Endpoints:   map[string]string{"local": "http://localhost:9000/app"},
	}, nil)

	u, err := c.Resolve("abc")
	require.NoError(t, err)
	assert.Equal(t, "https://abc.node3.openfabric.network", u.String())

	u, err = c.Resolve("local")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:9000/app", u.String())

	c = NewConnector(Config{Endpoints: map[string]string{"bad": "no-scheme"}}, nil)
	_, err = c.Resolve("bad")
	assert.Error(t, err)
	_, err = c.Resolve("unknown")
	assert.Error(t, err)
}

func TestConnector_ConnectKeepsOnlyLiveCapabilities(t *testing.T) {
	var manifestHits atomic.Int32
	live := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/manifest" {
			manifestHits.Add(1)
			w.WriteHeader(http.StatusOK)
			return
		}
		http.NotFound(w, r)
	}))
	defer live.Close()

	down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer down.Close()

	c := NewConnector(Config{
		Endpoints: map[string]string{
			"img":     live.URL,
			"3d":      down.URL,
			"strange": "gopher://nowhere",
		},
		CallTimeout:  time.Second,
		ProbeTimeout: time.Second,
	}, zaptest.NewLogger(t))

	gw := c.Connect(context.Background(), []string{"img", "3d", "img", "", "strange", "unconfigured"})

	assert.True(t, gw.HasConnection("img"))
	assert.False(t, gw.HasConnection("3d"))
	assert.False(t, gw.HasConnection("strange"))
	assert.False(t, gw.HasConnection("unconfigured"))
	assert.Equal(t, int32(1), manifestHits.Load(), "duplicate ids are probed once")
}

func TestConnector_ConnectEmpty(t *testing.T) {
	gw := NewConnector(Config{URLTemplate: "http://{id}"}, nil).Connect(context.Background(), nil)
	assert.False(t, gw.HasConnection("anything"))
}

type staticDialer struct {
	capability Capability
	err        error
}

func (d staticDialer) Dial(context.Context, string, *url.URL) (Capability, error) {
	return d.capability, d.err
}

func TestConnector_RegisterDialer(t *testing.T) {
	c := NewConnector(Config{Endpoints: map[string]string{
		"ok":   "custom://a",
		"fail": "broken://b",
	}}, nil)
	c.RegisterDialer("custom", staticDialer{capability: capabilityFunc(func(context.Context, map[string]any, string) (*Result, error) {
		return &Result{Data: []byte("x")}, nil
	})})
	c.RegisterDialer("BROKEN", staticDialer{err: errors.New("refused")})

	gw := c.Connect(context.Background(), []string{"ok", "fail"})
	assert.True(t, gw.HasConnection("ok"))
	assert.False(t, gw.HasConnection("fail"))
}
