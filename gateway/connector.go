package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const maxConcurrentProbes = 8

// ErrNoDialer is returned when no dialer handles an endpoint scheme.
var ErrNoDialer = errors.New("gateway: no dialer for endpoint scheme")

// Config configures capability resolution.
type Config struct {
	// URLTemplate maps a capability id to an endpoint; "{id}" is substituted.
	URLTemplate string
	// Endpoints overrides URLTemplate per capability id.
	Endpoints    map[string]string
	CallTimeout  time.Duration
	ProbeTimeout time.Duration
}

// Dialer establishes a connection to a resolved endpoint. Dial doubles as the
// liveness probe: a returned error means the capability is not connected.
type Dialer interface {
	Dial(ctx context.Context, capabilityID string, endpoint *url.URL) (Capability, error)
}

// Connector builds per-run gateways by probing capability endpoints.
type Connector struct {
	cfg     Config
	mu      sync.RWMutex
	dialers map[string]Dialer
	logger  *zap.Logger
}

// NewConnector creates a Connector with HTTP and websocket dialers registered.
func NewConnector(cfg Config, logger *zap.Logger) *Connector {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ProbeTimeout <= 0 {
		cfg.ProbeTimeout = 10 * time.Second
	}
	c := &Connector{
		cfg:     cfg,
		dialers: make(map[string]Dialer),
		logger:  logger.With(zap.String("component", "gateway")),
	}

	httpDialer := NewHTTPDialer(cfg.CallTimeout)
	c.RegisterDialer("http", httpDialer)
	c.RegisterDialer("https", httpDialer)

	wsDialer := NewWSDialer(cfg.CallTimeout)
	c.RegisterDialer("ws", wsDialer)
	c.RegisterDialer("wss", wsDialer)
	return c
}

// RegisterDialer installs d for endpoints with the given URL scheme.
func (c *Connector) RegisterDialer(scheme string, d Dialer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dialers[strings.ToLower(scheme)] = d
}

// Resolve returns the endpoint configured for capabilityID.
func (c *Connector) Resolve(capabilityID string) (*url.URL, error) {
	raw, ok := c.cfg.Endpoints[capabilityID]
	if !ok {
		if c.cfg.URLTemplate == "" {
			return nil, fmt.Errorf("no endpoint configured for capability %s", capabilityID)
		}
		raw = strings.ReplaceAll(c.cfg.URLTemplate, "{id}", capabilityID)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid endpoint for capability %s: %w", capabilityID, err)
	}
	if u.Scheme == "" {
		return nil, fmt.Errorf("endpoint for capability %s has no scheme", capabilityID)
	}
	return u, nil
}

// Connect probes every capability concurrently and returns a gateway holding
// the ones that answered. Failures are logged, never returned.
func (c *Connector) Connect(ctx context.Context, capabilityIDs []string) Gateway {
	var (
		mu    sync.Mutex
		conns = make(map[string]Capability, len(capabilityIDs))
		seen  = make(map[string]struct{}, len(capabilityIDs))
		g     errgroup.Group
	)
	g.SetLimit(maxConcurrentProbes)

	for _, id := range capabilityIDs {
		if _, dup := seen[id]; dup || id == "" {
			continue
		}
		seen[id] = struct{}{}

		g.Go(func() error {
			capability, err := c.dial(ctx, id)
			if err != nil {
				c.logger.Warn("capability connection failed",
					zap.String("capability", id),
					zap.Error(err),
				)
				return nil
			}
			mu.Lock()
			conns[id] = capability
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	stub := NewStub(conns, c.logger)
	c.logger.Info("gateway connected",
		zap.Int("requested", len(seen)),
		zap.Strings("connected", stub.Connections()),
	)
	return stub
}

func (c *Connector) dial(ctx context.Context, capabilityID string) (Capability, error) {
	endpoint, err := c.Resolve(capabilityID)
	if err != nil {
		return nil, err
	}

	c.mu.RLock()
	d, ok := c.dialers[strings.ToLower(endpoint.Scheme)]
	c.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrNoDialer, endpoint.Scheme)
	}

	probeCtx, cancel := context.WithTimeout(ctx, c.cfg.ProbeTimeout)
	defer cancel()
	return d.Dial(probeCtx, capabilityID, endpoint)
}
