package gateway

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"go.uber.org/zap"
)

// ErrNotConnected is returned by Invoke for a capability without a live connection.
var ErrNotConnected = errors.New("gateway: capability not connected")

// Result is what a capability returns for one invocation.
// Data empty means the capability answered without a payload.
type Result struct {
	Data     []byte
	Filename string
	MimeType string
}

// Gateway resolves capability identifiers to live connections.
type Gateway interface {
	HasConnection(capabilityID string) bool
	// Invoke returns (nil, nil) when the capability produced no result object.
	Invoke(ctx context.Context, capabilityID string, payload map[string]any, caller string) (*Result, error)
}

// Capability is one live connection.
type Capability interface {
	Invoke(ctx context.Context, payload map[string]any, caller string) (*Result, error)
}

// Stub holds the live connections of a single run. It is immutable after
// construction and safe for concurrent use.
type Stub struct {
	connections map[string]Capability
	logger      *zap.Logger
}

// NewStub creates a Stub over already-established connections.
func NewStub(connections map[string]Capability, logger *zap.Logger) *Stub {
	if logger == nil {
		logger = zap.NewNop()
	}
	conns := make(map[string]Capability, len(connections))
	for id, c := range connections {
		if c != nil {
			conns[id] = c
		}
	}
	return &Stub{connections: conns, logger: logger}
}

// Empty returns a gateway without connections.
func Empty() *Stub {
	return NewStub(nil, nil)
}

// HasConnection reports whether the capability connected successfully.
func (s *Stub) HasConnection(capabilityID string) bool {
	_, ok := s.connections[capabilityID]
	return ok
}

// Connections returns the connected capability ids, sorted.
func (s *Stub) Connections() []string {
	ids := make([]string, 0, len(s.connections))
	for id := range s.connections {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Invoke calls the capability with payload on behalf of caller.
func (s *Stub) Invoke(ctx context.Context, capabilityID string, payload map[string]any, caller string) (*Result, error) {
	c, ok := s.connections[capabilityID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotConnected, capabilityID)
	}

	s.logger.Debug("invoking capability",
		zap.String("capability", capabilityID),
		zap.String("caller", caller),
	)
	return c.Invoke(ctx, payload, caller)
}
