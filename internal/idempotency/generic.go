package idempotency

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// LookupTyped looks up key and decodes the cached response into T.
//
// Usage:
//
//	resp, found, err := idempotency.LookupTyped[pipeline.GenerationResponse](m, ctx, key, fp)
func LookupTyped[T any](m Manager, ctx context.Context, key, fingerprint string) (T, bool, error) {
	var zero T
	entry, found, err := m.Lookup(ctx, key, fingerprint)
	if err != nil || !found {
		return zero, found, err
	}
	var result T
	if err := json.Unmarshal(entry.Response, &result); err != nil {
		return zero, false, fmt.Errorf("unmarshal cached result: %w", err)
	}
	return result, true, nil
}

// SaveTyped encodes result and stores it under key.
func SaveTyped[T any](m Manager, ctx context.Context, key, fingerprint string, result T, ttl time.Duration) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	return m.Save(ctx, key, &Entry{
		Fingerprint: fingerprint,
		Response:    data,
		CreatedAt:   time.Now().UTC(),
	}, ttl)
}
