// Package api holds the HTTP request and response types of the imagine3d API.
//
// # API Overview
//
// imagine3d exposes a small REST API:
//   - POST /api/v1/generations runs the prompt → image → 3D pipeline
//   - GET /api/v1/generations and /api/v1/generations/{id} read the audit history
//   - GET/PUT /api/v1/users/{id}/config manage the capabilities a caller connects to
//   - GET /outputs/{file} downloads generated artifacts
//   - /health, /healthz, /ready, /readyz and /version for probes
//
// # Authentication
//
// When API keys are configured, requests carry the X-API-Key header:
//
//	X-API-Key: your-api-key
//
// A bearer JWT with a user_id claim selects the caller whose configuration
// is used for the run.
//
// # Idempotency
//
// POST /api/v1/generations accepts an Idempotency-Key header. A retry with the
// same key and body replays the stored response.
package api
