// Package server implements the HTTP API of the shifttime backend.
//
// This package provides:
//   - Pass-through endpoints for the spreadsheet data store (projects, kv)
//   - Template catalog, publish and deploy endpoints backed by the pipeline
//   - Hosting site provisioning with project to site mapping
//   - Health, metrics and the embedded browser UI
//
// The server integrates with other packages:
//   - internal/sheets: Forwarding to the data store web app
//   - internal/kv, internal/project: Typed access to data store resources
//   - internal/deployment: Materialize, pack and upload pipeline
//   - internal/metrics: Prometheus collectors
//
// Request handling:
//   - CORS: any origin or an explicit allow-list
//   - Body size limit (1MB max)
//   - Fixed window rate limit on /api/* per client address
//   - Structured logging of all HTTP requests
package server
