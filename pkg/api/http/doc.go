// Package http provides the HTTP REST API implementation.
//
// The HTTP server exposes endpoints for:
//   - Synchronous graph execution (POST /graph/execute)
//   - Asynchronous run submission and queries (/api/v1/runs)
//   - Run event streaming over WebSocket
//   - Health checks
//   - Prometheus metrics
package http
