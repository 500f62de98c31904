// Package websocket provides real-time event streaming via WebSocket.
//
// Clients can connect to /api/v1/runs/:id/ws to receive the lifecycle
// events of one run as JSON text messages. The stream ends after the
// run.completed event.
package websocket
