// Package events provides event bus implementations.
//
// Implementations:
//   - redis: Redis Streams; every subscriber reads the stream independently
//   - memory: In-process fan-out for tests and single-process deployments
package events
