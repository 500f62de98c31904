// Package grpc provides the gRPC API server.
//
// The server exposes the standard grpc.health.v1 Health service, reflecting
// worker pool health, plus server reflection for tooling such as grpcurl.
package grpc
