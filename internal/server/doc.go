// Package server implements the core of the relay chat service: the room
// registry, the per-connection onboarding state machine, the broadcast hub,
// and the WebSocket transport glue.
//
// The implementation is organized into specialized files for configuration,
// the registry, the state machine, hub management, clients, routing, and
// HTTP handlers to keep the codebase maintainable and testable as the
// project grows.
package server
