// Package audit defines the audit [Event] model and its sinks.
//
// # Components
//
//   - [Sink]: interface for event consumers (channel, JSON writer, slog, no-op).
//   - [NewDispatcher]: buffered async relay built on internal/dispatch.
//   - [Event]: structured audit record with timestamp, type, user, device, IP, metadata.
//
// # Architecture boundaries
//
// This package owns event shape and sink delivery. It does NOT decide which events
// to emit; the Engine does.
//
// # What this package must NOT do
//
//   - Filter or suppress events based on business logic.
//   - Import phonauth.
//   - Perform network I/O beyond what a caller-supplied Sink does.
package audit
