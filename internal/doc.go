// Package internal holds helpers private to phonauth: the digest helpers
// that turn device descriptors and tokens into fixed-length storage keys.
//
// Sub-packages:
//
//   - audit: async audit event dispatch
//   - config: environment configuration for the server binaries
//   - dispatch: buffered queue behind audit delivery and welcome mail
//   - flows: orchestration for every Engine operation
//   - logging: structured logger over log/slog
//   - rate: in-memory sliding window rate limiter
//   - telemetry: OTLP trace exporter setup
package internal
