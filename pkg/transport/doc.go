// Package transport provides the HTTP middleware chain used by deepspeak's
// serving binaries.
//
// # Middleware
//
// Middleware wraps an http.Handler with cross-cutting behavior. Built-in
// middleware provides panic recovery, request ID propagation (X-Request-ID)
// and structured access logging via log/slog. Chain composes them so the
// first middleware is the outermost wrapper.
//
// The response writer passed down the chain keeps http.Flusher working, so
// handlers that stream server-sent events can be wrapped unchanged.
package transport
