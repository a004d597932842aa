package deepseek

import (
	"net/http"
	"time"
)

// API endpoints and defaults.
const (
	DefaultBaseURL      = "https://api.deepseek.com"
	ChatCompletionsPath = "/chat/completions"
	ModelsPath          = "/models"
	DefaultTimeout      = 60 * time.Second

	// Version is reported in the User-Agent header.
	Version = "0.3.0"
)

// Config configures a Client. The zero value talks to DefaultBaseURL
// without credentials using DefaultTimeout.
type Config struct {
	BaseURL string
	APIKey  string

	// Timeout bounds non-streaming calls end to end and, for streams, the
	// wait for response headers. Zero selects DefaultTimeout.
	Timeout time.Duration

	// HTTPClient replaces the client built by New. Its own Timeout, if any,
	// still applies on top of Timeout.
	HTTPClient *http.Client

	// WrapTransport, when set, wraps the transport of the HTTP client, for
	// example with observability.InstrumentRoundTripper.
	WrapTransport func(http.RoundTripper) http.RoundTripper

	// SkipMalformedChunks makes streams skip undecodable lines instead of
	// ending with a MalformedChunkError.
	SkipMalformedChunks bool

	// DefaultModel is used by the chat.Client surface when the caller's
	// options name no model, and reported by Metadata.
	DefaultModel string
}

// Result carries the outcome of a call that reached the API. A non-success
// status is reported through Failure rather than as an error; Value is then
// the zero value.
type Result[T any] struct {
	Value   T
	Failure *HTTPError
}

// OK reports whether the API answered with a 2xx status.
func (r Result[T]) OK() bool {
	return r.Failure == nil
}

// Diagnostic returns "HTTP <status>: <body>" for a failed call, or "".
func (r Result[T]) Diagnostic() string {
	if r.Failure == nil {
		return ""
	}
	return r.Failure.Error()
}
