package deepseek

import (
	"errors"
	"fmt"
	"io"
	"net/http"
)

var (
	// ErrRequestFailed is wrapped by every error the chat.Client surface
	// returns when the API answered with a non-success status.
	ErrRequestFailed = errors.New("failed to get response")

	// ErrInvalidTimeout is returned by SetTimeout for non-positive values.
	ErrInvalidTimeout = errors.New("deepseek: timeout must be positive")

	// ErrClientClosed is returned by calls made after Close.
	ErrClientClosed = errors.New("deepseek: client is closed")
)

// maxErrorBody bounds how much of a failed response body is captured.
const maxErrorBody = 64 << 10

// HTTPError describes a non-success HTTP answer. Its message is the only
// diagnostic surfaced; the body is not parsed.
type HTTPError struct {
	StatusCode int
	Body       string
}

// Error implements the error interface as "HTTP <status>: <body>".
func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Body)
}

// newHTTPError reads the body of a failed response.
func newHTTPError(resp *http.Response) *HTTPError {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &HTTPError{StatusCode: resp.StatusCode, Body: string(data)}
}

// MalformedChunkError reports a stream line that could not be decoded.
type MalformedChunkError struct {
	Line string
	Err  error
}

func (e *MalformedChunkError) Error() string {
	return fmt.Sprintf("deepseek: malformed stream chunk %q: %v", e.Line, e.Err)
}

func (e *MalformedChunkError) Unwrap() error {
	return e.Err
}

// requestFailed converts an HTTP failure into the error returned by the
// chat.Client surface.
func requestFailed(failure *HTTPError) error {
	if failure == nil {
		return ErrRequestFailed
	}
	return fmt.Errorf("%w: %w", ErrRequestFailed, failure)
}

// isSuccess reports whether code is in the 2xx range.
func isSuccess(code int) bool {
	return code >= 200 && code < 300
}
