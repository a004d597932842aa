package deepseek

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/rhuss/deepspeak/pkg/debug"
	"github.com/rhuss/deepspeak/pkg/observability"
)

// Operation names used for metrics and logs.
const (
	opListModels = "list_models"
	opChat       = "chat"
	opChatStream = "chat_stream"
)

var userAgent = "deepspeak-go/" + Version

// Client talks to the DeepSeek Chat Completions API. It is safe for
// concurrent use, except that LastError only describes the most recent call.
type Client struct {
	httpClient    *http.Client
	baseURL       string
	apiKey        string
	skipMalformed bool
	defaultModel  string

	mu      sync.Mutex
	timeout time.Duration
	lastErr string

	closed atomic.Bool
}

// New creates a Client from cfg.
func New(cfg Config) (*Client, error) {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	if timeout < 0 {
		return nil, fmt.Errorf("%w: %s", ErrInvalidTimeout, timeout)
	}

	var httpClient *http.Client
	if cfg.HTTPClient != nil {
		clone := *cfg.HTTPClient
		httpClient = &clone
	} else {
		httpClient = &http.Client{Transport: http.DefaultTransport.(*http.Transport).Clone()}
	}
	if cfg.WrapTransport != nil {
		httpClient.Transport = cfg.WrapTransport(httpClient.Transport)
	}

	return &Client{
		httpClient:    httpClient,
		baseURL:       baseURL,
		apiKey:        cfg.APIKey,
		skipMalformed: cfg.SkipMalformedChunks,
		defaultModel:  cfg.DefaultModel,
		timeout:       timeout,
	}, nil
}

// BaseURL returns the normalized base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// SetTimeout changes the timeout for subsequent calls. Non-positive values
// are rejected and the previous timeout is kept.
func (c *Client) SetTimeout(d time.Duration) error {
	if d <= 0 {
		return fmt.Errorf("%w: %s", ErrInvalidTimeout, d)
	}
	c.mu.Lock()
	c.timeout = d
	c.mu.Unlock()
	return nil
}

// Timeout returns the current timeout.
func (c *Client) Timeout() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.timeout
}

// LastError returns the diagnostic of the most recent failed call, or ""
// if the most recent call succeeded. With concurrent callers, use the
// Result of each call instead.
func (c *Client) LastError() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// Close releases idle connections. Calls made afterwards fail with
// ErrClientClosed. Streams already open keep working until they end.
func (c *Client) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	c.httpClient.CloseIdleConnections()
	return nil
}

// ListModels queries GET /models.
func (c *Client) ListModels(ctx context.Context) (Result[*ModelResponse], error) {
	return doJSON[ModelResponse](ctx, c, opListModels, http.MethodGet, ModelsPath, nil)
}

// Chat performs a non-streaming completion. req.Stream is forced to false.
func (c *Client) Chat(ctx context.Context, req ChatRequest) (Result[*ChatResponse], error) {
	req.Stream = false

	res, err := doJSON[ChatResponse](ctx, c, opChat, http.MethodPost, ChatCompletionsPath, &req)
	if err == nil && res.OK() && res.Value.Usage != nil {
		u := res.Value.Usage
		observability.ObserveTokens(res.Value.Model,
			u.PromptTokens, u.CompletionTokens, u.PromptCacheHitTokens, u.PromptCacheMissTokens)
	}
	return res, err
}

// ChatStream starts a streaming completion. req.Stream is forced to true.
// It returns once response headers arrive; the timeout only bounds that
// wait, and the body is then read until the stream ends or ctx is done.
// On success the caller owns the returned stream and must drain or Close it.
func (c *Client) ChatStream(ctx context.Context, req ChatRequest) (Result[*ChoiceStream], error) {
	var res Result[*ChoiceStream]

	if err := c.begin(); err != nil {
		return res, err
	}

	req.Stream = true
	start := time.Now()
	timeout := c.Timeout()

	streamCtx, cancel := context.WithCancelCause(ctx)
	headerTimer := time.AfterFunc(timeout, func() {
		cancel(fmt.Errorf("deepseek: no response headers within %s: %w", timeout, context.DeadlineExceeded))
	})

	resp, err := c.send(streamCtx, http.MethodPost, ChatCompletionsPath, &req, true)
	headerTimer.Stop()
	if err != nil {
		if cause := context.Cause(streamCtx); cause != nil && ctx.Err() == nil {
			err = cause
		}
		cancel(nil)
		c.finish(opChatStream, start, nil, err)
		return res, err
	}

	if !isSuccess(resp.StatusCode) {
		res.Failure = newHTTPError(resp)
		resp.Body.Close()
		cancel(nil)
		c.finish(opChatStream, start, res.Failure, nil)
		return res, nil
	}

	observability.StreamsActive.Inc()
	opts := []DecodeOption{withHooks(
		observability.ObserveStreamChoice,
		func(err error) {
			observability.StreamsActive.Dec()
			if err != nil && !errors.Is(err, errStreamClosed) {
				slog.Warn("stream ended with error", "error", err.Error())
			} else {
				debug.Log("streaming", "stream finished")
			}
		},
		func() { cancel(nil) },
	)}
	if c.skipMalformed {
		opts = append(opts, WithSkipMalformed())
	}

	res.Value = DecodeStream(streamCtx, resp.Body, opts...)
	c.finish(opChatStream, start, nil, nil)
	return res, nil
}

// doJSON performs a bounded request and decodes a JSON success body into T.
func doJSON[T any](ctx context.Context, c *Client, op, method, path string, body any) (Result[*T], error) {
	var res Result[*T]

	if err := c.begin(); err != nil {
		return res, err
	}
	start := time.Now()

	ctx, cancel := context.WithTimeout(ctx, c.Timeout())
	defer cancel()

	resp, err := c.send(ctx, method, path, body, false)
	if err != nil {
		c.finish(op, start, nil, err)
		return res, err
	}
	defer resp.Body.Close()

	if !isSuccess(resp.StatusCode) {
		res.Failure = newHTTPError(resp)
		c.finish(op, start, res.Failure, nil)
		return res, nil
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		err = fmt.Errorf("deepseek: reading %s response: %w", op, err)
		c.finish(op, start, nil, err)
		return res, err
	}
	debug.Raw("client", string(data))

	var out T
	if err := json.Unmarshal(data, &out); err != nil {
		err = fmt.Errorf("deepseek: decoding %s response: %w", op, err)
		c.finish(op, start, nil, err)
		return res, err
	}

	res.Value = &out
	c.finish(op, start, nil, nil)
	return res, nil
}

// send builds and performs one HTTP request with the standard headers.
func (c *Client) send(ctx context.Context, method, path string, body any, stream bool) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("deepseek: encoding request: %w", err)
		}
		debug.Raw("client", string(data))
		reader = bytes.NewReader(data)
	}

	url := c.baseURL + path
	httpReq, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, fmt.Errorf("deepseek: creating request: %w", err)
	}

	requestID := uuid.NewString()
	httpReq.Header.Set("User-Agent", userAgent)
	httpReq.Header.Set("X-Request-ID", requestID)
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if stream {
		httpReq.Header.Set("Accept", "text/event-stream")
	}

	debug.Log("client", "request", "method", method, "url", url, "request_id", requestID, "stream", stream)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("deepseek: %s %s: %w", method, path, err)
	}

	debug.Log("client", "response", "status", resp.StatusCode, "request_id", requestID)
	return resp, nil
}

// begin rejects calls on a closed client and clears the last error.
func (c *Client) begin() error {
	if c.closed.Load() {
		return ErrClientClosed
	}
	c.mu.Lock()
	c.lastErr = ""
	c.mu.Unlock()
	return nil
}

// finish records the outcome of one call.
func (c *Client) finish(op string, start time.Time, failure *HTTPError, err error) {
	status := observability.StatusOK
	var diag string
	switch {
	case err != nil:
		status = observability.StatusTransportError
		diag = err.Error()
	case failure != nil:
		status = observability.StatusHTTPError
		diag = failure.Error()
	}

	observability.ObserveCall(op, status, time.Since(start))

	if diag == "" {
		return
	}
	c.mu.Lock()
	c.lastErr = diag
	c.mu.Unlock()
	slog.Debug("deepseek call failed", "operation", op, "error", debug.Truncate(diag, 500))
}
