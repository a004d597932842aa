package deepseek_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/rhuss/deepspeak/pkg/chat"
	"github.com/rhuss/deepspeak/pkg/deepseek"
	"github.com/rhuss/deepspeak/pkg/deepseek/deepseektest"
)

func newTestClient(t *testing.T, baseURL string, mutate ...func(*deepseek.Config)) *deepseek.Client {
	t.Helper()
	cfg := deepseek.Config{BaseURL: baseURL, APIKey: "test-key"}
	for _, m := range mutate {
		m(&cfg)
	}
	c, err := deepseek.New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func userRequest(text string) deepseek.ChatRequest {
	req := deepseek.NewChatRequest()
	req.Messages = append(req.Messages, deepseek.NewUserMessage(text))
	return req
}

func TestNew_Defaults(t *testing.T) {
	c, err := deepseek.New(deepseek.Config{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer c.Close()

	if c.BaseURL() != deepseek.DefaultBaseURL {
		t.Errorf("BaseURL = %q, want %q", c.BaseURL(), deepseek.DefaultBaseURL)
	}
	if c.Timeout() != 60*time.Second {
		t.Errorf("Timeout = %v, want 60s", c.Timeout())
	}
}

func TestNew_TrimsTrailingSlash(t *testing.T) {
	c := newTestClient(t, "http://example.test/v1/")
	if c.BaseURL() != "http://example.test/v1" {
		t.Errorf("BaseURL = %q", c.BaseURL())
	}
}

func TestNew_RejectsNegativeTimeout(t *testing.T) {
	_, err := deepseek.New(deepseek.Config{Timeout: -time.Second})
	if !errors.Is(err, deepseek.ErrInvalidTimeout) {
		t.Errorf("err = %v, want ErrInvalidTimeout", err)
	}
}

func TestSetTimeout(t *testing.T) {
	c := newTestClient(t, "http://example.test")

	if err := c.SetTimeout(5 * time.Second); err != nil {
		t.Fatalf("SetTimeout(5s): %v", err)
	}
	for _, d := range []time.Duration{0, -time.Second} {
		if err := c.SetTimeout(d); !errors.Is(err, deepseek.ErrInvalidTimeout) {
			t.Errorf("SetTimeout(%v) err = %v, want ErrInvalidTimeout", d, err)
		}
	}
	if c.Timeout() != 5*time.Second {
		t.Errorf("Timeout = %v, want previous 5s", c.Timeout())
	}
}

func TestChat_Success(t *testing.T) {
	srv, backend := deepseektest.NewServer(t)
	c := newTestClient(t, srv.URL)

	req := userRequest("count from 1 to 5")
	req.Stream = true

	res, err := c.Chat(context.Background(), req)
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if !res.OK() {
		t.Fatalf("unexpected failure: %s", res.Diagnostic())
	}
	if got := res.Value.Choices[0].Message.Content; got != "1, 2, 3, 4, 5" {
		t.Errorf("content = %q", got)
	}
	if c.LastError() != "" {
		t.Errorf("LastError = %q, want empty", c.LastError())
	}

	reqs := backend.Requests()
	if len(reqs) != 1 {
		t.Fatalf("got %d requests, want 1", len(reqs))
	}
	if reqs[0].Body.Stream {
		t.Error("Chat must send stream=false")
	}
	if reqs[0].Path != "/chat/completions" || reqs[0].Method != http.MethodPost {
		t.Errorf("request = %s %s", reqs[0].Method, reqs[0].Path)
	}
}

func TestClient_Headers(t *testing.T) {
	srv, backend := deepseektest.NewServer(t)
	c := newTestClient(t, srv.URL)

	if _, err := c.Chat(context.Background(), userRequest("hi")); err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if _, err := c.ListModels(context.Background()); err != nil {
		t.Fatalf("ListModels: %v", err)
	}

	reqs := backend.Requests()
	if len(reqs) != 2 {
		t.Fatalf("got %d requests, want 2", len(reqs))
	}

	post, get := reqs[0].Header, reqs[1].Header
	for _, h := range []http.Header{post, get} {
		if got := h.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("Authorization = %q", got)
		}
		if got := h.Get("User-Agent"); !strings.HasPrefix(got, "deepspeak-go/") {
			t.Errorf("User-Agent = %q", got)
		}
		if _, err := uuid.Parse(h.Get("X-Request-ID")); err != nil {
			t.Errorf("X-Request-ID %q is not a UUID: %v", h.Get("X-Request-ID"), err)
		}
	}
	if got := post.Get("Content-Type"); got != "application/json" {
		t.Errorf("POST Content-Type = %q", got)
	}
	if post.Get("X-Request-ID") == get.Get("X-Request-ID") {
		t.Error("request IDs must differ between calls")
	}
}

func TestChat_HTTPFailure(t *testing.T) {
	srv, backend := deepseektest.NewServer(t)
	backend.RequireAPIKey("right-key")
	c := newTestClient(t, srv.URL)

	res, err := c.Chat(context.Background(), userRequest("hi"))
	if err != nil {
		t.Fatalf("non-success status must not be a Go error, got %v", err)
	}
	if res.OK() {
		t.Fatal("expected failure")
	}
	if res.Value != nil {
		t.Errorf("Value = %+v, want nil", res.Value)
	}

	want := `HTTP 401: {"error":"bad key"}`
	if res.Diagnostic() != want {
		t.Errorf("Diagnostic = %q, want %q", res.Diagnostic(), want)
	}
	if res.Failure.StatusCode != http.StatusUnauthorized {
		t.Errorf("StatusCode = %d", res.Failure.StatusCode)
	}
	if c.LastError() != want {
		t.Errorf("LastError = %q, want %q", c.LastError(), want)
	}

	// A later success clears the last error.
	backend.RequireAPIKey("")
	if _, err := c.Chat(context.Background(), userRequest("hi")); err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if c.LastError() != "" {
		t.Errorf("LastError = %q after success, want empty", c.LastError())
	}
}

func TestChat_MalformedBodyIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("{not json"))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	_, err := c.Chat(context.Background(), userRequest("hi"))
	if err == nil {
		t.Fatal("expected decoding error")
	}
	if c.LastError() == "" {
		t.Error("LastError should record the transport fault")
	}
}

func TestChat_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	c := newTestClient(t, srv.URL, func(cfg *deepseek.Config) { cfg.Timeout = 50 * time.Millisecond })

	_, err := c.Chat(context.Background(), userRequest("hi"))
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v, want deadline exceeded", err)
	}
}

func TestListModels(t *testing.T) {
	srv, backend := deepseektest.NewServer(t)
	backend.SetModels("deepseek-chat", "deepseek-reasoner")
	c := newTestClient(t, srv.URL)

	res, err := c.ListModels(context.Background())
	if err != nil {
		t.Fatalf("ListModels: %v", err)
	}
	if !res.OK() {
		t.Fatalf("unexpected failure: %s", res.Diagnostic())
	}
	if len(res.Value.Data) != 2 || res.Value.Data[1].ID != "deepseek-reasoner" {
		t.Errorf("models = %+v", res.Value.Data)
	}
}

func TestListModels_Failure(t *testing.T) {
	srv, backend := deepseektest.NewServer(t)
	backend.FailWith(http.StatusServiceUnavailable, "busy")
	c := newTestClient(t, srv.URL)

	res, err := c.ListModels(context.Background())
	if err != nil {
		t.Fatalf("ListModels: %v", err)
	}
	if res.Diagnostic() != "HTTP 503: busy" {
		t.Errorf("Diagnostic = %q", res.Diagnostic())
	}
}

func TestChatStream(t *testing.T) {
	srv, backend := deepseektest.NewServer(t)
	c := newTestClient(t, srv.URL)

	res, err := c.ChatStream(context.Background(), userRequest("count from 1 to 5"))
	if err != nil {
		t.Fatalf("ChatStream: %v", err)
	}
	if !res.OK() {
		t.Fatalf("unexpected failure: %s", res.Diagnostic())
	}

	stream := res.Value
	defer stream.Close()

	var sb strings.Builder
	var finish string
	for stream.Next() {
		ch := stream.Choice()
		if ch.Delta != nil {
			sb.WriteString(ch.Delta.Content)
		}
		if ch.FinishReason != nil {
			finish = *ch.FinishReason
		}
	}
	if err := stream.Err(); err != nil {
		t.Fatalf("stream error: %v", err)
	}
	if sb.String() != "1, 2, 3, 4, 5" {
		t.Errorf("text = %q", sb.String())
	}
	if finish != "stop" {
		t.Errorf("finish = %q, want stop", finish)
	}

	reqs := backend.Requests()
	if !reqs[0].Body.Stream {
		t.Error("ChatStream must send stream=true")
	}
	if got := reqs[0].Header.Get("Accept"); got != "text/event-stream" {
		t.Errorf("Accept = %q", got)
	}
}

func TestChatStream_HTTPFailure(t *testing.T) {
	srv, backend := deepseektest.NewServer(t)
	backend.FailWith(http.StatusTooManyRequests, `{"error":"slow down"}`)
	c := newTestClient(t, srv.URL)

	res, err := c.ChatStream(context.Background(), userRequest("hi"))
	if err != nil {
		t.Fatalf("ChatStream: %v", err)
	}
	if res.OK() || res.Value != nil {
		t.Fatalf("expected failure without a stream, got %+v", res)
	}
	if res.Diagnostic() != `HTTP 429: {"error":"slow down"}` {
		t.Errorf("Diagnostic = %q", res.Diagnostic())
	}
}

func TestChatStream_TimeoutOnlyBoundsHeaders(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		w.(http.Flusher).Flush()

		time.Sleep(150 * time.Millisecond)
		io.WriteString(w, `data: {"choices":[{"index":0,"delta":{"content":"late"}}]}`+"\n\ndata: [DONE]\n\n")
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, func(cfg *deepseek.Config) { cfg.Timeout = 50 * time.Millisecond })

	res, err := c.ChatStream(context.Background(), userRequest("hi"))
	if err != nil {
		t.Fatalf("ChatStream: %v", err)
	}
	stream := res.Value
	defer stream.Close()

	if !stream.Next() {
		t.Fatalf("expected a choice after the timeout elapsed, err=%v", stream.Err())
	}
	if got := stream.Choice().Delta.Content; got != "late" {
		t.Errorf("content = %q", got)
	}
}

func TestChatStream_HeaderTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	c := newTestClient(t, srv.URL, func(cfg *deepseek.Config) { cfg.Timeout = 50 * time.Millisecond })

	_, err := c.ChatStream(context.Background(), userRequest("hi"))
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v, want deadline exceeded", err)
	}
}

func TestChatStream_SkipMalformedConfig(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		io.WriteString(w, ": ping\n\n"+`data: {"choices":[{"index":0,"delta":{"content":"ok"}}]}`+"\n\n")
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, func(cfg *deepseek.Config) { cfg.SkipMalformedChunks = true })

	res, err := c.ChatStream(context.Background(), userRequest("hi"))
	if err != nil {
		t.Fatalf("ChatStream: %v", err)
	}
	stream := res.Value
	defer stream.Close()

	var got []string
	for stream.Next() {
		got = append(got, stream.Choice().Delta.Content)
	}
	if stream.Err() != nil {
		t.Fatalf("stream error: %v", stream.Err())
	}
	if len(got) != 1 || got[0] != "ok" {
		t.Errorf("got %q", got)
	}
}

func TestClose(t *testing.T) {
	srv, _ := deepseektest.NewServer(t)
	c := newTestClient(t, srv.URL)

	if err := c.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}

	if _, err := c.Chat(context.Background(), userRequest("hi")); !errors.Is(err, deepseek.ErrClientClosed) {
		t.Errorf("Chat err = %v, want ErrClientClosed", err)
	}
	if _, err := c.ChatStream(context.Background(), userRequest("hi")); !errors.Is(err, deepseek.ErrClientClosed) {
		t.Errorf("ChatStream err = %v, want ErrClientClosed", err)
	}
	if _, err := c.ListModels(context.Background()); !errors.Is(err, deepseek.ErrClientClosed) {
		t.Errorf("ListModels err = %v, want ErrClientClosed", err)
	}
}

func TestWrapTransport(t *testing.T) {
	srv, _ := deepseektest.NewServer(t)

	var calls atomic.Int32
	c := newTestClient(t, srv.URL, func(cfg *deepseek.Config) {
		cfg.WrapTransport = func(next http.RoundTripper) http.RoundTripper {
			return roundTripFunc(func(r *http.Request) (*http.Response, error) {
				calls.Add(1)
				return next.RoundTrip(r)
			})
		}
	})

	if _, err := c.ListModels(context.Background()); err != nil {
		t.Fatalf("ListModels: %v", err)
	}
	if calls.Load() != 1 {
		t.Errorf("wrapped transport calls = %d, want 1", calls.Load())
	}
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

// --- chat.Client surface ---

func TestComplete(t *testing.T) {
	srv, backend := deepseektest.NewServer(t)
	c := newTestClient(t, srv.URL, func(cfg *deepseek.Config) { cfg.DefaultModel = "deepseek-chat" })

	var client chat.Client = c
	comp, err := client.Complete(context.Background(), []chat.Message{
		chat.NewTextMessage(chat.RoleSystem, "Be nice."),
		chat.NewTextMessage(chat.RoleUser, "echo: Hello there"),
	}, nil)
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}

	if comp.Text() != "Hello there" {
		t.Errorf("Text = %q", comp.Text())
	}
	if comp.FinishReason != chat.FinishReasonStop {
		t.Errorf("FinishReason = %q", comp.FinishReason)
	}
	if comp.ModelID != "deepseek-chat" {
		t.Errorf("ModelID = %q", comp.ModelID)
	}
	if comp.Usage == nil || comp.Usage.TotalTokenCount == 0 {
		t.Errorf("Usage = %+v", comp.Usage)
	}

	body := backend.Requests()[0].Body
	if body.Model != "deepseek-chat" {
		t.Errorf("sent model = %q, want default model", body.Model)
	}
	if len(body.Messages) != 2 || body.Messages[0].Role != "system" {
		t.Errorf("sent messages = %+v", body.Messages)
	}
}

func TestComplete_OptionsOverrideDefaultModel(t *testing.T) {
	srv, backend := deepseektest.NewServer(t)
	c := newTestClient(t, srv.URL, func(cfg *deepseek.Config) { cfg.DefaultModel = "deepseek-chat" })

	_, err := c.Complete(context.Background(),
		[]chat.Message{chat.NewTextMessage(chat.RoleUser, "hi")},
		&chat.Options{ModelID: "deepseek-reasoner"})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if got := backend.Requests()[0].Body.Model; got != "deepseek-reasoner" {
		t.Errorf("sent model = %q", got)
	}
}

func TestComplete_Failure(t *testing.T) {
	srv, backend := deepseektest.NewServer(t)
	backend.RequireAPIKey("right-key")
	c := newTestClient(t, srv.URL)

	_, err := c.Complete(context.Background(), []chat.Message{chat.NewTextMessage(chat.RoleUser, "hi")}, nil)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, deepseek.ErrRequestFailed) {
		t.Errorf("err = %v, want ErrRequestFailed", err)
	}
	if !strings.Contains(err.Error(), `HTTP 401: {"error":"bad key"}`) {
		t.Errorf("err = %q, want diagnostic", err.Error())
	}
	if !strings.HasPrefix(err.Error(), "failed to get response") {
		t.Errorf("err = %q, want failed to get response prefix", err.Error())
	}

	var httpErr *deepseek.HTTPError
	if !errors.As(err, &httpErr) || httpErr.StatusCode != http.StatusUnauthorized {
		t.Errorf("errors.As HTTPError = %+v", httpErr)
	}
}

func TestCompleteStreaming(t *testing.T) {
	srv, _ := deepseektest.NewServer(t)
	c := newTestClient(t, srv.URL)

	updates, err := c.CompleteStreaming(context.Background(), []chat.Message{chat.NewTextMessage(chat.RoleUser, "hi")}, nil)
	if err != nil {
		t.Fatalf("CompleteStreaming: %v", err)
	}

	var sb strings.Builder
	var finish chat.FinishReason
	for u := range updates {
		if u.Err != nil {
			t.Fatalf("update error: %v", u.Err)
		}
		if u.Role != chat.RoleAssistant {
			t.Errorf("Role = %q", u.Role)
		}
		sb.WriteString(u.Text)
		if u.FinishReason != "" {
			finish = u.FinishReason
		}
	}

	if sb.String() != "Hello, nice day!" {
		t.Errorf("text = %q", sb.String())
	}
	if finish != chat.FinishReasonStop {
		t.Errorf("finish = %q", finish)
	}
}

func TestCompleteStreaming_Failure(t *testing.T) {
	srv, backend := deepseektest.NewServer(t)
	backend.FailWith(http.StatusInternalServerError, "")
	c := newTestClient(t, srv.URL)

	_, err := c.CompleteStreaming(context.Background(), []chat.Message{chat.NewTextMessage(chat.RoleUser, "hi")}, nil)
	if !errors.Is(err, deepseek.ErrRequestFailed) {
		t.Fatalf("err = %v, want ErrRequestFailed", err)
	}
	if err.Error() != "failed to get response: HTTP 500: " {
		t.Errorf("err = %q", err.Error())
	}
}

func TestCompleteStreaming_DecodeFaultDelivered(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		io.WriteString(w, `data: {"choices":[{"index":0,"delta":{"content":"A"}}]}`+"\n\ndata: oops\n\n")
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	updates, err := c.CompleteStreaming(context.Background(), []chat.Message{chat.NewTextMessage(chat.RoleUser, "hi")}, nil)
	if err != nil {
		t.Fatalf("CompleteStreaming: %v", err)
	}

	var got []chat.StreamingUpdate
	for u := range updates {
		got = append(got, u)
	}
	if len(got) != 2 {
		t.Fatalf("got %d updates, want 2", len(got))
	}
	if got[0].Text != "A" {
		t.Errorf("first text = %q", got[0].Text)
	}
	var mce *deepseek.MalformedChunkError
	if !errors.As(got[1].Err, &mce) {
		t.Errorf("final update Err = %v, want *MalformedChunkError", got[1].Err)
	}
}

func TestCompleteStreaming_CancelClosesChannel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		w.(http.Flusher).Flush()
		<-r.Context().Done()
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	ctx, cancel := context.WithCancel(context.Background())

	updates, err := c.CompleteStreaming(ctx, []chat.Message{chat.NewTextMessage(chat.RoleUser, "hi")}, nil)
	if err != nil {
		t.Fatalf("CompleteStreaming: %v", err)
	}
	cancel()

	select {
	case _, ok := <-updates:
		if ok {
			t.Error("expected channel to close without updates")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("channel not closed after cancellation")
	}
}

func TestMetadata(t *testing.T) {
	c := newTestClient(t, "http://example.test/", func(cfg *deepseek.Config) { cfg.DefaultModel = "deepseek-chat" })

	md := c.Metadata()
	if md.ProviderName != "deepseek" || md.ProviderURI != "http://example.test" || md.DefaultModelID != "deepseek-chat" {
		t.Errorf("Metadata = %+v", md)
	}
}
