// Package deepseektest provides a deterministic DeepSeek-compatible backend
// for tests and local development. Replies depend only on the request:
//
//   - "count from 1 to 5" in the last user message yields "1, 2, 3, 4, 5"
//   - a last user message starting with "echo:" yields the rest verbatim
//   - anything else yields "Hello, nice day!"
//
// Streaming requests receive the same text split into chunks, a finish
// chunk carrying usage, and the [DONE] sentinel.
package deepseektest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	"github.com/rhuss/deepspeak/pkg/deepseek"
)

// DefaultModel is reported when a request names no model.
const DefaultModel = "deepseek-chat"

// Recorded is one request received by a Backend.
type Recorded struct {
	Method string
	Path   string
	Header http.Header
	Body   deepseek.ChatRequest
}

// Backend holds the fake's state. The zero value accepts any key and serves
// DefaultModel.
type Backend struct {
	mu         sync.Mutex
	apiKey     string
	models     []string
	failStatus int
	failBody   string
	requests   []Recorded
}

// RequireAPIKey makes the backend demand key as the bearer token. Other keys
// get 401 with body {"error":"bad key"}. An empty key accepts anything.
func (b *Backend) RequireAPIKey(key string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.apiKey = key
}

// SetModels sets the IDs served by /models. Empty means DefaultModel only.
func (b *Backend) SetModels(ids ...string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.models = append([]string(nil), ids...)
}

// FailWith makes every following request answer with status and body.
// A zero status restores normal behavior.
func (b *Backend) FailWith(status int, body string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failStatus = status
	b.failBody = body
}

// Requests returns the requests received so far.
func (b *Backend) Requests() []Recorded {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Recorded(nil), b.requests...)
}

// Handler returns the HTTP handler serving /chat/completions and /models.
func (b *Backend) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST "+deepseek.ChatCompletionsPath, b.handleChatCompletions)
	mux.HandleFunc("GET "+deepseek.ModelsPath, b.handleModels)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok\n"))
	})
	return mux
}

// NewServer starts an httptest server for a new Backend. The server is
// closed when the test ends.
func NewServer(t interface{ Cleanup(func()) }) (*httptest.Server, *Backend) {
	b := &Backend{}
	srv := httptest.NewServer(b.Handler())
	t.Cleanup(srv.Close)
	return srv, b
}

// admit records the request and writes a configured failure, if any.
// It reports whether the handler should continue.
func (b *Backend) admit(w http.ResponseWriter, r *http.Request, body deepseek.ChatRequest) bool {
	b.mu.Lock()
	b.requests = append(b.requests, Recorded{
		Method: r.Method,
		Path:   r.URL.Path,
		Header: r.Header.Clone(),
		Body:   body,
	})
	status, failBody, key := b.failStatus, b.failBody, b.apiKey
	b.mu.Unlock()

	if key != "" && r.Header.Get("Authorization") != "Bearer "+key {
		writeRaw(w, http.StatusUnauthorized, `{"error":"bad key"}`)
		return false
	}
	if status != 0 {
		writeRaw(w, status, failBody)
		return false
	}
	return true
}

func (b *Backend) handleChatCompletions(w http.ResponseWriter, r *http.Request) {
	var req deepseek.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeRaw(w, http.StatusBadRequest, `{"error":{"message":"invalid request","type":"invalid_request_error"}}`)
		return
	}
	if !b.admit(w, r, req) {
		return
	}

	model := req.Model
	if model == "" {
		model = DefaultModel
	}
	tokens := replyTokens(lastUserMessage(req.Messages))

	if req.Stream {
		streamReply(w, model, tokens, promptTokens(req.Messages))
		return
	}

	text := strings.Join(tokens, "")
	stop := "stop"
	resp := deepseek.ChatResponse{
		ID:      "chatcmpl-fake-text",
		Object:  "chat.completion",
		Created: time.Now().Unix(),
		Model:   model,
		Choices: []deepseek.Choice{{
			Index:        0,
			FinishReason: &stop,
			Message:      &deepseek.Message{Role: deepseek.RoleAssistant, Content: text},
		}},
		Usage: usage(promptTokens(req.Messages), int64(len(tokens))),
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

func (b *Backend) handleModels(w http.ResponseWriter, r *http.Request) {
	if !b.admit(w, r, deepseek.ChatRequest{}) {
		return
	}

	b.mu.Lock()
	ids := b.models
	b.mu.Unlock()
	if len(ids) == 0 {
		ids = []string{DefaultModel}
	}
	resp := deepseek.ModelResponse{Object: "list"}
	for _, id := range ids {
		resp.Data = append(resp.Data, deepseek.Model{ID: id, Object: "model", OwnedBy: "deepseek"})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

func streamReply(w http.ResponseWriter, model string, tokens []string, prompt int64) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)

	writeChunk(w, model, deepseek.Choice{Delta: &deepseek.Message{Role: deepseek.RoleAssistant}}, nil)
	flusher.Flush()

	for _, tok := range tokens {
		writeChunk(w, model, deepseek.Choice{Delta: &deepseek.Message{Content: tok}}, nil)
		flusher.Flush()
	}

	stop := "stop"
	writeChunk(w, model, deepseek.Choice{FinishReason: &stop, Delta: &deepseek.Message{}},
		usage(prompt, int64(len(tokens))))
	flusher.Flush()

	fmt.Fprintf(w, "data: %s\n\n", deepseek.StreamDoneSentinel)
	flusher.Flush()
}

func writeChunk(w http.ResponseWriter, model string, choice deepseek.Choice, u *deepseek.Usage) {
	chunk := deepseek.ChatResponse{
		ID:      "chatcmpl-fake-stream",
		Object:  "chat.completion.chunk",
		Created: time.Now().Unix(),
		Model:   model,
		Choices: []deepseek.Choice{choice},
		Usage:   u,
	}
	data, _ := json.Marshal(chunk)
	fmt.Fprintf(w, "data: %s\n\n", data)
}

func writeRaw(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write([]byte(body))
}

func replyTokens(last string) []string {
	switch {
	case strings.Contains(strings.ToLower(last), "count from 1 to 5"):
		return []string{"1", ", ", "2", ", ", "3", ", ", "4", ", ", "5"}
	case strings.HasPrefix(last, "echo:"):
		return []string{strings.TrimSpace(strings.TrimPrefix(last, "echo:"))}
	default:
		return []string{"Hello", ", ", "nice", " ", "day", "!"}
	}
}

func lastUserMessage(msgs []deepseek.Message) string {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == deepseek.RoleUser {
			return msgs[i].Content
		}
	}
	return ""
}

// promptTokens approximates prompt size as the number of words sent.
func promptTokens(msgs []deepseek.Message) int64 {
	var n int64
	for _, m := range msgs {
		n += int64(len(strings.Fields(m.Content)))
	}
	return n
}

func usage(prompt, completion int64) *deepseek.Usage {
	return &deepseek.Usage{
		PromptTokens:          prompt,
		CompletionTokens:      completion,
		TotalTokens:           prompt + completion,
		PromptCacheHitTokens:  0,
		PromptCacheMissTokens: prompt,
	}
}
