package deepseek

// DeepSeek Chat Completions request/response types. Field names follow the
// API's snake_case JSON contract.

// Wire roles accepted by the API.
const (
	RoleUser      = "user"
	RoleSystem    = "system"
	RoleAssistant = "assistant"
)

// Wire defaults applied by NewChatRequest.
const (
	DefaultMaxTokens   int64   = 4096
	DefaultTemperature float64 = 1
	DefaultTopP        float64 = 1
)

// ChatRequest is the request body for /chat/completions.
type ChatRequest struct {
	Messages         []Message `json:"messages"`
	Model            string    `json:"model,omitempty"`
	FrequencyPenalty float64   `json:"frequency_penalty"`
	MaxTokens        int64     `json:"max_tokens"`
	PresencePenalty  float64   `json:"presence_penalty"`
	Stop             []string  `json:"stop"`
	Stream           bool      `json:"stream"`
	Temperature      float64   `json:"temperature"`
	TopP             float64   `json:"top_p"`
	Logprobs         bool      `json:"logprobs"`
	TopLogprobs      *int      `json:"top_logprobs,omitempty"`
}

// NewChatRequest returns a request carrying the API defaults.
func NewChatRequest() ChatRequest {
	return ChatRequest{
		Messages:    []Message{},
		MaxTokens:   DefaultMaxTokens,
		Stop:        []string{},
		Temperature: DefaultTemperature,
		TopP:        DefaultTopP,
	}
}

// Message is a single chat message. ReasoningContent is only returned by
// reasoning models and is never sent.
type Message struct {
	Role             string  `json:"role"`
	Content          string  `json:"content"`
	ReasoningContent *string `json:"reasoning_content,omitempty"`
}

// NewUserMessage returns a user message.
func NewUserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// NewSystemMessage returns a system message.
func NewSystemMessage(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}

// NewAssistantMessage returns an assistant message.
func NewAssistantMessage(content string) Message {
	return Message{Role: RoleAssistant, Content: content}
}

// ChatResponse is both the non-streaming response body and the shape of each
// streamed event payload.
type ChatResponse struct {
	ID                string   `json:"id"`
	Object            string   `json:"object"`
	Created           int64    `json:"created"`
	Model             string   `json:"model"`
	SystemFingerprint string   `json:"system_fingerprint,omitempty"`
	Choices           []Choice `json:"choices"`
	Usage             *Usage   `json:"usage,omitempty"`
}

// Choice is one completion choice. Message is set on non-streaming
// responses, Delta on streamed chunks.
type Choice struct {
	Index        int64     `json:"index"`
	FinishReason *string   `json:"finish_reason"`
	Message      *Message  `json:"message,omitempty"`
	Delta        *Message  `json:"delta,omitempty"`
	Logprobs     *Logprobs `json:"logprobs,omitempty"`
}

// Usage holds token accounting for one request.
type Usage struct {
	PromptTokens          int64 `json:"prompt_tokens"`
	CompletionTokens      int64 `json:"completion_tokens"`
	TotalTokens           int64 `json:"total_tokens"`
	PromptCacheHitTokens  int64 `json:"prompt_cache_hit_tokens"`
	PromptCacheMissTokens int64 `json:"prompt_cache_miss_tokens"`
}

// Logprobs holds log-probability information for the output tokens.
type Logprobs struct {
	Content []LogprobContent `json:"content"`
}

// LogprobContent is the log probability of one output token.
type LogprobContent struct {
	Token       string       `json:"token"`
	Logprob     float64      `json:"logprob"`
	Bytes       []int        `json:"bytes,omitempty"`
	TopLogprobs []TopLogprob `json:"top_logprobs,omitempty"`
}

// TopLogprob is one of the most likely alternatives at a token position.
type TopLogprob struct {
	Token   string  `json:"token"`
	Logprob float64 `json:"logprob"`
	Bytes   []int   `json:"bytes,omitempty"`
}

// ModelResponse is the response from /models.
type ModelResponse struct {
	Object string  `json:"object"`
	Data   []Model `json:"data"`
}

// Model describes one model served by the API.
type Model struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	OwnedBy string `json:"owned_by"`
}
