package chat

import (
	"strings"
	"time"
)

// Role identifies the author of a message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// FinishReason explains why the model stopped generating. The empty value
// means no reason was reported.
type FinishReason string

const (
	FinishReasonStop          FinishReason = "stop"
	FinishReasonLength        FinishReason = "length"
	FinishReasonContentFilter FinishReason = "content_filter"
	FinishReasonToolCalls     FinishReason = "tool_calls"
)

// Content is one fragment of a message. TextContent and DataContent are the
// two kinds defined here.
type Content interface {
	content()
}

// TextContent is a plain text fragment.
type TextContent struct {
	Text string
}

// DataContent is a binary or URI-referenced fragment (images, audio).
type DataContent struct {
	URI       string
	MediaType string
	Data      []byte
}

func (TextContent) content() {}
func (DataContent) content() {}

// Message is one turn in a conversation.
type Message struct {
	Role     Role
	Contents []Content

	// AdditionalProperties carries provider-specific data that has no
	// dedicated field, e.g. log-probability detail.
	AdditionalProperties map[string]any

	// RawRepresentation is the provider object this message was built
	// from, if any.
	RawRepresentation any
}

// NewTextMessage returns a message with a single text fragment.
func NewTextMessage(role Role, text string) Message {
	return Message{
		Role:     role,
		Contents: []Content{TextContent{Text: text}},
	}
}

// Text concatenates all text fragments of the message.
func (m Message) Text() string {
	var sb strings.Builder
	for _, c := range m.Contents {
		if tc, ok := c.(TextContent); ok {
			sb.WriteString(tc.Text)
		}
	}
	return sb.String()
}

// Options tunes a single request. Nil pointers and empty values mean
// "use the backend default".
type Options struct {
	ModelID          string
	Temperature      *float64
	TopP             *float64
	FrequencyPenalty *float64
	PresencePenalty  *float64
	MaxOutputTokens  *int
	StopSequences    []string

	// AdditionalProperties holds provider-specific options.
	AdditionalProperties map[string]any
}

// Completion is a full, non-streaming model answer.
type Completion struct {
	CompletionID string
	ModelID      string
	CreatedAt    time.Time
	FinishReason FinishReason
	Choices      []Message
	Usage        *UsageDetails

	RawRepresentation any
}

// Message returns the first choice, or a zero Message if there is none.
func (c *Completion) Message() Message {
	if c == nil || len(c.Choices) == 0 {
		return Message{}
	}
	return c.Choices[0]
}

// Text returns the text of the first choice.
func (c *Completion) Text() string {
	return c.Message().Text()
}

// UsageDetails reports token consumption. Counts use the signed 32-bit range;
// providers with wider counters saturate into it.
type UsageDetails struct {
	InputTokenCount  int32
	OutputTokenCount int32
	TotalTokenCount  int32

	// AdditionalCounts holds provider-specific counters keyed by name.
	AdditionalCounts map[string]int32
}

// StreamingUpdate is one incremental piece of a streamed answer.
type StreamingUpdate struct {
	ChoiceIndex  int32
	Role         Role
	Text         string
	FinishReason FinishReason

	AdditionalProperties map[string]any
	RawRepresentation    any

	// Err is set on the final update when the stream failed mid-way.
	Err error
}
