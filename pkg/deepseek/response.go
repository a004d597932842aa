package deepseek

import (
	"math"
	"time"

	"github.com/rhuss/deepspeak/pkg/chat"
)

// Keys used in chat AdditionalProperties and AdditionalCounts. Each matches
// the name of the wire field it carries.
const (
	PropertyLogprobs           = "Logprobs"
	CountPromptCacheHitTokens  = "PromptCacheHitTokens"
	CountPromptCacheMissTokens = "PromptCacheMissTokens"
)

// ToCompletion converts a non-streaming ChatResponse into a chat.Completion.
// Every choice becomes one message, in order. The first choice that reports
// a known finish reason decides the completion's finish reason.
func ToCompletion(resp *ChatResponse) *chat.Completion {
	c := &chat.Completion{
		CompletionID:      resp.ID,
		ModelID:           resp.Model,
		CreatedAt:         time.Unix(resp.Created, 0).UTC(),
		Choices:           make([]chat.Message, 0, len(resp.Choices)),
		RawRepresentation: resp,
	}

	for _, choice := range resp.Choices {
		if c.FinishReason == "" {
			c.FinishReason = MapFinishReason(choice.FinishReason)
		}
		c.Choices = append(c.Choices, toMessage(choice))
	}

	if resp.Usage != nil {
		c.Usage = ToUsageDetails(resp.Usage)
	}

	return c
}

// ToStreamingUpdate converts one streamed choice into a chat.StreamingUpdate.
func ToStreamingUpdate(choice Choice) chat.StreamingUpdate {
	m := choiceMessage(choice)

	u := chat.StreamingUpdate{
		ChoiceIndex:       saturateInt32(choice.Index),
		Role:              MapRole(m),
		FinishReason:      MapFinishReason(choice.FinishReason),
		RawRepresentation: choice,
	}
	if m != nil {
		u.Text = m.Content
	}
	if choice.Logprobs != nil {
		u.AdditionalProperties = map[string]any{PropertyLogprobs: choice.Logprobs}
	}

	return u
}

// ToUsageDetails converts wire usage counters, saturating each into the
// signed 32-bit range.
func ToUsageDetails(u *Usage) *chat.UsageDetails {
	return &chat.UsageDetails{
		InputTokenCount:  saturateInt32(u.PromptTokens),
		OutputTokenCount: saturateInt32(u.CompletionTokens),
		TotalTokenCount:  saturateInt32(u.TotalTokens),
		AdditionalCounts: map[string]int32{
			CountPromptCacheHitTokens:  saturateInt32(u.PromptCacheHitTokens),
			CountPromptCacheMissTokens: saturateInt32(u.PromptCacheMissTokens),
		},
	}
}

// MapFinishReason converts a wire finish_reason. Unknown values, the empty
// string and nil all map to no reason.
func MapFinishReason(reason *string) chat.FinishReason {
	if reason == nil {
		return ""
	}
	switch *reason {
	case "stop":
		return chat.FinishReasonStop
	case "length":
		return chat.FinishReasonLength
	case "content_filter":
		return chat.FinishReasonContentFilter
	case "tool_calls":
		return chat.FinishReasonToolCalls
	default:
		return ""
	}
}

// MapRole converts the role of an inbound message. Anything that is not
// user or system, including a missing message, is treated as assistant.
func MapRole(m *Message) chat.Role {
	if m == nil {
		return chat.RoleAssistant
	}
	switch m.Role {
	case RoleUser:
		return chat.RoleUser
	case RoleSystem:
		return chat.RoleSystem
	default:
		return chat.RoleAssistant
	}
}

// toMessage converts one choice of a full response.
func toMessage(choice Choice) chat.Message {
	m := choiceMessage(choice)

	msg := chat.Message{
		Role:              MapRole(m),
		RawRepresentation: choice,
	}
	if m != nil {
		msg.Contents = []chat.Content{chat.TextContent{Text: m.Content}}
	}
	if choice.Logprobs != nil {
		msg.AdditionalProperties = map[string]any{PropertyLogprobs: choice.Logprobs}
	}

	return msg
}

// choiceMessage prefers the streamed delta over the full message.
func choiceMessage(choice Choice) *Message {
	if choice.Delta != nil {
		return choice.Delta
	}
	return choice.Message
}

// saturateInt32 narrows v into the int32 range, clamping at the bounds.
func saturateInt32(v int64) int32 {
	switch {
	case v > math.MaxInt32:
		return math.MaxInt32
	case v < math.MinInt32:
		return math.MinInt32
	default:
		return int32(v)
	}
}
