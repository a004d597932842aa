package deepseek

import (
	"strings"

	"github.com/rhuss/deepspeak/pkg/chat"
)

// Keys recognized in chat.Options.AdditionalProperties.
const (
	OptionLogprobs    = "Logprobs"
	OptionTopLogprobs = "TopLogprobs"
)

// TranslateRequest converts a generic conversation and options into a
// ChatRequest. Messages with a role the API does not accept, or without any
// non-blank text, are dropped. Options only override the wire defaults when
// present. Stream is left for the caller to set.
func TranslateRequest(messages []chat.Message, opts *chat.Options) ChatRequest {
	req := NewChatRequest()

	if opts != nil {
		applyOptions(&req, opts)
	}

	for _, m := range messages {
		role, ok := wireRole(m.Role)
		if !ok {
			continue
		}

		text := m.Text()
		if strings.TrimSpace(text) == "" {
			continue
		}

		req.Messages = append(req.Messages, Message{Role: role, Content: text})
	}

	return req
}

// applyOptions copies every present option onto the request.
func applyOptions(req *ChatRequest, opts *chat.Options) {
	if opts.ModelID != "" {
		req.Model = opts.ModelID
	}
	if opts.FrequencyPenalty != nil {
		req.FrequencyPenalty = *opts.FrequencyPenalty
	}
	if opts.MaxOutputTokens != nil {
		req.MaxTokens = int64(*opts.MaxOutputTokens)
	}
	if opts.PresencePenalty != nil {
		req.PresencePenalty = *opts.PresencePenalty
	}
	if opts.StopSequences != nil {
		req.Stop = append([]string{}, opts.StopSequences...)
	}
	if opts.Temperature != nil {
		req.Temperature = *opts.Temperature
	}
	if opts.TopP != nil {
		req.TopP = *opts.TopP
	}
	if v, ok := opts.AdditionalProperties[OptionLogprobs].(bool); ok {
		req.Logprobs = v
	}
	if v, ok := intProperty(opts.AdditionalProperties, OptionTopLogprobs); ok {
		req.TopLogprobs = &v
	}
}

// wireRole maps a generic role to the API role. Only user, assistant and
// system are accepted.
func wireRole(r chat.Role) (string, bool) {
	switch r {
	case chat.RoleUser:
		return RoleUser, true
	case chat.RoleAssistant:
		return RoleAssistant, true
	case chat.RoleSystem:
		return RoleSystem, true
	default:
		return "", false
	}
}

// intProperty reads an integer-kinded property. Values of any other type
// count as absent.
func intProperty(props map[string]any, key string) (int, bool) {
	switch v := props[key].(type) {
	case int:
		return v, true
	case int8:
		return int(v), true
	case int16:
		return int(v), true
	case int32:
		return int(v), true
	case int64:
		return int(v), true
	case uint8:
		return int(v), true
	case uint16:
		return int(v), true
	case uint32:
		return int(v), true
	default:
		return 0, false
	}
}
