package deepseek

import (
	"context"

	"github.com/rhuss/deepspeak/pkg/chat"
)

// ProviderName is reported by Metadata.
const ProviderName = "deepseek"

var _ chat.Client = (*Client)(nil)

// Complete implements chat.Client. A non-success HTTP status becomes an
// error wrapping ErrRequestFailed and the *HTTPError.
func (c *Client) Complete(ctx context.Context, messages []chat.Message, opts *chat.Options) (*chat.Completion, error) {
	res, err := c.Chat(ctx, c.translate(messages, opts))
	if err != nil {
		return nil, err
	}
	if !res.OK() {
		return nil, requestFailed(res.Failure)
	}
	return ToCompletion(res.Value), nil
}

// CompleteStreaming implements chat.Client. The returned channel yields one
// update per streamed choice and is closed at the end of the stream or when
// ctx is cancelled. A decoding failure is delivered as a final update with
// Err set.
func (c *Client) CompleteStreaming(ctx context.Context, messages []chat.Message, opts *chat.Options) (<-chan chat.StreamingUpdate, error) {
	res, err := c.ChatStream(ctx, c.translate(messages, opts))
	if err != nil {
		return nil, err
	}
	if !res.OK() {
		return nil, requestFailed(res.Failure)
	}

	stream := res.Value
	ch := make(chan chat.StreamingUpdate)

	go func() {
		defer close(ch)
		defer stream.Close()

		for stream.Next() {
			select {
			case ch <- ToStreamingUpdate(stream.Choice()):
			case <-ctx.Done():
				return
			}
		}
		if err := stream.Err(); err != nil && ctx.Err() == nil {
			select {
			case ch <- chat.StreamingUpdate{Err: err}:
			case <-ctx.Done():
			}
		}
	}()

	return ch, nil
}

// Metadata implements chat.Client.
func (c *Client) Metadata() chat.ClientMetadata {
	return chat.ClientMetadata{
		ProviderName:   ProviderName,
		ProviderURI:    c.baseURL,
		DefaultModelID: c.defaultModel,
	}
}

// translate builds the wire request, filling in the default model.
func (c *Client) translate(messages []chat.Message, opts *chat.Options) ChatRequest {
	req := TranslateRequest(messages, opts)
	if req.Model == "" {
		req.Model = c.defaultModel
	}
	return req
}
