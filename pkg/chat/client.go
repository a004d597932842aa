package chat

import "context"

// Client abstracts a chat completion backend.
//
// Implementations translate the generic request into their own protocol and
// report any failure to obtain a response as an error: there is no notion of
// an absent successful response at this level.
type Client interface {
	// Complete sends the conversation and returns the full completion.
	Complete(ctx context.Context, messages []Message, opts *Options) (*Completion, error)

	// CompleteStreaming sends the conversation and returns a channel of
	// incremental updates. The channel is closed by the client when the
	// stream ends, fails, or ctx is cancelled. A failure after the stream
	// started is delivered as a final update with Err set.
	CompleteStreaming(ctx context.Context, messages []Message, opts *Options) (<-chan StreamingUpdate, error)

	// Metadata describes the backend behind this client.
	Metadata() ClientMetadata

	// Close releases client resources. Calling it more than once is safe.
	Close() error
}

// ClientMetadata identifies the backend a Client talks to.
type ClientMetadata struct {
	ProviderName   string
	ProviderURI    string
	DefaultModelID string
}
