// Package chat defines the provider-agnostic contract for talking to a chat
// language model. Callers build a conversation from Message values, tune
// sampling with Options, and receive a Completion (or a stream of
// StreamingUpdate values) back. Backend adapters such as deepseek implement
// Client and keep their wire protocol invisible to callers.
package chat
