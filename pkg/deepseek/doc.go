// Package deepseek implements chat.Client for the DeepSeek Chat Completions
// API. It translates between the generic chat types and the /chat/completions
// wire format, decodes the server-sent event stream into Choice values, and
// exposes a native surface (ListModels, Chat, ChatStream) that reports
// non-success HTTP answers as a Result instead of an error.
package deepseek
