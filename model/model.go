package model

import (
	"context"

	"github.com/hupe1980/agentgate/core"
)

// Request captures the normalized model input produced by the runner.
type Request struct {
	Instructions string         `json:"instructions"` // System prompt
	Contents     []core.Content `json:"contents"`     // Conversation history ending with the new user turn
	Stream       bool           `json:"stream,omitempty"`
}

// TokenUsage captures token usage statistics for a response.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Response is a (partial or final) chunk emitted by a model.
type Response struct {
	ID           string       `json:"id"`
	Partial      bool         `json:"partial"` // Indicates if this is a partial response
	Content      core.Content `json:"content"`
	FinishReason string       `json:"finish_reason"` // "stop", "length", ...
	Usage        *TokenUsage  `json:"usage,omitempty"`
}

// Info contains metadata about a model implementation.
type Info struct {
	Name     string `json:"name"`
	Provider string `json:"provider"` // "openai", "anthropic", "mock"
}

// Model is the minimal interface required by the runner to drive generation.
// Both channels are closed when generation ends; errCh carries at most one error.
type Model interface {
	Generate(ctx context.Context, req Request) (<-chan Response, <-chan error)

	// Info returns information about the model implementation.
	Info() Info
}

// LastUserText returns the concatenated text of the final content in req.
func LastUserText(req Request) string {
	if len(req.Contents) == 0 {
		return ""
	}
	return req.Contents[len(req.Contents)-1].Text()
}
