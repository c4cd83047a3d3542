// Package provider implements streaming LLM provider clients behind a
// common contract.
package provider

import (
	"context"
	"encoding/json"
	"fmt"
)

// Provider is the interface for LLM API clients. Implementations must
// be safe for concurrent use.
type Provider interface {
	// Name identifies the provider ("anthropic", "openai", ...).
	Name() string
	// Models lists the models this provider can serve, each tagged with
	// the capability tier it is routed under.
	Models() []ModelInfo
	// DefaultModel returns the configured default model.
	DefaultModel() string
	// Stream sends a completion request, forwarding incremental events
	// to cb, and returns the assembled final response.
	Stream(ctx context.Context, req *ChatRequest, cb StreamCallback) (*ChatResponse, error)
}

// ModelInfo is one servable model and its capability tier ("fast",
// "standard", "powerful"). An empty tier means the model is reachable
// only by explicit id.
type ModelInfo struct {
	ID   string
	Tier string
}

// withDefault ensures the default model appears in the catalog; a
// configured model outside the catalog is prepended untiered so
// explicit-id routing can still reach it.
func withDefault(models []ModelInfo, defaultModel string) []ModelInfo {
	if defaultModel == "" {
		return models
	}
	for _, m := range models {
		if m.ID == defaultModel {
			return models
		}
	}
	return append([]ModelInfo{{ID: defaultModel}}, models...)
}

// ChatRequest contains the parameters for a chat completion request.
type ChatRequest struct {
	Messages    []Message
	Tools       []ToolDefinition
	Model       string
	System      string
	MaxTokens   int
	Temperature float64
}

// ChatResponse is the assembled result of a completed stream.
type ChatResponse struct {
	Content      string
	ToolCalls    []ToolCall
	Model        string
	FinishReason string
	Usage        Usage
}

// Message represents a chat message.
type Message struct {
	Role       string     `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
}

// ToolCall is one tool invocation requested by the model.
type ToolCall struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// ToolDefinition describes a tool offered to the model.
type ToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// Usage contains token usage information.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// StreamEventKind identifies the type of stream event.
type StreamEventKind int

const (
	// KindToken is an incremental text token from the model.
	KindToken StreamEventKind = iota
	// KindToolCallStart fires when the model begins emitting a tool call.
	KindToolCallStart
	// KindToolCallDelta carries a fragment of tool call arguments.
	KindToolCallDelta
	// KindToolCallEnd fires when one tool call's arguments are complete.
	KindToolCallEnd
	// KindDone signals the stream is complete. Response carries the
	// assembled final state.
	KindDone
)

// StreamEvent is a single event in a streaming response. Consumers
// switch on Kind to determine what data is available.
type StreamEvent struct {
	Kind StreamEventKind

	// Token is set for KindToken; for KindToolCallDelta it carries the
	// raw argument fragment.
	Token string

	// ToolCall is set for KindToolCallStart (id and name only) and
	// KindToolCallEnd (complete, with arguments).
	ToolCall *ToolCall

	// Response is set for KindDone.
	Response *ChatResponse
}

// StreamCallback receives streaming events in emission order.
type StreamCallback func(event StreamEvent)

// ProviderError is a configuration or invocation failure with a hint
// the user can act on.
type ProviderError struct {
	Provider string
	Hint     string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider %q: %s", e.Provider, e.Hint)
}
