// Package agent implements the tool-call loop that drives a model
// through rounds of tool invocation to a final answer.
package agent

import (
	"github.com/majordomo-ai/majordomo/internal/provider"
)

// ChunkKind identifies a loop output chunk.
type ChunkKind string

// Chunk kinds, in rough emission order within a round.
const (
	ChunkText             ChunkKind = "text"
	ChunkToolCallStart    ChunkKind = "tool_call_start"
	ChunkToolCallDelta    ChunkKind = "tool_call_delta"
	ChunkToolCallEnd      ChunkKind = "tool_call_end"
	ChunkToolCallsPending ChunkKind = "tool_calls_pending"
	ChunkToolExecuting    ChunkKind = "tool_executing"
	ChunkToolResult       ChunkKind = "tool_result"
	ChunkDone             ChunkKind = "done"
	ChunkError            ChunkKind = "error"
)

// ToolResultChunk carries one tool execution outcome.
type ToolResultChunk struct {
	ToolUseID string `json:"tool_use_id"`
	Name      string `json:"name"`
	Content   string `json:"content"`
	IsError   bool   `json:"is_error"`
}

// Chunk is one element of an execution's output sequence. Exactly the
// fields implied by Kind are set.
type Chunk struct {
	Kind ChunkKind `json:"kind"`

	// Text carries a text delta (ChunkText) or an argument fragment
	// (ChunkToolCallDelta).
	Text string `json:"text,omitempty"`

	// ToolCall is set for ChunkToolCallStart (id/name), ChunkToolCallEnd
	// (complete), and ChunkToolExecuting.
	ToolCall *provider.ToolCall `json:"tool_call,omitempty"`

	// PendingCalls is set for ChunkToolCallsPending.
	PendingCalls []provider.ToolCall `json:"pending_calls,omitempty"`

	// ToolResult is set for ChunkToolResult.
	ToolResult *ToolResultChunk `json:"tool_result,omitempty"`

	// Usage and FinalText are set for ChunkDone.
	Usage     *provider.Usage `json:"usage,omitempty"`
	FinalText string          `json:"final_text,omitempty"`

	// Error is set for ChunkError.
	Error string `json:"error,omitempty"`
}
