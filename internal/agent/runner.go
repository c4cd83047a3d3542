package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/majordomo-ai/majordomo/internal/events"
	"github.com/majordomo-ai/majordomo/internal/provider"
	"github.com/majordomo-ai/majordomo/internal/router"
	"github.com/majordomo-ai/majordomo/internal/store"
	"github.com/majordomo-ai/majordomo/internal/tools"
)

// Runner drives the tool-call loop: model invocation, sequential tool
// execution, history append, repeat until the model stops requesting
// tools. One Runner serves all executions; per-execution state lives on
// the stack.
type Runner struct {
	router   *router.Router
	registry *tools.Registry
	bus      *events.Bus
	store    *store.Store

	// maxRounds caps tool-call rounds per execution. 0 means unbounded:
	// termination then depends on the model choosing to stop.
	maxRounds int
}

// Options configures a Runner. Store is optional; without it the loop
// runs without persistence.
type Options struct {
	Router    *router.Router
	Registry  *tools.Registry
	Bus       *events.Bus
	Store     *store.Store
	MaxRounds int
}

// NewRunner creates a Runner.
func NewRunner(opts Options) *Runner {
	return &Runner{
		router:    opts.Router,
		registry:  opts.Registry,
		bus:       opts.Bus,
		store:     opts.Store,
		maxRounds: opts.MaxRounds,
	}
}

// Request describes one execution.
type Request struct {
	// ConversationID enables persistence of the turn's messages.
	ConversationID string
	// AgentID labels emitted events; empty for direct chat.
	AgentID string

	SystemPrompt string
	History      []provider.Message

	// AllowedTools is the allow-set intersected with the registry to
	// form the active tool definitions. Nil grants the default set.
	AllowedTools []string

	ModelID     string
	Tier        string
	MaxTokens   int
	Temperature float64
}

// Outcome is the terminal state of a successful execution.
type Outcome struct {
	FinalText string
	Usage     provider.Usage
	Rounds    int
}

// Run starts the execution and returns its chunk sequence. The channel
// is closed after the terminal chunk (done or error). The execution
// runs to completion regardless of whether the caller drains promptly;
// the channel is buffered generously and sends never block forever
// thanks to the terminal close.
func (r *Runner) Run(ctx context.Context, req Request) <-chan Chunk {
	out := make(chan Chunk, 256)
	go func() {
		defer close(out)
		emit := func(c Chunk) {
			select {
			case out <- c:
			case <-ctx.Done():
			}
		}
		if _, err := r.run(ctx, req, emit); err != nil {
			slog.Error("agent execution failed", "conversation", req.ConversationID, "agent", req.AgentID, "error", err)
		}
	}()
	return out
}

// RunSync executes the loop and drains the chunk sequence internally,
// returning only the terminal outcome. Used by background dispatch.
func (r *Runner) RunSync(ctx context.Context, req Request) (*Outcome, error) {
	return r.run(ctx, req, func(Chunk) {})
}

// RunWith executes the loop, forwarding every chunk to emit, and
// returns the terminal outcome.
func (r *Runner) RunWith(ctx context.Context, req Request, emit func(Chunk)) (*Outcome, error) {
	return r.run(ctx, req, emit)
}

func (r *Runner) run(ctx context.Context, req Request, emit func(Chunk)) (*Outcome, error) {
	sel, err := r.router.Route(req.ModelID, req.Tier)
	if err != nil {
		emit(Chunk{Kind: ChunkError, Error: err.Error()})
		return nil, err
	}

	active := r.activeToolSet(req.AllowedTools)
	history := append([]provider.Message(nil), req.History...)
	var usage provider.Usage
	rounds := 0

	for {
		if r.maxRounds > 0 && rounds >= r.maxRounds {
			err := fmt.Errorf("tool-call round limit (%d) reached", r.maxRounds)
			emit(Chunk{Kind: ChunkError, Error: err.Error()})
			return nil, err
		}
		rounds++

		resp, text, err := r.callModel(ctx, sel, req, history, active, emit)
		if err != nil {
			// Accumulated text must not vanish silently; it rides the
			// error event for observability.
			r.publish(events.Event{
				Type: events.TypeLLMError, Source: "agent", Level: "error",
				AgentID: req.AgentID, ConversationID: req.ConversationID,
				Payload: map[string]any{"error": err.Error(), "partial_text": text, "round": rounds},
			})
			emit(Chunk{Kind: ChunkError, Error: err.Error()})
			return nil, err
		}
		usage.PromptTokens += resp.Usage.PromptTokens
		usage.CompletionTokens += resp.Usage.CompletionTokens
		usage.TotalTokens += resp.Usage.TotalTokens

		if len(resp.ToolCalls) == 0 {
			// Final answer: no pending tool calls.
			r.persistMessage(req.ConversationID, &store.Message{
				ConversationID: req.ConversationID,
				Role:           store.RoleAssistant,
				Content:        resp.Content,
				Tokens:         resp.Usage.CompletionTokens,
				Model:          resp.Model,
			})
			r.publish(events.Event{
				Type: events.TypeAgentCompleted, Source: "agent",
				AgentID: req.AgentID, ConversationID: req.ConversationID,
				Payload: map[string]any{"rounds": rounds, "total_tokens": usage.TotalTokens},
			})
			emit(Chunk{Kind: ChunkDone, Usage: &usage, FinalText: resp.Content})
			return &Outcome{FinalText: resp.Content, Usage: usage, Rounds: rounds}, nil
		}

		emit(Chunk{Kind: ChunkToolCallsPending, PendingCalls: resp.ToolCalls})

		// One assistant message carrying the text and tool-use blocks.
		history = append(history, provider.Message{
			Role:      store.RoleAssistant,
			Content:   resp.Content,
			ToolCalls: resp.ToolCalls,
		})
		r.persistMessage(req.ConversationID, &store.Message{
			ConversationID: req.ConversationID,
			Role:           store.RoleAssistant,
			Content:        resp.Content,
			Blocks:         assistantBlocks(resp.Content, resp.ToolCalls),
			Tokens:         resp.Usage.CompletionTokens,
			Model:          resp.Model,
		})

		// Execute sequentially in emission order: history must append
		// results in a stable order the model can rely on.
		results := r.executeCalls(ctx, req, resp.ToolCalls, active, emit)

		for _, res := range results {
			history = append(history, provider.Message{
				Role:       store.RoleTool,
				Content:    res.Content,
				ToolCallID: res.ToolUseID,
			})
		}
		r.persistMessage(req.ConversationID, &store.Message{
			ConversationID: req.ConversationID,
			Role:           store.RoleTool,
			Blocks:         toolResultBlocks(results),
		})
	}
}

// callModel streams one model invocation, forwarding deltas as chunks.
func (r *Runner) callModel(ctx context.Context, sel router.Selection, req Request, history []provider.Message, active map[string]bool, emit func(Chunk)) (*provider.ChatResponse, string, error) {
	r.publish(events.Event{
		Type: events.TypeLLMRequest, Source: "agent",
		AgentID: req.AgentID, ConversationID: req.ConversationID,
		Payload: map[string]any{"provider": sel.Provider.Name(), "model": sel.Model, "messages": len(history)},
	})

	var text strings.Builder
	chatReq := &provider.ChatRequest{
		Messages:    history,
		Tools:       r.activeDefinitions(active),
		Model:       sel.Model,
		System:      req.SystemPrompt,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	}
	resp, err := sel.Provider.Stream(ctx, chatReq, func(ev provider.StreamEvent) {
		switch ev.Kind {
		case provider.KindToken:
			text.WriteString(ev.Token)
			emit(Chunk{Kind: ChunkText, Text: ev.Token})
		case provider.KindToolCallStart:
			emit(Chunk{Kind: ChunkToolCallStart, ToolCall: ev.ToolCall})
		case provider.KindToolCallDelta:
			emit(Chunk{Kind: ChunkToolCallDelta, Text: ev.Token})
		case provider.KindToolCallEnd:
			emit(Chunk{Kind: ChunkToolCallEnd, ToolCall: ev.ToolCall})
		}
	})
	if err != nil {
		return nil, text.String(), err
	}

	r.publish(events.Event{
		Type: events.TypeLLMResponse, Source: "agent",
		AgentID: req.AgentID, ConversationID: req.ConversationID,
		Payload: map[string]any{
			"model": resp.Model, "tool_calls": len(resp.ToolCalls),
			"finish_reason": resp.FinishReason, "total_tokens": resp.Usage.TotalTokens,
		},
	})
	return resp, text.String(), nil
}

// executeCalls runs each pending call in order, expanding the active
// set when the discovery tool returns new names.
func (r *Runner) executeCalls(ctx context.Context, req Request, calls []provider.ToolCall, active map[string]bool, emit func(Chunk)) []ToolResultChunk {
	results := make([]ToolResultChunk, 0, len(calls))
	for i := range calls {
		call := calls[i]
		emit(Chunk{Kind: ChunkToolExecuting, ToolCall: &call})
		r.publish(events.Event{
			Type: events.TypeToolCalled, Source: "agent",
			AgentID: req.AgentID, ConversationID: req.ConversationID,
			Payload: map[string]any{"tool": call.Name, "tool_use_id": call.ID},
		})

		res := r.executeOne(ctx, call)

		if res.Success && call.Name == tools.SearchToolsName {
			for _, name := range tools.ParseSearchResults(res.Content) {
				active[name] = true
			}
		}

		eventType := events.TypeToolResult
		level := "info"
		if !res.Success {
			eventType = events.TypeToolError
			level = "warn"
		}
		r.publish(events.Event{
			Type: eventType, Source: "agent", Level: level,
			AgentID: req.AgentID, ConversationID: req.ConversationID,
			Payload: map[string]any{"tool": call.Name, "tool_use_id": call.ID, "error": res.Error},
		})

		chunk := ToolResultChunk{
			ToolUseID: call.ID,
			Name:      call.Name,
			Content:   res.Text(),
			IsError:   !res.Success,
		}
		emit(Chunk{Kind: ChunkToolResult, ToolResult: &chunk})
		results = append(results, chunk)
	}
	return results
}

func (r *Runner) executeOne(ctx context.Context, call provider.ToolCall) tools.Result {
	params := map[string]any{}
	if len(call.Arguments) > 0 {
		if err := json.Unmarshal(call.Arguments, &params); err != nil {
			return tools.Result{Error: fmt.Sprintf("invalid arguments for %s: %v", call.Name, err)}
		}
	}
	return r.registry.Execute(ctx, call.Name, params)
}

// activeToolSet intersects the allow-set with the registry. A nil
// allow-set grants the defaults.
func (r *Runner) activeToolSet(allowed []string) map[string]bool {
	if allowed == nil {
		allowed = tools.DefaultToolNames()
	}
	active := make(map[string]bool, len(allowed))
	for _, name := range allowed {
		if _, ok := r.registry.Get(name); ok {
			active[name] = true
		}
	}
	return active
}

// activeDefinitions builds the definitions offered to the model, in
// registry registration order for stable prompts.
func (r *Runner) activeDefinitions(active map[string]bool) []provider.ToolDefinition {
	var defs []provider.ToolDefinition
	for _, t := range r.registry.List() {
		if !active[t.Name()] {
			continue
		}
		defs = append(defs, provider.ToolDefinition{
			Name:        t.Name(),
			Description: t.Description(),
			Parameters:  t.Parameters(),
		})
	}
	return defs
}

func (r *Runner) publish(e events.Event) {
	if r.bus != nil {
		r.bus.Publish(e)
	}
}

func (r *Runner) persistMessage(conversationID string, m *store.Message) {
	if r.store == nil || conversationID == "" {
		return
	}
	if err := r.store.AddMessage(m); err != nil {
		slog.Error("persist message", "conversation", conversationID, "role", m.Role, "error", err)
	}
}
