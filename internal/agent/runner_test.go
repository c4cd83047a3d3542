package agent

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"

	"github.com/majordomo-ai/majordomo/internal/events"
	"github.com/majordomo-ai/majordomo/internal/provider"
	"github.com/majordomo-ai/majordomo/internal/router"
	"github.com/majordomo-ai/majordomo/internal/store"
	"github.com/majordomo-ai/majordomo/internal/tools"
)

// scriptRound is one scripted model invocation.
type scriptRound struct {
	events []provider.StreamEvent
	resp   *provider.ChatResponse
	err    error
}

// scriptedProvider replays pre-baked rounds and records each request.
type scriptedProvider struct {
	rounds   []scriptRound
	call     int
	requests []*provider.ChatRequest
}

func (s *scriptedProvider) Name() string { return "scripted" }
func (s *scriptedProvider) Models() []provider.ModelInfo {
	return []provider.ModelInfo{{ID: "scripted-1", Tier: "standard"}}
}
func (s *scriptedProvider) DefaultModel() string { return "scripted-1" }

func (s *scriptedProvider) Stream(ctx context.Context, req *provider.ChatRequest, cb provider.StreamCallback) (*provider.ChatResponse, error) {
	s.requests = append(s.requests, req)
	if s.call >= len(s.rounds) {
		return nil, errors.New("script exhausted")
	}
	round := s.rounds[s.call]
	s.call++
	for _, ev := range round.events {
		if cb != nil {
			cb(ev)
		}
	}
	if round.err != nil {
		return nil, round.err
	}
	return round.resp, nil
}

func textRound(text string) scriptRound {
	var evs []provider.StreamEvent
	for _, tok := range []string{text} {
		evs = append(evs, provider.StreamEvent{Kind: provider.KindToken, Token: tok})
	}
	return scriptRound{
		events: evs,
		resp:   &provider.ChatResponse{Content: text, Model: "scripted-1", FinishReason: "stop", Usage: provider.Usage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15}},
	}
}

func toolRound(id, name, args string) scriptRound {
	call := provider.ToolCall{ID: id, Name: name, Arguments: json.RawMessage(args)}
	return scriptRound{
		events: []provider.StreamEvent{
			{Kind: provider.KindToolCallStart, ToolCall: &provider.ToolCall{ID: id, Name: name}},
			{Kind: provider.KindToolCallDelta, Token: args},
			{Kind: provider.KindToolCallEnd, ToolCall: &call},
		},
		resp: &provider.ChatResponse{ToolCalls: []provider.ToolCall{call}, Model: "scripted-1", FinishReason: "tool_calls", Usage: provider.Usage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15}},
	}
}

func newTestRunner(t *testing.T, p provider.Provider, withStore bool, maxRounds int) (*Runner, *tools.Registry, *events.Bus, *store.Store) {
	t.Helper()
	reg := tools.NewRegistry()
	if err := tools.RegisterBuiltins(reg, tools.BuiltinOptions{}); err != nil {
		t.Fatal(err)
	}
	bus := events.NewBus()
	var st *store.Store
	if withStore {
		var err error
		st, err = store.Open(filepath.Join(t.TempDir(), "test.db"))
		if err != nil {
			t.Fatal(err)
		}
		t.Cleanup(func() { st.Close() })
	}
	r := NewRunner(Options{
		Router:    router.New(p),
		Registry:  reg,
		Bus:       bus,
		Store:     st,
		MaxRounds: maxRounds,
	})
	return r, reg, bus, st
}

func collect(ch <-chan Chunk) []Chunk {
	var out []Chunk
	for c := range ch {
		out = append(out, c)
	}
	return out
}

func kinds(chunks []Chunk) []ChunkKind {
	out := make([]ChunkKind, len(chunks))
	for i, c := range chunks {
		out[i] = c.Kind
	}
	return out
}

func TestPlainTextTurn(t *testing.T) {
	p := &scriptedProvider{rounds: []scriptRound{textRound("hello there")}}
	r, _, _, st := newTestRunner(t, p, true, 0)

	conv := &store.Conversation{}
	if err := st.CreateConversation(conv); err != nil {
		t.Fatal(err)
	}
	chunks := collect(r.Run(context.Background(), Request{
		ConversationID: conv.ID,
		History:        []provider.Message{{Role: "user", Content: "hi"}},
	}))

	got := kinds(chunks)
	if len(got) != 2 || got[0] != ChunkText || got[1] != ChunkDone {
		t.Fatalf("kinds = %v, want [text done]", got)
	}
	if chunks[1].FinalText != "hello there" {
		t.Errorf("final text = %q", chunks[1].FinalText)
	}
	if chunks[1].Usage == nil || chunks[1].Usage.TotalTokens != 15 {
		t.Errorf("usage = %+v", chunks[1].Usage)
	}

	msgs, err := st.ListMessages(conv.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 1 || msgs[0].Role != store.RoleAssistant {
		t.Fatalf("persisted %d messages: %+v", len(msgs), msgs)
	}
}

func TestSingleToolCallTurn(t *testing.T) {
	p := &scriptedProvider{rounds: []scriptRound{
		toolRound("call_1", "get_current_time", "{}"),
		textRound("it is noon"),
	}}
	r, _, _, st := newTestRunner(t, p, true, 0)

	conv := &store.Conversation{}
	if err := st.CreateConversation(conv); err != nil {
		t.Fatal(err)
	}
	chunks := collect(r.Run(context.Background(), Request{
		ConversationID: conv.ID,
		History:        []provider.Message{{Role: "user", Content: "what time is it"}},
	}))

	want := []ChunkKind{
		ChunkToolCallStart, ChunkToolCallDelta, ChunkToolCallEnd,
		ChunkToolCallsPending, ChunkToolExecuting, ChunkToolResult,
		ChunkText, ChunkDone,
	}
	got := kinds(chunks)
	if len(got) != len(want) {
		t.Fatalf("kinds = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("kinds = %v, want %v", got, want)
		}
	}

	// Three messages: assistant-with-tool-use, tool-result, final assistant.
	msgs, err := st.ListMessages(conv.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 3 {
		t.Fatalf("persisted %d messages, want 3", len(msgs))
	}
	if msgs[0].Role != store.RoleAssistant || len(msgs[0].Blocks) != 1 || msgs[0].Blocks[0].Type != store.BlockToolUse {
		t.Errorf("first message = %+v", msgs[0])
	}
	if msgs[1].Role != store.RoleTool || len(msgs[1].Blocks) != 1 || msgs[1].Blocks[0].ToolUseID != "call_1" {
		t.Errorf("second message = %+v", msgs[1])
	}
	if msgs[2].Role != store.RoleAssistant || msgs[2].Content != "it is noon" {
		t.Errorf("third message = %+v", msgs[2])
	}
}

func TestToolResultMatchesToolCallEnd(t *testing.T) {
	p := &scriptedProvider{rounds: []scriptRound{
		toolRound("call_1", "get_current_time", "{}"),
		toolRound("call_2", "list_dir", `{"path":"."}`),
		textRound("done looking"),
	}}
	r, _, _, _ := newTestRunner(t, p, false, 0)

	chunks := collect(r.Run(context.Background(), Request{
		History: []provider.Message{{Role: "user", Content: "poke around"}},
	}))

	ends, results := 0, 0
	for _, c := range chunks {
		switch c.Kind {
		case ChunkToolCallEnd:
			ends++
		case ChunkToolResult:
			results++
		}
	}
	if ends != results {
		t.Fatalf("tool_call_end=%d tool_result=%d, must match", ends, results)
	}
}

func TestSearchToolsExpandsActiveSet(t *testing.T) {
	p := &scriptedProvider{rounds: []scriptRound{
		toolRound("call_1", "search_tools", `{"query":"fetch url"}`),
		textRound("found it"),
	}}
	r, _, _, _ := newTestRunner(t, p, false, 0)

	// Allow-list contains only the discovery tool; fetch is registered
	// but not granted.
	chunks := collect(r.Run(context.Background(), Request{
		History:      []provider.Message{{Role: "user", Content: "get me a page"}},
		AllowedTools: []string{"search_tools"},
	}))
	if chunks[len(chunks)-1].Kind != ChunkDone {
		t.Fatalf("terminal chunk = %v", chunks[len(chunks)-1].Kind)
	}

	if len(p.requests) != 2 {
		t.Fatalf("model called %d times, want 2", len(p.requests))
	}
	firstNames := defNames(p.requests[0].Tools)
	if len(firstNames) != 1 || firstNames[0] != "search_tools" {
		t.Fatalf("round 1 tools = %v", firstNames)
	}
	secondNames := defNames(p.requests[1].Tools)
	if !contains(secondNames, "fetch") {
		t.Fatalf("round 2 tools = %v, want fetch discovered", secondNames)
	}
}

func TestModelErrorMidStream(t *testing.T) {
	p := &scriptedProvider{rounds: []scriptRound{{
		events: []provider.StreamEvent{
			{Kind: provider.KindToken, Token: "partial "},
			{Kind: provider.KindToken, Token: "answer"},
		},
		err: errors.New("connection reset"),
	}}}
	r, _, bus, _ := newTestRunner(t, p, false, 0)

	var errEvents []events.Event
	bus.Subscribe(events.TypeLLMError, func(e events.Event) { errEvents = append(errEvents, e) })

	chunks := collect(r.Run(context.Background(), Request{
		History: []provider.Message{{Role: "user", Content: "hi"}},
	}))

	errChunks, doneChunks := 0, 0
	for _, c := range chunks {
		switch c.Kind {
		case ChunkError:
			errChunks++
		case ChunkDone:
			doneChunks++
		}
	}
	if errChunks != 1 || doneChunks != 0 {
		t.Fatalf("error=%d done=%d, want exactly one error and no done", errChunks, doneChunks)
	}

	// Accumulated text must survive into the error event.
	if len(errEvents) != 1 {
		t.Fatalf("llm.error events = %d, want 1", len(errEvents))
	}
	if errEvents[0].Payload["partial_text"] != "partial answer" {
		t.Errorf("partial_text = %v", errEvents[0].Payload["partial_text"])
	}
}

func TestToolFailureIsNotFatal(t *testing.T) {
	p := &scriptedProvider{rounds: []scriptRound{
		toolRound("call_1", "no_such_tool", "{}"),
		textRound("that tool does not exist"),
	}}
	r, _, _, _ := newTestRunner(t, p, false, 0)

	chunks := collect(r.Run(context.Background(), Request{
		History: []provider.Message{{Role: "user", Content: "hi"}},
	}))

	var result *ToolResultChunk
	for _, c := range chunks {
		if c.Kind == ChunkToolResult {
			result = c.ToolResult
		}
	}
	if result == nil || !result.IsError {
		t.Fatalf("tool result = %+v, want error-flagged", result)
	}
	if chunks[len(chunks)-1].Kind != ChunkDone {
		t.Fatalf("loop must continue to done after tool failure, got %v", kinds(chunks))
	}
}

func TestMaxRoundsValve(t *testing.T) {
	p := &scriptedProvider{rounds: []scriptRound{
		toolRound("call_1", "get_current_time", "{}"),
		toolRound("call_2", "get_current_time", "{}"),
		toolRound("call_3", "get_current_time", "{}"),
	}}
	r, _, _, _ := newTestRunner(t, p, false, 2)

	chunks := collect(r.Run(context.Background(), Request{
		History: []provider.Message{{Role: "user", Content: "loop forever"}},
	}))
	last := chunks[len(chunks)-1]
	if last.Kind != ChunkError {
		t.Fatalf("terminal chunk = %v, want error from round valve", last.Kind)
	}
	if len(p.requests) != 2 {
		t.Errorf("model called %d times, want 2", len(p.requests))
	}
}

func TestNoProvidersIsImmediateError(t *testing.T) {
	reg := tools.NewRegistry()
	r := NewRunner(Options{Router: router.New(), Registry: reg, Bus: events.NewBus()})

	chunks := collect(r.Run(context.Background(), Request{
		History: []provider.Message{{Role: "user", Content: "hi"}},
	}))
	if len(chunks) != 1 || chunks[0].Kind != ChunkError {
		t.Fatalf("chunks = %v", kinds(chunks))
	}
}

func defNames(defs []provider.ToolDefinition) []string {
	out := make([]string, len(defs))
	for i, d := range defs {
		out[i] = d.Name
	}
	return out
}

func contains(list []string, want string) bool {
	for _, s := range list {
		if s == want {
			return true
		}
	}
	return false
}
