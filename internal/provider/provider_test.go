package provider

import (
	"encoding/json"
	"testing"

	openai "github.com/sashabaranov/go-openai"

	"github.com/majordomo-ai/majordomo/internal/config"
)

func TestToolCallAccumulatorStitchesFragments(t *testing.T) {
	acc := newToolCallAccumulator()
	var events []StreamEvent
	cb := func(e StreamEvent) { events = append(events, e) }

	idx := 0
	acc.add(openai.ToolCall{Index: &idx, ID: "call_1", Function: openai.FunctionCall{Name: "exec"}}, cb)
	acc.add(openai.ToolCall{Index: &idx, Function: openai.FunctionCall{Arguments: `{"comm`}}, cb)
	acc.add(openai.ToolCall{Index: &idx, Function: openai.FunctionCall{Arguments: `and":"ls"}`}}, cb)
	acc.flush(cb)

	calls := acc.calls()
	if len(calls) != 1 {
		t.Fatalf("got %d calls, want 1", len(calls))
	}
	if calls[0].ID != "call_1" || calls[0].Name != "exec" {
		t.Errorf("call = %+v", calls[0])
	}
	var args map[string]string
	if err := json.Unmarshal(calls[0].Arguments, &args); err != nil {
		t.Fatalf("arguments not valid json: %v", err)
	}
	if args["command"] != "ls" {
		t.Errorf("command = %q", args["command"])
	}

	kinds := []StreamEventKind{KindToolCallStart, KindToolCallDelta, KindToolCallDelta, KindToolCallEnd}
	if len(events) != len(kinds) {
		t.Fatalf("got %d events, want %d", len(events), len(kinds))
	}
	for i, want := range kinds {
		if events[i].Kind != want {
			t.Errorf("event[%d].Kind = %v, want %v", i, events[i].Kind, want)
		}
	}
}

func TestToolCallAccumulatorEmptyArguments(t *testing.T) {
	acc := newToolCallAccumulator()
	idx := 0
	acc.add(openai.ToolCall{Index: &idx, ID: "call_1", Function: openai.FunctionCall{Name: "get_current_time"}}, nil)
	acc.flush(nil)

	calls := acc.calls()
	if len(calls) != 1 || string(calls[0].Arguments) != "{}" {
		t.Fatalf("calls = %+v", calls)
	}
}

func TestToOpenAIMessagesMapsToolTraffic(t *testing.T) {
	req := &ChatRequest{
		System: "be helpful",
		Messages: []Message{
			{Role: "user", Content: "list my files"},
			{Role: "assistant", ToolCalls: []ToolCall{{ID: "call_1", Name: "list_dir", Arguments: json.RawMessage(`{"path":"."}`)}}},
			{Role: "tool", ToolCallID: "call_1", Content: "a.txt"},
		},
	}
	msgs := toOpenAIMessages(req)
	if len(msgs) != 4 {
		t.Fatalf("got %d messages, want 4 (system + 3)", len(msgs))
	}
	if msgs[0].Role != openai.ChatMessageRoleSystem {
		t.Errorf("first role = %s", msgs[0].Role)
	}
	if len(msgs[2].ToolCalls) != 1 || msgs[2].ToolCalls[0].Function.Name != "list_dir" {
		t.Errorf("assistant tool calls = %+v", msgs[2].ToolCalls)
	}
	if msgs[3].ToolCallID != "call_1" {
		t.Errorf("tool call id = %q", msgs[3].ToolCallID)
	}
}

func TestToAnthropicMessagesToolResultBecomesUserBlock(t *testing.T) {
	msgs := toAnthropicMessages([]Message{
		{Role: "user", Content: "what time is it"},
		{Role: "assistant", ToolCalls: []ToolCall{{ID: "toolu_1", Name: "get_current_time", Arguments: json.RawMessage(`{}`)}}},
		{Role: "tool", ToolCallID: "toolu_1", Content: "2026-08-31T10:00:00Z"},
	})
	if len(msgs) != 3 {
		t.Fatalf("got %d messages, want 3", len(msgs))
	}
	if string(msgs[1].Role) != "assistant" {
		t.Errorf("second role = %s", msgs[1].Role)
	}
	// Tool results must travel on the user role.
	if string(msgs[2].Role) != "user" {
		t.Errorf("tool result role = %s, want user", msgs[2].Role)
	}
}

func TestEncodeToolSchemaDefaultsToObject(t *testing.T) {
	schema, err := encodeToolSchema(nil)
	if err != nil {
		t.Fatal(err)
	}
	if schema.Type != "object" {
		t.Errorf("type = %q, want object", schema.Type)
	}
}

func TestFromConfigSkipsUnconfigured(t *testing.T) {
	cfg := config.Default()
	cfg.Providers.OpenAI.APIKey = "sk-test"

	providers := FromConfig(cfg)
	if len(providers) != 1 {
		t.Fatalf("got %d providers, want 1", len(providers))
	}
	if providers[0].Name() != "openai" {
		t.Errorf("provider = %s", providers[0].Name())
	}
}

func TestFromConfigTagsModelTiers(t *testing.T) {
	cfg := config.Default()
	cfg.Providers.Anthropic.APIKey = "sk-ant-test"

	providers := FromConfig(cfg)
	if len(providers) != 1 {
		t.Fatalf("got %d providers, want 1", len(providers))
	}
	tiers := map[string]bool{}
	for _, m := range providers[0].Models() {
		tiers[m.Tier] = true
	}
	for _, want := range []string{"fast", "standard", "powerful"} {
		if !tiers[want] {
			t.Errorf("no model tagged %q in %v", want, providers[0].Models())
		}
	}
}

func TestWithDefaultPrependsUnlistedModel(t *testing.T) {
	models := withDefault([]ModelInfo{{ID: "gpt-4o", Tier: "standard"}}, "custom-model")
	if len(models) != 2 || models[0].ID != "custom-model" || models[0].Tier != "" {
		t.Fatalf("models = %+v", models)
	}
	// Already listed: no duplicate.
	models = withDefault(models, "gpt-4o")
	if len(models) != 2 {
		t.Fatalf("models = %+v", models)
	}
}

func TestNewProviderRequiresKey(t *testing.T) {
	if _, err := NewOpenAIProvider("openai", "", "", "", nil); err == nil {
		t.Fatal("expected error for missing key")
	}
	if _, err := NewAnthropicProvider("", "", "", nil, 0); err == nil {
		t.Fatal("expected error for missing key")
	}
}
