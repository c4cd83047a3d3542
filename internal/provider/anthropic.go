package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/packages/param"
)

// AnthropicProvider speaks the Anthropic Messages API.
type AnthropicProvider struct {
	client       anthropicsdk.Client
	defaultModel string
	models       []ModelInfo
	maxTokens    int
}

// NewAnthropicProvider builds an Anthropic client.
func NewAnthropicProvider(apiKey, apiBase, defaultModel string, models []ModelInfo, maxTokens int) (*AnthropicProvider, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, &ProviderError{Provider: "anthropic", Hint: "set providers.anthropic.apiKey in config or the MAJORDOMO_ANTHROPIC_API_KEY env var"}
	}
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if apiBase != "" {
		opts = append(opts, option.WithBaseURL(apiBase))
	}
	if maxTokens <= 0 {
		maxTokens = 4096
	}
	models = withDefault(models, defaultModel)
	if defaultModel == "" && len(models) > 0 {
		defaultModel = models[0].ID
	}
	return &AnthropicProvider{
		client:       anthropicsdk.NewClient(opts...),
		defaultModel: defaultModel,
		models:       models,
		maxTokens:    maxTokens,
	}, nil
}

func (p *AnthropicProvider) Name() string         { return "anthropic" }
func (p *AnthropicProvider) Models() []ModelInfo  { return p.models }
func (p *AnthropicProvider) DefaultModel() string { return p.defaultModel }

// Stream runs a streaming message request, forwarding token and
// tool-call events to cb.
func (p *AnthropicProvider) Stream(ctx context.Context, req *ChatRequest, cb StreamCallback) (*ChatResponse, error) {
	params, err := p.buildParams(req)
	if err != nil {
		return nil, err
	}

	stream := p.client.Messages.NewStreaming(ctx, params)
	defer stream.Close()

	var final anthropicsdk.Message
	var content strings.Builder
	startedTool := false

	for stream.Next() {
		event := stream.Current()
		if err := final.Accumulate(event); err != nil {
			return nil, fmt.Errorf("accumulate anthropic stream: %w", err)
		}

		switch ev := event.AsAny().(type) {
		case anthropicsdk.ContentBlockStartEvent:
			if ev.ContentBlock.Type == "tool_use" {
				startedTool = true
				if cb != nil {
					cb(StreamEvent{Kind: KindToolCallStart, ToolCall: &ToolCall{
						ID:   ev.ContentBlock.ID,
						Name: ev.ContentBlock.Name,
					}})
				}
			}
		case anthropicsdk.ContentBlockDeltaEvent:
			if text := ev.Delta.AsTextDelta().Text; text != "" {
				content.WriteString(text)
				if cb != nil {
					cb(StreamEvent{Kind: KindToken, Token: text})
				}
			}
			if partial := ev.Delta.AsInputJSONDelta().PartialJSON; partial != "" && cb != nil {
				cb(StreamEvent{Kind: KindToolCallDelta, Token: partial})
			}
		case anthropicsdk.ContentBlockStopEvent:
			if startedTool {
				if call := lastToolCall(final); call != nil && cb != nil {
					cb(StreamEvent{Kind: KindToolCallEnd, ToolCall: call})
				}
				startedTool = false
			}
		}
	}
	if err := stream.Err(); err != nil {
		return nil, fmt.Errorf("anthropic stream: %w", err)
	}

	resp := &ChatResponse{
		Content:      content.String(),
		ToolCalls:    allToolCalls(final),
		Model:        string(final.Model),
		FinishReason: string(final.StopReason),
		Usage: Usage{
			PromptTokens:     int(final.Usage.InputTokens),
			CompletionTokens: int(final.Usage.OutputTokens),
			TotalTokens:      int(final.Usage.InputTokens + final.Usage.OutputTokens),
		},
	}
	if cb != nil {
		cb(StreamEvent{Kind: KindDone, Response: resp})
	}
	return resp, nil
}

func (p *AnthropicProvider) buildParams(req *ChatRequest) (anthropicsdk.MessageNewParams, error) {
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = p.maxTokens
	}
	model := req.Model
	if model == "" {
		model = p.defaultModel
	}

	params := anthropicsdk.MessageNewParams{
		Model:     anthropicsdk.Model(model),
		MaxTokens: int64(maxTokens),
		Messages:  toAnthropicMessages(req.Messages),
	}
	system := strings.TrimSpace(req.System)
	if system != "" {
		params.System = []anthropicsdk.TextBlockParam{{Text: system}}
	}
	if len(req.Tools) > 0 {
		tools, err := toAnthropicTools(req.Tools)
		if err != nil {
			return anthropicsdk.MessageNewParams{}, err
		}
		params.Tools = tools
	}
	if req.Temperature > 0 {
		params.Temperature = param.NewOpt(req.Temperature)
	}
	return params, nil
}

// toAnthropicMessages maps the neutral message list onto the Messages
// API shape: tool results travel as user-role tool_result blocks, and
// assistant tool calls become tool_use blocks.
func toAnthropicMessages(msgs []Message) []anthropicsdk.MessageParam {
	out := make([]anthropicsdk.MessageParam, 0, len(msgs))
	for _, m := range msgs {
		switch m.Role {
		case "assistant":
			blocks := make([]anthropicsdk.ContentBlockParamUnion, 0, 1+len(m.ToolCalls))
			if strings.TrimSpace(m.Content) != "" {
				blocks = append(blocks, anthropicsdk.NewTextBlock(m.Content))
			}
			for _, call := range m.ToolCalls {
				blocks = append(blocks, anthropicsdk.NewToolUseBlock(call.ID, decodeArguments(call.Arguments), call.Name))
			}
			if len(blocks) == 0 {
				continue
			}
			out = append(out, anthropicsdk.MessageParam{
				Role:    anthropicsdk.MessageParamRoleAssistant,
				Content: blocks,
			})
		case "tool":
			out = append(out, anthropicsdk.MessageParam{
				Role: anthropicsdk.MessageParamRoleUser,
				Content: []anthropicsdk.ContentBlockParamUnion{
					anthropicsdk.NewToolResultBlock(m.ToolCallID, m.Content, strings.HasPrefix(m.Content, "Error:")),
				},
			})
		default:
			content := m.Content
			if strings.TrimSpace(content) == "" {
				content = "."
			}
			out = append(out, anthropicsdk.MessageParam{
				Role: anthropicsdk.MessageParamRoleUser,
				Content: []anthropicsdk.ContentBlockParamUnion{
					anthropicsdk.NewTextBlock(content),
				},
			})
		}
	}
	return out
}

func toAnthropicTools(tools []ToolDefinition) ([]anthropicsdk.ToolUnionParam, error) {
	out := make([]anthropicsdk.ToolUnionParam, 0, len(tools))
	for _, def := range tools {
		schema, err := encodeToolSchema(def.Parameters)
		if err != nil {
			return nil, fmt.Errorf("tool %s schema: %w", def.Name, err)
		}
		tool := anthropicsdk.ToolParam{
			Name:        def.Name,
			InputSchema: schema,
		}
		if def.Description != "" {
			tool.Description = anthropicsdk.String(def.Description)
		}
		out = append(out, anthropicsdk.ToolUnionParam{OfTool: &tool})
	}
	return out, nil
}

func encodeToolSchema(raw map[string]any) (anthropicsdk.ToolInputSchemaParam, error) {
	if len(raw) == 0 {
		return anthropicsdk.ToolInputSchemaParam{Type: "object"}, nil
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return anthropicsdk.ToolInputSchemaParam{}, err
	}
	var schema anthropicsdk.ToolInputSchemaParam
	if err := json.Unmarshal(data, &schema); err != nil {
		return anthropicsdk.ToolInputSchemaParam{}, err
	}
	if schema.Type == "" {
		schema.Type = "object"
	}
	return schema, nil
}

func decodeArguments(raw json.RawMessage) any {
	if len(raw) == 0 {
		return map[string]any{}
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return map[string]any{"raw": string(raw)}
	}
	return v
}

func toolCallFromBlock(block anthropicsdk.ContentBlockUnion) *ToolCall {
	if block.Type != "tool_use" {
		return nil
	}
	return &ToolCall{
		ID:        block.ID,
		Name:      block.Name,
		Arguments: json.RawMessage(block.Input),
	}
}

func lastToolCall(msg anthropicsdk.Message) *ToolCall {
	if len(msg.Content) == 0 {
		return nil
	}
	return toolCallFromBlock(msg.Content[len(msg.Content)-1])
}

func allToolCalls(msg anthropicsdk.Message) []ToolCall {
	var out []ToolCall
	for _, block := range msg.Content {
		if call := toolCallFromBlock(block); call != nil {
			out = append(out, *call)
		}
	}
	return out
}
