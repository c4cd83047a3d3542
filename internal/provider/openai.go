package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIProvider speaks the OpenAI chat completions API. It also backs
// OpenAI-compatible endpoints (OpenRouter, Groq) via a custom base URL.
type OpenAIProvider struct {
	client       *openai.Client
	name         string
	defaultModel string
	models       []ModelInfo
}

// NewOpenAIProvider builds a client for an OpenAI-compatible endpoint.
// name distinguishes compatible vendors sharing this implementation.
func NewOpenAIProvider(name, apiKey, apiBase, defaultModel string, models []ModelInfo) (*OpenAIProvider, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, &ProviderError{Provider: name, Hint: "set providers." + name + ".apiKey in config or the MAJORDOMO_" + strings.ToUpper(name) + "_API_KEY env var"}
	}
	cfg := openai.DefaultConfig(apiKey)
	if apiBase != "" {
		cfg.BaseURL = apiBase
	}
	models = withDefault(models, defaultModel)
	if defaultModel == "" && len(models) > 0 {
		defaultModel = models[0].ID
	}
	return &OpenAIProvider{
		client:       openai.NewClientWithConfig(cfg),
		name:         name,
		defaultModel: defaultModel,
		models:       models,
	}, nil
}

func (p *OpenAIProvider) Name() string         { return p.name }
func (p *OpenAIProvider) Models() []ModelInfo  { return p.models }
func (p *OpenAIProvider) DefaultModel() string { return p.defaultModel }

// Stream runs a streaming chat completion, forwarding token and
// tool-call events to cb.
func (p *OpenAIProvider) Stream(ctx context.Context, req *ChatRequest, cb StreamCallback) (*ChatResponse, error) {
	model := req.Model
	if model == "" {
		model = p.defaultModel
	}

	oaReq := openai.ChatCompletionRequest{
		Model:         model,
		Messages:      toOpenAIMessages(req),
		Tools:         toOpenAITools(req.Tools),
		MaxTokens:     req.MaxTokens,
		Stream:        true,
		StreamOptions: &openai.StreamOptions{IncludeUsage: true},
	}
	if req.Temperature > 0 {
		oaReq.Temperature = float32(req.Temperature)
	}

	stream, err := p.client.CreateChatCompletionStream(ctx, oaReq)
	if err != nil {
		return nil, fmt.Errorf("%s chat stream: %w", p.name, err)
	}
	defer stream.Close()

	acc := newToolCallAccumulator()
	var content strings.Builder
	var finishReason string
	var usage Usage

	for {
		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%s stream recv: %w", p.name, err)
		}
		if chunk.Usage != nil {
			usage = Usage{
				PromptTokens:     chunk.Usage.PromptTokens,
				CompletionTokens: chunk.Usage.CompletionTokens,
				TotalTokens:      chunk.Usage.TotalTokens,
			}
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		choice := chunk.Choices[0]
		if choice.FinishReason != "" {
			finishReason = string(choice.FinishReason)
		}
		if choice.Delta.Content != "" {
			content.WriteString(choice.Delta.Content)
			if cb != nil {
				cb(StreamEvent{Kind: KindToken, Token: choice.Delta.Content})
			}
		}
		for _, tc := range choice.Delta.ToolCalls {
			acc.add(tc, cb)
		}
	}
	acc.flush(cb)

	resp := &ChatResponse{
		Content:      content.String(),
		ToolCalls:    acc.calls(),
		Model:        model,
		FinishReason: finishReason,
		Usage:        usage,
	}
	if cb != nil {
		cb(StreamEvent{Kind: KindDone, Response: resp})
	}
	return resp, nil
}

// toolCallAccumulator stitches fragmented tool-call deltas back into
// complete calls. The wire format interleaves argument fragments keyed
// by call index.
type toolCallAccumulator struct {
	order []int
	parts map[int]*partialCall
}

type partialCall struct {
	id      string
	name    string
	args    strings.Builder
	started bool
	ended   bool
}

func newToolCallAccumulator() *toolCallAccumulator {
	return &toolCallAccumulator{parts: make(map[int]*partialCall)}
}

func (a *toolCallAccumulator) add(tc openai.ToolCall, cb StreamCallback) {
	idx := 0
	if tc.Index != nil {
		idx = *tc.Index
	}
	part, ok := a.parts[idx]
	if !ok {
		part = &partialCall{}
		a.parts[idx] = part
		a.order = append(a.order, idx)
	}
	if tc.ID != "" {
		part.id = tc.ID
	}
	if tc.Function.Name != "" {
		part.name = tc.Function.Name
	}
	if !part.started && part.name != "" {
		part.started = true
		if cb != nil {
			cb(StreamEvent{Kind: KindToolCallStart, ToolCall: &ToolCall{ID: part.id, Name: part.name}})
		}
	}
	if tc.Function.Arguments != "" {
		part.args.WriteString(tc.Function.Arguments)
		if cb != nil {
			cb(StreamEvent{Kind: KindToolCallDelta, Token: tc.Function.Arguments})
		}
	}
}

// flush emits KindToolCallEnd for every accumulated call once the
// stream finishes; the wire gives no per-call terminator.
func (a *toolCallAccumulator) flush(cb StreamCallback) {
	for _, idx := range a.order {
		part := a.parts[idx]
		if part.ended || !part.started {
			continue
		}
		part.ended = true
		if cb != nil {
			call := a.complete(part)
			cb(StreamEvent{Kind: KindToolCallEnd, ToolCall: &call})
		}
	}
}

func (a *toolCallAccumulator) complete(part *partialCall) ToolCall {
	args := part.args.String()
	if args == "" {
		args = "{}"
	}
	return ToolCall{ID: part.id, Name: part.name, Arguments: json.RawMessage(args)}
}

func (a *toolCallAccumulator) calls() []ToolCall {
	var out []ToolCall
	for _, idx := range a.order {
		part := a.parts[idx]
		if part.name == "" {
			continue
		}
		out = append(out, a.complete(part))
	}
	return out
}

func toOpenAIMessages(req *ChatRequest) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(req.Messages)+1)
	if strings.TrimSpace(req.System) != "" {
		out = append(out, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: req.System})
	}
	for _, m := range req.Messages {
		om := openai.ChatCompletionMessage{
			Role:       m.Role,
			Content:    m.Content,
			ToolCallID: m.ToolCallID,
		}
		for _, tc := range m.ToolCalls {
			om.ToolCalls = append(om.ToolCalls, openai.ToolCall{
				ID:   tc.ID,
				Type: openai.ToolTypeFunction,
				Function: openai.FunctionCall{
					Name:      tc.Name,
					Arguments: string(tc.Arguments),
				},
			})
		}
		out = append(out, om)
	}
	return out
}

func toOpenAITools(tools []ToolDefinition) []openai.Tool {
	if len(tools) == 0 {
		return nil
	}
	out := make([]openai.Tool, 0, len(tools))
	for _, t := range tools {
		params := t.Parameters
		if params == nil {
			params = map[string]any{"type": "object", "properties": map[string]any{}}
		}
		out = append(out, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  params,
			},
		})
	}
	return out
}
