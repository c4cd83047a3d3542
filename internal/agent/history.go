package agent

import (
	"encoding/json"

	"github.com/majordomo-ai/majordomo/internal/provider"
	"github.com/majordomo-ai/majordomo/internal/store"
)

// HistoryFromMessages converts persisted messages into the neutral
// wire history. Assistant tool-use blocks become tool calls; each
// tool-result block becomes its own tool-role message so the id
// correspondence survives the round trip.
func HistoryFromMessages(msgs []store.Message) []provider.Message {
	var out []provider.Message
	for _, m := range msgs {
		switch m.Role {
		case store.RoleAssistant:
			pm := provider.Message{Role: store.RoleAssistant, Content: m.Content}
			for _, b := range m.Blocks {
				switch b.Type {
				case store.BlockText:
					if pm.Content == "" {
						pm.Content = b.Text
					} else {
						pm.Content += b.Text
					}
				case store.BlockToolUse:
					pm.ToolCalls = append(pm.ToolCalls, provider.ToolCall{
						ID:        b.ID,
						Name:      b.Name,
						Arguments: b.Input,
					})
				}
			}
			out = append(out, pm)
		case store.RoleTool:
			for _, b := range m.Blocks {
				if b.Type != store.BlockToolResult {
					continue
				}
				content := b.Content
				if b.IsError && content != "" {
					content = "Error: " + content
				}
				out = append(out, provider.Message{
					Role:       store.RoleTool,
					Content:    content,
					ToolCallID: b.ToolUseID,
				})
			}
		default:
			out = append(out, provider.Message{Role: m.Role, Content: m.Content})
		}
	}
	return out
}

// assistantBlocks builds the persisted block sequence for one
// assistant turn: leading text, then tool-use blocks in call order.
func assistantBlocks(text string, calls []provider.ToolCall) []store.Block {
	var blocks []store.Block
	if text != "" {
		blocks = append(blocks, store.Block{Type: store.BlockText, Text: text})
	}
	for _, call := range calls {
		blocks = append(blocks, store.Block{
			Type:  store.BlockToolUse,
			ID:    call.ID,
			Name:  call.Name,
			Input: json.RawMessage(call.Arguments),
		})
	}
	return blocks
}

// toolResultBlocks builds the persisted block sequence mirroring the
// executed calls, one tool-result block per tool-use id.
func toolResultBlocks(results []ToolResultChunk) []store.Block {
	blocks := make([]store.Block, 0, len(results))
	for _, r := range results {
		blocks = append(blocks, store.Block{
			Type:      store.BlockToolResult,
			ToolUseID: r.ToolUseID,
			Content:   r.Content,
			IsError:   r.IsError,
		})
	}
	return blocks
}
