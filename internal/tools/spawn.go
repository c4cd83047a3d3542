package tools

import (
	"context"
	"fmt"
	"strings"
)

// Origin identifies the conversation turn that initiated a spawn, so
// the dispatcher can deliver the result back.
type Origin struct {
	ConversationID string
	MessageID      string
	Depth          int
}

type originKey struct{}

// WithOrigin attaches the spawning turn's identity to the context the
// loop hands to tools.
func WithOrigin(ctx context.Context, origin Origin) context.Context {
	return context.WithValue(ctx, originKey{}, origin)
}

// OriginFromContext retrieves the spawn origin, if any.
func OriginFromContext(ctx context.Context) (Origin, bool) {
	origin, ok := ctx.Value(originKey{}).(Origin)
	return origin, ok
}

// Spawner starts a background agent execution and returns its task id.
type Spawner interface {
	Spawn(ctx context.Context, agentID, input string, origin Origin) (string, error)
}

// SpawnAgentTool lets the model hand work to a background agent.
type SpawnAgentTool struct {
	Spawner Spawner
}

func (t *SpawnAgentTool) Name() string       { return "spawn_agent" }
func (t *SpawnAgentTool) Permission() string { return PermWrite }
func (t *SpawnAgentTool) Keywords() []string {
	return []string{"agent", "background", "delegate", "async", "task"}
}

func (t *SpawnAgentTool) Description() string {
	return "Delegate a task to a named agent running in the background. Returns a task id immediately; the result is delivered back to this conversation when the agent finishes."
}

func (t *SpawnAgentTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"agent_id": map[string]any{
				"type":        "string",
				"description": "The id or name of the agent to run",
			},
			"input": map[string]any{
				"type":        "string",
				"description": "The task description or input for the agent",
			},
		},
		"required": []string{"agent_id", "input"},
	}
}

func (t *SpawnAgentTool) Execute(ctx context.Context, params map[string]any) (string, error) {
	agentID := strings.TrimSpace(GetString(params, "agent_id", ""))
	input := strings.TrimSpace(GetString(params, "input", ""))
	if agentID == "" || input == "" {
		return "", fmt.Errorf("agent_id and input are required")
	}
	if t.Spawner == nil {
		return "", fmt.Errorf("background dispatch is disabled")
	}

	origin, _ := OriginFromContext(ctx)
	taskID, err := t.Spawner.Spawn(ctx, agentID, input, origin)
	if err != nil {
		return "", fmt.Errorf("spawning agent: %w", err)
	}
	return fmt.Sprintf("Spawned background task %s for agent %s. The result will be delivered when ready.", taskID, agentID), nil
}
