package tools

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// ExecTool runs a shell command in the workspace with a bounded
// timeout.
type ExecTool struct {
	Workspace string
	Timeout   time.Duration
}

func (t *ExecTool) Name() string       { return "exec" }
func (t *ExecTool) Permission() string { return PermAdmin }
func (t *ExecTool) Keywords() []string { return []string{"shell", "command", "run", "bash", "terminal"} }

func (t *ExecTool) Description() string {
	return "Execute a shell command and return its combined output. Commands run in the workspace directory with a timeout."
}

func (t *ExecTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"command": map[string]any{
				"type":        "string",
				"description": "The shell command to execute",
			},
		},
		"required": []string{"command"},
	}
}

func (t *ExecTool) Execute(ctx context.Context, params map[string]any) (string, error) {
	command := strings.TrimSpace(GetString(params, "command", ""))
	if command == "" {
		return "", fmt.Errorf("command is required")
	}

	timeout := t.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "sh", "-c", command)
	if t.Workspace != "" {
		cmd.Dir = t.Workspace
	}
	out, err := cmd.CombinedOutput()
	if ctx.Err() == context.DeadlineExceeded {
		return "", fmt.Errorf("command timed out after %s", timeout)
	}
	if err != nil {
		// Output often explains the failure better than the exit code.
		return "", fmt.Errorf("command failed: %v\n%s", err, strings.TrimSpace(string(out)))
	}
	result := strings.TrimSpace(string(out))
	if result == "" {
		return "(no output)", nil
	}
	return result, nil
}
