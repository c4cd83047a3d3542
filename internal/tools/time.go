package tools

import (
	"context"
	"fmt"
	"time"
)

// TimeTool reports the current time.
type TimeTool struct{}

func (t *TimeTool) Name() string       { return "get_current_time" }
func (t *TimeTool) Permission() string { return PermNone }
func (t *TimeTool) Keywords() []string { return []string{"time", "date", "clock", "now", "today"} }

func (t *TimeTool) Description() string {
	return "Get the current date and time, optionally in a specific IANA timezone."
}

func (t *TimeTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"timezone": map[string]any{
				"type":        "string",
				"description": "IANA timezone name, e.g. Europe/Berlin. Defaults to local time.",
			},
		},
	}
}

func (t *TimeTool) Execute(ctx context.Context, params map[string]any) (string, error) {
	now := time.Now()
	if tz := GetString(params, "timezone", ""); tz != "" {
		loc, err := time.LoadLocation(tz)
		if err != nil {
			return "", fmt.Errorf("unknown timezone: %s", tz)
		}
		now = now.In(loc)
	}
	return now.Format("Monday, 2 January 2006 15:04:05 MST"), nil
}
