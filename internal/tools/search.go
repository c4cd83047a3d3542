package tools

import (
	"context"
	"fmt"
	"strings"
)

// SearchToolsName is the discovery tool's registered name. The agent
// loop special-cases it: names returned by a successful search are
// added to the execution's active tool set.
const SearchToolsName = "search_tools"

// SearchTool lets the model discover registered tools by keyword.
type SearchTool struct {
	Registry *Registry
}

func (t *SearchTool) Name() string       { return SearchToolsName }
func (t *SearchTool) Permission() string { return PermNone }
func (t *SearchTool) Keywords() []string { return []string{"discover", "capability", "available"} }

func (t *SearchTool) Description() string {
	return "Search the available tools by keyword. Returns matching tool names and descriptions; matched tools become usable for the rest of this conversation turn."
}

func (t *SearchTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"query": map[string]any{
				"type":        "string",
				"description": "Keywords describing the capability you need",
			},
		},
		"required": []string{"query"},
	}
}

func (t *SearchTool) Execute(ctx context.Context, params map[string]any) (string, error) {
	query := GetString(params, "query", "")
	matches := t.Registry.Search(query)
	if len(matches) == 0 {
		return "No tools matched the query.", nil
	}
	var sb strings.Builder
	for _, tool := range matches {
		fmt.Fprintf(&sb, "%s: %s\n", tool.Name(), tool.Description())
	}
	return strings.TrimRight(sb.String(), "\n"), nil
}

// ParseSearchResults extracts tool names from a search_tools result so
// the loop can expand its active set. Inverse of the Execute output
// format.
func ParseSearchResults(content string) []string {
	var names []string
	for _, line := range strings.Split(content, "\n") {
		name, _, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		name = strings.TrimSpace(name)
		if name != "" && !strings.Contains(name, " ") {
			names = append(names, name)
		}
	}
	return names
}
