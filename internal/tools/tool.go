// Package tools provides the tool framework and implementations for
// the agent.
package tools

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
)

// Tool is the interface that all agent tools must implement.
type Tool interface {
	// Name returns the tool identifier used in function calls. Names
	// are stable keys referenced by agent definitions and persisted
	// tool-use blocks; renaming breaks history replay.
	Name() string
	// Description returns a human-readable description for the LLM.
	Description() string
	// Parameters returns the JSON Schema for tool parameters.
	Parameters() map[string]any
	// Execute runs the tool with the given parameters.
	// Returns result string and error. On error, return user-friendly message.
	Execute(ctx context.Context, params map[string]any) (string, error)
}

// Permission levels for tools.
const (
	PermNone  = "none"
	PermRead  = "read"
	PermWrite = "write"
	PermAdmin = "admin"
)

// PermissionedTool is an optional interface for tools that declare a
// permission level. Unclassified tools default to read.
type PermissionedTool interface {
	Tool
	Permission() string
}

// KeywordTool is an optional interface for tools that carry extra
// search keywords beyond their name and description.
type KeywordTool interface {
	Tool
	Keywords() []string
}

// OwnedTool is an optional interface for tools that declare the plugin
// or subsystem that registered them.
type OwnedTool interface {
	Tool
	Owner() string
}

// ToolPermission returns the permission level for a tool.
func ToolPermission(t Tool) string {
	if pt, ok := t.(PermissionedTool); ok {
		return pt.Permission()
	}
	return PermRead
}

// ToolOwner returns the owning plugin id for a tool.
func ToolOwner(t Tool) string {
	if ot, ok := t.(OwnedTool); ok {
		return ot.Owner()
	}
	return "builtin"
}

// Result is the structured outcome of a tool execution. Execution
// never raises: a missing tool and a panicking tool both produce a
// failed Result, so callers handle exactly one shape.
type Result struct {
	Success bool   `json:"success"`
	Content string `json:"content,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Text returns the content to feed back to the model.
func (r Result) Text() string {
	if r.Success {
		return r.Content
	}
	return "Error: " + r.Error
}

type entry struct {
	tool  Tool
	order int
}

// Registry manages tool registration, discovery, and execution. Safe
// for concurrent use; read-mostly after startup registration.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]*entry
	next  int
}

// NewRegistry creates an empty tool registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]*entry)}
}

// Register adds a tool. A duplicate name is a startup error, never a
// silent overwrite.
func (r *Registry) Register(tool Tool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	name := tool.Name()
	if _, exists := r.tools[name]; exists {
		return fmt.Errorf("tool %q already registered", name)
	}
	r.tools[name] = &entry{tool: tool, order: r.next}
	r.next++
	return nil
}

// MustRegister registers or panics; for wiring builtins at startup.
func (r *Registry) MustRegister(tool Tool) {
	if err := r.Register(tool); err != nil {
		panic(err)
	}
}

// Unregister removes a tool by name.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.tools, name)
}

// Get returns a tool by name.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.tools[name]
	if !ok {
		return nil, false
	}
	return e.tool, true
}

// List returns all registered tools in registration order.
func (r *Registry) List() []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entries := make([]*entry, 0, len(r.tools))
	for _, e := range r.tools {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].order < entries[j].order })
	out := make([]Tool, len(entries))
	for i, e := range entries {
		out[i] = e.tool
	}
	return out
}

// Search scores tools against the query: the query is split into
// lowercase tokens longer than two characters, and each tool earns one
// point per token found in its name, description, or keyword list.
// Zero-score tools are dropped; the rest sort by descending score with
// ties keeping registration order. A query yielding no usable tokens
// returns every tool unsorted — the deliberate "show me everything"
// fallback.
func (r *Registry) Search(query string) []Tool {
	tokens := tokenize(query)
	if len(tokens) == 0 {
		return r.List()
	}

	r.mu.RLock()
	type scored struct {
		e     *entry
		score int
	}
	var matches []scored
	for _, e := range r.tools {
		haystack := strings.ToLower(e.tool.Name() + " " + e.tool.Description())
		if kt, ok := e.tool.(KeywordTool); ok {
			haystack += " " + strings.ToLower(strings.Join(kt.Keywords(), " "))
		}
		score := 0
		for _, tok := range tokens {
			if strings.Contains(haystack, tok) {
				score++
			}
		}
		if score > 0 {
			matches = append(matches, scored{e: e, score: score})
		}
	}
	r.mu.RUnlock()

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].score != matches[j].score {
			return matches[i].score > matches[j].score
		}
		return matches[i].e.order < matches[j].e.order
	})
	out := make([]Tool, len(matches))
	for i, m := range matches {
		out[i] = m.e.tool
	}
	return out
}

func tokenize(query string) []string {
	var tokens []string
	for _, word := range strings.Fields(strings.ToLower(query)) {
		if len(word) > 2 {
			tokens = append(tokens, word)
		}
	}
	return tokens
}

// Execute runs a tool by name. It fails closed: an unknown name and a
// panicking tool both come back as a failed Result rather than an
// error the loop would have to classify.
func (r *Registry) Execute(ctx context.Context, name string, params map[string]any) Result {
	tool, ok := r.Get(name)
	if !ok {
		return Result{Error: fmt.Sprintf("Tool %q not found", name)}
	}

	var content string
	var err error
	func() {
		defer func() {
			if rec := recover(); rec != nil {
				slog.Error("tool panicked", "tool", name, "panic", rec)
				err = fmt.Errorf("tool %q panicked: %v", name, rec)
			}
		}()
		content, err = tool.Execute(ctx, params)
	}()

	if err != nil {
		return Result{Error: err.Error()}
	}
	return Result{Success: true, Content: content}
}

// GetString extracts a string parameter with a default value.
func GetString(params map[string]any, key string, defaultVal string) string {
	if v, ok := params[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return defaultVal
}

// GetInt extracts an int parameter with a default value.
func GetInt(params map[string]any, key string, defaultVal int) int {
	if v, ok := params[key]; ok {
		switch n := v.(type) {
		case int:
			return n
		case float64:
			return int(n)
		}
	}
	return defaultVal
}

// GetBool extracts a bool parameter with a default value.
func GetBool(params map[string]any, key string, defaultVal bool) bool {
	if v, ok := params[key]; ok {
		if b, ok := v.(bool); ok {
			return b
		}
	}
	return defaultVal
}
