package tools

import (
	"time"
)

// BuiltinOptions configures the default tool set.
type BuiltinOptions struct {
	Workspace    string
	ExecTimeout  time.Duration
	FetchTimeout time.Duration
	Spawner      Spawner
}

// RegisterBuiltins wires the default tools into the registry. The
// spawn tool is only registered when a dispatcher is available.
func RegisterBuiltins(reg *Registry, opts BuiltinOptions) error {
	builtins := []Tool{
		&TimeTool{},
		&SearchTool{Registry: reg},
		&ReadFileTool{},
		&WriteFileTool{Workspace: opts.Workspace},
		&ListDirTool{},
		&ExecTool{Workspace: opts.Workspace, Timeout: opts.ExecTimeout},
		&FetchTool{Timeout: opts.FetchTimeout},
	}
	if opts.Spawner != nil {
		builtins = append(builtins, &SpawnAgentTool{Spawner: opts.Spawner})
	}
	for _, t := range builtins {
		if err := reg.Register(t); err != nil {
			return err
		}
	}
	return nil
}

// DefaultToolNames returns the names granted to agents that do not
// declare an explicit allow-list.
func DefaultToolNames() []string {
	return []string{
		"get_current_time", "search_tools",
		"read_file", "write_file", "list_dir",
		"exec", "fetch",
	}
}
