package tools

import (
	"context"
	"sort"
	"sync"

	"github.com/BerkeliumLabs/berkelium/internal/llm"
)

// PermissionLevel defines the level of permission required for a tool
type PermissionLevel int

const (
	PermissionRead    PermissionLevel = 0 // Read-only operations
	PermissionWrite   PermissionLevel = 1 // File modifications
	PermissionExecute PermissionLevel = 2 // Shell execution
	PermissionNetwork PermissionLevel = 3 // Outbound network access
)

func (p PermissionLevel) String() string {
	switch p {
	case PermissionRead:
		return "read"
	case PermissionWrite:
		return "write"
	case PermissionExecute:
		return "execute"
	case PermissionNetwork:
		return "network"
	default:
		return "unknown"
	}
}

// RequiresApproval reports whether tools at this level must clear the approval gate.
func (p PermissionLevel) RequiresApproval() bool {
	return p != PermissionRead
}

// Tool defines the interface all tools must implement
type Tool interface {
	Name() string
	Description() string
	InputSchema() map[string]any
	Execute(ctx context.Context, input map[string]any) (string, error)
	Permission() PermissionLevel
}

// Registry manages available tools
type Registry struct {
	tools map[string]Tool
	mu    sync.RWMutex
}

// NewRegistry creates an empty registry.
func NewRegistry(tools ...Tool) *Registry {
	r := &Registry{
		tools: make(map[string]Tool),
	}
	for _, t := range tools {
		r.Register(t)
	}
	return r
}

// NewDefaultRegistry registers the built-in tool set rooted at ws.
// compress_memory is registered by the caller since it needs an agent.
func NewDefaultRegistry(ws *Workspace) *Registry {
	return NewRegistry(
		&ReadFileTool{Workspace: ws},
		&ListDirectoryTool{Workspace: ws},
		&GlobTool{Workspace: ws},
		&SearchFileContentTool{Workspace: ws},
		&WriteFileTool{Workspace: ws},
		&ReplaceTool{Workspace: ws},
		&ShellTool{Workspace: ws},
		NewWebFetchTool(),
		&FeatureBranchTool{Workspace: ws},
	)
}

// Register adds a tool to the registry, replacing any tool with the same name.
func (r *Registry) Register(tool Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[tool.Name()] = tool
}

// Get returns a tool by name
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tool, ok := r.tools[name]
	return tool, ok
}

// List returns all registered tools sorted by name.
func (r *Registry) List() []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tools := make([]Tool, 0, len(r.tools))
	for _, tool := range r.tools {
		tools = append(tools, tool)
	}
	sort.Slice(tools, func(i, j int) bool { return tools[i].Name() < tools[j].Name() })
	return tools
}

// RequiresPermission reports whether the named tool is in the approval set.
// Unknown tools report false; the executor rejects them before any prompt.
func (r *Registry) RequiresPermission(name string) bool {
	tool, ok := r.Get(name)
	return ok && tool.Permission().RequiresApproval()
}

// Execute runs a tool by name and folds every outcome into a Result.
func (r *Registry) Execute(ctx context.Context, name string, input map[string]any) Result {
	tool, ok := r.Get(name)
	if !ok {
		return Failf("unknown tool: %s", name)
	}
	return Run(ctx, tool, input)
}

// Definitions returns tool definitions for the model, sorted by name.
func (r *Registry) Definitions() []llm.ToolDefinition {
	tools := r.List()
	defs := make([]llm.ToolDefinition, 0, len(tools))
	for _, tool := range tools {
		defs = append(defs, llm.ToolDefinition{
			Name:        tool.Name(),
			Description: tool.Description(),
			InputSchema: tool.InputSchema(),
		})
	}
	return defs
}
