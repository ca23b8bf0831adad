package tools

import (
	"context"
	"sort"
	"strings"

	"github.com/m4xw311/pilot/config"
	"github.com/m4xw311/pilot/errors"
)

// Result captures the outcome of one tool invocation. Output is always a
// UTF-8 string; binary payloads are embedded through the inline
// [IMAGE:<mime>:<base64>] marker convention.
type Result struct {
	Output   string
	IsError  bool
	Metadata map[string]interface{}
}

// Errorf builds an error result.
func Errorf(format string, a ...interface{}) *Result {
	return &Result{Output: errors.New(format, a...).Error(), IsError: true}
}

// Tool defines the contract for any capability the agent can invoke. Execute
// must never panic past its own boundary: every failure mode is converted to
// a Result with IsError set (or an error return, which the caller folds into
// one).
type Tool interface {
	Name() string
	Description() string
	// InputSchema returns the JSON-Schema object describing the tool's
	// named parameters.
	InputSchema() map[string]interface{}
	Execute(ctx context.Context, args map[string]interface{}) (*Result, error)
}

// Registry holds all available tools.
type Registry struct {
	tools map[string]Tool
}

// NewRegistry registers the built-in tools against the configured filesystem
// boundary.
func NewRegistry(cfg *config.Config) *Registry {
	r := &Registry{tools: make(map[string]Tool)}

	fs := &cfg.FilesystemAccess
	r.Register(&ReadTool{})
	r.Register(&WriteTool{fsAccess: fs})
	r.Register(&EditTool{fsAccess: fs})
	r.Register(&GlobTool{})
	r.Register(&GrepTool{})
	r.Register(&BashTool{})
	r.Register(&WebFetchTool{})
	r.Register(&ScreenshotTool{})

	return r
}

// Register adds a tool, replacing any previous tool of the same name.
func (r *Registry) Register(t Tool) {
	r.tools[t.Name()] = t
}

// Get looks a tool up by name.
func (r *Registry) Get(name string) (Tool, bool) {
	t, ok := r.tools[name]
	return t, ok
}

// ServerQualified is implemented by tools bridged from a named external
// server, enabling "server:tool" toolset entries.
type ServerQualified interface {
	ServerName() string
}

// Active resolves a toolset selection to tool instances, in stable name
// order. An empty selection means every registered tool. An entry naming a
// tool or server that is not registered is an error rather than a silent
// drop.
func (r *Registry) Active(selection []string) ([]Tool, error) {
	if len(selection) == 0 {
		return r.All(), nil
	}

	picked := make(map[string]Tool)
	for _, entry := range selection {
		if server, toolName, ok := strings.Cut(entry, ":"); ok {
			matched := false
			for _, t := range r.All() {
				sq, bridged := t.(ServerQualified)
				if !bridged || sq.ServerName() != server {
					continue
				}
				if toolName != "*" && t.Name() != toolName {
					continue
				}
				picked[t.Name()] = t
				matched = true
			}
			if !matched {
				return nil, errors.New("no MCP tool matches toolset entry '%s'", entry)
			}
			continue
		}

		t, ok := r.Get(entry)
		if !ok {
			return nil, errors.New("tool '%s' from the toolset is not registered", entry)
		}
		picked[entry] = t
	}

	names := make([]string, 0, len(picked))
	for name := range picked {
		names = append(names, name)
	}
	sort.Strings(names)
	active := make([]Tool, 0, len(names))
	for _, name := range names {
		active = append(active, picked[name])
	}
	return active, nil
}

// Restrict returns a registry holding only the toolset selection, so
// unselected tools can neither be advertised nor dispatched. An empty
// selection returns the registry unchanged.
func (r *Registry) Restrict(selection []string) (*Registry, error) {
	if len(selection) == 0 {
		return r, nil
	}
	active, err := r.Active(selection)
	if err != nil {
		return nil, err
	}
	out := &Registry{tools: make(map[string]Tool, len(active))}
	for _, t := range active {
		out.Register(t)
	}
	return out, nil
}

// All returns every registered tool in stable name order.
func (r *Registry) All() []Tool {
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	out := make([]Tool, 0, len(names))
	for _, name := range names {
		out = append(out, r.tools[name])
	}
	return out
}

// stringArg extracts a required string argument.
func stringArg(args map[string]interface{}, key string) (string, error) {
	v, ok := args[key].(string)
	if !ok || v == "" {
		return "", errors.New("missing or invalid '%s' argument", key)
	}
	return v, nil
}

// objectSchema is a small helper for building the JSON-Schema shapes the
// built-in tools advertise.
func objectSchema(properties map[string]interface{}, required ...string) map[string]interface{} {
	schema := map[string]interface{}{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}
