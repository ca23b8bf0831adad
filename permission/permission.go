package permission

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
)

// Decision is the tri-state outcome of a permission check.
type Decision string

const (
	Allow Decision = "allow"
	Deny  Decision = "deny"
	Ask   Decision = "ask"
)

// DefaultHookTimeout bounds one hook subprocess invocation.
const DefaultHookTimeout = 10 * time.Second

// readOnlyTools are always allowed by the built-in heuristics.
var readOnlyTools = map[string]bool{
	"Read": true,
	"Glob": true,
	"Grep": true,
}

// mutatingTools require approval by the built-in heuristics.
var mutatingTools = map[string]bool{
	"Write": true,
	"Edit":  true,
}

// commandDenylist holds destructive shell substrings. A Bash command
// containing any of them is denied outright, hook or no hook.
var commandDenylist = []string{
	"rm -rf /",
	"rm -rf ~",
	"rm -rf *",
	"rm -fr /",
	"rm -rf --no-preserve-root",
	"of=/dev/",
	"> /dev/sd",
	"mkfs",
	":(){",
	":() {",
	"chmod -r 777 /",
	"chmod 777 /",
	"eval ",
	"eval(",
}

// downloaders combined with a shell pipe form the pipe-to-shell pattern.
var downloaders = []string{"curl", "wget"}
var shellPipes = []string{"| sh", "| bash", "|sh", "|bash"}

// HookContext identifies the task on whose behalf a hook runs. It is
// forwarded to the hook subprocess through environment overrides.
type HookContext struct {
	ProjectDir string
	ProjectID  string
	TaskID     string
}

// Engine classifies tool calls as Allow, Deny, or Ask. When a hook
// executable is configured its verdict is trusted verbatim; otherwise the
// built-in heuristics apply. A session in skip-permissions mode always
// allows.
type Engine struct {
	SkipPermissions bool
	HookPath        string
	HookTimeout     time.Duration
	Context         HookContext
}

// NewEngine creates an engine with the default hook timeout.
func NewEngine(hookPath string, skip bool, hctx HookContext) *Engine {
	return &Engine{
		SkipPermissions: skip,
		HookPath:        hookPath,
		HookTimeout:     DefaultHookTimeout,
		Context:         hctx,
	}
}

// Decide resolves the permission for one tool call. The engine is consulted
// once per call, synchronously, before dispatch.
func (e *Engine) Decide(ctx context.Context, toolName string, input map[string]interface{}) Decision {
	if e.SkipPermissions {
		return Allow
	}

	if e.hookAvailable() {
		decision, err := e.runHook(ctx, toolName, input)
		if err == nil {
			return decision
		}
		if err == errHookTimeout {
			// Fail closed on timeout.
			return Deny
		}
		// Any other hook failure falls through to the heuristics,
		// never to a silent allow.
	}

	return e.heuristic(toolName, input)
}

// heuristic is the built-in classifier used when no hook answers.
func (e *Engine) heuristic(toolName string, input map[string]interface{}) Decision {
	if readOnlyTools[toolName] {
		return Allow
	}
	if mutatingTools[toolName] {
		return Ask
	}
	if toolName == "Bash" {
		command, _ := input["command"].(string)
		if isDestructiveCommand(command) {
			return Deny
		}
		return Ask
	}
	return Ask
}

func (e *Engine) hookAvailable() bool {
	if e.HookPath == "" {
		return false
	}
	info, err := os.Stat(e.HookPath)
	if err != nil || info.IsDir() {
		return false
	}
	return info.Mode().Perm()&0111 != 0
}

// isDestructiveCommand scans a shell command for denylisted substrings.
// Matching is case-insensitive and whitespace-normalized so that spacing
// tricks do not slip past.
func isDestructiveCommand(command string) bool {
	normalized := strings.ToLower(strings.Join(strings.Fields(command), " "))
	if normalized == "" {
		return false
	}
	for _, pattern := range commandDenylist {
		if strings.Contains(normalized, pattern) {
			return true
		}
	}
	for _, dl := range downloaders {
		if !strings.Contains(normalized, dl) {
			continue
		}
		for _, pipe := range shellPipes {
			if strings.Contains(normalized, pipe) {
				return true
			}
		}
	}
	return false
}

// IsSafePath reports whether a filesystem mutation at path is permitted by
// the hard path boundary. The path is expanded and normalized, then checked
// against the protected glob patterns; when allowedRoots is non-empty, the
// path must additionally resolve under one of the roots. This boundary is
// independent of the tri-state decision and must be enforced by every
// mutating tool before it writes.
func IsSafePath(path string, protected, allowedRoots []string) bool {
	resolved := normalizePath(path)
	if resolved == "" {
		return false
	}

	for _, pattern := range protected {
		expanded := normalizePath(pattern)
		if match, err := doublestar.PathMatch(expanded, resolved); err == nil && match {
			return false
		}
		// A protected directory also shields everything beneath it.
		if strings.HasPrefix(resolved, expanded+string(filepath.Separator)) {
			return false
		}
	}

	if len(allowedRoots) == 0 {
		return true
	}
	for _, root := range allowedRoots {
		expanded := normalizePath(root)
		if resolved == expanded || strings.HasPrefix(resolved, expanded+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

// normalizePath expands ~ and resolves the path to a cleaned absolute form.
func normalizePath(path string) string {
	if path == "" {
		return ""
	}
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, strings.TrimPrefix(path[1:], "/"))
		}
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return ""
	}
	return filepath.Clean(abs)
}
