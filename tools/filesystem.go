package tools

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/m4xw311/pilot/config"
	"github.com/m4xw311/pilot/permission"
)

// ReadTool reads a file in full.
type ReadTool struct{}

func (t *ReadTool) Name() string { return "Read" }

func (t *ReadTool) Description() string {
	return "Reads the entire content of a file. Args: file_path (string)."
}

func (t *ReadTool) InputSchema() map[string]interface{} {
	return objectSchema(map[string]interface{}{
		"file_path": map[string]interface{}{
			"type":        "string",
			"description": "Absolute or relative path of the file to read.",
		},
	}, "file_path")
}

func (t *ReadTool) Execute(ctx context.Context, args map[string]interface{}) (*Result, error) {
	path, err := stringArg(args, "file_path")
	if err != nil {
		return Errorf("%v", err), nil
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return Errorf("failed to read file '%s': %v", path, err), nil
	}
	return &Result{Output: string(content)}, nil
}

// WriteTool writes a file, replacing it entirely. The protected-path
// boundary is enforced here, before any mutation, independently of the
// permission tri-state.
type WriteTool struct {
	fsAccess *config.FilesystemAccess
}

func (t *WriteTool) Name() string { return "Write" }

func (t *WriteTool) Description() string {
	return "Writes content to a file, replacing it entirely. Args: file_path (string), content (string)."
}

func (t *WriteTool) InputSchema() map[string]interface{} {
	return objectSchema(map[string]interface{}{
		"file_path": map[string]interface{}{
			"type":        "string",
			"description": "Path of the file to write.",
		},
		"content": map[string]interface{}{
			"type":        "string",
			"description": "Full content to write.",
		},
	}, "file_path", "content")
}

func (t *WriteTool) Execute(ctx context.Context, args map[string]interface{}) (*Result, error) {
	path, err := stringArg(args, "file_path")
	if err != nil {
		return Errorf("%v", err), nil
	}
	content, ok := args["content"].(string)
	if !ok {
		return Errorf("missing or invalid 'content' argument"), nil
	}

	if !permission.IsSafePath(path, t.fsAccess.Protected, t.fsAccess.AllowedRoots) {
		return Errorf("access denied: path '%s' is outside the permitted filesystem boundary", path), nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return Errorf("failed to create parent directory for '%s': %v", path, err), nil
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return Errorf("failed to write to file '%s': %v", path, err), nil
	}
	return &Result{
		Output:   fmt.Sprintf("Successfully wrote %d bytes to %s", len(content), path),
		Metadata: map[string]interface{}{"bytes": len(content)},
	}, nil
}

// EditTool replaces an exact substring in a file. Like WriteTool it enforces
// the hard path boundary itself.
type EditTool struct {
	fsAccess *config.FilesystemAccess
}

func (t *EditTool) Name() string { return "Edit" }

func (t *EditTool) Description() string {
	return "Replaces an exact string in a file. Args: file_path (string), old_string (string), new_string (string), replace_all (optional bool)."
}

func (t *EditTool) InputSchema() map[string]interface{} {
	return objectSchema(map[string]interface{}{
		"file_path": map[string]interface{}{
			"type":        "string",
			"description": "Path of the file to edit.",
		},
		"old_string": map[string]interface{}{
			"type":        "string",
			"description": "Exact text to replace. Must occur in the file.",
		},
		"new_string": map[string]interface{}{
			"type":        "string",
			"description": "Replacement text.",
		},
		"replace_all": map[string]interface{}{
			"type":        "boolean",
			"description": "Replace every occurrence instead of requiring a unique match.",
		},
	}, "file_path", "old_string", "new_string")
}

func (t *EditTool) Execute(ctx context.Context, args map[string]interface{}) (*Result, error) {
	path, err := stringArg(args, "file_path")
	if err != nil {
		return Errorf("%v", err), nil
	}
	oldString, ok := args["old_string"].(string)
	if !ok || oldString == "" {
		return Errorf("missing or invalid 'old_string' argument"), nil
	}
	newString, ok := args["new_string"].(string)
	if !ok {
		return Errorf("missing or invalid 'new_string' argument"), nil
	}
	replaceAll, _ := args["replace_all"].(bool)

	if !permission.IsSafePath(path, t.fsAccess.Protected, t.fsAccess.AllowedRoots) {
		return Errorf("access denied: path '%s' is outside the permitted filesystem boundary", path), nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return Errorf("failed to read file '%s': %v", path, err), nil
	}
	text := string(content)

	count := strings.Count(text, oldString)
	if count == 0 {
		return Errorf("old_string not found in '%s'", path), nil
	}
	if count > 1 && !replaceAll {
		return Errorf("old_string occurs %d times in '%s'; pass replace_all or disambiguate", count, path), nil
	}

	var updated string
	if replaceAll {
		updated = strings.ReplaceAll(text, oldString, newString)
	} else {
		updated = strings.Replace(text, oldString, newString, 1)
	}

	if err := os.WriteFile(path, []byte(updated), 0644); err != nil {
		return Errorf("failed to write to file '%s': %v", path, err), nil
	}
	replaced := 1
	if replaceAll {
		replaced = count
	}
	return &Result{
		Output:   fmt.Sprintf("Replaced %d occurrence(s) in %s", replaced, path),
		Metadata: map[string]interface{}{"replacements": replaced},
	}, nil
}
