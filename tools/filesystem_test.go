package tools

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/m4xw311/pilot/config"
)

func TestReadTool(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "note.txt")
	if err := os.WriteFile(path, []byte("hello"), 0o644); err != nil {
		t.Fatal(err)
	}

	res, err := (&ReadTool{}).Execute(context.Background(), map[string]interface{}{"file_path": path})
	if err != nil {
		t.Fatal(err)
	}
	if res.IsError || res.Output != "hello" {
		t.Fatalf("result = %+v", res)
	}

	res, _ = (&ReadTool{}).Execute(context.Background(), map[string]interface{}{"file_path": filepath.Join(dir, "missing")})
	if !res.IsError {
		t.Fatal("reading a missing file must produce an error result")
	}
}

func TestWriteTool(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sub", "out.txt")
	w := &WriteTool{fsAccess: &config.FilesystemAccess{}}

	res, err := w.Execute(context.Background(), map[string]interface{}{
		"file_path": path,
		"content":   "written",
	})
	if err != nil {
		t.Fatal(err)
	}
	if res.IsError {
		t.Fatalf("result = %+v", res)
	}
	data, err := os.ReadFile(path)
	if err != nil || string(data) != "written" {
		t.Fatalf("file content = %q, err %v", data, err)
	}
}

func TestWriteToolProtectedPath(t *testing.T) {
	dir := t.TempDir()
	protectedDir := filepath.Join(dir, ".pilot")
	w := &WriteTool{fsAccess: &config.FilesystemAccess{
		Protected: []string{protectedDir, filepath.Join(protectedDir, "**")},
	}}

	res, err := w.Execute(context.Background(), map[string]interface{}{
		"file_path": filepath.Join(protectedDir, "config.yaml"),
		"content":   "tampered",
	})
	if err != nil {
		t.Fatal(err)
	}
	if !res.IsError {
		t.Fatal("writing under a protected path must be refused")
	}
	if _, statErr := os.Stat(filepath.Join(protectedDir, "config.yaml")); !os.IsNotExist(statErr) {
		t.Fatal("the protected file must not have been created")
	}
}

func TestWriteToolAllowedRoots(t *testing.T) {
	root := t.TempDir()
	outside := t.TempDir()
	w := &WriteTool{fsAccess: &config.FilesystemAccess{AllowedRoots: []string{root}}}

	res, _ := w.Execute(context.Background(), map[string]interface{}{
		"file_path": filepath.Join(outside, "escape.txt"),
		"content":   "x",
	})
	if !res.IsError {
		t.Fatal("writing outside every allowed root must be refused")
	}

	res, _ = w.Execute(context.Background(), map[string]interface{}{
		"file_path": filepath.Join(root, "ok.txt"),
		"content":   "x",
	})
	if res.IsError {
		t.Fatalf("writing inside the allowed root must succeed: %+v", res)
	}
}

func TestEditTool(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "code.go")
	if err := os.WriteFile(path, []byte("foo bar foo"), 0o644); err != nil {
		t.Fatal(err)
	}
	e := &EditTool{fsAccess: &config.FilesystemAccess{}}

	// Ambiguous match without replace_all is refused.
	res, _ := e.Execute(context.Background(), map[string]interface{}{
		"file_path":  path,
		"old_string": "foo",
		"new_string": "baz",
	})
	if !res.IsError {
		t.Fatal("an ambiguous old_string must be refused")
	}

	// replace_all rewrites every occurrence.
	res, _ = e.Execute(context.Background(), map[string]interface{}{
		"file_path":   path,
		"old_string":  "foo",
		"new_string":  "baz",
		"replace_all": true,
	})
	if res.IsError {
		t.Fatalf("result = %+v", res)
	}
	data, _ := os.ReadFile(path)
	if string(data) != "baz bar baz" {
		t.Fatalf("file content = %q", data)
	}

	// A unique match needs no flag.
	res, _ = e.Execute(context.Background(), map[string]interface{}{
		"file_path":  path,
		"old_string": "bar",
		"new_string": "qux",
	})
	if res.IsError {
		t.Fatalf("result = %+v", res)
	}
	data, _ = os.ReadFile(path)
	if string(data) != "baz qux baz" {
		t.Fatalf("file content = %q", data)
	}

	// Absent old_string is an error result, not a silent no-op.
	res, _ = e.Execute(context.Background(), map[string]interface{}{
		"file_path":  path,
		"old_string": "never there",
		"new_string": "x",
	})
	if !res.IsError {
		t.Fatal("a missing old_string must be refused")
	}
}
