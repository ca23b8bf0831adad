package tools

import (
	"bufio"
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

const maxSearchMatches = 500

// GlobTool matches files against a doublestar glob pattern.
type GlobTool struct{}

func (t *GlobTool) Name() string { return "Glob" }

func (t *GlobTool) Description() string {
	return "Finds files matching a glob pattern (doublestar syntax, e.g. '**/*.go'). " +
		"Args: pattern (string), path (optional string, defaults to the working directory)."
}

func (t *GlobTool) InputSchema() map[string]interface{} {
	return objectSchema(map[string]interface{}{
		"pattern": map[string]interface{}{
			"type":        "string",
			"description": "Glob pattern to match files against.",
		},
		"path": map[string]interface{}{
			"type":        "string",
			"description": "Directory to search in.",
		},
	}, "pattern")
}

func (t *GlobTool) Execute(ctx context.Context, args map[string]interface{}) (*Result, error) {
	pattern, err := stringArg(args, "pattern")
	if err != nil {
		return Errorf("%v", err), nil
	}
	root, _ := args["path"].(string)
	if root == "" {
		root = "."
	}
	// A rooted pattern carries its own search root; os.DirFS paths are
	// always relative.
	if filepath.IsAbs(pattern) {
		root = string(filepath.Separator)
		pattern = strings.TrimPrefix(pattern, root)
	}

	matches, err := doublestar.Glob(os.DirFS(root), pattern)
	if err != nil {
		return Errorf("invalid glob pattern '%s': %v", pattern, err), nil
	}
	if len(matches) == 0 {
		return &Result{Output: "No files matched."}, nil
	}
	if len(matches) > maxSearchMatches {
		matches = matches[:maxSearchMatches]
	}
	for i, m := range matches {
		matches[i] = filepath.Join(root, m)
	}
	return &Result{
		Output:   strings.Join(matches, "\n"),
		Metadata: map[string]interface{}{"count": len(matches)},
	}, nil
}

// GrepTool scans file contents line by line with a regular expression.
type GrepTool struct{}

func (t *GrepTool) Name() string { return "Grep" }

func (t *GrepTool) Description() string {
	return "Searches file contents for a regular expression. " +
		"Args: pattern (string), path (optional string), include (optional glob filter, e.g. '*.go')."
}

func (t *GrepTool) InputSchema() map[string]interface{} {
	return objectSchema(map[string]interface{}{
		"pattern": map[string]interface{}{
			"type":        "string",
			"description": "Regular expression to search for.",
		},
		"path": map[string]interface{}{
			"type":        "string",
			"description": "Directory or file to search in.",
		},
		"include": map[string]interface{}{
			"type":        "string",
			"description": "Glob filter applied to file names.",
		},
	}, "pattern")
}

func (t *GrepTool) Execute(ctx context.Context, args map[string]interface{}) (*Result, error) {
	pattern, err := stringArg(args, "pattern")
	if err != nil {
		return Errorf("%v", err), nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return Errorf("invalid regular expression '%s': %v", pattern, err), nil
	}
	root, _ := args["path"].(string)
	if root == "" {
		root = "."
	}
	include, _ := args["include"].(string)

	var lines []string
	walkErr := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // unreadable entries are skipped, not fatal
		}
		if d.IsDir() {
			if d.Name() == ".git" {
				return filepath.SkipDir
			}
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if include != "" {
			if ok, _ := doublestar.Match(include, d.Name()); !ok {
				return nil
			}
		}
		matched, err := grepFile(path, re, &lines)
		if err != nil {
			return nil
		}
		if matched && len(lines) >= maxSearchMatches {
			return fs.SkipAll
		}
		return nil
	})
	if walkErr != nil && walkErr != fs.SkipAll {
		return Errorf("search failed: %v", walkErr), nil
	}

	if len(lines) == 0 {
		return &Result{Output: "No matches found."}, nil
	}
	return &Result{
		Output:   strings.Join(lines, "\n"),
		Metadata: map[string]interface{}{"count": len(lines)},
	}, nil
}

func grepFile(path string, re *regexp.Regexp, lines *[]string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer f.Close()

	matched := false
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		text := scanner.Text()
		if re.MatchString(text) {
			matched = true
			*lines = append(*lines, fmt.Sprintf("%s:%d:%s", path, lineNo, text))
			if len(*lines) >= maxSearchMatches {
				break
			}
		}
	}
	return matched, scanner.Err()
}
