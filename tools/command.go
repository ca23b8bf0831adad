package tools

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"time"
)

const (
	defaultCommandTimeout = 120 * time.Second
	maxCommandTimeout     = 600 * time.Second
)

// BashTool executes a shell command. The permission engine screens the
// command string before this tool is ever dispatched; execution itself is
// bounded by a caller-specified timeout.
type BashTool struct{}

func (t *BashTool) Name() string { return "Bash" }

func (t *BashTool) Description() string {
	return "Executes a shell command via bash and returns its combined output. " +
		"Args: command (string), timeout (optional, milliseconds, max 600000)."
}

func (t *BashTool) InputSchema() map[string]interface{} {
	return objectSchema(map[string]interface{}{
		"command": map[string]interface{}{
			"type":        "string",
			"description": "The shell command to execute.",
		},
		"timeout": map[string]interface{}{
			"type":        "number",
			"description": "Timeout in milliseconds (default 120000, max 600000).",
		},
	}, "command")
}

func (t *BashTool) Execute(ctx context.Context, args map[string]interface{}) (*Result, error) {
	command, err := stringArg(args, "command")
	if err != nil {
		return Errorf("%v", err), nil
	}

	timeout := defaultCommandTimeout
	if ms, ok := args["timeout"].(float64); ok && ms > 0 {
		timeout = time.Duration(ms) * time.Millisecond
		if timeout > maxCommandTimeout {
			timeout = maxCommandTimeout
		}
	}

	cmdCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(cmdCtx, "bash", "-c", command)
	var output bytes.Buffer
	cmd.Stdout = &output
	cmd.Stderr = &output

	runErr := cmd.Run()
	if cmdCtx.Err() == context.DeadlineExceeded {
		return &Result{
			Output:  fmt.Sprintf("command timed out after %s", timeout),
			IsError: true,
		}, nil
	}
	if runErr != nil {
		return &Result{
			Output:  fmt.Sprintf("command failed: %v\n%s", runErr, output.String()),
			IsError: true,
		}, nil
	}

	return &Result{Output: output.String()}, nil
}
