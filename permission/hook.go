package permission

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/m4xw311/pilot/errors"
)

// errHookTimeout marks a hook that did not answer within the timeout. The
// caller fails closed to Deny.
var errHookTimeout = fmt.Errorf("permission hook timed out")

// hookRequest is the single-line JSON object written to the hook's stdin.
type hookRequest struct {
	Tool    string                 `json:"tool"`
	Input   map[string]interface{} `json:"input"`
	Context map[string]string      `json:"context,omitempty"`
}

// runHook spawns the hook executable fresh for this one check, writes the
// request to stdin, and reads the verdict from stdout. The hook's contract
// is to print `allow` or `deny` (case-insensitive, surrounding whitespace
// ignored); anything else is treated as Ask. The exit status by itself does
// not change the decision.
func (e *Engine) runHook(ctx context.Context, toolName string, input map[string]interface{}) (Decision, error) {
	timeout := e.HookTimeout
	if timeout <= 0 {
		timeout = DefaultHookTimeout
	}
	hookCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	request := hookRequest{
		Tool:  toolName,
		Input: input,
	}
	if e.Context != (HookContext{}) {
		request.Context = map[string]string{
			"project_dir": e.Context.ProjectDir,
			"project_id":  e.Context.ProjectID,
			"task_id":     e.Context.TaskID,
		}
	}
	payload, err := json.Marshal(request)
	if err != nil {
		return Ask, errors.Wrapf(err, "failed to encode hook request")
	}

	cmd := exec.CommandContext(hookCtx, e.HookPath)
	cmd.Stdin = bytes.NewReader(append(payload, '\n'))
	cmd.Env = append(os.Environ(),
		"PILOT_PROJECT_DIR="+e.Context.ProjectDir,
		"PILOT_TASK_ID="+e.Context.TaskID,
		"PILOT_PROJECT_ID="+e.Context.ProjectID,
	)

	var stdout bytes.Buffer
	cmd.Stdout = &stdout
	// Without a WaitDelay, Run blocks past the deadline whenever a child of
	// the hook inherits the stdout pipe and outlives the killed hook.
	cmd.WaitDelay = timeout

	runErr := cmd.Run()
	if hookCtx.Err() == context.DeadlineExceeded {
		return Deny, errHookTimeout
	}
	if runErr != nil {
		// A non-zero exit alone does not invalidate the verdict; only a
		// process that could not run or produced no usable output does.
		if _, isExit := runErr.(*exec.ExitError); !isExit {
			return Ask, errors.Wrapf(runErr, "permission hook failed to run")
		}
	}

	switch strings.ToLower(strings.TrimSpace(stdout.String())) {
	case "allow":
		return Allow, nil
	case "deny":
		return Deny, nil
	default:
		return Ask, nil
	}
}
