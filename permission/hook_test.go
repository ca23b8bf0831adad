package permission

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"
)

// writeHook drops an executable shell script into a temp dir and returns
// its path.
func writeHook(t *testing.T, script string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script hooks are not exercised on windows")
	}
	path := filepath.Join(t.TempDir(), "hook.sh")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+script+"\n"), 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestHookAllow(t *testing.T) {
	hook := writeHook(t, `echo allow`)
	e := NewEngine(hook, false, HookContext{})

	// The hook's allow overrides the Ask the heuristics would give Write.
	if got := e.Decide(context.Background(), "Write", map[string]interface{}{"file_path": "/tmp/x"}); got != Allow {
		t.Fatalf("Decide = %s, want allow", got)
	}
}

func TestHookDeny(t *testing.T) {
	hook := writeHook(t, `echo deny`)
	e := NewEngine(hook, false, HookContext{})

	// The hook's deny overrides the Allow the heuristics would give Read.
	if got := e.Decide(context.Background(), "Read", map[string]interface{}{"file_path": "/tmp/x"}); got != Deny {
		t.Fatalf("Decide = %s, want deny", got)
	}
}

func TestHookVerdictCaseAndWhitespace(t *testing.T) {
	hook := writeHook(t, `echo "  ALLOW  "`)
	e := NewEngine(hook, false, HookContext{})
	if got := e.Decide(context.Background(), "Bash", map[string]interface{}{"command": "ls"}); got != Allow {
		t.Fatalf("Decide = %s, want allow", got)
	}
}

func TestHookUnparseableOutputIsAsk(t *testing.T) {
	hook := writeHook(t, `echo maybe`)
	e := NewEngine(hook, false, HookContext{})
	if got := e.Decide(context.Background(), "Bash", map[string]interface{}{"command": "ls"}); got != Ask {
		t.Fatalf("Decide = %s, want ask", got)
	}
}

func TestHookNonZeroExitKeepsVerdict(t *testing.T) {
	hook := writeHook(t, "echo deny\nexit 3")
	e := NewEngine(hook, false, HookContext{})
	if got := e.Decide(context.Background(), "Read", nil); got != Deny {
		t.Fatalf("Decide = %s, want deny", got)
	}
}

func TestHookTimeoutDenies(t *testing.T) {
	hook := writeHook(t, `sleep 5`)
	e := NewEngine(hook, false, HookContext{})
	e.HookTimeout = 100 * time.Millisecond

	start := time.Now()
	got := e.Decide(context.Background(), "Read", nil)
	if got != Deny {
		t.Fatalf("Decide after timeout = %s, want deny", got)
	}
	if elapsed := time.Since(start); elapsed > 3*time.Second {
		t.Fatalf("timeout not enforced, took %s", elapsed)
	}
}

func TestMissingHookFallsBackToHeuristics(t *testing.T) {
	e := NewEngine(filepath.Join(t.TempDir(), "no-such-hook"), false, HookContext{})
	if got := e.Decide(context.Background(), "Read", nil); got != Allow {
		t.Fatalf("Decide = %s, want allow from heuristics", got)
	}
	if got := e.Decide(context.Background(), "Bash", map[string]interface{}{"command": "rm -rf /"}); got != Deny {
		t.Fatalf("Decide = %s, want deny from heuristics", got)
	}
}

func TestNonExecutableHookFallsBackToHeuristics(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("permission bits are not meaningful on windows")
	}
	path := filepath.Join(t.TempDir(), "hook.sh")
	if err := os.WriteFile(path, []byte("#!/bin/sh\necho deny\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	e := NewEngine(path, false, HookContext{})
	if got := e.Decide(context.Background(), "Read", nil); got != Allow {
		t.Fatalf("Decide = %s, want allow from heuristics", got)
	}
}

func TestHookReceivesRequestAndEnv(t *testing.T) {
	dir := t.TempDir()
	capture := filepath.Join(dir, "request.json")
	envCapture := filepath.Join(dir, "env.txt")
	hook := writeHook(t,
		"cat > "+capture+"\n"+
			"echo \"$PILOT_PROJECT_DIR:$PILOT_TASK_ID:$PILOT_PROJECT_ID\" > "+envCapture+"\n"+
			"echo allow")

	e := NewEngine(hook, false, HookContext{
		ProjectDir: "/work/proj",
		ProjectID:  "proj-1",
		TaskID:     "task-9",
	})
	input := map[string]interface{}{"command": "ls -la"}
	if got := e.Decide(context.Background(), "Bash", input); got != Allow {
		t.Fatalf("Decide = %s, want allow", got)
	}

	raw, err := os.ReadFile(capture)
	if err != nil {
		t.Fatal(err)
	}
	var req hookRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		t.Fatalf("hook stdin is not valid JSON: %v", err)
	}
	if req.Tool != "Bash" {
		t.Errorf("request tool = %q, want Bash", req.Tool)
	}
	if req.Input["command"] != "ls -la" {
		t.Errorf("request input = %v", req.Input)
	}
	if req.Context["task_id"] != "task-9" || req.Context["project_dir"] != "/work/proj" {
		t.Errorf("request context = %v", req.Context)
	}

	env, err := os.ReadFile(envCapture)
	if err != nil {
		t.Fatal(err)
	}
	if string(env) != "/work/proj:task-9:proj-1\n" {
		t.Errorf("hook env = %q", env)
	}
}
