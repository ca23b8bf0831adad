package tools

import (
	"context"
	"runtime"
	"strings"
	"testing"
	"time"
)

func skipWithoutBash(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("bash is not available on windows")
	}
}

func TestBashTool(t *testing.T) {
	skipWithoutBash(t)
	res, err := (&BashTool{}).Execute(context.Background(), map[string]interface{}{
		"command": "echo hello",
	})
	if err != nil {
		t.Fatal(err)
	}
	if res.IsError || strings.TrimSpace(res.Output) != "hello" {
		t.Fatalf("result = %+v", res)
	}
}

func TestBashToolCapturesStderr(t *testing.T) {
	skipWithoutBash(t)
	res, err := (&BashTool{}).Execute(context.Background(), map[string]interface{}{
		"command": "echo oops >&2; exit 1",
	})
	if err != nil {
		t.Fatal(err)
	}
	if !res.IsError {
		t.Fatal("a non-zero exit must produce an error result")
	}
	if !strings.Contains(res.Output, "oops") {
		t.Fatalf("stderr not captured: %q", res.Output)
	}
}

func TestBashToolTimeout(t *testing.T) {
	skipWithoutBash(t)
	start := time.Now()
	res, err := (&BashTool{}).Execute(context.Background(), map[string]interface{}{
		"command": "sleep 10",
		"timeout": float64(100),
	})
	if err != nil {
		t.Fatal(err)
	}
	if !res.IsError || !strings.Contains(res.Output, "timed out") {
		t.Fatalf("result = %+v", res)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Fatalf("timeout not enforced, took %s", elapsed)
	}
}

func TestBashToolMissingCommand(t *testing.T) {
	res, err := (&BashTool{}).Execute(context.Background(), map[string]interface{}{})
	if err != nil {
		t.Fatal(err)
	}
	if !res.IsError {
		t.Fatal("a missing command argument must produce an error result")
	}
}
