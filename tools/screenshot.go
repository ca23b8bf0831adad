package tools

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"time"
)

const screenshotTimeout = 15 * time.Second

// ScreenshotTool captures the screen using the platform capture command and
// returns the image as an inline [IMAGE:image/png:<base64>] payload.
// Vision-capable provider adapters rewrite the payload into a multimodal
// block; others degrade it to a placeholder.
type ScreenshotTool struct{}

func (t *ScreenshotTool) Name() string { return "Screenshot" }

func (t *ScreenshotTool) Description() string {
	return "Captures a screenshot of the screen and returns it as an inline image payload. No required args."
}

func (t *ScreenshotTool) InputSchema() map[string]interface{} {
	return objectSchema(map[string]interface{}{})
}

func (t *ScreenshotTool) Execute(ctx context.Context, args map[string]interface{}) (*Result, error) {
	dir, err := os.MkdirTemp("", "pilot-shot-*")
	if err != nil {
		return Errorf("failed to create temp directory: %v", err), nil
	}
	defer os.RemoveAll(dir)
	target := filepath.Join(dir, "screen.png")

	capCtx, cancel := context.WithTimeout(ctx, screenshotTimeout)
	defer cancel()

	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.CommandContext(capCtx, "screencapture", "-x", target)
	case "linux":
		cmd = exec.CommandContext(capCtx, "scrot", "--overwrite", target)
	default:
		return Errorf("screenshot capture is not supported on %s", runtime.GOOS), nil
	}

	if out, err := cmd.CombinedOutput(); err != nil {
		if capCtx.Err() == context.DeadlineExceeded {
			return Errorf("screenshot capture timed out after %s", screenshotTimeout), nil
		}
		return Errorf("screenshot capture failed: %v\n%s", err, out), nil
	}

	data, err := os.ReadFile(target)
	if err != nil {
		return Errorf("failed to read captured image: %v", err), nil
	}

	return &Result{
		Output:   fmt.Sprintf("[IMAGE:image/png:%s]", base64.StdEncoding.EncodeToString(data)),
		Metadata: map[string]interface{}{"bytes": len(data)},
	}, nil
}
