package tools

import (
	"context"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	defaultFetchTimeout = 30 * time.Second
	maxFetchBytes       = 1 << 20 // 1 MiB
)

// WebFetchTool retrieves a URL over HTTP(S) and returns the body as text.
type WebFetchTool struct {
	// Client may be overridden in tests; nil means a default client with
	// the standard timeout.
	Client *http.Client
}

func (t *WebFetchTool) Name() string { return "WebFetch" }

func (t *WebFetchTool) Description() string {
	return "Fetches a URL over HTTP(S) and returns the response body as text (truncated at 1 MiB). " +
		"Args: url (string)."
}

func (t *WebFetchTool) InputSchema() map[string]interface{} {
	return objectSchema(map[string]interface{}{
		"url": map[string]interface{}{
			"type":        "string",
			"description": "The http:// or https:// URL to fetch.",
		},
	}, "url")
}

func (t *WebFetchTool) Execute(ctx context.Context, args map[string]interface{}) (*Result, error) {
	url, err := stringArg(args, "url")
	if err != nil {
		return Errorf("%v", err), nil
	}
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		return Errorf("unsupported URL scheme in '%s'", url), nil
	}

	client := t.Client
	if client == nil {
		client = &http.Client{Timeout: defaultFetchTimeout}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Errorf("invalid request for '%s': %v", url, err), nil
	}

	resp, err := client.Do(req)
	if err != nil {
		return Errorf("failed to fetch '%s': %v", url, err), nil
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFetchBytes))
	if err != nil {
		return Errorf("failed to read response from '%s': %v", url, err), nil
	}

	result := &Result{
		Output: string(body),
		Metadata: map[string]interface{}{
			"status_code":  resp.StatusCode,
			"content_type": resp.Header.Get("Content-Type"),
		},
	}
	if resp.StatusCode >= 400 {
		result.IsError = true
	}
	return result, nil
}
