package llm

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// ImagePayload is a decoded inline image marker.
type ImagePayload struct {
	MimeType string
	Base64   string
}

// ParseImagePayload recognizes the [IMAGE:<mime>:<base64>] inline marker
// convention used by tools that produce binary output. Vision-capable
// adapters rewrite recognized payloads into vendor multimodal blocks; others
// degrade them with DegradeImage.
func ParseImagePayload(s string) (ImagePayload, bool) {
	trimmed := strings.TrimSpace(s)
	if !strings.HasPrefix(trimmed, "[IMAGE:") || !strings.HasSuffix(trimmed, "]") {
		return ImagePayload{}, false
	}
	inner := trimmed[len("[IMAGE:") : len(trimmed)-1]
	sep := strings.Index(inner, ":")
	if sep <= 0 || sep == len(inner)-1 {
		return ImagePayload{}, false
	}
	return ImagePayload{MimeType: inner[:sep], Base64: inner[sep+1:]}, true
}

// DegradeImage replaces an image payload with a text placeholder for
// adapters that cannot express vision input.
func DegradeImage(p ImagePayload) string {
	return fmt.Sprintf("[image omitted: %s]", p.MimeType)
}

// decodeToolArgs parses a vendor-supplied argument payload. A malformed or
// empty payload degrades to an empty argument object rather than aborting
// the turn.
func decodeToolArgs(raw []byte) map[string]interface{} {
	if len(raw) == 0 {
		return map[string]interface{}{}
	}
	var args map[string]interface{}
	if err := json.Unmarshal(raw, &args); err != nil || args == nil {
		return map[string]interface{}{}
	}
	return args
}

// newCallID synthesizes a tool-call id for vendors that do not assign one.
func newCallID() string {
	return "call_" + uuid.NewString()
}

// normalizeStopReason maps the finish/stop strings of the supported vendors
// onto the three internal reasons. Unknown reasons default to end_turn, or
// tool_use when tool calls are present.
func normalizeStopReason(vendor string, hasToolCalls bool) StopReason {
	switch strings.ToLower(vendor) {
	case "tool_use", "tool_calls", "function_call":
		return StopToolUse
	case "max_tokens", "length", "max_output_tokens":
		return StopMaxTokens
	}
	if hasToolCalls {
		return StopToolUse
	}
	return StopEndTurn
}

// schemaRequired extracts the required-field list of a JSON-Schema object.
// Schemas built in process carry []string; schemas decoded from JSON (MCP
// servers) carry []interface{}. Both shapes must survive translation.
func schemaRequired(schema map[string]interface{}) []string {
	switch req := schema["required"].(type) {
	case []string:
		return req
	case []interface{}:
		var out []string
		for _, r := range req {
			if s, ok := r.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// schemaOrEmpty returns a valid JSON-Schema object for a tool declaration,
// substituting an empty object schema when the spec carries none.
func schemaOrEmpty(schema map[string]interface{}) map[string]interface{} {
	if len(schema) == 0 {
		return map[string]interface{}{
			"type":       "object",
			"properties": map[string]interface{}{},
		}
	}
	return schema
}
