package llm

import (
	"encoding/json"
	"testing"

	"github.com/m4xw311/pilot/session"
)

func TestBuildBedrockRequest(t *testing.T) {
	b := &BedrockClient{modelID: "anthropic.claude-3-5-sonnet", system: "be brief"}
	messages := []session.Message{
		session.NewTextMessage(session.RoleUser, "hello"),
	}
	tools := []ToolSpec{{Name: "Read", Description: "read a file"}}

	body, err := b.buildRequest(messages, tools, 2048)
	if err != nil {
		t.Fatal(err)
	}
	var req map[string]interface{}
	if err := json.Unmarshal(body, &req); err != nil {
		t.Fatal(err)
	}
	if req["anthropic_version"] != "bedrock-2023-05-31" {
		t.Errorf("anthropic_version = %v", req["anthropic_version"])
	}
	if req["max_tokens"] != float64(2048) {
		t.Errorf("max_tokens = %v", req["max_tokens"])
	}
	if req["system"] != "be brief" {
		t.Errorf("system = %v", req["system"])
	}
	decls, _ := req["tools"].([]interface{})
	if len(decls) != 1 {
		t.Fatalf("tools = %v", req["tools"])
	}
	decl := decls[0].(map[string]interface{})
	if decl["name"] != "Read" {
		t.Errorf("tool name = %v", decl["name"])
	}
	// A tool with no schema still gets a valid empty object schema.
	schema, _ := decl["input_schema"].(map[string]interface{})
	if schema["type"] != "object" {
		t.Errorf("input_schema = %v", decl["input_schema"])
	}
}

func TestConvertMessagesToBedrock(t *testing.T) {
	messages := []session.Message{
		session.NewTextMessage(session.RoleUser, "run the check"),
		{
			Role: session.RoleAssistant,
			Blocks: []session.ContentBlock{
				session.TextBlock{Text: "running it"},
				session.ToolUseBlock{ID: "toolu_1", Name: "Bash", Input: map[string]interface{}{"command": "ls"}},
			},
		},
		{
			Role: session.RoleUser,
			Blocks: []session.ContentBlock{
				session.ToolResultBlock{ToolUseID: "toolu_1", Content: "main.go", IsError: false},
			},
		},
	}

	out := convertMessagesToBedrock(messages)
	if len(out) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(out))
	}
	if out[1]["role"] != "assistant" || out[2]["role"] != "user" {
		t.Fatalf("bad roles: %v %v", out[1]["role"], out[2]["role"])
	}

	assistantBlocks := out[1]["content"].([]map[string]interface{})
	if len(assistantBlocks) != 2 || assistantBlocks[1]["type"] != "tool_use" {
		t.Fatalf("assistant blocks = %v", assistantBlocks)
	}
	resultBlocks := out[2]["content"].([]map[string]interface{})
	if resultBlocks[0]["tool_use_id"] != "toolu_1" {
		t.Fatalf("result blocks = %v", resultBlocks)
	}
}

func TestConvertMessagesToBedrockDegradesImages(t *testing.T) {
	messages := []session.Message{
		{
			Role: session.RoleUser,
			Blocks: []session.ContentBlock{
				session.ToolResultBlock{ToolUseID: "toolu_1", Content: "[IMAGE:image/png:aGVsbG8=]"},
			},
		},
	}
	out := convertMessagesToBedrock(messages)
	blocks := out[0]["content"].([]map[string]interface{})
	if blocks[0]["content"] != "[image omitted: image/png]" {
		t.Fatalf("image was not degraded: %v", blocks[0]["content"])
	}
}

func TestNormalizeBedrockBody(t *testing.T) {
	body := []byte(`{
		"content": [
			{"type": "text", "text": "checking the file"},
			{"type": "tool_use", "id": "toolu_9", "name": "Read", "input": {"file_path": "/tmp/x"}}
		],
		"stop_reason": "tool_use",
		"usage": {"input_tokens": 120, "output_tokens": 34}
	}`)

	resp, err := normalizeBedrockBody(body)
	if err != nil {
		t.Fatal(err)
	}
	if resp.Content != "checking the file" {
		t.Errorf("content = %q", resp.Content)
	}
	if len(resp.ToolCalls) != 1 || resp.ToolCalls[0].ID != "toolu_9" || resp.ToolCalls[0].Name != "Read" {
		t.Fatalf("tool calls = %+v", resp.ToolCalls)
	}
	if resp.ToolCalls[0].Input["file_path"] != "/tmp/x" {
		t.Errorf("tool input = %v", resp.ToolCalls[0].Input)
	}
	if resp.StopReason != StopToolUse {
		t.Errorf("stop reason = %s", resp.StopReason)
	}
	if resp.Usage.InputTokens != 120 || resp.Usage.OutputTokens != 34 {
		t.Errorf("usage = %+v", resp.Usage)
	}
}

func TestNormalizeBedrockBodySynthesizesIDs(t *testing.T) {
	body := []byte(`{
		"content": [{"type": "tool_use", "name": "Glob", "input": {}}],
		"stop_reason": "tool_use"
	}`)
	resp, err := normalizeBedrockBody(body)
	if err != nil {
		t.Fatal(err)
	}
	if len(resp.ToolCalls) != 1 || resp.ToolCalls[0].ID == "" {
		t.Fatalf("expected a synthesized id, got %+v", resp.ToolCalls)
	}
}

func TestNormalizeBedrockBodyMaxTokens(t *testing.T) {
	body := []byte(`{"content": [{"type": "text", "text": "partial"}], "stop_reason": "max_tokens"}`)
	resp, err := normalizeBedrockBody(body)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StopReason != StopMaxTokens {
		t.Errorf("stop reason = %s, want max tokens", resp.StopReason)
	}
}

func TestNormalizeBedrockBodyError(t *testing.T) {
	if _, err := normalizeBedrockBody([]byte(`{"error": {"message": "throttled"}}`)); err == nil {
		t.Fatal("expected an error for an error body")
	}
	if _, err := normalizeBedrockBody([]byte(`not json`)); err == nil {
		t.Fatal("expected an error for a malformed body")
	}
}
