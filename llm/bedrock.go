package llm

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/m4xw311/pilot/errors"
	"github.com/m4xw311/pilot/session"
)

// BedrockClient is the adapter for Anthropic models hosted on AWS Bedrock.
// The request body follows the Anthropic-on-Bedrock JSON convention rather
// than a typed SDK shape, so translation is done over plain maps.
type BedrockClient struct {
	client  *bedrockruntime.Client
	modelID string
	system  string
}

// NewBedrockClient creates a new BedrockClient. It requires AWS credentials
// to be configured in the environment.
func NewBedrockClient(ctx context.Context, modelID, systemPrompt string) (*BedrockClient, error) {
	if modelID == "" {
		return nil, errors.Config("bedrock model not set")
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, errors.Config("failed to load AWS config: %v", err)
	}
	return &BedrockClient{
		client:  bedrockruntime.NewFromConfig(cfg),
		modelID: modelID,
		system:  systemPrompt,
	}, nil
}

func (b *BedrockClient) SupportsTools() bool     { return true }
func (b *BedrockClient) SupportsStreaming() bool { return false }
func (b *BedrockClient) SupportsVision() bool    { return false }

// Chat invokes the model through the Bedrock runtime and normalizes the
// response.
func (b *BedrockClient) Chat(ctx context.Context, messages []session.Message, tools []ToolSpec, maxTokens int) (*Response, error) {
	body, err := b.buildRequest(messages, tools, maxTokens)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to build Bedrock request")
	}

	resp, err := b.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(b.modelID),
		ContentType: aws.String("application/json"),
		Body:        body,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to invoke Bedrock model")
	}
	return normalizeBedrockBody(resp.Body)
}

// StreamChat is not supported by this adapter; callers fall back to Chat.
func (b *BedrockClient) StreamChat(ctx context.Context, messages []session.Message, tools []ToolSpec, maxTokens int, onDelta func(string)) (*Response, error) {
	return nil, errors.New("bedrock adapter does not support streaming")
}

func (b *BedrockClient) buildRequest(messages []session.Message, tools []ToolSpec, maxTokens int) ([]byte, error) {
	request := map[string]interface{}{
		"anthropic_version": "bedrock-2023-05-31",
		"max_tokens":        maxTokens,
		"messages":          convertMessagesToBedrock(messages),
	}
	if b.system != "" {
		request["system"] = b.system
	}
	if len(tools) > 0 {
		var decls []map[string]interface{}
		for _, spec := range tools {
			decls = append(decls, map[string]interface{}{
				"name":         spec.Name,
				"description":  spec.Description,
				"input_schema": schemaOrEmpty(spec.InputSchema),
			})
		}
		request["tools"] = decls
	}
	return json.Marshal(request)
}

// convertMessagesToBedrock maps the internal block union onto the Anthropic
// wire shape. This adapter cannot express vision input, so image payloads in
// tool results degrade to text placeholders.
func convertMessagesToBedrock(messages []session.Message) []map[string]interface{} {
	var out []map[string]interface{}
	for _, msg := range messages {
		var blocks []map[string]interface{}
		for _, block := range msg.Blocks {
			switch b := block.(type) {
			case session.TextBlock:
				if b.Text != "" {
					blocks = append(blocks, map[string]interface{}{
						"type": "text",
						"text": b.Text,
					})
				}
			case session.ToolUseBlock:
				blocks = append(blocks, map[string]interface{}{
					"type":  "tool_use",
					"id":    b.ID,
					"name":  b.Name,
					"input": b.Input,
				})
			case session.ToolResultBlock:
				content := b.Content
				if img, ok := ParseImagePayload(content); ok {
					content = DegradeImage(img)
				}
				blocks = append(blocks, map[string]interface{}{
					"type":        "tool_result",
					"tool_use_id": b.ToolUseID,
					"content":     content,
					"is_error":    b.IsError,
				})
			}
		}
		if len(blocks) == 0 {
			continue
		}
		role := "user"
		if msg.Role == session.RoleAssistant {
			role = "assistant"
		}
		out = append(out, map[string]interface{}{
			"role":    role,
			"content": blocks,
		})
	}
	return out
}

// normalizeBedrockBody converts a raw Bedrock response body into the
// internal Response shape.
func normalizeBedrockBody(body []byte) (*Response, error) {
	var response map[string]interface{}
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, errors.Wrapf(err, "failed to unmarshal Bedrock response")
	}
	if errMsg, ok := response["error"]; ok {
		return nil, errors.New("Bedrock API error: %v", errMsg)
	}

	out := &Response{}
	if usage, ok := response["usage"].(map[string]interface{}); ok {
		if v, ok := usage["input_tokens"].(float64); ok {
			out.Usage.InputTokens = int(v)
		}
		if v, ok := usage["output_tokens"].(float64); ok {
			out.Usage.OutputTokens = int(v)
		}
	}

	contentArray, _ := response["content"].([]interface{})
	toolCallSeq := 0
	for _, item := range contentArray {
		itemMap, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		switch itemMap["type"] {
		case "text":
			if text, ok := itemMap["text"].(string); ok {
				out.Content += text
			}
		case "tool_use":
			name, ok := itemMap["name"].(string)
			if !ok {
				continue
			}
			input, _ := itemMap["input"].(map[string]interface{})
			if input == nil {
				input = map[string]interface{}{}
			}
			id, _ := itemMap["id"].(string)
			if id == "" {
				id = fmt.Sprintf("call_%d_%s", toolCallSeq, name)
			}
			out.ToolCalls = append(out.ToolCalls, ToolCall{ID: id, Name: name, Input: input})
			toolCallSeq++
		}
	}

	vendorReason, _ := response["stop_reason"].(string)
	out.StopReason = normalizeStopReason(vendorReason, len(out.ToolCalls) > 0)
	return out, nil
}
