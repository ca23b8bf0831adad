package llm

import (
	"context"
	"encoding/json"
	"os"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/m4xw311/pilot/errors"
	"github.com/m4xw311/pilot/session"
)

// AnthropicClient is the adapter for the Anthropic Messages API.
type AnthropicClient struct {
	client *anthropic.Client
	model  string
	system string
}

// NewAnthropicClient creates a new AnthropicClient. It requires the
// ANTHROPIC_API_KEY environment variable to be set.
func NewAnthropicClient(ctx context.Context, modelName, systemPrompt string) (*AnthropicClient, error) {
	apiKey := os.Getenv("ANTHROPIC_API_KEY")
	if apiKey == "" {
		return nil, errors.Config("ANTHROPIC_API_KEY environment variable not set")
	}
	if modelName == "" {
		return nil, errors.Config("anthropic model not set")
	}

	client := anthropic.NewClient(
		option.WithAPIKey(apiKey),
	)

	return &AnthropicClient{
		client: &client,
		model:  modelName,
		system: systemPrompt,
	}, nil
}

func (a *AnthropicClient) SupportsTools() bool     { return true }
func (a *AnthropicClient) SupportsStreaming() bool { return true }
func (a *AnthropicClient) SupportsVision() bool    { return true }

// Chat sends the conversation to the Anthropic API and normalizes the
// response.
func (a *AnthropicClient) Chat(ctx context.Context, messages []session.Message, tools []ToolSpec, maxTokens int) (*Response, error) {
	resp, err := a.client.Messages.New(ctx, a.buildParams(messages, tools, maxTokens))
	if err != nil {
		return nil, errors.Wrapf(err, "failed to send message to Anthropic")
	}
	return normalizeAnthropicMessage(resp), nil
}

// StreamChat streams the response, invoking onDelta per text fragment, and
// returns the accumulated normalized response.
func (a *AnthropicClient) StreamChat(ctx context.Context, messages []session.Message, tools []ToolSpec, maxTokens int, onDelta func(string)) (*Response, error) {
	stream := a.client.Messages.NewStreaming(ctx, a.buildParams(messages, tools, maxTokens))

	var acc anthropic.Message
	for stream.Next() {
		event := stream.Current()
		if err := acc.Accumulate(event); err != nil {
			return nil, errors.Wrapf(err, "failed to accumulate Anthropic stream event")
		}
		if onDelta != nil {
			if ev, ok := event.AsAny().(anthropic.ContentBlockDeltaEvent); ok {
				if d, ok := ev.Delta.AsAny().(anthropic.TextDelta); ok && d.Text != "" {
					onDelta(d.Text)
				}
			}
		}
	}
	if err := stream.Err(); err != nil {
		return nil, errors.Wrapf(err, "Anthropic stream failed")
	}
	return normalizeAnthropicMessage(&acc), nil
}

func (a *AnthropicClient) buildParams(messages []session.Message, tools []ToolSpec, maxTokens int) anthropic.MessageNewParams {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(a.model),
		MaxTokens: int64(maxTokens),
		Messages:  convertMessagesToAnthropic(messages),
	}
	if a.system != "" {
		params.System = []anthropic.TextBlockParam{{Text: a.system}}
	}
	for _, spec := range tools {
		schema := schemaOrEmpty(spec.InputSchema)
		toolParam := anthropic.ToolParam{
			Name:        spec.Name,
			Description: anthropic.String(spec.Description),
			InputSchema: anthropic.ToolInputSchemaParam{
				Properties: schema["properties"],
				Required:   schemaRequired(schema),
			},
		}
		params.Tools = append(params.Tools, anthropic.ToolUnionParam{OfTool: &toolParam})
	}
	return params
}

// convertMessagesToAnthropic maps the internal block union onto Anthropic
// content blocks. Tool results carrying an inline image payload become image
// blocks inside the tool_result.
func convertMessagesToAnthropic(messages []session.Message) []anthropic.MessageParam {
	var out []anthropic.MessageParam
	for _, msg := range messages {
		var blocks []anthropic.ContentBlockParamUnion
		for _, block := range msg.Blocks {
			switch b := block.(type) {
			case session.TextBlock:
				if b.Text != "" {
					blocks = append(blocks, anthropic.NewTextBlock(b.Text))
				}
			case session.ToolUseBlock:
				input, err := json.Marshal(b.Input)
				if err != nil {
					input = []byte("{}")
				}
				blocks = append(blocks, anthropic.ContentBlockParamUnion{
					OfToolUse: &anthropic.ToolUseBlockParam{
						ID:    b.ID,
						Name:  b.Name,
						Input: json.RawMessage(input),
					},
				})
			case session.ToolResultBlock:
				result := &anthropic.ToolResultBlockParam{
					ToolUseID: b.ToolUseID,
					IsError:   anthropic.Bool(b.IsError),
				}
				if img, ok := ParseImagePayload(b.Content); ok {
					result.Content = []anthropic.ToolResultBlockParamContentUnion{{
						OfImage: &anthropic.ImageBlockParam{
							Source: anthropic.ImageBlockParamSourceUnion{
								OfBase64: &anthropic.Base64ImageSourceParam{
									Data:      img.Base64,
									MediaType: anthropic.Base64ImageSourceMediaType(img.MimeType),
								},
							},
						},
					}}
				} else {
					result.Content = []anthropic.ToolResultBlockParamContentUnion{{
						OfText: &anthropic.TextBlockParam{Text: b.Content},
					}}
				}
				blocks = append(blocks, anthropic.ContentBlockParamUnion{OfToolResult: result})
			}
		}
		if len(blocks) == 0 {
			continue
		}
		role := anthropic.MessageParamRoleUser
		if msg.Role == session.RoleAssistant {
			role = anthropic.MessageParamRoleAssistant
		}
		out = append(out, anthropic.MessageParam{Role: role, Content: blocks})
	}
	return out
}

// normalizeAnthropicMessage converts an Anthropic API response into the
// internal Response shape.
func normalizeAnthropicMessage(msg *anthropic.Message) *Response {
	resp := &Response{
		Usage: session.Usage{
			InputTokens:  int(msg.Usage.InputTokens),
			OutputTokens: int(msg.Usage.OutputTokens),
		},
	}
	for _, content := range msg.Content {
		switch c := content.AsAny().(type) {
		case anthropic.TextBlock:
			resp.Content += c.Text
		case anthropic.ToolUseBlock:
			id := c.ID
			if id == "" {
				id = newCallID()
			}
			resp.ToolCalls = append(resp.ToolCalls, ToolCall{
				ID:    id,
				Name:  c.Name,
				Input: decodeToolArgs(c.Input),
			})
		}
	}
	resp.StopReason = normalizeStopReason(string(msg.StopReason), len(resp.ToolCalls) > 0)
	return resp
}
