package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/m4xw311/pilot/errors"
	"github.com/m4xw311/pilot/session"
	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
)

// OpenAIClient is the adapter for the OpenAI Chat Completions API.
type OpenAIClient struct {
	client *openai.Client
	model  string
	system string
	vision bool
}

// NewOpenAIClient creates a new OpenAIClient. It requires the OPENAI_API_KEY
// environment variable to be set and honors OPENAI_BASE_URL for custom
// endpoints.
func NewOpenAIClient(ctx context.Context, modelName, systemPrompt string) (*OpenAIClient, error) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		return nil, errors.Config("OPENAI_API_KEY environment variable not set")
	}
	if modelName == "" {
		return nil, errors.Config("openai model not set")
	}

	options := []option.RequestOption{
		option.WithAPIKey(apiKey),
	}
	if baseURL := os.Getenv("OPENAI_BASE_URL"); baseURL != "" {
		options = append(options, option.WithBaseURL(baseURL))
	}

	// The v2 SDK uses functional options for configuration.
	c := openai.NewClient(options...)
	return &OpenAIClient{client: &c, model: modelName, system: systemPrompt, vision: true}, nil
}

func (o *OpenAIClient) SupportsTools() bool     { return true }
func (o *OpenAIClient) SupportsStreaming() bool { return true }
func (o *OpenAIClient) SupportsVision() bool    { return o.vision }

// Chat sends the conversation to the Chat Completions endpoint and
// normalizes the response.
func (o *OpenAIClient) Chat(ctx context.Context, messages []session.Message, tools []ToolSpec, maxTokens int) (*Response, error) {
	resp, err := o.client.Chat.Completions.New(ctx, o.buildParams(messages, tools, maxTokens))
	if err != nil {
		return nil, errors.Wrapf(err, "failed to send message to OpenAI")
	}
	return normalizeOpenAICompletion(resp), nil
}

// StreamChat streams completion chunks, forwarding content deltas, and
// returns the accumulated normalized response.
func (o *OpenAIClient) StreamChat(ctx context.Context, messages []session.Message, tools []ToolSpec, maxTokens int, onDelta func(string)) (*Response, error) {
	stream := o.client.Chat.Completions.NewStreaming(ctx, o.buildParams(messages, tools, maxTokens))

	var acc openai.ChatCompletionAccumulator
	for stream.Next() {
		chunk := stream.Current()
		acc.AddChunk(chunk)
		if onDelta != nil && len(chunk.Choices) > 0 && chunk.Choices[0].Delta.Content != "" {
			onDelta(chunk.Choices[0].Delta.Content)
		}
	}
	if err := stream.Err(); err != nil {
		return nil, errors.Wrapf(err, "OpenAI stream failed")
	}
	return normalizeOpenAICompletion(&acc.ChatCompletion), nil
}

func (o *OpenAIClient) buildParams(messages []session.Message, tools []ToolSpec, maxTokens int) openai.ChatCompletionNewParams {
	params := openai.ChatCompletionNewParams{
		Model:               openai.ChatModel(o.model),
		Messages:            convertMessagesToOpenAI(messages, o.system, o.vision),
		Tools:               convertToolsToOpenAI(tools),
		MaxCompletionTokens: openai.Int(int64(maxTokens)),
	}
	return params
}

// convertMessagesToOpenAI maps the internal block union onto OpenAI chat
// messages. The system prompt is reinserted as a leading system message.
// Tool results carrying an image payload are degraded inside the tool
// message and, when vision is available, re-sent as a user image part so the
// model can still see the pixels.
func convertMessagesToOpenAI(messages []session.Message, systemPrompt string, vision bool) []openai.ChatCompletionMessageParamUnion {
	var chatMessages []openai.ChatCompletionMessageParamUnion
	if systemPrompt != "" {
		chatMessages = append(chatMessages, openai.SystemMessage(systemPrompt))
	}
	for _, msg := range messages {
		switch msg.Role {
		case session.RoleAssistant:
			assistantMessage := openai.ChatCompletionMessage{
				Role:    "assistant",
				Content: msg.Text(),
			}
			var toolCalls []openai.ChatCompletionMessageToolCallUnion
			for _, use := range msg.ToolUses() {
				argsBytes, err := json.Marshal(use.Input)
				if err != nil {
					argsBytes = []byte("{}")
				}
				toolCalls = append(toolCalls, openai.ChatCompletionMessageToolCallUnion{
					ID:   use.ID,
					Type: "function",
					Function: openai.ChatCompletionMessageFunctionToolCallFunction{
						Name:      use.Name,
						Arguments: string(argsBytes),
					},
				})
			}
			assistantMessage.ToolCalls = toolCalls
			chatMessages = append(chatMessages, assistantMessage.ToParam())
		case session.RoleUser:
			results := msg.ToolResults()
			if len(results) == 0 {
				chatMessages = append(chatMessages, openai.UserMessage(msg.Text()))
				continue
			}
			// One tool message per result; the OpenAI API requires the
			// tool_call_id to identify each.
			for _, r := range results {
				img, isImage := ParseImagePayload(r.Content)
				content := r.Content
				if isImage {
					content = DegradeImage(img)
				}
				chatMessages = append(chatMessages, openai.ToolMessage(content, r.ToolUseID))
				if isImage && vision {
					dataURL := fmt.Sprintf("data:%s;base64,%s", img.MimeType, img.Base64)
					chatMessages = append(chatMessages, openai.UserMessage(
						[]openai.ChatCompletionContentPartUnionParam{
							openai.TextContentPart("Image output of the preceding tool call:"),
							openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{URL: dataURL}),
						},
					))
				}
			}
			if text := msg.Text(); text != "" {
				chatMessages = append(chatMessages, openai.UserMessage(text))
			}
		}
	}
	return chatMessages
}

// convertToolsToOpenAI converts tool specs to the OpenAI function-tool shape,
// passing the JSON-Schema parameter block through losslessly.
func convertToolsToOpenAI(tools []ToolSpec) []openai.ChatCompletionToolUnionParam {
	if len(tools) == 0 {
		return nil
	}
	var openAITools []openai.ChatCompletionToolUnionParam
	for _, spec := range tools {
		params := openai.FunctionParameters(schemaOrEmpty(spec.InputSchema))
		openAITools = append(openAITools, openai.ChatCompletionFunctionTool(openai.FunctionDefinitionParam{
			Name:        spec.Name,
			Description: openai.String(spec.Description),
			Parameters:  params,
		}))
	}
	return openAITools
}

// normalizeOpenAICompletion converts a chat completion into the internal
// Response shape.
func normalizeOpenAICompletion(resp *openai.ChatCompletion) *Response {
	out := &Response{
		Usage: session.Usage{
			InputTokens:  int(resp.Usage.PromptTokens),
			OutputTokens: int(resp.Usage.CompletionTokens),
		},
	}
	if len(resp.Choices) == 0 {
		out.StopReason = StopEndTurn
		return out
	}
	choice := resp.Choices[0]
	out.Content = choice.Message.Content
	for _, tc := range choice.Message.ToolCalls {
		id := tc.ID
		if id == "" {
			id = newCallID()
		}
		out.ToolCalls = append(out.ToolCalls, ToolCall{
			ID:    id,
			Name:  tc.Function.Name,
			Input: decodeToolArgs([]byte(tc.Function.Arguments)),
		})
	}
	out.StopReason = normalizeStopReason(string(choice.FinishReason), len(out.ToolCalls) > 0)
	return out
}
