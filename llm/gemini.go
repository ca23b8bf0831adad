package llm

import (
	"context"
	"encoding/base64"
	"os"

	"github.com/google/generative-ai-go/genai"
	"github.com/m4xw311/pilot/errors"
	"github.com/m4xw311/pilot/session"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

// GeminiClient is the adapter for the Google Gemini API.
type GeminiClient struct {
	model *genai.GenerativeModel
}

// NewGeminiClient creates a new GeminiClient. It requires the GEMINI_API_KEY
// environment variable to be set.
func NewGeminiClient(ctx context.Context, modelName, systemPrompt string) (*GeminiClient, error) {
	apiKey := os.Getenv("GEMINI_API_KEY")
	if apiKey == "" {
		return nil, errors.Config("GEMINI_API_KEY environment variable not set")
	}
	if modelName == "" {
		return nil, errors.Config("gemini model not set")
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, errors.Wrapf(err, "failed to create genai client")
	}

	model := client.GenerativeModel(modelName)
	if systemPrompt != "" {
		model.SystemInstruction = &genai.Content{
			Parts: []genai.Part{genai.Text(systemPrompt)},
		}
	}

	return &GeminiClient{model: model}, nil
}

func (g *GeminiClient) SupportsTools() bool     { return true }
func (g *GeminiClient) SupportsStreaming() bool { return true }
func (g *GeminiClient) SupportsVision() bool    { return true }

// Chat sends the conversation to the Gemini API and normalizes the response.
func (g *GeminiClient) Chat(ctx context.Context, messages []session.Message, tools []ToolSpec, maxTokens int) (*Response, error) {
	chatSession, lastParts, err := g.prepare(messages, tools, maxTokens)
	if err != nil {
		return nil, err
	}
	resp, err := chatSession.SendMessage(ctx, lastParts...)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to send message to Gemini")
	}
	return normalizeGeminiResponse(resp)
}

// StreamChat streams candidate chunks, forwarding text deltas, then
// normalizes the merged response.
func (g *GeminiClient) StreamChat(ctx context.Context, messages []session.Message, tools []ToolSpec, maxTokens int, onDelta func(string)) (*Response, error) {
	chatSession, lastParts, err := g.prepare(messages, tools, maxTokens)
	if err != nil {
		return nil, err
	}
	iter := chatSession.SendMessageStream(ctx, lastParts...)
	for {
		chunk, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, errors.Wrapf(err, "Gemini stream failed")
		}
		if onDelta == nil || len(chunk.Candidates) == 0 || chunk.Candidates[0].Content == nil {
			continue
		}
		for _, part := range chunk.Candidates[0].Content.Parts {
			if text, ok := part.(genai.Text); ok && text != "" {
				onDelta(string(text))
			}
		}
	}
	merged := iter.MergedResponse()
	if merged == nil {
		return nil, errors.New("Gemini stream produced no response")
	}
	return normalizeGeminiResponse(merged)
}

func (g *GeminiClient) prepare(messages []session.Message, tools []ToolSpec, maxTokens int) (*genai.ChatSession, []genai.Part, error) {
	history := convertMessagesToGemini(messages)
	if len(history) == 0 {
		return nil, nil, errors.New("cannot send an empty conversation to Gemini")
	}

	g.model.Tools = convertToolsToGemini(tools)
	tokens := int32(maxTokens)
	g.model.MaxOutputTokens = &tokens

	chatSession := g.model.StartChat()
	last := history[len(history)-1]
	chatSession.History = history[:len(history)-1]
	return chatSession, last.Parts, nil
}

// convertMessagesToGemini maps the internal block union onto Gemini content.
// Tool uses become FunctionCall parts; tool results become FunctionResponse
// parts, with image payloads attached as inline blobs. Gemini matches
// function responses by name, not id, so tool-use ids are resolved back to
// the tool name they were issued for.
func convertMessagesToGemini(messages []session.Message) []*genai.Content {
	nameByID := make(map[string]string)
	for _, msg := range messages {
		for _, use := range msg.ToolUses() {
			nameByID[use.ID] = use.Name
		}
	}

	var contents []*genai.Content
	for _, msg := range messages {
		role := "user"
		if msg.Role == session.RoleAssistant {
			role = "model"
		}
		var parts []genai.Part
		for _, block := range msg.Blocks {
			switch b := block.(type) {
			case session.TextBlock:
				if b.Text != "" {
					parts = append(parts, genai.Text(b.Text))
				}
			case session.ToolUseBlock:
				parts = append(parts, genai.FunctionCall{Name: b.Name, Args: b.Input})
			case session.ToolResultBlock:
				name := nameByID[b.ToolUseID]
				if name == "" {
					name = b.ToolUseID
				}
				if img, ok := ParseImagePayload(b.Content); ok {
					parts = append(parts, genai.FunctionResponse{
						Name:     name,
						Response: map[string]interface{}{"output": DegradeImage(img)},
					})
					if data, err := base64.StdEncoding.DecodeString(img.Base64); err == nil {
						parts = append(parts, genai.Blob{MIMEType: img.MimeType, Data: data})
					}
					continue
				}
				parts = append(parts, genai.FunctionResponse{
					Name: name,
					Response: map[string]interface{}{
						"output":   b.Content,
						"is_error": b.IsError,
					},
				})
			}
		}
		if len(parts) == 0 {
			continue
		}
		contents = append(contents, &genai.Content{Role: role, Parts: parts})
	}
	return contents
}

// convertToolsToGemini converts tool specs to Gemini function declarations,
// translating the JSON-Schema parameter block into genai.Schema.
func convertToolsToGemini(tools []ToolSpec) []*genai.Tool {
	if len(tools) == 0 {
		return nil
	}
	var funcDecls []*genai.FunctionDeclaration
	for _, spec := range tools {
		funcDecls = append(funcDecls, &genai.FunctionDeclaration{
			Name:        spec.Name,
			Description: spec.Description,
			Parameters:  jsonSchemaToGemini(schemaOrEmpty(spec.InputSchema)),
		})
	}
	return []*genai.Tool{{FunctionDeclarations: funcDecls}}
}

func jsonSchemaToGemini(schema map[string]interface{}) *genai.Schema {
	out := &genai.Schema{Type: geminiType(schema["type"])}
	if desc, ok := schema["description"].(string); ok {
		out.Description = desc
	}
	if props, ok := schema["properties"].(map[string]interface{}); ok {
		out.Properties = make(map[string]*genai.Schema, len(props))
		for name, raw := range props {
			if sub, ok := raw.(map[string]interface{}); ok {
				out.Properties[name] = jsonSchemaToGemini(sub)
			}
		}
	}
	if items, ok := schema["items"].(map[string]interface{}); ok {
		out.Items = jsonSchemaToGemini(items)
	}
	out.Required = schemaRequired(schema)
	return out
}

func geminiType(t interface{}) genai.Type {
	switch t {
	case "string":
		return genai.TypeString
	case "number":
		return genai.TypeNumber
	case "integer":
		return genai.TypeInteger
	case "boolean":
		return genai.TypeBoolean
	case "array":
		return genai.TypeArray
	default:
		return genai.TypeObject
	}
}

// normalizeGeminiResponse converts a Gemini response into the internal
// Response shape. Gemini does not assign tool-call ids, so they are
// synthesized locally.
func normalizeGeminiResponse(resp *genai.GenerateContentResponse) (*Response, error) {
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, errors.New("received an empty response from Gemini")
	}

	out := &Response{}
	if resp.UsageMetadata != nil {
		out.Usage = session.Usage{
			InputTokens:  int(resp.UsageMetadata.PromptTokenCount),
			OutputTokens: int(resp.UsageMetadata.CandidatesTokenCount),
		}
	}

	candidate := resp.Candidates[0]
	for _, part := range candidate.Content.Parts {
		switch v := part.(type) {
		case genai.Text:
			out.Content += string(v)
		case genai.FunctionCall:
			args := v.Args
			if args == nil {
				args = map[string]interface{}{}
			}
			out.ToolCalls = append(out.ToolCalls, ToolCall{
				ID:    newCallID(),
				Name:  v.Name,
				Input: args,
			})
		}
	}

	vendorReason := ""
	if candidate.FinishReason == genai.FinishReasonMaxTokens {
		vendorReason = "max_tokens"
	}
	out.StopReason = normalizeStopReason(vendorReason, len(out.ToolCalls) > 0)
	return out, nil
}
