package llm

import (
	"context"

	"github.com/m4xw311/pilot/errors"
	"github.com/m4xw311/pilot/session"
)

// StopReason is the normalized reason a model stopped generating.
type StopReason string

const (
	StopEndTurn   StopReason = "end_turn"
	StopToolUse   StopReason = "tool_use"
	StopMaxTokens StopReason = "max_tokens"
)

// ToolSpec advertises one tool to the model. InputSchema is a JSON-Schema
// object describing the named parameters. The name/description/input_schema
// triple must round-trip losslessly through every adapter.
type ToolSpec struct {
	Name        string
	Description string
	InputSchema map[string]interface{}
}

// ToolCall is a single tool invocation request emitted by the model.
type ToolCall struct {
	ID    string
	Name  string
	Input map[string]interface{}
}

// Response is the provider-normalized result of one model round-trip.
type Response struct {
	Content    string
	ToolCalls  []ToolCall
	StopReason StopReason
	Usage      session.Usage
}

// Client is the interface every provider adapter implements. Adapters
// translate the internal conversation and tool specs into the vendor's wire
// shapes and normalize the vendor response back into a Response.
type Client interface {
	Chat(ctx context.Context, messages []session.Message, tools []ToolSpec, maxTokens int) (*Response, error)
	// StreamChat behaves like Chat but invokes onDelta for each text
	// fragment as it arrives. Adapters whose vendor API cannot stream
	// return an error; callers should consult SupportsStreaming first.
	StreamChat(ctx context.Context, messages []session.Message, tools []ToolSpec, maxTokens int, onDelta func(string)) (*Response, error)
	SupportsTools() bool
	SupportsStreaming() bool
	SupportsVision() bool
}

// New constructs the adapter for the named provider. A missing API key (or,
// for the local backend, a missing base URL) is a configuration error raised
// here, before any network call.
func New(ctx context.Context, provider, model, systemPrompt string) (Client, error) {
	switch provider {
	case "anthropic":
		return NewAnthropicClient(ctx, model, systemPrompt)
	case "openai":
		return NewOpenAIClient(ctx, model, systemPrompt)
	case "gemini":
		return NewGeminiClient(ctx, model, systemPrompt)
	case "bedrock":
		return NewBedrockClient(ctx, model, systemPrompt)
	case "local":
		return NewLocalClient(ctx, model, systemPrompt)
	default:
		return nil, errors.Config("unknown provider '%s'", provider)
	}
}
