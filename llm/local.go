package llm

import (
	"context"
	"os"

	"github.com/m4xw311/pilot/errors"
	"github.com/m4xw311/pilot/session"
	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
)

// LocalClient is the adapter for an OpenAI-compatible local inference server
// (llama.cpp, Ollama, vLLM and friends). No API key is required; a reachable
// base URL is.
type LocalClient struct {
	client *openai.Client
	model  string
	system string
}

// NewLocalClient creates a new LocalClient. The base URL is taken from the
// PILOT_LOCAL_BASE_URL environment variable; its absence is a configuration
// error.
func NewLocalClient(ctx context.Context, modelName, systemPrompt string) (*LocalClient, error) {
	baseURL := os.Getenv("PILOT_LOCAL_BASE_URL")
	if baseURL == "" {
		return nil, errors.Config("PILOT_LOCAL_BASE_URL environment variable not set")
	}
	if modelName == "" {
		return nil, errors.Config("local model not set")
	}

	// Local servers generally ignore the key but the SDK requires one.
	c := openai.NewClient(
		option.WithBaseURL(baseURL),
		option.WithAPIKey("local"),
	)
	return &LocalClient{client: &c, model: modelName, system: systemPrompt}, nil
}

func (l *LocalClient) SupportsTools() bool     { return true }
func (l *LocalClient) SupportsStreaming() bool { return true }
func (l *LocalClient) SupportsVision() bool    { return false }

// Chat sends the conversation to the local endpoint and normalizes the
// response. Usage counters stay zero-filled when the server omits them.
func (l *LocalClient) Chat(ctx context.Context, messages []session.Message, tools []ToolSpec, maxTokens int) (*Response, error) {
	resp, err := l.client.Chat.Completions.New(ctx, l.buildParams(messages, tools, maxTokens))
	if err != nil {
		return nil, errors.Wrapf(err, "failed to send message to local endpoint")
	}
	return normalizeOpenAICompletion(resp), nil
}

// StreamChat streams completion chunks from the local endpoint.
func (l *LocalClient) StreamChat(ctx context.Context, messages []session.Message, tools []ToolSpec, maxTokens int, onDelta func(string)) (*Response, error) {
	stream := l.client.Chat.Completions.NewStreaming(ctx, l.buildParams(messages, tools, maxTokens))

	var acc openai.ChatCompletionAccumulator
	for stream.Next() {
		chunk := stream.Current()
		acc.AddChunk(chunk)
		if onDelta != nil && len(chunk.Choices) > 0 && chunk.Choices[0].Delta.Content != "" {
			onDelta(chunk.Choices[0].Delta.Content)
		}
	}
	if err := stream.Err(); err != nil {
		return nil, errors.Wrapf(err, "local endpoint stream failed")
	}
	return normalizeOpenAICompletion(&acc.ChatCompletion), nil
}

func (l *LocalClient) buildParams(messages []session.Message, tools []ToolSpec, maxTokens int) openai.ChatCompletionNewParams {
	return openai.ChatCompletionNewParams{
		Model:               openai.ChatModel(l.model),
		Messages:            convertMessagesToOpenAI(messages, l.system, false),
		Tools:               convertToolsToOpenAI(tools),
		MaxCompletionTokens: openai.Int(int64(maxTokens)),
	}
}
