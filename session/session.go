package session

// Role identifies the author of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ContentBlock is one element of a message body. Exactly one of the concrete
// block types (TextBlock, ToolUseBlock, ToolResultBlock) implements it.
type ContentBlock interface {
	blockKind() string
}

// TextBlock is plain assistant or user text.
type TextBlock struct {
	Text string `json:"text"`
}

// ToolUseBlock is a model-issued request to invoke a named tool. The ID is
// opaque and provider-assigned; it must be echoed back unchanged in the
// matching ToolResultBlock.
type ToolUseBlock struct {
	ID    string                 `json:"id"`
	Name  string                 `json:"name"`
	Input map[string]interface{} `json:"input"`
}

// ToolResultBlock carries the outcome of one tool invocation back to the
// model.
type ToolResultBlock struct {
	ToolUseID string `json:"tool_use_id"`
	Content   string `json:"content"`
	IsError   bool   `json:"is_error"`
}

func (TextBlock) blockKind() string       { return "text" }
func (ToolUseBlock) blockKind() string    { return "tool_use" }
func (ToolResultBlock) blockKind() string { return "tool_result" }

// Message is one entry of the conversation. Blocks are ordered; a message
// holding only text may use the Text convenience accessor.
type Message struct {
	Role   Role           `json:"role"`
	Blocks []ContentBlock `json:"blocks"`
}

// NewTextMessage builds a message holding a single text block.
func NewTextMessage(role Role, text string) Message {
	return Message{Role: role, Blocks: []ContentBlock{TextBlock{Text: text}}}
}

// Text concatenates all text blocks of the message.
func (m Message) Text() string {
	var out string
	for _, b := range m.Blocks {
		if t, ok := b.(TextBlock); ok {
			out += t.Text
		}
	}
	return out
}

// ToolUses returns the tool-use blocks in emission order.
func (m Message) ToolUses() []ToolUseBlock {
	var uses []ToolUseBlock
	for _, b := range m.Blocks {
		if u, ok := b.(ToolUseBlock); ok {
			uses = append(uses, u)
		}
	}
	return uses
}

// ToolResults returns the tool-result blocks in order.
func (m Message) ToolResults() []ToolResultBlock {
	var results []ToolResultBlock
	for _, b := range m.Blocks {
		if r, ok := b.(ToolResultBlock); ok {
			results = append(results, r)
		}
	}
	return results
}

// Usage tracks token consumption across model round-trips.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// Add folds another usage report into the running totals.
func (u *Usage) Add(other Usage) {
	u.InputTokens += other.InputTokens
	u.OutputTokens += other.OutputTokens
}

// Session is the state of one agent task: the conversation, cumulative token
// counters, the iteration counter, and the selected provider and model. It is
// created at task start, owned exclusively by one agent loop, and discarded
// at task end.
type Session struct {
	Provider        string
	Model           string
	SkipPermissions bool

	Messages   []Message
	TotalUsage Usage
	Iterations int
}

// New creates an empty session bound to a provider and model.
func New(provider, model string) *Session {
	return &Session{Provider: provider, Model: model}
}

// AddMessage appends a message to the conversation.
func (s *Session) AddMessage(msg Message) {
	s.Messages = append(s.Messages, msg)
}

// LastMessage returns the most recent message, or nil when empty.
func (s *Session) LastMessage() *Message {
	if len(s.Messages) == 0 {
		return nil
	}
	return &s.Messages[len(s.Messages)-1]
}
