package output

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/m4xw311/pilot/session"
)

// Event is one entry of the agent's output stream, consumed by the
// orchestrating daemon. Type is one of "assistant", "result", "error".
type Event struct {
	Type     string         `json:"type"`
	Text     string         `json:"text,omitempty"`
	ToolUses []ToolUseEvent `json:"tool_uses,omitempty"`
	ToolName string         `json:"tool_name,omitempty"`
	IsError  bool           `json:"is_error,omitempty"`
	Success  *bool          `json:"success,omitempty"`
	Usage    *session.Usage `json:"usage,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// ToolUseEvent reports one pending tool invocation inside an assistant
// event.
type ToolUseEvent struct {
	ID    string         `json:"id"`
	Name  string         `json:"name"`
	Input map[string]any `json:"input"`
}

// Sink receives agent events. The loop emits one assistant event per model
// round-trip, a result event per tool execution, and one terminal result
// event carrying the final cumulative usage and success flag.
type Sink interface {
	Assistant(text string, uses []ToolUseEvent, usage session.Usage)
	ToolResult(toolName, output string, isError bool)
	Error(msg string)
	Final(success bool, usage session.Usage)
}

// JSONSink writes one JSON object per line.
type JSONSink struct {
	mu  sync.Mutex
	enc *json.Encoder
}

// NewJSONSink creates a JSON-lines sink on w.
func NewJSONSink(w io.Writer) *JSONSink {
	return &JSONSink{enc: json.NewEncoder(w)}
}

func (s *JSONSink) emit(ev Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	// An unencodable event must not kill the loop; drop it.
	_ = s.enc.Encode(ev)
}

func (s *JSONSink) Assistant(text string, uses []ToolUseEvent, usage session.Usage) {
	u := usage
	s.emit(Event{Type: "assistant", Text: text, ToolUses: uses, Usage: &u})
}

func (s *JSONSink) ToolResult(toolName, output string, isError bool) {
	s.emit(Event{Type: "result", ToolName: toolName, Text: output, IsError: isError})
}

func (s *JSONSink) Error(msg string) {
	s.emit(Event{Type: "error", Text: msg})
}

func (s *JSONSink) Final(success bool, usage session.Usage) {
	u := usage
	s.emit(Event{Type: "result", Success: &success, Usage: &u})
}

// TextSink writes human-readable output, for running pilot directly in a
// terminal.
type TextSink struct {
	mu sync.Mutex
	w  io.Writer
}

// NewTextSink creates a formatted text sink on w.
func NewTextSink(w io.Writer) *TextSink {
	return &TextSink{w: w}
}

func (s *TextSink) Assistant(text string, uses []ToolUseEvent, usage session.Usage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if text != "" {
		fmt.Fprintf(s.w, "Pilot: %s\n", text)
	}
	for _, use := range uses {
		fmt.Fprintf(s.w, "  -> tool %s\n", use.Name)
	}
}

func (s *TextSink) ToolResult(toolName, output string, isError bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	status := "ok"
	if isError {
		status = "error"
	}
	fmt.Fprintf(s.w, "  <- %s (%s): %s\n", toolName, status, truncate(output, 200))
}

func (s *TextSink) Error(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintf(s.w, "Error: %s\n", msg)
}

func (s *TextSink) Final(success bool, usage session.Usage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintf(s.w, "Done (success=%t, input_tokens=%d, output_tokens=%d)\n",
		success, usage.InputTokens, usage.OutputTokens)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// Discard is a sink that drops every event; useful in tests.
type Discard struct{}

func (Discard) Assistant(string, []ToolUseEvent, session.Usage) {}
func (Discard) ToolResult(string, string, bool)                 {}
func (Discard) Error(string)                                    {}
func (Discard) Final(bool, session.Usage)                       {}
