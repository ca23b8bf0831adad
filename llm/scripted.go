package llm

import (
	"context"

	"github.com/m4xw311/pilot/errors"
	"github.com/m4xw311/pilot/session"
)

// ScriptedClient returns canned responses in order. It records the
// conversation it was called with so tests can assert on the exact messages
// the loop sent.
type ScriptedClient struct {
	Responses []*Response
	Calls     [][]session.Message

	next int
}

func (s *ScriptedClient) SupportsTools() bool     { return true }
func (s *ScriptedClient) SupportsStreaming() bool { return false }
func (s *ScriptedClient) SupportsVision() bool    { return false }

// Chat pops the next scripted response.
func (s *ScriptedClient) Chat(ctx context.Context, messages []session.Message, tools []ToolSpec, maxTokens int) (*Response, error) {
	snapshot := make([]session.Message, len(messages))
	copy(snapshot, messages)
	s.Calls = append(s.Calls, snapshot)

	if s.next >= len(s.Responses) {
		return nil, errors.New("scripted client exhausted after %d responses", len(s.Responses))
	}
	resp := s.Responses[s.next]
	s.next++
	return resp, nil
}

// StreamChat is unsupported; the scripted client only answers Chat.
func (s *ScriptedClient) StreamChat(ctx context.Context, messages []session.Message, tools []ToolSpec, maxTokens int, onDelta func(string)) (*Response, error) {
	return nil, errors.New("scripted client does not support streaming")
}
