package session

import "testing"

func TestMessageAccessors(t *testing.T) {
	msg := Message{
		Role: RoleAssistant,
		Blocks: []ContentBlock{
			TextBlock{Text: "first "},
			ToolUseBlock{ID: "toolu_1", Name: "Read", Input: map[string]interface{}{"file_path": "/tmp/x"}},
			TextBlock{Text: "second"},
			ToolResultBlock{ToolUseID: "toolu_1", Content: "out"},
		},
	}

	if got := msg.Text(); got != "first second" {
		t.Errorf("Text() = %q", got)
	}
	uses := msg.ToolUses()
	if len(uses) != 1 || uses[0].ID != "toolu_1" || uses[0].Name != "Read" {
		t.Errorf("ToolUses() = %+v", uses)
	}
	results := msg.ToolResults()
	if len(results) != 1 || results[0].ToolUseID != "toolu_1" {
		t.Errorf("ToolResults() = %+v", results)
	}
}

func TestNewTextMessage(t *testing.T) {
	msg := NewTextMessage(RoleUser, "hello")
	if msg.Role != RoleUser || msg.Text() != "hello" {
		t.Errorf("NewTextMessage = %+v", msg)
	}
	if len(msg.ToolUses()) != 0 || len(msg.ToolResults()) != 0 {
		t.Error("a text message carries no tool blocks")
	}
}

func TestUsageAdd(t *testing.T) {
	var total Usage
	total.Add(Usage{InputTokens: 10, OutputTokens: 2})
	total.Add(Usage{InputTokens: 5, OutputTokens: 3})
	if total.InputTokens != 15 || total.OutputTokens != 5 {
		t.Errorf("totals = %+v", total)
	}
}

func TestSession(t *testing.T) {
	s := New("anthropic", "some-model")
	if s.LastMessage() != nil {
		t.Error("an empty session has no last message")
	}

	s.AddMessage(NewTextMessage(RoleUser, "one"))
	s.AddMessage(NewTextMessage(RoleAssistant, "two"))
	if len(s.Messages) != 2 {
		t.Fatalf("messages = %d", len(s.Messages))
	}
	last := s.LastMessage()
	if last == nil || last.Text() != "two" {
		t.Errorf("LastMessage = %+v", last)
	}
}
