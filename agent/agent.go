package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/m4xw311/pilot/config"
	"github.com/m4xw311/pilot/errors"
	"github.com/m4xw311/pilot/llm"
	"github.com/m4xw311/pilot/output"
	"github.com/m4xw311/pilot/permission"
	"github.com/m4xw311/pilot/session"
	"github.com/m4xw311/pilot/tools"
)

// CompletionMarker is the fixed string whose presence in assistant text
// signals task completion.
const CompletionMarker = "TASK COMPLETED"

// Terminal failure conditions, distinguished so callers can tell "the model
// kept working without finishing" from "a single response overflowed".
var (
	ErrMaxIterations = fmt.Errorf("agent: iteration budget exhausted")
	ErrTruncated     = fmt.Errorf("agent: model response truncated (max_tokens)")
)

// Agent drives one task to completion: it calls the provider, inspects the
// response for tool calls, gates each call through the permission engine,
// executes approved calls, and folds results back into the conversation.
// An Agent owns its Session exclusively; it is not shared across tasks.
type Agent struct {
	Config      *config.Config
	Session     *session.Session
	Client      llm.Client
	Registry    *tools.Registry
	Permissions *permission.Engine
	Sink        output.Sink

	// StreamText, when set and the client supports streaming, receives
	// text deltas as they arrive.
	StreamText func(string)
}

// New assembles an agent for a single task.
func New(cfg *config.Config, sess *session.Session, client llm.Client, registry *tools.Registry, perms *permission.Engine, sink output.Sink) *Agent {
	if sink == nil {
		sink = output.Discard{}
	}
	return &Agent{
		Config:      cfg,
		Session:     sess,
		Client:      client,
		Registry:    registry,
		Permissions: perms,
		Sink:        sink,
	}
}

// Run executes the agent loop for one prompt. It returns true when the task
// completed (completion marker seen or the model ended its turn), false on
// any terminal failure. The returned error carries the failure class; a
// clean unsuccessful run returns the matching sentinel.
func (a *Agent) Run(ctx context.Context, prompt string) (bool, error) {
	a.Session.AddMessage(session.NewTextMessage(session.RoleUser, prompt))

	specs := a.toolSpecs()
	maxIterations := a.Config.MaxIterations
	if maxIterations <= 0 {
		maxIterations = 50
	}

	for i := 0; i < maxIterations; i++ {
		if err := ctx.Err(); err != nil {
			return a.fail("task cancelled", err)
		}

		resp, err := a.chat(ctx, specs)
		if err != nil {
			return a.fail(fmt.Sprintf("model call failed: %v", err), err)
		}

		a.Session.Iterations++
		a.Session.TotalUsage.Add(resp.Usage)
		a.Sink.Assistant(resp.Content, toolUseEvents(resp.ToolCalls), resp.Usage)

		if len(resp.ToolCalls) > 0 {
			done, err := a.executeRound(ctx, resp)
			if err != nil {
				return a.fail("task cancelled during tool execution", err)
			}
			if done {
				return a.finish(true)
			}
			continue
		}

		if resp.Content != "" {
			a.Session.AddMessage(session.NewTextMessage(session.RoleAssistant, resp.Content))
		}
		if strings.Contains(resp.Content, CompletionMarker) {
			return a.finish(true)
		}
		if resp.StopReason == llm.StopMaxTokens {
			// Resuming mid-truncation risks duplicated or inconsistent
			// tool calls, so this is terminal.
			return a.fail("response truncated at token ceiling", ErrTruncated)
		}
		return a.finish(true)
	}

	return a.fail("iteration budget exhausted", ErrMaxIterations)
}

func (a *Agent) chat(ctx context.Context, specs []llm.ToolSpec) (*llm.Response, error) {
	maxTokens := a.Config.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}
	if a.StreamText != nil && a.Client.SupportsStreaming() {
		return a.Client.StreamChat(ctx, a.Session.Messages, specs, maxTokens, a.StreamText)
	}
	return a.Client.Chat(ctx, a.Session.Messages, specs, maxTokens)
}

// executeRound appends the assistant message for a tool-calling response,
// runs every requested call sequentially through the permission engine and
// registry, and appends one aggregated tool-result message. It reports
// completion when the assistant text carried the completion marker; the
// tools still run first and the marker is honored only after their results
// are folded in.
func (a *Agent) executeRound(ctx context.Context, resp *llm.Response) (bool, error) {
	var blocks []session.ContentBlock
	if resp.Content != "" {
		blocks = append(blocks, session.TextBlock{Text: resp.Content})
	}
	for _, call := range resp.ToolCalls {
		blocks = append(blocks, session.ToolUseBlock{ID: call.ID, Name: call.Name, Input: call.Input})
	}
	a.Session.AddMessage(session.Message{Role: session.RoleAssistant, Blocks: blocks})

	cancelled := false
	results := make([]session.ContentBlock, 0, len(resp.ToolCalls))
	for _, call := range resp.ToolCalls {
		if cancelled || ctx.Err() != nil {
			// The invariant still holds: every tool use gets exactly one
			// result, even for calls abandoned by cancellation.
			cancelled = true
			results = append(results, session.ToolResultBlock{
				ToolUseID: call.ID,
				Content:   "Task cancelled before this tool ran",
				IsError:   true,
			})
			continue
		}

		result := a.executeCall(ctx, call)
		a.Sink.ToolResult(call.Name, result.Output, result.IsError)
		results = append(results, session.ToolResultBlock{
			ToolUseID: call.ID,
			Content:   result.Output,
			IsError:   result.IsError,
		})
	}
	a.Session.AddMessage(session.Message{Role: session.RoleUser, Blocks: results})

	if cancelled || ctx.Err() != nil {
		return false, ctx.Err()
	}
	return strings.Contains(resp.Content, CompletionMarker), nil
}

// executeCall gates one call through the permission engine and dispatches it
// to the registry. A tool is never permitted to crash the loop: panics and
// error returns are both folded into an error result.
func (a *Agent) executeCall(ctx context.Context, call llm.ToolCall) (result *tools.Result) {
	defer func() {
		if r := recover(); r != nil {
			result = tools.Errorf("Tool execution error: panic in %s: %v", call.Name, r)
		}
	}()

	switch a.Permissions.Decide(ctx, call.Name, call.Input) {
	case permission.Deny:
		return &tools.Result{
			Output:  fmt.Sprintf("Permission denied for %s", call.Name),
			IsError: true,
		}
	case permission.Ask:
		return &tools.Result{
			Output:  fmt.Sprintf("Operation %s blocked pending approval", call.Name),
			IsError: true,
		}
	}

	tool, ok := a.Registry.Get(call.Name)
	if !ok {
		return tools.Errorf("unknown tool '%s'", call.Name)
	}

	res, err := tool.Execute(ctx, call.Input)
	if err != nil {
		return &tools.Result{
			Output:  fmt.Sprintf("Tool execution error: %v", err),
			IsError: true,
		}
	}
	if res == nil {
		return tools.Errorf("tool '%s' returned no result", call.Name)
	}
	return res
}

func (a *Agent) toolSpecs() []llm.ToolSpec {
	all := a.Registry.All()
	specs := make([]llm.ToolSpec, 0, len(all))
	for _, t := range all {
		specs = append(specs, llm.ToolSpec{
			Name:        t.Name(),
			Description: t.Description(),
			InputSchema: t.InputSchema(),
		})
	}
	return specs
}

func (a *Agent) finish(success bool) (bool, error) {
	a.Sink.Final(success, a.Session.TotalUsage)
	return success, nil
}

func (a *Agent) fail(msg string, err error) (bool, error) {
	a.Sink.Error(msg)
	a.Sink.Final(false, a.Session.TotalUsage)
	if err == nil {
		err = errors.New("%s", msg)
	}
	return false, err
}

func toolUseEvents(calls []llm.ToolCall) []output.ToolUseEvent {
	if len(calls) == 0 {
		return nil
	}
	events := make([]output.ToolUseEvent, 0, len(calls))
	for _, call := range calls {
		events = append(events, output.ToolUseEvent{ID: call.ID, Name: call.Name, Input: call.Input})
	}
	return events
}
