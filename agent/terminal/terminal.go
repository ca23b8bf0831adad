package terminal

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/m4xw311/pilot/agent"
)

// Terminal runs the agent interactively: each input line becomes one task
// driven to completion by the agent loop.
type Terminal struct {
	agent *agent.Agent
}

// New creates a new Terminal instance.
func New(a *agent.Agent) *Terminal {
	return &Terminal{agent: a}
}

// Run starts the interactive session. An initial prompt from the command
// line, when present, is processed first.
func (t *Terminal) Run(ctx context.Context, initialPrompt string) error {
	if initialPrompt != "" {
		t.runTask(ctx, initialPrompt)
	}

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("You: ")
		if !scanner.Scan() {
			// EOF or read error ends the session
			break
		}

		userInput := strings.TrimSpace(scanner.Text())
		if userInput == "" {
			continue
		}
		if userInput == "/quit" || userInput == "/exit" {
			break
		}

		t.runTask(ctx, userInput)
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}

	return scanner.Err()
}

func (t *Terminal) runTask(ctx context.Context, prompt string) {
	success, err := t.agent.Run(ctx, prompt)
	switch {
	case success:
		return
	case errors.Is(err, agent.ErrMaxIterations):
		fmt.Println("Task stopped: iteration budget exhausted.")
	case errors.Is(err, agent.ErrTruncated):
		fmt.Println("Task stopped: the model response was truncated.")
	case err != nil:
		fmt.Printf("Task failed: %v\n", err)
	}
}
