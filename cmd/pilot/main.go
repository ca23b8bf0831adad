package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/m4xw311/pilot/agent"
	"github.com/m4xw311/pilot/agent/terminal"
	"github.com/m4xw311/pilot/config"
	piloterrors "github.com/m4xw311/pilot/errors"
	"github.com/m4xw311/pilot/llm"
	"github.com/m4xw311/pilot/logs"
	"github.com/m4xw311/pilot/output"
	"github.com/m4xw311/pilot/permission"
	"github.com/m4xw311/pilot/session"
	"github.com/m4xw311/pilot/tools"
	"github.com/m4xw311/pilot/tools/mcp"
	"github.com/spf13/cobra"
)

const systemPrompt = `You are Pilot, an autonomous coding agent. You are given a task and a set
of tools. Work step by step: inspect the project, make changes, and verify
them. When the task is fully done, include the exact phrase TASK COMPLETED
in your final message.`

func main() {
	if err := newRootCmd().Execute(); err != nil {
		if piloterrors.IsConfig(err) {
			fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
			os.Exit(2)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		providerFlag  string
		modelFlag     string
		hookFlag      string
		skipPermsFlag bool
		jsonFlag      bool
		interactive   bool
		streamFlag    bool
		debugFlag     bool
		maxIterations int
	)

	cmd := &cobra.Command{
		Use:          "pilot [prompt...]",
		Short:        "Autonomous coding agent runtime",
		Long:         "pilot drives a loop of model calls and gated tool invocations until a task is complete.",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if debugFlag {
				logs.SetDebug()
			}
			logs.Setup(nil)

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if providerFlag != "" {
				cfg.Provider = providerFlag
			}
			if hookFlag != "" {
				cfg.Hook.Path = hookFlag
			}
			if skipPermsFlag {
				cfg.SkipPermissions = true
			}
			if maxIterations > 0 {
				cfg.MaxIterations = maxIterations
			}
			if cfg.Provider == "" {
				return piloterrors.Config("no provider selected; set 'provider' in config or pass --provider")
			}
			model := cfg.ResolveModel(modelFlag)
			if model == "" {
				return piloterrors.Config("no model selected; set 'model' in config or pass --model")
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			client, err := llm.New(ctx, cfg.Provider, model, systemPrompt)
			if err != nil {
				return err
			}

			registry := tools.NewRegistry(cfg)
			mcpClients := startMCPServers(ctx, cfg, registry)
			defer func() {
				for _, c := range mcpClients {
					c.Stop()
				}
			}()
			registry, err = registry.Restrict(cfg.Toolset)
			if err != nil {
				return piloterrors.Wrapf(err, "invalid toolset")
			}

			perms := permission.NewEngine(cfg.Hook.Path, cfg.SkipPermissions, permission.HookContext{
				ProjectDir: cfg.ProjectDir,
				ProjectID:  cfg.ProjectID,
				TaskID:     cfg.TaskID,
			})

			var sink output.Sink
			if jsonFlag {
				sink = output.NewJSONSink(os.Stdout)
			} else {
				sink = output.NewTextSink(os.Stdout)
			}

			sess := session.New(cfg.Provider, model)
			pilotAgent := agent.New(cfg, sess, client, registry, perms, sink)
			if streamFlag && !jsonFlag && client.SupportsStreaming() {
				pilotAgent.StreamText = func(delta string) { fmt.Print(delta) }
			}

			if interactive {
				term := terminal.New(pilotAgent)
				return term.Run(ctx, strings.Join(args, " "))
			}

			prompt := strings.Join(args, " ")
			if prompt == "" {
				return piloterrors.Config("no prompt given; pass the task as arguments or use --interactive")
			}

			success, err := pilotAgent.Run(ctx, prompt)
			if success {
				return nil
			}
			switch {
			case errors.Is(err, agent.ErrMaxIterations), errors.Is(err, agent.ErrTruncated):
				return err
			case err != nil:
				return err
			default:
				return fmt.Errorf("task did not complete")
			}
		},
	}

	cmd.Flags().StringVarP(&providerFlag, "provider", "p", "", "Model backend: anthropic, openai, gemini, bedrock, or local")
	cmd.Flags().StringVarP(&modelFlag, "model", "m", "", "Model name or configured alias")
	cmd.Flags().StringVar(&hookFlag, "hook", "", "Path to the permission hook executable")
	cmd.Flags().BoolVar(&skipPermsFlag, "skip-permissions", false, "Allow every tool call without consulting the permission engine")
	cmd.Flags().BoolVar(&jsonFlag, "json", false, "Emit JSON-lines events instead of formatted text")
	cmd.Flags().BoolVarP(&interactive, "interactive", "i", false, "Run an interactive session instead of a single task")
	cmd.Flags().BoolVar(&streamFlag, "stream", false, "Stream assistant text as it arrives (text output only)")
	cmd.Flags().BoolVar(&debugFlag, "debug", false, "Enable debug logging")
	cmd.Flags().IntVar(&maxIterations, "max-iterations", 0, "Override the iteration ceiling")

	return cmd
}

// startMCPServers connects each configured MCP server and registers its
// tools. A server that fails to start is logged and skipped; the built-in
// tools remain available.
func startMCPServers(ctx context.Context, cfg *config.Config, registry *tools.Registry) []*mcp.Client {
	var clients []*mcp.Client
	for _, server := range cfg.MCPServers {
		client, err := mcp.NewClient(ctx, server.Name, server.Command, server.Args)
		if err != nil {
			slog.Warn("skipping MCP server", "name", server.Name, "error", err)
			continue
		}
		for _, t := range client.Tools() {
			registry.Register(t)
		}
		slog.Info("connected MCP server", "name", server.Name, "tools", len(client.Tools()))
		clients = append(clients, client)
	}
	return clients
}
