package mcp

import (
	"context"
	"encoding/json"
	"os"
	"os/exec"

	"github.com/m4xw311/pilot/errors"
	"github.com/m4xw311/pilot/tools"
	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
)

// Client manages the connection to a single MCP server subprocess and
// bridges the tools it advertises into the agent's registry.
type Client struct {
	Name  string
	cmd   *exec.Cmd
	conn  *mcpsdk.ClientSession
	tools map[string]*ServerTool
}

// NewClient starts the MCP server subprocess, connects over stdio, and
// discovers the tools it provides.
func NewClient(ctx context.Context, name, command string, args []string) (*Client, error) {
	cmd := exec.Command(command, args...)
	cmd.Stderr = os.Stderr
	mcpClient := mcpsdk.NewClient(&mcpsdk.Implementation{Name: "pilot", Version: "v1.0.0"}, nil)
	conn, err := mcpClient.Connect(ctx, mcpsdk.NewCommandTransport(cmd))
	if err != nil {
		cmd.Process.Kill()
		return nil, errors.Wrapf(err, "failed to connect to MCP server '%s'", name)
	}

	client := &Client{
		Name:  name,
		cmd:   cmd,
		conn:  conn,
		tools: make(map[string]*ServerTool),
	}

	listParams := &mcpsdk.ListToolsParams{}
	for {
		toolList, err := conn.ListTools(ctx, listParams)
		if err != nil {
			cmd.Process.Kill()
			return nil, errors.Wrapf(err, "failed to list tools from MCP server '%s'", name)
		}
		for _, t := range toolList.Tools {
			client.tools[t.Name] = &ServerTool{
				serverName:  name,
				toolName:    t.Name,
				description: t.Description,
				schema:      schemaToMap(t.InputSchema),
				client:      client,
			}
		}
		if toolList.NextCursor == "" {
			break
		}
		listParams.Cursor = toolList.NextCursor
	}

	return client, nil
}

// Tools returns every bridged tool.
func (c *Client) Tools() []*ServerTool {
	out := make([]*ServerTool, 0, len(c.tools))
	for _, t := range c.tools {
		out = append(out, t)
	}
	return out
}

// Get returns a specific tool by its short name.
func (c *Client) Get(toolName string) (*ServerTool, bool) {
	t, ok := c.tools[toolName]
	return t, ok
}

// Stop terminates the MCP server subprocess.
func (c *Client) Stop() error {
	if c.conn != nil {
		c.conn.Close()
	}
	if c.cmd != nil && c.cmd.Process != nil {
		return c.cmd.Process.Kill()
	}
	return nil
}

// ServerTool adapts one remote MCP tool to the tools.Tool contract.
type ServerTool struct {
	serverName  string
	toolName    string
	description string
	schema      map[string]interface{}
	client      *Client
}

func (t *ServerTool) Name() string        { return t.toolName }
func (t *ServerTool) Description() string { return t.description }

// ServerName identifies the server this tool is bridged from, for
// "server:tool" toolset selection.
func (t *ServerTool) ServerName() string { return t.serverName }

func (t *ServerTool) InputSchema() map[string]interface{} {
	return t.schema
}

// Execute forwards the call to the MCP server and folds the reply into a
// tool result.
func (t *ServerTool) Execute(ctx context.Context, args map[string]interface{}) (*tools.Result, error) {
	result, err := t.client.conn.CallTool(ctx, &mcpsdk.CallToolParams{
		Name:      t.toolName,
		Arguments: args,
	})
	if err != nil {
		return tools.Errorf("failed to call MCP tool '%s': %v", t.toolName, err), nil
	}

	var output string
	for _, c := range result.Content {
		if text, ok := c.(*mcpsdk.TextContent); ok {
			output += text.Text
		}
	}
	return &tools.Result{
		Output:   output,
		IsError:  result.IsError,
		Metadata: map[string]interface{}{"server": t.serverName},
	}, nil
}

// schemaToMap converts the SDK's schema type into the plain JSON-Schema map
// the tool contract carries.
func schemaToMap(schema any) map[string]interface{} {
	if schema == nil {
		return nil
	}
	raw, err := json.Marshal(schema)
	if err != nil {
		return nil
	}
	var out map[string]interface{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil
	}
	return out
}
