package mcpconn

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/xeipuuv/gojsonschema"
)

// ListTools fetches the server's advertised tools, following pagination
// cursors, and caches the result on the connection's status.
func (c *Connection) ListTools(ctx context.Context) ([]Tool, error) {
	var tools []Tool
	cursor := ""
	for {
		result, err := c.SendRequest(ctx, "tools/list", map[string]string{"cursor": cursor})
		if err != nil {
			return nil, fmt.Errorf("failed to list tools: %w", err)
		}

		var page ListToolsResult
		if err := json.Unmarshal(result, &page); err != nil {
			return nil, fmt.Errorf("failed to parse tools list: %w", err)
		}
		tools = append(tools, page.Tools...)
		if page.NextCursor == "" {
			break
		}
		cursor = page.NextCursor
	}

	c.mu.Lock()
	c.tools = tools
	c.mu.Unlock()
	c.publishStatus()

	c.logger.WithFields(map[string]interface{}{"count": len(tools)}).Debug("tool discovery complete")
	return tools, nil
}

// discoverTools runs the post-handshake discovery call. Failure is not
// fatal to the connection; the tool list just stays empty.
func (c *Connection) discoverTools(ctx context.Context) error {
	_, err := c.ListTools(ctx)
	return err
}

// CallTool invokes a server tool. When the tool advertised an input schema
// during discovery, arguments are validated against it before anything is
// sent.
func (c *Connection) CallTool(ctx context.Context, params CallToolParams) (CallToolResult, error) {
	ctx, span := c.startSpan(ctx, "Connection.CallTool", "tools/call")
	defer span.End()

	if err := c.validateToolArguments(params); err != nil {
		return CallToolResult{}, recordSpanErr(span, err)
	}

	result, err := c.SendRequest(ctx, "tools/call", params)
	if err != nil {
		return CallToolResult{}, recordSpanErr(span, fmt.Errorf("tool call failed: %w", err))
	}

	var callResult CallToolResult
	if err := json.Unmarshal(result, &callResult); err != nil {
		return CallToolResult{}, recordSpanErr(span, fmt.Errorf("failed to parse tool result: %w", err))
	}
	return callResult, nil
}

func (c *Connection) validateToolArguments(params CallToolParams) error {
	c.mu.RLock()
	var schema json.RawMessage
	for _, tool := range c.tools {
		if tool.Name == params.Name {
			schema = tool.InputSchema
			break
		}
	}
	c.mu.RUnlock()

	if len(schema) == 0 {
		return nil
	}
	args := params.Arguments
	if len(args) == 0 {
		args = json.RawMessage(`{}`)
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewBytesLoader(schema),
		gojsonschema.NewBytesLoader(args),
	)
	if err != nil {
		// A broken schema should not make the tool uncallable.
		c.logger.WithErr(err).WithFields(map[string]interface{}{"tool": params.Name}).Warn("could not validate tool arguments")
		return nil
	}
	if !result.Valid() {
		return fmt.Errorf("invalid arguments for tool %s: %v", params.Name, result.Errors())
	}
	return nil
}

// Ping checks that the server still answers requests.
func (c *Connection) Ping(ctx context.Context) error {
	if _, err := c.SendRequest(ctx, "ping", nil); err != nil {
		return fmt.Errorf("ping failed: %w", err)
	}
	return nil
}
