package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	sdk_client "github.com/mark3labs/mcp-go/client"
	sdk_mcp "github.com/mark3labs/mcp-go/mcp"
	"github.com/rs/zerolog/log"

	"github.com/seqthink/engine/internal/engerr"
)

// defaultCallTimeout caps a single MCP tool call when the server config
// does not specify one.
const defaultCallTimeout = 60 * time.Second

// LogHandler receives a server-initiated notifications/log message.
type LogHandler func(server string, level string, message string)

// Client wraps the mcp-go SDK client for a single MCP server.
// It is safe for concurrent use by multiple goroutines.
type Client struct {
	mu     sync.RWMutex
	cfg    ServerConfig
	inner  sdk_client.MCPClient
	onLog  LogHandler
}

// NewClient creates an uninitialised Client for the given server config.
// Call Connect to establish the connection and complete the MCP handshake.
func NewClient(cfg ServerConfig) *Client {
	return &Client{cfg: cfg}
}

// OnLog registers a handler for server log notifications. Must be called
// before Connect to guarantee no notifications are missed.
func (c *Client) OnLog(h LogHandler) {
	c.mu.Lock()
	c.onLog = h
	c.mu.Unlock()
}

// Connect establishes the transport connection and performs the MCP
// initialize handshake. It must be called before ListTools or CallTool.
func (c *Client) Connect(ctx context.Context) error {
	start := time.Now()
	var inner sdk_client.MCPClient

	switch c.cfg.Transport {
	case "stdio":
		cli, err := sdk_client.NewStdioMCPClient(c.cfg.Command, c.cfg.Env, c.cfg.Args...)
		if err != nil {
			return engerr.Wrap(engerr.KindTransport, fmt.Sprintf("start stdio server %q", c.cfg.Name), err)
		}
		inner = cli

	case "sse":
		cli, err := sdk_client.NewSSEMCPClient(c.cfg.URL)
		if err != nil {
			return engerr.Wrap(engerr.KindTransport, fmt.Sprintf("create SSE client %q", c.cfg.Name), err)
		}
		if err := cli.Start(ctx); err != nil {
			return engerr.Wrap(engerr.KindTransport, fmt.Sprintf("start SSE client %q", c.cfg.Name), err)
		}
		inner = cli

	default:
		return engerr.New(engerr.KindInternal, fmt.Sprintf("unknown transport %q for server %q", c.cfg.Transport, c.cfg.Name))
	}

	c.mu.Lock()
	c.inner = inner
	handler := c.onLog
	c.mu.Unlock()

	if handler != nil {
		inner.OnNotification(func(n sdk_mcp.JSONRPCNotification) {
			if n.Method != "notifications/log" {
				return
			}
			level, _ := n.Params.AdditionalFields["level"].(string)
			var message string
			if data, ok := n.Params.AdditionalFields["data"]; ok {
				if b, err := json.Marshal(data); err == nil {
					message = string(b)
				}
			}
			handler(c.cfg.Name, level, message)
		})
	}

	_, err := inner.Initialize(ctx, sdk_mcp.InitializeRequest{
		Params: sdk_mcp.InitializeParams{
			ProtocolVersion: sdk_mcp.LATEST_PROTOCOL_VERSION,
			ClientInfo: sdk_mcp.Implementation{
				Name:    "seqthink-engine",
				Version: "0.1.0",
			},
		},
	})
	if err != nil {
		_ = inner.Close()
		c.mu.Lock()
		c.inner = nil
		c.mu.Unlock()
		return engerr.Wrap(engerr.KindProtocol, fmt.Sprintf("initialize server %q", c.cfg.Name), err)
	}

	log.Info().Str("server", c.cfg.Name).Str("transport", c.cfg.Transport).
		Dur("elapsed", time.Since(start)).Msg("mcp server connected")
	return nil
}

// ListTools returns metadata for all tools exposed by this MCP server.
func (c *Client) ListTools(ctx context.Context) ([]ToolInfo, error) {
	c.mu.RLock()
	inner := c.inner
	c.mu.RUnlock()

	if inner == nil {
		return nil, engerr.New(engerr.KindServerNotReady, fmt.Sprintf("client %q not connected", c.cfg.Name))
	}

	result, err := inner.ListTools(ctx, sdk_mcp.ListToolsRequest{})
	if err != nil {
		return nil, classifyTransportErr(ctx, fmt.Sprintf("list tools %q", c.cfg.Name), err)
	}

	tools := make([]ToolInfo, 0, len(result.Tools))
	for _, t := range result.Tools {
		schema, err := json.Marshal(t.InputSchema)
		if err != nil {
			schema = json.RawMessage("{}")
		}
		tools = append(tools, ToolInfo{
			Name:        t.Name,
			Description: t.Description,
			InputSchema: schema,
		})
	}
	return tools, nil
}

// CallTool invokes the named tool on the MCP server with the given
// arguments and returns the concatenated text content.
//
// If the server reports IsError=true, CallTool returns a KindInternal
// error wrapping the server-supplied message; a transport failure or
// deadline overrun is classified as KindTransport/KindTimeout/KindCancelled
// so callers can fold tool failures into synthetic results uniformly.
func (c *Client) CallTool(ctx context.Context, name string, args map[string]any) (string, error) {
	c.mu.RLock()
	inner := c.inner
	timeout := c.cfg.Timeout
	c.mu.RUnlock()

	if inner == nil {
		return "", engerr.New(engerr.KindServerNotReady, fmt.Sprintf("client %q not connected", c.cfg.Name))
	}
	if timeout <= 0 {
		timeout = defaultCallTimeout
	}
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req := sdk_mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args

	start := time.Now()
	result, err := inner.CallTool(callCtx, req)
	if err != nil {
		return "", classifyTransportErr(callCtx, fmt.Sprintf("call tool %q on %q", name, c.cfg.Name), err)
	}

	var parts []string
	for _, content := range result.Content {
		if tc, ok := content.(sdk_mcp.TextContent); ok {
			parts = append(parts, tc.Text)
		}
	}
	text := strings.Join(parts, "\n")

	log.Debug().Str("server", c.cfg.Name).Str("tool", name).
		Dur("duration", time.Since(start)).Bool("is_error", result.IsError).Msg("mcp tool call")

	if result.IsError {
		return "", engerr.New(engerr.KindInternal, fmt.Sprintf("tool %q returned error: %s", name, text))
	}
	return text, nil
}

// classifyTransportErr maps an underlying mcp-go error to the taxonomy,
// distinguishing cancellation and deadline overrun from a genuine
// transport failure.
func classifyTransportErr(ctx context.Context, msg string, err error) error {
	if ctx.Err() == context.Canceled {
		return engerr.Wrap(engerr.KindCancelled, msg, err)
	}
	if ctx.Err() == context.DeadlineExceeded {
		return engerr.Wrap(engerr.KindTimeout, msg, err)
	}
	return engerr.Wrap(engerr.KindTransport, msg, err)
}

// Close terminates the connection to the MCP server and releases resources.
func (c *Client) Close() error {
	c.mu.Lock()
	inner := c.inner
	c.inner = nil
	c.mu.Unlock()

	if inner == nil {
		return nil
	}
	return inner.Close()
}
