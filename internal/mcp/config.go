package mcp

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/seqthink/engine/internal/engerr"
)

// mcpConfigFile mirrors the top-level structure of mcp.json.
type mcpConfigFile struct {
	MCPServers map[string]ServerConfig `json:"mcpServers"`
}

// ServerConfig describes a single MCP server connection.
// Name is populated from the map key in mcp.json, never from a JSON field.
type ServerConfig struct {
	Name      string   `json:"-"`
	Transport string   `json:"transport"`         // "stdio" (default when omitted) | "sse"
	Command   string   `json:"command,omitempty"` // stdio: executable path
	Args      []string `json:"args,omitempty"`    // stdio: command arguments
	URL       string   `json:"url,omitempty"`     // sse: base URL
	Env       []string `json:"env,omitempty"`     // stdio: extra environment variables

	// Lifecycle controls whether the connection is kept open for the
	// process lifetime ("persistent", the default) or established fresh
	// for each CallTool and closed immediately after ("per_call").
	Lifecycle string `json:"lifecycle,omitempty"`

	// Timeout bounds a single CallTool invocation. mcp.json gives it as a
	// number of milliseconds; LoadConfig converts it to a Duration. Zero
	// means defaultCallTimeout (60s) applies.
	Timeout time.Duration `json:"timeout,omitempty"`

	// NeedsDBContext marks a server whose tool arguments should be
	// augmented with the requester's conversation_id/api_base/auth_token
	// before each call (spec §4.B), rather than requiring the caller to
	// supply them explicitly. The well-known graph-mode-mcp server name
	// gets this same augmentation unconditionally, regardless of this flag.
	NeedsDBContext bool `json:"needs_db_context,omitempty"`
}

// LoadConfig reads and parses mcp.json from path.
func LoadConfig(path string) (map[string]ServerConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, engerr.Wrap(engerr.KindInternal, fmt.Sprintf("read mcp config %q", path), err)
	}

	var file mcpConfigFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, engerr.Wrap(engerr.KindProtocol, fmt.Sprintf("parse mcp config %q", path), err)
	}

	if file.MCPServers == nil {
		return map[string]ServerConfig{}, nil
	}

	for key, cfg := range file.MCPServers {
		cfg.Name = key
		if cfg.Transport == "" {
			cfg.Transport = "stdio"
		}
		if cfg.Lifecycle == "" {
			cfg.Lifecycle = "persistent"
		}
		cfg.Timeout *= time.Millisecond // decoded as a bare number of milliseconds
		file.MCPServers[key] = cfg
	}
	return file.MCPServers, nil
}

// ToolInfo captures the metadata of a single tool exposed by an MCP server,
// as reported by that server — before wire_name resolution.
type ToolInfo struct {
	Name        string
	Description string
	InputSchema json.RawMessage
}
