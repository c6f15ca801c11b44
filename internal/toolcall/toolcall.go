// Package toolcall defines the provider-agnostic tool shapes that sit
// between the MCP Manager's catalog and each provider.Adapter. Every
// adapter translates to and from these types instead of exposing its
// own wire format to the rest of the engine.
package toolcall

import (
	"encoding/json"
	"strings"
)

// Definition describes one callable tool, keyed by its wire_name (the
// collision-resolved, sanitized name produced by the MCP Manager).
type Definition struct {
	Name        string          `json:"name"` // wire_name
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters"` // JSON Schema, object type
}

// Call is a single tool invocation requested by a provider's response.
type Call struct {
	ID        string          `json:"id"`   // provider-assigned or synthesized call id
	Name      string          `json:"name"` // wire_name
	Arguments json.RawMessage `json:"arguments"`
}

// Result is the outcome of dispatching a Call through the MCP Manager.
// Error is populated for both infrastructure and tool-level failures —
// callers never need a parallel Go error channel for tool execution.
type Result struct {
	CallID string `json:"call_id"`
	Output string `json:"output"`
	Error  string `json:"error,omitempty"`
}

// RequestContext carries the per-request fields spec §4.B names as the
// read-only context CallTool augments arguments with for servers that
// need it: conversation_id, api_base, auth_token. Never logged or
// persisted — it exists only to pass through to the MCP server that
// asked for it.
type RequestContext struct {
	ConversationID string
	APIBase        string
	AuthToken      string
}

// SanitizeForFunctionName rewrites a wire_name to satisfy a stricter
// provider function-name character set — Gemini's function names must
// match letters/digits/underscores only and reject the dashes every
// wire_name contains by construction (mcp's <server>-<sanitized_tool>
// grammar). Tool definitions are sent to providers through this
// transform; ResolveWireName reverses it on the way back.
func SanitizeForFunctionName(wireName string) string {
	return strings.ReplaceAll(wireName, "-", "_")
}

// ResolveWireName rehydrates a provider-echoed tool-call name back into
// the wire_name namespace it was assigned from (spec §4.C/§9): a
// provider's tool_use/tool_call/function_call name must never be
// dispatched as-is, it must be resolved against the tool catalog that
// was actually offered on this call. Tries an exact match first (the
// common case: Anthropic and OpenAI echo tool names back byte-for-byte),
// then a SanitizeForFunctionName match (the case a stricter provider
// rewrote the name on the way out, e.g. Gemini). Falls back to the
// echoed name unresolved if neither matches — Manager.CallTool surfaces
// KindUnknownTool for that case rather than this function guessing.
func ResolveWireName(echoed string, tools []Definition) string {
	for _, d := range tools {
		if d.Name == echoed {
			return echoed
		}
	}
	for _, d := range tools {
		if SanitizeForFunctionName(d.Name) == echoed {
			return d.Name
		}
	}
	return echoed
}
