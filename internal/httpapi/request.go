package httpapi

import (
	"github.com/seqthink/engine/internal/artifact"
	"github.com/seqthink/engine/internal/conversation"
)

// responsesRequest is the JSON body accepted by POST /v1/responses:
// the field set of spec §6's "HTTP request surface" plus the optional
// conversation_id, api_base and auth_token fields.
type responsesRequest struct {
	Message         string                 `json:"message"`
	ConversationID  string                 `json:"conversation_id,omitempty"`
	History         []conversation.Message `json:"history"`
	PinnedArtifacts []artifact.Artifact    `json:"pinned_artifacts,omitempty"`
	BlockedServers  []string               `json:"blocked_servers,omitempty"`
	AllowedTools    []string               `json:"allowed_tools,omitempty"`
	Mode            string                 `json:"mode,omitempty"` // "normal" | "graph", default "normal"
	Provider        string                 `json:"provider"`
	Model           string                 `json:"model"`
	Temperature     *float64               `json:"temperature,omitempty"`
	MaxTokens       *int                   `json:"max_tokens,omitempty"`
	// APIBase and AuthToken are forwarded opaquely to needs_db_context /
	// graph-mode-mcp servers as call-time context (spec §4.B); the core
	// never reads or validates them itself.
	APIBase   string `json:"api_base,omitempty"`
	AuthToken string `json:"auth_token,omitempty"`
}

func (r responsesRequest) mode() string {
	if r.Mode == "" {
		return "normal"
	}
	return r.Mode
}

func (r responsesRequest) validate() string {
	if r.Message == "" {
		return "message is required"
	}
	if r.Provider == "" {
		return "provider is required"
	}
	if r.Mode != "" && r.Mode != "normal" && r.Mode != "graph" {
		return "mode must be \"normal\" or \"graph\""
	}
	return ""
}
