// Package httpapi is the minimal HTTP surface named in spec §6: a single
// POST /v1/responses endpoint that decodes a request, drives the
// Sequential Thinking Loop, and streams status/result/error lines back
// as newline-delimited JSON via internal/status.Streamer.
//
// Grounded on the teacher's cmd/omega/main.go wiring order (load env,
// build provider client, build MCP manager, build HTTP server) but with
// net/http's bare ServeMux rather than the teacher's own chat/agent
// handlers — this repo has no chat UI to serve.
package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"github.com/seqthink/engine/internal/conversation"
	"github.com/seqthink/engine/internal/engerr"
	"github.com/seqthink/engine/internal/mcp"
	"github.com/seqthink/engine/internal/status"
	"github.com/seqthink/engine/internal/store"
	"github.com/seqthink/engine/internal/thinking"
	"github.com/seqthink/engine/internal/toolcall"
)

// Handler serves POST /v1/responses against a shared MCP Manager and
// provider credential set. One Handler is shared across every request;
// all per-request state lives on the request's own goroutine stack.
type Handler struct {
	Manager    *mcp.Manager
	Providers  ProviderKeys
	Store      *store.Store
	MaxRounds  int
	MaxRetries int
}

// NewMux builds the minimal http.ServeMux named in spec §6 — just the
// one endpoint, no auth, no routing framework.
func NewMux(h *Handler) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/responses", h.handleResponses)
	return mux
}

func (h *Handler) handleResponses(w http.ResponseWriter, r *http.Request) {
	var req responsesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	if msg := req.validate(); msg != "" {
		http.Error(w, msg, http.StatusBadRequest)
		return
	}

	conversationID := req.ConversationID
	if conversationID == "" {
		conversationID = uuid.NewString()
	}

	stream := status.New(w, r)
	if stream == nil {
		return // New already wrote the error response
	}

	adapter, err := h.Providers.BuildAdapter(r.Context(), req.Provider, req.Model)
	if err != nil {
		stream.Error(string(engerr.KindInternal), err.Error())
		return
	}

	filter := &mcp.ToolFilter{BlockedServers: req.BlockedServers, AllowedTools: req.AllowedTools}
	tools := h.Manager.ToProviderDefinitions(filter)

	messages := make([]conversation.Message, 0, len(req.History)+2)
	messages = append(messages, buildSystemPrompt(req.mode(), req.PinnedArtifacts))
	messages = append(messages, req.History...)
	messages = append(messages, conversation.Text(conversation.RoleUser, req.Message))

	sf, err := thinking.Run(r.Context(), thinking.Request{
		Messages:       messages,
		AvailableTools: tools,
		Provider:       adapter,
		Tools:          h.Manager,
		Status:         stream,
		MaxRounds:      h.MaxRounds,
		MaxRetries:     h.MaxRetries,
		Temperature:    req.Temperature,
		MaxTokens:      req.MaxTokens,
		ToolContext: toolcall.RequestContext{
			ConversationID: conversationID,
			APIBase:        req.APIBase,
			AuthToken:      req.AuthToken,
		},
	})
	if err != nil {
		kind := engerr.KindInternal
		if e, ok := err.(*engerr.Error); ok {
			kind = e.Kind
		}
		stream.Error(string(kind), err.Error())
		return
	}

	if h.Store != nil {
		h.Store.Append(conversationID, append(req.History, conversation.Text(conversation.RoleUser, req.Message)), sf.Artifacts)
	}

	stream.Result(sf)
}
