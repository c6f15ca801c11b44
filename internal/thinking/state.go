// Package thinking implements the Sequential Thinking Loop: the
// orchestrator that drives a provider through up to max_rounds reasoning
// rounds, dispatches tool calls sequentially through the MCP Manager,
// folds results into a running side channel, and forces the
// response_formatter tool on the final round.
//
// Grounded on the teacher's internal/core Prep/Exec/Post node engine: a
// provider round and a round's tool dispatch are both modeled as Nodes,
// wired into a Flow whose action-based routing expresses the round loop
// directly — ToolNode's Exec-per-item retry loop already executes
// sequentially in emission order, which is exactly what spec §4.E/§5
// mandate for multi-tool rounds.
package thinking

import (
	"context"

	"github.com/seqthink/engine/internal/conversation"
	"github.com/seqthink/engine/internal/formatter"
	"github.com/seqthink/engine/internal/provider"
	"github.com/seqthink/engine/internal/toolcall"
)

// ToolCaller is the subset of *mcp.Manager the loop depends on, kept as
// an interface so the round nodes can be tested without a live Manager.
type ToolCaller interface {
	CallTool(ctx context.Context, call toolcall.Call, args map[string]any, reqCtx toolcall.RequestContext) (toolcall.Result, error)
}

// StatusSink receives best-effort progress notifications from the loop.
// *status.Streamer satisfies this; tests may pass a no-op or recording
// stub.
type StatusSink interface {
	Emit(message string)
}

// noopSink discards every status message; used when the caller has no
// streaming surface (e.g. unit tests, batch invocation).
type noopSink struct{}

func (noopSink) Emit(string) {}

// Request bundles the inputs to one invocation of the loop (spec §4.E
// "Inputs").
type Request struct {
	Messages       []conversation.Message // prior history + new user message, already composed
	AvailableTools []toolcall.Definition  // from Manager.ToProviderDefinitions, excludes response_formatter
	Provider       provider.Adapter
	Tools          ToolCaller
	Status         StatusSink
	MaxRounds      int
	MaxRetries     int
	Temperature    *float64               // optional, per spec §6 request field
	MaxTokens      *int                   // optional, per spec §6 request field
	ToolContext    toolcall.RequestContext // conversation_id/api_base/auth_token, spec §4.B
}

// roundState is the mutable state threaded through the Flow across
// rounds. Unexported: callers only see Request in and (StoreFormat,
// error) out via Run.
type roundState struct {
	messages  []conversation.Message
	tools     []toolcall.Definition
	formatter toolcall.Definition
	opts      provider.Options

	round      int
	maxRounds  int
	maxRetries int

	pendingCalls []toolcall.Call
	side         *formatter.SideChannel

	result formatter.StoreFormat
	err    error
}
