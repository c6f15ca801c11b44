package thinking

import (
	"context"

	"github.com/seqthink/engine/internal/conversation"
	"github.com/seqthink/engine/internal/engerr"
	"github.com/seqthink/engine/internal/formatter"
	"github.com/seqthink/engine/internal/provider"
	"github.com/seqthink/engine/internal/toolcall"
)

// providerNode asks the provider with the current messages and the
// union of available tools plus response_formatter, forcing the
// formatter on the final round (spec §4.E step 2.a).
type providerNode struct {
	llm provider.Adapter
}

type providerPrep struct {
	messages       []conversation.Message
	tools          []toolcall.Definition
	forceFormatter bool
	opts           provider.Options
}

type providerExec struct {
	reply conversation.Message
	err   error
}

func (n *providerNode) Prep(state *roundState) []providerPrep {
	tools := make([]toolcall.Definition, 0, len(state.tools)+1)
	tools = append(tools, state.tools...)
	tools = append(tools, state.formatter)
	return []providerPrep{{
		messages:       state.messages,
		tools:          tools,
		forceFormatter: state.round == state.maxRounds,
		opts:           state.opts,
	}}
}

func (n *providerNode) Exec(ctx context.Context, prep providerPrep) (providerExec, error) {
	force := ""
	if prep.forceFormatter {
		force = formatter.ToolName
	}
	reply, err := n.llm.Call(ctx, prep.messages, prep.tools, force, prep.opts)
	if err != nil {
		return providerExec{}, err
	}
	return providerExec{reply: reply}, nil
}

func (n *providerNode) ExecFallback(err error) providerExec {
	return providerExec{err: engerr.Wrap(engerr.KindTransport, "provider call failed after retries", err)}
}

func (n *providerNode) Post(state *roundState, prep []providerPrep, results ...providerExec) roundAction {
	res := results[0]
	if res.err != nil {
		state.err = res.err
		return actionFailure
	}

	reply := res.reply
	state.messages = append(state.messages, reply)
	state.round++

	if formatter.HasFormatterCall(reply) {
		sf, err := formatter.Extract(reply)
		state.err = err
		state.result = sf
		return actionAnswer
	}

	calls := reply.ToolCalls()
	if len(calls) == 0 || prep[0].forceFormatter {
		// Either text-only (round considered complete, spec §4.E.b) or the
		// provider ignored a forced tool choice on the final round — in
		// both cases fall through to the forced extraction turn rather
		// than dispatching more tool calls past max_rounds.
		return actionNeedsFormatter
	}

	pending := make([]toolcall.Call, len(calls))
	for i, b := range calls {
		pending[i] = toolcall.Call{ID: b.ToolCallID, Name: b.ToolName, Arguments: b.ToolArgs}
	}
	state.pendingCalls = pending
	return actionTool
}
