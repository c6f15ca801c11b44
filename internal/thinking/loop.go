package thinking

import (
	"context"

	"github.com/seqthink/engine/internal/engerr"
	"github.com/seqthink/engine/internal/formatter"
	"github.com/seqthink/engine/internal/provider"
	"github.com/seqthink/engine/internal/toolcall"
)

// defaultMaxRounds is the bounded constant spec §4.E cites as an
// example ("e.g., 5"); callers should override via Request.MaxRounds.
const defaultMaxRounds = 5

// defaultMaxRetries bounds the final formatter extraction's exponential
// back-off retry count (spec §4.E step 3, §5).
const defaultMaxRetries = 3

// providerNodeRetries is the per-provider-call Node-level retry budget
// for transient transport failures, independent of max_rounds.
const providerNodeRetries = 2

// Run drives req through the Sequential Thinking Loop and returns the
// finalized, artifact-aggregated StoreFormat. Cancellation of ctx aborts
// the loop at the next safe point: between rounds, or after the
// currently outstanding tool call returns (spec §4.E "Cancellation").
func Run(ctx context.Context, req Request) (formatter.StoreFormat, error) {
	maxRounds := req.MaxRounds
	if maxRounds <= 0 {
		maxRounds = defaultMaxRounds
	}
	maxRetries := req.MaxRetries
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}
	status := req.Status
	if status == nil {
		status = noopSink{}
	}

	formatterDef, err := formatter.Definition()
	if err != nil {
		return formatter.StoreFormat{}, engerr.Wrap(engerr.KindInternal, "build response_formatter schema", err)
	}

	state := &roundState{
		messages:   req.Messages,
		tools:      req.AvailableTools,
		formatter:  formatterDef,
		opts:       provider.Options{Temperature: req.Temperature, MaxTokens: req.MaxTokens},
		round:      1,
		maxRounds:  maxRounds,
		maxRetries: maxRetries,
		side:       formatter.NewSideChannel(),
	}

	flow := buildFlow(req.Provider, req.Tools, status, req.ToolContext)

	action := flow.Run(ctx, state)
	if ctx.Err() != nil {
		return formatter.StoreFormat{}, engerr.Wrap(engerr.KindCancelled, "thinking loop cancelled", ctx.Err())
	}
	if action == actionFailure || state.err != nil {
		if state.err != nil {
			return formatter.StoreFormat{}, state.err
		}
		return formatter.StoreFormat{}, engerr.New(engerr.KindInternal, "thinking loop ended in failure with no recorded error")
	}

	status.Emit("finalizing response")
	return formatter.Attach(state.result, state.side), nil
}

// buildFlow wires providerNode -> toolNode -> providerNode (the round
// loop) plus providerNode -> finalNode (the forced extraction turn)
// into a roundFlow, following the teacher's action-routed graph
// idiom rather than a hand-written switch statement over round state.
func buildFlow(llm provider.Adapter, tools ToolCaller, status StatusSink, reqCtx toolcall.RequestContext) *roundFlow {
	pNode := newRoundNode[providerPrep, providerExec](&providerNode{llm: llm}, providerNodeRetries)
	tNode := newRoundNode[toolcall.Call, toolExec](&toolNode{caller: tools, status: status, reqCtx: reqCtx}, 0)
	fNode := newRoundNode[finalPrep, finalExec](&finalNode{llm: llm}, 0)

	pNode.AddSuccessor(tNode, actionTool)
	pNode.AddSuccessor(fNode, actionNeedsFormatter)
	tNode.AddSuccessor(pNode, actionContinue)

	return newRoundFlow(pNode)
}
