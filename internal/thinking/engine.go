package thinking

import (
	"context"

	"github.com/rs/zerolog/log"
)

// roundAction routes execution between round nodes. Folded from the
// teacher's generic core.Action down to exactly the outcomes this
// package's round graph ever emits — no Agent/Think/Success/Default
// actions exist here because nothing in the Sequential Thinking Loop
// routes on them.
type roundAction string

const (
	// actionContinue routes from toolNode back to providerNode: the
	// round's tool results have been folded, ask the provider again.
	actionContinue roundAction = "continue"
	// actionTool routes from providerNode to toolNode: the reply
	// carried one or more tool_use blocks to dispatch.
	actionTool roundAction = "tool"
	// actionAnswer marks a round/final node that produced a validated
	// StoreFormat; the flow has nothing left to run.
	actionAnswer roundAction = "answer"
	// actionFailure marks an unrecoverable error recorded on roundState.
	actionFailure roundAction = "failure"
)

// roundWorkflow is the Run/successor-routing contract shared by
// roundNode and roundFlow — folded from the teacher's generic
// core.Workflow[State], specialized directly to *roundState since this
// package never drives any state type through it but its own.
type roundWorkflow interface {
	Run(ctx context.Context, state *roundState) roundAction
	GetSuccessor(action roundAction) roundWorkflow
}

// roundBaseNode is the Prep -> Exec -> Post lifecycle each round node
// (providerNode, toolNode, finalNode) implements — folded from the
// teacher's generic core.BaseNode[State, PrepResult, ExecResults] with
// State fixed to *roundState, since no other state type is ever threaded
// through this engine.
type roundBaseNode[PrepResult any, ExecResults any] interface {
	// Prep reads roundState and produces the work items Exec will run,
	// one per item, in order.
	Prep(state *roundState) []PrepResult

	// Exec performs the node's core logic on a single work item.
	Exec(ctx context.Context, item PrepResult) (ExecResults, error)

	// Post folds every Exec result back into roundState and decides
	// the next roundAction.
	Post(state *roundState, prep []PrepResult, results ...ExecResults) roundAction

	// ExecFallback produces a usable result when Exec still fails after
	// every retry, so Post never has to special-case a missing result.
	ExecFallback(err error) ExecResults
}

// roundNode wraps a roundBaseNode with per-item retry and successor
// routing. Folded from the teacher's generic core.Node[State, P, E].
type roundNode[PrepResult any, ExecResults any] struct {
	impl       roundBaseNode[PrepResult, ExecResults]
	maxRetries int
	successors map[roundAction]roundWorkflow
}

// newRoundNode wraps impl with the given per-item Exec retry budget.
func newRoundNode[PrepResult any, ExecResults any](impl roundBaseNode[PrepResult, ExecResults], maxRetries int) *roundNode[PrepResult, ExecResults] {
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &roundNode[PrepResult, ExecResults]{
		impl:       impl,
		maxRetries: maxRetries,
		successors: make(map[roundAction]roundWorkflow),
	}
}

// Run executes Prep, then Exec (with retry) for every prep item in
// emission order, then Post. Sequential, single-item-at-a-time
// execution here is exactly the "tool calls execute sequentially in
// emission order" mandate of spec §4.E/§5 for toolNode's multi-call
// rounds — it is a property of this loop, not a policy toolNode itself
// enforces.
func (n *roundNode[PrepResult, ExecResults]) Run(ctx context.Context, state *roundState) roundAction {
	prepRes := n.impl.Prep(state)
	if len(prepRes) == 0 {
		return n.impl.Post(state, prepRes)
	}

	execResults := make([]ExecResults, len(prepRes))
	for i, item := range prepRes {
		result, err := n.execWithRetry(ctx, item)
		if err != nil {
			execResults[i] = n.impl.ExecFallback(err)
		} else {
			execResults[i] = result
		}
	}
	return n.impl.Post(state, prepRes, execResults...)
}

func (n *roundNode[PrepResult, ExecResults]) execWithRetry(ctx context.Context, item PrepResult) (ExecResults, error) {
	var result ExecResults
	var err error
	for attempt := 0; attempt <= n.maxRetries; attempt++ {
		if ctx.Err() != nil {
			return result, ctx.Err()
		}
		result, err = n.impl.Exec(ctx, item)
		if err == nil {
			return result, nil
		}
		if attempt < n.maxRetries {
			log.Warn().Err(err).Int("attempt", attempt+1).Int("maxRetries", n.maxRetries).Msg("round node exec retry")
		}
	}
	return result, err
}

// AddSuccessor wires the node to run next when Post returns action.
func (n *roundNode[PrepResult, ExecResults]) AddSuccessor(successor roundWorkflow, action roundAction) roundWorkflow {
	if successor == nil {
		return successor
	}
	n.successors[action] = successor
	return successor
}

// GetSuccessor returns the node wired for action, or nil.
func (n *roundNode[PrepResult, ExecResults]) GetSuccessor(action roundAction) roundWorkflow {
	return n.successors[action]
}

// maxRoundTransitions is an independent safety cap on node transitions
// per Run call, guarding against a misconfigured successor graph even
// though max_rounds already bounds provider turns at the application
// level.
const maxRoundTransitions = 64

// roundFlow drives the round graph — providerNode -> toolNode ->
// providerNode, or providerNode -> finalNode — start to finish. Folded from
// the teacher's generic core.Flow[State].
type roundFlow struct {
	start roundWorkflow
}

// newRoundFlow builds a roundFlow starting at start.
func newRoundFlow(start roundWorkflow) *roundFlow {
	return &roundFlow{start: start}
}

// Run walks the node graph by action-routed successor lookup until a
// node has no successor for the action it returned, ctx is cancelled, or
// maxRoundTransitions is exceeded.
func (f *roundFlow) Run(ctx context.Context, state *roundState) roundAction {
	current := f.start
	if current == nil {
		return actionFailure
	}

	var last roundAction = actionAnswer
	for i := 0; current != nil; i++ {
		if i >= maxRoundTransitions {
			log.Error().Int("limit", maxRoundTransitions).Msg("thinking loop: max node transitions reached, aborting")
			return actionFailure
		}
		if ctx.Err() != nil {
			return actionFailure
		}
		last = current.Run(ctx, state)
		current = current.GetSuccessor(last)
	}
	return last
}
