package thinking

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seqthink/engine/internal/conversation"
)

// ── roundNode retry behavior ──

// flakyNode fails its first failUntil Exec calls, then succeeds. Used to
// exercise roundNode's per-item retry loop independently of any real
// provider/tool node.
type flakyNode struct {
	failUntil int
	calls     int
}

func (f *flakyNode) Prep(_ *roundState) []string { return []string{"item"} }

func (f *flakyNode) Exec(_ context.Context, _ string) (string, error) {
	f.calls++
	if f.calls <= f.failUntil {
		return "", errors.New("transient failure")
	}
	return "ok", nil
}

func (f *flakyNode) ExecFallback(_ error) string { return "fallback" }

func (f *flakyNode) Post(_ *roundState, _ []string, results ...string) roundAction {
	if len(results) > 0 && results[0] == "fallback" {
		return actionFailure
	}
	return actionAnswer
}

func TestRoundNode_SucceedsWithoutRetry(t *testing.T) {
	impl := &flakyNode{failUntil: 0}
	node := newRoundNode[string, string](impl, 2)

	action := node.Run(context.Background(), &roundState{})

	assert.Equal(t, actionAnswer, action)
	assert.Equal(t, 1, impl.calls)
}

func TestRoundNode_RetriesUpToMaxRetries(t *testing.T) {
	impl := &flakyNode{failUntil: 2}
	node := newRoundNode[string, string](impl, 2)

	action := node.Run(context.Background(), &roundState{})

	assert.Equal(t, actionAnswer, action)
	assert.Equal(t, 3, impl.calls, "one initial attempt plus two retries")
}

func TestRoundNode_ExhaustsRetriesFallsBackToExecFallback(t *testing.T) {
	impl := &flakyNode{failUntil: 5}
	node := newRoundNode[string, string](impl, 1)

	action := node.Run(context.Background(), &roundState{})

	assert.Equal(t, actionFailure, action, "ExecFallback returns 'fallback', routing Post to actionFailure")
	assert.Equal(t, 2, impl.calls, "one initial attempt plus one retry, no more")
}

func TestRoundNode_NegativeMaxRetriesClampsToZero(t *testing.T) {
	impl := &flakyNode{failUntil: 1}
	node := newRoundNode[string, string](impl, -5)

	node.Run(context.Background(), &roundState{})

	assert.Equal(t, 1, impl.calls)
}

func TestRoundNode_CancelledContextStopsRetryLoop(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	impl := &flakyNode{failUntil: 10}
	node := newRoundNode[string, string](impl, 5)

	node.Run(ctx, &roundState{})

	assert.Equal(t, 0, impl.calls, "ctx is already cancelled before the first Exec attempt")
}

// ── roundFlow routing ──

// visitNode appends a text message labeled with its own name into
// roundState, so a test can assert visitation order by reading
// state.messages back, and returns a fixed next action.
type visitNode struct {
	label  string
	action roundAction
}

func (v *visitNode) Prep(_ *roundState) []string { return []string{v.label} }

func (v *visitNode) Exec(_ context.Context, item string) (string, error) { return item, nil }
func (v *visitNode) ExecFallback(_ error) string                         { return "" }

func (v *visitNode) Post(state *roundState, _ []string, results ...string) roundAction {
	state.messages = append(state.messages, conversation.Text(conversation.RoleAssistant, results[0]))
	return v.action
}

func TestRoundFlow_RoutesThroughSuccessorsToCompletion(t *testing.T) {
	first := newRoundNode[string, string](&visitNode{label: "first", action: actionContinue}, 0)
	second := newRoundNode[string, string](&visitNode{label: "second", action: actionAnswer}, 0)
	first.AddSuccessor(second, actionContinue)

	flow := newRoundFlow(first)
	state := &roundState{}
	action := flow.Run(context.Background(), state)

	require.Equal(t, actionAnswer, action)
	require.Len(t, state.messages, 2)
	assert.Equal(t, "first", state.messages[0].TextOnly())
	assert.Equal(t, "second", state.messages[1].TextOnly())
}

func TestRoundFlow_StopsWhenNoSuccessorWired(t *testing.T) {
	lone := newRoundNode[string, string](&visitNode{label: "only", action: actionTool}, 0)

	flow := newRoundFlow(lone)
	action := flow.Run(context.Background(), &roundState{})

	assert.Equal(t, actionTool, action, "no successor wired for actionTool, flow ends and returns it")
}

func TestRoundFlow_NilStartReturnsFailure(t *testing.T) {
	flow := newRoundFlow(nil)
	action := flow.Run(context.Background(), &roundState{})
	assert.Equal(t, actionFailure, action)
}

func TestRoundFlow_CancelledContextAbortsBeforeFirstNode(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	state := &roundState{}
	node := newRoundNode[string, string](&visitNode{label: "never", action: actionAnswer}, 0)

	flow := newRoundFlow(node)
	action := flow.Run(ctx, state)

	assert.Equal(t, actionFailure, action)
	assert.Empty(t, state.messages, "cancellation is checked before Run is ever called on the start node")
}
