package thinking

import (
	"context"

	"github.com/seqthink/engine/internal/conversation"
	"github.com/seqthink/engine/internal/formatter"
	"github.com/seqthink/engine/internal/provider"
	"github.com/seqthink/engine/internal/toolcall"
)

// finalNode performs the forced response_formatter turn when the round
// loop exited without a formatter call (spec §4.E step 3). Retries with
// bounded exponential back-off are delegated to
// formatter.ExtractWithRetry, so this node must be wired with
// Node-level maxRetries == 0 — one Exec call already runs the full
// retry-bounded attempt sequence.
type finalNode struct {
	llm provider.Adapter
}

type finalPrep struct {
	messages   []conversation.Message
	tools      []toolcall.Definition
	maxRetries int
	opts       provider.Options
}

type finalExec struct {
	sf  formatter.StoreFormat
	err error
}

func (n *finalNode) Prep(state *roundState) []finalPrep {
	tools := make([]toolcall.Definition, 0, len(state.tools)+1)
	tools = append(tools, state.tools...)
	tools = append(tools, state.formatter)
	return []finalPrep{{messages: state.messages, tools: tools, maxRetries: state.maxRetries, opts: state.opts}}
}

func (n *finalNode) Exec(ctx context.Context, prep finalPrep) (finalExec, error) {
	attempt := func(ctx context.Context, lastAttempt bool) (conversation.Message, error) {
		opts := prep.opts
		if lastAttempt {
			opts = reducedOptions(opts)
		}
		return n.llm.Call(ctx, prep.messages, prep.tools, formatter.ToolName, opts)
	}
	sf, err := formatter.ExtractWithRetry(ctx, attempt, prep.maxRetries)
	return finalExec{sf: sf, err: err}, nil // errors are carried in the result, never retried twice
}

func (n *finalNode) ExecFallback(err error) finalExec {
	return finalExec{err: err}
}

// reducedOptions lowers temperature and token budget for the last
// formatter retry attempt (spec §4.E step 3), leaving any already-set
// override in place if it is already at or below the reduced value.
func reducedOptions(opts provider.Options) provider.Options {
	const reducedTemperature = 0.2
	const reducedMaxTokens = 1024

	temp := reducedTemperature
	if opts.Temperature != nil && *opts.Temperature < temp {
		temp = *opts.Temperature
	}
	opts.Temperature = &temp

	tokens := reducedMaxTokens
	if opts.MaxTokens != nil && *opts.MaxTokens < tokens {
		tokens = *opts.MaxTokens
	}
	opts.MaxTokens = &tokens
	return opts
}

func (n *finalNode) Post(state *roundState, prep []finalPrep, results ...finalExec) roundAction {
	res := results[0]
	state.result = res.sf
	state.err = res.err
	if res.err != nil {
		return actionFailure
	}
	return actionAnswer
}
