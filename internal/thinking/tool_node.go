package thinking

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/seqthink/engine/internal/artifact"
	"github.com/seqthink/engine/internal/conversation"
	"github.com/seqthink/engine/internal/toolcall"
	"github.com/seqthink/engine/internal/util"
)

// maxStatusArgRunes bounds how much of a tool call's argument JSON is
// echoed into a status line — long arguments (e.g. embedded file
// contents) would otherwise dominate the ndjson stream.
const maxStatusArgRunes = 200

func decodeBase64(s string) ([]byte, error) { return base64.StdEncoding.DecodeString(s) }

// toolNode dispatches one round's tool calls. roundNode.Run iterates prepRes
// sequentially and calls Exec once per item before moving to the next —
// this is exactly the "execute sequentially in emission order" mandate
// of spec §4.E/§5, not a convention this node enforces itself.
type toolNode struct {
	caller ToolCaller
	status StatusSink
	reqCtx toolcall.RequestContext
}

type toolExec struct {
	call   toolcall.Call
	result toolcall.Result
}

// toolResultPayload is the shape a well-behaved MCP tool result is
// expected to conform to (spec §6): content blocks, plus optional
// bibliography/artifacts/binaryOutput side channels.
type toolResultPayload struct {
	Content      []toolContentBlock      `json:"content"`
	Bibliography []artifact.BibliographyEntry `json:"bibliography"`
	Artifacts    []rawToolArtifact       `json:"artifacts"`
	BinaryOutput []rawBinaryOutput       `json:"binaryOutput"`
	IsError      bool                    `json:"isError"`
}

type toolContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type rawToolArtifact struct {
	Kind     string         `json:"kind"`
	Title    string         `json:"title"`
	Content  string         `json:"content"`
	Language string         `json:"language"`
	Metadata map[string]any `json:"metadata"`
	Nodes    []artifact.KGNode `json:"nodes"`
	Edges    []artifact.KGEdge `json:"edges"`
}

type rawBinaryOutput struct {
	MediaType string         `json:"mediaType"`
	DataB64   string         `json:"data"`
	Metadata  map[string]any `json:"metadata"`
}

func (n *toolNode) Prep(state *roundState) []toolcall.Call {
	return state.pendingCalls
}

func (n *toolNode) Exec(ctx context.Context, call toolcall.Call) (toolExec, error) {
	if len(call.Arguments) > 0 {
		n.status.Emit(fmt.Sprintf("calling %s %s", call.Name, util.TruncateRunes(string(call.Arguments), maxStatusArgRunes)))
	} else {
		n.status.Emit(fmt.Sprintf("calling %s", call.Name))
	}

	var args map[string]any
	if len(call.Arguments) > 0 {
		_ = json.Unmarshal(call.Arguments, &args)
	}

	result, err := n.caller.CallTool(ctx, call, args, n.reqCtx)
	if err != nil {
		// Only KindUnknownTool surfaces here (a programming error); every
		// other infra/tool failure is already folded into result.Error by
		// the Manager. Recover locally per spec §7: synthesize an error
		// result rather than aborting the round.
		return toolExec{call: call, result: toolcall.Result{CallID: call.ID, Error: err.Error()}}, nil
	}
	return toolExec{call: call, result: result}, nil
}

func (n *toolNode) ExecFallback(err error) toolExec {
	return toolExec{result: toolcall.Result{Error: err.Error()}}
}

// Post folds every tool result into the working messages and side
// channel: a text block becomes the tool-result message content;
// bibliography entries union-dedup by key; knowledge-graph artifacts
// merge into the running graph; other artifacts collect into
// direct_artifacts; binaryOutput entries collect into binary_outputs.
func (n *toolNode) Post(state *roundState, prep []toolcall.Call, results ...toolExec) roundAction {
	for _, r := range results {
		block := conversation.Block{
			Kind:          conversation.BlockToolResult,
			ToolResultFor: r.result.CallID,
		}

		if r.result.Error != "" {
			block.ToolError = r.result.Error
			state.messages = append(state.messages, conversation.Message{Role: conversation.RoleTool, Blocks: []conversation.Block{block}})
			continue
		}

		var payload toolResultPayload
		if err := json.Unmarshal([]byte(r.result.Output), &payload); err != nil {
			// Not a structured MCP result — treat the raw output as plain text.
			block.ToolOutput = r.result.Output
			state.messages = append(state.messages, conversation.Message{Role: conversation.RoleTool, Blocks: []conversation.Block{block}})
			continue
		}

		block.ToolOutput = flattenContent(payload.Content)
		if payload.IsError {
			block.ToolError = block.ToolOutput
		}
		state.messages = append(state.messages, conversation.Message{Role: conversation.RoleTool, Blocks: []conversation.Block{block}})

		for _, b := range payload.Bibliography {
			state.side.Bibliography.Add(b)
		}
		for _, a := range payload.Artifacts {
			kind := artifact.NormalizeKind(a.Kind)
			if kind == string(artifact.KindKnowledgeGraph) {
				state.side.KnowledgeGraph.Merge(a.Nodes, a.Edges)
				continue
			}
			state.side.DirectArtifacts = append(state.side.DirectArtifacts, artifact.Artifact{
				ID:       artifact.NewID(),
				Kind:     kind,
				Title:    a.Title,
				Content:  a.Content,
				Language: a.Language,
				Metadata: a.Metadata,
			})
		}
		for _, b := range payload.BinaryOutput {
			data, err := decodeBase64(b.DataB64)
			if err != nil {
				log.Warn().Err(err).Msg("tool binaryOutput: invalid base64, dropping")
				continue
			}
			state.side.BinaryOutputs = append(state.side.BinaryOutputs, artifact.BinaryOutput{
				MediaType: b.MediaType,
				Data:      data,
				Metadata:  b.Metadata,
			})
		}
	}

	return actionContinue
}

func flattenContent(blocks []toolContentBlock) string {
	out := ""
	for _, b := range blocks {
		if b.Type == "text" || b.Type == "" {
			out += b.Text
		}
	}
	return out
}
