package thinking

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seqthink/engine/internal/conversation"
	"github.com/seqthink/engine/internal/formatter"
	"github.com/seqthink/engine/internal/provider"
	"github.com/seqthink/engine/internal/toolcall"
)

// stubProvider scripts a fixed sequence of replies, one per Call
// invocation, and records every invocation's forceTool argument.
type stubProvider struct {
	replies []conversation.Message
	calls   int
	forced  []string
}

func (s *stubProvider) Name() string { return "stub" }

func (s *stubProvider) Call(ctx context.Context, messages []conversation.Message, tools []toolcall.Definition, forceTool string, opts provider.Options) (conversation.Message, error) {
	s.forced = append(s.forced, forceTool)
	reply := s.replies[s.calls]
	s.calls++
	return reply, nil
}

func textReply(text string) conversation.Message {
	return conversation.Text(conversation.RoleAssistant, text)
}

func formatterReply(conv string) conversation.Message {
	return conversation.Message{
		Role: conversation.RoleAssistant,
		Blocks: []conversation.Block{
			{
				Kind:       conversation.BlockToolCall,
				ToolCallID: "fmt-1",
				ToolName:   formatter.ToolName,
				ToolArgs:   json.RawMessage(conv),
			},
		},
	}
}

func toolCallReply(id, name, args string) conversation.Message {
	return conversation.Message{
		Role: conversation.RoleAssistant,
		Blocks: []conversation.Block{
			{Kind: conversation.BlockToolCall, ToolCallID: id, ToolName: name, ToolArgs: json.RawMessage(args)},
		},
	}
}

// stubToolCaller echoes back a fixed plain-text tool result for every call,
// recording the reqCtx it was invoked with so tests can assert threading.
type stubToolCaller struct {
	calls   []toolcall.Call
	reqCtxs []toolcall.RequestContext
}

func (s *stubToolCaller) CallTool(ctx context.Context, call toolcall.Call, args map[string]any, reqCtx toolcall.RequestContext) (toolcall.Result, error) {
	s.calls = append(s.calls, call)
	s.reqCtxs = append(s.reqCtxs, reqCtx)
	return toolcall.Result{CallID: call.ID, Output: `{"content":[{"type":"text","text":"ok"}]}`}, nil
}

func TestRunFormatterOnRoundOneExecutesZeroTools(t *testing.T) {
	p := &stubProvider{replies: []conversation.Message{
		formatterReply(`{"conversation":[{"type":"text","content":"hi"}]}`),
	}}
	tc := &stubToolCaller{}

	sf, err := Run(context.Background(), Request{
		Messages: []conversation.Message{conversation.Text(conversation.RoleUser, "hello")},
		Provider: p,
		Tools:    tc,
	})

	require.NoError(t, err)
	require.Len(t, sf.Conversation, 1)
	assert.Empty(t, tc.calls, "provider emits response_formatter on round 1 -> no tools executed")
	assert.Equal(t, 1, p.calls)
}

func TestRunTextOnlyTriggersFinalExtractionTurn(t *testing.T) {
	p := &stubProvider{replies: []conversation.Message{
		textReply("thinking out loud, no tools needed"),
		formatterReply(`{"conversation":[{"type":"text","content":"final answer"}]}`),
	}}
	tc := &stubToolCaller{}

	sf, err := Run(context.Background(), Request{
		Messages:  []conversation.Message{conversation.Text(conversation.RoleUser, "hello")},
		Provider:  p,
		Tools:     tc,
		MaxRounds: 3,
	})

	require.NoError(t, err)
	require.Len(t, sf.Conversation, 1)
	assert.Equal(t, "final answer", sf.Conversation[0].Content)
	assert.Equal(t, 2, p.calls)
	assert.Equal(t, []string{"", formatter.ToolName}, p.forced)
}

func TestRunExecutesToolCallsSequentiallyAndLoops(t *testing.T) {
	p := &stubProvider{replies: []conversation.Message{
		toolCallReply("call-1", "pubtator-search_pubmed", `{"query":"BRCA1"}`),
		formatterReply(`{"conversation":[{"type":"text","content":"done"}]}`),
	}}
	tc := &stubToolCaller{}

	sf, err := Run(context.Background(), Request{
		Messages: []conversation.Message{conversation.Text(conversation.RoleUser, "search")},
		Provider: p,
		Tools:    tc,
		AvailableTools: []toolcall.Definition{
			{Name: "pubtator-search_pubmed", Description: "search", Parameters: json.RawMessage(`{"type":"object"}`)},
		},
	})

	require.NoError(t, err)
	require.Len(t, sf.Conversation, 1)
	require.Len(t, tc.calls, 1)
	assert.Equal(t, "pubtator-search_pubmed", tc.calls[0].Name)
}

func TestRunThreadsToolContextIntoEveryCallTool(t *testing.T) {
	p := &stubProvider{replies: []conversation.Message{
		toolCallReply("call-1", "graph-mode-mcp-query", `{"q":"x"}`),
		formatterReply(`{"conversation":[{"type":"text","content":"done"}]}`),
	}}
	tc := &stubToolCaller{}
	want := toolcall.RequestContext{ConversationID: "conv-123", APIBase: "https://api.example.internal", AuthToken: "tok-abc"}

	_, err := Run(context.Background(), Request{
		Messages: []conversation.Message{conversation.Text(conversation.RoleUser, "search")},
		Provider: p,
		Tools:    tc,
		AvailableTools: []toolcall.Definition{
			{Name: "graph-mode-mcp-query", Description: "search", Parameters: json.RawMessage(`{"type":"object"}`)},
		},
		ToolContext: want,
	})

	require.NoError(t, err)
	require.Len(t, tc.reqCtxs, 1)
	assert.Equal(t, want, tc.reqCtxs[0])
}

func TestRunForcesFormatterOnFinalRound(t *testing.T) {
	// the first round returns a tool call; the provider call on the final
	// round (max_rounds == 2) must carry the forced formatter tool choice.
	p := &stubProvider{replies: []conversation.Message{
		toolCallReply("c1", "srv-tool", `{}`),
		formatterReply(`{"conversation":[{"type":"text","content":"forced"}]}`),
	}}
	tc := &stubToolCaller{}

	sf, err := Run(context.Background(), Request{
		Messages:  []conversation.Message{conversation.Text(conversation.RoleUser, "go")},
		Provider:  p,
		Tools:     tc,
		MaxRounds: 2,
		AvailableTools: []toolcall.Definition{
			{Name: "srv-tool", Description: "d", Parameters: json.RawMessage(`{"type":"object"}`)},
		},
	})

	require.NoError(t, err)
	assert.Equal(t, "forced", sf.Conversation[0].Content)
	assert.Equal(t, []string{"", formatter.ToolName}, p.forced)
}

func TestRunCancellationStopsBeforeNextRound(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := &stubProvider{replies: []conversation.Message{
		formatterReply(`{"conversation":[{"type":"text","content":"hi"}]}`),
	}}
	tc := &stubToolCaller{}

	_, err := Run(ctx, Request{
		Messages: []conversation.Message{conversation.Text(conversation.RoleUser, "hello")},
		Provider: p,
		Tools:    tc,
	})

	require.Error(t, err)
}
