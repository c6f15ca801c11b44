package formatter

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seqthink/engine/internal/artifact"
	"github.com/seqthink/engine/internal/conversation"
	"github.com/seqthink/engine/internal/engerr"
)

func formatterReply(t *testing.T, args string) conversation.Message {
	t.Helper()
	return conversation.Message{
		Role: conversation.RoleAssistant,
		Blocks: []conversation.Block{
			{
				Kind:       conversation.BlockToolCall,
				ToolCallID: "call-1",
				ToolName:   ToolName,
				ToolArgs:   json.RawMessage(args),
			},
		},
	}
}

func TestExtractValidObject(t *testing.T) {
	reply := formatterReply(t, `{"conversation":[{"type":"text","content":"hello"}]}`)
	sf, err := Extract(reply)
	require.NoError(t, err)
	require.Len(t, sf.Conversation, 1)
	assert.Equal(t, "hello", sf.Conversation[0].Content)
}

func TestExtractArgumentsAsJSONString(t *testing.T) {
	inner := `{"conversation":[{"type":"text","content":"hi"}]}`
	encoded, err := json.Marshal(inner)
	require.NoError(t, err)
	reply := formatterReply(t, string(encoded))

	sf, err := Extract(reply)
	require.NoError(t, err)
	require.Len(t, sf.Conversation, 1)
	assert.Equal(t, "hi", sf.Conversation[0].Content)
}

func TestExtractRejectsBareStringConversation(t *testing.T) {
	reply := formatterReply(t, `{"conversation":"hi"}`)
	_, err := Extract(reply)
	require.Error(t, err)
	assert.True(t, engerr.Is(err, engerr.KindFormat))
}

func TestExtractRejectsEmptyConversation(t *testing.T) {
	reply := formatterReply(t, `{"conversation":[]}`)
	_, err := Extract(reply)
	require.Error(t, err)
	assert.True(t, engerr.Is(err, engerr.KindFormat))
}

func TestExtractInlineArtifactSegmentGetsID(t *testing.T) {
	reply := formatterReply(t, `{"conversation":[
		{"type":"text","content":"see attached"},
		{"type":"artifact","summary":"chart","artifact":{"kind":"code","title":"t","content":"print(1)"}}
	]}`)
	sf, err := Extract(reply)
	require.NoError(t, err)
	require.Len(t, sf.Conversation, 2)
	require.Len(t, sf.Artifacts, 1)
	assert.Equal(t, sf.Conversation[1].ArtifactID, sf.Artifacts[0].ID)
	assert.NotEmpty(t, sf.Artifacts[0].ID)
	assert.Equal(t, string(artifact.KindCode), sf.Artifacts[0].Kind)
}

func TestExtractNoFormatterCall(t *testing.T) {
	reply := conversation.Text(conversation.RoleAssistant, "just text, no tool call")
	_, err := Extract(reply)
	require.Error(t, err)
	assert.True(t, engerr.Is(err, engerr.KindFormat))
	assert.False(t, HasFormatterCall(reply))
}

func TestExtractWithRetrySucceedsAfterFailures(t *testing.T) {
	attempts := 0
	attempt := func(ctx context.Context, lastAttempt bool) (conversation.Message, error) {
		attempts++
		if attempts < 3 {
			return formatterReply(t, `{"conversation":"hi"}`), nil // invalid shape, triggers retry
		}
		return formatterReply(t, `{"conversation":[{"type":"text","content":"ok"}]}`), nil
	}

	sf, err := ExtractWithRetry(context.Background(), attempt, 5)
	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
	require.Len(t, sf.Conversation, 1)
}

func TestExtractWithRetryExhaustionReturnsFormatError(t *testing.T) {
	attempt := func(ctx context.Context, lastAttempt bool) (conversation.Message, error) {
		return formatterReply(t, `{"conversation":"always invalid"}`), nil
	}

	_, err := ExtractWithRetry(context.Background(), attempt, 2)
	require.Error(t, err)
	assert.True(t, engerr.Is(err, engerr.KindFormat))
}

func TestExtractWithRetryStopsOnCancellation(t *testing.T) {
	attempts := 0
	cancelErr := engerr.New(engerr.KindCancelled, "client disconnected")
	attempt := func(ctx context.Context, lastAttempt bool) (conversation.Message, error) {
		attempts++
		return conversation.Message{}, cancelErr
	}

	_, err := ExtractWithRetry(context.Background(), attempt, 5)
	require.Error(t, err)
	assert.True(t, errors.Is(err, cancelErr) || engerr.Is(err, engerr.KindCancelled))
	assert.Equal(t, 1, attempts, "cancellation must stop retries immediately")
}
