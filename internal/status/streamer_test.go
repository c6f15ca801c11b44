package status

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seqthink/engine/internal/formatter"
)

func TestStreamerEmitsNdjsonLines(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/responses", nil)

	s := New(rec, req)
	require.NotNil(t, s)

	s.Emit("calling pubtator-search_pubmed")
	s.Result(formatter.StoreFormat{Conversation: []formatter.Segment{{Type: formatter.SegmentText, Content: "done"}}})

	assert.Equal(t, "application/x-ndjson", rec.Header().Get("Content-Type"))

	scanner := bufio.NewScanner(bytes.NewReader(rec.Body.Bytes()))
	var lines []map[string]any
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var m map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &m))
		lines = append(lines, m)
	}
	require.Len(t, lines, 2)
	assert.Equal(t, "status", lines[0]["type"])
	assert.Equal(t, "result", lines[1]["type"])
}

func TestStreamerDoneClosesOnClientDisconnect(t *testing.T) {
	rec := httptest.NewRecorder()
	req, cancel := newCancellableRequest(t)
	defer cancel()

	s := New(rec, req)
	require.NotNil(t, s)

	cancel()
	select {
	case <-s.Done():
	default:
		t.Fatal("expected Done() to be closed after context cancellation")
	}
}

func newCancellableRequest(t *testing.T) (*http.Request, func()) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/v1/responses", nil)
	ctx, cancel := context.WithCancel(req.Context())
	return req.WithContext(ctx), cancel
}
