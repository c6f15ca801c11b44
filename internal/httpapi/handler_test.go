package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seqthink/engine/internal/mcp"
)

func newTestHandler() *Handler {
	return &Handler{
		Manager:    mcp.NewManager("mcp.json"), // never connected; empty catalog
		Providers:  ProviderKeys{},
		MaxRounds:  3,
		MaxRetries: 1,
	}
}

func doRequest(t *testing.T, h *Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/v1/responses", bytes.NewBufferString(body))
	rec := httptest.NewRecorder()
	NewMux(h).ServeHTTP(rec, req)
	return rec
}

func TestHandlerRejectsInvalidJSON(t *testing.T) {
	rec := doRequest(t, newTestHandler(), `{not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandlerRejectsMissingMessage(t *testing.T) {
	rec := doRequest(t, newTestHandler(), `{"provider":"openai"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandlerRejectsMissingProvider(t *testing.T) {
	rec := doRequest(t, newTestHandler(), `{"message":"hi"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandlerStreamsErrorForUnknownProvider(t *testing.T) {
	rec := doRequest(t, newTestHandler(), `{"message":"hi","provider":"unknown-llm"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/x-ndjson", rec.Header().Get("Content-Type"))

	var line map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(rec.Body.Bytes()), &line))
	assert.Equal(t, "error", line["type"])
}
