package toolcall

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeForFunctionName(t *testing.T) {
	assert.Equal(t, "pubtator_search_pubmed", SanitizeForFunctionName("pubtator-search_pubmed"))
	assert.Equal(t, "graph_mode_mcp_query", SanitizeForFunctionName("graph-mode-mcp-query"))
	assert.Equal(t, "already_clean", SanitizeForFunctionName("already_clean"))
}

func TestResolveWireName(t *testing.T) {
	tools := []Definition{
		{Name: "pubtator-search_pubmed"},
		{Name: "graph-mode-mcp-query"},
	}

	tests := []struct {
		name   string
		echoed string
		want   string
	}{
		{"exact match passes through unchanged", "pubtator-search_pubmed", "pubtator-search_pubmed"},
		{"sanitized gemini-style name resolves back to the wire_name", "graph_mode_mcp_query", "graph-mode-mcp-query"},
		{"unknown name falls back to the echoed value", "totally-unknown-tool", "totally-unknown-tool"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ResolveWireName(tt.echoed, tools))
		})
	}
}

func TestResolveWireName_EmptyCatalogFallsBackToEchoed(t *testing.T) {
	assert.Equal(t, "some-tool", ResolveWireName("some-tool", nil))
}
