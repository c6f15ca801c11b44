package artifact

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeKindIdempotent(t *testing.T) {
	inputs := []string{
		"", "text", "markdown", "text/markdown",
		"code", "code/python", "application/vnd.ant.code",
		"image/png", "image",
		"knowledge-graph", "graph", "application/vnd.knowledge-graph", "kg",
		"bibliography", "biblio", "references",
		"html", "svg", "mermaid", "react", "application/vnd.ant.react",
		"binary", "something-unknown",
	}
	for _, raw := range inputs {
		once := NormalizeKind(raw)
		twice := NormalizeKind(once)
		assert.Equal(t, once, twice, "normalize_kind not idempotent for %q", raw)
	}
}

func TestNormalizeKindAliases(t *testing.T) {
	assert.Equal(t, string(KindCode), NormalizeKind("application/vnd.ant.code"))
	assert.Equal(t, string(KindCode), NormalizeKind("code/python"))
	assert.Equal(t, string(KindKnowledgeGraph), NormalizeKind("graph"))
	assert.Equal(t, string(KindKnowledgeGraph), NormalizeKind("application/vnd.knowledge-graph"))
	assert.Equal(t, string(KindMarkdown), NormalizeKind(""))
	assert.Equal(t, string(KindMarkdown), NormalizeKind("anything-unrecognized"))
}

func TestKnowledgeGraphMergeUnionByIDAndEdgeKey(t *testing.T) {
	g := NewKnowledgeGraph()
	g.Merge(
		[]KGNode{{ID: "n1", Label: "BRCA1"}, {ID: "n2", Label: "TP53"}},
		[]KGEdge{{Source: "n1", Target: "n2", Label: "interacts"}},
	)
	g.Merge(
		[]KGNode{{ID: "n2", Label: "TP53-duplicate-should-not-override"}, {ID: "n3", Label: "BRCA2"}},
		[]KGEdge{{Source: "n1", Target: "n2", Label: "interacts"}, {Source: "n2", Target: "n3", Label: "regulates"}},
	)

	nodes := g.Nodes()
	edges := g.Edges()
	assert.Len(t, nodes, 3)
	assert.Len(t, edges, 2)

	for _, n := range nodes {
		if n.ID == "n2" {
			assert.Equal(t, "TP53", n.Label, "first-seen node attributes must win on duplicate id")
		}
	}
}

func TestKnowledgeGraphMergeIdempotent(t *testing.T) {
	g := NewKnowledgeGraph()
	nodes := []KGNode{{ID: "n1", Label: "A"}}
	edges := []KGEdge{{Source: "n1", Target: "n1", Label: "self"}}
	g.Merge(nodes, edges)
	before := len(g.Nodes()) + len(g.Edges())
	g.Merge(nodes, edges)
	after := len(g.Nodes()) + len(g.Edges())
	assert.Equal(t, before, after, "merging a graph into itself must be a no-op")
}

func TestKnowledgeGraphMergeCommutative(t *testing.T) {
	a := NewKnowledgeGraph()
	a.Merge([]KGNode{{ID: "n1"}}, nil)
	a.Merge([]KGNode{{ID: "n2"}}, nil)

	b := NewKnowledgeGraph()
	b.Merge([]KGNode{{ID: "n2"}}, nil)
	b.Merge([]KGNode{{ID: "n1"}}, nil)

	idsOf := func(g *KnowledgeGraph) map[string]bool {
		m := make(map[string]bool)
		for _, n := range g.Nodes() {
			m[n.ID] = true
		}
		return m
	}
	assert.Equal(t, idsOf(a), idsOf(b))
}

func TestKnowledgeGraphMergeUnionDedupsEdgeEvidence(t *testing.T) {
	g := NewKnowledgeGraph()
	g.Merge(
		[]KGNode{{ID: "n1"}, {ID: "n2"}},
		[]KGEdge{{Source: "n1", Target: "n2", Label: "interacts", Evidence: []string{"PMID:1", "PMID:2"}}},
	)
	g.Merge(
		nil,
		[]KGEdge{{Source: "n1", Target: "n2", Label: "interacts", Evidence: []string{"PMID:2", "PMID:3"}}},
	)

	edges := g.Edges()
	require.Len(t, edges, 1)
	assert.ElementsMatch(t, []string{"PMID:1", "PMID:2", "PMID:3"}, edges[0].Evidence)
}

func TestBibliographyDedupByKey(t *testing.T) {
	b := NewBibliography()
	b.Add(BibliographyEntry{Key: "PMID:123", Title: "first"})
	b.Add(BibliographyEntry{Key: "PMID:456", Title: "second"})
	b.Add(BibliographyEntry{Key: "PMID:123", Title: "duplicate, should not override"})

	entries := b.Entries()
	assert.Len(t, entries, 2)
	for _, e := range entries {
		if e.Key == "PMID:123" {
			assert.Equal(t, "first", e.Title)
		}
	}
}

func TestProcessBinaryEncodesBase64AndRetainsMetadata(t *testing.T) {
	out := ProcessBinary(BinaryOutput{
		MediaType: "image/png",
		Data:      []byte("fake-png-bytes"),
		Metadata:  map[string]any{"source_tool": "render-chart"},
	}, 2)

	assert.Equal(t, "image/png", out.Kind)
	assert.Equal(t, 2, out.Position)
	assert.Equal(t, "render-chart", out.Metadata["source_tool"])
	assert.NotEmpty(t, out.ID)
	assert.NotEmpty(t, out.Content)
}
