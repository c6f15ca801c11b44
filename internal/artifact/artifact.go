// Package artifact implements the Artifact Aggregator: normalization of
// raw tool-reported kinds to the closed taxonomy, knowledge-graph and
// bibliography set-union merge, and attachment of accumulated
// side-channel items into a StoreFormat-shaped result.
//
// Grounded on janhq-server's internal/domain/artifact entity/service
// shape (list of typed artifacts with metadata), generalized from a
// Postgres-backed artifact list to the closed kind set and merge rules
// below.
package artifact

import (
	"encoding/base64"
	"strings"

	"github.com/google/uuid"
)

// Kind is the closed taxonomy from spec §3. Callers must normalize raw,
// tool-reported kind strings via NormalizeKind before constructing an
// Artifact.
type Kind string

const (
	KindMarkdown       Kind = "text/markdown"
	KindCode           Kind = "code"
	KindImage          Kind = "image" // actual subtype appended, e.g. "image/png"
	KindKnowledgeGraph Kind = "knowledge-graph"
	KindBibliography   Kind = "bibliography"
	KindHTML           Kind = "html"
	KindSVG            Kind = "svg"
	KindMermaid        Kind = "mermaid"
	KindReact          Kind = "react"
	KindBinary         Kind = "binary"
)

// Artifact is a typed, addressable output segment.
type Artifact struct {
	ID       string         `json:"id"`
	Kind     string         `json:"kind"`
	Title    string         `json:"title"`
	Content  string         `json:"content"`
	Language string         `json:"language,omitempty"`
	Position int            `json:"position"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// NewID returns a fresh random artifact identifier.
func NewID() string { return uuid.NewString() }

// NormalizeKind maps a raw, tool-reported kind string to the closed
// taxonomy. Idempotent: NormalizeKind(NormalizeKind(x)) == NormalizeKind(x).
func NormalizeKind(raw string) string {
	raw = strings.ToLower(strings.TrimSpace(raw))
	switch {
	case raw == "":
		return string(KindMarkdown)
	case raw == string(KindMarkdown), raw == "markdown", raw == "text", raw == "md":
		return string(KindMarkdown)
	case raw == string(KindCode), strings.HasPrefix(raw, "code/"), raw == "application/vnd.ant.code":
		return string(KindCode)
	case strings.HasPrefix(raw, "image/"):
		return raw // retain the specific subtype, e.g. "image/png"
	case raw == "image":
		return string(KindImage)
	case raw == string(KindKnowledgeGraph), raw == "graph", raw == "application/vnd.knowledge-graph", raw == "kg":
		return string(KindKnowledgeGraph)
	case raw == string(KindBibliography), raw == "biblio", raw == "references":
		return string(KindBibliography)
	case raw == string(KindHTML):
		return string(KindHTML)
	case raw == string(KindSVG):
		return string(KindSVG)
	case raw == string(KindMermaid):
		return string(KindMermaid)
	case raw == string(KindReact), raw == "application/vnd.ant.react":
		return string(KindReact)
	case raw == string(KindBinary):
		return string(KindBinary)
	default:
		return string(KindMarkdown)
	}
}

// BinaryOutput is a tool-reported binary payload, converted to an
// Artifact by ProcessBinary.
type BinaryOutput struct {
	MediaType string
	Data      []byte
	Metadata  map[string]any
}

// ProcessBinary returns an artifact whose content is the base64 payload
// and whose kind is the reported media type, retaining originating
// metadata.
func ProcessBinary(b BinaryOutput, position int) Artifact {
	return Artifact{
		ID:       NewID(),
		Kind:     NormalizeKind(b.MediaType),
		Title:    "binary output",
		Content:  base64.StdEncoding.EncodeToString(b.Data),
		Position: position,
		Metadata: b.Metadata,
	}
}

// BibliographyEntry is one deduplicated reference, keyed by a stable
// identifier such as a PMID.
type BibliographyEntry struct {
	Key     string // dedup key, e.g. PMID
	Title   string
	Authors string
	Source  string
}

// Bibliography accumulates entries across rounds, deduplicating by Key.
type Bibliography struct {
	order   []string
	entries map[string]BibliographyEntry
}

// NewBibliography returns an empty accumulator.
func NewBibliography() *Bibliography {
	return &Bibliography{entries: make(map[string]BibliographyEntry)}
}

// Add unions entry into the accumulator. A repeated Key is a no-op —
// first-seen entry wins, matching "the deduplicated union of PMIDs."
func (b *Bibliography) Add(entry BibliographyEntry) {
	if _, exists := b.entries[entry.Key]; exists {
		return
	}
	b.entries[entry.Key] = entry
	b.order = append(b.order, entry.Key)
}

// Empty reports whether any entries were ever added.
func (b *Bibliography) Empty() bool { return len(b.order) == 0 }

// Entries returns the accumulated entries in first-seen order.
func (b *Bibliography) Entries() []BibliographyEntry {
	out := make([]BibliographyEntry, 0, len(b.order))
	for _, k := range b.order {
		out = append(out, b.entries[k])
	}
	return out
}

// KGNode is a knowledge-graph node, deduplicated by ID.
type KGNode struct {
	ID     string         `json:"id"`
	Label  string         `json:"label"`
	Fields map[string]any `json:"fields,omitempty"`
}

// KGEdge is a knowledge-graph edge, deduplicated by (Source, Target,
// Label). Evidence is a set of supporting citation/source identifiers;
// when two rounds contribute the same edge, their Evidence arrays
// union-deduplicate rather than one replacing the other (spec §3).
type KGEdge struct {
	Source   string   `json:"source"`
	Target   string   `json:"target"`
	Label    string   `json:"label"`
	Evidence []string `json:"evidence,omitempty"`
}

// KnowledgeGraph accumulates nodes and edges across rounds. The merged
// node-ID and edge-key sets depend only on what was contributed, not on
// contribution order; the attributes kept for a duplicate node and the
// order Nodes/Edges return follow the first contribution.
type KnowledgeGraph struct {
	nodes    map[string]KGNode
	nodeOrd  []string
	edges    map[string]KGEdge
	edgeOrd  []string
	everUsed bool
}

// NewKnowledgeGraph returns an empty accumulator.
func NewKnowledgeGraph() *KnowledgeGraph {
	return &KnowledgeGraph{nodes: make(map[string]KGNode), edges: make(map[string]KGEdge)}
}

func edgeKey(e KGEdge) string { return e.Source + "\x00" + e.Target + "\x00" + e.Label }

// Merge unions nodes (by ID) and edges (by Source/Target/Label) into the
// running graph. A duplicate edge's Evidence union-dedups into the
// edge already on file instead of being dropped (spec §3).
func (g *KnowledgeGraph) Merge(nodes []KGNode, edges []KGEdge) {
	if len(nodes) > 0 || len(edges) > 0 {
		g.everUsed = true
	}
	for _, n := range nodes {
		if _, exists := g.nodes[n.ID]; !exists {
			g.nodes[n.ID] = n
			g.nodeOrd = append(g.nodeOrd, n.ID)
		}
	}
	for _, e := range edges {
		k := edgeKey(e)
		if existing, exists := g.edges[k]; exists {
			existing.Evidence = unionEvidence(existing.Evidence, e.Evidence)
			g.edges[k] = existing
			continue
		}
		g.edges[k] = e
		g.edgeOrd = append(g.edgeOrd, k)
	}
}

// unionEvidence returns the deduplicated union of a and b, preserving
// a's order and appending b's new entries in their own order.
func unionEvidence(a, b []string) []string {
	if len(b) == 0 {
		return a
	}
	seen := make(map[string]bool, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, v := range a {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	for _, v := range b {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}

// Empty reports whether any round ever contributed to the graph.
func (g *KnowledgeGraph) Empty() bool { return !g.everUsed }

// Nodes returns the merged node set in first-seen order.
func (g *KnowledgeGraph) Nodes() []KGNode {
	out := make([]KGNode, 0, len(g.nodeOrd))
	for _, id := range g.nodeOrd {
		out = append(out, g.nodes[id])
	}
	return out
}

// Edges returns the merged edge set in first-seen order.
func (g *KnowledgeGraph) Edges() []KGEdge {
	out := make([]KGEdge, 0, len(g.edgeOrd))
	for _, k := range g.edgeOrd {
		out = append(out, g.edges[k])
	}
	return out
}
