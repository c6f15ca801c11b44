package formatter

import (
	"fmt"

	"github.com/seqthink/engine/internal/artifact"
)

// SideChannel is the accumulated {bibliography, knowledge_graph,
// direct_artifacts, binary_outputs} state carried across rounds by the
// thinking loop (spec §4.E).
type SideChannel struct {
	Bibliography   *artifact.Bibliography
	KnowledgeGraph *artifact.KnowledgeGraph
	DirectArtifacts []artifact.Artifact
	BinaryOutputs  []artifact.BinaryOutput
}

// NewSideChannel returns an empty accumulator.
func NewSideChannel() *SideChannel {
	return &SideChannel{
		Bibliography:   artifact.NewBibliography(),
		KnowledgeGraph: artifact.NewKnowledgeGraph(),
	}
}

// Attach appends an artifact and an "artifact" segment for each of
// bibliography, merged knowledge graph, direct artifacts, and processed
// binary outputs, in that order, preserving insertion order within each
// category. The merged knowledge graph is attached at most once,
// regardless of how many rounds contributed to it.
func Attach(sf StoreFormat, extras *SideChannel) StoreFormat {
	position := len(sf.Artifacts)

	if !extras.Bibliography.Empty() {
		a := artifact.Artifact{
			ID:       artifact.NewID(),
			Kind:     string(artifact.KindBibliography),
			Title:    "Bibliography",
			Content:  bibliographyContent(extras.Bibliography.Entries()),
			Position: position,
			Metadata: map[string]any{"entry_count": len(extras.Bibliography.Entries())},
		}
		sf = appendArtifact(sf, a)
		position++
	}

	if !extras.KnowledgeGraph.Empty() {
		a := artifact.Artifact{
			ID:       artifact.NewID(),
			Kind:     string(artifact.KindKnowledgeGraph),
			Title:    "Knowledge Graph",
			Content:  fmt.Sprintf("%d nodes, %d edges", len(extras.KnowledgeGraph.Nodes()), len(extras.KnowledgeGraph.Edges())),
			Position: position,
			Metadata: map[string]any{
				"nodes": extras.KnowledgeGraph.Nodes(),
				"edges": extras.KnowledgeGraph.Edges(),
			},
		}
		sf = appendArtifact(sf, a)
		position++
	}

	for _, a := range extras.DirectArtifacts {
		a.Position = position
		sf = appendArtifact(sf, a)
		position++
	}

	for _, b := range extras.BinaryOutputs {
		a := artifact.ProcessBinary(b, position)
		sf = appendArtifact(sf, a)
		position++
	}

	return sf
}

// appendArtifact appends a to sf.Artifacts and a corresponding artifact
// segment to sf.Conversation.
func appendArtifact(sf StoreFormat, a artifact.Artifact) StoreFormat {
	sf.Artifacts = append(sf.Artifacts, a)
	sf.Conversation = append(sf.Conversation, Segment{
		Type:       SegmentArtifact,
		ArtifactID: a.ID,
		Summary:    a.Title,
	})
	return sf
}

func bibliographyContent(entries []artifact.BibliographyEntry) string {
	out := ""
	for _, e := range entries {
		out += fmt.Sprintf("%s — %s (%s)\n", e.Key, e.Title, e.Authors)
	}
	return out
}
