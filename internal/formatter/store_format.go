// Package formatter implements the Response-Formatter Adapter: the
// canonical StoreFormat type, the response_formatter tool schema, and
// provider-independent extraction/validation of the formatter's
// tool-call argument object.
//
// Grounded on janhq-server's internal/domain response-shape validation
// idiom (explicit Validate methods returning a typed error), generalized
// to the StoreFormat/Segment contract and wired to invopop/jsonschema
// for schema generation rather than a hand-maintained schema literal.
package formatter

import "github.com/seqthink/engine/internal/artifact"

// SegmentType is the closed set of Segment shapes.
type SegmentType string

const (
	SegmentText     SegmentType = "text"
	SegmentArtifact SegmentType = "artifact"
)

// Segment is one item of StoreFormat.Conversation.
type Segment struct {
	Type       SegmentType `json:"type" jsonschema:"required,enum=text,enum=artifact"`
	Content    string      `json:"content,omitempty"`
	ArtifactID string      `json:"artifact_id,omitempty"`
	Summary    string      `json:"summary,omitempty"`
}

// StoreFormat is the canonical final reply shape. Artifacts is appended
// by the Artifact Aggregator after extraction, never by the provider
// directly — the response_formatter tool schema omits this field.
type StoreFormat struct {
	Thinking     string              `json:"thinking,omitempty"`
	Conversation []Segment           `json:"conversation"`
	Artifacts    []artifact.Artifact `json:"artifacts,omitempty"`
}

// FormatterInput is the response_formatter tool's input schema: the
// StoreFormat shape minus Artifacts, which the Artifact Aggregator
// appends after extraction rather than accepting from the provider.
type FormatterInput struct {
	Thinking     string    `json:"thinking,omitempty" jsonschema_description:"Optional free-form reasoning summary, not shown as a conversation segment."`
	Conversation []Segment `json:"conversation" jsonschema:"required,minItems=1" jsonschema_description:"Non-empty ordered list of text and artifact segments making up the reply."`
}

// inlineArtifact is the shape an artifact Segment may carry inline from
// the provider, before normalization assigns it a stable ID and appends
// it to StoreFormat.Artifacts.
type inlineArtifact struct {
	Kind     string         `json:"kind"`
	Title    string         `json:"title"`
	Content  string         `json:"content"`
	Language string         `json:"language,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// rawSegment mirrors the wire shape the provider may send for an
// artifact segment: either a bare artifact_id reference, or an inline
// artifact object under "artifact" that validate_shape must normalize.
type rawSegment struct {
	Type       string          `json:"type"`
	Content    string          `json:"content"`
	ArtifactID string          `json:"artifact_id"`
	Summary    string          `json:"summary"`
	Artifact   *inlineArtifact `json:"artifact"`
}

type rawStoreFormat struct {
	Thinking     string       `json:"thinking"`
	Conversation []rawSegment `json:"conversation"`
}
