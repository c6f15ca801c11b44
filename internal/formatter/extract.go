package formatter

import (
	"encoding/json"
	"fmt"

	"github.com/seqthink/engine/internal/artifact"
	"github.com/seqthink/engine/internal/conversation"
	"github.com/seqthink/engine/internal/engerr"
)

// Extract finds the reply's invocation of response_formatter, parses its
// argument object — which some providers deliver as a JSON-encoded
// string rather than a structured object — and validates its shape.
func Extract(reply conversation.Message) (StoreFormat, error) {
	for _, call := range reply.ToolCalls() {
		if call.ToolName != ToolName {
			continue
		}
		return validateShape(call.ToolArgs)
	}
	return StoreFormat{}, engerr.New(engerr.KindFormat, "reply did not invoke response_formatter")
}

// HasFormatterCall reports whether reply already invoked response_formatter,
// used by the thinking loop to decide whether a round is complete.
func HasFormatterCall(reply conversation.Message) bool {
	for _, call := range reply.ToolCalls() {
		if call.ToolName == ToolName {
			return true
		}
	}
	return false
}

// validateShape enforces: conversation exists, is a list, is non-empty;
// each item has type text|artifact; text items have non-empty content;
// artifact items carry a well-formed inline artifact object (normalized
// to an id and appended to StoreFormat.Artifacts). Any violation fails
// with a KindFormat error carrying a human-readable cause.
func validateShape(raw json.RawMessage) (StoreFormat, error) {
	var parsed rawStoreFormat
	if err := unmarshalMaybeString(raw, &parsed); err != nil {
		return StoreFormat{}, engerr.Wrap(engerr.KindFormat, "response_formatter arguments are not valid JSON", err)
	}
	if len(parsed.Conversation) == 0 {
		return StoreFormat{}, engerr.New(engerr.KindFormat, "conversation must be a non-empty list")
	}

	out := StoreFormat{Thinking: parsed.Thinking}
	position := 0
	for i, seg := range parsed.Conversation {
		switch SegmentType(seg.Type) {
		case SegmentText:
			if seg.Content == "" {
				return StoreFormat{}, engerr.New(engerr.KindFormat, fmt.Sprintf("conversation[%d]: text segment has empty content", i))
			}
			out.Conversation = append(out.Conversation, Segment{Type: SegmentText, Content: seg.Content})
		case SegmentArtifact:
			id, err := resolveArtifactSegment(seg, position, &out)
			if err != nil {
				return StoreFormat{}, engerr.Wrap(engerr.KindFormat, fmt.Sprintf("conversation[%d]: invalid artifact segment", i), err)
			}
			out.Conversation = append(out.Conversation, Segment{Type: SegmentArtifact, ArtifactID: id, Summary: seg.Summary})
			position++
		default:
			return StoreFormat{}, engerr.New(engerr.KindFormat, fmt.Sprintf("conversation[%d]: unknown segment type %q", i, seg.Type))
		}
	}
	return out, nil
}

// resolveArtifactSegment accepts either a bare artifact_id, returned as
// given without checking it against out.Artifacts, or an inline artifact
// object, normalizing the latter into a freshly-identified Artifact
// appended to out.
func resolveArtifactSegment(seg rawSegment, position int, out *StoreFormat) (string, error) {
	if seg.Artifact == nil {
		if seg.ArtifactID == "" {
			return "", fmt.Errorf("artifact segment has neither artifact_id nor inline artifact object")
		}
		return seg.ArtifactID, nil
	}
	if seg.Artifact.Content == "" {
		return "", fmt.Errorf("inline artifact has empty content")
	}
	a := artifact.Artifact{
		ID:       artifact.NewID(),
		Kind:     artifact.NormalizeKind(seg.Artifact.Kind),
		Title:    seg.Artifact.Title,
		Content:  seg.Artifact.Content,
		Language: seg.Artifact.Language,
		Position: position,
		Metadata: seg.Artifact.Metadata,
	}
	out.Artifacts = append(out.Artifacts, a)
	return a.ID, nil
}

// unmarshalMaybeString decodes raw into v directly, falling back to
// treating raw as a JSON string containing the real payload — the shape
// some providers use when they serialize tool-call arguments as text.
func unmarshalMaybeString(raw json.RawMessage, v any) error {
	if err := json.Unmarshal(raw, v); err == nil {
		return nil
	}
	var inner string
	if err := json.Unmarshal(raw, &inner); err != nil {
		return err
	}
	return json.Unmarshal([]byte(inner), v)
}
