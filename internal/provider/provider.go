// Package provider defines the provider-agnostic LLM adapter interface
// used by the Sequential Thinking Loop, plus the openai/anthropic/gemini
// sub-packages implementing it against each vendor's SDK.
package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/seqthink/engine/internal/conversation"
	"github.com/seqthink/engine/internal/engerr"
	"github.com/seqthink/engine/internal/toolcall"
)

// Adapter is the generalized form of the teacher's llm.LLMProvider,
// extended to carry tool definitions and tool-choice forcing. Every
// provider represents tool calls differently on the wire (flat array,
// content blocks, or parts) — Adapter hides that behind one
// conversation.Message shape on both sides.
type Adapter interface {
	// Name identifies the adapter for logging ("openai", "anthropic", "gemini").
	Name() string

	// Call sends the conversation to the provider with the given tool
	// catalog. If forceTool is non-empty, the provider is instructed to
	// call exactly that tool (used to force response_formatter on the
	// final round). The returned Message may contain text blocks,
	// tool-call blocks, or both depending on the provider.
	Call(ctx context.Context, messages []conversation.Message, tools []toolcall.Definition, forceTool string, opts Options) (conversation.Message, error)
}

// Options carries optional per-call overrides on top of an adapter's
// configured defaults. A nil field leaves the adapter's default in
// place. Used by the Sequential Thinking Loop's final extraction turn
// to reduce temperature and token budget on its last retry (spec §4.E
// step 3), and by the HTTP surface to honor a request's temperature/
// max_tokens fields.
type Options struct {
	Temperature *float64
	MaxTokens   *int
}

// ValidateSchema parses a tool definition's JSON Schema to reject
// unschemaable MCP tool definitions before they reach a provider,
// instead of passing them through uninspected.
func ValidateSchema(def toolcall.Definition) error {
	if len(def.Parameters) == 0 {
		return nil
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(def.Name+".json", bytesReader(def.Parameters)); err != nil {
		return engerr.Wrap(engerr.KindFormat, fmt.Sprintf("tool %q: invalid schema resource", def.Name), err)
	}
	if _, err := compiler.Compile(def.Name + ".json"); err != nil {
		return engerr.Wrap(engerr.KindFormat, fmt.Sprintf("tool %q: schema does not compile", def.Name), err)
	}
	return nil
}

func bytesReader(b json.RawMessage) *jsonSchemaReader {
	return &jsonSchemaReader{data: b}
}

// jsonSchemaReader adapts a json.RawMessage to io.Reader for the
// jsonschema compiler's AddResource signature.
type jsonSchemaReader struct {
	data json.RawMessage
	pos  int
}

func (r *jsonSchemaReader) Read(p []byte) (int, error) {
	if r.pos >= len(r.data) {
		return 0, io.EOF
	}
	n := copy(p, r.data[r.pos:])
	r.pos += n
	return n, nil
}
