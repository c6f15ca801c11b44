package formatter

import (
	"encoding/json"
	"sync"

	"github.com/invopop/jsonschema"

	"github.com/seqthink/engine/internal/toolcall"
)

// ToolName is the wire-visible name of the formatter tool. It never goes
// through the MCP Manager's wire_name resolution — it is synthesized by
// the thinking loop directly, so it is exempt from collision suffixing.
const ToolName = "response_formatter"

var (
	defOnce   sync.Once
	defResult toolcall.Definition
	defErr    error
)

// Definition returns the response_formatter tool's provider-facing
// definition, generating its JSON Schema from FormatterInput once and
// caching the result — the schema is static for the process lifetime.
func Definition() (toolcall.Definition, error) {
	defOnce.Do(func() {
		reflector := &jsonschema.Reflector{
			ExpandedStruct: true,
			DoNotReference: true,
		}
		schema := reflector.Reflect(&FormatterInput{})
		schema.Title = ""
		schema.Description = ""
		raw, err := json.Marshal(schema)
		if err != nil {
			defErr = err
			return
		}
		defResult = toolcall.Definition{
			Name:        ToolName,
			Description: "Emit the final structured reply: a non-empty ordered list of text and artifact segments. Must be called exactly once, on the final round.",
			Parameters:  raw,
		}
	})
	return defResult, defErr
}
