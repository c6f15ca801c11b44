package formatter

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefinitionSchemaOmitsArtifacts(t *testing.T) {
	def, err := Definition()
	require.NoError(t, err)
	assert.Equal(t, ToolName, def.Name)

	var schema map[string]any
	require.NoError(t, json.Unmarshal(def.Parameters, &schema))

	props, ok := schema["properties"].(map[string]any)
	require.True(t, ok)
	_, hasArtifacts := props["artifacts"]
	assert.False(t, hasArtifacts, "response_formatter schema must omit artifacts; the Aggregator appends those")
	_, hasConversation := props["conversation"]
	assert.True(t, hasConversation)
}
