package mcp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeToolName(t *testing.T) {
	assert.Equal(t, "csv-tool-read_csv", sanitizeToolName("csv-tool", "read_csv"))
	assert.Regexp(t, wireNamePattern, sanitizeToolName("my server", "do thing!"))
	assert.Regexp(t, wireNamePattern, sanitizeToolName("_weird", "tool"))
}

func TestWireNameTableCollisionSuffix(t *testing.T) {
	table := newWireNameTable()

	first := table.resolve("srv", "lookup")
	second := table.resolve("srv", "lookup")
	require.NotEqual(t, first, second)
	assert.Equal(t, "srv-lookup", first)
	assert.Equal(t, "srv-lookup-2", second)

	third := table.resolve("srv", "lookup")
	assert.Equal(t, "srv-lookup-3", third)
}

func TestWireNameTableDistinctPairsDoNotCollide(t *testing.T) {
	table := newWireNameTable()
	a := table.resolve("alpha", "search")
	b := table.resolve("beta", "search")
	assert.NotEqual(t, a, b)
}
