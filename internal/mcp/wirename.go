package mcp

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// wireNameCharset matches the characters a wire_name is allowed to keep.
// Anything else is replaced with "_". The leading character must be a
// letter or digit; ensureLeadingChar fixes that up separately.
var wireNameCharset = regexp.MustCompile(`[^A-Za-z0-9_-]`)

// wireNamePattern is the contract every registered wire_name satisfies:
// ^[A-Za-z0-9][A-Za-z0-9_-]*$
var wireNamePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]*$`)

// sanitizeToolName produces <server>-<sanitized_tool> and guarantees the
// result matches wireNamePattern. Disallowed characters in either the
// server or tool name are replaced with "_"; a result that would start
// with neither a letter nor digit is prefixed with "t".
func sanitizeToolName(server, tool string) string {
	s := wireNameCharset.ReplaceAllString(server, "_")
	t := wireNameCharset.ReplaceAllString(tool, "_")
	name := s + "-" + t
	if !wireNamePattern.MatchString(name) {
		name = "t" + name
	}
	return name
}

// wireNameTable resolves collisions deterministically: the first tool to
// claim a sanitized name keeps it; every subsequent collision appends
// "-2", "-3", ... If a thousand collisions somehow pile up on the same
// base (pathological input), a uuid suffix guarantees uniqueness rather
// than looping forever.
type wireNameTable struct {
	taken map[string]bool
}

func newWireNameTable() *wireNameTable {
	return &wireNameTable{taken: make(map[string]bool)}
}

// resolve returns a unique wire_name for (server, tool), registering it
// in the table. Calling resolve twice with the same (server, tool) pair
// returns two different names — callers must resolve each tool exactly
// once per table lifetime (one call per Manager catalog rebuild).
func (t *wireNameTable) resolve(server, tool string) string {
	base := sanitizeToolName(server, tool)
	if !t.taken[base] {
		t.taken[base] = true
		return base
	}
	for i := 2; i < 1000; i++ {
		candidate := fmt.Sprintf("%s-%d", base, i)
		if !t.taken[candidate] {
			t.taken[candidate] = true
			return candidate
		}
	}
	candidate := base + "-" + strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	t.taken[candidate] = true
	return candidate
}
