// Package mcp provides MCP (Model Context Protocol) client support,
// including server config loading, stdio subprocess transport, tool
// catalog management, and a security scanner for stdio server scripts.
package mcp

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/rs/zerolog/log"
)

// ScanSeverity indicates how serious a scanner finding is.
type ScanSeverity string

const (
	SeverityCritical ScanSeverity = "critical"
	SeverityWarn     ScanSeverity = "warn"
)

// ScanFinding represents a single security issue found during script scanning.
type ScanFinding struct {
	Rule     string
	Severity ScanSeverity
	Line     int    // 0 for full-source rules
	Snippet  string // trimmed line or "(full-source match)"
}

// lineRule checks individual lines against a regex pattern.
type lineRule struct {
	name     string
	severity ScanSeverity
	pattern  *regexp.Regexp
}

// sourceRule checks the entire source content; contextPattern (if set) must
// also match for the finding to be recorded (AND logic).
type sourceRule struct {
	name           string
	severity       ScanSeverity
	pattern        *regexp.Regexp
	contextPattern *regexp.Regexp // optional secondary match
}

// languageProfile bundles the comment syntax and rule sets for one
// scriptable MCP server language. Reload (see manager.go) only scans
// newly-added servers whose launch command ends in a recognized
// extension; every other extension is passed through unscanned.
type languageProfile struct {
	commentPrefix string
	lineRules     []lineRule
	sourceRules   []sourceRule
}

// pyio / jsio name the network-call surfaces each language's
// env-harvesting and exfiltration rules look for.
const pyio = `\b(requests\.|urllib\.|httpx\.|socket\.connect|aiohttp\.)`
const jsio = `\b(fetch\s*\(|axios\.|http\.request|https\.request|net\.connect)`

// pythonProfile mirrors CPython's dynamic-execution and I/O surfaces:
// sys.stdin / sys.stdout are intentionally NOT covered by any rule —
// they are legitimate for MCP stdio communication and would otherwise
// be a constant false positive on every well-behaved server.
var pythonProfile = languageProfile{
	commentPrefix: "#",
	lineRules: []lineRule{
		{
			name:     "dangerous-exec",
			severity: SeverityCritical,
			// subprocess, os.system, os.popen — dynamic process execution.
			pattern: regexp.MustCompile(`\b(subprocess\.|os\.system\s*\(|os\.popen\s*\(|commands\.getoutput\s*\()`),
		},
		{
			name:     "dynamic-code",
			severity: SeverityCritical,
			// exec/eval/compile are dynamic code execution vectors in Python.
			pattern: regexp.MustCompile(`\b(exec|eval|compile)\s*\(`),
		},
		{
			name:     "dynamic-import",
			severity: SeverityCritical,
			// __import__ and importlib allow loading arbitrary modules at runtime.
			pattern: regexp.MustCompile(`\b(__import__|importlib\.import_module)\s*\(`),
		},
	},
	sourceRules: []sourceRule{
		{
			name:           "env-harvesting",
			severity:       SeverityCritical,
			pattern:        regexp.MustCompile(`os\.environ`),
			contextPattern: regexp.MustCompile(pyio),
		},
		{
			name:           "potential-exfil",
			severity:       SeverityWarn,
			pattern:        regexp.MustCompile(`\bopen\s*\([^)]*['"rb]`),
			contextPattern: regexp.MustCompile(pyio),
		},
		{
			name:           "obfuscated-code",
			severity:       SeverityWarn,
			pattern:        regexp.MustCompile(`\bbase64\b`),
			contextPattern: regexp.MustCompile(`\b(exec|eval)\s*\(`),
		},
	},
}

// nodeProfile covers the Node.js/TypeScript MCP SDK's own dynamic-execution
// and I/O surfaces — MCP stdio servers are as commonly shipped as a
// @modelcontextprotocol/sdk Node entrypoint as a Python one, so a scanner
// that only understood Python would miss the majority of community
// servers an operator might point mcp.json at.
var nodeProfile = languageProfile{
	commentPrefix: "//",
	lineRules: []lineRule{
		{
			name:     "dangerous-exec",
			severity: SeverityCritical,
			// child_process's exec/execSync/spawn family — dynamic process execution.
			pattern: regexp.MustCompile(`\b(child_process|execSync|spawnSync)\b|require\(\s*['"]child_process['"]\s*\)`),
		},
		{
			name:     "dynamic-code",
			severity: SeverityCritical,
			// eval and the Function constructor are dynamic code execution vectors.
			pattern: regexp.MustCompile(`\beval\s*\(|new\s+Function\s*\(`),
		},
	},
	sourceRules: []sourceRule{
		{
			name:           "env-harvesting",
			severity:       SeverityCritical,
			pattern:        regexp.MustCompile(`process\.env\b`),
			contextPattern: regexp.MustCompile(jsio),
		},
		{
			name:           "potential-exfil",
			severity:       SeverityWarn,
			pattern:        regexp.MustCompile(`\bfs\.readFileSync\s*\(|\bfs\.readFile\s*\(`),
			contextPattern: regexp.MustCompile(jsio),
		},
		{
			name:           "obfuscated-code",
			severity:       SeverityWarn,
			pattern:        regexp.MustCompile(`\bBuffer\.from\([^)]*['"]base64['"]|\batob\s*\(`),
			contextPattern: regexp.MustCompile(`\beval\s*\(|new\s+Function\s*\(`),
		},
	},
}

// languagesByExt resolves a launch script's extension to the profile used
// to scan it. Extensions absent from this map are not scanned at all.
var languagesByExt = map[string]languageProfile{
	".py":  pythonProfile,
	".js":  nodeProfile,
	".mjs": nodeProfile,
	".ts":  nodeProfile,
}

// ScanScript performs a static security scan on an MCP server launch
// script. Only extensions in languagesByExt are processed; anything
// else returns (nil, nil) rather than an error, since most stdio
// servers are native binaries with no source file to scan at all.
//
// Critical findings should block script activation.
// Warn findings are logged but allow activation to continue.
func ScanScript(filePath string) ([]ScanFinding, error) {
	profile, ok := languagesByExt[strings.ToLower(filepath.Ext(filePath))]
	if !ok {
		return nil, nil
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("scanner: read %q: %w", filePath, err)
	}

	source := string(data)
	var findings []ScanFinding

	// Per-line rules
	scanner := bufio.NewScanner(strings.NewReader(source))
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Text()

		// Skip comment-only lines (simple heuristic, not a real parser).
		stripped := strings.TrimSpace(line)
		if profile.commentPrefix != "" && strings.HasPrefix(stripped, profile.commentPrefix) {
			continue
		}

		for _, rule := range profile.lineRules {
			if rule.pattern.MatchString(line) {
				findings = append(findings, ScanFinding{
					Rule:     rule.name,
					Severity: rule.severity,
					Line:     lineNum,
					Snippet:  stripped,
				})
				// Do NOT break — allow every rule to match this line independently.
			}
		}
	}

	// Full-source rules
	for _, rule := range profile.sourceRules {
		if !rule.pattern.MatchString(source) {
			continue
		}
		if rule.contextPattern != nil && !rule.contextPattern.MatchString(source) {
			continue
		}
		findings = append(findings, ScanFinding{
			Rule:     rule.name,
			Severity: rule.severity,
			Line:     0,
			Snippet:  "(full-source match)",
		})
	}

	return findings, nil
}

// HasCritical returns true if any finding has critical severity.
func HasCritical(findings []ScanFinding) bool {
	for _, f := range findings {
		if f.Severity == SeverityCritical {
			return true
		}
	}
	return false
}

// LogFindings writes all findings to the structured logger.
func LogFindings(serverName string, findings []ScanFinding) {
	for _, f := range findings {
		ev := log.Warn()
		if f.Severity == SeverityCritical {
			ev = log.Error()
		}
		ev.Str("server", serverName).Str("rule", f.Rule).Int("line", f.Line).
			Str("snippet", f.Snippet).Msg("mcp scanner finding")
	}
}
