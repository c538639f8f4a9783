// Package directives parses inline power-user commands from the front of a
// user message: /think, /verbose, /elevated, /json, /notools, /raw, /debug,
// /model X, /temp F, /maxtokens N.
package directives

import (
	"regexp"
	"strconv"
	"strings"
)

// directivePattern matches one leading "/word" optionally followed by a
// value token. It is anchored at the start of the (shrinking) string: parsing
// only ever looks at what's left at position 0, never scans ahead.
var directivePattern = regexp.MustCompile(`^(/\w+)(?:\s+(\S+))?\s*`)

// argType describes how a directive's value token, if any, should be parsed.
type argType int

const (
	argNone argType = iota
	argString
	argFloat
	argInt
)

var known = map[string]argType{
	"/think":     argNone,
	"/verbose":   argNone,
	"/elevated":  argNone,
	"/json":      argNone,
	"/notools":   argNone,
	"/raw":       argNone,
	"/debug":     argNone,
	"/model":     argString,
	"/temp":      argFloat,
	"/maxtokens": argInt,
}

// Set is the parsed result of scanning a message for leading directives.
type Set struct {
	HasDirectives bool

	Think    bool
	Verbose  bool
	Elevated bool
	JSON     bool
	NoTools  bool
	Raw      bool
	Debug    bool

	Model     string
	HasModel  bool
	Temp      float64
	HasTemp   bool
	MaxTokens int
	HasMaxTokens bool

	// CleanedMessage is the input with every recognized leading directive
	// token removed.
	CleanedMessage string
}

// Parse scans message for directives anchored at its start. It matches
// directives one at a time from the front of the (shrinking) remainder and
// stops at the first unknown one, leaving it and everything after it intact
// in CleanedMessage.
func Parse(message string) Set {
	result := Set{}
	remaining := message

	for {
		match := directivePattern.FindStringSubmatch(remaining)
		if match == nil {
			break
		}

		name := strings.ToLower(match[1])
		kind, ok := known[name]
		if !ok {
			// Unknown directive: stop processing, leave it in place.
			break
		}

		result.HasDirectives = true
		value := match[2]
		consumedValue := applyDirective(&result, name, kind, value)

		if consumedValue {
			remaining = strings.TrimLeft(remaining[len(match[0]):], " \t")
		} else {
			// Value-taking directive had no parsable value: only consume the
			// directive token itself, not a trailing word that wasn't ours.
			remaining = strings.TrimLeft(remaining[len(match[1]):], " \t")
		}
	}

	if result.HasDirectives && strings.TrimSpace(remaining) == "" {
		// Message is empty after directive removal: keep the original so the
		// turn still has content to act on.
		result.CleanedMessage = message
	} else {
		result.CleanedMessage = remaining
	}

	return result
}

// applyDirective sets the matching field on result and reports whether the
// optional value token (if the pattern captured one) was consumed.
func applyDirective(result *Set, name string, kind argType, value string) bool {
	switch name {
	case "/think":
		result.Think = true
		return false
	case "/verbose":
		result.Verbose = true
		return false
	case "/elevated":
		result.Elevated = true
		return false
	case "/json":
		result.JSON = true
		return false
	case "/notools":
		result.NoTools = true
		return false
	case "/raw":
		result.Raw = true
		return false
	case "/debug":
		result.Debug = true
		return false
	}

	if value == "" {
		return false
	}

	switch kind {
	case argString:
		result.Model = value
		result.HasModel = true
		return true
	case argFloat:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return false
		}
		result.Temp = f
		result.HasTemp = true
		return true
	case argInt:
		n, err := strconv.Atoi(value)
		if err != nil {
			return false
		}
		result.MaxTokens = n
		result.HasMaxTokens = true
		return true
	}
	return false
}

// ToMetadata renders the set into the flat map persisted at
// Session.Metadata["directives"], matching the shape get_tool_permissions
// and the think-mode prompt injector expect.
func (s Set) ToMetadata() map[string]any {
	m := map[string]any{
		"think":    s.Think,
		"verbose":  s.Verbose,
		"elevated": s.Elevated,
		"json":     s.JSON,
		"notools":  s.NoTools,
		"raw":      s.Raw,
		"debug":    s.Debug,
	}
	if s.HasModel {
		m["model"] = s.Model
	}
	if s.HasTemp {
		m["temp"] = s.Temp
	}
	if s.HasMaxTokens {
		m["maxtokens"] = s.MaxTokens
	}
	return m
}

// ToolPermissions is the safe-default access triple derived from the
// elevated directive. On any ambiguity, callers should prefer the
// conservative DefaultToolPermissions rather than guessing elevated.
type ToolPermissions struct {
	AutoApprove        bool
	RestrictToWorkspace bool
	AllowHighRisk      bool
}

// DefaultToolPermissions is the safe fallback: no auto-approval, confined to
// the workspace, no high-risk tools.
func DefaultToolPermissions() ToolPermissions {
	return ToolPermissions{AutoApprove: false, RestrictToWorkspace: true, AllowHighRisk: false}
}

// GetToolPermissions derives permissions from a session's persisted
// directives metadata. A missing or malformed "elevated" entry falls back to
// DefaultToolPermissions rather than granting elevated access.
func GetToolPermissions(metadata map[string]any) ToolPermissions {
	raw, ok := metadata["directives"]
	if !ok {
		return DefaultToolPermissions()
	}
	asMap, ok := raw.(map[string]any)
	if !ok {
		return DefaultToolPermissions()
	}
	elevated, _ := asMap["elevated"].(bool)
	if !elevated {
		return DefaultToolPermissions()
	}
	return ToolPermissions{AutoApprove: true, RestrictToWorkspace: false, AllowHighRisk: true}
}
