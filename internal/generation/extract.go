package generation

import (
	"encoding/json"
	"errors"
	"regexp"
	"strings"
)

var (
	fenceLine     = regexp.MustCompile("(?m)^[ \t]*```[A-Za-z0-9_-]*[ \t]*$")
	trailingFence = regexp.MustCompile("(?m)```[A-Za-z0-9_-]*[ \t]*$")
)

// Extract pulls the first JSON object out of free-form model output. Code
// fences and surrounding prose are ignored. Each '{' is tried in order: one
// that never closes is skipped, and a balanced block that does not decode
// (even after stripping comments and trailing commas) is skipped whole, so
// objects nested inside a malformed wrapper are never returned.
func Extract(raw string) (json.RawMessage, error) {
	cleaned := stripCodeFences(strings.TrimSpace(raw))
	var firstErr error
	for start := strings.IndexByte(cleaned, '{'); start >= 0; {
		resume := start + 1
		if block := balancedBlock(cleaned[start:]); block != "" {
			obj, err := decodeObject(block)
			if err == nil {
				return obj, nil
			}
			if firstErr == nil {
				firstErr = err
			}
			resume = start + len(block)
		}
		next := strings.IndexByte(cleaned[resume:], '{')
		if next < 0 {
			break
		}
		start = resume + next
	}
	if firstErr == nil {
		firstErr = errors.New("no JSON object found in response")
	}
	return nil, &ResponseError{Reason: "could not parse JSON: " + firstErr.Error(), Raw: raw, Err: firstErr}
}

func decodeObject(block string) (json.RawMessage, error) {
	var obj map[string]json.RawMessage
	err := json.Unmarshal([]byte(block), &obj)
	if err == nil {
		return json.RawMessage(block), nil
	}
	repaired := removeTrailingCommas(stripJSONComments(block))
	if json.Unmarshal([]byte(repaired), &obj) == nil {
		return json.RawMessage(repaired), nil
	}
	return nil, err
}

func stripCodeFences(s string) string {
	s = fenceLine.ReplaceAllString(s, "")
	return trailingFence.ReplaceAllString(s, "")
}

// balancedBlock returns the prefix of s (which starts with '{') up to the
// matching '}', honoring JSON strings and escapes. It returns "" when the
// block never closes.
func balancedBlock(s string) string {
	depth := 0
	inString, escaped := false, false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if escaped {
			escaped = false
			continue
		}
		if inString {
			switch c {
			case '\\':
				escaped = true
			case '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[:i+1]
			}
		}
	}
	return ""
}

// stripJSONComments removes // and /* */ comments outside of string values.
func stripJSONComments(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	inString, escaped := false, false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			b.WriteByte(c)
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		if c == '/' && i+1 < len(s) && s[i+1] == '/' {
			for i+1 < len(s) && s[i+1] != '\n' {
				i++
			}
			continue
		}
		if c == '/' && i+1 < len(s) && s[i+1] == '*' {
			end := strings.Index(s[i+2:], "*/")
			if end < 0 {
				break
			}
			i += end + 3
			continue
		}
		if c == '"' {
			inString = true
		}
		b.WriteByte(c)
	}
	return b.String()
}

// removeTrailingCommas drops commas that directly precede '}' or ']'.
func removeTrailingCommas(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	inString, escaped := false, false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			b.WriteByte(c)
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		if c == ',' {
			j := i + 1
			for j < len(s) && strings.IndexByte(" \t\r\n", s[j]) >= 0 {
				j++
			}
			if j < len(s) && (s[j] == '}' || s[j] == ']') {
				continue
			}
		}
		if c == '"' {
			inString = true
		}
		b.WriteByte(c)
	}
	return b.String()
}
