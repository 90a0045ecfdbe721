// Package jsonrepair coerces the almost-JSON text chat models return into
// parseable JSON objects.
//
// The heuristics are best effort. Code fences, surrounding prose, trailing
// commas and unquoted keys are handled; anything else is reported as
// ErrInvalidJSON. A reply whose top-level value is an array is rejected
// rather than narrowed to one of its elements.
package jsonrepair

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
)

var ErrInvalidJSON = errors.New("invalid JSON response")

// steps run in order, each on the output of the previous one.
var steps = []func(string) string{
	StripFences,
	ExtractObject,
	StripTrailingCommas,
	QuoteBareKeys,
	NormalizeQuotes,
}

// Repair returns the first rewrite of text that is a valid JSON object.
func Repair(text string) (string, error) {
	s := strings.TrimSpace(text)
	if isObject(s) {
		return s, nil
	}
	if strings.HasPrefix(StripFences(s), "[") {
		return "", fmt.Errorf("%w: top-level array, want an object: %s", ErrInvalidJSON, snippet(text))
	}
	for _, step := range steps {
		s = step(s)
		if isObject(s) {
			return s, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrInvalidJSON, snippet(text))
}

// Clean applies every heuristic regardless of whether the result parses.
func Clean(text string) string {
	s := strings.TrimSpace(text)
	for _, step := range steps {
		s = step(s)
	}
	return s
}

func Parse(text string) (map[string]any, error) {
	s, err := Repair(text)
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := json.Unmarshal([]byte(s), &out); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidJSON, err)
	}
	return out, nil
}

// Decode repairs text and unmarshals it into v.
func Decode(text string, v any) error {
	s, err := Repair(text)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(s), v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidJSON, err)
	}
	return nil
}

// Get picks path out of text, repairing it first when possible.
func Get(text, path string) gjson.Result {
	s, err := Repair(text)
	if err != nil {
		s = Clean(text)
	}
	return gjson.Get(s, path)
}

// StripFences removes a Markdown code fence and its language tag, keeping
// only the fenced body. Text without a fence is returned trimmed.
func StripFences(s string) string {
	s = strings.TrimSpace(s)
	start := strings.Index(s, "```")
	if start < 0 {
		return s
	}
	body := s[start+3:]
	if nl := strings.IndexByte(body, '\n'); nl >= 0 {
		tag := strings.TrimSpace(body[:nl])
		if tag == "" || (len(tag) < 20 && !strings.ContainsAny(tag, " {[\"")) {
			body = body[nl+1:]
		}
	} else {
		body = strings.TrimPrefix(body, "json")
	}
	if end := strings.Index(body, "```"); end >= 0 {
		body = body[:end]
	}
	return strings.TrimSpace(body)
}

// ExtractObject returns the outermost balanced {...} in s, ignoring braces
// inside string literals. When the object is never closed it falls back to
// the span between the first '{' and the last '}'. Text without any '{' is
// returned unchanged.
func ExtractObject(s string) string {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return s
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
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
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}

	if end := strings.LastIndexByte(s, '}'); end > start {
		return s[start : end+1]
	}
	return s[start:]
}

// StripTrailingCommas drops commas that directly precede '}' or ']'.
func StripTrailingCommas(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	inString := false
	escaped := false
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
		if c == '"' {
			inString = true
			b.WriteByte(c)
			continue
		}
		if c == ',' {
			j := i + 1
			for j < len(s) && isSpace(s[j]) {
				j++
			}
			if j < len(s) && (s[j] == '}' || s[j] == ']') {
				continue
			}
		}
		b.WriteByte(c)
	}
	return b.String()
}

// QuoteBareKeys turns {key: 1} into {"key": 1}. Only identifiers that follow
// '{' or ',' and are followed by ':' are touched.
func QuoteBareKeys(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 16)

	inString := false
	escaped := false
	expectKey := false
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

		switch {
		case c == '"':
			inString = true
			expectKey = false
			b.WriteByte(c)
		case c == '{' || c == ',':
			expectKey = true
			b.WriteByte(c)
		case isSpace(c):
			b.WriteByte(c)
		case expectKey && isIdentStart(c):
			j := i
			for j < len(s) && isIdentPart(s[j]) {
				j++
			}
			k := j
			for k < len(s) && isSpace(s[k]) {
				k++
			}
			if k < len(s) && s[k] == ':' {
				b.WriteByte('"')
				b.WriteString(s[i:j])
				b.WriteByte('"')
			} else {
				b.WriteString(s[i:j])
			}
			i = j - 1
			expectKey = false
		default:
			expectKey = false
			b.WriteByte(c)
		}
	}
	return b.String()
}

var smartQuotes = strings.NewReplacer("\u201c", `"`, "\u201d", `"`, "\u201e", `"`, "\u2018", "'", "\u2019", "'")

// NormalizeQuotes turns typographic quotes into ASCII ones. It runs last
// since it also rewrites quotes inside string values.
func NormalizeQuotes(s string) string {
	return smartQuotes.Replace(s)
}

func isObject(s string) bool {
	return strings.HasPrefix(s, "{") && gjson.Valid(s)
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

func isIdentStart(c byte) bool {
	return c == '_' || c == '$' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || c == '-' || (c >= '0' && c <= '9')
}

func snippet(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > 120 {
		return s[:120] + "..."
	}
	return s
}
