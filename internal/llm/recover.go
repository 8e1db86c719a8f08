package llm

import (
	"bytes"
	"encoding/json"
	"regexp"
	"strings"
)

// Method records which step of RecoverJSON produced the payload.
type Method string

const (
	MethodNone     Method = ""
	MethodStrict   Method = "strict"
	MethodFenced   Method = "fenced"
	MethodBalanced Method = "balanced"
	MethodLenient  Method = "lenient"
)

var (
	reFence         = regexp.MustCompile("(?s)```(?:json|JSON)?\\s*\\n?(.*?)```")
	reTrailingComma = regexp.MustCompile(`,\s*([}\]])`)
)

// RecoverJSON pulls a JSON object out of a model reply. It tries, in order:
// the whole reply, a fenced code block, the first balanced {...} object, and
// finally a lenient repair of that object. ok is false when nothing parses.
func RecoverJSON(content string) (json.RawMessage, Method, bool) {
	s := strings.TrimSpace(content)
	if s == "" {
		return nil, MethodNone, false
	}
	if isObject([]byte(s)) {
		return json.RawMessage(s), MethodStrict, true
	}
	if m := reFence.FindStringSubmatch(s); m != nil {
		inner := strings.TrimSpace(m[1])
		if isObject([]byte(inner)) {
			return json.RawMessage(inner), MethodFenced, true
		}
	}
	obj, found := firstBalancedObject(s)
	if !found {
		return nil, MethodNone, false
	}
	if isObject([]byte(obj)) {
		return json.RawMessage(obj), MethodBalanced, true
	}
	if fixed := lenientRepair(obj); isObject([]byte(fixed)) {
		return json.RawMessage(fixed), MethodLenient, true
	}
	return nil, MethodNone, false
}

func isObject(b []byte) bool {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || b[0] != '{' {
		return false
	}
	var m map[string]any
	return json.Unmarshal(b, &m) == nil
}

// firstBalancedObject returns the first {...} span whose braces balance,
// ignoring braces inside string literals.
func firstBalancedObject(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	for start >= 0 {
		depth := 0
		inString, escaped := false, false
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
					return s[start : i+1], true
				}
			}
		}
		next := strings.IndexByte(s[start+1:], '{')
		if next < 0 {
			break
		}
		start += next + 1
	}
	return "", false
}

// lenientRepair fixes the slips models make most often: trailing commas and
// typographic quotes.
func lenientRepair(s string) string {
	r := strings.NewReplacer("“", `"`, "”", `"`, "‘", "'", "’", "'")
	s = r.Replace(s)
	return reTrailingComma.ReplaceAllString(s, "$1")
}
