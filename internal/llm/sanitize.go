package llm

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"strings"
)

// SanitizeOptionalFields drops null and empty optional fields so a payload
// with gaps still validates against schema. Required fields are left alone,
// and the walk descends into nested objects and array items. The dropped
// field paths are returned.
func SanitizeOptionalFields(raw []byte, schema map[string]any, logger *slog.Logger) ([]byte, []string, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, nil, fmt.Errorf("sanitize: decode: %w", err)
	}

	var dropped []string
	doc = sanitizeValue(doc, schema, "", &dropped)
	slices.Sort(dropped)

	out, err := json.Marshal(doc)
	if err != nil {
		return nil, dropped, fmt.Errorf("sanitize: encode: %w", err)
	}
	if len(dropped) > 0 {
		logger.Debug("llm.sanitize.dropped", "fields", dropped)
	}
	return out, dropped, nil
}

func sanitizeValue(v any, schema map[string]any, path string, dropped *[]string) any {
	switch t := v.(type) {
	case map[string]any:
		props, _ := schema["properties"].(map[string]any)
		required := requiredSet(schema)
		for k, fv := range t {
			sub, _ := props[k].(map[string]any)
			fp := joinPath(path, k)
			if _, req := required[k]; !req && isEmptyValue(fv) {
				delete(t, k)
				*dropped = append(*dropped, fp)
				continue
			}
			t[k] = sanitizeValue(fv, sub, fp, dropped)
		}
		return t
	case []any:
		items, _ := schema["items"].(map[string]any)
		for i := range t {
			t[i] = sanitizeValue(t[i], items, fmt.Sprintf("%s[%d]", path, i), dropped)
		}
		return t
	case string:
		return strings.TrimSpace(t)
	default:
		return v
	}
}

func requiredSet(schema map[string]any) map[string]struct{} {
	out := map[string]struct{}{}
	switch req := schema["required"].(type) {
	case []string:
		for _, k := range req {
			out[k] = struct{}{}
		}
	case []any:
		for _, k := range req {
			if s, ok := k.(string); ok {
				out[s] = struct{}{}
			}
		}
	}
	return out
}

func isEmptyValue(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		s := strings.TrimSpace(t)
		return s == "" || strings.EqualFold(s, "null")
	case []any:
		return len(t) == 0
	case map[string]any:
		return len(t) == 0
	default:
		return false
	}
}

func joinPath(base, key string) string {
	if base == "" {
		return key
	}
	return base + "." + key
}
