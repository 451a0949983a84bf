package llm

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
)

// StripCodeFences removes a surrounding ```json ... ``` (or bare ```) fence if present.
func StripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		// drop the info string ("json", "JSON", ...)
		s = s[nl+1:]
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// NormalizeViolationsJSON makes a structured reply friendlier to the strict schema:
//   - strips code fences
//   - wraps a bare array into {"violations": [...]}
//   - renames known synonyms (issues -> violations, rule -> rule_name, reason -> explanation)
//   - removes unknown keys and coerces scalar values to strings
//
// It returns the normalized JSON and a list of what was changed.
func NormalizeViolationsJSON(raw []byte, logger *slog.Logger) ([]byte, []string, error) {
	if logger == nil {
		logger = slog.Default()
	}
	body := []byte(StripCodeFences(string(raw)))

	var top any
	if err := json.Unmarshal(body, &top); err != nil {
		return nil, nil, fmt.Errorf("sanitize: decode: %w", err)
	}

	changed := make([]string, 0, 4)
	var m map[string]any
	switch t := top.(type) {
	case []any:
		m = map[string]any{"violations": t}
		changed = append(changed, "array->violations")
	case map[string]any:
		m = t
	default:
		return nil, nil, fmt.Errorf("sanitize: unexpected top-level %T", top)
	}

	rename := func(obj map[string]any, from, to string) {
		if v, ok := obj[from]; ok {
			if _, exists := obj[to]; !exists {
				obj[to] = v
			}
			delete(obj, from)
			changed = append(changed, from+"->"+to)
		}
	}

	rename(m, "issues", "violations")
	rename(m, "findings", "violations")
	for k := range m {
		if k != "violations" {
			delete(m, k)
			changed = append(changed, k+"(unknown)")
		}
	}
	if m["violations"] == nil {
		m["violations"] = []any{}
	}

	items, ok := m["violations"].([]any)
	if !ok {
		return nil, changed, fmt.Errorf("sanitize: violations is %T, not an array", m["violations"])
	}
	out := make([]any, 0, len(items))
	for _, it := range items {
		switch v := it.(type) {
		case string:
			// a bare string is an explanation without attribution
			if s := strings.TrimSpace(v); s != "" {
				out = append(out, map[string]any{"explanation": s})
			}
		case map[string]any:
			rename(v, "rule", "rule_name")
			rename(v, "ruleName", "rule_name")
			rename(v, "name", "rule_name")
			rename(v, "reason", "explanation")
			rename(v, "details", "explanation")
			rename(v, "message", "explanation")
			item := map[string]any{}
			for _, k := range []string{"rule_name", "explanation"} {
				if val, ok := v[k]; ok && val != nil {
					item[k] = strings.TrimSpace(fmt.Sprint(val))
				}
			}
			for k := range v {
				if k != "rule_name" && k != "explanation" {
					changed = append(changed, k+"(unknown)")
				}
			}
			out = append(out, item)
		default:
			changed = append(changed, "item(type)")
		}
	}
	m["violations"] = out

	b, err := json.Marshal(m)
	if err != nil {
		return nil, changed, fmt.Errorf("sanitize: encode: %w", err)
	}
	if len(changed) > 0 {
		logger.Warn("llm.reply.normalize_sanitize", "changed", changed)
	}
	return b, changed, nil
}
