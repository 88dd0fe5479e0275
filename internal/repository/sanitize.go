package repository

// Sanitize returns a copy of v with empty strings, nils, empty maps and empty
// slices removed at every depth. Containers that become empty after cleaning
// are removed too, so Sanitize(Sanitize(v)) equals Sanitize(v).
func Sanitize(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, child := range val {
			cleaned := Sanitize(child)
			if isEmpty(cleaned) {
				continue
			}
			out[k] = cleaned
		}
		return out
	case []any:
		out := make([]any, 0, len(val))
		for _, child := range val {
			cleaned := Sanitize(child)
			if isEmpty(cleaned) {
				continue
			}
			out = append(out, cleaned)
		}
		return out
	default:
		return v
	}
}

// SanitizeMap is Sanitize for a top-level object.
func SanitizeMap(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return Sanitize(m).(map[string]any)
}

func isEmpty(v any) bool {
	switch val := v.(type) {
	case nil:
		return true
	case string:
		return val == ""
	case map[string]any:
		return len(val) == 0
	case []any:
		return len(val) == 0
	}
	return false
}
