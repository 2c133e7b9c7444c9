package audit

import "strings"

// Keys equal to one of exact, or containing one of fragments, are dropped
// from audit details regardless of case.
var (
	exact     = []string{"ssn", "sin", "pin", "dob"}
	fragments = []string{"password", "passphrase", "token", "secret", "credential", "content", "bytes", "private_key"}
)

func sensitive(key string) bool {
	k := strings.ToLower(key)
	for _, e := range exact {
		if k == e {
			return true
		}
	}
	for _, f := range fragments {
		if strings.Contains(k, f) {
			return true
		}
	}
	return false
}

// Sanitize returns a copy of details without sensitive keys or raw byte
// values. Nested maps and slices are walked recursively.
func Sanitize(details map[string]any) map[string]any {
	if details == nil {
		return nil
	}
	out := make(map[string]any, len(details))
	for k, v := range details {
		if _, raw := v.([]byte); raw || sensitive(k) {
			continue
		}
		out[k] = sanitizeValue(v)
	}
	return out
}

func sanitizeValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return Sanitize(t)
	case []any:
		out := make([]any, 0, len(t))
		for _, x := range t {
			if _, raw := x.([]byte); raw {
				continue
			}
			out = append(out, sanitizeValue(x))
		}
		return out
	default:
		return v
	}
}
