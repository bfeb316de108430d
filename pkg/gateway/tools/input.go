package tools

import (
	"strings"
	"time"
)

func stringArg(input map[string]any, key string) string {
	v, _ := input[key].(string)
	return strings.TrimSpace(v)
}

func boolArg(input map[string]any, key string) (bool, bool) {
	v, ok := input[key].(bool)
	return v, ok
}

// timeArg parses an RFC 3339 timestamp argument. Returns ok=false
// when the key is absent; malformed values report parseErr.
func timeArg(input map[string]any, key string) (t time.Time, ok bool, parseErr error) {
	raw := stringArg(input, key)
	if raw == "" {
		return time.Time{}, false, nil
	}
	parsed, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, false, err
	}
	return parsed.UTC(), true, nil
}

func intArg(input map[string]any, key string) (int, bool) {
	switch v := input[key].(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	}
	return 0, false
}
