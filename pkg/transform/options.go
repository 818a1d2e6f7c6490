package transform

import (
	"fmt"
	"math"
)

// Option values arrive from TOML (int64), YAML (int) or JSON (float64)
// decoders, so numeric accessors accept all three.

func stringOpt(opts map[string]any, key, def string) (string, error) {
	v, ok := opts[key]
	if !ok {
		return def, nil
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("option %q: want string, got %T", key, v)
	}
	return s, nil
}

func boolOpt(opts map[string]any, key string, def bool) (bool, error) {
	v, ok := opts[key]
	if !ok {
		return def, nil
	}
	b, ok := v.(bool)
	if !ok {
		return false, fmt.Errorf("option %q: want bool, got %T", key, v)
	}
	return b, nil
}

func int64Opt(opts map[string]any, key string, def int64) (int64, error) {
	v, ok := opts[key]
	if !ok {
		return def, nil
	}
	switch n := v.(type) {
	case int:
		return int64(n), nil
	case int64:
		return n, nil
	case float64:
		if n != math.Trunc(n) {
			return 0, fmt.Errorf("option %q: %v is not an integer", key, n)
		}
		return int64(n), nil
	}
	return 0, fmt.Errorf("option %q: want integer, got %T", key, v)
}

func stringsOpt(opts map[string]any, key string, def []string) ([]string, error) {
	v, ok := opts[key]
	if !ok {
		return def, nil
	}
	switch s := v.(type) {
	case []string:
		return s, nil
	case []any:
		out := make([]string, len(s))
		for i, e := range s {
			str, ok := e.(string)
			if !ok {
				return nil, fmt.Errorf("option %q[%d]: want string, got %T", key, i, e)
			}
			out[i] = str
		}
		return out, nil
	}
	return nil, fmt.Errorf("option %q: want list of strings, got %T", key, v)
}
