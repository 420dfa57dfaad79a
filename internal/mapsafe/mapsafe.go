package mapsafe

// Get retrieves a typed value from a map[string]any.
// If the key is missing or the type cannot be converted, it returns the default value.
// Numbers decoded from YAML or JSON are converted between int and float64.
func Get[T any](m map[string]any, key string, defaultValue T) T {
	if m == nil {
		return defaultValue
	}

	val, ok := m[key]
	if !ok {
		return defaultValue
	}

	switch any(defaultValue).(type) {
	case int:
		switch x := val.(type) {
		case int:
			return any(x).(T)
		case int64:
			return any(int(x)).(T)
		case uint64:
			return any(int(x)).(T)
		case float64:
			return any(int(x)).(T)
		}
	case float64:
		switch x := val.(type) {
		case float64:
			return any(x).(T)
		case float32:
			return any(float64(x)).(T)
		case int:
			return any(float64(x)).(T)
		case int64:
			return any(float64(x)).(T)
		}
	case string:
		if s, ok := val.(string); ok {
			return any(s).(T)
		}
	case bool:
		if b, ok := val.(bool); ok {
			return any(b).(T)
		}
	case []string:
		switch x := val.(type) {
		case []string:
			return any(x).(T)
		case []any:
			out := make([]string, 0, len(x))
			for _, item := range x {
				s, ok := item.(string)
				if !ok {
					return defaultValue
				}
				out = append(out, s)
			}
			return any(out).(T)
		}
	default:
		// fallback: if type matches exactly
		if v2, ok := val.(T); ok {
			return v2
		}
	}

	return defaultValue
}
