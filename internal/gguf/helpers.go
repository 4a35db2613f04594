package gguf

import "fmt"

// lookup returns the value stored under key asserted to T.
func lookup[T any](kv map[string]Value, key string) (T, bool) {
	v, ok := kv[key].Value.(T)
	return v, ok
}

func GetString(kv map[string]Value, key string) (string, bool) {
	return lookup[string](kv, key)
}

func GetBool(kv map[string]Value, key string) (bool, bool) {
	return lookup[bool](kv, key)
}

// GetUint64 widens any non-negative integer value to uint64.
func GetUint64(kv map[string]Value, key string) (uint64, bool) {
	return asUint64(kv[key].Value)
}

// GetInt64 widens any integer value to int64. uint64 values are
// reinterpreted, not range checked.
func GetInt64(kv map[string]Value, key string) (int64, bool) {
	if u, ok := unsigned(kv[key].Value); ok {
		return int64(u), true
	}
	return signed(kv[key].Value)
}

func GetFloat64(kv map[string]Value, key string) (float64, bool) {
	switch f := kv[key].Value.(type) {
	case float32:
		return float64(f), true
	case float64:
		return f, true
	}
	return 0, false
}

// GetArray returns the array stored under key when every element is a T.
func GetArray[T any](kv map[string]Value, key string) ([]T, bool) {
	arr, ok := lookup[ArrayValue](kv, key)
	if !ok {
		return nil, false
	}
	out := make([]T, len(arr.Values))
	for i, item := range arr.Values {
		if out[i], ok = item.(T); !ok {
			return nil, false
		}
	}
	return out, true
}

func MustGetString(kv map[string]Value, key string) (string, error) {
	if s, ok := GetString(kv, key); ok {
		return s, nil
	}
	return "", fmt.Errorf("missing or invalid %s", key)
}

func MustGetUint64(kv map[string]Value, key string) (uint64, error) {
	if v, ok := GetUint64(kv, key); ok {
		return v, nil
	}
	return 0, fmt.Errorf("missing or invalid %s", key)
}

func unsigned(v any) (uint64, bool) {
	switch n := v.(type) {
	case uint8:
		return uint64(n), true
	case uint16:
		return uint64(n), true
	case uint32:
		return uint64(n), true
	case uint64:
		return n, true
	}
	return 0, false
}

func signed(v any) (int64, bool) {
	switch n := v.(type) {
	case int8:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	}
	return 0, false
}

func asUint64(v any) (uint64, bool) {
	if u, ok := unsigned(v); ok {
		return u, true
	}
	if s, ok := signed(v); ok && s >= 0 {
		return uint64(s), true
	}
	return 0, false
}
