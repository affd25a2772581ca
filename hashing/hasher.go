package hashing

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"sort"
)

// ErrNonCanonicalizable is returned when a value cannot be serialized to a
// canonical form: cyclic structures, functions, channels, and other opaque
// types.
var ErrNonCanonicalizable = errors.New("hashing: value is not canonicalizable")

// Hash returns the hex-encoded SHA-256 digest of the canonical serialization
// of v. Deeply equal values hash identically regardless of map key order.
func Hash(v any) (string, error) {
	canonical, err := canonicalize(v, make(map[uintptr]struct{}))
	if err != nil {
		return "", err
	}

	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}

// HashOperation returns the digest identifying one (operation, input) pair.
// It is the content address under which operation results are cached.
func HashOperation(operation string, input any) (string, error) {
	return Hash(map[string]any{
		"operation": operation,
		"input":     input,
	})
}

// canonicalize produces a deterministic JSON representation of v.
// Maps are sorted by key; seen guards against cyclic maps and slices.
func canonicalize(v any, seen map[uintptr]struct{}) ([]byte, error) {
	if v == nil {
		return []byte("null"), nil
	}

	switch val := v.(type) {
	case map[string]any:
		return canonicalizeMap(val, seen)
	case []any:
		return canonicalizeSlice(val, seen)
	default:
		return marshalScalar(v)
	}
}

func canonicalizeMap(m map[string]any, seen map[uintptr]struct{}) ([]byte, error) {
	ptr := reflect.ValueOf(m).Pointer()
	if _, ok := seen[ptr]; ok {
		return nil, fmt.Errorf("%w: cyclic map", ErrNonCanonicalizable)
	}
	seen[ptr] = struct{}{}
	defer delete(seen, ptr)

	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	result := []byte("{")
	for i, k := range keys {
		if i > 0 {
			result = append(result, ',')
		}

		keyBytes, err := json.Marshal(k)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrNonCanonicalizable, err)
		}
		result = append(result, keyBytes...)
		result = append(result, ':')

		valBytes, err := canonicalize(m[k], seen)
		if err != nil {
			return nil, err
		}
		result = append(result, valBytes...)
	}
	result = append(result, '}')

	return result, nil
}

func canonicalizeSlice(s []any, seen map[uintptr]struct{}) ([]byte, error) {
	if len(s) > 0 {
		ptr := reflect.ValueOf(s).Pointer()
		if _, ok := seen[ptr]; ok {
			return nil, fmt.Errorf("%w: cyclic slice", ErrNonCanonicalizable)
		}
		seen[ptr] = struct{}{}
		defer delete(seen, ptr)
	}

	result := []byte("[")
	for i, v := range s {
		if i > 0 {
			result = append(result, ',')
		}

		valBytes, err := canonicalize(v, seen)
		if err != nil {
			return nil, err
		}
		result = append(result, valBytes...)
	}
	result = append(result, ']')

	return result, nil
}

// marshalScalar serializes leaf values. encoding/json already sorts map keys
// for typed maps and emits struct fields in declaration order, both of which
// are deterministic; it rejects funcs, channels, and cycles.
func marshalScalar(v any) ([]byte, error) {
	switch reflect.ValueOf(v).Kind() {
	case reflect.Func, reflect.Chan:
		return nil, fmt.Errorf("%w: %T", ErrNonCanonicalizable, v)
	}

	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNonCanonicalizable, err)
	}
	return data, nil
}
