package api

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// List decodes a list response. The backend returns lists either as a bare
// JSON array or wrapped in an object under "items" or an endpoint-specific
// field such as "slots". An object carrying none of the fields, or a null
// body, yields an empty list.
func List[T any](data []byte, fields ...string) ([]T, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return []T{}, nil
	}

	switch trimmed[0] {
	case '[':
		var items []T
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return nil, fmt.Errorf("decode list: %w", err)
		}
		if items == nil {
			items = []T{}
		}
		return items, nil

	case '{':
		var envelope map[string]json.RawMessage
		if err := json.Unmarshal(trimmed, &envelope); err != nil {
			return nil, fmt.Errorf("decode list envelope: %w", err)
		}
		for _, field := range append([]string{"items"}, fields...) {
			raw, ok := envelope[field]
			if !ok {
				continue
			}
			items, err := List[T](raw)
			if err != nil {
				return nil, fmt.Errorf("field %q: %w", field, err)
			}
			return items, nil
		}
		return []T{}, nil

	default:
		return nil, fmt.Errorf("decode list: unexpected JSON value starting with %q", trimmed[0])
	}
}
