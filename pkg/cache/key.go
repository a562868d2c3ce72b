package cache

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// Key identifies a cached resource snapshot.
type Key struct {
	// Name is the resource name (e.g. "dashboard_overview").
	Name string

	// Params are the filter parameters the snapshot was fetched with.
	Params url.Values

	// Scope separates snapshots of different users ("" for shared data).
	Scope string
}

// String generates a deterministic cache key string.
// Format: name:param1=val1:param2=val2:scope=user
//
// Example:
//
//	patients_list:limit=20:offset=40:status=active:scope=42
func (k Key) String() string {
	parts := []string{strings.Trim(k.Name, ":")}

	if len(k.Params) > 0 {
		keys := make([]string, 0, len(k.Params))
		for key := range k.Params {
			keys = append(keys, key)
		}
		sort.Strings(keys)

		for _, key := range keys {
			values := append([]string(nil), k.Params[key]...)
			sort.Strings(values)
			parts = append(parts, fmt.Sprintf("%s=%s", key, strings.Join(values, ",")))
		}
	}

	if k.Scope != "" {
		parts = append(parts, "scope="+k.Scope)
	}

	return strings.Join(parts, ":")
}
