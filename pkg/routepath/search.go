package routepath

import (
	"encoding/json"
	"net/url"
	"sort"
	"strings"
)

// ParseSearch decodes a query string ("?a=1&b=x" or "a=1&b=x") into a
// search map. Each value that is valid JSON is decoded as JSON, so
// "page=2" yields float64(2) and "f=%7B%22a%22%3A1%7D" yields a map.
// Other values stay strings. Repeated keys produce a []any.
func ParseSearch(s string) map[string]any {
	s = strings.TrimPrefix(s, "?")
	out := map[string]any{}
	if s == "" {
		return out
	}

	values, err := url.ParseQuery(s)
	if err != nil && len(values) == 0 {
		return out
	}
	for key, vs := range values {
		if len(vs) == 1 {
			out[key] = parseSearchValue(vs[0])
			continue
		}
		list := make([]any, len(vs))
		for i, v := range vs {
			list[i] = parseSearchValue(v)
		}
		out[key] = list
	}
	return out
}

func parseSearchValue(v string) any {
	var decoded any
	if err := json.Unmarshal([]byte(v), &decoded); err == nil {
		return decoded
	}
	return v
}

// StringifySearch encodes a search map into a query string with a leading
// "?", or "" for an empty map. Keys are sorted. Non-string values are JSON
// encoded; strings that would otherwise parse as JSON are quoted so they
// round-trip through ParseSearch as strings.
func StringifySearch(search map[string]any) string {
	if len(search) == 0 {
		return ""
	}

	keys := make([]string, 0, len(search))
	for k := range search {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		v, ok := stringifySearchValue(search[k])
		if !ok {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(k))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(v))
	}
	if b.Len() == 0 {
		return ""
	}
	return "?" + b.String()
}

func stringifySearchValue(v any) (string, bool) {
	if s, ok := v.(string); ok {
		if json.Valid([]byte(s)) {
			data, _ := json.Marshal(s)
			return string(data), true
		}
		return s, true
	}
	data, err := json.Marshal(v)
	if err != nil {
		return "", false
	}
	return string(data), true
}
