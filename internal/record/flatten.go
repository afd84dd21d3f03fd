// Package record turns arbitrary JSON input records into the flat
// path -> value form the resolver matches against form fields.
package record

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
)

// Flatten collapses a decoded JSON value into a single-level map. Object
// keys are joined with dots, array elements get bracketed indices, so
// {"member":{"names":["a","b"]}} yields member.names[0] and
// member.names[1]. Scalars are rendered as strings; null becomes the
// empty string.
func Flatten(v any) map[string]string {
	out := make(map[string]string)
	flattenInto(out, "", v)
	return out
}

// FlattenJSON decodes raw JSON and flattens it. Numbers keep their
// source text (no float64 round trip).
func FlattenJSON(data []byte) (map[string]string, error) {
	var v any
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("decode record: %w", err)
	}
	return Flatten(v), nil
}

func flattenInto(out map[string]string, prefix string, v any) {
	switch t := v.(type) {
	case map[string]any:
		for k, child := range t {
			key := k
			if prefix != "" {
				key = prefix + "." + k
			}
			flattenInto(out, key, child)
		}
	case []any:
		for i, child := range t {
			flattenInto(out, prefix+"["+strconv.Itoa(i)+"]", child)
		}
	default:
		if prefix == "" {
			prefix = "value"
		}
		out[prefix] = scalarString(v)
	}
}

func scalarString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case json.Number:
		return t.String()
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return fmt.Sprintf("%v", t)
	}
}

// Keys returns the flattened paths in sorted order, for stable prompt
// construction and logging.
func Keys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
