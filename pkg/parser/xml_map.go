package parser

import (
	"strings"

	"bahamut/pkg/types"
)

// Helpers for walking the map produced by mxj. Attributes carry a "-"
// prefix, text next to attributes is stored under "#text", and an element
// that occurs more than once becomes a []interface{}. Keys may keep a
// namespace prefix ("gml:posList"), so lookups also match on the local name.

func child(m map[string]interface{}, name string) interface{} {
	if m == nil {
		return nil
	}
	if v, ok := m[name]; ok {
		return v
	}
	for k, v := range m {
		if i := strings.LastIndex(k, ":"); i >= 0 && k[i+1:] == name {
			return v
		}
	}
	return nil
}

func childMap(m map[string]interface{}, name string) map[string]interface{} {
	if v, ok := child(m, name).(map[string]interface{}); ok {
		return v
	}
	return nil
}

// childList returns the raw values of a possibly repeated element.
func childList(m map[string]interface{}, name string) []interface{} {
	switch v := child(m, name).(type) {
	case nil:
		return nil
	case []interface{}:
		return v
	default:
		return []interface{}{v}
	}
}

// children returns the repeated element as maps, turning bare text elements
// into maps holding only "#text".
func children(m map[string]interface{}, name string) []map[string]interface{} {
	var out []map[string]interface{}
	for _, item := range childList(m, name) {
		switch v := item.(type) {
		case map[string]interface{}:
			out = append(out, v)
		case string:
			out = append(out, map[string]interface{}{"#text": v})
		}
	}
	return out
}

func attr(m map[string]interface{}, name string) string {
	if v, ok := child(m, "-"+name).(string); ok {
		return strings.TrimSpace(v)
	}
	for k, v := range m {
		if strings.HasPrefix(k, "-") && strings.HasSuffix(k, ":"+name) {
			if s, ok := v.(string); ok {
				return strings.TrimSpace(s)
			}
		}
	}
	return ""
}

func text(v interface{}) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case map[string]interface{}:
		if s, ok := t["#text"].(string); ok {
			return strings.TrimSpace(s)
		}
	}
	return ""
}

func multilingual(v interface{}) *types.MultilingualString {
	value := text(v)
	if value == "" {
		return nil
	}
	ms := &types.MultilingualString{Value: value}
	if m, ok := v.(map[string]interface{}); ok {
		ms.Lang = attr(m, "lang")
	}
	return ms
}
