// Package answer holds the loosely typed answer bag collected from a form
// submission and its stored text form.
package answer

import (
	"fmt"
	"sort"
	"strings"

	"github.com/goccy/go-json"
)

// Map is keyed by field name. Values are one of string, float64, bool, nil,
// []string or []DocumentRef.
type Map map[string]interface{}

// DocumentRef points at a stored attachment. Two refs are the same document
// when their IDs match.
type DocumentRef struct {
	ID          string `json:"id"`
	Filename    string `json:"filename"`
	ContentType string `json:"contentType,omitempty"`
	Size        int64  `json:"size,omitempty"`
}

// Clone returns a shallow copy with list values copied.
func (m Map) Clone() Map {
	if m == nil {
		return nil
	}
	out := make(Map, len(m))
	for k, v := range m {
		switch t := v.(type) {
		case []string:
			out[k] = append([]string(nil), t...)
		case []DocumentRef:
			out[k] = append([]DocumentRef(nil), t...)
		default:
			out[k] = v
		}
	}
	return out
}

// Keys returns the keys in lexical order.
func (m Map) Keys() []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Encode produces the text stored in demande_prestation.reponse_json.
func Encode(m Map) (string, error) {
	if m == nil {
		m = Map{}
	}
	b, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("encode answers: %w", err)
	}
	return string(b), nil
}

// Decode parses stored answer text. Blank text decodes to an empty map.
// Numbers come back as float64; arrays of strings as []string; arrays of
// document objects as []DocumentRef.
func Decode(text string) (Map, error) {
	if strings.TrimSpace(text) == "" {
		return Map{}, nil
	}
	var raw map[string]interface{}
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		return nil, fmt.Errorf("decode answers: %w", err)
	}
	out := make(Map, len(raw))
	for k, v := range raw {
		out[k] = normalize(v)
	}
	return out, nil
}

func normalize(v interface{}) interface{} {
	list, ok := v.([]interface{})
	if !ok {
		return v
	}
	if len(list) == 0 {
		return []string{}
	}
	if refs, ok := DocumentRefs(list); ok {
		return refs
	}
	strs := make([]string, 0, len(list))
	for _, item := range list {
		s, ok := item.(string)
		if !ok {
			return list
		}
		strs = append(strs, s)
	}
	return strs
}

// Number reports v as a float64 when it holds any Go numeric kind.
func Number(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

// DocumentRefs reads document references from a typed value or from the
// generic form a JSON decoder produces. The second result is false when v is
// not a document value.
func DocumentRefs(v interface{}) ([]DocumentRef, bool) {
	switch t := v.(type) {
	case []DocumentRef:
		return t, true
	case DocumentRef:
		return []DocumentRef{t}, true
	case *DocumentRef:
		if t == nil {
			return nil, false
		}
		return []DocumentRef{*t}, true
	case map[string]interface{}:
		ref, ok := refFromObject(t)
		if !ok {
			return nil, false
		}
		return []DocumentRef{ref}, true
	case []interface{}:
		refs := make([]DocumentRef, 0, len(t))
		for _, item := range t {
			obj, ok := item.(map[string]interface{})
			if !ok {
				return nil, false
			}
			ref, ok := refFromObject(obj)
			if !ok {
				return nil, false
			}
			refs = append(refs, ref)
		}
		return refs, len(refs) > 0
	}
	return nil, false
}

// DocumentID returns the reference id of a single document value.
func DocumentID(v interface{}) (string, bool) {
	refs, ok := DocumentRefs(v)
	if !ok || len(refs) != 1 {
		return "", false
	}
	return refs[0].ID, true
}

func refFromObject(obj map[string]interface{}) (DocumentRef, bool) {
	id, ok := obj["id"].(string)
	if !ok || id == "" {
		return DocumentRef{}, false
	}
	ref := DocumentRef{ID: id}
	ref.Filename, _ = obj["filename"].(string)
	ref.ContentType, _ = obj["contentType"].(string)
	if size, ok := Number(obj["size"]); ok {
		ref.Size = int64(size)
	}
	return ref, true
}
