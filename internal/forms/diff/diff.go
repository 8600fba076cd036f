// Package diff compares two answer snapshots of the same form.
package diff

import (
	"reflect"

	"github.com/ellaouzi/fos-app-sub002/internal/forms/answer"
	"github.com/ellaouzi/fos-app-sub002/internal/forms/schema"
)

// FieldChange is the before/after of one schema field.
type FieldChange struct {
	FieldName  string      `json:"fieldName"`
	FieldLabel string      `json:"fieldLabel"`
	OldValue   interface{} `json:"oldValue"`
	NewValue   interface{} `json:"newValue"`
	IsDocument bool        `json:"isDocument"`
	HasChanged bool        `json:"hasChanged"`
}

// Diff walks the schema fields in declaration order and reports one change
// per field. Answer keys with no field are ignored. old may be nil.
func Diff(s *schema.FormSchema, old, updated answer.Map) []FieldChange {
	if s == nil {
		return nil
	}
	changes := make([]FieldChange, 0, len(s.Fields))
	for _, f := range s.Fields {
		oldValue := old[f.Name]
		newValue := updated[f.Name]
		isDoc := f.IsDocument()
		changes = append(changes, FieldChange{
			FieldName:  f.Name,
			FieldLabel: f.Label,
			OldValue:   oldValue,
			NewValue:   newValue,
			IsDocument: isDoc,
			HasChanged: !Equal(oldValue, newValue, isDoc),
		})
	}
	return changes
}

// Changed keeps only the entries whose value changed.
func Changed(changes []FieldChange) []FieldChange {
	var out []FieldChange
	for _, c := range changes {
		if c.HasChanged {
			out = append(out, c)
		}
	}
	return out
}

// Equal compares two answer values. nil only equals nil. Numbers compare by
// value whatever their Go kind. Documents compare by their ordered reference
// ids.
func Equal(a, b interface{}, isDocument bool) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if isDocument {
		ra, okA := answer.DocumentRefs(a)
		rb, okB := answer.DocumentRefs(b)
		if okA && okB {
			return sameIDs(ra, rb)
		}
	}
	if na, ok := answer.Number(a); ok {
		nb, ok := answer.Number(b)
		return ok && na == nb
	}
	la, okA := asList(a)
	lb, okB := asList(b)
	if okA || okB {
		if !okA || !okB || len(la) != len(lb) {
			return false
		}
		for i := range la {
			if !Equal(la[i], lb[i], false) {
				return false
			}
		}
		return true
	}
	switch av := a.(type) {
	case string:
		bv, ok := b.(string)
		return ok && av == bv
	case bool:
		bv, ok := b.(bool)
		return ok && av == bv
	}
	return reflect.DeepEqual(a, b)
}

func sameIDs(a, b []answer.DocumentRef) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].ID != b[i].ID {
			return false
		}
	}
	return true
}

func asList(v interface{}) ([]interface{}, bool) {
	switch t := v.(type) {
	case []interface{}:
		return t, true
	case []string:
		out := make([]interface{}, len(t))
		for i, s := range t {
			out[i] = s
		}
		return out, true
	case []answer.DocumentRef:
		out := make([]interface{}, len(t))
		for i, r := range t {
			out[i] = r
		}
		return out, true
	}
	return nil, false
}
