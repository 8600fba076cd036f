// Package schema defines the dynamic form model attached to a benefit
// offering and its text form.
package schema

import (
	"fmt"
	"sort"

	"github.com/goccy/go-json"

	apperrors "github.com/ellaouzi/fos-app-sub002/internal/common/errors"
)

type FieldType string

const (
	TypeText        FieldType = "text"
	TypeTextarea    FieldType = "textarea"
	TypeNumber      FieldType = "number"
	TypeSelect      FieldType = "select"
	TypeCheckbox    FieldType = "checkbox"
	TypeDate        FieldType = "date"
	TypeMultiselect FieldType = "multiselect"
	TypeFile        FieldType = "file"
	TypeLabel       FieldType = "label"
)

// Supported reports whether the renderer has a control for t.
func (t FieldType) Supported() bool {
	switch t {
	case TypeText, TypeTextarea, TypeNumber, TypeSelect, TypeCheckbox,
		TypeDate, TypeMultiselect, TypeFile, TypeLabel:
		return true
	}
	return false
}

// HasOptions reports whether options are meaningful for t.
func (t FieldType) HasOptions() bool {
	return t == TypeSelect || t == TypeMultiselect
}

type FieldOption struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// Condition operators.
const (
	OpEquals    = "eq"
	OpNotEquals = "ne"
)

// Condition makes a field visible only while another field's value matches.
type Condition struct {
	Field    string `json:"field"`
	Operator string `json:"operator"`
	Value    string `json:"value"`
}

// FormField is one question of a form. Placeholder and Options are always
// written, as null when unset, so that null and empty survive a round trip.
type FormField struct {
	Name              string        `json:"name"`
	Label             string        `json:"label"`
	Type              FieldType     `json:"type"`
	Placeholder       *string       `json:"placeholder"`
	Required          bool          `json:"required"`
	Order             int           `json:"order"`
	Options           []FieldOption `json:"options"`
	Condition         *Condition    `json:"condition,omitempty"`
	MaxFiles          *int          `json:"maxFiles,omitempty"`
	AcceptedFileTypes *string       `json:"acceptedFileTypes,omitempty"`
}

// IsDocument reports whether answers to f are document references.
func (f FormField) IsDocument() bool {
	return f.Type == TypeFile
}

type FormSchema struct {
	Key    string      `json:"key"`
	Title  string      `json:"title"`
	Fields []FormField `json:"fields"`
}

// Field returns the field called name.
func (s *FormSchema) Field(name string) (FormField, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return FormField{}, false
}

// Sorted returns a copy of the fields ordered by Order, ties kept in
// declaration order.
func (s *FormSchema) Sorted() []FormField {
	out := make([]FormField, len(s.Fields))
	copy(out, s.Fields)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Order < out[j].Order
	})
	return out
}

// Validate checks the invariants every stored schema must hold.
func (s *FormSchema) Validate() error {
	if s.Key == "" {
		return fmt.Errorf("schema key is empty")
	}
	seen := make(map[string]bool, len(s.Fields))
	for i, f := range s.Fields {
		if f.Name == "" {
			return fmt.Errorf("field %d has no name", i)
		}
		if seen[f.Name] {
			return fmt.Errorf("duplicate field name %q", f.Name)
		}
		seen[f.Name] = true
		if f.Order < 0 {
			return fmt.Errorf("field %q has negative order %d", f.Name, f.Order)
		}
	}
	for _, f := range s.Fields {
		if f.Condition == nil {
			continue
		}
		if !seen[f.Condition.Field] {
			return fmt.Errorf("field %q depends on unknown field %q", f.Name, f.Condition.Field)
		}
		if f.Condition.Operator != OpEquals && f.Condition.Operator != OpNotEquals {
			return fmt.Errorf("field %q has unknown condition operator %q", f.Name, f.Condition.Operator)
		}
	}
	return nil
}

// Serialize returns the compact text form.
func Serialize(s *FormSchema) (string, error) {
	b, err := json.Marshal(s)
	if err != nil {
		return "", fmt.Errorf("serialize schema %s: %w", s.Key, err)
	}
	return string(b), nil
}

// SerializeIndent returns the indented form stored on prestation_ref.
func SerializeIndent(s *FormSchema) (string, error) {
	b, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return "", fmt.Errorf("serialize schema %s: %w", s.Key, err)
	}
	return string(b), nil
}

// Deserialize parses schema text. Unparseable text and text that breaks the
// schema invariants both fail with SCHEMA_MALFORMED.
func Deserialize(text string) (*FormSchema, error) {
	var s FormSchema
	if err := json.Unmarshal([]byte(text), &s); err != nil {
		return nil, apperrors.NewSchemaMalformedError("", err)
	}
	if err := s.Validate(); err != nil {
		return nil, apperrors.NewSchemaMalformedError(s.Key, err)
	}
	return &s, nil
}

// StringPtr is a convenience for building placeholders in code.
func StringPtr(s string) *string {
	return &s
}
