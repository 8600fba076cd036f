// Package render turns a form schema into live controls and collects the
// answers of one submission.
package render

import (
	"errors"
	"fmt"
	"net/url"

	apperrors "github.com/ellaouzi/fos-app-sub002/internal/common/errors"
	"github.com/ellaouzi/fos-app-sub002/internal/forms/answer"
	"github.com/ellaouzi/fos-app-sub002/internal/forms/schema"
)

// Result is the outcome of one Submit call.
type Result struct {
	Accepted bool         `json:"accepted"`
	Answers  answer.Map   `json:"answers,omitempty"`
	Errors   []FieldError `json:"errors,omitempty"`
}

// Form is a single editing session. It is not safe for concurrent use.
type Form struct {
	schema   *schema.FormSchema
	controls []*Control
	byName   map[string]*Control
	onSubmit func(answer.Map)
}

// Build creates one control per field in display order. It fails on the
// first field whose type has no control.
func Build(s *schema.FormSchema, onSubmit func(answer.Map)) (*Form, error) {
	if s == nil {
		return nil, apperrors.NewInvalidInputError("schema is nil")
	}
	sorted := s.Sorted()
	f := &Form{
		schema:   s,
		controls: make([]*Control, 0, len(sorted)),
		byName:   make(map[string]*Control, len(sorted)),
		onSubmit: onSubmit,
	}
	for _, field := range sorted {
		if !field.Type.Supported() {
			return nil, apperrors.NewUnsupportedFieldTypeError(s.Key, field.Name, string(field.Type))
		}
		c := newControl(field)
		f.controls = append(f.controls, c)
		f.byName[field.Name] = c
	}
	return f, nil
}

func (f *Form) Key() string   { return f.schema.Key }
func (f *Form) Title() string { return f.schema.Title }

// Controls returns the controls in display order.
func (f *Form) Controls() []*Control {
	return append([]*Control(nil), f.controls...)
}

func (f *Form) Control(name string) (*Control, bool) {
	c, ok := f.byName[name]
	return c, ok
}

func (f *Form) lookup(name string) (*Control, error) {
	c, ok := f.byName[name]
	if !ok {
		return nil, invalid(name, CodeInvalidValue, "unknown field")
	}
	return c, nil
}

// Set parses text input into the named control.
func (f *Form) Set(name, raw string) error {
	c, err := f.lookup(name)
	if err != nil {
		return err
	}
	return c.set(raw)
}

// SetValues replaces the selection of a multiselect control.
func (f *Form) SetValues(name string, values []string) error {
	c, err := f.lookup(name)
	if err != nil {
		return err
	}
	return c.setList(values)
}

// SetValue accepts a decoded JSON value for the named control.
func (f *Form) SetValue(name string, v interface{}) error {
	c, err := f.lookup(name)
	if err != nil {
		return err
	}
	return c.setValue(v)
}

// AttachFile adds a document reference to a file control, enforcing the
// field's count and type limits.
func (f *Form) AttachFile(name string, ref answer.DocumentRef) error {
	c, err := f.lookup(name)
	if err != nil {
		return err
	}
	return c.attach(ref)
}

// Fill sets every known key of values. Unknown keys are ignored.
func (f *Form) Fill(values answer.Map) []FieldError {
	var errs []FieldError
	for _, c := range f.controls {
		v, ok := values[c.Name()]
		if !ok || !c.collects() {
			continue
		}
		if err := c.setValue(v); err != nil {
			errs = append(errs, asFieldError(c.Name(), err))
		}
	}
	return errs
}

// Bind fills controls from a posted HTML form. An absent checkbox means
// false; file controls are filled through AttachFile.
func (f *Form) Bind(values url.Values) []FieldError {
	var errs []FieldError
	for _, c := range f.controls {
		name := c.Name()
		var err error
		switch c.Kind() {
		case schema.TypeLabel, schema.TypeFile:
			continue
		case schema.TypeCheckbox:
			err = c.set(values.Get(name))
		case schema.TypeMultiselect:
			if _, ok := values[name]; !ok {
				continue
			}
			err = c.setList(values[name])
		default:
			if _, ok := values[name]; !ok {
				continue
			}
			err = c.set(values.Get(name))
		}
		if err != nil {
			errs = append(errs, asFieldError(name, err))
		}
	}
	return errs
}

// Visible evaluates the control's condition against the current values.
func (f *Form) Visible(c *Control) bool {
	cond := c.field.Condition
	if cond == nil {
		return true
	}
	var current string
	present := false
	if ref, ok := f.byName[cond.Field]; ok {
		current, present = displayString(ref.value)
	}
	switch cond.Operator {
	case schema.OpNotEquals:
		return !present || current != cond.Value
	default:
		return present && current == cond.Value
	}
}

// Validate reports required controls that are visible and empty.
func (f *Form) Validate() []FieldError {
	var errs []FieldError
	for _, c := range f.controls {
		if !c.collects() || !c.field.Required || !f.Visible(c) {
			continue
		}
		if c.IsEmpty() {
			errs = append(errs, FieldError{
				Field:   c.Name(),
				Code:    CodeMissingRequired,
				Message: fmt.Sprintf("%s est obligatoire", c.field.Label),
			})
		}
	}
	return errs
}

// Submit validates the form. When nothing is missing it builds a new answer
// map in display order and hands it to the callback exactly once.
func (f *Form) Submit() Result {
	if errs := f.Validate(); len(errs) > 0 {
		return Result{Accepted: false, Errors: errs}
	}
	answers := make(answer.Map, len(f.controls))
	for _, c := range f.controls {
		if !c.collects() || !f.Visible(c) {
			continue
		}
		answers[c.Name()] = c.Value()
	}
	if f.onSubmit != nil {
		f.onSubmit(answers)
	}
	return Result{Accepted: true, Answers: answers}
}

func asFieldError(name string, err error) FieldError {
	var fe *FieldError
	if errors.As(err, &fe) {
		return *fe
	}
	return FieldError{Field: name, Code: CodeInvalidValue, Message: err.Error()}
}
