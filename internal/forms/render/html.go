package render

import (
	"html/template"
	"io"
	"strconv"
	"strings"

	"github.com/ellaouzi/fos-app-sub002/internal/forms/answer"
	"github.com/ellaouzi/fos-app-sub002/internal/forms/schema"
)

const SubmitLabel = "Soumettre"

// Descriptor is the serializable view of one control, in display order.
type Descriptor struct {
	Name        string               `json:"name"`
	Label       string               `json:"label"`
	Kind        schema.FieldType     `json:"kind"`
	Required    bool                 `json:"required"`
	Visible     bool                 `json:"visible"`
	Placeholder *string              `json:"placeholder"`
	Options     []schema.FieldOption `json:"options,omitempty"`
	Value       interface{}          `json:"value,omitempty"`
	Accept      []string             `json:"accept,omitempty"`
	MaxFiles    int                  `json:"maxFiles,omitempty"`
}

func (f *Form) Describe() []Descriptor {
	out := make([]Descriptor, 0, len(f.controls))
	for _, c := range f.controls {
		d := Descriptor{
			Name:        c.Name(),
			Label:       c.field.Label,
			Kind:        c.Kind(),
			Required:    c.field.Required,
			Visible:     f.Visible(c),
			Placeholder: c.field.Placeholder,
			Options:     c.field.Options,
			Value:       c.Value(),
		}
		if c.Kind() == schema.TypeFile {
			d.Accept = c.AcceptedExtensions()
			d.MaxFiles = c.maxFiles()
		}
		out = append(out, d)
	}
	return out
}

type optionView struct {
	Value    string
	Label    string
	Selected bool
}

type controlView struct {
	Name           string
	Label          string
	Kind           string
	Required       bool
	Enforced       bool
	Hidden         bool
	Placeholder    string
	HasPlaceholder bool
	Value          string
	Checked        bool
	Options        []optionView
	Accept         string
	Multiple       bool
	Files          []string
	CondField      string
	CondOp         string
	CondValue      string
}

type formView struct {
	Key      string
	Title    string
	Action   string
	Controls []controlView
	Submit   string
}

var formTemplate = template.Must(template.New("form").Parse(`<form class="dynamic-form" data-schema="{{.Key}}" method="post" action="{{.Action}}" enctype="multipart/form-data">
{{- if .Title}}
  <h2>{{.Title}}</h2>
{{- end}}
{{- range .Controls}}
  <div class="form-field field-{{.Kind}}"{{if .Hidden}} hidden{{end}}{{if .CondField}} data-condition-field="{{.CondField}}" data-condition-operator="{{.CondOp}}" data-condition-value="{{.CondValue}}"{{end}}>
  {{- if eq .Kind "label"}}
    <p class="form-label">{{.Label}}</p>
  {{- else if eq .Kind "checkbox"}}
    <label><input type="checkbox" name="{{.Name}}" value="true"{{if .Checked}} checked{{end}}> {{.Label}}</label>
  {{- else}}
    <label for="f-{{.Name}}">{{.Label}}{{if .Required}} <span class="required">*</span>{{end}}</label>
    {{- if eq .Kind "textarea"}}
    <textarea id="f-{{.Name}}" name="{{.Name}}"{{if .HasPlaceholder}} placeholder="{{.Placeholder}}"{{end}}{{if .Enforced}} required{{end}}>{{.Value}}</textarea>
    {{- else if or (eq .Kind "select") (eq .Kind "multiselect")}}
    <select id="f-{{.Name}}" name="{{.Name}}"{{if .Multiple}} multiple{{end}}{{if .Enforced}} required{{end}}>
      {{- if not .Multiple}}
      <option value="">{{if .HasPlaceholder}}{{.Placeholder}}{{end}}</option>
      {{- end}}
      {{- range .Options}}
      <option value="{{.Value}}"{{if .Selected}} selected{{end}}>{{.Label}}</option>
      {{- end}}
    </select>
    {{- else if eq .Kind "file"}}
    <input id="f-{{.Name}}" type="file" name="{{.Name}}" accept="{{.Accept}}"{{if .Multiple}} multiple{{end}}>
      {{- range .Files}}
    <span class="attached">{{.}}</span>
      {{- end}}
    {{- else}}
    <input id="f-{{.Name}}" type="{{.Kind}}" name="{{.Name}}" value="{{.Value}}"{{if .HasPlaceholder}} placeholder="{{.Placeholder}}"{{end}}{{if .Enforced}} required{{end}}>
    {{- end}}
  {{- end}}
  </div>
{{- end}}
  <button type="submit">{{.Submit}}</button>
</form>
`))

// Render writes the form as HTML. action is the POST target and may be empty.
func (f *Form) Render(w io.Writer, action string) error {
	view := formView{
		Key:    f.schema.Key,
		Title:  f.schema.Title,
		Action: action,
		Submit: SubmitLabel,
	}
	for _, c := range f.controls {
		view.Controls = append(view.Controls, f.controlView(c))
	}
	return formTemplate.Execute(w, view)
}

func (f *Form) controlView(c *Control) controlView {
	v := controlView{
		Name:     c.Name(),
		Label:    c.field.Label,
		Kind:     string(c.Kind()),
		Required: c.field.Required,
		Hidden:   !f.Visible(c),
	}
	// a hidden control must not block the browser's own submit
	v.Enforced = v.Required && !v.Hidden
	if p, ok := c.Placeholder(); ok {
		v.Placeholder, v.HasPlaceholder = p, true
	}
	if cond := c.field.Condition; cond != nil {
		v.CondField, v.CondOp, v.CondValue = cond.Field, cond.Operator, cond.Value
	}

	switch val := c.value.(type) {
	case string:
		v.Value = val
	case float64:
		v.Value = strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		v.Checked = val
	case []answer.DocumentRef:
		for _, ref := range val {
			v.Files = append(v.Files, ref.Filename)
		}
	}

	switch c.Kind() {
	case schema.TypeSelect, schema.TypeMultiselect:
		v.Multiple = c.Kind() == schema.TypeMultiselect
		selected := map[string]bool{}
		switch val := c.value.(type) {
		case string:
			selected[val] = true
		case []string:
			for _, s := range val {
				selected[s] = true
			}
		}
		for _, o := range c.field.Options {
			v.Options = append(v.Options, optionView{Value: o.Value, Label: o.Label, Selected: selected[o.Value]})
		}
	case schema.TypeFile:
		v.Accept = strings.Join(c.AcceptedExtensions(), ",")
		v.Multiple = c.maxFiles() > 1
	}
	return v
}
