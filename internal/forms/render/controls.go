package render

import (
	"errors"
	"fmt"
	"math"
	"path"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/ellaouzi/fos-app-sub002/internal/forms/answer"
	"github.com/ellaouzi/fos-app-sub002/internal/forms/schema"
)

const (
	DefaultMaxFiles          = 3
	DefaultAcceptedFileTypes = ".pdf,.doc,.docx,.jpg,.jpeg,.png"
	MaxFileBytes             = 10 * 1024 * 1024

	dateLayout = "2006-01-02"
)

// ErrInvalidInput is wrapped by every FieldError raised while setting a value.
var ErrInvalidInput = errors.New("invalid input")

// Field error codes.
const (
	CodeMissingRequired = "MISSING_REQUIRED"
	CodeInvalidValue    = "INVALID_VALUE"
	CodeTooManyFiles    = "TOO_MANY_FILES"
	CodeFileRejected    = "FILE_REJECTED"
)

type FieldError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Unwrap lets callers test input rejections with errors.Is(err, ErrInvalidInput).
func (e *FieldError) Unwrap() error {
	if e.Code == CodeMissingRequired {
		return nil
	}
	return ErrInvalidInput
}

func invalid(field, code, format string, args ...interface{}) *FieldError {
	return &FieldError{Field: field, Code: code, Message: fmt.Sprintf(format, args...)}
}

// Control is the live input for one field. Its value is nil until set,
// except checkboxes which start false.
type Control struct {
	field schema.FormField
	value interface{}
}

func newControl(f schema.FormField) *Control {
	c := &Control{field: f}
	if f.Type == schema.TypeCheckbox {
		c.value = false
	}
	return c
}

func (c *Control) Field() schema.FormField { return c.field }
func (c *Control) Name() string            { return c.field.Name }
func (c *Control) Kind() schema.FieldType  { return c.field.Type }

// Value returns the current value; lists are copied.
func (c *Control) Value() interface{} {
	switch v := c.value.(type) {
	case []string:
		return append([]string(nil), v...)
	case []answer.DocumentRef:
		return append([]answer.DocumentRef(nil), v...)
	}
	return c.value
}

// Placeholder reports the hint text, if the schema declares one.
func (c *Control) Placeholder() (string, bool) {
	if c.field.Placeholder == nil {
		return "", false
	}
	return *c.field.Placeholder, true
}

// IsEmpty is true for nil, the empty string and empty lists. A checkbox is
// never empty.
func (c *Control) IsEmpty() bool {
	switch v := c.value.(type) {
	case nil:
		return true
	case string:
		return v == ""
	case []string:
		return len(v) == 0
	case []answer.DocumentRef:
		return len(v) == 0
	}
	return false
}

func (c *Control) collects() bool {
	return c.field.Type != schema.TypeLabel
}

// set parses raw text as the control's kind. On error the previous value is kept.
func (c *Control) set(raw string) error {
	name := c.field.Name
	switch c.field.Type {
	case schema.TypeText, schema.TypeTextarea:
		c.value = raw
	case schema.TypeNumber:
		raw = strings.TrimSpace(raw)
		if raw == "" {
			c.value = nil
			return nil
		}
		n, ok := parseNumber(raw)
		if !ok {
			return invalid(name, CodeInvalidValue, "%q is not a number", raw)
		}
		c.value = n
	case schema.TypeSelect:
		if raw == "" {
			c.value = nil
			return nil
		}
		if !c.hasOption(raw) {
			return invalid(name, CodeInvalidValue, "%q is not one of the proposed options", raw)
		}
		c.value = raw
	case schema.TypeCheckbox:
		b, ok := parseBool(raw)
		if !ok {
			return invalid(name, CodeInvalidValue, "%q is not a boolean", raw)
		}
		c.value = b
	case schema.TypeDate:
		raw = strings.TrimSpace(raw)
		if raw == "" {
			c.value = nil
			return nil
		}
		if _, err := time.Parse(dateLayout, raw); err != nil {
			return invalid(name, CodeInvalidValue, "%q is not a YYYY-MM-DD date", raw)
		}
		c.value = raw
	case schema.TypeMultiselect:
		return c.setList([]string{raw})
	default:
		return invalid(name, CodeInvalidValue, "field of type %s does not take text input", c.field.Type)
	}
	return nil
}

func (c *Control) setList(values []string) error {
	if c.field.Type != schema.TypeMultiselect {
		return invalid(c.field.Name, CodeInvalidValue, "field of type %s does not take a list", c.field.Type)
	}
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v == "" {
			continue
		}
		if !c.hasOption(v) {
			return invalid(c.field.Name, CodeInvalidValue, "%q is not one of the proposed options", v)
		}
		out = append(out, v)
	}
	c.value = out
	return nil
}

// setValue accepts the values a JSON decoder produces.
func (c *Control) setValue(v interface{}) error {
	if v == nil {
		if c.field.Type == schema.TypeCheckbox {
			c.value = false
		} else {
			c.value = nil
		}
		return nil
	}
	switch c.field.Type {
	case schema.TypeNumber:
		if n, ok := answer.Number(v); ok {
			c.value = n
			return nil
		}
	case schema.TypeCheckbox:
		if b, ok := v.(bool); ok {
			c.value = b
			return nil
		}
	case schema.TypeMultiselect:
		switch t := v.(type) {
		case []string:
			return c.setList(t)
		case []interface{}:
			strs := make([]string, 0, len(t))
			for _, item := range t {
				s, ok := item.(string)
				if !ok {
					return invalid(c.field.Name, CodeInvalidValue, "list items must be text")
				}
				strs = append(strs, s)
			}
			return c.setList(strs)
		}
	case schema.TypeFile:
		refs, ok := answer.DocumentRefs(v)
		if !ok {
			return invalid(c.field.Name, CodeInvalidValue, "value is not a document list")
		}
		prev := c.value
		c.value = nil
		for _, ref := range refs {
			if err := c.attach(ref); err != nil {
				c.value = prev
				return err
			}
		}
		return nil
	}
	if s, ok := v.(string); ok {
		return c.set(s)
	}
	return invalid(c.field.Name, CodeInvalidValue, "unexpected %T value", v)
}

func (c *Control) attach(ref answer.DocumentRef) error {
	name := c.field.Name
	if c.field.Type != schema.TypeFile {
		return invalid(name, CodeInvalidValue, "field of type %s does not take documents", c.field.Type)
	}
	current, _ := c.value.([]answer.DocumentRef)
	if len(current) >= c.maxFiles() {
		return invalid(name, CodeTooManyFiles, "at most %d files are accepted", c.maxFiles())
	}
	ext := strings.ToLower(path.Ext(ref.Filename))
	if !c.accepts(ext) {
		return invalid(name, CodeFileRejected, "%s: type %q is not accepted", ref.Filename, ext)
	}
	if ref.Size > MaxFileBytes {
		return invalid(name, CodeFileRejected, "%s exceeds %d MB", ref.Filename, MaxFileBytes/(1024*1024))
	}
	c.value = append(append([]answer.DocumentRef(nil), current...), ref)
	return nil
}

func (c *Control) maxFiles() int {
	if c.field.MaxFiles != nil && *c.field.MaxFiles > 0 {
		return *c.field.MaxFiles
	}
	return DefaultMaxFiles
}

// AcceptedExtensions returns the lower-case extensions, with leading dots,
// that a file control takes.
func (c *Control) AcceptedExtensions() []string {
	accepted := DefaultAcceptedFileTypes
	if c.field.AcceptedFileTypes != nil && strings.TrimSpace(*c.field.AcceptedFileTypes) != "" {
		accepted = *c.field.AcceptedFileTypes
	}
	var exts []string
	for _, part := range strings.Split(accepted, ",") {
		part = strings.ToLower(strings.TrimSpace(part))
		if part == "" {
			continue
		}
		if !strings.HasPrefix(part, ".") {
			part = "." + part
		}
		exts = append(exts, part)
	}
	return exts
}

func (c *Control) accepts(ext string) bool {
	for _, e := range c.AcceptedExtensions() {
		if e == ext {
			return true
		}
	}
	return false
}

func (c *Control) hasOption(v string) bool {
	for _, o := range c.field.Options {
		if o.Value == v {
			return true
		}
	}
	return false
}

// numberPattern is a plain decimal with an optional exponent. Either a dot
// or a French decimal comma separates the fraction; grouping separators,
// underscores and hexadecimal forms are refused.
var numberPattern = regexp.MustCompile(`^[+-]?(\d+([.,]\d*)?|[.,]\d+)([eE][+-]?\d+)?$`)

func parseNumber(raw string) (float64, bool) {
	if !numberPattern.MatchString(raw) {
		return 0, false
	}
	n, err := strconv.ParseFloat(strings.Replace(raw, ",", ".", 1), 64)
	if err != nil || math.IsNaN(n) || math.IsInf(n, 0) {
		return 0, false
	}
	return n, true
}

func parseBool(raw string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "true", "on", "1", "yes", "oui":
		return true, true
	case "false", "off", "0", "no", "non", "":
		return false, true
	}
	return false, false
}

// displayString renders a control value for condition checks.
func displayString(v interface{}) (string, bool) {
	switch t := v.(type) {
	case nil:
		return "", false
	case string:
		return t, true
	case bool:
		return strconv.FormatBool(t), true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case []string:
		return strings.Join(t, ","), true
	}
	return fmt.Sprint(v), true
}
