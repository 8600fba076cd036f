// internal/workers/forms/render-form/models.go
package renderform

import (
	"github.com/ellaouzi/fos-app-sub002/internal/common/validation"
	"github.com/ellaouzi/fos-app-sub002/internal/forms/answer"
	"github.com/ellaouzi/fos-app-sub002/internal/forms/render"
)

// Input names a stored schema or carries the schema text inline. Values
// pre-fill the controls, as when an agent edits a demande.
type Input struct {
	SchemaKey  string     `json:"schemaKey"`
	SchemaJSON string     `json:"schemaJson"`
	Values     answer.Map `json:"values"`
	Action     string     `json:"action"`
}

type Output struct {
	SchemaKey     string              `json:"schemaKey"`
	Title         string              `json:"title"`
	HTML          string              `json:"html"`
	Fields        []render.Descriptor `json:"fields"`
	InvalidFields []render.FieldError `json:"invalidFields"`
}

var inputValidator = validation.MustCompile(`{
	"type": "object",
	"anyOf": [
		{"required": ["schemaKey"]},
		{"required": ["schemaJson"]}
	],
	"properties": {
		"schemaKey": {"type": "string"},
		"schemaJson": {"type": "string"},
		"values": {"type": ["object", "null"]},
		"action": {"type": "string"}
	}
}`)
