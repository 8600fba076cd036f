// internal/workers/forms/load-form-schema/models.go
package loadformschema

import (
	"github.com/ellaouzi/fos-app-sub002/internal/common/validation"
	"github.com/ellaouzi/fos-app-sub002/internal/forms/schema"
)

type Input struct {
	SchemaKey string `json:"schemaKey"`
}

type Output struct {
	Schema     *schema.FormSchema `json:"schema"`
	SchemaJSON string             `json:"schemaJson"`
	FieldCount int                `json:"fieldCount"`
}

var inputValidator = validation.MustCompile(`{
	"type": "object",
	"required": ["schemaKey"],
	"properties": {
		"schemaKey": {"type": "string", "minLength": 1}
	}
}`)
