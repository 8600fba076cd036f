// internal/workers/demande/build-demande-view/models.go
package builddemandeview

import (
	"github.com/ellaouzi/fos-app-sub002/internal/common/validation"
	"github.com/ellaouzi/fos-app-sub002/internal/forms/view"
)

type Input struct {
	DemandeID int64    `json:"demandeId"`
	Fields    []string `json:"fields"`
}

type Output struct {
	Demande       *view.EnhancedView `json:"demande"`
	DisplayFields map[string]string  `json:"displayFields"`
	// Labels maps answer keys to the field labels of the demande's schema.
	Labels map[string]string `json:"labels"`
}

var inputValidator = validation.MustCompile(`{
	"type": "object",
	"required": ["demandeId"],
	"properties": {
		"demandeId": {"type": "integer", "minimum": 1},
		"fields": {"type": ["array", "null"], "items": {"type": "string"}}
	}
}`)
