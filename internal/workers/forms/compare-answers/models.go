// internal/workers/forms/compare-answers/models.go
package compareanswers

import (
	"github.com/goccy/go-json"

	"github.com/ellaouzi/fos-app-sub002/internal/common/validation"
	"github.com/ellaouzi/fos-app-sub002/internal/forms/answer"
	"github.com/ellaouzi/fos-app-sub002/internal/forms/diff"
)

// Input compares newAnswers with oldAnswers. When oldAnswers is absent and
// demandeId is set, the stored answers of that demande are used.
type Input struct {
	SchemaKey   string     `json:"schemaKey"`
	DemandeID   int64      `json:"demandeId"`
	OldAnswers  answer.Map `json:"-"`
	NewAnswers  answer.Map `json:"-"`
	OnlyChanged bool       `json:"onlyChanged"`
}

type rawInput struct {
	SchemaKey   string          `json:"schemaKey"`
	DemandeID   int64           `json:"demandeId"`
	OldAnswers  json.RawMessage `json:"oldAnswers"`
	NewAnswers  json.RawMessage `json:"newAnswers"`
	OnlyChanged bool            `json:"onlyChanged"`
}

type Output struct {
	Changes      []diff.FieldChange `json:"changes"`
	ChangedCount int                `json:"changedCount"`
}

var inputValidator = validation.MustCompile(`{
	"type": "object",
	"required": ["schemaKey", "newAnswers"],
	"properties": {
		"schemaKey": {"type": "string", "minLength": 1},
		"demandeId": {"type": "integer", "minimum": 1},
		"oldAnswers": {"type": ["object", "null"]},
		"newAnswers": {"type": "object"},
		"onlyChanged": {"type": "boolean"}
	}
}`)
