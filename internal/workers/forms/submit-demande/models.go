// internal/workers/forms/submit-demande/models.go
package submitdemande

import (
	"github.com/ellaouzi/fos-app-sub002/internal/common/validation"
	"github.com/ellaouzi/fos-app-sub002/internal/forms/answer"
	"github.com/ellaouzi/fos-app-sub002/internal/forms/render"
)

type Input struct {
	SchemaKey    string       `json:"schemaKey"`
	AgentID      int64        `json:"agentId"`
	PrestationID int64        `json:"prestationId"`
	Values       answer.Map   `json:"values"`
	Files        []FileUpload `json:"files"`
}

// FileUpload is one attachment posted with the form. Content is base64.
type FileUpload struct {
	Field       string `json:"field"`
	Filename    string `json:"filename"`
	ContentType string `json:"contentType"`
	Content     string `json:"content"`
}

type Output struct {
	Accepted      bool                 `json:"accepted"`
	DemandeID     int64                `json:"demandeId,omitempty"`
	Statut        string               `json:"statut,omitempty"`
	Answers       answer.Map           `json:"answers,omitempty"`
	Documents     []answer.DocumentRef `json:"documents"`
	InvalidFields []render.FieldError  `json:"invalidFields"`
}

var inputValidator = validation.MustCompile(`{
	"type": "object",
	"required": ["schemaKey", "agentId", "prestationId"],
	"properties": {
		"schemaKey": {"type": "string", "minLength": 1},
		"agentId": {"type": "integer", "minimum": 1},
		"prestationId": {"type": "integer", "minimum": 1},
		"values": {"type": ["object", "null"]},
		"files": {
			"type": ["array", "null"],
			"items": {
				"type": "object",
				"required": ["field", "filename", "content"],
				"properties": {
					"field": {"type": "string", "minLength": 1},
					"filename": {"type": "string", "minLength": 1},
					"contentType": {"type": "string"},
					"content": {"type": "string"}
				}
			}
		}
	}
}`)
