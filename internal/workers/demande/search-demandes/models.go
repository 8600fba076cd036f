// internal/workers/demande/search-demandes/models.go
package searchdemandes

import (
	"github.com/ellaouzi/fos-app-sub002/internal/common/validation"
)

type Input struct {
	Query        string   `json:"query,omitempty"`
	Statuts      []string `json:"statuts,omitempty"`
	PrestationID int64    `json:"prestationId,omitempty"`
	AgentID      int64    `json:"agentId,omitempty"`
	From         int      `json:"from,omitempty"`
	Size         int      `json:"size,omitempty"`
}

// Hit is one indexed demande.
type Hit struct {
	DemandeID       int64                  `json:"demandeId"`
	Score           float64                `json:"score"`
	Statut          string                 `json:"statut"`
	PrestationLabel string                 `json:"prestationLabel,omitempty"`
	AgentNom        string                 `json:"agentNom,omitempty"`
	DateDemande     string                 `json:"dateDemande,omitempty"`
	Answers         map[string]interface{} `json:"answers,omitempty"`
}

type Output struct {
	Hits  []Hit `json:"hits"`
	Total int64 `json:"total"`
}

var inputValidator = validation.MustCompile(`{
	"type": "object",
	"properties": {
		"query": {"type": "string"},
		"statuts": {
			"type": "array",
			"items": {"enum": ["SOUMISE", "EN_COURS", "ACCEPTEE", "REFUSEE", "TERMINEE"]}
		},
		"prestationId": {"type": "integer", "minimum": 0},
		"agentId": {"type": "integer", "minimum": 0},
		"from": {"type": "integer", "minimum": 0},
		"size": {"type": "integer", "minimum": 0}
	}
}`)
