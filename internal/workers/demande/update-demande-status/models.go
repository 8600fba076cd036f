// internal/workers/demande/update-demande-status/models.go
package updatedemandestatus

import (
	"time"

	"github.com/ellaouzi/fos-app-sub002/internal/common/validation"
)

type Input struct {
	DemandeID   int64  `json:"demandeId"`
	Statut      string `json:"statut"`
	Commentaire string `json:"commentaire"`
	TraitePar   int64  `json:"traitePar"`
}

type Output struct {
	DemandeID        int64      `json:"demandeId"`
	PreviousStatut   string     `json:"previousStatut"`
	Statut           string     `json:"statut"`
	DateTraitement   *time.Time `json:"dateTraitement,omitempty"`
	DateFinalisation *time.Time `json:"dateFinalisation,omitempty"`
	Final            bool       `json:"final"`
	Changed          bool       `json:"changed"`
}

var inputValidator = validation.MustCompile(`{
	"type": "object",
	"required": ["demandeId", "statut"],
	"properties": {
		"demandeId": {"type": "integer", "minimum": 1},
		"statut": {"enum": ["SOUMISE", "EN_COURS", "ACCEPTEE", "REFUSEE", "TERMINEE"]},
		"commentaire": {"type": "string"},
		"traitePar": {"type": "integer"}
	}
}`)
