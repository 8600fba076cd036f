// internal/workers/demande/notify-demande-status/models.go
package notifydemandestatus

import (
	"github.com/ellaouzi/fos-app-sub002/internal/common/validation"
	"github.com/ellaouzi/fos-app-sub002/internal/models"
)

type Input struct {
	DemandeID       int64  `json:"demandeId"`
	AgentID         int64  `json:"agentId"`
	Statut          string `json:"statut"`
	Commentaire     string `json:"commentaire,omitempty"`
	PrestationLabel string `json:"prestationLabel,omitempty"`
}

type Output struct {
	models.Notification
}

// Delivery channels.
const (
	ChannelEmail = "email"
	ChannelSMS   = "sms"
)

var inputValidator = validation.MustCompile(`{
	"type": "object",
	"required": ["demandeId", "agentId", "statut"],
	"properties": {
		"demandeId": {"type": "integer", "minimum": 1},
		"agentId": {"type": "integer", "minimum": 1},
		"statut": {"enum": ["SOUMISE", "EN_COURS", "ACCEPTEE", "REFUSEE", "TERMINEE"]},
		"commentaire": {"type": "string"},
		"prestationLabel": {"type": "string"}
	}
}`)
