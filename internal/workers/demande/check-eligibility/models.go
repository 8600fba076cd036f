// internal/workers/demande/check-eligibility/models.go
package checkeligibility

import (
	"github.com/ellaouzi/fos-app-sub002/internal/common/validation"
	"github.com/ellaouzi/fos-app-sub002/internal/models"
)

// Reasons an agent is not eligible.
const (
	ReasonClosed       = "PRESTATION_FERMEE"
	ReasonOutOfPeriod  = "HORS_PERIODE"
	ReasonQuotaReached = "QUOTA_ATTEINT"
	ReasonActive       = "DEMANDE_EN_COURS"
)

type Input struct {
	AgentID      int64 `json:"agentId"`
	PrestationID int64 `json:"prestationId"`
}

type Output struct {
	Eligible   bool               `json:"eligible"`
	Reason     string             `json:"reason,omitempty"`
	SchemaKey  string             `json:"schemaKey,omitempty"`
	Prestation *models.Prestation `json:"prestation"`
}

var inputValidator = validation.MustCompile(`{
	"type": "object",
	"required": ["agentId", "prestationId"],
	"properties": {
		"agentId": {"type": "integer", "minimum": 1},
		"prestationId": {"type": "integer", "minimum": 1}
	}
}`)
