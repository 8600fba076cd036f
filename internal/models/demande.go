// internal/models/demande.go
package models

import "time"

// Demande statuses.
const (
	StatutSoumise  = "SOUMISE"
	StatutEnCours  = "EN_COURS"
	StatutAcceptee = "ACCEPTEE"
	StatutRefusee  = "REFUSEE"
	StatutTerminee = "TERMINEE"
)

// Demande is a row of demande_prestation.
type Demande struct {
	ID               int64      `json:"id"`
	PrestationID     int64      `json:"prestationId"`
	AgentID          int64      `json:"agentId"`
	ReponseJSON      string     `json:"reponseJson"`
	DocumentsJSON    *string    `json:"documentsJson,omitempty"`
	Statut           string     `json:"statut"`
	Commentaire      *string    `json:"commentaire,omitempty"`
	DateDemande      time.Time  `json:"dateDemande"`
	DateTraitement   *time.Time `json:"dateTraitement,omitempty"`
	DateFinalisation *time.Time `json:"dateFinalisation,omitempty"`
	TraitePar        *int64     `json:"traitePar,omitempty"`
}

var transitions = map[string][]string{
	StatutSoumise:  {StatutEnCours, StatutAcceptee, StatutRefusee},
	StatutEnCours:  {StatutAcceptee, StatutRefusee},
	StatutAcceptee: {StatutTerminee},
}

// CanTransition reports whether a demande may move from one status to another.
func CanTransition(from, to string) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsFinal reports statuses after which the agent is told the outcome.
func IsFinal(statut string) bool {
	return statut == StatutAcceptee || statut == StatutRefusee || statut == StatutTerminee
}

// IsActive reports statuses that block a second demande for the same offering.
func IsActive(statut string) bool {
	return statut == StatutSoumise || statut == StatutEnCours
}

func IsKnownStatut(statut string) bool {
	switch statut {
	case StatutSoumise, StatutEnCours, StatutAcceptee, StatutRefusee, StatutTerminee:
		return true
	}
	return false
}
