package view

import (
	"strings"
	"time"
)

// SearchText concatenates the textual answers, in key order, for full-text
// indexing. Booleans and empty answers are left out.
func (v *EnhancedView) SearchText() string {
	var parts []string
	for _, k := range v.JSONFields.Keys() {
		if _, ok := v.JSONFields[k].(bool); ok {
			continue
		}
		if s := v.GetJSONFieldAsString(k); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, " ")
}

// SearchDocument is the body indexed for a demande.
func (v *EnhancedView) SearchDocument() map[string]interface{} {
	doc := map[string]interface{}{
		"demandeId":    v.ID,
		"statut":       v.Statut,
		"dateDemande":  v.DateDemande.UTC().Format(time.RFC3339),
		"agentId":      v.AgentID,
		"prestationId": v.PrestationID,
		"schemaKey":    v.SchemaKey,
		"answers":      v.DisplayFields(),
		"answersText":  v.SearchText(),
	}
	if v.AgentNom != "" {
		doc["agentNom"] = v.AgentNom
	}
	if v.PrestationLabel != "" {
		doc["prestationLabel"] = v.PrestationLabel
	}
	return doc
}
