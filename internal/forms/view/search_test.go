package view

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/ellaouzi/fos-app-sub002/internal/forms/answer"
)

func TestSearchText(t *testing.T) {
	v := NewEnhancedView(DemandeView{}, answer.Map{
		"projet":  "Plantation d'oliviers",
		"age":     28.0,
		"urgence": true,
		"note":    nil,
		"photos":  []answer.DocumentRef{{ID: "k1", Filename: "parcelle.jpg"}},
	})

	// keys in order: age, note, photos, projet, urgence
	assert.Equal(t, "28 parcelle.jpg Plantation d'oliviers", v.SearchText())
}

func TestSearchDocument(t *testing.T) {
	v := NewEnhancedView(DemandeView{
		ID:           17,
		Statut:       "SOUMISE",
		DateDemande:  time.Date(2025, 3, 14, 10, 0, 0, 0, time.UTC),
		AgentID:      7,
		PrestationID: 3,
		SchemaKey:    "aide_jeunes",
	}, answer.Map{"age": 28.0})

	doc := v.SearchDocument()
	assert.Equal(t, int64(17), doc["demandeId"])
	assert.Equal(t, "2025-03-14T10:00:00Z", doc["dateDemande"])
	assert.Equal(t, map[string]string{"age": "28"}, doc["answers"])
	assert.Equal(t, "28", doc["answersText"])
	assert.NotContains(t, doc, "agentNom")
}
