package view

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ellaouzi/fos-app-sub002/internal/forms/answer"
)

func createTestBase() DemandeView {
	return DemandeView{
		ID:              17,
		Statut:          "SOUMISE",
		DateDemande:     time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC),
		AgentID:         4,
		PrestationID:    2,
		PrestationLabel: "Aide aux Jeunes Agriculteurs",
	}
}

func TestFromStoredAnswers(t *testing.T) {
	v, err := FromStoredAnswers(createTestBase(),
		`{"age":28,"projet":"Plantation d'oliviers","montant":12500.50,"urgent":true,"remarque":null,`+
			`"cultures":["olivier","amandier"],"cin":[{"id":"d1","filename":"cin.pdf"},{"id":"d2","filename":"rib.pdf"}]}`)
	require.NoError(t, err)

	assert.Equal(t, 28.0, v.GetJSONField("age"))
	assert.Nil(t, v.GetJSONField("absent"))
	assert.Nil(t, v.GetJSONField("remarque"))

	tests := map[string]string{
		"age":      "28",
		"projet":   "Plantation d'oliviers",
		"montant":  "12500.5",
		"urgent":   "true",
		"remarque": "",
		"absent":   "",
		"cultures": "olivier, amandier",
		"cin":      "cin.pdf, rib.pdf",
	}
	for key, want := range tests {
		assert.Equal(t, want, v.GetJSONFieldAsString(key), key)
	}

	assert.Equal(t, int64(17), v.ID)
	assert.Equal(t, "SOUMISE", v.Statut)
}

func TestFromStoredAnswers_Invalid(t *testing.T) {
	_, err := FromStoredAnswers(createTestBase(), `{"age":`)
	assert.Error(t, err)

	v, err := FromStoredAnswers(createTestBase(), "")
	require.NoError(t, err)
	assert.Empty(t, v.JSONFields)
}

func TestNewEnhancedView_NilAnswers(t *testing.T) {
	v := NewEnhancedView(createTestBase(), nil)
	assert.NotNil(t, v.JSONFields)
	assert.Equal(t, "", v.GetJSONFieldAsString("age"))
}

func TestDisplayFields(t *testing.T) {
	v := NewEnhancedView(createTestBase(), answer.Map{"age": 28, "projet": "Oliviers"})

	assert.Equal(t, map[string]string{"age": "28", "projet": "Oliviers"}, v.DisplayFields())
	assert.Equal(t, map[string]string{"projet": "Oliviers", "absent": ""}, v.DisplayFields("projet", "absent"))
}

func TestGetJSONFieldAsString_FilesWithoutID(t *testing.T) {
	v, err := FromStoredAnswers(createTestBase(), `{
		"photos": [{"filename": "parcelle.jpg", "contentType": "image/jpeg", "size": 12},
		           {"filename": "plan.pdf", "size": 3}],
		"rib": {"filename": "rib.pdf", "contentType": "application/pdf"}
	}`)
	require.NoError(t, err)

	assert.Equal(t, "parcelle.jpg, plan.pdf", v.GetJSONFieldAsString("photos"))
	assert.Equal(t, "rib.pdf", v.GetJSONFieldAsString("rib"))
}

func TestCommonJSONKeys(t *testing.T) {
	views := []*EnhancedView{
		NewEnhancedView(createTestBase(), answer.Map{"age": 1, "projet": "a", "montant": 3}),
		NewEnhancedView(createTestBase(), answer.Map{"projet": "b", "age": 2}),
		NewEnhancedView(createTestBase(), answer.Map{"age": 3, "projet": "c", "autre": true}),
	}
	assert.Equal(t, []string{"age", "projet"}, CommonJSONKeys(views))
	assert.Nil(t, CommonJSONKeys(nil))
}
