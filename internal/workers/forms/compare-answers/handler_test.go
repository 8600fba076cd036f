package compareanswers

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ellaouzi/fos-app-sub002/internal/common/config"
	apperrors "github.com/ellaouzi/fos-app-sub002/internal/common/errors"
	"github.com/ellaouzi/fos-app-sub002/internal/common/logger"
	"github.com/ellaouzi/fos-app-sub002/internal/forms/answer"
	"github.com/ellaouzi/fos-app-sub002/internal/forms/diff"
	"github.com/ellaouzi/fos-app-sub002/internal/forms/schema"
)

// ==========================
// Test Helper Functions
// ==========================

func createTestHandler(t *testing.T) (*Handler, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	loader := schema.NewLoader(schema.NewBundledSource(), logger.NewNoOpLogger())
	return NewHandler(LoadConfig(config.WorkerConfig{}), loader, db, logger.NewTestLogger(t)), mock
}

func change(t *testing.T, changes []diff.FieldChange, name string) diff.FieldChange {
	t.Helper()
	for _, c := range changes {
		if c.FieldName == name {
			return c
		}
	}
	t.Fatalf("no change entry for %s", name)
	return diff.FieldChange{}
}

// ==========================
// Core Functionality Tests
// ==========================

func TestHandler_Execute_AideJeunesModification(t *testing.T) {
	handler, _ := createTestHandler(t)

	output, err := handler.Execute(context.Background(), &Input{
		SchemaKey:  "aide_jeunes",
		OldAnswers: answer.Map{"age": 28.0, "projet": "Plantation de tomates"},
		NewAnswers: answer.Map{"age": 28.0, "projet": "Plantation d'oliviers"},
	})
	require.NoError(t, err)

	require.Len(t, output.Changes, 3)
	assert.Equal(t, "age", output.Changes[0].FieldName)
	assert.False(t, output.Changes[0].HasChanged)

	projet := change(t, output.Changes, "projet")
	assert.True(t, projet.HasChanged)
	assert.Equal(t, "Description du projet agricole", projet.FieldLabel)
	assert.Equal(t, "Plantation de tomates", projet.OldValue)
	assert.Equal(t, "Plantation d'oliviers", projet.NewValue)

	montant := change(t, output.Changes, "montant_demande")
	assert.False(t, montant.HasChanged, "absent on both sides")

	assert.Equal(t, 1, output.ChangedCount)
}

func TestHandler_Execute_OnlyChanged(t *testing.T) {
	handler, _ := createTestHandler(t)

	output, err := handler.Execute(context.Background(), &Input{
		SchemaKey:   "aide_jeunes",
		OldAnswers:  answer.Map{"age": 28.0, "montant_demande": 1000.0},
		NewAnswers:  answer.Map{"age": 29.0, "montant_demande": 1000.0, "hors_schema": "x"},
		OnlyChanged: true,
	})
	require.NoError(t, err)

	require.Len(t, output.Changes, 1)
	assert.Equal(t, "age", output.Changes[0].FieldName)
	assert.Equal(t, 1, output.ChangedCount)
}

func TestHandler_Execute_NothingChanged(t *testing.T) {
	handler, _ := createTestHandler(t)

	output, err := handler.Execute(context.Background(), &Input{
		SchemaKey:   "aide_jeunes",
		OldAnswers:  answer.Map{"age": 28.0},
		NewAnswers:  answer.Map{"age": 28.0},
		OnlyChanged: true,
	})
	require.NoError(t, err)
	assert.NotNil(t, output.Changes)
	assert.Empty(t, output.Changes)
	assert.Zero(t, output.ChangedCount)
}

func TestHandler_Execute_StoredAnswers(t *testing.T) {
	handler, mock := createTestHandler(t)
	mock.ExpectQuery(`SELECT reponse_json FROM demande_prestation`).
		WithArgs(int64(17)).
		WillReturnRows(sqlmock.NewRows([]string{"reponse_json"}).
			AddRow(`{"age":28,"projet":"Plantation de tomates","montant_demande":50000}`))

	output, err := handler.Execute(context.Background(), &Input{
		SchemaKey:  "aide_jeunes",
		DemandeID:  17,
		NewAnswers: answer.Map{"age": 28.0, "projet": "Plantation d'oliviers", "montant_demande": 50000.0},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, output.ChangedCount)
	assert.True(t, change(t, output.Changes, "projet").HasChanged)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHandler_Execute_DocumentsCompareByReference(t *testing.T) {
	handler, _ := createTestHandler(t)

	input, err := parseInput(`{
		"schemaKey": "consultation_technique",
		"oldAnswers": {"problematique": "Irrigation", "photos": [{"id": "2025/03/agent_7/pending_a/p.jpg", "filename": "p.jpg", "size": 10}]},
		"newAnswers": {"problematique": "Irrigation", "photos": [{"id": "2025/03/agent_7/pending_a/p.jpg", "filename": "renamed.jpg", "size": 99}]}
	}`)
	require.NoError(t, err)

	output, err := handler.Execute(context.Background(), input)
	require.NoError(t, err)

	photos := change(t, output.Changes, "photos")
	assert.True(t, photos.IsDocument)
	assert.False(t, photos.HasChanged, "same reference id")
	assert.Zero(t, output.ChangedCount)
}

// ==========================
// Error Handling Tests
// ==========================

func TestHandler_Execute_DemandeNotFound(t *testing.T) {
	handler, mock := createTestHandler(t)
	mock.ExpectQuery(`SELECT reponse_json`).
		WithArgs(int64(99)).
		WillReturnRows(sqlmock.NewRows([]string{"reponse_json"}))

	_, err := handler.Execute(context.Background(), &Input{
		SchemaKey:  "aide_jeunes",
		DemandeID:  99,
		NewAnswers: answer.Map{},
	})
	assert.Equal(t, apperrors.ErrCodeDemandeNotFound, apperrors.CodeOf(err))
}

func TestHandler_Execute_SchemaNotFound(t *testing.T) {
	handler, _ := createTestHandler(t)

	_, err := handler.Execute(context.Background(), &Input{SchemaKey: "absent", NewAnswers: answer.Map{}})
	assert.Equal(t, apperrors.ErrCodeSchemaNotFound, apperrors.CodeOf(err))
}

func TestParseInput(t *testing.T) {
	input, err := parseInput(`{"schemaKey":"aide_jeunes","oldAnswers":null,"newAnswers":{"age":28,"tags":["a","b"]}}`)
	require.NoError(t, err)
	assert.Nil(t, input.OldAnswers)
	assert.Equal(t, 28.0, input.NewAnswers["age"])
	assert.Equal(t, []string{"a", "b"}, input.NewAnswers["tags"])

	_, err = parseInput(`{"schemaKey":"aide_jeunes"}`)
	assert.Equal(t, apperrors.ErrCodeInvalidInput, apperrors.CodeOf(err))
}
