package renderform

import (
	"context"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ellaouzi/fos-app-sub002/internal/common/config"
	apperrors "github.com/ellaouzi/fos-app-sub002/internal/common/errors"
	"github.com/ellaouzi/fos-app-sub002/internal/common/logger"
	"github.com/ellaouzi/fos-app-sub002/internal/common/metrics"
	"github.com/ellaouzi/fos-app-sub002/internal/forms/answer"
	"github.com/ellaouzi/fos-app-sub002/internal/forms/render"
	"github.com/ellaouzi/fos-app-sub002/internal/forms/schema"
)

// ==========================
// Test Helper Functions
// ==========================

func createTestHandler(t *testing.T) *Handler {
	loader := schema.NewLoader(schema.NewBundledSource(), logger.NewNoOpLogger())
	return NewHandler(LoadConfig(config.WorkerConfig{}), loader, logger.NewTestLogger(t))
}

func descriptor(t *testing.T, fields []render.Descriptor, name string) render.Descriptor {
	t.Helper()
	for _, d := range fields {
		if d.Name == name {
			return d
		}
	}
	t.Fatalf("no descriptor for %s", name)
	return render.Descriptor{}
}

// ==========================
// Core Functionality Tests
// ==========================

func TestHandler_Execute_StoredSchema(t *testing.T) {
	handler := createTestHandler(t)
	before := testutil.ToFloat64(metrics.FormsRendered.WithLabelValues("aide_jeunes"))

	output, err := handler.Execute(context.Background(), &Input{SchemaKey: "aide_jeunes"})
	require.NoError(t, err)

	assert.Equal(t, "aide_jeunes", output.SchemaKey)
	require.Len(t, output.Fields, 3)
	assert.Equal(t, "age", output.Fields[0].Name)
	assert.Equal(t, "projet", output.Fields[1].Name)
	assert.Equal(t, "montant_demande", output.Fields[2].Name)
	assert.Empty(t, output.InvalidFields)

	assert.Contains(t, output.HTML, `action="/demandes"`)
	assert.Contains(t, output.HTML, render.SubmitLabel)
	assert.Contains(t, output.HTML, `name="projet"`)

	after := testutil.ToFloat64(metrics.FormsRendered.WithLabelValues("aide_jeunes"))
	assert.Equal(t, before+1, after)
}

func TestHandler_Execute_Prefill(t *testing.T) {
	handler := createTestHandler(t)

	output, err := handler.Execute(context.Background(), &Input{
		SchemaKey: "aide_jeunes",
		Action:    "/demandes/17",
		Values: answer.Map{
			"age":             28.0,
			"projet":          "Plantation d'oliviers",
			"montant_demande": "beaucoup",
			"inconnu":         "ignored",
		},
	})
	require.NoError(t, err)

	assert.Equal(t, 28.0, descriptor(t, output.Fields, "age").Value)
	assert.Equal(t, "Plantation d'oliviers", descriptor(t, output.Fields, "projet").Value)
	assert.Nil(t, descriptor(t, output.Fields, "montant_demande").Value)

	require.Len(t, output.InvalidFields, 1)
	assert.Equal(t, "montant_demande", output.InvalidFields[0].Field)
	assert.Equal(t, render.CodeInvalidValue, output.InvalidFields[0].Code)
	assert.Contains(t, output.HTML, `action="/demandes/17"`)
}

func TestHandler_Execute_InlineSchema(t *testing.T) {
	handler := createTestHandler(t)

	text := `{"key":"inline","title":"Inline","fields":[
		{"name":"b","label":"B","type":"text","placeholder":null,"required":false,"order":2,"options":null},
		{"name":"a","label":"A","type":"date","placeholder":null,"required":true,"order":1,"options":null}
	]}`
	output, err := handler.Execute(context.Background(), &Input{SchemaJSON: text})
	require.NoError(t, err)

	assert.Equal(t, "inline", output.SchemaKey)
	require.Len(t, output.Fields, 2)
	assert.Equal(t, "a", output.Fields[0].Name)
	assert.Equal(t, schema.TypeDate, output.Fields[0].Kind)
	assert.Nil(t, output.Fields[1].Placeholder)
	assert.Equal(t, 0, strings.Count(output.HTML, "placeholder="))
}

// ==========================
// Error Handling Tests
// ==========================

func TestHandler_Execute_UnsupportedFieldType(t *testing.T) {
	handler := createTestHandler(t)

	text := `{"key":"k","title":"K","fields":[
		{"name":"carte","label":"Carte","type":"map","placeholder":null,"required":false,"order":1,"options":null}
	]}`
	_, err := handler.Execute(context.Background(), &Input{SchemaJSON: text})
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeUnsupportedFieldType, apperrors.CodeOf(err))
	assert.Contains(t, err.Error(), "carte")
	assert.Contains(t, err.Error(), "map")
}

func TestHandler_Execute_SchemaErrors(t *testing.T) {
	handler := createTestHandler(t)

	_, err := handler.Execute(context.Background(), &Input{SchemaKey: "absent"})
	assert.Equal(t, apperrors.ErrCodeSchemaNotFound, apperrors.CodeOf(err))

	_, err = handler.Execute(context.Background(), &Input{SchemaJSON: `{"key": 3}`})
	assert.Equal(t, apperrors.ErrCodeSchemaMalformed, apperrors.CodeOf(err))

	_, err = handler.Execute(context.Background(), &Input{})
	assert.Equal(t, apperrors.ErrCodeInvalidInput, apperrors.CodeOf(err))
}

func TestParseInput(t *testing.T) {
	_, err := parseInput(`{"values":{}}`)
	assert.Equal(t, apperrors.ErrCodeInvalidInput, apperrors.CodeOf(err))

	input, err := parseInput(`{"schemaKey":"aide_jeunes","values":{"age":28}}`)
	require.NoError(t, err)
	assert.Equal(t, 28.0, input.Values["age"])
}
