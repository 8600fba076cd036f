package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const demandeInputSchema = `{
	"type": "object",
	"required": ["schemaKey", "agentId"],
	"properties": {
		"schemaKey": {"type": "string", "minLength": 1},
		"agentId": {"type": "integer", "minimum": 1}
	}
}`

func TestValidator_ValidateJSON(t *testing.T) {
	v := MustCompile(demandeInputSchema)

	tests := []struct {
		name          string
		doc           string
		valid         bool
		expectedField string
		expectedCode  string
	}{
		{"valid", `{"schemaKey":"aide_jeunes","agentId":7}`, true, "", ""},
		{"missing agent", `{"schemaKey":"aide_jeunes"}`, false, "agentId", "REQUIRED"},
		{"wrong type", `{"schemaKey":"aide_jeunes","agentId":"7"}`, false, "agentId", "INVALID_TYPE"},
		{"empty key", `{"schemaKey":"","agentId":7}`, false, "schemaKey", "STRING_GTE"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := v.ValidateJSON([]byte(tt.doc))
			require.NoError(t, err)
			assert.Equal(t, tt.valid, res.Valid)
			if !tt.valid {
				require.NotEmpty(t, res.Errors)
				assert.Equal(t, tt.expectedField, res.Errors[0].Field)
				assert.Equal(t, tt.expectedCode, res.Errors[0].Code)
				assert.Contains(t, res.Error(), tt.expectedField)
			}
		})
	}
}

func TestValidator_NotJSON(t *testing.T) {
	v := MustCompile(demandeInputSchema)
	_, err := v.ValidateJSON([]byte("{not json"))
	assert.Error(t, err)
}

func TestCompile_Invalid(t *testing.T) {
	_, err := Compile(`{"type": 12}`)
	assert.Error(t, err)
	assert.Panics(t, func() { MustCompile("{") })
}

func TestValidateInput(t *testing.T) {
	schema := map[string]interface{}{
		"type":     "object",
		"required": []interface{}{"demandeId"},
		"properties": map[string]interface{}{
			"demandeId": map[string]interface{}{"type": "number"},
		},
	}

	res, err := ValidateInput(map[string]interface{}{"demandeId": 3.0}, schema)
	require.NoError(t, err)
	assert.True(t, res.Valid)

	res, err = ValidateInput(map[string]interface{}{}, schema)
	require.NoError(t, err)
	assert.False(t, res.Valid)
	assert.Equal(t, "demandeId", res.Errors[0].Field)
}
