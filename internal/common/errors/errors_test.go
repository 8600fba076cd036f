package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStandardError_IsAndCodeOf(t *testing.T) {
	err := fmt.Errorf("load aide_jeunes: %w", NewSchemaNotFoundError("aide_jeunes"))

	assert.True(t, stderrors.Is(err, &StandardError{Code: ErrCodeSchemaNotFound}))
	assert.False(t, stderrors.Is(err, &StandardError{Code: ErrCodeSchemaMalformed}))
	assert.Equal(t, ErrCodeSchemaNotFound, CodeOf(err))
	assert.True(t, HasCode(err, ErrCodeSchemaNotFound))

	assert.Equal(t, ErrCodeInternal, CodeOf(stderrors.New("plain")))
	assert.False(t, HasCode(stderrors.New("plain"), ErrCodeSchemaNotFound))
}

func TestNewUnsupportedFieldTypeError_NamesEverything(t *testing.T) {
	err := NewUnsupportedFieldTypeError("aide_jeunes", "widget", "unknown_widget")

	assert.Contains(t, err.Error(), "aide_jeunes")
	assert.Contains(t, err.Error(), "widget")
	assert.Contains(t, err.Error(), "unknown_widget")
	assert.Equal(t, "unknown_widget", err.Metadata["type"])
	assert.False(t, err.Retryable)
}

func TestNewSchemaMalformedError_NilCause(t *testing.T) {
	err := NewSchemaMalformedError("bourse", nil)
	assert.Equal(t, "schemaKey: bourse", err.Details)
}

func TestConvertToBPMNError(t *testing.T) {
	tests := []struct {
		name            string
		err             *StandardError
		expectedRetries int
	}{
		{"business error is never retried", NewSchemaMalformedError("k", stderrors.New("eof")), 0},
		{"retryable infra error", NewDatabaseInsertFailedError(stderrors.New("conn reset")), 3},
		{"timeout", NewSearchTimeoutError("demandes"), 2},
		{"retryable code but flagged non retryable", &StandardError{Code: ErrCodeQueryExecutionFailed}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bpmn := ConvertToBPMNError(tt.err)
			assert.Equal(t, string(tt.err.Code), bpmn.Code)
			assert.Equal(t, tt.expectedRetries, bpmn.Retries)

			vars := bpmn.ToErrorVariables()
			assert.Equal(t, string(tt.err.Code), vars["errorCode"])
			assert.Equal(t, string(tt.err.Code), vars["originalErrorCode"])
		})
	}
}

func TestConvertToBPMNError_CarriesMetadata(t *testing.T) {
	bpmn := ConvertToBPMNError(NewSchemaNotFoundError("aide_jeunes"))
	assert.Equal(t, "aide_jeunes", bpmn.ToErrorVariables()["schemaKey"])
}

func TestNormalize(t *testing.T) {
	std := NewDemandeNotFoundError(42)
	assert.Same(t, std, Normalize(fmt.Errorf("wrapped: %w", std)))

	n := Normalize(stderrors.New("boom"))
	require.NotNil(t, n)
	assert.Equal(t, ErrCodeInternal, n.Code)
	assert.Equal(t, "boom", n.Details)
}

func TestGetErrorCategory(t *testing.T) {
	tests := map[ErrorCode]string{
		ErrCodeSchemaNotFound:          "SCHEMA",
		ErrCodeUnsupportedFieldType:    "SCHEMA",
		ErrCodeDocumentRejected:        "DOCUMENT",
		ErrCodeInvalidStatusTransition: "DEMANDE",
		ErrCodePrestationClosed:        "DEMANDE",
		ErrCodeSearchQueryFailed:       "SEARCH",
		ErrCodeQueryTimeout:            "DATABASE",
		ErrCodeNotificationSendFailed:  "NOTIFICATION",
		ErrCodeFormValidationFailed:    "VALIDATION",
		ErrCodeInternal:                "OTHER",
	}
	for code, want := range tests {
		assert.Equal(t, want, GetErrorCategory(code), string(code))
	}
}
