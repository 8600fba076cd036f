// Package errors provides standardized error handling for BPMN workflow integration.
package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

// Form schema errors
const (
	ErrCodeSchemaNotFound         ErrorCode = "SCHEMA_NOT_FOUND"
	ErrCodeSchemaMalformed        ErrorCode = "SCHEMA_MALFORMED"
	ErrCodeUnsupportedFieldType   ErrorCode = "UNSUPPORTED_FIELD_TYPE"
	ErrCodeFormValidationFailed   ErrorCode = "FORM_VALIDATION_FAILED"
	ErrCodeInvalidInput           ErrorCode = "INVALID_INPUT"
	ErrCodeDocumentRejected       ErrorCode = "DOCUMENT_REJECTED"
	ErrCodeDocumentStorageFailed  ErrorCode = "DOCUMENT_STORAGE_FAILED"
	ErrCodeSchemaCacheUnavailable ErrorCode = "SCHEMA_CACHE_UNAVAILABLE"
)

// Demande / prestation errors
const (
	ErrCodeDemandeNotFound         ErrorCode = "DEMANDE_NOT_FOUND"
	ErrCodePrestationNotFound      ErrorCode = "PRESTATION_NOT_FOUND"
	ErrCodePrestationClosed        ErrorCode = "PRESTATION_CLOSED"
	ErrCodeInvalidStatusTransition ErrorCode = "INVALID_STATUS_TRANSITION"
	ErrCodeRecipientNotFound       ErrorCode = "RECIPIENT_NOT_FOUND"
)

// Infrastructure errors
const (
	ErrCodeDatabaseConnectionFailed ErrorCode = "DATABASE_CONNECTION_FAILED"
	ErrCodeQueryExecutionFailed     ErrorCode = "QUERY_EXECUTION_FAILED"
	ErrCodeQueryTimeout             ErrorCode = "QUERY_TIMEOUT"
	ErrCodeDatabaseInsertFailed     ErrorCode = "DATABASE_INSERT_FAILED"

	ErrCodeSearchQueryFailed ErrorCode = "SEARCH_QUERY_FAILED"
	ErrCodeSearchTimeout     ErrorCode = "SEARCH_TIMEOUT"
	ErrCodeIndexingFailed    ErrorCode = "SEARCH_INDEXING_FAILED"

	ErrCodeNotificationSendFailed ErrorCode = "NOTIFICATION_SEND_FAILED"

	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

func (e *StandardError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("StandardError[%s]: %s (%s)", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// Is matches any StandardError carrying the same code, so callers can write
// errors.Is(err, &StandardError{Code: ErrCodeSchemaNotFound}).
func (e *StandardError) Is(target error) bool {
	t, ok := target.(*StandardError)
	return ok && t.Code == e.Code
}

// WithMetadata attaches a key to the error metadata and returns the error.
func (e *StandardError) WithMetadata(key string, value interface{}) *StandardError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]interface{})
	}
	e.Metadata[key] = value
	return e
}

// CodeOf returns the code of the first StandardError in err's chain, or
// ErrCodeInternal when there is none.
func CodeOf(err error) ErrorCode {
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr.Code
	}
	return ErrCodeInternal
}

// HasCode reports whether err carries the given code.
func HasCode(err error, code ErrorCode) bool {
	var stdErr *StandardError
	return stderrors.As(err, &stdErr) && stdErr.Code == code
}

func newError(code ErrorCode, message, details string, retryable bool) *StandardError {
	return &StandardError{
		Code:      code,
		Message:   message,
		Details:   details,
		Retryable: retryable,
		Timestamp: time.Now().UTC(),
	}
}

// ==========================
// 2. BPMN Error Integration
// ==========================

// BPMNError represents an error that can be thrown to the Camunda workflow engine.
type BPMNError struct {
	Code           string                 `json:"code"`
	Message        string                 `json:"message"`
	Details        string                 `json:"details,omitempty"`
	Retryable      bool                   `json:"retryable"`
	Retries        int                    `json:"retries"`
	ErrorVariables map[string]interface{} `json:"errorVariables,omitempty"`
}

func (e *BPMNError) Error() string {
	return fmt.Sprintf("BPMNError[%s]: %s", e.Code, e.Message)
}

// ToErrorVariables returns a map suitable for setting Camunda job fail variables.
func (e *BPMNError) ToErrorVariables() map[string]interface{} {
	vars := map[string]interface{}{
		"errorCode":    e.Code,
		"errorMessage": e.Message,
		"errorDetails": e.Details,
		"retryable":    e.Retryable,
	}
	for k, v := range e.ErrorVariables {
		vars[k] = v
	}
	return vars
}

// ==========================
// 3. Error Constructors
// ==========================

// NewSchemaNotFoundError reports a schema key with no stored text.
func NewSchemaNotFoundError(schemaKey string) *StandardError {
	return newError(ErrCodeSchemaNotFound, "Form schema unavailable",
		fmt.Sprintf("schemaKey: %s", schemaKey), false).
		WithMetadata("schemaKey", schemaKey)
}

// NewSchemaMalformedError reports stored schema text that cannot be used.
func NewSchemaMalformedError(schemaKey string, cause error) *StandardError {
	details := fmt.Sprintf("schemaKey: %s", schemaKey)
	if cause != nil {
		details = fmt.Sprintf("schemaKey: %s, error: %s", schemaKey, cause.Error())
	}
	return newError(ErrCodeSchemaMalformed, "Form schema is malformed", details, false).
		WithMetadata("schemaKey", schemaKey)
}

// NewUnsupportedFieldTypeError names the schema, field and type that cannot be rendered.
func NewUnsupportedFieldTypeError(schemaKey, fieldName, fieldType string) *StandardError {
	return newError(ErrCodeUnsupportedFieldType, "Unsupported form field type",
		fmt.Sprintf("schemaKey: %s, field: %s, type: %q", schemaKey, fieldName, fieldType), false).
		WithMetadata("schemaKey", schemaKey).
		WithMetadata("field", fieldName).
		WithMetadata("type", fieldType)
}

func NewFormValidationFailedError(details string) *StandardError {
	return newError(ErrCodeFormValidationFailed, "Form answers failed validation", details, false)
}

func NewInvalidInputError(details string) *StandardError {
	return newError(ErrCodeInvalidInput, "Invalid job input", details, false)
}

func NewDocumentRejectedError(filename, reason string) *StandardError {
	return newError(ErrCodeDocumentRejected, "Document rejected",
		fmt.Sprintf("file: %s, reason: %s", filename, reason), false)
}

func NewDocumentStorageFailedError(err error) *StandardError {
	return newError(ErrCodeDocumentStorageFailed, "Document storage operation failed", err.Error(), true)
}

func NewSchemaCacheUnavailableError(err error) *StandardError {
	return newError(ErrCodeSchemaCacheUnavailable, "Schema cache unavailable", err.Error(), true)
}

func NewDemandeNotFoundError(demandeID int64) *StandardError {
	return newError(ErrCodeDemandeNotFound, "Demande not found",
		fmt.Sprintf("demandeId: %d", demandeID), false)
}

func NewPrestationNotFoundError(prestationID int64) *StandardError {
	return newError(ErrCodePrestationNotFound, "Prestation not found",
		fmt.Sprintf("prestationId: %d", prestationID), false)
}

func NewPrestationClosedError(prestationID int64, reason string) *StandardError {
	return newError(ErrCodePrestationClosed, "Prestation is not accepting demandes",
		fmt.Sprintf("prestationId: %d, reason: %s", prestationID, reason), false)
}

func NewInvalidStatusTransitionError(from, to string) *StandardError {
	return newError(ErrCodeInvalidStatusTransition, "Invalid demande status transition",
		fmt.Sprintf("from: %s, to: %s", from, to), false)
}

func NewRecipientNotFoundError(agentID int64) *StandardError {
	return newError(ErrCodeRecipientNotFound, "Notification recipient not found",
		fmt.Sprintf("agentId: %d", agentID), false)
}

func NewDatabaseConnectionFailedError(err error) *StandardError {
	return newError(ErrCodeDatabaseConnectionFailed, "Database connection error", err.Error(), true)
}

func NewQueryExecutionFailedError(query string, err error) *StandardError {
	return newError(ErrCodeQueryExecutionFailed, "Database query execution error",
		fmt.Sprintf("query: %s, error: %s", query, err.Error()), true)
}

func NewQueryTimeoutError(query string) *StandardError {
	return newError(ErrCodeQueryTimeout, "Database query timeout",
		fmt.Sprintf("query: %s", query), true)
}

func NewDatabaseInsertFailedError(err error) *StandardError {
	return newError(ErrCodeDatabaseInsertFailed, "Database insert operation failed", err.Error(), true)
}

func NewSearchQueryFailedError(index string, err error) *StandardError {
	return newError(ErrCodeSearchQueryFailed, "Elasticsearch query error",
		fmt.Sprintf("index: %s, error: %s", index, err.Error()), true)
}

func NewSearchTimeoutError(index string) *StandardError {
	return newError(ErrCodeSearchTimeout, "Elasticsearch query timeout",
		fmt.Sprintf("index: %s", index), true)
}

func NewIndexingFailedError(index string, err error) *StandardError {
	return newError(ErrCodeIndexingFailed, "Elasticsearch indexing error",
		fmt.Sprintf("index: %s, error: %s", index, err.Error()), true)
}

func NewNotificationSendFailedError(channel string, err error) *StandardError {
	return newError(ErrCodeNotificationSendFailed, "Notification delivery failed",
		fmt.Sprintf("channel: %s, error: %s", channel, err.Error()), true)
}

// ==========================
// 4. Error Conversion to BPMN
// ==========================

// GetRetryCount returns the recommended retry count for a code.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeDatabaseConnectionFailed,
		ErrCodeQueryExecutionFailed,
		ErrCodeDatabaseInsertFailed,
		ErrCodeSearchQueryFailed,
		ErrCodeIndexingFailed,
		ErrCodeDocumentStorageFailed,
		ErrCodeNotificationSendFailed:
		return 3

	case ErrCodeQueryTimeout,
		ErrCodeSearchTimeout,
		ErrCodeSchemaCacheUnavailable:
		return 2

	default:
		return 0 // business errors are thrown, never retried
	}
}

// ConvertToBPMNError converts a StandardError to a BPMNError for Camunda.
// BPMN codes are the internal codes verbatim.
func ConvertToBPMNError(stdErr *StandardError) *BPMNError {
	retries := GetRetryCount(stdErr.Code)
	if !stdErr.Retryable {
		retries = 0
	}

	vars := map[string]interface{}{
		"originalErrorCode": string(stdErr.Code),
		"timestamp":         stdErr.Timestamp.Format(time.RFC3339),
	}
	for k, v := range stdErr.Metadata {
		vars[k] = v
	}

	return &BPMNError{
		Code:           string(stdErr.Code),
		Message:        stdErr.Message,
		Details:        stdErr.Details,
		Retryable:      stdErr.Retryable,
		Retries:        retries,
		ErrorVariables: vars,
	}
}

// ==========================
// 5. Utility Functions
// ==========================

// IsRetryableErrorCode checks if an error code is retryable.
func IsRetryableErrorCode(code ErrorCode) bool {
	return GetRetryCount(code) > 0
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.HasPrefix(codeStr, "SCHEMA") || strings.Contains(codeStr, "FIELD_TYPE"):
		return "SCHEMA"
	case strings.Contains(codeStr, "DOCUMENT"):
		return "DOCUMENT"
	case strings.Contains(codeStr, "DEMANDE") || strings.Contains(codeStr, "PRESTATION") ||
		strings.Contains(codeStr, "STATUS"):
		return "DEMANDE"
	case strings.Contains(codeStr, "SEARCH"):
		return "SEARCH"
	case strings.Contains(codeStr, "DATABASE") || strings.Contains(codeStr, "QUERY"):
		return "DATABASE"
	case strings.Contains(codeStr, "NOTIFICATION") || strings.Contains(codeStr, "RECIPIENT"):
		return "NOTIFICATION"
	case strings.Contains(codeStr, "INVALID") || strings.Contains(codeStr, "VALIDATION"):
		return "VALIDATION"
	default:
		return "OTHER"
	}
}
