package errors

import "fmt"

// Error codes
const (
	CodeValidation          = "VALIDATION_ERROR"
	CodeCache               = "CACHE_ERROR"
	CodeGenerationFormat    = "GENERATION_FORMAT"
	CodeGenerationTransport = "GENERATION_TRANSPORT"
	CodeCatalogLookup       = "CATALOG_LOOKUP"
	CodePersistence         = "PERSISTENCE"
)

type AppError struct {
	Message    string
	Code       string
	StatusCode int
	Context    map[string]any
	Cause      error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

func (e *AppError) WithCause(cause error) *AppError {
	e.Cause = cause
	return e
}

type ValidationError struct {
	*AppError
	Field string
	Value interface{}
}

func NewValidationError(message, field string, value interface{}) *ValidationError {
	return &ValidationError{
		AppError: &AppError{
			Message:    message,
			Code:       CodeValidation,
			StatusCode: 400,
			Context: map[string]any{
				"field": field,
				"value": value,
			},
		},
		Field: field,
		Value: value,
	}
}

type CacheError struct {
	*AppError
	Operation string
	Key       string
}

func NewCacheError(message, operation, key string, cause error) *CacheError {
	return &CacheError{
		AppError: &AppError{
			Message:    message,
			Code:       CodeCache,
			StatusCode: 500,
			Context: map[string]any{
				"operation": operation,
				"key":       key,
			},
			Cause: cause,
		},
		Operation: operation,
		Key:       key,
	}
}

// GenerationFormatError means the model answered but no usable JSON could be
// extracted from the text.
type GenerationFormatError struct {
	*AppError
	Preview string
}

func NewGenerationFormatError(message, preview string, cause error) *GenerationFormatError {
	return &GenerationFormatError{
		AppError: &AppError{
			Message:    message,
			Code:       CodeGenerationFormat,
			StatusCode: 502,
			Context: map[string]any{
				"preview": preview,
			},
			Cause: cause,
		},
		Preview: preview,
	}
}

// GenerationTransportError means the model call itself failed (network, quota,
// timeout, open circuit).
type GenerationTransportError struct {
	*AppError
	Provider string
}

func NewGenerationTransportError(message, provider string, cause error) *GenerationTransportError {
	return &GenerationTransportError{
		AppError: &AppError{
			Message:    message,
			Code:       CodeGenerationTransport,
			StatusCode: 502,
			Context: map[string]any{
				"provider": provider,
			},
			Cause: cause,
		},
		Provider: provider,
	}
}

type CatalogLookupError struct {
	*AppError
	Provider string
	Title    string
}

func NewCatalogLookupError(message, provider, title string, cause error) *CatalogLookupError {
	return &CatalogLookupError{
		AppError: &AppError{
			Message:    message,
			Code:       CodeCatalogLookup,
			StatusCode: 502,
			Context: map[string]any{
				"provider": provider,
				"title":    title,
			},
			Cause: cause,
		},
		Provider: provider,
		Title:    title,
	}
}

type PersistenceError struct {
	*AppError
	Operation string
}

func NewPersistenceError(message, operation string, cause error) *PersistenceError {
	return &PersistenceError{
		AppError: &AppError{
			Message:    message,
			Code:       CodePersistence,
			StatusCode: 500,
			Context: map[string]any{
				"operation": operation,
			},
			Cause: cause,
		},
		Operation: operation,
	}
}
