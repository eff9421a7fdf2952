package errors

import "fmt"

// Error codes
const (
	CodeSyncError  = "SYNC_ERROR"
	CodeFetch      = "FETCH_ERROR"
	CodeExtraction = "EXTRACTION_ERROR"
	CodeValidation = "VALIDATION_ERROR"
	CodeCache      = "CACHE_ERROR"
	CodeStore      = "STORE_ERROR"
	CodeCatalog    = "CATALOG_ERROR"
)

type SyncError struct {
	Message string
	Code    string
	Context map[string]any
	Cause   error
}

func (e *SyncError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *SyncError) Unwrap() error {
	return e.Cause
}

func NewSyncError(message, code string, context map[string]any) *SyncError {
	return &SyncError{
		Message: message,
		Code:    code,
		Context: context,
	}
}

func (e *SyncError) WithCause(cause error) *SyncError {
	e.Cause = cause
	return e
}

// FetchError describes an operation that ended in a terminal classification.
// It is informational: the fetch controller reports outcomes by value and
// attaches this only so callers can log the last cause.
type FetchError struct {
	*SyncError
	Classification string
	URL            string
	Attempts       int
	StatusCode     int
}

func NewFetchError(message, classification, url string, attempts, statusCode int, cause error) *FetchError {
	return &FetchError{
		SyncError: &SyncError{
			Message: message,
			Code:    CodeFetch,
			Context: map[string]any{
				"classification": classification,
				"url":            url,
				"attempts":       attempts,
				"status":         statusCode,
			},
			Cause: cause,
		},
		Classification: classification,
		URL:            url,
		Attempts:       attempts,
		StatusCode:     statusCode,
	}
}

// ExtractionError is returned when a page does not have the expected structure.
type ExtractionError struct {
	*SyncError
	Schema  string
	Details []string
}

func NewExtractionError(message, schema string, details ...string) *ExtractionError {
	return &ExtractionError{
		SyncError: &SyncError{
			Message: message,
			Code:    CodeExtraction,
			Context: map[string]any{
				"schema": schema,
			},
		},
		Schema:  schema,
		Details: details,
	}
}

type ValidationError struct {
	*SyncError
	Field string
	Value interface{}
}

func NewValidationError(message, field string, value interface{}) *ValidationError {
	return &ValidationError{
		SyncError: &SyncError{
			Message: message,
			Code:    CodeValidation,
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
	*SyncError
	Operation string
	Key       string
}

func NewCacheError(message, operation, key string, cause error) *CacheError {
	return &CacheError{
		SyncError: &SyncError{
			Message: message,
			Code:    CodeCache,
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

type StoreError struct {
	*SyncError
	Backend   string
	Operation string
}

func NewStoreError(message, backend, operation string, cause error) *StoreError {
	return &StoreError{
		SyncError: &SyncError{
			Message: message,
			Code:    CodeStore,
			Context: map[string]any{
				"backend":   backend,
				"operation": operation,
			},
			Cause: cause,
		},
		Backend:   backend,
		Operation: operation,
	}
}

type CatalogError struct {
	*SyncError
	Path string
}

func NewCatalogError(message, path string, cause error) *CatalogError {
	return &CatalogError{
		SyncError: &SyncError{
			Message: message,
			Code:    CodeCatalog,
			Context: map[string]any{
				"path": path,
			},
			Cause: cause,
		},
		Path: path,
	}
}
