// Package errors provides structured error handling for postsearch.
//
// Error codes follow the pattern ERR_XXX_DESCRIPTION where:
//   - 1XX: Configuration errors
//   - 2XX: Storage errors (object store, index directory)
//   - 4XX: Input errors (documents, queries, request parameters)
//   - 5XX: Internal errors
package errors

import "net/http"

// Category defines error categories for classification.
type Category string

const (
	// CategoryConfig indicates configuration-related errors.
	CategoryConfig Category = "CONFIG"
	// CategoryStorage indicates object store and index storage errors.
	CategoryStorage Category = "STORAGE"
	// CategoryInput indicates invalid documents or requests.
	CategoryInput Category = "INPUT"
	// CategoryInternal indicates unexpected internal errors.
	CategoryInternal Category = "INTERNAL"
)

// Severity defines error severity levels.
type Severity string

const (
	// SeverityFatal indicates unrecoverable error, must abort.
	SeverityFatal Severity = "FATAL"
	// SeverityError indicates operation failed but can continue.
	SeverityError Severity = "ERROR"
	// SeverityWarning indicates degraded operation, continuing.
	SeverityWarning Severity = "WARNING"
)

// Error codes organized by category.
const (
	// Config errors (100-199)
	ErrCodeConfigInvalid  = "ERR_101_CONFIG_INVALID"
	ErrCodeConfigNotFound = "ERR_102_CONFIG_NOT_FOUND"

	// Storage errors (200-299)
	ErrCodeStoreAccess         = "ERR_201_STORE_ACCESS"
	ErrCodeIndexLifecycle      = "ERR_202_INDEX_LIFECYCLE"
	ErrCodeIndexNotFound       = "ERR_203_INDEX_NOT_FOUND"
	ErrCodeIndexSchemaMismatch = "ERR_204_INDEX_SCHEMA_MISMATCH"
	ErrCodeIndexLocked         = "ERR_205_INDEX_LOCKED"

	// Input errors (400-499)
	ErrCodeMalformedDocument = "ERR_401_MALFORMED_DOCUMENT"
	ErrCodeQueryParse        = "ERR_402_QUERY_PARSE"
	ErrCodeMissingParameter  = "ERR_403_MISSING_PARAMETER"

	// Internal errors (500-599)
	ErrCodeInternal     = "ERR_501_INTERNAL"
	ErrCodeBuildFailed  = "ERR_502_BUILD_FAILED"
	ErrCodeSearchFailed = "ERR_503_SEARCH_FAILED"
)

// categoryFromCode extracts category from error code.
func categoryFromCode(code string) Category {
	if len(code) < 7 {
		return CategoryInternal
	}

	// Numeric portion, e.g. "201" from "ERR_201_STORE_ACCESS"
	switch code[4] {
	case '1':
		return CategoryConfig
	case '2':
		return CategoryStorage
	case '4':
		return CategoryInput
	default:
		return CategoryInternal
	}
}

// severityFromCode determines severity based on error code.
func severityFromCode(code string) Severity {
	switch code {
	case ErrCodeIndexLifecycle, ErrCodeIndexSchemaMismatch, ErrCodeConfigInvalid:
		return SeverityFatal
	}

	if isRetryableCode(code) {
		return SeverityWarning
	}

	return SeverityError
}

// isRetryableCode reports whether the failure is expected to clear on its own.
// Store access errors are retried by the scheduler, never inside a build pass.
func isRetryableCode(code string) bool {
	switch code {
	case ErrCodeStoreAccess, ErrCodeIndexLocked:
		return true
	default:
		return false
	}
}

// statusFromCode maps an error code onto the HTTP status reported to callers.
func statusFromCode(code string) int {
	switch code {
	case ErrCodeQueryParse, ErrCodeMissingParameter:
		return http.StatusBadRequest
	case ErrCodeIndexNotFound, ErrCodeIndexLocked:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
