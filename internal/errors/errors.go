package errors

import (
	stderrors "errors"
	"fmt"
)

// PostError is the structured error type for postsearch.
// It carries enough context for logging, HTTP mapping, and CLI output.
type PostError struct {
	// Code is the unique error code (e.g., "ERR_201_STORE_ACCESS").
	Code string

	// Message is the human-readable error message.
	Message string

	// Category is the error category (Config, Storage, Input, Internal).
	Category Category

	// Severity is the error severity level.
	Severity Severity

	// Details contains additional context as key-value pairs.
	Details map[string]string

	// Cause is the underlying error that caused this error.
	Cause error

	// Retryable indicates if the operation can be retried.
	Retryable bool

	// Suggestion is an actionable suggestion for the user.
	Suggestion string
}

// Error implements the error interface.
func (e *PostError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *PostError) Unwrap() error {
	return e.Cause
}

// Is checks if this error matches the target error by code.
func (e *PostError) Is(target error) bool {
	if t, ok := target.(*PostError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithDetail adds a key-value detail to the error.
func (e *PostError) WithDetail(key, value string) *PostError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// WithSuggestion adds an actionable suggestion for the user.
func (e *PostError) WithSuggestion(suggestion string) *PostError {
	e.Suggestion = suggestion
	return e
}

// New creates a new PostError with the given code and message.
// Category, severity, and retryable flag are derived from the code.
func New(code string, message string, cause error) *PostError {
	return &PostError{
		Code:      code,
		Message:   message,
		Category:  categoryFromCode(code),
		Severity:  severityFromCode(code),
		Cause:     cause,
		Retryable: isRetryableCode(code),
	}
}

// Wrap creates a PostError from an existing error.
// The error's message becomes the PostError message.
func Wrap(code string, err error) *PostError {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

// Sentinels for errors.Is comparisons. Matching is by code only.
var (
	ErrStoreAccess       = &PostError{Code: ErrCodeStoreAccess}
	ErrMalformedDocument = &PostError{Code: ErrCodeMalformedDocument}
	ErrIndexLifecycle    = &PostError{Code: ErrCodeIndexLifecycle}
	ErrIndexNotFound     = &PostError{Code: ErrCodeIndexNotFound}
	ErrIndexLocked       = &PostError{Code: ErrCodeIndexLocked}
	ErrSchemaMismatch    = &PostError{Code: ErrCodeIndexSchemaMismatch}
	ErrQueryParse        = &PostError{Code: ErrCodeQueryParse}
	ErrMissingParameter  = &PostError{Code: ErrCodeMissingParameter}
)

// StoreAccess reports a failed list or get against the object store.
func StoreAccess(message string, cause error) *PostError {
	return New(ErrCodeStoreAccess, message, cause)
}

// MalformedDocument reports a fetched object that does not decode as a post.
func MalformedDocument(key string, cause error) *PostError {
	return New(ErrCodeMalformedDocument, fmt.Sprintf("malformed document %s", key), cause).
		WithDetail("key", key)
}

// IndexLifecycle reports an index create or open failure.
func IndexLifecycle(message string, cause error) *PostError {
	return New(ErrCodeIndexLifecycle, message, cause)
}

// IndexNotFound reports a query against a path where no index was ever built.
func IndexNotFound(path string) *PostError {
	return New(ErrCodeIndexNotFound, "no index at "+path, nil).
		WithDetail("path", path).
		WithSuggestion("run 'postsearch build' to create the index")
}

// QueryParse reports query text the parser rejected.
func QueryParse(query string, cause error) *PostError {
	return New(ErrCodeQueryParse, "invalid query syntax", cause).
		WithDetail("query", query)
}

// MissingParameter reports a request without a required parameter.
func MissingParameter(name string) *PostError {
	return New(ErrCodeMissingParameter, fmt.Sprintf("missing required parameter %q", name), nil).
		WithDetail("parameter", name)
}

// ConfigError creates a configuration-related error.
func ConfigError(message string, cause error) *PostError {
	return New(ErrCodeConfigInvalid, message, cause)
}

// InternalError creates an internal error.
func InternalError(message string, cause error) *PostError {
	return New(ErrCodeInternal, message, cause)
}

// As returns the outermost PostError in err's chain.
func As(err error) (*PostError, bool) {
	var pe *PostError
	if stderrors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}

// IsRetryable checks if an error is retryable.
func IsRetryable(err error) bool {
	if pe, ok := As(err); ok {
		return pe.Retryable
	}
	return false
}

// IsFatal checks if an error has fatal severity.
func IsFatal(err error) bool {
	if pe, ok := As(err); ok {
		return pe.Severity == SeverityFatal
	}
	return false
}

// GetCode extracts the error code from a PostError.
// Returns empty string if err carries none.
func GetCode(err error) string {
	if pe, ok := As(err); ok {
		return pe.Code
	}
	return ""
}

// GetCategory extracts the category from a PostError.
func GetCategory(err error) Category {
	if pe, ok := As(err); ok {
		return pe.Category
	}
	return ""
}

// HTTPStatus maps err onto an HTTP status code. Errors without a code are 500.
func HTTPStatus(err error) int {
	return statusFromCode(GetCode(err))
}
