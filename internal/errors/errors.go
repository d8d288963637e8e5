package errors

import (
	"fmt"
	"net/http"

	"github.com/go-chi/render"
)

// Error codes carried in the error_code extension of every problem document.
const (
	CodeInvalidRequest     = "INVALID_REQUEST"
	CodeValidationFailed   = "VALIDATION_FAILED"
	CodeNoFiles            = "NO_FILES"
	CodeTooManyFiles       = "TOO_MANY_FILES"
	CodeFolderRunsDisabled = "FOLDER_RUNS_DISABLED"
	CodeNotFound           = "NOT_FOUND"
	CodeBatchNotFound      = "BATCH_NOT_FOUND"
	CodeFileNotFound       = "FILE_NOT_FOUND"
	CodePayloadTooLarge    = "PAYLOAD_TOO_LARGE"
	CodeUnsupportedMedia   = "UNSUPPORTED_MEDIA_TYPE"
	CodeRateLimitExceeded  = "RATE_LIMIT_EXCEEDED"
	CodeFileSystem         = "FILESYSTEM_ERROR"
)

// APIError is an error with an HTTP status and a stable code.
type APIError struct {
	StatusCode int         `json:"status_code"`
	ErrorCode  string      `json:"error_code"`
	Message    string      `json:"message"`
	Details    interface{} `json:"details,omitempty"`
}

// Error implements the error interface
func (e *APIError) Error() string {
	return e.Message
}

// Render implements the render.Renderer interface for chi/render
func (e *APIError) Render(w http.ResponseWriter, r *http.Request) error {
	render.Status(r, e.StatusCode)
	return nil
}

// New creates a new APIError with the given parameters
func New(statusCode int, errorCode, message string) *APIError {
	return &APIError{
		StatusCode: statusCode,
		ErrorCode:  errorCode,
		Message:    message,
	}
}

// NewWithDetails creates a new APIError with additional details
func NewWithDetails(statusCode int, errorCode, message string, details interface{}) *APIError {
	return &APIError{
		StatusCode: statusCode,
		ErrorCode:  errorCode,
		Message:    message,
		Details:    details,
	}
}

var (
	ErrNoFiles            = New(http.StatusBadRequest, CodeNoFiles, "No CSV files were provided")
	ErrFolderRunsDisabled = New(http.StatusForbidden, CodeFolderRunsDisabled, "Folder runs are disabled on this server")
	ErrBatchNotFound      = New(http.StatusNotFound, CodeBatchNotFound, "Batch not found or expired")
	ErrFileNotFound       = New(http.StatusNotFound, CodeFileNotFound, "File not found in batch")
	ErrPayloadTooLarge    = New(http.StatusRequestEntityTooLarge, CodePayloadTooLarge, "Upload exceeds the maximum allowed size")
	ErrRateLimitExceeded  = New(http.StatusTooManyRequests, CodeRateLimitExceeded, "Rate limit exceeded")
)

// ValidationError describes one invalid field.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationErrors is the details payload of a multi-field validation failure.
type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

// InvalidRequestWithError reports a body that could not be decoded.
func InvalidRequestWithError(err error) *APIError {
	return NewWithDetails(http.StatusBadRequest, CodeInvalidRequest, "Invalid request format", err.Error())
}

// ErrValidation reports a single invalid field.
func ErrValidation(field, message string) *APIError {
	return NewWithDetails(http.StatusBadRequest, CodeValidationFailed, "Request validation failed", ValidationError{
		Field:   field,
		Message: message,
	})
}

// NewValidationErrors reports several invalid fields at once.
func NewValidationErrors(errs []ValidationError) *APIError {
	return NewWithDetails(http.StatusBadRequest, CodeValidationFailed, "Request validation failed",
		ValidationErrors{Errors: errs})
}

// TooManyFiles reports an upload batch over the file limit.
func TooManyFiles(limit int) *APIError {
	return NewWithDetails(http.StatusBadRequest, CodeTooManyFiles, "Too many files in one upload",
		map[string]int{"max_files": limit})
}

// FileTooLarge reports a single upload over the per-file size limit.
func FileTooLarge(name string, maxBytes int64) *APIError {
	return NewWithDetails(http.StatusRequestEntityTooLarge, CodePayloadTooLarge, "Upload exceeds the maximum allowed size",
		map[string]interface{}{"file": name, "max_bytes": maxBytes})
}

// UnsupportedMediaType reports a request body of the wrong content type.
func UnsupportedMediaType(got string, allowed []string) *APIError {
	return NewWithDetails(http.StatusUnsupportedMediaType, CodeUnsupportedMedia, "Unsupported content type",
		map[string]interface{}{"content_type": got, "allowed": allowed})
}

// NotFoundError reports a missing named resource.
func NotFoundError(resource string) *APIError {
	return NewWithDetails(http.StatusNotFound, CodeNotFound, fmt.Sprintf("%s not found", resource), resource)
}

// FileSystemError reports a server-side file failure during operation.
func FileSystemError(operation string, err error) *APIError {
	return NewWithDetails(http.StatusInternalServerError, CodeFileSystem, fmt.Sprintf("File system error during %s", operation), err.Error())
}
