package errors

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"runtime"
	"runtime/debug"

	"github.com/go-chi/render"

	"contactcli/internal/infrastructure"
)

// Common error types following RFC 7807
const (
	TypeValidation       = "/errors/validation"
	TypeNotFound         = "/errors/not-found"
	TypeRateLimit        = "/errors/rate-limit"
	TypeInternal         = "/errors/internal"
	TypeTimeout          = "/errors/timeout"
	TypePayloadTooLarge  = "/errors/payload-too-large"
	TypeUnsupportedMedia = "/errors/unsupported-media-type"
	TypeMethodNotAllowed = "/errors/method-not-allowed"
)

// Domain-specific error types
const (
	TypeBatchNotFound = "/errors/contacts/batch-not-found"
	TypeFileNotFound  = "/errors/contacts/file-not-found"
	TypeNoFiles       = "/errors/contacts/no-files"
	TypeFolderRunsOff = "/errors/contacts/folder-runs-disabled"
)

// problemTypes maps error codes to problem types; unknown codes are internal.
var problemTypes = map[string]string{
	CodeInvalidRequest:     TypeValidation,
	CodeValidationFailed:   TypeValidation,
	CodeTooManyFiles:       TypeValidation,
	CodeNoFiles:            TypeNoFiles,
	CodeNotFound:           TypeNotFound,
	CodeBatchNotFound:      TypeBatchNotFound,
	CodeFileNotFound:       TypeFileNotFound,
	CodeFolderRunsDisabled: TypeFolderRunsOff,
	CodePayloadTooLarge:    TypePayloadTooLarge,
	CodeUnsupportedMedia:   TypeUnsupportedMedia,
	CodeRateLimitExceeded:  TypeRateLimit,
}

// ErrorHandler writes every failed request as a problem document and logs
// it once.
type ErrorHandler struct {
	logger       *slog.Logger
	includeStack bool
}

// NewErrorHandler returns a handler. includeStack adds goroutine stacks to
// 5xx responses and belongs in development only.
func NewErrorHandler(logger *slog.Logger, includeStack bool) *ErrorHandler {
	return &ErrorHandler{
		logger:       logger.With(slog.String("component", "error_handler")),
		includeStack: includeStack,
	}
}

func problemFor(r *http.Request, status int, problemType, detail string) *ProblemDetails {
	return NewProblemDetails(status, problemType, http.StatusText(status), detail, r.URL.Path)
}

func (h *ErrorHandler) respond(w http.ResponseWriter, r *http.Request, problem *ProblemDetails) {
	if id := infrastructure.GetTraceID(r.Context()); id != "" {
		problem.WithExtension("trace_id", id)
	}
	render.Render(w, r, problem)
}

// HandleError logs err and writes its problem document. Nil is a no-op.
func (h *ErrorHandler) HandleError(w http.ResponseWriter, r *http.Request, err error) {
	if err == nil {
		return
	}

	problem := h.ErrorToProblem(err, r)
	level := slog.LevelWarn
	if problem.Status >= http.StatusInternalServerError {
		level = slog.LevelError
		if h.includeStack {
			problem.WithExtension("stack", stackTrace())
		}
	}
	h.logger.Log(r.Context(), level, "request failed",
		slog.String("error", err.Error()),
		slog.Int("status", problem.Status),
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
	)

	h.respond(w, r, problem)
}

// ErrorToProblem classifies err. Cancellation becomes 504, *APIError keeps
// its own status and code, an oversized body becomes 413 and anything else
// is an opaque 500.
func (h *ErrorHandler) ErrorToProblem(err error, r *http.Request) *ProblemDetails {
	var (
		apiErr   *APIError
		maxBytes *http.MaxBytesError
	)
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return problemFor(r, http.StatusGatewayTimeout, TypeTimeout,
			"The request took too long to process and was cancelled")

	case errors.As(err, &apiErr):
		problemType, ok := problemTypes[apiErr.ErrorCode]
		if !ok {
			problemType = TypeInternal
		}
		problem := problemFor(r, apiErr.StatusCode, problemType, apiErr.Message).
			WithExtension("error_code", apiErr.ErrorCode)
		if apiErr.Details != nil {
			problem.WithExtension("details", apiErr.Details)
		}
		return problem

	case errors.As(err, &maxBytes):
		return problemFor(r, http.StatusRequestEntityTooLarge, TypePayloadTooLarge,
			"The request body exceeds the maximum allowed size").
			WithExtension("limit", maxBytes.Limit)

	default:
		return problemFor(r, http.StatusInternalServerError, TypeInternal,
			"An unexpected error occurred while processing your request")
	}
}

// HandlePanic logs a recovered panic with its stack and answers 500.
func (h *ErrorHandler) HandlePanic(w http.ResponseWriter, r *http.Request, recovered interface{}) {
	h.logger.ErrorContext(r.Context(), "panic recovered",
		slog.Any("panic", recovered),
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.String("stack", string(debug.Stack())),
	)

	problem := problemFor(r, http.StatusInternalServerError, TypeInternal, "An unexpected error occurred")
	if h.includeStack {
		problem.WithExtension("panic", fmt.Sprint(recovered))
		problem.WithExtension("stack", stackTrace())
	}
	h.respond(w, r, problem)
}

// NotFound is the router's 404 handler.
func (h *ErrorHandler) NotFound(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, problemFor(r, http.StatusNotFound, TypeNotFound, "The requested resource was not found"))
}

// MethodNotAllowed is the router's 405 handler.
func (h *ErrorHandler) MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, problemFor(r, http.StatusMethodNotAllowed, TypeMethodNotAllowed,
		fmt.Sprintf("Method %s is not allowed for this endpoint", r.Method)))
}

func stackTrace() string {
	buf := make([]byte, 8<<10)
	return string(buf[:runtime.Stack(buf, false)])
}
