package http

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	apierrors "contactcli/internal/errors"
	"contactcli/internal/middleware"
	"contactcli/internal/services"
	"contactcli/internal/validation"
	api "contactcli/pkg/contracts/api/v1"
)

// Upload form field names. Browsers post "files[]"; curl users tend to use
// "files".
const (
	uploadField    = "files[]"
	uploadFieldAlt = "files"

	multipartMemory = 8 << 20
	formOverhead    = 1 << 20
)

// ContactService is the part of services.ContactService the handler needs.
type ContactService interface {
	ProcessUploads(ctx context.Context, uploads []services.Upload) (*services.Batch, error)
	RunFolder(ctx context.Context, dir string) (*services.BatchReport, error)
	Output(batchID, name string) (services.StoredFile, error)
}

// ContactHandler handles contact upload, folder run and download requests.
type ContactHandler struct {
	service      ContactService
	validator    *middleware.Validator
	maxFiles     int
	maxFileBytes int64
	logger       *slog.Logger
	errorHandler *apierrors.ErrorHandler
}

// NewContactHandler creates a new contact handler
func NewContactHandler(service ContactService, validator *middleware.Validator, maxFiles int, maxFileBytes int64, logger *slog.Logger, errorHandler *apierrors.ErrorHandler) *ContactHandler {
	return &ContactHandler{
		service:      service,
		validator:    validator,
		maxFiles:     maxFiles,
		maxFileBytes: maxFileBytes,
		logger:       logger.With(slog.String("handler", "contacts")),
		errorHandler: errorHandler,
	}
}

// Routes returns the contact routes, to be mounted at /api/contacts.
func (h *ContactHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.With(middleware.ContentTypeValidator(h.errorHandler, "multipart/form-data")).
		Post("/uploads", h.Upload)
	r.With(middleware.ContentTypeValidator(h.errorHandler, "application/json")).
		Post("/folder-runs", h.FolderRun)
	r.Get("/batches/{batchID}/files/{name}", h.Download)

	return r
}

// Upload handles POST /api/contacts/uploads
func (h *ContactHandler) Upload(w http.ResponseWriter, r *http.Request) {
	limit := int64(h.maxFiles)*h.maxFileBytes + formOverhead
	r.Body = http.MaxBytesReader(w, r.Body, limit)

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.errorHandler.HandleError(w, r, apierrors.ErrPayloadTooLarge)
			return
		}
		h.errorHandler.HandleError(w, r, apierrors.InvalidRequestWithError(err))
		return
	}
	defer r.MultipartForm.RemoveAll()

	headers := r.MultipartForm.File[uploadField]
	if len(headers) == 0 {
		headers = r.MultipartForm.File[uploadFieldAlt]
	}

	uploads := make([]services.Upload, 0, len(headers))
	for _, fh := range headers {
		if fh.Size > h.maxFileBytes {
			h.errorHandler.HandleError(w, r, apierrors.FileTooLarge(fh.Filename, h.maxFileBytes))
			return
		}
		uploads = append(uploads, services.Upload{Name: fh.Filename, Open: opener(fh)})
	}

	h.logger.InfoContext(r.Context(), "processing upload", slog.Int("files", len(uploads)))

	ctx := services.WithLogStream(r.Context(), r.Header.Get(middleware.LogStreamHeader))
	batch, err := h.service.ProcessUploads(ctx, uploads)
	if err != nil {
		h.errorHandler.HandleError(w, r, h.mapServiceError(err))
		return
	}

	resp := api.UploadResponse{BatchID: batch.ID, Log: batch.Log}
	resp.Files, resp.Succeeded, resp.Failed = fileResults(batch.Files, batch.ID)

	render.Status(r, http.StatusOK)
	render.JSON(w, r, resp)
}

// FolderRun handles POST /api/contacts/folder-runs
func (h *ContactHandler) FolderRun(w http.ResponseWriter, r *http.Request) {
	var req api.FolderRunRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		h.errorHandler.HandleError(w, r, apierrors.InvalidRequestWithError(err))
		return
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	ctx := services.WithLogStream(r.Context(), r.Header.Get(middleware.LogStreamHeader))
	report, err := h.service.RunFolder(ctx, req.Directory)
	if err != nil {
		h.errorHandler.HandleError(w, r, h.mapServiceError(err))
		return
	}

	resp := api.FolderRunResponse{Directory: report.Directory}
	resp.Files, resp.Succeeded, resp.Failed = fileResults(report.Files, "")
	render.JSON(w, r, resp)
}

// Download handles GET /api/contacts/batches/{batchID}/files/{name}
func (h *ContactHandler) Download(w http.ResponseWriter, r *http.Request) {
	batchID := chi.URLParam(r, "batchID")
	name := chi.URLParam(r, "name")
	if err := h.validator.ValidateVar("name", name, "required,filename"); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	file, err := h.service.Output(batchID, name)
	if err != nil {
		h.errorHandler.HandleError(w, r, h.mapServiceError(err))
		return
	}

	w.Header().Set("Content-Type", file.ContentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": file.Name}))
	w.Header().Set("Content-Length", strconv.Itoa(len(file.Data)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(file.Data); err != nil {
		h.logger.DebugContext(r.Context(), "download interrupted", slog.String("error", err.Error()))
	}
}

func opener(fh *multipart.FileHeader) func() (io.ReadCloser, error) {
	return func() (io.ReadCloser, error) {
		return fh.Open()
	}
}

// DownloadURL returns the download path of a stored output.
func DownloadURL(batchID, name string) string {
	return fmt.Sprintf("/api/contacts/batches/%s/files/%s", url.PathEscape(batchID), url.PathEscape(name))
}

func fileResults(outcomes []services.FileOutcome, batchID string) ([]api.FileResult, int, int) {
	results := make([]api.FileResult, 0, len(outcomes))
	succeeded, failed := 0, 0
	for _, o := range outcomes {
		res := api.FileResult{
			Name:       o.Name,
			Success:    o.Success,
			Output:     o.Output,
			ErrorKind:  string(o.Kind),
			Error:      o.Error,
			DurationMS: o.Duration.Milliseconds(),
		}
		if o.Stats != nil {
			res.RowsIn = o.Stats.InitialRows
			res.RowsOut = o.Stats.FinalRows
		}
		if o.Success {
			succeeded++
			if batchID != "" {
				res.DownloadURL = DownloadURL(batchID, o.Output)
			}
		} else {
			failed++
		}
		results = append(results, res)
	}
	return results, succeeded, failed
}

func (h *ContactHandler) mapServiceError(err error) error {
	switch {
	case errors.Is(err, services.ErrNoFiles):
		return apierrors.ErrNoFiles
	case errors.Is(err, services.ErrTooManyFiles):
		return apierrors.TooManyFiles(h.maxFiles)
	case errors.Is(err, services.ErrFolderRunsDisabled):
		return apierrors.ErrFolderRunsDisabled
	case errors.Is(err, services.ErrOutsideFolderRoot):
		return apierrors.ErrValidation("directory", "Directory is outside the allowed folder root")
	case errors.Is(err, services.ErrBatchNotFound):
		return apierrors.ErrBatchNotFound
	case errors.Is(err, services.ErrFileNotFound):
		return apierrors.ErrFileNotFound
	case errors.Is(err, validation.ErrNotDirectory):
		return apierrors.ErrValidation("directory", "Path is not a directory")
	case errors.Is(err, fs.ErrNotExist):
		return apierrors.NotFoundError("directory")
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	default:
		return apierrors.FileSystemError("process contacts", err)
	}
}
