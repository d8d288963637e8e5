package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apierrors "contactcli/internal/errors"
	sharedtest "contactcli/internal/shared/testutil"
)

type folderRequest struct {
	Directory string `json:"directory" validate:"required,cleanpath"`
	Format    string `json:"format" validate:"omitempty,oneof=xlsx csv"`
}

func TestValidator_ValidateStruct(t *testing.T) {
	v := NewValidator()

	tests := []struct {
		name       string
		req        folderRequest
		wantFields []string
	}{
		{name: "valid", req: folderRequest{Directory: "/data/exports"}},
		{name: "missing directory", req: folderRequest{}, wantFields: []string{"directory"}},
		{name: "relative directory", req: folderRequest{Directory: "exports"}},
		{name: "control character", req: folderRequest{Directory: "/data/\x00exports"}, wantFields: []string{"directory"}},
		{name: "bad format", req: folderRequest{Directory: "/data", Format: "ods"}, wantFields: []string{"format"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.ValidateStruct(tt.req)
			if len(tt.wantFields) == 0 {
				assert.NoError(t, err)
				return
			}

			var apiErr *apierrors.APIError
			require.True(t, errors.As(err, &apiErr))
			assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)

			details, ok := apiErr.Details.(apierrors.ValidationErrors)
			require.True(t, ok)
			var fields []string
			for _, fe := range details.Errors {
				fields = append(fields, fe.Field)
			}
			assert.Equal(t, tt.wantFields, fields)
		})
	}
}

func TestValidator_ValidateVarFilename(t *testing.T) {
	v := NewValidator()

	assert.NoError(t, v.ValidateVar("name", "contacts.xlsx", "filename"))
	for _, bad := range []string{"", "..", "../etc/passwd", `a\b.xlsx`, "dir/file.xlsx", strings.Repeat("a", 256)} {
		err := v.ValidateVar("name", bad, "filename")
		assert.Error(t, err, bad)
	}

	var apiErr *apierrors.APIError
	require.True(t, errors.As(v.ValidateVar("name", "a/b", "filename"), &apiErr))
	assert.Equal(t, apierrors.ValidationError{Field: "name", Message: "name must be a valid filename"}, apiErr.Details)
}

func TestContentTypeValidator(t *testing.T) {
	logger, _ := sharedtest.NewTestLogger(t)
	h := ContentTypeValidator(apierrors.NewErrorHandler(logger, false), "application/json")(http.HandlerFunc(okHandler))

	req := httptest.NewRequest(http.MethodPost, "/api/contacts/folder-runs", strings.NewReader("{}"))
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	req = httptest.NewRequest(http.MethodPost, "/api/contacts/folder-runs", strings.NewReader("directory=/x"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnsupportedMediaType, w.Code)

	req = httptest.NewRequest(http.MethodPost, "/api/contacts/folder-runs", strings.NewReader("{}"))
	req.Header.Set("Content-Type", "application/jsonp")
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnsupportedMediaType, w.Code, "prefix of an allowed type is not enough")
}
