package middleware

import (
	"errors"
	"fmt"
	"mime"
	"net/http"
	"reflect"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"

	apierrors "contactcli/internal/errors"
)

// Validator checks decoded request bodies and path values against
// validate tags. Field names in messages follow the json tags.
type Validator struct {
	validate *validator.Validate
}

func NewValidator() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Registration only fails for an empty tag name.
	_ = v.RegisterValidation("filename", isValidFilename)
	_ = v.RegisterValidation("cleanpath", isCleanPath)
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return &Validator{validate: v}
}

// ValidateStruct returns nil or an *APIError listing every failed field.
func (m *Validator) ValidateStruct(v interface{}) error {
	var fieldErrs validator.ValidationErrors
	switch err := m.validate.Struct(v); {
	case err == nil:
		return nil
	case !errors.As(err, &fieldErrs):
		return apierrors.InvalidRequestWithError(err)
	}

	out := make([]apierrors.ValidationError, len(fieldErrs))
	for i, fe := range fieldErrs {
		out[i] = apierrors.ValidationError{Field: fe.Field(), Message: describe(fe.Field(), fe)}
	}
	return apierrors.NewValidationErrors(out)
}

// ValidateVar checks one value, such as a URL parameter, against tag.
func (m *Validator) ValidateVar(field string, value interface{}, tag string) error {
	err := m.validate.Var(value, tag)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		return apierrors.ErrValidation(field, describe(field, fieldErrs[0]))
	}
	return apierrors.ErrValidation(field, err.Error())
}

// ContentTypeValidator answers 415 to bodies whose media type is not one of
// contentTypes. Parameters such as charset or boundary are ignored.
func ContentTypeValidator(errorHandler *apierrors.ErrorHandler, contentTypes ...string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet, http.MethodHead, http.MethodOptions:
				next.ServeHTTP(w, r)
				return
			}

			header := r.Header.Get("Content-Type")
			if mediaType, _, err := mime.ParseMediaType(header); err == nil {
				for _, allowed := range contentTypes {
					if strings.EqualFold(mediaType, allowed) {
						next.ServeHTTP(w, r)
						return
					}
				}
			}
			errorHandler.HandleError(w, r, apierrors.UnsupportedMediaType(header, contentTypes))
		})
	}
}

func describe(field string, fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "min":
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, strings.ReplaceAll(fe.Param(), " ", ", "))
	case "filename":
		return field + " must be a valid filename"
	case "cleanpath":
		return field + " must not contain control characters"
	default:
		return fmt.Sprintf("%s failed %s validation", field, fe.Tag())
	}
}

// isValidFilename accepts a single path element of at most 255 bytes.
func isValidFilename(fl validator.FieldLevel) bool {
	name := fl.Field().String()
	switch {
	case name == "", name == ".", len(name) > 255:
		return false
	case strings.Contains(name, ".."), strings.ContainsAny(name, `/\`):
		return false
	}
	return true
}

// isCleanPath rejects NUL and other control characters, which the OS
// either refuses or would echo unescaped into logs.
func isCleanPath(fl validator.FieldLevel) bool {
	return strings.IndexFunc(fl.Field().String(), unicode.IsControl) < 0
}
