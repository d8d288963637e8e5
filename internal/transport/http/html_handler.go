package http

import (
	"bytes"
	"embed"
	"html/template"
	"log/slog"
	"net/http"
)

//go:embed web/index.html
var webFS embed.FS

var indexTemplate = template.Must(template.ParseFS(webFS, "web/index.html"))

// PageData is rendered into the upload page.
type PageData struct {
	Version      string
	MaxFiles     int
	OutputFormat string
}

// ServeIndex serves the upload page.
func ServeIndex(data PageData, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var buf bytes.Buffer
		if err := indexTemplate.Execute(&buf, data); err != nil {
			logger.ErrorContext(r.Context(), "failed to render upload page", slog.String("error", err.Error()))
			http.Error(w, "Upload page unavailable", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
		w.Write(buf.Bytes())
	}
}
