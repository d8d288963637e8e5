package errors

import (
	"encoding/json"
	"maps"
	"net/http"

	"github.com/go-chi/render"
)

// ProblemDetails is an RFC 7807 problem document. Extensions are written
// as top-level members next to the standard ones, which win on conflict.
type ProblemDetails struct {
	Type       string
	Title      string
	Status     int
	Detail     string
	Instance   string
	Extensions map[string]interface{}
}

func NewProblemDetails(status int, problemType, title, detail, instance string) *ProblemDetails {
	return &ProblemDetails{Type: problemType, Title: title, Status: status, Detail: detail, Instance: instance}
}

// WithExtension sets a member and returns pd for chaining.
func (pd *ProblemDetails) WithExtension(key string, value interface{}) *ProblemDetails {
	if pd.Extensions == nil {
		pd.Extensions = make(map[string]interface{})
	}
	pd.Extensions[key] = value
	return pd
}

// Render sets the response status for chi/render.
func (pd *ProblemDetails) Render(w http.ResponseWriter, r *http.Request) error {
	render.Status(r, pd.Status)
	return nil
}

func (pd *ProblemDetails) MarshalJSON() ([]byte, error) {
	doc := maps.Clone(pd.Extensions)
	if doc == nil {
		doc = make(map[string]interface{}, 5)
	}
	doc["type"] = pd.Type
	doc["title"] = pd.Title
	doc["status"] = pd.Status
	for key, val := range map[string]string{"detail": pd.Detail, "instance": pd.Instance} {
		if val != "" {
			doc[key] = val
		} else {
			delete(doc, key)
		}
	}
	return json.Marshal(doc)
}
