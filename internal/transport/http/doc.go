// Package http implements the HTTP handlers of the contact cleaner web
// service. Handlers stay thin: they parse and validate the request, call a
// service, and render either a JSON body with go-chi/render or an RFC 7807
// problem document through errors.ErrorHandler.
//
// Routes served by the handlers in this package:
//
//	GET  /                                           upload page
//	POST /api/contacts/uploads                       multipart "files[]" upload
//	POST /api/contacts/folder-runs                   {"directory": "..."}
//	GET  /api/contacts/batches/{batchID}/files/{name} cleaned output download
//	GET  /api/health, /api/health/live, /api/version
//	GET  /metrics                                    Prometheus exposition
//	GET  /ws/logs                                    live pipeline log stream
package http
