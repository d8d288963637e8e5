// Package services holds the application logic between the HTTP handlers and
// the cleaning pipeline.
//
// ContactService drives dataprocessing.Pipeline over a server-side folder
// (ProcessFolder, RunFolder) or over files uploaded by a client
// (ProcessUploads). Every file runs in isolation: a failure is logged through
// the batch's LogSink and reported in its FileOutcome, and the remaining files
// still run. Upload batches are processed inside a temporary files.Workspace
// that is removed when the call returns; their outputs are kept in a
// ResultStore until they expire.
//
// HealthService reports liveness, version and component status for the
// health endpoints.
//
// Metrics records pipeline counters on an OpenTelemetry meter.
package services
