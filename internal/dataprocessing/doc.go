// Package dataprocessing cleans exported contact lists.
//
// A contact export is loaded into an immutable Table and passed through a
// fixed sequence of stages, each returning a new table:
//
//  1. PruneColumns drops the identity and engagement columns in DeniedColumns
//  2. FilterPersonalDomains drops consumer-mail contacts with no company
//  3. BackfillCompany derives missing companies from the email domain
//  4. RemoveDuplicates runs the click-timestamp and clicked-link passes
//  5. NormalizeColumns renders text and puts Owner, Task, Company first
//
// # Usage
//
//	p := dataprocessing.NewPipeline(dataprocessing.DefaultOptions(), exporter.NewXLSXWriter())
//	res, err := p.ProcessFile(ctx, "in/march.csv", sink)
//	if err != nil {
//	    kind := dataprocessing.KindOf(err)
//	    ...
//	}
//
// Progress lines go to the infrastructure.LogSink passed by the caller; the
// package never configures logging itself.
//
// # Error Handling
//
// Every failure is an *Error carrying a Kind:
//
//   - KindNotFound: the input file does not exist
//   - KindMalformed: the input is not a rectangular UTF-8 CSV
//   - KindDependencyMissing: no writer is registered for the output format
//   - KindWriteFailed: the output could not be written
//   - KindUnexpected: anything else, including recovered panics
package dataprocessing
