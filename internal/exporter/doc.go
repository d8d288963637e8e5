// Package exporter writes cleaned contact tables to disk.
//
// XLSXWriter produces the spreadsheet handed to the outreach team: one sheet,
// a header row and every cell stored as text. CSVWriter is the plain-text
// alternative, with a UTF-8 BOM for Excel compatibility.
//
// Both implement dataprocessing.TableWriter and are selected by the
// pipeline's configured output format:
//
//	p := dataprocessing.NewPipeline(opts, exporter.NewXLSXWriter(), exporter.NewCSVWriter())
package exporter
