package dataprocessing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime/debug"
	"strings"

	"contactcli/internal/infrastructure"
)

// TableWriter serializes a cleaned table to a file.
type TableWriter interface {
	// Format is the output format name and file extension, e.g. "xlsx".
	Format() string
	Write(t *Table, path string) error
}

// Options configures a Pipeline.
type Options struct {
	OutputFormat           string
	DeniedColumns          []string
	CaseInsensitiveDomains bool
	RequireKeyColumn       bool
}

// DefaultOptions returns the standard cleaning configuration.
func DefaultOptions() Options {
	return Options{
		OutputFormat:  "xlsx",
		DeniedColumns: DeniedColumns,
	}
}

// Stats holds the row counts observed by one pipeline run.
type Stats struct {
	InitialRows         int `json:"initial_rows"`
	MissingEmails       int `json:"missing_emails"`
	BlankEmails         int `json:"blank_emails"`
	ColumnsRemoved      int `json:"columns_removed"`
	PersonalRemoved     int `json:"personal_removed"`
	CompaniesBlank      int `json:"companies_blank"`
	CompaniesFilled     int `json:"companies_filled"`
	ClickTimeDuplicates int `json:"click_time_duplicates"`
	ClickLinkDuplicates int `json:"click_link_duplicates"`
	FinalRows           int `json:"final_rows"`
}

// RowsRemoved returns the number of rows dropped by the run.
func (s Stats) RowsRemoved() int {
	return s.InitialRows - s.FinalRows
}

// Result is the outcome of a successful ProcessFile call.
type Result struct {
	InputPath  string
	OutputPath string
	Table      *Table
	Stats      Stats
}

// Pipeline runs the fixed cleaning sequence over one contact file at a time.
// It holds no per-file state and may be reused.
type Pipeline struct {
	opts    Options
	writers map[string]TableWriter
}

// NewPipeline creates a pipeline that writes with the writer matching
// opts.OutputFormat.
func NewPipeline(opts Options, writers ...TableWriter) *Pipeline {
	if opts.OutputFormat == "" {
		opts.OutputFormat = "xlsx"
	}
	if opts.DeniedColumns == nil {
		opts.DeniedColumns = DeniedColumns
	}
	p := &Pipeline{opts: opts, writers: make(map[string]TableWriter, len(writers))}
	for _, w := range writers {
		p.writers[strings.ToLower(w.Format())] = w
	}
	return p
}

// Options returns the pipeline configuration.
func (p *Pipeline) Options() Options {
	return p.opts
}

// cleanedSuffix keeps a same-format output from overwriting its input.
const cleanedSuffix = "_cleaned"

// OutputPath replaces the extension of input with ext, keeping directory and
// base name: "in/list.csv" with "xlsx" becomes "in/list.xlsx".
func OutputPath(input, ext string) string {
	ext = "." + strings.TrimPrefix(ext, ".")
	return strings.TrimSuffix(input, filepath.Ext(input)) + ext
}

// OutputPathFor returns the path ProcessFile would write for inputPath.
func (p *Pipeline) OutputPathFor(inputPath string) (string, error) {
	writer, err := p.writer()
	if err != nil {
		return "", NewError(KindDependencyMissing, "write", inputPath, err)
	}
	return p.outputPath(inputPath, writer), nil
}

func (p *Pipeline) writer() (TableWriter, error) {
	w, ok := p.writers[strings.ToLower(p.opts.OutputFormat)]
	if !ok {
		return nil, fmt.Errorf("no writer available for output format %q", p.opts.OutputFormat)
	}
	return w, nil
}

func (p *Pipeline) outputPath(inputPath string, w TableWriter) string {
	out := OutputPath(inputPath, w.Format())
	if filepath.Clean(out) == filepath.Clean(inputPath) {
		out = strings.TrimSuffix(inputPath, filepath.Ext(inputPath)) + cleanedSuffix + filepath.Ext(inputPath)
	}
	return out
}

// replaceFile writes t to a temporary file beside path and renames it into
// place only once the writer succeeded. The temporary file is removed on any
// failure, including a writer panic.
func replaceFile(w TableWriter, t *Table, path string) error {
	dir, base := filepath.Split(path)
	if dir == "" {
		dir = "."
	}
	ext := filepath.Ext(base)
	f, err := os.CreateTemp(dir, "."+strings.TrimSuffix(base, ext)+".*"+ext)
	if err != nil {
		return err
	}
	tmp := f.Name()
	f.Close()

	committed := false
	defer func() {
		if !committed {
			os.Remove(tmp)
		}
	}()

	if err := w.Write(t, tmp); err != nil {
		return err
	}
	if err := os.Chmod(tmp, 0644); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		return err
	}
	committed = true
	return nil
}

// ProcessFile loads inputPath, cleans it and writes the result next to it.
// Failures are returned as *Error. A failed write leaves any existing file at
// the output path untouched.
func (p *Pipeline) ProcessFile(ctx context.Context, inputPath string, sink infrastructure.LogSink) (res *Result, err error) {
	if sink == nil {
		sink = infrastructure.DiscardSink
	}
	defer func() {
		if r := recover(); r != nil {
			infrastructure.Emitf(sink, slog.LevelDebug, "stack: %s", debug.Stack())
			res, err = nil, NewError(KindUnexpected, "process", inputPath, fmt.Errorf("panic: %v", r))
		}
	}()

	writer, err := p.writer()
	if err != nil {
		return nil, NewError(KindDependencyMissing, "write", inputPath, err)
	}
	outputPath := p.outputPath(inputPath, writer)
	infrastructure.Emitf(sink, slog.LevelInfo, "Output will be saved to %s", outputPath)
	infrastructure.Emitf(sink, slog.LevelInfo, "Attempting to read file from %s", inputPath)

	t, err := LoadCSV(inputPath)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, NewError(KindUnexpected, "process", inputPath, err)
	}

	cleaned, stats, err := p.clean(ctx, t, sink)
	if err != nil {
		return nil, NewError(KindUnexpected, "process", inputPath, err)
	}

	infrastructure.Emitf(sink, slog.LevelInfo, "Saving processed table to %s", outputPath)
	if err := replaceFile(writer, cleaned, outputPath); err != nil {
		var pe *Error
		if errors.As(err, &pe) {
			return nil, pe
		}
		return nil, NewError(KindWriteFailed, "write", outputPath, err)
	}
	infrastructure.Emitf(sink, slog.LevelInfo, "File saved successfully!")

	return &Result{
		InputPath:  inputPath,
		OutputPath: outputPath,
		Table:      cleaned,
		Stats:      stats,
	}, nil
}

// Clean runs every in-memory stage over t and returns the cleaned table.
func (p *Pipeline) Clean(t *Table, sink infrastructure.LogSink) (*Table, Stats) {
	out, stats, _ := p.clean(context.Background(), t, sink)
	return out, stats
}

func (p *Pipeline) clean(ctx context.Context, t *Table, sink infrastructure.LogSink) (*Table, Stats, error) {
	if sink == nil {
		sink = infrastructure.DiscardSink
	}
	var stats Stats
	stats.InitialRows = t.Len()
	infrastructure.Emitf(sink, slog.LevelInfo, "Initial row count: %d", stats.InitialRows)

	if col, ok := t.FindColumn(ColumnEmail); ok {
		for _, c := range t.ColumnValues(col) {
			switch {
			case !c.Present:
				stats.MissingEmails++
			case c.Text == "":
				stats.BlankEmails++
			}
		}
	} else {
		infrastructure.Emitf(sink, slog.LevelWarn, "Column %q not found; email-based rules will not match", ColumnEmail)
	}
	infrastructure.Emitf(sink, slog.LevelInfo, "Rows with NA in Email address: %d", stats.MissingEmails)
	infrastructure.Emitf(sink, slog.LevelInfo, "Rows with blank Email address: %d", stats.BlankEmails)

	t, removed := PruneColumns(t, p.opts.DeniedColumns)
	stats.ColumnsRemoved = len(removed)
	infrastructure.Emitf(sink, slog.LevelDebug, "Removed columns: %s", strings.Join(removed, ", "))
	infrastructure.Emitf(sink, slog.LevelInfo, "Row count after column removal: %d", t.Len())
	if err := ctx.Err(); err != nil {
		return nil, stats, err
	}

	t, filter := FilterPersonalDomains(t, FilterOptions{CaseInsensitive: p.opts.CaseInsensitiveDomains})
	stats.PersonalRemoved = filter.Removed
	if filter.Removed > 0 {
		infrastructure.Emitf(sink, slog.LevelInfo, "Removing %d rows with personal email domains and no company name", filter.Removed)
		infrastructure.Emitf(sink, slog.LevelDebug, "Examples of removed personal emails:")
		for _, ex := range filter.Examples {
			infrastructure.Emitf(sink, slog.LevelDebug, "  %s | %s", ex.Email, ex.Company)
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, stats, err
	}

	infrastructure.Emitf(sink, slog.LevelInfo, "Filling remaining empty Company values with email domains")
	t, backfill := BackfillCompany(t)
	stats.CompaniesBlank = backfill.Blank
	stats.CompaniesFilled = backfill.Filled
	infrastructure.Emitf(sink, slog.LevelInfo, "Empty Company values being filled: %d", backfill.Blank)
	if unfilled := backfill.Blank - backfill.Filled; unfilled > 0 {
		infrastructure.Emitf(sink, slog.LevelWarn, "Company values left empty (no usable email): %d", unfilled)
	}
	if err := ctx.Err(); err != nil {
		return nil, stats, err
	}

	passes := []DedupPass{ClickTimestampPass(), ClickLinkPass()}
	for i, pass := range passes {
		pass.RequireKeyColumn = p.opts.RequireKeyColumn
		var report DedupReport
		t, report = RemoveDuplicates(t, pass)
		switch {
		case report.Skipped:
			infrastructure.Emitf(sink, slog.LevelWarn, "No %q column found; skipping %s duplicate removal", pass.KeyColumn, pass.Name)
		case !report.KeyFound:
			infrastructure.Emitf(sink, slog.LevelWarn, "No %q column found; %s duplicates keyed on email address only", pass.KeyColumn, pass.Name)
		}
		if i == 0 {
			stats.ClickTimeDuplicates = report.Duplicates
			infrastructure.Emitf(sink, slog.LevelInfo, "Found %d rows that are part of duplicate sets", report.Duplicates)
		} else {
			stats.ClickLinkDuplicates = report.Duplicates
			infrastructure.Emitf(sink, slog.LevelInfo, "Found %d duplicate rows beyond the first occurrence", report.Duplicates)
		}
		infrastructure.Emitf(sink, slog.LevelInfo, "Row count after duplicate removal: %d", t.Len())
		if err := ctx.Err(); err != nil {
			return nil, stats, err
		}
	}

	stats.FinalRows = t.Len()
	infrastructure.Emitf(sink, slog.LevelInfo, "Summary of row counts:")
	infrastructure.Emitf(sink, slog.LevelInfo, "Initial rows: %d", stats.InitialRows)
	infrastructure.Emitf(sink, slog.LevelInfo, "Final rows: %d", stats.FinalRows)
	infrastructure.Emitf(sink, slog.LevelInfo, "Total rows removed: %d", stats.RowsRemoved())

	infrastructure.Emitf(sink, slog.LevelInfo, "Reordering columns to move Owner to first position")
	t = NormalizeColumns(t)

	return t, stats, nil
}
