package services

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"contactcli/internal/dataprocessing"
	"contactcli/internal/files"
	"contactcli/internal/infrastructure"
	"contactcli/internal/validation"
)

// MIME types of the produced outputs.
const (
	ContentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	ContentTypeCSV  = "text/csv; charset=utf-8"
)

// FileOutcome is the result of running the pipeline over one input file.
type FileOutcome struct {
	Name     string                `json:"name"`
	Input    string                `json:"input,omitempty"`
	Output   string                `json:"output,omitempty"`
	Success  bool                  `json:"success"`
	Kind     dataprocessing.Kind   `json:"kind,omitempty"`
	Error    string                `json:"error,omitempty"`
	Stats    *dataprocessing.Stats `json:"stats,omitempty"`
	Duration time.Duration         `json:"duration_ns"`
}

// BatchReport summarizes a folder run.
type BatchReport struct {
	Directory string        `json:"directory"`
	Files     []FileOutcome `json:"files"`
	Succeeded int           `json:"succeeded"`
	Failed    int           `json:"failed"`
}

func (r *BatchReport) add(o FileOutcome) {
	r.Files = append(r.Files, o)
	if o.Success {
		r.Succeeded++
	} else {
		r.Failed++
	}
}

// Upload is one file received from a client.
type Upload struct {
	Name string
	Open func() (io.ReadCloser, error)
}

// LogStreams hands out per-client sinks for live progress lines.
type LogStreams interface {
	Stream(clientID string) infrastructure.LogSink
}

type logStreamKey struct{}

// WithLogStream returns a context whose batch progress lines are also sent to
// the live stream of clientID. An empty id leaves ctx unchanged.
func WithLogStream(ctx context.Context, clientID string) context.Context {
	if clientID == "" {
		return ctx
	}
	return context.WithValue(ctx, logStreamKey{}, clientID)
}

// LogStreamFrom returns the live stream client id carried by ctx.
func LogStreamFrom(ctx context.Context) string {
	id, _ := ctx.Value(logStreamKey{}).(string)
	return id
}

// ContactServiceConfig holds the dependencies of a ContactService.
type ContactServiceConfig struct {
	Pipeline        *dataprocessing.Pipeline
	Discovery       *files.Discovery
	Validator       *validation.FileValidator
	Store           *ResultStore
	Metrics         *Metrics
	Tracer          trace.Tracer
	Logger          *slog.Logger
	Streams         LogStreams
	WorkDir         string
	MaxFiles        int
	AllowFolderRuns bool
	FolderRoot      string
}

// ContactService drives the cleaning pipeline over folders and uploads.
type ContactService struct {
	pipeline        *dataprocessing.Pipeline
	discovery       *files.Discovery
	validator       *validation.FileValidator
	store           *ResultStore
	metrics         *Metrics
	tracer          trace.Tracer
	logger          *slog.Logger
	streams         LogStreams
	workDir         string
	maxFiles        int
	allowFolderRuns bool
	folderRoot      string
}

// NewContactService creates a contact service. Missing optional dependencies
// get working defaults.
func NewContactService(cfg ContactServiceConfig) *ContactService {
	if cfg.Pipeline == nil {
		cfg.Pipeline = dataprocessing.NewPipeline(dataprocessing.DefaultOptions())
	}
	if cfg.Discovery == nil {
		cfg.Discovery = files.NewDiscovery("")
	}
	if cfg.Validator == nil {
		cfg.Validator = validation.NewFileValidator(cfg.Logger)
	}
	if cfg.Store == nil {
		cfg.Store = NewResultStore(30*time.Minute, 100)
	}
	if cfg.Metrics == nil {
		cfg.Metrics = NoopMetrics()
	}
	if cfg.Tracer == nil {
		cfg.Tracer = otel.Tracer(infrastructure.InstrumentationName)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &ContactService{
		pipeline:        cfg.Pipeline,
		discovery:       cfg.Discovery,
		validator:       cfg.Validator,
		store:           cfg.Store,
		metrics:         cfg.Metrics,
		tracer:          cfg.Tracer,
		logger:          cfg.Logger.With(slog.String("service", "contacts")),
		streams:         cfg.Streams,
		workDir:         cfg.WorkDir,
		maxFiles:        cfg.MaxFiles,
		allowFolderRuns: cfg.AllowFolderRuns,
		folderRoot:      cfg.FolderRoot,
	}
}

// Store returns the result store holding upload outputs.
func (s *ContactService) Store() *ResultStore {
	return s.store
}

// ProcessFile runs the pipeline over one file. A failure is logged to sink
// with its kind and detail and returned in the outcome; it never panics or
// returns an error to the caller.
func (s *ContactService) ProcessFile(ctx context.Context, path string, sink infrastructure.LogSink) FileOutcome {
	return s.processFile(ctx, path, sink, nil)
}

// outputClaims maps the case-folded output path of every file already
// written in a batch to the input that produced it. Inputs differing only in
// extension case ("list.csv", "list.CSV") share one output path.
type outputClaims map[string]string

func (s *ContactService) processFile(ctx context.Context, path string, sink infrastructure.LogSink, claims outputClaims) FileOutcome {
	ctx, span := s.tracer.Start(ctx, "contacts.process_file",
		trace.WithAttributes(attribute.String("file.name", filepath.Base(path))))
	defer span.End()

	outcome := FileOutcome{Name: filepath.Base(path), Input: path}
	start := time.Now()

	var (
		res *dataprocessing.Result
		err error
		key string
	)
	if out, perr := s.pipeline.OutputPathFor(path); perr == nil && claims != nil {
		key = strings.ToLower(filepath.Clean(out))
		if prev, taken := claims[key]; taken {
			err = dataprocessing.NewError(dataprocessing.KindWriteFailed, "write", out,
				fmt.Errorf("%w by %s", ErrDuplicateOutput, prev))
		}
	}
	if err == nil {
		res, err = s.pipeline.ProcessFile(ctx, path, sink)
	}
	outcome.Duration = time.Since(start)

	if err != nil {
		kind := dataprocessing.KindOf(err)
		outcome.Kind = kind
		outcome.Error = err.Error()
		infrastructure.Emitf(sink, slog.LevelError, "Error processing file %s (%s): %v", path, kind, err)

		span.RecordError(err)
		span.SetStatus(codes.Error, string(kind))
		s.metrics.RecordFile(ctx, nil, kind, outcome.Duration)
		s.logger.WarnContext(ctx, "contact file failed",
			slog.String("file", path),
			slog.String("kind", string(kind)),
			slog.String("error", err.Error()))
		return outcome
	}

	if key != "" {
		claims[key] = filepath.Base(path)
	}
	stats := res.Stats
	outcome.Success = true
	outcome.Output = res.OutputPath
	outcome.Stats = &stats

	span.SetAttributes(
		attribute.Int("contacts.rows_in", stats.InitialRows),
		attribute.Int("contacts.rows_out", stats.FinalRows),
	)
	s.metrics.RecordFile(ctx, &stats, "", outcome.Duration)
	s.logger.InfoContext(ctx, "contact file processed",
		slog.String("file", path),
		slog.String("output", res.OutputPath),
		slog.Int("rows_in", stats.InitialRows),
		slog.Int("rows_out", stats.FinalRows),
		slog.Duration("duration", outcome.Duration))
	return outcome
}

// ProcessFolder cleans every CSV file directly inside dir, in name order.
// Finding no files is not an error. Only an unreadable directory is.
func (s *ContactService) ProcessFolder(ctx context.Context, dir string, sink infrastructure.LogSink) (*BatchReport, error) {
	if sink == nil {
		sink = infrastructure.NewSlogSink(s.logger)
	}

	found, err := s.discovery.FindCSVFiles(dir)
	if err != nil {
		return nil, err
	}

	report := &BatchReport{Directory: dir, Files: []FileOutcome{}}
	if len(found) == 0 {
		infrastructure.Emitf(sink, slog.LevelWarn, "No CSV files found in %s", dir)
		return report, nil
	}

	infrastructure.Emitf(sink, slog.LevelInfo, "Found %d CSV files to process", len(found))
	claims := make(outputClaims, len(found))
	for _, f := range found {
		if err := ctx.Err(); err != nil {
			infrastructure.Emitf(sink, slog.LevelWarn, "Batch stopped before %s: %v", f.Name, err)
			return report, err
		}
		infrastructure.Emitf(sink, slog.LevelInfo, "Processing file: %s", f.Path)
		report.add(s.processFile(ctx, f.Path, sink, claims))
	}

	infrastructure.Emitf(sink, slog.LevelInfo, "Batch complete: %d succeeded, %d failed", report.Succeeded, report.Failed)
	return report, nil
}

// RunFolder is ProcessFolder behind the server-side folder gate: folder runs
// must be enabled and dir must sit under the configured root when one is set.
// With a root configured, a relative dir is taken relative to the root.
func (s *ContactService) RunFolder(ctx context.Context, dir string) (*BatchReport, error) {
	if !s.allowFolderRuns {
		return nil, ErrFolderRunsDisabled
	}
	if s.folderRoot != "" {
		if !filepath.IsAbs(dir) {
			dir = filepath.Join(s.folderRoot, dir)
		}
		if !within(s.folderRoot, dir) {
			return nil, ErrOutsideFolderRoot
		}
	}
	if err := s.validator.ValidateInputDirectory(dir); err != nil {
		return nil, err
	}

	runID := uuid.NewString()
	sink := infrastructure.MultiSink(
		infrastructure.NewSlogSink(s.logger, slog.String("run_id", runID)),
		s.live(ctx),
	)
	return s.ProcessFolder(ctx, dir, sink)
}

// ProcessUploads saves the uploads into a private workspace, cleans each one
// and keeps the outputs in the result store. The workspace is removed before
// returning, whatever the outcome.
func (s *ContactService) ProcessUploads(ctx context.Context, uploads []Upload) (*Batch, error) {
	if len(uploads) == 0 {
		return nil, ErrNoFiles
	}
	if s.maxFiles > 0 && len(uploads) > s.maxFiles {
		return nil, fmt.Errorf("%w: %d files, limit is %d", ErrTooManyFiles, len(uploads), s.maxFiles)
	}

	batch := &Batch{
		ID:      uuid.NewString(),
		Files:   make([]FileOutcome, 0, len(uploads)),
		Outputs: make(map[string]StoredFile),
	}
	logger := s.logger.With(slog.String("batch_id", batch.ID))

	ws, err := files.NewWorkspace(s.workDir, "contacts-", logger)
	if err != nil {
		return nil, err
	}
	defer ws.Close()

	buffer := infrastructure.NewBufferSink(slog.LevelInfo)
	sink := infrastructure.MultiSink(buffer, s.live(ctx), infrastructure.NewSlogSink(logger))

	claims := make(outputClaims, len(uploads))
	for _, up := range uploads {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		infrastructure.Emitf(sink, slog.LevelInfo, "Processing file: %s", up.Name)

		path, err := s.save(ws, up)
		if err != nil {
			infrastructure.Emitf(sink, slog.LevelError, "Error saving upload %s: %v", up.Name, err)
			batch.Files = append(batch.Files, FileOutcome{
				Name:  up.Name,
				Kind:  dataprocessing.KindOf(err),
				Error: err.Error(),
			})
			continue
		}

		outcome := s.processFile(ctx, path, sink, claims)
		outcome.Name = filepath.Base(path)
		if outcome.Success {
			stored, err := readOutput(outcome.Output)
			if err != nil {
				outcome.Success = false
				outcome.Kind = dataprocessing.KindUnexpected
				outcome.Error = err.Error()
				infrastructure.Emitf(sink, slog.LevelError, "Error reading output for %s: %v", up.Name, err)
			} else {
				batch.Outputs[stored.Name] = stored
				outcome.Output = stored.Name
			}
		}
		outcome.Input = ""
		batch.Files = append(batch.Files, outcome)
	}

	batch.Log = buffer.String()
	s.store.Put(batch)
	return batch, nil
}

// live returns the stream of the client that started the request, or nil.
func (s *ContactService) live(ctx context.Context) infrastructure.LogSink {
	id := LogStreamFrom(ctx)
	if s.streams == nil || id == "" {
		return nil
	}
	return s.streams.Stream(id)
}

// Output returns one stored output of an upload batch.
func (s *ContactService) Output(batchID, name string) (StoredFile, error) {
	return s.store.GetFile(batchID, name)
}

func (s *ContactService) save(ws *files.Workspace, up Upload) (string, error) {
	if err := s.validator.ValidateUploadName(up.Name); err != nil {
		return "", dataprocessing.NewError(dataprocessing.KindMalformed, "save", up.Name, err)
	}
	if up.Open == nil {
		return "", dataprocessing.NewError(dataprocessing.KindNotFound, "save", up.Name, errors.New("upload has no content"))
	}
	rc, err := up.Open()
	if err != nil {
		return "", dataprocessing.NewError(dataprocessing.KindNotFound, "save", up.Name, err)
	}
	defer rc.Close()

	br := bufio.NewReaderSize(rc, validation.SniffLen)
	head, err := br.Peek(validation.SniffLen)
	if err != nil && !errors.Is(err, io.EOF) {
		return "", dataprocessing.NewError(dataprocessing.KindUnexpected, "save", up.Name, err)
	}
	if err := s.validator.SniffContent(up.Name, head); err != nil {
		return "", dataprocessing.NewError(dataprocessing.KindMalformed, "save", up.Name, err)
	}

	path, err := ws.Save(up.Name, br)
	if err != nil {
		return "", dataprocessing.NewError(dataprocessing.KindUnexpected, "save", up.Name, err)
	}
	return path, nil
}

func readOutput(path string) (StoredFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return StoredFile{}, fmt.Errorf("failed to read output: %w", err)
	}
	name := filepath.Base(path)
	return StoredFile{Name: name, ContentType: ContentTypeFor(name), Data: data}, nil
}

// ContentTypeFor returns the MIME type served for an output file name.
func ContentTypeFor(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".xlsx":
		return ContentTypeXLSX
	case ".csv":
		return ContentTypeCSV
	default:
		return "application/octet-stream"
	}
}

func within(root, dir string) bool {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return false
	}
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return false
	}
	rel, err := filepath.Rel(absRoot, absDir)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}
