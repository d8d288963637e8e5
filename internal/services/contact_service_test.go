package services

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"contactcli/internal/dataprocessing"
	"contactcli/internal/exporter"
	"contactcli/internal/infrastructure"
	"contactcli/internal/shared/testutil"
	"contactcli/internal/validation"
)

func newTestService(t *testing.T, cfg ContactServiceConfig) (*ContactService, *testutil.BufferedSlogHandler) {
	t.Helper()
	logger, handler := testutil.NewTestLogger(t)
	if cfg.Pipeline == nil {
		cfg.Pipeline = dataprocessing.NewPipeline(dataprocessing.DefaultOptions(),
			exporter.NewXLSXWriter(), exporter.NewCSVWriter())
	}
	cfg.Logger = logger
	return NewContactService(cfg), handler
}

func scenarioCSV(t *testing.T) string {
	return testutil.ContactCSV(t, []string{"Email address", "Company"},
		[]string{"a@gmail.com", ""},
		[]string{"b@acme.com", "Acme"},
	)
}

// bufferStreams hands out one buffer per stream client id.
type bufferStreams map[string]*infrastructure.BufferSink

func (b bufferStreams) Stream(clientID string) infrastructure.LogSink {
	if _, ok := b[clientID]; !ok {
		b[clientID] = infrastructure.NewBufferSink(slog.LevelInfo)
	}
	return b[clientID]
}

func stringUpload(name, content string) Upload {
	return Upload{
		Name: name,
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(strings.NewReader(content)), nil
		},
	}
}

func TestProcessFileScenario(t *testing.T) {
	svc, handler := newTestService(t, ContactServiceConfig{})
	path := testutil.WriteFile(t, t.TempDir(), "list.csv", scenarioCSV(t))

	sink := infrastructure.NewBufferSink(slog.LevelInfo)
	outcome := svc.ProcessFile(context.Background(), path, sink)

	require.True(t, outcome.Success, outcome.Error)
	assert.Equal(t, "list.csv", outcome.Name)
	assert.Equal(t, dataprocessing.OutputPath(path, "xlsx"), outcome.Output)
	require.NotNil(t, outcome.Stats)
	assert.Equal(t, 2, outcome.Stats.InitialRows)
	assert.Equal(t, 1, outcome.Stats.FinalRows)

	header, rows, err := exporter.ReadXLSX(outcome.Output)
	require.NoError(t, err)
	assert.Equal(t, []string{"Owner", "Task", "Company", "Email address"}, header)
	require.Len(t, rows, 1)
	assert.Equal(t, []string{"", "", "Acme", "b@acme.com"}, rows[0])

	assert.Contains(t, sink.String(), "Initial row count: 2")
	testutil.AssertLogContains(t, handler, slog.LevelInfo, "contact file processed")
}

func TestProcessFileIsolatesFailures(t *testing.T) {
	svc, handler := newTestService(t, ContactServiceConfig{})
	sink := infrastructure.NewBufferSink(slog.LevelInfo)

	outcome := svc.ProcessFile(context.Background(), filepath.Join(t.TempDir(), "missing.csv"), sink)

	assert.False(t, outcome.Success)
	assert.Equal(t, dataprocessing.KindNotFound, outcome.Kind)
	assert.NotEmpty(t, outcome.Error)
	assert.Nil(t, outcome.Stats)
	assert.Contains(t, sink.String(), "ERROR - Error processing file")
	assert.True(t, handler.ContainsAttr("kind", "not_found"))
}

func TestProcessFolder(t *testing.T) {
	svc, _ := newTestService(t, ContactServiceConfig{})
	dir := t.TempDir()
	testutil.WriteFile(t, dir, "a_ragged.csv", "Email address,Company\nx@acme.com\n")
	good := testutil.WriteFile(t, dir, "b_list.CSV", scenarioCSV(t))
	testutil.WriteFile(t, dir, "notes.txt", "ignored")

	sink := infrastructure.NewBufferSink(slog.LevelInfo)
	report, err := svc.ProcessFolder(context.Background(), dir, sink)
	require.NoError(t, err)

	require.Len(t, report.Files, 2)
	assert.Equal(t, "a_ragged.csv", report.Files[0].Name)
	assert.Equal(t, dataprocessing.KindMalformed, report.Files[0].Kind)
	assert.Equal(t, "b_list.CSV", report.Files[1].Name)
	assert.True(t, report.Files[1].Success)
	assert.Equal(t, 1, report.Succeeded)
	assert.Equal(t, 1, report.Failed)

	assert.FileExists(t, dataprocessing.OutputPath(good, "xlsx"))
	assert.NoFileExists(t, filepath.Join(dir, "a_ragged.xlsx"))
	assert.Contains(t, sink.String(), "Found 2 CSV files to process")
}

func TestProcessFolderSameOutputName(t *testing.T) {
	svc, _ := newTestService(t, ContactServiceConfig{})
	dir := t.TempDir()
	second := testutil.ContactCSV(t, []string{"Email address", "Company"}, []string{"c@initech.com", "Initech"})
	testutil.WriteFile(t, dir, "list.CSV", second)
	testutil.WriteFile(t, dir, "list.csv", scenarioCSV(t))

	report, err := svc.ProcessFolder(context.Background(), dir, nil)
	require.NoError(t, err)
	require.Len(t, report.Files, 2)
	assert.Equal(t, 1, report.Succeeded)
	assert.Equal(t, 1, report.Failed)

	first, dup := report.Files[0], report.Files[1]
	assert.True(t, first.Success)
	assert.Equal(t, dataprocessing.KindWriteFailed, dup.Kind)
	assert.Contains(t, dup.Error, first.Name)

	_, rows, err := exporter.ReadXLSX(filepath.Join(dir, "list.xlsx"))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	if first.Name == "list.csv" {
		assert.Contains(t, rows[0], "b@acme.com")
	} else {
		assert.Contains(t, rows[0], "c@initech.com")
	}
}

func TestProcessFolderWithoutFiles(t *testing.T) {
	svc, _ := newTestService(t, ContactServiceConfig{})
	sink := infrastructure.NewBufferSink(slog.LevelInfo)

	report, err := svc.ProcessFolder(context.Background(), t.TempDir(), sink)
	require.NoError(t, err)
	assert.Empty(t, report.Files)
	assert.Contains(t, sink.String(), "WARN - No CSV files found")
}

func TestProcessFolderUnreadable(t *testing.T) {
	svc, _ := newTestService(t, ContactServiceConfig{})

	_, err := svc.ProcessFolder(context.Background(), filepath.Join(t.TempDir(), "nope"), nil)
	assert.Error(t, err)
}

func TestProcessFolderStopsWhenCanceled(t *testing.T) {
	svc, _ := newTestService(t, ContactServiceConfig{})
	dir := t.TempDir()
	testutil.WriteFile(t, dir, "list.csv", scenarioCSV(t))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := svc.ProcessFolder(ctx, dir, nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, report.Files)
	assert.NoFileExists(t, filepath.Join(dir, "list.xlsx"))
}

func TestRunFolderGate(t *testing.T) {
	root := t.TempDir()
	inside := filepath.Join(root, "exports")
	require.NoError(t, os.MkdirAll(inside, 0755))

	disabled, _ := newTestService(t, ContactServiceConfig{})
	_, err := disabled.RunFolder(context.Background(), inside)
	assert.ErrorIs(t, err, ErrFolderRunsDisabled)

	svc, _ := newTestService(t, ContactServiceConfig{AllowFolderRuns: true, FolderRoot: root})
	_, err = svc.RunFolder(context.Background(), t.TempDir())
	assert.ErrorIs(t, err, ErrOutsideFolderRoot)

	_, err = svc.RunFolder(context.Background(), filepath.Join(inside, "..", ".."))
	assert.ErrorIs(t, err, ErrOutsideFolderRoot)

	_, err = svc.RunFolder(context.Background(), filepath.Join(root, "missing"))
	assert.ErrorIs(t, err, fs.ErrNotExist)

	file := testutil.WriteFile(t, root, "list.csv", scenarioCSV(t))
	_, err = svc.RunFolder(context.Background(), file)
	assert.ErrorIs(t, err, validation.ErrNotDirectory)

	report, err := svc.RunFolder(context.Background(), inside)
	require.NoError(t, err)
	assert.Empty(t, report.Files)
}

func TestRunFolderRelativeToRoot(t *testing.T) {
	root := t.TempDir()
	inside := filepath.Join(root, "exports")
	require.NoError(t, os.MkdirAll(inside, 0755))
	testutil.WriteFile(t, inside, "list.csv", scenarioCSV(t))

	svc, _ := newTestService(t, ContactServiceConfig{AllowFolderRuns: true, FolderRoot: root})

	report, err := svc.RunFolder(context.Background(), "exports")
	require.NoError(t, err)
	assert.Equal(t, inside, report.Directory)
	require.Len(t, report.Files, 1)
	assert.True(t, report.Files[0].Success)
	assert.FileExists(t, filepath.Join(inside, "list.xlsx"))

	_, err = svc.RunFolder(context.Background(), filepath.Join("exports", "..", ".."))
	assert.ErrorIs(t, err, ErrOutsideFolderRoot)
}

func TestProcessUploadsRejectsNonCSV(t *testing.T) {
	svc, _ := newTestService(t, ContactServiceConfig{WorkDir: t.TempDir()})

	batch, err := svc.ProcessUploads(context.Background(), []Upload{
		stringUpload("list.xlsx", scenarioCSV(t)),
		stringUpload("renamed.csv", "PK\x03\x04binary"),
		stringUpload("empty.csv", ""),
		stringUpload("list.csv", scenarioCSV(t)),
	})
	require.NoError(t, err)
	require.Len(t, batch.Files, 4)

	for _, o := range batch.Files[:3] {
		assert.False(t, o.Success, o.Name)
		assert.Equal(t, dataprocessing.KindMalformed, o.Kind, o.Name)
	}
	assert.Contains(t, batch.Files[0].Error, "not a CSV file")
	assert.Contains(t, batch.Files[1].Error, "not text")
	assert.Contains(t, batch.Files[2].Error, "empty")
	assert.True(t, batch.Files[3].Success)
	assert.Contains(t, batch.Log, "Error saving upload list.xlsx")
}

func TestProcessUploads(t *testing.T) {
	workDir := t.TempDir()
	streams := bufferStreams{}
	svc, _ := newTestService(t, ContactServiceConfig{WorkDir: workDir, Streams: streams, MaxFiles: 5})

	ctx := WithLogStream(context.Background(), "client-1")
	batch, err := svc.ProcessUploads(ctx, []Upload{
		stringUpload("list.csv", scenarioCSV(t)),
		stringUpload("broken.csv", "Email address,Company\n\"unterminated\n"),
		{Name: "gone.csv", Open: func() (io.ReadCloser, error) { return nil, errors.New("closed") }},
	})
	require.NoError(t, err)
	require.NotEmpty(t, batch.ID)

	require.Len(t, batch.Files, 3)
	assert.True(t, batch.Files[0].Success)
	assert.Equal(t, "list.xlsx", batch.Files[0].Output)
	assert.Empty(t, batch.Files[0].Input)
	assert.Equal(t, dataprocessing.KindMalformed, batch.Files[1].Kind)
	assert.Equal(t, dataprocessing.KindNotFound, batch.Files[2].Kind)

	require.Contains(t, batch.Outputs, "list.xlsx")
	assert.Equal(t, ContentTypeXLSX, batch.Outputs["list.xlsx"].ContentType)
	assert.NotEmpty(t, batch.Outputs["list.xlsx"].Data)
	assert.Contains(t, batch.Log, "Initial row count: 2")
	require.Contains(t, streams, "client-1")
	assert.Contains(t, streams["client-1"].String(), "Processing file: list.csv")
	assert.Len(t, streams, 1)

	stored, err := svc.Output(batch.ID, "list.xlsx")
	require.NoError(t, err)
	assert.Equal(t, batch.Outputs["list.xlsx"].Data, stored.Data)

	entries, err := os.ReadDir(workDir)
	require.NoError(t, err)
	assert.Empty(t, entries, "workspace must be removed")
}

func TestProcessUploadsWithoutStream(t *testing.T) {
	streams := bufferStreams{}
	svc, _ := newTestService(t, ContactServiceConfig{WorkDir: t.TempDir(), Streams: streams})

	_, err := svc.ProcessUploads(context.Background(), []Upload{stringUpload("list.csv", scenarioCSV(t))})
	require.NoError(t, err)
	assert.Empty(t, streams, "lines of a batch without a stream id reach no client")
}

func TestProcessUploadsSameOutputName(t *testing.T) {
	svc, _ := newTestService(t, ContactServiceConfig{WorkDir: t.TempDir()})
	second := testutil.ContactCSV(t, []string{"Email address", "Company"}, []string{"c@initech.com", "Initech"})

	batch, err := svc.ProcessUploads(context.Background(), []Upload{
		stringUpload("list.csv", scenarioCSV(t)),
		stringUpload("list.CSV", second),
	})
	require.NoError(t, err)
	require.Len(t, batch.Files, 2)

	assert.True(t, batch.Files[0].Success)
	assert.False(t, batch.Files[1].Success)
	assert.Equal(t, dataprocessing.KindWriteFailed, batch.Files[1].Kind)
	assert.Contains(t, batch.Files[1].Error, "already produced")
	assert.Contains(t, batch.Log, "Error processing file")

	require.Len(t, batch.Outputs, 1)
	path := filepath.Join(t.TempDir(), "list.xlsx")
	require.NoError(t, os.WriteFile(path, batch.Outputs["list.xlsx"].Data, 0644))
	_, rows, err := exporter.ReadXLSX(path)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Contains(t, rows[0], "b@acme.com", "first file's output is kept")
}

func TestProcessUploadsLimits(t *testing.T) {
	svc, _ := newTestService(t, ContactServiceConfig{WorkDir: t.TempDir(), MaxFiles: 1})

	_, err := svc.ProcessUploads(context.Background(), nil)
	assert.ErrorIs(t, err, ErrNoFiles)

	_, err = svc.ProcessUploads(context.Background(), []Upload{
		stringUpload("a.csv", "x"),
		stringUpload("b.csv", "y"),
	})
	assert.ErrorIs(t, err, ErrTooManyFiles)
	assert.Zero(t, svc.Store().Len())
}

func TestProcessUploadsCanceled(t *testing.T) {
	workDir := t.TempDir()
	svc, _ := newTestService(t, ContactServiceConfig{WorkDir: workDir})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.ProcessUploads(ctx, []Upload{stringUpload("list.csv", scenarioCSV(t))})
	assert.ErrorIs(t, err, context.Canceled)

	entries, err := os.ReadDir(workDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestContentTypeFor(t *testing.T) {
	assert.Equal(t, ContentTypeXLSX, ContentTypeFor("a.XLSX"))
	assert.Equal(t, ContentTypeCSV, ContentTypeFor("a.csv"))
	assert.Equal(t, "application/octet-stream", ContentTypeFor("a.bin"))
}
