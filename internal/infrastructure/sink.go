package infrastructure

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// LogSink receives the human-readable progress lines emitted by the cleaning
// pipeline. It is passed explicitly to every pipeline run so callers decide
// where lines go.
type LogSink interface {
	Emit(level slog.Level, msg string)
}

// Emitf formats a message and sends it to sink.
func Emitf(sink LogSink, level slog.Level, format string, args ...any) {
	if sink == nil {
		return
	}
	sink.Emit(level, fmt.Sprintf(format, args...))
}

// SlogSink forwards lines to a structured logger.
type SlogSink struct {
	logger *slog.Logger
}

// NewSlogSink creates a sink backed by logger. A nil logger uses GetLogger.
func NewSlogSink(logger *slog.Logger, attrs ...any) *SlogSink {
	if logger == nil {
		logger = GetLogger()
	}
	if len(attrs) > 0 {
		logger = logger.With(attrs...)
	}
	return &SlogSink{logger: logger}
}

// Emit implements LogSink
func (s *SlogSink) Emit(level slog.Level, msg string) {
	s.logger.Log(context.Background(), level, msg)
}

// LogLine is one captured sink line.
type LogLine struct {
	Time    time.Time  `json:"time"`
	Level   slog.Level `json:"level"`
	Message string     `json:"message"`
}

// String renders the line as "time - LEVEL - message".
func (l LogLine) String() string {
	return fmt.Sprintf("%s - %s - %s", l.Time.Format("2006-01-02 15:04:05,000"), l.Level.String(), l.Message)
}

// BufferSink keeps every line in memory, for display after a batch.
type BufferSink struct {
	mu    sync.Mutex
	min   slog.Level
	lines []LogLine
	now   func() time.Time
}

// NewBufferSink creates a buffer that keeps lines at or above min.
func NewBufferSink(min slog.Level) *BufferSink {
	return &BufferSink{min: min, now: time.Now}
}

// Emit implements LogSink
func (b *BufferSink) Emit(level slog.Level, msg string) {
	if level < b.min {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.lines = append(b.lines, LogLine{Time: b.now(), Level: level, Message: msg})
}

// Lines returns a copy of the captured lines.
func (b *BufferSink) Lines() []LogLine {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]LogLine(nil), b.lines...)
}

// String returns the captured lines joined by newlines.
func (b *BufferSink) String() string {
	lines := b.Lines()
	var sb strings.Builder
	for _, l := range lines {
		sb.WriteString(l.String())
		sb.WriteByte('\n')
	}
	return sb.String()
}

// Reset drops all captured lines.
func (b *BufferSink) Reset() {
	b.mu.Lock()
	b.lines = nil
	b.mu.Unlock()
}

// WriterSink writes each line as text to an io.Writer, for terminals.
type WriterSink struct {
	mu  sync.Mutex
	w   io.Writer
	min slog.Level
	now func() time.Time
}

// NewWriterSink creates a sink writing lines at or above min to w.
func NewWriterSink(w io.Writer, min slog.Level) *WriterSink {
	return &WriterSink{w: w, min: min, now: time.Now}
}

// Emit implements LogSink
func (s *WriterSink) Emit(level slog.Level, msg string) {
	if level < s.min {
		return
	}
	line := LogLine{Time: s.now(), Level: level, Message: msg}
	s.mu.Lock()
	fmt.Fprintln(s.w, line.String())
	s.mu.Unlock()
}

type multiSink []LogSink

// MultiSink fans every line out to all non-nil sinks.
func MultiSink(sinks ...LogSink) LogSink {
	var ms multiSink
	for _, s := range sinks {
		if s != nil {
			ms = append(ms, s)
		}
	}
	return ms
}

func (m multiSink) Emit(level slog.Level, msg string) {
	for _, s := range m {
		s.Emit(level, msg)
	}
}

type discardSink struct{}

func (discardSink) Emit(slog.Level, string) {}

// DiscardSink drops every line.
var DiscardSink LogSink = discardSink{}
